package localization

import (
	"log/slog"

	"github.com/LexiPalCo/word-service/pkg/telemetry"
)

// Button is one labeled action in a layout row.
type Button struct {
	Label  string
	Action string
}

// Layout is rows of buttons, ready for the transport layer to turn into
// an inline keyboard. A nil Layout is never produced; "nothing resolved"
// is a Layout with zero rows.
type Layout [][]Button

// Empty reports whether the layout has no rows.
func (l Layout) Empty() bool {
	return len(l) == 0
}

// Layout resolves key to a button layout for locale. Same two tiers as
// Text: static tree first, then the layout generator registry. A
// malformed static node degrades to "not found" and falls through; when
// nothing resolves an empty layout is returned. Never returns an error.
func (r *Resolver) Layout(key, locale string, params map[string]any) Layout {
	if locale == "" || !r.catalog.HasLocale(locale) {
		locale = r.catalog.DefaultLocale()
	}

	if layout, ok := r.staticLayout(key, locale); ok {
		return layout
	}

	genLocale := locale
	if !r.layoutGens.HasLocale(genLocale) {
		genLocale = r.catalog.DefaultLocale()
	}
	if fn, ok := r.layoutGens.Lookup(genLocale, key); ok {
		if layout, ok := invokeLayout(fn, params, r.logger, key); ok {
			return layout
		}
	}

	r.logger.Debug("Layout not found", "key", key, "locale", locale)
	return Layout{}
}

func (r *Resolver) staticLayout(key, locale string) (Layout, bool) {
	value, ok := r.catalog.Lookup(locale, key)
	if !ok && locale != r.catalog.DefaultLocale() {
		value, ok = r.catalog.Lookup(r.catalog.DefaultLocale(), key)
	}
	if !ok {
		return nil, false
	}

	node, ok := value.(*Node)
	if !ok {
		return nil, false
	}

	layout, err := layoutFromNode(node)
	if err != nil {
		r.logger.Warn("Malformed layout node", "key", key, "locale", locale, "error", err)
		countMiss(telemetry.MalformedLayoutNodeTotal, key)
		return nil, false
	}
	return layout, true
}

// layoutFromNode builds a layout from a static node of the form
// {buttons: {id: {label, action}}, buttons_per_row: int}, chunking the
// buttons into rows of buttons_per_row in declaration order.
func layoutFromNode(node *Node) (Layout, error) {
	buttonsVal, ok := node.Child("buttons")
	if !ok {
		return nil, errMissingField("buttons")
	}
	buttonsNode, ok := buttonsVal.(*Node)
	if !ok {
		return nil, errMissingField("buttons")
	}

	perRowVal, ok := node.Child("buttons_per_row")
	if !ok {
		return nil, errMissingField("buttons_per_row")
	}
	perRowFloat, ok := perRowVal.(float64)
	perRow := int(perRowFloat)
	if !ok || perRow < 1 {
		return nil, errMissingField("buttons_per_row")
	}

	buttons := make([]Button, 0, len(buttonsNode.Keys()))
	for _, id := range buttonsNode.Keys() {
		child, _ := buttonsNode.Child(id)
		buttonNode, ok := child.(*Node)
		if !ok {
			return nil, errMalformedButton(id)
		}

		label, okLabel := stringChild(buttonNode, "label")
		action, okAction := stringChild(buttonNode, "action")
		if !okLabel || !okAction {
			return nil, errMalformedButton(id)
		}

		buttons = append(buttons, Button{Label: label, Action: action})
	}

	return Chunk(buttons, perRow), nil
}

// Chunk splits buttons into rows of width perRow, preserving order. The
// last row may be shorter.
func Chunk(buttons []Button, perRow int) Layout {
	layout := Layout{}
	for i := 0; i < len(buttons); i += perRow {
		end := i + perRow
		if end > len(buttons) {
			end = len(buttons)
		}
		layout = append(layout, buttons[i:end])
	}
	return layout
}

func stringChild(node *Node, key string) (string, bool) {
	v, ok := node.Child(key)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func invokeLayout(fn LayoutGenerator, params map[string]any, logger *slog.Logger, key string) (layout Layout, ok bool) {
	defer func() {
		if rec := recover(); rec != nil {
			logger.Debug("Layout generator panicked", "key", key, "panic", rec)
			layout, ok = nil, false
		}
	}()
	return fn(params)
}

type fieldError string

func (e fieldError) Error() string { return string(e) }

func errMissingField(name string) error {
	return fieldError("missing or invalid field: " + name)
}

func errMalformedButton(id string) error {
	return fieldError("malformed button: " + id)
}
