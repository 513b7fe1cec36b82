package localization

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	api "go.opentelemetry.io/otel/metric"

	"github.com/LexiPalCo/word-service/pkg/telemetry"
)

// MissingParamError reports a format placeholder with no matching entry in
// params. Unlike a missing key, this is a caller bug and surfaces as an
// error instead of degrading to the sentinel.
type MissingParamError struct {
	Key   string
	Param string
}

func (e *MissingParamError) Error() string {
	return fmt.Sprintf("missing argument %q for text %q", e.Param, e.Key)
}

var placeholderRe = regexp.MustCompile(`\{([a-zA-Z0-9_]+)\}`)

// Resolver turns (key, locale, params) triples into rendered text or
// button layouts using the static catalog plus the procedural generator
// registries. Pure: no state beyond its read-only inputs.
type Resolver struct {
	catalog    *Catalog
	textGens   *TextGeneratorRegistry
	layoutGens *LayoutGeneratorRegistry
	logger     *slog.Logger
}

func NewResolver(catalog *Catalog, textGens *TextGeneratorRegistry, layoutGens *LayoutGeneratorRegistry, logger *slog.Logger) *Resolver {
	return &Resolver{
		catalog:    catalog,
		textGens:   textGens,
		layoutGens: layoutGens,
		logger:     logger.With("service", "localization"),
	}
}

// Text resolves key for locale. Resolution order: static tree for locale,
// static tree for the default locale, procedural generator (locale, then
// default locale when the locale has no registrations), then a sentinel
// naming the missing key. A missing key never produces an error; a
// placeholder absent from params produces *MissingParamError.
func (r *Resolver) Text(key, locale string, params map[string]any) (string, error) {
	if locale == "" || !r.catalog.HasLocale(locale) {
		locale = r.catalog.DefaultLocale()
	}

	text, found := r.staticText(key, locale)
	if found {
		return r.format(key, text, params)
	}

	genLocale := locale
	if !r.textGens.HasLocale(genLocale) {
		genLocale = r.catalog.DefaultLocale()
	}
	if fn, ok := r.textGens.Lookup(genLocale, key); ok {
		if out, ok := invokeText(fn, params, r.logger, key); ok {
			return out, nil
		}
	}

	r.logger.Debug("Text not found", "key", key, "locale", locale)
	countMiss(telemetry.MissingCatalogKeysTotal, key)
	return fmt.Sprintf("Missing text for %s", key), nil
}

// countMiss records a degraded lookup. Resolution has no request context,
// so the counter is recorded against the background one.
func countMiss(counter api.Int64Counter, key string) {
	if counter == nil {
		return
	}
	counter.Add(context.Background(), 1, api.WithAttributes(attribute.String("key", key)))
}

func (r *Resolver) staticText(key, locale string) (string, bool) {
	value, ok := r.catalog.Lookup(locale, key)
	if !ok && locale != r.catalog.DefaultLocale() {
		value, ok = r.catalog.Lookup(r.catalog.DefaultLocale(), key)
	}
	if !ok {
		return "", false
	}

	text, ok := value.(string)
	if !ok {
		// structured node, not a text leaf
		return "", false
	}
	return text, true
}

func (r *Resolver) format(key, text string, params map[string]any) (string, error) {
	var missing *MissingParamError

	out := placeholderRe.ReplaceAllStringFunc(text, func(match string) string {
		name := match[1 : len(match)-1]
		value, ok := params[name]
		if !ok {
			if missing == nil {
				missing = &MissingParamError{Key: key, Param: name}
			}
			return match
		}
		return fmt.Sprint(value)
	})

	if missing != nil {
		return "", missing
	}
	return out, nil
}

// invokeText calls a generator, converting a panic into a miss the same
// way the registries treat a generator that declines.
func invokeText(fn TextGenerator, params map[string]any, logger *slog.Logger, key string) (out string, ok bool) {
	defer func() {
		if rec := recover(); rec != nil {
			logger.Debug("Text generator panicked", "key", key, "panic", rec)
			out, ok = "", false
		}
	}()
	return fn(params)
}

// NormalizeLocale converts platform language codes to catalog locales.
func NormalizeLocale(languageCode string) string {
	languageCode = strings.ToLower(strings.TrimSpace(languageCode))
	if idx := strings.IndexByte(languageCode, '-'); idx > 0 {
		languageCode = languageCode[:idx]
	}

	switch languageCode {
	case "en", "ru", "uk", "es":
		return languageCode
	default:
		return "en"
	}
}
