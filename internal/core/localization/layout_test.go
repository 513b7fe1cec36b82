package localization

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLayoutResolver(t *testing.T, enJSON string) *Resolver {
	t.Helper()

	catalog, err := LoadCatalog(localeFS(map[string]string{"en.json": enJSON}), "en", testLogger())
	require.NoError(t, err)

	textGens := NewTextGeneratorRegistry()
	layoutGens := NewLayoutGeneratorRegistry()
	RegisterBuiltinGenerators(textGens, layoutGens)

	return NewResolver(catalog, textGens, layoutGens, testLogger())
}

func TestChunkUnevenRows(t *testing.T) {
	buttons := []Button{{Label: "1"}, {Label: "2"}, {Label: "3"}, {Label: "4"}, {Label: "5"}}

	layout := Chunk(buttons, 2)

	require.Len(t, layout, 3)
	assert.Len(t, layout[0], 2)
	assert.Len(t, layout[1], 2)
	assert.Len(t, layout[2], 1)
	assert.Equal(t, "5", layout[2][0].Label)
}

func TestStaticLayoutPreservesOrder(t *testing.T) {
	r := newLayoutResolver(t, `{"keyboards":{"menu":{"buttons":{
		"third":  {"label": "Three", "action": "3"},
		"first":  {"label": "One", "action": "1"},
		"second": {"label": "Two", "action": "2"}
	}, "buttons_per_row": 2}}}`)

	layout := r.Layout("keyboards.menu", "en", nil)

	require.Len(t, layout, 2)
	assert.Equal(t, "Three", layout[0][0].Label)
	assert.Equal(t, "One", layout[0][1].Label)
	assert.Equal(t, "Two", layout[1][0].Label)
}

func TestMalformedLayoutNodeDegradesToEmpty(t *testing.T) {
	// button without an action, and a node without buttons_per_row
	r := newLayoutResolver(t, `{"keyboards":{
		"broken":  {"buttons": {"a": {"label": "A"}}, "buttons_per_row": 1},
		"no_rows": {"buttons": {"a": {"label": "A", "action": "a"}}}
	}}`)

	assert.True(t, r.Layout("keyboards.broken", "en", nil).Empty())
	assert.True(t, r.Layout("keyboards.no_rows", "en", nil).Empty())
}

func TestMalformedLayoutNodeFallsThroughToGenerator(t *testing.T) {
	r := newLayoutResolver(t, `{"keyboards":{
		"broken": {"buttons": {"a": {"label": "A"}}, "buttons_per_row": 1}
	}}`)
	r.layoutGens.Register("en", "keyboards.broken", func(params map[string]any) (Layout, bool) {
		return Layout{{{Label: "Fallback", Action: "fb"}}}, true
	})

	layout := r.Layout("keyboards.broken", "en", nil)
	require.Len(t, layout, 1)
	assert.Equal(t, "Fallback", layout[0][0].Label)
}

func TestLayoutMissingKeyIsEmptyNeverNil(t *testing.T) {
	r := newLayoutResolver(t, `{}`)

	layout := r.Layout("keyboards.nope", "en", nil)
	assert.NotNil(t, layout)
	assert.True(t, layout.Empty())
}

func TestLanguageSelectionKeyboard(t *testing.T) {
	r := newLayoutResolver(t, `{}`)

	layout := r.Layout("generate_language_selection_keyboard", "en", map[string]any{
		"languages": []LanguageOption{
			{Code: "en", Name: "English"},
			{Code: "ru", Name: "Русский"},
			{Code: "uk", Name: "Українська"},
		},
	})

	require.Len(t, layout, 2)
	assert.Equal(t, "lang:en", layout[0][0].Action)
	assert.Equal(t, "Русский", layout[0][1].Label)
	assert.Equal(t, "lang:uk", layout[1][0].Action)
}

func TestTermsKeyboardReflectsToggles(t *testing.T) {
	r := newLayoutResolver(t, `{}`)

	layout := r.Layout("generate_terms_keyboard", "en", map[string]any{
		"eula":    true,
		"privacy": false,
	})

	require.Len(t, layout, 3)
	assert.Contains(t, layout[0][0].Label, "☑")
	assert.Equal(t, "toggle:eula", layout[0][0].Action)
	assert.Contains(t, layout[1][0].Label, "☐")
	assert.Equal(t, "toggle:privacy", layout[1][0].Action)
	assert.Equal(t, "proceed", layout[2][0].Action)
}

func TestTermsKeyboardRussianFallback(t *testing.T) {
	r := newLayoutResolver(t, `{}`)

	layout := r.Layout("generate_terms_keyboard", "ru", map[string]any{
		"eula":    false,
		"privacy": false,
	})

	require.Len(t, layout, 3)
	assert.Contains(t, layout[0][0].Label, "соглашение")
}

func TestNumericKeyboardRange(t *testing.T) {
	r := newLayoutResolver(t, `{}`)

	layout := r.Layout("generate_numeric_keyboard", "en", map[string]any{
		"from":          -12,
		"to":            14,
		"action_prefix": "tz:",
		"per_row":       6,
	})

	require.Len(t, layout, 5)
	assert.Len(t, layout[0], 6)
	assert.Len(t, layout[4], 3)
	assert.Equal(t, "tz:-12", layout[0][0].Action)
	assert.Equal(t, "-12", layout[0][0].Label)
	assert.Equal(t, "tz:14", layout[4][2].Action)
}

func TestNumericKeyboardBadParamsDegradesToEmpty(t *testing.T) {
	r := newLayoutResolver(t, `{}`)

	layout := r.Layout("generate_numeric_keyboard", "en", map[string]any{
		"from":          5,
		"to":            1,
		"action_prefix": "n:",
	})

	assert.True(t, layout.Empty())
}
