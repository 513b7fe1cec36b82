package localization

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestResolver(t *testing.T) *Resolver {
	t.Helper()

	fsys := localeFS(map[string]string{
		"en.json": `{
			"messages": {
				"greeting": "Hello {name}!",
				"plain": "Just text",
				"only_default": "Default only"
			}
		}`,
		"ru.json": `{
			"messages": {
				"greeting": "Привет, {name}!"
			}
		}`,
	})

	catalog, err := LoadCatalog(fsys, "en", testLogger())
	require.NoError(t, err)

	return NewResolver(catalog, NewTextGeneratorRegistry(), NewLayoutGeneratorRegistry(), testLogger())
}

func TestTextStaticLocaleHit(t *testing.T) {
	r := newTestResolver(t)

	out, err := r.Text("messages.greeting", "ru", map[string]any{"name": "Анна"})
	require.NoError(t, err)
	assert.Equal(t, "Привет, Анна!", out)
}

func TestTextFallsBackToDefaultLocale(t *testing.T) {
	r := newTestResolver(t)

	out, err := r.Text("messages.only_default", "ru", nil)
	require.NoError(t, err)
	assert.Equal(t, "Default only", out)
}

func TestTextUnknownLocaleUsesDefault(t *testing.T) {
	r := newTestResolver(t)

	out, err := r.Text("messages.plain", "xx", nil)
	require.NoError(t, err)
	assert.Equal(t, "Just text", out)
}

func TestTextMissingKeySentinelNamesKey(t *testing.T) {
	r := newTestResolver(t)

	out, err := r.Text("messages.nope", "en", nil)
	require.NoError(t, err)
	assert.Contains(t, out, "messages.nope")
}

func TestTextMissingParamIsError(t *testing.T) {
	r := newTestResolver(t)

	_, err := r.Text("messages.greeting", "en", map[string]any{})
	require.Error(t, err)

	var missing *MissingParamError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "messages.greeting", missing.Key)
	assert.Equal(t, "name", missing.Param)
}

func TestTextGeneratorTier(t *testing.T) {
	r := newTestResolver(t)
	r.textGens.Register("en", "generated_text", func(params map[string]any) (string, bool) {
		return "from generator", true
	})

	out, err := r.Text("generated_text", "en", nil)
	require.NoError(t, err)
	assert.Equal(t, "from generator", out)
}

func TestTextGeneratorLocaleFallback(t *testing.T) {
	r := newTestResolver(t)
	r.textGens.Register("en", "generated_text", func(params map[string]any) (string, bool) {
		return "english generator", true
	})

	// ru has no generator registrations at all, so the default locale's
	// registry serves the key
	out, err := r.Text("generated_text", "ru", nil)
	require.NoError(t, err)
	assert.Equal(t, "english generator", out)
}

func TestTextGeneratorDeclineDegradesToSentinel(t *testing.T) {
	r := newTestResolver(t)
	r.textGens.Register("en", "generated_text", func(params map[string]any) (string, bool) {
		return "", false
	})

	out, err := r.Text("generated_text", "en", nil)
	require.NoError(t, err)
	assert.Contains(t, out, "generated_text")
}

func TestTextGeneratorPanicDegradesToSentinel(t *testing.T) {
	r := newTestResolver(t)
	r.textGens.Register("en", "generated_text", func(params map[string]any) (string, bool) {
		panic("boom")
	})

	out, err := r.Text("generated_text", "en", nil)
	require.NoError(t, err)
	assert.Contains(t, out, "generated_text")
}

func TestStaticTextWinsOverGenerator(t *testing.T) {
	r := newTestResolver(t)
	r.textGens.Register("en", "messages.plain", func(params map[string]any) (string, bool) {
		return "never used", true
	})

	out, err := r.Text("messages.plain", "en", nil)
	require.NoError(t, err)
	assert.Equal(t, "Just text", out)
}

func TestNormalizeLocale(t *testing.T) {
	assert.Equal(t, "en", NormalizeLocale("en-US"))
	assert.Equal(t, "ru", NormalizeLocale("RU"))
	assert.Equal(t, "uk", NormalizeLocale("uk"))
	assert.Equal(t, "en", NormalizeLocale("de"))
	assert.Equal(t, "en", NormalizeLocale(""))
}
