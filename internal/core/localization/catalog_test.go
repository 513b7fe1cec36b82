package localization

import (
	"io"
	"log/slog"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func localeFS(files map[string]string) fstest.MapFS {
	fsys := fstest.MapFS{}
	for name, content := range files {
		fsys[name] = &fstest.MapFile{Data: []byte(content)}
	}
	return fsys
}

func TestLoadCatalogPreservesDeclarationOrder(t *testing.T) {
	fsys := localeFS(map[string]string{
		"en.json": `{"keyboards":{"menu":{"buttons":{
			"charlie": {"label": "C", "action": "c"},
			"alpha":   {"label": "A", "action": "a"},
			"bravo":   {"label": "B", "action": "b"}
		}, "buttons_per_row": 2}}}`,
	})

	catalog, err := LoadCatalog(fsys, "en", testLogger())
	require.NoError(t, err)

	value, ok := catalog.Lookup("en", "keyboards.menu.buttons")
	require.True(t, ok)

	node, ok := value.(*Node)
	require.True(t, ok)
	assert.Equal(t, []string{"charlie", "alpha", "bravo"}, node.Keys())
}

func TestLoadCatalogSkipsMalformedLocale(t *testing.T) {
	fsys := localeFS(map[string]string{
		"en.json": `{"messages":{"hi":"Hello"}}`,
		"ru.json": `{"messages": not json`,
	})

	catalog, err := LoadCatalog(fsys, "en", testLogger())
	require.NoError(t, err)

	assert.True(t, catalog.HasLocale("en"))
	assert.False(t, catalog.HasLocale("ru"))
}

func TestLoadCatalogRequiresDefaultLocale(t *testing.T) {
	fsys := localeFS(map[string]string{
		"ru.json": `{"messages":{"hi":"Привет"}}`,
	})

	_, err := LoadCatalog(fsys, "en", testLogger())
	require.Error(t, err)
}

func TestLoadCatalogDottedPathLookup(t *testing.T) {
	fsys := localeFS(map[string]string{
		"en.json": `{"messages":{"registration":{"start":"Welcome"}}}`,
	})

	catalog, err := LoadCatalog(fsys, "en", testLogger())
	require.NoError(t, err)

	value, ok := catalog.Lookup("en", "messages.registration.start")
	require.True(t, ok)
	assert.Equal(t, "Welcome", value)

	_, ok = catalog.Lookup("en", "messages.registration.missing")
	assert.False(t, ok)

	_, ok = catalog.Lookup("en", "messages.registration.start.deeper")
	assert.False(t, ok)
}

func TestEmbeddedLocalesLoad(t *testing.T) {
	catalog, err := LoadCatalog(EmbeddedLocales(), "en", testLogger())
	require.NoError(t, err)

	assert.True(t, catalog.HasLocale("en"))
	assert.True(t, catalog.HasLocale("ru"))

	_, ok := catalog.Lookup("en", "messages.registration.start")
	assert.True(t, ok)
	_, ok = catalog.Lookup("ru", "messages.registration.final_confirmation")
	assert.True(t, ok)
}
