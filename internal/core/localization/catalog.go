package localization

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"strings"
)

//go:embed locales/*.json
var embeddedLocales embed.FS

// EmbeddedLocales returns the locale files compiled into the binary.
func EmbeddedLocales() fs.FS {
	sub, _ := fs.Sub(embeddedLocales, "locales")
	return sub
}

// Node is one object of a locale content tree. Child order matches the
// declaration order in the source file, which is what layout chunking
// relies on.
type Node struct {
	keys     []string
	children map[string]any
}

// Keys returns the child keys in declaration order.
func (n *Node) Keys() []string {
	return n.keys
}

// Child returns the named child: a string leaf, a float64, a bool, a
// []any or a *Node.
func (n *Node) Child(key string) (any, bool) {
	v, ok := n.children[key]
	return v, ok
}

// Catalog holds the loaded static content trees for all locales. Loaded
// once at startup and treated as immutable afterwards.
type Catalog struct {
	locales       map[string]*Node
	defaultLocale string
}

// LoadCatalog reads one <locale>.json per locale from fsys. A malformed
// locale file is logged and skipped; the load fails only when the default
// locale itself is unusable, since every fallback chain ends there.
func LoadCatalog(fsys fs.FS, defaultLocale string, logger *slog.Logger) (*Catalog, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("failed to read locales directory: %w", err)
	}

	c := &Catalog{
		locales:       make(map[string]*Node),
		defaultLocale: defaultLocale,
	}

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || path.Ext(name) != ".json" {
			continue
		}
		locale := strings.TrimSuffix(name, ".json")

		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			logger.Error("Failed to read locale file", "locale", locale, "error", err)
			continue
		}

		root, err := parseTree(data)
		if err != nil {
			logger.Error("Failed to parse locale file", "locale", locale, "error", err)
			continue
		}

		c.locales[locale] = root
		logger.Debug("Loaded locale", "locale", locale)
	}

	if _, ok := c.locales[defaultLocale]; !ok {
		return nil, fmt.Errorf("default locale %q could not be loaded", defaultLocale)
	}

	return c, nil
}

// DefaultLocale returns the locale every lookup falls back to.
func (c *Catalog) DefaultLocale() string {
	return c.defaultLocale
}

// HasLocale reports whether a static tree was loaded for locale.
func (c *Catalog) HasLocale(locale string) bool {
	_, ok := c.locales[locale]
	return ok
}

// Locales returns the loaded locale codes.
func (c *Catalog) Locales() []string {
	out := make([]string, 0, len(c.locales))
	for locale := range c.locales {
		out = append(out, locale)
	}
	return out
}

// Lookup resolves a dotted key as a literal nested path in the locale's
// tree. The second return is false when the locale is unknown or any path
// segment is missing.
func (c *Catalog) Lookup(locale, key string) (any, bool) {
	root, ok := c.locales[locale]
	if !ok {
		return nil, false
	}

	var current any = root
	for _, segment := range strings.Split(key, ".") {
		node, ok := current.(*Node)
		if !ok {
			return nil, false
		}
		current, ok = node.Child(segment)
		if !ok {
			return nil, false
		}
	}

	return current, true
}

// parseTree decodes a locale file into an order-preserving tree.
// encoding/json unmarshals objects into unordered maps, so objects are
// walked token by token instead.
func parseTree(data []byte) (*Node, error) {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("locale file root must be an object")
	}

	root, err := parseObject(dec)
	if err != nil {
		return nil, err
	}

	if dec.More() {
		return nil, fmt.Errorf("trailing content after root object")
	}

	return root, nil
}

// parseObject consumes tokens up to and including the object's closing
// brace, keeping key declaration order.
func parseObject(dec *json.Decoder) (*Node, error) {
	node := &Node{children: make(map[string]any)}

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected object key token %v", keyTok)
		}

		value, err := parseValue(dec)
		if err != nil {
			return nil, err
		}

		if _, exists := node.children[key]; !exists {
			node.keys = append(node.keys, key)
		}
		node.children[key] = value
	}

	// closing brace
	if _, err := dec.Token(); err != nil {
		return nil, err
	}

	return node, nil
}

func parseValue(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}

	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			return parseObject(dec)
		case '[':
			var arr []any
			for dec.More() {
				v, err := parseValue(dec)
				if err != nil {
					return nil, err
				}
				arr = append(arr, v)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return arr, nil
		default:
			return nil, fmt.Errorf("unexpected delimiter %v", t)
		}
	default:
		// string, float64, bool or nil
		return tok, nil
	}
}
