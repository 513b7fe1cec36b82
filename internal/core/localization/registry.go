package localization

// TextGenerator produces text for one procedural key. The boolean is
// false when the generator cannot produce output for the given params,
// which the resolver treats as an ordinary miss.
type TextGenerator func(params map[string]any) (string, bool)

// LayoutGenerator produces a button layout for one procedural key.
type LayoutGenerator func(params map[string]any) (Layout, bool)

// TextGeneratorRegistry maps (locale, key) to a text generator. Built once
// during startup and read-only afterwards.
type TextGeneratorRegistry struct {
	generators map[string]map[string]TextGenerator
}

func NewTextGeneratorRegistry() *TextGeneratorRegistry {
	return &TextGeneratorRegistry{generators: make(map[string]map[string]TextGenerator)}
}

func (r *TextGeneratorRegistry) Register(locale, key string, fn TextGenerator) {
	if r.generators[locale] == nil {
		r.generators[locale] = make(map[string]TextGenerator)
	}
	r.generators[locale][key] = fn
}

// HasLocale reports whether any generator is registered for locale.
func (r *TextGeneratorRegistry) HasLocale(locale string) bool {
	return len(r.generators[locale]) > 0
}

// Lookup returns the generator registered for (locale, key), if any.
func (r *TextGeneratorRegistry) Lookup(locale, key string) (TextGenerator, bool) {
	fn, ok := r.generators[locale][key]
	return fn, ok
}

// LayoutGeneratorRegistry maps (locale, key) to a layout generator.
type LayoutGeneratorRegistry struct {
	generators map[string]map[string]LayoutGenerator
}

func NewLayoutGeneratorRegistry() *LayoutGeneratorRegistry {
	return &LayoutGeneratorRegistry{generators: make(map[string]map[string]LayoutGenerator)}
}

func (r *LayoutGeneratorRegistry) Register(locale, key string, fn LayoutGenerator) {
	if r.generators[locale] == nil {
		r.generators[locale] = make(map[string]LayoutGenerator)
	}
	r.generators[locale][key] = fn
}

func (r *LayoutGeneratorRegistry) HasLocale(locale string) bool {
	return len(r.generators[locale]) > 0
}

func (r *LayoutGeneratorRegistry) Lookup(locale, key string) (LayoutGenerator, bool) {
	fn, ok := r.generators[locale][key]
	return fn, ok
}
