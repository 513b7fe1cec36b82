package languages

import (
	"sort"
	"strings"
)

// Language identifies one language by its short code. Codes double as
// locale identifiers for the content catalog.
type Language struct {
	Code        string
	IsInterface bool
	FlagCode    string
}

// Translation is a directed naming edge: the display name of SubjectCode
// as written in Locale. A self-loop (SubjectCode == Locale) is the
// language's native name.
type Translation struct {
	SubjectCode string
	Locale      string
	DisplayName string
}

// Directory is an immutable snapshot of all known languages and their
// translations, loaded once at startup. It backs every display-name
// lookup the onboarding flow makes.
type Directory struct {
	defaultLocale string
	languages     map[string]Language
	// SubjectCode -> Locale -> DisplayName
	names map[string]map[string]string
}

// Option is one entry of an interface-language listing.
type Option struct {
	Code string
	Name string
}

func NewDirectory(defaultLocale string, langs []Language, translations []Translation) *Directory {
	d := &Directory{
		defaultLocale: defaultLocale,
		languages:     make(map[string]Language, len(langs)),
		names:         make(map[string]map[string]string),
	}

	for _, lang := range langs {
		d.languages[lang.Code] = lang
	}
	for _, tr := range translations {
		if d.names[tr.SubjectCode] == nil {
			d.names[tr.SubjectCode] = make(map[string]string)
		}
		d.names[tr.SubjectCode][tr.Locale] = tr.DisplayName
	}

	return d
}

// NameOf resolves the display name of the language identified by code as
// written in locale. Fallback order: requested locale, the default
// locale, any existing translation, the uppercased code. Never fails and
// never returns an empty string.
func (d *Directory) NameOf(code, locale string) string {
	translations := d.names[code]

	if name, ok := translations[locale]; ok {
		return name
	}
	if name, ok := translations[d.defaultLocale]; ok {
		return name
	}

	// any translation, picked deterministically
	if len(translations) > 0 {
		locales := make([]string, 0, len(translations))
		for l := range translations {
			locales = append(locales, l)
		}
		sort.Strings(locales)
		return translations[locales[0]]
	}

	return strings.ToUpper(code)
}

// InterfaceLanguages returns all interface-eligible languages with their
// names resolved in locale, ordered by code for determinism.
func (d *Directory) InterfaceLanguages(locale string) []Option {
	options := make([]Option, 0, len(d.languages))
	for code, lang := range d.languages {
		if !lang.IsInterface {
			continue
		}
		options = append(options, Option{Code: code, Name: d.NameOf(code, locale)})
	}

	sort.Slice(options, func(i, j int) bool { return options[i].Code < options[j].Code })
	return options
}

// Has reports whether code names a known language.
func (d *Directory) Has(code string) bool {
	_, ok := d.languages[code]
	return ok
}

// IsInterface reports whether code may be selected as an interface
// language.
func (d *Directory) IsInterface(code string) bool {
	return d.languages[code].IsInterface
}
