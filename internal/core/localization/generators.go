package localization

import "fmt"

// LanguageOption is one selectable interface language, already resolved
// to a display name in the viewer's locale.
type LanguageOption struct {
	Code string
	Name string
}

// RegisterBuiltinGenerators wires the procedural content this service
// ships with. Locales without an entry for a key fall back to the default
// locale's registry at resolution time.
func RegisterBuiltinGenerators(textGens *TextGeneratorRegistry, layoutGens *LayoutGeneratorRegistry) {
	textGens.Register("en", "generate_welcome_message", englishWelcomeMessage)
	textGens.Register("ru", "generate_welcome_message", russianWelcomeMessage)

	layoutGens.Register("en", "generate_language_selection_keyboard", languageSelectionKeyboard)
	layoutGens.Register("ru", "generate_language_selection_keyboard", languageSelectionKeyboard)

	layoutGens.Register("en", "generate_terms_keyboard", termsKeyboard(termsLabelsEN))
	layoutGens.Register("ru", "generate_terms_keyboard", termsKeyboard(termsLabelsRU))

	layoutGens.Register("en", "generate_numeric_keyboard", numericKeyboard)
}

func englishWelcomeMessage(params map[string]any) (string, bool) {
	name, ok := params["name"].(string)
	if !ok || name == "" {
		return "", false
	}
	return fmt.Sprintf("Welcome, %s! Your profile is ready — a new word is already on its way.", name), true
}

func russianWelcomeMessage(params map[string]any) (string, bool) {
	name, ok := params["name"].(string)
	if !ok || name == "" {
		return "", false
	}
	return fmt.Sprintf("Добро пожаловать, %s! Профиль готов — новое слово уже в пути.", name), true
}

// languageSelectionKeyboard renders one button per interface language.
// Display names arrive pre-resolved, so the same generator serves every
// locale.
func languageSelectionKeyboard(params map[string]any) (Layout, bool) {
	options, ok := params["languages"].([]LanguageOption)
	if !ok || len(options) == 0 {
		return nil, false
	}

	buttons := make([]Button, 0, len(options))
	for _, opt := range options {
		buttons = append(buttons, Button{
			Label:  opt.Name,
			Action: "lang:" + opt.Code,
		})
	}

	return Chunk(buttons, 2), true
}

type termsLabels struct {
	eula    string
	privacy string
	proceed string
}

var termsLabelsEN = termsLabels{
	eula:    "User agreement",
	privacy: "Privacy policy",
	proceed: "Continue ➡️",
}

var termsLabelsRU = termsLabels{
	eula:    "Пользовательское соглашение",
	privacy: "Политика конфиденциальности",
	proceed: "Продолжить ➡️",
}

// termsKeyboard renders the accept-terms toggle keyboard reflecting the
// current toggle state from params ("eula", "privacy" booleans).
func termsKeyboard(labels termsLabels) LayoutGenerator {
	return func(params map[string]any) (Layout, bool) {
		eula, okEula := params["eula"].(bool)
		privacy, okPrivacy := params["privacy"].(bool)
		if !okEula || !okPrivacy {
			return nil, false
		}

		return Layout{
			{{Label: checkbox(eula) + " " + labels.eula, Action: "toggle:eula"}},
			{{Label: checkbox(privacy) + " " + labels.privacy, Action: "toggle:privacy"}},
			{{Label: labels.proceed, Action: "proceed"}},
		}, true
	}
}

func checkbox(checked bool) string {
	if checked {
		return "☑"
	}
	return "☐"
}

// numericKeyboard renders a signed numeric range as buttons, one action
// per value ("<prefix><n>"). Used for the UTC offset picker.
func numericKeyboard(params map[string]any) (Layout, bool) {
	from, okFrom := intParam(params, "from")
	to, okTo := intParam(params, "to")
	prefix, okPrefix := params["action_prefix"].(string)
	if !okFrom || !okTo || !okPrefix || from > to {
		return nil, false
	}

	perRow, ok := intParam(params, "per_row")
	if !ok || perRow < 1 {
		perRow = 4
	}

	buttons := make([]Button, 0, to-from+1)
	for n := from; n <= to; n++ {
		buttons = append(buttons, Button{
			Label:  fmt.Sprintf("%+d", n),
			Action: fmt.Sprintf("%s%d", prefix, n),
		})
	}

	return Chunk(buttons, perRow), true
}

func intParam(params map[string]any, key string) (int, bool) {
	switch v := params[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}
