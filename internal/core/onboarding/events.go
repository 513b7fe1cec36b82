package onboarding

import "github.com/LexiPalCo/word-service/internal/core/localization"

// EventKind classifies an incoming update. The transport maps platform
// updates onto these three shapes so the state machine never sees
// Telegram types.
type EventKind string

const (
	// EventStart is the user's first contact or an explicit /start.
	EventStart EventKind = "start"
	// EventButton carries an action string from an inline button tap.
	EventButton EventKind = "button_tap"
	// EventText carries free-form text typed by the user.
	EventText EventKind = "text_input"
)

// Event is one user interaction addressed to the onboarding machine.
type Event struct {
	UserID int64
	Kind   EventKind
	// Payload is the action string for EventButton or the raw text for
	// EventText. Empty for EventStart.
	Payload string
	// DisplayName is the platform profile name, used to address the user
	// before they pick one themselves.
	DisplayName string
	// LocaleHint is the platform language code, consulted before the user
	// chooses an interface language.
	LocaleHint string
}

// Render is one outgoing message the transport must deliver.
type Render struct {
	UserID int64
	Text   string
	Layout localization.Layout
	// KeyboardOnly asks the transport to update the keyboard of the last
	// message in place instead of sending a new one.
	KeyboardOnly bool
}
