package onboarding

// State is the current step of a user's onboarding session.
type State string

const (
	// StateNew means the welcome prompt was sent and the user has not
	// tapped Register yet.
	StateNew               State = "new"
	StateLanguageSelect    State = "language_select"
	StateTermsReview       State = "terms_review"
	StateUsernameCapture   State = "username_capture"
	StateTimezoneCapture   State = "timezone_capture"
	StateTimeFormatSelect  State = "time_format_select"
	StateDailyWordsConsent State = "daily_words_consent"
	StateChallengesConsent State = "challenges_consent"
	StateFinalConfirmation State = "final_confirmation"
)
