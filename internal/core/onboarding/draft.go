package onboarding

import (
	"time"

	"github.com/LexiPalCo/word-service/internal/core/agreements"
)

// DraftProfile accumulates the answers given so far. Values are only
// ever replaced through the With methods, so a session snapshot handed
// out to a caller never mutates under it.
type DraftProfile struct {
	LocaleCode        string    `json:"locale_code"`
	Username          string    `json:"username"`
	Timezone          string    `json:"timezone"`
	TimeFormat        string    `json:"time_format"`
	DailyWords        bool      `json:"daily_words"`
	Challenges        bool      `json:"challenges"`
	EulaAcceptedAt    time.Time `json:"eula_accepted_at"`
	PrivacyAcceptedAt time.Time `json:"privacy_accepted_at"`
}

func (d DraftProfile) WithLocale(code string) DraftProfile {
	d.LocaleCode = code
	return d
}

func (d DraftProfile) WithUsername(name string) DraftProfile {
	d.Username = name
	return d
}

func (d DraftProfile) WithTimezone(tz string) DraftProfile {
	d.Timezone = tz
	return d
}

func (d DraftProfile) WithTimeFormat(format string) DraftProfile {
	d.TimeFormat = format
	return d
}

func (d DraftProfile) WithDailyWords(enabled bool) DraftProfile {
	d.DailyWords = enabled
	return d
}

func (d DraftProfile) WithChallenges(enabled bool) DraftProfile {
	d.Challenges = enabled
	return d
}

// WithConsentAt records when the user confirmed acceptance of both
// required documents.
func (d DraftProfile) WithConsentAt(at time.Time) DraftProfile {
	d.EulaAcceptedAt = at
	d.PrivacyAcceptedAt = at
	return d
}

// TermsToggleState tracks which legal documents the user has accepted.
// Acceptance is one-way; there is no un-accept during review.
type TermsToggleState struct {
	Eula    bool `json:"eula"`
	Privacy bool `json:"privacy"`
}

// Accept marks one document accepted. The second return value is false
// when the document was already accepted, which marks the event as a
// duplicate.
func (t TermsToggleState) Accept(kind agreements.Kind) (TermsToggleState, bool) {
	switch kind {
	case agreements.KindEula:
		if t.Eula {
			return t, false
		}
		t.Eula = true
	case agreements.KindPrivacy:
		if t.Privacy {
			return t, false
		}
		t.Privacy = true
	default:
		return t, false
	}
	return t, true
}

// Complete reports whether every required document is accepted.
func (t TermsToggleState) Complete() bool {
	return t.Eula && t.Privacy
}
