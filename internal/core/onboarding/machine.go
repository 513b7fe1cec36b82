package onboarding

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	api "go.opentelemetry.io/otel/metric"

	"github.com/LexiPalCo/word-service/internal/core/agreements"
	"github.com/LexiPalCo/word-service/internal/core/languages"
	"github.com/LexiPalCo/word-service/internal/core/localization"
	"github.com/LexiPalCo/word-service/internal/core/users"
	"github.com/LexiPalCo/word-service/pkg/telemetry"
)

var tracer = otel.Tracer("onboarding-machine")

// AgreementSource provides the active legal documents shown during the
// terms step.
type AgreementSource interface {
	GetActiveDocument(ctx context.Context, kind agreements.Kind, locale string) (*agreements.Document, error)
}

// Committer persists a finished profile. The machine calls it exactly
// once per successful onboarding.
type Committer interface {
	SaveUser(ctx context.Context, p users.Profile) (uuid.UUID, error)
}

// Machine drives the per-user onboarding flow. Events for the same user
// are serialized on a per-user lock; events for different users run
// concurrently.
type Machine struct {
	resolver   *localization.Resolver
	directory  *languages.Directory
	agreements AgreementSource
	committer  Committer
	store      Store
	logger     *slog.Logger

	mu        sync.Mutex
	userLocks map[int64]*sync.Mutex
}

func NewMachine(
	resolver *localization.Resolver,
	directory *languages.Directory,
	agreementSource AgreementSource,
	committer Committer,
	store Store,
	logger *slog.Logger,
) *Machine {
	return &Machine{
		resolver:   resolver,
		directory:  directory,
		agreements: agreementSource,
		committer:  committer,
		store:      store,
		logger:     logger.With("service", "onboarding"),
		userLocks:  make(map[int64]*sync.Mutex),
	}
}

func (m *Machine) lockFor(userID int64) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()

	lock, ok := m.userLocks[userID]
	if !ok {
		lock = &sync.Mutex{}
		m.userLocks[userID] = lock
	}
	return lock
}

// Handle processes one event and returns the messages to deliver. A
// handler panic is contained here and degrades to a generic error
// message instead of taking the update loop down.
func (m *Machine) Handle(ctx context.Context, ev Event) (renders []Render, err error) {
	ctx, span := tracer.Start(ctx, "onboarding.Handle")
	defer span.End()

	lock := m.lockFor(ev.UserID)
	lock.Lock()
	defer lock.Unlock()

	defer func() {
		if rec := recover(); rec != nil {
			m.logger.Error("Onboarding handler panicked", "user_id", ev.UserID, "panic", rec)
			count(ctx, telemetry.ApplicationErrorsTotal, attribute.String("component", "onboarding"))
			renders = []Render{m.message(ev, "messages.common.error_generic", nil)}
			err = fmt.Errorf("onboarding handler panic: %v", rec)
		}
	}()

	session, err := m.store.Get(ctx, ev.UserID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	if session == nil {
		return m.begin(ctx, ev)
	}
	if ev.Kind == EventStart {
		// /start mid-flow re-issues the current prompt without losing
		// progress
		return m.prompt(ctx, session, ev)
	}
	if ev.Kind == EventButton && ev.Payload == "restart" {
		// available from every state, not just the confirmation keyboard
		return m.restart(ctx, ev)
	}

	switch session.State {
	case StateNew:
		return m.handleNew(ctx, session, ev)
	case StateLanguageSelect:
		return m.handleLanguageSelect(ctx, session, ev)
	case StateTermsReview:
		return m.handleTermsReview(ctx, session, ev)
	case StateUsernameCapture:
		return m.handleUsernameCapture(ctx, session, ev)
	case StateTimezoneCapture:
		return m.handleTimezoneCapture(ctx, session, ev)
	case StateTimeFormatSelect:
		return m.handleTimeFormatSelect(ctx, session, ev)
	case StateDailyWordsConsent:
		return m.handleConsent(ctx, session, ev, true)
	case StateChallengesConsent:
		return m.handleConsent(ctx, session, ev, false)
	case StateFinalConfirmation:
		return m.handleFinalConfirmation(ctx, session, ev)
	default:
		m.logger.Warn("Session in unknown state, restarting", "user_id", ev.UserID, "state", session.State)
		if err := m.store.Delete(ctx, ev.UserID); err != nil {
			return nil, err
		}
		return m.begin(ctx, ev)
	}
}

// begin creates a fresh session and sends the welcome prompt. Any event
// without a live session lands here, so an expired session quietly
// restarts the flow.
func (m *Machine) begin(ctx context.Context, ev Event) ([]Render, error) {
	session := &Session{State: StateNew, StartedAt: time.Now()}
	if err := m.store.Put(ctx, ev.UserID, session); err != nil {
		return nil, err
	}

	count(ctx, telemetry.OnboardingSessionsStarted)
	return m.welcome(session, ev), nil
}

func (m *Machine) welcome(session *Session, ev Event) []Render {
	locale := m.locale(session, ev)

	key, params := "generate_welcome_message", map[string]any{"name": ev.DisplayName}
	if ev.DisplayName == "" {
		key, params = "messages.registration.start", nil
	}

	return []Render{{
		UserID: ev.UserID,
		Text:   m.text(key, locale, params),
		Layout: m.resolver.Layout("keyboards.registration.start", locale, nil),
	}}
}

func (m *Machine) handleNew(ctx context.Context, session *Session, ev Event) ([]Render, error) {
	if ev.Kind == EventButton && ev.Payload == "register" {
		session.State = StateLanguageSelect
		if err := m.store.Put(ctx, ev.UserID, session); err != nil {
			return nil, err
		}
		return m.languagePrompt(session, ev), nil
	}

	return []Render{m.message(ev, "messages.common.unknown_action", nil)}, nil
}

func (m *Machine) languagePrompt(session *Session, ev Event) []Render {
	locale := m.locale(session, ev)
	options := m.directory.InterfaceLanguages(locale)

	langs := make([]localization.LanguageOption, 0, len(options))
	for _, opt := range options {
		langs = append(langs, localization.LanguageOption{Code: opt.Code, Name: opt.Name})
	}

	return []Render{{
		UserID: ev.UserID,
		Text:   m.text("messages.registration.language_select", locale, nil),
		Layout: m.resolver.Layout("generate_language_selection_keyboard", locale, map[string]any{"languages": langs}),
	}}
}

func (m *Machine) handleLanguageSelect(ctx context.Context, session *Session, ev Event) ([]Render, error) {
	code, ok := actionSuffix(ev, "lang:")
	if !ok {
		return []Render{m.message(ev, "messages.common.unknown_action", nil)}, nil
	}
	if !m.directory.Has(code) || !m.directory.IsInterface(code) {
		return []Render{m.message(ev, "messages.common.unknown_action", nil)}, nil
	}

	session.Draft = session.Draft.WithLocale(code)

	docs, err := m.activeDocuments(ctx, code)
	if err != nil {
		count(ctx, telemetry.DatabaseErrorsTotal, attribute.String("operation", "get_active_document"))
		return nil, err
	}
	eula, privacy := docs[agreements.KindEula], docs[agreements.KindPrivacy]
	if eula == nil || privacy == nil {
		// stay in language selection so the next tap retries the lookup
		if err := m.store.Put(ctx, ev.UserID, session); err != nil {
			return nil, err
		}
		return []Render{m.stateMessage(session, ev, "messages.registration.terms_unavailable", nil)}, nil
	}

	session.State = StateTermsReview
	session.Toggles = TermsToggleState{}
	session.EulaVersion = eula.Version
	session.PrivacyVersion = privacy.Version
	if err := m.store.Put(ctx, ev.UserID, session); err != nil {
		return nil, err
	}

	locale := m.locale(session, ev)
	return []Render{{
		UserID: ev.UserID,
		Text: m.text("messages.registration.terms", locale, map[string]any{
			"eula_url":    eula.URL,
			"privacy_url": privacy.URL,
		}),
		Layout: m.termsKeyboard(session, ev),
	}}, nil
}

// restart discards the draft and toggle state atomically and begins the
// flow again at language selection.
func (m *Machine) restart(ctx context.Context, ev Event) ([]Render, error) {
	session := &Session{State: StateLanguageSelect, StartedAt: time.Now()}
	if err := m.store.Put(ctx, ev.UserID, session); err != nil {
		return nil, err
	}

	count(ctx, telemetry.OnboardingSessionsRestarted)
	m.logger.Info("Onboarding restarted", "user_id", ev.UserID)
	return m.languagePrompt(session, ev), nil
}

// activeDocuments fetches the active version of every required document.
// A missing document comes back as a nil map entry.
func (m *Machine) activeDocuments(ctx context.Context, locale string) (map[agreements.Kind]*agreements.Document, error) {
	docs := make(map[agreements.Kind]*agreements.Document, len(agreements.Kinds))
	for _, kind := range agreements.Kinds {
		doc, err := m.agreements.GetActiveDocument(ctx, kind, locale)
		if err != nil {
			return nil, err
		}
		docs[kind] = doc
	}
	return docs, nil
}

func (m *Machine) termsKeyboard(session *Session, ev Event) localization.Layout {
	return m.resolver.Layout("generate_terms_keyboard", m.locale(session, ev), map[string]any{
		"eula":    session.Toggles.Eula,
		"privacy": session.Toggles.Privacy,
	})
}

func (m *Machine) handleTermsReview(ctx context.Context, session *Session, ev Event) ([]Render, error) {
	if kindName, ok := actionSuffix(ev, "toggle:"); ok {
		kind := agreements.Kind(kindName)
		toggles, changed := session.Toggles.Accept(kind)
		if !changed {
			count(ctx, telemetry.ToggleAnomaliesTotal, attribute.String("document", kindName))
			m.logger.Debug("Duplicate terms toggle", "user_id", ev.UserID, "document", kindName)
			return nil, nil
		}

		session.Toggles = toggles
		if err := m.store.Put(ctx, ev.UserID, session); err != nil {
			return nil, err
		}
		return []Render{{
			UserID:       ev.UserID,
			Layout:       m.termsKeyboard(session, ev),
			KeyboardOnly: true,
		}}, nil
	}

	if ev.Kind == EventButton && ev.Payload == "proceed" {
		if !session.Toggles.Complete() {
			count(ctx, telemetry.InvalidProceedAttemptsTotal)
			m.logger.Debug("Proceed before full acceptance", "user_id", ev.UserID)
			return nil, nil
		}

		session.State = StateUsernameCapture
		session.Draft = session.Draft.WithConsentAt(time.Now())
		session.Toggles = TermsToggleState{}
		if err := m.store.Put(ctx, ev.UserID, session); err != nil {
			return nil, err
		}
		return []Render{m.stateMessage(session, ev, "messages.registration.username_request", nil)}, nil
	}

	return []Render{m.message(ev, "messages.common.unknown_action", nil)}, nil
}

func (m *Machine) handleUsernameCapture(ctx context.Context, session *Session, ev Event) ([]Render, error) {
	if ev.Kind != EventText {
		return []Render{m.message(ev, "messages.common.unknown_action", nil)}, nil
	}

	name, ok := ValidateUsername(ev.Payload)
	if !ok {
		count(ctx, telemetry.ValidationFailuresTotal, attribute.String("field", "username"))
		return []Render{m.stateMessage(session, ev, "messages.registration.username_invalid", nil)}, nil
	}

	session.Draft = session.Draft.WithUsername(name)
	session.State = StateTimezoneCapture
	if err := m.store.Put(ctx, ev.UserID, session); err != nil {
		return nil, err
	}

	return m.timezonePrompt(session, ev), nil
}

func (m *Machine) timezonePrompt(session *Session, ev Event) []Render {
	locale := m.locale(session, ev)
	return []Render{{
		UserID: ev.UserID,
		Text:   m.text("messages.registration.timezone_request", locale, nil),
		Layout: m.resolver.Layout("generate_numeric_keyboard", locale, map[string]any{
			"from":          -12,
			"to":            14,
			"action_prefix": "tz:",
			"per_row":       6,
		}),
	}}
}

func (m *Machine) handleTimezoneCapture(ctx context.Context, session *Session, ev Event) ([]Render, error) {
	var tz string
	var valid bool

	if raw, ok := actionSuffix(ev, "tz:"); ok {
		if offset, err := strconv.Atoi(raw); err == nil && offset >= minUTCOffset && offset <= maxUTCOffset {
			tz, valid = FormatUTCOffset(offset), true
		}
	} else if ev.Kind == EventText {
		tz, valid = ValidateTimezone(ev.Payload)
	}

	if !valid {
		count(ctx, telemetry.ValidationFailuresTotal, attribute.String("field", "timezone"))
		renders := m.timezonePrompt(session, ev)
		renders[0].Text = m.text("messages.registration.timezone_invalid", m.locale(session, ev), nil)
		return renders, nil
	}

	session.Draft = session.Draft.WithTimezone(tz)
	session.State = StateTimeFormatSelect
	if err := m.store.Put(ctx, ev.UserID, session); err != nil {
		return nil, err
	}

	return []Render{m.stateKeyboardMessage(session, ev, "messages.registration.time_format_request", "keyboards.registration.time_format")}, nil
}

func (m *Machine) handleTimeFormatSelect(ctx context.Context, session *Session, ev Event) ([]Render, error) {
	format, ok := actionSuffix(ev, "time_format:")
	if !ok || (format != "24h" && format != "12h") {
		count(ctx, telemetry.ValidationFailuresTotal, attribute.String("field", "time_format"))
		return []Render{m.stateKeyboardMessage(session, ev, "messages.registration.time_format_invalid", "keyboards.registration.time_format")}, nil
	}

	session.Draft = session.Draft.WithTimeFormat(format)
	session.State = StateDailyWordsConsent
	if err := m.store.Put(ctx, ev.UserID, session); err != nil {
		return nil, err
	}

	return []Render{m.stateKeyboardMessage(session, ev, "messages.registration.daily_words_request", "keyboards.registration.consent")}, nil
}

// handleConsent covers both yes/no questions. dailyWords selects which
// field the answer lands in.
func (m *Machine) handleConsent(ctx context.Context, session *Session, ev Event, dailyWords bool) ([]Render, error) {
	answer, ok := actionSuffix(ev, "consent:")
	if !ok || (answer != "yes" && answer != "no") {
		return []Render{m.stateKeyboardMessage(session, ev, "messages.registration.consent_invalid", "keyboards.registration.consent")}, nil
	}

	enabled := answer == "yes"
	if dailyWords {
		session.Draft = session.Draft.WithDailyWords(enabled)
		session.State = StateChallengesConsent
	} else {
		session.Draft = session.Draft.WithChallenges(enabled)
		session.State = StateFinalConfirmation
	}
	if err := m.store.Put(ctx, ev.UserID, session); err != nil {
		return nil, err
	}

	if dailyWords {
		return []Render{m.stateKeyboardMessage(session, ev, "messages.registration.challenges_request", "keyboards.registration.consent")}, nil
	}
	return m.confirmationPrompt(session, ev), nil
}

func (m *Machine) confirmationPrompt(session *Session, ev Event) []Render {
	locale := m.locale(session, ev)
	draft := session.Draft

	return []Render{{
		UserID: ev.UserID,
		Text: m.text("messages.registration.final_confirmation", locale, map[string]any{
			"name":        draft.Username,
			"language":    m.directory.NameOf(draft.LocaleCode, locale),
			"timezone":    draft.Timezone,
			"time_format": draft.TimeFormat,
			"daily_words": consentMark(draft.DailyWords),
			"challenges":  consentMark(draft.Challenges),
		}),
		Layout: m.resolver.Layout("keyboards.registration.final", locale, nil),
	}}
}

func (m *Machine) handleFinalConfirmation(ctx context.Context, session *Session, ev Event) ([]Render, error) {
	if ev.Kind != EventButton || ev.Payload != "confirm" {
		return []Render{m.message(ev, "messages.common.unknown_action", nil)}, nil
	}

	profile := users.Profile{
		TelegramID:        ev.UserID,
		Username:          session.Draft.Username,
		LocaleCode:        session.Draft.LocaleCode,
		Timezone:          session.Draft.Timezone,
		TimeFormat:        session.Draft.TimeFormat,
		DailyWords:        session.Draft.DailyWords,
		Challenges:        session.Draft.Challenges,
		EulaVersion:       session.EulaVersion,
		PrivacyVersion:    session.PrivacyVersion,
		EulaAcceptedAt:    session.Draft.EulaAcceptedAt,
		PrivacyAcceptedAt: session.Draft.PrivacyAcceptedAt,
	}

	if _, err := m.committer.SaveUser(ctx, profile); err != nil {
		count(ctx, telemetry.CommitFailuresTotal)
		m.logger.Error("Profile commit failed", "user_id", ev.UserID, "error", err)
		return []Render{{
			UserID: ev.UserID,
			Text:   m.text("messages.registration.commit_failed", m.locale(session, ev), nil),
			Layout: m.resolver.Layout("keyboards.registration.final", m.locale(session, ev), nil),
		}}, nil
	}

	if err := m.store.Delete(ctx, ev.UserID); err != nil {
		return nil, err
	}
	count(ctx, telemetry.OnboardingSessionsCompleted)
	m.logger.Info("Onboarding complete", "user_id", ev.UserID)
	return []Render{m.stateMessage(session, ev, "messages.registration.complete",
		map[string]any{"name": session.Draft.Username})}, nil
}

// prompt re-renders the question for the session's current state.
func (m *Machine) prompt(ctx context.Context, session *Session, ev Event) ([]Render, error) {
	switch session.State {
	case StateNew:
		return m.welcome(session, ev), nil
	case StateLanguageSelect:
		return m.languagePrompt(session, ev), nil
	case StateTermsReview:
		docs, err := m.activeDocuments(ctx, m.locale(session, ev))
		if err != nil {
			return nil, err
		}
		eula, privacy := docs[agreements.KindEula], docs[agreements.KindPrivacy]
		if eula == nil || privacy == nil {
			return []Render{m.message(ev, "messages.registration.terms_unavailable", nil)}, nil
		}
		locale := m.locale(session, ev)
		return []Render{{
			UserID: ev.UserID,
			Text: m.text("messages.registration.terms", locale, map[string]any{
				"eula_url":    eula.URL,
				"privacy_url": privacy.URL,
			}),
			Layout: m.termsKeyboard(session, ev),
		}}, nil
	case StateUsernameCapture:
		return []Render{m.stateMessage(session, ev, "messages.registration.username_request", nil)}, nil
	case StateTimezoneCapture:
		return m.timezonePrompt(session, ev), nil
	case StateTimeFormatSelect:
		return []Render{m.stateKeyboardMessage(session, ev, "messages.registration.time_format_request", "keyboards.registration.time_format")}, nil
	case StateDailyWordsConsent:
		return []Render{m.stateKeyboardMessage(session, ev, "messages.registration.daily_words_request", "keyboards.registration.consent")}, nil
	case StateChallengesConsent:
		return []Render{m.stateKeyboardMessage(session, ev, "messages.registration.challenges_request", "keyboards.registration.consent")}, nil
	case StateFinalConfirmation:
		return m.confirmationPrompt(session, ev), nil
	default:
		return m.welcome(session, ev), nil
	}
}

// locale picks the rendering locale: the chosen interface language once
// it exists, the platform hint before that.
func (m *Machine) locale(session *Session, ev Event) string {
	if session != nil && session.Draft.LocaleCode != "" {
		return session.Draft.LocaleCode
	}
	return localization.NormalizeLocale(ev.LocaleHint)
}

// text resolves a message, degrading a formatting error to the generic
// error text. Param mismatches are machine bugs, not user errors.
func (m *Machine) text(key, locale string, params map[string]any) string {
	out, err := m.resolver.Text(key, locale, params)
	if err != nil {
		m.logger.Error("Text resolution failed", "key", key, "locale", locale, "error", err)
		fallback, _ := m.resolver.Text("messages.common.error_generic", locale, nil)
		return fallback
	}
	return out
}

func (m *Machine) message(ev Event, key string, params map[string]any) Render {
	locale := localization.NormalizeLocale(ev.LocaleHint)
	return Render{UserID: ev.UserID, Text: m.text(key, locale, params)}
}

func (m *Machine) stateMessage(session *Session, ev Event, key string, params map[string]any) Render {
	return Render{UserID: ev.UserID, Text: m.text(key, m.locale(session, ev), params)}
}

func (m *Machine) stateKeyboardMessage(session *Session, ev Event, textKey, layoutKey string) Render {
	locale := m.locale(session, ev)
	return Render{
		UserID: ev.UserID,
		Text:   m.text(textKey, locale, nil),
		Layout: m.resolver.Layout(layoutKey, locale, nil),
	}
}

func actionSuffix(ev Event, prefix string) (string, bool) {
	if ev.Kind != EventButton || !strings.HasPrefix(ev.Payload, prefix) {
		return "", false
	}
	return strings.TrimPrefix(ev.Payload, prefix), true
}

func consentMark(enabled bool) string {
	if enabled {
		return "✅"
	}
	return "❌"
}

func count(ctx context.Context, counter api.Int64Counter, attrs ...attribute.KeyValue) {
	if counter == nil {
		return
	}
	counter.Add(ctx, 1, api.WithAttributes(attrs...))
}
