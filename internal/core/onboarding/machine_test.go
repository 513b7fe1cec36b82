package onboarding

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LexiPalCo/word-service/internal/core/agreements"
	"github.com/LexiPalCo/word-service/internal/core/languages"
	"github.com/LexiPalCo/word-service/internal/core/localization"
	"github.com/LexiPalCo/word-service/internal/core/users"
)

type fakeAgreements struct {
	eula    *agreements.Document
	privacy *agreements.Document
	err     error
}

func (f *fakeAgreements) GetActiveDocument(_ context.Context, kind agreements.Kind, _ string) (*agreements.Document, error) {
	if f.err != nil {
		return nil, f.err
	}
	if kind == agreements.KindEula {
		return f.eula, nil
	}
	return f.privacy, nil
}

type fakeCommitter struct {
	mu       sync.Mutex
	saved    []users.Profile
	failures int
}

func (f *fakeCommitter) SaveUser(_ context.Context, p users.Profile) (uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failures > 0 {
		f.failures--
		return uuid.Nil, errors.New("database unavailable")
	}

	f.saved = append(f.saved, p)
	return uuid.New(), nil
}

func (f *fakeCommitter) savedProfiles() []users.Profile {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]users.Profile(nil), f.saved...)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testDocuments() *fakeAgreements {
	return &fakeAgreements{
		eula:    &agreements.Document{Kind: agreements.KindEula, URL: "https://example.test/eula", Version: 3, IsActive: true},
		privacy: &agreements.Document{Kind: agreements.KindPrivacy, URL: "https://example.test/privacy", Version: 2, IsActive: true},
	}
}

func newTestMachine(t *testing.T, docs *fakeAgreements, committer *fakeCommitter) (*Machine, *MemoryStore) {
	t.Helper()

	catalog, err := localization.LoadCatalog(localization.EmbeddedLocales(), "en", discardLogger())
	require.NoError(t, err)

	textGens := localization.NewTextGeneratorRegistry()
	layoutGens := localization.NewLayoutGeneratorRegistry()
	localization.RegisterBuiltinGenerators(textGens, layoutGens)
	resolver := localization.NewResolver(catalog, textGens, layoutGens, discardLogger())

	directory := languages.NewDirectory("en",
		[]languages.Language{
			{Code: "en", IsInterface: true},
			{Code: "ru", IsInterface: true},
			{Code: "uk", IsInterface: false},
		},
		[]languages.Translation{
			{SubjectCode: "en", Locale: "en", DisplayName: "English"},
			{SubjectCode: "en", Locale: "ru", DisplayName: "Английский"},
			{SubjectCode: "ru", Locale: "ru", DisplayName: "Русский"},
			{SubjectCode: "ru", Locale: "en", DisplayName: "Russian"},
		},
	)

	store := NewMemoryStore(time.Hour)
	machine := NewMachine(resolver, directory, docs, committer, store, discardLogger())
	return machine, store
}

func startEvent(userID int64) Event {
	return Event{UserID: userID, Kind: EventStart, DisplayName: "Anna", LocaleHint: "en"}
}

func btn(userID int64, action string) Event {
	return Event{UserID: userID, Kind: EventButton, Payload: action, DisplayName: "Anna", LocaleHint: "en"}
}

func txt(userID int64, text string) Event {
	return Event{UserID: userID, Kind: EventText, Payload: text, DisplayName: "Anna", LocaleHint: "en"}
}

// reachTerms walks a fresh user to the terms review step.
func reachTerms(t *testing.T, m *Machine, userID int64) {
	t.Helper()
	ctx := context.Background()

	_, err := m.Handle(ctx, startEvent(userID))
	require.NoError(t, err)
	_, err = m.Handle(ctx, btn(userID, "register"))
	require.NoError(t, err)
	renders, err := m.Handle(ctx, btn(userID, "lang:en"))
	require.NoError(t, err)
	require.NotEmpty(t, renders)
	assert.Contains(t, renders[0].Text, "https://example.test/eula")
}

// reachFinal walks a fresh user to the confirmation step.
func reachFinal(t *testing.T, m *Machine, userID int64) {
	t.Helper()
	ctx := context.Background()

	reachTerms(t, m, userID)
	for _, action := range []string{"toggle:eula", "toggle:privacy", "proceed"} {
		_, err := m.Handle(ctx, btn(userID, action))
		require.NoError(t, err)
	}

	_, err := m.Handle(ctx, txt(userID, "Jöhn_Doe-99"))
	require.NoError(t, err)
	_, err = m.Handle(ctx, btn(userID, "tz:3"))
	require.NoError(t, err)
	_, err = m.Handle(ctx, btn(userID, "time_format:24h"))
	require.NoError(t, err)
	_, err = m.Handle(ctx, btn(userID, "consent:yes"))
	require.NoError(t, err)

	renders, err := m.Handle(ctx, btn(userID, "consent:no"))
	require.NoError(t, err)
	require.NotEmpty(t, renders)
	assert.Contains(t, renders[0].Text, "Jöhn_Doe-99")
	assert.Contains(t, renders[0].Text, "UTC+3")
}

func TestStartSendsWelcomeWithRegisterButton(t *testing.T) {
	m, _ := newTestMachine(t, testDocuments(), &fakeCommitter{})

	renders, err := m.Handle(context.Background(), startEvent(1))
	require.NoError(t, err)
	require.Len(t, renders, 1)

	assert.Contains(t, renders[0].Text, "Anna")
	require.False(t, renders[0].Layout.Empty())
	assert.Equal(t, "register", renders[0].Layout[0][0].Action)
}

func TestFullFlowCommitsProfile(t *testing.T) {
	committer := &fakeCommitter{}
	m, store := newTestMachine(t, testDocuments(), committer)
	ctx := context.Background()

	reachFinal(t, m, 1)

	renders, err := m.Handle(ctx, btn(1, "confirm"))
	require.NoError(t, err)
	require.NotEmpty(t, renders)
	assert.Contains(t, renders[0].Text, "Jöhn_Doe-99")

	profiles := committer.savedProfiles()
	require.Len(t, profiles, 1)
	assert.Equal(t, int64(1), profiles[0].TelegramID)
	assert.Equal(t, "Jöhn_Doe-99", profiles[0].Username)
	assert.Equal(t, "en", profiles[0].LocaleCode)
	assert.Equal(t, "UTC+3", profiles[0].Timezone)
	assert.Equal(t, "24h", profiles[0].TimeFormat)
	assert.True(t, profiles[0].DailyWords)
	assert.False(t, profiles[0].Challenges)
	assert.Equal(t, 3, profiles[0].EulaVersion)
	assert.Equal(t, 2, profiles[0].PrivacyVersion)
	assert.False(t, profiles[0].EulaAcceptedAt.IsZero())
	assert.False(t, profiles[0].PrivacyAcceptedAt.IsZero())

	session, err := store.Get(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, session)
}

func TestToggleUpdatesKeyboardInPlace(t *testing.T) {
	m, store := newTestMachine(t, testDocuments(), &fakeCommitter{})
	ctx := context.Background()

	reachTerms(t, m, 1)

	renders, err := m.Handle(ctx, btn(1, "toggle:eula"))
	require.NoError(t, err)
	require.Len(t, renders, 1)
	assert.True(t, renders[0].KeyboardOnly)
	assert.Contains(t, renders[0].Layout[0][0].Label, "☑")
	assert.Contains(t, renders[0].Layout[1][0].Label, "☐")

	session, err := store.Get(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, session)
	assert.True(t, session.Toggles.Eula)
	assert.False(t, session.Toggles.Privacy)
}

func TestDuplicateToggleProducesNoVisibleChange(t *testing.T) {
	m, store := newTestMachine(t, testDocuments(), &fakeCommitter{})
	ctx := context.Background()

	reachTerms(t, m, 1)

	_, err := m.Handle(ctx, btn(1, "toggle:eula"))
	require.NoError(t, err)

	renders, err := m.Handle(ctx, btn(1, "toggle:eula"))
	require.NoError(t, err)
	assert.Empty(t, renders)

	session, err := store.Get(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, session)
	assert.True(t, session.Toggles.Eula)
}

func TestConcurrentDuplicateTogglesFlipOnce(t *testing.T) {
	m, store := newTestMachine(t, testDocuments(), &fakeCommitter{})
	ctx := context.Background()

	reachTerms(t, m, 1)

	var wg sync.WaitGroup
	results := make([][]Render, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			renders, err := m.Handle(ctx, btn(1, "toggle:eula"))
			assert.NoError(t, err)
			results[i] = renders
		}(i)
	}
	wg.Wait()

	// exactly one of the two events produced a keyboard update
	total := len(results[0]) + len(results[1])
	assert.Equal(t, 1, total)

	session, err := store.Get(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, session)
	assert.True(t, session.Toggles.Eula)
}

func TestProceedRejectedUntilBothAccepted(t *testing.T) {
	m, store := newTestMachine(t, testDocuments(), &fakeCommitter{})
	ctx := context.Background()

	reachTerms(t, m, 1)

	renders, err := m.Handle(ctx, btn(1, "proceed"))
	require.NoError(t, err)
	assert.Empty(t, renders)

	_, err = m.Handle(ctx, btn(1, "toggle:eula"))
	require.NoError(t, err)

	renders, err = m.Handle(ctx, btn(1, "proceed"))
	require.NoError(t, err)
	assert.Empty(t, renders)

	_, err = m.Handle(ctx, btn(1, "toggle:privacy"))
	require.NoError(t, err)

	renders, err = m.Handle(ctx, btn(1, "proceed"))
	require.NoError(t, err)
	require.NotEmpty(t, renders)

	session, err := store.Get(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, session)
	assert.Equal(t, StateUsernameCapture, session.State)
}

func TestInvalidUsernameKeepsState(t *testing.T) {
	m, store := newTestMachine(t, testDocuments(), &fakeCommitter{})
	ctx := context.Background()

	reachTerms(t, m, 1)
	for _, action := range []string{"toggle:eula", "toggle:privacy", "proceed"} {
		_, err := m.Handle(ctx, btn(1, action))
		require.NoError(t, err)
	}

	for _, bad := range []string{"ab", "a\nb", "anna!"} {
		renders, err := m.Handle(ctx, txt(1, bad))
		require.NoError(t, err)
		require.NotEmpty(t, renders)
		assert.Contains(t, renders[0].Text, "can't be used")
	}

	session, err := store.Get(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, session)
	assert.Equal(t, StateUsernameCapture, session.State)
	assert.Empty(t, session.Draft.Username)
}

func TestInvalidTimezoneReprompts(t *testing.T) {
	m, store := newTestMachine(t, testDocuments(), &fakeCommitter{})
	ctx := context.Background()

	reachTerms(t, m, 1)
	for _, action := range []string{"toggle:eula", "toggle:privacy", "proceed"} {
		_, err := m.Handle(ctx, btn(1, action))
		require.NoError(t, err)
	}
	_, err := m.Handle(ctx, txt(1, "Anna"))
	require.NoError(t, err)

	renders, err := m.Handle(ctx, txt(1, "not a zone"))
	require.NoError(t, err)
	require.NotEmpty(t, renders)
	assert.False(t, renders[0].Layout.Empty())

	session, err := store.Get(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, session)
	assert.Equal(t, StateTimezoneCapture, session.State)

	renders, err = m.Handle(ctx, txt(1, "+2"))
	require.NoError(t, err)
	require.NotEmpty(t, renders)

	session, err = store.Get(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, session)
	assert.Equal(t, "UTC+2", session.Draft.Timezone)
}

func TestRestartResetsDraft(t *testing.T) {
	committer := &fakeCommitter{}
	m, store := newTestMachine(t, testDocuments(), committer)
	ctx := context.Background()

	reachFinal(t, m, 1)

	renders, err := m.Handle(ctx, btn(1, "restart"))
	require.NoError(t, err)
	require.NotEmpty(t, renders)
	assert.False(t, renders[0].Layout.Empty())

	session, err := store.Get(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, session)
	assert.Equal(t, StateLanguageSelect, session.State)
	assert.Equal(t, DraftProfile{}, session.Draft)
	assert.Equal(t, TermsToggleState{}, session.Toggles)
	assert.Empty(t, committer.savedProfiles())
}

func TestRestartMidFlowDiscardsDraft(t *testing.T) {
	m, store := newTestMachine(t, testDocuments(), &fakeCommitter{})
	ctx := context.Background()

	reachTerms(t, m, 1)
	for _, action := range []string{"toggle:eula", "toggle:privacy", "proceed"} {
		_, err := m.Handle(ctx, btn(1, action))
		require.NoError(t, err)
	}
	_, err := m.Handle(ctx, txt(1, "Anna"))
	require.NoError(t, err)

	session, err := store.Get(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, session)
	require.Equal(t, StateTimezoneCapture, session.State)
	require.Equal(t, "Anna", session.Draft.Username)

	renders, err := m.Handle(ctx, btn(1, "restart"))
	require.NoError(t, err)
	require.NotEmpty(t, renders)
	assert.False(t, renders[0].Layout.Empty())

	session, err = store.Get(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, session)
	assert.Equal(t, StateLanguageSelect, session.State)
	assert.Equal(t, DraftProfile{}, session.Draft)
	assert.Empty(t, session.Draft.LocaleCode)
	assert.Equal(t, TermsToggleState{}, session.Toggles)
}

func TestProceedRecordsConsentAndClearsToggles(t *testing.T) {
	m, store := newTestMachine(t, testDocuments(), &fakeCommitter{})
	ctx := context.Background()

	reachTerms(t, m, 1)
	for _, action := range []string{"toggle:eula", "toggle:privacy", "proceed"} {
		_, err := m.Handle(ctx, btn(1, action))
		require.NoError(t, err)
	}

	session, err := store.Get(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, session)
	assert.Equal(t, StateUsernameCapture, session.State)
	assert.False(t, session.Draft.EulaAcceptedAt.IsZero())
	assert.False(t, session.Draft.PrivacyAcceptedAt.IsZero())
	assert.Equal(t, TermsToggleState{}, session.Toggles)
}

func TestCommitFailureAllowsRetry(t *testing.T) {
	committer := &fakeCommitter{failures: 1}
	m, store := newTestMachine(t, testDocuments(), committer)
	ctx := context.Background()

	reachFinal(t, m, 1)

	renders, err := m.Handle(ctx, btn(1, "confirm"))
	require.NoError(t, err)
	require.NotEmpty(t, renders)
	assert.Contains(t, renders[0].Text, "Confirm")

	session, err := store.Get(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, session)
	assert.Equal(t, StateFinalConfirmation, session.State)

	renders, err = m.Handle(ctx, btn(1, "confirm"))
	require.NoError(t, err)
	require.NotEmpty(t, renders)
	require.Len(t, committer.savedProfiles(), 1)

	session, err = store.Get(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, session)
}

func TestTermsUnavailableKeepsLanguageStep(t *testing.T) {
	docs := testDocuments()
	docs.privacy = nil
	m, store := newTestMachine(t, docs, &fakeCommitter{})
	ctx := context.Background()

	_, err := m.Handle(ctx, startEvent(1))
	require.NoError(t, err)
	_, err = m.Handle(ctx, btn(1, "register"))
	require.NoError(t, err)

	renders, err := m.Handle(ctx, btn(1, "lang:en"))
	require.NoError(t, err)
	require.NotEmpty(t, renders)
	assert.Contains(t, renders[0].Text, "unavailable")

	session, err := store.Get(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, session)
	assert.Equal(t, StateLanguageSelect, session.State)
}

func TestNonInterfaceLanguageRejected(t *testing.T) {
	m, store := newTestMachine(t, testDocuments(), &fakeCommitter{})
	ctx := context.Background()

	_, err := m.Handle(ctx, startEvent(1))
	require.NoError(t, err)
	_, err = m.Handle(ctx, btn(1, "register"))
	require.NoError(t, err)

	_, err = m.Handle(ctx, btn(1, "lang:uk"))
	require.NoError(t, err)

	session, err := store.Get(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, session)
	assert.Equal(t, StateLanguageSelect, session.State)
}

func TestEventWithoutSessionStartsFlow(t *testing.T) {
	m, store := newTestMachine(t, testDocuments(), &fakeCommitter{})
	ctx := context.Background()

	renders, err := m.Handle(ctx, txt(1, "hello"))
	require.NoError(t, err)
	require.NotEmpty(t, renders)
	require.False(t, renders[0].Layout.Empty())
	assert.Equal(t, "register", renders[0].Layout[0][0].Action)

	session, err := store.Get(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, session)
	assert.Equal(t, StateNew, session.State)
}

func TestStartMidFlowRepromptsWithoutLosingProgress(t *testing.T) {
	m, store := newTestMachine(t, testDocuments(), &fakeCommitter{})
	ctx := context.Background()

	reachTerms(t, m, 1)
	_, err := m.Handle(ctx, btn(1, "toggle:eula"))
	require.NoError(t, err)

	renders, err := m.Handle(ctx, startEvent(1))
	require.NoError(t, err)
	require.NotEmpty(t, renders)
	assert.Contains(t, renders[0].Text, "https://example.test/eula")
	assert.Contains(t, renders[0].Layout[0][0].Label, "☑")

	session, err := store.Get(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, session)
	assert.True(t, session.Toggles.Eula)
}

func TestRussianLocaleFlow(t *testing.T) {
	m, _ := newTestMachine(t, testDocuments(), &fakeCommitter{})
	ctx := context.Background()

	ev := startEvent(1)
	ev.LocaleHint = "ru-RU"
	_, err := m.Handle(ctx, ev)
	require.NoError(t, err)

	reg := btn(1, "register")
	reg.LocaleHint = "ru-RU"
	_, err = m.Handle(ctx, reg)
	require.NoError(t, err)

	lang := btn(1, "lang:ru")
	lang.LocaleHint = "ru-RU"
	renders, err := m.Handle(ctx, lang)
	require.NoError(t, err)
	require.NotEmpty(t, renders)

	// terms text comes from the ru tree once the language is chosen
	assert.Contains(t, renders[0].Text, "документ")
}

func TestSessionExpiryRestartsFlow(t *testing.T) {
	m, store := newTestMachine(t, testDocuments(), &fakeCommitter{})
	ctx := context.Background()

	reachTerms(t, m, 1)

	now := time.Now()
	store.now = func() time.Time { return now.Add(2 * time.Hour) }

	renders, err := m.Handle(ctx, btn(1, "toggle:eula"))
	require.NoError(t, err)
	require.NotEmpty(t, renders)
	assert.Equal(t, "register", renders[0].Layout[0][0].Action)
}
