package onboarding

import (
	"context"
	"sync"
	"time"
)

// Session is the full per-user onboarding state. One session exists per
// user at a time; completion or expiry removes it.
type Session struct {
	State   State            `json:"state"`
	Draft   DraftProfile     `json:"draft"`
	Toggles TermsToggleState `json:"toggles"`
	// Document versions captured when the terms were shown, recorded on
	// the committed profile.
	EulaVersion    int       `json:"eula_version"`
	PrivacyVersion int       `json:"privacy_version"`
	StartedAt      time.Time `json:"started_at"`
}

// Store persists sessions between events. Get returns (nil, nil) when no
// live session exists for the user.
type Store interface {
	Get(ctx context.Context, userID int64) (*Session, error)
	Put(ctx context.Context, userID int64, session *Session) error
	Delete(ctx context.Context, userID int64) error
}

type memoryEntry struct {
	session   Session
	expiresAt time.Time
}

// MemoryStore keeps sessions in process memory with a fixed TTL. Used in
// tests and single-instance deployments.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[int64]memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		entries: make(map[int64]memoryEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (s *MemoryStore) Get(_ context.Context, userID int64) (*Session, error) {
	s.mu.RLock()
	entry, ok := s.entries[userID]
	s.mu.RUnlock()

	if !ok {
		return nil, nil
	}
	if s.now().After(entry.expiresAt) {
		s.mu.Lock()
		delete(s.entries, userID)
		s.mu.Unlock()
		return nil, nil
	}

	session := entry.session
	return &session, nil
}

func (s *MemoryStore) Put(_ context.Context, userID int64, session *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[userID] = memoryEntry{
		session:   *session,
		expiresAt: s.now().Add(s.ttl),
	}
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, userID)
	return nil
}
