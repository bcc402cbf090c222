package memory

import (
	"context"
	"sync"
	"time"

	"social-service/internal/token"
)

// RevocationStore keeps revoked ids until their tokens would have expired.
type RevocationStore struct {
	mu      sync.RWMutex
	access  map[string]time.Time
	refresh map[string]time.Time
	now     func() time.Time
}

func NewRevocationStore() *RevocationStore {
	return &RevocationStore{
		access:  make(map[string]time.Time),
		refresh: make(map[string]time.Time),
		now:     time.Now,
	}
}

func (s *RevocationStore) Revoke(_ context.Context, r token.Revocation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r.AccessTokenID != "" {
		s.access[r.AccessTokenID] = r.ExpiresAt
	}
	if r.RefreshTokenID != "" {
		s.refresh[r.RefreshTokenID] = r.ExpiresAt
	}
	return nil
}

func (s *RevocationStore) IsAccessRevoked(_ context.Context, id string) (bool, error) {
	return s.lookup(s.access, id), nil
}

func (s *RevocationStore) IsRefreshRevoked(_ context.Context, id string) (bool, error) {
	return s.lookup(s.refresh, id), nil
}

func (s *RevocationStore) lookup(m map[string]time.Time, id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	exp, ok := m[id]
	return ok && s.now().Before(exp)
}

// PurgeExpired drops entries whose tokens have expired.
func (s *RevocationStore) PurgeExpired(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var n int64
	for _, m := range []map[string]time.Time{s.access, s.refresh} {
		for id, exp := range m {
			if !now.Before(exp) {
				delete(m, id)
				n++
			}
		}
	}
	return n, nil
}

type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]token.Session
}

func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[string]token.Session)}
}

func (s *SessionStore) Bind(_ context.Context, sess token.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.RefreshTokenID] = sess
	return nil
}

func (s *SessionStore) Current(_ context.Context, refreshTokenID string) (*token.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[refreshTokenID]
	if !ok || (!sess.RefreshExpiresAt.IsZero() && time.Now().After(sess.RefreshExpiresAt)) {
		return nil, nil
	}
	return &sess, nil
}
