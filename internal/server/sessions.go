// sessions.go - In-memory session store with lazy expiration.
//
// Sessions are process-local by design: a restart invalidates every
// outstanding token. Expired records are evicted on the next lookup,
// with an optional background sweep to bound memory under churn.
package server

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log"
	"sync"
	"time"
)

// Session is the record held for one issued token.
type Session struct {
	Username  string
	ExpiresAt time.Time
}

// SessionStore maps opaque tokens to session records. All operations are
// serialized by a single mutex; eviction during Validate is a write and
// must not race concurrent Create/Revoke on the same token.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]Session
	ttl      time.Duration
	now      func() time.Time // overridable in tests
}

// NewSessionStore creates a store issuing sessions with the given TTL.
func NewSessionStore(ttl time.Duration) *SessionStore {
	if ttl <= 0 {
		ttl = 8 * time.Hour
	}
	return &SessionStore{
		sessions: make(map[string]Session),
		ttl:      ttl,
		now:      time.Now,
	}
}

// newToken returns 32 bytes from crypto/rand, hex-encoded (64 chars).
func newToken() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand never fails on supported platforms; if it does,
		// issuing a guessable token would be worse than crashing.
		panic("sessions: crypto/rand unavailable: " + err.Error())
	}
	return hex.EncodeToString(b)
}

// Create issues a new unique token for username and returns it together
// with its absolute expiry.
func (s *SessionStore) Create(username string) (string, time.Time) {
	token := newToken()
	expiresAt := s.now().Add(s.ttl)

	s.mu.Lock()
	s.sessions[token] = Session{Username: username, ExpiresAt: expiresAt}
	s.mu.Unlock()

	return token, expiresAt
}

// Validate looks up token. An expired record is deleted as a side effect,
// so a second call behaves exactly like an unknown token.
func (s *SessionStore) Validate(token string) (Session, bool) {
	if token == "" {
		return Session{}, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[token]
	if !ok {
		return Session{}, false
	}
	if s.now().After(sess.ExpiresAt) {
		delete(s.sessions, token)
		return Session{}, false
	}
	return sess, true
}

// Revoke removes token if present. Unknown or already-expired tokens are
// a no-op, so logout is always idempotent.
func (s *SessionStore) Revoke(token string) {
	if token == "" {
		return
	}
	s.mu.Lock()
	delete(s.sessions, token)
	s.mu.Unlock()
}

// Len returns the number of records currently held, expired or not.
func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Sweep removes every expired record and returns how many were evicted.
// Purely a memory bound: observable semantics are identical with or
// without sweeping because Validate evicts lazily anyway.
func (s *SessionStore) Sweep() int {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	evicted := 0
	for token, sess := range s.sessions {
		if now.After(sess.ExpiresAt) {
			delete(s.sessions, token)
			evicted++
		}
	}
	return evicted
}

// StartJanitor runs Sweep every interval until ctx is cancelled.
func (s *SessionStore) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}

	log.Printf("service=sessions msg=%q interval=%s", "janitor_started", interval)

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				log.Printf("service=sessions msg=%q", "janitor_stopped")
				return
			case <-ticker.C:
				if n := s.Sweep(); n > 0 {
					log.Printf("service=sessions msg=%q evicted=%d", "sweep", n)
				}
				GetMetrics().SetActiveSessions(int64(s.Len()))
			}
		}
	}()
}
