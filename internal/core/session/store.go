// Package session keeps short-lived cookie credentials keyed by an opaque
// token, so clients can avoid resending a cookie with every request.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultTTL is how long a stored credential stays valid
const DefaultTTL = 10 * time.Minute

type entry struct {
	credential string
	expires    time.Time
}

// Store is an in-memory TTL map from token to credential. Expired entries
// are swept on every access; there is no background goroutine.
type Store struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]entry
	now     func() time.Time
}

// NewStore creates a store. A non-positive ttl uses DefaultTTL.
func NewStore(ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{
		ttl:     ttl,
		entries: make(map[string]entry),
		now:     time.Now,
	}
}

// Put stores a credential and returns its token and expiry
func (s *Store) Put(credential string) (string, time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.sweep(now)

	token := uuid.NewString()
	expires := now.Add(s.ttl)
	s.entries[token] = entry{credential: credential, expires: expires}
	return token, expires
}

// Get returns the credential for token if it has not expired
func (s *Store) Get(token string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sweep(s.now())
	e, ok := s.entries[token]
	if !ok {
		return "", false
	}
	return e.credential, true
}

// Delete removes a token, reporting whether it was present
func (s *Store) Delete(token string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sweep(s.now())
	if _, ok := s.entries[token]; !ok {
		return false
	}
	delete(s.entries, token)
	return true
}

// Len returns the number of live sessions
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sweep(s.now())
	return len(s.entries)
}

// sweep drops expired entries; the caller holds mu
func (s *Store) sweep(now time.Time) {
	for token, e := range s.entries {
		if !now.Before(e.expires) {
			delete(s.entries, token)
		}
	}
}
