package service

import (
	"sync"
	"time"

	"github.com/sirosfoundation/relay-panel/internal/domain"
)

type challengeEntry struct {
	challenge domain.Challenge
	seq       uint64
}

// ChallengeStore holds at most one pending challenge per username.
// All operations are safe for concurrent use.
type ChallengeStore struct {
	mu      sync.Mutex
	entries map[string]*challengeEntry
	seq     uint64
}

// NewChallengeStore creates an empty ChallengeStore
func NewChallengeStore() *ChallengeStore {
	return &ChallengeStore{entries: make(map[string]*challengeEntry)}
}

// Put stores ch, replacing any challenge pending for the same username.
// The returned sequence number identifies this write for RemoveIfSame.
func (s *ChallengeStore) Put(ch domain.Challenge) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	s.entries[ch.Username] = &challengeEntry{challenge: ch, seq: s.seq}
	return s.seq
}

// Get returns a copy of the pending challenge for username
func (s *ChallengeStore) Get(username string) (domain.Challenge, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[username]
	if !ok {
		return domain.Challenge{}, false
	}
	return entry.challenge, true
}

// RemoveIfSame deletes the challenge for username only if it is still the
// one written with seq. It reports whether a challenge was removed.
func (s *ChallengeStore) RemoveIfSame(username string, seq uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[username]
	if !ok || entry.seq != seq {
		return false
	}
	delete(s.entries, username)
	return true
}

// Consume checks code against the pending challenge for username.
//
// A matching code deletes the challenge and returns nil. An expired challenge
// is left in place and yields ErrChallengeExpired. A wrong code increments the
// attempt counter and yields ErrChallengeMismatch; when maxAttempts is positive
// and the counter reaches it, the challenge is deleted and ErrChallengeLocked
// is returned instead.
func (s *ChallengeStore) Consume(username, code string, now time.Time, maxAttempts int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[username]
	if !ok {
		return ErrNoChallenge
	}
	ch := &entry.challenge

	if ch.IsExpired(now) {
		return ErrChallengeExpired
	}

	if ch.Code != code {
		ch.Attempts++
		if maxAttempts > 0 && ch.Attempts >= maxAttempts {
			delete(s.entries, username)
			return ErrChallengeLocked
		}
		return ErrChallengeMismatch
	}

	delete(s.entries, username)
	return nil
}

// DeleteExpired removes every challenge expired at now and returns how many were removed
func (s *ChallengeStore) DeleteExpired(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for username, entry := range s.entries {
		if entry.challenge.IsExpired(now) {
			delete(s.entries, username)
			removed++
		}
	}
	return removed
}

// Len returns the number of pending challenges
func (s *ChallengeStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
