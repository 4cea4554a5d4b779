// Package state holds the in-memory state shared by scanners: per-scanner
// de-duplication sets and the recent-results buffer read by the market brief.
// Nothing here survives a restart.
package state

import (
	"sync"
	"time"
)

type seenEntry struct {
	at          time.Time
	fingerprint string
}

// SeenSet remembers when each key was last alerted. A key alerts again once
// the window has elapsed or when its fingerprint changes.
type SeenSet struct {
	mu      sync.Mutex
	window  time.Duration
	entries map[string]seenEntry
}

func NewSeenSet(window time.Duration) *SeenSet {
	return &SeenSet{window: window, entries: make(map[string]seenEntry)}
}

func (s *SeenSet) Window() time.Duration {
	return s.window
}

// ShouldAlert reports whether key is new, expired, or changed since it was
// last marked. It does not mark the key.
func (s *SeenSet) ShouldAlert(key, fingerprint string, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shouldAlertLocked(key, fingerprint, now)
}

func (s *SeenSet) shouldAlertLocked(key, fingerprint string, now time.Time) bool {
	e, ok := s.entries[key]
	if !ok {
		return true
	}
	if s.window > 0 && now.Sub(e.at) >= s.window {
		return true
	}
	return e.fingerprint != fingerprint
}

// Mark records key as alerted at now.
func (s *SeenSet) Mark(key, fingerprint string, now time.Time) {
	s.mu.Lock()
	s.entries[key] = seenEntry{at: now, fingerprint: fingerprint}
	s.mu.Unlock()
}

// Prune drops entries whose window has elapsed and returns how many were removed.
func (s *SeenSet) Prune(now time.Time) int {
	if s.window <= 0 {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for k, e := range s.entries {
		if now.Sub(e.at) >= s.window {
			delete(s.entries, k)
			removed++
		}
	}
	return removed
}

func (s *SeenSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
