package state

import (
	"time"

	"trustclaw/models"
)

// Record marks key as seen and, when finding is non-nil, appends it to
// recent. Both locks are held together so a concurrent Drain or
// ShouldAlert never observes one half without the other. Lock order is
// seen then recent.
func Record(seen *SeenSet, recent *Recent, key, fingerprint string, finding *models.Finding, now time.Time) {
	seen.mu.Lock()
	defer seen.mu.Unlock()

	if finding != nil && recent != nil {
		recent.mu.Lock()
		defer recent.mu.Unlock()
		recent.appendLocked(*finding)
	}
	seen.entries[key] = seenEntry{at: now, fingerprint: fingerprint}
}

// Claim is a check-and-mark in one step. It returns false when key is
// still within its window with the same fingerprint.
func Claim(seen *SeenSet, key, fingerprint string, now time.Time) bool {
	seen.mu.Lock()
	defer seen.mu.Unlock()

	if !seen.shouldAlertLocked(key, fingerprint, now) {
		return false
	}
	seen.entries[key] = seenEntry{at: now, fingerprint: fingerprint}
	return true
}
