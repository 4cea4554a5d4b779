package state

import (
	"sync"

	"trustclaw/models"
)

const DefaultRecentLimit = 500

// Recent is a bounded buffer of findings. Appends may race with Drain; an
// entry is either in the drained batch or left for the next one, never lost.
// When the buffer is full the oldest entries are discarded.
type Recent struct {
	mu      sync.Mutex
	items   []models.Finding
	limit   int
	dropped int64
}

func NewRecent(limit int) *Recent {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	return &Recent{limit: limit}
}

func (r *Recent) Append(f models.Finding) {
	r.mu.Lock()
	r.appendLocked(f)
	r.mu.Unlock()
}

func (r *Recent) appendLocked(f models.Finding) {
	r.items = append(r.items, f)
	if over := len(r.items) - r.limit; over > 0 {
		r.dropped += int64(over)
		r.items = append([]models.Finding(nil), r.items[over:]...)
	}
}

// Snapshot copies the current contents without clearing them.
func (r *Recent) Snapshot() []models.Finding {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]models.Finding, len(r.items))
	copy(out, r.items)
	return out
}

// Drain returns everything appended before the call and empties the buffer.
func (r *Recent) Drain() []models.Finding {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := r.items
	r.items = nil
	return out
}

func (r *Recent) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}

// Dropped counts findings discarded because the buffer was full.
func (r *Recent) Dropped() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropped
}
