package state

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trustclaw/models"
)

var t0 = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

func TestSeenSetWindow(t *testing.T) {
	s := NewSeenSet(time.Hour)

	assert.True(t, s.ShouldAlert("mint", "", t0))
	s.Mark("mint", "", t0)
	assert.False(t, s.ShouldAlert("mint", "", t0.Add(59*time.Minute)))
	assert.True(t, s.ShouldAlert("mint", "", t0.Add(time.Hour)), "expired entries alert again")
	assert.True(t, s.ShouldAlert("mint", "up:100", t0.Add(time.Minute)), "changed fingerprint alerts again")
	assert.Equal(t, 1, s.Len())
}

func TestSeenSetPrune(t *testing.T) {
	s := NewSeenSet(time.Hour)
	s.Mark("a", "", t0)
	s.Mark("b", "", t0.Add(30*time.Minute))

	assert.Equal(t, 1, s.Prune(t0.Add(time.Hour)))
	assert.Equal(t, 1, s.Len())
	assert.False(t, s.ShouldAlert("b", "", t0.Add(time.Hour)))
}

func TestClaim(t *testing.T) {
	s := NewSeenSet(time.Hour)
	require.True(t, Claim(s, "sig", "", t0))
	require.False(t, Claim(s, "sig", "", t0.Add(time.Minute)))
	require.True(t, Claim(s, "sig", "", t0.Add(2*time.Hour)))
}

func TestRecentBounded(t *testing.T) {
	r := NewRecent(3)
	for i := 0; i < 5; i++ {
		r.Append(models.Finding{Key: fmt.Sprint(i)})
	}
	snap := r.Snapshot()
	require.Len(t, snap, 3)
	assert.Equal(t, "2", snap[0].Key)
	assert.Equal(t, int64(2), r.Dropped())

	drained := r.Drain()
	assert.Len(t, drained, 3)
	assert.Equal(t, 0, r.Len())
	assert.Empty(t, r.Drain())
}

func TestRecordAppendsAndMarks(t *testing.T) {
	s := NewSeenSet(time.Hour)
	r := NewRecent(10)

	Record(s, r, "mint", "", &models.Finding{Key: "mint", Kind: models.FindingToken}, t0)
	Record(s, r, "other", "", nil, t0)

	assert.False(t, s.ShouldAlert("mint", "", t0))
	assert.False(t, s.ShouldAlert("other", "", t0))
	assert.Len(t, r.Snapshot(), 1)
}

// Every appended finding lands in exactly one drained batch, and a finding
// is only visible in a batch if its seen-mark is also visible.
func TestDrainUnderConcurrentAppends(t *testing.T) {
	s := NewSeenSet(time.Hour)
	r := NewRecent(100_000)

	const writers, perWriter = 8, 500
	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				key := fmt.Sprintf("%d-%d", w, i)
				Record(s, r, key, "", &models.Finding{Key: key}, t0)
			}
		}(w)
	}

	seen := make(map[string]int)
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	collect := func() {
		for _, f := range r.Drain() {
			seen[f.Key]++
			assert.False(t, s.ShouldAlert(f.Key, "", t0), "finding %s drained before its seen-mark", f.Key)
		}
	}
	for {
		select {
		case <-done:
			collect()
			require.Len(t, seen, writers*perWriter)
			for k, n := range seen {
				require.Equal(t, 1, n, "finding %s drained %d times", k, n)
			}
			return
		default:
			collect()
		}
	}
}
