package history

import (
	"sync"
	"time"

	"github.com/dbsentry/internal/models"
)

// Store is an append-only, time-ordered, capacity-bounded buffer of
// metric snapshots. The collection cadence is the only writer; readers
// always receive copies, never shared slices.
type Store struct {
	mu           sync.RWMutex
	snapshots    []*models.MetricSnapshot
	maxSnapshots int
	now          func() time.Time
}

func NewStore(maxSnapshots int) *Store {
	return &Store{
		maxSnapshots: maxSnapshots,
		now:          time.Now,
	}
}

// Append adds a snapshot and enforces the count cap by dropping the
// oldest entries. Snapshots are assumed to arrive in time order.
func (s *Store) Append(snapshot *models.MetricSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.snapshots = append(s.snapshots, snapshot)
	if s.maxSnapshots > 0 && len(s.snapshots) > s.maxSnapshots {
		overflow := len(s.snapshots) - s.maxSnapshots
		s.snapshots = append(s.snapshots[:0:0], s.snapshots[overflow:]...)
	}
}

// Latest returns the newest snapshot, or nil when nothing has been
// collected yet.
func (s *Store) Latest() *models.MetricSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.snapshots) == 0 {
		return nil
	}
	return s.snapshots[len(s.snapshots)-1]
}

// Range returns the snapshots recorded within the given duration before
// now, ascending by time.
func (s *Store) Range(since time.Duration) []*models.MetricSnapshot {
	cutoff := s.now().Add(-since)

	s.mu.RLock()
	defer s.mu.RUnlock()

	// Snapshots are time-ordered, so find the first one inside the window.
	start := len(s.snapshots)
	for i, snap := range s.snapshots {
		if !snap.Timestamp.Before(cutoff) {
			start = i
			break
		}
	}

	out := make([]*models.MetricSnapshot, len(s.snapshots)-start)
	copy(out, s.snapshots[start:])
	return out
}

// EvictOlderThan removes every snapshot older than the retention window.
// Called by the daily cleanup job; the count cap in Append covers the
// steady state between runs.
func (s *Store) EvictOlderThan(retention time.Duration) int {
	cutoff := s.now().Add(-retention)

	s.mu.Lock()
	defer s.mu.Unlock()

	start := len(s.snapshots)
	for i, snap := range s.snapshots {
		if !snap.Timestamp.Before(cutoff) {
			start = i
			break
		}
	}
	if start == 0 {
		return 0
	}

	evicted := start
	s.snapshots = append(s.snapshots[:0:0], s.snapshots[start:]...)
	return evicted
}

// Len reports the current number of retained snapshots.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.snapshots)
}
