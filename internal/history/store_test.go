package history

import (
	"testing"
	"time"

	"github.com/dbsentry/internal/models"
)

func snapshotAt(ts time.Time) *models.MetricSnapshot {
	return &models.MetricSnapshot{Timestamp: ts}
}

func TestAppendEnforcesCountCap(t *testing.T) {
	store := NewStore(3)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 10; i++ {
		store.Append(snapshotAt(base.Add(time.Duration(i) * time.Minute)))
	}

	if got := store.Len(); got != 3 {
		t.Fatalf("store holds %d snapshots, want 3", got)
	}
	latest := store.Latest()
	if latest == nil || !latest.Timestamp.Equal(base.Add(9*time.Minute)) {
		t.Fatalf("latest snapshot is %v, want the newest append", latest)
	}
}

func TestLatestEmptyStore(t *testing.T) {
	store := NewStore(10)
	if got := store.Latest(); got != nil {
		t.Fatalf("Latest on empty store = %v, want nil", got)
	}
}

func TestRangeReturnsAscendingWindow(t *testing.T) {
	store := NewStore(100)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	// One snapshot per minute for the last two hours.
	for i := 120; i >= 0; i-- {
		store.Append(snapshotAt(now.Add(-time.Duration(i) * time.Minute)))
	}

	got := store.Range(30 * time.Minute)
	if len(got) != 31 {
		t.Fatalf("Range(30m) returned %d snapshots, want 31", len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i].Timestamp.Before(got[i-1].Timestamp) {
			t.Fatalf("Range result not ascending at index %d", i)
		}
	}
	if got[0].Timestamp.Before(now.Add(-30 * time.Minute)) {
		t.Fatalf("Range returned snapshot outside window: %v", got[0].Timestamp)
	}
}

func TestRangeCopyIsolatedFromAppend(t *testing.T) {
	store := NewStore(100)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	store.Append(snapshotAt(now.Add(-time.Minute)))
	got := store.Range(time.Hour)
	store.Append(snapshotAt(now))

	if len(got) != 1 {
		t.Fatalf("earlier Range result changed length to %d", len(got))
	}
}

func TestEvictOlderThan(t *testing.T) {
	store := NewStore(0)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	for i := 0; i < 48; i++ {
		store.Append(snapshotAt(now.Add(-time.Duration(47-i) * time.Hour)))
	}

	evicted := store.EvictOlderThan(24 * time.Hour)
	if evicted != 23 {
		t.Fatalf("evicted %d snapshots, want 23", evicted)
	}
	if got := store.Len(); got != 25 {
		t.Fatalf("store holds %d snapshots after eviction, want 25", got)
	}
	for _, snap := range store.Range(48 * time.Hour) {
		if snap.Timestamp.Before(now.Add(-24 * time.Hour)) {
			t.Fatalf("snapshot %v survived eviction", snap.Timestamp)
		}
	}
}

func TestEvictOlderThanNothingToEvict(t *testing.T) {
	store := NewStore(0)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	store.Append(snapshotAt(now.Add(-time.Minute)))
	if evicted := store.EvictOlderThan(time.Hour); evicted != 0 {
		t.Fatalf("evicted %d snapshots, want 0", evicted)
	}
	if got := store.Len(); got != 1 {
		t.Fatalf("store holds %d snapshots, want 1", got)
	}
}
