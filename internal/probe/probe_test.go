package probe

import (
	"testing"

	"github.com/dbsentry/internal/models"
)

func TestUtilizationPct(t *testing.T) {
	cases := []struct {
		used, max int
		want      float64
	}{
		{50, 100, 50},
		{0, 100, 0},
		{100, 100, 100},
		{150, 100, 100}, // clamped
		{10, 0, 0},      // unknown limit
	}
	for _, tc := range cases {
		if got := UtilizationPct(tc.used, tc.max); got != tc.want {
			t.Errorf("UtilizationPct(%d, %d) = %v, want %v", tc.used, tc.max, got, tc.want)
		}
	}
}

func TestCacheHitRatePct(t *testing.T) {
	cases := []struct {
		requests, misses uint64
		want             float64
	}{
		{0, 0, 100},   // idle cache
		{100, 0, 100},
		{100, 100, 0},
		{1000, 100, 90},
		{100, 200, 0}, // counters reset mid-sample
	}
	for _, tc := range cases {
		if got := CacheHitRatePct(tc.requests, tc.misses); got != tc.want {
			t.Errorf("CacheHitRatePct(%d, %d) = %v, want %v", tc.requests, tc.misses, got, tc.want)
		}
	}
}

func TestThroughputPerSec(t *testing.T) {
	if got := ThroughputPerSec(3600, 60); got != 60 {
		t.Errorf("ThroughputPerSec(3600, 60) = %v, want 60", got)
	}
	if got := ThroughputPerSec(100, 0); got != 0 {
		t.Errorf("ThroughputPerSec with zero uptime = %v, want 0", got)
	}
}

func TestReplicationFromStatusRunning(t *testing.T) {
	m := replicationFromStatus(map[string]string{
		"Replica_IO_Running":    "Yes",
		"Replica_SQL_Running":   "Yes",
		"Seconds_Behind_Source": "3",
	})
	if m.State != models.ReplicationRunning {
		t.Fatalf("state = %s, want running", m.State)
	}
	if m.LagSeconds != 3 {
		t.Fatalf("lag = %v, want 3", m.LagSeconds)
	}
	if !m.IOThreadRunning || !m.SQLThreadRunning {
		t.Fatal("thread flags not set from Yes values")
	}
}

func TestReplicationFromStatusLegacyColumns(t *testing.T) {
	m := replicationFromStatus(map[string]string{
		"Slave_IO_Running":      "Yes",
		"Slave_SQL_Running":     "No",
		"Seconds_Behind_Master": "120",
	})
	if m.State != models.ReplicationStopped {
		t.Fatalf("state = %s, want stopped", m.State)
	}
	if m.LagSeconds != 120 {
		t.Fatalf("lag = %v, want 120", m.LagSeconds)
	}
}

func TestReplicationFromStatusError(t *testing.T) {
	m := replicationFromStatus(map[string]string{
		"Replica_IO_Running":  "No",
		"Replica_SQL_Running": "Yes",
		"Last_IO_Error":       "error connecting to source",
	})
	if m.State != models.ReplicationError {
		t.Fatalf("state = %s, want error", m.State)
	}
}

func TestNeutralDefaults(t *testing.T) {
	perf := models.DefaultPerformanceMetrics()
	if perf.CacheHitRatePct != 100 {
		t.Fatalf("default cache hit rate = %v, want 100", perf.CacheHitRatePct)
	}
	conn := models.DefaultConnectionMetrics()
	if conn.UtilizationPct != 0 || conn.Total != 0 {
		t.Fatal("default connection metrics not neutral")
	}
}
