package alert

import (
	"testing"
	"time"

	"github.com/dbsentry/internal/config"
	"github.com/dbsentry/internal/models"
)

func testThresholds() config.Thresholds {
	return config.Thresholds{
		ConnectionUtilizationPct: 85,
		SlowQueryMs:              1000,
		LockWaitSeconds:          2,
		CacheHitRatePct:          90,
		DiskUsagePct:             90,
		ReplicationLagSeconds:    10,
	}
}

func quietSnapshot(ts time.Time) *models.MetricSnapshot {
	return &models.MetricSnapshot{
		Timestamp:   ts,
		Connections: models.DefaultConnectionMetrics(),
		QueryStats:  models.DefaultQueryMetrics(),
		Performance: models.DefaultPerformanceMetrics(),
		Storage:     models.DefaultStorageMetrics(),
	}
}

func TestConnectionUtilizationSeverity(t *testing.T) {
	cases := []struct {
		utilization float64
		wantAlerts  int
		wantSev     models.AlertSeverity
	}{
		{96, 1, models.SeverityCritical},
		{90, 1, models.SeverityWarning},
		{80, 0, ""},
	}

	for _, tc := range cases {
		engine := NewEngine(testThresholds())
		snap := quietSnapshot(time.Now())
		snap.Connections.UtilizationPct = tc.utilization

		opened := engine.Evaluate(snap)
		if len(opened) != tc.wantAlerts {
			t.Fatalf("utilization %.0f: opened %d alerts, want %d", tc.utilization, len(opened), tc.wantAlerts)
		}
		if tc.wantAlerts == 1 {
			if opened[0].Severity != tc.wantSev {
				t.Errorf("utilization %.0f: severity %s, want %s", tc.utilization, opened[0].Severity, tc.wantSev)
			}
			if opened[0].Category != models.CategoryConnection {
				t.Errorf("utilization %.0f: category %s, want connection", tc.utilization, opened[0].Category)
			}
			if opened[0].ObservedValue != tc.utilization {
				t.Errorf("observed value %v, want %v", opened[0].ObservedValue, tc.utilization)
			}
		}
	}
}

func TestQuietSnapshotOpensNothing(t *testing.T) {
	engine := NewEngine(testThresholds())
	if opened := engine.Evaluate(quietSnapshot(time.Now())); len(opened) != 0 {
		t.Fatalf("neutral snapshot opened %d alerts: %+v", len(opened), opened)
	}
}

func TestFixedSeverities(t *testing.T) {
	engine := NewEngine(testThresholds())
	snap := quietSnapshot(time.Now())
	snap.Performance.AvgLockWaitSeconds = 5
	snap.Performance.CacheHitRatePct = 70
	snap.Replication = &models.ReplicationMetrics{
		LagSeconds: 60,
		State:      models.ReplicationRunning,
	}

	opened := engine.Evaluate(snap)
	bySeverity := map[models.AlertCategory]models.AlertSeverity{}
	for _, a := range opened {
		bySeverity[a.Category] = a.Severity
	}

	if len(opened) != 3 {
		t.Fatalf("opened %d alerts, want 3: %+v", len(opened), opened)
	}
	if bySeverity[models.CategoryReplication] != models.SeverityError {
		t.Errorf("replication lag severity = %s, want error", bySeverity[models.CategoryReplication])
	}
	// Lock wait (error) evaluates before cache hit rate (warning); both
	// are resource alerts, check them individually.
	var lockSev, cacheSev models.AlertSeverity
	for _, a := range opened {
		switch a.Title {
		case "Excessive lock wait time":
			lockSev = a.Severity
		case "Low buffer cache hit rate":
			cacheSev = a.Severity
		}
	}
	if lockSev != models.SeverityError {
		t.Errorf("lock wait severity = %s, want error", lockSev)
	}
	if cacheSev != models.SeverityWarning {
		t.Errorf("cache hit rate severity = %s, want warning", cacheSev)
	}
}

func TestReplicationNotRunningAlert(t *testing.T) {
	engine := NewEngine(testThresholds())
	snap := quietSnapshot(time.Now())
	snap.Replication = &models.ReplicationMetrics{State: models.ReplicationStopped}

	opened := engine.Evaluate(snap)
	if len(opened) != 1 {
		t.Fatalf("opened %d alerts, want 1", len(opened))
	}
	if opened[0].Title != "Replication not running" || opened[0].Severity != models.SeverityError {
		t.Fatalf("unexpected alert: %+v", opened[0])
	}
}

func TestRepeatedBreachOpensNewAlerts(t *testing.T) {
	engine := NewEngine(testThresholds())
	snap := quietSnapshot(time.Now())
	snap.Connections.UtilizationPct = 96

	engine.Evaluate(snap)
	engine.Evaluate(snap)

	if got := len(engine.ActiveAlerts()); got != 2 {
		t.Fatalf("active alerts after two breaches = %d, want 2 (no dedup)", got)
	}
}

func TestResolve(t *testing.T) {
	engine := NewEngine(testThresholds())
	snap := quietSnapshot(time.Now())
	snap.Connections.UtilizationPct = 96

	opened := engine.Evaluate(snap)
	id := opened[0].ID

	if !engine.Resolve(id) {
		t.Fatal("Resolve on open alert returned false")
	}
	if got := len(engine.ActiveAlerts()); got != 0 {
		t.Fatalf("active alerts after resolve = %d, want 0", got)
	}
	if engine.Resolve(id) {
		t.Fatal("second Resolve on same id returned true")
	}
	if all := engine.AllAlerts(); len(all) != 1 || !all[0].Resolved || all[0].ResolvedAt == nil {
		t.Fatalf("resolved alert not retained correctly: %+v", all)
	}
}

func TestResolveUnknownID(t *testing.T) {
	engine := NewEngine(testThresholds())
	snap := quietSnapshot(time.Now())
	snap.Connections.UtilizationPct = 96
	engine.Evaluate(snap)

	if engine.Resolve("no-such-alert") {
		t.Fatal("Resolve on unknown id returned true")
	}
	if got := len(engine.ActiveAlerts()); got != 1 {
		t.Fatalf("active alert set changed by failed resolve: %d", got)
	}
}

func TestListenerReceivesOpenedAlerts(t *testing.T) {
	engine := NewEngine(testThresholds())
	received := make(chan models.Alert, 1)
	engine.RegisterListener(func(a models.Alert) { received <- a })

	snap := quietSnapshot(time.Now())
	snap.Connections.UtilizationPct = 96
	engine.Evaluate(snap)

	select {
	case a := <-received:
		if a.Category != models.CategoryConnection {
			t.Fatalf("listener got category %s, want connection", a.Category)
		}
	case <-time.After(time.Second):
		t.Fatal("listener never received the alert")
	}
}

func TestPanickingListenerDoesNotBreakEvaluation(t *testing.T) {
	engine := NewEngine(testThresholds())
	engine.RegisterListener(func(models.Alert) { panic("listener bug") })
	received := make(chan models.Alert, 1)
	engine.RegisterListener(func(a models.Alert) { received <- a })

	snap := quietSnapshot(time.Now())
	snap.Connections.UtilizationPct = 96
	opened := engine.Evaluate(snap)

	if len(opened) != 1 {
		t.Fatalf("opened %d alerts, want 1", len(opened))
	}
	select {
	case <-received:
	case <-time.After(time.Second):
		t.Fatal("second listener starved by panicking sibling")
	}
}
