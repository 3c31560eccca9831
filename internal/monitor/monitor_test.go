package monitor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dbsentry/internal/alert"
	"github.com/dbsentry/internal/config"
	"github.com/dbsentry/internal/models"
)

// stubProber returns scripted connection utilization per tick and
// neutral values for everything else. failAll makes every probe fail.
type stubProber struct {
	utilizationByTick []float64
	tick              int
	failAll           bool
}

func (s *stubProber) Name() string { return "stub" }

func (s *stubProber) Connections(ctx context.Context) (models.ConnectionMetrics, error) {
	if s.failAll {
		return models.DefaultConnectionMetrics(), errors.New("probe down")
	}
	m := models.ConnectionMetrics{Active: 10, Idle: 5, Total: 15, Max: 100}
	if s.tick < len(s.utilizationByTick) {
		m.UtilizationPct = s.utilizationByTick[s.tick]
	}
	s.tick++
	return m, nil
}

func (s *stubProber) QueryStats(ctx context.Context) (models.QueryMetrics, error) {
	if s.failAll {
		return models.DefaultQueryMetrics(), errors.New("probe down")
	}
	return models.QueryMetrics{TotalQueries: 100, ThroughputPerSec: 10}, nil
}

func (s *stubProber) Performance(ctx context.Context) (models.PerformanceMetrics, error) {
	if s.failAll {
		return models.DefaultPerformanceMetrics(), errors.New("probe down")
	}
	return models.PerformanceMetrics{CPUPercent: 20, CacheHitRatePct: 99}, nil
}

func (s *stubProber) Storage(ctx context.Context) (models.StorageMetrics, error) {
	if s.failAll {
		return models.DefaultStorageMetrics(), errors.New("probe down")
	}
	return models.StorageMetrics{DataBytes: 1000, IndexBytes: 200, TotalBytes: 1200, FreeBytes: 10000, TableCount: 5}, nil
}

func (s *stubProber) Replication(ctx context.Context) (*models.ReplicationMetrics, error) {
	if s.failAll {
		return nil, errors.New("probe down")
	}
	return nil, nil
}

type stubAnalyzer struct {
	slowCalls  int
	tableCalls int
	slowErr    error
}

func (s *stubAnalyzer) SlowQueries(ctx context.Context) (*models.SlowQueryReport, error) {
	s.slowCalls++
	if s.slowErr != nil {
		return nil, s.slowErr
	}
	return &models.SlowQueryReport{Available: true, GeneratedAt: time.Now()}, nil
}

func (s *stubAnalyzer) TableHealth(ctx context.Context) (*models.TableHealthReport, error) {
	s.tableCalls++
	return &models.TableHealthReport{GeneratedAt: time.Now()}, nil
}

func testMonitorConfig() config.MonitorConfig {
	return config.MonitorConfig{
		CollectionIntervalSeconds: 1,
		RetentionDays:             7,
		ProbeTimeoutSeconds:       5,
		ShutdownTimeoutSeconds:    5,
	}
}

func newTestMonitor(prober *stubProber, analyzer *stubAnalyzer) *Monitor {
	engine := alert.NewEngine(config.Thresholds{
		ConnectionUtilizationPct: 85,
		SlowQueryMs:              1000,
		LockWaitSeconds:          2,
		CacheHitRatePct:          90,
		DiskUsagePct:             90,
		ReplicationLagSeconds:    10,
	})
	return New(testMonitorConfig(), prober, analyzer, engine)
}

func TestCollectionBreachOnThirdTick(t *testing.T) {
	prober := &stubProber{utilizationByTick: []float64{50, 60, 97}}
	m := newTestMonitor(prober, &stubAnalyzer{})

	m.collect()
	m.collect()
	m.collect()

	alerts := m.ActiveAlerts()
	if len(alerts) != 1 {
		t.Fatalf("active alerts after 3 ticks = %d, want 1", len(alerts))
	}
	if alerts[0].Severity != models.SeverityCritical {
		t.Fatalf("severity = %s, want critical", alerts[0].Severity)
	}

	if !m.ResolveAlert(alerts[0].ID) {
		t.Fatal("ResolveAlert returned false for open alert")
	}
	if got := len(m.ActiveAlerts()); got != 0 {
		t.Fatalf("active alerts after resolve = %d, want 0", got)
	}
	if hs := m.HealthStatus(); hs.Status != models.HealthHealthy {
		t.Fatalf("health status after resolve = %s, want healthy", hs.Status)
	}
}

func TestCollectAppendsHistory(t *testing.T) {
	m := newTestMonitor(&stubProber{}, &stubAnalyzer{})

	m.collect()
	m.collect()

	if got := m.history.Len(); got != 2 {
		t.Fatalf("history length = %d, want 2", got)
	}
	latest := m.Latest()
	if latest == nil || latest.QueryStats.ThroughputPerSec != 10 {
		t.Fatalf("latest snapshot not the probed one: %+v", latest)
	}
}

func TestAllProbesFailingYieldsNeutralSnapshot(t *testing.T) {
	m := newTestMonitor(&stubProber{failAll: true}, &stubAnalyzer{})

	m.collect()

	snap := m.Latest()
	if snap == nil {
		t.Fatal("no snapshot appended despite probe failures")
	}
	if snap.Performance.CacheHitRatePct != 100 {
		t.Fatalf("cache hit rate = %v, want neutral 100", snap.Performance.CacheHitRatePct)
	}
	if snap.Connections.UtilizationPct != 0 || snap.Replication != nil {
		t.Fatalf("snapshot not neutral: %+v", snap)
	}
	// Neutral defaults must not open alerts.
	if got := len(m.ActiveAlerts()); got != 0 {
		t.Fatalf("probe failures opened %d alerts", got)
	}
}

func TestOverlappingTickSkipped(t *testing.T) {
	m := newTestMonitor(&stubProber{}, &stubAnalyzer{})

	m.collecting.Store(true)
	m.collect()
	m.collecting.Store(false)

	if got := m.history.Len(); got != 0 {
		t.Fatalf("overlapping tick collected anyway: history length %d", got)
	}
}

func TestHealthStatusLevels(t *testing.T) {
	m := newTestMonitor(&stubProber{}, &stubAnalyzer{})
	m.collect()

	if hs := m.HealthStatus(); hs.Status != models.HealthHealthy {
		t.Fatalf("status with no alerts = %s, want healthy", hs.Status)
	}

	// Warning-only alert.
	snap := m.Latest()
	warn := &models.MetricSnapshot{Timestamp: snap.Timestamp, Connections: snap.Connections,
		QueryStats: snap.QueryStats, Performance: snap.Performance, Storage: snap.Storage}
	warn.Connections.UtilizationPct = 90
	m.alerts.Evaluate(warn)
	hs := m.HealthStatus()
	if hs.Status != models.HealthWarning {
		t.Fatalf("status with warning alert = %s, want warning", hs.Status)
	}
	if hs.ActiveAlertCount != 1 {
		t.Fatalf("active alert count = %d, want 1", hs.ActiveAlertCount)
	}

	// Add a critical alert on top.
	crit := &models.MetricSnapshot{Timestamp: snap.Timestamp, Connections: snap.Connections,
		QueryStats: snap.QueryStats, Performance: snap.Performance, Storage: snap.Storage}
	crit.Connections.UtilizationPct = 97
	m.alerts.Evaluate(crit)
	if hs := m.HealthStatus(); hs.Status != models.HealthCritical {
		t.Fatalf("status with critical alert = %s, want critical", hs.Status)
	}
}

func TestHourlyJobCachesReport(t *testing.T) {
	analyzer := &stubAnalyzer{}
	m := newTestMonitor(&stubProber{}, analyzer)

	if m.SlowQueryReport() != nil {
		t.Fatal("slow query report set before first run")
	}
	m.runHourly()
	if analyzer.slowCalls != 1 {
		t.Fatalf("slow query job ran %d times, want 1", analyzer.slowCalls)
	}
	if report := m.SlowQueryReport(); report == nil || !report.Available {
		t.Fatalf("cached report wrong: %+v", report)
	}
}

func TestHourlyJobFailureKeepsPreviousReport(t *testing.T) {
	analyzer := &stubAnalyzer{}
	m := newTestMonitor(&stubProber{}, analyzer)

	m.runHourly()
	analyzer.slowErr = errors.New("digest table gone")
	m.runHourly()

	if report := m.SlowQueryReport(); report == nil {
		t.Fatal("failed run clobbered the previous report")
	}
}

func TestDailyJobCachesReportAndEvicts(t *testing.T) {
	analyzer := &stubAnalyzer{}
	m := newTestMonitor(&stubProber{}, analyzer)

	// Plant a snapshot older than the retention window.
	old := &models.MetricSnapshot{Timestamp: time.Now().Add(-8 * 24 * time.Hour)}
	m.history.Append(old)
	m.collect()

	m.runDaily()

	if analyzer.tableCalls != 1 {
		t.Fatalf("table health job ran %d times, want 1", analyzer.tableCalls)
	}
	if m.TableHealthReport() == nil {
		t.Fatal("table health report not cached")
	}
	if got := m.history.Len(); got != 1 {
		t.Fatalf("history length after retention cleanup = %d, want 1", got)
	}
}

func TestStartStop(t *testing.T) {
	m := newTestMonitor(&stubProber{}, &stubAnalyzer{})

	if err := m.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := m.Start(); err == nil {
		t.Fatal("second Start did not fail")
	}
	if m.Latest() == nil {
		t.Fatal("initial collection did not run")
	}

	m.Stop()
	m.Stop() // idempotent

	if err := m.Start(); err == nil {
		t.Fatal("Start after Stop did not fail")
	}
}
