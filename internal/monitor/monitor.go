package monitor

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dbsentry/internal/alert"
	"github.com/dbsentry/internal/analysis"
	"github.com/dbsentry/internal/config"
	"github.com/dbsentry/internal/history"
	"github.com/dbsentry/internal/models"
	"github.com/dbsentry/internal/probe"
)

const (
	defaultProbeTimeout = 5 * time.Second
	analysisJobTimeout  = 2 * time.Minute
)

// Monitor owns the history store, the alert engine, and the three
// scheduled cadences: snapshot collection, hourly slow-query analysis,
// and daily table-health analysis plus retention cleanup. The cadences
// are independent; a failure or delay in one never blocks another.
type Monitor struct {
	cfg      config.MonitorConfig
	prober   probe.Prober
	analyzer analysis.Analyzer
	history  *history.Store
	alerts   *alert.Engine

	collecting atomic.Bool
	stopChan   chan struct{}
	wg         sync.WaitGroup

	mu          sync.Mutex
	running     bool
	stopped     bool
	slowReport  *models.SlowQueryReport
	tableReport *models.TableHealthReport

	// Overridable in tests.
	hourlyInterval time.Duration
	dailyInterval  time.Duration
	now            func() time.Time
}

func New(cfg config.MonitorConfig, prober probe.Prober, analyzer analysis.Analyzer, alerts *alert.Engine) *Monitor {
	return &Monitor{
		cfg:            cfg,
		prober:         prober,
		analyzer:       analyzer,
		history:        history.NewStore(cfg.MaxSnapshots()),
		alerts:         alerts,
		stopChan:       make(chan struct{}),
		hourlyInterval: time.Hour,
		dailyInterval:  24 * time.Hour,
		now:            time.Now,
	}
}

// Alerts exposes the alert engine for listener registration.
func (m *Monitor) Alerts() *alert.Engine {
	return m.alerts
}

// Start runs the initial collection synchronously, then launches the
// three cadence loops.
func (m *Monitor) Start() error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return fmt.Errorf("monitor already running")
	}
	if m.stopped {
		m.mu.Unlock()
		return fmt.Errorf("monitor already stopped")
	}
	m.running = true
	m.mu.Unlock()

	m.collect()

	m.wg.Add(3)
	go m.loop(m.cfg.CollectionInterval(), m.collect)
	go m.loop(m.hourlyInterval, m.runHourly)
	go m.loop(m.dailyInterval, m.runDaily)

	log.Printf("Monitor started: interval=%s retention=%dd target=%s",
		m.cfg.CollectionInterval(), m.cfg.RetentionDays, m.prober.Name())
	return nil
}

// Stop cancels all cadences and waits for in-flight work, bounded by the
// configured shutdown timeout. Once Stop returns, no further ticks run.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running || m.stopped {
		m.mu.Unlock()
		return
	}
	m.running = false
	m.stopped = true
	m.mu.Unlock()

	close(m.stopChan)

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		log.Printf("Monitor stopped")
	case <-time.After(m.cfg.ShutdownTimeout()):
		log.Printf("Monitor shutdown timed out after %s", m.cfg.ShutdownTimeout())
	}
}

func (m *Monitor) loop(interval time.Duration, tick func()) {
	defer m.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			tick()
		case <-m.stopChan:
			return
		}
	}
}

// collect runs one collection tick: sample all probes, append the
// snapshot, evaluate alert rules. A tick that comes due while the
// previous one is still running is skipped, not queued.
func (m *Monitor) collect() {
	if !m.collecting.CompareAndSwap(false, true) {
		log.Printf("Collection tick skipped: previous tick still running")
		return
	}
	defer m.collecting.Store(false)

	snapshot := m.sample()
	m.history.Append(snapshot)
	m.alerts.Evaluate(snapshot)
}

// sample fans out the five probes concurrently and assembles the
// composite snapshot after all of them settle. A probe failure leaves
// its category at neutral defaults and never cancels the siblings.
func (m *Monitor) sample() *models.MetricSnapshot {
	snapshot := &models.MetricSnapshot{
		Timestamp:   m.now(),
		Connections: models.DefaultConnectionMetrics(),
		QueryStats:  models.DefaultQueryMetrics(),
		Performance: models.DefaultPerformanceMetrics(),
		Storage:     models.DefaultStorageMetrics(),
	}

	timeout := m.cfg.ProbeTimeout()
	if timeout <= 0 {
		timeout = defaultProbeTimeout
	}

	var wg sync.WaitGroup
	run := func(name string, fn func(ctx context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()
			if err := fn(ctx); err != nil {
				log.Printf("Probe %s failed on %s: %v", name, m.prober.Name(), err)
			}
		}()
	}

	run("connections", func(ctx context.Context) error {
		c, err := m.prober.Connections(ctx)
		snapshot.Connections = c
		return err
	})
	run("queries", func(ctx context.Context) error {
		q, err := m.prober.QueryStats(ctx)
		snapshot.QueryStats = q
		return err
	})
	run("performance", func(ctx context.Context) error {
		p, err := m.prober.Performance(ctx)
		snapshot.Performance = p
		return err
	})
	run("storage", func(ctx context.Context) error {
		s, err := m.prober.Storage(ctx)
		snapshot.Storage = s
		return err
	})
	run("replication", func(ctx context.Context) error {
		r, err := m.prober.Replication(ctx)
		if err == nil {
			snapshot.Replication = r
		}
		return err
	})

	wg.Wait()
	return snapshot
}

func (m *Monitor) runHourly() {
	ctx, cancel := context.WithTimeout(context.Background(), analysisJobTimeout)
	defer cancel()

	report, err := m.analyzer.SlowQueries(ctx)
	if err != nil {
		log.Printf("Slow query analysis failed: %v", err)
		return
	}
	m.mu.Lock()
	m.slowReport = report
	m.mu.Unlock()
}

func (m *Monitor) runDaily() {
	ctx, cancel := context.WithTimeout(context.Background(), analysisJobTimeout)
	defer cancel()

	report, err := m.analyzer.TableHealth(ctx)
	if err != nil {
		log.Printf("Table health analysis failed: %v", err)
	} else {
		m.mu.Lock()
		m.tableReport = report
		m.mu.Unlock()
	}

	retention := time.Duration(m.cfg.RetentionDays) * 24 * time.Hour
	if evicted := m.history.EvictOlderThan(retention); evicted > 0 {
		log.Printf("Retention cleanup evicted %d snapshots", evicted)
	}
}

// RunAnalysis runs both deep-analysis jobs on demand, outside their
// scheduled cadences, and caches the results for the query API.
func (m *Monitor) RunAnalysis(ctx context.Context) (*models.SlowQueryReport, *models.TableHealthReport, error) {
	slow, err := m.analyzer.SlowQueries(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("slow query analysis: %v", err)
	}
	tables, err := m.analyzer.TableHealth(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("table health analysis: %v", err)
	}

	m.mu.Lock()
	m.slowReport = slow
	m.tableReport = tables
	m.mu.Unlock()
	return slow, tables, nil
}

// Latest returns the newest snapshot, nil before the first collection.
func (m *Monitor) Latest() *models.MetricSnapshot {
	return m.history.Latest()
}

// History returns the snapshots of the last N hours, ascending by time.
func (m *Monitor) History(hours int) []*models.MetricSnapshot {
	if hours <= 0 {
		hours = 24
	}
	return m.history.Range(time.Duration(hours) * time.Hour)
}

func (m *Monitor) ActiveAlerts() []models.Alert {
	return m.alerts.ActiveAlerts()
}

func (m *Monitor) AllAlerts() []models.Alert {
	return m.alerts.AllAlerts()
}

func (m *Monitor) ResolveAlert(id string) bool {
	return m.alerts.Resolve(id)
}

// HealthStatus condenses the open-alert set and the newest snapshot:
// critical when any open alert is critical, warning when any alert is
// open, healthy otherwise.
func (m *Monitor) HealthStatus() models.HealthStatus {
	active := m.alerts.ActiveAlerts()

	status := models.HealthHealthy
	summary := "All metrics within thresholds"
	for _, a := range active {
		if status != models.HealthCritical {
			status = models.HealthWarning
		}
		if a.Severity == models.SeverityCritical {
			status = models.HealthCritical
		}
	}
	if len(active) > 0 {
		summary = fmt.Sprintf("%d active alert(s)", len(active))
	}

	hs := models.HealthStatus{
		Status:           status,
		Summary:          summary,
		ActiveAlertCount: len(active),
	}
	if latest := m.history.Latest(); latest != nil {
		hs.Metrics = latest
		hs.LastCheckTime = latest.Timestamp
	}
	return hs
}

func (m *Monitor) SlowQueryReport() *models.SlowQueryReport {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.slowReport
}

func (m *Monitor) TableHealthReport() *models.TableHealthReport {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tableReport
}
