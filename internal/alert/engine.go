package alert

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/dbsentry/internal/config"
	"github.com/dbsentry/internal/models"
)

// Listener receives every newly opened alert. Listeners run on their own
// goroutine; a slow or failing listener never blocks evaluation.
type Listener func(models.Alert)

// Engine evaluates threshold rules against snapshots and owns the alert
// set. Alerts are appended on breach and flagged resolved by operators;
// repeated breaches of the same rule open new alerts, there is no
// deduplication against already-open ones.
type Engine struct {
	mu        sync.Mutex
	rules     []rule
	alerts    []*models.Alert
	index     map[string]*models.Alert
	listeners []Listener
	now       func() time.Time
	seq       uint64
}

type rule struct {
	category  models.AlertCategory
	title     string
	threshold float64
	// observe extracts the rule's value from a snapshot; eligible is
	// false when the category is absent (e.g. no replication).
	observe func(*models.MetricSnapshot) (value float64, eligible bool)
	breach  func(value, threshold float64) bool
	// severity decides per observed value; most categories are fixed.
	severity func(value, threshold float64) models.AlertSeverity
	describe func(value, threshold float64) string
}

func NewEngine(thresholds config.Thresholds) *Engine {
	return &Engine{
		rules: buildRules(thresholds),
		index: make(map[string]*models.Alert),
		now:   time.Now,
	}
}

// RegisterListener adds a receiver for newly opened alerts. Intended to
// be called during wiring, before evaluation starts.
func (e *Engine) RegisterListener(fn Listener) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listeners = append(e.listeners, fn)
}

// Evaluate checks every rule against the snapshot and returns the alerts
// opened by this call.
func (e *Engine) Evaluate(snapshot *models.MetricSnapshot) []models.Alert {
	e.mu.Lock()

	var opened []models.Alert
	for _, r := range e.rules {
		value, eligible := r.observe(snapshot)
		if !eligible || !r.breach(value, r.threshold) {
			continue
		}

		e.seq++
		a := &models.Alert{
			ID:            fmt.Sprintf("%s-%d-%d", r.category, snapshot.Timestamp.UnixMilli(), e.seq),
			Severity:      r.severity(value, r.threshold),
			Category:      r.category,
			Title:         r.title,
			Description:   r.describe(value, r.threshold),
			Threshold:     r.threshold,
			ObservedValue: value,
			CreatedAt:     e.now(),
		}
		e.alerts = append(e.alerts, a)
		e.index[a.ID] = a
		opened = append(opened, *a)
	}

	listeners := make([]Listener, len(e.listeners))
	copy(listeners, e.listeners)
	e.mu.Unlock()

	for _, a := range opened {
		dispatch(listeners, a)
	}
	return opened
}

// Resolve flags an alert resolved. Returns false when the id is unknown
// or the alert is already resolved; calling it twice is safe.
func (e *Engine) Resolve(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	a, ok := e.index[id]
	if !ok || a.Resolved {
		return false
	}
	now := e.now()
	a.Resolved = true
	a.ResolvedAt = &now
	return true
}

// ActiveAlerts returns the open alerts in creation order.
func (e *Engine) ActiveAlerts() []models.Alert {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]models.Alert, 0, len(e.alerts))
	for _, a := range e.alerts {
		if !a.Resolved {
			out = append(out, *a)
		}
	}
	return out
}

// AllAlerts returns every alert ever opened, resolved ones included.
func (e *Engine) AllAlerts() []models.Alert {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]models.Alert, len(e.alerts))
	for i, a := range e.alerts {
		out[i] = *a
	}
	return out
}

func dispatch(listeners []Listener, a models.Alert) {
	for _, fn := range listeners {
		go func(fn Listener) {
			defer func() {
				if r := recover(); r != nil {
					log.Printf("alert listener panicked: %v", r)
				}
			}()
			fn(a)
		}(fn)
	}
}

func buildRules(t config.Thresholds) []rule {
	greater := func(v, threshold float64) bool { return v > threshold }
	less := func(v, threshold float64) bool { return v < threshold }
	always := func(v, threshold float64) bool { return true }
	fixed := func(s models.AlertSeverity) func(float64, float64) models.AlertSeverity {
		return func(float64, float64) models.AlertSeverity { return s }
	}

	var rules []rule

	if t.ConnectionUtilizationPct > 0 {
		rules = append(rules, rule{
			category:  models.CategoryConnection,
			title:     "High connection pool utilization",
			threshold: t.ConnectionUtilizationPct,
			observe: func(s *models.MetricSnapshot) (float64, bool) {
				return s.Connections.UtilizationPct, true
			},
			breach: greater,
			severity: func(v, threshold float64) models.AlertSeverity {
				if v > 95 {
					return models.SeverityCritical
				}
				return models.SeverityWarning
			},
			describe: func(v, threshold float64) string {
				return fmt.Sprintf("Connection utilization is %.1f%% (threshold %.1f%%)", v, threshold)
			},
		})
	}

	if t.SlowQueryMs > 0 {
		rules = append(rules, rule{
			category:  models.CategoryQuery,
			title:     "High average query latency",
			threshold: t.SlowQueryMs,
			observe: func(s *models.MetricSnapshot) (float64, bool) {
				return s.QueryStats.AvgLatencyMs, true
			},
			breach:   greater,
			severity: fixed(models.SeverityWarning),
			describe: func(v, threshold float64) string {
				return fmt.Sprintf("Average query latency is %.1fms (threshold %.1fms)", v, threshold)
			},
		})
	}

	if t.LockWaitSeconds > 0 {
		rules = append(rules, rule{
			category:  models.CategoryResource,
			title:     "Excessive lock wait time",
			threshold: t.LockWaitSeconds,
			observe: func(s *models.MetricSnapshot) (float64, bool) {
				return s.Performance.AvgLockWaitSeconds, true
			},
			breach:   greater,
			severity: fixed(models.SeverityError),
			describe: func(v, threshold float64) string {
				return fmt.Sprintf("Average lock wait is %.2fs (threshold %.2fs)", v, threshold)
			},
		})
	}

	if t.CacheHitRatePct > 0 {
		rules = append(rules, rule{
			category:  models.CategoryResource,
			title:     "Low buffer cache hit rate",
			threshold: t.CacheHitRatePct,
			observe: func(s *models.MetricSnapshot) (float64, bool) {
				return s.Performance.CacheHitRatePct, true
			},
			breach:   less,
			severity: fixed(models.SeverityWarning),
			describe: func(v, threshold float64) string {
				return fmt.Sprintf("Buffer cache hit rate is %.1f%% (threshold %.1f%%)", v, threshold)
			},
		})
	}

	if t.DiskUsagePct > 0 {
		rules = append(rules, rule{
			category:  models.CategoryStorage,
			title:     "High disk usage",
			threshold: t.DiskUsagePct,
			observe: func(s *models.MetricSnapshot) (float64, bool) {
				// Skip while the storage probe has nothing to report.
				if s.Storage.TotalBytes == 0 {
					return 0, false
				}
				return s.Storage.DiskUsagePct(), true
			},
			breach:   greater,
			severity: fixed(models.SeverityWarning),
			describe: func(v, threshold float64) string {
				return fmt.Sprintf("Disk usage is %.1f%% (threshold %.1f%%)", v, threshold)
			},
		})
	}

	if t.ReplicationLagSeconds > 0 {
		rules = append(rules, rule{
			category:  models.CategoryReplication,
			title:     "Replication lag",
			threshold: t.ReplicationLagSeconds,
			observe: func(s *models.MetricSnapshot) (float64, bool) {
				if s.Replication == nil {
					return 0, false
				}
				return s.Replication.LagSeconds, true
			},
			breach:   greater,
			severity: fixed(models.SeverityError),
			describe: func(v, threshold float64) string {
				return fmt.Sprintf("Replica is %.0fs behind source (threshold %.0fs)", v, threshold)
			},
		})
	}

	rules = append(rules, rule{
		category:  models.CategoryReplication,
		title:     "Replication not running",
		threshold: 0,
		observe: func(s *models.MetricSnapshot) (float64, bool) {
			if s.Replication == nil || s.Replication.State == models.ReplicationRunning {
				return 0, false
			}
			return s.Replication.LagSeconds, true
		},
		breach:   always,
		severity: fixed(models.SeverityError),
		describe: func(v, threshold float64) string {
			return "Replication threads are not running"
		},
	})

	return rules
}
