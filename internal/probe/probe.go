package probe

import (
	"context"

	"github.com/dbsentry/internal/models"
)

// Prober samples one relational engine. Each method returns the
// category's neutral defaults alongside any error, so callers can log
// the failure and keep collecting; a probe never panics past its
// boundary. Implementations must honor context cancellation.
type Prober interface {
	Name() string
	Connections(ctx context.Context) (models.ConnectionMetrics, error)
	QueryStats(ctx context.Context) (models.QueryMetrics, error)
	Performance(ctx context.Context) (models.PerformanceMetrics, error)
	Storage(ctx context.Context) (models.StorageMetrics, error)
	Replication(ctx context.Context) (*models.ReplicationMetrics, error)
}

// UtilizationPct maps used/max onto 0-100. Zero when the limit is unknown.
func UtilizationPct(used, max int) float64 {
	if max <= 0 {
		return 0
	}
	pct := float64(used) / float64(max) * 100
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}

// CacheHitRatePct computes the hit rate from total requests and misses.
// An idle cache counts as fully effective.
func CacheHitRatePct(requests, misses uint64) float64 {
	if requests == 0 {
		return 100
	}
	if misses >= requests {
		return 0
	}
	return (1 - float64(misses)/float64(requests)) * 100
}

// ThroughputPerSec averages a monotonic operation counter over uptime.
func ThroughputPerSec(total, uptimeSeconds uint64) float64 {
	if uptimeSeconds == 0 {
		return 0
	}
	return float64(total) / float64(uptimeSeconds)
}
