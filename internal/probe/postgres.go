package probe

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shirou/gopsutil/v4/cpu"

	"github.com/dbsentry/internal/models"
)

// Postgres samples a PostgreSQL server through a pgx pool.
type Postgres struct {
	pool        *pgxpool.Pool
	slowQueryMs float64
}

func NewPostgres(pool *pgxpool.Pool, slowQueryMs float64) *Postgres {
	return &Postgres{pool: pool, slowQueryMs: slowQueryMs}
}

func (p *Postgres) Name() string { return "postgres" }

func (p *Postgres) Connections(ctx context.Context) (models.ConnectionMetrics, error) {
	m := models.DefaultConnectionMetrics()

	var active, idle, total, waiting int
	err := p.pool.QueryRow(ctx,
		`SELECT count(*) FILTER (WHERE state = 'active'),
		        count(*) FILTER (WHERE state = 'idle'),
		        count(*),
		        count(*) FILTER (WHERE wait_event_type = 'Lock')
		 FROM pg_stat_activity
		 WHERE backend_type = 'client backend'`).
		Scan(&active, &idle, &total, &waiting)
	if err != nil {
		return m, fmt.Errorf("failed to read pg_stat_activity: %v", err)
	}

	var maxConns int
	if err := p.pool.QueryRow(ctx,
		`SELECT setting::int FROM pg_settings WHERE name = 'max_connections'`).
		Scan(&maxConns); err != nil {
		return m, fmt.Errorf("failed to read max_connections: %v", err)
	}

	m.Active = active
	m.Idle = idle
	m.Total = total
	m.Max = maxConns
	m.UtilizationPct = UtilizationPct(total, maxConns)
	m.WaitQueueLength = int64(waiting)
	return m, nil
}

func (p *Postgres) QueryStats(ctx context.Context) (models.QueryMetrics, error) {
	m := models.DefaultQueryMetrics()

	var xacts uint64
	var uptime float64
	err := p.pool.QueryRow(ctx,
		`SELECT coalesce(sum(xact_commit + xact_rollback), 0)::bigint,
		        coalesce(extract(epoch FROM now() - min(stats_reset)), 0)
		 FROM pg_stat_database
		 WHERE datname IS NOT NULL`).
		Scan(&xacts, &uptime)
	if err != nil {
		return m, fmt.Errorf("failed to read pg_stat_database: %v", err)
	}
	m.TotalQueries = int64(xacts)
	m.ThroughputPerSec = ThroughputPerSec(xacts, uint64(uptime))

	// pg_stat_statements is an optional extension; its absence leaves the
	// latency fields at their neutral defaults.
	var avgMs float64
	var slow int64
	err = p.pool.QueryRow(ctx,
		`SELECT coalesce(sum(total_exec_time) / NULLIF(sum(calls), 0), 0),
		        count(*) FILTER (WHERE mean_exec_time > $1)
		 FROM pg_stat_statements`, p.slowQueryMs).
		Scan(&avgMs, &slow)
	if err == nil {
		m.AvgLatencyMs = avgMs
		m.SlowQueries = slow
	}

	return m, nil
}

func (p *Postgres) Performance(ctx context.Context) (models.PerformanceMetrics, error) {
	m := models.DefaultPerformanceMetrics()

	var hits, reads uint64
	err := p.pool.QueryRow(ctx,
		`SELECT coalesce(sum(blks_hit), 0)::bigint, coalesce(sum(blks_read), 0)::bigint
		 FROM pg_stat_database`).
		Scan(&hits, &reads)
	if err != nil {
		return m, fmt.Errorf("failed to read buffer statistics: %v", err)
	}
	m.CacheHitRatePct = CacheHitRatePct(hits+reads, reads)
	m.DiskReads = reads

	var written uint64
	if err := p.pool.QueryRow(ctx,
		`SELECT coalesce(buffers_checkpoint + buffers_clean + buffers_backend, 0)::bigint
		 FROM pg_stat_bgwriter`).
		Scan(&written); err == nil {
		m.DiskWrites = written
	}

	var lockWait float64
	if err := p.pool.QueryRow(ctx,
		`SELECT coalesce(extract(epoch FROM avg(now() - query_start)), 0)
		 FROM pg_stat_activity
		 WHERE wait_event_type = 'Lock'`).
		Scan(&lockWait); err == nil {
		m.AvgLockWaitSeconds = lockWait
	}

	var sharedBuffers uint64
	if err := p.pool.QueryRow(ctx,
		`SELECT setting::bigint * 8192 FROM pg_settings WHERE name = 'shared_buffers'`).
		Scan(&sharedBuffers); err == nil {
		m.MemoryUsageBytes = sharedBuffers
	}

	if pcts, err := cpu.PercentWithContext(ctx, 0, false); err == nil && len(pcts) > 0 {
		m.CPUPercent = pcts[0]
	}

	return m, nil
}

func (p *Postgres) Storage(ctx context.Context) (models.StorageMetrics, error) {
	m := models.DefaultStorageMetrics()

	var data, index, reclaimable uint64
	var tables int
	err := p.pool.QueryRow(ctx,
		`SELECT coalesce(sum(pg_relation_size(relid)), 0)::bigint,
		        coalesce(sum(pg_indexes_size(relid)), 0)::bigint,
		        coalesce(sum((pg_total_relation_size(relid) * n_dead_tup)
		                     / greatest(n_live_tup + n_dead_tup, 1)), 0)::bigint,
		        count(*)
		 FROM pg_stat_user_tables`).
		Scan(&data, &index, &reclaimable, &tables)
	if err != nil {
		return m, fmt.Errorf("failed to read table statistics: %v", err)
	}

	m.DataBytes = data
	m.IndexBytes = index
	m.TotalBytes = data + index
	m.FreeBytes = reclaimable
	m.TableCount = tables
	return m, nil
}

func (p *Postgres) Replication(ctx context.Context) (*models.ReplicationMetrics, error) {
	var inRecovery bool
	if err := p.pool.QueryRow(ctx, `SELECT pg_is_in_recovery()`).Scan(&inRecovery); err != nil {
		return nil, fmt.Errorf("failed to read recovery state: %v", err)
	}
	if !inRecovery {
		// Primary server, nothing to report.
		return nil, nil
	}

	m := &models.ReplicationMetrics{SQLThreadRunning: true}

	var lag float64
	if err := p.pool.QueryRow(ctx,
		`SELECT coalesce(extract(epoch FROM now() - pg_last_xact_replay_timestamp()), 0)`).
		Scan(&lag); err == nil && lag > 0 {
		m.LagSeconds = lag
	}

	var receiverStatus string
	err := p.pool.QueryRow(ctx, `SELECT status FROM pg_stat_wal_receiver`).Scan(&receiverStatus)
	switch {
	case err == nil && receiverStatus == "streaming":
		m.IOThreadRunning = true
		m.State = models.ReplicationRunning
	case err == nil:
		m.State = models.ReplicationError
	default:
		// No WAL receiver row: replication is configured but not streaming.
		m.State = models.ReplicationStopped
	}

	return m, nil
}
