package probe

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/shirou/gopsutil/v4/cpu"
	"gorm.io/gorm"

	"github.com/dbsentry/internal/models"
)

// MySQL samples a MySQL server through the monitoring connection pool.
type MySQL struct {
	db *gorm.DB
}

func NewMySQL(db *gorm.DB) *MySQL {
	return &MySQL{db: db}
}

func (p *MySQL) Name() string { return "mysql" }

func (p *MySQL) Connections(ctx context.Context) (models.ConnectionMetrics, error) {
	m := models.DefaultConnectionMetrics()

	status, err := p.globalStatus(ctx, "Threads_%")
	if err != nil {
		return m, fmt.Errorf("failed to read thread status: %v", err)
	}

	m.Total = int(statusUint(status, "Threads_connected"))
	m.Active = int(statusUint(status, "Threads_running"))
	if m.Total > m.Active {
		m.Idle = m.Total - m.Active
	}

	var maxConns int
	if err := p.db.WithContext(ctx).Raw("SELECT @@GLOBAL.max_connections").Scan(&maxConns).Error; err != nil {
		return m, fmt.Errorf("failed to read max_connections: %v", err)
	}
	m.Max = maxConns
	m.UtilizationPct = UtilizationPct(m.Total, m.Max)

	// Pool-side pressure: callers blocked waiting for a free connection.
	if sqlDB, err := p.db.DB(); err == nil {
		m.WaitQueueLength = sqlDB.Stats().WaitCount
	}

	return m, nil
}

func (p *MySQL) QueryStats(ctx context.Context) (models.QueryMetrics, error) {
	m := models.DefaultQueryMetrics()

	status, err := p.globalStatus(ctx, "")
	if err != nil {
		return m, fmt.Errorf("failed to read global status: %v", err)
	}

	m.TotalQueries = int64(statusUint(status, "Questions"))
	m.SlowQueries = int64(statusUint(status, "Slow_queries"))
	m.ThroughputPerSec = ThroughputPerSec(statusUint(status, "Questions"), statusUint(status, "Uptime"))

	// Average statement latency from the digest summary. The timer is in
	// picoseconds; /1e9 yields milliseconds. performance_schema may be
	// disabled, which is not an error for this probe.
	var avgMs sql.NullFloat64
	row := p.db.WithContext(ctx).Raw(
		`SELECT SUM(SUM_TIMER_WAIT) / NULLIF(SUM(COUNT_STAR), 0) / 1e9
		 FROM performance_schema.events_statements_summary_by_digest`).Row()
	if row != nil {
		if err := row.Scan(&avgMs); err == nil && avgMs.Valid {
			m.AvgLatencyMs = avgMs.Float64
		}
	}

	return m, nil
}

func (p *MySQL) Performance(ctx context.Context) (models.PerformanceMetrics, error) {
	m := models.DefaultPerformanceMetrics()

	status, err := p.globalStatus(ctx, "Innodb%")
	if err != nil {
		return m, fmt.Errorf("failed to read innodb status: %v", err)
	}

	requests := statusUint(status, "Innodb_buffer_pool_read_requests")
	misses := statusUint(status, "Innodb_buffer_pool_reads")
	m.CacheHitRatePct = CacheHitRatePct(requests, misses)

	m.DiskReads = statusUint(status, "Innodb_data_reads")
	m.DiskWrites = statusUint(status, "Innodb_data_writes")
	// Innodb_row_lock_time_avg is in milliseconds.
	m.AvgLockWaitSeconds = float64(statusUint(status, "Innodb_row_lock_time_avg")) / 1000

	var bufferBytes uint64
	if err := p.db.WithContext(ctx).
		Raw("SELECT @@GLOBAL.innodb_buffer_pool_size + @@GLOBAL.key_buffer_size").
		Scan(&bufferBytes).Error; err == nil {
		m.MemoryUsageBytes = bufferBytes
	}

	if pcts, err := cpu.PercentWithContext(ctx, 0, false); err == nil && len(pcts) > 0 {
		m.CPUPercent = pcts[0]
	}

	return m, nil
}

func (p *MySQL) Storage(ctx context.Context) (models.StorageMetrics, error) {
	m := models.DefaultStorageMetrics()

	var row struct {
		DataBytes  uint64
		IndexBytes uint64
		FreeBytes  uint64
		TableCount int
	}
	err := p.db.WithContext(ctx).Raw(
		`SELECT IFNULL(SUM(DATA_LENGTH), 0)  AS data_bytes,
		        IFNULL(SUM(INDEX_LENGTH), 0) AS index_bytes,
		        IFNULL(SUM(DATA_FREE), 0)    AS free_bytes,
		        COUNT(*)                     AS table_count
		 FROM information_schema.TABLES
		 WHERE TABLE_SCHEMA NOT IN ('mysql', 'information_schema', 'performance_schema', 'sys')`).
		Scan(&row).Error
	if err != nil {
		return m, fmt.Errorf("failed to read table catalog: %v", err)
	}

	m.DataBytes = row.DataBytes
	m.IndexBytes = row.IndexBytes
	m.FreeBytes = row.FreeBytes
	m.TotalBytes = row.DataBytes + row.IndexBytes
	m.TableCount = row.TableCount
	return m, nil
}

func (p *MySQL) Replication(ctx context.Context) (*models.ReplicationMetrics, error) {
	status, err := p.replicaStatus(ctx, "SHOW REPLICA STATUS")
	if err != nil {
		// Pre-8.0.22 servers only understand the old statement.
		status, err = p.replicaStatus(ctx, "SHOW SLAVE STATUS")
		if err != nil {
			return nil, fmt.Errorf("failed to read replication status: %v", err)
		}
	}
	if status == nil {
		// Not a replica.
		return nil, nil
	}
	return replicationFromStatus(status), nil
}

// replicaStatus returns the first row of SHOW REPLICA/SLAVE STATUS as a
// column-name map, or nil when the server is not a replica.
func (p *MySQL) replicaStatus(ctx context.Context, stmt string) (map[string]string, error) {
	rows, err := p.db.WithContext(ctx).Raw(stmt).Rows()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	vals := make([]sql.NullString, len(cols))
	ptrs := make([]interface{}, len(cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, err
	}

	status := make(map[string]string, len(cols))
	for i, col := range cols {
		if vals[i].Valid {
			status[col] = vals[i].String
		}
	}
	return status, nil
}

// replicationFromStatus maps a SHOW REPLICA STATUS row onto replication
// metrics, accepting both the new and the pre-8.0.22 column names.
func replicationFromStatus(status map[string]string) *models.ReplicationMetrics {
	m := &models.ReplicationMetrics{
		IOThreadRunning:  statusYes(status, "Replica_IO_Running", "Slave_IO_Running"),
		SQLThreadRunning: statusYes(status, "Replica_SQL_Running", "Slave_SQL_Running"),
	}

	if lag, ok := statusFirst(status, "Seconds_Behind_Source", "Seconds_Behind_Master"); ok {
		if v, err := strconv.ParseFloat(lag, 64); err == nil {
			m.LagSeconds = v
		}
	}

	switch {
	case m.IOThreadRunning && m.SQLThreadRunning:
		m.State = models.ReplicationRunning
	case lastError(status) != "":
		m.State = models.ReplicationError
	default:
		m.State = models.ReplicationStopped
	}
	return m
}

func lastError(status map[string]string) string {
	for _, key := range []string{"Last_IO_Error", "Last_SQL_Error", "Last_Error"} {
		if v := status[key]; v != "" {
			return v
		}
	}
	return ""
}

func statusYes(status map[string]string, keys ...string) bool {
	v, _ := statusFirst(status, keys...)
	return strings.EqualFold(v, "Yes")
}

func statusFirst(status map[string]string, keys ...string) (string, bool) {
	for _, key := range keys {
		if v, ok := status[key]; ok {
			return v, true
		}
	}
	return "", false
}

// globalStatus reads SHOW GLOBAL STATUS into a name/value map, with an
// optional LIKE pattern to keep the result small.
func (p *MySQL) globalStatus(ctx context.Context, like string) (map[string]string, error) {
	stmt := "SHOW GLOBAL STATUS"
	args := []interface{}{}
	if like != "" {
		stmt += " LIKE ?"
		args = append(args, like)
	}

	rows, err := p.db.WithContext(ctx).Raw(stmt, args...).Rows()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	status := make(map[string]string)
	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return nil, err
		}
		status[name] = value
	}
	return status, rows.Err()
}

func statusUint(status map[string]string, key string) uint64 {
	v, err := strconv.ParseUint(status[key], 10, 64)
	if err != nil {
		return 0
	}
	return v
}
