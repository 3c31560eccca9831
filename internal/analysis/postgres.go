package analysis

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dbsentry/internal/models"
)

// PostgresAnalyzer inspects a PostgreSQL server through the cumulative
// statistics views and the pg_stat_statements extension.
type PostgresAnalyzer struct {
	pool        *pgxpool.Pool
	slowQueryMs float64
	now         func() time.Time
}

func NewPostgresAnalyzer(pool *pgxpool.Pool, slowQueryMs float64) *PostgresAnalyzer {
	return &PostgresAnalyzer{pool: pool, slowQueryMs: slowQueryMs, now: time.Now}
}

func (a *PostgresAnalyzer) SlowQueries(ctx context.Context) (*models.SlowQueryReport, error) {
	report := &models.SlowQueryReport{
		GeneratedAt: a.now(),
		Threshold:   a.slowQueryMs,
	}

	rows, err := a.pool.Query(ctx,
		`SELECT query,
		        calls,
		        mean_exec_time,
		        max_exec_time,
		        rows::float8 / greatest(calls, 1)
		 FROM pg_stat_statements
		 WHERE mean_exec_time > $1
		 ORDER BY mean_exec_time DESC
		 LIMIT $2`, a.slowQueryMs, slowQueryLimit)
	if err != nil {
		// Extension not installed: analysis unavailable, not an error.
		log.Printf("Slow query analysis unavailable: %v", err)
		return report, nil
	}
	defer rows.Close()

	report.Available = true
	for rows.Next() {
		var e models.SlowQueryEntry
		if err := rows.Scan(&e.Digest, &e.ExecCount, &e.AvgLatencyMs, &e.MaxLatencyMs, &e.AvgRowsExamined); err != nil {
			return report, fmt.Errorf("failed to scan statement row: %v", err)
		}
		report.Queries = append(report.Queries, e)
	}
	return report, rows.Err()
}

func (a *PostgresAnalyzer) TableHealth(ctx context.Context) (*models.TableHealthReport, error) {
	rows, err := a.pool.Query(ctx,
		`SELECT schemaname,
		        relname,
		        n_live_tup,
		        pg_relation_size(relid),
		        pg_indexes_size(relid),
		        (pg_total_relation_size(relid) * n_dead_tup) / greatest(n_live_tup + n_dead_tup, 1)
		 FROM pg_stat_user_tables`)
	if err != nil {
		return nil, fmt.Errorf("failed to read table statistics: %v", err)
	}
	defer rows.Close()

	var tables []models.TableStat
	for rows.Next() {
		var t models.TableStat
		if err := rows.Scan(&t.Schema, &t.Name, &t.Rows, &t.DataBytes, &t.IndexBytes, &t.FreeBytes); err != nil {
			return nil, fmt.Errorf("failed to scan table row: %v", err)
		}
		tables = append(tables, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return BuildTableHealthReport(tables, a.now()), nil
}
