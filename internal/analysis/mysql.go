package analysis

import (
	"context"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"

	"github.com/dbsentry/internal/models"
)

// MySQLAnalyzer inspects a MySQL server through performance_schema and
// the information_schema catalog.
type MySQLAnalyzer struct {
	db          *gorm.DB
	slowQueryMs float64
	now         func() time.Time
}

func NewMySQLAnalyzer(db *gorm.DB, slowQueryMs float64) *MySQLAnalyzer {
	return &MySQLAnalyzer{db: db, slowQueryMs: slowQueryMs, now: time.Now}
}

func (a *MySQLAnalyzer) SlowQueries(ctx context.Context) (*models.SlowQueryReport, error) {
	report := &models.SlowQueryReport{
		GeneratedAt: a.now(),
		Threshold:   a.slowQueryMs,
	}

	// Timer columns are in picoseconds; /1e9 converts to milliseconds.
	rows, err := a.db.WithContext(ctx).Raw(
		`SELECT IFNULL(SCHEMA_NAME, '') AS schema_name,
		        IFNULL(DIGEST_TEXT, '') AS digest_text,
		        COUNT_STAR              AS exec_count,
		        AVG_TIMER_WAIT / 1e9    AS avg_ms,
		        MAX_TIMER_WAIT / 1e9    AS max_ms,
		        SUM_ROWS_EXAMINED / GREATEST(COUNT_STAR, 1) AS avg_rows
		 FROM performance_schema.events_statements_summary_by_digest
		 WHERE AVG_TIMER_WAIT / 1e9 > ?
		 ORDER BY AVG_TIMER_WAIT DESC
		 LIMIT ?`, a.slowQueryMs, slowQueryLimit).Rows()
	if err != nil {
		// performance_schema disabled or digest table absent: analysis is
		// unavailable on this server, which is not an error.
		log.Printf("Slow query analysis unavailable: %v", err)
		return report, nil
	}
	defer rows.Close()

	report.Available = true
	for rows.Next() {
		var e models.SlowQueryEntry
		if err := rows.Scan(&e.Schema, &e.Digest, &e.ExecCount, &e.AvgLatencyMs, &e.MaxLatencyMs, &e.AvgRowsExamined); err != nil {
			return report, fmt.Errorf("failed to scan digest row: %v", err)
		}
		report.Queries = append(report.Queries, e)
	}
	return report, rows.Err()
}

func (a *MySQLAnalyzer) TableHealth(ctx context.Context) (*models.TableHealthReport, error) {
	rows, err := a.db.WithContext(ctx).Raw(
		`SELECT TABLE_SCHEMA,
		        TABLE_NAME,
		        IFNULL(TABLE_ROWS, 0),
		        IFNULL(DATA_LENGTH, 0),
		        IFNULL(INDEX_LENGTH, 0),
		        IFNULL(DATA_FREE, 0)
		 FROM information_schema.TABLES
		 WHERE TABLE_TYPE = 'BASE TABLE'
		   AND TABLE_SCHEMA NOT IN ('mysql', 'information_schema', 'performance_schema', 'sys')`).Rows()
	if err != nil {
		return nil, fmt.Errorf("failed to read table catalog: %v", err)
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
