package models

import (
	"time"
)

// SlowQueryEntry is one digest row from the engine's statement statistics.
type SlowQueryEntry struct {
	Digest          string  `json:"digest"`
	Schema          string  `json:"schema"`
	ExecCount       uint64  `json:"exec_count"`
	AvgLatencyMs    float64 `json:"avg_latency_ms"`
	MaxLatencyMs    float64 `json:"max_latency_ms"`
	AvgRowsExamined float64 `json:"avg_rows_examined"`
}

// SlowQueryReport is the outcome of the hourly slow-query digest job.
// Available is false when the engine has no statement statistics
// facility enabled; that is a normal outcome, not an error.
type SlowQueryReport struct {
	GeneratedAt time.Time        `json:"generated_at"`
	Available   bool             `json:"available"`
	Threshold   float64          `json:"threshold_ms"`
	Queries     []SlowQueryEntry `json:"queries"`
}

// TableStat carries the raw catalog numbers for a single table.
type TableStat struct {
	Name       string `json:"name"`
	Schema     string `json:"schema"`
	Rows       uint64 `json:"rows"`
	DataBytes  uint64 `json:"data_bytes"`
	IndexBytes uint64 `json:"index_bytes"`
	FreeBytes  uint64 `json:"free_bytes"`
}

// TableRecommendation is an advisory finding about one table.
type TableRecommendation struct {
	Table          string  `json:"table"`
	Issue          string  `json:"issue"`
	Recommendation string  `json:"recommendation"`
	Value          float64 `json:"value"`
}

// TableHealthReport is the outcome of the daily table/index health scan.
type TableHealthReport struct {
	GeneratedAt     time.Time             `json:"generated_at"`
	TablesScanned   int                   `json:"tables_scanned"`
	Recommendations []TableRecommendation `json:"recommendations"`
}
