package models

import (
	"time"
)

// MetricSnapshot is one timestamped sample of all metric categories.
// It is assembled once per collection tick and never mutated afterwards.
type MetricSnapshot struct {
	Timestamp   time.Time           `json:"timestamp"`
	Connections ConnectionMetrics   `json:"connections"`
	QueryStats  QueryMetrics        `json:"query_stats"`
	Performance PerformanceMetrics  `json:"performance"`
	Storage     StorageMetrics      `json:"storage"`
	Replication *ReplicationMetrics `json:"replication,omitempty"` // nil when the server is not a replica
}

// ConnectionMetrics describes the state of the connection pool.
type ConnectionMetrics struct {
	Active          int     `json:"active"`
	Idle            int     `json:"idle"`
	Total           int     `json:"total"`
	Max             int     `json:"max"`
	UtilizationPct  float64 `json:"utilization_pct"` // 0-100
	WaitQueueLength int64   `json:"wait_queue_length"`
}

// QueryMetrics describes query throughput and latency.
type QueryMetrics struct {
	SlowQueries      int64   `json:"slow_queries"`
	TotalQueries     int64   `json:"total_queries"`
	AvgLatencyMs     float64 `json:"avg_latency_ms"`
	ThroughputPerSec float64 `json:"throughput_per_sec"`
}

// PerformanceMetrics describes resource and engine-internal counters.
type PerformanceMetrics struct {
	CPUPercent         float64 `json:"cpu_percent"`
	MemoryUsageBytes   uint64  `json:"memory_usage_bytes"`
	DiskReads          uint64  `json:"disk_reads"`
	DiskWrites         uint64  `json:"disk_writes"`
	DiskReadLatencyMs  float64 `json:"disk_read_latency_ms"`
	DiskWriteLatencyMs float64 `json:"disk_write_latency_ms"`
	CacheHitRatePct    float64 `json:"cache_hit_rate_pct"` // 0-100
	AvgLockWaitSeconds float64 `json:"avg_lock_wait_seconds"`
}

// StorageMetrics describes the on-disk footprint of the monitored schema.
type StorageMetrics struct {
	DataBytes  uint64 `json:"data_bytes"`
	IndexBytes uint64 `json:"index_bytes"`
	TotalBytes uint64 `json:"total_bytes"`
	FreeBytes  uint64 `json:"free_bytes"`
	TableCount int    `json:"table_count"`
}

type ReplicationState string

const (
	ReplicationRunning ReplicationState = "running"
	ReplicationStopped ReplicationState = "stopped"
	ReplicationError   ReplicationState = "error"
)

// ReplicationMetrics describes replica lag and thread health.
type ReplicationMetrics struct {
	LagSeconds       float64          `json:"lag_seconds"`
	State            ReplicationState `json:"state"`
	IOThreadRunning  bool             `json:"io_thread_running"`
	SQLThreadRunning bool             `json:"sql_thread_running"`
}

// Neutral defaults keep alert math well-defined when a probe fails.
// Every counter is zero; the cache hit rate defaults to 100 so a failed
// performance probe does not look like a cache problem.

func DefaultConnectionMetrics() ConnectionMetrics {
	return ConnectionMetrics{}
}

func DefaultQueryMetrics() QueryMetrics {
	return QueryMetrics{}
}

func DefaultPerformanceMetrics() PerformanceMetrics {
	return PerformanceMetrics{CacheHitRatePct: 100}
}

func DefaultStorageMetrics() StorageMetrics {
	return StorageMetrics{}
}

// DiskUsagePct returns used space as a percentage of used plus free.
// Zero when nothing is known about the volume.
func (s StorageMetrics) DiskUsagePct() float64 {
	total := float64(s.TotalBytes + s.FreeBytes)
	if total <= 0 {
		return 0
	}
	return float64(s.TotalBytes) / total * 100
}
