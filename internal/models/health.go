package models

import (
	"time"
)

type HealthState string

const (
	HealthHealthy  HealthState = "healthy"
	HealthWarning  HealthState = "warning"
	HealthCritical HealthState = "critical"
)

// HealthStatus is the condensed view returned by the query API.
type HealthStatus struct {
	Status           HealthState     `json:"status"`
	Summary          string          `json:"summary"`
	Metrics          *MetricSnapshot `json:"metrics,omitempty"`
	ActiveAlertCount int             `json:"active_alert_count"`
	LastCheckTime    time.Time       `json:"last_check_time"`
}
