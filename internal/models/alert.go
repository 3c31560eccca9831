package models

import (
	"time"
)

type AlertSeverity string

const (
	SeverityWarning  AlertSeverity = "warning"
	SeverityError    AlertSeverity = "error"
	SeverityCritical AlertSeverity = "critical"
)

type AlertCategory string

const (
	CategoryConnection  AlertCategory = "connection"
	CategoryQuery       AlertCategory = "query"
	CategoryStorage     AlertCategory = "storage"
	CategoryReplication AlertCategory = "replication"
	CategoryResource    AlertCategory = "resource"
)

// Alert records a single threshold breach. Alerts are owned by the alert
// engine: they are created on breach, flagged resolved by an operator,
// and never deleted.
type Alert struct {
	ID            string        `json:"id"`
	Severity      AlertSeverity `json:"severity"`
	Category      AlertCategory `json:"category"`
	Title         string        `json:"title"`
	Description   string        `json:"description"`
	Threshold     float64       `json:"threshold"`
	ObservedValue float64       `json:"observed_value"`
	CreatedAt     time.Time     `json:"created_at"`
	Resolved      bool          `json:"resolved"`
	ResolvedAt    *time.Time    `json:"resolved_at,omitempty"`
}
