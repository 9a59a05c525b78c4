// Package alert owns governance alert entities and their lifecycle:
// pending -> approved | rejected | expired, all terminal. Alerts record a
// detected metric breach and are resolved only by committee decision or the
// expiration sweeper; rows are never deleted.
package alert

import (
	"math"
	"time"

	id "keystone/pkg/domain"
	dErrors "keystone/pkg/domain-errors"
)

// Severity of a threshold breach. Critical alerts block property actions.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Status is the alert lifecycle state.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
	StatusExpired  Status = "expired"
)

// Type labels how the alert originated.
type Type string

const (
	TypeThresholdBreach Type = "threshold_breach"
)

// MetricCategory groups monitored metrics for committee routing.
type MetricCategory string

const (
	CategoryFinancial  MetricCategory = "financial"
	CategoryOccupancy  MetricCategory = "occupancy"
	CategoryCompliance MetricCategory = "compliance"
	CategoryOperations MetricCategory = "operations"
)

// ParseMetricCategory validates a raw category string at trust boundaries.
func ParseMetricCategory(raw string) (MetricCategory, error) {
	switch MetricCategory(raw) {
	case CategoryFinancial, CategoryOccupancy, CategoryCompliance, CategoryOperations:
		return MetricCategory(raw), nil
	}
	return "", dErrors.New(dErrors.CodeValidation, "unknown metric category: "+raw)
}

// Alert records a threshold breach requiring committee attention.
// Terminal statuses are immutable.
type Alert struct {
	ID              id.AlertID     `json:"id"`
	PropertyID      id.PropertyID  `json:"propertyId"`
	Type            Type           `json:"type"`
	Severity        Severity       `json:"severity"`
	MetricName      string         `json:"metricName"`
	MetricCategory  MetricCategory `json:"metricCategory"`
	MetricValue     float64        `json:"metricValue"`
	ThresholdValue  float64        `json:"thresholdValue"`
	Variance        float64        `json:"variance"` // (value - threshold) / threshold
	Committee       string         `json:"committee"`
	Status          Status         `json:"status"`
	RequiresAction  bool           `json:"requiresAction"`
	ActionDueDate   *time.Time     `json:"actionDueDate,omitempty"`
	CreatedAt       time.Time      `json:"createdAt"`
	ResolvedAt      *time.Time     `json:"resolvedAt,omitempty"`
	ApprovedBy      string         `json:"approvedBy,omitempty"`
	RejectedBy      string         `json:"rejectedBy,omitempty"`
	ResolutionNotes string         `json:"resolutionNotes,omitempty"`
}

// Resolved reports whether the alert has reached a terminal state.
func (a *Alert) Resolved() bool { return a.Status != StatusPending }

// SeverityBands classifies a variance magnitude into a severity. The bands
// are configuration, not logic: deployments tune how far past a threshold a
// metric must drift before it escalates.
type SeverityBands struct {
	Warning  float64 // |variance| at or above this is at least warning
	Critical float64 // |variance| at or above this is critical
}

// Validate rejects bands that cannot order the severities.
func (b SeverityBands) Validate() error {
	if b.Warning <= 0 || b.Critical <= 0 {
		return dErrors.New(dErrors.CodeValidation, "severity bands must be positive")
	}
	if b.Warning >= b.Critical {
		return dErrors.New(dErrors.CodeValidation, "warning band must be below critical band")
	}
	return nil
}

// Classify maps a signed variance to a severity by magnitude.
func (b SeverityBands) Classify(variance float64) Severity {
	magnitude := math.Abs(variance)
	switch {
	case magnitude >= b.Critical:
		return SeverityCritical
	case magnitude >= b.Warning:
		return SeverityWarning
	default:
		return SeverityInfo
	}
}

// Summary aggregates a property's alert history for dashboards.
type Summary struct {
	PropertyID      id.PropertyID    `json:"propertyId"`
	Total           int              `json:"total"`
	ByStatus        map[Status]int   `json:"byStatus"`
	BySeverity      map[Severity]int `json:"bySeverity"`
	PendingCritical int              `json:"pendingCritical"`
	HasActiveAlerts bool             `json:"hasActiveAlerts"`
}
