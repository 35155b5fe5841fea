// Package meter implements credit metering for active tenants.
//
// While a tenant is active it holds exactly one tracking record. Consumption
// accrues continuously at a fixed hourly rate computed once when tracking
// starts; settlement folds elapsed wall-clock time into the cumulative
// counter. The meter never touches balances itself: callers supply the
// current balance and the meter reports consumption and severity.
package meter

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrRecordNotFound is returned by mutating operations against a tenant
	// with no tracking record. Read-style operations return zero instead.
	ErrRecordNotFound = errors.New("meter: tracking record not found")

	// ErrRecordExists is returned when tracking is started twice for the
	// same tenant without an intervening stop.
	ErrRecordExists = errors.New("meter: tenant already tracked")
)

// TrackingRecord is the accruing usage counter for one active tenant.
// Consumed is monotonically non-decreasing and always equals the sum of
// hourlyRate x elapsedHours over all settled intervals.
type TrackingRecord struct {
	TenantID      string    `json:"tenantId"`
	OwnerUserID   string    `json:"ownerUserId"`
	HourlyRate    float64   `json:"hourlyRate"`
	Consumed      float64   `json:"consumed"`
	StartedAt     time.Time `json:"startedAt"`
	LastSettledAt time.Time `json:"lastSettledAt"`
}

// Severity classifies how close a tenant is to exhausting its balance.
type Severity string

const (
	SeverityOK       Severity = "ok"
	SeverityLow      Severity = "low"      // absolute balance floor reached
	SeverityWarning  Severity = "warning"  // < 24 hours of runway
	SeverityCritical Severity = "critical" // < 1 hour of runway
)

// LowBalanceFloor is the absolute remaining-credit floor for SeverityLow.
const LowBalanceFloor = 10.0

// CreditStatus is the settled balance projection for one tenant.
type CreditStatus struct {
	TenantID       string   `json:"tenantId"`
	Severity       Severity `json:"severity"`
	HourlyRate     float64  `json:"hourlyRate"`
	Consumed       float64  `json:"consumed"`
	Remaining      float64  `json:"remaining"`
	HoursRemaining float64  `json:"hoursRemaining"`
}

// Affordability is the verdict of the flat provisioning gate. It is a
// structured result, not an error: a denial always carries the shortfall.
type Affordability struct {
	Allowed         bool    `json:"allowed"`
	TierName        string  `json:"tierName"`
	RequiredMinimum float64 `json:"requiredMinimum"`
	CurrentBalance  float64 `json:"currentBalance"`
	Shortfall       float64 `json:"shortfall,omitempty"`
}

// Store persists tracking records. A record exists if and only if its
// tenant is active; the orchestrator maintains that invariant.
type Store interface {
	Create(ctx context.Context, rec *TrackingRecord) error
	Get(ctx context.Context, tenantID string) (*TrackingRecord, error)
	Update(ctx context.Context, rec *TrackingRecord) error
	Delete(ctx context.Context, tenantID string) error
	List(ctx context.Context) ([]*TrackingRecord, error)
}
