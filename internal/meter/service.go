package meter

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"k8s.io/apimachinery/pkg/api/resource"

	"github.com/skyhook-dev/skyhook/internal/syncutil"
	"github.com/skyhook-dev/skyhook/internal/tier"
)

// Service provides credit metering business logic.
type Service struct {
	store  Store
	logger *slog.Logger
	locks  syncutil.ShardedMutex
	now    func() time.Time
}

// Option configures the service.
type Option func(*Service)

// WithClock injects a clock. Tests use this to control elapsed time.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a new metering service.
func NewService(store Store, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// HourlyRate computes the credit cost per hour for a tier definition:
// the sum of every enabled feature's hourly cost, plus the base UI cost,
// plus the storage cost for the namespace storage quota. The result is
// rounded up to the next whole credit.
func HourlyRate(def tier.Definition) float64 {
	rate := def.BaseUIHourlyCost
	for _, f := range def.Feature.Enabled() {
		rate += def.FeatureHourlyCost[f]
	}
	rate += def.StorageCostPerGBHour * StorageGB(def.Quotas.StorageQuota)
	return math.Ceil(rate)
}

// StorageGB parses a Kubernetes quantity string ("5Gi", "2048Mi") into
// gigabytes using binary (1024-based) conversion. Unparseable quantities
// count as zero storage.
func StorageGB(quantity string) float64 {
	q, err := resource.ParseQuantity(quantity)
	if err != nil {
		return 0
	}
	return float64(q.Value()) / float64(1<<30)
}

// StartTracking creates a tracking record for a tenant. The hourly rate is
// computed once, here, from the tier definition; it is not recomputed until
// tracking is restarted.
func (s *Service) StartTracking(ctx context.Context, tenantID, ownerUserID string, def tier.Definition) (*TrackingRecord, error) {
	unlock := s.locks.Lock(tenantID)
	defer unlock()

	now := s.now()
	rec := &TrackingRecord{
		TenantID:      tenantID,
		OwnerUserID:   ownerUserID,
		HourlyRate:    HourlyRate(def),
		StartedAt:     now,
		LastSettledAt: now,
	}
	if err := s.store.Create(ctx, rec); err != nil {
		return nil, fmt.Errorf("meter: start tracking %s: %w", tenantID, err)
	}

	s.logger.Info("credit tracking started",
		"tenant_id", tenantID, "hourly_rate", rec.HourlyRate, "tier", def.Name)
	return rec, nil
}

// Settle folds the time elapsed since the last settlement into cumulative
// consumption and advances the settlement clock. Settling repeatedly is
// safe: zero elapsed time adds zero.
func (s *Service) Settle(ctx context.Context, tenantID string) error {
	unlock := s.locks.Lock(tenantID)
	defer unlock()
	return s.settleLocked(ctx, tenantID)
}

func (s *Service) settleLocked(ctx context.Context, tenantID string) error {
	rec, err := s.store.Get(ctx, tenantID)
	if err != nil {
		return err
	}

	now := s.now()
	elapsed := now.Sub(rec.LastSettledAt).Hours()
	if elapsed < 0 {
		elapsed = 0
	}
	rec.Consumed += rec.HourlyRate * elapsed
	rec.LastSettledAt = now

	return s.store.Update(ctx, rec)
}

// CurrentConsumption returns cumulative consumption as of now: the settled
// total plus the unsettled elapsed amount. It never mutates the record, so
// a later Settle cannot double-count.
func (s *Service) CurrentConsumption(ctx context.Context, tenantID string) (float64, error) {
	rec, err := s.store.Get(ctx, tenantID)
	if err == ErrRecordNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	elapsed := s.now().Sub(rec.LastSettledAt).Hours()
	if elapsed < 0 {
		elapsed = 0
	}
	return rec.Consumed + rec.HourlyRate*elapsed, nil
}

// StopTracking settles the final partial interval, removes the record, and
// returns the final cumulative consumption. Stopping an untracked tenant
// returns 0 without error.
func (s *Service) StopTracking(ctx context.Context, tenantID string) (float64, error) {
	unlock := s.locks.Lock(tenantID)
	defer unlock()

	rec, err := s.store.Get(ctx, tenantID)
	if err == ErrRecordNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	now := s.now()
	elapsed := now.Sub(rec.LastSettledAt).Hours()
	if elapsed < 0 {
		elapsed = 0
	}
	final := rec.Consumed + rec.HourlyRate*elapsed

	if err := s.store.Delete(ctx, tenantID); err != nil && err != ErrRecordNotFound {
		return 0, fmt.Errorf("meter: stop tracking %s: %w", tenantID, err)
	}

	s.logger.Info("credit tracking stopped", "tenant_id", tenantID, "final_consumed", final)
	return final, nil
}

// CheckAffordability compares a balance against a tier's flat provisioning
// minimum. Unknown tiers are gated at the lowest threshold in the catalogue.
func (s *Service) CheckAffordability(ownerUserID string, balance float64, tierName string) Affordability {
	minimum := tier.MinimumBalanceFor(tierName)
	verdict := Affordability{
		Allowed:         balance >= minimum,
		TierName:        tierName,
		RequiredMinimum: minimum,
		CurrentBalance:  balance,
	}
	if !verdict.Allowed {
		verdict.Shortfall = minimum - balance
		s.logger.Info("affordability denied",
			"owner_user_id", ownerUserID, "tier", tierName,
			"balance", balance, "shortfall", verdict.Shortfall)
	}
	return verdict
}

// EvaluateStatus settles the tenant and classifies its runway. Severities
// are checked in descending priority; only the first match is reported.
func (s *Service) EvaluateStatus(ctx context.Context, tenantID string, balance float64) (CreditStatus, error) {
	unlock := s.locks.Lock(tenantID)
	defer unlock()

	if err := s.settleLocked(ctx, tenantID); err != nil {
		return CreditStatus{}, err
	}
	rec, err := s.store.Get(ctx, tenantID)
	if err != nil {
		return CreditStatus{}, err
	}

	remaining := balance - rec.Consumed
	hoursRemaining := math.Inf(1)
	if rec.HourlyRate > 0 {
		hoursRemaining = remaining / rec.HourlyRate
	}

	status := CreditStatus{
		TenantID:       tenantID,
		HourlyRate:     rec.HourlyRate,
		Consumed:       rec.Consumed,
		Remaining:      remaining,
		HoursRemaining: hoursRemaining,
	}

	switch {
	case hoursRemaining < 1:
		status.Severity = SeverityCritical
	case hoursRemaining < 24:
		status.Severity = SeverityWarning
	case remaining < LowBalanceFloor:
		status.Severity = SeverityLow
	default:
		status.Severity = SeverityOK
	}
	return status, nil
}

// SettleAll settles every tracked tenant. One tenant's failure never blocks
// the others; the error count is reported for logging.
func (s *Service) SettleAll(ctx context.Context) (settled, failed int) {
	records, err := s.store.List(ctx)
	if err != nil {
		s.logger.Warn("failed to list tracking records", "error", err)
		return 0, 0
	}

	for _, rec := range records {
		if err := s.Settle(ctx, rec.TenantID); err != nil {
			// Records can legitimately disappear between List and Settle
			// when a tenant is suspended mid-sweep.
			if err != ErrRecordNotFound {
				s.logger.Warn("settlement failed", "tenant_id", rec.TenantID, "error", err)
				failed++
			}
			continue
		}
		settled++
	}
	return settled, failed
}
