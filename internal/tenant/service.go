package tenant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/skyhook-dev/skyhook/internal/cluster"
	"github.com/skyhook-dev/skyhook/internal/idgen"
	"github.com/skyhook-dev/skyhook/internal/manifest"
	"github.com/skyhook-dev/skyhook/internal/meter"
	"github.com/skyhook-dev/skyhook/internal/metrics"
	"github.com/skyhook-dev/skyhook/internal/syncutil"
	"github.com/skyhook-dev/skyhook/internal/tier"
	"github.com/skyhook-dev/skyhook/internal/traces"
)

// ClusterApplier is the slice of the cluster client the orchestrator needs.
type ClusterApplier interface {
	Apply(ctx context.Context, manifests string) ([]cluster.Result, error)
	DeleteNamespace(ctx context.Context, name string) error
}

// ProvisionRequest carries everything needed to create a workspace. The
// balance is supplied by the caller; Skyhook never holds account balances.
type ProvisionRequest struct {
	OwnerUserID    string
	OwnerEmail     string
	TierName       string
	CurrentBalance float64
}

// Service drives the tenant lifecycle state machine.
//
// All mutating operations on one tenant are serialized through a sharded
// mutex; operations on different tenants proceed concurrently.
type Service struct {
	store   Store
	meter   *meter.Service
	applier ClusterApplier

	renderer   *manifest.Renderer
	baseDomain string

	logger *slog.Logger
	locks  syncutil.ShardedMutex
	now    func() time.Time
}

// Option configures the Service.
type Option func(*Service)

// WithClock overrides the wall clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates the tenant orchestrator.
func NewService(store Store, m *meter.Service, applier ClusterApplier, renderer *manifest.Renderer, baseDomain string, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		store:      store,
		meter:      m,
		applier:    applier,
		renderer:   renderer,
		baseDomain: baseDomain,
		logger:     logger,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Provision creates a workspace end to end: affordability gate, identity
// and secrets, manifest groups applied in dependency order, persistence,
// then metering start.
//
// A denied affordability check returns before any cluster call is made;
// the verdict carries the shortfall. On a denial the returned tenant is
// nil and the error is nil.
func (s *Service) Provision(ctx context.Context, req ProvisionRequest) (*Tenant, meter.Affordability, error) {
	ctx, span := traces.StartSpan(ctx, "tenant.provision",
		traces.OwnerUserID(req.OwnerUserID), traces.Tier(req.TierName))
	defer span.End()

	unlock := s.locks.Lock("owner:" + req.OwnerUserID)
	defer unlock()

	if _, err := s.store.GetByOwner(ctx, req.OwnerUserID); err == nil {
		return nil, meter.Affordability{}, ErrOwnerHasTenant
	} else if !errors.Is(err, ErrTenantNotFound) {
		return nil, meter.Affordability{}, err
	}

	verdict := s.meter.CheckAffordability(req.OwnerUserID, req.CurrentBalance, req.TierName)
	if !verdict.Allowed {
		metrics.ProvisionsTotal.WithLabelValues("denied").Inc()
		return nil, verdict, nil
	}

	def := tier.DefinitionFor(req.TierName)
	now := s.now().UTC()
	id := DeriveID(req.OwnerUserID, now)

	t := &Tenant{
		ID:          id,
		OwnerUserID: req.OwnerUserID,
		OwnerEmail:  req.OwnerEmail,
		Namespace:   NamespaceFor(id),
		Subdomain:   SubdomainFor(id),
		URL:         URLFor(id, s.baseDomain),
		Tier:        def,
		Secrets: Secrets{
			APIKey:        "sk_" + idgen.Hex(24),
			EncryptionKey: idgen.Hex(32),
		},
		Status:    StatusProvisioning,
		CreatedAt: now,
		UpdatedAt: now,
	}
	span.SetAttributes(traces.TenantID(t.ID))

	if err := s.applyGroups(ctx, t, s.provisionGroups(def)); err != nil {
		metrics.ProvisionsTotal.WithLabelValues("failed").Inc()
		return nil, verdict, err
	}

	t.Status = StatusActive
	if err := s.store.Create(ctx, t); err != nil {
		metrics.ProvisionsTotal.WithLabelValues("failed").Inc()
		return nil, verdict, err
	}

	if _, err := s.meter.StartTracking(ctx, t.ID, t.OwnerUserID, def); err != nil {
		// Tenant is live; a missing tracking record is repaired on resume.
		s.logger.Error("metering start failed after provision",
			"tenant_id", t.ID, "error", err)
	}

	metrics.ProvisionsTotal.WithLabelValues("created").Inc()
	metrics.ActiveTenants.Inc()
	s.logger.Info("workspace provisioned",
		"tenant_id", t.ID, "owner_user_id", t.OwnerUserID,
		"tier", def.Name, "namespace", t.Namespace)
	return t, verdict, nil
}

// provisionGroups lists the manifest templates in dependency order:
// namespace scaffolding first, ingress last.
func (s *Service) provisionGroups(def tier.Definition) []string {
	groups := []string{"namespace", "secrets", "workspace"}
	for _, feat := range def.Feature.Enabled() {
		groups = append(groups, "feature-"+string(feat))
	}
	return append(groups, "ingress")
}

func (s *Service) applyGroups(ctx context.Context, t *Tenant, groups []string) error {
	for _, group := range groups {
		rendered, err := s.renderer.Render(group, s.templateVars(t, group))
		if err != nil {
			return fmt.Errorf("render %s: %w", group, err)
		}
		if _, err := s.applier.Apply(ctx, rendered); err != nil {
			return fmt.Errorf("apply %s: %w", group, err)
		}
	}
	return nil
}

// templateVars assembles the substitution map for one manifest group.
func (s *Service) templateVars(t *Tenant, group string) map[string]string {
	q := t.Tier.Quotas
	vars := map[string]string{
		"TENANT_ID":      t.ID,
		"OWNER_USER_ID":  t.OwnerUserID,
		"NAMESPACE":      t.Namespace,
		"TIER":           string(t.Tier.Name),
		"CPU_REQUEST":    q.CPURequest,
		"CPU_LIMIT":      q.CPULimit,
		"MEMORY_REQUEST": q.MemoryRequest,
		"MEMORY_LIMIT":   q.MemoryLimit,
		"STORAGE_QUOTA":  q.StorageQuota,
		"MAX_PODS":       fmt.Sprintf("%d", q.MaxPods),
		"API_KEY":        t.Secrets.APIKey,
		"ENCRYPTION_KEY": t.Secrets.EncryptionKey,
		"SUBDOMAIN":      t.Subdomain,
		"BASE_DOMAIN":    s.baseDomain,
		"URL":            t.URL,
	}
	if feat, ok := featureOf(group); ok {
		vars["FEATURE_STORAGE"] = t.Tier.FeatureStorage[feat]
	}
	return vars
}

func featureOf(group string) (tier.Feature, bool) {
	const prefix = "feature-"
	if len(group) > len(prefix) && group[:len(prefix)] == prefix {
		return tier.Feature(group[len(prefix):]), true
	}
	return "", false
}

// Get returns the tenant by ID.
func (s *Service) Get(ctx context.Context, id string) (*Tenant, error) {
	return s.store.Get(ctx, id)
}

// Suspend stops metering and parks the tenant. Cluster resources are
// retained so a later resume is instant.
func (s *Service) Suspend(ctx context.Context, id, reason string) (*Tenant, error) {
	ctx, span := traces.StartSpan(ctx, "tenant.suspend", traces.TenantID(id))
	defer span.End()

	unlock := s.locks.Lock(id)
	defer unlock()

	t, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.Status != StatusActive {
		return nil, fmt.Errorf("%w: %s → suspended", ErrInvalidTransition, t.Status)
	}

	final, err := s.meter.StopTracking(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("stop tracking: %w", err)
	}

	t.Status = StatusSuspended
	t.SuspendReason = reason
	t.FinalConsumption = final
	t.UpdatedAt = s.now().UTC()
	if err := s.store.Update(ctx, t); err != nil {
		// The tenant is still active in the store; put the record back so
		// it keeps accruing.
		if _, rerr := s.meter.StartTracking(ctx, t.ID, t.OwnerUserID, t.Tier); rerr != nil {
			s.logger.Error("metering restart failed after aborted suspend",
				"tenant_id", id, "final_consumption", final, "error", rerr)
		}
		return nil, err
	}

	metrics.LifecycleTransitionsTotal.WithLabelValues("suspend").Inc()
	metrics.ActiveTenants.Dec()
	s.logger.Info("workspace suspended",
		"tenant_id", id, "reason", reason, "final_consumption", final)
	return t, nil
}

// Resume reactivates a suspended tenant and restarts metering at a freshly
// computed rate.
func (s *Service) Resume(ctx context.Context, id string) (*Tenant, error) {
	ctx, span := traces.StartSpan(ctx, "tenant.resume", traces.TenantID(id))
	defer span.End()

	unlock := s.locks.Lock(id)
	defer unlock()

	t, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.Status != StatusSuspended {
		return nil, fmt.Errorf("%w: %s → active", ErrInvalidTransition, t.Status)
	}

	if _, err := s.meter.StartTracking(ctx, t.ID, t.OwnerUserID, t.Tier); err != nil {
		return nil, fmt.Errorf("start tracking: %w", err)
	}

	t.Status = StatusActive
	t.SuspendReason = ""
	t.UpdatedAt = s.now().UTC()
	if err := s.store.Update(ctx, t); err != nil {
		return nil, err
	}

	metrics.LifecycleTransitionsTotal.WithLabelValues("resume").Inc()
	metrics.ActiveTenants.Inc()
	s.logger.Info("workspace resumed", "tenant_id", id)
	return t, nil
}

// UpgradeTier moves an active tenant onto a new tier. The new tier is
// affordability-gated like provisioning. Metering stops and restarts at the
// new rate; the partial hour already accrued is kept, not prorated.
// Feature workloads the new tier enables are applied; the conflict-tolerant
// applier makes re-applying already-present groups a no-op.
func (s *Service) UpgradeTier(ctx context.Context, id, newTierName string, balance float64) (*Tenant, meter.Affordability, error) {
	ctx, span := traces.StartSpan(ctx, "tenant.upgrade_tier",
		traces.TenantID(id), traces.Tier(newTierName))
	defer span.End()

	unlock := s.locks.Lock(id)
	defer unlock()

	t, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, meter.Affordability{}, err
	}
	if t.Status != StatusActive {
		return nil, meter.Affordability{}, fmt.Errorf("%w: upgrade requires active, got %s", ErrInvalidTransition, t.Status)
	}

	verdict := s.meter.CheckAffordability(t.OwnerUserID, balance, newTierName)
	if !verdict.Allowed {
		return nil, verdict, nil
	}

	oldDef := t.Tier
	newDef := tier.DefinitionFor(newTierName)
	t.Tier = newDef

	// Only newly enabled features need workloads; existing ones stay put.
	// The cluster pipeline runs before metering is touched so a failed
	// apply leaves the tenant billing at the old rate.
	var groups []string
	for _, feat := range newDef.Feature.Enabled() {
		if !oldDef.Feature.Has(feat) {
			groups = append(groups, "feature-"+string(feat))
		}
	}
	if err := s.applyGroups(ctx, t, groups); err != nil {
		return nil, verdict, err
	}

	final, err := s.meter.StopTracking(ctx, id)
	if err != nil {
		return nil, verdict, fmt.Errorf("stop tracking: %w", err)
	}
	t.FinalConsumption = final
	t.UpdatedAt = s.now().UTC()

	if err := s.store.Update(ctx, t); err != nil {
		// The tenant is still active on its old tier; put the record back.
		if _, rerr := s.meter.StartTracking(ctx, t.ID, t.OwnerUserID, oldDef); rerr != nil {
			s.logger.Error("metering restart failed after aborted tier change",
				"tenant_id", id, "final_consumption", final, "error", rerr)
		}
		return nil, verdict, err
	}
	if _, err := s.meter.StartTracking(ctx, t.ID, t.OwnerUserID, newDef); err != nil {
		// Tenant is live on the new tier; a missing tracking record is
		// repaired on the next suspend/resume cycle.
		s.logger.Error("metering start failed after tier change",
			"tenant_id", id, "error", err)
	}

	metrics.LifecycleTransitionsTotal.WithLabelValues("upgrade").Inc()
	s.logger.Info("workspace tier changed",
		"tenant_id", id, "tier", newDef.Name, "final_consumption", final)
	return t, verdict, nil
}

// Deprovision stops metering, deletes the tenant namespace (cascading all
// workspace resources), and marks the tenant deprovisioned. The owner may
// provision a fresh workspace afterwards.
func (s *Service) Deprovision(ctx context.Context, id string) (*Tenant, error) {
	ctx, span := traces.StartSpan(ctx, "tenant.deprovision", traces.TenantID(id))
	defer span.End()

	unlock := s.locks.Lock(id)
	defer unlock()

	t, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.Status == StatusDeprovisioned {
		return t, nil
	}

	final, err := s.meter.StopTracking(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("stop tracking: %w", err)
	}
	if err := s.applier.DeleteNamespace(ctx, t.Namespace); err != nil {
		return nil, fmt.Errorf("delete namespace %s: %w", t.Namespace, err)
	}

	wasActive := t.Status == StatusActive
	t.Status = StatusDeprovisioned
	if final > 0 {
		t.FinalConsumption = final
	}
	t.UpdatedAt = s.now().UTC()
	if err := s.store.Update(ctx, t); err != nil {
		return nil, err
	}

	metrics.LifecycleTransitionsTotal.WithLabelValues("deprovision").Inc()
	if wasActive {
		metrics.ActiveTenants.Dec()
	}
	s.logger.Info("workspace deprovisioned",
		"tenant_id", id, "final_consumption", t.FinalConsumption)
	return t, nil
}

// CreditStatus evaluates the tenant's credit runway against a balance. For
// tenants that are not being metered, the last captured consumption stands
// in for the live figure.
func (s *Service) CreditStatus(ctx context.Context, id string, balance float64) (meter.CreditStatus, error) {
	t, err := s.store.Get(ctx, id)
	if err != nil {
		return meter.CreditStatus{}, err
	}
	if t.Status == StatusActive {
		return s.meter.EvaluateStatus(ctx, id, balance)
	}
	return meter.CreditStatus{
		TenantID:  id,
		Severity:  meter.SeverityOK,
		Consumed:  t.FinalConsumption,
		Remaining: balance - t.FinalConsumption,
	}, nil
}
