package tenant

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skyhook-dev/skyhook/internal/cluster"
	"github.com/skyhook-dev/skyhook/internal/manifest"
	"github.com/skyhook-dev/skyhook/internal/meter"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// mockApplier records manifests instead of touching a cluster.
type mockApplier struct {
	mu       sync.Mutex
	applied  []string
	deleted  []string
	failNext error
}

func (m *mockApplier) Apply(_ context.Context, manifests string) ([]cluster.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failNext != nil {
		err := m.failNext
		m.failNext = nil
		return nil, err
	}
	m.applied = append(m.applied, manifests)
	return nil, nil
}

func (m *mockApplier) DeleteNamespace(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, name)
	return nil
}

func (m *mockApplier) applyCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.applied)
}

func newTestOrchestrator(t *testing.T) (*Service, *mockApplier, *meter.Service, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := meter.NewService(meter.NewMemoryStore(), logger, meter.WithClock(clock.Now))
	applier := &mockApplier{}
	svc := NewService(NewMemoryStore(), m, applier,
		manifest.NewRenderer(manifest.Builtin()), "skyhook.dev", logger,
		WithClock(clock.Now))
	return svc, applier, m, clock
}

func provision(t *testing.T, svc *Service, owner, tierName string, balance float64) *Tenant {
	t.Helper()
	tn, verdict, err := svc.Provision(context.Background(), ProvisionRequest{
		OwnerUserID:    owner,
		OwnerEmail:     owner + "@example.com",
		TierName:       tierName,
		CurrentBalance: balance,
	})
	require.NoError(t, err)
	require.True(t, verdict.Allowed)
	require.NotNil(t, tn)
	return tn
}

func TestProvision_Success(t *testing.T) {
	svc, applier, _, _ := newTestOrchestrator(t)

	tn := provision(t, svc, "user-1", "pay-as-you-go", 15)

	assert.Equal(t, StatusActive, tn.Status)
	assert.True(t, strings.HasPrefix(tn.ID, "ten_"))
	assert.Equal(t, "ws-"+strings.TrimPrefix(tn.ID, "ten_"), tn.Namespace)
	assert.Equal(t, "https://"+tn.Subdomain+".skyhook.dev", tn.URL)
	assert.NotEmpty(t, tn.Secrets.APIKey)
	assert.NotEmpty(t, tn.Secrets.EncryptionKey)

	// pay-as-you-go enables only the editor: namespace, secrets, workspace,
	// feature-code-editor, ingress.
	assert.Equal(t, 5, applier.applyCount())
	assert.Contains(t, applier.applied[0], "kind: Namespace")
	assert.Contains(t, applier.applied[0], tn.Namespace)
	assert.Contains(t, applier.applied[3], "code-editor")
	assert.Contains(t, applier.applied[4], "kind: Ingress")
}

func TestProvision_TeamAppliesAllFeatures(t *testing.T) {
	svc, applier, _, _ := newTestOrchestrator(t)

	provision(t, svc, "user-1", "team", 500)

	// namespace, secrets, workspace, three features, ingress.
	assert.Equal(t, 7, applier.applyCount())
}

func TestProvision_DeniedMakesNoClusterCalls(t *testing.T) {
	svc, applier, m, _ := newTestOrchestrator(t)

	tn, verdict, err := svc.Provision(context.Background(), ProvisionRequest{
		OwnerUserID:    "user-1",
		OwnerEmail:     "user-1@example.com",
		TierName:       "pay-as-you-go",
		CurrentBalance: 7,
	})
	require.NoError(t, err)
	assert.Nil(t, tn)
	assert.False(t, verdict.Allowed)
	assert.Equal(t, 10.0, verdict.RequiredMinimum)
	assert.Equal(t, 3.0, verdict.Shortfall)

	// The gate runs before any cluster mutation.
	assert.Equal(t, 0, applier.applyCount())

	// And no metering record was created.
	consumed, err := m.CurrentConsumption(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, 0.0, consumed)
}

func TestProvision_DuplicateOwner(t *testing.T) {
	svc, _, _, _ := newTestOrchestrator(t)

	provision(t, svc, "user-1", "pay-as-you-go", 15)
	_, _, err := svc.Provision(context.Background(), ProvisionRequest{
		OwnerUserID:    "user-1",
		OwnerEmail:     "user-1@example.com",
		TierName:       "starter",
		CurrentBalance: 100,
	})
	assert.ErrorIs(t, err, ErrOwnerHasTenant)
}

func TestProvision_UnknownTierFallsBack(t *testing.T) {
	svc, _, _, _ := newTestOrchestrator(t)

	tn := provision(t, svc, "user-1", "platinum-mega", 15)
	assert.Equal(t, "pay-as-you-go", string(tn.Tier.Name))
}

func TestProvision_ApplyFailureDoesNotPersist(t *testing.T) {
	svc, applier, _, _ := newTestOrchestrator(t)
	applier.failNext = fmt.Errorf("cluster unreachable")

	_, _, err := svc.Provision(context.Background(), ProvisionRequest{
		OwnerUserID:    "user-1",
		OwnerEmail:     "user-1@example.com",
		TierName:       "pay-as-you-go",
		CurrentBalance: 15,
	})
	require.Error(t, err)

	// The owner slot was not consumed; a retry succeeds.
	provision(t, svc, "user-1", "pay-as-you-go", 15)
}

func TestLifecycle_EndToEnd(t *testing.T) {
	svc, applier, m, clock := newTestOrchestrator(t)
	ctx := context.Background()

	// pay-as-you-go: minimum 10, rate 4/h. Balance 15 clears the gate.
	tn := provision(t, svc, "user-1", "pay-as-you-go", 15)
	rate := meter.HourlyRate(tn.Tier)

	clock.Advance(2 * time.Hour)

	consumed, err := m.CurrentConsumption(ctx, tn.ID)
	require.NoError(t, err)
	assert.InDelta(t, rate*2, consumed, 1e-9)

	suspended, err := svc.Suspend(ctx, tn.ID, "payment overdue")
	require.NoError(t, err)
	assert.Equal(t, StatusSuspended, suspended.Status)
	assert.Equal(t, "payment overdue", suspended.SuspendReason)
	assert.InDelta(t, rate*2, suspended.FinalConsumption, 1e-9)

	// Metering stopped: no record, projection reads zero.
	consumed, err = m.CurrentConsumption(ctx, tn.ID)
	require.NoError(t, err)
	assert.Equal(t, 0.0, consumed)

	// Time passing while suspended accrues nothing.
	clock.Advance(48 * time.Hour)

	resumed, err := svc.Resume(ctx, tn.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusActive, resumed.Status)
	assert.Empty(t, resumed.SuspendReason)

	clock.Advance(time.Hour)
	consumed, err = m.CurrentConsumption(ctx, tn.ID)
	require.NoError(t, err)
	assert.InDelta(t, rate, consumed, 1e-9)

	gone, err := svc.Deprovision(ctx, tn.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusDeprovisioned, gone.Status)
	assert.Equal(t, []string{tn.Namespace}, applier.deleted)

	// The owner can start over.
	clock.Advance(time.Second)
	provision(t, svc, "user-1", "starter", 50)
}

func TestSuspend_InvalidFromSuspended(t *testing.T) {
	svc, _, _, _ := newTestOrchestrator(t)
	ctx := context.Background()

	tn := provision(t, svc, "user-1", "pay-as-you-go", 15)
	_, err := svc.Suspend(ctx, tn.ID, "first")
	require.NoError(t, err)

	_, err = svc.Suspend(ctx, tn.ID, "second")
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestResume_InvalidFromActive(t *testing.T) {
	svc, _, _, _ := newTestOrchestrator(t)

	tn := provision(t, svc, "user-1", "pay-as-you-go", 15)
	_, err := svc.Resume(context.Background(), tn.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestUpgradeTier(t *testing.T) {
	svc, applier, m, clock := newTestOrchestrator(t)
	ctx := context.Background()

	tn := provision(t, svc, "user-1", "pay-as-you-go", 150)
	before := applier.applyCount()

	clock.Advance(time.Hour)

	upgraded, verdict, err := svc.UpgradeTier(ctx, tn.ID, "team", 150)
	require.NoError(t, err)
	require.True(t, verdict.Allowed)
	assert.Equal(t, "team", string(upgraded.Tier.Name))

	// The hour on the old tier was captured, not discarded.
	assert.InDelta(t, 4.0, upgraded.FinalConsumption, 1e-9)

	// team adds automation-engine and llm-runtime on top of code-editor.
	assert.Equal(t, before+2, applier.applyCount())

	// Metering restarted at the team rate.
	clock.Advance(time.Hour)
	consumed, err := m.CurrentConsumption(ctx, tn.ID)
	require.NoError(t, err)
	assert.InDelta(t, meter.HourlyRate(upgraded.Tier), consumed, 1e-9)
}

func TestUpgradeTier_ApplyFailureKeepsMetering(t *testing.T) {
	svc, applier, m, clock := newTestOrchestrator(t)
	ctx := context.Background()

	tn := provision(t, svc, "user-1", "pay-as-you-go", 150)
	rate := meter.HourlyRate(tn.Tier)
	clock.Advance(time.Hour)

	applier.failNext = fmt.Errorf("cluster unreachable")
	_, _, err := svc.UpgradeTier(ctx, tn.ID, "team", 150)
	require.Error(t, err)

	// The tenant is untouched: still active on the old tier.
	got, err := svc.Get(ctx, tn.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusActive, got.Status)
	assert.Equal(t, "pay-as-you-go", string(got.Tier.Name))

	// And still billing at the old rate, nothing lost.
	clock.Advance(10 * time.Hour)
	consumed, err := m.CurrentConsumption(ctx, tn.ID)
	require.NoError(t, err)
	assert.InDelta(t, rate*11, consumed, 1e-9)

	// A retry completes the upgrade.
	upgraded, verdict, err := svc.UpgradeTier(ctx, tn.ID, "team", 150)
	require.NoError(t, err)
	require.True(t, verdict.Allowed)
	assert.Equal(t, "team", string(upgraded.Tier.Name))
	assert.InDelta(t, rate*11, upgraded.FinalConsumption, 1e-9)
}

// flakyStore fails the next Update, then behaves normally.
type flakyStore struct {
	Store
	failUpdate error
}

func (f *flakyStore) Update(ctx context.Context, t *Tenant) error {
	if f.failUpdate != nil {
		err := f.failUpdate
		f.failUpdate = nil
		return err
	}
	return f.Store.Update(ctx, t)
}

func TestSuspend_StoreFailureKeepsMetering(t *testing.T) {
	clock := newFakeClock()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := meter.NewService(meter.NewMemoryStore(), logger, meter.WithClock(clock.Now))
	store := &flakyStore{Store: NewMemoryStore()}
	svc := NewService(store, m, &mockApplier{},
		manifest.NewRenderer(manifest.Builtin()), "skyhook.dev", logger,
		WithClock(clock.Now))
	ctx := context.Background()

	tn := provision(t, svc, "user-1", "pay-as-you-go", 15)
	rate := meter.HourlyRate(tn.Tier)
	clock.Advance(time.Hour)

	store.failUpdate = fmt.Errorf("connection reset")
	_, err := svc.Suspend(ctx, tn.ID, "billing hold")
	require.Error(t, err)

	// The tenant stayed active and the tracking record was put back, so
	// accrual continues.
	got, err := svc.Get(ctx, tn.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusActive, got.Status)

	clock.Advance(time.Hour)
	consumed, err := m.CurrentConsumption(ctx, tn.ID)
	require.NoError(t, err)
	assert.InDelta(t, rate, consumed, 1e-9)

	// A retry suspends cleanly.
	suspended, err := svc.Suspend(ctx, tn.ID, "billing hold")
	require.NoError(t, err)
	assert.Equal(t, StatusSuspended, suspended.Status)
}

func TestUpgradeTier_Denied(t *testing.T) {
	svc, applier, _, _ := newTestOrchestrator(t)

	tn := provision(t, svc, "user-1", "pay-as-you-go", 15)
	before := applier.applyCount()

	upgraded, verdict, err := svc.UpgradeTier(context.Background(), tn.ID, "team", 15)
	require.NoError(t, err)
	assert.Nil(t, upgraded)
	assert.False(t, verdict.Allowed)
	assert.Equal(t, 100.0, verdict.RequiredMinimum)
	assert.Equal(t, 85.0, verdict.Shortfall)
	assert.Equal(t, before, applier.applyCount())

	// Tier unchanged.
	got, err := svc.Get(context.Background(), tn.ID)
	require.NoError(t, err)
	assert.Equal(t, "pay-as-you-go", string(got.Tier.Name))
}

func TestDeprovision_Idempotent(t *testing.T) {
	svc, applier, _, _ := newTestOrchestrator(t)
	ctx := context.Background()

	tn := provision(t, svc, "user-1", "pay-as-you-go", 15)
	_, err := svc.Deprovision(ctx, tn.ID)
	require.NoError(t, err)

	again, err := svc.Deprovision(ctx, tn.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusDeprovisioned, again.Status)
	assert.Len(t, applier.deleted, 1)
}

func TestCreditStatus_SuspendedUsesFinalConsumption(t *testing.T) {
	svc, _, _, clock := newTestOrchestrator(t)
	ctx := context.Background()

	tn := provision(t, svc, "user-1", "pay-as-you-go", 100)
	clock.Advance(3 * time.Hour)
	_, err := svc.Suspend(ctx, tn.ID, "")
	require.NoError(t, err)

	status, err := svc.CreditStatus(ctx, tn.ID, 100)
	require.NoError(t, err)
	assert.Equal(t, meter.SeverityOK, status.Severity)
	assert.InDelta(t, 12.0, status.Consumed, 1e-9)
	assert.InDelta(t, 88.0, status.Remaining, 1e-9)
}

func TestDeriveID_Deterministic(t *testing.T) {
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, DeriveID("user-1", at), DeriveID("user-1", at))
	assert.NotEqual(t, DeriveID("user-1", at), DeriveID("user-2", at))
	assert.NotEqual(t, DeriveID("user-1", at), DeriveID("user-1", at.Add(time.Second)))
}
