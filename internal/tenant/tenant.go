// Package tenant drives the workspace lifecycle for the Skyhook platform.
//
// A tenant is one isolated workspace environment living in its own
// Kubernetes namespace. The service in this package owns the state machine
// (provisioning → active ⇄ suspended → deprovisioned), gates provisioning
// on the owner's credit balance, and hands per-tenant metering to the
// credit meter while the tenant is active.
package tenant

import (
	"errors"
	"time"

	"github.com/skyhook-dev/skyhook/internal/tier"
)

// Errors
var (
	ErrTenantNotFound    = errors.New("tenant: not found")
	ErrOwnerHasTenant    = errors.New("tenant: owner already has a workspace")
	ErrInvalidTransition = errors.New("tenant: invalid status transition")
)

// Status represents a tenant's lifecycle state.
type Status string

const (
	StatusProvisioning  Status = "provisioning"
	StatusActive        Status = "active"
	StatusSuspended     Status = "suspended"
	StatusDeprovisioned Status = "deprovisioned"
)

// Secrets are generated once at provision time and never rotated by the
// lifecycle operations. They are injected into the workspace via a
// Kubernetes Secret and excluded from persisted API reads.
type Secrets struct {
	APIKey        string `json:"apiKey"`
	EncryptionKey string `json:"encryptionKey"`
}

// Tenant represents one provisioned workspace.
//
// Tier is a value copy of the catalogue definition taken at provision or
// upgrade time; later catalogue edits never change a running tenant.
type Tenant struct {
	ID          string `json:"id"`
	OwnerUserID string `json:"ownerUserId"`
	OwnerEmail  string `json:"ownerEmail"`

	Namespace string `json:"namespace"`
	Subdomain string `json:"subdomain"`
	URL       string `json:"url"`

	Tier    tier.Definition `json:"tier"`
	Secrets Secrets         `json:"-"`

	Status        Status `json:"status"`
	SuspendReason string `json:"suspendReason,omitempty"`

	// FinalConsumption is the metered total captured when tracking last
	// stopped (suspend or deprovision).
	FinalConsumption float64 `json:"finalConsumption,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
