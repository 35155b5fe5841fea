package tenant

import "context"

// Store persists tenants. Implementations must be safe for concurrent use.
type Store interface {
	// Create inserts a tenant. Returns ErrOwnerHasTenant when the owner
	// already has a non-deprovisioned tenant.
	Create(ctx context.Context, t *Tenant) error
	// Get returns the tenant by ID, or ErrTenantNotFound.
	Get(ctx context.Context, id string) (*Tenant, error)
	// GetByOwner returns the owner's non-deprovisioned tenant, or
	// ErrTenantNotFound. Deprovisioned tenants release the owner.
	GetByOwner(ctx context.Context, ownerUserID string) (*Tenant, error)
	// Update replaces a tenant by ID, or ErrTenantNotFound.
	Update(ctx context.Context, t *Tenant) error
	// List returns all tenants, deprovisioned included.
	List(ctx context.Context) ([]*Tenant, error)
}
