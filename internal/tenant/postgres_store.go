package tenant

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/lib/pq"

	"github.com/skyhook-dev/skyhook/internal/tier"
)

// PostgresStore persists tenants in PostgreSQL.
//
// A partial unique index on owner_user_id (excluding deprovisioned rows)
// enforces the one-workspace-per-owner rule at the database level.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed tenant store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const tenantColumns = `id, owner_user_id, owner_email, namespace, subdomain, url,
	tier, api_key, encryption_key, status, suspend_reason, final_consumption,
	created_at, updated_at`

func (p *PostgresStore) Create(ctx context.Context, t *Tenant) error {
	tierJSON, err := json.Marshal(t.Tier)
	if err != nil {
		return err
	}
	_, err = p.db.ExecContext(ctx, `
		INSERT INTO tenants (`+tenantColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		t.ID, t.OwnerUserID, t.OwnerEmail, t.Namespace, t.Subdomain, t.URL,
		tierJSON, t.Secrets.APIKey, t.Secrets.EncryptionKey, string(t.Status),
		t.SuspendReason, t.FinalConsumption, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return ErrOwnerHasTenant
		}
		return err
	}
	return nil
}

func (p *PostgresStore) Get(ctx context.Context, id string) (*Tenant, error) {
	return p.scanTenant(p.db.QueryRowContext(ctx, `
		SELECT `+tenantColumns+` FROM tenants WHERE id = $1`, id))
}

func (p *PostgresStore) GetByOwner(ctx context.Context, ownerUserID string) (*Tenant, error) {
	return p.scanTenant(p.db.QueryRowContext(ctx, `
		SELECT `+tenantColumns+` FROM tenants
		WHERE owner_user_id = $1 AND status != 'deprovisioned'`, ownerUserID))
}

func (p *PostgresStore) Update(ctx context.Context, t *Tenant) error {
	tierJSON, err := json.Marshal(t.Tier)
	if err != nil {
		return err
	}
	result, err := p.db.ExecContext(ctx, `
		UPDATE tenants SET tier = $1, status = $2, suspend_reason = $3,
			final_consumption = $4, updated_at = $5
		WHERE id = $6`,
		tierJSON, string(t.Status), t.SuspendReason,
		t.FinalConsumption, t.UpdatedAt, t.ID,
	)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrTenantNotFound
	}
	return nil
}

func (p *PostgresStore) List(ctx context.Context) ([]*Tenant, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT `+tenantColumns+` FROM tenants ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var tenants []*Tenant
	for rows.Next() {
		t, err := p.scanRow(rows)
		if err != nil {
			return nil, err
		}
		tenants = append(tenants, t)
	}
	return tenants, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (p *PostgresStore) scanTenant(row *sql.Row) (*Tenant, error) {
	t, err := p.scanRow(row)
	if err == sql.ErrNoRows {
		return nil, ErrTenantNotFound
	}
	return t, err
}

func (p *PostgresStore) scanRow(row rowScanner) (*Tenant, error) {
	t := &Tenant{}
	var (
		status   string
		reason   sql.NullString
		tierJSON []byte
	)
	err := row.Scan(&t.ID, &t.OwnerUserID, &t.OwnerEmail, &t.Namespace,
		&t.Subdomain, &t.URL, &tierJSON, &t.Secrets.APIKey,
		&t.Secrets.EncryptionKey, &status, &reason, &t.FinalConsumption,
		&t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	t.Status = Status(status)
	if reason.Valid {
		t.SuspendReason = reason.String
	}
	if len(tierJSON) > 0 {
		var def tier.Definition
		if err := json.Unmarshal(tierJSON, &def); err != nil {
			return nil, err
		}
		t.Tier = def
	}
	return t, nil
}

// Migrate creates the tenants table (used in dev/test; prod uses migration files).
func (p *PostgresStore) Migrate(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS tenants (
			id                TEXT PRIMARY KEY,
			owner_user_id     TEXT NOT NULL,
			owner_email       TEXT NOT NULL DEFAULT '',
			namespace         TEXT NOT NULL,
			subdomain         TEXT NOT NULL,
			url               TEXT NOT NULL,
			tier              JSONB NOT NULL DEFAULT '{}',
			api_key           TEXT NOT NULL,
			encryption_key    TEXT NOT NULL,
			status            TEXT NOT NULL DEFAULT 'provisioning',
			suspend_reason    TEXT,
			final_consumption DOUBLE PRECISION NOT NULL DEFAULT 0,
			created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE UNIQUE INDEX IF NOT EXISTS idx_tenants_owner_live
			ON tenants(owner_user_id) WHERE status != 'deprovisioned';
		CREATE INDEX IF NOT EXISTS idx_tenants_status ON tenants(status);
	`)
	return err
}

var _ Store = (*PostgresStore)(nil)
