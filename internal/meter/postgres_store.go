package meter

import (
	"context"
	"database/sql"

	"github.com/lib/pq"
)

// PostgresStore persists tracking records in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed tracking store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (p *PostgresStore) Create(ctx context.Context, rec *TrackingRecord) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO credit_tracking (tenant_id, owner_user_id, hourly_rate, consumed, started_at, last_settled_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		rec.TenantID, rec.OwnerUserID, rec.HourlyRate, rec.Consumed, rec.StartedAt, rec.LastSettledAt,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return ErrRecordExists
		}
		return err
	}
	return nil
}

func (p *PostgresStore) Get(ctx context.Context, tenantID string) (*TrackingRecord, error) {
	return scanRecord(p.db.QueryRowContext(ctx, `
		SELECT tenant_id, owner_user_id, hourly_rate, consumed, started_at, last_settled_at
		FROM credit_tracking WHERE tenant_id = $1`, tenantID))
}

func (p *PostgresStore) Update(ctx context.Context, rec *TrackingRecord) error {
	result, err := p.db.ExecContext(ctx, `
		UPDATE credit_tracking SET hourly_rate = $1, consumed = $2, last_settled_at = $3
		WHERE tenant_id = $4`,
		rec.HourlyRate, rec.Consumed, rec.LastSettledAt, rec.TenantID,
	)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func (p *PostgresStore) Delete(ctx context.Context, tenantID string) error {
	result, err := p.db.ExecContext(ctx,
		`DELETE FROM credit_tracking WHERE tenant_id = $1`, tenantID)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func (p *PostgresStore) List(ctx context.Context) ([]*TrackingRecord, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT tenant_id, owner_user_id, hourly_rate, consumed, started_at, last_settled_at
		FROM credit_tracking ORDER BY started_at`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []*TrackingRecord
	for rows.Next() {
		rec := &TrackingRecord{}
		if err := rows.Scan(&rec.TenantID, &rec.OwnerUserID, &rec.HourlyRate,
			&rec.Consumed, &rec.StartedAt, &rec.LastSettledAt); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Migrate creates the credit_tracking table (used in dev/test; prod uses migration files).
func (p *PostgresStore) Migrate(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS credit_tracking (
			tenant_id       TEXT PRIMARY KEY,
			owner_user_id   TEXT NOT NULL,
			hourly_rate     DOUBLE PRECISION NOT NULL,
			consumed        DOUBLE PRECISION NOT NULL DEFAULT 0,
			started_at      TIMESTAMPTZ NOT NULL,
			last_settled_at TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_credit_tracking_owner ON credit_tracking(owner_user_id);
	`)
	return err
}

func scanRecord(row *sql.Row) (*TrackingRecord, error) {
	rec := &TrackingRecord{}
	err := row.Scan(&rec.TenantID, &rec.OwnerUserID, &rec.HourlyRate,
		&rec.Consumed, &rec.StartedAt, &rec.LastSettledAt)
	if err == sql.ErrNoRows {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

var _ Store = (*PostgresStore)(nil)
