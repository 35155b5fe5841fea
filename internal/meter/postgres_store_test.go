package meter

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skyhook-dev/skyhook/internal/testutil"
)

func TestPostgresStore_CRUD(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()

	store := NewPostgresStore(db)
	ctx := context.Background()
	started := time.Now().UTC().Truncate(time.Microsecond)

	rec := &TrackingRecord{
		TenantID:      "ten_0123456789ab",
		OwnerUserID:   "user-pg",
		HourlyRate:    8,
		Consumed:      0,
		StartedAt:     started,
		LastSettledAt: started,
	}
	require.NoError(t, store.Create(ctx, rec))
	assert.ErrorIs(t, store.Create(ctx, rec), ErrRecordExists)

	got, err := store.Get(ctx, rec.TenantID)
	require.NoError(t, err)
	assert.Equal(t, 8.0, got.HourlyRate)
	assert.True(t, got.StartedAt.Equal(started))

	got.Consumed = 16
	got.LastSettledAt = started.Add(2 * time.Hour)
	require.NoError(t, store.Update(ctx, got))

	again, err := store.Get(ctx, rec.TenantID)
	require.NoError(t, err)
	assert.Equal(t, 16.0, again.Consumed)

	all, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)

	require.NoError(t, store.Delete(ctx, rec.TenantID))
	assert.ErrorIs(t, store.Delete(ctx, rec.TenantID), ErrRecordNotFound)

	_, err = store.Get(ctx, rec.TenantID)
	assert.ErrorIs(t, err, ErrRecordNotFound)
}
