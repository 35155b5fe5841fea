package meter

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skyhook-dev/skyhook/internal/tier"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSweeper_SettlesOnTick(t *testing.T) {
	svc, clock := newTestService()
	_, err := svc.StartTracking(context.Background(), "ten_sweep0000001", "owner-1", tier.DefinitionFor("pay-as-you-go"))
	require.NoError(t, err)
	clock.Advance(time.Hour)

	sw := NewSweeper(svc, 10*time.Millisecond, discardLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sw.Start(ctx)

	assert.Eventually(t, func() bool {
		rec, err := svc.store.Get(context.Background(), "ten_sweep0000001")
		return err == nil && rec.Consumed > 0
	}, time.Second, 10*time.Millisecond)

	sw.Stop()
}

func TestSweeper_StopTerminatesLoop(t *testing.T) {
	svc, _ := newTestService()
	sw := NewSweeper(svc, time.Millisecond, discardLogger())

	done := make(chan struct{})
	go func() {
		sw.Start(context.Background())
		close(done)
	}()
	sw.Stop()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}

func TestSweeper_ContextCancelTerminatesLoop(t *testing.T) {
	svc, _ := newTestService()
	sw := NewSweeper(svc, time.Millisecond, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sw.Start(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop on context cancel")
	}
}

func TestNewSweeper_DefaultsInterval(t *testing.T) {
	svc, _ := newTestService()
	sw := NewSweeper(svc, 0, discardLogger())
	assert.Equal(t, 5*time.Minute, sw.interval)
}
