package meter

import (
	"context"
	"log/slog"
	"time"

	"github.com/skyhook-dev/skyhook/internal/metrics"
)

// Sweeper periodically settles every tracked tenant.
type Sweeper struct {
	service  *Service
	interval time.Duration
	logger   *slog.Logger
	stop     chan struct{}
}

// NewSweeper creates a settlement sweeper.
func NewSweeper(service *Service, interval time.Duration, logger *slog.Logger) *Sweeper {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Sweeper{
		service:  service,
		interval: interval,
		logger:   logger,
		stop:     make(chan struct{}, 1),
	}
}

// Start begins the settlement loop. Call in a goroutine.
func (s *Sweeper) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stop:
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

// Stop signals the sweeper to stop.
func (s *Sweeper) Stop() {
	select {
	case s.stop <- struct{}{}:
	default:
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	start := time.Now()
	settled, failed := s.service.SettleAll(ctx)
	metrics.SweepDuration.Observe(time.Since(start).Seconds())
	metrics.SettlementsTotal.Add(float64(settled))

	if failed > 0 {
		s.logger.Warn("settlement sweep finished with failures",
			"settled", settled, "failed", failed)
		return
	}
	if settled > 0 {
		s.logger.Debug("settlement sweep finished", "settled", settled)
	}
}
