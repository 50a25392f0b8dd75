package sweeper

import (
	"context"
	"log/slog"
	"time"

	"vstreet/native/lending"
	"vstreet/observability/metrics"
)

// Target accrues interest and liquidates undercollateralised positions.
type Target interface {
	Sweep(ctx context.Context) (int, error)
}

// Sweeper runs Target.Sweep on a fixed interval so price-independent
// liquidations (borrow interest pushing an LTV over the ceiling) are not
// left waiting for the next user operation.
type Sweeper struct {
	target   Target
	interval time.Duration
	logger   *slog.Logger
}

// New constructs a sweeper. A non-positive interval defaults to one minute.
func New(target Target, interval time.Duration, logger *slog.Logger) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{target: target, interval: interval, logger: logger}
}

// Run blocks until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single sweep and reports the number of liquidations.
func (s *Sweeper) RunOnce(ctx context.Context) int {
	n, err := s.target.Sweep(ctx)
	metrics.Lending().ObserveOperation(lending.ModuleName, "sweep", err)
	if err != nil {
		s.logger.Warn("sweep failed", slog.Any("error", err))
		return 0
	}
	if n > 0 {
		metrics.Lending().ObserveLiquidations(n)
		s.logger.Info("sweep liquidated positions", slog.Int("count", n))
	}
	return n
}
