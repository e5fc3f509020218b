package eduAuth

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// SweepChallenges removes expired login codes and reset tokens and returns
// how many were removed. Expired records are also dropped lazily when read,
// so sweeping only bounds memory.
func (e *Engine) SweepChallenges(ctx context.Context) (int, error) {
	now := e.now()
	removed, err := e.twoFactor.Sweep(ctx, now)
	if err != nil {
		return removed, backendError("sweep codes", err)
	}
	if e.resets != nil {
		n, err := e.resets.Sweep(ctx, now)
		removed += n
		if err != nil {
			return removed, backendError("sweep reset tokens", err)
		}
	}
	e.metricAdd(MetricChallengesSwept, removed)
	return removed, nil
}

// RunSweeper calls SweepChallenges every TwoFactor.SweepInterval until ctx
// is done.
func (e *Engine) RunSweeper(ctx context.Context) {
	ticker := time.NewTicker(e.config.TwoFactor.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := e.SweepChallenges(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				e.logger.Warn("challenge sweep failed", zap.Error(err))
				continue
			}
			if n > 0 {
				e.logger.Debug("challenge sweep", zap.Int("removed", n))
			}
		}
	}
}
