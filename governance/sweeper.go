package governance

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"modgov/logger"
	"modgov/models"
)

// Sweeper settles proposals whose window has passed. It may race with
// user-triggered settlement; the loser sees ErrAlreadySettled and moves on.
type Sweeper struct {
	proposals   *ProposalManager
	settlement  *SettlementEngine
	Concurrency int
}

// RunOnce settles every expired active proposal and returns how many this
// call settled. Failures on one proposal do not stop the others.
func (s *Sweeper) RunOnce(ctx context.Context) (int, error) {
	active, err := s.proposals.ListActive(ctx)
	if err != nil {
		return 0, err
	}
	now := s.proposals.clock.Now()

	var g errgroup.Group
	if s.Concurrency > 0 {
		g.SetLimit(s.Concurrency)
	}
	var settled atomic.Int64
	for _, p := range active {
		if !p.Expired(now) {
			continue
		}
		id := p.ID
		g.Go(func() error {
			outcome, err := s.settlement.Settle(ctx, id, now)
			switch {
			case err == nil:
				settled.Add(1)
				logger.Logger.Debug("Sweeper settled proposal",
					zap.String("proposal_id", id), zap.String("outcome", string(outcome)))
				return nil
			case errors.Is(err, models.ErrAlreadySettled):
				return nil
			default:
				logger.Logger.Warn("Sweeper failed settling proposal",
					zap.String("proposal_id", id), zap.Error(err))
				return err
			}
		})
	}
	err = g.Wait()
	return int(settled.Load()), err
}

// Run calls RunOnce every interval until ctx is done.
func (s *Sweeper) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := s.RunOnce(ctx); err != nil {
				logger.Logger.Warn("Sweep cycle incomplete", zap.Int("settled", n), zap.Error(err))
			} else if n > 0 {
				logger.Logger.Info("Sweep cycle settled proposals", zap.Int("settled", n))
			}
		}
	}
}
