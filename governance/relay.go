package governance

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"modgov/logger"
	"modgov/models"
	"modgov/repository"
)

// RewardRelay delivers queued reward deltas to the reward ledger. A delta
// leaves the queue only after the ledger accepted it.
type RewardRelay struct {
	repo      repository.GovernanceRepositoryInterface
	ledger    RewardLedger
	BatchSize int
}

// deliver makes one attempt per delta right after settlement. Whatever fails
// stays queued for RunOnce.
func (r *RewardRelay) deliver(ctx context.Context, deltas []*models.RewardDelta) {
	if r.ledger == nil || len(deltas) == 0 {
		return
	}
	c := repository.NewChanges()
	failed := 0
	for _, d := range deltas {
		if err := r.ledger.ApplyDelta(ctx, *d); err != nil {
			failed++
			continue
		}
		c.DropDelta(d)
	}
	if failed > 0 {
		logger.Logger.Warn("Reward deltas left queued",
			zap.String("proposal_id", deltas[0].ProposalID), zap.Int("failed", failed))
	}
	if err := r.repo.Apply(c); err != nil {
		logger.Logger.Error("Failed dropping delivered deltas", zap.Error(err))
	}
}

// RunOnce publishes a bounded batch of queued deltas. It stops on the first
// failure so the next cycle resumes from there.
func (r *RewardRelay) RunOnce(ctx context.Context) (int, error) {
	if r.ledger == nil {
		return 0, nil
	}
	pending, err := r.repo.ListPendingDeltas(r.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("relay: list pending: %w", err)
	}

	delivered := 0
	c := repository.NewChanges()
	var deliverErr error
	for _, d := range pending {
		if err := ctx.Err(); err != nil {
			deliverErr = err
			break
		}
		if err := r.ledger.ApplyDelta(ctx, *d); err != nil {
			d.Attempts++
			c.QueueDelta(d)
			deliverErr = fmt.Errorf("relay: deliver %s: %w", d.Key(), err)
			break
		}
		c.DropDelta(d)
		delivered++
	}

	if err := r.repo.Apply(c); err != nil {
		return delivered, fmt.Errorf("relay: update queue: %w", err)
	}
	return delivered, deliverErr
}

// Run calls RunOnce every interval until ctx is done.
func (r *RewardRelay) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := r.RunOnce(ctx)
			if err != nil {
				logger.Logger.Warn("Reward relay cycle failed", zap.Int("delivered", n), zap.Error(err))
				continue
			}
			if n > 0 {
				logger.Logger.Info("Reward deltas delivered", zap.Int("delivered", n))
			}
		}
	}
}
