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

// SettlementEngine closes expired proposals. Only it moves a proposal out of
// the active state.
type SettlementEngine struct {
	base
	oracle  BalanceOracle
	content ContentStore
	relay   *RewardRelay
}

// Settle executes the decision of an expired proposal. Exactly one call per
// proposal succeeds; the others fail with ErrAlreadySettled. Reward delivery
// happens after the decision is committed and never undoes it.
func (s *SettlementEngine) Settle(ctx context.Context, proposalID string, now time.Time) (models.Outcome, error) {
	if err := validID(proposalID); err != nil {
		return models.OutcomeNone, err
	}
	// content id never changes, so it is safe to read before locking
	p, err := s.repo.GetProposal(proposalID)
	if err != nil {
		return models.OutcomeNone, err
	}

	p, votes, deltas, err := s.settleLocked(ctx, p.ContentID, proposalID, now)
	if err != nil {
		return models.OutcomeNone, err
	}

	logger.Logger.Info("Proposal settled",
		zap.String("proposal_id", p.ID),
		zap.String("content_id", p.ContentID),
		zap.String("outcome", string(p.Outcome)),
		zap.Uint64("remove_weight", p.RemoveWeight),
		zap.Uint64("keep_weight", p.KeepWeight),
		zap.Int("reward_deltas", len(deltas)))

	if p.Outcome == models.OutcomeKept {
		if r, ok := s.content.(ContentRestorer); ok {
			if err := r.ClearReview(ctx, p.ContentID); err != nil {
				logger.Logger.Warn("Failed clearing review flag",
					zap.String("content_id", p.ContentID), zap.Error(err))
			}
		}
	}

	for _, v := range votes {
		if err := s.oracle.Unlock(ctx, v.VoterID, p.ID); err != nil {
			logger.Logger.Warn("Balance unlock failed",
				zap.String("voter_id", v.VoterID), zap.String("proposal_id", p.ID), zap.Error(err))
		}
	}

	s.relay.deliver(ctx, deltas)
	return p.Outcome, nil
}

func (s *SettlementEngine) settleLocked(ctx context.Context, contentID, proposalID string, now time.Time) (*models.Proposal, []*models.Vote, []*models.RewardDelta, error) {
	unlockContent := s.locks.Lock(contentKey(contentID))
	defer unlockContent()
	unlockProposal := s.locks.Lock(proposalKey(proposalID))
	defer unlockProposal()

	p, err := s.repo.GetProposal(proposalID)
	if err != nil {
		return nil, nil, nil, err
	}
	if p.Status.Terminal() {
		return nil, nil, nil, models.ErrAlreadySettled
	}
	if now.Before(p.Deadline) {
		return nil, nil, nil, models.ErrNotYetExpired
	}

	votes, err := s.repo.ListVotes(p.ID)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("settlement: list votes: %w", err)
	}
	reports, err := s.repo.ListReports(p.ContentID)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("settlement: list reports: %w", err)
	}

	outcome := p.Decide()
	if outcome == models.OutcomeRemoved && s.content != nil {
		// runs before the commit so a failure leaves the proposal active for
		// the next attempt; the content store ignores repeats
		if err := s.content.MarkDeleted(ctx, p.ContentID); err != nil {
			return nil, nil, nil, fmt.Errorf("settlement: delete content %s: %w", p.ContentID, err)
		}
	}

	p.Outcome = outcome
	settledAt := now
	p.SettledAt = &settledAt
	if outcome == models.OutcomeRemoved {
		p.Status = models.StatusResolvedRemoved
	} else {
		p.Status = models.StatusResolvedKept
	}

	c := repository.NewChanges()
	c.PutProposal(p)
	c.ClearActiveProposal(p.ContentID)
	for _, r := range reports {
		c.ArchiveReport(r, p.ID)
	}
	c.SetReportCount(p.ContentID, 0)
	if outcome == models.OutcomeRemoved {
		c.MarkRemoved(p.ContentID, p.ID)
	}

	deltas := s.rewardPass(p, votes, reports, now)
	for _, d := range deltas {
		c.QueueDelta(d)
	}

	if err := s.repo.Apply(c); err != nil {
		return nil, nil, nil, fmt.Errorf("settlement: commit: %w", err)
	}
	return p, votes, deltas, nil
}

// rewardPass pays voters on the winning side and settles reporters: they
// earn a validation reward when the content is removed and a penalty when
// it is kept. Losing voters get nothing.
func (s *SettlementEngine) rewardPass(p *models.Proposal, votes []*models.Vote, reports []*models.Report, now time.Time) []*models.RewardDelta {
	winning := models.ChoiceKeep
	if p.Outcome == models.OutcomeRemoved {
		winning = models.ChoiceRemove
	}

	deltas := make([]*models.RewardDelta, 0, len(votes)+len(reports))
	for _, v := range votes {
		if v.Choice != winning || s.params.VoteReward == 0 {
			continue
		}
		deltas = append(deltas, &models.RewardDelta{
			ProposalID: p.ID,
			AccountID:  v.VoterID,
			Amount:     s.params.VoteReward,
			Reason:     models.ReasonVoteReward,
			CreatedAt:  now,
		})
	}

	amount, reason := s.params.ReportReward, models.ReasonReportReward
	if p.Outcome == models.OutcomeKept {
		amount, reason = s.params.ReportPenalty, models.ReasonReportPenalty
	}
	if amount == 0 {
		return deltas
	}
	for _, r := range reports {
		deltas = append(deltas, &models.RewardDelta{
			ProposalID: p.ID,
			AccountID:  r.ReporterID,
			Amount:     amount,
			Reason:     reason,
			CreatedAt:  now,
		})
	}
	return deltas
}
