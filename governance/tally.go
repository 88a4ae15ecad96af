package governance

import (
	"context"
	"errors"
	"fmt"
	"math"

	"go.uber.org/zap"

	"modgov/logger"
	"modgov/models"
	"modgov/repository"
)

// VoteTally owns vote records and the weight sums on proposals.
type VoteTally struct {
	base
	oracle BalanceOracle
}

// CastVote records voterID's choice with the weight the oracle reports now.
// The deadline, not the stored status, closes the window: a vote after the
// deadline is refused even if settlement has not run yet.
func (t *VoteTally) CastVote(ctx context.Context, proposalID, voterID string, choice models.Choice) (*models.Vote, error) {
	if err := validID(proposalID); err != nil {
		return nil, err
	}
	if err := validID(voterID); err != nil {
		return nil, err
	}
	if !choice.Valid() {
		return nil, models.ErrInvalidInput
	}

	unlock := t.locks.Lock(proposalKey(proposalID))
	defer unlock()

	p, err := t.repo.GetProposal(proposalID)
	if err != nil {
		return nil, err
	}
	if p.Status != models.StatusActive {
		return nil, models.ErrProposalNotActive
	}
	now := t.clock.Now()
	if !now.Before(p.Deadline) {
		return nil, models.ErrVotingWindowClosed
	}

	weight, err := t.oracle.WeightOf(ctx, voterID, now)
	if err != nil {
		return nil, fmt.Errorf("tally: read weight: %w", err)
	}
	if weight == 0 {
		return nil, models.ErrNotEligible
	}

	_, err = t.repo.GetVote(proposalID, voterID)
	if err == nil {
		return nil, models.ErrAlreadyVoted
	}
	if !errors.Is(err, models.ErrNotFound) {
		return nil, fmt.Errorf("tally: lookup vote: %w", err)
	}

	locked := true
	if err := t.oracle.Lock(ctx, voterID, proposalID); err != nil {
		locked = false
		logger.Logger.Warn("Balance lock not acquired",
			zap.String("voter_id", voterID), zap.String("proposal_id", proposalID), zap.Error(err))
	}

	vote := &models.Vote{
		ProposalID: proposalID,
		VoterID:    voterID,
		Choice:     choice,
		Weight:     weight,
		CastAt:     now,
	}
	switch choice {
	case models.ChoiceRemove:
		p.RemoveWeight = addWeight(p.RemoveWeight, weight)
	case models.ChoiceKeep:
		p.KeepWeight = addWeight(p.KeepWeight, weight)
	}

	c := repository.NewChanges()
	c.PutVote(vote)
	c.PutProposal(p)
	if err := t.repo.Apply(c); err != nil {
		if locked {
			if uerr := t.oracle.Unlock(ctx, voterID, proposalID); uerr != nil {
				logger.Logger.Warn("Balance unlock failed", zap.String("voter_id", voterID), zap.Error(uerr))
			}
		}
		return nil, fmt.Errorf("tally: store vote: %w", err)
	}

	logger.Logger.Info("Vote cast",
		zap.String("proposal_id", proposalID),
		zap.String("voter_id", voterID),
		zap.String("choice", string(choice)),
		zap.Uint64("weight", weight))
	return vote, nil
}

// saturates instead of wrapping
func addWeight(sum, w uint64) uint64 {
	if sum > math.MaxUint64-w {
		return math.MaxUint64
	}
	return sum + w
}

// GetTally returns the committed weight sums of a proposal.
func (t *VoteTally) GetTally(_ context.Context, proposalID string) (models.Tally, error) {
	if err := validID(proposalID); err != nil {
		return models.Tally{}, err
	}
	p, err := t.repo.GetProposal(proposalID)
	if err != nil {
		return models.Tally{}, err
	}
	return models.Tally{
		ProposalID:   p.ID,
		RemoveWeight: p.RemoveWeight,
		KeepWeight:   p.KeepWeight,
	}, nil
}

func (t *VoteTally) ListVotes(_ context.Context, proposalID string) ([]*models.Vote, error) {
	if err := validID(proposalID); err != nil {
		return nil, err
	}
	if _, err := t.repo.GetProposal(proposalID); err != nil {
		return nil, err
	}
	return t.repo.ListVotes(proposalID)
}
