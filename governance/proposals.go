package governance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"modgov/logger"
	"modgov/models"
	"modgov/repository"
)

// ProposalManager owns proposal creation and reads.
type ProposalManager struct {
	base
	content ContentStore
}

// CreateProposal opens a vote on contentID. When one is already active it
// is returned unchanged instead of a second one being created.
func (m *ProposalManager) CreateProposal(ctx context.Context, contentID string) (*models.Proposal, error) {
	if err := validID(contentID); err != nil {
		return nil, err
	}

	p, created, err := m.createLocked(contentID)
	if err != nil {
		return nil, err
	}
	if created {
		m.announce(ctx, p)
	}
	return p, nil
}

func (m *ProposalManager) createLocked(contentID string) (*models.Proposal, bool, error) {
	unlock := m.locks.Lock(contentKey(contentID))
	defer unlock()

	c := repository.NewChanges()
	p, err := m.open(contentID, m.clock.Now(), c)
	if errors.Is(err, models.ErrProposalAlreadyActive) {
		return p, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if err := m.repo.Apply(c); err != nil {
		return nil, false, fmt.Errorf("proposals: store proposal: %w", err)
	}
	return p, true, nil
}

// open queues a new active proposal for contentID on c. The caller must hold
// the content lock. If a proposal is already active it is returned together
// with ErrProposalAlreadyActive.
func (m *ProposalManager) open(contentID string, now time.Time, c *repository.Changes) (*models.Proposal, error) {
	activeID, err := m.repo.GetActiveProposalID(contentID)
	if err != nil {
		return nil, fmt.Errorf("proposals: lookup active: %w", err)
	}
	if activeID != "" {
		existing, err := m.repo.GetProposal(activeID)
		if err != nil {
			return nil, fmt.Errorf("proposals: load active %s: %w", activeID, err)
		}
		return existing, models.ErrProposalAlreadyActive
	}

	p := &models.Proposal{
		ID:        uuid.NewString(),
		ContentID: contentID,
		CreatedAt: now,
		Deadline:  now.Add(m.params.VotingWindow),
		Status:    models.StatusActive,
	}
	c.PutProposal(p)
	c.SetActiveProposal(contentID, p.ID)
	return p, nil
}

// announce runs once the proposal is committed. The content store call is
// idempotent, so a failure only delays the "under review" badge.
func (m *ProposalManager) announce(ctx context.Context, p *models.Proposal) {
	logger.Logger.Info("Proposal opened",
		zap.String("proposal_id", p.ID),
		zap.String("content_id", p.ContentID),
		zap.Time("deadline", p.Deadline))

	if m.content == nil {
		return
	}
	if err := m.content.FlagUnderReview(ctx, p.ContentID); err != nil {
		logger.Logger.Warn("Failed flagging content under review",
			zap.String("content_id", p.ContentID), zap.Error(err))
	}
}

// GetProposal returns the proposal with the given id or ErrNotFound.
func (m *ProposalManager) GetProposal(_ context.Context, id string) (*models.Proposal, error) {
	if err := validID(id); err != nil {
		return nil, err
	}
	return m.repo.GetProposal(id)
}

// IsExpired is true when the window has passed and nobody settled yet.
func (m *ProposalManager) IsExpired(ctx context.Context, id string, now time.Time) (bool, error) {
	p, err := m.GetProposal(ctx, id)
	if err != nil {
		return false, err
	}
	return p.Expired(now), nil
}

// ActiveProposal returns the content's active proposal or ErrNotFound.
func (m *ProposalManager) ActiveProposal(_ context.Context, contentID string) (*models.Proposal, error) {
	if err := validID(contentID); err != nil {
		return nil, err
	}
	id, err := m.repo.GetActiveProposalID(contentID)
	if err != nil {
		return nil, err
	}
	if id == "" {
		return nil, models.ErrNotFound
	}
	return m.repo.GetProposal(id)
}

func (m *ProposalManager) ListActive(_ context.Context) ([]*models.Proposal, error) {
	return m.repo.ListActiveProposals()
}
