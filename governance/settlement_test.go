package governance_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"modgov/models"
)

func TestSettle_NotYetExpired(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	p := h.openProposal(t, "post-1")

	_, err := h.engine.Settlement.Settle(ctx, p.ID, p.Deadline.Add(-time.Second))
	require.ErrorIs(t, err, models.ErrNotYetExpired)

	expired, err := h.engine.Proposals.IsExpired(ctx, p.ID, p.Deadline.Add(-time.Second))
	require.NoError(t, err)
	require.False(t, expired)
	expired, err = h.engine.Proposals.IsExpired(ctx, p.ID, p.Deadline)
	require.NoError(t, err)
	require.True(t, expired)

	_, err = h.engine.Settlement.Settle(ctx, "missing", p.Deadline)
	require.ErrorIs(t, err, models.ErrNotFound)
}

func TestSettle_TieKeepsContent(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	p := h.openProposal(t, "post-1")
	h.oracle.SetBalance("a", 5)
	h.oracle.SetBalance("b", 5)

	_, err := h.engine.Tally.CastVote(ctx, p.ID, "a", models.ChoiceRemove)
	require.NoError(t, err)
	_, err = h.engine.Tally.CastVote(ctx, p.ID, "b", models.ChoiceKeep)
	require.NoError(t, err)

	outcome, err := h.engine.Settlement.Settle(ctx, p.ID, p.Deadline)
	require.NoError(t, err)
	require.Equal(t, models.OutcomeKept, outcome)

	got, err := h.engine.Proposals.GetProposal(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusResolvedKept, got.Status)
	require.Equal(t, "rejected", got.Status.String())

	expired, err := h.engine.Proposals.IsExpired(ctx, p.ID, p.Deadline.Add(time.Hour))
	require.NoError(t, err)
	require.False(t, expired)

	_, deleted := h.content.counts()
	require.Zero(t, deleted)
	st, err := h.content.Get(ctx, "post-1")
	require.NoError(t, err)
	require.Equal(t, models.ContentVisible, st.State)

	require.EqualValues(t, 10, h.score(t, "b"))
	require.Zero(t, h.score(t, "a"))
	require.EqualValues(t, -5, h.score(t, reporterID(0)))
	require.False(t, h.oracle.Locked("a", p.ID))
	require.False(t, h.oracle.Locked("b", p.ID))

	archived, err := h.repo.ListArchivedReports(p.ID)
	require.NoError(t, err)
	require.Len(t, archived, 50)
}

func TestSettle_ConcurrentTriggersSettleOnce(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	p := h.openProposal(t, "post-1")
	h.oracle.SetBalance("a", 3)
	_, err := h.engine.Tally.CastVote(ctx, p.ID, "a", models.ChoiceRemove)
	require.NoError(t, err)

	results := make([]error, 16)
	outcomes := make([]models.Outcome, 16)
	var g errgroup.Group
	for i := range results {
		i := i
		g.Go(func() error {
			outcomes[i], results[i] = h.engine.Settlement.Settle(ctx, p.ID, p.Deadline.Add(time.Minute))
			return nil
		})
	}
	require.NoError(t, g.Wait())

	settled := 0
	for i, err := range results {
		if err == nil {
			settled++
			require.Equal(t, models.OutcomeRemoved, outcomes[i])
			continue
		}
		require.ErrorIs(t, err, models.ErrAlreadySettled)
	}
	require.Equal(t, 1, settled)

	_, deleted := h.content.counts()
	require.Equal(t, 1, deleted)
	require.EqualValues(t, 10, h.score(t, "a"))
	require.EqualValues(t, 5, h.score(t, reporterID(7)))

	_, err = h.engine.Settlement.Settle(ctx, p.ID, p.Deadline.Add(time.Hour))
	require.ErrorIs(t, err, models.ErrAlreadySettled)
}

func TestSettle_LedgerOutageDoesNotUndoDecision(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	p := h.openProposal(t, "post-1")
	h.oracle.SetBalance("a", 3)
	_, err := h.engine.Tally.CastVote(ctx, p.ID, "a", models.ChoiceRemove)
	require.NoError(t, err)

	h.rewards.setDown(true)
	outcome, err := h.engine.Settlement.Settle(ctx, p.ID, p.Deadline)
	require.NoError(t, err)
	require.Equal(t, models.OutcomeRemoved, outcome)

	got, err := h.engine.Proposals.GetProposal(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusResolvedRemoved, got.Status)

	pending, err := h.repo.ListPendingDeltas(0)
	require.NoError(t, err)
	require.Len(t, pending, 51)

	delivered, err := h.engine.Relay.RunOnce(ctx)
	require.ErrorIs(t, err, models.ErrLedgerUnavailable)
	require.Zero(t, delivered)

	pending, err = h.repo.ListPendingDeltas(0)
	require.NoError(t, err)
	require.Len(t, pending, 51)
	require.Equal(t, 1, pending[0].Attempts)

	h.rewards.setDown(false)
	total := 0
	for {
		n, err := h.engine.Relay.RunOnce(ctx)
		require.NoError(t, err)
		if n == 0 {
			break
		}
		total += n
	}
	require.Equal(t, 51, total)
	require.EqualValues(t, 10, h.score(t, "a"))
	require.EqualValues(t, 5, h.score(t, reporterID(49)))

	// replaying an already applied delta has no further effect
	_, err = h.engine.Relay.RunOnce(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 10, h.score(t, "a"))
}

func TestSettle_ContentStoreFailureLeavesProposalActive(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	p := h.openProposal(t, "post-1")
	h.oracle.SetBalance("a", 3)
	_, err := h.engine.Tally.CastVote(ctx, p.ID, "a", models.ChoiceRemove)
	require.NoError(t, err)

	h.content.failDelete = true
	_, err = h.engine.Settlement.Settle(ctx, p.ID, p.Deadline)
	require.Error(t, err)

	got, err := h.engine.Proposals.GetProposal(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusActive, got.Status)
	pending, err := h.repo.ListPendingDeltas(0)
	require.NoError(t, err)
	require.Empty(t, pending)

	h.content.failDelete = false
	outcome, err := h.engine.Settlement.Settle(ctx, p.ID, p.Deadline)
	require.NoError(t, err)
	require.Equal(t, models.OutcomeRemoved, outcome)
}

func TestSweeper_SettlesOnlyExpired(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	early := h.openProposal(t, "post-1")

	h.clock.Advance(2 * time.Hour)
	late := h.openProposal(t, "post-2")
	require.NotEqual(t, early.ID, late.ID)

	sweeper := h.engine.NewSweeper(4)

	h.clock.Set(early.Deadline)
	n, err := sweeper.RunOnce(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	got, err := h.engine.Proposals.GetProposal(ctx, late.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusActive, got.Status)

	h.clock.Set(late.Deadline)
	n, err = sweeper.RunOnce(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	active, err := h.engine.Proposals.ListActive(ctx)
	require.NoError(t, err)
	require.Empty(t, active)
}

func TestCreateProposal_Idempotent(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	first, err := h.engine.Proposals.CreateProposal(ctx, "post-1")
	require.NoError(t, err)
	second, err := h.engine.Proposals.CreateProposal(ctx, "post-1")
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
	require.True(t, first.Deadline.Equal(t0.Add(24*time.Hour)))

	flagged, _ := h.content.counts()
	require.Equal(t, 1, flagged)

	_, err = h.engine.Proposals.GetProposal(ctx, "missing")
	require.ErrorIs(t, err, models.ErrNotFound)
}
