package governance_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"modgov/models"
)

func TestCastVote_AccumulatesWeights(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	p := h.openProposal(t, "post-1")
	h.oracle.SetBalance("a", 10)
	h.oracle.SetBalance("b", 7)
	h.oracle.SetBalance("c", 3)

	_, err := h.engine.Tally.CastVote(ctx, p.ID, "a", models.ChoiceRemove)
	require.NoError(t, err)
	_, err = h.engine.Tally.CastVote(ctx, p.ID, "b", models.ChoiceKeep)
	require.NoError(t, err)
	vote, err := h.engine.Tally.CastVote(ctx, p.ID, "c", models.ChoiceRemove)
	require.NoError(t, err)
	require.EqualValues(t, 3, vote.Weight)

	tally, err := h.engine.Tally.GetTally(ctx, p.ID)
	require.NoError(t, err)
	require.EqualValues(t, 13, tally.RemoveWeight)
	require.EqualValues(t, 7, tally.KeepWeight)

	votes, err := h.engine.Tally.ListVotes(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, votes, 3)
	require.True(t, h.oracle.Locked("a", p.ID))
}

func TestCastVote_Rejections(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	p := h.openProposal(t, "post-1")
	h.oracle.SetBalance("a", 10)

	_, err := h.engine.Tally.CastVote(ctx, p.ID, "a", models.ChoiceRemove)
	require.NoError(t, err)

	t.Run("already voted regardless of choice", func(t *testing.T) {
		_, err := h.engine.Tally.CastVote(ctx, p.ID, "a", models.ChoiceKeep)
		require.ErrorIs(t, err, models.ErrAlreadyVoted)
		_, err = h.engine.Tally.CastVote(ctx, p.ID, "a", models.ChoiceRemove)
		require.ErrorIs(t, err, models.ErrAlreadyVoted)
		require.True(t, h.oracle.Locked("a", p.ID))
	})

	t.Run("no weight", func(t *testing.T) {
		_, err := h.engine.Tally.CastVote(ctx, p.ID, "broke", models.ChoiceKeep)
		require.ErrorIs(t, err, models.ErrNotEligible)
		require.False(t, h.oracle.Locked("broke", p.ID))
	})

	t.Run("unknown proposal", func(t *testing.T) {
		_, err := h.engine.Tally.CastVote(ctx, "nope", "a", models.ChoiceKeep)
		require.ErrorIs(t, err, models.ErrNotFound)
	})

	t.Run("bad choice", func(t *testing.T) {
		_, err := h.engine.Tally.CastVote(ctx, p.ID, "a", models.Choice("abstain"))
		require.ErrorIs(t, err, models.ErrInvalidInput)
	})

	tally, err := h.engine.Tally.GetTally(ctx, p.ID)
	require.NoError(t, err)
	require.EqualValues(t, 10, tally.RemoveWeight)
	require.Zero(t, tally.KeepWeight)
}

func TestCastVote_DeadlineIsBinding(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	p := h.openProposal(t, "post-1")
	h.oracle.SetBalance("late", 5)

	h.clock.Set(p.Deadline.Add(-time.Nanosecond))
	_, err := h.engine.Tally.CastVote(ctx, p.ID, "early", models.ChoiceKeep)
	require.ErrorIs(t, err, models.ErrNotEligible)

	h.clock.Set(p.Deadline)
	_, err = h.engine.Tally.CastVote(ctx, p.ID, "late", models.ChoiceKeep)
	require.ErrorIs(t, err, models.ErrVotingWindowClosed)

	got, err := h.engine.Proposals.GetProposal(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusActive, got.Status)
}

func TestCastVote_AfterSettlement(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	p := h.openProposal(t, "post-1")
	h.oracle.SetBalance("a", 1)

	h.clock.Set(p.Deadline)
	_, err := h.engine.Settlement.Settle(ctx, p.ID, h.clock.Now())
	require.NoError(t, err)

	_, err = h.engine.Tally.CastVote(ctx, p.ID, "a", models.ChoiceRemove)
	require.ErrorIs(t, err, models.ErrProposalNotActive)
}

func TestCastVote_WeightIsSnapshotted(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	p := h.openProposal(t, "post-1")
	h.oracle.SetBalance("a", 10)

	_, err := h.engine.Tally.CastVote(ctx, p.ID, "a", models.ChoiceRemove)
	require.NoError(t, err)

	h.oracle.SetBalance("a", 0)
	tally, err := h.engine.Tally.GetTally(ctx, p.ID)
	require.NoError(t, err)
	require.EqualValues(t, 10, tally.RemoveWeight)

	h.clock.Set(p.Deadline)
	outcome, err := h.engine.Settlement.Settle(ctx, p.ID, h.clock.Now())
	require.NoError(t, err)
	require.Equal(t, models.OutcomeRemoved, outcome)
}

func TestCastVote_ConcurrentDoubleVote(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	p := h.openProposal(t, "post-1")
	h.oracle.SetBalance("a", 10)

	results := make([]error, 32)
	var g errgroup.Group
	for i := range results {
		i := i
		choice := models.ChoiceRemove
		if i%2 == 1 {
			choice = models.ChoiceKeep
		}
		g.Go(func() error {
			_, results[i] = h.engine.Tally.CastVote(ctx, p.ID, "a", choice)
			return nil
		})
	}
	require.NoError(t, g.Wait())

	accepted := 0
	for _, err := range results {
		if err == nil {
			accepted++
			continue
		}
		require.ErrorIs(t, err, models.ErrAlreadyVoted)
	}
	require.Equal(t, 1, accepted)

	tally, err := h.engine.Tally.GetTally(ctx, p.ID)
	require.NoError(t, err)
	require.EqualValues(t, 10, tally.RemoveWeight+tally.KeepWeight)
}

func TestCastVote_ManyVotersConcurrently(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	p := h.openProposal(t, "post-1")

	var g errgroup.Group
	for i := 0; i < 64; i++ {
		voter := reporterID(1000 + i)
		h.oracle.SetBalance(voter, 2)
		choice := models.ChoiceRemove
		if i%4 == 0 {
			choice = models.ChoiceKeep
		}
		g.Go(func() error {
			_, err := h.engine.Tally.CastVote(ctx, p.ID, voter, choice)
			return err
		})
	}
	require.NoError(t, g.Wait())

	tally, err := h.engine.Tally.GetTally(ctx, p.ID)
	require.NoError(t, err)
	require.EqualValues(t, 96, tally.RemoveWeight)
	require.EqualValues(t, 32, tally.KeepWeight)
}
