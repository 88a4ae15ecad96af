package governance

import (
	"context"
	"time"

	"modgov/models"
)

// Clock supplies the time every deadline and cooldown is compared against.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// SystemClock reads the wall clock in UTC.
var SystemClock Clock = systemClock{}

// BalanceOracle reports voting weight and offers an advisory lock on it.
// Lock and Unlock are best effort; the one-vote-per-voter rule does not
// depend on them.
type BalanceOracle interface {
	WeightOf(ctx context.Context, accountID string, at time.Time) (uint64, error)
	Lock(ctx context.Context, accountID, proposalID string) error
	Unlock(ctx context.Context, accountID, proposalID string) error
}

// ReporterEligibility folds account age, stake and reputation checks into
// one answer.
type ReporterEligibility interface {
	ReporterEligible(ctx context.Context, accountID, contentID string, now time.Time) (bool, error)
}

// ContentStore applies moderation state to content. Both calls are idempotent.
type ContentStore interface {
	FlagUnderReview(ctx context.Context, contentID string) error
	MarkDeleted(ctx context.Context, contentID string) error
}

// ContentRestorer is optionally implemented by a ContentStore that can lift
// the review flag from content that was kept.
type ContentRestorer interface {
	ClearReview(ctx context.Context, contentID string) error
}

// RewardLedger receives settlement deltas. Implementations must treat a
// repeated delta with the same key as already applied, and return an error
// wrapping models.ErrLedgerUnavailable when they cannot accept writes.
type RewardLedger interface {
	ApplyDelta(ctx context.Context, delta models.RewardDelta) error
}

// Params are the tunables of the engine. Deployments always run with
// DefaultReportThreshold and DefaultVotingWindow; tests shrink them.
type Params struct {
	ReportThreshold int
	VotingWindow    time.Duration
	ReportCooldown  time.Duration
	VoteReward      int64
	ReportReward    int64
	ReportPenalty   int64
}

const (
	DefaultReportThreshold = 50
	DefaultVotingWindow    = 24 * time.Hour
)

func DefaultParams() Params {
	return Params{
		ReportThreshold: DefaultReportThreshold,
		VotingWindow:    DefaultVotingWindow,
		ReportCooldown:  time.Minute,
		VoteReward:      10,
		ReportReward:    5,
		ReportPenalty:   -5,
	}
}
