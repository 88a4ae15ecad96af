package oracle

import (
	"context"
	"fmt"
	"time"
)

type AccountAges interface {
	AccountCreatedAt(ctx context.Context, accountID string) (time.Time, bool, error)
}

type Balances interface {
	WeightOf(ctx context.Context, accountID string, at time.Time) (uint64, error)
}

type ReputationReader interface {
	Score(ctx context.Context, accountID string) (int64, error)
}

// Eligibility decides whether an account may file reports: it must be old
// enough, hold at least MinStake and, when Reputation is set, not have
// fallen below MinReputation through penalties for rejected reports.
// The per-reporter cooldown is enforced by the report ledger itself.
type Eligibility struct {
	Accounts      AccountAges
	Balances      Balances
	Reputation    ReputationReader
	MinAccountAge time.Duration
	MinStake      uint64
	MinReputation int64
}

func (e *Eligibility) ReporterEligible(ctx context.Context, accountID, _ string, now time.Time) (bool, error) {
	if e.MinAccountAge > 0 {
		created, known, err := e.Accounts.AccountCreatedAt(ctx, accountID)
		if err != nil {
			return false, fmt.Errorf("eligibility: account age: %w", err)
		}
		if !known || now.Sub(created) < e.MinAccountAge {
			return false, nil
		}
	}

	if e.MinStake > 0 {
		stake, err := e.Balances.WeightOf(ctx, accountID, now)
		if err != nil {
			return false, fmt.Errorf("eligibility: stake: %w", err)
		}
		if stake < e.MinStake {
			return false, nil
		}
	}

	if e.Reputation != nil {
		score, err := e.Reputation.Score(ctx, accountID)
		if err != nil {
			return false, fmt.Errorf("eligibility: reputation: %w", err)
		}
		if score < e.MinReputation {
			return false, nil
		}
	}
	return true, nil
}
