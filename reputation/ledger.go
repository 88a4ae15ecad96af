// Package reputation is the reward ledger settlement pays into. It keeps a
// score and a participation streak per account.
package reputation

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/syndtr/goleveldb/leveldb"
	"go.uber.org/zap"

	"modgov/db"
	"modgov/logger"
	"modgov/models"
)

const (
	statePrefix   = "reputation:"
	appliedPrefix = "applied:"
)

type Ledger struct {
	db  *db.LevelDB
	mu  sync.Mutex
	now func() time.Time
}

func NewLedger(ldb *db.LevelDB) *Ledger {
	return &Ledger{db: ldb, now: func() time.Time { return time.Now().UTC() }}
}

// ApplyDelta adds the delta to the account's score. A delta whose key was
// applied before is acknowledged without effect. Winning votes extend the
// streak, a report penalty resets it. Storage failures are reported as
// models.ErrLedgerUnavailable.
func (l *Ledger) ApplyDelta(ctx context.Context, delta models.RewardDelta) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", models.ErrLedgerUnavailable, err)
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	marker := []byte(appliedPrefix + delta.Key())
	done, err := l.db.Has(marker)
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrLedgerUnavailable, err)
	}
	if done {
		return nil
	}

	st, err := l.get(delta.AccountID)
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrLedgerUnavailable, err)
	}
	st.Score += delta.Amount
	switch delta.Reason {
	case models.ReasonVoteReward:
		st.Streak++
	case models.ReasonReportPenalty:
		st.Streak = 0
	}
	st.UpdatedAt = l.now()

	data, err := json.Marshal(st)
	if err != nil {
		return err
	}
	batch := new(leveldb.Batch)
	batch.Put([]byte(statePrefix+delta.AccountID), data)
	batch.Put(marker, []byte(st.UpdatedAt.Format(time.RFC3339Nano)))
	if err := l.db.Write(batch); err != nil {
		return fmt.Errorf("%w: %v", models.ErrLedgerUnavailable, err)
	}

	logger.Logger.Debug("Reputation delta applied",
		zap.String("account_id", delta.AccountID),
		zap.String("reason", string(delta.Reason)),
		zap.Int64("amount", delta.Amount),
		zap.Int64("score", st.Score))
	return nil
}

// Get returns the account's state; unknown accounts start at zero.
func (l *Ledger) Get(_ context.Context, accountID string) (*models.ReputationState, error) {
	return l.get(accountID)
}

// Score implements oracle.ReputationReader.
func (l *Ledger) Score(ctx context.Context, accountID string) (int64, error) {
	st, err := l.Get(ctx, accountID)
	if err != nil {
		return 0, err
	}
	return st.Score, nil
}

func (l *Ledger) get(accountID string) (*models.ReputationState, error) {
	data, err := l.db.Get([]byte(statePrefix + accountID))
	if err != nil {
		if db.IsNotFound(err) {
			return &models.ReputationState{AccountID: accountID}, nil
		}
		return nil, err
	}
	var st models.ReputationState
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, err
	}
	return &st, nil
}
