package oracle

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrLockHeld = errors.New("oracle: balance already locked for this proposal")

const (
	balancePrefix = "balance:"
	createdPrefix = "account_created:"
	lockPrefix    = "vote_lock:"
)

func lockKey(accountID, proposalID string) string {
	return lockPrefix + accountID + ":" + proposalID
}

// NewRedisClient parses a redis:// URL into a client.
func NewRedisClient(url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("oracle: parse redis url: %w", err)
	}
	return redis.NewClient(opt), nil
}

// Redis reads balances published by the token indexer under balance:<account>
// and account creation times (unix seconds) under account_created:<account>.
// Vote locks are SETNX keys that expire after lockTTL so a lost unlock
// cannot pin a balance forever.
type Redis struct {
	rdb     *redis.Client
	lockTTL time.Duration
}

func NewRedis(rdb *redis.Client, lockTTL time.Duration) *Redis {
	return &Redis{rdb: rdb, lockTTL: lockTTL}
}

func (r *Redis) WeightOf(ctx context.Context, accountID string, _ time.Time) (uint64, error) {
	w, err := r.rdb.Get(ctx, balancePrefix+accountID).Uint64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("oracle: read balance of %s: %w", accountID, err)
	}
	return w, nil
}

func (r *Redis) AccountCreatedAt(ctx context.Context, accountID string) (time.Time, bool, error) {
	raw, err := r.rdb.Get(ctx, createdPrefix+accountID).Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("oracle: read account %s: %w", accountID, err)
	}
	sec, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("oracle: account %s creation time %q: %w", accountID, raw, err)
	}
	return time.Unix(sec, 0).UTC(), true, nil
}

func (r *Redis) Lock(ctx context.Context, accountID, proposalID string) error {
	ok, err := r.rdb.SetNX(ctx, lockKey(accountID, proposalID), time.Now().UTC().Unix(), r.lockTTL).Result()
	if err != nil {
		return fmt.Errorf("oracle: lock %s: %w", accountID, err)
	}
	if !ok {
		return ErrLockHeld
	}
	return nil
}

func (r *Redis) Unlock(ctx context.Context, accountID, proposalID string) error {
	if err := r.rdb.Del(ctx, lockKey(accountID, proposalID)).Err(); err != nil {
		return fmt.Errorf("oracle: unlock %s: %w", accountID, err)
	}
	return nil
}

// Locked reports whether the lock key exists.
func (r *Redis) Locked(ctx context.Context, accountID, proposalID string) (bool, error) {
	n, err := r.rdb.Exists(ctx, lockKey(accountID, proposalID)).Result()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
