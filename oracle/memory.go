// Package oracle provides balance oracles and the reporter eligibility policy
// built on top of them.
package oracle

import (
	"context"
	"sync"
	"time"
)

// Memory is an in-process oracle. Balances and account creation times are
// seeded by the operator or by tests.
type Memory struct {
	mu       sync.RWMutex
	balances map[string]uint64
	created  map[string]time.Time
	locks    map[string]struct{}
}

func NewMemory() *Memory {
	return &Memory{
		balances: make(map[string]uint64),
		created:  make(map[string]time.Time),
		locks:    make(map[string]struct{}),
	}
}

func (m *Memory) SetBalance(accountID string, weight uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[accountID] = weight
}

func (m *Memory) SetAccountCreated(accountID string, at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.created[accountID] = at
}

// WeightOf returns the current balance; history is not kept, so at is ignored.
func (m *Memory) WeightOf(_ context.Context, accountID string, _ time.Time) (uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.balances[accountID], nil
}

func (m *Memory) AccountCreatedAt(_ context.Context, accountID string) (time.Time, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	at, ok := m.created[accountID]
	return at, ok, nil
}

func (m *Memory) Lock(_ context.Context, accountID, proposalID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := lockKey(accountID, proposalID)
	if _, held := m.locks[key]; held {
		return ErrLockHeld
	}
	m.locks[key] = struct{}{}
	return nil
}

func (m *Memory) Unlock(_ context.Context, accountID, proposalID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.locks, lockKey(accountID, proposalID))
	return nil
}

// Locked reports whether the account's weight is locked for the proposal.
func (m *Memory) Locked(accountID, proposalID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, held := m.locks[lockKey(accountID, proposalID)]
	return held
}
