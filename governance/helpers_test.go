package governance_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"modgov/content"
	"modgov/db"
	"modgov/governance"
	"modgov/logger"
	"modgov/models"
	"modgov/oracle"
	"modgov/repository"
	"modgov/reputation"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type denyList map[string]bool

func (d denyList) ReporterEligible(_ context.Context, accountID, _ string, _ time.Time) (bool, error) {
	return !d[accountID], nil
}

// recordingContent counts calls and can refuse deletions.
type recordingContent struct {
	*content.Store
	mu         sync.Mutex
	flagged    int
	deleted    int
	failDelete bool
}

func (r *recordingContent) FlagUnderReview(ctx context.Context, id string) error {
	r.mu.Lock()
	r.flagged++
	r.mu.Unlock()
	return r.Store.FlagUnderReview(ctx, id)
}

func (r *recordingContent) MarkDeleted(ctx context.Context, id string) error {
	r.mu.Lock()
	if r.failDelete {
		r.mu.Unlock()
		return errors.New("content service down")
	}
	r.deleted++
	r.mu.Unlock()
	return r.Store.MarkDeleted(ctx, id)
}

func (r *recordingContent) counts() (flagged, deleted int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.flagged, r.deleted
}

// flakyLedger fails every write while down and counts accepted deltas.
type flakyLedger struct {
	inner *reputation.Ledger
	mu    sync.Mutex
	down  bool
	calls int
}

func (f *flakyLedger) ApplyDelta(ctx context.Context, d models.RewardDelta) error {
	f.mu.Lock()
	f.calls++
	down := f.down
	f.mu.Unlock()
	if down {
		return fmt.Errorf("apply %s: %w", d.Key(), models.ErrLedgerUnavailable)
	}
	return f.inner.ApplyDelta(ctx, d)
}

func (f *flakyLedger) setDown(down bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.down = down
}

type harness struct {
	engine  *governance.Engine
	repo    *repository.GovernanceRepository
	clock   *fakeClock
	oracle  *oracle.Memory
	content *recordingContent
	rewards *flakyLedger
	deny    denyList
}

func newHarness(t *testing.T) *harness {
	return newHarnessWithParams(t, governance.DefaultParams())
}

func newHarnessWithParams(t *testing.T, params governance.Params) *harness {
	t.Helper()
	logger.Logger = zap.NewNop()

	ldb, err := db.NewMemLevelDB()
	require.NoError(t, err)
	t.Cleanup(func() { ldb.Close() })

	h := &harness{
		repo:    repository.NewGovernanceRepository(ldb),
		clock:   &fakeClock{now: t0},
		oracle:  oracle.NewMemory(),
		content: &recordingContent{Store: content.NewStore(ldb)},
		rewards: &flakyLedger{inner: reputation.NewLedger(ldb)},
		deny:    denyList{},
	}
	h.engine = governance.New(governance.Deps{
		Repo:        h.repo,
		Oracle:      h.oracle,
		Eligibility: h.deny,
		Content:     h.content,
		Rewards:     h.rewards,
		Clock:       h.clock,
	}, params)
	return h
}

func reporterID(i int) string {
	return fmt.Sprintf("reporter-%03d", i)
}

// report files n reports on contentID from reporters first..first+n-1.
func (h *harness) report(t *testing.T, contentID string, first, n int) {
	t.Helper()
	for i := first; i < first+n; i++ {
		_, err := h.engine.Ledger.SubmitReport(context.Background(), contentID, reporterID(i), "spam")
		require.NoError(t, err, "report %d", i)
	}
}

// openProposal reports contentID up to the threshold and returns the proposal.
func (h *harness) openProposal(t *testing.T, contentID string) *models.Proposal {
	t.Helper()
	h.report(t, contentID, 0, governance.DefaultReportThreshold)
	p, err := h.engine.Proposals.ActiveProposal(context.Background(), contentID)
	require.NoError(t, err)
	return p
}

func (h *harness) score(t *testing.T, accountID string) int64 {
	t.Helper()
	s, err := h.rewards.inner.Score(context.Background(), accountID)
	require.NoError(t, err)
	return s
}
