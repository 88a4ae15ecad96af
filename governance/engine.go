// Package governance implements the moderation vote lifecycle: reports
// accumulate per content item, the threshold report opens a proposal, token
// holders vote during a fixed window and settlement executes the outcome
// exactly once.
//
// Each state change runs as one unit serialized on its key and committed
// as one storage batch:
//
//	report + counter + threshold + proposal creation   (content lock)
//	vote checks + vote record + weight sums            (proposal lock)
//	expiry + status flip + reward computation          (content lock, then proposal lock)
//
// Locks are always taken content first, then proposal.
package governance

import (
	"strings"

	"modgov/keylock"
	"modgov/models"
	"modgov/repository"
)

// Deps are the collaborators the engine consumes.
type Deps struct {
	Repo        repository.GovernanceRepositoryInterface
	Oracle      BalanceOracle
	Eligibility ReporterEligibility
	Content     ContentStore
	Rewards     RewardLedger
	Clock       Clock
}

// Engine bundles the components sharing one lock table.
type Engine struct {
	Ledger     *ReportLedger
	Proposals  *ProposalManager
	Tally      *VoteTally
	Settlement *SettlementEngine
	Relay      *RewardRelay
}

type base struct {
	repo   repository.GovernanceRepositoryInterface
	locks  *keylock.Map
	clock  Clock
	params Params
}

func New(deps Deps, params Params) *Engine {
	if deps.Clock == nil {
		deps.Clock = SystemClock
	}
	b := base{
		repo:   deps.Repo,
		locks:  keylock.New(),
		clock:  deps.Clock,
		params: params,
	}

	proposals := &ProposalManager{base: b, content: deps.Content}
	relay := &RewardRelay{repo: deps.Repo, ledger: deps.Rewards, BatchSize: 100}
	return &Engine{
		Ledger:     &ReportLedger{base: b, eligibility: deps.Eligibility, proposals: proposals},
		Proposals:  proposals,
		Tally:      &VoteTally{base: b, oracle: deps.Oracle},
		Settlement: &SettlementEngine{base: b, oracle: deps.Oracle, content: deps.Content, relay: relay},
		Relay:      relay,
	}
}

// NewSweeper returns a sweeper settling this engine's expired proposals.
func (e *Engine) NewSweeper(concurrency int) *Sweeper {
	return &Sweeper{proposals: e.Proposals, settlement: e.Settlement, Concurrency: concurrency}
}

func contentKey(id string) string  { return "content/" + id }
func proposalKey(id string) string { return "proposal/" + id }
func reporterKey(id string) string { return "reporter/" + id }

// ids end up inside storage keys, where the zero byte is the separator
func validID(id string) error {
	if strings.TrimSpace(id) == "" || strings.ContainsRune(id, 0) {
		return models.ErrInvalidInput
	}
	return nil
}
