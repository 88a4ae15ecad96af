package repository

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"modgov/db"
	"modgov/models"
)

// It abstracts the storage layer from the governance logic. Reads see only
// committed state; every write goes through Apply.
type GovernanceRepositoryInterface interface {
	HasReported(contentID, reporterID string) (bool, error)
	IsRemoved(contentID string) (bool, error)
	ListReports(contentID string) ([]*models.Report, error)
	ListArchivedReports(proposalID string) ([]*models.Report, error)
	GetReportCount(contentID string) (int, error)
	GetLastReportAt(reporterID string) (time.Time, error)
	GetActiveProposalID(contentID string) (string, error)
	GetProposal(id string) (*models.Proposal, error)
	ListActiveProposals() ([]*models.Proposal, error)
	GetVote(proposalID, voterID string) (*models.Vote, error)
	ListVotes(proposalID string) ([]*models.Vote, error)
	ListPendingDeltas(limit int) ([]*models.RewardDelta, error)
	Apply(c *Changes) error
}

// GovernanceRepository implements GovernanceRepositoryInterface on LevelDB
type GovernanceRepository struct {
	db *db.LevelDB
}

// NewGovernanceRepository creates and returns a new GovernanceRepository instance
func NewGovernanceRepository(db *db.LevelDB) *GovernanceRepository {
	return &GovernanceRepository{db: db}
}

// Apply commits all queued changes in a single atomic batch
func (r *GovernanceRepository) Apply(c *Changes) error {
	if c.err != nil {
		return fmt.Errorf("repository: encode changes: %w", c.err)
	}
	if err := r.db.Write(&c.batch); err != nil {
		return fmt.Errorf("repository: write batch: %w", err)
	}
	return nil
}

func (r *GovernanceRepository) getJSON(key []byte, v any) error {
	data, err := r.db.Get(key)
	if err != nil {
		if db.IsNotFound(err) {
			return models.ErrNotFound
		}
		return err
	}
	return json.Unmarshal(data, v)
}

// HasReported tells whether reporterID ever reported contentID, in any round
func (r *GovernanceRepository) HasReported(contentID, reporterID string) (bool, error) {
	return r.db.Has(reportedKey(contentID, reporterID))
}

// IsRemoved tells whether a settled proposal removed the content
func (r *GovernanceRepository) IsRemoved(contentID string) (bool, error) {
	return r.db.Has(removedKey(contentID))
}

// ListReports returns the live reports of a content item
func (r *GovernanceRepository) ListReports(contentID string) ([]*models.Report, error) {
	return r.listReports(reportPrefix(contentID))
}

// ListArchivedReports returns the reports resolved by a proposal
func (r *GovernanceRepository) ListArchivedReports(proposalID string) ([]*models.Report, error) {
	return r.listReports(archivePrefix(proposalID))
}

func (r *GovernanceRepository) listReports(prefix []byte) ([]*models.Report, error) {
	iter := r.db.NewPrefixIterator(prefix)
	defer iter.Release()

	var reports []*models.Report
	for iter.Next() {
		var rep models.Report
		if err := json.Unmarshal(iter.Value(), &rep); err != nil {
			return nil, err
		}
		reports = append(reports, &rep)
	}
	return reports, iter.Error()
}

// GetReportCount returns the number of live reports, zero when none
func (r *GovernanceRepository) GetReportCount(contentID string) (int, error) {
	data, err := r.db.Get(countKey(contentID))
	if err != nil {
		if db.IsNotFound(err) {
			return 0, nil
		}
		return 0, err
	}
	return strconv.Atoi(string(data))
}

// GetLastReportAt returns when the reporter last reported anything, the
// zero time when never
func (r *GovernanceRepository) GetLastReportAt(reporterID string) (time.Time, error) {
	data, err := r.db.Get(cooldownKey(reporterID))
	if err != nil {
		if db.IsNotFound(err) {
			return time.Time{}, nil
		}
		return time.Time{}, err
	}
	ns, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(0, ns).UTC(), nil
}

// GetActiveProposalID returns the id of the content's active proposal, or
// an empty string
func (r *GovernanceRepository) GetActiveProposalID(contentID string) (string, error) {
	data, err := r.db.Get(activeKey(contentID))
	if err != nil {
		if db.IsNotFound(err) {
			return "", nil
		}
		return "", err
	}
	return string(data), nil
}

// GetProposal retrieves a proposal by its ID
func (r *GovernanceRepository) GetProposal(id string) (*models.Proposal, error) {
	var p models.Proposal
	if err := r.getJSON(proposalKey(id), &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// ListActiveProposals resolves every active marker to its proposal
func (r *GovernanceRepository) ListActiveProposals() ([]*models.Proposal, error) {
	iter := r.db.NewPrefixIterator([]byte(prefixActive))
	defer iter.Release()

	var ids []string
	for iter.Next() {
		ids = append(ids, string(iter.Value()))
	}
	if err := iter.Error(); err != nil {
		return nil, err
	}

	proposals := make([]*models.Proposal, 0, len(ids))
	for _, id := range ids {
		p, err := r.GetProposal(id)
		if err != nil {
			return nil, fmt.Errorf("repository: active proposal %s: %w", id, err)
		}
		proposals = append(proposals, p)
	}
	return proposals, nil
}

// GetVote returns the vote voterID cast on proposalID
func (r *GovernanceRepository) GetVote(proposalID, voterID string) (*models.Vote, error) {
	var v models.Vote
	if err := r.getJSON(voteKey(proposalID, voterID), &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// ListVotes returns all votes of a proposal ordered by voter id
func (r *GovernanceRepository) ListVotes(proposalID string) ([]*models.Vote, error) {
	iter := r.db.NewPrefixIterator(votePrefix(proposalID))
	defer iter.Release()

	var votes []*models.Vote
	for iter.Next() {
		var v models.Vote
		if err := json.Unmarshal(iter.Value(), &v); err != nil {
			return nil, err
		}
		votes = append(votes, &v)
	}
	return votes, iter.Error()
}

// ListPendingDeltas returns up to limit queued reward deltas, all when limit <= 0
func (r *GovernanceRepository) ListPendingDeltas(limit int) ([]*models.RewardDelta, error) {
	iter := r.db.NewPrefixIterator([]byte(prefixOutbox))
	defer iter.Release()

	var deltas []*models.RewardDelta
	for iter.Next() {
		if limit > 0 && len(deltas) >= limit {
			break
		}
		var d models.RewardDelta
		if err := json.Unmarshal(iter.Value(), &d); err != nil {
			return nil, err
		}
		deltas = append(deltas, &d)
	}
	return deltas, iter.Error()
}

const (
	prefixReport   = "report:"
	prefixArchive  = "archive:"
	prefixReported = "reported:"
	prefixRemoved  = "removed:"
	prefixCount    = "count:"
	prefixCooldown = "cooldown:"
	prefixActive   = "active:"
	prefixProposal = "proposal:"
	prefixVote     = "vote:"
	prefixOutbox   = "outbox:"
)

// ids are free-form, so composite keys are separated by a zero byte
const sep = "\x00"

func joinKey(prefix string, parts ...string) []byte {
	return []byte(prefix + strings.Join(parts, sep))
}

func reportKey(contentID, reporterID string) []byte {
	return joinKey(prefixReport, contentID, reporterID)
}

func reportPrefix(contentID string) []byte {
	return joinKey(prefixReport, contentID, "")
}

func archiveKey(proposalID, reporterID string) []byte {
	return joinKey(prefixArchive, proposalID, reporterID)
}

func archivePrefix(proposalID string) []byte {
	return joinKey(prefixArchive, proposalID, "")
}

func reportedKey(contentID, reporterID string) []byte {
	return joinKey(prefixReported, contentID, reporterID)
}

func removedKey(contentID string) []byte { return joinKey(prefixRemoved, contentID) }
func countKey(contentID string) []byte { return joinKey(prefixCount, contentID) }
func cooldownKey(reporterID string) []byte { return joinKey(prefixCooldown, reporterID) }
func activeKey(contentID string) []byte { return joinKey(prefixActive, contentID) }
func proposalKey(id string) []byte { return joinKey(prefixProposal, id) }
func outboxKey(deltaKey string) []byte { return joinKey(prefixOutbox, deltaKey) }

func voteKey(proposalID, voterID string) []byte {
	return joinKey(prefixVote, proposalID, voterID)
}

func votePrefix(proposalID string) []byte {
	return joinKey(prefixVote, proposalID, "")
}
