package repository

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/syndtr/goleveldb/leveldb"

	"modgov/models"
)

// Changes collects the writes of one unit of work. Nothing is visible to
// readers until the repository applies it, and then all of it is.
type Changes struct {
	batch leveldb.Batch
	err   error
}

func NewChanges() *Changes {
	return &Changes{}
}

func (c *Changes) putJSON(key []byte, v any) {
	if c.err != nil {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		c.err = err
		return
	}
	c.batch.Put(key, data)
}

// PutReport stores a live report and the reporter's marker on the content.
// The marker outlives archiving, so a reporter gets one report per content
// item ever.
func (c *Changes) PutReport(r *models.Report) {
	c.putJSON(reportKey(r.ContentID, r.ReporterID), r)
	c.batch.Put(reportedKey(r.ContentID, r.ReporterID), []byte(r.CreatedAt.UTC().Format(time.RFC3339Nano)))
}

// MarkRemoved records that proposalID removed the content for good.
func (c *Changes) MarkRemoved(contentID, proposalID string) {
	c.batch.Put(removedKey(contentID), []byte(proposalID))
}

// ArchiveReport moves a live report under the proposal that resolved it.
func (c *Changes) ArchiveReport(r *models.Report, proposalID string) {
	archived := *r
	archived.ProposalID = proposalID
	c.batch.Delete(reportKey(r.ContentID, r.ReporterID))
	c.putJSON(archiveKey(proposalID, r.ReporterID), &archived)
}

func (c *Changes) SetReportCount(contentID string, n int) {
	if n == 0 {
		c.batch.Delete(countKey(contentID))
		return
	}
	c.batch.Put(countKey(contentID), []byte(strconv.Itoa(n)))
}

func (c *Changes) SetLastReportAt(reporterID string, at time.Time) {
	c.batch.Put(cooldownKey(reporterID), []byte(strconv.FormatInt(at.UnixNano(), 10)))
}

func (c *Changes) PutProposal(p *models.Proposal) {
	c.putJSON(proposalKey(p.ID), p)
}

func (c *Changes) SetActiveProposal(contentID, proposalID string) {
	c.batch.Put(activeKey(contentID), []byte(proposalID))
}

func (c *Changes) ClearActiveProposal(contentID string) {
	c.batch.Delete(activeKey(contentID))
}

func (c *Changes) PutVote(v *models.Vote) {
	c.putJSON(voteKey(v.ProposalID, v.VoterID), v)
}

// QueueDelta stores a reward delta for delivery. Re-queueing the same
// delta overwrites it.
func (c *Changes) QueueDelta(d *models.RewardDelta) {
	c.putJSON(outboxKey(d.Key()), d)
}

func (c *Changes) DropDelta(d *models.RewardDelta) {
	c.batch.Delete(outboxKey(d.Key()))
}
