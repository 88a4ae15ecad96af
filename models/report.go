package models

import "time"

// Report is one account's complaint about one content item.
type Report struct {
	ContentID  string    `json:"content_id"`
	ReporterID string    `json:"reporter_id"`
	Reason     string    `json:"reason"`
	CreatedAt  time.Time `json:"created_at"`
	// ProposalID is set once the report has been archived under a resolved proposal.
	ProposalID string `json:"proposal_id,omitempty"`
}
