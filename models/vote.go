package models

import "time"

type Choice string

const (
	ChoiceRemove Choice = "remove"
	ChoiceKeep   Choice = "keep"
)

func (c Choice) Valid() bool {
	return c == ChoiceRemove || c == ChoiceKeep
}

// Vote records one voter's choice on one proposal. Weight is the voter's
// balance at cast time and never changes afterwards.
type Vote struct {
	ProposalID string    `json:"proposal_id"`
	VoterID    string    `json:"voter_id"`
	Choice     Choice    `json:"choice"`
	Weight     uint64    `json:"weight"`
	CastAt     time.Time `json:"cast_at"`
}
