package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Status is the lifecycle state of a proposal. It only ever moves from
// StatusActive to one of the two resolved states.
type Status uint8

const (
	StatusActive Status = iota
	// StatusResolvedRemoved means the removal passed and the content was deleted.
	StatusResolvedRemoved
	// StatusResolvedKept means the removal was rejected and the content stays.
	StatusResolvedKept
)

// Wire names are kept stable for API consumers: a kept item is "rejected".
var statusNames = map[Status]string{
	StatusActive:          "active",
	StatusResolvedRemoved: "executed",
	StatusResolvedKept:    "rejected",
}

func (s Status) String() string {
	if n, ok := statusNames[s]; ok {
		return n
	}
	return fmt.Sprintf("status(%d)", uint8(s))
}

// Terminal reports whether the status can no longer change.
func (s Status) Terminal() bool {
	return s == StatusResolvedRemoved || s == StatusResolvedKept
}

func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *Status) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	for st, n := range statusNames {
		if n == name {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown proposal status %q", name)
}

// Outcome is the decision a settled proposal produced.
type Outcome string

const (
	OutcomeNone    Outcome = ""
	OutcomeRemoved Outcome = "removed"
	OutcomeKept    Outcome = "kept"
)

// Proposal is the time-boxed vote opened for a content item once it
// collected enough reports.
type Proposal struct {
	ID           string     `json:"id"`
	ContentID    string     `json:"content_id"`
	CreatedAt    time.Time  `json:"created_at"`
	Deadline     time.Time  `json:"deadline"`
	Status       Status     `json:"status"`
	Outcome      Outcome    `json:"outcome,omitempty"`
	RemoveWeight uint64     `json:"remove_weight"`
	KeepWeight   uint64     `json:"keep_weight"`
	SettledAt    *time.Time `json:"settled_at,omitempty"`
}

// Expired is true once the voting window has passed but nobody settled yet.
func (p *Proposal) Expired(now time.Time) bool {
	return p.Status == StatusActive && !now.Before(p.Deadline)
}

// Decide applies simple majority; a tie keeps the content.
func (p *Proposal) Decide() Outcome {
	if p.RemoveWeight > p.KeepWeight {
		return OutcomeRemoved
	}
	return OutcomeKept
}

// Tally is the pair of running weight sums for a proposal.
type Tally struct {
	ProposalID   string `json:"proposal_id"`
	RemoveWeight uint64 `json:"remove_weight"`
	KeepWeight   uint64 `json:"keep_weight"`
}
