package models

import "time"

type RewardReason string

const (
	ReasonVoteReward    RewardReason = "vote_reward"
	ReasonReportReward  RewardReason = "report_reward"
	ReasonReportPenalty RewardReason = "report_penalty"
)

// RewardDelta is a pending reputation change produced by settlement.
type RewardDelta struct {
	ProposalID string       `json:"proposal_id"`
	AccountID  string       `json:"account_id"`
	Amount     int64        `json:"amount"`
	Reason     RewardReason `json:"reason"`
	CreatedAt  time.Time    `json:"created_at"`
	Attempts   int          `json:"attempts"`
}

// Key identifies the delta for idempotent delivery.
func (d *RewardDelta) Key() string {
	return d.ProposalID + "/" + d.AccountID + "/" + string(d.Reason)
}

// ReputationState is the per-account record kept by the reward ledger.
type ReputationState struct {
	AccountID string    `json:"account_id"`
	Score     int64     `json:"score"`
	Streak    uint32    `json:"streak"`
	UpdatedAt time.Time `json:"updated_at"`
}
