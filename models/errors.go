package models

import "errors"

var (
	ErrInvalidInput          = errors.New("invalid input")
	ErrDuplicateReport       = errors.New("content already reported by this account")
	ErrReporterIneligible    = errors.New("reporter is not eligible")
	ErrRateLimited           = errors.New("report cooldown has not elapsed")
	ErrContentRemoved        = errors.New("content already removed")
	ErrProposalAlreadyActive = errors.New("an active proposal already exists for this content")
	ErrNotFound              = errors.New("not found")
	ErrNotEligible           = errors.New("no governance tokens")
	ErrProposalNotActive     = errors.New("proposal is not active")
	ErrVotingWindowClosed    = errors.New("voting period ended")
	ErrAlreadyVoted          = errors.New("already voted on this proposal")
	ErrNotYetExpired         = errors.New("voting period has not ended")
	ErrAlreadySettled        = errors.New("proposal already settled")
	ErrLedgerUnavailable     = errors.New("reward ledger unavailable")
)
