package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"modgov/governance"
	"modgov/logger"
	"modgov/models"
)

// ContentReader exposes the moderation state of a content item.
type ContentReader interface {
	Get(ctx context.Context, contentID string) (*models.ContentState, error)
}

// ReputationReader exposes an account's reputation.
type ReputationReader interface {
	Get(ctx context.Context, accountID string) (*models.ReputationState, error)
}

// Handler contains the HTTP handlers for the moderation API endpoints
type Handler struct {
	Engine     *governance.Engine
	Content    ContentReader
	Reputation ReputationReader
	Clock      governance.Clock
}

// NewHandler creates and returns a new Handler instance
func NewHandler(e *governance.Engine, content ContentReader, reputation ReputationReader, clock governance.Clock) *Handler {
	if clock == nil {
		clock = governance.SystemClock
	}
	return &Handler{Engine: e, Content: content, Reputation: reputation, Clock: clock}
}

type reportRequest struct {
	ContentID  string `json:"content_id"`
	ReporterID string `json:"reporter_id"`
	Reason     string `json:"reason"`
}

type voteRequest struct {
	VoterID string        `json:"voter_id"`
	Choice  models.Choice `json:"choice"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// statusFor maps governance errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrReporterIneligible), errors.Is(err, models.ErrNotEligible):
		return http.StatusForbidden
	case errors.Is(err, models.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, models.ErrDuplicateReport),
		errors.Is(err, models.ErrAlreadyVoted),
		errors.Is(err, models.ErrAlreadySettled),
		errors.Is(err, models.ErrProposalNotActive):
		return http.StatusConflict
	case errors.Is(err, models.ErrVotingWindowClosed), errors.Is(err, models.ErrContentRemoved):
		return http.StatusGone
	case errors.Is(err, models.ErrNotYetExpired):
		return http.StatusTooEarly
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) fail(w http.ResponseWriter, msg string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.Logger.Error(msg, zap.Error(err))
		writeError(w, status, "internal error")
		return
	}
	logger.Logger.Debug(msg, zap.Error(err))
	writeError(w, status, err.Error())
}

// SubmitReport handles POST requests filing a report against a content item
func (h *Handler) SubmitReport(w http.ResponseWriter, r *http.Request) {
	var req reportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Logger.Error("Failed to decode report", zap.Error(err))
		writeError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	report, err := h.Engine.Ledger.SubmitReport(r.Context(), req.ContentID, req.ReporterID, req.Reason)
	if err != nil {
		h.fail(w, "Failed to submit report", err)
		return
	}
	count, err := h.Engine.Ledger.GetReportCount(r.Context(), req.ContentID)
	if err != nil {
		h.fail(w, "Failed to read report count", err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message":      "Report submitted successfully",
		"report":       report,
		"report_count": count,
	})
}

// GetReportCount returns the live report count of a content item
func (h *Handler) GetReportCount(w http.ResponseWriter, r *http.Request) {
	contentID := mux.Vars(r)["id"]
	count, err := h.Engine.Ledger.GetReportCount(r.Context(), contentID)
	if err != nil {
		h.fail(w, "Failed to read report count", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"content_id":   contentID,
		"report_count": count,
	})
}

func (h *Handler) ListReports(w http.ResponseWriter, r *http.Request) {
	contentID := mux.Vars(r)["id"]
	reports, err := h.Engine.Ledger.ListReports(r.Context(), contentID)
	if err != nil {
		h.fail(w, "Failed to list reports", err)
		return
	}
	if reports == nil {
		reports = []*models.Report{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"content_id": contentID,
		"reports":    reports,
	})
}

// GetContent returns the moderation state of a content item
func (h *Handler) GetContent(w http.ResponseWriter, r *http.Request) {
	contentID := mux.Vars(r)["id"]
	if h.Content == nil {
		writeError(w, http.StatusNotImplemented, "content store not configured")
		return
	}
	st, err := h.Content.Get(r.Context(), contentID)
	if err != nil {
		h.fail(w, "Failed to read content state", err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (h *Handler) GetContentProposal(w http.ResponseWriter, r *http.Request) {
	p, err := h.Engine.Proposals.ActiveProposal(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.fail(w, "Failed to read active proposal", err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) ListActiveProposals(w http.ResponseWriter, r *http.Request) {
	proposals, err := h.Engine.Proposals.ListActive(r.Context())
	if err != nil {
		h.fail(w, "Failed to list active proposals", err)
		return
	}
	if proposals == nil {
		proposals = []*models.Proposal{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"proposals": proposals})
}

// GetProposal returns a proposal along with whether it is waiting for settlement
func (h *Handler) GetProposal(w http.ResponseWriter, r *http.Request) {
	p, err := h.Engine.Proposals.GetProposal(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.fail(w, "Failed to read proposal", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"proposal": p,
		"expired":  p.Expired(h.Clock.Now()),
	})
}

// CastVote handles POST requests voting on an active proposal
func (h *Handler) CastVote(w http.ResponseWriter, r *http.Request) {
	var req voteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Logger.Error("Failed to decode vote", zap.Error(err))
		writeError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	vote, err := h.Engine.Tally.CastVote(r.Context(), mux.Vars(r)["id"], req.VoterID, req.Choice)
	if err != nil {
		h.fail(w, "Failed to cast vote", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message": "Vote recorded successfully",
		"vote":    vote,
	})
}

func (h *Handler) ListVotes(w http.ResponseWriter, r *http.Request) {
	votes, err := h.Engine.Tally.ListVotes(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.fail(w, "Failed to list votes", err)
		return
	}
	if votes == nil {
		votes = []*models.Vote{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"votes": votes})
}

func (h *Handler) GetTally(w http.ResponseWriter, r *http.Request) {
	tally, err := h.Engine.Tally.GetTally(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.fail(w, "Failed to read tally", err)
		return
	}
	writeJSON(w, http.StatusOK, tally)
}

// Settle closes an expired proposal and applies its outcome
func (h *Handler) Settle(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	outcome, err := h.Engine.Settlement.Settle(r.Context(), id, h.Clock.Now())
	if err != nil {
		h.fail(w, "Failed to settle proposal", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":     "Proposal settled",
		"proposal_id": id,
		"outcome":     outcome,
	})
}

func (h *Handler) GetReputation(w http.ResponseWriter, r *http.Request) {
	if h.Reputation == nil {
		writeError(w, http.StatusNotImplemented, "reputation ledger not configured")
		return
	}
	st, err := h.Reputation.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.fail(w, "Failed to read reputation", err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}
