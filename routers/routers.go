package routers

import (
	"modgov/handlers"

	"github.com/gorilla/mux"
)

// RegisterRoutes sets up all the HTTP routes of the moderation API
func RegisterRoutes(r *mux.Router, h *handlers.Handler) {

	// Files a report; the threshold report opens a proposal
	r.HandleFunc("/reports", h.SubmitReport).Methods("POST")

	// Moderation state and live reports of a content item
	r.HandleFunc("/content/{id}", h.GetContent).Methods("GET")
	r.HandleFunc("/content/{id}/reports", h.ListReports).Methods("GET")
	r.HandleFunc("/content/{id}/reports/count", h.GetReportCount).Methods("GET")

	// Active proposal of a content item; only the threshold report opens one
	r.HandleFunc("/content/{id}/proposal", h.GetContentProposal).Methods("GET")

	// Registered before /proposals/{id} so "active" is not taken as an id
	r.HandleFunc("/proposals/active", h.ListActiveProposals).Methods("GET")
	r.HandleFunc("/proposals/{id}", h.GetProposal).Methods("GET")

	r.HandleFunc("/proposals/{id}/votes", h.CastVote).Methods("POST")
	r.HandleFunc("/proposals/{id}/votes", h.ListVotes).Methods("GET")
	r.HandleFunc("/proposals/{id}/tally", h.GetTally).Methods("GET")

	// Closes an expired proposal; the sweeper does the same on a timer
	r.HandleFunc("/proposals/{id}/settle", h.Settle).Methods("POST")

	r.HandleFunc("/accounts/{id}/reputation", h.GetReputation).Methods("GET")
}
