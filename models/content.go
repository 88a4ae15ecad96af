package models

import "time"

type ContentVisibility string

const (
	ContentVisible     ContentVisibility = "visible"
	ContentUnderReview ContentVisibility = "under_review"
	ContentDeleted     ContentVisibility = "deleted"
)

// ContentState is what the content store knows about a moderated item.
type ContentState struct {
	ContentID string            `json:"content_id"`
	State     ContentVisibility `json:"state"`
	UpdatedAt time.Time         `json:"updated_at"`
}
