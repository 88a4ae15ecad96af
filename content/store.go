// Package content keeps the moderation state of content items.
package content

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"modgov/db"
	"modgov/logger"
	"modgov/models"
)

const prefix = "content:"

// Store persists content states in LevelDB. Deleted is final: flagging a
// deleted item under review leaves it deleted.
type Store struct {
	db  *db.LevelDB
	mu  sync.Mutex
	now func() time.Time
}

func NewStore(ldb *db.LevelDB) *Store {
	return &Store{db: ldb, now: func() time.Time { return time.Now().UTC() }}
}

func (s *Store) FlagUnderReview(_ context.Context, contentID string) error {
	return s.transition(contentID, models.ContentUnderReview)
}

func (s *Store) MarkDeleted(_ context.Context, contentID string) error {
	return s.transition(contentID, models.ContentDeleted)
}

// ClearReview makes kept content visible again.
func (s *Store) ClearReview(_ context.Context, contentID string) error {
	return s.transition(contentID, models.ContentVisible)
}

func (s *Store) transition(contentID string, next models.ContentVisibility) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, err := s.get(contentID)
	if err != nil {
		return err
	}
	if cur.State == next || cur.State == models.ContentDeleted {
		return nil
	}

	cur.State = next
	cur.UpdatedAt = s.now()
	data, err := json.Marshal(cur)
	if err != nil {
		return err
	}
	if err := s.db.Put([]byte(prefix+contentID), data); err != nil {
		return fmt.Errorf("content: store %s: %w", contentID, err)
	}
	logger.Logger.Info("Content state changed",
		zap.String("content_id", contentID), zap.String("state", string(next)))
	return nil
}

// Get returns the content's state; unknown content is visible.
func (s *Store) Get(_ context.Context, contentID string) (*models.ContentState, error) {
	return s.get(contentID)
}

func (s *Store) get(contentID string) (*models.ContentState, error) {
	data, err := s.db.Get([]byte(prefix + contentID))
	if err != nil {
		if db.IsNotFound(err) {
			return &models.ContentState{ContentID: contentID, State: models.ContentVisible}, nil
		}
		return nil, fmt.Errorf("content: load %s: %w", contentID, err)
	}
	var st models.ContentState
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, err
	}
	return &st, nil
}
