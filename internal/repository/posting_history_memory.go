package repository

import (
	"context"
	"sync"
	"time"

	"github.com/postpilot/postpilot/internal/models"
)

// MemoryPostingHistoryRepository is an in-memory PostingHistoryRepository for tests.
type MemoryPostingHistoryRepository struct {
	mu      sync.RWMutex
	history []*models.PostingHistory
	nextID  int64
}

func NewMemoryPostingHistoryRepository() *MemoryPostingHistoryRepository {
	return &MemoryPostingHistoryRepository{nextID: 1}
}

func (r *MemoryPostingHistoryRepository) Create(ctx context.Context, ph *models.PostingHistory) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.nextID
	r.nextID++

	stored := *ph
	stored.ID = id
	stored.CreatedAt = time.Now().UTC()
	r.history = append(r.history, &stored)
	return id, nil
}

func (r *MemoryPostingHistoryRepository) ListByPostID(ctx context.Context, postID int64) ([]*models.PostingHistory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*models.PostingHistory
	for _, ph := range r.history {
		if ph.PostID == postID {
			copied := *ph
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *MemoryPostingHistoryRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var kept []*models.PostingHistory
	var deleted int64
	for _, ph := range r.history {
		if ph.CreatedAt.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, ph)
	}
	r.history = kept
	return deleted, nil
}
