package repository

import (
	"context"
	"sync"
	"time"

	"github.com/postpilot/postpilot/internal/models"
)

// MemoryTempConnectionRepository is an in-memory TempConnectionRepository
// for tests, with the same upsert-by-state and expiry semantics as the
// Postgres implementation.
type MemoryTempConnectionRepository struct {
	mu          sync.RWMutex
	connections map[int64]*models.TempConnection
	nextID      int64
}

func NewMemoryTempConnectionRepository() *MemoryTempConnectionRepository {
	return &MemoryTempConnectionRepository{connections: make(map[int64]*models.TempConnection), nextID: 1}
}

func (r *MemoryTempConnectionRepository) Upsert(ctx context.Context, tc *models.TempConnection) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.connections {
		if existing.State == tc.State {
			id := existing.ID
			stored := *tc
			stored.ID = id
			stored.CreatedAt = existing.CreatedAt
			r.connections[id] = &stored
			return id, nil
		}
	}

	id := r.nextID
	r.nextID++

	stored := *tc
	stored.ID = id
	stored.CreatedAt = time.Now().UTC()
	r.connections[id] = &stored
	return id, nil
}

func (r *MemoryTempConnectionRepository) GetByState(ctx context.Context, state string, now time.Time) (*models.TempConnection, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, tc := range r.connections {
		if tc.State == state && tc.ExpiresAt.After(now) {
			copied := *tc
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *MemoryTempConnectionRepository) Remove(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.connections, id)
	return nil
}

func (r *MemoryTempConnectionRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var deleted int64
	for id, tc := range r.connections {
		if !tc.ExpiresAt.After(now) {
			delete(r.connections, id)
			deleted++
		}
	}
	return deleted, nil
}
