package repository

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"github.com/postpilot/postpilot/internal/models"
)

// MemoryPostRepository is an in-memory PostRepository used by tests and
// by components that want a repository without a database.
type MemoryPostRepository struct {
	mu     sync.RWMutex
	posts  map[int64]*models.ScheduledPost
	nextID int64
}

func NewMemoryPostRepository() *MemoryPostRepository {
	return &MemoryPostRepository{posts: make(map[int64]*models.ScheduledPost), nextID: 1}
}

func (r *MemoryPostRepository) Create(ctx context.Context, tx *sql.Tx, post *models.ScheduledPost) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.nextID
	r.nextID++

	now := time.Now().UTC()
	stored := *post
	stored.ID = id
	stored.ScheduledAt = post.ScheduledAt.UTC()
	stored.CreatedAt = now
	stored.UpdatedAt = now
	r.posts[id] = &stored
	return id, nil
}

func (r *MemoryPostRepository) GetByID(ctx context.Context, id int64) (*models.ScheduledPost, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	post, ok := r.posts[id]
	if !ok {
		return nil, nil
	}
	copied := *post
	return &copied, nil
}

func (r *MemoryPostRepository) GetByUserID(ctx context.Context, userID int64) ([]*models.ScheduledPost, error) {
	return r.filter(func(p *models.ScheduledPost) bool {
		return p.UserID == userID
	})
}

func (r *MemoryPostRepository) CheckByUserID(ctx context.Context, postID, userID int64) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	post, ok := r.posts[postID]
	return ok && post.UserID == userID, nil
}

func (r *MemoryPostRepository) ListOverdue(ctx context.Context, now time.Time) ([]*models.ScheduledPost, error) {
	return r.filter(func(p *models.ScheduledPost) bool {
		return p.Status == models.PostStatusScheduled && !p.ScheduledAt.After(now)
	})
}

func (r *MemoryPostRepository) ListUpcoming(ctx context.Context, from, to time.Time) ([]*models.ScheduledPost, error) {
	return r.filter(func(p *models.ScheduledPost) bool {
		return p.Status == models.PostStatusScheduled && p.ScheduledAt.After(from) && !p.ScheduledAt.After(to)
	})
}

func (r *MemoryPostRepository) MarkPublished(ctx context.Context, id int64, externalPostID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	post, ok := r.posts[id]
	if !ok || post.Status != models.PostStatusScheduled {
		return false, nil
	}
	post.Status = models.PostStatusPublished
	post.ExternalPostID = externalPostID
	post.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (r *MemoryPostRepository) MarkFailed(ctx context.Context, id int64, reason string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	post, ok := r.posts[id]
	if !ok || post.Status != models.PostStatusScheduled {
		return false, nil
	}
	post.Status = models.PostStatusFailed
	post.Error = reason
	post.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (r *MemoryPostRepository) Remove(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.posts, id)
	return nil
}

func (r *MemoryPostRepository) filter(keep func(*models.ScheduledPost) bool) ([]*models.ScheduledPost, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var posts []*models.ScheduledPost
	for _, post := range r.posts {
		if keep(post) {
			copied := *post
			posts = append(posts, &copied)
		}
	}
	sort.Slice(posts, func(i, j int) bool {
		return posts[i].ScheduledAt.Before(posts[j].ScheduledAt)
	})
	return posts, nil
}
