package repository

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"

	"github.com/postpilot/postpilot/internal/models"
)

// MemorySocialAccountRepository is an in-memory SocialAccountRepository for
// tests. SetToken keeps the same compare-on-old-token semantics as the
// Postgres implementation.
type MemorySocialAccountRepository struct {
	mu       sync.RWMutex
	accounts map[int64]*models.SocialAccount
	nextID   int64
}

func NewMemorySocialAccountRepository() *MemorySocialAccountRepository {
	return &MemorySocialAccountRepository{accounts: make(map[int64]*models.SocialAccount), nextID: 1}
}

func (r *MemorySocialAccountRepository) Create(ctx context.Context, tx *sql.Tx, sa *models.SocialAccount) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.accounts {
		if existing.UserID == sa.UserID && existing.Platform == sa.Platform {
			id := existing.ID
			stored := *sa
			stored.ID = id
			stored.CreatedAt = existing.CreatedAt
			stored.UpdatedAt = time.Now().UTC()
			r.accounts[id] = &stored
			return id, nil
		}
	}

	id := r.nextID
	r.nextID++

	now := time.Now().UTC()
	stored := *sa
	stored.ID = id
	stored.CreatedAt = now
	stored.UpdatedAt = now
	r.accounts[id] = &stored
	return id, nil
}

func (r *MemorySocialAccountRepository) GetByID(ctx context.Context, id int64) (*models.SocialAccount, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sa, ok := r.accounts[id]
	if !ok {
		return nil, nil
	}
	copied := *sa
	return &copied, nil
}

func (r *MemorySocialAccountRepository) GetByUserPlatform(ctx context.Context, userID int64, platform string) (*models.SocialAccount, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, sa := range r.accounts {
		if sa.UserID == userID && sa.Platform == platform && sa.IsActive {
			copied := *sa
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *MemorySocialAccountRepository) GetByPlatformAccountID(ctx context.Context, platform, accountID string) (*models.SocialAccount, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, sa := range r.accounts {
		if sa.Platform == platform && sa.AccountID == accountID {
			copied := *sa
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *MemorySocialAccountRepository) ListInfoByUserID(ctx context.Context, userID int64) ([]*models.SocialAccount, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var accounts []*models.SocialAccount
	for _, sa := range r.accounts {
		if sa.UserID == userID && sa.IsActive {
			copied := *sa
			accounts = append(accounts, &copied)
		}
	}
	return accounts, nil
}

func (r *MemorySocialAccountRepository) ListExpiring(ctx context.Context, before time.Time) ([]*models.SocialAccount, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var accounts []*models.SocialAccount
	for _, sa := range r.accounts {
		if sa.IsActive && !sa.TokenExpiresAt.After(before) {
			copied := *sa
			accounts = append(accounts, &copied)
		}
	}
	return accounts, nil
}

func (r *MemorySocialAccountRepository) CheckByUserID(ctx context.Context, accountID, userID int64) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sa, ok := r.accounts[accountID]
	return ok && sa.UserID == userID, nil
}

func (r *MemorySocialAccountRepository) SetToken(ctx context.Context, userID int64, oldAccessToken string, sa *models.SocialAccount) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.accounts {
		if existing.UserID == userID && existing.AccessToken == oldAccessToken {
			if sa.AccessToken != "" {
				existing.AccessToken = sa.AccessToken
			}
			if sa.RefreshToken != "" {
				existing.RefreshToken = sa.RefreshToken
			}
			if !sa.TokenExpiresAt.IsZero() {
				existing.TokenExpiresAt = sa.TokenExpiresAt
			}
			existing.UpdatedAt = time.Now().UTC()
			return nil
		}
	}
	return errors.New("no rows affected; token was refreshed concurrently")
}

func (r *MemorySocialAccountRepository) Remove(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.accounts, id)
	return nil
}
