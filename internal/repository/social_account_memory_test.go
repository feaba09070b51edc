package repository

import (
	"context"
	"testing"
	"time"

	"github.com/postpilot/postpilot/internal/models"
)

func seedLinkedInAccount(t *testing.T, repo *MemorySocialAccountRepository, token string) *models.SocialAccount {
	t.Helper()
	acc := &models.SocialAccount{
		UserID:         1,
		Platform:       models.PlatformLinkedIn,
		AccountID:      "member-1",
		AccessToken:    token,
		RefreshToken:   "refresh-1",
		TokenExpiresAt: time.Now().Add(time.Hour),
		IsActive:       true,
	}
	if _, err := repo.Create(context.Background(), nil, acc); err != nil {
		t.Fatalf("create account: %v", err)
	}
	return acc
}

func TestCreateUpsertsByUserAndPlatform(t *testing.T) {
	repo := NewMemorySocialAccountRepository()
	seedLinkedInAccount(t, repo, "token-a")
	seedLinkedInAccount(t, repo, "token-b")

	accounts, err := repo.ListInfoByUserID(context.Background(), 1)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(accounts) != 1 {
		t.Fatalf("accounts = %d, want 1 after reconnect", len(accounts))
	}
	if accounts[0].AccessToken != "token-b" {
		t.Fatalf("access token = %q, want token-b", accounts[0].AccessToken)
	}
}

func TestSetTokenLosesToConcurrentRefresh(t *testing.T) {
	repo := NewMemorySocialAccountRepository()
	seedLinkedInAccount(t, repo, "token-a")

	ctx := context.Background()
	acc, err := repo.GetByUserPlatform(ctx, 1, models.PlatformLinkedIn)
	if err != nil {
		t.Fatalf("get: %v", err)
	}

	updated := *acc
	updated.AccessToken = "token-b"
	if err := repo.SetToken(ctx, 1, "token-a", &updated); err != nil {
		t.Fatalf("first SetToken: %v", err)
	}

	// A second writer still holding the old token must not clobber the
	// refreshed credential.
	stale := *acc
	stale.AccessToken = "token-c"
	if err := repo.SetToken(ctx, 1, "token-a", &stale); err == nil {
		t.Fatal("stale SetToken succeeded")
	}

	acc, err = repo.GetByUserPlatform(ctx, 1, models.PlatformLinkedIn)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if acc.AccessToken != "token-b" {
		t.Fatalf("access token = %q, want token-b", acc.AccessToken)
	}
}
