package service

import (
	"context"
	"errors"
	"testing"
	"time"

	config "github.com/postpilot/postpilot/configs"
	"github.com/postpilot/postpilot/internal/models"
	"github.com/postpilot/postpilot/internal/repository"
)

func seedTempConnection(t *testing.T, tc repository.TempConnectionRepository, state string, expiresAt time.Time) *models.TempConnection {
	t.Helper()

	temp := &models.TempConnection{
		State:          state,
		Platform:       models.PlatformLinkedIn,
		AccountID:      "li-sub-123",
		AccountName:    "Jordan Example",
		Email:          "jordan@example.com",
		ProfilePicture: "https://media.example.com/pic.jpg",
		AccountType:    models.AccountTypePersonal,
		AccessToken:    "enc-access",
		RefreshToken:   "enc-refresh",
		TokenExpiresAt: time.Now().UTC().Add(time.Hour),
		ExpiresAt:      expiresAt,
	}
	id, err := tc.Upsert(context.Background(), temp)
	if err != nil {
		t.Fatalf("seed temp connection: %v", err)
	}
	temp.ID = id
	return temp
}

func TestCompleteConnectionPromotesTempToAccount(t *testing.T) {
	sa := repository.NewMemorySocialAccountRepository()
	tc := repository.NewMemoryTempConnectionRepository()
	svc := NewLinkedInService(config.Config{}, sa, tc)

	temp := seedTempConnection(t, tc, "state-abc", time.Now().UTC().Add(10*time.Minute))

	if err := svc.CompleteConnection(context.Background(), 42, "state-abc"); err != nil {
		t.Fatalf("CompleteConnection: %v", err)
	}

	account, err := sa.GetByUserPlatform(context.Background(), 42, models.PlatformLinkedIn)
	if err != nil {
		t.Fatalf("GetByUserPlatform: %v", err)
	}
	if account == nil {
		t.Fatal("expected a connected social account, got none")
	}
	if account.AccountID != temp.AccountID {
		t.Errorf("account id = %q, want %q", account.AccountID, temp.AccountID)
	}
	if account.AccessToken != "enc-access" || account.RefreshToken != "enc-refresh" {
		t.Error("tokens were not carried over from the temporary connection")
	}
	if !account.IsActive {
		t.Error("promoted account should be active")
	}

	got, err := tc.GetByState(context.Background(), "state-abc", time.Now().UTC())
	if err != nil {
		t.Fatalf("GetByState: %v", err)
	}
	if got != nil {
		t.Error("temporary connection should be removed after completion")
	}
}

func TestCompleteConnectionExpiredState(t *testing.T) {
	sa := repository.NewMemorySocialAccountRepository()
	tc := repository.NewMemoryTempConnectionRepository()
	svc := NewLinkedInService(config.Config{}, sa, tc)

	seedTempConnection(t, tc, "state-old", time.Now().UTC().Add(-time.Minute))

	err := svc.CompleteConnection(context.Background(), 42, "state-old")
	if !errors.Is(err, ErrConnectionExpired) {
		t.Fatalf("err = %v, want ErrConnectionExpired", err)
	}
}

func TestCompleteConnectionUnknownState(t *testing.T) {
	sa := repository.NewMemorySocialAccountRepository()
	tc := repository.NewMemoryTempConnectionRepository()
	svc := NewLinkedInService(config.Config{}, sa, tc)

	err := svc.CompleteConnection(context.Background(), 42, "no-such-state")
	if !errors.Is(err, ErrConnectionExpired) {
		t.Fatalf("err = %v, want ErrConnectionExpired", err)
	}
}

func TestCompleteConnectionAccountOwnedByOtherUser(t *testing.T) {
	sa := repository.NewMemorySocialAccountRepository()
	tc := repository.NewMemoryTempConnectionRepository()
	svc := NewLinkedInService(config.Config{}, sa, tc)

	temp := seedTempConnection(t, tc, "state-dup", time.Now().UTC().Add(10*time.Minute))

	_, err := sa.Create(context.Background(), nil, &models.SocialAccount{
		UserID:    7,
		Platform:  models.PlatformLinkedIn,
		AccountID: temp.AccountID,
		IsActive:  true,
	})
	if err != nil {
		t.Fatalf("seed existing account: %v", err)
	}

	err = svc.CompleteConnection(context.Background(), 42, "state-dup")
	if !errors.Is(err, ErrAccountConnected) {
		t.Fatalf("err = %v, want ErrAccountConnected", err)
	}

	got, err := tc.GetByState(context.Background(), "state-dup", time.Now().UTC())
	if err != nil {
		t.Fatalf("GetByState: %v", err)
	}
	if got != nil {
		t.Error("conflicting temporary connection should be deleted")
	}

	account, err := sa.GetByUserPlatform(context.Background(), 42, models.PlatformLinkedIn)
	if err != nil {
		t.Fatalf("GetByUserPlatform: %v", err)
	}
	if account != nil {
		t.Error("no account should be created for the second user")
	}
}

func TestCompleteConnectionSameUserReconnect(t *testing.T) {
	sa := repository.NewMemorySocialAccountRepository()
	tc := repository.NewMemoryTempConnectionRepository()
	svc := NewLinkedInService(config.Config{}, sa, tc)

	temp := seedTempConnection(t, tc, "state-re", time.Now().UTC().Add(10*time.Minute))

	_, err := sa.Create(context.Background(), nil, &models.SocialAccount{
		UserID:      42,
		Platform:    models.PlatformLinkedIn,
		AccountID:   temp.AccountID,
		AccessToken: "stale-token",
		IsActive:    true,
	})
	if err != nil {
		t.Fatalf("seed existing account: %v", err)
	}

	if err := svc.CompleteConnection(context.Background(), 42, "state-re"); err != nil {
		t.Fatalf("CompleteConnection: %v", err)
	}

	account, err := sa.GetByUserPlatform(context.Background(), 42, models.PlatformLinkedIn)
	if err != nil {
		t.Fatalf("GetByUserPlatform: %v", err)
	}
	if account == nil {
		t.Fatal("expected the reconnected account")
	}
	if account.AccessToken != "enc-access" {
		t.Errorf("access token = %q, want the refreshed credential", account.AccessToken)
	}
}
