package repository

import (
	"context"
	"testing"
	"time"

	"github.com/postpilot/postpilot/internal/models"
)

func tempConn(state string, expiresAt time.Time) *models.TempConnection {
	return &models.TempConnection{
		State:       state,
		Platform:    models.PlatformLinkedIn,
		AccountID:   "acct-" + state,
		AccountType: models.AccountTypePersonal,
		ExpiresAt:   expiresAt,
	}
}

func TestTempConnectionUpsertReplacesByState(t *testing.T) {
	repo := NewMemoryTempConnectionRepository()
	ctx := context.Background()
	now := time.Now().UTC()

	first, err := repo.Upsert(ctx, tempConn("st-1", now.Add(10*time.Minute)))
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	updated := tempConn("st-1", now.Add(10*time.Minute))
	updated.AccountName = "Renamed"
	second, err := repo.Upsert(ctx, updated)
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if first != second {
		t.Errorf("upsert created a new row: ids %d and %d", first, second)
	}

	got, err := repo.GetByState(ctx, "st-1", now)
	if err != nil {
		t.Fatalf("GetByState: %v", err)
	}
	if got == nil || got.AccountName != "Renamed" {
		t.Errorf("got %+v, want the replaced row", got)
	}
}

func TestTempConnectionGetByStateIgnoresExpired(t *testing.T) {
	repo := NewMemoryTempConnectionRepository()
	ctx := context.Background()
	now := time.Now().UTC()

	if _, err := repo.Upsert(ctx, tempConn("st-exp", now.Add(-time.Second))); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	got, err := repo.GetByState(ctx, "st-exp", now)
	if err != nil {
		t.Fatalf("GetByState: %v", err)
	}
	if got != nil {
		t.Errorf("expired connection should not be returned, got %+v", got)
	}
}

func TestTempConnectionDeleteExpired(t *testing.T) {
	repo := NewMemoryTempConnectionRepository()
	ctx := context.Background()
	now := time.Now().UTC()

	if _, err := repo.Upsert(ctx, tempConn("st-live", now.Add(5*time.Minute))); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if _, err := repo.Upsert(ctx, tempConn("st-dead", now.Add(-5*time.Minute))); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	deleted, err := repo.DeleteExpired(ctx, now)
	if err != nil {
		t.Fatalf("DeleteExpired: %v", err)
	}
	if deleted != 1 {
		t.Errorf("deleted = %d, want 1", deleted)
	}

	live, err := repo.GetByState(ctx, "st-live", now)
	if err != nil {
		t.Fatalf("GetByState: %v", err)
	}
	if live == nil {
		t.Error("live connection should survive the sweep")
	}
}
