package repository

import (
	"context"
	"testing"
	"time"

	"github.com/postpilot/postpilot/internal/models"
)

func createScheduled(t *testing.T, repo *MemoryPostRepository, scheduledAt time.Time) int64 {
	t.Helper()
	id, err := repo.Create(context.Background(), nil, &models.ScheduledPost{
		UserID:      1,
		Platform:    models.PlatformLinkedIn,
		Caption:     "caption",
		ScheduledAt: scheduledAt,
		Status:      models.PostStatusScheduled,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	return id
}

func TestMarkPublishedIsExactlyOnce(t *testing.T) {
	repo := NewMemoryPostRepository()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	id := createScheduled(t, repo, now)

	ctx := context.Background()

	ok, err := repo.MarkPublished(ctx, id, "ext-1")
	if err != nil || !ok {
		t.Fatalf("first MarkPublished = (%v, %v), want (true, nil)", ok, err)
	}

	// A second terminal write must lose and leave the first result intact.
	ok, err = repo.MarkPublished(ctx, id, "ext-2")
	if err != nil {
		t.Fatalf("second MarkPublished: %v", err)
	}
	if ok {
		t.Fatal("second MarkPublished won the CAS")
	}

	ok, err = repo.MarkFailed(ctx, id, "late failure")
	if err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}
	if ok {
		t.Fatal("MarkFailed overwrote a published post")
	}

	p, err := repo.GetByID(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if p.Status != models.PostStatusPublished || p.ExternalPostID != "ext-1" {
		t.Fatalf("post = status %q external %q, want published ext-1", p.Status, p.ExternalPostID)
	}
}

func TestMarkFailedRecordsReason(t *testing.T) {
	repo := NewMemoryPostRepository()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	id := createScheduled(t, repo, now)

	ctx := context.Background()

	ok, err := repo.MarkFailed(ctx, id, "platform timeout")
	if err != nil || !ok {
		t.Fatalf("MarkFailed = (%v, %v), want (true, nil)", ok, err)
	}

	p, err := repo.GetByID(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if p.Status != models.PostStatusFailed || p.Error != "platform timeout" {
		t.Fatalf("post = status %q error %q", p.Status, p.Error)
	}
}

func TestListOverdueReturnsOnlyPastScheduled(t *testing.T) {
	repo := NewMemoryPostRepository()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	past := createScheduled(t, repo, now.Add(-time.Hour))
	future := createScheduled(t, repo, now.Add(time.Hour))
	published := createScheduled(t, repo, now.Add(-time.Hour))

	ctx := context.Background()
	if _, err := repo.MarkPublished(ctx, published, "ext"); err != nil {
		t.Fatalf("mark published: %v", err)
	}

	overdue, err := repo.ListOverdue(ctx, now)
	if err != nil {
		t.Fatalf("list overdue: %v", err)
	}
	if len(overdue) != 1 || overdue[0].ID != past {
		t.Fatalf("overdue = %+v, want only post %d", overdue, past)
	}
	_ = future
}

func TestListUpcomingHonorsWindow(t *testing.T) {
	repo := NewMemoryPostRepository()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	inWindow := createScheduled(t, repo, now.Add(2*time.Minute))
	createScheduled(t, repo, now.Add(20*time.Minute))
	createScheduled(t, repo, now.Add(-time.Minute))

	upcoming, err := repo.ListUpcoming(context.Background(), now, now.Add(5*time.Minute))
	if err != nil {
		t.Fatalf("list upcoming: %v", err)
	}
	if len(upcoming) != 1 || upcoming[0].ID != inWindow {
		t.Fatalf("upcoming = %+v, want only post %d", upcoming, inWindow)
	}
}
