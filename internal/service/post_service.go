package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/postpilot/postpilot/internal/models"
	"github.com/postpilot/postpilot/internal/publisher"
	"github.com/postpilot/postpilot/internal/repository"
	"github.com/postpilot/postpilot/internal/transfer"
)

type PostService interface {
	CreatePost(ctx context.Context, userID int64, pc *transfer.PostCreation) (int64, error)
	PostNow(ctx context.Context, userID int64, pc *transfer.PostCreation) (*models.ScheduledPost, error)
	List(ctx context.Context, userID int64) ([]*models.ScheduledPost, error)
	PostInfo(ctx context.Context, postID, userID int64) (*models.ScheduledPost, error)
	History(ctx context.Context, postID, userID int64) ([]*models.PostingHistory, error)
	Remove(ctx context.Context, userID, postID int64) error
}

type postService struct {
	pr   repository.PostRepository
	ph   repository.PostingHistoryRepository
	pubs publisher.Resolver
}

func NewPostService(pr repository.PostRepository, ph repository.PostingHistoryRepository, pubs publisher.Resolver) PostService {
	return &postService{
		pr:   pr,
		ph:   ph,
		pubs: pubs,
	}
}

// scheduled times come in as RFC 3339 or as a naive local-form timestamp,
// which is taken to be UTC. Everything is stored in UTC.
var scheduledTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
}

func parseScheduledTime(value string) (time.Time, error) {
	for _, layout := range scheduledTimeLayouts {
		t, err := time.Parse(layout, value)
		if err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid scheduled time format: %s", value)
}

func (s *postService) validate(pc *transfer.PostCreation) error {
	if pc == nil {
		return errors.New("post creation data is nil")
	}
	if pc.Caption == "" {
		return errors.New("caption cannot be empty")
	}
	if !models.KnownPlatform(pc.Platform) {
		return fmt.Errorf("unknown platform: %s", pc.Platform)
	}
	return nil
}

func (s *postService) CreatePost(ctx context.Context, userID int64, pc *transfer.PostCreation) (int64, error) {
	if err := s.validate(pc); err != nil {
		slog.Info(err.Error())
		return 0, err
	}

	scheduledTime, err := parseScheduledTime(pc.ScheduledTime)
	if err != nil {
		slog.Error(err.Error())
		return 0, err
	}

	post := models.ScheduledPost{
		UserID:      userID,
		Platform:    pc.Platform,
		Caption:     pc.Caption,
		ImageURLs:   pc.ImageURLs,
		ScheduledAt: scheduledTime,
		Status:      models.PostStatusScheduled,
	}

	postID, err := s.pr.Create(ctx, nil, &post)
	if err != nil {
		return 0, fmt.Errorf("error creating post: %w", err)
	}

	slog.Info("post scheduled", "post_id", postID, "platform", pc.Platform, "scheduled_at", scheduledTime)
	return postID, nil
}

// PostNow creates the post and publishes it immediately, skipping the
// scheduler. The row goes through the same terminal transition as a
// scheduled publish, so the outcome is recorded exactly once either way.
func (s *postService) PostNow(ctx context.Context, userID int64, pc *transfer.PostCreation) (*models.ScheduledPost, error) {
	if err := s.validate(pc); err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	post := models.ScheduledPost{
		UserID:      userID,
		Platform:    pc.Platform,
		Caption:     pc.Caption,
		ImageURLs:   pc.ImageURLs,
		ScheduledAt: time.Now().UTC(),
		Status:      models.PostStatusScheduled,
	}

	postID, err := s.pr.Create(ctx, nil, &post)
	if err != nil {
		return nil, fmt.Errorf("error creating post: %w", err)
	}
	post.ID = postID

	pub, err := s.pubs.Resolve(post.Platform)
	if err != nil {
		s.finishFailed(&post, err.Error())
		return s.pr.GetByID(ctx, postID)
	}

	res, err := pub.Publish(ctx, &post)
	if err != nil {
		s.finishFailed(&post, err.Error())
		return s.pr.GetByID(ctx, postID)
	}

	ok, err := s.pr.MarkPublished(context.Background(), postID, res.ExternalPostID)
	if err != nil {
		return nil, err
	}
	if ok {
		s.recordHistory(&post, res.ExternalPostID, res.Degraded)
	}

	return s.pr.GetByID(ctx, postID)
}

func (s *postService) finishFailed(post *models.ScheduledPost, reason string) {
	ok, err := s.pr.MarkFailed(context.Background(), post.ID, reason)
	if err != nil {
		slog.Error("recording failed status failed", "post_id", post.ID, "err", err)
		return
	}
	if ok {
		s.recordHistory(post, "", reason)
	}
}

func (s *postService) recordHistory(post *models.ScheduledPost, externalID, diagnostic string) {
	h := &models.PostingHistory{
		UserID:         post.UserID,
		PostID:         post.ID,
		Platform:       post.Platform,
		ExternalPostID: externalID,
		Diagnostic:     diagnostic,
	}
	if _, err := s.ph.Create(context.Background(), h); err != nil {
		slog.Error("recording posting history failed", "post_id", post.ID, "err", err)
	}
}

func (s *postService) PostInfo(ctx context.Context, postID, userID int64) (*models.ScheduledPost, error) {
	var err error

	if userID == 0 {
		err = errors.New("User is not valid")
		slog.Info(err.Error())
		return nil, err
	}

	if postID == 0 {
		err = errors.New("post id is not valid")
		slog.Info(err.Error())
		return nil, err
	}

	isValid, err := s.pr.CheckByUserID(ctx, postID, userID)
	if err != nil {
		return nil, err
	}

	if !isValid {
		err = errors.New("Post doesn't exist")
		slog.Info(err.Error())
		return nil, err
	}

	post, err := s.pr.GetByID(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("Error getting post info")
	}

	return post, nil
}

func (s *postService) History(ctx context.Context, postID, userID int64) ([]*models.PostingHistory, error) {
	isValid, err := s.pr.CheckByUserID(ctx, postID, userID)
	if err != nil {
		return nil, err
	}

	if !isValid {
		err = errors.New("Post doesn't exist")
		slog.Info(err.Error())
		return nil, err
	}

	history, err := s.ph.ListByPostID(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("Error getting posting history")
	}

	return history, nil
}

func (s *postService) List(ctx context.Context, userID int64) ([]*models.ScheduledPost, error) {
	posts, err := s.pr.GetByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("Error getting posts")
	}
	return posts, nil
}

func (s *postService) Remove(ctx context.Context, userID, postID int64) error {
	var err error

	if userID == 0 {
		err = errors.New("User is not valid")
		slog.Info(err.Error())
		return err
	}

	if postID == 0 {
		err = errors.New("post_id is not valid")
		slog.Info(err.Error())
		return err
	}

	isValid, err := s.pr.CheckByUserID(ctx, postID, userID)
	if err != nil {
		return err
	}

	if !isValid {
		err = errors.New("Post doesn't exist")
		slog.Info(err.Error())
		return err
	}

	err = s.pr.Remove(ctx, postID)
	if err != nil {
		return fmt.Errorf("Error removing post")
	}

	return nil
}
