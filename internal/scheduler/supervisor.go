package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/postpilot/postpilot/internal/models"
	"github.com/postpilot/postpilot/internal/publisher"
)

// runSupervisor waits until the post's scheduled time, publishes it, and
// writes exactly one terminal status. Cancellation before or during the
// publish call leaves the row scheduled so a later sweep retries it.
func (e *Engine) runSupervisor(ctx context.Context, post *models.ScheduledPost, delay time.Duration) {
	defer e.registry.remove(post.ID)
	defer func() {
		if r := recover(); r != nil {
			slog.Error("supervisor panicked", "post_id", post.ID, "panic", r)
			e.markFailed(post, fmt.Sprintf("internal error: %v", r))
		}
	}()

	if delay > 0 {
		select {
		case <-ctx.Done():
			return
		case <-e.clock.After(delay):
		}
	}
	if ctx.Err() != nil {
		return
	}

	pub, err := e.pubs.Resolve(post.Platform)
	if err != nil {
		e.markFailed(post, err.Error())
		return
	}

	res, err := pub.Publish(ctx, post)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			// Shutdown interrupted the call; outcome unknown, leave the
			// row scheduled for the restart sweep.
			return
		}
		e.markFailed(post, err.Error())
		return
	}
	e.markPublished(post, res)
}

// Terminal writes use a background context: once the publish outcome is
// known it must be recorded even if the engine is shutting down.

func (e *Engine) markPublished(post *models.ScheduledPost, res *publisher.Result) {
	ok, err := e.posts.MarkPublished(context.Background(), post.ID, res.ExternalPostID)
	if err != nil {
		slog.Error("recording published status failed", "post_id", post.ID, "err", err)
		return
	}
	if !ok {
		slog.Warn("post already in terminal state, published result dropped",
			"post_id", post.ID, "external_id", res.ExternalPostID)
		return
	}
	e.recordHistory(post, res.ExternalPostID, res.Degraded)
}

func (e *Engine) markFailed(post *models.ScheduledPost, reason string) {
	ok, err := e.posts.MarkFailed(context.Background(), post.ID, reason)
	if err != nil {
		slog.Error("recording failed status failed", "post_id", post.ID, "err", err)
		return
	}
	if !ok {
		slog.Warn("post already in terminal state, failure dropped",
			"post_id", post.ID, "reason", reason)
		return
	}
	slog.Info("post failed", "post_id", post.ID, "reason", reason)
	e.recordHistory(post, "", reason)
}

func (e *Engine) recordHistory(post *models.ScheduledPost, externalID, diagnostic string) {
	if e.history == nil {
		return
	}
	h := &models.PostingHistory{
		UserID:         post.UserID,
		PostID:         post.ID,
		Platform:       post.Platform,
		ExternalPostID: externalID,
		Diagnostic:     diagnostic,
	}
	if _, err := e.history.Create(context.Background(), h); err != nil {
		slog.Error("recording posting history failed", "post_id", post.ID, "err", err)
	}
}
