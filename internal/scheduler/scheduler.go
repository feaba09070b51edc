package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/postpilot/postpilot/internal/models"
	"github.com/postpilot/postpilot/internal/publisher"
)

// PostStore is the slice of the post repository the engine needs.
type PostStore interface {
	ListOverdue(ctx context.Context, now time.Time) ([]*models.ScheduledPost, error)
	ListUpcoming(ctx context.Context, from, to time.Time) ([]*models.ScheduledPost, error)
	MarkPublished(ctx context.Context, id int64, externalPostID string) (bool, error)
	MarkFailed(ctx context.Context, id int64, reason string) (bool, error)
}

// HistoryStore records publish outcomes.
type HistoryStore interface {
	Create(ctx context.Context, h *models.PostingHistory) (int64, error)
}

type Config struct {
	PollInterval time.Duration
	Lookahead    time.Duration
	StaleAfter   time.Duration
}

// Engine polls the post store for due and upcoming posts and hands each one
// to a supervisor goroutine that publishes it at its scheduled time. State
// lives in the post rows; on restart the overdue sweep of the first poll
// picks up anything the previous process never finished.
type Engine struct {
	posts   PostStore
	history HistoryStore
	pubs    publisher.Resolver
	clock   Clock
	cfg     Config

	registry *taskRegistry

	mu       sync.Mutex
	running  bool
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	pollErrs int
}

func New(posts PostStore, history HistoryStore, pubs publisher.Resolver, clock Clock, cfg Config) *Engine {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Minute
	}
	if cfg.Lookahead <= 0 {
		cfg.Lookahead = 5 * time.Minute
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = 10 * time.Minute
	}
	if clock == nil {
		clock = NewClock()
	}
	return &Engine{
		posts:    posts,
		history:  history,
		pubs:     pubs,
		clock:    clock,
		cfg:      cfg,
		registry: newTaskRegistry(),
	}
}

// Start launches the poll loop. Calling Start on a running engine is a no-op.
func (e *Engine) Start() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	e.running = true

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.loop(ctx)
	}()
	slog.Info("scheduler started",
		"poll_interval", e.cfg.PollInterval,
		"lookahead", e.cfg.Lookahead)
}

// Stop cancels all supervisors and waits for them to exit. Posts whose
// supervisors had not published yet stay scheduled and are picked up on the
// next Start. Stop on a stopped engine is a no-op.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	e.cancel()
	e.mu.Unlock()

	e.wg.Wait()
	slog.Info("scheduler stopped")
}

func (e *Engine) loop(ctx context.Context) {
	e.pollOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-e.clock.After(e.cfg.PollInterval):
			e.pollOnce(ctx)
		}
	}
}

// pollOnce runs one scheduling cycle: sweep overdue posts, then schedule
// everything due inside the lookahead window. A store error skips the cycle;
// the next poll retries.
func (e *Engine) pollOnce(ctx context.Context) {
	now := e.clock.Now()

	overdue, err := e.posts.ListOverdue(ctx, now)
	if err != nil {
		e.pollErrs++
		slog.Error("listing overdue posts failed", "err", err, "consecutive", e.pollErrs)
		return
	}
	upcoming, err := e.posts.ListUpcoming(ctx, now, now.Add(e.cfg.Lookahead))
	if err != nil {
		e.pollErrs++
		slog.Error("listing upcoming posts failed", "err", err, "consecutive", e.pollErrs)
		return
	}
	e.pollErrs = 0

	for _, p := range overdue {
		lag := now.Sub(p.ScheduledAt)
		if lag > e.cfg.StaleAfter {
			slog.Warn("publishing stale overdue post", "post_id", p.ID, "lag", lag)
		} else {
			slog.Warn("publishing overdue post", "post_id", p.ID, "lag", lag)
		}
		e.spawn(ctx, p, 0)
	}
	for _, p := range upcoming {
		delay := p.ScheduledAt.Sub(now)
		if delay < 0 {
			delay = 0
		}
		e.spawn(ctx, p, delay)
	}
}

func (e *Engine) spawn(ctx context.Context, post *models.ScheduledPost, delay time.Duration) {
	if !e.registry.tryAdd(post.ID) {
		return
	}
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.runSupervisor(ctx, post, delay)
	}()
}

// PendingTasks reports how many supervisors are currently registered.
func (e *Engine) PendingTasks() int {
	return e.registry.len()
}
