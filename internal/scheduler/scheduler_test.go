package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/postpilot/postpilot/internal/models"
	"github.com/postpilot/postpilot/internal/publisher"
	"github.com/postpilot/postpilot/internal/repository"
)

type fakeClock struct {
	mu      sync.Mutex
	now     time.Time
	waiters []fakeWaiter
}

type fakeWaiter struct {
	at time.Time
	ch chan time.Time
}

func newFakeClock(start time.Time) *fakeClock {
	return &fakeClock{now: start}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch := make(chan time.Time, 1)
	at := c.now.Add(d)
	if d <= 0 {
		ch <- at
		return ch
	}
	c.waiters = append(c.waiters, fakeWaiter{at: at, ch: ch})
	return ch
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	now := c.now
	var pending []fakeWaiter
	for _, w := range c.waiters {
		if !w.at.After(now) {
			w.ch <- now
		} else {
			pending = append(pending, w)
		}
	}
	c.waiters = pending
	c.mu.Unlock()
}

type fakePublisher struct {
	mu       sync.Mutex
	calls    map[int64]int
	err      error
	panicMsg string
	degraded string
}

func newFakePublisher() *fakePublisher {
	return &fakePublisher{calls: make(map[int64]int)}
}

func (p *fakePublisher) Publish(ctx context.Context, post *models.ScheduledPost) (*publisher.Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls[post.ID]++
	if p.panicMsg != "" {
		panic(p.panicMsg)
	}
	if p.err != nil {
		return nil, p.err
	}
	return &publisher.Result{ExternalPostID: "ext-1", Degraded: p.degraded}, nil
}

func (p *fakePublisher) callCount(postID int64) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[postID]
}

type testEnv struct {
	posts   *repository.MemoryPostRepository
	history *repository.MemoryPostingHistoryRepository
	pub     *fakePublisher
	clock   *fakeClock
	engine  *Engine
}

func newTestEnv(t *testing.T, start time.Time) *testEnv {
	t.Helper()
	posts := repository.NewMemoryPostRepository()
	history := repository.NewMemoryPostingHistoryRepository()
	pub := newFakePublisher()
	clock := newFakeClock(start)

	registry := publisher.NewRegistry()
	registry.Register(models.PlatformLinkedIn, pub)

	engine := New(posts, history, registry, clock, Config{
		PollInterval: time.Minute,
		Lookahead:    5 * time.Minute,
		StaleAfter:   10 * time.Minute,
	})

	return &testEnv{posts: posts, history: history, pub: pub, clock: clock, engine: engine}
}

func (env *testEnv) createPost(t *testing.T, scheduledAt time.Time) int64 {
	t.Helper()
	id, err := env.posts.Create(context.Background(), nil, &models.ScheduledPost{
		UserID:      1,
		Platform:    models.PlatformLinkedIn,
		Caption:     "hello",
		ScheduledAt: scheduledAt,
		Status:      models.PostStatusScheduled,
	})
	if err != nil {
		t.Fatalf("create post: %v", err)
	}
	return id
}

func (env *testEnv) waitForTasks(t *testing.T) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for env.engine.PendingTasks() > 0 {
		if time.Now().After(deadline) {
			t.Fatalf("supervisors did not finish, %d still pending", env.engine.PendingTasks())
		}
		time.Sleep(time.Millisecond)
	}
}

func (env *testEnv) getPost(t *testing.T, id int64) *models.ScheduledPost {
	t.Helper()
	p, err := env.posts.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("get post: %v", err)
	}
	return p
}

func TestPollPublishesDuePost(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	env := newTestEnv(t, start)
	id := env.createPost(t, start.Add(-time.Minute))

	env.engine.pollOnce(context.Background())
	env.waitForTasks(t)

	if got := env.pub.callCount(id); got != 1 {
		t.Fatalf("publish calls = %d, want 1", got)
	}
	p := env.getPost(t, id)
	if p.Status != models.PostStatusPublished {
		t.Fatalf("status = %q, want published", p.Status)
	}
	if p.ExternalPostID != "ext-1" {
		t.Fatalf("external post id = %q, want ext-1", p.ExternalPostID)
	}
}

func TestRepeatedPollsPublishOnce(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	env := newTestEnv(t, start)
	id := env.createPost(t, start.Add(2*time.Minute))

	ctx := context.Background()
	env.engine.pollOnce(ctx)
	// Second poll sees the same upcoming post while its supervisor is
	// still waiting; the registry must keep it from double-scheduling.
	env.engine.pollOnce(ctx)

	if env.engine.PendingTasks() != 1 {
		t.Fatalf("pending supervisors = %d, want 1", env.engine.PendingTasks())
	}

	env.clock.Advance(2 * time.Minute)
	env.waitForTasks(t)

	if got := env.pub.callCount(id); got != 1 {
		t.Fatalf("publish calls = %d, want 1", got)
	}
}

func TestPollSkipsPostsBeyondLookahead(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	env := newTestEnv(t, start)
	id := env.createPost(t, start.Add(20*time.Minute))

	env.engine.pollOnce(context.Background())

	if env.engine.PendingTasks() != 0 {
		t.Fatalf("pending supervisors = %d, want 0", env.engine.PendingTasks())
	}
	if got := env.pub.callCount(id); got != 0 {
		t.Fatalf("publish calls = %d, want 0", got)
	}
}

func TestSupervisorWaitsForScheduledTime(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	env := newTestEnv(t, start)
	id := env.createPost(t, start.Add(3*time.Minute))

	env.engine.pollOnce(context.Background())

	env.clock.Advance(2 * time.Minute)
	if got := env.pub.callCount(id); got != 0 {
		t.Fatalf("published %d times before scheduled time", got)
	}

	env.clock.Advance(time.Minute)
	env.waitForTasks(t)

	if got := env.pub.callCount(id); got != 1 {
		t.Fatalf("publish calls = %d, want 1", got)
	}
}

func TestRestartSweepPicksUpOverduePost(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	env := newTestEnv(t, start)
	// Scheduled well in the past, as if a previous process died before
	// publishing it.
	id := env.createPost(t, start.Add(-time.Hour))

	env.engine.pollOnce(context.Background())
	env.waitForTasks(t)

	p := env.getPost(t, id)
	if p.Status != models.PostStatusPublished {
		t.Fatalf("status = %q, want published", p.Status)
	}
}

func TestStopLeavesWaitingPostScheduled(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	env := newTestEnv(t, start)
	id := env.createPost(t, start.Add(4*time.Minute))

	env.engine.Start()
	// Give the initial poll a moment to claim the post.
	deadline := time.Now().Add(2 * time.Second)
	for env.engine.PendingTasks() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("supervisor never spawned")
		}
		time.Sleep(time.Millisecond)
	}

	env.engine.Stop()

	p := env.getPost(t, id)
	if p.Status != models.PostStatusScheduled {
		t.Fatalf("status after stop = %q, want scheduled", p.Status)
	}
	if got := env.pub.callCount(id); got != 0 {
		t.Fatalf("publish calls = %d, want 0", got)
	}
}

func TestUnsupportedPlatformFailsWithoutPublishing(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	env := newTestEnv(t, start)

	id, err := env.posts.Create(context.Background(), nil, &models.ScheduledPost{
		UserID:      1,
		Platform:    models.PlatformTwitter,
		Caption:     "hello",
		ScheduledAt: start.Add(-time.Minute),
		Status:      models.PostStatusScheduled,
	})
	if err != nil {
		t.Fatalf("create post: %v", err)
	}

	env.engine.pollOnce(context.Background())
	env.waitForTasks(t)

	p := env.getPost(t, id)
	if p.Status != models.PostStatusFailed {
		t.Fatalf("status = %q, want failed", p.Status)
	}
	if p.Error == "" {
		t.Fatal("failed post has no error recorded")
	}
}

func TestPublishErrorMarksFailedAndRecordsHistory(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	env := newTestEnv(t, start)
	env.pub.err = errors.New("platform rejected request")
	id := env.createPost(t, start.Add(-time.Minute))

	env.engine.pollOnce(context.Background())
	env.waitForTasks(t)

	p := env.getPost(t, id)
	if p.Status != models.PostStatusFailed {
		t.Fatalf("status = %q, want failed", p.Status)
	}

	history, err := env.history.ListByPostID(context.Background(), id)
	if err != nil {
		t.Fatalf("list history: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("history records = %d, want 1", len(history))
	}
	if history[0].Diagnostic == "" {
		t.Fatal("failure history record has no diagnostic")
	}
}

func TestCanceledPublishLeavesPostScheduled(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	env := newTestEnv(t, start)
	env.pub.err = context.Canceled
	id := env.createPost(t, start.Add(-time.Minute))

	env.engine.pollOnce(context.Background())
	env.waitForTasks(t)

	p := env.getPost(t, id)
	if p.Status != models.PostStatusScheduled {
		t.Fatalf("status = %q, want scheduled", p.Status)
	}
}

func TestPollOnStoreErrorSkipsCycle(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	env := newTestEnv(t, start)
	env.createPost(t, start.Add(-time.Minute))

	faulty := newFaultyPostStore(env.posts)
	env.engine.posts = faulty

	env.engine.pollOnce(context.Background())

	if env.engine.PendingTasks() != 0 {
		t.Fatalf("pending supervisors = %d, want 0 after store error", env.engine.PendingTasks())
	}

	// Store recovers; next poll picks the post up.
	faulty.fail = false
	env.engine.pollOnce(context.Background())
	env.waitForTasks(t)
}

type faultyPostStore struct {
	PostStore
	fail bool
}

func newFaultyPostStore(inner PostStore) *faultyPostStore {
	return &faultyPostStore{PostStore: inner, fail: true}
}

func (s *faultyPostStore) ListOverdue(ctx context.Context, now time.Time) ([]*models.ScheduledPost, error) {
	if s.fail {
		return nil, errors.New("store unavailable")
	}
	return s.PostStore.ListOverdue(ctx, now)
}

func TestPanicInPublishMarksPostFailed(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	env := newTestEnv(t, start)
	env.pub.panicMsg = "nil pointer in payload builder"
	id := env.createPost(t, start.Add(-time.Minute))

	env.engine.pollOnce(context.Background())
	env.waitForTasks(t)

	p := env.getPost(t, id)
	if p.Status != models.PostStatusFailed {
		t.Fatalf("status = %q, want failed", p.Status)
	}
	if !strings.Contains(p.Error, "nil pointer in payload builder") {
		t.Fatalf("error = %q, want the panic message recorded", p.Error)
	}
	if env.engine.PendingTasks() != 0 {
		t.Fatalf("pending supervisors = %d, want 0 after panic", env.engine.PendingTasks())
	}
}

// capturingHandler records slog records so tests can assert on levels.
type capturingHandler struct {
	mu      sync.Mutex
	records []slog.Record
}

func (h *capturingHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *capturingHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = append(h.records, r)
	return nil
}

func (h *capturingHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *capturingHandler) WithGroup(string) slog.Handler      { return h }

func (h *capturingHandler) find(msg string) (slog.Record, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, r := range h.records {
		if r.Message == msg {
			return r, true
		}
	}
	return slog.Record{}, false
}

func TestOverduePostsLogAtWarn(t *testing.T) {
	handler := &capturingHandler{}
	prev := slog.Default()
	slog.SetDefault(slog.New(handler))
	t.Cleanup(func() { slog.SetDefault(prev) })

	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	env := newTestEnv(t, start)
	// One overdue post inside the stale bound, one well past it.
	env.createPost(t, start.Add(-time.Minute))
	env.createPost(t, start.Add(-time.Hour))

	env.engine.pollOnce(context.Background())
	env.waitForTasks(t)

	rec, ok := handler.find("publishing overdue post")
	if !ok {
		t.Fatal("no log record for the overdue post")
	}
	if rec.Level != slog.LevelWarn {
		t.Fatalf("overdue log level = %v, want WARN", rec.Level)
	}

	rec, ok = handler.find("publishing stale overdue post")
	if !ok {
		t.Fatal("no log record for the stale overdue post")
	}
	if rec.Level != slog.LevelWarn {
		t.Fatalf("stale overdue log level = %v, want WARN", rec.Level)
	}
}

func TestStartStopIdempotent(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	env := newTestEnv(t, start)

	env.engine.Start()
	env.engine.Start()
	env.engine.Stop()
	env.engine.Stop()
}
