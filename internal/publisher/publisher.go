package publisher

import (
	"context"
	"fmt"
	"sync"

	"github.com/postpilot/postpilot/internal/models"
)

// Result is the outcome of a successful publish call. Degraded is non-empty
// when the post went out with reduced media (for example a multi-image
// carousel collapsed to its first image).
type Result struct {
	ExternalPostID string
	Degraded       string
}

// Publisher performs the remote publish call for one platform, resolving and
// refreshing the owner's credentials as needed.
type Publisher interface {
	Publish(ctx context.Context, post *models.ScheduledPost) (*Result, error)
}

// Resolver maps a platform name to its Publisher.
type Resolver interface {
	Resolve(platform string) (Publisher, error)
}

// Registry is the default Resolver: a fixed set of publishers keyed by
// platform name, populated at startup.
type Registry struct {
	mu         sync.RWMutex
	publishers map[string]Publisher
}

func NewRegistry() *Registry {
	return &Registry{publishers: make(map[string]Publisher)}
}

func (r *Registry) Register(platform string, p Publisher) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.publishers[platform] = p
}

func (r *Registry) Resolve(platform string) (Publisher, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.publishers[platform]
	if !ok {
		return nil, fmt.Errorf("%s: %w", platform, ErrUnsupportedPlatform)
	}
	return p, nil
}
