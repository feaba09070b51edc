package scheduler

import "sync"

// taskRegistry tracks post IDs that currently have a supervisor goroutine,
// so repeated poll cycles never spawn a second one for the same post.
type taskRegistry struct {
	mu    sync.Mutex
	tasks map[int64]struct{}
}

func newTaskRegistry() *taskRegistry {
	return &taskRegistry{tasks: make(map[int64]struct{})}
}

// tryAdd claims the post ID. It returns false if a supervisor already owns it.
func (r *taskRegistry) tryAdd(id int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tasks[id]; ok {
		return false
	}
	r.tasks[id] = struct{}{}
	return true
}

func (r *taskRegistry) remove(id int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tasks, id)
}

func (r *taskRegistry) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tasks)
}
