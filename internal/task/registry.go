package task

import (
	"fmt"
	"sort"
	"sync"

	"github.com/handiism/gofile-downloader/internal/common"
)

// Registry maps task IDs to tasks for the lifetime of the process.
//
// A Registry starts empty and needs no teardown. It only guards the map;
// each Task synchronizes its own state.
type Registry struct {
	mu    sync.RWMutex
	tasks map[string]*Task
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{tasks: make(map[string]*Task)}
}

// Add registers t, replacing any task with the same ID.
func (r *Registry) Add(t *Task) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tasks[t.ID()] = t
}

// Get returns the task with id or common.ErrTaskNotFound.
func (r *Registry) Get(id string) (*Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tasks[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", common.ErrTaskNotFound, id)
	}
	return t, nil
}

// Delete removes and returns the task with id.
func (r *Registry) Delete(id string) (*Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", common.ErrTaskNotFound, id)
	}
	delete(r.tasks, id)
	return t, nil
}

// List returns every task, oldest first.
func (r *Registry) List() []*Task {
	r.mu.RLock()
	tasks := make([]*Task, 0, len(r.tasks))
	for _, t := range r.tasks {
		tasks = append(tasks, t)
	}
	r.mu.RUnlock()

	sort.Slice(tasks, func(i, j int) bool {
		if !tasks[i].CreatedAt().Equal(tasks[j].CreatedAt()) {
			return tasks[i].CreatedAt().Before(tasks[j].CreatedAt())
		}
		return tasks[i].ID() < tasks[j].ID()
	})
	return tasks
}

// Len returns the number of registered tasks.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tasks)
}
