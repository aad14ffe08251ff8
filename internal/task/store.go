package task

import (
	"context"
	"sync"
	"time"

	"github.com/tuanzicui/openmeteo-agent/internal/logx"
)

// Store keeps live tasks in memory. Terminal tasks are swept after a TTL by
// the janitor; long-term history belongs to the sqlite archive.
type Store struct {
	mu    sync.Mutex
	tasks map[string]*Task
	idem  map[string]string // idempotency key -> task id

	ctxMu  sync.RWMutex
	ctxs   map[string]context.Context
	cancel map[string]context.CancelFunc
}

func NewStore() *Store {
	return &Store{
		tasks:  make(map[string]*Task),
		idem:   make(map[string]string),
		ctxs:   make(map[string]context.Context),
		cancel: make(map[string]context.CancelFunc),
	}
}

// Create registers a new accepted task. Returns false when the id is taken.
func (s *Store) Create(id, callback string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.tasks[id]; exists {
		return false
	}
	now := time.Now()
	s.tasks[id] = &Task{
		ID:        id,
		Status:    StatusAccepted,
		Outputs:   map[string]any{},
		Evidence:  []Evidence{},
		Callback:  callback,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return true
}

// Get returns a copy of the task so callers cannot race with workers.
func (s *Store) Get(id string) (Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return Task{}, false
	}
	return snapshot(t), true
}

// SetWorking marks the task as picked up by a worker.
func (s *Store) SetWorking(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.tasks[id]; ok {
		t.Status = StatusWorking
		t.UpdatedAt = time.Now()
	}
}

// SetIdem records the effective idempotency key and indexes it.
func (s *Store) SetIdem(id, key string) {
	if key == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.tasks[id]; ok {
		t.Idem = key
		t.UpdatedAt = time.Now()
		s.idem[key] = id
	}
}

// FindByIdem returns the live task id registered under an idempotency key.
func (s *Store) FindByIdem(key string) (string, bool) {
	if key == "" {
		return "", false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.idem[key]
	return id, ok
}

// Complete stores the final outputs and evidence.
func (s *Store) Complete(id string, outputs map[string]any, evidence []Evidence) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.tasks[id]; ok {
		t.Status = StatusCompleted
		t.Outputs = outputs
		t.Evidence = evidence
		t.UpdatedAt = time.Now()
	}
}

// Fail marks the task failed with an error payload.
func (s *Store) Fail(id string, outputs map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.tasks[id]; ok {
		t.Status = StatusError
		t.Outputs = outputs
		t.UpdatedAt = time.Now()
	}
}

// Delete removes a task and its idempotency index entry.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	if t, ok := s.tasks[id]; ok {
		if t.Idem != "" && s.idem[t.Idem] == id {
			delete(s.idem, t.Idem)
		}
		delete(s.tasks, id)
	}
	s.mu.Unlock()
	s.CancelTask(id)
}

// Sweep removes terminal tasks older than ttl and returns the removed copies
// so the caller can archive them.
func (s *Store) Sweep(ttl time.Duration) []Task {
	cutoff := time.Now().Add(-ttl)
	var removed []Task

	s.mu.Lock()
	for id, t := range s.tasks {
		if t.Status.Terminal() && t.UpdatedAt.Before(cutoff) {
			removed = append(removed, snapshot(t))
			if t.Idem != "" && s.idem[t.Idem] == id {
				delete(s.idem, t.Idem)
			}
			delete(s.tasks, id)
		}
	}
	s.mu.Unlock()

	for _, t := range removed {
		s.CancelTask(t.ID)
	}
	return removed
}

// Janitor periodically sweeps expired tasks until the context ends. Each
// sweep's casualties are handed to onExpired (nil is fine).
func (s *Store) Janitor(ctx context.Context, interval, ttl time.Duration, onExpired func([]Task)) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			expired := s.Sweep(ttl)
			if len(expired) > 0 {
				logx.Info("Janitor", "swept %d expired tasks", len(expired))
				if onExpired != nil {
					onExpired(expired)
				}
			}
		case <-ctx.Done():
			return nil
		}
	}
}

// Len reports the number of live tasks.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

func snapshot(t *Task) Task {
	cp := *t
	cp.Outputs = make(map[string]any, len(t.Outputs))
	for k, v := range t.Outputs {
		cp.Outputs[k] = v
	}
	cp.Evidence = make([]Evidence, len(t.Evidence))
	copy(cp.Evidence, t.Evidence)
	return cp
}

// --- per-task contexts ---

// NewTaskContext creates and stores a cancelable context for a task id with
// the given timeout.
func (s *Store) NewTaskContext(parent context.Context, id string, timeout time.Duration) context.Context {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithTimeout(parent, timeout)
	s.ctxMu.Lock()
	s.ctxs[id] = ctx
	s.cancel[id] = cancel
	s.ctxMu.Unlock()
	return ctx
}

// TaskContext retrieves the context for a task id, if any.
func (s *Store) TaskContext(id string) (context.Context, bool) {
	s.ctxMu.RLock()
	ctx, ok := s.ctxs[id]
	s.ctxMu.RUnlock()
	return ctx, ok
}

// CancelTask cancels and removes a task context.
func (s *Store) CancelTask(id string) {
	s.ctxMu.Lock()
	if c, ok := s.cancel[id]; ok {
		c()
	}
	delete(s.cancel, id)
	delete(s.ctxs, id)
	s.ctxMu.Unlock()
}
