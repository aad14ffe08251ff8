package ui

import (
	"html/template"
	"net/http"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

type Event struct {
	Time      time.Time
	Component string
	Kind      string
	Message   string
	Duration  string
}

// UIStore keeps a per-task event timeline for the operator UI. It only holds
// display strings, never raw coordinates (hash-only policy).
type UIStore struct {
	mu    sync.RWMutex
	tasks map[string][]Event
}

func NewUIStore() *UIStore {
	return &UIStore{
		tasks: make(map[string][]Event),
	}
}

// AddEvent records one event for a task.
func (s *UIStore) AddEvent(taskID, component, kind, msg, duration string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ev := Event{
		Time:      time.Now(),
		Component: component,
		Kind:      kind,
		Message:   msg,
		Duration:  duration,
	}
	s.tasks[taskID] = append(s.tasks[taskID], ev)
}

// snapshot returns a safe copy of the data.
func (s *UIStore) snapshot() map[string][]Event {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string][]Event, len(s.tasks))
	for k, v := range s.tasks {
		cp := make([]Event, len(v))
		copy(cp, v)
		out[k] = cp
	}
	return out
}

// HandleIndex lists tasks with their latest event.
func (s *UIStore) HandleIndex(w http.ResponseWriter, r *http.Request) {
	data := s.snapshot()

	type row struct {
		ID        string
		LastEvent Event
		Count     int
	}

	rows := make([]row, 0, len(data))
	for id, evs := range data {
		if len(evs) == 0 {
			continue
		}
		rows = append(rows, row{
			ID:        id,
			LastEvent: evs[len(evs)-1],
			Count:     len(evs),
		})
	}

	sort.Slice(rows, func(i, j int) bool {
		return rows[i].LastEvent.Time.After(rows[j].LastEvent.Time)
	})

	tpl := template.Must(template.ParseFiles(
		filepath.Join("templates", "ui", "index.html"),
	))
	if err := tpl.Execute(w, rows); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
}

// HandleTask shows the full timeline of one task.
func (s *UIStore) HandleTask(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		http.Redirect(w, r, "/ui", http.StatusFound)
		return
	}

	data := s.snapshot()
	events, ok := data[id]
	if !ok {
		http.Error(w, "task not found", http.StatusNotFound)
		return
	}

	sort.Slice(events, func(i, j int) bool {
		return events[i].Time.Before(events[j].Time)
	})

	tpl := template.Must(template.ParseFiles(
		filepath.Join("templates", "ui", "task.html"),
	))
	if err := tpl.Execute(w, struct {
		ID     string
		Events []Event
	}{
		ID:     id,
		Events: events,
	}); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
}
