package task

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusAccepted  Status = "accepted"
	StatusWorking   Status = "working"
	StatusCompleted Status = "completed"
	StatusError     Status = "error"
)

// Terminal reports whether a task will no longer change.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusError
}

// Evidence is one provenance record attached to a completed task.
type Evidence struct {
	Type  string         `json:"type"`
	Value map[string]any `json:"value"`
}

// Task is the stored state of one forecast request.
type Task struct {
	ID       string         `json:"task_id"`
	Status   Status         `json:"status"`
	Outputs  map[string]any `json:"outputs"`
	Evidence []Evidence     `json:"evidence"`
	Idem     string         `json:"idem,omitempty"`

	// Callback is recorded for audit; delivery is not implemented.
	Callback string `json:"-"`

	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}

func NewID() string {
	return uuid.NewString()
}
