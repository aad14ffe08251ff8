package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/tuanzicui/openmeteo-agent/internal/task"
)

// Archive is the persistence contract for expired tasks. The API falls back
// to it when a polled task has already been swept from memory.
type Archive interface {
	Save(t task.Task) error
	Get(id string) (task.Task, bool, error)
	ListRecent(limit int) ([]task.Task, error)
	Close() error
}

type SQLiteArchive struct {
	db *sql.DB
}

var _ Archive = (*SQLiteArchive)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS tasks (
	id         TEXT PRIMARY KEY,
	status     TEXT NOT NULL,
	payload    TEXT NOT NULL,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_tasks_updated_at ON tasks(updated_at);
`

// archivedPayload is the JSON stored in the payload column.
type archivedPayload struct {
	Outputs  map[string]any  `json:"outputs"`
	Evidence []task.Evidence `json:"evidence"`
	Idem     string          `json:"idem,omitempty"`
}

func NewSQLiteArchive(path string) (*SQLiteArchive, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite archive: %w", err)
	}
	// modernc sqlite is single-writer; serialize access through one conn.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating archive schema: %w", err)
	}
	return &SQLiteArchive{db: db}, nil
}

func (a *SQLiteArchive) Save(t task.Task) error {
	payload, err := json.Marshal(archivedPayload{
		Outputs:  t.Outputs,
		Evidence: t.Evidence,
		Idem:     t.Idem,
	})
	if err != nil {
		return fmt.Errorf("encoding task %s: %w", t.ID, err)
	}

	_, err = a.db.Exec(
		`INSERT INTO tasks(id, status, payload, created_at, updated_at)
		 VALUES(?,?,?,?,?)
		 ON CONFLICT(id) DO UPDATE SET
		   status=excluded.status, payload=excluded.payload, updated_at=excluded.updated_at`,
		t.ID, string(t.Status), string(payload),
		t.CreatedAt.UTC().Format(time.RFC3339Nano),
		t.UpdatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("archiving task %s: %w", t.ID, err)
	}
	return nil
}

func (a *SQLiteArchive) Get(id string) (task.Task, bool, error) {
	row := a.db.QueryRow(`SELECT id, status, payload, created_at, updated_at FROM tasks WHERE id = ?`, id)

	var t task.Task
	var status, payload, createdAt, updatedAt string
	if err := row.Scan(&t.ID, &status, &payload, &createdAt, &updatedAt); err != nil {
		if err == sql.ErrNoRows {
			return task.Task{}, false, nil
		}
		return task.Task{}, false, fmt.Errorf("reading archived task %s: %w", id, err)
	}

	var p archivedPayload
	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		return task.Task{}, false, fmt.Errorf("decoding archived task %s: %w", id, err)
	}
	t.Status = task.Status(status)
	t.Outputs = p.Outputs
	t.Evidence = p.Evidence
	t.Idem = p.Idem
	t.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	t.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return t, true, nil
}

func (a *SQLiteArchive) ListRecent(limit int) ([]task.Task, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := a.db.Query(`SELECT id, status, payload, created_at, updated_at FROM tasks ORDER BY updated_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing archived tasks: %w", err)
	}
	defer rows.Close()

	var out []task.Task
	for rows.Next() {
		var t task.Task
		var status, payload, createdAt, updatedAt string
		if err := rows.Scan(&t.ID, &status, &payload, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		var p archivedPayload
		if err := json.Unmarshal([]byte(payload), &p); err != nil {
			return nil, fmt.Errorf("decoding archived task %s: %w", t.ID, err)
		}
		t.Status = task.Status(status)
		t.Outputs = p.Outputs
		t.Evidence = p.Evidence
		t.Idem = p.Idem
		t.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		t.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
		out = append(out, t)
	}
	return out, rows.Err()
}

func (a *SQLiteArchive) Close() error {
	return a.db.Close()
}
