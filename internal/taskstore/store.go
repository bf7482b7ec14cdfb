// Package taskstore persists submitted tasks and their outcomes in SQLite.
package taskstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	_ "modernc.org/sqlite" // pure Go SQLite driver, no CGO

	"github.com/ken0yuan/auto-ai-web/internal/taskstore/migrations"
)

// ErrNotFound is returned by Get for unknown task IDs.
var ErrNotFound = errors.New("task not found")

// Task statuses. A task moves pending → processing → completed or failed.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Task is one submitted automation job.
type Task struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	Task      string    `json:"task"`
	Status    string    `json:"status"`
	Result    string    `json:"result,omitempty"`
	Error     string    `json:"error,omitempty"`
	Steps     int       `json:"steps"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store wraps the single-connection SQLite handle.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path and applies migrations.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// SQLite handles concurrent writers poorly; serialize everything
	// through one connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := migrations.Run(db); err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close closes the underlying handle.
func (s *Store) Close() error { return s.db.Close() }

// Create inserts a new pending task and returns it.
func (s *Store) Create(ctx context.Context, url, task string) (*Task, error) {
	t := &Task{
		ID:        uuid.NewString(),
		URL:       url,
		Task:      task,
		Status:    StatusPending,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tasks (id, url, task, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		t.ID, t.URL, t.Task, t.Status, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert task: %w", err)
	}
	return t, nil
}

// Get returns one task by ID.
func (s *Store) Get(ctx context.Context, id string) (*Task, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, url, task, status, result, error, steps, created_at, updated_at FROM tasks WHERE id = ?`, id)
	var t Task
	err := row.Scan(&t.ID, &t.URL, &t.Task, &t.Status, &t.Result, &t.Error, &t.Steps, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("query task: %w", err)
	}
	return &t, nil
}

// NextPending claims the oldest pending task, marking it processing. It
// returns ErrNotFound when the queue is empty.
func (s *Store) NextPending(ctx context.Context) (*Task, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id FROM tasks WHERE status = ? ORDER BY created_at LIMIT 1`, StatusPending)
	var id string
	if err := row.Scan(&id); errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, fmt.Errorf("query pending: %w", err)
	}
	if err := s.setStatus(ctx, id, StatusProcessing, "", "", 0); err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

// Complete marks a task finished with its result.
func (s *Store) Complete(ctx context.Context, id, result string, steps int) error {
	return s.setStatus(ctx, id, StatusCompleted, result, "", steps)
}

// Fail marks a task failed with the error message.
func (s *Store) Fail(ctx context.Context, id, errMsg string, steps int) error {
	return s.setStatus(ctx, id, StatusFailed, "", errMsg, steps)
}

func (s *Store) setStatus(ctx context.Context, id, status, result, errMsg string, steps int) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET status = ?, result = ?, error = ?, steps = ?, updated_at = ? WHERE id = ?`,
		status, result, errMsg, steps, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("update task %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}
