package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sakif/videohub/internal/apperror"
	"github.com/sakif/videohub/internal/model"
	"github.com/sakif/videohub/internal/repository"
)

// TaskDB persists scheduler jobs so they survive a restart.
type TaskDB struct {
	conn *sql.DB
}

var _ repository.TaskRepository = (*TaskDB)(nil)

func (db *DB) Tasks() *TaskDB {
	return &TaskDB{conn: db.conn}
}

func (s *TaskDB) Create(ctx context.Context, t *model.ScheduledTask) error {
	now := time.Now().UTC()
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	t.CreatedAt = now
	t.UpdatedAt = now
	if t.Status == "" {
		t.Status = model.TaskScheduled
	}

	_, err := s.conn.ExecContext(ctx,
		`INSERT INTO scheduled_tasks (id, name, payload, run_at, status, attempts, last_error, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Name, t.Payload, t.RunAt.UTC(), string(t.Status), t.Attempts, t.LastError, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting task %s: %w", t.Name, err)
	}
	return nil
}

func (s *TaskDB) MarkRunning(ctx context.Context, id string) error {
	result, err := s.conn.ExecContext(ctx,
		`UPDATE scheduled_tasks SET status = ?, attempts = attempts + 1, updated_at = ? WHERE id = ?`,
		string(model.TaskRunning), time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("sqlite: marking task %s running: %w", id, err)
	}
	return checkAffected(result, apperror.NotFound("task", id))
}

func (s *TaskDB) MarkFinished(ctx context.Context, id string, status model.TaskStatus, lastErr string) error {
	result, err := s.conn.ExecContext(ctx,
		`UPDATE scheduled_tasks SET status = ?, last_error = ?, updated_at = ? WHERE id = ?`,
		string(status), lastErr, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("sqlite: finishing task %s: %w", id, err)
	}
	return checkAffected(result, apperror.NotFound("task", id))
}

func (s *TaskDB) Unfinished(ctx context.Context) ([]model.ScheduledTask, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT id, name, payload, run_at, status, attempts, last_error, created_at, updated_at
		 FROM scheduled_tasks WHERE status IN (?, ?) ORDER BY run_at, id`,
		string(model.TaskScheduled), string(model.TaskRunning),
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing unfinished tasks: %w", err)
	}
	defer rows.Close()

	var out []model.ScheduledTask
	for rows.Next() {
		var t model.ScheduledTask
		var status string
		if err := rows.Scan(&t.ID, &t.Name, &t.Payload, &t.RunAt, &status, &t.Attempts,
			&t.LastError, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scanning task row: %w", err)
		}
		t.Status = model.TaskStatus(status)
		out = append(out, t)
	}
	return out, rows.Err()
}
