package task

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgStore is a PostgreSQL-backed task store.
type PgStore struct {
	pool *pgxpool.Pool
}

// NewPgStore creates a PgStore.
func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

const taskColumns = `id, user_id, title, description, completed, priority, tags, due_date, reminder_time, is_recurring, recurrence_type, recurrence_interval, parent_task_id, created_at, updated_at`

// EnsureTable creates the tasks table if it doesn't exist.
func (s *PgStore) EnsureTable(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS tasks (
			id                  BIGSERIAL PRIMARY KEY,
			user_id             TEXT NOT NULL,
			title               TEXT NOT NULL,
			description         TEXT NOT NULL DEFAULT '',
			completed           BOOLEAN NOT NULL DEFAULT FALSE,
			priority            TEXT NOT NULL DEFAULT 'medium',
			tags                TEXT[] NOT NULL DEFAULT '{}',
			due_date            TIMESTAMPTZ,
			reminder_time       TIMESTAMPTZ,
			is_recurring        BOOLEAN NOT NULL DEFAULT FALSE,
			recurrence_type     TEXT NOT NULL DEFAULT '',
			recurrence_interval INTEGER NOT NULL DEFAULT 1,
			parent_task_id      BIGINT,
			created_at          TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at          TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `CREATE INDEX IF NOT EXISTS idx_tasks_user ON tasks(user_id)`)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `CREATE INDEX IF NOT EXISTS idx_tasks_completed ON tasks(user_id, completed)`)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `CREATE INDEX IF NOT EXISTS idx_tasks_reminder ON tasks(reminder_time) WHERE reminder_time IS NOT NULL`)
	return err
}

// Create inserts a new task and assigns its id and timestamps.
func (s *PgStore) Create(ctx context.Context, t *Task) (*Task, error) {
	now := time.Now().Truncate(time.Microsecond)
	t.CreatedAt = now
	t.UpdatedAt = now
	if t.Priority == "" {
		t.Priority = PriorityMedium
	}
	if t.Tags == nil {
		t.Tags = []string{}
	}
	if t.RecurrenceInterval == 0 {
		t.RecurrenceInterval = 1
	}

	err := s.pool.QueryRow(ctx, `
		INSERT INTO tasks (user_id, title, description, completed, priority, tags, due_date, reminder_time, is_recurring, recurrence_type, recurrence_interval, parent_task_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id`,
		t.UserID, t.Title, t.Description, t.Completed, t.Priority, t.Tags, t.DueDate, t.ReminderTime, t.IsRecurring, t.RecurrenceType, t.RecurrenceInterval, t.ParentTaskID, t.CreatedAt, t.UpdatedAt).
		Scan(&t.ID)
	if err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	return t, nil
}

// Get retrieves a single task, enforcing ownership.
func (s *PgStore) Get(ctx context.Context, userID string, id int64) (*Task, error) {
	var t Task
	err := s.pool.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id).
		Scan(scanTargets(&t)...)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get task %d: %w", id, err)
	}
	if t.UserID != userID {
		return nil, ErrForbidden
	}
	return &t, nil
}

// Update modifies task fields. Supported keys: title, description, priority,
// tags, due_date, reminder_time, is_recurring, recurrence_type,
// recurrence_interval.
func (s *PgStore) Update(ctx context.Context, userID string, id int64, updates map[string]any) (*Task, error) {
	if _, err := s.Get(ctx, userID, id); err != nil {
		return nil, err
	}

	now := time.Now().Truncate(time.Microsecond)
	setClauses := "updated_at = $1"
	args := []any{now}
	argIdx := 2

	for k, v := range updates {
		switch k {
		case "title", "description", "priority", "tags", "due_date", "reminder_time",
			"is_recurring", "recurrence_type", "recurrence_interval":
			setClauses += fmt.Sprintf(", %s = $%d", k, argIdx)
			args = append(args, v)
			argIdx++
		default:
			return nil, fmt.Errorf("%w: unknown field %q", ErrValidation, k)
		}
	}

	args = append(args, id)
	query := fmt.Sprintf("UPDATE tasks SET %s WHERE id = $%d RETURNING %s", setClauses, argIdx, taskColumns)

	var t Task
	if err := s.pool.QueryRow(ctx, query, args...).Scan(scanTargets(&t)...); err != nil {
		return nil, fmt.Errorf("update task %d: %w", id, err)
	}
	return &t, nil
}

// ToggleComplete flips the completed flag and refreshes updated_at.
func (s *PgStore) ToggleComplete(ctx context.Context, userID string, id int64) (*Task, error) {
	if _, err := s.Get(ctx, userID, id); err != nil {
		return nil, err
	}

	now := time.Now().Truncate(time.Microsecond)
	var t Task
	err := s.pool.QueryRow(ctx, `
		UPDATE tasks SET completed = NOT completed, updated_at = $1
		WHERE id = $2
		RETURNING `+taskColumns, now, id).
		Scan(scanTargets(&t)...)
	if err != nil {
		return nil, fmt.Errorf("toggle task %d: %w", id, err)
	}
	return &t, nil
}

// Delete removes a task, enforcing ownership.
func (s *PgStore) Delete(ctx context.Context, userID string, id int64) error {
	if _, err := s.Get(ctx, userID, id); err != nil {
		return err
	}
	if _, err := s.pool.Exec(ctx, `DELETE FROM tasks WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete task %d: %w", id, err)
	}
	return nil
}

// List returns the user's tasks, optionally filtered by completion state,
// newest first.
func (s *PgStore) List(ctx context.Context, userID string, filter StatusFilter) ([]Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE user_id = $1`
	switch filter {
	case FilterPending:
		query += ` AND completed = FALSE`
	case FilterCompleted:
		query += ` AND completed = TRUE`
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()
	return scanTaskRows(rows)
}

// DueReminders returns incomplete tasks whose reminder time has passed.
func (s *PgStore) DueReminders(ctx context.Context, now time.Time, limit int) ([]Task, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+taskColumns+` FROM tasks
		WHERE reminder_time IS NOT NULL AND reminder_time <= $1 AND completed = FALSE
		ORDER BY reminder_time ASC LIMIT $2`, now, limit)
	if err != nil {
		return nil, fmt.Errorf("due reminders: %w", err)
	}
	defer rows.Close()
	return scanTaskRows(rows)
}

// ClearReminder unsets a task's reminder so it fires once per set.
func (s *PgStore) ClearReminder(ctx context.Context, id int64) error {
	_, err := s.pool.Exec(ctx, `UPDATE tasks SET reminder_time = NULL WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("clear reminder %d: %w", id, err)
	}
	return nil
}

func scanTargets(t *Task) []any {
	return []any{
		&t.ID, &t.UserID, &t.Title, &t.Description, &t.Completed, &t.Priority, &t.Tags,
		&t.DueDate, &t.ReminderTime, &t.IsRecurring, &t.RecurrenceType, &t.RecurrenceInterval,
		&t.ParentTaskID, &t.CreatedAt, &t.UpdatedAt,
	}
}

func scanTaskRows(rows pgx.Rows) ([]Task, error) {
	var tasks []Task
	for rows.Next() {
		var t Task
		if err := rows.Scan(scanTargets(&t)...); err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration: %w", err)
	}
	return tasks, nil
}
