package task

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Priority levels for a task.
const (
	PriorityLow      = "low"
	PriorityMedium   = "medium"
	PriorityHigh     = "high"
	PriorityCritical = "critical"
)

// Recurrence types for a recurring task.
const (
	RecurDaily   = "daily"
	RecurWeekly  = "weekly"
	RecurMonthly = "monthly"
	RecurYearly  = "yearly"
)

// Sentinel errors returned by stores. The HTTP layer maps these to
// 404, 403 and 400 respectively.
var (
	ErrNotFound   = errors.New("task not found")
	ErrForbidden  = errors.New("task belongs to another user")
	ErrValidation = errors.New("validation failed")
)

// Task represents a unit of work owned by exactly one user.
type Task struct {
	ID                 int64      `json:"id"`
	UserID             string     `json:"user_id"`
	Title              string     `json:"title"`
	Description        string     `json:"description"`
	Completed          bool       `json:"completed"`
	Priority           string     `json:"priority"` // low, medium, high, critical
	Tags               []string   `json:"tags"`
	DueDate            *time.Time `json:"due_date,omitempty"`
	ReminderTime       *time.Time `json:"reminder_time,omitempty"`
	IsRecurring        bool       `json:"is_recurring"`
	RecurrenceType     string     `json:"recurrence_type,omitempty"` // daily, weekly, monthly, yearly
	RecurrenceInterval int        `json:"recurrence_interval"`
	ParentTaskID       *int64     `json:"parent_task_id,omitempty"` // weak back-reference to the generating task
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// Validate checks the boundary invariants before a task reaches the store.
func (t *Task) Validate() error {
	if n := len(t.Title); n < 1 || n > 200 {
		return fmt.Errorf("%w: title must be 1-200 characters, got %d", ErrValidation, n)
	}
	if len(t.Description) > 1000 {
		return fmt.Errorf("%w: description must be at most 1000 characters", ErrValidation)
	}
	switch t.Priority {
	case "", PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
	default:
		return fmt.Errorf("%w: unknown priority %q", ErrValidation, t.Priority)
	}
	if t.IsRecurring {
		switch t.RecurrenceType {
		case RecurDaily, RecurWeekly, RecurMonthly, RecurYearly:
		default:
			return fmt.Errorf("%w: unknown recurrence type %q", ErrValidation, t.RecurrenceType)
		}
		if t.RecurrenceInterval < 1 {
			return fmt.Errorf("%w: recurrence interval must be >= 1, got %d", ErrValidation, t.RecurrenceInterval)
		}
	}
	return nil
}

// StatusFilter selects tasks by completion state.
type StatusFilter string

const (
	FilterAll       StatusFilter = "all"
	FilterPending   StatusFilter = "pending"
	FilterCompleted StatusFilter = "completed"
)

// ParseStatusFilter validates a filter string; empty means all.
func ParseStatusFilter(s string) (StatusFilter, error) {
	switch StatusFilter(s) {
	case "", FilterAll:
		return FilterAll, nil
	case FilterPending:
		return FilterPending, nil
	case FilterCompleted:
		return FilterCompleted, nil
	}
	return "", fmt.Errorf("%w: status filter must be all, pending or completed", ErrValidation)
}

// Store is the contract for task persistence. Every operation except
// Create is scoped to a user; accessing another user's task returns
// ErrForbidden, never a silent empty result.
type Store interface {
	Create(ctx context.Context, t *Task) (*Task, error)
	Get(ctx context.Context, userID string, id int64) (*Task, error)
	Update(ctx context.Context, userID string, id int64, updates map[string]any) (*Task, error)
	ToggleComplete(ctx context.Context, userID string, id int64) (*Task, error)
	Delete(ctx context.Context, userID string, id int64) error
	List(ctx context.Context, userID string, filter StatusFilter) ([]Task, error)
	DueReminders(ctx context.Context, now time.Time, limit int) ([]Task, error)
	ClearReminder(ctx context.Context, id int64) error
	EnsureTable(ctx context.Context) error
}
