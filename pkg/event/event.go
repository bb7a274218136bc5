// Package event carries task lifecycle and reminder events from producers
// to subscribers. Two interchangeable-at-construction-time backends exist:
// the in-process Bus (synchronous dispatch, at-most-once) and the
// Kafka-backed Producer/Source pair (at-least-once). A deployment selects
// exactly one backend; the two delivery guarantees are never mixed.
package event

import (
	"context"
	"time"

	"github.com/google/uuid"

	"todoflow/pkg/task"
)

// Type identifies an event kind. The set is closed: publishing any other
// type is accepted but never delivered.
type Type string

const (
	TaskCreated   Type = "task.created"
	TaskCompleted Type = "task.completed"
	TaskDeleted   Type = "task.deleted"
	ReminderDue   Type = "reminder.due"
)

// Types lists every declared event type in subscription-registry order.
var Types = []Type{TaskCreated, TaskCompleted, TaskDeleted, ReminderDue}

// Valid reports whether t is one of the declared types.
func (t Type) Valid() bool {
	switch t {
	case TaskCreated, TaskCompleted, TaskDeleted, ReminderDue:
		return true
	}
	return false
}

// SchemaVersion is stamped on every event so consumers can reject
// payload shapes they don't understand.
const SchemaVersion = 1

// TaskData is the payload of task.* events. Task carries the full
// snapshot at publish time and is only set on task.completed.
type TaskData struct {
	TaskID      int64      `json:"task_id"`
	UserID      string     `json:"user_id"`
	Title       string     `json:"title"`
	IsRecurring bool       `json:"is_recurring"`
	Task        *task.Task `json:"task,omitempty"`
}

// ReminderData is the payload of reminder.due events.
type ReminderData struct {
	TaskID int64     `json:"task_id"`
	UserID string    `json:"user_id"`
	Title  string    `json:"title"`
	DueAt  time.Time `json:"due_at"`
}

// Event is one published occurrence. ID is a time-ordered UUIDv7 and
// doubles as an idempotency key for consumers that need deduplication.
// Exactly one of Task or Reminder is set, matching Type.
type Event struct {
	ID        string        `json:"id"`
	Version   int           `json:"version"`
	Type      Type          `json:"type"`
	Timestamp time.Time     `json:"timestamp"`
	Task      *TaskData     `json:"task,omitempty"`
	Reminder  *ReminderData `json:"reminder,omitempty"`
}

// NewTask builds a task.* event with a fresh ID and publisher timestamp.
func NewTask(typ Type, data TaskData) Event {
	return Event{
		ID:        uuid.Must(uuid.NewV7()).String(),
		Version:   SchemaVersion,
		Type:      typ,
		Timestamp: time.Now(),
		Task:      &data,
	}
}

// NewReminder builds a reminder.due event.
func NewReminder(data ReminderData) Event {
	return Event{
		ID:        uuid.Must(uuid.NewV7()).String(),
		Version:   SchemaVersion,
		Type:      ReminderDue,
		Timestamp: time.Now(),
		Reminder:  &data,
	}
}

// UserID returns the owner of the event's payload, or "" when the event
// carries none. Event access is scoped by this value the same way task
// access is scoped by the task's owner.
func (e Event) UserID() string {
	switch {
	case e.Task != nil:
		return e.Task.UserID
	case e.Reminder != nil:
		return e.Reminder.UserID
	}
	return ""
}

// clone returns a copy that shares no mutable state with the original,
// so a consumer mutating its event cannot corrupt the bus's record.
func (e Event) clone() Event {
	cp := e
	if e.Task != nil {
		td := *e.Task
		if td.Task != nil {
			snap := *td.Task
			if snap.Tags != nil {
				snap.Tags = append([]string(nil), snap.Tags...)
			}
			td.Task = &snap
		}
		cp.Task = &td
	}
	if e.Reminder != nil {
		rd := *e.Reminder
		cp.Reminder = &rd
	}
	return cp
}

// Handler processes a single event. A returned error is logged by the
// dispatching side and never propagated to the publisher.
type Handler func(ctx context.Context, e Event) error

// Publisher is the boundary producers publish through. Implementations
// never surface delivery failure to the caller: a failed publish is
// logged and dropped, and the task mutation that triggered it stands.
type Publisher interface {
	Publish(ctx context.Context, e Event)
	Close() error
}
