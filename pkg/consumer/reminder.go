package consumer

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"todoflow/pkg/event"
	"todoflow/pkg/metrics"
)

// Notifier delivers a reminder to the user. Implementations may log,
// email or push; delivery is best-effort with no retry.
type Notifier interface {
	Notify(ctx context.Context, r event.ReminderData) error
}

// LogNotifier writes reminders to the log. The default Notifier.
type LogNotifier struct {
	Log zerolog.Logger
}

// Notify implements Notifier.
func (n LogNotifier) Notify(_ context.Context, r event.ReminderData) error {
	n.Log.Info().
		Int64("task_id", r.TaskID).
		Str("user_id", r.UserID).
		Time("due_at", r.DueAt).
		Msgf("REMINDER: %s", r.Title)
	return nil
}

// Reminder is the stateless pass-through consumer of reminder.due events.
type Reminder struct {
	notifier Notifier
	log      zerolog.Logger
}

// NewReminder creates a Reminder consumer.
func NewReminder(notifier Notifier, logger zerolog.Logger) *Reminder {
	return &Reminder{notifier: notifier, log: logger}
}

// Handle implements event.Handler for reminder.due events. Events of any
// other type are ignored.
func (c *Reminder) Handle(ctx context.Context, e event.Event) error {
	if e.Type != event.ReminderDue {
		return nil
	}
	if e.Reminder == nil {
		return fmt.Errorf("reminder.due event %s has no reminder payload", e.ID)
	}
	if err := c.notifier.Notify(ctx, *e.Reminder); err != nil {
		return fmt.Errorf("notify reminder for task %d: %w", e.Reminder.TaskID, err)
	}
	metrics.RemindersDelivered.Inc()
	return nil
}
