// Package consumer holds the long-running subscribers of the event
// pipeline: recurring-task regeneration and reminder delivery. Each
// consumer exposes a single Handle method usable both as an in-process
// bus handler and as the callback of a Kafka source loop.
package consumer

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"todoflow/pkg/event"
	"todoflow/pkg/metrics"
	"todoflow/pkg/recurrence"
	"todoflow/pkg/task"
)

// Recurring creates the next occurrence of a recurring task when its
// completion event arrives. Non-recurring completions are a no-op, not
// an error. Recurrence anchors to the wall clock at processing time, so
// a late completion shifts the following occurrence accordingly.
type Recurring struct {
	store task.Store
	log   zerolog.Logger
	now   func() time.Time
}

// NewRecurring creates a Recurring consumer.
func NewRecurring(store task.Store, logger zerolog.Logger) *Recurring {
	return &Recurring{
		store: store,
		log:   logger,
		now:   time.Now,
	}
}

// Handle implements event.Handler for task.completed events. Events of
// any other type are ignored.
func (c *Recurring) Handle(ctx context.Context, e event.Event) error {
	if e.Type != event.TaskCompleted {
		return nil
	}
	data := e.Task
	if data == nil {
		return fmt.Errorf("task.completed event %s has no task payload", e.ID)
	}
	if !data.IsRecurring {
		return nil
	}
	parent := data.Task
	if parent == nil {
		return fmt.Errorf("recurring completion event %s has no task snapshot", e.ID)
	}

	next := recurrence.NextOccurrence(c.now(), parent.RecurrenceType, parent.RecurrenceInterval)
	child := recurrence.DeriveChild(parent, next, data.UserID)

	created, err := c.store.Create(ctx, child)
	if err != nil {
		return fmt.Errorf("create next occurrence of task %d: %w", data.TaskID, err)
	}

	c.log.Info().
		Int64("parent_task_id", data.TaskID).
		Int64("task_id", created.ID).
		Time("due_date", next).
		Msg("next occurrence created")
	metrics.RecurringSpawned.Inc()
	return nil
}
