package consumer

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"todoflow/pkg/event"
	"todoflow/pkg/task"
)

// Scheduler periodically scans for incomplete tasks whose reminder time
// has passed and publishes a reminder.due event for each. The reminder is
// cleared after publishing so it fires once per set, even though the
// downstream delivery is best-effort.
type Scheduler struct {
	store    task.Store
	pub      event.Publisher
	log      zerolog.Logger
	interval time.Duration
	batch    int
}

// NewScheduler creates a Scheduler sweeping at the given interval.
func NewScheduler(store task.Store, pub event.Publisher, interval time.Duration, logger zerolog.Logger) *Scheduler {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Scheduler{
		store:    store,
		pub:      pub,
		log:      logger,
		interval: interval,
		batch:    100,
	}
}

// Run sweeps until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.log.Info().Dur("interval", s.interval).Msg("reminder scheduler started")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep publishes reminder.due for every currently due reminder. A store
// failure is logged and the next tick tries again.
func (s *Scheduler) Sweep(ctx context.Context) {
	due, err := s.store.DueReminders(ctx, time.Now(), s.batch)
	if err != nil {
		s.log.Error().Err(err).Msg("scan due reminders")
		return
	}

	for i := range due {
		t := &due[i]
		if t.ReminderTime == nil {
			continue
		}
		s.pub.Publish(ctx, event.NewReminder(event.ReminderData{
			TaskID: t.ID,
			UserID: t.UserID,
			Title:  t.Title,
			DueAt:  *t.ReminderTime,
		}))
		if err := s.store.ClearReminder(ctx, t.ID); err != nil {
			s.log.Error().Err(err).Int64("task_id", t.ID).Msg("clear reminder")
		}
	}
}
