package consumer

import (
	"context"
	"errors"
	"time"

	"todoflow/pkg/event"
	"todoflow/pkg/task"
)

// stubStore is an in-memory task.Store for consumer tests. Only the
// methods the consumers touch do anything useful.
type stubStore struct {
	created   []*task.Task
	createErr error
	nextID    int64

	due      []task.Task
	dueErr   error
	cleared  []int64
	clearErr error
}

func (s *stubStore) Create(_ context.Context, t *task.Task) (*task.Task, error) {
	if s.createErr != nil {
		return nil, s.createErr
	}
	s.nextID++
	out := *t
	out.ID = s.nextID
	s.created = append(s.created, &out)
	return &out, nil
}

func (s *stubStore) Get(context.Context, string, int64) (*task.Task, error) {
	return nil, task.ErrNotFound
}

func (s *stubStore) Update(context.Context, string, int64, map[string]any) (*task.Task, error) {
	return nil, errors.New("not implemented")
}

func (s *stubStore) ToggleComplete(context.Context, string, int64) (*task.Task, error) {
	return nil, errors.New("not implemented")
}

func (s *stubStore) Delete(context.Context, string, int64) error {
	return errors.New("not implemented")
}

func (s *stubStore) List(context.Context, string, task.StatusFilter) ([]task.Task, error) {
	return nil, nil
}

func (s *stubStore) DueReminders(context.Context, time.Time, int) ([]task.Task, error) {
	if s.dueErr != nil {
		return nil, s.dueErr
	}
	return s.due, nil
}

func (s *stubStore) ClearReminder(_ context.Context, id int64) error {
	if s.clearErr != nil {
		return s.clearErr
	}
	s.cleared = append(s.cleared, id)
	return nil
}

func (s *stubStore) EnsureTable(context.Context) error { return nil }

// capturePublisher records published events.
type capturePublisher struct {
	events []event.Event
}

func (p *capturePublisher) Publish(_ context.Context, e event.Event) {
	p.events = append(p.events, e)
}

func (p *capturePublisher) Close() error { return nil }
