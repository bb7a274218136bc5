package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"todoflow/pkg/event"
	"todoflow/pkg/metrics"
	"todoflow/pkg/task"
)

type taskCreateRequest struct {
	Title              string     `json:"title"`
	Description        string     `json:"description"`
	Priority           string     `json:"priority"`
	Tags               []string   `json:"tags"`
	DueDate            *time.Time `json:"due_date"`
	ReminderTime       *time.Time `json:"reminder_time"`
	IsRecurring        bool       `json:"is_recurring"`
	RecurrenceType     string     `json:"recurrence_type"`
	RecurrenceInterval int        `json:"recurrence_interval"`
}

func (s *Server) handleTaskCreate(w http.ResponseWriter, r *http.Request) {
	user, ok := s.authorize(w, r)
	if !ok {
		return
	}

	var req taskCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	t := &task.Task{
		UserID:             user,
		Title:              req.Title,
		Description:        req.Description,
		Priority:           req.Priority,
		Tags:               req.Tags,
		DueDate:            req.DueDate,
		ReminderTime:       req.ReminderTime,
		IsRecurring:        req.IsRecurring,
		RecurrenceType:     req.RecurrenceType,
		RecurrenceInterval: req.RecurrenceInterval,
	}
	if t.IsRecurring && t.RecurrenceInterval == 0 {
		t.RecurrenceInterval = 1
	}
	if err := t.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	created, err := s.deps.Tasks.Create(r.Context(), t)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	metrics.TasksCreated.Inc()

	s.deps.Publisher.Publish(r.Context(), event.NewTask(event.TaskCreated, event.TaskData{
		TaskID: created.ID,
		UserID: user,
		Title:  created.Title,
	}))

	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleTaskList(w http.ResponseWriter, r *http.Request) {
	user, ok := s.authorize(w, r)
	if !ok {
		return
	}

	filter, err := task.ParseStatusFilter(r.URL.Query().Get("status"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	tasks, err := s.deps.Tasks.List(r.Context(), user, filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if tasks == nil {
		tasks = []task.Task{}
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (s *Server) handleTaskGet(w http.ResponseWriter, r *http.Request) {
	user, ok := s.authorize(w, r)
	if !ok {
		return
	}
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid task id")
		return
	}

	t, err := s.deps.Tasks.Get(r.Context(), user, id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

type taskUpdateRequest struct {
	Title              *string    `json:"title"`
	Description        *string    `json:"description"`
	Priority           *string    `json:"priority"`
	Tags               *[]string  `json:"tags"`
	DueDate            *time.Time `json:"due_date"`
	ReminderTime       *time.Time `json:"reminder_time"`
	IsRecurring        *bool      `json:"is_recurring"`
	RecurrenceType     *string    `json:"recurrence_type"`
	RecurrenceInterval *int       `json:"recurrence_interval"`
}

func (r taskUpdateRequest) validate() error {
	if r.Title != nil {
		if n := len(*r.Title); n < 1 || n > 200 {
			return fmt.Errorf("%w: title must be 1-200 characters", task.ErrValidation)
		}
	}
	if r.Description != nil && len(*r.Description) > 1000 {
		return fmt.Errorf("%w: description must be at most 1000 characters", task.ErrValidation)
	}
	if r.Priority != nil {
		switch *r.Priority {
		case task.PriorityLow, task.PriorityMedium, task.PriorityHigh, task.PriorityCritical:
		default:
			return fmt.Errorf("%w: unknown priority %q", task.ErrValidation, *r.Priority)
		}
	}
	if r.RecurrenceType != nil {
		switch *r.RecurrenceType {
		case "", task.RecurDaily, task.RecurWeekly, task.RecurMonthly, task.RecurYearly:
		default:
			return fmt.Errorf("%w: unknown recurrence type %q", task.ErrValidation, *r.RecurrenceType)
		}
	}
	if r.RecurrenceInterval != nil && *r.RecurrenceInterval < 1 {
		return fmt.Errorf("%w: recurrence interval must be >= 1", task.ErrValidation)
	}
	return nil
}

func (r taskUpdateRequest) updates() map[string]any {
	u := map[string]any{}
	if r.Title != nil {
		u["title"] = *r.Title
	}
	if r.Description != nil {
		u["description"] = *r.Description
	}
	if r.Priority != nil {
		u["priority"] = *r.Priority
	}
	if r.Tags != nil {
		u["tags"] = *r.Tags
	}
	if r.DueDate != nil {
		u["due_date"] = *r.DueDate
	}
	if r.ReminderTime != nil {
		u["reminder_time"] = *r.ReminderTime
	}
	if r.IsRecurring != nil {
		u["is_recurring"] = *r.IsRecurring
	}
	if r.RecurrenceType != nil {
		u["recurrence_type"] = *r.RecurrenceType
	}
	if r.RecurrenceInterval != nil {
		u["recurrence_interval"] = *r.RecurrenceInterval
	}
	return u
}

func (s *Server) handleTaskUpdate(w http.ResponseWriter, r *http.Request) {
	user, ok := s.authorize(w, r)
	if !ok {
		return
	}
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid task id")
		return
	}

	var req taskUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	current, err := s.deps.Tasks.Get(r.Context(), user, id)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	// Per-field checks above cannot see the merged record; the recurrence
	// invariant spans fields, so check it against request plus current.
	updates := req.updates()
	recurring := current.IsRecurring
	if req.IsRecurring != nil {
		recurring = *req.IsRecurring
	}
	if recurring {
		rtype := current.RecurrenceType
		if req.RecurrenceType != nil {
			rtype = *req.RecurrenceType
		}
		switch rtype {
		case task.RecurDaily, task.RecurWeekly, task.RecurMonthly, task.RecurYearly:
		default:
			writeError(w, http.StatusBadRequest,
				fmt.Sprintf("%s: recurring task needs a recurrence type", task.ErrValidation))
			return
		}
		interval := current.RecurrenceInterval
		if req.RecurrenceInterval != nil {
			interval = *req.RecurrenceInterval
		}
		if interval < 1 {
			updates["recurrence_interval"] = 1
		}
	}

	t, err := s.deps.Tasks.Update(r.Context(), user, id, updates)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleTaskToggle(w http.ResponseWriter, r *http.Request) {
	user, ok := s.authorize(w, r)
	if !ok {
		return
	}
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid task id")
		return
	}

	t, err := s.deps.Tasks.ToggleComplete(r.Context(), user, id)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	// Only a pending->completed transition feeds the recurrence pipeline;
	// un-completing a task publishes nothing.
	if t.Completed {
		metrics.TasksCompleted.Inc()
		s.deps.Publisher.Publish(r.Context(), event.NewTask(event.TaskCompleted, event.TaskData{
			TaskID:      t.ID,
			UserID:      user,
			Title:       t.Title,
			IsRecurring: t.IsRecurring,
			Task:        t,
		}))
	}

	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleTaskDelete(w http.ResponseWriter, r *http.Request) {
	user, ok := s.authorize(w, r)
	if !ok {
		return
	}
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid task id")
		return
	}

	if err := s.deps.Tasks.Delete(r.Context(), user, id); err != nil {
		writeStoreError(w, err)
		return
	}

	s.deps.Publisher.Publish(r.Context(), event.NewTask(event.TaskDeleted, event.TaskData{
		TaskID: id,
		UserID: user,
	}))

	w.WriteHeader(http.StatusNoContent)
}

func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, task.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, task.ErrForbidden):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, task.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
