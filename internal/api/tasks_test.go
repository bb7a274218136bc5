package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"todoflow/pkg/event"
	"todoflow/pkg/task"
)

func TestTaskCreate(t *testing.T) {
	env := newTestEnv(t)
	token := env.token(t, "alice")

	rec := env.do(t, http.MethodPost, "/api/alice/tasks", token, map[string]any{
		"title":    "buy milk",
		"priority": "high",
		"tags":     []string{"errands"},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	created := decodeJSON[task.Task](t, rec)
	assert.Equal(t, int64(1), created.ID)
	assert.Equal(t, "alice", created.UserID)
	assert.Equal(t, "buy milk", created.Title)
	assert.Equal(t, task.PriorityHigh, created.Priority)

	events := env.bus.Events(event.TaskCreated)
	require.Len(t, events, 1)
	assert.Equal(t, created.ID, events[0].Task.TaskID)
}

func TestTaskCreateDefaultsRecurrenceInterval(t *testing.T) {
	env := newTestEnv(t)
	token := env.token(t, "alice")

	rec := env.do(t, http.MethodPost, "/api/alice/tasks", token, map[string]any{
		"title":           "water plants",
		"priority":        "medium",
		"is_recurring":    true,
		"recurrence_type": "weekly",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	created := decodeJSON[task.Task](t, rec)
	assert.Equal(t, 1, created.RecurrenceInterval)
}

func TestTaskCreateValidation(t *testing.T) {
	env := newTestEnv(t)
	token := env.token(t, "alice")

	tests := []struct {
		name string
		body map[string]any
	}{
		{"missing title", map[string]any{"priority": "low"}},
		{"bad priority", map[string]any{"title": "x", "priority": "sometime"}},
		{"recurring without type", map[string]any{"title": "x", "priority": "low", "is_recurring": true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/api/alice/tasks", token, tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
		})
	}
	assert.Empty(t, env.bus.Events(event.TaskCreated))
}

func TestTaskListFiltersByStatus(t *testing.T) {
	env := newTestEnv(t)
	token := env.token(t, "alice")

	seedTask(t, env, "alice", "pending one")
	done := seedTask(t, env, "alice", "done one")
	_, err := env.tasks.ToggleComplete(t.Context(), "alice", done.ID)
	require.NoError(t, err)
	seedTask(t, env, "bob", "not mine")

	rec := env.do(t, http.MethodGet, "/api/alice/tasks", token, nil)
	mustRequestOK(t, rec)
	assert.Len(t, decodeJSON[[]task.Task](t, rec), 2)

	rec = env.do(t, http.MethodGet, "/api/alice/tasks?status=pending", token, nil)
	mustRequestOK(t, rec)
	got := decodeJSON[[]task.Task](t, rec)
	require.Len(t, got, 1)
	assert.Equal(t, "pending one", got[0].Title)

	rec = env.do(t, http.MethodGet, "/api/alice/tasks?status=completed", token, nil)
	mustRequestOK(t, rec)
	got = decodeJSON[[]task.Task](t, rec)
	require.Len(t, got, 1)
	assert.Equal(t, "done one", got[0].Title)

	rec = env.do(t, http.MethodGet, "/api/alice/tasks?status=bogus", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTaskListEmptyIsJSONArray(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/api/alice/tasks", env.token(t, "alice"), nil)
	mustRequestOK(t, rec)
	assert.Equal(t, "[]\n", rec.Body.String())
}

func TestTaskGet(t *testing.T) {
	env := newTestEnv(t)
	created := seedTask(t, env, "alice", "buy milk")

	rec := env.do(t, http.MethodGet, "/api/alice/tasks/1", env.token(t, "alice"), nil)
	mustRequestOK(t, rec)
	got := decodeJSON[task.Task](t, rec)
	assert.Equal(t, created.ID, got.ID)

	rec = env.do(t, http.MethodGet, "/api/alice/tasks/99", env.token(t, "alice"), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/alice/tasks/abc", env.token(t, "alice"), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTaskUpdate(t *testing.T) {
	env := newTestEnv(t)
	seedTask(t, env, "alice", "old title")

	rec := env.do(t, http.MethodPut, "/api/alice/tasks/1", env.token(t, "alice"), map[string]any{
		"title":    "new title",
		"priority": "critical",
	})
	mustRequestOK(t, rec)
	got := decodeJSON[task.Task](t, rec)
	assert.Equal(t, "new title", got.Title)
	assert.Equal(t, task.PriorityCritical, got.Priority)
}

func TestTaskUpdateValidation(t *testing.T) {
	env := newTestEnv(t)
	seedTask(t, env, "alice", "x")
	token := env.token(t, "alice")

	rec := env.do(t, http.MethodPut, "/api/alice/tasks/1", token, map[string]any{"title": ""})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPut, "/api/alice/tasks/1", token, map[string]any{"priority": "whenever"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPut, "/api/alice/tasks/1", token, map[string]any{"recurrence_interval": 0})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// Making a task recurring needs a recurrence type on the merged record,
// matching what create enforces; otherwise completion would fall into
// the unknown-type fallback.
func TestTaskUpdateRecurrenceCrossField(t *testing.T) {
	env := newTestEnv(t)
	seedTask(t, env, "alice", "one-off")
	token := env.token(t, "alice")

	rec := env.do(t, http.MethodPut, "/api/alice/tasks/1", token, map[string]any{"is_recurring": true})
	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())

	rec = env.do(t, http.MethodPut, "/api/alice/tasks/1", token, map[string]any{
		"is_recurring":    true,
		"recurrence_type": "weekly",
	})
	mustRequestOK(t, rec)
	got := decodeJSON[task.Task](t, rec)
	assert.True(t, got.IsRecurring)
	assert.Equal(t, task.RecurWeekly, got.RecurrenceType)
	assert.Equal(t, 1, got.RecurrenceInterval)

	// Once the record carries a type, flipping the flag alone is fine.
	rec = env.do(t, http.MethodPut, "/api/alice/tasks/1", token, map[string]any{"is_recurring": false})
	mustRequestOK(t, rec)
	rec = env.do(t, http.MethodPut, "/api/alice/tasks/1", token, map[string]any{"is_recurring": true})
	mustRequestOK(t, rec)
}

func TestTaskTogglePublishesOnCompletion(t *testing.T) {
	env := newTestEnv(t)
	created, err := env.tasks.Create(t.Context(), &task.Task{
		UserID: "alice", Title: "Water plants", Priority: task.PriorityMedium,
		IsRecurring: true, RecurrenceType: task.RecurWeekly, RecurrenceInterval: 2,
	})
	require.NoError(t, err)
	token := env.token(t, "alice")

	rec := env.do(t, http.MethodPatch, "/api/alice/tasks/1/complete", token, nil)
	mustRequestOK(t, rec)
	got := decodeJSON[task.Task](t, rec)
	assert.True(t, got.Completed)

	events := env.bus.Events(event.TaskCompleted)
	require.Len(t, events, 1)
	assert.Equal(t, created.ID, events[0].Task.TaskID)
	assert.True(t, events[0].Task.IsRecurring)
	require.NotNil(t, events[0].Task.Task)
	assert.Equal(t, task.RecurWeekly, events[0].Task.Task.RecurrenceType)

	// Toggling back to pending publishes nothing.
	rec = env.do(t, http.MethodPatch, "/api/alice/tasks/1/complete", token, nil)
	mustRequestOK(t, rec)
	assert.Len(t, env.bus.Events(event.TaskCompleted), 1)
}

func TestTaskDelete(t *testing.T) {
	env := newTestEnv(t)
	seedTask(t, env, "alice", "old")
	token := env.token(t, "alice")

	rec := env.do(t, http.MethodDelete, "/api/alice/tasks/1", token, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/alice/tasks/1", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	events := env.bus.Events(event.TaskDeleted)
	require.Len(t, events, 1)
	assert.Equal(t, int64(1), events[0].Task.TaskID)

	rec = env.do(t, http.MethodDelete, "/api/alice/tasks/1", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMissingTokenIsUnauthorized(t *testing.T) {
	env := newTestEnv(t)

	for _, req := range []struct{ method, path string }{
		{http.MethodGet, "/api/alice/tasks"},
		{http.MethodPost, "/api/alice/tasks"},
		{http.MethodGet, "/api/alice/tasks/1"},
		{http.MethodDelete, "/api/alice/tasks/1"},
		{http.MethodPost, "/api/alice/chat"},
	} {
		rec := env.do(t, req.method, req.path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, req.method+" "+req.path)
		assert.Equal(t, "Bearer", rec.Header().Get("WWW-Authenticate"))
	}
}

func TestGarbageTokenIsUnauthorized(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/api/alice/tasks", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCrossUserAccessIsForbidden(t *testing.T) {
	env := newTestEnv(t)
	seedTask(t, env, "bob", "bob's task")

	// A valid token for alice cannot touch bob's path or bob's tasks.
	aliceToken := env.token(t, "alice")
	rec := env.do(t, http.MethodGet, "/api/bob/tasks", aliceToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/alice/tasks/1", aliceToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, http.MethodDelete, "/api/alice/tasks/1", aliceToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
