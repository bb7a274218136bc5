package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"todoflow/internal/auth"
	"todoflow/pkg/chat"
	"todoflow/pkg/event"
	"todoflow/pkg/task"
)

// memTaskStore is an in-memory task.Store for handler tests.
type memTaskStore struct {
	nextID int64
	tasks  map[int64]*task.Task
}

func newMemTaskStore() *memTaskStore {
	return &memTaskStore{tasks: make(map[int64]*task.Task)}
}

func (s *memTaskStore) Create(_ context.Context, t *task.Task) (*task.Task, error) {
	s.nextID++
	stored := *t
	stored.ID = s.nextID
	now := time.Now()
	stored.CreatedAt = now
	stored.UpdatedAt = now
	s.tasks[stored.ID] = &stored
	out := stored
	return &out, nil
}

func (s *memTaskStore) Get(_ context.Context, userID string, id int64) (*task.Task, error) {
	t, ok := s.tasks[id]
	if !ok {
		return nil, task.ErrNotFound
	}
	if t.UserID != userID {
		return nil, task.ErrForbidden
	}
	out := *t
	return &out, nil
}

func (s *memTaskStore) Update(_ context.Context, userID string, id int64, updates map[string]any) (*task.Task, error) {
	t, err := s.Get(context.Background(), userID, id)
	if err != nil {
		return nil, err
	}
	if v, ok := updates["title"].(string); ok {
		t.Title = v
	}
	if v, ok := updates["priority"].(string); ok {
		t.Priority = v
	}
	if v, ok := updates["description"].(string); ok {
		t.Description = v
	}
	if v, ok := updates["is_recurring"].(bool); ok {
		t.IsRecurring = v
	}
	if v, ok := updates["recurrence_type"].(string); ok {
		t.RecurrenceType = v
	}
	if v, ok := updates["recurrence_interval"].(int); ok {
		t.RecurrenceInterval = v
	}
	t.UpdatedAt = time.Now()
	s.tasks[id] = t
	out := *t
	return &out, nil
}

func (s *memTaskStore) ToggleComplete(_ context.Context, userID string, id int64) (*task.Task, error) {
	t, err := s.Get(context.Background(), userID, id)
	if err != nil {
		return nil, err
	}
	t.Completed = !t.Completed
	s.tasks[id] = t
	out := *t
	return &out, nil
}

func (s *memTaskStore) Delete(_ context.Context, userID string, id int64) error {
	if _, err := s.Get(context.Background(), userID, id); err != nil {
		return err
	}
	delete(s.tasks, id)
	return nil
}

func (s *memTaskStore) List(_ context.Context, userID string, filter task.StatusFilter) ([]task.Task, error) {
	var out []task.Task
	for _, t := range s.tasks {
		if t.UserID != userID {
			continue
		}
		switch filter {
		case task.FilterPending:
			if t.Completed {
				continue
			}
		case task.FilterCompleted:
			if !t.Completed {
				continue
			}
		}
		out = append(out, *t)
	}
	return out, nil
}

func (s *memTaskStore) DueReminders(context.Context, time.Time, int) ([]task.Task, error) {
	return nil, nil
}

func (s *memTaskStore) ClearReminder(context.Context, int64) error { return nil }

func (s *memTaskStore) EnsureTable(context.Context) error { return nil }

// memChatStore is an in-memory chat.Store for handler tests.
type memChatStore struct {
	nextConvID int64
	nextMsgID  int64
	convs      map[int64]*chat.Conversation
	messages   []chat.Message
}

func newMemChatStore() *memChatStore {
	return &memChatStore{convs: make(map[int64]*chat.Conversation)}
}

func (s *memChatStore) CreateConversation(_ context.Context, userID string) (*chat.Conversation, error) {
	s.nextConvID++
	c := &chat.Conversation{ID: s.nextConvID, UserID: userID, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	s.convs[c.ID] = c
	return c, nil
}

func (s *memChatStore) GetConversation(_ context.Context, userID string, id int64) (*chat.Conversation, error) {
	c, ok := s.convs[id]
	if !ok {
		return nil, chat.ErrNotFound
	}
	if c.UserID != userID {
		return nil, chat.ErrForbidden
	}
	return c, nil
}

func (s *memChatStore) Conversations(_ context.Context, userID string) ([]chat.ConversationInfo, error) {
	var out []chat.ConversationInfo
	for _, c := range s.convs {
		if c.UserID != userID {
			continue
		}
		n := 0
		for _, m := range s.messages {
			if m.ConversationID == c.ID {
				n++
			}
		}
		out = append(out, chat.ConversationInfo{ID: c.ID, CreatedAt: c.CreatedAt, UpdatedAt: c.UpdatedAt, MessageCount: n})
	}
	return out, nil
}

func (s *memChatStore) AddMessage(_ context.Context, m *chat.Message) (*chat.Message, error) {
	s.nextMsgID++
	stored := *m
	stored.ID = s.nextMsgID
	stored.CreatedAt = time.Now()
	s.messages = append(s.messages, stored)
	return &stored, nil
}

func (s *memChatStore) Messages(_ context.Context, userID string, conversationID int64) ([]chat.Message, error) {
	if _, err := s.GetConversation(context.Background(), userID, conversationID); err != nil {
		return nil, err
	}
	var out []chat.Message
	for _, m := range s.messages {
		if m.ConversationID == conversationID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *memChatStore) EnsureTables(context.Context) error { return nil }

// testEnv bundles the server and its collaborators.
type testEnv struct {
	server *Server
	tasks  *memTaskStore
	bus    *event.Bus
	auth   *auth.Manager
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	mgr, err := auth.New("test-secret")
	require.NoError(t, err)

	tasks := newMemTaskStore()
	chatStore := newMemChatStore()
	bus := event.NewBus(zerolog.Nop())
	svc := chat.NewService(chatStore, tasks, bus, chat.Mock{}, zerolog.Nop())

	srv := New(Deps{
		Tasks:            tasks,
		Chat:             svc,
		ChatStore:        chatStore,
		Auth:             mgr,
		Publisher:        bus,
		Bus:              bus,
		DevTokenEndpoint: true,
		EventBackend:     "memory",
		Logger:           zerolog.Nop(),
	})
	return &testEnv{server: srv, tasks: tasks, bus: bus, auth: mgr}
}

func (env *testEnv) token(t *testing.T, userID string) string {
	t.Helper()
	token, err := env.auth.CreateToken(userID)
	require.NoError(t, err)
	return token
}

// do performs a request against the server, optionally with a bearer
// token and a JSON body.
func (env *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	env.server.ServeHTTP(rec, req)
	return rec
}

func decodeJSON[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v), rec.Body.String())
	return v
}

func seedTask(t *testing.T, env *testEnv, userID, title string) *task.Task {
	t.Helper()
	created, err := env.tasks.Create(context.Background(), &task.Task{
		UserID: userID, Title: title, Priority: task.PriorityMedium,
	})
	require.NoError(t, err)
	return created
}

func mustRequestOK(t *testing.T, rec *httptest.ResponseRecorder) {
	t.Helper()
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}
