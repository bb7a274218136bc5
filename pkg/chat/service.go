package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"todoflow/pkg/event"
	"todoflow/pkg/metrics"
	"todoflow/pkg/task"
)

// Result is the outcome of processing one chat message.
type Result struct {
	ConversationID int64     `json:"conversation_id"`
	Response       string    `json:"response"`
	ToolCalls      []string  `json:"tool_calls"`
	MessageID      int64     `json:"message_id"`
	Timestamp      time.Time `json:"timestamp"`
}

// Service wires a Responder to the chat store and executes the tool calls
// it requests against the task store, publishing the same events the HTTP
// handlers would.
type Service struct {
	store     Store
	tasks     task.Store
	pub       event.Publisher
	responder Responder
	log       zerolog.Logger
}

// NewService creates a chat Service.
func NewService(store Store, tasks task.Store, pub event.Publisher, responder Responder, logger zerolog.Logger) *Service {
	return &Service{
		store:     store,
		tasks:     tasks,
		pub:       pub,
		responder: responder,
		log:       logger,
	}
}

// ProcessMessage appends the user message, asks the responder for a reply,
// executes its tool calls and appends the assistant message. A failing
// tool call is logged and skipped; the reply still goes out.
func (s *Service) ProcessMessage(ctx context.Context, userID string, conversationID int64, message string) (*Result, error) {
	if strings.TrimSpace(message) == "" {
		return nil, fmt.Errorf("message must not be empty")
	}
	metrics.ChatRequests.WithLabelValues(s.responder.Mode()).Inc()

	var history []Message
	if conversationID == 0 {
		conv, err := s.store.CreateConversation(ctx, userID)
		if err != nil {
			return nil, err
		}
		conversationID = conv.ID
	} else {
		var err error
		history, err = s.store.Messages(ctx, userID, conversationID)
		if err != nil {
			return nil, err
		}
	}

	if _, err := s.store.AddMessage(ctx, &Message{
		ConversationID: conversationID,
		UserID:         userID,
		Role:           RoleUser,
		Content:        message,
	}); err != nil {
		return nil, err
	}

	reply, err := s.responder.Respond(ctx, userID, history, message)
	if err != nil {
		return nil, fmt.Errorf("responder: %w", err)
	}

	response := reply.Text
	calls := make([]string, 0, len(reply.ToolCalls))
	for _, tc := range reply.ToolCalls {
		desc, extra, err := s.execute(ctx, userID, tc)
		if err != nil {
			s.log.Error().Err(err).Str("tool", tc.Name).Str("user_id", userID).Msg("tool call failed")
			continue
		}
		calls = append(calls, desc)
		if extra != "" {
			response += "\n" + extra
		}
	}

	assistant, err := s.store.AddMessage(ctx, &Message{
		ConversationID: conversationID,
		UserID:         userID,
		Role:           RoleAssistant,
		Content:        response,
	})
	if err != nil {
		return nil, err
	}

	return &Result{
		ConversationID: conversationID,
		Response:       response,
		ToolCalls:      calls,
		MessageID:      assistant.ID,
		Timestamp:      assistant.CreatedAt,
	}, nil
}

// execute runs one tool call and returns a short description plus any
// text to append to the reply.
func (s *Service) execute(ctx context.Context, userID string, tc ToolCall) (desc, extra string, err error) {
	switch tc.Name {
	case "add_task":
		title, _ := tc.Arguments["title"].(string)
		description, _ := tc.Arguments["description"].(string)
		priority, _ := tc.Arguments["priority"].(string)
		t := &task.Task{UserID: userID, Title: title, Description: description, Priority: priority}
		if err := t.Validate(); err != nil {
			return "", "", err
		}
		created, err := s.tasks.Create(ctx, t)
		if err != nil {
			return "", "", err
		}
		metrics.TasksCreated.Inc()
		s.pub.Publish(ctx, event.NewTask(event.TaskCreated, event.TaskData{
			TaskID: created.ID,
			UserID: userID,
			Title:  created.Title,
		}))
		return "add_task: " + created.Title, "", nil

	case "list_tasks":
		status, _ := tc.Arguments["status"].(string)
		filter, err := task.ParseStatusFilter(status)
		if err != nil {
			filter = task.FilterAll
		}
		tasks, err := s.tasks.List(ctx, userID, filter)
		if err != nil {
			return "", "", err
		}
		return "list_tasks", formatTaskList(tasks), nil

	case "complete_task":
		id, ok := intArg(tc.Arguments, "task_id")
		if !ok {
			return "", "", fmt.Errorf("complete_task: missing task_id")
		}
		current, err := s.tasks.Get(ctx, userID, id)
		if err != nil {
			return "", "", err
		}
		if !current.Completed {
			toggled, err := s.tasks.ToggleComplete(ctx, userID, id)
			if err != nil {
				return "", "", err
			}
			metrics.TasksCompleted.Inc()
			s.pub.Publish(ctx, event.NewTask(event.TaskCompleted, event.TaskData{
				TaskID:      toggled.ID,
				UserID:      userID,
				Title:       toggled.Title,
				IsRecurring: toggled.IsRecurring,
				Task:        toggled,
			}))
		}
		return fmt.Sprintf("complete_task: %d", id), "", nil

	case "delete_task":
		id, ok := intArg(tc.Arguments, "task_id")
		if !ok {
			return "", "", fmt.Errorf("delete_task: missing task_id")
		}
		if err := s.tasks.Delete(ctx, userID, id); err != nil {
			return "", "", err
		}
		s.pub.Publish(ctx, event.NewTask(event.TaskDeleted, event.TaskData{
			TaskID: id,
			UserID: userID,
		}))
		return fmt.Sprintf("delete_task: %d", id), "", nil
	}
	return "", "", fmt.Errorf("unknown tool %q", tc.Name)
}

func formatTaskList(tasks []task.Task) string {
	if len(tasks) == 0 {
		return "You have no tasks."
	}
	var b strings.Builder
	for _, t := range tasks {
		mark := "[ ]"
		if t.Completed {
			mark = "[x]"
		}
		fmt.Fprintf(&b, "%s #%d %s", mark, t.ID, t.Title)
		if t.DueDate != nil {
			fmt.Fprintf(&b, " (due %s)", t.DueDate.Format("2006-01-02"))
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// intArg reads an integer argument, accepting the float64 JSON decoding
// produces.
func intArg(args map[string]any, key string) (int64, bool) {
	switch v := args[key].(type) {
	case float64:
		return int64(v), true
	case int64:
		return v, true
	case int:
		return int64(v), true
	}
	return 0, false
}
