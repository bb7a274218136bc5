// Package chat implements the natural-language interface: persisted
// conversations, a pluggable responder (scripted mock or a real
// chat-completions API) and server-side execution of the tool calls the
// responder requests.
package chat

import (
	"context"
	"errors"
	"time"
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

var (
	ErrNotFound  = errors.New("conversation not found")
	ErrForbidden = errors.New("conversation belongs to another user")
)

// Conversation groups the messages of one chat session.
type Conversation struct {
	ID        int64     `json:"id"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ConversationInfo is a Conversation plus its message count, for listings.
type ConversationInfo struct {
	ID           int64     `json:"id"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	MessageCount int       `json:"message_count"`
}

// Message is one turn of a conversation.
type Message struct {
	ID             int64     `json:"id"`
	ConversationID int64     `json:"conversation_id"`
	UserID         string    `json:"user_id"`
	Role           string    `json:"role"` // user or assistant
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}

// Store is the contract for chat persistence.
type Store interface {
	CreateConversation(ctx context.Context, userID string) (*Conversation, error)
	GetConversation(ctx context.Context, userID string, id int64) (*Conversation, error)
	Conversations(ctx context.Context, userID string) ([]ConversationInfo, error)
	AddMessage(ctx context.Context, m *Message) (*Message, error)
	Messages(ctx context.Context, userID string, conversationID int64) ([]Message, error)
	EnsureTables(ctx context.Context) error
}

// ToolCall is an action the responder asks the service to perform.
type ToolCall struct {
	Name      string         `json:"name"` // add_task, list_tasks, complete_task, delete_task
	Arguments map[string]any `json:"arguments"`
}

// Reply is a responder's answer to one user message.
type Reply struct {
	Text      string
	ToolCalls []ToolCall
}

// Responder turns a user message plus conversation history into a reply.
type Responder interface {
	Respond(ctx context.Context, userID string, history []Message, message string) (*Reply, error)
	Mode() string // "mock" or "openai", for logging and metrics
}
