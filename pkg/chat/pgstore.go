package chat

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgStore is a PostgreSQL-backed chat store.
type PgStore struct {
	pool *pgxpool.Pool
}

// NewPgStore creates a PgStore.
func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

// EnsureTables creates the conversations and messages tables if missing.
func (s *PgStore) EnsureTables(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS conversations (
			id         BIGSERIAL PRIMARY KEY,
			user_id    TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS messages (
			id              BIGSERIAL PRIMARY KEY,
			conversation_id BIGINT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
			user_id         TEXT NOT NULL,
			role            TEXT NOT NULL,
			content         TEXT NOT NULL,
			created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `CREATE INDEX IF NOT EXISTS idx_conversations_user ON conversations(user_id)`)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id)`)
	return err
}

// CreateConversation starts a new conversation for the user.
func (s *PgStore) CreateConversation(ctx context.Context, userID string) (*Conversation, error) {
	now := time.Now().Truncate(time.Microsecond)
	c := Conversation{UserID: userID, CreatedAt: now, UpdatedAt: now}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO conversations (user_id, created_at, updated_at)
		VALUES ($1, $2, $3) RETURNING id`,
		userID, now, now).Scan(&c.ID)
	if err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}
	return &c, nil
}

// GetConversation fetches one conversation, enforcing ownership.
func (s *PgStore) GetConversation(ctx context.Context, userID string, id int64) (*Conversation, error) {
	var c Conversation
	err := s.pool.QueryRow(ctx, `
		SELECT id, user_id, created_at, updated_at FROM conversations WHERE id = $1`, id).
		Scan(&c.ID, &c.UserID, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get conversation %d: %w", id, err)
	}
	if c.UserID != userID {
		return nil, ErrForbidden
	}
	return &c, nil
}

// Conversations lists the user's conversations, most recently active first.
func (s *PgStore) Conversations(ctx context.Context, userID string) ([]ConversationInfo, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT c.id, c.created_at, c.updated_at, COUNT(m.id)
		FROM conversations c
		LEFT JOIN messages m ON m.conversation_id = c.id
		WHERE c.user_id = $1
		GROUP BY c.id
		ORDER BY c.updated_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	var infos []ConversationInfo
	for rows.Next() {
		var ci ConversationInfo
		if err := rows.Scan(&ci.ID, &ci.CreatedAt, &ci.UpdatedAt, &ci.MessageCount); err != nil {
			return nil, err
		}
		infos = append(infos, ci)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration: %w", err)
	}
	return infos, nil
}

// AddMessage appends a message and bumps the conversation's updated_at.
func (s *PgStore) AddMessage(ctx context.Context, m *Message) (*Message, error) {
	now := time.Now().Truncate(time.Microsecond)
	m.CreatedAt = now
	err := s.pool.QueryRow(ctx, `
		INSERT INTO messages (conversation_id, user_id, role, content, created_at)
		VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		m.ConversationID, m.UserID, m.Role, m.Content, now).Scan(&m.ID)
	if err != nil {
		return nil, fmt.Errorf("add message: %w", err)
	}
	_, err = s.pool.Exec(ctx, `UPDATE conversations SET updated_at = $1 WHERE id = $2`, now, m.ConversationID)
	if err != nil {
		return nil, fmt.Errorf("touch conversation %d: %w", m.ConversationID, err)
	}
	return m, nil
}

// Messages returns a conversation's messages oldest first, enforcing
// ownership of the conversation.
func (s *PgStore) Messages(ctx context.Context, userID string, conversationID int64) ([]Message, error) {
	if _, err := s.GetConversation(ctx, userID, conversationID); err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, conversation_id, user_id, role, content, created_at
		FROM messages WHERE conversation_id = $1 ORDER BY created_at ASC, id ASC`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var msgs []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.UserID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration: %w", err)
	}
	return msgs, nil
}
