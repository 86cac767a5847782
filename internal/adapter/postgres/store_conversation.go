package postgres

import (
	"context"
	"fmt"

	"github.com/Strob0t/BotForge/internal/domain/conversation"
)

const conversationColumns = `id, chatbot_id, session_id, mode, archived, created_at, updated_at`

func scanConversation(row scannable) (conversation.Conversation, error) {
	var c conversation.Conversation
	err := row.Scan(&c.ID, &c.ChatbotID, &c.SessionID, &c.Mode, &c.Archived, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

// GetOrCreateConversation returns the active conversation for the given
// session, creating it on first contact. The upsert keeps concurrent first
// messages for the same session from racing into two conversations.
func (s *Store) GetOrCreateConversation(ctx context.Context, chatbotID, sessionID string) (*conversation.Conversation, error) {
	row := s.pool.QueryRow(ctx,
		`INSERT INTO conversations (chatbot_id, session_id)
		 VALUES ($1, $2)
		 ON CONFLICT (chatbot_id, session_id) DO UPDATE SET updated_at = now()
		 RETURNING `+conversationColumns,
		chatbotID, sessionID)

	c, err := scanConversation(row)
	if err != nil {
		return nil, fmt.Errorf("get or create conversation: %w", err)
	}
	return &c, nil
}

func (s *Store) SetConversationMode(ctx context.Context, id string, mode conversation.Mode) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE conversations SET mode = $2, updated_at = now() WHERE id = $1`, id, mode)
	return execExpectOne(tag, err, "set conversation %s mode", id)
}

// ListMessages returns the visible messages of a conversation in
// chronological order. Soft-deleted messages are excluded.
func (s *Store) ListMessages(ctx context.Context, conversationID string) ([]conversation.Message, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, conversation_id, role, content, deleted, created_at
		 FROM messages
		 WHERE conversation_id = $1 AND NOT deleted
		 ORDER BY created_at ASC, id ASC`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var msgs []conversation.Message
	for rows.Next() {
		var m conversation.Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &m.Deleted, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

func (s *Store) CreateMessage(ctx context.Context, msg *conversation.Message) (*conversation.Message, error) {
	var created conversation.Message
	err := s.pool.QueryRow(ctx,
		`INSERT INTO messages (conversation_id, role, content)
		 VALUES ($1, $2, $3)
		 RETURNING id, conversation_id, role, content, deleted, created_at`,
		msg.ConversationID, msg.Role, msg.Content,
	).Scan(&created.ID, &created.ConversationID, &created.Role, &created.Content, &created.Deleted, &created.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("create message: %w", err)
	}
	return &created, nil
}
