package service

import (
	"context"

	"github.com/Strob0t/BotForge/internal/domain/conversation"
	"github.com/Strob0t/BotForge/internal/port/database"
)

// MemoryService loads bounded conversation history and appends new messages.
type MemoryService struct {
	store       database.Store
	tokenBudget int
}

// NewMemoryService creates a new MemoryService with the given per-turn
// history token budget.
func NewMemoryService(store database.Store, tokenBudget int) *MemoryService {
	return &MemoryService{store: store, tokenBudget: tokenBudget}
}

// Window returns the conversation history truncated to the token budget.
// Truncation drops whole user/assistant pairs from the oldest end so the
// model never sees an answer without its question.
func (s *MemoryService) Window(ctx context.Context, conversationID string) ([]conversation.Message, error) {
	msgs, err := s.store.ListMessages(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	return conversation.TruncateWindow(msgs, s.tokenBudget), nil
}

// Append persists one message.
func (s *MemoryService) Append(ctx context.Context, conversationID string, role conversation.Role, content string) (*conversation.Message, error) {
	return s.store.CreateMessage(ctx, &conversation.Message{
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
	})
}
