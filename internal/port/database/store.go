// Package database defines the database store port (interface).
package database

import (
	"context"

	"github.com/Strob0t/BotForge/internal/domain/chatbot"
	"github.com/Strob0t/BotForge/internal/domain/contact"
	"github.com/Strob0t/BotForge/internal/domain/conversation"
	"github.com/Strob0t/BotForge/internal/domain/knowledge"
	"github.com/Strob0t/BotForge/internal/domain/usage"
)

// Store is the port interface for database operations. Every tenant-scoped
// method takes the chatbot id explicitly; implementations must filter on it.
type Store interface {
	// Chatbots
	CreateChatbot(ctx context.Context, req chatbot.CreateRequest) (*chatbot.Chatbot, error)
	GetChatbot(ctx context.Context, id string) (*chatbot.Chatbot, error)
	ListChatbots(ctx context.Context, accountID string) ([]chatbot.Chatbot, error)
	UpdateChatbot(ctx context.Context, id string, req chatbot.UpdateRequest) (*chatbot.Chatbot, error)
	UpdateChatbotStatus(ctx context.Context, id string, status chatbot.Status) error
	AddKnowledgeSize(ctx context.Context, id string, deltaKB int) error

	// Conversations
	GetOrCreateConversation(ctx context.Context, chatbotID, sessionID string) (*conversation.Conversation, error)
	SetConversationMode(ctx context.Context, id string, mode conversation.Mode) error
	ListMessages(ctx context.Context, conversationID string) ([]conversation.Message, error)
	CreateMessage(ctx context.Context, msg *conversation.Message) (*conversation.Message, error)

	// Knowledge documents
	CreateDocument(ctx context.Context, doc *knowledge.Document) (*knowledge.Document, error)
	GetDocument(ctx context.Context, chatbotID, id string) (*knowledge.Document, error)
	ListDocuments(ctx context.Context, chatbotID string) ([]knowledge.Document, error)
	DeleteDocument(ctx context.Context, chatbotID, id string) error
	ListDocumentIDs(ctx context.Context, chatbotID string) ([]string, error)

	// Usage
	IncrementUsage(ctx context.Context, chatbotID, period string, d usage.Delta) error
	GetUsage(ctx context.Context, chatbotID, period string) (*usage.Record, error)
	CreateToolInvocation(ctx context.Context, inv *usage.ToolInvocation) error
	CountToolInvocations(ctx context.Context, conversationID string) (int64, error)

	// Contacts
	CreateContact(ctx context.Context, c *contact.Contact) (*contact.Contact, error)
}
