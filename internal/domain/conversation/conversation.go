// Package conversation defines conversations, messages, and the token-budgeted
// history window used to assemble model context.
package conversation

import "time"

// Mode controls who answers a conversation.
type Mode string

const (
	ModeAuto   Mode = "auto"   // agent-driven
	ModeManual Mode = "manual" // human takeover; the orchestrator stays silent
)

// Conversation represents a chat thread belonging to exactly one chatbot.
// Conversations are never hard-deleted, only soft-status-flagged.
type Conversation struct {
	ID        string    `json:"id"`
	ChatbotID string    `json:"chatbot_id"`
	SessionID string    `json:"session_id"` // stable external session identifier
	Mode      Mode      `json:"mode"`
	Archived  bool      `json:"archived"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Role is a message author role.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message is a single message in a conversation. Immutable once persisted
// except for the soft-delete flag.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Role           Role      `json:"role"`
	Content        string    `json:"content"`
	Deleted        bool      `json:"deleted,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}
