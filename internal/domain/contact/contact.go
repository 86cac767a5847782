// Package contact defines leads captured by the save_contact tool.
package contact

import "time"

// Contact is a lead captured during a conversation, owned by one chatbot.
type Contact struct {
	ID             string    `json:"id"`
	ChatbotID      string    `json:"chatbot_id"`
	ConversationID string    `json:"conversation_id,omitempty"`
	Name           string    `json:"name,omitempty"`
	Email          string    `json:"email"`
	Phone          string    `json:"phone,omitempty"`
	Note           string    `json:"note,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}
