package ws

import (
	"context"
	"encoding/json"
	"log/slog"
)

// Event type constants for WebSocket messages.
const (
	EventTurnDelta     = "turn.delta"
	EventTurnCompleted = "turn.completed"
	EventSyncStatus    = "sync.status"
	EventKnowledge     = "knowledge.ingested"
)

// TurnDeltaEvent is broadcast for each streamed answer fragment so the
// dashboard can mirror a live conversation.
type TurnDeltaEvent struct {
	ChatbotID      string `json:"chatbot_id"`
	ConversationID string `json:"conversation_id"`
	Delta          string `json:"delta"`
}

// TurnCompletedEvent is broadcast when a turn finishes.
type TurnCompletedEvent struct {
	ChatbotID      string `json:"chatbot_id"`
	ConversationID string `json:"conversation_id"`
	Degraded       bool   `json:"degraded"`
	TokensUsed     int64  `json:"tokens_used"`
	ToolsExecuted  int    `json:"tools_executed"`
}

// SyncStatusEvent is broadcast when a channel integration changes sync state.
type SyncStatusEvent struct {
	ChatbotID     string `json:"chatbot_id"`
	IntegrationID string `json:"integration_id"`
	Channel       string `json:"channel"`
	Status        string `json:"status"`
	Error         string `json:"error,omitempty"`
}

// KnowledgeEvent is broadcast when a document finishes indexing.
type KnowledgeEvent struct {
	ChatbotID  string `json:"chatbot_id"`
	DocumentID string `json:"document_id"`
	ChunkCount int    `json:"chunk_count"`
}

// BroadcastEvent marshals a typed event and delivers it to every connection
// subscribed to the given chatbot.
func (h *Hub) BroadcastEvent(ctx context.Context, chatbotID, eventType string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("marshal ws event payload", "type", eventType, "error", err)
		return
	}

	h.broadcast(ctx, chatbotID, Message{
		Type:    eventType,
		Payload: json.RawMessage(data),
	})
}
