package messagequeue

// TurnCompletedPayload is published on SubjectTurnCompleted after each turn.
type TurnCompletedPayload struct {
	ChatbotID      string   `json:"chatbot_id"`
	ConversationID string   `json:"conversation_id"`
	SessionID      string   `json:"session_id"`
	Answer         string   `json:"answer"`
	Degraded       bool     `json:"degraded,omitempty"`
	TokensUsed     int64    `json:"tokens_used"`
	ToolsExecuted  int      `json:"tools_executed"`
	ToolNames      []string `json:"tool_names,omitempty"`
	CreditsUsed    int64    `json:"credits_used"`
}

// KnowledgeIngestedPayload is published after a document is chunked, embedded
// and indexed.
type KnowledgeIngestedPayload struct {
	ChatbotID  string `json:"chatbot_id"`
	DocumentID string `json:"document_id"`
	ChunkCount int    `json:"chunk_count"`
	SizeKB     int    `json:"size_kb"`
}

// ChannelSyncStartPayload asks the channel worker to sync one integration.
type ChannelSyncStartPayload struct {
	IntegrationID string `json:"integration_id"`
	ChatbotID     string `json:"chatbot_id"`
	Channel       string `json:"channel"` // "whatsapp", "telegram", ...
	Attempt       int    `json:"attempt"`
}

// ChannelSyncResultPayload reports the outcome of a channel sync attempt.
type ChannelSyncResultPayload struct {
	IntegrationID string `json:"integration_id"`
	Status        string `json:"status"` // "completed" or "failed"
	Error         string `json:"error,omitempty"`
}
