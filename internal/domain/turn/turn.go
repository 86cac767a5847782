// Package turn defines the request/response types for one orchestrator turn:
// a single inbound message becoming a single streamed reply.
package turn

// Phase is the orchestrator's per-turn state.
type Phase string

const (
	PhaseGating         Phase = "gating"
	PhasePromptAssembly Phase = "prompt_assembly"
	PhaseGenerating     Phase = "generating"
	PhaseToolCall       Phase = "tool_call"
	PhaseCompleted      Phase = "completed"
	PhaseFailed         Phase = "failed"
)

// Request is one inbound message bound to a chatbot and session.
type Request struct {
	ChatbotID string `json:"chatbot_id"`
	SessionID string `json:"session_id"`
	Content   string `json:"content"`
	Anonymous bool   `json:"anonymous,omitempty"` // unauthenticated widget session
}

// Metadata describes what a completed turn consumed.
type Metadata struct {
	TokensUsed    int64    `json:"tokens_used"`
	ToolsExecuted int      `json:"tools_executed"`
	ToolNames     []string `json:"tool_names,omitempty"`
	CreditsUsed   int64    `json:"credits_used"`
	EstimatedCost float64  `json:"estimated_cost_usd"`
}

// Result is the final outcome of a turn.
type Result struct {
	ConversationID string   `json:"conversation_id"`
	Answer         string   `json:"answer"`
	Degraded       bool     `json:"degraded,omitempty"` // provider failure mapped to a fallback reply
	Handoff        bool     `json:"handoff,omitempty"`  // conversation is in manual mode
	Metadata       Metadata `json:"metadata"`
}

// Sink receives streamed answer text as it is generated. Implementations must
// tolerate being called from the turn's goroutine; a nil Sink is valid and
// discards deltas.
type Sink func(delta string)
