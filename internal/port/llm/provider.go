// Package llm defines the model-provider and embedding-provider ports.
package llm

import "context"

// Message is one chat message in provider wire shape.
type Message struct {
	Role       string     `json:"role"` // "system", "user", "assistant", "tool"
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	Name       string     `json:"name,omitempty"`
}

// ToolDef describes a callable tool offered to the model.
type ToolDef struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"` // JSON schema
}

// ToolCall is the model requesting one tool execution.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"` // raw JSON object
}

// Usage reports token consumption for a completed generation.
type Usage struct {
	PromptTokens     int64 `json:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens"`
}

// ChatRequest is one generation call.
type ChatRequest struct {
	Model    string
	Messages []Message
	Tools    []ToolDef
}

// ChatResult is the outcome of one generation call. When the model requested
// tool calls, Content may be empty and ToolCalls non-empty.
type ChatResult struct {
	Content   string
	ToolCalls []ToolCall
	Usage     Usage
}

// ChatProvider streams one generation. onDelta receives assistant text chunks
// as they arrive; it is never called for tool-call deltas. The returned result
// carries the assembled content, any tool calls, and token usage.
type ChatProvider interface {
	ChatStream(ctx context.Context, req ChatRequest, onDelta func(string) error) (*ChatResult, error)
}

// EmbeddingProvider computes fixed-dimension embedding vectors. The same
// dimensionality must be used on the ingestion and query paths.
type EmbeddingProvider interface {
	Embed(ctx context.Context, inputs []string) ([][]float32, error)
	Dimension() int
}
