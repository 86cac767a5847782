// Package usage defines per-tenant, per-billing-period consumption records and
// the append-only tool invocation log.
package usage

import "time"

// PeriodFormat is the billing period key layout (UTC month).
const PeriodFormat = "2006-01"

// PeriodFor returns the billing period key for t in UTC.
func PeriodFor(t time.Time) string {
	return t.UTC().Format(PeriodFormat)
}

// CurrentPeriod returns the billing period key for now.
func CurrentPeriod() string {
	return PeriodFor(time.Now())
}

// Record accumulates consumption for one chatbot in one billing period.
// Rows reset implicitly on period rollover because the period key changes;
// they are never retroactively decremented except by explicit correction.
type Record struct {
	ChatbotID     string    `json:"chatbot_id"`
	Period        string    `json:"period"`
	TokensIn      int64     `json:"tokens_in"`
	TokensOut     int64     `json:"tokens_out"`
	ToolCalls     int64     `json:"tool_calls"`
	CreditsUsed   int64     `json:"credits_used"`
	EstimatedCost float64   `json:"estimated_cost_usd"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Delta is one atomic increment applied to a Record.
type Delta struct {
	TokensIn      int64
	TokensOut     int64
	ToolCalls     int64
	Credits       int64
	EstimatedCost float64
}

// ToolInvocation is the write-once record of a single tool call, kept for
// analytics and quota enforcement.
type ToolInvocation struct {
	ID             string    `json:"id"`
	ChatbotID      string    `json:"chatbot_id"`
	ConversationID string    `json:"conversation_id"`
	Tool           string    `json:"tool"`
	Success        bool      `json:"success"`
	Error          string    `json:"error,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}
