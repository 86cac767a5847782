package postgres

import (
	"context"
	"fmt"

	"github.com/Strob0t/BotForge/internal/domain/contact"
	"github.com/Strob0t/BotForge/internal/domain/usage"
)

// IncrementUsage atomically adds a delta to the chatbot's current-period
// usage row. The ON CONFLICT upsert makes concurrent turn completions safe
// without a read-modify-write cycle.
func (s *Store) IncrementUsage(ctx context.Context, chatbotID, period string, d usage.Delta) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO usage_records (chatbot_id, period, tokens_in, tokens_out, tool_calls, credits_used, estimated_cost)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (chatbot_id, period) DO UPDATE SET
		   tokens_in = usage_records.tokens_in + EXCLUDED.tokens_in,
		   tokens_out = usage_records.tokens_out + EXCLUDED.tokens_out,
		   tool_calls = usage_records.tool_calls + EXCLUDED.tool_calls,
		   credits_used = usage_records.credits_used + EXCLUDED.credits_used,
		   estimated_cost = usage_records.estimated_cost + EXCLUDED.estimated_cost,
		   updated_at = now()`,
		chatbotID, period, d.TokensIn, d.TokensOut, d.ToolCalls, d.Credits, d.EstimatedCost)
	if err != nil {
		return fmt.Errorf("increment usage for chatbot %s: %w", chatbotID, err)
	}
	return nil
}

// GetUsage returns the usage record for a chatbot and period. A period with
// no recorded activity yields a zero-valued record, not an error.
func (s *Store) GetUsage(ctx context.Context, chatbotID, period string) (*usage.Record, error) {
	r := usage.Record{ChatbotID: chatbotID, Period: period}
	err := s.pool.QueryRow(ctx,
		`SELECT tokens_in, tokens_out, tool_calls, credits_used, estimated_cost, updated_at
		 FROM usage_records WHERE chatbot_id = $1 AND period = $2`,
		chatbotID, period,
	).Scan(&r.TokensIn, &r.TokensOut, &r.ToolCalls, &r.CreditsUsed, &r.EstimatedCost, &r.UpdatedAt)
	if err != nil {
		if isNoRows(err) {
			return &r, nil
		}
		return nil, fmt.Errorf("get usage for chatbot %s: %w", chatbotID, err)
	}
	return &r, nil
}

func (s *Store) CreateToolInvocation(ctx context.Context, inv *usage.ToolInvocation) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO tool_invocations (chatbot_id, conversation_id, tool, success, error)
		 VALUES ($1, $2, $3, $4, $5)`,
		inv.ChatbotID, inv.ConversationID, inv.Tool, inv.Success, inv.Error)
	if err != nil {
		return fmt.Errorf("create tool invocation: %w", err)
	}
	return nil
}

func (s *Store) CountToolInvocations(ctx context.Context, conversationID string) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM tool_invocations WHERE conversation_id = $1`,
		conversationID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count tool invocations: %w", err)
	}
	return n, nil
}

func (s *Store) CreateContact(ctx context.Context, c *contact.Contact) (*contact.Contact, error) {
	var created contact.Contact
	err := s.pool.QueryRow(ctx,
		`INSERT INTO contacts (chatbot_id, conversation_id, name, email, phone, note)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, chatbot_id, COALESCE(conversation_id::text, ''), name, email, phone, note, created_at`,
		c.ChatbotID, nullIfEmpty(c.ConversationID), c.Name, c.Email, c.Phone, c.Note,
	).Scan(&created.ID, &created.ChatbotID, &created.ConversationID, &created.Name,
		&created.Email, &created.Phone, &created.Note, &created.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("create contact: %w", err)
	}
	return &created, nil
}
