package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Strob0t/BotForge/internal/domain"
	"github.com/Strob0t/BotForge/internal/domain/plan"
	"github.com/Strob0t/BotForge/internal/domain/usage"
	"github.com/Strob0t/BotForge/internal/port/database"
)

// UsageService meters consumption per chatbot per calendar month and gates
// turns on the plan's credit budget.
type UsageService struct {
	store           database.Store
	costPerKiloTokn float64
}

// NewUsageService creates a new UsageService. costPerKiloToken prices token
// consumption into the estimated cost column.
func NewUsageService(store database.Store, costPerKiloToken float64) *UsageService {
	return &UsageService{store: store, costPerKiloTokn: costPerKiloToken}
}

// CheckQuota verifies the chatbot still has tool credits for the current
// period. Exhausted budgets abort the turn with ErrQuotaExceeded.
func (s *UsageService) CheckQuota(ctx context.Context, chatbotID string, limits plan.Limits) error {
	rec, err := s.store.GetUsage(ctx, chatbotID, usage.CurrentPeriod())
	if err != nil {
		return err
	}
	if limits.MonthlyToolCredits > 0 && rec.CreditsUsed >= int64(limits.MonthlyToolCredits) {
		return fmt.Errorf("chatbot %s exhausted %d monthly credits: %w",
			chatbotID, limits.MonthlyToolCredits, domain.ErrQuotaExceeded)
	}
	return nil
}

// RecordTurn applies a usage delta for a finished turn. It runs on a context
// detached from the request so a client disconnect after generation cannot
// skip billing.
func (s *UsageService) RecordTurn(ctx context.Context, chatbotID string, d usage.Delta) {
	d.EstimatedCost = float64(d.TokensIn+d.TokensOut) / 1000 * s.costPerKiloTokn

	ctx = context.WithoutCancel(ctx)
	if err := s.store.IncrementUsage(ctx, chatbotID, usage.CurrentPeriod(), d); err != nil {
		slog.Error("record usage failed", "chatbot_id", chatbotID, "error", err)
	}
}

// RecordToolInvocation persists the write-once record of a single tool call.
func (s *UsageService) RecordToolInvocation(ctx context.Context, inv *usage.ToolInvocation) {
	ctx = context.WithoutCancel(ctx)
	if err := s.store.CreateToolInvocation(ctx, inv); err != nil {
		slog.Error("record tool invocation failed", "tool", inv.Tool, "error", err)
	}
}

// Get returns the usage record for a chatbot and period. An empty period
// means the current month.
func (s *UsageService) Get(ctx context.Context, chatbotID, period string) (*usage.Record, error) {
	if period == "" {
		period = usage.CurrentPeriod()
	}
	return s.store.GetUsage(ctx, chatbotID, period)
}
