package service

import (
	"context"
	"errors"
	"testing"

	"github.com/Strob0t/BotForge/internal/domain"
	"github.com/Strob0t/BotForge/internal/domain/chatbot"
)

func newChatbotService(t *testing.T) (*ChatbotService, *mockStore) {
	t.Helper()
	plans, err := NewPlanService("")
	if err != nil {
		t.Fatalf("plan service: %v", err)
	}
	store := newMockStore()
	return NewChatbotService(store, plans), store
}

func TestChatbotCreateStartsDraft(t *testing.T) {
	svc, _ := newChatbotService(t)

	bot, err := svc.Create(context.Background(), chatbot.CreateRequest{
		AccountID: "acc-1",
		Name:      "Support Bot",
		PlanTier:  "starter",
		Model:     "openai/gpt-4o-mini",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if bot.Status != chatbot.StatusDraft {
		t.Errorf("status = %q, want draft", bot.Status)
	}
}

func TestChatbotCreateEnforcesPlanQuota(t *testing.T) {
	svc, _ := newChatbotService(t)

	// Free tier allows one chatbot.
	req := chatbot.CreateRequest{AccountID: "acc-1", Name: "First", PlanTier: "free"}
	if _, err := svc.Create(context.Background(), req); err != nil {
		t.Fatalf("first create: %v", err)
	}

	req.Name = "Second"
	_, err := svc.Create(context.Background(), req)
	if !errors.Is(err, domain.ErrQuotaExceeded) {
		t.Fatalf("err = %v, want ErrQuotaExceeded", err)
	}
}

func TestChatbotCreateRejectsModelOffPlan(t *testing.T) {
	svc, _ := newChatbotService(t)

	_, err := svc.Create(context.Background(), chatbot.CreateRequest{
		AccountID: "acc-1",
		Name:      "Bot",
		PlanTier:  "free",
		Model:     "anthropic/claude-opus",
	})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
}

func TestChatbotCreateUnknownTierFailsClosed(t *testing.T) {
	svc, _ := newChatbotService(t)

	_, err := svc.Create(context.Background(), chatbot.CreateRequest{
		AccountID: "acc-1",
		Name:      "Bot",
		PlanTier:  "platinum",
	})
	if !errors.Is(err, domain.ErrConfiguration) {
		t.Fatalf("err = %v, want ErrConfiguration", err)
	}
}

func TestChatbotUpdateRevalidatesModelAgainstNewTier(t *testing.T) {
	svc, _ := newChatbotService(t)

	bot, err := svc.Create(context.Background(), chatbot.CreateRequest{
		AccountID: "acc-1",
		Name:      "Bot",
		PlanTier:  "pro",
		Model:     "anthropic/claude-sonnet",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	// Downgrading to free while keeping a pro-only model must fail.
	free := "free"
	_, err = svc.Update(context.Background(), bot.ID, chatbot.UpdateRequest{PlanTier: &free})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}

	// Downgrading together with a model the new tier allows is fine.
	mini := "openai/gpt-4o-mini"
	updated, err := svc.Update(context.Background(), bot.ID, chatbot.UpdateRequest{PlanTier: &free, Model: &mini})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.PlanTier != "free" || updated.Model != mini {
		t.Errorf("updated = %+v", updated)
	}
}

func TestChatbotLifecycle(t *testing.T) {
	svc, _ := newChatbotService(t)

	bot, err := svc.Create(context.Background(), chatbot.CreateRequest{
		AccountID: "acc-1", Name: "Bot", PlanTier: "pro",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	// Draft cannot be deactivated.
	if _, err := svc.Deactivate(context.Background(), bot.ID); err == nil {
		t.Fatal("deactivating a draft must fail")
	}

	activated, err := svc.Activate(context.Background(), bot.ID)
	if err != nil {
		t.Fatalf("Activate: %v", err)
	}
	if activated.Status != chatbot.StatusActive {
		t.Errorf("status = %q, want active", activated.Status)
	}

	if _, err := svc.Deactivate(context.Background(), bot.ID); err != nil {
		t.Fatalf("Deactivate: %v", err)
	}
	if _, err := svc.Activate(context.Background(), bot.ID); err != nil {
		t.Fatalf("re-Activate: %v", err)
	}

	if err := svc.MarkDeleted(context.Background(), bot.ID); err != nil {
		t.Fatalf("MarkDeleted: %v", err)
	}

	// Deleted is terminal and invisible.
	if _, err := svc.Get(context.Background(), bot.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Get after delete = %v, want ErrNotFound", err)
	}
	if _, err := svc.Activate(context.Background(), bot.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Activate after delete = %v, want ErrNotFound", err)
	}

}
