package service

import (
	"context"
	"fmt"

	"github.com/Strob0t/BotForge/internal/domain"
	"github.com/Strob0t/BotForge/internal/domain/chatbot"
	"github.com/Strob0t/BotForge/internal/domain/plan"
	"github.com/Strob0t/BotForge/internal/port/database"
)

// ChatbotService handles chatbot provisioning and lifecycle transitions.
type ChatbotService struct {
	store database.Store
	plans *PlanService
}

// NewChatbotService creates a new ChatbotService.
func NewChatbotService(store database.Store, plans *PlanService) *ChatbotService {
	return &ChatbotService{store: store, plans: plans}
}

// Create provisions a new chatbot in draft status, enforcing the account's
// per-plan chatbot quota and model allowlist.
func (s *ChatbotService) Create(ctx context.Context, req chatbot.CreateRequest) (*chatbot.Chatbot, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrValidation, err)
	}

	limits, err := s.plans.Resolve(plan.Tier(req.PlanTier))
	if err != nil {
		return nil, err
	}

	existing, err := s.store.ListChatbots(ctx, req.AccountID)
	if err != nil {
		return nil, err
	}
	if len(existing) >= limits.MaxChatbots {
		return nil, fmt.Errorf("account %s reached its limit of %d chatbots: %w",
			req.AccountID, limits.MaxChatbots, domain.ErrQuotaExceeded)
	}

	if req.Model != "" && !limits.AllowsModel(req.Model) {
		return nil, fmt.Errorf("model %q is not available on the %s plan: %w",
			req.Model, limits.Tier, domain.ErrValidation)
	}

	return s.store.CreateChatbot(ctx, req)
}

// Get returns a chatbot by ID.
func (s *ChatbotService) Get(ctx context.Context, id string) (*chatbot.Chatbot, error) {
	return s.store.GetChatbot(ctx, id)
}

// List returns all chatbots for an account.
func (s *ChatbotService) List(ctx context.Context, accountID string) ([]chatbot.Chatbot, error) {
	return s.store.ListChatbots(ctx, accountID)
}

// Update applies a partial update, re-validating the model against the plan
// that results from the update.
func (s *ChatbotService) Update(ctx context.Context, id string, req chatbot.UpdateRequest) (*chatbot.Chatbot, error) {
	current, err := s.store.GetChatbot(ctx, id)
	if err != nil {
		return nil, err
	}

	tier := current.PlanTier
	if req.PlanTier != nil {
		tier = *req.PlanTier
	}
	limits, err := s.plans.Resolve(plan.Tier(tier))
	if err != nil {
		return nil, err
	}

	model := current.Model
	if req.Model != nil {
		model = *req.Model
	}
	if model != "" && !limits.AllowsModel(model) {
		return nil, fmt.Errorf("model %q is not available on the %s plan: %w",
			model, limits.Tier, domain.ErrValidation)
	}

	return s.store.UpdateChatbot(ctx, id, req)
}

// Activate moves a chatbot into active status.
func (s *ChatbotService) Activate(ctx context.Context, id string) (*chatbot.Chatbot, error) {
	return s.transition(ctx, id, chatbot.StatusActive)
}

// Deactivate pauses a chatbot.
func (s *ChatbotService) Deactivate(ctx context.Context, id string) (*chatbot.Chatbot, error) {
	return s.transition(ctx, id, chatbot.StatusInactive)
}

// MarkDeleted soft-deletes a chatbot. The transition is terminal; further
// lifecycle calls fail with a transition error.
func (s *ChatbotService) MarkDeleted(ctx context.Context, id string) error {
	_, err := s.transition(ctx, id, chatbot.StatusDeleted)
	return err
}

func (s *ChatbotService) transition(ctx context.Context, id string, to chatbot.Status) (*chatbot.Chatbot, error) {
	current, err := s.store.GetChatbot(ctx, id)
	if err != nil {
		return nil, err
	}

	next, err := chatbot.Transition(current.Status, to)
	if err != nil {
		return nil, err
	}

	if err := s.store.UpdateChatbotStatus(ctx, id, next); err != nil {
		return nil, err
	}
	current.Status = next
	return current, nil
}
