// Package chatbot defines the chatbot domain model. A chatbot is the unit of
// tenancy: it owns its knowledge chunks and conversations exclusively, and its
// id is the isolation boundary for every tenant-scoped query.
package chatbot

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Strob0t/BotForge/internal/domain"
)

// Status is the lifecycle state of a chatbot.
type Status string

const (
	StatusDraft    Status = "draft"
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
	StatusDeleted  Status = "deleted"
)

// ValidStatus reports whether s is a known lifecycle status.
func ValidStatus(s Status) bool {
	switch s {
	case StatusDraft, StatusActive, StatusInactive, StatusDeleted:
		return true
	}
	return false
}

// TransitionError is returned when a lifecycle transition is not allowed.
// The chatbot's state is left unchanged.
type TransitionError struct {
	From Status
	To   Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid lifecycle transition %s -> %s", e.From, e.To)
}

// Unwrap classifies transition failures as validation errors.
func (e *TransitionError) Unwrap() error {
	return domain.ErrValidation
}

// CanTransition reports whether from -> to is in the allowed transition table.
// Deleted is terminal.
func CanTransition(from, to Status) bool {
	switch {
	case from == StatusDraft && to == StatusActive:
		return true
	case from == StatusActive && to == StatusInactive:
		return true
	case from == StatusInactive && to == StatusActive:
		return true
	case from != StatusDeleted && to == StatusDeleted:
		return true
	}
	return false
}

// Transition validates from -> to and returns the new status, or a typed
// *TransitionError leaving the caller's state untouched.
func Transition(from, to Status) (Status, error) {
	if !CanTransition(from, to) {
		return from, &TransitionError{From: from, To: to}
	}
	return to, nil
}

// Chatbot represents one tenant: an isolated bot instance with its own plan
// tier, personality and knowledge.
type Chatbot struct {
	ID              string    `json:"id"`
	AccountID       string    `json:"account_id"`
	Name            string    `json:"name"`
	Status          Status    `json:"status"`
	PlanTier        string    `json:"plan_tier"`
	Instructions    string    `json:"instructions"` // personality / system prompt fragment
	Model           string    `json:"model"`
	KnowledgeSizeKB int       `json:"knowledge_size_kb"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// CreateRequest holds the fields required to provision a new chatbot.
type CreateRequest struct {
	AccountID    string `json:"account_id"`
	Name         string `json:"name"`
	PlanTier     string `json:"plan_tier"`
	Instructions string `json:"instructions"`
	Model        string `json:"model"`
}

// Validate checks that a CreateRequest is well-formed.
func (r *CreateRequest) Validate() error {
	if r.Name == "" {
		return errors.New("name is required")
	}
	if r.AccountID == "" {
		return errors.New("account_id is required")
	}
	return nil
}

// UpdateRequest holds the fields that can be updated on a chatbot.
type UpdateRequest struct {
	Name         *string `json:"name,omitempty"`
	Instructions *string `json:"instructions,omitempty"`
	Model        *string `json:"model,omitempty"`
	PlanTier     *string `json:"plan_tier,omitempty"`
}

// ValidateID reports whether id is a syntactically well-formed tenant id.
// Tenant ids are UUIDs; anything else fails closed with ErrConfiguration
// before it can reach a storage filter.
func ValidateID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("tenant id %q is not a valid uuid: %w", id, domain.ErrConfiguration)
	}
	return nil
}
