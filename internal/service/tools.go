package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Strob0t/BotForge/internal/domain"
	"github.com/Strob0t/BotForge/internal/domain/chatbot"
	"github.com/Strob0t/BotForge/internal/domain/contact"
	"github.com/Strob0t/BotForge/internal/domain/conversation"
	"github.com/Strob0t/BotForge/internal/domain/plan"
	"github.com/Strob0t/BotForge/internal/port/database"
	"github.com/Strob0t/BotForge/internal/port/llm"
)

// ToolContext carries the tenant scope captured when tools are built for a
// turn. Tool handlers close over it, so a handler can never be invoked with a
// different tenant than it was built for.
type ToolContext struct {
	ChatbotID      string
	ConversationID string
}

// Tool is one callable function offered to the model during a turn.
type Tool struct {
	Def     llm.ToolDef
	Execute func(ctx context.Context, args json.RawMessage) (string, error)
}

// ToolRegistry builds the per-turn tool set from the plan's allowlist.
type ToolRegistry struct {
	store     database.Store
	knowledge *KnowledgeService
}

// NewToolRegistry creates a new ToolRegistry.
func NewToolRegistry(store database.Store, knowledge *KnowledgeService) *ToolRegistry {
	return &ToolRegistry{store: store, knowledge: knowledge}
}

// ForTurn returns the tools available for one turn: the plan's allowlist,
// further restricted to the anonymous subset when the caller is unauthenticated.
// The tenant id is validated here, before any handler can close over it.
func (r *ToolRegistry) ForTurn(limits plan.Limits, anonymous bool, tc ToolContext) ([]Tool, error) {
	if err := chatbot.ValidateID(tc.ChatbotID); err != nil {
		return nil, err
	}
	var tools []Tool
	for _, name := range limits.AllowedTools {
		if anonymous && !plan.AnonymousAllowed(name) {
			continue
		}
		if t, ok := r.build(name, tc); ok {
			tools = append(tools, t)
		}
	}
	return tools, nil
}

func (r *ToolRegistry) build(name string, tc ToolContext) (Tool, bool) {
	switch name {
	case plan.ToolSearchKnowledge:
		return r.searchKnowledgeTool(tc), true
	case plan.ToolSaveContact:
		return r.saveContactTool(tc), true
	case plan.ToolRequestHandoff:
		return r.requestHandoffTool(tc), true
	}
	return Tool{}, false
}

func (r *ToolRegistry) searchKnowledgeTool(tc ToolContext) Tool {
	return Tool{
		Def: llm.ToolDef{
			Name:        plan.ToolSearchKnowledge,
			Description: "Search the chatbot's knowledge base for passages relevant to a question.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"query": map[string]any{
						"type":        "string",
						"description": "The question or topic to look up.",
					},
				},
				"required": []string{"query"},
			},
		},
		Execute: func(ctx context.Context, args json.RawMessage) (string, error) {
			var in struct {
				Query string `json:"query"`
			}
			if err := json.Unmarshal(args, &in); err != nil {
				return "", fmt.Errorf("%w: bad search arguments: %s", domain.ErrValidation, err)
			}
			if strings.TrimSpace(in.Query) == "" {
				return "", fmt.Errorf("%w: query is required", domain.ErrValidation)
			}

			chunks, err := r.knowledge.Search(ctx, tc.ChatbotID, in.Query)
			if err != nil {
				return "", err
			}
			if len(chunks) == 0 {
				return "No relevant passages found.", nil
			}

			var b strings.Builder
			for i, c := range chunks {
				if i > 0 {
					b.WriteString("\n---\n")
				}
				if c.Title != "" {
					fmt.Fprintf(&b, "[%s] ", c.Title)
				}
				b.WriteString(c.Content)
			}
			return b.String(), nil
		},
	}
}

func (r *ToolRegistry) saveContactTool(tc ToolContext) Tool {
	return Tool{
		Def: llm.ToolDef{
			Name:        plan.ToolSaveContact,
			Description: "Save the visitor's contact details as a lead when they share them.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"name":  map[string]any{"type": "string"},
					"email": map[string]any{"type": "string"},
					"phone": map[string]any{"type": "string"},
					"note":  map[string]any{"type": "string"},
				},
				"required": []string{"email"},
			},
		},
		Execute: func(ctx context.Context, args json.RawMessage) (string, error) {
			var in struct {
				Name  string `json:"name"`
				Email string `json:"email"`
				Phone string `json:"phone"`
				Note  string `json:"note"`
			}
			if err := json.Unmarshal(args, &in); err != nil {
				return "", fmt.Errorf("%w: bad contact arguments: %s", domain.ErrValidation, err)
			}
			if in.Email == "" {
				return "", fmt.Errorf("%w: email is required", domain.ErrValidation)
			}

			if _, err := r.store.CreateContact(ctx, &contact.Contact{
				ChatbotID:      tc.ChatbotID,
				ConversationID: tc.ConversationID,
				Name:           in.Name,
				Email:          in.Email,
				Phone:          in.Phone,
				Note:           in.Note,
			}); err != nil {
				return "", err
			}
			return "Contact saved.", nil
		},
	}
}

func (r *ToolRegistry) requestHandoffTool(tc ToolContext) Tool {
	return Tool{
		Def: llm.ToolDef{
			Name:        plan.ToolRequestHandoff,
			Description: "Hand the conversation over to a human operator when the visitor asks for one or the question cannot be answered.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"reason": map[string]any{"type": "string"},
				},
			},
		},
		Execute: func(ctx context.Context, _ json.RawMessage) (string, error) {
			if err := r.store.SetConversationMode(ctx, tc.ConversationID, conversation.ModeManual); err != nil {
				return "", err
			}
			return "A human operator will take over this conversation.", nil
		},
	}
}
