package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/Strob0t/BotForge/internal/config"
	"github.com/Strob0t/BotForge/internal/domain"
	"github.com/Strob0t/BotForge/internal/domain/conversation"
	"github.com/Strob0t/BotForge/internal/domain/plan"
)

func newToolRegistry(t *testing.T) (*ToolRegistry, *mockStore, *mockVectorStore) {
	t.Helper()
	plans, err := NewPlanService("")
	if err != nil {
		t.Fatalf("plan service: %v", err)
	}
	store := newMockStore()
	vectors := newMockVectorStore()
	knowledgeSvc := NewKnowledgeService(store, vectors, &fixedEmbedder{dim: 8}, nil, nil, nil, plans, config.Knowledge{
		ChunkSize: 100, Dimension: 8, TopK: 4,
	})
	return NewToolRegistry(store, knowledgeSvc), store, vectors
}

func toolNames(tools []Tool) []string {
	names := make([]string, len(tools))
	for i, t := range tools {
		names[i] = t.Def.Name
	}
	return names
}

// testTenantID is a well-formed chatbot id for tool-construction tests.
const testTenantID = "3f2b1a04-9c6e-4a5d-8b7f-0d1e2c3b4a59"

func forTurn(t *testing.T, reg *ToolRegistry, limits plan.Limits, anonymous bool, tc ToolContext) []Tool {
	t.Helper()
	tools, err := reg.ForTurn(limits, anonymous, tc)
	if err != nil {
		t.Fatalf("ForTurn: %v", err)
	}
	return tools
}

func TestForTurnFollowsPlanAllowlist(t *testing.T) {
	reg, _, _ := newToolRegistry(t)
	tc := ToolContext{ChatbotID: testTenantID, ConversationID: "conv"}

	free := forTurn(t, reg, plan.Limits{AllowedTools: []string{plan.ToolSaveContact}}, false, tc)
	if got := toolNames(free); len(got) != 1 || got[0] != plan.ToolSaveContact {
		t.Errorf("free tools = %v", got)
	}

	pro := forTurn(t, reg, plan.Limits{AllowedTools: []string{
		plan.ToolSearchKnowledge, plan.ToolSaveContact, plan.ToolRequestHandoff,
	}}, false, tc)
	if len(pro) != 3 {
		t.Errorf("pro tools = %v", toolNames(pro))
	}

	// Unknown names in an override file are skipped, not built.
	odd := forTurn(t, reg, plan.Limits{AllowedTools: []string{"teleport", plan.ToolSaveContact}}, false, tc)
	if got := toolNames(odd); len(got) != 1 || got[0] != plan.ToolSaveContact {
		t.Errorf("tools with unknown name = %v", got)
	}
}

func TestForTurnAnonymousSubset(t *testing.T) {
	reg, _, _ := newToolRegistry(t)
	limits := plan.Limits{AllowedTools: []string{
		plan.ToolSearchKnowledge, plan.ToolSaveContact, plan.ToolRequestHandoff,
	}}

	got := toolNames(forTurn(t, reg, limits, true, ToolContext{ChatbotID: testTenantID}))
	if len(got) != 1 || got[0] != plan.ToolSaveContact {
		t.Errorf("anonymous tools = %v, want only save_contact", got)
	}
}

func TestForTurnRejectsMalformedTenantID(t *testing.T) {
	reg, store, _ := newToolRegistry(t)
	limits := plan.Limits{AllowedTools: []string{plan.ToolSaveContact}}

	tools, err := reg.ForTurn(limits, false, ToolContext{ChatbotID: "not-a-uuid", ConversationID: "conv"})
	if !errors.Is(err, domain.ErrConfiguration) {
		t.Fatalf("err = %v, want ErrConfiguration", err)
	}
	if tools != nil {
		t.Errorf("tools = %v, want none", toolNames(tools))
	}

	// Nothing executable was built, so no write can land under the bad tenant.
	if len(store.contacts) != 0 {
		t.Errorf("contacts = %+v", store.contacts)
	}
}

func TestSaveContactTool(t *testing.T) {
	reg, store, _ := newToolRegistry(t)
	tool := reg.saveContactTool(ToolContext{ChatbotID: "bot-1", ConversationID: "conv-1"})

	out, err := tool.Execute(context.Background(), json.RawMessage(`{"name":"Ada","email":"ada@example.com"}`))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if out != "Contact saved." {
		t.Errorf("out = %q", out)
	}
	if len(store.contacts) != 1 || store.contacts[0].Email != "ada@example.com" || store.contacts[0].ChatbotID != "bot-1" {
		t.Fatalf("contacts = %+v", store.contacts)
	}

	// Email is mandatory.
	_, err = tool.Execute(context.Background(), json.RawMessage(`{"name":"No Email"}`))
	if !errors.Is(err, domain.ErrValidation) {
		t.Errorf("err = %v, want ErrValidation", err)
	}
}

func TestRequestHandoffToolFlipsConversation(t *testing.T) {
	reg, store, _ := newToolRegistry(t)
	conv, _ := store.GetOrCreateConversation(context.Background(), "bot-1", "sess-1")
	tool := reg.requestHandoffTool(ToolContext{ChatbotID: "bot-1", ConversationID: conv.ID})

	if _, err := tool.Execute(context.Background(), json.RawMessage(`{}`)); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	got, _ := store.GetOrCreateConversation(context.Background(), "bot-1", "sess-1")
	if got.Mode != conversation.ModeManual {
		t.Errorf("mode = %q, want manual", got.Mode)
	}
}

func TestSearchKnowledgeToolRequiresQuery(t *testing.T) {
	reg, _, _ := newToolRegistry(t)
	tool := reg.searchKnowledgeTool(ToolContext{ChatbotID: "bot-1"})

	_, err := tool.Execute(context.Background(), json.RawMessage(`{"query":"  "}`))
	if !errors.Is(err, domain.ErrValidation) {
		t.Errorf("blank query err = %v, want ErrValidation", err)
	}
	_, err = tool.Execute(context.Background(), json.RawMessage(`{broken`))
	if !errors.Is(err, domain.ErrValidation) {
		t.Errorf("bad json err = %v, want ErrValidation", err)
	}
}
