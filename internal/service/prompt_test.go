package service

import (
	"strings"
	"testing"

	"github.com/Strob0t/BotForge/internal/domain/chatbot"
	"github.com/Strob0t/BotForge/internal/domain/plan"
)

func TestBuildSystemPromptReflectsGrantedTools(t *testing.T) {
	bot := &chatbot.Chatbot{Name: "Acme Helper", Instructions: "Always be concise."}
	reg, _, _ := newToolRegistry(t)
	tc := ToolContext{ChatbotID: testTenantID}

	full := forTurn(t, reg, plan.Limits{AllowedTools: []string{
		plan.ToolSearchKnowledge, plan.ToolSaveContact, plan.ToolRequestHandoff,
	}}, false, tc)
	prompt, err := BuildSystemPrompt(bot, full, plan.Limits{ShowBranding: true})
	if err != nil {
		t.Fatalf("BuildSystemPrompt: %v", err)
	}
	for _, want := range []string{"Acme Helper", "Always be concise.", "search_knowledge", "human operator", "BotForge"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q:\n%s", want, prompt)
		}
	}

	// Without search or handoff the prompt must not promise them.
	bare := forTurn(t, reg, plan.Limits{AllowedTools: []string{plan.ToolSaveContact}}, false, tc)
	prompt, err = BuildSystemPrompt(bot, bare, plan.Limits{ShowBranding: false})
	if err != nil {
		t.Fatalf("BuildSystemPrompt: %v", err)
	}
	for _, banned := range []string{"search_knowledge", "human operator", "BotForge"} {
		if strings.Contains(prompt, banned) {
			t.Errorf("prompt promises unavailable %q:\n%s", banned, prompt)
		}
	}
}
