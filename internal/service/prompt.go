package service

import (
	"bytes"
	_ "embed"
	"fmt"
	"text/template"

	"github.com/Strob0t/BotForge/internal/domain/chatbot"
	"github.com/Strob0t/BotForge/internal/domain/plan"
)

//go:embed templates/system_prompt.tmpl
var systemPromptTmpl string

// promptTmpl is the parsed system prompt template for turns.
var promptTmpl = template.Must(template.New("system_prompt").Parse(systemPromptTmpl))

// promptData carries the chatbot's personality and plan-aware tool guidance
// into the system prompt template.
type promptData struct {
	BotName      string
	Instructions string
	HasSearch    bool
	HasHandoff   bool
	ShowBranding bool
}

// BuildSystemPrompt renders the per-turn system prompt from the chatbot's
// instructions and the tools its plan actually grants.
func BuildSystemPrompt(bot *chatbot.Chatbot, tools []Tool, limits plan.Limits) (string, error) {
	data := promptData{
		BotName:      bot.Name,
		Instructions: bot.Instructions,
		ShowBranding: limits.ShowBranding,
	}
	for _, t := range tools {
		switch t.Def.Name {
		case plan.ToolSearchKnowledge:
			data.HasSearch = true
		case plan.ToolRequestHandoff:
			data.HasHandoff = true
		}
	}

	var buf bytes.Buffer
	if err := promptTmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render system prompt: %w", err)
	}
	return buf.String(), nil
}
