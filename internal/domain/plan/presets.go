package plan

import "slices"

// Built-in tool names referenced by tier presets.
const (
	ToolSearchKnowledge = "search_knowledge"
	ToolSaveContact     = "save_contact"
	ToolRequestHandoff  = "request_handoff"
)

// AnonymousTools is the fixed reduced tool set for unauthenticated sessions,
// applied regardless of tier.
var AnonymousTools = []string{ToolSaveContact}

// AnonymousAllowed reports whether the tool is usable in an anonymous session.
func AnonymousAllowed(name string) bool {
	return slices.Contains(AnonymousTools, name)
}

// Presets returns the built-in tier table.
func Presets() []Limits {
	return []Limits{
		{
			Tier:               TierFree,
			MaxChatbots:        1,
			MaxKnowledgeSizeKB: 512,
			AllowedModels:      []string{"openai/gpt-4o-mini"},
			AllowedTools:       []string{ToolSaveContact},
			MonthlyToolCredits: 50,
			ShowBranding:       true,
		},
		{
			Tier:               TierStarter,
			MaxChatbots:        3,
			MaxKnowledgeSizeKB: 5 * 1024,
			AllowedModels:      []string{"openai/gpt-4o-mini", "anthropic/claude-haiku"},
			AllowedTools:       []string{ToolSearchKnowledge, ToolSaveContact},
			MonthlyToolCredits: 1000,
			ShowBranding:       true,
		},
		{
			Tier:               TierPro,
			MaxChatbots:        10,
			MaxKnowledgeSizeKB: 50 * 1024,
			AllowedModels:      []string{"openai/gpt-4o-mini", "openai/gpt-4o", "anthropic/claude-haiku", "anthropic/claude-sonnet"},
			AllowedTools:       []string{ToolSearchKnowledge, ToolSaveContact, ToolRequestHandoff},
			MonthlyToolCredits: 10000,
			ShowBranding:       false,
		},
		{
			Tier:               TierEnterprise,
			MaxChatbots:        100,
			MaxKnowledgeSizeKB: 500 * 1024,
			AllowedModels:      []string{"openai/gpt-4o-mini", "openai/gpt-4o", "anthropic/claude-haiku", "anthropic/claude-sonnet", "anthropic/claude-opus"},
			AllowedTools:       []string{ToolSearchKnowledge, ToolSaveContact, ToolRequestHandoff},
			MonthlyToolCredits: 100000,
			ShowBranding:       false,
		},
	}
}
