// Package plan defines subscription tiers and the limits they resolve to.
// Limits are derived state: resolved fresh per turn from a static table loaded
// once at process start, never mutated at runtime.
package plan

import (
	"fmt"
	"slices"

	"github.com/Strob0t/BotForge/internal/domain"
)

// Tier is a subscription tier.
type Tier string

const (
	TierFree       Tier = "free"
	TierStarter    Tier = "starter"
	TierPro        Tier = "pro"
	TierEnterprise Tier = "enterprise"
)

// ValidTier reports whether t is a known tier.
func ValidTier(t Tier) bool {
	switch t {
	case TierFree, TierStarter, TierPro, TierEnterprise:
		return true
	}
	return false
}

// Limits is the immutable capability record a tier resolves to.
type Limits struct {
	Tier               Tier     `json:"tier" yaml:"tier"`
	MaxChatbots        int      `json:"max_chatbots" yaml:"max_chatbots"`
	MaxKnowledgeSizeKB int      `json:"max_knowledge_size_kb" yaml:"max_knowledge_size_kb"`
	AllowedModels      []string `json:"allowed_models" yaml:"allowed_models"`
	AllowedTools       []string `json:"allowed_tools" yaml:"allowed_tools"`
	MonthlyToolCredits int      `json:"monthly_tool_credits" yaml:"monthly_tool_credits"`
	ShowBranding       bool     `json:"show_branding" yaml:"show_branding"`
}

// AllowsModel reports whether model is available on these limits.
func (l Limits) AllowsModel(model string) bool {
	return slices.Contains(l.AllowedModels, model)
}

// AllowsTool reports whether the tool name is available on these limits.
func (l Limits) AllowsTool(name string) bool {
	return slices.Contains(l.AllowedTools, name)
}

// Table is an immutable tier -> limits lookup built at process start.
type Table struct {
	limits map[Tier]Limits
}

// NewTable builds a Table from the given limits. Later entries for the same
// tier override earlier ones, which lets file overrides shadow presets.
func NewTable(all ...Limits) *Table {
	m := make(map[Tier]Limits, len(all))
	for _, l := range all {
		m[l.Tier] = l
	}
	return &Table{limits: m}
}

// Resolve returns the limits for tier. Unknown tiers fail with
// domain.ErrConfiguration; there is no fallback tier.
func (t *Table) Resolve(tier Tier) (Limits, error) {
	l, ok := t.limits[tier]
	if !ok {
		return Limits{}, fmt.Errorf("unknown plan tier %q: %w", tier, domain.ErrConfiguration)
	}
	return l, nil
}
