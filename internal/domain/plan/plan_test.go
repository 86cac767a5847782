package plan_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/Strob0t/BotForge/internal/domain"
	"github.com/Strob0t/BotForge/internal/domain/plan"
)

func TestResolveUnknownTier(t *testing.T) {
	table := plan.NewTable(plan.Presets()...)

	if _, err := table.Resolve("platinum"); !errors.Is(err, domain.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration for unknown tier, got %v", err)
	}
}

func TestResolvePresets(t *testing.T) {
	table := plan.NewTable(plan.Presets()...)

	free, err := table.Resolve(plan.TierFree)
	if err != nil {
		t.Fatalf("resolve free: %v", err)
	}
	if free.AllowsTool(plan.ToolSearchKnowledge) {
		t.Error("free tier must not include search_knowledge")
	}
	if !free.AllowsTool(plan.ToolSaveContact) {
		t.Error("free tier must include save_contact")
	}
	if !free.ShowBranding {
		t.Error("free tier must show branding")
	}

	pro, err := table.Resolve(plan.TierPro)
	if err != nil {
		t.Fatalf("resolve pro: %v", err)
	}
	if !pro.AllowsTool(plan.ToolSearchKnowledge) {
		t.Error("pro tier must include search_knowledge")
	}
	if pro.MonthlyToolCredits <= free.MonthlyToolCredits {
		t.Error("pro tier must carry more credits than free")
	}
}

func TestBuildTableWithOverrides(t *testing.T) {
	dir := t.TempDir()
	override := `tier: free
max_chatbots: 2
max_knowledge_size_kb: 1024
allowed_models: ["openai/gpt-4o-mini"]
allowed_tools: ["save_contact", "search_knowledge"]
monthly_tool_credits: 99
show_branding: true
`
	if err := os.WriteFile(filepath.Join(dir, "free.yaml"), []byte(override), 0o600); err != nil {
		t.Fatal(err)
	}

	table, err := plan.BuildTable(dir)
	if err != nil {
		t.Fatalf("BuildTable: %v", err)
	}

	free, err := table.Resolve(plan.TierFree)
	if err != nil {
		t.Fatalf("resolve free: %v", err)
	}
	if free.MonthlyToolCredits != 99 {
		t.Errorf("expected override credits 99, got %d", free.MonthlyToolCredits)
	}
	if !free.AllowsTool(plan.ToolSearchKnowledge) {
		t.Error("expected override to grant search_knowledge")
	}

	// Missing directory falls back to presets.
	table, err = plan.BuildTable(filepath.Join(dir, "missing"))
	if err != nil {
		t.Fatalf("BuildTable missing dir: %v", err)
	}
	if _, err := table.Resolve(plan.TierEnterprise); err != nil {
		t.Errorf("presets missing after empty override dir: %v", err)
	}
}

func TestLoadFromFileRejectsUnknownTier(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(path, []byte("tier: platinum\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := plan.LoadFromFile(path); !errors.Is(err, domain.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
}
