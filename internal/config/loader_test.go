package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadFromMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if cfg.Server.Port != "8080" {
		t.Errorf("expected default port 8080, got %s", cfg.Server.Port)
	}
	if cfg.Knowledge.Dimension != 1536 {
		t.Errorf("expected default dimension 1536, got %d", cfg.Knowledge.Dimension)
	}
}

func TestLoadFromYAMLOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "botforge.yaml")
	data := `server:
  port: "9090"
agent:
  max_tool_iterations: 8
knowledge:
  chunk_size: 500
  chunk_overlap: 50
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if cfg.Server.Port != "9090" {
		t.Errorf("expected port 9090, got %s", cfg.Server.Port)
	}
	if cfg.Agent.MaxToolIterations != 8 {
		t.Errorf("expected 8 tool iterations, got %d", cfg.Agent.MaxToolIterations)
	}
	if cfg.Knowledge.ChunkSize != 500 {
		t.Errorf("expected chunk size 500, got %d", cfg.Knowledge.ChunkSize)
	}
	// Untouched sections keep defaults.
	if cfg.Qdrant.Collection != "botforge_knowledge" {
		t.Errorf("expected default collection, got %s", cfg.Qdrant.Collection)
	}
}

func TestEnvOverridesYAML(t *testing.T) {
	t.Setenv("BOTFORGE_PORT", "7070")
	t.Setenv("BOTFORGE_AGENT_PROVIDER_TIMEOUT", "90s")
	t.Setenv("BOTFORGE_KNOWLEDGE_MIN_SCORE", "0.5")

	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if cfg.Server.Port != "7070" {
		t.Errorf("expected env port 7070, got %s", cfg.Server.Port)
	}
	if cfg.Agent.ProviderTimeout != 90*time.Second {
		t.Errorf("expected 90s provider timeout, got %s", cfg.Agent.ProviderTimeout)
	}
	if cfg.Knowledge.MinScore != 0.5 {
		t.Errorf("expected min score 0.5, got %f", cfg.Knowledge.MinScore)
	}
}

func TestValidateRejectsBadChunking(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "botforge.yaml")
	data := `knowledge:
  chunk_size: 100
  chunk_overlap: 100
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFrom(path); err == nil {
		t.Fatal("expected validation error for overlap >= size")
	}
}
