package plan

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Strob0t/BotForge/internal/domain"
)

// LoadFromFile reads a single Limits record from a YAML file.
func LoadFromFile(path string) (*Limits, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read plan file %s: %w", path, err)
	}

	var l Limits
	if err := yaml.Unmarshal(data, &l); err != nil {
		return nil, fmt.Errorf("parse plan file %s: %w", path, err)
	}

	if !ValidTier(l.Tier) {
		return nil, fmt.Errorf("plan file %s: unknown tier %q: %w", path, l.Tier, domain.ErrConfiguration)
	}

	return &l, nil
}

// LoadFromDirectory reads all .yaml/.yml files from a directory and returns
// the Limits they define. A missing directory returns an empty slice, matching
// the config loader pattern.
func LoadFromDirectory(dir string) ([]Limits, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read plan directory %s: %w", dir, err)
	}

	var limits []Limits
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}

		l, err := LoadFromFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		limits = append(limits, *l)
	}

	return limits, nil
}

// BuildTable combines the built-in presets with overrides loaded from dir.
// File overrides shadow the preset for the same tier.
func BuildTable(dir string) (*Table, error) {
	all := Presets()
	if dir != "" {
		overrides, err := LoadFromDirectory(dir)
		if err != nil {
			return nil, err
		}
		all = append(all, overrides...)
	}
	return NewTable(all...), nil
}
