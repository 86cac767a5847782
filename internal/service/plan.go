// Package service implements BotForge business logic on top of the ports.
package service

import (
	"log/slog"

	"github.com/Strob0t/BotForge/internal/domain/plan"
)

// PlanService resolves plan tiers to capability limits. The table is built
// once at startup from presets plus optional per-deployment overrides and is
// read-only afterwards, so resolution never touches storage.
type PlanService struct {
	table *plan.Table
}

// NewPlanService builds the plan table from presets, overridden by any YAML
// files found in customDir. An empty customDir means presets only.
func NewPlanService(customDir string) (*PlanService, error) {
	table, err := plan.BuildTable(customDir)
	if err != nil {
		return nil, err
	}
	if customDir != "" {
		slog.Info("plan overrides loaded", "dir", customDir)
	}
	return &PlanService{table: table}, nil
}

// Resolve returns the limits for a tier. Unknown tiers fail with
// ErrConfiguration rather than falling back to a default.
func (s *PlanService) Resolve(tier plan.Tier) (plan.Limits, error) {
	return s.table.Resolve(tier)
}
