package usage_test

import (
	"testing"
	"time"

	"github.com/Strob0t/BotForge/internal/domain/usage"
)

func TestPeriodFor(t *testing.T) {
	ts := time.Date(2026, time.August, 31, 23, 59, 0, 0, time.UTC)
	if got := usage.PeriodFor(ts); got != "2026-08" {
		t.Fatalf("expected 2026-08, got %s", got)
	}

	// Period keys are computed in UTC regardless of the input zone.
	loc := time.FixedZone("UTC+10", 10*3600)
	ts = time.Date(2026, time.September, 1, 5, 0, 0, 0, loc)
	if got := usage.PeriodFor(ts); got != "2026-08" {
		t.Fatalf("expected rollover in UTC (2026-08), got %s", got)
	}
}
