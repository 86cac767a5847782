package otel

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "botforge"

// Metrics holds all BotForge metric instruments.
type Metrics struct {
	TurnsStarted   metric.Int64Counter
	TurnsCompleted metric.Int64Counter
	TurnsDegraded  metric.Int64Counter
	TurnsFailed    metric.Int64Counter
	ToolCalls      metric.Int64Counter
	TokensUsed     metric.Int64Counter
	CreditsUsed    metric.Int64Counter
	TurnDuration   metric.Float64Histogram
}

// NewMetrics creates all metric instruments.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	m.TurnsStarted, err = meter.Int64Counter("botforge.turns.started",
		metric.WithDescription("Number of turns started"))
	if err != nil {
		return nil, err
	}

	m.TurnsCompleted, err = meter.Int64Counter("botforge.turns.completed",
		metric.WithDescription("Number of turns completed"))
	if err != nil {
		return nil, err
	}

	m.TurnsDegraded, err = meter.Int64Counter("botforge.turns.degraded",
		metric.WithDescription("Number of turns completed in degraded mode"))
	if err != nil {
		return nil, err
	}

	m.TurnsFailed, err = meter.Int64Counter("botforge.turns.failed",
		metric.WithDescription("Number of turns failed"))
	if err != nil {
		return nil, err
	}

	m.ToolCalls, err = meter.Int64Counter("botforge.toolcalls",
		metric.WithDescription("Number of tool calls"))
	if err != nil {
		return nil, err
	}

	m.TokensUsed, err = meter.Int64Counter("botforge.tokens",
		metric.WithDescription("Total tokens consumed"))
	if err != nil {
		return nil, err
	}

	m.CreditsUsed, err = meter.Int64Counter("botforge.credits",
		metric.WithDescription("Tool credits consumed"))
	if err != nil {
		return nil, err
	}

	m.TurnDuration, err = meter.Float64Histogram("botforge.turn.duration_seconds",
		metric.WithDescription("Turn duration in seconds"))
	if err != nil {
		return nil, err
	}

	return m, nil
}
