package agents

import (
	appconfig "prediction-fleet/config"
	"prediction-fleet/observability"
)

// Default ceilings applied when the configured value is zero.
const (
	DefaultMaxTokensPerCall = 4096
	DefaultMaxToolCalls     = 20
	DefaultMaxTradesPerRun  = 3
)

// Guardrails enforces hard per-run ceilings around the model loop: tokens per
// call, tool calls per run, trades per run. Constructed per run, never shared.
//
// The trade ceiling is checked after each step, not before: the order tool is
// fire-once and cannot be cancelled after dispatch, and a step's tool calls
// are not known until the model requests them. The enforcement boundary is
// therefore "no further steps" — the limit-breaching trade itself is still
// submitted.
type Guardrails struct {
	maxTokensPerCall int
	maxToolCalls     int
	maxTradesPerRun  int
	modelID          string

	toolCallCount int
	tradeCount    int
}

// NewGuardrails creates per-run guardrails for one agent.
func NewGuardrails(cfg appconfig.GuardrailConfig, modelID string) *Guardrails {
	g := &Guardrails{
		maxTokensPerCall: cfg.MaxTokensPerCall,
		maxToolCalls:     cfg.MaxToolCalls,
		maxTradesPerRun:  cfg.MaxTradesPerRun,
		modelID:          modelID,
	}
	if g.maxTokensPerCall <= 0 {
		g.maxTokensPerCall = DefaultMaxTokensPerCall
	}
	if g.maxToolCalls <= 0 {
		g.maxToolCalls = DefaultMaxToolCalls
	}
	if g.maxTradesPerRun <= 0 {
		g.maxTradesPerRun = DefaultMaxTradesPerRun
	}
	return g
}

// ClampTokens caps a requested token budget at the per-call ceiling.
func (g *Guardrails) ClampTokens(requested int) int {
	if requested <= 0 || requested > g.maxTokensPerCall {
		return g.maxTokensPerCall
	}
	return requested
}

// BeforeStep gates the next model call. Returns a GuardrailError when the
// run has already spent its tool-call budget.
func (g *Guardrails) BeforeStep() error {
	observability.Debug("guardrail counters before step",
		"model_id", g.modelID,
		"tool_calls", g.toolCallCount,
		"trades", g.tradeCount)

	if g.toolCallCount >= g.maxToolCalls {
		observability.GetMetrics().RecordGuardrailTrip(g.modelID, string(GuardrailToolCalls))
		return &GuardrailError{
			Kind:    GuardrailToolCalls,
			ModelID: g.modelID,
			Limit:   g.maxToolCalls,
			Count:   g.toolCallCount,
		}
	}
	return nil
}

// AfterStep records one completed step: toolCalls invocations total, of which
// orderCalls were order placements. Returns a GuardrailError when the trade
// ceiling has been breached.
func (g *Guardrails) AfterStep(toolCalls, orderCalls int) error {
	g.toolCallCount += toolCalls
	g.tradeCount += orderCalls

	observability.Debug("guardrail counters after step",
		"model_id", g.modelID,
		"tool_calls", g.toolCallCount,
		"trades", g.tradeCount)

	if g.tradeCount > g.maxTradesPerRun {
		observability.GetMetrics().RecordGuardrailTrip(g.modelID, string(GuardrailTrades))
		return &GuardrailError{
			Kind:    GuardrailTrades,
			ModelID: g.modelID,
			Limit:   g.maxTradesPerRun,
			Count:   g.tradeCount,
		}
	}
	return nil
}

// ToolCalls returns the number of tool invocations observed so far.
func (g *Guardrails) ToolCalls() int {
	return g.toolCallCount
}

// Trades returns the number of order placements observed so far.
func (g *Guardrails) Trades() int {
	return g.tradeCount
}
