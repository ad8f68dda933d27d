package models

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DecisionRecord is the persisted row for one completed agent run. Trades
// reference it by DecisionID.
type DecisionRecord struct {
	ID             uuid.UUID       `json:"id"`
	ModelID        string          `json:"model_id"`
	Decision       Decision        `json:"decision"`
	Reasoning      string          `json:"reasoning"`
	MarketTicker   string          `json:"market_ticker,omitempty"`
	MarketTitle    string          `json:"market_title,omitempty"`
	StepsExecuted  int             `json:"steps_executed"`
	TriggerKind    TriggerKind     `json:"trigger_kind"`
	PortfolioValue decimal.Decimal `json:"portfolio_value"`
	IdempotencyKey string          `json:"idempotency_key"`
	CreatedAt      time.Time       `json:"created_at"`
}

// NewDecisionRecord builds the persisted decision for a finished run. The
// idempotency key is derived from the decision content so the recorder can
// deduplicate replays of the same logical run.
func NewDecisionRecord(modelID string, result *TradingResult, trigger TriggerKind) *DecisionRecord {
	return &DecisionRecord{
		ID:             uuid.New(),
		ModelID:        modelID,
		Decision:       result.Decision,
		Reasoning:      result.Reasoning,
		MarketTicker:   result.MarketTicker,
		MarketTitle:    result.MarketTitle,
		StepsExecuted:  result.StepsExecuted,
		TriggerKind:    trigger,
		PortfolioValue: result.PortfolioValueAfter,
		IdempotencyKey: DecisionKey(modelID, string(result.Decision), result.Reasoning),
		CreatedAt:      time.Now(),
	}
}

// DecisionKey hashes the identifying content of a decision.
func DecisionKey(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
