package models

import "github.com/shopspring/decimal"

// Decision classifies the outcome of one agent run.
type Decision string

const (
	DecisionBuy  Decision = "buy"
	DecisionSell Decision = "sell"
	DecisionHold Decision = "hold"
	DecisionSkip Decision = "skip"
)

// TradingResult is the terminal output of one Agent Runner invocation.
// Immutable once returned.
type TradingResult struct {
	Reasoning           string          `json:"reasoning"`
	Trades              []ExecutedTrade `json:"trades"`
	Decision            Decision        `json:"decision"`
	StepsExecuted       int             `json:"steps_executed"`
	PortfolioValueAfter decimal.Decimal `json:"portfolio_value_after"`
	MarketTicker        string          `json:"market_ticker,omitempty"`
	MarketTitle         string          `json:"market_title,omitempty"`
}

// DispatchStatus partitions per-agent outcomes.
type DispatchStatus string

const (
	DispatchCompleted DispatchStatus = "completed"
	DispatchFailed    DispatchStatus = "failed"
)

// DispatchOutcome is one agent's result for one trigger.
type DispatchOutcome struct {
	ModelID      string         `json:"model_id"`
	Status       DispatchStatus `json:"status"`
	RunID        string         `json:"run_id,omitempty"`
	Result       *TradingResult `json:"result,omitempty"`
	ErrorMessage string         `json:"error,omitempty"`
}
