package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TradeSide is the outcome side of a prediction-market order.
type TradeSide string

const (
	TradeSideYes TradeSide = "yes"
	TradeSideNo  TradeSide = "no"
)

// TradeAction is the direction of a position change.
type TradeAction string

const (
	TradeActionBuy  TradeAction = "buy"
	TradeActionSell TradeAction = "sell"
)

// ExecutedTrade is a trade that the venue confirmed. It is derived, never
// requested: one is produced only when the underlying order tool reports
// success, with quantity/price/notional taken from the reported fill data.
type ExecutedTrade struct {
	ID           uuid.UUID       `json:"id"`
	MarketTicker string          `json:"market_ticker"`
	Side         TradeSide       `json:"side"`
	Action       TradeAction     `json:"action"`
	Quantity     decimal.Decimal `json:"quantity"`
	Price        decimal.Decimal `json:"price"`
	Notional     decimal.Decimal `json:"notional"`
	ExecutedAt   time.Time       `json:"executed_at"`
}

// NewExecutedTrade builds a trade record from confirmed fill data.
func NewExecutedTrade(ticker string, side TradeSide, action TradeAction, quantity, price decimal.Decimal) *ExecutedTrade {
	return &ExecutedTrade{
		ID:           uuid.New(),
		MarketTicker: ticker,
		Side:         side,
		Action:       action,
		Quantity:     quantity,
		Price:        price,
		Notional:     quantity.Mul(price),
		ExecutedAt:   time.Now(),
	}
}
