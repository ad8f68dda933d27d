package models

import "github.com/shopspring/decimal"

// OrderbookLevel is one resting price level on the book.
type OrderbookLevel struct {
	Price    decimal.Decimal `json:"price"`
	Quantity decimal.Decimal `json:"quantity"`
}

// OrderbookSnapshot is the venue's book for one market at one moment. Levels
// are ordered best-first on both sides.
type OrderbookSnapshot struct {
	Ticker  string           `json:"ticker"`
	YesBids []OrderbookLevel `json:"yes_bids"`
	YesAsks []OrderbookLevel `json:"yes_asks"`
	NoBids  []OrderbookLevel `json:"no_bids"`
	NoAsks  []OrderbookLevel `json:"no_asks"`
}

// Market is a snapshot of one prediction market as reported by the venue.
type Market struct {
	Ticker    string          `json:"ticker"`
	Title     string          `json:"title"`
	YesPrice  decimal.Decimal `json:"yes_price"`
	NoPrice   decimal.Decimal `json:"no_price"`
	Volume24h decimal.Decimal `json:"volume_24h"`
	Liquidity decimal.Decimal `json:"liquidity"`
	EndDate   string          `json:"end_date,omitempty"`
	Resolved  bool            `json:"resolved"`
}
