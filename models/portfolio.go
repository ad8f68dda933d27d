package models

import "github.com/shopspring/decimal"

// Position is an open outcome-share holding in one market.
type Position struct {
	MarketTicker string          `json:"market_ticker"`
	Side         TradeSide       `json:"side"`
	Quantity     decimal.Decimal `json:"quantity"`
	AvgPrice     decimal.Decimal `json:"avg_price"`
	CurrentPrice decimal.Decimal `json:"current_price"`
	Redeemable   bool            `json:"redeemable"`
}

// Value returns the mark-to-market value of the position.
func (p Position) Value() decimal.Decimal {
	return p.Quantity.Mul(p.CurrentPrice)
}

// PortfolioSnapshot is the on-chain view of one wallet at a point in time.
type PortfolioSnapshot struct {
	WalletAddress string          `json:"wallet_address"`
	Cash          decimal.Decimal `json:"cash"`
	TotalValue    decimal.Decimal `json:"total_value"`
	Positions     []Position      `json:"positions"`
}

// ZeroPortfolio returns an empty snapshot for the wallet. Used when the
// on-chain read fails: a decision based on zero balance is safer than no
// decision, since the order tools independently refuse to overspend.
func ZeroPortfolio(wallet string) *PortfolioSnapshot {
	return &PortfolioSnapshot{
		WalletAddress: wallet,
		Cash:          decimal.Zero,
		TotalValue:    decimal.Zero,
	}
}
