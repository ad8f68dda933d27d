package mocks

import (
	"prediction-fleet/models"

	"github.com/shopspring/decimal"
)

// DefaultMarkets returns the venue's default market list.
func DefaultMarkets() []models.Market {
	return []models.Market{
		{
			Ticker:    "RAIN-NYC-TOMORROW",
			Title:     "Will it rain in NYC tomorrow?",
			YesPrice:  decimal.NewFromFloat(0.62),
			NoPrice:   decimal.NewFromFloat(0.38),
			Volume24h: decimal.NewFromInt(8200),
			Liquidity: decimal.NewFromInt(15000),
		},
		{
			Ticker:    "FED-CUT-DEC",
			Title:     "Will the Fed cut rates in December?",
			YesPrice:  decimal.NewFromFloat(0.41),
			NoPrice:   decimal.NewFromFloat(0.59),
			Volume24h: decimal.NewFromInt(25000),
			Liquidity: decimal.NewFromInt(90000),
		},
		{
			Ticker:    "ETH-5K-EOY",
			Title:     "Will ETH close above 5000 by year end?",
			YesPrice:  decimal.NewFromFloat(0.18),
			NoPrice:   decimal.NewFromFloat(0.81),
			Volume24h: decimal.NewFromInt(400),
			Liquidity: decimal.NewFromInt(1200),
		},
	}
}

// DefaultOrderbook builds a one-level book around a market's current prices.
func DefaultOrderbook(market models.Market) *models.OrderbookSnapshot {
	tick := decimal.NewFromFloat(0.01)
	size := decimal.NewFromInt(500)
	return &models.OrderbookSnapshot{
		Ticker:  market.Ticker,
		YesBids: []models.OrderbookLevel{{Price: market.YesPrice.Sub(tick), Quantity: size}},
		YesAsks: []models.OrderbookLevel{{Price: market.YesPrice.Add(tick), Quantity: size}},
		NoBids:  []models.OrderbookLevel{{Price: market.NoPrice.Sub(tick), Quantity: size}},
		NoAsks:  []models.OrderbookLevel{{Price: market.NoPrice.Add(tick), Quantity: size}},
	}
}

// DefaultPortfolio returns the venue's default wallet snapshot.
func DefaultPortfolio(wallet string) *models.PortfolioSnapshot {
	return &models.PortfolioSnapshot{
		WalletAddress: wallet,
		Cash:          decimal.NewFromInt(1000),
		TotalValue:    decimal.NewFromInt(1000),
	}
}
