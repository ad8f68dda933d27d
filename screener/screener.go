// Package screener ranks prediction markets by how tradable they are, so
// agents spend their bounded tool budget on markets where orders actually
// fill.
package screener

import (
	"context"

	"prediction-fleet/models"
	"prediction-fleet/observability"
)

// MarketSource supplies candidate markets, typically the exchange client.
type MarketSource interface {
	Markets(ctx context.Context, limit int) ([]models.Market, error)
}

// MarketScreener fetches a widened candidate set from the venue and returns
// the most tradable markets.
type MarketScreener struct {
	source MarketSource
}

// NewMarketScreener creates a new MarketScreener
func NewMarketScreener(source MarketSource) *MarketScreener {
	return &MarketScreener{source: source}
}

// TopMarkets returns the best limit markets by opportunity score. It fetches
// twice the requested count so ranking has something to discard.
func (s *MarketScreener) TopMarkets(ctx context.Context, limit int) ([]models.Market, error) {
	if limit <= 0 {
		limit = 10
	}

	candidates, err := s.source.Markets(ctx, limit*2)
	if err != nil {
		return nil, err
	}

	ranked := Rank(candidates, limit)
	observability.Debug("screened markets",
		"candidates", len(candidates),
		"selected", len(ranked))
	return ranked, nil
}
