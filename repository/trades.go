package repository

import (
	"context"
	"fmt"

	"prediction-fleet/models"

	"github.com/google/uuid"
)

// CreateTrade inserts one executed trade linked to its decision
func (r *Repository) CreateTrade(ctx context.Context, decisionID uuid.UUID, modelID string, trade *models.ExecutedTrade) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO trades (id, decision_id, model_id, market_ticker, side, action, quantity, price, notional, executed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, trade.ID, decisionID, modelID, trade.MarketTicker, trade.Side, trade.Action, trade.Quantity, trade.Price, trade.Notional, trade.ExecutedAt)

	if err != nil {
		return fmt.Errorf("failed to create trade: %w", err)
	}

	return nil
}

// RecentTradesByModel returns one agent's latest executed trades, newest
// first. Feeds the trade-history section of the run context.
func (r *Repository) RecentTradesByModel(ctx context.Context, modelID string, limit int) ([]models.ExecutedTrade, error) {
	if limit <= 0 {
		limit = 5
	}

	rows, err := r.db.Query(ctx, `
		SELECT id, market_ticker, side, action, quantity, price, notional, executed_at
		FROM trades
		WHERE model_id = $1
		ORDER BY executed_at DESC
		LIMIT $2
	`, modelID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query trades: %w", err)
	}
	defer rows.Close()

	var trades []models.ExecutedTrade
	for rows.Next() {
		var t models.ExecutedTrade
		err := rows.Scan(&t.ID, &t.MarketTicker, &t.Side, &t.Action, &t.Quantity, &t.Price, &t.Notional, &t.ExecutedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trade: %w", err)
		}
		trades = append(trades, t)
	}

	return trades, nil
}

// GetTradesByDecision returns all trades linked to one decision
func (r *Repository) GetTradesByDecision(ctx context.Context, decisionID uuid.UUID) ([]models.ExecutedTrade, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, market_ticker, side, action, quantity, price, notional, executed_at
		FROM trades
		WHERE decision_id = $1
		ORDER BY executed_at
	`, decisionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query trades: %w", err)
	}
	defer rows.Close()

	var trades []models.ExecutedTrade
	for rows.Next() {
		var t models.ExecutedTrade
		err := rows.Scan(&t.ID, &t.MarketTicker, &t.Side, &t.Action, &t.Quantity, &t.Price, &t.Notional, &t.ExecutedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trade: %w", err)
		}
		trades = append(trades, t)
	}

	return trades, nil
}
