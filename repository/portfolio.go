package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// PortfolioPoint is one sample of an agent's running portfolio value.
type PortfolioPoint struct {
	ModelID    string          `json:"model_id"`
	Value      decimal.Decimal `json:"value"`
	RecordedAt time.Time       `json:"recorded_at"`
}

// RecordPortfolioValue appends one portfolio value sample for an agent
func (r *Repository) RecordPortfolioValue(ctx context.Context, modelID string, value decimal.Decimal) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO portfolio_values (model_id, value, recorded_at)
		VALUES ($1, $2, $3)
	`, modelID, value, time.Now())

	if err != nil {
		return fmt.Errorf("failed to record portfolio value: %w", err)
	}

	return nil
}

// LatestPortfolioValue returns the most recent sample for an agent, or nil
// when none has been recorded yet.
func (r *Repository) LatestPortfolioValue(ctx context.Context, modelID string) (*PortfolioPoint, error) {
	var p PortfolioPoint
	err := r.db.QueryRow(ctx, `
		SELECT model_id, value, recorded_at
		FROM portfolio_values
		WHERE model_id = $1
		ORDER BY recorded_at DESC
		LIMIT 1
	`, modelID).Scan(&p.ModelID, &p.Value, &p.RecordedAt)

	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query portfolio value: %w", err)
	}

	return &p, nil
}

// PortfolioHistory returns an agent's value samples, newest first
func (r *Repository) PortfolioHistory(ctx context.Context, modelID string, limit int) ([]PortfolioPoint, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := r.db.Query(ctx, `
		SELECT model_id, value, recorded_at
		FROM portfolio_values
		WHERE model_id = $1
		ORDER BY recorded_at DESC
		LIMIT $2
	`, modelID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query portfolio history: %w", err)
	}
	defer rows.Close()

	var points []PortfolioPoint
	for rows.Next() {
		var p PortfolioPoint
		if err := rows.Scan(&p.ModelID, &p.Value, &p.RecordedAt); err != nil {
			return nil, fmt.Errorf("failed to scan portfolio value: %w", err)
		}
		points = append(points, p)
	}

	return points, nil
}
