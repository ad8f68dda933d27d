package repository

import (
	"context"
	"fmt"

	"prediction-fleet/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// CreateDecision inserts one decision record. Returns false when a record
// with the same idempotency key already exists; the caller then skips the
// dependent trade inserts, which makes replaying a finished run a no-op.
func (r *Repository) CreateDecision(ctx context.Context, decision *models.DecisionRecord) (bool, error) {
	var id uuid.UUID
	err := r.db.QueryRow(ctx, `
		INSERT INTO decisions (id, model_id, decision, reasoning, market_ticker, market_title, steps_executed, trigger_kind, portfolio_value, idempotency_key, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (idempotency_key) DO NOTHING
		RETURNING id
	`, decision.ID, decision.ModelID, decision.Decision, decision.Reasoning, decision.MarketTicker, decision.MarketTitle,
		decision.StepsExecuted, decision.TriggerKind, decision.PortfolioValue, decision.IdempotencyKey, decision.CreatedAt).Scan(&id)

	if err == pgx.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to create decision: %w", err)
	}

	return true, nil
}

// GetDecision returns a single decision by ID
func (r *Repository) GetDecision(ctx context.Context, id uuid.UUID) (*models.DecisionRecord, error) {
	var d models.DecisionRecord
	err := r.db.QueryRow(ctx, `
		SELECT id, model_id, decision, reasoning, market_ticker, market_title, steps_executed, trigger_kind, portfolio_value, idempotency_key, created_at
		FROM decisions WHERE id = $1
	`, id).Scan(&d.ID, &d.ModelID, &d.Decision, &d.Reasoning, &d.MarketTicker, &d.MarketTitle, &d.StepsExecuted, &d.TriggerKind, &d.PortfolioValue, &d.IdempotencyKey, &d.CreatedAt)

	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query decision: %w", err)
	}

	return &d, nil
}

// GetDecisionsByModel returns the most recent decisions for one agent
func (r *Repository) GetDecisionsByModel(ctx context.Context, modelID string, limit int) ([]models.DecisionRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.Query(ctx, `
		SELECT id, model_id, decision, reasoning, market_ticker, market_title, steps_executed, trigger_kind, portfolio_value, idempotency_key, created_at
		FROM decisions
		WHERE model_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, modelID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query decisions: %w", err)
	}
	defer rows.Close()

	var decisions []models.DecisionRecord
	for rows.Next() {
		var d models.DecisionRecord
		err := rows.Scan(&d.ID, &d.ModelID, &d.Decision, &d.Reasoning, &d.MarketTicker, &d.MarketTitle, &d.StepsExecuted, &d.TriggerKind, &d.PortfolioValue, &d.IdempotencyKey, &d.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan decision: %w", err)
		}
		decisions = append(decisions, d)
	}

	return decisions, nil
}
