package repository

import (
	"context"
	"fmt"

	"prediction-fleet/models"
	"prediction-fleet/observability"
)

// RecordRun persists the outcome of one completed agent run atomically: one
// decision record, its trades, and an updated portfolio value sample.
//
// Idempotency is keyed on the decision's content hash: replaying a run whose
// decision was already recorded skips the decision and its trades, so a
// crashed-and-retried dispatch cannot double-count a trade. The portfolio
// sample is appended either way since it is a time series, not a fact about
// the run.
func (r *Repository) RecordRun(ctx context.Context, agent models.AgentIdentity, result *models.TradingResult, trigger models.TriggerRequest) error {
	timer := observability.GetMetrics().NewTimer()
	defer timer.ObserveDB("record_run", "decisions")

	tx, txRepo, err := r.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	decision := models.NewDecisionRecord(agent.ModelID, result, trigger.TriggerKind)
	inserted, err := txRepo.CreateDecision(ctx, decision)
	if err != nil {
		observability.GetMetrics().RecordDBError("record_run", "decisions")
		return err
	}

	if inserted {
		for i := range result.Trades {
			if err := txRepo.CreateTrade(ctx, decision.ID, agent.ModelID, &result.Trades[i]); err != nil {
				observability.GetMetrics().RecordDBError("record_run", "trades")
				return err
			}
		}
	} else {
		observability.WithModel(agent.ModelID).Info("decision already recorded, skipping replay",
			"idempotency_key", decision.IdempotencyKey)
	}

	if err := txRepo.RecordPortfolioValue(ctx, agent.ModelID, result.PortfolioValueAfter); err != nil {
		observability.GetMetrics().RecordDBError("record_run", "portfolio_values")
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit run record: %w", err)
	}

	return nil
}
