package main

import (
	"context"

	"prediction-fleet/agents"
	appconfig "prediction-fleet/config"
	"prediction-fleet/models"
	"prediction-fleet/repository"
)

// App wires the fleet's core components behind the HTTP surface.
type App struct {
	cfg        *appconfig.Config
	fleet      []models.AgentIdentity
	repo       *repository.Repository
	dispatcher *agents.Dispatcher
	health     *agents.HealthChecker
	tracker    *agents.RunTracker
}

// NewApp creates a new App. repo may be nil when no database is configured;
// dispatch then runs without a ledger.
func NewApp(cfg *appconfig.Config, fleet []models.AgentIdentity, repo *repository.Repository, dispatcher *agents.Dispatcher, health *agents.HealthChecker, tracker *agents.RunTracker) *App {
	return &App{
		cfg:        cfg,
		fleet:      fleet,
		repo:       repo,
		dispatcher: dispatcher,
		health:     health,
		tracker:    tracker,
	}
}

// Dispatch fans one trigger out to the fleet.
func (a *App) Dispatch(ctx context.Context, req models.TriggerRequest, mode agents.DispatchMode) ([]models.DispatchOutcome, error) {
	return a.dispatcher.Dispatch(ctx, req, mode)
}

// PollRuns reconciles tracked durable runs against the engine.
func (a *App) PollRuns(ctx context.Context) (*agents.PollReport, error) {
	return a.dispatcher.PollRuns(ctx)
}

// CheckHealth runs one listener reconciliation cycle. Returns nil when no
// durable engine is configured.
func (a *App) CheckHealth(ctx context.Context) *agents.HealthReport {
	if a.health == nil {
		return nil
	}
	return a.health.CheckCycle(ctx)
}

// Shutdown releases held resources.
func (a *App) Shutdown() {
	if a.repo != nil {
		a.repo.Close()
	}
}
