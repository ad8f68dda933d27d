package agents

import (
	"context"
	"fmt"
	"sync"
	"time"

	appconfig "prediction-fleet/config"
	"prediction-fleet/models"
	"prediction-fleet/observability"
	"prediction-fleet/services"
)

// DispatchMode selects how a trigger executes. Inline runs the agent inside
// the triggering request; durable asks the workflow engine to run it and
// returns immediately.
type DispatchMode string

const (
	DispatchInline  DispatchMode = "inline"
	DispatchDurable DispatchMode = "durable"
)

// runArgs is the payload handed to the engine when spawning a durable run.
type runArgs struct {
	ModelID     string               `json:"model_id"`
	Signal      *models.MarketSignal `json:"signal,omitempty"`
	TriggerKind models.TriggerKind   `json:"trigger_kind"`
	TestMode    bool                 `json:"test_mode,omitempty"`
}

// Dispatcher fans one trigger out to N agents with per-agent failure
// isolation and aggregates the outcomes.
type Dispatcher struct {
	fleet   []models.AgentIdentity
	runner  *Runner
	engine  DurableEngine
	ledger  Ledger
	tracker *RunTracker
	cfg     *appconfig.Config
}

// NewDispatcher creates a Dispatcher. engine may be nil when only inline
// dispatch is used; ledger may be nil when no database is configured.
func NewDispatcher(fleet []models.AgentIdentity, runner *Runner, engine DurableEngine, ledger Ledger, tracker *RunTracker, cfg *appconfig.Config) *Dispatcher {
	return &Dispatcher{
		fleet:   fleet,
		runner:  runner,
		engine:  engine,
		ledger:  ledger,
		tracker: tracker,
		cfg:     cfg,
	}
}

// resolveTargets picks the agent set for one trigger: the named agent, or
// every configured agent with a funded wallet.
func (d *Dispatcher) resolveTargets(modelID string) ([]models.AgentIdentity, error) {
	if modelID != "" {
		for _, agent := range d.fleet {
			if agent.ModelID == modelID {
				return []models.AgentIdentity{agent}, nil
			}
		}
		return nil, fmt.Errorf("%w: %s", ErrAgentNotFound, modelID)
	}

	targets := make([]models.AgentIdentity, 0, len(d.fleet))
	for _, agent := range d.fleet {
		if agent.Funded() {
			targets = append(targets, agent)
		}
	}
	return targets, nil
}

// Dispatch converts one trigger into isolated per-agent executions. An empty
// resolved set is a zero-result success, not an error. A failure in one
// agent's run never cancels, delays or corrupts a sibling's outcome.
func (d *Dispatcher) Dispatch(ctx context.Context, req models.TriggerRequest, mode DispatchMode) ([]models.DispatchOutcome, error) {
	metrics := observability.GetMetrics()
	metrics.RecordDispatchRequest(string(req.TriggerKind), string(mode))
	timer := metrics.NewTimer()

	targets, err := d.resolveTargets(req.ModelID)
	if err != nil {
		return nil, err
	}
	if len(targets) == 0 {
		observability.Info("dispatch resolved no funded agents", "trigger_kind", req.TriggerKind)
		return []models.DispatchOutcome{}, nil
	}

	outcomes := make([]models.DispatchOutcome, len(targets))

	var wg sync.WaitGroup
	for i, agent := range targets {
		wg.Add(1)
		go func(idx int, ag models.AgentIdentity) {
			defer wg.Done()
			defer func() {
				if rec := recover(); rec != nil {
					observability.WithModel(ag.ModelID).Error("dispatch panicked", "panic", rec)
					outcomes[idx] = models.DispatchOutcome{
						ModelID:      ag.ModelID,
						Status:       models.DispatchFailed,
						ErrorMessage: fmt.Sprintf("panic: %v", rec),
					}
				}
			}()

			if mode == DispatchDurable {
				outcomes[idx] = d.dispatchDurable(ctx, ag, req)
			} else {
				outcomes[idx] = d.dispatchInline(ctx, ag, req)
			}
		}(i, agent)
	}
	wg.Wait()

	for _, outcome := range outcomes {
		metrics.RecordDispatchOutcome(outcome.ModelID, string(outcome.Status))
	}
	timer.ObserveDispatch(string(req.TriggerKind))

	return outcomes, nil
}

// dispatchInline runs the agent synchronously and records the outcome in the
// ledger before the dispatch is considered complete. A guardrail violation
// still carries the trades placed before the ceiling fired, so a partial
// result is recorded even when the run failed.
func (d *Dispatcher) dispatchInline(ctx context.Context, agent models.AgentIdentity, req models.TriggerRequest) models.DispatchOutcome {
	agentCtx, cancel := context.WithTimeout(ctx, time.Duration(d.cfg.Runner.TimeoutSeconds)*time.Second)
	defer cancel()

	result, runErr := d.runner.Run(agentCtx, agent, req)

	if result != nil && d.ledger != nil && !req.TestMode {
		if err := d.ledger.RecordRun(agentCtx, agent, result, req); err != nil {
			observability.WithModel(agent.ModelID).Error("ledger record failed", "error", err)
			if runErr == nil {
				return models.DispatchOutcome{
					ModelID:      agent.ModelID,
					Status:       models.DispatchFailed,
					Result:       result,
					ErrorMessage: fmt.Sprintf("failed to record run: %v", err),
				}
			}
		}
	}

	if runErr != nil {
		return models.DispatchOutcome{
			ModelID:      agent.ModelID,
			Status:       models.DispatchFailed,
			Result:       result,
			ErrorMessage: runErr.Error(),
		}
	}

	return models.DispatchOutcome{
		ModelID: agent.ModelID,
		Status:  models.DispatchCompleted,
		Result:  result,
	}
}

// dispatchDurable spawns a durable run and registers it with the tracker
// without waiting for completion. The workflow itself records the ledger when
// it finishes.
func (d *Dispatcher) dispatchDurable(ctx context.Context, agent models.AgentIdentity, req models.TriggerRequest) models.DispatchOutcome {
	if d.engine == nil {
		return models.DispatchOutcome{
			ModelID:      agent.ModelID,
			Status:       models.DispatchFailed,
			ErrorMessage: "durable engine not configured",
		}
	}

	runID, err := d.engine.Start(ctx, d.cfg.Engine.RunWorkflow, runArgs{
		ModelID:     agent.ModelID,
		Signal:      req.Signal,
		TriggerKind: req.TriggerKind,
		TestMode:    req.TestMode,
	})
	if err != nil {
		observability.WithModel(agent.ModelID).Error("durable spawn failed", "error", err)
		return models.DispatchOutcome{
			ModelID:      agent.ModelID,
			Status:       models.DispatchFailed,
			ErrorMessage: err.Error(),
		}
	}

	d.tracker.Insert(runID, agent.ModelID, time.Now())
	observability.WithModel(agent.ModelID).Info("durable run spawned", "run_id", runID)

	return models.DispatchOutcome{
		ModelID: agent.ModelID,
		Status:  models.DispatchCompleted,
		RunID:   runID,
	}
}

// RunStatusEntry is one tracked run's polled state.
type RunStatusEntry struct {
	RunID  string `json:"run_id"`
	Status string `json:"status"`
}

// PollSummary counts polled runs by state.
type PollSummary struct {
	Running   int `json:"running"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
}

// PollReport is the response to one status-poll request.
type PollReport struct {
	PerRun  []RunStatusEntry `json:"per_run"`
	Summary PollSummary      `json:"summary"`
	Swept   []string         `json:"swept,omitempty"`
}

// PollRuns reconciles the tracker against the engine: stale entries are swept
// first, then every remaining run is polled and non-running entries are
// evicted. A poll error for one run keeps it tracked and reported as running.
func (d *Dispatcher) PollRuns(ctx context.Context) (*PollReport, error) {
	report := &PollReport{}

	swept := d.tracker.SweepStale(time.Now())
	if len(swept) > 0 {
		observability.Warn("swept stale runs past tracker TTL", "run_ids", swept)
		report.Swept = swept
	}

	if d.engine == nil {
		return report, nil
	}

	for _, rec := range d.tracker.Snapshot() {
		status, err := d.engine.RunStatus(ctx, rec.RunID)
		if err != nil {
			observability.WithRun(rec.RunID).Warn("run status poll failed", "error", err)
			status = services.RunStatusRunning
		}

		report.PerRun = append(report.PerRun, RunStatusEntry{RunID: rec.RunID, Status: status})
		switch status {
		case services.RunStatusRunning:
			report.Summary.Running++
		case services.RunStatusCompleted:
			report.Summary.Completed++
			d.tracker.Remove(rec.RunID)
		case services.RunStatusFailed:
			report.Summary.Failed++
			d.tracker.Remove(rec.RunID)
		default:
			d.tracker.Remove(rec.RunID)
		}
	}

	return report, nil
}
