package agents

import (
	"context"
	"fmt"
	"sync"
	"time"

	appconfig "prediction-fleet/config"
	"prediction-fleet/models"
	"prediction-fleet/observability"
)

// listenerToken names the wait-handle one agent's listener parks on.
func listenerToken(modelID string) string {
	return "listener:" + modelID
}

// listenerArgs is the payload for starting a fresh listener workflow.
type listenerArgs struct {
	ModelID string `json:"model_id"`
}

// AgentHealth is one agent's state for one health-check cycle.
type AgentHealth struct {
	ModelID       string `json:"model_id"`
	Listening     bool   `json:"listening"`
	JustRestarted bool   `json:"just_restarted"`
	Error         string `json:"error,omitempty"`
}

// Healthy reports whether the agent needs no fallback this cycle. A listener
// restarted this cycle is not yet guaranteed to be receiving, so a
// just-restarted agent still counts as unhealthy.
func (a AgentHealth) Healthy() bool {
	return a.Listening && !a.JustRestarted
}

// HealthReport summarizes one cycle.
type HealthReport struct {
	Healthy   int           `json:"healthy"`
	Restarted int           `json:"restarted"`
	Fallbacks int           `json:"fallbacks"`
	Agents    []AgentHealth `json:"agents"`
}

// HealthChecker reconciles each agent's durable listener once per cycle:
// probe liveness, restart dead listeners, and run a fallback pass so no agent
// stays silent while its restart is still in flight.
type HealthChecker struct {
	fleet  []models.AgentIdentity
	engine DurableEngine
	runner *Runner
	ledger Ledger
	cfg    *appconfig.Config
}

// NewHealthChecker creates a HealthChecker.
func NewHealthChecker(fleet []models.AgentIdentity, engine DurableEngine, runner *Runner, ledger Ledger, cfg *appconfig.Config) *HealthChecker {
	return &HealthChecker{
		fleet:  fleet,
		engine: engine,
		runner: runner,
		ledger: ledger,
		cfg:    cfg,
	}
}

// CheckCycle runs one reconciliation cycle. One agent's probe or restart
// failure never blocks evaluation of the rest; the cycle itself never fails.
func (h *HealthChecker) CheckCycle(ctx context.Context) *HealthReport {
	report := &HealthReport{
		Agents: make([]AgentHealth, len(h.fleet)),
	}

	var wg sync.WaitGroup
	for i, agent := range h.fleet {
		wg.Add(1)
		go func(idx int, ag models.AgentIdentity) {
			defer wg.Done()
			defer func() {
				if rec := recover(); rec != nil {
					observability.WithModel(ag.ModelID).Error("health probe panicked", "panic", rec)
					report.Agents[idx] = AgentHealth{
						ModelID: ag.ModelID,
						Error:   fmt.Sprintf("panic: %v", rec),
					}
				}
			}()
			report.Agents[idx] = h.probeAndRestart(ctx, ag)
		}(i, agent)
	}
	wg.Wait()

	var unhealthy []int
	for i, ah := range report.Agents {
		if ah.Healthy() {
			report.Healthy++
		} else {
			unhealthy = append(unhealthy, i)
		}
		if ah.JustRestarted {
			report.Restarted++
		}
	}

	// Fallback pass: wake the (possibly now-live) handle first; only when
	// delivery fails, run the agent inline so signal processing is not
	// delayed by a full listener cold start.
	if len(unhealthy) > 0 {
		var fwg sync.WaitGroup
		var mu sync.Mutex
		for _, idx := range unhealthy {
			fwg.Add(1)
			go func(ag models.AgentIdentity) {
				defer fwg.Done()
				defer func() {
					if rec := recover(); rec != nil {
						observability.WithModel(ag.ModelID).Error("fallback pass panicked", "panic", rec)
					}
				}()
				if h.fallback(ctx, ag) {
					mu.Lock()
					report.Fallbacks++
					mu.Unlock()
				}
			}(h.fleet[idx])
		}
		fwg.Wait()
	}

	observability.GetMetrics().RecordHealthCycle(report.Healthy)
	observability.Info("health cycle complete",
		"healthy", report.Healthy,
		"restarted", report.Restarted,
		"fallbacks", report.Fallbacks)

	return report
}

// probeAndRestart queries liveness once and restarts a dead listener exactly
// once for this cycle. A probe error is treated as dead/unknown, not as a
// cycle failure.
func (h *HealthChecker) probeAndRestart(ctx context.Context, agent models.AgentIdentity) AgentHealth {
	log := observability.WithModel(agent.ModelID)
	ah := AgentHealth{ModelID: agent.ModelID}

	handle, err := h.engine.LiveHandle(ctx, listenerToken(agent.ModelID))
	if err != nil {
		log.Warn("listener liveness probe failed, treating as dead", "error", err)
		ah.Error = err.Error()
	}
	if handle != "" {
		ah.Listening = true
		return ah
	}

	log.Info("listener dead, starting fresh listener")
	runID, err := h.engine.Start(ctx, h.cfg.Engine.ListenerWorkflow, listenerArgs{ModelID: agent.ModelID})
	if err != nil {
		log.Error("listener restart failed", "error", err)
		ah.Error = err.Error()
		return ah
	}

	ah.JustRestarted = true
	observability.GetMetrics().RecordListenerRestart(agent.ModelID)
	log.Info("listener restarted", "run_id", runID)
	return ah
}

// fallback delivers a synthetic periodic signal to one unhealthy agent:
// first by waking its wait-handle, then — when no listener is ready to
// receive — by running the agent inline, bypassing the engine for this cycle
// only. Returns whether either path succeeded.
func (h *HealthChecker) fallback(ctx context.Context, agent models.AgentIdentity) bool {
	log := observability.WithModel(agent.ModelID)
	metrics := observability.GetMetrics()

	signal := &models.MarketSignal{
		Kind:       models.SignalPeriodic,
		ObservedAt: time.Now().UnixMilli(),
	}

	wakeErr := h.engine.Wake(ctx, listenerToken(agent.ModelID), signal)
	if wakeErr == nil {
		metrics.RecordFallbackRun(agent.ModelID, "wake")
		log.Info("fallback wake delivered")
		return true
	}
	log.Warn("fallback wake failed, running inline", "error", wakeErr)

	runCtx, cancel := context.WithTimeout(ctx, time.Duration(h.cfg.Runner.TimeoutSeconds)*time.Second)
	defer cancel()

	trigger := models.TriggerRequest{
		Signal:      signal,
		TriggerKind: models.TriggerCron,
	}
	result, runErr := h.runner.Run(runCtx, agent, trigger)
	if result != nil && h.ledger != nil {
		if err := h.ledger.RecordRun(runCtx, agent, result, trigger); err != nil {
			log.Error("fallback ledger record failed", "error", err)
		}
	}
	if runErr != nil {
		log.Error("fallback inline run failed", "error", runErr)
		return false
	}

	metrics.RecordFallbackRun(agent.ModelID, "inline")
	log.Info("fallback inline run complete", "decision", result.Decision)
	return true
}
