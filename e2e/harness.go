// Package e2e provides end-to-end testing infrastructure for the fleet: the
// real dispatcher, runner and HTTP service clients wired against a mock venue
// and engine, with only the language model scripted in-process.
package e2e

import (
	"context"
	"sync"
	"testing"
	"time"

	"prediction-fleet/agents"
	appconfig "prediction-fleet/config"
	"prediction-fleet/e2e/mocks"
	"prediction-fleet/models"
	"prediction-fleet/services"
)

// TestHarness provides the infrastructure for running E2E tests.
type TestHarness struct {
	t      *testing.T
	ctx    context.Context
	cancel context.CancelFunc

	mockServer *mocks.MockServer
	config     *appconfig.Config
	fleet      []models.AgentIdentity
	model      *ScriptedModel
	ledger     *MemoryLedger

	tracker    *agents.RunTracker
	dispatcher *agents.Dispatcher
	health     *agents.HealthChecker
}

// NewTestHarness creates a new test harness for the given fleet.
func NewTestHarness(t *testing.T, fleet []models.AgentIdentity) *TestHarness {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	return &TestHarness{
		t:      t,
		ctx:    ctx,
		cancel: cancel,
		fleet:  fleet,
		model:  NewScriptedModel(),
		ledger: &MemoryLedger{},
	}
}

// Setup initializes all test dependencies.
func (h *TestHarness) Setup() {
	h.mockServer = mocks.NewMockServer()

	cfg := appconfig.NewTestConfig()
	cfg.Exchange.BaseURL = h.mockServer.URL()
	cfg.Engine.BaseURL = h.mockServer.URL()
	cfg.Engine.Token = "e2e-token"
	h.config = cfg

	exchange := services.NewExchangeService(cfg)
	engine := services.NewEngineService(cfg)

	h.tracker = agents.NewRunTracker(time.Duration(cfg.Tracker.TTLMinutes) * time.Minute)
	runner := agents.NewRunner(h.model, exchange, nil, h.ledger, cfg)
	h.dispatcher = agents.NewDispatcher(h.fleet, runner, engine, h.ledger, h.tracker, cfg)
	h.health = agents.NewHealthChecker(h.fleet, engine, runner, h.ledger, cfg)
}

// Teardown cleans up all test resources.
func (h *TestHarness) Teardown() {
	if h.cancel != nil {
		h.cancel()
	}
	if h.mockServer != nil {
		h.mockServer.Close()
	}
}

// Context returns the test context.
func (h *TestHarness) Context() context.Context {
	return h.ctx
}

// MockServer returns the mock server for configuring responses.
func (h *TestHarness) MockServer() *mocks.MockServer {
	return h.mockServer
}

// Model returns the scripted model for queueing steps.
func (h *TestHarness) Model() *ScriptedModel {
	return h.model
}

// Ledger returns the in-memory ledger for assertions.
func (h *TestHarness) Ledger() *MemoryLedger {
	return h.ledger
}

// Tracker returns the run tracker.
func (h *TestHarness) Tracker() *agents.RunTracker {
	return h.tracker
}

// Config returns the test configuration.
func (h *TestHarness) Config() *appconfig.Config {
	return h.config
}

// Dispatch fans one trigger out through the real dispatcher.
func (h *TestHarness) Dispatch(req models.TriggerRequest, mode agents.DispatchMode) ([]models.DispatchOutcome, error) {
	return h.dispatcher.Dispatch(h.ctx, req, mode)
}

// PollRuns reconciles tracked durable runs against the mock engine.
func (h *TestHarness) PollRuns() (*agents.PollReport, error) {
	return h.dispatcher.PollRuns(h.ctx)
}

// CheckHealth runs one listener reconciliation cycle.
func (h *TestHarness) CheckHealth() *agents.HealthReport {
	return h.health.CheckCycle(h.ctx)
}

// ScriptedModel serves queued steps per model id. When a script runs out it
// answers with a terminal hold, so runs always finish.
type ScriptedModel struct {
	mu    sync.Mutex
	steps map[string][]*services.StepResult
}

// NewScriptedModel creates an empty scripted model.
func NewScriptedModel() *ScriptedModel {
	return &ScriptedModel{steps: make(map[string][]*services.StepResult)}
}

// Queue appends steps to one model's script.
func (s *ScriptedModel) Queue(modelID string, steps ...*services.StepResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.steps[modelID] = append(s.steps[modelID], steps...)
}

// CreateStep pops the next scripted step for the requested model.
func (s *ScriptedModel) CreateStep(_ context.Context, req services.StepRequest) (*services.StepResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	queue := s.steps[req.ModelID]
	if len(queue) == 0 {
		return &services.StepResult{Text: "Holding for now.", StopReason: services.StopEndTurn}, nil
	}
	step := queue[0]
	s.steps[req.ModelID] = queue[1:]
	return step, nil
}

// MemoryLedger records runs in memory for assertions.
type MemoryLedger struct {
	mu      sync.Mutex
	records []RecordedRun
}

// RecordedRun is one persisted run.
type RecordedRun struct {
	Agent   models.AgentIdentity
	Result  *models.TradingResult
	Trigger models.TriggerRequest
}

// RecordRun implements agents.Ledger.
func (l *MemoryLedger) RecordRun(_ context.Context, agent models.AgentIdentity, result *models.TradingResult, trigger models.TriggerRequest) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = append(l.records, RecordedRun{Agent: agent, Result: result, Trigger: trigger})
	return nil
}

// RecentTradesByModel implements agents.Ledger.
func (l *MemoryLedger) RecentTradesByModel(_ context.Context, modelID string, limit int) ([]models.ExecutedTrade, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var trades []models.ExecutedTrade
	for i := len(l.records) - 1; i >= 0 && len(trades) < limit; i-- {
		if l.records[i].Agent.ModelID != modelID || l.records[i].Result == nil {
			continue
		}
		trades = append(trades, l.records[i].Result.Trades...)
	}
	return trades, nil
}

// Records returns all recorded runs.
func (l *MemoryLedger) Records() []RecordedRun {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]RecordedRun{}, l.records...)
}
