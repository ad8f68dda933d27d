package agents

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	appconfig "prediction-fleet/config"
	"prediction-fleet/models"
	"prediction-fleet/services"
)

func fleetOf(ids ...string) []models.AgentIdentity {
	fleet := make([]models.AgentIdentity, 0, len(ids))
	for _, id := range ids {
		fleet = append(fleet, testAgent(id))
	}
	return fleet
}

func outcomeByModel(outcomes []models.DispatchOutcome, modelID string) *models.DispatchOutcome {
	for i := range outcomes {
		if outcomes[i].ModelID == modelID {
			return &outcomes[i]
		}
	}
	return nil
}

func TestDispatchIsolatesFailures(t *testing.T) {
	model := newMockModel()
	model.script("model-a", textStep("Holding."))
	model.script("model-b", errStep(errors.New("model unavailable")))
	model.script("model-c", textStep("Holding."))

	runner := newTestRunner(model, newMockExchange(), nil, nil)
	d := NewDispatcher(fleetOf("model-a", "model-b", "model-c"), runner, nil, nil, NewRunTracker(0), appconfig.NewTestConfig())

	outcomes, err := d.Dispatch(context.Background(), models.TriggerRequest{TriggerKind: models.TriggerCron}, DispatchInline)
	if err != nil {
		t.Fatalf("per-agent failures must not fail the dispatch: %v", err)
	}
	if len(outcomes) != 3 {
		t.Fatalf("expected 3 outcomes, got %d", len(outcomes))
	}

	failed := 0
	for _, o := range outcomes {
		if o.Status == models.DispatchFailed {
			failed++
		}
	}
	if failed != 1 {
		t.Errorf("expected exactly 1 failed outcome, got %d", failed)
	}
	if o := outcomeByModel(outcomes, "model-b"); o == nil || o.Status != models.DispatchFailed {
		t.Errorf("model-b should be the failed outcome, got %+v", o)
	}
}

func TestDispatchToolCallLimitScenario(t *testing.T) {
	cfg := appconfig.NewTestConfig()
	cfg.Guardrails.MaxToolCalls = 4
	cfg.Runner.MaxSteps = 20

	model := newMockModel()
	model.script("model-a", textStep("Holding."))
	// model-b never stops calling tools and trips the ceiling.
	for i := 0; i < 10; i++ {
		model.script("model-b", toolStep(readCall("c", ToolGetBalance)))
	}
	model.script("model-c", textStep("Holding."))

	ledger := &mockLedger{}
	runner := newTestRunner(model, newMockExchange(), ledger, cfg)
	d := NewDispatcher(fleetOf("model-a", "model-b", "model-c"), runner, nil, ledger, NewRunTracker(0), cfg)

	outcomes, err := d.Dispatch(context.Background(), models.TriggerRequest{TriggerKind: models.TriggerMarket}, DispatchInline)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	completed, failed := 0, 0
	for _, o := range outcomes {
		switch o.Status {
		case models.DispatchCompleted:
			completed++
		case models.DispatchFailed:
			failed++
		}
	}
	if completed != 2 || failed != 1 {
		t.Fatalf("expected completed=2 failed=1, got completed=%d failed=%d", completed, failed)
	}

	b := outcomeByModel(outcomes, "model-b")
	if b == nil || b.Status != models.DispatchFailed {
		t.Fatal("model-b must fail with the limit violation")
	}
	if !strings.Contains(b.ErrorMessage, "tool call limit") {
		t.Errorf("expected tool call limit message, got %q", b.ErrorMessage)
	}
	for _, id := range []string{"model-a", "model-c"} {
		if o := outcomeByModel(outcomes, id); o == nil || o.Result == nil {
			t.Errorf("%s should carry a normal result", id)
		}
	}
}

func TestDispatchUnknownModel(t *testing.T) {
	runner := newTestRunner(newMockModel(), newMockExchange(), nil, nil)
	d := NewDispatcher(fleetOf("model-a"), runner, nil, nil, NewRunTracker(0), appconfig.NewTestConfig())

	_, err := d.Dispatch(context.Background(), models.TriggerRequest{ModelID: "model-x", TriggerKind: models.TriggerManual}, DispatchInline)
	if !errors.Is(err, ErrAgentNotFound) {
		t.Fatalf("expected ErrAgentNotFound, got %v", err)
	}
}

func TestDispatchSingleTarget(t *testing.T) {
	model := newMockModel()
	model.script("model-b", textStep("Holding."))

	runner := newTestRunner(model, newMockExchange(), nil, nil)
	d := NewDispatcher(fleetOf("model-a", "model-b"), runner, nil, nil, NewRunTracker(0), appconfig.NewTestConfig())

	outcomes, err := d.Dispatch(context.Background(), models.TriggerRequest{ModelID: "model-b", TriggerKind: models.TriggerManual}, DispatchInline)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(outcomes) != 1 || outcomes[0].ModelID != "model-b" {
		t.Fatalf("expected only model-b dispatched, got %+v", outcomes)
	}
	if model.stepsFor("model-a") != 0 {
		t.Error("untargeted agents must not run")
	}
}

func TestDispatchEmptyFleetIsZeroResultSuccess(t *testing.T) {
	unfunded := []models.AgentIdentity{{ModelID: "model-a", DisplayName: "a"}}
	runner := newTestRunner(newMockModel(), newMockExchange(), nil, nil)
	d := NewDispatcher(unfunded, runner, nil, nil, NewRunTracker(0), appconfig.NewTestConfig())

	outcomes, err := d.Dispatch(context.Background(), models.TriggerRequest{TriggerKind: models.TriggerCron}, DispatchInline)
	if err != nil {
		t.Fatalf("empty resolved set is a success, got %v", err)
	}
	if len(outcomes) != 0 {
		t.Fatalf("expected zero outcomes, got %d", len(outcomes))
	}
}

func TestDispatchDurableRegistersRuns(t *testing.T) {
	engine := newMockEngine()
	tracker := NewRunTracker(0)
	runner := newTestRunner(newMockModel(), newMockExchange(), nil, nil)
	cfg := appconfig.NewTestConfig()
	d := NewDispatcher(fleetOf("model-a", "model-b"), runner, engine, nil, tracker, cfg)

	outcomes, err := d.Dispatch(context.Background(), models.TriggerRequest{TriggerKind: models.TriggerMarket}, DispatchDurable)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, o := range outcomes {
		if o.Status != models.DispatchCompleted || o.RunID == "" {
			t.Errorf("durable outcome must carry a run id, got %+v", o)
		}
	}
	if tracker.Len() != 2 {
		t.Errorf("expected 2 tracked runs, got %d", tracker.Len())
	}
	for _, call := range engine.starts() {
		if call.kind != cfg.Engine.RunWorkflow {
			t.Errorf("expected workflow %q, got %q", cfg.Engine.RunWorkflow, call.kind)
		}
	}
}

func TestDispatchInlineRecordsLedger(t *testing.T) {
	model := newMockModel()
	model.script("model-a", textStep("No trading opportunity today, skipping."))

	ledger := &mockLedger{}
	runner := newTestRunner(model, newMockExchange(), ledger, nil)
	d := NewDispatcher(fleetOf("model-a"), runner, nil, ledger, NewRunTracker(0), appconfig.NewTestConfig())

	outcomes, err := d.Dispatch(context.Background(), models.TriggerRequest{TriggerKind: models.TriggerCron}, DispatchInline)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcomes[0].Status != models.DispatchCompleted {
		t.Fatalf("expected completed, got %+v", outcomes[0])
	}

	records := ledger.recorded()
	if len(records) != 1 {
		t.Fatalf("expected 1 ledger record, got %d", len(records))
	}
	if records[0].result.Decision != models.DecisionSkip {
		t.Errorf("expected skip decision recorded, got %s", records[0].result.Decision)
	}
}

func TestDispatchGuardrailFailureStillRecordsTrades(t *testing.T) {
	cfg := appconfig.NewTestConfig()
	cfg.Guardrails.MaxTradesPerRun = 1

	model := newMockModel()
	model.script("model-a",
		toolStep(orderCall("c1", ToolIncreasePosition, "M1", 1, 0.5)),
		toolStep(orderCall("c2", ToolIncreasePosition, "M2", 1, 0.5)),
	)

	ledger := &mockLedger{}
	runner := newTestRunner(model, newMockExchange(), ledger, cfg)
	d := NewDispatcher(fleetOf("model-a"), runner, nil, ledger, NewRunTracker(0), cfg)

	outcomes, err := d.Dispatch(context.Background(), models.TriggerRequest{TriggerKind: models.TriggerMarket}, DispatchInline)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcomes[0].Status != models.DispatchFailed {
		t.Fatalf("guardrail violation marks the outcome failed, got %+v", outcomes[0])
	}

	records := ledger.recorded()
	if len(records) != 1 {
		t.Fatalf("trades placed before the ceiling must still be recorded, got %d records", len(records))
	}
	if len(records[0].result.Trades) == 0 {
		t.Error("recorded result should carry the executed trades")
	}
}

func TestDispatchTestModeSkipsLedger(t *testing.T) {
	model := newMockModel()
	model.script("model-a", textStep("Holding."))

	ledger := &mockLedger{}
	runner := newTestRunner(model, newMockExchange(), ledger, nil)
	d := NewDispatcher(fleetOf("model-a"), runner, nil, ledger, NewRunTracker(0), appconfig.NewTestConfig())

	_, err := d.Dispatch(context.Background(), models.TriggerRequest{TriggerKind: models.TriggerManual, TestMode: true}, DispatchInline)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ledger.recorded()) != 0 {
		t.Error("test mode runs must not reach the ledger")
	}
}

func TestPollRunsReconcilesTracker(t *testing.T) {
	engine := newMockEngine()
	tracker := NewRunTracker(0)
	runner := newTestRunner(newMockModel(), newMockExchange(), nil, nil)
	d := NewDispatcher(nil, runner, engine, nil, tracker, appconfig.NewTestConfig())

	now := time.Now()
	tracker.Insert("run-1", "model-a", now)
	tracker.Insert("run-2", "model-b", now)
	tracker.Insert("run-3", "model-c", now)
	engine.statuses["run-1"] = services.RunStatusRunning
	engine.statuses["run-2"] = services.RunStatusCompleted
	engine.statuses["run-3"] = services.RunStatusFailed

	report, err := d.PollRuns(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if report.Summary.Running != 1 || report.Summary.Completed != 1 || report.Summary.Failed != 1 {
		t.Errorf("expected summary 1/1/1, got %+v", report.Summary)
	}
	if tracker.Len() != 1 {
		t.Fatalf("only running entries stay tracked, got %d", tracker.Len())
	}
	if tracker.Snapshot()[0].RunID != "run-1" {
		t.Errorf("expected run-1 to remain, got %s", tracker.Snapshot()[0].RunID)
	}
}

func TestPollRunsKeepsEntryOnEngineError(t *testing.T) {
	engine := newMockEngine()
	engine.statusErr = errors.New("engine down")
	tracker := NewRunTracker(0)
	runner := newTestRunner(newMockModel(), newMockExchange(), nil, nil)
	d := NewDispatcher(nil, runner, engine, nil, tracker, appconfig.NewTestConfig())

	tracker.Insert("run-1", "model-a", time.Now())

	report, err := d.PollRuns(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Summary.Running != 1 {
		t.Errorf("unpollable runs count as running, got %+v", report.Summary)
	}
	if tracker.Len() != 1 {
		t.Error("unpollable runs must stay tracked")
	}
}
