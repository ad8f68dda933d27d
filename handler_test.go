package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"prediction-fleet/agents"
	appconfig "prediction-fleet/config"
	"prediction-fleet/models"
	"prediction-fleet/services"

	"github.com/shopspring/decimal"
)

// testConfig returns a test configuration
func testConfig() *appconfig.Config {
	return appconfig.NewTestConfig()
}

// stubModel always concludes with a hold, so handler tests exercise the HTTP
// surface without scripting a tool loop.
type stubModel struct{}

func (s *stubModel) CreateStep(ctx context.Context, req services.StepRequest) (*services.StepResult, error) {
	return &services.StepResult{Text: "Holding for now.", StopReason: services.StopEndTurn}, nil
}

type stubExchange struct{}

func (s *stubExchange) Markets(ctx context.Context, limit int) ([]models.Market, error) {
	return []models.Market{}, nil
}

func (s *stubExchange) Orderbook(ctx context.Context, ticker string) (*models.OrderbookSnapshot, error) {
	return &models.OrderbookSnapshot{Ticker: ticker}, nil
}

func (s *stubExchange) Balance(ctx context.Context, wallet string) (decimal.Decimal, error) {
	return decimal.NewFromInt(1000), nil
}

func (s *stubExchange) Positions(ctx context.Context, wallet string) ([]models.Position, error) {
	return nil, nil
}

func (s *stubExchange) Portfolio(ctx context.Context, wallet string) (*models.PortfolioSnapshot, error) {
	return &models.PortfolioSnapshot{
		WalletAddress: wallet,
		Cash:          decimal.NewFromInt(1000),
		TotalValue:    decimal.NewFromInt(1000),
	}, nil
}

func (s *stubExchange) PlaceOrder(ctx context.Context, order services.OrderRequest) (*services.OrderFill, error) {
	return &services.OrderFill{Success: true}, nil
}

func (s *stubExchange) Redeem(ctx context.Context, wallet, signingKey, ticker string) (*services.RedeemResult, error) {
	return &services.RedeemResult{Success: true}, nil
}

type stubSearch struct{}

func (s *stubSearch) Search(ctx context.Context, query string, limit int) ([]services.SearchResult, error) {
	return nil, nil
}

func testFleet() []models.AgentIdentity {
	return []models.AgentIdentity{
		{ModelID: "model-a", DisplayName: "Agent A", WalletAddress: "0xaaa", SigningKey: "key-a"},
		{ModelID: "model-b", DisplayName: "Agent B", WalletAddress: "0xbbb"},
	}
}

// testApp wires an App around stub services: inline dispatch only, no ledger,
// no durable engine.
func testApp() *App {
	cfg := testConfig()
	fleet := testFleet()
	tracker := agents.NewRunTracker(time.Duration(cfg.Tracker.TTLMinutes) * time.Minute)
	runner := agents.NewRunner(&stubModel{}, &stubExchange{}, &stubSearch{}, nil, cfg)
	dispatcher := agents.NewDispatcher(fleet, runner, nil, nil, tracker, cfg)
	return NewApp(cfg, fleet, nil, dispatcher, nil, tracker)
}

// testHandler creates an APIHandler with test config for testing
func testHandler(app *App) *APIHandler {
	return NewAPIHandler(app, testConfig())
}

func TestHandleHealth(t *testing.T) {
	handler := testHandler(testApp())

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	w := httptest.NewRecorder()

	handler.handleHealth(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}

	var body map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("expected status ok, got %v", body["status"])
	}
	svc, ok := body["services"].(map[string]interface{})
	if !ok || svc["database"] != "not_configured" {
		t.Errorf("expected database not_configured, got %v", body["services"])
	}
	if body["tracked_runs"] != float64(0) {
		t.Errorf("expected 0 tracked runs, got %v", body["tracked_runs"])
	}
}

func TestHandleAgents(t *testing.T) {
	handler := testHandler(testApp())

	req := httptest.NewRequest(http.MethodGet, "/api/agents", nil)
	w := httptest.NewRecorder()

	handler.handleAgents(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}

	var views []agentView
	if err := json.NewDecoder(w.Body).Decode(&views); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(views) != 2 {
		t.Fatalf("expected 2 agents, got %d", len(views))
	}
	if !views[0].Funded {
		t.Error("expected model-a to be funded")
	}
	if views[1].Funded {
		t.Error("expected model-b to be unfunded, it has no signing key")
	}
}

func TestHandleAgentsNeverExposesSigningKeys(t *testing.T) {
	handler := testHandler(testApp())

	req := httptest.NewRequest(http.MethodGet, "/api/agents", nil)
	w := httptest.NewRecorder()

	handler.handleAgents(w, req)

	if strings.Contains(w.Body.String(), "key-a") {
		t.Error("signing key leaked into the agents response")
	}
}

func TestHandleTrigger(t *testing.T) {
	t.Run("dispatches one agent inline", func(t *testing.T) {
		handler := testHandler(testApp())

		body := strings.NewReader(`{"model_id":"model-a"}`)
		req := httptest.NewRequest(http.MethodPost, "/api/trigger", body)
		w := httptest.NewRecorder()

		handler.handleTrigger(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
		}

		var resp dispatchResponse
		if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if resp.Completed != 1 || resp.Failed != 0 {
			t.Errorf("expected 1 completed 0 failed, got %d/%d", resp.Completed, resp.Failed)
		}
		if len(resp.PerAgent) != 1 || resp.PerAgent[0].ModelID != "model-a" {
			t.Errorf("expected one outcome for model-a, got %+v", resp.PerAgent)
		}
	})

	t.Run("returns 404 for unknown model", func(t *testing.T) {
		handler := testHandler(testApp())

		body := strings.NewReader(`{"model_id":"no-such-model"}`)
		req := httptest.NewRequest(http.MethodPost, "/api/trigger", body)
		w := httptest.NewRecorder()

		handler.handleTrigger(w, req)

		if w.Code != http.StatusNotFound {
			t.Errorf("expected status 404, got %d", w.Code)
		}
	})

	t.Run("returns 400 for invalid body", func(t *testing.T) {
		handler := testHandler(testApp())

		req := httptest.NewRequest(http.MethodPost, "/api/trigger", strings.NewReader("{not json"))
		w := httptest.NewRecorder()

		handler.handleTrigger(w, req)

		if w.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", w.Code)
		}
	})

	t.Run("empty trigger dispatches only funded agents", func(t *testing.T) {
		handler := testHandler(testApp())

		req := httptest.NewRequest(http.MethodPost, "/api/trigger", strings.NewReader(`{}`))
		w := httptest.NewRecorder()

		handler.handleTrigger(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", w.Code)
		}

		var resp dispatchResponse
		if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if len(resp.PerAgent) != 1 {
			t.Errorf("expected only the funded agent to run, got %+v", resp.PerAgent)
		}
	})
}

func TestHandleCronHealthWithoutEngine(t *testing.T) {
	handler := testHandler(testApp())

	req := httptest.NewRequest(http.MethodPost, "/api/cron/health", nil)
	w := httptest.NewRecorder()

	handler.handleCronHealth(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status 503 without an engine, got %d", w.Code)
	}
}

func TestHandleRunsStatusEmptyTracker(t *testing.T) {
	handler := testHandler(testApp())

	req := httptest.NewRequest(http.MethodPost, "/api/runs/status", nil)
	w := httptest.NewRecorder()

	handler.handleRunsStatus(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}

	var report agents.PollReport
	if err := json.NewDecoder(w.Body).Decode(&report); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(report.PerRun) != 0 {
		t.Errorf("expected no tracked runs, got %+v", report.PerRun)
	}
}
