package main

import (
	"encoding/json"
	"errors"
	"net/http"

	"prediction-fleet/agents"
	appconfig "prediction-fleet/config"
	"prediction-fleet/models"
	"prediction-fleet/services"
)

// APIHandler handles HTTP API requests
type APIHandler struct {
	app *App
	cfg *appconfig.Config
}

// NewAPIHandler creates a new APIHandler
func NewAPIHandler(app *App, cfg *appconfig.Config) *APIHandler {
	return &APIHandler{app: app, cfg: cfg}
}

// triggerPayload is the request body for trigger-class endpoints.
type triggerPayload struct {
	ModelID     string               `json:"model_id,omitempty"`
	Signal      *models.MarketSignal `json:"signal,omitempty"`
	TriggerKind models.TriggerKind   `json:"trigger_kind,omitempty"`
	TestMode    bool                 `json:"test_mode,omitempty"`
	Mode        string               `json:"mode,omitempty"` // inline (default) or durable
}

// dispatchResponse is the aggregated reply to one trigger.
type dispatchResponse struct {
	Completed int                      `json:"completed"`
	Failed    int                      `json:"failed"`
	PerAgent  []models.DispatchOutcome `json:"per_agent"`
}

func buildDispatchResponse(outcomes []models.DispatchOutcome) dispatchResponse {
	resp := dispatchResponse{PerAgent: outcomes}
	for _, o := range outcomes {
		if o.Status == models.DispatchCompleted {
			resp.Completed++
		} else {
			resp.Failed++
		}
	}
	if resp.PerAgent == nil {
		resp.PerAgent = []models.DispatchOutcome{}
	}
	return resp
}

// handleHealth returns the health status of the application
func (h *APIHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"status": "ok",
		"services": map[string]string{
			"database": "unknown",
		},
	}

	if h.app.repo != nil {
		if err := h.app.repo.Health(r.Context()); err == nil {
			status["services"].(map[string]string)["database"] = "connected"
		} else {
			status["services"].(map[string]string)["database"] = "disconnected"
			status["status"] = "degraded"
		}
	} else {
		status["services"].(map[string]string)["database"] = "not_configured"
	}
	status["tracked_runs"] = h.app.tracker.Len()
	status["circuit_breakers"] = services.GetGlobalRegistry().Status()

	h.jsonResponse(w, status)
}

// handleTrigger dispatches one trigger to the fleet. Service-to-service
// callers pick the mode; partial per-agent failures still return 200 with
// the breakdown.
func (h *APIHandler) handleTrigger(w http.ResponseWriter, r *http.Request) {
	var payload triggerPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	kind := payload.TriggerKind
	if kind == "" {
		kind = models.TriggerManual
	}
	mode := agents.DispatchInline
	if payload.Mode == string(agents.DispatchDurable) {
		mode = agents.DispatchDurable
	}

	outcomes, err := h.app.Dispatch(r.Context(), models.TriggerRequest{
		ModelID:     payload.ModelID,
		Signal:      payload.Signal,
		TriggerKind: kind,
		TestMode:    payload.TestMode,
	}, mode)
	if err != nil {
		if errors.Is(err, agents.ErrAgentNotFound) {
			h.jsonError(w, err.Error(), http.StatusNotFound)
			return
		}
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	h.jsonResponse(w, buildDispatchResponse(outcomes))
}

// handleCronTick runs the periodic all-agents dispatch. Durable when the
// engine is configured, inline otherwise.
func (h *APIHandler) handleCronTick(w http.ResponseWriter, r *http.Request) {
	mode := agents.DispatchInline
	if h.cfg.HasEngine() && h.cfg.Engine.Token != "" {
		mode = agents.DispatchDurable
	}

	outcomes, err := h.app.Dispatch(r.Context(), models.TriggerRequest{
		Signal: &models.MarketSignal{
			Kind:       models.SignalPeriodic,
			ObservedAt: nowEpochMs(),
		},
		TriggerKind: models.TriggerCron,
	}, mode)
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	h.jsonResponse(w, buildDispatchResponse(outcomes))
}

// handleCronHealth runs one listener reconciliation cycle
func (h *APIHandler) handleCronHealth(w http.ResponseWriter, r *http.Request) {
	report := h.app.CheckHealth(r.Context())
	if report == nil {
		h.jsonError(w, "durable engine not configured", http.StatusServiceUnavailable)
		return
	}
	h.jsonResponse(w, report)
}

// handleRunsStatus polls tracked durable runs
func (h *APIHandler) handleRunsStatus(w http.ResponseWriter, r *http.Request) {
	report, err := h.app.PollRuns(r.Context())
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if report.PerRun == nil {
		report.PerRun = []agents.RunStatusEntry{}
	}
	h.jsonResponse(w, report)
}

// agentView is the public shape of one fleet entry. Signing keys never leave
// the process.
type agentView struct {
	ModelID       string `json:"model_id"`
	DisplayName   string `json:"display_name"`
	WalletAddress string `json:"wallet_address"`
	Funded        bool   `json:"funded"`
}

// handleAgents lists the configured fleet
func (h *APIHandler) handleAgents(w http.ResponseWriter, r *http.Request) {
	views := make([]agentView, 0, len(h.app.fleet))
	for _, agent := range h.app.fleet {
		views = append(views, agentView{
			ModelID:       agent.ModelID,
			DisplayName:   agent.DisplayName,
			WalletAddress: agent.WalletAddress,
			Funded:        agent.Funded(),
		})
	}
	h.jsonResponse(w, views)
}

// jsonResponse writes a JSON response
func (h *APIHandler) jsonResponse(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// jsonError writes a JSON error response
func (h *APIHandler) jsonError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
