package services

import (
	"context"
	"fmt"
	"net/http"
	"time"

	appconfig "prediction-fleet/config"
	"prediction-fleet/observability"

	"github.com/go-resty/resty/v2"
)

// Run statuses reported by the durable engine.
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
	RunStatusNotFound  = "not_found"
)

// EngineService is the client for the durable workflow engine. The engine
// owns listener lifecycles; this client only probes liveness, starts runs,
// wakes waiting listeners and reads run status.
type EngineService struct {
	client *resty.Client
}

// NewEngineService creates a new EngineService instance
func NewEngineService(cfg *appconfig.Config) *EngineService {
	client := resty.New().
		SetBaseURL(cfg.Engine.BaseURL).
		SetTimeout(30 * time.Second).
		SetHeader("Content-Type", "application/json")
	if cfg.Engine.Token != "" {
		client.SetAuthToken(cfg.Engine.Token)
	}

	return &EngineService{client: client}
}

// newEngineServiceWithClient creates an EngineService with a custom resty client (for testing)
func newEngineServiceWithClient(client *resty.Client) *EngineService {
	return &EngineService{client: client}
}

// LiveHandle probes whether a listener is parked on the named wait-handle.
// Returns the handle id, or "" when no listener is currently waiting.
func (s *EngineService) LiveHandle(ctx context.Context, token string) (string, error) {
	metrics := observability.GetMetrics()
	metrics.RecordExternalAPIRequest(BreakerEngine, "live_handle")
	timer := metrics.NewTimer()

	handle, err := WithCircuitBreaker(ctx, BreakerEngine, func() (string, error) {
		var body struct {
			HandleID string `json:"handle_id"`
		}
		resp, err := s.client.R().
			SetContext(ctx).
			SetResult(&body).
			Get("/v1/hooks/" + token)
		if err != nil {
			return "", fmt.Errorf("failed to probe hook %s: %w", token, err)
		}
		if resp.StatusCode() == http.StatusNotFound {
			return "", nil
		}
		if resp.IsError() {
			return "", fmt.Errorf("engine returned status %d for hook %s", resp.StatusCode(), token)
		}
		return body.HandleID, nil
	})

	timer.ObserveExternalAPI(BreakerEngine, "live_handle")
	if err != nil {
		metrics.RecordExternalAPIError(BreakerEngine, "live_handle", categorizeAPIError(err))
	}
	return handle, err
}

// Start launches a durable run of the given workflow kind and returns the
// engine-assigned run id immediately, without waiting for completion.
func (s *EngineService) Start(ctx context.Context, workflowKind string, args any) (string, error) {
	metrics := observability.GetMetrics()
	metrics.RecordExternalAPIRequest(BreakerEngine, "start")
	timer := metrics.NewTimer()

	runID, err := WithCircuitBreaker(ctx, BreakerEngine, func() (string, error) {
		var body struct {
			RunID string `json:"run_id"`
		}
		resp, err := s.client.R().
			SetContext(ctx).
			SetBody(map[string]any{
				"workflow": workflowKind,
				"args":     args,
			}).
			SetResult(&body).
			Post("/v1/runs")
		if err != nil {
			return "", fmt.Errorf("failed to start workflow %s: %w", workflowKind, err)
		}
		if resp.IsError() {
			return "", fmt.Errorf("engine returned status %d starting workflow %s", resp.StatusCode(), workflowKind)
		}
		if body.RunID == "" {
			return "", fmt.Errorf("engine returned no run id for workflow %s", workflowKind)
		}
		return body.RunID, nil
	})

	timer.ObserveExternalAPI(BreakerEngine, "start")
	if err != nil {
		metrics.RecordExternalAPIError(BreakerEngine, "start", categorizeAPIError(err))
	}
	return runID, err
}

// Wake delivers a signal payload to a waiting listener. Fails if no listener
// is currently parked on the handle.
func (s *EngineService) Wake(ctx context.Context, token string, payload any) error {
	metrics := observability.GetMetrics()
	metrics.RecordExternalAPIRequest(BreakerEngine, "wake")
	timer := metrics.NewTimer()

	_, err := WithCircuitBreaker(ctx, BreakerEngine, func() (struct{}, error) {
		resp, err := s.client.R().
			SetContext(ctx).
			SetBody(payload).
			Post("/v1/hooks/" + token + "/wake")
		if err != nil {
			return struct{}{}, fmt.Errorf("failed to wake hook %s: %w", token, err)
		}
		if resp.IsError() {
			return struct{}{}, fmt.Errorf("engine returned status %d waking hook %s", resp.StatusCode(), token)
		}
		return struct{}{}, nil
	})

	timer.ObserveExternalAPI(BreakerEngine, "wake")
	if err != nil {
		metrics.RecordExternalAPIError(BreakerEngine, "wake", categorizeAPIError(err))
	}
	return err
}

// RunStatus reports the state of one durable run.
func (s *EngineService) RunStatus(ctx context.Context, runID string) (string, error) {
	metrics := observability.GetMetrics()
	metrics.RecordExternalAPIRequest(BreakerEngine, "run_status")
	timer := metrics.NewTimer()

	status, err := WithCircuitBreaker(ctx, BreakerEngine, func() (string, error) {
		var body struct {
			Status string `json:"status"`
		}
		resp, err := s.client.R().
			SetContext(ctx).
			SetResult(&body).
			Get("/v1/runs/" + runID)
		if err != nil {
			return "", fmt.Errorf("failed to query run %s: %w", runID, err)
		}
		if resp.StatusCode() == http.StatusNotFound {
			return RunStatusNotFound, nil
		}
		if resp.IsError() {
			return "", fmt.Errorf("engine returned status %d for run %s", resp.StatusCode(), runID)
		}
		return body.Status, nil
	})

	timer.ObserveExternalAPI(BreakerEngine, "run_status")
	if err != nil {
		metrics.RecordExternalAPIError(BreakerEngine, "run_status", categorizeAPIError(err))
	}
	return status, err
}
