// Package mocks provides an HTTP mock of the external services the fleet
// talks to: the prediction-market venue and the durable workflow engine.
package mocks

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	"prediction-fleet/models"
	"prediction-fleet/services"
)

// RequestLog records incoming requests for test assertions.
type RequestLog struct {
	Method string
	Path   string
	Body   string
}

// RecordedOrder is one order the mock venue accepted.
type RecordedOrder struct {
	Order          services.OrderRequest
	IdempotencyKey string
	Signature      string
}

// MockServer simulates the venue and the engine behind one base URL.
type MockServer struct {
	mu     sync.RWMutex
	server *httptest.Server

	// Venue state
	markets   []models.Market
	balances  map[string]string
	portfolio map[string]*models.PortfolioSnapshot
	positions map[string][]models.Position
	orders    []RecordedOrder
	nextFill  *services.OrderFill

	// Engine state
	handles     map[string]string // hook token -> handle id
	runStatus   map[string]string // run id -> status
	startedRuns []StartedRun
	nextRunID   int

	// Error injection
	venueError  bool
	engineError bool

	requestLog []RequestLog
}

// StartedRun is one workflow the mock engine was asked to start.
type StartedRun struct {
	RunID    string
	Workflow string
	Args     json.RawMessage
}

// NewMockServer creates a new mock server with default responses, listening
// on an ephemeral port.
func NewMockServer() *MockServer {
	m := NewMockHandler()
	m.server = httptest.NewServer(m)
	return m
}

// NewMockHandler creates the mock without starting a listener, for callers
// that serve it themselves.
func NewMockHandler() *MockServer {
	m := &MockServer{
		balances:  make(map[string]string),
		portfolio: make(map[string]*models.PortfolioSnapshot),
		positions: make(map[string][]models.Position),
		handles:   make(map[string]string),
		runStatus: make(map[string]string),
	}
	m.setDefaults()
	return m
}

// URL returns the mock server's base URL.
func (m *MockServer) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockServer) Close() {
	m.server.Close()
}

func (m *MockServer) setDefaults() {
	m.markets = DefaultMarkets()
	m.nextFill = &services.OrderFill{Success: true, OrderID: "mock-order-1"}
}

// ServeHTTP routes requests to the venue or engine handler by path.
func (m *MockServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	m.mu.Lock()
	m.requestLog = append(m.requestLog, RequestLog{
		Method: r.Method,
		Path:   r.URL.Path,
		Body:   string(body),
	})
	m.mu.Unlock()

	path := r.URL.Path
	switch {
	case strings.HasPrefix(path, "/v1/markets/") && strings.HasSuffix(path, "/orderbook"):
		m.handleOrderbook(w, r)
	case strings.HasPrefix(path, "/v1/markets"):
		m.handleMarkets(w, r)
	case strings.HasPrefix(path, "/v1/wallets/"):
		m.handleWallet(w, r)
	case path == "/v1/orders":
		m.handleOrders(w, r, body)
	case path == "/v1/redemptions":
		m.handleRedemptions(w, r)
	case path == "/v1/runs":
		m.handleStartRun(w, r, body)
	case strings.HasPrefix(path, "/v1/runs/"):
		m.handleRunStatus(w, r)
	case strings.HasPrefix(path, "/v1/hooks/") && strings.HasSuffix(path, "/wake"):
		m.handleWake(w, r)
	case strings.HasPrefix(path, "/v1/hooks/"):
		m.handleHookProbe(w, r)
	default:
		http.Error(w, "not found", http.StatusNotFound)
	}
}

func (m *MockServer) handleMarkets(w http.ResponseWriter, _ *http.Request) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.venueError {
		http.Error(w, "venue unavailable", http.StatusInternalServerError)
		return
	}
	writeJSON(w, m.markets)
}

func (m *MockServer) handleOrderbook(w http.ResponseWriter, r *http.Request) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.venueError {
		http.Error(w, "venue unavailable", http.StatusInternalServerError)
		return
	}

	ticker := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/v1/markets/"), "/orderbook")
	for _, market := range m.markets {
		if market.Ticker == ticker {
			writeJSON(w, DefaultOrderbook(market))
			return
		}
	}
	http.Error(w, "not found", http.StatusNotFound)
}

func (m *MockServer) handleWallet(w http.ResponseWriter, r *http.Request) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.venueError {
		http.Error(w, "venue unavailable", http.StatusInternalServerError)
		return
	}

	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/v1/wallets/"), "/")
	if len(parts) != 2 {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	wallet, resource := parts[0], parts[1]

	switch resource {
	case "balance":
		cash := m.balances[wallet]
		if cash == "" {
			cash = "1000"
		}
		writeJSON(w, map[string]string{"cash": cash})
	case "positions":
		writeJSON(w, m.positions[wallet])
	case "portfolio":
		snapshot := m.portfolio[wallet]
		if snapshot == nil {
			snapshot = DefaultPortfolio(wallet)
		}
		writeJSON(w, snapshot)
	default:
		http.Error(w, "not found", http.StatusNotFound)
	}
}

func (m *MockServer) handleOrders(w http.ResponseWriter, r *http.Request, body []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.venueError {
		http.Error(w, "venue unavailable", http.StatusInternalServerError)
		return
	}

	var order services.OrderRequest
	if err := json.Unmarshal(body, &order); err != nil {
		http.Error(w, "bad order", http.StatusBadRequest)
		return
	}
	m.orders = append(m.orders, RecordedOrder{
		Order:          order,
		IdempotencyKey: r.Header.Get("Idempotency-Key"),
		Signature:      r.Header.Get("X-Wallet-Signature"),
	})

	fill := *m.nextFill
	if fill.OrderID != "" {
		fill.OrderID = fmt.Sprintf("mock-order-%d", len(m.orders))
	}
	writeJSON(w, fill)
}

func (m *MockServer) handleRedemptions(w http.ResponseWriter, _ *http.Request) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.venueError {
		http.Error(w, "venue unavailable", http.StatusInternalServerError)
		return
	}
	writeJSON(w, services.RedeemResult{Success: true})
}

func (m *MockServer) handleStartRun(w http.ResponseWriter, _ *http.Request, body []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.engineError {
		http.Error(w, "engine unavailable", http.StatusInternalServerError)
		return
	}

	var req struct {
		Workflow string          `json:"workflow"`
		Args     json.RawMessage `json:"args"`
	}
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	m.nextRunID++
	runID := fmt.Sprintf("e2e-run-%d", m.nextRunID)
	m.runStatus[runID] = services.RunStatusRunning
	m.startedRuns = append(m.startedRuns, StartedRun{RunID: runID, Workflow: req.Workflow, Args: req.Args})

	writeJSON(w, map[string]string{"run_id": runID})
}

func (m *MockServer) handleRunStatus(w http.ResponseWriter, r *http.Request) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.engineError {
		http.Error(w, "engine unavailable", http.StatusInternalServerError)
		return
	}

	runID := strings.TrimPrefix(r.URL.Path, "/v1/runs/")
	status, ok := m.runStatus[runID]
	if !ok {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	writeJSON(w, map[string]string{"status": status})
}

func (m *MockServer) handleHookProbe(w http.ResponseWriter, r *http.Request) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.engineError {
		http.Error(w, "engine unavailable", http.StatusInternalServerError)
		return
	}

	token := strings.TrimPrefix(r.URL.Path, "/v1/hooks/")
	handle, ok := m.handles[token]
	if !ok {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	writeJSON(w, map[string]string{"handle_id": handle})
}

func (m *MockServer) handleWake(w http.ResponseWriter, r *http.Request) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	token := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/v1/hooks/"), "/wake")
	if _, ok := m.handles[token]; !ok {
		http.Error(w, "no listener waiting", http.StatusNotFound)
		return
	}
	writeJSON(w, map[string]string{"status": "delivered"})
}

// SetMarkets replaces the venue's market list.
func (m *MockServer) SetMarkets(markets []models.Market) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.markets = markets
}

// SetNextFill configures the fill returned for subsequent orders.
func (m *MockServer) SetNextFill(fill services.OrderFill) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextFill = &fill
}

// SetListener parks a listener handle on a hook token.
func (m *MockServer) SetListener(token, handleID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handles[token] = handleID
}

// SetRunStatus overrides the status of a tracked run.
func (m *MockServer) SetRunStatus(runID, status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runStatus[runID] = status
}

// SetVenueError makes every venue endpoint fail.
func (m *MockServer) SetVenueError(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.venueError = fail
}

// SetEngineError makes every engine endpoint fail.
func (m *MockServer) SetEngineError(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.engineError = fail
}

// Orders returns the orders the venue accepted.
func (m *MockServer) Orders() []RecordedOrder {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]RecordedOrder{}, m.orders...)
}

// StartedRuns returns the workflows the engine was asked to start.
func (m *MockServer) StartedRuns() []StartedRun {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]StartedRun{}, m.startedRuns...)
}

// GetRequestLog returns all logged requests for assertions.
func (m *MockServer) GetRequestLog() []RequestLog {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]RequestLog{}, m.requestLog...)
}

// ClearRequestLog clears the request log.
func (m *MockServer) ClearRequestLog() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestLog = nil
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
