package agents

import (
	"context"
	"fmt"
	"sync"

	"prediction-fleet/models"
	"prediction-fleet/services"

	"github.com/shopspring/decimal"
)

// stepScript is one scripted model step for mockModel.
type stepScript struct {
	result *services.StepResult
	err    error
}

func textStep(text string) stepScript {
	return stepScript{result: &services.StepResult{
		Text:       text,
		StopReason: services.StopEndTurn,
	}}
}

func toolStep(calls ...services.ToolCall) stepScript {
	return stepScript{result: &services.StepResult{
		ToolCalls:  calls,
		StopReason: services.StopToolUse,
	}}
}

func errStep(err error) stepScript {
	return stepScript{err: err}
}

// mockModel serves scripted steps per model id. When a model's script is
// exhausted it keeps answering with a final text so loops terminate.
type mockModel struct {
	mu      sync.Mutex
	scripts map[string][]stepScript
	calls   []services.StepRequest
}

func newMockModel() *mockModel {
	return &mockModel{scripts: make(map[string][]stepScript)}
}

func (m *mockModel) script(modelID string, steps ...stepScript) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scripts[modelID] = append(m.scripts[modelID], steps...)
}

func (m *mockModel) CreateStep(_ context.Context, req services.StepRequest) (*services.StepResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, req)

	script := m.scripts[req.ModelID]
	if len(script) == 0 {
		return &services.StepResult{Text: "Holding for now.", StopReason: services.StopEndTurn}, nil
	}
	next := script[0]
	m.scripts[req.ModelID] = script[1:]
	return next.result, next.err
}

func (m *mockModel) stepsFor(modelID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c.ModelID == modelID {
			n++
		}
	}
	return n
}

// mockExchange serves canned venue data and pops fills per order.
type mockExchange struct {
	mu           sync.Mutex
	markets      []models.Market
	marketsErr   error
	balance      decimal.Decimal
	positions    []models.Position
	portfolio    *models.PortfolioSnapshot
	portfolioErr error
	fills        []*services.OrderFill
	orderErr     error
	orders       []services.OrderRequest
	redeemResult *services.RedeemResult
}

func newMockExchange() *mockExchange {
	return &mockExchange{
		balance: decimal.NewFromInt(500),
		portfolio: &models.PortfolioSnapshot{
			WalletAddress: "0xwallet",
			Cash:          decimal.NewFromInt(500),
			TotalValue:    decimal.NewFromInt(1000),
		},
	}
}

func (e *mockExchange) Markets(_ context.Context, _ int) ([]models.Market, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.markets, e.marketsErr
}

func (e *mockExchange) Orderbook(_ context.Context, ticker string) (*models.OrderbookSnapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return &models.OrderbookSnapshot{Ticker: ticker}, nil
}

func (e *mockExchange) Balance(_ context.Context, _ string) (decimal.Decimal, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.balance, nil
}

func (e *mockExchange) Positions(_ context.Context, _ string) ([]models.Position, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.positions, nil
}

func (e *mockExchange) Portfolio(_ context.Context, wallet string) (*models.PortfolioSnapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.portfolioErr != nil {
		return nil, e.portfolioErr
	}
	if e.portfolio == nil {
		return models.ZeroPortfolio(wallet), nil
	}
	return e.portfolio, nil
}

func (e *mockExchange) PlaceOrder(_ context.Context, order services.OrderRequest) (*services.OrderFill, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.orders = append(e.orders, order)
	if e.orderErr != nil {
		return nil, e.orderErr
	}
	if len(e.fills) == 0 {
		return &services.OrderFill{
			Success:        true,
			OrderID:        fmt.Sprintf("order-%d", len(e.orders)),
			FilledQuantity: order.Quantity,
			FillPrice:      order.LimitPrice,
		}, nil
	}
	fill := e.fills[0]
	e.fills = e.fills[1:]
	return fill, nil
}

func (e *mockExchange) Redeem(_ context.Context, _, _, _ string) (*services.RedeemResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.redeemResult == nil {
		return &services.RedeemResult{Success: true, Amount: decimal.NewFromInt(10)}, nil
	}
	return e.redeemResult, nil
}

func (e *mockExchange) orderCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.orders)
}

// mockSearch serves canned web results.
type mockSearch struct {
	results []services.SearchResult
	err     error
}

func (s *mockSearch) Search(_ context.Context, _ string, _ int) ([]services.SearchResult, error) {
	return s.results, s.err
}

// mockEngine is an in-memory durable engine.
type mockEngine struct {
	mu         sync.Mutex
	handles    map[string]string
	liveErr    map[string]error
	startErr   error
	startCalls []startCall
	nextRun    int
	wakeErr    map[string]error
	wakeCalls  []string
	statuses   map[string]string
	statusErr  error
}

type startCall struct {
	kind string
	args any
}

func newMockEngine() *mockEngine {
	return &mockEngine{
		handles:  make(map[string]string),
		liveErr:  make(map[string]error),
		wakeErr:  make(map[string]error),
		statuses: make(map[string]string),
	}
}

func (e *mockEngine) LiveHandle(_ context.Context, token string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.liveErr[token]; err != nil {
		return "", err
	}
	return e.handles[token], nil
}

func (e *mockEngine) Start(_ context.Context, workflowKind string, args any) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.startErr != nil {
		return "", e.startErr
	}
	e.nextRun++
	e.startCalls = append(e.startCalls, startCall{kind: workflowKind, args: args})
	return fmt.Sprintf("run-%d", e.nextRun), nil
}

func (e *mockEngine) Wake(_ context.Context, token string, _ any) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.wakeCalls = append(e.wakeCalls, token)
	return e.wakeErr[token]
}

func (e *mockEngine) RunStatus(_ context.Context, runID string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.statusErr != nil {
		return "", e.statusErr
	}
	if status, ok := e.statuses[runID]; ok {
		return status, nil
	}
	return services.RunStatusNotFound, nil
}

func (e *mockEngine) starts() []startCall {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]startCall(nil), e.startCalls...)
}

func (e *mockEngine) wakes() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.wakeCalls...)
}

// recordedRun is one mockLedger.RecordRun invocation.
type recordedRun struct {
	agent   models.AgentIdentity
	result  *models.TradingResult
	trigger models.TriggerRequest
}

// mockLedger records runs in memory.
type mockLedger struct {
	mu           sync.Mutex
	records      []recordedRun
	recordErr    error
	recentTrades []models.ExecutedTrade
}

func (l *mockLedger) RecordRun(_ context.Context, agent models.AgentIdentity, result *models.TradingResult, trigger models.TriggerRequest) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.recordErr != nil {
		return l.recordErr
	}
	l.records = append(l.records, recordedRun{agent: agent, result: result, trigger: trigger})
	return nil
}

func (l *mockLedger) RecentTradesByModel(_ context.Context, _ string, _ int) ([]models.ExecutedTrade, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.recentTrades, nil
}

func (l *mockLedger) recorded() []recordedRun {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]recordedRun(nil), l.records...)
}

func testAgent(modelID string) models.AgentIdentity {
	return models.AgentIdentity{
		ModelID:       modelID,
		DisplayName:   modelID,
		WalletAddress: "0xwallet-" + modelID,
		SigningKey:    "key-" + modelID,
	}
}
