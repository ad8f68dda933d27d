package agents

import (
	"context"

	"prediction-fleet/models"
	"prediction-fleet/services"

	"github.com/shopspring/decimal"
)

// ModelClient serves one tool-calling step against a language model.
type ModelClient interface {
	CreateStep(ctx context.Context, req services.StepRequest) (*services.StepResult, error)
}

// Exchange is the prediction-market venue surface the tools need. PlaceOrder
// and Redeem are fire-once: implementations must not retry them, and callers
// must not wrap them in retry middleware.
type Exchange interface {
	Markets(ctx context.Context, limit int) ([]models.Market, error)
	Orderbook(ctx context.Context, ticker string) (*models.OrderbookSnapshot, error)
	Balance(ctx context.Context, wallet string) (decimal.Decimal, error)
	Positions(ctx context.Context, wallet string) ([]models.Position, error)
	Portfolio(ctx context.Context, wallet string) (*models.PortfolioSnapshot, error)
	PlaceOrder(ctx context.Context, order services.OrderRequest) (*services.OrderFill, error)
	Redeem(ctx context.Context, wallet, signingKey, ticker string) (*services.RedeemResult, error)
}

// Searcher backs the web_search tool.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]services.SearchResult, error)
}

// DurableEngine is the contract consumed from the external workflow engine.
// The engine owns listener lifecycles; this core only probes, starts, wakes
// and polls.
type DurableEngine interface {
	LiveHandle(ctx context.Context, token string) (string, error)
	Start(ctx context.Context, workflowKind string, args any) (string, error)
	Wake(ctx context.Context, token string, payload any) error
	RunStatus(ctx context.Context, runID string) (string, error)
}

// Ledger persists one decision, zero-or-more trades and an updated portfolio
// value per completed run. RecordRun is expected to be idempotent per
// (agent, decision content) at the recorder's discretion; callers do not
// deduplicate before calling it.
type Ledger interface {
	RecordRun(ctx context.Context, agent models.AgentIdentity, result *models.TradingResult, trigger models.TriggerRequest) error
	RecentTradesByModel(ctx context.Context, modelID string, limit int) ([]models.ExecutedTrade, error)
}
