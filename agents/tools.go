package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"prediction-fleet/models"
	"prediction-fleet/observability"
	"prediction-fleet/screener"
	"prediction-fleet/services"

	"github.com/shopspring/decimal"
)

// Tool names. increase_position, decrease_position and the legacy
// place_order are fire-once order tools; everything else is read-only.
const (
	ToolGetBalance       = "get_balance"
	ToolListMarkets      = "list_markets"
	ToolGetOrderbook     = "get_orderbook"
	ToolGetPositions     = "get_positions"
	ToolIncreasePosition = "increase_position"
	ToolDecreasePosition = "decrease_position"
	ToolRedeemPosition   = "redeem_position"
	ToolWebSearch        = "web_search"

	// ToolPlaceOrder is the legacy combined order tool. No longer advertised
	// to models, but still executed and extracted with the same success gate
	// when an older listener prompt requests it.
	ToolPlaceOrder = "place_order"
)

// isOrderTool reports whether a tool call counts against the trade ceiling.
// Classification is by tool identity, never by the model's declared intent.
func isOrderTool(name string) bool {
	switch name {
	case ToolIncreasePosition, ToolDecreasePosition, ToolPlaceOrder:
		return true
	}
	return false
}

// ToolRecord pairs one executed tool call with its outcome. For order tools
// the venue's fill report is kept so result extraction can prefer reported
// fill data over the requested input.
type ToolRecord struct {
	CallID  string
	Name    string
	Content string
	Request *services.OrderRequest
	Fill    *services.OrderFill
}

// Toolbox executes tool calls for one agent run. Every tool executes at most
// once per call — none are retried here, because the order tools are
// fire-once and a retry after an ambiguous failure could duplicate a trade.
type Toolbox struct {
	exchange    Exchange
	search      Searcher
	agent       models.AgentIdentity
	marketLimit int

	runKey   string
	orderSeq int
}

// NewToolbox creates the tool executor for one run. runKey seeds the
// idempotency keys attached to every order this run places.
func NewToolbox(exchange Exchange, search Searcher, agent models.AgentIdentity, marketLimit int, runKey string) *Toolbox {
	if marketLimit <= 0 {
		marketLimit = 10
	}
	return &Toolbox{
		exchange:    exchange,
		search:      search,
		agent:       agent,
		marketLimit: marketLimit,
		runKey:      runKey,
	}
}

// Definitions returns the tool declarations advertised to the model.
func (t *Toolbox) Definitions() []services.ToolDefinition {
	return []services.ToolDefinition{
		{
			Name:        ToolGetBalance,
			Description: "Get the current cash balance of your wallet.",
			InputSchema: objectSchema(nil, nil),
		},
		{
			Name:        ToolListMarkets,
			Description: "List active prediction markets with current yes/no prices.",
			InputSchema: objectSchema(map[string]any{
				"limit": map[string]any{"type": "integer", "description": "Maximum number of markets to return."},
			}, nil),
		},
		{
			Name:        ToolGetOrderbook,
			Description: "Get the current orderbook for a market: resting yes/no bids and asks, best price first.",
			InputSchema: objectSchema(map[string]any{
				"market_ticker": map[string]any{"type": "string"},
			}, []string{"market_ticker"}),
		},
		{
			Name:        ToolGetPositions,
			Description: "List your open positions across all markets.",
			InputSchema: objectSchema(nil, nil),
		},
		{
			Name:        ToolIncreasePosition,
			Description: "Buy outcome shares in a market. Executes a real order; call at most once per intended trade.",
			InputSchema: objectSchema(map[string]any{
				"market_ticker": map[string]any{"type": "string"},
				"side":          map[string]any{"type": "string", "enum": []string{"yes", "no"}},
				"quantity":      map[string]any{"type": "number", "description": "Number of shares to buy."},
				"limit_price":   map[string]any{"type": "number", "description": "Optional limit price per share."},
			}, []string{"market_ticker", "side", "quantity"}),
		},
		{
			Name:        ToolDecreasePosition,
			Description: "Sell outcome shares you hold in a market. Executes a real order; call at most once per intended trade.",
			InputSchema: objectSchema(map[string]any{
				"market_ticker": map[string]any{"type": "string"},
				"side":          map[string]any{"type": "string", "enum": []string{"yes", "no"}},
				"quantity":      map[string]any{"type": "number", "description": "Number of shares to sell."},
				"limit_price":   map[string]any{"type": "number", "description": "Optional limit price per share."},
			}, []string{"market_ticker", "side", "quantity"}),
		},
		{
			Name:        ToolRedeemPosition,
			Description: "Redeem winnings from a resolved market you hold a position in.",
			InputSchema: objectSchema(map[string]any{
				"market_ticker": map[string]any{"type": "string"},
			}, []string{"market_ticker"}),
		},
		{
			Name:        ToolWebSearch,
			Description: "Search the web for recent news and context about a market.",
			InputSchema: objectSchema(map[string]any{
				"query": map[string]any{"type": "string"},
				"limit": map[string]any{"type": "integer"},
			}, []string{"query"}),
		},
	}
}

// Execute runs one tool call and returns its record. Tool failures are
// reported back to the model as content, not raised: the model decides how to
// proceed, and the run only aborts on guardrail violations.
func (t *Toolbox) Execute(ctx context.Context, call services.ToolCall) ToolRecord {
	rec := ToolRecord{CallID: call.ID, Name: call.Name}
	metrics := observability.GetMetrics()

	var err error
	switch call.Name {
	case ToolGetBalance:
		err = t.execBalance(ctx, &rec)
	case ToolListMarkets:
		err = t.execListMarkets(ctx, call.Arguments, &rec)
	case ToolGetOrderbook:
		err = t.execOrderbook(ctx, call.Arguments, &rec)
	case ToolGetPositions:
		err = t.execPositions(ctx, &rec)
	case ToolIncreasePosition:
		err = t.execOrder(ctx, call.Arguments, models.TradeActionBuy, &rec)
	case ToolDecreasePosition:
		err = t.execOrder(ctx, call.Arguments, models.TradeActionSell, &rec)
	case ToolPlaceOrder:
		err = t.execLegacyOrder(ctx, call.Arguments, &rec)
	case ToolRedeemPosition:
		err = t.execRedeem(ctx, call.Arguments, &rec)
	case ToolWebSearch:
		err = t.execSearch(ctx, call.Arguments, &rec)
	default:
		err = fmt.Errorf("unknown tool %q", call.Name)
	}

	if err != nil {
		metrics.RecordToolCall(call.Name, "error")
		observability.WithModel(t.agent.ModelID).Warn("tool call failed",
			"tool", call.Name,
			"error", err)
		rec.Content = fmt.Sprintf("error: %v", err)
		return rec
	}

	metrics.RecordToolCall(call.Name, "success")
	return rec
}

func (t *Toolbox) execBalance(ctx context.Context, rec *ToolRecord) error {
	cash, err := t.exchange.Balance(ctx, t.agent.WalletAddress)
	if err != nil {
		return err
	}
	return rec.setJSON(map[string]any{"cash": cash})
}

func (t *Toolbox) execListMarkets(ctx context.Context, args json.RawMessage, rec *ToolRecord) error {
	var in struct {
		Limit int `json:"limit"`
	}
	if len(args) > 0 {
		if err := json.Unmarshal(args, &in); err != nil {
			return fmt.Errorf("invalid arguments: %w", err)
		}
	}
	limit := in.Limit
	if limit <= 0 || limit > t.marketLimit {
		limit = t.marketLimit
	}

	markets, err := screener.NewMarketScreener(t.exchange).TopMarkets(ctx, limit)
	if err != nil {
		return err
	}
	return rec.setJSON(markets)
}

func (t *Toolbox) execOrderbook(ctx context.Context, args json.RawMessage, rec *ToolRecord) error {
	var in struct {
		MarketTicker string `json:"market_ticker"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	if in.MarketTicker == "" {
		return fmt.Errorf("market_ticker is required")
	}

	book, err := t.exchange.Orderbook(ctx, in.MarketTicker)
	if err != nil {
		return err
	}
	return rec.setJSON(book)
}

func (t *Toolbox) execPositions(ctx context.Context, rec *ToolRecord) error {
	positions, err := t.exchange.Positions(ctx, t.agent.WalletAddress)
	if err != nil {
		return err
	}
	return rec.setJSON(positions)
}

// orderArgs is the argument shape shared by the order tools.
type orderArgs struct {
	MarketTicker string  `json:"market_ticker"`
	Side         string  `json:"side"`
	Action       string  `json:"action"` // legacy place_order only
	Quantity     float64 `json:"quantity"`
	LimitPrice   float64 `json:"limit_price"`
}

func (t *Toolbox) execOrder(ctx context.Context, args json.RawMessage, action models.TradeAction, rec *ToolRecord) error {
	var in orderArgs
	if err := json.Unmarshal(args, &in); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return t.placeOrder(ctx, in, action, rec)
}

func (t *Toolbox) execLegacyOrder(ctx context.Context, args json.RawMessage, rec *ToolRecord) error {
	var in orderArgs
	if err := json.Unmarshal(args, &in); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	action := models.TradeAction(in.Action)
	if action != models.TradeActionBuy && action != models.TradeActionSell {
		return fmt.Errorf("invalid action %q", in.Action)
	}
	return t.placeOrder(ctx, in, action, rec)
}

func (t *Toolbox) placeOrder(ctx context.Context, in orderArgs, action models.TradeAction, rec *ToolRecord) error {
	side := models.TradeSide(in.Side)
	if side != models.TradeSideYes && side != models.TradeSideNo {
		return fmt.Errorf("invalid side %q", in.Side)
	}
	if in.MarketTicker == "" {
		return fmt.Errorf("market_ticker is required")
	}
	quantity := decimal.NewFromFloat(in.Quantity)
	if quantity.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("quantity must be positive")
	}

	t.orderSeq++
	order := services.OrderRequest{
		WalletAddress:  t.agent.WalletAddress,
		SigningKey:     t.agent.SigningKey,
		MarketTicker:   in.MarketTicker,
		Side:           side,
		Action:         action,
		Quantity:       quantity,
		IdempotencyKey: models.DecisionKey(t.runKey, strconv.Itoa(t.orderSeq)),
	}
	if in.LimitPrice > 0 {
		order.LimitPrice = decimal.NewFromFloat(in.LimitPrice)
	}

	fill, err := t.exchange.PlaceOrder(ctx, order)
	if err != nil {
		return err
	}

	rec.Request = &order
	rec.Fill = fill
	if fill.Success {
		observability.GetMetrics().RecordTradePlaced(t.agent.ModelID, string(action))
	}
	return rec.setJSON(fill)
}

func (t *Toolbox) execRedeem(ctx context.Context, args json.RawMessage, rec *ToolRecord) error {
	var in struct {
		MarketTicker string `json:"market_ticker"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	if in.MarketTicker == "" {
		return fmt.Errorf("market_ticker is required")
	}

	result, err := t.exchange.Redeem(ctx, t.agent.WalletAddress, t.agent.SigningKey, in.MarketTicker)
	if err != nil {
		return err
	}
	return rec.setJSON(result)
}

func (t *Toolbox) execSearch(ctx context.Context, args json.RawMessage, rec *ToolRecord) error {
	if t.search == nil {
		return fmt.Errorf("web search is not configured")
	}
	var in struct {
		Query string `json:"query"`
		Limit int    `json:"limit"`
	}
	if err := json.Unmarshal(args, &in); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	if in.Query == "" {
		return fmt.Errorf("query is required")
	}

	results, err := t.search.Search(ctx, in.Query, in.Limit)
	if err != nil {
		return err
	}
	return rec.setJSON(results)
}

func (r *ToolRecord) setJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	r.Content = string(data)
	return nil
}

// objectSchema builds a JSON schema for a tool's arguments.
func objectSchema(properties map[string]any, required []string) map[string]any {
	if properties == nil {
		properties = map[string]any{}
	}
	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}
