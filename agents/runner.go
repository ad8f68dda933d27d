package agents

import (
	"context"
	"strings"

	appconfig "prediction-fleet/config"
	"prediction-fleet/models"
	"prediction-fleet/observability"
	"prediction-fleet/services"
)

// systemPrompt frames every agent run. Kept model-agnostic; the per-run
// market and portfolio state arrives in the first user message.
const systemPrompt = `You are an autonomous trading agent competing in prediction markets with a funded wallet.

Review the market snapshot, your portfolio and any market signal, then decide whether to trade. Use the tools to check balances, research markets and place orders. Order tools execute real trades immediately: call each at most once per intended trade and never repeat a call whose outcome you have not seen.

You are not required to trade. When nothing looks favorable, explain why and stand aside. Close with a short summary of your decision.`

// skipPhrases mark reasoning that explicitly declines to trade. Matched
// case-insensitively against the closing text when no trade was extracted.
var skipPhrases = []string{
	"no trading opportunity",
	"no opportunity",
	"not trading",
	"no trade",
	"sit this one out",
	"sitting out",
	"skip",
}

// Runner drives one bounded reasoning/tool-use loop for one agent and
// translates the step history into a TradingResult.
type Runner struct {
	model    ModelClient
	exchange Exchange
	search   Searcher
	ledger   Ledger
	cfg      *appconfig.Config
}

// NewRunner creates a Runner. ledger may be nil when no database is
// configured; the context then omits trade history.
func NewRunner(model ModelClient, exchange Exchange, search Searcher, ledger Ledger, cfg *appconfig.Config) *Runner {
	return &Runner{
		model:    model,
		exchange: exchange,
		search:   search,
		ledger:   ledger,
		cfg:      cfg,
	}
}

// Run executes one guarded agent run. On a guardrail violation it returns
// both the partial result and the violation: trades placed before the ceiling
// fired are real and must still reach the ledger.
//
// "No trade taken" is never an error — the run only fails on guardrail
// violations or model-infrastructure failure.
func (r *Runner) Run(ctx context.Context, agent models.AgentIdentity, trigger models.TriggerRequest) (*models.TradingResult, error) {
	log := observability.WithModel(agent.ModelID)

	maxSteps := r.cfg.Runner.MaxSteps
	if maxSteps <= 0 {
		maxSteps = 10
	}

	guard := NewGuardrails(r.cfg.Guardrails, agent.ModelID)
	runKey := models.DecisionKey(agent.ModelID, signalFingerprint(trigger.Signal, trigger.TriggerKind))
	toolbox := NewToolbox(r.exchange, r.search, agent, r.cfg.Runner.MarketLimit, runKey)
	runCtx := BuildRunContext(ctx, r.exchange, r.ledger, agent, trigger.Signal, r.cfg)

	messages := []services.StepMessage{
		{Role: services.RoleUser, Content: runCtx.Render()},
	}

	var (
		records       []ToolRecord
		stepsExecuted int
		closingText   string
	)

	log.Info("agent run starting",
		"trigger_kind", trigger.TriggerKind,
		"max_steps", maxSteps)

	for step := 0; step < maxSteps; step++ {
		if err := guard.BeforeStep(); err != nil {
			return r.finish(ctx, agent, trigger, runCtx, records, closingText, stepsExecuted), err
		}

		result, err := r.model.CreateStep(ctx, services.StepRequest{
			ModelID:   agent.ModelID,
			System:    systemPrompt,
			Messages:  messages,
			Tools:     toolbox.Definitions(),
			MaxTokens: guard.ClampTokens(r.cfg.Guardrails.MaxTokensPerCall),
		})
		if err != nil {
			log.Error("model step failed", "step", step, "error", err)
			if hasSuccessfulOrder(records) {
				// Trades already executed; surface them alongside the failure.
				return r.finish(ctx, agent, trigger, runCtx, records, closingText, stepsExecuted), err
			}
			return nil, err
		}

		stepsExecuted++
		if result.Text != "" {
			closingText = result.Text
		}
		messages = append(messages, services.StepMessage{
			Role:      services.RoleAssistant,
			Content:   result.Text,
			ToolCalls: result.ToolCalls,
		})

		if len(result.ToolCalls) == 0 {
			break
		}

		// Tools run strictly sequentially: later prompts depend on earlier
		// results, and each order tool fires at most once per logical need.
		orderCalls := 0
		for _, call := range result.ToolCalls {
			rec := toolbox.Execute(ctx, call)
			records = append(records, rec)
			if isOrderTool(call.Name) {
				orderCalls++
			}
			messages = append(messages, services.StepMessage{
				Role:       services.RoleTool,
				Content:    rec.Content,
				ToolCallID: call.ID,
			})
		}

		if err := guard.AfterStep(len(result.ToolCalls), orderCalls); err != nil {
			return r.finish(ctx, agent, trigger, runCtx, records, closingText, stepsExecuted), err
		}
	}

	result := r.finish(ctx, agent, trigger, runCtx, records, closingText, stepsExecuted)
	log.Info("agent run finished",
		"decision", result.Decision,
		"trades", len(result.Trades),
		"steps", result.StepsExecuted)
	return result, nil
}

// finish translates the accumulated step history into the terminal result.
func (r *Runner) finish(ctx context.Context, agent models.AgentIdentity, trigger models.TriggerRequest, runCtx *RunContext, records []ToolRecord, closingText string, stepsExecuted int) *models.TradingResult {
	trades := extractTrades(records)

	result := &models.TradingResult{
		Reasoning:     closingText,
		Trades:        trades,
		Decision:      classifyDecision(trades, closingText),
		StepsExecuted: stepsExecuted,
	}

	result.PortfolioValueAfter = runCtx.Portfolio.TotalValue
	if snapshot, err := r.exchange.Portfolio(ctx, agent.WalletAddress); err == nil {
		result.PortfolioValueAfter = snapshot.TotalValue
	}

	ticker := ""
	if trigger.Signal != nil {
		ticker = trigger.Signal.Ticker
	} else if len(trades) > 0 {
		ticker = trades[0].MarketTicker
	}
	if ticker != "" {
		result.MarketTicker = ticker
		for _, m := range runCtx.Markets {
			if m.Ticker == ticker {
				result.MarketTitle = m.Title
				break
			}
		}
	}

	observability.GetMetrics().RecordRunResult(agent.ModelID, string(result.Decision), stepsExecuted)
	return result
}

// extractTrades walks the tool history and produces one ExecutedTrade per
// order call whose paired result reports success. Fill data is preferred over
// the requested input whenever the venue reported it.
func extractTrades(records []ToolRecord) []models.ExecutedTrade {
	var trades []models.ExecutedTrade
	for _, rec := range records {
		if !isOrderTool(rec.Name) || rec.Fill == nil || rec.Request == nil {
			continue
		}
		if !rec.Fill.Success {
			continue
		}

		quantity := rec.Request.Quantity
		if rec.Fill.FilledQuantity.IsPositive() {
			quantity = rec.Fill.FilledQuantity
		}
		price := rec.Request.LimitPrice
		if rec.Fill.FillPrice.IsPositive() {
			price = rec.Fill.FillPrice
		}

		trade := models.NewExecutedTrade(rec.Request.MarketTicker, rec.Request.Side, rec.Request.Action, quantity, price)
		if rec.Fill.Notional.IsPositive() {
			trade.Notional = rec.Fill.Notional
		}
		trades = append(trades, *trade)
	}
	return trades
}

// classifyDecision maps the run outcome to a decision label. A run with
// trades takes the first trade's action; a tradeless run is "skip" when the
// closing text explicitly declines, else "hold".
func classifyDecision(trades []models.ExecutedTrade, closingText string) models.Decision {
	if len(trades) > 0 {
		if trades[0].Action == models.TradeActionSell {
			return models.DecisionSell
		}
		return models.DecisionBuy
	}

	lower := strings.ToLower(closingText)
	for _, phrase := range skipPhrases {
		if strings.Contains(lower, phrase) {
			return models.DecisionSkip
		}
	}
	return models.DecisionHold
}

// hasSuccessfulOrder reports whether any order in the history filled.
func hasSuccessfulOrder(records []ToolRecord) bool {
	for _, rec := range records {
		if isOrderTool(rec.Name) && rec.Fill != nil && rec.Fill.Success {
			return true
		}
	}
	return false
}
