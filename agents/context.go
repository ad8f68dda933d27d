package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	appconfig "prediction-fleet/config"
	"prediction-fleet/models"
	"prediction-fleet/observability"
	"prediction-fleet/screener"
)

// RunContext is the market and portfolio state one agent run reasons over.
// Built fresh per run; the rendered prompt is deterministic for a given
// context so replayed runs see identical input.
type RunContext struct {
	Markets      []models.Market
	Portfolio    *models.PortfolioSnapshot
	RecentTrades []models.ExecutedTrade
	Signal       *models.MarketSignal
}

// BuildRunContext assembles the context for one agent run. A failed
// portfolio read substitutes a zero-valued snapshot and proceeds: the order
// tools independently refuse to overspend, so a decision on zero balance is
// safer than no decision.
func BuildRunContext(ctx context.Context, exchange Exchange, ledger Ledger, agent models.AgentIdentity, signal *models.MarketSignal, cfg *appconfig.Config) *RunContext {
	rc := &RunContext{Signal: signal}

	markets, err := screener.NewMarketScreener(exchange).TopMarkets(ctx, cfg.Runner.MarketLimit)
	if err != nil {
		observability.WithModel(agent.ModelID).Warn("market snapshot failed, continuing with empty list", "error", err)
	}
	rc.Markets = markets

	portfolio, err := exchange.Portfolio(ctx, agent.WalletAddress)
	if err != nil {
		observability.WithModel(agent.ModelID).Warn("portfolio fetch failed, substituting zero snapshot", "error", err)
		portfolio = models.ZeroPortfolio(agent.WalletAddress)
	}
	rc.Portfolio = portfolio

	if ledger != nil {
		trades, err := ledger.RecentTradesByModel(ctx, agent.ModelID, cfg.Runner.RecentTrades)
		if err != nil {
			observability.WithModel(agent.ModelID).Warn("recent trades lookup failed, continuing without history", "error", err)
		}
		rc.RecentTrades = trades
	}

	return rc
}

// Render produces the context prompt. Section order and formatting are fixed.
func (rc *RunContext) Render() string {
	var b strings.Builder

	b.WriteString("## Available Markets\n")
	if len(rc.Markets) == 0 {
		b.WriteString("No active markets available.\n")
	}
	for _, m := range rc.Markets {
		fmt.Fprintf(&b, "- %s: %q yes=%s no=%s vol24h=%s liquidity=%s\n",
			m.Ticker, m.Title, m.YesPrice.StringFixed(2), m.NoPrice.StringFixed(2),
			m.Volume24h.StringFixed(0), m.Liquidity.StringFixed(0))
	}

	b.WriteString("\n## Portfolio\n")
	fmt.Fprintf(&b, "Cash: %s\n", rc.Portfolio.Cash.StringFixed(2))
	fmt.Fprintf(&b, "Total value: %s\n", rc.Portfolio.TotalValue.StringFixed(2))
	if len(rc.Portfolio.Positions) == 0 {
		b.WriteString("No open positions.\n")
	}
	for _, p := range rc.Portfolio.Positions {
		fmt.Fprintf(&b, "- %s %s x%s @ avg %s (now %s)",
			p.MarketTicker, p.Side, p.Quantity.StringFixed(2),
			p.AvgPrice.StringFixed(2), p.CurrentPrice.StringFixed(2))
		if p.Redeemable {
			b.WriteString(" [redeemable]")
		}
		b.WriteString("\n")
	}

	b.WriteString("\n## Recent Trades\n")
	if len(rc.RecentTrades) == 0 {
		b.WriteString("No recent trades.\n")
	}
	for _, t := range rc.RecentTrades {
		fmt.Fprintf(&b, "- %s %s %s x%s @ %s\n",
			t.Action, t.Side, t.MarketTicker, t.Quantity.StringFixed(2), t.Price.StringFixed(2))
	}

	if rc.Signal != nil {
		b.WriteString("\n## Market Signal\n")
		b.WriteString(renderSignal(rc.Signal))
	}

	return b.String()
}

// renderSignal produces the signal-type-specific narrative block.
func renderSignal(sig *models.MarketSignal) string {
	observed := time.UnixMilli(sig.ObservedAt).UTC().Format(time.RFC3339)

	switch sig.Kind {
	case models.SignalPriceSwing:
		var p models.PriceSwingPayload
		if err := json.Unmarshal(sig.Payload, &p); err == nil {
			return fmt.Sprintf("Price swing on %s at %s: %.2f -> %.2f (%+.1f%%).\n",
				sig.Ticker, observed, p.PreviousPrice, p.CurrentPrice, p.ChangePercent)
		}
	case models.SignalVolumeSpike:
		var p models.VolumeSpikePayload
		if err := json.Unmarshal(sig.Payload, &p); err == nil {
			return fmt.Sprintf("Volume spike on %s at %s: volume %.0f vs average %.0f (%.1fx), taker side %s.\n",
				sig.Ticker, observed, p.Volume, p.AvgVolume, p.Multiplier, p.TakerSide)
		}
	case models.SignalOrderbookImbalance:
		var p models.OrderbookImbalancePayload
		if err := json.Unmarshal(sig.Payload, &p); err == nil {
			return fmt.Sprintf("Orderbook imbalance on %s at %s: bid depth %.0f, ask depth %.0f, ratio %.2f, direction %s.\n",
				sig.Ticker, observed, p.BidDepth, p.AskDepth, p.Ratio, p.Direction)
		}
	case models.SignalPeriodic:
		return fmt.Sprintf("Periodic review cycle at %s. Evaluate the portfolio and current markets.\n", observed)
	case models.SignalNewsEvent:
		return fmt.Sprintf("News event affecting %s at %s. Research before acting.\n", sig.Ticker, observed)
	}

	return fmt.Sprintf("Signal %s on %s at %s.\n", sig.Kind, sig.Ticker, observed)
}

// Fingerprint identifies the triggering signal for idempotency-key purposes.
// Runs replayed for the same signal derive the same order keys.
func signalFingerprint(sig *models.MarketSignal, kind models.TriggerKind) string {
	if sig == nil {
		return string(kind)
	}
	return fmt.Sprintf("%s|%s|%d", sig.Kind, sig.Ticker, sig.ObservedAt)
}
