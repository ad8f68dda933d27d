package models

import "encoding/json"

// SignalKind identifies the market event that produced a signal.
type SignalKind string

const (
	SignalPriceSwing         SignalKind = "price_swing"
	SignalVolumeSpike        SignalKind = "volume_spike"
	SignalOrderbookImbalance SignalKind = "orderbook_imbalance"
	SignalPeriodic           SignalKind = "periodic"
	SignalNewsEvent          SignalKind = "news_event"
)

// MarketSignal is produced by the price relay and passed through unmodified
// into the agent's context prompt.
type MarketSignal struct {
	Kind       SignalKind      `json:"kind"`
	Ticker     string          `json:"ticker"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	ObservedAt int64           `json:"observed_at"` // epoch milliseconds
}

// PriceSwingPayload is the payload shape for price_swing signals.
type PriceSwingPayload struct {
	PreviousPrice float64 `json:"previous_price"`
	CurrentPrice  float64 `json:"current_price"`
	ChangePercent float64 `json:"change_percent"`
}

// VolumeSpikePayload is the payload shape for volume_spike signals.
type VolumeSpikePayload struct {
	Volume     float64 `json:"volume"`
	AvgVolume  float64 `json:"avg_volume"`
	Multiplier float64 `json:"multiplier"`
	TakerSide  string  `json:"taker_side"`
}

// OrderbookImbalancePayload is the payload shape for orderbook_imbalance signals.
type OrderbookImbalancePayload struct {
	BidDepth  float64 `json:"bid_depth"`
	AskDepth  float64 `json:"ask_depth"`
	Ratio     float64 `json:"ratio"`
	Direction string  `json:"direction"`
}

// TriggerKind classifies what initiated a dispatch.
type TriggerKind string

const (
	TriggerMarket TriggerKind = "market"
	TriggerCron   TriggerKind = "cron"
	TriggerManual TriggerKind = "manual"
)

// TriggerRequest is one dispatch invocation. An empty ModelID targets every
// configured agent with a funded wallet.
type TriggerRequest struct {
	ModelID     string        `json:"model_id,omitempty"`
	Signal      *MarketSignal `json:"signal,omitempty"`
	TriggerKind TriggerKind   `json:"trigger_kind"`
	TestMode    bool          `json:"test_mode,omitempty"`
}
