package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	appconfig "prediction-fleet/config"
	"prediction-fleet/models"

	"github.com/shopspring/decimal"
)

func newTestExchange(t *testing.T, handler http.HandlerFunc) *ExchangeService {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := appconfig.NewTestConfig()
	cfg.Exchange.BaseURL = server.URL
	cfg.Exchange.APIKey = "test-key"
	return NewExchangeService(cfg)
}

func TestExchangeMarkets(t *testing.T) {
	exchange := newTestExchange(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/markets" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("X-Api-Key") != "test-key" {
			t.Error("expected API key header")
		}
		if r.URL.Query().Get("status") != "active" {
			t.Error("expected active status filter")
		}
		json.NewEncoder(w).Encode([]models.Market{
			{Ticker: "RAIN-NYC", YesPrice: decimal.NewFromFloat(0.62)},
		})
	})

	markets, err := exchange.Markets(context.Background(), 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(markets) != 1 || markets[0].Ticker != "RAIN-NYC" {
		t.Errorf("unexpected markets: %+v", markets)
	}
}

func TestExchangeOrderbook(t *testing.T) {
	exchange := newTestExchange(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/markets/RAIN-NYC/orderbook" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(models.OrderbookSnapshot{
			Ticker:  "RAIN-NYC",
			YesBids: []models.OrderbookLevel{{Price: decimal.NewFromFloat(0.61), Quantity: decimal.NewFromInt(200)}},
		})
	})

	book, err := exchange.Orderbook(context.Background(), "RAIN-NYC")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if book.Ticker != "RAIN-NYC" || len(book.YesBids) != 1 {
		t.Errorf("unexpected book: %+v", book)
	}
}

func TestExchangeBalance(t *testing.T) {
	exchange := newTestExchange(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/wallets/0xabc/balance" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]string{"cash": "123.45"})
	})

	cash, err := exchange.Balance(context.Background(), "0xabc")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !cash.Equal(decimal.NewFromFloat(123.45)) {
		t.Errorf("expected 123.45, got %s", cash)
	}
}

func TestExchangePlaceOrder(t *testing.T) {
	t.Run("signs and sends idempotency key", func(t *testing.T) {
		var gotIdempotency, gotSignature string
		exchange := newTestExchange(t, func(w http.ResponseWriter, r *http.Request) {
			gotIdempotency = r.Header.Get("Idempotency-Key")
			gotSignature = r.Header.Get("X-Wallet-Signature")
			json.NewEncoder(w).Encode(OrderFill{
				Success:        true,
				OrderID:        "ord-1",
				FilledQuantity: decimal.NewFromInt(10),
				FillPrice:      decimal.NewFromFloat(0.45),
			})
		})

		fill, err := exchange.PlaceOrder(context.Background(), OrderRequest{
			WalletAddress:  "0xabc",
			SigningKey:     "secret",
			MarketTicker:   "RAIN-NYC",
			Side:           models.TradeSideYes,
			Action:         models.TradeActionBuy,
			Quantity:       decimal.NewFromInt(10),
			IdempotencyKey: "key-1",
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !fill.Success || fill.OrderID != "ord-1" {
			t.Errorf("unexpected fill: %+v", fill)
		}
		if gotIdempotency != "key-1" {
			t.Errorf("expected idempotency key on the wire, got %q", gotIdempotency)
		}
		if gotSignature == "" {
			t.Error("expected a wallet signature header")
		}
	})

	t.Run("venue rejection is a failed fill, not an error", func(t *testing.T) {
		exchange := newTestExchange(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnprocessableEntity)
			json.NewEncoder(w).Encode(OrderFill{Message: "insufficient funds"})
		})

		fill, err := exchange.PlaceOrder(context.Background(), OrderRequest{
			WalletAddress: "0xabc",
			MarketTicker:  "RAIN-NYC",
			Side:          models.TradeSideYes,
			Action:        models.TradeActionBuy,
			Quantity:      decimal.NewFromInt(10),
		})
		if err != nil {
			t.Fatalf("rejection must not be a transport error: %v", err)
		}
		if fill.Success {
			t.Error("expected unsuccessful fill")
		}
		if fill.Message != "insufficient funds" {
			t.Errorf("expected venue message preserved, got %q", fill.Message)
		}
	})
}

func TestExchangeRedeem(t *testing.T) {
	exchange := newTestExchange(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/redemptions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(RedeemResult{Success: true, Amount: decimal.NewFromInt(50)})
	})

	result, err := exchange.Redeem(context.Background(), "0xabc", "secret", "RAIN-NYC")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Success || !result.Amount.Equal(decimal.NewFromInt(50)) {
		t.Errorf("unexpected result: %+v", result)
	}
}

func TestModelRouterRouting(t *testing.T) {
	router := NewModelRouter(nil, nil)

	_, err := router.CreateStep(context.Background(), StepRequest{ModelID: "claude-sonnet-4-5"})
	if err == nil {
		t.Error("expected error routing claude model without bedrock")
	}

	_, err = router.CreateStep(context.Background(), StepRequest{ModelID: "gpt-5"})
	if err == nil {
		t.Error("expected error routing gpt model without openai")
	}
}
