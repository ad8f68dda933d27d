package services

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	appconfig "prediction-fleet/config"
	"prediction-fleet/models"
	"prediction-fleet/observability"

	"github.com/shopspring/decimal"
)

// ExchangeService handles communication with the prediction-market venue.
//
// Read endpoints (markets, balance, positions) are retried with backoff.
// PlaceOrder and Redeem are fire-once: they are never wrapped in retry
// middleware, because a retry after an ambiguous failure could duplicate a
// real order.
type ExchangeService struct {
	apiKey     string
	httpClient *http.Client
	baseURL    string
}

// NewExchangeService creates a new ExchangeService instance
func NewExchangeService(cfg *appconfig.Config) *ExchangeService {
	return &ExchangeService{
		apiKey:     cfg.Exchange.APIKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    cfg.Exchange.BaseURL,
	}
}

// OrderRequest is one order instruction for the venue.
type OrderRequest struct {
	WalletAddress  string             `json:"wallet_address"`
	SigningKey     string             `json:"-"`
	MarketTicker   string             `json:"market_ticker"`
	Side           models.TradeSide   `json:"side"`
	Action         models.TradeAction `json:"action"`
	Quantity       decimal.Decimal    `json:"quantity"`
	LimitPrice     decimal.Decimal    `json:"limit_price,omitempty"`
	IdempotencyKey string             `json:"idempotency_key,omitempty"`
}

// OrderFill is the venue's report for one order attempt.
type OrderFill struct {
	Success        bool            `json:"success"`
	OrderID        string          `json:"order_id,omitempty"`
	Message        string          `json:"message,omitempty"`
	FilledQuantity decimal.Decimal `json:"filled_quantity"`
	FillPrice      decimal.Decimal `json:"fill_price"`
	Notional       decimal.Decimal `json:"notional"`
}

// RedeemResult is the venue's report for one redemption attempt.
type RedeemResult struct {
	Success bool            `json:"success"`
	Amount  decimal.Decimal `json:"amount"`
	Message string          `json:"message,omitempty"`
}

// Markets returns active markets ordered by relevance.
func (s *ExchangeService) Markets(ctx context.Context, limit int) ([]models.Market, error) {
	if limit <= 0 {
		limit = 10
	}

	var markets []models.Market
	err := WithRetry(ctx, DefaultRetryConfig, func() error {
		params := url.Values{}
		params.Set("limit", fmt.Sprintf("%d", limit))
		params.Set("status", "active")

		return s.getJSON(ctx, "/v1/markets?"+params.Encode(), &markets)
	})
	if err != nil {
		return nil, err
	}

	return markets, nil
}

// Orderbook returns the current book for one market.
func (s *ExchangeService) Orderbook(ctx context.Context, ticker string) (*models.OrderbookSnapshot, error) {
	var book models.OrderbookSnapshot
	err := WithRetry(ctx, DefaultRetryConfig, func() error {
		return s.getJSON(ctx, "/v1/markets/"+url.PathEscape(ticker)+"/orderbook", &book)
	})
	if err != nil {
		return nil, err
	}
	return &book, nil
}

// Balance returns the cash balance of a wallet.
func (s *ExchangeService) Balance(ctx context.Context, wallet string) (decimal.Decimal, error) {
	var resp struct {
		Cash decimal.Decimal `json:"cash"`
	}
	err := WithRetry(ctx, DefaultRetryConfig, func() error {
		return s.getJSON(ctx, "/v1/wallets/"+url.PathEscape(wallet)+"/balance", &resp)
	})
	if err != nil {
		return decimal.Zero, err
	}
	return resp.Cash, nil
}

// Positions returns the open positions of a wallet.
func (s *ExchangeService) Positions(ctx context.Context, wallet string) ([]models.Position, error) {
	var positions []models.Position
	err := WithRetry(ctx, DefaultRetryConfig, func() error {
		return s.getJSON(ctx, "/v1/wallets/"+url.PathEscape(wallet)+"/positions", &positions)
	})
	if err != nil {
		return nil, err
	}
	return positions, nil
}

// Portfolio returns the full on-chain snapshot of a wallet.
func (s *ExchangeService) Portfolio(ctx context.Context, wallet string) (*models.PortfolioSnapshot, error) {
	var snapshot models.PortfolioSnapshot
	err := WithRetry(ctx, DefaultRetryConfig, func() error {
		return s.getJSON(ctx, "/v1/wallets/"+url.PathEscape(wallet)+"/portfolio", &snapshot)
	})
	if err != nil {
		return nil, err
	}
	return &snapshot, nil
}

// PlaceOrder submits one order. Fire-once by contract: no retry, no replay.
// The idempotency key lets the venue deduplicate if the same logical order is
// ever re-submitted by a restarted run.
func (s *ExchangeService) PlaceOrder(ctx context.Context, order OrderRequest) (*OrderFill, error) {
	metrics := observability.GetMetrics()
	metrics.RecordExternalAPIRequest(BreakerExchange, "place_order")
	timer := metrics.NewTimer()

	fill, err := WithCircuitBreaker(ctx, BreakerExchange, func() (*OrderFill, error) {
		body, err := json.Marshal(order)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal order: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/v1/orders", bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Api-Key", s.apiKey)
		req.Header.Set("X-Wallet-Signature", signPayload(order.SigningKey, body))
		if order.IdempotencyKey != "" {
			req.Header.Set("Idempotency-Key", order.IdempotencyKey)
		}

		resp, err := s.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("failed to place order: %w", err)
		}
		defer resp.Body.Close()

		var fill OrderFill
		if err := json.NewDecoder(resp.Body).Decode(&fill); err != nil {
			return nil, fmt.Errorf("failed to decode order response: %w", err)
		}
		if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
			if fill.Message == "" {
				fill.Message = fmt.Sprintf("exchange returned status %d", resp.StatusCode)
			}
			fill.Success = false
		}

		return &fill, nil
	})

	timer.ObserveExternalAPI(BreakerExchange, "place_order")
	if err != nil {
		metrics.RecordExternalAPIError(BreakerExchange, "place_order", categorizeAPIError(err))
	}
	return fill, err
}

// Redeem claims winnings from a resolved market. Fire-once like PlaceOrder.
func (s *ExchangeService) Redeem(ctx context.Context, wallet, signingKey, ticker string) (*RedeemResult, error) {
	metrics := observability.GetMetrics()
	metrics.RecordExternalAPIRequest(BreakerExchange, "redeem")
	timer := metrics.NewTimer()

	result, err := WithCircuitBreaker(ctx, BreakerExchange, func() (*RedeemResult, error) {
		payload := map[string]string{
			"wallet_address": wallet,
			"market_ticker":  ticker,
		}
		body, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal redemption: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/v1/redemptions", bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Api-Key", s.apiKey)
		req.Header.Set("X-Wallet-Signature", signPayload(signingKey, body))

		resp, err := s.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("failed to redeem: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("exchange returned status %d", resp.StatusCode)
		}

		var result RedeemResult
		if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
			return nil, fmt.Errorf("failed to decode redemption response: %w", err)
		}
		return &result, nil
	})

	timer.ObserveExternalAPI(BreakerExchange, "redeem")
	if err != nil {
		metrics.RecordExternalAPIError(BreakerExchange, "redeem", categorizeAPIError(err))
	}
	return result, err
}

// signPayload signs a request body with the wallet's key so the venue can
// verify the order came from the wallet owner.
func signPayload(signingKey string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(signingKey))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// getJSON performs an authenticated GET and decodes the JSON body.
func (s *ExchangeService) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-Api-Key", s.apiKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("exchange returned status %d for %s", resp.StatusCode, path)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
