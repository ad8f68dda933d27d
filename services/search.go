package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	appconfig "prediction-fleet/config"
)

// SearchService handles communication with the web search API used by the
// web_search tool. Read-only, safe to retry.
type SearchService struct {
	apiKey     string
	httpClient *http.Client
	baseURL    string
}

// NewSearchService creates a new SearchService instance
func NewSearchService(cfg *appconfig.Config) *SearchService {
	return &SearchService{
		apiKey:     cfg.Search.APIKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    cfg.Search.BaseURL,
	}
}

// SearchResult is one web search hit.
type SearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// Search returns web results for a query.
func (s *SearchService) Search(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 5
	}
	if limit > 20 {
		limit = 20
	}

	var results []SearchResult
	err := WithRetry(ctx, DefaultRetryConfig, func() error {
		params := url.Values{}
		params.Set("q", query)
		params.Set("limit", fmt.Sprintf("%d", limit))

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/v1/search?"+params.Encode(), nil)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("X-Api-Key", s.apiKey)

		resp, err := s.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("failed to search: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("search API returned status %d", resp.StatusCode)
		}

		var body struct {
			Results []SearchResult `json:"results"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
		results = body.Results

		return nil
	})
	if err != nil {
		return nil, err
	}

	return results, nil
}
