package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"pricewatch_backend/models"
)

// QuoteSource is the port to the external quote provider. GetBatchQuotes
// may return a proper subset of the requested tickers; a ticker missing
// from the result is a partial miss, not an error.
type QuoteSource interface {
	GetBatchQuotes(ctx context.Context, tickers []string) (map[string]models.Quote, error)
	GetAPIStatus() models.QuotaStatus
	HealthCheck(ctx context.Context) models.HealthStatus

	// Optional push-style subscription path. The scheduler does not
	// depend on these for correctness.
	StartMonitoring(userID string, tickers []string) error
	StopMonitoring(userID string) error
}

// Latency above this classifies an otherwise working provider as degraded
const degradedLatencyThreshold = 3 * time.Second

// batchQuoteResponse is the upstream wire format
type batchQuoteResponse struct {
	Data []batchQuoteData `json:"data"`
}

type batchQuoteData struct {
	Ticker        string  `json:"ss"`
	Price         float64 `json:"mp"`
	Change        float64 `json:"cg"`
	ChangePercent float64 `json:"pct"`
	Volume        float64 `json:"tvol"`
}

// HTTPQuoteSource fetches quotes from an iboard-style batch endpoint and
// keeps local quota accounting: one call counts one unit against a rolling
// hourly window, matching the upstream contract.
type HTTPQuoteSource struct {
	apiURL string
	client *http.Client

	mu            sync.Mutex
	used          int
	limit         int
	resetTime     time.Time
	lastUpdated   time.Time
	subscriptions map[string][]string // userID -> tickers (push path)
}

// NewHTTPQuoteSource creates a quote source against the given endpoint.
// limit is the upstream hourly call allowance.
func NewHTTPQuoteSource(apiURL string, timeout time.Duration, limit int) *HTTPQuoteSource {
	return &HTTPQuoteSource{
		apiURL: apiURL,
		client: &http.Client{
			Timeout:   timeout,
			Transport: &http.Transport{DisableCompression: true},
		},
		limit:         limit,
		resetTime:     time.Now().Truncate(time.Hour).Add(time.Hour),
		subscriptions: make(map[string][]string),
	}
}

// consumeQuota counts one upstream call, rolling the window if it expired.
// Returns false when the allowance is already spent.
func (s *HTTPQuoteSource) consumeQuota() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if now.After(s.resetTime) {
		s.used = 0
		s.resetTime = now.Truncate(time.Hour).Add(time.Hour)
	}
	if s.used >= s.limit {
		s.lastUpdated = now
		return false
	}
	s.used++
	s.lastUpdated = now
	return true
}

// GetAPIStatus returns a snapshot of the quota window
func (s *HTTPQuoteSource) GetAPIStatus() models.QuotaStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if now.After(s.resetTime) {
		s.used = 0
		s.resetTime = now.Truncate(time.Hour).Add(time.Hour)
	}

	remaining := s.limit - s.used
	if remaining < 0 {
		remaining = 0
	}
	return models.QuotaStatus{
		Used:           s.used,
		Limit:          s.limit,
		Remaining:      remaining,
		ResetTime:      s.resetTime,
		IsLimitReached: s.used >= s.limit,
		LastUpdated:    s.lastUpdated,
	}
}

// GetBatchQuotes fetches quotes for a batch of tickers in one upstream call
func (s *HTTPQuoteSource) GetBatchQuotes(ctx context.Context, tickers []string) (map[string]models.Quote, error) {
	if len(tickers) == 0 {
		return map[string]models.Quote{}, nil
	}
	if !s.consumeQuota() {
		return nil, &models.QuotaExceededError{Status: s.GetAPIStatus()}
	}

	url := s.apiURL + strings.Join(tickers, ",")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch quotes: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, &models.QuotaExceededError{Status: s.GetAPIStatus()}
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("quote API error (status %d): %s", resp.StatusCode, string(body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var response batchQuoteResponse
	if err := json.Unmarshal(body, &response); err != nil {
		// Some deployments return the array without the data envelope
		var dataArray []batchQuoteData
		if err2 := json.Unmarshal(body, &dataArray); err2 != nil {
			return nil, fmt.Errorf("failed to parse response: %w", err)
		}
		response.Data = dataArray
	}

	requested := make(map[string]bool, len(tickers))
	for _, t := range tickers {
		requested[normalizeTicker(t)] = true
	}

	quotes := make(map[string]models.Quote, len(response.Data))
	now := time.Now()
	for _, d := range response.Data {
		ticker := normalizeTicker(d.Ticker)
		if !requested[ticker] || d.Price <= 0 {
			continue
		}
		quotes[ticker] = models.Quote{
			Ticker:        ticker,
			Price:         decimal.NewFromFloat(d.Price),
			Change:        decimal.NewFromFloat(d.Change),
			ChangePercent: decimal.NewFromFloat(d.ChangePercent),
			Volume:        int64(d.Volume),
			Timestamp:     now,
		}
	}

	if len(quotes) < len(tickers) {
		log.Printf("Quote batch partial result: %d/%d tickers", len(quotes), len(tickers))
	}
	return quotes, nil
}

// HealthCheck probes the upstream endpoint and classifies the result
func (s *HTTPQuoteSource) HealthCheck(ctx context.Context) models.HealthStatus {
	start := time.Now()
	status := models.HealthStatus{CheckedAt: start}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, s.apiURL, nil)
	if err != nil {
		status.Status = models.HealthStatusUnhealthy
		status.Message = err.Error()
		return status
	}

	resp, err := s.client.Do(req)
	status.Latency = time.Since(start)
	if err != nil {
		status.Status = models.HealthStatusUnhealthy
		status.Message = err.Error()
		return status
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 500:
		status.Status = models.HealthStatusUnhealthy
		status.Message = fmt.Sprintf("upstream status %d", resp.StatusCode)
	case status.Latency > degradedLatencyThreshold:
		status.Status = models.HealthStatusDegraded
		status.Message = fmt.Sprintf("slow response: %v", status.Latency)
	default:
		status.Status = models.HealthStatusHealthy
	}
	return status
}

// StartMonitoring records a push-style subscription for a user
func (s *HTTPQuoteSource) StartMonitoring(userID string, tickers []string) error {
	normalized := make([]string, 0, len(tickers))
	for _, t := range tickers {
		if n := normalizeTicker(t); n != "" {
			normalized = append(normalized, n)
		}
	}

	s.mu.Lock()
	s.subscriptions[userID] = normalized
	s.mu.Unlock()
	return nil
}

// StopMonitoring drops a user's push-style subscription
func (s *HTTPQuoteSource) StopMonitoring(userID string) error {
	s.mu.Lock()
	delete(s.subscriptions, userID)
	s.mu.Unlock()
	return nil
}
