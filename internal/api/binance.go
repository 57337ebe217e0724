package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"crypto-market-feed/internal/logger"
)

const (
	BaseURL = "https://api.binance.com"

	ticker24hrEndpoint = "/api/v3/ticker/24hr"
	weightLimit1m      = 6000
)

var ErrUnexpectedStatus = errors.New("binance api returned unexpected status")

// StatusError carries the status and body of a non-200 response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("status %d: %s", e.StatusCode, e.Body)
}

func (e *StatusError) Unwrap() error { return ErrUnexpectedStatus }

type BinanceClient struct {
	BaseURL string
	Client  *http.Client
}

func NewBinanceClient(baseURL string, timeout time.Duration) *BinanceClient {
	if baseURL == "" {
		baseURL = BaseURL
	}
	return &BinanceClient{
		BaseURL: baseURL,
		Client:  &http.Client{Timeout: timeout},
	}
}

// GetTicker24hr fetches the 24h rolling stats for every symbol.
// Entries are returned undecoded so one malformed element cannot reject the batch.
func (c *BinanceClient) GetTicker24hr(ctx context.Context) ([]json.RawMessage, error) {
	reqURL := c.BaseURL + ticker24hrEndpoint

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	c.logWeight(resp.Header.Get("X-MBX-USED-WEIGHT-1M"))

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read error: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var entries []json.RawMessage
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, fmt.Errorf("unmarshal error: %w", err)
	}
	if entries == nil {
		return nil, errors.New("unmarshal error: null payload")
	}
	return entries, nil
}

func (c *BinanceClient) logWeight(header string) {
	if header == "" {
		return
	}
	used, err := strconv.Atoi(header)
	if err != nil {
		return
	}

	remaining := weightLimit1m - used
	switch {
	case used > weightLimit1m*9/10:
		logger.Error("🚨 Critical API weight", "used", used, "limit", weightLimit1m, "remaining", remaining)
	case used > weightLimit1m/2:
		logger.Warn("⚠️ High API weight usage", "used", used, "limit", weightLimit1m, "remaining", remaining)
	default:
		logger.Debug("API weight", "used", used, "remaining", remaining)
	}
}
