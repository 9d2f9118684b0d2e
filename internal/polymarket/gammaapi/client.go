package gammaapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/foresynth/radar/internal/config"
	"github.com/foresynth/radar/internal/metrics"
	"github.com/foresynth/radar/internal/ratelimit"
)

// ErrMarketNotFound is returned when no market matches a condition id
var ErrMarketNotFound = errors.New("market not found")

// Client handles communication with the Polymarket Gamma API
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *ratelimit.Limiter
}

// NewClient creates a new Gamma API client
func NewClient(cfg *config.Config) *Client {
	return &Client{
		baseURL:    cfg.GammaAPIBaseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    ratelimit.New(cfg.GammaAPIMarketsRPS),
	}
}

// GetMarketByConditionID fetches market details by condition ID
func (c *Client) GetMarketByConditionID(ctx context.Context, conditionID string) (market *Market, err error) {
	start := time.Now()
	defer func() {
		metrics.RecordAPIRequest("gamma", "/markets", time.Since(start), err)
	}()

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	u, err := url.Parse(c.baseURL + "/markets")
	if err != nil {
		return nil, fmt.Errorf("parse URL: %w", err)
	}
	q := u.Query()
	q.Set("condition_ids", conditionID)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	// Gamma API is public
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}

	// Response can be either array or single market
	var markets []Market
	if err := json.Unmarshal(body, &markets); err == nil {
		if len(markets) == 0 {
			return nil, fmt.Errorf("condition %s: %w", conditionID, ErrMarketNotFound)
		}
		return &markets[0], nil
	}

	var single Market
	if err := json.Unmarshal(body, &single); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &single, nil
}
