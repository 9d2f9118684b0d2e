package dataapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/foresynth/radar/internal/config"
	"github.com/foresynth/radar/internal/metrics"
	"github.com/foresynth/radar/internal/ratelimit"
)

// ErrNoActivity is returned when a wallet has no recorded activity
var ErrNoActivity = errors.New("no activity")

// Client handles communication with the Polymarket Data API
type Client struct {
	baseURL         string
	httpClient      *http.Client
	authMode        config.AuthMode
	bearerToken     string
	apiKey          string
	extraHeaders    map[string]string
	tradesLimiter   *ratelimit.Limiter
	activityLimiter *ratelimit.Limiter
}

// NewClient creates a new Data API client
func NewClient(cfg *config.Config) *Client {
	return &Client{
		baseURL:         cfg.DataAPIBaseURL,
		httpClient:      &http.Client{Timeout: 30 * time.Second},
		authMode:        cfg.DataAPIAuthMode,
		bearerToken:     cfg.DataAPIBearerToken,
		apiKey:          cfg.DataAPIAPIKey,
		extraHeaders:    cfg.DataAPIExtraHeaders,
		tradesLimiter:   ratelimit.New(cfg.DataAPITradesRPS),
		activityLimiter: ratelimit.New(cfg.DataAPIActivityRPS),
	}
}

// TradeParams holds parameters for the GetTrades call
type TradeParams struct {
	Limit        int
	TakerOnly    bool
	FilterType   string  // CASH
	FilterAmount float64 // minimum notional
}

// GetTrades fetches recent trades, newest first
func (c *Client) GetTrades(ctx context.Context, params TradeParams) ([]Trade, error) {
	q := url.Values{}
	if params.Limit > 0 {
		q.Set("limit", strconv.Itoa(params.Limit))
	}
	if params.TakerOnly {
		q.Set("takerOnly", "true")
	}
	if params.FilterType != "" {
		q.Set("filterType", params.FilterType)
	}
	if params.FilterAmount > 0 {
		q.Set("filterAmount", strconv.FormatFloat(params.FilterAmount, 'f', 2, 64))
	}

	var trades []Trade
	if err := c.get(ctx, c.tradesLimiter, "/trades", q, &trades); err != nil {
		return nil, err
	}
	return trades, nil
}

// GetWalletFirstActivity fetches the earliest activity for a wallet
func (c *Client) GetWalletFirstActivity(ctx context.Context, wallet string) (*ActivityEvent, error) {
	q := url.Values{}
	q.Set("user", wallet)
	q.Set("sortBy", "TIMESTAMP")
	q.Set("sortDirection", "ASC")
	q.Set("limit", "1")

	var activities []ActivityEvent
	if err := c.get(ctx, c.activityLimiter, "/activity", q, &activities); err != nil {
		return nil, err
	}
	if len(activities) == 0 {
		return nil, fmt.Errorf("wallet %s: %w", wallet, ErrNoActivity)
	}
	return &activities[0], nil
}

func (c *Client) get(ctx context.Context, limiter *ratelimit.Limiter, endpoint string, q url.Values, out interface{}) (err error) {
	start := time.Now()
	defer func() {
		metrics.RecordAPIRequest("data", endpoint, time.Since(start), err)
	}()

	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	u, err := url.Parse(c.baseURL + endpoint)
	if err != nil {
		return fmt.Errorf("parse URL: %w", err)
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	c.setAuthHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("401 Unauthorized (auth_mode=%s) - check credentials", c.authMode)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) setAuthHeaders(req *http.Request) {
	switch c.authMode {
	case config.AuthModeBearer:
		req.Header.Set("Authorization", "Bearer "+c.bearerToken)
	case config.AuthModeAPIKey:
		req.Header.Set("X-API-KEY", c.apiKey)
	}

	for k, v := range c.extraHeaders {
		req.Header.Set(k, v)
	}
}
