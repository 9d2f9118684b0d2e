package radar

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidObservation marks an observation that cannot be scored
var ErrInvalidObservation = errors.New("invalid observation")

// Side is the outcome a trade bought into
type Side string

const (
	SideYes Side = "YES"
	SideNo  Side = "NO"
)

// Observation is one trade by one wallet on one market
type Observation struct {
	WalletAddress   string    `json:"wallet_address"`
	WalletCreatedAt time.Time `json:"wallet_created_at"`
	TradeAt         time.Time `json:"trade_at"`
	MarketTitle     string    `json:"market_title"`
	Side            Side      `json:"side"`
	TradeSizeUSD    float64   `json:"trade_size_usd"`
	MarketVolumeUSD float64   `json:"market_volume_usd"`
}

// Validate checks the observation invariants
func (o Observation) Validate() error {
	if strings.TrimSpace(o.WalletAddress) == "" {
		return fmt.Errorf("%w: wallet_address is required", ErrInvalidObservation)
	}
	if o.WalletCreatedAt.IsZero() {
		return fmt.Errorf("%w: wallet_created_at is required", ErrInvalidObservation)
	}
	if o.TradeAt.IsZero() {
		return fmt.Errorf("%w: trade_at is required", ErrInvalidObservation)
	}
	if o.Side != SideYes && o.Side != SideNo {
		return fmt.Errorf("%w: side must be YES or NO, got %q", ErrInvalidObservation, o.Side)
	}
	if err := checkAmount("trade_size_usd", o.TradeSizeUSD); err != nil {
		return err
	}
	if err := checkAmount("market_volume_usd", o.MarketVolumeUSD); err != nil {
		return err
	}
	if o.TradeAt.Before(o.WalletCreatedAt) {
		return fmt.Errorf("%w: trade_at %s precedes wallet_created_at %s",
			ErrInvalidObservation,
			o.TradeAt.UTC().Format(time.RFC3339),
			o.WalletCreatedAt.UTC().Format(time.RFC3339),
		)
	}
	return nil
}

// Fingerprint identifies an observation by content. Identical observations
// share a fingerprint. Fields are length-prefixed so free text cannot shift
// a boundary.
func (o Observation) Fingerprint() string {
	fields := [...]string{
		o.WalletAddress,
		fingerprintTime(o.WalletCreatedAt),
		fingerprintTime(o.TradeAt),
		o.MarketTitle,
		string(o.Side),
		strconv.FormatFloat(o.TradeSizeUSD, 'g', -1, 64),
		strconv.FormatFloat(o.MarketVolumeUSD, 'g', -1, 64),
	}

	var b strings.Builder
	for _, f := range fields {
		b.WriteString(strconv.Itoa(len(f)))
		b.WriteByte(':')
		b.WriteString(f)
	}
	return b.String()
}

// fingerprintTime is exact for any representable time, unlike UnixNano
func fingerprintTime(t time.Time) string {
	return strconv.FormatInt(t.Unix(), 10) + "." + strconv.Itoa(t.Nanosecond())
}

func checkAmount(field string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("%w: %s is not a finite number", ErrInvalidObservation, field)
	}
	if v < 0 {
		return fmt.Errorf("%w: %s must be non-negative, got %v", ErrInvalidObservation, field, v)
	}
	return nil
}

// Rejection is an observation excluded from a batch, with the reason
type Rejection struct {
	Index         int    `json:"index"`
	WalletAddress string `json:"wallet_address,omitempty"`
	Reason        string `json:"reason"`
	Err           error  `json:"-"`
}

// wireObservation is the ingest JSON shape. Amounts stay raw so that one
// malformed record does not fail the whole array decode.
type wireObservation struct {
	WalletAddress   string          `json:"wallet_address"`
	WalletCreatedAt string          `json:"wallet_created_at"`
	TradeAt         string          `json:"trade_at"`
	MarketTitle     string          `json:"market_title"`
	Side            string          `json:"side"`
	TradeSizeUSD    json.RawMessage `json:"trade_size_usd"`
	MarketVolumeUSD json.RawMessage `json:"market_volume_usd"`
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Batch is a decoded ingest array. Positions[i] is the index in the input
// array that Observations[i] came from.
type Batch struct {
	Observations []Observation
	Positions    []int
	Rejected     []Rejection
}

// ParseBatch decodes an ingest JSON array. Records that fail to decode are
// returned as rejections. Only a body that is not a JSON array is an error.
func ParseBatch(data []byte) (*Batch, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("decode batch: %w", err)
	}

	batch := &Batch{
		Observations: make([]Observation, 0, len(items)),
		Positions:    make([]int, 0, len(items)),
	}

	for i, item := range items {
		var w wireObservation
		if err := json.Unmarshal(item, &w); err != nil {
			err = fmt.Errorf("%w: %v", ErrInvalidObservation, err)
			batch.Rejected = append(batch.Rejected, Rejection{Index: i, Reason: err.Error(), Err: err})
			continue
		}

		obs, err := w.toObservation()
		if err != nil {
			batch.Rejected = append(batch.Rejected, Rejection{
				Index:         i,
				WalletAddress: w.WalletAddress,
				Reason:        err.Error(),
				Err:           err,
			})
			continue
		}

		batch.Observations = append(batch.Observations, obs)
		batch.Positions = append(batch.Positions, i)
	}

	return batch, nil
}

func (w wireObservation) toObservation() (Observation, error) {
	createdAt, err := parseTimestamp("wallet_created_at", w.WalletCreatedAt)
	if err != nil {
		return Observation{}, err
	}
	tradeAt, err := parseTimestamp("trade_at", w.TradeAt)
	if err != nil {
		return Observation{}, err
	}
	size, err := parseAmount("trade_size_usd", w.TradeSizeUSD)
	if err != nil {
		return Observation{}, err
	}
	volume, err := parseAmount("market_volume_usd", w.MarketVolumeUSD)
	if err != nil {
		return Observation{}, err
	}

	return Observation{
		WalletAddress:   strings.TrimSpace(w.WalletAddress),
		WalletCreatedAt: createdAt,
		TradeAt:         tradeAt,
		MarketTitle:     w.MarketTitle,
		Side:            Side(strings.ToUpper(strings.TrimSpace(w.Side))),
		TradeSizeUSD:    size,
		MarketVolumeUSD: volume,
	}, nil
}

func parseTimestamp(field, s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("%w: %s is required", ErrInvalidObservation, field)
	}
	for _, layout := range timestampLayouts {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		if t.IsZero() {
			return time.Time{}, fmt.Errorf("%w: %s %q is the zero time", ErrInvalidObservation, field, s)
		}
		return t.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("%w: %s %q is not an ISO-8601 timestamp", ErrInvalidObservation, field, s)
}

func parseAmount(field string, raw json.RawMessage) (float64, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, fmt.Errorf("%w: %s is required", ErrInvalidObservation, field)
	}
	// Quoted values are rejected even if they look numeric
	if raw[0] == '"' {
		return 0, fmt.Errorf("%w: %s must be a number, got %s", ErrInvalidObservation, field, raw)
	}
	v, err := strconv.ParseFloat(string(raw), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be a number, got %s", ErrInvalidObservation, field, raw)
	}
	return v, nil
}
