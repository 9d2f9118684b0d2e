package alerts

import (
	"context"
	"time"

	"github.com/foresynth/radar/internal/radar"
)

// Severity represents alert severity
type Severity string

const (
	SeverityInfo  Severity = "INFO"
	SeverityWarn  Severity = "WARN"
	SeverityAlert Severity = "ALERT"
)

// SeverityFor maps a radar tier to an alert severity
func SeverityFor(t radar.Tier) Severity {
	switch t {
	case radar.TierExtreme:
		return SeverityAlert
	case radar.TierHigh:
		return SeverityWarn
	default:
		return SeverityInfo
	}
}

// AlertPayload contains all information for an alert
type AlertPayload struct {
	Severity    Severity
	Signal      radar.Signal
	Breakdown   radar.Breakdown
	WalletShort string // Shortened for display
	Timestamp   time.Time
	Environment string
}

// NewPayload builds the alert for a scored signal
func NewPayload(s radar.Signal, b radar.Breakdown, environment string, now time.Time) *AlertPayload {
	return &AlertPayload{
		Severity:    SeverityFor(s.Tier),
		Signal:      s,
		Breakdown:   b,
		WalletShort: ShortenAddress(s.WalletAddress),
		Timestamp:   now,
		Environment: environment,
	}
}

// Sender defines the interface for alert senders
type Sender interface {
	Send(ctx context.Context, payload *AlertPayload) error
}

// ShortenAddress renders 0x1234...abcd
func ShortenAddress(addr string) string {
	if len(addr) <= 12 {
		return addr
	}
	return addr[:6] + "..." + addr[len(addr)-4:]
}

// reasons lists the rules that fired, in display order
func reasons(b radar.Breakdown) []string {
	var out []string
	if b.FreshWallet {
		out = append(out, "fresh wallet")
	}
	if b.LargeTrade {
		out = append(out, "large trade")
	}
	if b.FastWake {
		out = append(out, "fast wake")
	}
	return out
}
