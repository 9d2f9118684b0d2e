package radar

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestParseBatch(t *testing.T) {
	tests := []struct {
		name         string
		body         string
		wantObserved int
		wantRejected int
	}{
		{
			name:         "empty array",
			body:         `[]`,
			wantObserved: 0,
			wantRejected: 0,
		},
		{
			name:         "valid record",
			body:         `[{"wallet_address":"0xa","wallet_created_at":"2026-03-01T00:00:00Z","trade_at":"2026-03-02T00:00:00Z","market_title":"m","side":"YES","trade_size_usd":10,"market_volume_usd":100}]`,
			wantObserved: 1,
		},
		{
			name:         "size as string is malformed",
			body:         `[{"wallet_address":"0xa","wallet_created_at":"2026-03-01T00:00:00Z","trade_at":"2026-03-02T00:00:00Z","market_title":"m","side":"YES","trade_size_usd":"10","market_volume_usd":100}]`,
			wantRejected: 1,
		},
		{
			name:         "missing volume",
			body:         `[{"wallet_address":"0xa","wallet_created_at":"2026-03-01T00:00:00Z","trade_at":"2026-03-02T00:00:00Z","market_title":"m","side":"YES","trade_size_usd":10}]`,
			wantRejected: 1,
		},
		{
			name:         "null size",
			body:         `[{"wallet_address":"0xa","wallet_created_at":"2026-03-01T00:00:00Z","trade_at":"2026-03-02T00:00:00Z","market_title":"m","side":"YES","trade_size_usd":null,"market_volume_usd":100}]`,
			wantRejected: 1,
		},
		{
			name:         "boolean size",
			body:         `[{"wallet_address":"0xa","wallet_created_at":"2026-03-01T00:00:00Z","trade_at":"2026-03-02T00:00:00Z","market_title":"m","side":"YES","trade_size_usd":true,"market_volume_usd":100}]`,
			wantRejected: 1,
		},
		{
			name:         "unparseable timestamp",
			body:         `[{"wallet_address":"0xa","wallet_created_at":"yesterday","trade_at":"2026-03-02T00:00:00Z","market_title":"m","side":"YES","trade_size_usd":10,"market_volume_usd":100}]`,
			wantRejected: 1,
		},
		{
			name:         "record is not an object",
			body:         `[42, {"wallet_address":"0xa","wallet_created_at":"2026-03-01","trade_at":"2026-03-02","market_title":"m","side":"NO","trade_size_usd":1e4,"market_volume_usd":0}]`,
			wantObserved: 1,
			wantRejected: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			batch, err := ParseBatch([]byte(tt.body))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(batch.Observations) != tt.wantObserved {
				t.Errorf("observations: got %d, want %d", len(batch.Observations), tt.wantObserved)
			}
			if len(batch.Rejected) != tt.wantRejected {
				t.Errorf("rejected: got %d, want %d", len(batch.Rejected), tt.wantRejected)
			}
			for _, r := range batch.Rejected {
				if !errors.Is(r.Err, ErrInvalidObservation) {
					t.Errorf("rejection should wrap ErrInvalidObservation: %v", r.Err)
				}
				if r.Reason == "" {
					t.Error("rejection has no reason")
				}
			}
		})
	}
}

func TestParseBatchNotAnArray(t *testing.T) {
	for _, body := range []string{`{}`, `"x"`, `not json`, ``} {
		if _, err := ParseBatch([]byte(body)); err == nil {
			t.Errorf("body %q: expected error", body)
		}
	}
}

func TestParseBatchTimestamps(t *testing.T) {
	body := `[{"wallet_address":" 0xa ","wallet_created_at":"2026-03-01T10:00:00+02:00","trade_at":"2026-03-01 09:30:00","market_title":"m","side":"yes","trade_size_usd":10,"market_volume_usd":100}]`

	batch, err := ParseBatch([]byte(body))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(batch.Observations) != 1 {
		t.Fatalf("observations: got %d, rejected %+v", len(batch.Observations), batch.Rejected)
	}

	o := batch.Observations[0]
	if !o.WalletCreatedAt.Equal(time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)) {
		t.Errorf("wallet_created_at: got %s", o.WalletCreatedAt)
	}
	if !o.TradeAt.Equal(time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)) {
		t.Errorf("trade_at: got %s", o.TradeAt)
	}
	if o.WalletAddress != "0xa" {
		t.Errorf("wallet_address not trimmed: %q", o.WalletAddress)
	}
	if o.Side != SideYes {
		t.Errorf("side: got %q", o.Side)
	}
}

func TestFingerprint(t *testing.T) {
	a := newObservation("0xa", time.Hour, 100, 1000)
	b := a
	if a.Fingerprint() != b.Fingerprint() {
		t.Error("identical observations have different fingerprints")
	}

	b.MarketTitle = "different"
	if a.Fingerprint() == b.Fingerprint() {
		t.Error("different observations share a fingerprint")
	}
}

func TestFingerprintFieldBoundaries(t *testing.T) {
	t1 := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	t2 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	t3 := t2.Add(30 * time.Minute)

	a := Observation{
		WalletAddress:   fmt.Sprintf("w|%d", t1.UnixNano()),
		WalletCreatedAt: t2,
		TradeAt:         t3,
		MarketTitle:     "m",
		Side:            SideYes,
		TradeSizeUSD:    100,
		MarketVolumeUSD: 1000,
	}
	b := Observation{
		WalletAddress:   "w",
		WalletCreatedAt: t1,
		TradeAt:         t2,
		MarketTitle:     fmt.Sprintf("%d|m", t3.UnixNano()),
		Side:            SideYes,
		TradeSizeUSD:    100,
		MarketVolumeUSD: 1000,
	}

	if a.Fingerprint() == b.Fingerprint() {
		t.Errorf("observations with shifted separators share a fingerprint: %s", a.Fingerprint())
	}
}

func TestFingerprintOutsideUnixNanoRange(t *testing.T) {
	a := newObservation("0xa", time.Hour, 100, 1000)
	b := a
	a.WalletCreatedAt = time.Date(1600, 1, 1, 0, 0, 0, 0, time.UTC)
	b.WalletCreatedAt = time.Date(1601, 1, 1, 0, 0, 0, 0, time.UTC)

	if a.Fingerprint() == b.Fingerprint() {
		t.Error("distinct pre-1678 timestamps share a fingerprint")
	}
}

func TestParseBatchZeroTimestampReason(t *testing.T) {
	body := `[{"wallet_address":"0xa","wallet_created_at":"0001-01-01T00:00:00Z","trade_at":"2026-03-02T00:00:00Z","market_title":"m","side":"YES","trade_size_usd":10,"market_volume_usd":100}]`

	batch, err := ParseBatch([]byte(body))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(batch.Rejected) != 1 {
		t.Fatalf("rejected: got %d, want 1", len(batch.Rejected))
	}
	reason := batch.Rejected[0].Reason
	if strings.Contains(reason, "required") || !strings.Contains(reason, "zero time") {
		t.Errorf("unexpected reason: %q", reason)
	}
}
