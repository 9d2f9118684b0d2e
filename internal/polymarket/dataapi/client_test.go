package dataapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/foresynth/radar/internal/config"
)

func testConfig(baseURL string) *config.Config {
	return &config.Config{
		DataAPIBaseURL:      baseURL,
		DataAPIAuthMode:     config.AuthModeBearer,
		DataAPIBearerToken:  "secret",
		DataAPIExtraHeaders: map[string]string{"X-Client": "radar"},
		DataAPITradesRPS:    100,
		DataAPIActivityRPS:  100,
	}
}

func TestGetTrades(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/trades" {
			t.Errorf("path: got %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("takerOnly") != "true" || q.Get("filterType") != "CASH" || q.Get("filterAmount") != "1000.00" || q.Get("limit") != "50" {
			t.Errorf("unexpected query: %s", r.URL.RawQuery)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("authorization: got %q", got)
		}
		if got := r.Header.Get("X-Client"); got != "radar" {
			t.Errorf("extra header: got %q", got)
		}
		w.Write([]byte(`[{"proxyWallet":"0xabc","side":"BUY","conditionId":"0xc1","size":100,"price":0.5,"timestamp":1773489600,"outcome":"Yes","outcomeIndex":0,"title":"Will Fed cut rates in March?","usdcSize":0}]`))
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL))
	trades, err := c.GetTrades(context.Background(), TradeParams{Limit: 50, TakerOnly: true, FilterType: "CASH", FilterAmount: 1000})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(trades) != 1 {
		t.Fatalf("got %d trades", len(trades))
	}
	if trades[0].Notional() != 50 {
		t.Errorf("notional: got %v, want 50", trades[0].Notional())
	}
}

func TestGetWalletFirstActivity(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantTS  int64
		wantErr error
	}{
		{name: "found", status: http.StatusOK, body: `[{"type":"TRADE","proxyWallet":"0xabc","timestamp":1700000000}]`, wantTS: 1700000000},
		{name: "empty", status: http.StatusOK, body: `[]`, wantErr: ErrNoActivity},
		{name: "server error", status: http.StatusBadGateway, body: `bad gateway`},
		{name: "unauthorized", status: http.StatusUnauthorized, body: ``},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Query().Get("sortDirection") != "ASC" || r.URL.Query().Get("user") != "0xabc" {
					t.Errorf("unexpected query: %s", r.URL.RawQuery)
				}
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			ev, err := NewClient(testConfig(srv.URL)).GetWalletFirstActivity(context.Background(), "0xabc")
			if tt.status != http.StatusOK {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("got %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if ev.Timestamp != tt.wantTS {
				t.Errorf("timestamp: got %d, want %d", ev.Timestamp, tt.wantTS)
			}
		})
	}
}
