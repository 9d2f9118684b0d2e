package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/foresynth/radar/internal/radar"
)

// MemoryStore is an in-process store with the same contract as DB. Used
// with STORE_MODE=memory and in tests.
type MemoryStore struct {
	mu      sync.RWMutex
	signals map[string]radar.Signal
	state   map[string]string
	alerts  []AlertRecord
	wallets map[string]Wallet
	markets map[string]Market
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		signals: make(map[string]radar.Signal),
		state:   make(map[string]string),
		wallets: make(map[string]Wallet),
		markets: make(map[string]Market),
	}
}

// Ping always succeeds
func (m *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

// SaveSignals stores signals whose id is new and returns them
func (m *MemoryStore) SaveSignals(ctx context.Context, signals []radar.Signal) ([]radar.Signal, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var inserted []radar.Signal
	for _, s := range signals {
		if _, ok := m.signals[s.ID]; ok {
			continue
		}
		m.signals[s.ID] = s
		inserted = append(inserted, s)
	}
	return inserted, nil
}

// GetSignal retrieves a signal by id
func (m *MemoryStore) GetSignal(ctx context.Context, id string) (radar.Signal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.signals[id]
	if !ok {
		return radar.Signal{}, fmt.Errorf("signal %s: %w", id, ErrNotFound)
	}
	return s, nil
}

// ListSignals returns stored signals matching q in ranking order
func (m *MemoryStore) ListSignals(ctx context.Context, q radar.Query) ([]radar.Signal, error) {
	return radar.Apply(m.snapshot(), q), nil
}

// SignalsByWallet returns a wallet's signals in ranking order
func (m *MemoryStore) SignalsByWallet(ctx context.Context, wallet string, limit int) ([]radar.Signal, error) {
	var out []radar.Signal
	for _, s := range m.snapshot() {
		if s.WalletAddress == wallet {
			out = append(out, s)
		}
	}
	out = radar.Rank(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) snapshot() []radar.Signal {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]radar.Signal, 0, len(m.signals))
	for _, s := range m.signals {
		out = append(out, s)
	}
	return out
}

// GetState retrieves a state value by key
func (m *MemoryStore) GetState(ctx context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state[key], nil
}

// SetState sets a state value
func (m *MemoryStore) SetState(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state[key] = value
	return nil
}

// LastAlertAt returns when the wallet was last alerted, zero if never
func (m *MemoryStore) LastAlertAt(ctx context.Context, wallet string) (time.Time, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var latest int64
	for _, a := range m.alerts {
		if a.WalletAddress == wallet && a.CreatedTS > latest {
			latest = a.CreatedTS
		}
	}
	if latest == 0 {
		return time.Time{}, nil
	}
	return time.Unix(latest, 0), nil
}

// RecordAlert stores an alert record
func (m *MemoryStore) RecordAlert(ctx context.Context, alert *AlertRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if alert.CreatedTS == 0 {
		alert.CreatedTS = time.Now().Unix()
	}
	alert.ID = int64(len(m.alerts) + 1)
	m.alerts = append(m.alerts, *alert)
	return nil
}

// Alerts returns a copy of the recorded alerts
func (m *MemoryStore) Alerts() []AlertRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]AlertRecord(nil), m.alerts...)
}

// GetWallet retrieves a cached wallet, nil if unknown
func (m *MemoryStore) GetWallet(ctx context.Context, address string) (*Wallet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	w, ok := m.wallets[address]
	if !ok {
		return nil, nil
	}
	return &w, nil
}

// UpsertWallet inserts or updates a wallet record
func (m *MemoryStore) UpsertWallet(ctx context.Context, wallet *Wallet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.wallets[wallet.WalletAddress] = *wallet
	return nil
}

// GetMarket retrieves a cached market, nil if unknown
func (m *MemoryStore) GetMarket(ctx context.Context, conditionID string) (*Market, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	mk, ok := m.markets[conditionID]
	if !ok {
		return nil, nil
	}
	return &mk, nil
}

// UpsertMarket inserts or updates a market mapping
func (m *MemoryStore) UpsertMarket(ctx context.Context, market *Market) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.markets[market.ConditionID] = *market
	return nil
}
