package source

import (
	"context"
	"encoding/hex"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/foresynth/radar/internal/radar"
)

var mockMarkets = []string{
	"Trump to announce Bitcoin Strategic Reserve?",
	"Will Fed cut rates in March?",
	"Bitcoin > $100k before 2026?",
	"Taylor Swift vs Kanye West Debate?",
	"GPT-5 Release Date?",
	"ETH ETF Approval Odds",
}

// Mock generates plausible observations from a seeded generator. Roughly
// 60% of wallets are rookies (days old, often trading within hours of
// creation), the rest are veterans.
type Mock struct {
	mu    sync.Mutex
	rng   *rand.Rand
	batch int
	now   func() time.Time
}

// NewMock creates a mock source emitting batch observations per fetch.
// A zero seed seeds from the clock.
func NewMock(seed int64, batch int) *Mock {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	if batch <= 0 {
		batch = 20
	}
	return &Mock{
		rng:   rand.New(rand.NewPCG(uint64(seed), uint64(seed)^0x9e3779b97f4a7c15)),
		batch: batch,
		now:   time.Now,
	}
}

func (m *Mock) Name() string { return "mock" }

// Fetch returns the next generated batch
func (m *Mock) Fetch(ctx context.Context) ([]radar.Observation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now().UTC().Truncate(time.Second)
	out := make([]radar.Observation, m.batch)
	for i := range out {
		out[i] = m.next(now)
	}
	return out, nil
}

func (m *Mock) next(now time.Time) radar.Observation {
	var wake int64
	if m.rng.Float64() > 0.4 {
		// Rookie: half wake within a day, the rest within 20 days
		if m.rng.Float64() < 0.5 {
			wake = m.between(300, 86400)
		} else {
			wake = m.between(86400, 20*86400)
		}
	} else {
		wake = m.between(30*86400, 365*86400)
	}

	tradeAt := now.Add(-time.Duration(m.between(1, 48)) * time.Hour)
	size := float64(m.between(500, 50000))

	side := radar.SideNo
	if m.rng.Float64() > 0.5 {
		side = radar.SideYes
	}

	return radar.Observation{
		WalletAddress:   m.address(),
		WalletCreatedAt: tradeAt.Add(-time.Duration(wake) * time.Second),
		TradeAt:         tradeAt,
		MarketTitle:     mockMarkets[m.rng.IntN(len(mockMarkets))],
		Side:            side,
		TradeSizeUSD:    size,
		MarketVolumeUSD: float64(int64(size * (1.2 + 8.8*m.rng.Float64()))),
	}
}

// between returns a uniform integer in [lo, hi]
func (m *Mock) between(lo, hi int64) int64 {
	return lo + m.rng.Int64N(hi-lo+1)
}

func (m *Mock) address() string {
	b := make([]byte, 20)
	for i := range b {
		b[i] = byte(m.rng.UintN(256))
	}
	return "0x" + hex.EncodeToString(b)
}
