package radar

import (
	"fmt"
	"math"
	"sync"
	"time"
)

const secondsPerDay = 86400

// Features are the secondary signals derived from one observation
type Features struct {
	WalletAgeDays          int     `json:"wallet_age_days"`
	WakeTimeSeconds        int64   `json:"wake_time_seconds"`
	SpeedRatio             float64 `json:"speed_ratio"`
	VolumeConcentrationPct int     `json:"volume_concentration_pct"`
}

// Extract derives the features of an observation. It is a pure function of
// its input and fails with ErrInvalidObservation when the observation breaks
// an invariant, including a trade that precedes wallet creation.
func Extract(o Observation) (Features, error) {
	if err := o.Validate(); err != nil {
		return Features{}, err
	}

	wake := wholeSeconds(o.WalletCreatedAt, o.TradeAt)
	age := int(wake / secondsPerDay)

	return Features{
		WalletAgeDays:          age,
		WakeTimeSeconds:        wake,
		SpeedRatio:             speedRatio(wake, age),
		VolumeConcentrationPct: volumeConcentration(o.TradeSizeUSD, o.MarketVolumeUSD),
	}, nil
}

// wholeSeconds returns to-from truncated to whole seconds. Unlike
// time.Duration it does not saturate for spans over 292 years.
func wholeSeconds(from, to time.Time) int64 {
	secs := to.Unix() - from.Unix()
	nanos := to.Nanosecond() - from.Nanosecond()
	if secs > 0 && nanos < 0 {
		secs--
	} else if secs < 0 && nanos > 0 {
		secs++
	}
	return secs
}

// speedRatio compares wake time to the wallet's whole-day lifetime. Wallets
// younger than a day count as maximal urgency.
func speedRatio(wakeSeconds int64, ageDays int) float64 {
	if ageDays == 0 {
		return 100.0
	}
	ratio := float64(wakeSeconds) / float64(int64(ageDays)*secondsPerDay) * 100
	return math.Round(ratio*10) / 10
}

func volumeConcentration(tradeSize, marketVolume float64) int {
	if marketVolume == 0 {
		return 0
	}
	pct := math.Round(tradeSize / marketVolume * 100)
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return int(pct)
}

// FormatWakeTime renders a wake time as "<hours>h <minutes>m"
func FormatWakeTime(seconds int64) string {
	return fmt.Sprintf("%dh %dm", seconds/3600, (seconds%3600)/60)
}

// FeatureCache memoizes extracted features per observation fingerprint so
// that repeated filtering and re-ranking never re-derive them.
type FeatureCache struct {
	mu      sync.RWMutex
	entries map[string]Features
	maxSize int
}

// NewFeatureCache creates a cache holding at most maxSize entries. A
// non-positive maxSize means unbounded.
func NewFeatureCache(maxSize int) *FeatureCache {
	return &FeatureCache{
		entries: make(map[string]Features),
		maxSize: maxSize,
	}
}

// Extract returns cached features for o, deriving and storing them on a miss.
// Invalid observations are never cached.
func (c *FeatureCache) Extract(o Observation) (Features, bool, error) {
	key := o.Fingerprint()

	c.mu.RLock()
	f, ok := c.entries[key]
	c.mu.RUnlock()
	if ok {
		return f, true, nil
	}

	f, err := Extract(o)
	if err != nil {
		return Features{}, false, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	// Full reset when over capacity
	if c.maxSize > 0 && len(c.entries) >= c.maxSize {
		c.entries = make(map[string]Features)
	}
	c.entries[key] = f
	return f, false, nil
}

// Len reports the number of cached entries
func (c *FeatureCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
