package radar

const (
	// MaxScore is the ceiling of a radar score. 100 is reserved and never
	// produced.
	MaxScore = 99
	// MinScore is the floor of a radar score
	MinScore = 0
)

// Weights holds the additive scoring rules
type Weights struct {
	Base int

	// Fresh wallet: wallet_age_days < FreshWalletDays
	FreshWalletDays  int
	FreshWalletBonus int

	// Large trade: trade_size_usd > LargeTradeUSD
	LargeTradeUSD   float64
	LargeTradeBonus int

	// Fast wake: wake_time_seconds < FastWakeSeconds
	FastWakeSeconds int64
	FastWakeBonus   int
}

// DefaultWeights returns the reference rule set
func DefaultWeights() Weights {
	return Weights{
		Base:             50,
		FreshWalletDays:  7,
		FreshWalletBonus: 20,
		LargeTradeUSD:    10000,
		LargeTradeBonus:  15,
		FastWakeSeconds:  3600,
		FastWakeBonus:    15,
	}
}

// Breakdown records which rules fired for a score
type Breakdown struct {
	Base        int  `json:"base"`
	FreshWallet bool `json:"fresh_wallet"`
	LargeTrade  bool `json:"large_trade"`
	FastWake    bool `json:"fast_wake"`
	Raw         int  `json:"raw"`
	Score       int  `json:"score"`
}

// Scorer maps features to a bounded confidence score
type Scorer struct {
	weights Weights
}

// NewScorer creates a scorer with the given weights
func NewScorer(w Weights) *Scorer {
	return &Scorer{weights: w}
}

// Weights returns the scorer's rule set
func (s *Scorer) Weights() Weights {
	return s.weights
}

// Score returns the radar score for an observation and its features
func (s *Scorer) Score(o Observation, f Features) int {
	return s.Explain(o, f).Score
}

// Explain scores an observation and reports which rules contributed
func (s *Scorer) Explain(o Observation, f Features) Breakdown {
	w := s.weights
	b := Breakdown{Base: w.Base}

	raw := w.Base
	if f.WalletAgeDays < w.FreshWalletDays {
		b.FreshWallet = true
		raw += w.FreshWalletBonus
	}
	if o.TradeSizeUSD > w.LargeTradeUSD {
		b.LargeTrade = true
		raw += w.LargeTradeBonus
	}
	if f.WakeTimeSeconds < w.FastWakeSeconds {
		b.FastWake = true
		raw += w.FastWakeBonus
	}

	b.Raw = raw
	b.Score = clampScore(raw)
	return b
}

func clampScore(raw int) int {
	if raw > MaxScore {
		return MaxScore
	}
	if raw < MinScore {
		return MinScore
	}
	return raw
}

// Tier is the display bucket of a radar score
type Tier string

const (
	TierExtreme Tier = "EXTREME"
	TierHigh    Tier = "HIGH"
	TierLow     Tier = "LOW"
)

// TierFor buckets a radar score
func TierFor(score int) Tier {
	switch {
	case score >= 80:
		return TierExtreme
	case score >= 50:
		return TierHigh
	default:
		return TierLow
	}
}
