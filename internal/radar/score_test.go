package radar

import (
	"testing"
	"time"
)

func TestScore(t *testing.T) {
	s := NewScorer(DefaultWeights())

	tests := []struct {
		name        string
		ageDays     int
		wakeSeconds int64
		size        float64
		expected    int
		description string
	}{
		{
			name:        "every rule fires and clamps",
			ageDays:     2,
			wakeSeconds: 1800,
			size:        15000,
			expected:    99,
			description: "50 + 20 + 15 + 15 = 100, clamped to 99",
		},
		{
			name:        "no rule fires",
			ageDays:     365,
			wakeSeconds: 5_000_000,
			size:        500,
			expected:    50,
			description: "Base score only",
		},
		{
			name:        "fresh wallet only",
			ageDays:     6,
			wakeSeconds: 6 * 86400,
			size:        10000,
			expected:    70,
			description: "50 + 20, size exactly at threshold does not count",
		},
		{
			name:        "age threshold is exclusive",
			ageDays:     7,
			wakeSeconds: 7 * 86400,
			size:        100,
			expected:    50,
			description: "7 days is not fresh",
		},
		{
			name:        "large trade only",
			ageDays:     30,
			wakeSeconds: 30 * 86400,
			size:        10000.01,
			expected:    65,
			description: "50 + 15",
		},
		{
			name:        "fast wake and fresh",
			ageDays:     0,
			wakeSeconds: 3599,
			size:        100,
			expected:    85,
			description: "50 + 20 + 15",
		},
		{
			name:        "wake threshold is exclusive",
			ageDays:     0,
			wakeSeconds: 3600,
			size:        100,
			expected:    70,
			description: "3600s is not a fast wake",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := Observation{TradeSizeUSD: tt.size}
			f := Features{WalletAgeDays: tt.ageDays, WakeTimeSeconds: tt.wakeSeconds}
			if got := s.Score(o, f); got != tt.expected {
				t.Errorf("got %d, want %d\nDescription: %s", got, tt.expected, tt.description)
			}
		})
	}
}

func TestScoreClampsBothEnds(t *testing.T) {
	tests := []struct {
		name     string
		weights  Weights
		expected int
	}{
		{
			name:     "large bonuses clamp to 99",
			weights:  Weights{Base: 90, FreshWalletDays: 7, FreshWalletBonus: 90, FastWakeSeconds: 3600, FastWakeBonus: 90},
			expected: 99,
		},
		{
			name:     "subtractive rules clamp to 0",
			weights:  Weights{Base: 10, FreshWalletDays: 7, FreshWalletBonus: -40, FastWakeSeconds: 3600, FastWakeBonus: -40},
			expected: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewScorer(tt.weights)
			got := s.Score(Observation{}, Features{WalletAgeDays: 0, WakeTimeSeconds: 10})
			if got != tt.expected {
				t.Errorf("got %d, want %d", got, tt.expected)
			}
		})
	}
}

func TestScoreBoundsAndMonotonicity(t *testing.T) {
	s := NewScorer(DefaultWeights())
	ages := []int{0, 1, 6, 7, 8, 30, 365, 5000}
	wakes := []int64{0, 1, 3599, 3600, 3601, 86400, 5_000_000}
	sizes := []float64{0, 1, 9999.99, 10000, 10000.01, 50000, 1e9}

	for _, age := range ages {
		for _, wake := range wakes {
			for _, size := range sizes {
				o := Observation{TradeSizeUSD: size}
				f := Features{WalletAgeDays: age, WakeTimeSeconds: wake}
				score := s.Score(o, f)
				if score < MinScore || score > MaxScore {
					t.Fatalf("score %d out of bounds for age=%d wake=%d size=%.2f", score, age, wake, size)
				}

				// Making the wallet fresh never lowers the score
				fresher := f
				fresher.WalletAgeDays = 3
				if s.Score(o, fresher) < score && age >= 3 {
					t.Errorf("fresher wallet lowered score: age=%d wake=%d size=%.2f", age, wake, size)
				}

				// Making the trade large never lowers the score
				bigger := o
				bigger.TradeSizeUSD = 20000
				if s.Score(bigger, f) < score && size <= 20000 {
					t.Errorf("larger trade lowered score: age=%d wake=%d size=%.2f", age, wake, size)
				}

				// Making the wake fast never lowers the score
				faster := f
				faster.WakeTimeSeconds = 60
				if s.Score(o, faster) < score && wake >= 60 {
					t.Errorf("faster wake lowered score: age=%d wake=%d size=%.2f", age, wake, size)
				}
			}
		}
	}
}

func TestExplain(t *testing.T) {
	s := NewScorer(DefaultWeights())
	o := newObservation("0xexplain", 30*time.Minute, 15000, 30000)
	f, err := Extract(o)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	b := s.Explain(o, f)
	if !b.FreshWallet || !b.LargeTrade || !b.FastWake {
		t.Errorf("expected all rules to fire, got %+v", b)
	}
	if b.Raw != 100 {
		t.Errorf("raw: got %d, want 100", b.Raw)
	}
	if b.Score != 99 {
		t.Errorf("score: got %d, want 99", b.Score)
	}
}

func TestTierFor(t *testing.T) {
	tests := []struct {
		score    int
		expected Tier
	}{
		{99, TierExtreme},
		{80, TierExtreme},
		{79, TierHigh},
		{50, TierHigh},
		{49, TierLow},
		{0, TierLow},
	}

	for _, tt := range tests {
		if got := TierFor(tt.score); got != tt.expected {
			t.Errorf("TierFor(%d): got %s, want %s", tt.score, got, tt.expected)
		}
	}
}
