package radar

import (
	"sort"
	"strings"
)

// Query narrows and caps a ranked signal set. Zero values are no-ops except
// MaxWalletAgeDays, which is only applied when HasMaxWalletAge is set.
type Query struct {
	MinScore         int
	MaxWalletAgeDays int
	HasMaxWalletAge  bool
	Search           string
	Limit            int
}

// Matches reports whether a signal passes every predicate of q
func (q Query) Matches(s Signal) bool {
	if s.RadarScore < q.MinScore {
		return false
	}
	if q.HasMaxWalletAge && s.WalletAgeDays > q.MaxWalletAgeDays {
		return false
	}
	if term := strings.ToLower(strings.TrimSpace(q.Search)); term != "" {
		if !strings.Contains(strings.ToLower(s.MarketTitle), term) &&
			!strings.Contains(strings.ToLower(s.WalletAddress), term) {
			return false
		}
	}
	return true
}

// Less orders signals by score descending, then most recent trade first,
// then by id so that the order is total.
func Less(a, b Signal) bool {
	if a.RadarScore != b.RadarScore {
		return a.RadarScore > b.RadarScore
	}
	if !a.TradeAt.Equal(b.TradeAt) {
		return a.TradeAt.After(b.TradeAt)
	}
	return a.ID < b.ID
}

// Rank returns a new slice of signals in ranking order. The input is not
// modified.
func Rank(signals []Signal) []Signal {
	out := make([]Signal, len(signals))
	copy(out, signals)
	sort.SliceStable(out, func(i, j int) bool {
		return Less(out[i], out[j])
	})
	return out
}

// Filter returns the signals matching q in their input order. The input is
// not modified and Limit is not applied.
func Filter(signals []Signal, q Query) []Signal {
	out := make([]Signal, 0, len(signals))
	for _, s := range signals {
		if q.Matches(s) {
			out = append(out, s)
		}
	}
	return out
}

// Apply filters, ranks and caps a signal set
func Apply(signals []Signal, q Query) []Signal {
	ranked := Rank(Filter(signals, q))
	if q.Limit > 0 && len(ranked) > q.Limit {
		ranked = ranked[:q.Limit]
	}
	return ranked
}
