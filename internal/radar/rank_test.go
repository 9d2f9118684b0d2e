package radar

import (
	"reflect"
	"testing"
	"time"
)

func signal(id string, score, ageDays int, tradeAt time.Time, wallet, title string) Signal {
	return Signal{
		ID: id,
		Observation: Observation{
			WalletAddress: wallet,
			TradeAt:       tradeAt,
			MarketTitle:   title,
			Side:          SideYes,
		},
		Features:   Features{WalletAgeDays: ageDays},
		RadarScore: score,
		Tier:       TierFor(score),
	}
}

func ids(signals []Signal) []string {
	out := make([]string, len(signals))
	for i, s := range signals {
		out[i] = s.ID
	}
	return out
}

func sampleSignals() []Signal {
	return []Signal{
		signal("a", 50, 200, baseTradeAt.Add(-5*time.Hour), "0xAAAA1111", "Will Fed cut rates in March?"),
		signal("b", 99, 1, baseTradeAt.Add(-1*time.Hour), "0xBBBB2222", "Bitcoin > $100k before 2026?"),
		signal("c", 85, 3, baseTradeAt.Add(-2*time.Hour), "0xCCCC3333", "GPT-5 Release Date?"),
		signal("d", 65, 40, baseTradeAt.Add(-3*time.Hour), "0xDDDD4444", "ETH ETF Approval Odds"),
		signal("e", 85, 2, baseTradeAt.Add(-1*time.Hour), "0xEEEE5555", "Will Fed cut rates in March?"),
		signal("f", 70, 5, baseTradeAt.Add(-8*time.Hour), "0xFFFF6666", "Taylor Swift vs Kanye West Debate?"),
		signal("g", 50, 365, baseTradeAt.Add(-9*time.Hour), "0x99990000", "Bitcoin > $100k before 2026?"),
		signal("h", 80, 6, baseTradeAt.Add(-4*time.Hour), "0x1234abcd", "ETH ETF Approval Odds"),
		signal("i", 65, 10, baseTradeAt.Add(-6*time.Hour), "0xabcdef01", "GPT-5 Release Date?"),
		signal("j", 70, 9, baseTradeAt.Add(-7*time.Hour), "0xfeedbeef", "Trump to announce Bitcoin Strategic Reserve?"),
	}
}

func TestRankOrder(t *testing.T) {
	ranked := Rank(sampleSignals())

	// e and c tie on score; e traded more recently
	expected := []string{"b", "e", "c", "h", "j", "f", "d", "i", "a", "g"}
	if got := ids(ranked); !reflect.DeepEqual(got, expected) {
		t.Errorf("got %v, want %v", got, expected)
	}
}

func TestRankTieBreaksOnID(t *testing.T) {
	at := baseTradeAt
	in := []Signal{
		signal("z", 70, 1, at, "0x1", "m"),
		signal("m", 70, 1, at, "0x2", "m"),
		signal("a", 70, 1, at, "0x3", "m"),
	}
	expected := []string{"a", "m", "z"}
	if got := ids(Rank(in)); !reflect.DeepEqual(got, expected) {
		t.Errorf("got %v, want %v", got, expected)
	}
}

func TestRankIsStable(t *testing.T) {
	in := sampleSignals()
	first := ids(Rank(in))
	for i := 0; i < 20; i++ {
		if got := ids(Rank(in)); !reflect.DeepEqual(got, first) {
			t.Fatalf("run %d: got %v, want %v", i, got, first)
		}
	}
}

func TestRankDoesNotMutateInput(t *testing.T) {
	in := sampleSignals()
	before := ids(in)
	_ = Rank(in)
	_ = Apply(in, Query{MinScore: 80, Limit: 2})
	if after := ids(in); !reflect.DeepEqual(after, before) {
		t.Errorf("input reordered: got %v, want %v", after, before)
	}
}

func TestFilter(t *testing.T) {
	tests := []struct {
		name     string
		query    Query
		expected []string
	}{
		{
			name:     "empty query keeps all",
			query:    Query{},
			expected: []string{"b", "e", "c", "h", "j", "f", "d", "i", "a", "g"},
		},
		{
			name:     "min score 80",
			query:    Query{MinScore: 80},
			expected: []string{"b", "e", "c", "h"},
		},
		{
			name:     "max wallet age 5",
			query:    Query{MaxWalletAgeDays: 5, HasMaxWalletAge: true},
			expected: []string{"b", "e", "c", "f"},
		},
		{
			name:     "max wallet age 0 applied when set",
			query:    Query{MaxWalletAgeDays: 0, HasMaxWalletAge: true},
			expected: []string{},
		},
		{
			name:     "search market title case-insensitive",
			query:    Query{Search: "bitcoin"},
			expected: []string{"b", "j", "g"},
		},
		{
			name:     "search wallet address case-insensitive",
			query:    Query{Search: "FEEDBEEF"},
			expected: []string{"j"},
		},
		{
			name:     "whitespace search is a no-op",
			query:    Query{Search: "   "},
			expected: []string{"b", "e", "c", "h", "j", "f", "d", "i", "a", "g"},
		},
		{
			name:     "predicates combine with AND",
			query:    Query{MinScore: 60, MaxWalletAgeDays: 10, HasMaxWalletAge: true, Search: "gpt"},
			expected: []string{"c", "i"},
		},
		{
			name:     "limit caps the ranked result",
			query:    Query{MinScore: 70, Limit: 3},
			expected: []string{"b", "e", "c"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ids(Apply(sampleSignals(), tt.query))
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("got %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestFilterIsIdempotent(t *testing.T) {
	queries := []Query{
		{MinScore: 80},
		{MaxWalletAgeDays: 7, HasMaxWalletAge: true},
		{Search: "fed"},
		{MinScore: 50, MaxWalletAgeDays: 30, HasMaxWalletAge: true, Search: "0x"},
	}

	for _, q := range queries {
		once := Filter(sampleSignals(), q)
		twice := Filter(once, q)
		if !reflect.DeepEqual(ids(once), ids(twice)) {
			t.Errorf("query %+v: once %v, twice %v", q, ids(once), ids(twice))
		}
	}
}
