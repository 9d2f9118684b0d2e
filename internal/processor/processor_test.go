package processor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/foresynth/radar/internal/alerts"
	"github.com/foresynth/radar/internal/cache"
	"github.com/foresynth/radar/internal/config"
	"github.com/foresynth/radar/internal/feed"
	"github.com/foresynth/radar/internal/radar"
	"github.com/foresynth/radar/internal/storage"
	"github.com/sirupsen/logrus"
)

var tradeAt = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func observation(wallet string, wake time.Duration, size float64) radar.Observation {
	return radar.Observation{
		WalletAddress:   wallet,
		WalletCreatedAt: tradeAt.Add(-wake),
		TradeAt:         tradeAt,
		MarketTitle:     "Will Fed cut rates in March?",
		Side:            radar.SideYes,
		TradeSizeUSD:    size,
		MarketVolumeUSD: 100000,
	}
}

type stubSource struct {
	batches [][]radar.Observation
	err     error
	commits int
}

func (s *stubSource) Name() string { return "stub" }

func (s *stubSource) Fetch(ctx context.Context) ([]radar.Observation, error) {
	if s.err != nil {
		return nil, s.err
	}
	if len(s.batches) == 0 {
		return nil, nil
	}
	return s.batches[0], nil
}

// Commit drops the delivered batch; uncommitted batches are fetched again
func (s *stubSource) Commit(ctx context.Context) error {
	s.commits++
	if len(s.batches) > 0 {
		s.batches = s.batches[1:]
	}
	return nil
}

// flakyStore fails the first SaveSignals call
type flakyStore struct {
	*storage.MemoryStore
	failed bool
}

func (f *flakyStore) SaveSignals(ctx context.Context, signals []radar.Signal) ([]radar.Signal, error) {
	if !f.failed {
		f.failed = true
		return nil, errors.New("db down")
	}
	return f.MemoryStore.SaveSignals(ctx, signals)
}

type recordingSender struct {
	mu       sync.Mutex
	payloads []*alerts.AlertPayload
	err      error
}

func (r *recordingSender) Send(ctx context.Context, payload *alerts.AlertPayload) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.payloads = append(r.payloads, payload)
	return nil
}

type recordingHub struct {
	signals []radar.Signal
}

func (h *recordingHub) Broadcast(s radar.Signal) {
	h.signals = append(h.signals, s)
}

type fixture struct {
	proc   *Processor
	store  *storage.MemoryStore
	feed   *feed.Service
	sender *recordingSender
	hub    *recordingHub
	src    *stubSource
}

func newFixture(batches ...[]radar.Observation) *fixture {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	cfg := &config.Config{
		Environment:       "test",
		AlertMinScore:     80,
		AlertCooldownMins: 60,
	}
	store := storage.NewMemoryStore()
	feedSvc := feed.NewService(store, cache.NewMemoryCache(), time.Minute, log)
	scorer := radar.NewScorer(radar.DefaultWeights())
	engine := radar.NewEngine(scorer, radar.NewFeatureCache(100), 2)
	sender := &recordingSender{}
	hub := &recordingHub{}
	src := &stubSource{batches: batches}

	proc := New(cfg, src, scorer, engine, store, feedSvc, sender, hub, log)
	proc.now = func() time.Time { return tradeAt.Add(time.Hour) }

	return &fixture{proc: proc, store: store, feed: feedSvc, sender: sender, hub: hub, src: src}
}

func TestRunCyclePersistsAlertsAndBroadcasts(t *testing.T) {
	bad := observation("0xbad", time.Hour, 100)
	bad.Side = "MAYBE"

	f := newFixture([]radar.Observation{
		observation("0xhot", 10*time.Minute, 20000),  // 99
		observation("0xwarm", 3*24*time.Hour, 20000), // 85
		observation("0xcold", 90*24*time.Hour, 100),  // 50
		bad,
	})

	report, err := f.proc.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(report.Signals) != 3 || len(report.Rejected) != 1 {
		t.Fatalf("signals %d rejected %d, want 3 and 1", len(report.Signals), len(report.Rejected))
	}
	if report.Rejected[0].Index != 3 {
		t.Errorf("rejected index: got %d, want 3", report.Rejected[0].Index)
	}
	if len(report.Stored) != 3 {
		t.Errorf("stored: got %d, want 3", len(report.Stored))
	}
	if report.Alerted != 2 || len(f.sender.payloads) != 2 {
		t.Errorf("alerts: report %d, sent %d, want 2", report.Alerted, len(f.sender.payloads))
	}
	if f.sender.payloads[0].Signal.WalletAddress != "0xhot" {
		t.Errorf("first alert should be the highest score, got %s", f.sender.payloads[0].Signal.WalletAddress)
	}
	if len(f.hub.signals) != 3 {
		t.Errorf("broadcasts: got %d, want 3", len(f.hub.signals))
	}
	if got := len(f.store.Alerts()); got != 2 {
		t.Errorf("alert records: got %d, want 2", got)
	}
}

func TestRunCycleSuppressesDuplicates(t *testing.T) {
	batch := []radar.Observation{observation("0xhot", 10*time.Minute, 20000)}
	f := newFixture(batch, batch)

	if _, err := f.proc.RunCycle(context.Background()); err != nil {
		t.Fatalf("first cycle: %v", err)
	}
	report, err := f.proc.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("second cycle: %v", err)
	}

	if len(report.Signals) != 1 {
		t.Errorf("second cycle still scores: got %d", len(report.Signals))
	}
	if len(report.Stored) != 0 {
		t.Errorf("second cycle stored %d, want 0", len(report.Stored))
	}
	if len(f.sender.payloads) != 1 {
		t.Errorf("duplicate re-alerted: %d alerts", len(f.sender.payloads))
	}
	if len(f.hub.signals) != 1 {
		t.Errorf("duplicate re-broadcast: %d", len(f.hub.signals))
	}
}

func TestAlertCooldownPerWallet(t *testing.T) {
	first := observation("0xrepeat", 10*time.Minute, 20000)
	second := observation("0xrepeat", 20*time.Minute, 30000)
	f := newFixture([]radar.Observation{first, second})

	report, err := f.proc.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(report.Stored) != 2 {
		t.Fatalf("stored: got %d, want 2", len(report.Stored))
	}
	if report.Alerted != 1 {
		t.Errorf("alerted: got %d, want 1", report.Alerted)
	}

	// After the cooldown a new signal alerts again
	f.proc.now = func() time.Time { return tradeAt.Add(3 * time.Hour) }
	third := observation("0xrepeat", 5*time.Minute, 50000)
	report, err = f.proc.Ingest(context.Background(), []radar.Observation{third})
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if report.Alerted != 1 {
		t.Errorf("alert after cooldown: got %d, want 1", report.Alerted)
	}
}

func TestRunCycleInvalidatesFeed(t *testing.T) {
	ctx := context.Background()
	f := newFixture([]radar.Observation{observation("0xhot", 10*time.Minute, 20000)})

	before, err := f.feed.Feed(ctx, radar.Query{})
	if err != nil {
		t.Fatalf("feed: %v", err)
	}
	if len(before) != 0 {
		t.Fatalf("expected empty feed, got %d", len(before))
	}

	if _, err := f.proc.RunCycle(ctx); err != nil {
		t.Fatalf("cycle: %v", err)
	}

	after, err := f.feed.Feed(ctx, radar.Query{})
	if err != nil {
		t.Fatalf("feed: %v", err)
	}
	if len(after) != 1 {
		t.Errorf("feed after cycle: got %d signals, want 1", len(after))
	}
}

func TestRunCycleSourceError(t *testing.T) {
	f := newFixture()
	f.src.err = errors.New("upstream down")

	if _, err := f.proc.RunCycle(context.Background()); err == nil {
		t.Error("expected error")
	}
}

func TestSendFailureDoesNotAbortIngest(t *testing.T) {
	f := newFixture([]radar.Observation{
		observation("0xa", 10*time.Minute, 20000),
		observation("0xb", 10*time.Minute, 25000),
	})
	f.sender.err = errors.New("webhook down")

	report, err := f.proc.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(report.Stored) != 2 {
		t.Errorf("stored: got %d, want 2", len(report.Stored))
	}
	if report.Alerted != 0 || len(f.store.Alerts()) != 0 {
		t.Errorf("failed sends must not be recorded: %d, %d", report.Alerted, len(f.store.Alerts()))
	}
}

func TestIngestBatchKeepsParseRejections(t *testing.T) {
	f := newFixture()
	body := `[
		{"wallet_address":"0xa","wallet_created_at":"2026-03-14T11:30:00Z","trade_at":"2026-03-14T12:00:00Z","market_title":"m","side":"YES","trade_size_usd":15000,"market_volume_usd":30000},
		{"wallet_address":"0xb","wallet_created_at":"2026-03-14T11:30:00Z","trade_at":"2026-03-14T12:00:00Z","market_title":"m","side":"YES","trade_size_usd":"lots","market_volume_usd":30000}
	]`
	batch, err := radar.ParseBatch([]byte(body))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	report, err := f.proc.IngestBatch(context.Background(), batch)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if len(report.Signals) != 1 || len(report.Rejected) != 1 || report.Rejected[0].Index != 1 {
		t.Errorf("got signals %d rejected %+v", len(report.Signals), report.Rejected)
	}
}

func TestFailedSaveDoesNotCommitSource(t *testing.T) {
	f := newFixture([]radar.Observation{observation("0xhot", 10*time.Minute, 20000)})
	store := &flakyStore{MemoryStore: f.store}
	f.proc.store = store

	if _, err := f.proc.RunCycle(context.Background()); err == nil {
		t.Fatal("expected save error")
	}
	if f.src.commits != 0 {
		t.Errorf("source committed after failed save: %d", f.src.commits)
	}

	report, err := f.proc.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("retry cycle: %v", err)
	}
	if len(report.Stored) != 1 {
		t.Errorf("retry stored %d, want 1", len(report.Stored))
	}
	if f.src.commits != 1 {
		t.Errorf("commits: got %d, want 1", f.src.commits)
	}
}
