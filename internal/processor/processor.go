package processor

import (
	"context"
	"fmt"
	"time"

	"github.com/foresynth/radar/internal/alerts"
	"github.com/foresynth/radar/internal/config"
	"github.com/foresynth/radar/internal/feed"
	"github.com/foresynth/radar/internal/metrics"
	"github.com/foresynth/radar/internal/radar"
	"github.com/foresynth/radar/internal/source"
	"github.com/foresynth/radar/internal/storage"
	"github.com/sirupsen/logrus"
)

// Store persists signals and alert history
type Store interface {
	feed.Store
	LastAlertAt(ctx context.Context, wallet string) (time.Time, error)
	RecordAlert(ctx context.Context, alert *storage.AlertRecord) error
}

// Broadcaster pushes newly stored signals to live subscribers
type Broadcaster interface {
	Broadcast(s radar.Signal)
}

// Report is the outcome of ingesting one batch
type Report struct {
	*radar.Result
	// Stored are the signals persisted for the first time, in ranking order
	Stored  []radar.Signal
	Alerted int
}

// Processor scores observation batches and fans the results out to the
// store, feed cache, alert senders and live subscribers
type Processor struct {
	cfg         *config.Config
	source      source.Source
	engine      *radar.Engine
	scorer      *radar.Scorer
	store       Store
	feed        *feed.Service
	alertSender alerts.Sender
	hub         Broadcaster
	log         *logrus.Logger
	now         func() time.Time
}

// New creates a new processor. hub may be nil.
func New(
	cfg *config.Config,
	src source.Source,
	scorer *radar.Scorer,
	engine *radar.Engine,
	store Store,
	feedSvc *feed.Service,
	alertSender alerts.Sender,
	hub Broadcaster,
	log *logrus.Logger,
) *Processor {
	return &Processor{
		cfg:         cfg,
		source:      src,
		engine:      engine,
		scorer:      scorer,
		store:       store,
		feed:        feedSvc,
		alertSender: alertSender,
		hub:         hub,
		log:         log,
		now:         time.Now,
	}
}

// RunCycle fetches one batch from the source and ingests it
func (p *Processor) RunCycle(ctx context.Context) (report *Report, err error) {
	defer func() {
		metrics.RecordCycle(p.source.Name(), err)
	}()

	observations, err := p.source.Fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch observations from %s: %w", p.source.Name(), err)
	}

	report, err = p.Ingest(ctx, observations)
	if err != nil {
		return nil, err
	}

	// Only advance the source once the batch is stored
	if c, ok := p.source.(source.Committer); ok {
		if err := c.Commit(ctx); err != nil {
			p.log.WithError(err).WithField("source", p.source.Name()).Error("Failed to commit source checkpoint")
		}
	}

	p.log.WithFields(logrus.Fields{
		"source":   p.source.Name(),
		"fetched":  len(observations),
		"scored":   len(report.Signals),
		"rejected": len(report.Rejected),
		"stored":   len(report.Stored),
		"alerted":  report.Alerted,
	}).Info("Ingest cycle complete")

	return report, nil
}

// Ingest scores observations and persists the result
func (p *Processor) Ingest(ctx context.Context, observations []radar.Observation) (*Report, error) {
	start := time.Now()
	result, err := p.engine.Process(ctx, observations)
	if err != nil {
		return nil, fmt.Errorf("score batch: %w", err)
	}
	return p.persist(ctx, result, time.Since(start))
}

// IngestBatch scores a parsed input batch, keeping parse rejections, and
// persists the result
func (p *Processor) IngestBatch(ctx context.Context, batch *radar.Batch) (*Report, error) {
	start := time.Now()
	result, err := p.engine.ProcessBatch(ctx, batch)
	if err != nil {
		return nil, fmt.Errorf("score batch: %w", err)
	}
	return p.persist(ctx, result, time.Since(start))
}

func (p *Processor) persist(ctx context.Context, result *radar.Result, took time.Duration) (*Report, error) {
	scores := make([]int, len(result.Signals))
	for i, s := range result.Signals {
		scores[i] = s.RadarScore
	}
	metrics.RecordBatch(took, scores, len(result.Rejected))

	for _, r := range result.Rejected {
		p.log.WithFields(logrus.Fields{
			"index":  r.Index,
			"wallet": r.WalletAddress,
			"reason": r.Reason,
		}).Debug("Observation rejected")
	}

	stored, err := p.store.SaveSignals(ctx, result.Signals)
	if err != nil {
		return nil, fmt.Errorf("save signals: %w", err)
	}
	metrics.SignalsStored.Add(float64(len(stored)))

	report := &Report{Result: result, Stored: stored}
	if len(stored) == 0 {
		return report, nil
	}

	if p.feed != nil {
		if err := p.feed.Invalidate(ctx); err != nil {
			p.log.WithError(err).Warn("Failed to invalidate feed cache")
		}
	}

	for _, s := range stored {
		if p.hub != nil {
			p.hub.Broadcast(s)
		}
		if s.RadarScore < p.cfg.AlertMinScore {
			continue
		}
		sent, err := p.alert(ctx, s)
		if err != nil {
			p.log.WithError(err).WithField("signal_id", s.ID).Error("Failed to send alert")
			continue
		}
		if sent {
			report.Alerted++
		}
	}

	return report, nil
}

// alert sends an alert for s unless the wallet is cooling down
func (p *Processor) alert(ctx context.Context, s radar.Signal) (bool, error) {
	now := p.now()
	cooldown := time.Duration(p.cfg.AlertCooldownMins) * time.Minute

	last, err := p.store.LastAlertAt(ctx, s.WalletAddress)
	if err != nil {
		return false, fmt.Errorf("check alert cooldown: %w", err)
	}
	if !last.IsZero() && now.Sub(last) < cooldown {
		metrics.RecordAlert(string(s.Tier), nil, true)
		p.log.WithFields(logrus.Fields{
			"wallet":     alerts.ShortenAddress(s.WalletAddress),
			"last_alert": last.UTC().Format(time.RFC3339),
		}).Debug("Alert suppressed by cooldown")
		return false, nil
	}

	payload := alerts.NewPayload(s, p.scorer.Explain(s.Observation, s.Features), p.cfg.Environment, now)
	err = p.alertSender.Send(ctx, payload)
	metrics.RecordAlert(string(s.Tier), err, false)
	if err != nil {
		return false, err
	}

	if err := p.store.RecordAlert(ctx, &storage.AlertRecord{
		SignalID:      s.ID,
		WalletAddress: s.WalletAddress,
		MarketTitle:   s.MarketTitle,
		RadarScore:    s.RadarScore,
		Tier:          string(s.Tier),
		CreatedTS:     now.Unix(),
	}); err != nil {
		return true, fmt.Errorf("record alert: %w", err)
	}
	return true, nil
}
