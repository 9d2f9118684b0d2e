package radar

import (
	"context"
	"runtime"
	"sort"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// signalNamespace scopes the name-based signal ids
var signalNamespace = uuid.MustParse("6f1c3a52-4d0e-5b8a-9c47-2e8d5f0a7b13")

// Signal is one scored observation
type Signal struct {
	ID string `json:"id"`
	Observation
	Features
	RadarScore int    `json:"radar_score"`
	Tier       Tier   `json:"tier"`
	WakeTime   string `json:"wake_time"`
}

// SignalID returns the id of the signal scored from o. The id is derived
// from the observation content, so re-scoring yields the same id.
func SignalID(o Observation) string {
	return uuid.NewSHA1(signalNamespace, []byte(o.Fingerprint())).String()
}

// Result is the outcome of scoring a batch: ranked signals for the valid
// observations and a rejection for each invalid one.
type Result struct {
	Signals  []Signal    `json:"signals"`
	Rejected []Rejection `json:"rejected"`
}

// Engine runs extraction, scoring and ranking over observation batches
type Engine struct {
	scorer  *Scorer
	cache   *FeatureCache
	workers int
}

// NewEngine creates an engine. workers bounds concurrent scoring within a
// batch; non-positive means GOMAXPROCS.
func NewEngine(scorer *Scorer, cache *FeatureCache, workers int) *Engine {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if cache == nil {
		cache = NewFeatureCache(0)
	}
	return &Engine{
		scorer:  scorer,
		cache:   cache,
		workers: workers,
	}
}

// ScoreOne turns one observation into a signal
func (e *Engine) ScoreOne(o Observation) (Signal, error) {
	f, _, err := e.cache.Extract(o)
	if err != nil {
		return Signal{}, err
	}
	score := e.scorer.Score(o, f)
	return Signal{
		ID:          SignalID(o),
		Observation: o,
		Features:    f,
		RadarScore:  score,
		Tier:        TierFor(score),
		WakeTime:    FormatWakeTime(f.WakeTimeSeconds),
	}, nil
}

// Process scores a batch. Invalid observations are reported in
// Result.Rejected with their batch index and never abort the rest. Signals
// are returned in ranking order. The only error is ctx cancellation.
func (e *Engine) Process(ctx context.Context, observations []Observation) (*Result, error) {
	signals := make([]Signal, len(observations))
	errs := make([]error, len(observations))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i := range observations {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			signals[i], errs[i] = e.ScoreOne(observations[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := &Result{Signals: make([]Signal, 0, len(observations))}
	for i, err := range errs {
		if err != nil {
			result.Rejected = append(result.Rejected, Rejection{
				Index:         i,
				WalletAddress: observations[i].WalletAddress,
				Reason:        err.Error(),
				Err:           err,
			})
			continue
		}
		result.Signals = append(result.Signals, signals[i])
	}
	result.Signals = Rank(result.Signals)
	return result, nil
}

// ProcessBatch scores a decoded ingest batch. Rejection indexes refer to the
// original input array, covering both decode and validation failures.
func (e *Engine) ProcessBatch(ctx context.Context, batch *Batch) (*Result, error) {
	result, err := e.Process(ctx, batch.Observations)
	if err != nil {
		return nil, err
	}

	rejected := make([]Rejection, 0, len(batch.Rejected)+len(result.Rejected))
	rejected = append(rejected, batch.Rejected...)
	for _, r := range result.Rejected {
		r.Index = batch.Positions[r.Index]
		rejected = append(rejected, r)
	}
	sort.SliceStable(rejected, func(i, j int) bool {
		return rejected[i].Index < rejected[j].Index
	})
	result.Rejected = rejected
	return result, nil
}
