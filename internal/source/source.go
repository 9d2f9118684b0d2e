// Package source produces observation batches for the scoring pipeline,
// either from the live Polymarket APIs or from a seeded generator.
package source

import (
	"context"

	"github.com/foresynth/radar/internal/radar"
)

// Source yields the next batch of observations
type Source interface {
	Name() string
	Fetch(ctx context.Context) ([]radar.Observation, error)
}

// Committer is implemented by sources that keep a read position. Commit
// advances it past the last fetched batch; until then the same records are
// fetched again.
type Committer interface {
	Commit(ctx context.Context) error
}
