// Package feed serves filtered, ranked views of stored signals with a
// short-lived response cache.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/foresynth/radar/internal/cache"
	"github.com/foresynth/radar/internal/metrics"
	"github.com/foresynth/radar/internal/radar"
	"github.com/sirupsen/logrus"
)

const (
	keyPrefix     = "radar:feed:"
	generationKey = keyPrefix + "gen"
)

// Store is the signal repository the feed reads from and the ingest path
// writes to
type Store interface {
	// SaveSignals persists signals and returns those whose id was not
	// already stored
	SaveSignals(ctx context.Context, signals []radar.Signal) ([]radar.Signal, error)
	GetSignal(ctx context.Context, id string) (radar.Signal, error)
	ListSignals(ctx context.Context, q radar.Query) ([]radar.Signal, error)
	SignalsByWallet(ctx context.Context, wallet string, limit int) ([]radar.Signal, error)
}

// Service answers feed queries
type Service struct {
	store Store
	cache cache.Cache
	ttl   time.Duration
	log   *logrus.Logger
}

// NewService creates a feed service. A zero ttl disables caching.
func NewService(store Store, c cache.Cache, ttl time.Duration, log *logrus.Logger) *Service {
	return &Service{
		store: store,
		cache: c,
		ttl:   ttl,
		log:   log,
	}
}

// Feed returns the stored signals matching q in ranking order
func (s *Service) Feed(ctx context.Context, q radar.Query) ([]radar.Signal, error) {
	if s.ttl <= 0 || s.cache == nil {
		metrics.RecordFeedQuery("bypass")
		return s.load(ctx, q)
	}

	key := s.key(ctx, q)
	if data, ok := s.cache.Get(ctx, key); ok {
		var signals []radar.Signal
		if err := json.Unmarshal(data, &signals); err == nil {
			metrics.RecordFeedQuery("hit")
			return signals, nil
		}
		s.log.WithField("key", key).Warn("Discarding undecodable feed cache entry")
	}

	metrics.RecordFeedQuery("miss")
	signals, err := s.load(ctx, q)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(signals); err == nil {
		if err := s.cache.Set(ctx, key, data, s.ttl); err != nil {
			s.log.WithError(err).Warn("Failed to cache feed response")
		}
	}
	return signals, nil
}

func (s *Service) load(ctx context.Context, q radar.Query) ([]radar.Signal, error) {
	signals, err := s.store.ListSignals(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list signals: %w", err)
	}
	// The store may push predicates down; re-applying is idempotent and
	// pins the ranking order.
	signals = radar.Apply(signals, q)
	if signals == nil {
		signals = []radar.Signal{}
	}
	return signals, nil
}

// Signal returns one stored signal by id
func (s *Service) Signal(ctx context.Context, id string) (radar.Signal, error) {
	return s.store.GetSignal(ctx, id)
}

// ByWallet returns a wallet's stored signals in ranking order
func (s *Service) ByWallet(ctx context.Context, wallet string, limit int) ([]radar.Signal, error) {
	signals, err := s.store.SignalsByWallet(ctx, wallet, limit)
	if err != nil {
		return nil, fmt.Errorf("signals by wallet: %w", err)
	}
	if signals == nil {
		signals = []radar.Signal{}
	}
	return signals, nil
}

// Invalidate expires every cached feed response
func (s *Service) Invalidate(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	if _, err := s.cache.Incr(ctx, generationKey); err != nil {
		return fmt.Errorf("bump feed cache generation: %w", err)
	}
	return nil
}

func (s *Service) key(ctx context.Context, q radar.Query) string {
	gen := "0"
	if v, ok := s.cache.Get(ctx, generationKey); ok {
		gen = string(v)
	}
	return keyPrefix + "v" + gen + ":" + QueryKey(q)
}

// QueryKey normalizes q so equivalent queries share a cache entry
func QueryKey(q radar.Query) string {
	age := "any"
	if q.HasMaxWalletAge {
		age = strconv.Itoa(q.MaxWalletAgeDays)
	}
	search := url.QueryEscape(strings.ToLower(strings.TrimSpace(q.Search)))
	return fmt.Sprintf("min=%d&age=%s&q=%s&limit=%d", q.MinScore, age, search, q.Limit)
}
