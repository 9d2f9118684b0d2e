package source

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/foresynth/radar/internal/polymarket/dataapi"
	"github.com/foresynth/radar/internal/polymarket/gammaapi"
	"github.com/foresynth/radar/internal/radar"
	"github.com/foresynth/radar/internal/storage"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

const (
	checkpointKey = "live_last_trade_ts"
	marketTTL     = time.Hour
)

// TradeAPI is the subset of the Data API client the live source uses
type TradeAPI interface {
	GetTrades(ctx context.Context, params dataapi.TradeParams) ([]dataapi.Trade, error)
	GetWalletFirstActivity(ctx context.Context, wallet string) (*dataapi.ActivityEvent, error)
}

// MarketAPI is the subset of the Gamma API client the live source uses
type MarketAPI interface {
	GetMarketByConditionID(ctx context.Context, conditionID string) (*gammaapi.Market, error)
}

// Directory persists the live source's checkpoint and lookup caches
type Directory interface {
	GetState(ctx context.Context, key string) (string, error)
	SetState(ctx context.Context, key, value string) error
	GetWallet(ctx context.Context, address string) (*storage.Wallet, error)
	UpsertWallet(ctx context.Context, wallet *storage.Wallet) error
	GetMarket(ctx context.Context, conditionID string) (*storage.Market, error)
	UpsertMarket(ctx context.Context, market *storage.Market) error
}

// LiveOptions tunes the live source
type LiveOptions struct {
	MinTradeUSD float64
	FetchLimit  int
	Workers     int
}

// Live turns large Data API trades into observations. wallet_created_at is
// the wallet's first recorded activity; market title and volume come from
// Gamma.
type Live struct {
	trades  TradeAPI
	markets MarketAPI
	dir     Directory
	opts    LiveOptions
	log     *logrus.Logger
	lookups singleflight.Group
	now     func() time.Time

	mu      sync.Mutex
	pending int64 // checkpoint to store on Commit, 0 if none
}

// NewLive creates a live source
func NewLive(trades TradeAPI, markets MarketAPI, dir Directory, opts LiveOptions, log *logrus.Logger) *Live {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	return &Live{
		trades:  trades,
		markets: markets,
		dir:     dir,
		opts:    opts,
		log:     log,
		now:     time.Now,
	}
}

func (l *Live) Name() string { return "live" }

// Fetch returns observations for trades newer than the stored checkpoint.
// The checkpoint only moves on Commit.
func (l *Live) Fetch(ctx context.Context) ([]radar.Observation, error) {
	cursorStr, err := l.dir.GetState(ctx, checkpointKey)
	if err != nil {
		return nil, fmt.Errorf("get checkpoint: %w", err)
	}
	var cursor int64
	if cursorStr != "" {
		cursor, _ = strconv.ParseInt(cursorStr, 10, 64)
	}

	trades, err := l.trades.GetTrades(ctx, dataapi.TradeParams{
		Limit:        l.opts.FetchLimit,
		TakerOnly:    true,
		FilterType:   "CASH",
		FilterAmount: l.opts.MinTradeUSD,
	})
	if err != nil {
		return nil, fmt.Errorf("fetch trades: %w", err)
	}

	var fresh []dataapi.Trade
	maxTS := cursor
	for _, t := range trades {
		if t.Timestamp <= cursor {
			continue
		}
		fresh = append(fresh, t)
		if t.Timestamp > maxTS {
			maxTS = t.Timestamp
		}
	}

	l.log.WithFields(logrus.Fields{
		"fetched":    len(trades),
		"new":        len(fresh),
		"checkpoint": cursor,
	}).Debug("Fetched trades from Data API")

	observations := make([]radar.Observation, len(fresh))
	resolved := make([]bool, len(fresh))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.opts.Workers)
	for i, t := range fresh {
		g.Go(func() error {
			o, err := l.observe(gctx, t)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				l.log.WithError(err).WithFields(logrus.Fields{
					"wallet":       t.ProxyWallet,
					"condition_id": t.ConditionID,
				}).Warn("Skipping trade")
				return nil
			}
			observations[i] = o
			resolved[i] = true
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := observations[:0]
	for i, o := range observations {
		if resolved[i] {
			out = append(out, o)
		}
	}

	l.mu.Lock()
	l.pending = 0
	if maxTS > cursor {
		l.pending = maxTS
	}
	l.mu.Unlock()

	return out, nil
}

// Commit stores the checkpoint of the last Fetch
func (l *Live) Commit(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.pending == 0 {
		return nil
	}
	if err := l.dir.SetState(ctx, checkpointKey, strconv.FormatInt(l.pending, 10)); err != nil {
		return fmt.Errorf("set checkpoint: %w", err)
	}
	l.pending = 0
	return nil
}

func (l *Live) observe(ctx context.Context, t dataapi.Trade) (radar.Observation, error) {
	side, err := sideOf(t)
	if err != nil {
		return radar.Observation{}, err
	}

	created, err := l.walletCreatedAt(ctx, t.ProxyWallet, t.Timestamp)
	if err != nil {
		return radar.Observation{}, err
	}

	title, volume := l.market(ctx, t)

	return radar.Observation{
		WalletAddress:   t.ProxyWallet,
		WalletCreatedAt: time.Unix(created, 0).UTC(),
		TradeAt:         time.Unix(t.Timestamp, 0).UTC(),
		MarketTitle:     title,
		Side:            side,
		TradeSizeUSD:    t.Notional(),
		MarketVolumeUSD: volume,
	}, nil
}

// walletCreatedAt returns the wallet's first activity, never later than
// the trade itself
func (l *Live) walletCreatedAt(ctx context.Context, wallet string, tradeTS int64) (int64, error) {
	cached, err := l.dir.GetWallet(ctx, wallet)
	if err != nil {
		return 0, fmt.Errorf("get wallet: %w", err)
	}
	if cached != nil {
		return min(cached.FirstActivityTS, tradeTS), nil
	}

	v, err, _ := l.lookups.Do("wallet:"+wallet, func() (interface{}, error) {
		first := tradeTS
		ev, err := l.trades.GetWalletFirstActivity(ctx, wallet)
		switch {
		case errors.Is(err, dataapi.ErrNoActivity):
			// This trade is the wallet's first activity
		case err != nil:
			return nil, fmt.Errorf("wallet first activity: %w", err)
		default:
			first = ev.Timestamp
		}

		if err := l.dir.UpsertWallet(ctx, &storage.Wallet{
			WalletAddress:   wallet,
			FirstActivityTS: first,
			UpdatedTS:       l.now().Unix(),
		}); err != nil {
			l.log.WithError(err).WithField("wallet", wallet).Warn("Failed to cache wallet")
		}
		return first, nil
	})
	if err != nil {
		return 0, err
	}
	return min(v.(int64), tradeTS), nil
}

// market resolves title and volume, falling back to the trade's own title
// and zero volume when Gamma is unavailable
func (l *Live) market(ctx context.Context, t dataapi.Trade) (string, float64) {
	cached, err := l.dir.GetMarket(ctx, t.ConditionID)
	if err != nil {
		l.log.WithError(err).Warn("Failed to read market cache")
	}
	if cached != nil && l.now().Unix()-cached.UpdatedTS < int64(marketTTL/time.Second) {
		return cached.MarketTitle, cached.VolumeUSD
	}

	v, err, _ := l.lookups.Do("market:"+t.ConditionID, func() (interface{}, error) {
		m, err := l.markets.GetMarketByConditionID(ctx, t.ConditionID)
		if err != nil {
			return nil, err
		}
		record := &storage.Market{
			ConditionID: t.ConditionID,
			MarketSlug:  m.Slug,
			MarketTitle: m.Question,
			VolumeUSD:   m.VolumeNum,
			UpdatedTS:   l.now().Unix(),
		}
		if record.MarketTitle == "" {
			record.MarketTitle = t.Title
		}
		if err := l.dir.UpsertMarket(ctx, record); err != nil {
			l.log.WithError(err).WithField("condition_id", t.ConditionID).Warn("Failed to cache market")
		}
		return record, nil
	})
	if err != nil {
		l.log.WithError(err).WithField("condition_id", t.ConditionID).Warn("Market lookup failed, using trade title")
		if cached != nil {
			return cached.MarketTitle, cached.VolumeUSD
		}
		return t.Title, 0
	}
	m := v.(*storage.Market)
	return m.MarketTitle, m.VolumeUSD
}

// sideOf maps a trade outcome to YES/NO. Named outcomes use the outcome
// index: the first outcome is YES.
func sideOf(t dataapi.Trade) (radar.Side, error) {
	switch strings.ToUpper(strings.TrimSpace(t.Outcome)) {
	case "YES":
		return radar.SideYes, nil
	case "NO":
		return radar.SideNo, nil
	}
	switch t.OutcomeIndex {
	case 0:
		return radar.SideYes, nil
	case 1:
		return radar.SideNo, nil
	}
	return "", fmt.Errorf("unsupported outcome %q (index %d)", t.Outcome, t.OutcomeIndex)
}
