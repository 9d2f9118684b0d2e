package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/foresynth/radar/internal/config"
	"github.com/foresynth/radar/internal/metrics"
	"github.com/foresynth/radar/internal/radar"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// ErrNotFound is returned when a looked-up record does not exist
var ErrNotFound = errors.New("not found")

// DB wraps the GORM database connection
type DB struct {
	conn *gorm.DB
	log  *logrus.Logger
}

// New creates a new database connection with GORM
func New(cfg *config.Config, log *logrus.Logger) (*DB, error) {
	// Configure GORM logger
	gormLogger := logger.New(
		&gormLogAdapter{log: log},
		logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	conn, err := gorm.Open(mysql.Open(cfg.DatabaseDSN), &gorm.Config{
		Logger: gormLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.DatabaseMaxConns)
	sqlDB.SetMaxIdleConns(cfg.DatabaseMaxConns / 2)
	sqlDB.SetConnMaxIdleTime(cfg.DatabaseMaxIdleTime)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	log.Info("Database connection established")

	return &DB{conn: conn, log: log}, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	sqlDB, err := db.conn.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ping checks the database is reachable
func (db *DB) Ping(ctx context.Context) error {
	sqlDB, err := db.conn.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// AutoMigrate runs GORM auto-migration
func (db *DB) AutoMigrate() error {
	return db.conn.AutoMigrate(
		&AppState{},
		&SignalRecord{},
		&AlertRecord{},
		&Wallet{},
		&Market{},
	)
}

// SaveSignals inserts signals whose id is not yet stored and returns the
// ones that were new
func (db *DB) SaveSignals(ctx context.Context, signals []radar.Signal) (inserted []radar.Signal, err error) {
	defer track("save_signals", time.Now(), &err)

	if len(signals) == 0 {
		return nil, nil
	}

	ids := make([]string, len(signals))
	for i, s := range signals {
		ids[i] = s.ID
	}

	err = db.conn.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing []string
		if err := tx.Model(&SignalRecord{}).Where("id IN ?", ids).Pluck("id", &existing).Error; err != nil {
			return fmt.Errorf("lookup existing signals: %w", err)
		}
		seen := make(map[string]bool, len(existing))
		for _, id := range existing {
			seen[id] = true
		}

		var records []SignalRecord
		for _, s := range signals {
			if seen[s.ID] {
				continue
			}
			seen[s.ID] = true
			records = append(records, NewSignalRecord(s))
			inserted = append(inserted, s)
		}
		if len(records) == 0 {
			return nil
		}
		return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&records).Error
	})
	if err != nil {
		return nil, err
	}
	return inserted, nil
}

// GetSignal retrieves a signal by id
func (db *DB) GetSignal(ctx context.Context, id string) (s radar.Signal, err error) {
	defer track("get_signal", time.Now(), &err)

	var record SignalRecord
	result := db.conn.WithContext(ctx).Where("id = ?", id).First(&record)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return radar.Signal{}, fmt.Errorf("signal %s: %w", id, ErrNotFound)
	}
	if result.Error != nil {
		return radar.Signal{}, result.Error
	}
	return record.Signal(), nil
}

// ListSignals returns stored signals matching q in ranking order
func (db *DB) ListSignals(ctx context.Context, q radar.Query) (signals []radar.Signal, err error) {
	defer track("list_signals", time.Now(), &err)

	query := db.conn.WithContext(ctx).Model(&SignalRecord{})
	if q.MinScore > 0 {
		query = query.Where("radar_score >= ?", q.MinScore)
	}
	if q.HasMaxWalletAge {
		query = query.Where("wallet_age_days <= ?", q.MaxWalletAgeDays)
	}
	if term := strings.ToLower(strings.TrimSpace(q.Search)); term != "" {
		pattern := "%" + escapeLike(term) + "%"
		query = query.Where("LOWER(market_title) LIKE ? OR LOWER(wallet_address) LIKE ?", pattern, pattern)
	}
	query = query.Order("radar_score DESC").Order("trade_at_ms DESC").Order("id ASC")
	if q.Limit > 0 {
		query = query.Limit(q.Limit)
	}

	var records []SignalRecord
	if err := query.Find(&records).Error; err != nil {
		return nil, err
	}
	return toSignals(records), nil
}

// SignalsByWallet returns a wallet's signals in ranking order
func (db *DB) SignalsByWallet(ctx context.Context, wallet string, limit int) (signals []radar.Signal, err error) {
	defer track("signals_by_wallet", time.Now(), &err)

	query := db.conn.WithContext(ctx).
		Where("wallet_address = ?", wallet).
		Order("radar_score DESC").Order("trade_at_ms DESC").Order("id ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var records []SignalRecord
	if err := query.Find(&records).Error; err != nil {
		return nil, err
	}
	return toSignals(records), nil
}

// GetState retrieves a state value by key
func (db *DB) GetState(ctx context.Context, key string) (value string, err error) {
	defer track("get_state", time.Now(), &err)

	var state AppState
	result := db.conn.WithContext(ctx).Where("state_key = ?", key).First(&state)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if result.Error != nil {
		return "", result.Error
	}
	return state.StateValue, nil
}

// SetState sets a state value
func (db *DB) SetState(ctx context.Context, key, value string) (err error) {
	defer track("set_state", time.Now(), &err)

	state := AppState{
		StateKey:   key,
		StateValue: value,
		UpdatedTS:  time.Now().Unix(),
	}
	return db.conn.WithContext(ctx).Save(&state).Error
}

// LastAlertAt returns when the wallet was last alerted, zero if never
func (db *DB) LastAlertAt(ctx context.Context, wallet string) (at time.Time, err error) {
	defer track("last_alert", time.Now(), &err)

	var alert AlertRecord
	result := db.conn.WithContext(ctx).
		Where("wallet_address = ?", wallet).
		Order("created_ts DESC").
		First(&alert)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return time.Time{}, nil
	}
	if result.Error != nil {
		return time.Time{}, result.Error
	}
	return time.Unix(alert.CreatedTS, 0), nil
}

// RecordAlert inserts a new alert record
func (db *DB) RecordAlert(ctx context.Context, alert *AlertRecord) (err error) {
	defer track("record_alert", time.Now(), &err)
	return db.conn.WithContext(ctx).Create(alert).Error
}

// GetWallet retrieves a cached wallet, nil if unknown
func (db *DB) GetWallet(ctx context.Context, address string) (w *Wallet, err error) {
	defer track("get_wallet", time.Now(), &err)

	var wallet Wallet
	result := db.conn.WithContext(ctx).Where("wallet_address = ?", address).First(&wallet)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if result.Error != nil {
		return nil, result.Error
	}
	return &wallet, nil
}

// UpsertWallet inserts or updates a wallet record
func (db *DB) UpsertWallet(ctx context.Context, wallet *Wallet) (err error) {
	defer track("upsert_wallet", time.Now(), &err)
	return db.conn.WithContext(ctx).Save(wallet).Error
}

// GetMarket retrieves a cached market, nil if unknown
func (db *DB) GetMarket(ctx context.Context, conditionID string) (m *Market, err error) {
	defer track("get_market", time.Now(), &err)

	var market Market
	result := db.conn.WithContext(ctx).Where("condition_id = ?", conditionID).First(&market)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if result.Error != nil {
		return nil, result.Error
	}
	return &market, nil
}

// UpsertMarket inserts or updates a market mapping
func (db *DB) UpsertMarket(ctx context.Context, market *Market) (err error) {
	defer track("upsert_market", time.Now(), &err)
	return db.conn.WithContext(ctx).Save(market).Error
}

func toSignals(records []SignalRecord) []radar.Signal {
	signals := make([]radar.Signal, len(records))
	for i, r := range records {
		signals[i] = r.Signal()
	}
	return signals
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func track(operation string, start time.Time, err *error) {
	metrics.RecordStoreQuery(operation, time.Since(start), *err)
}

// gormLogAdapter adapts logrus to GORM's logger interface
type gormLogAdapter struct {
	log *logrus.Logger
}

func (l *gormLogAdapter) Printf(format string, args ...interface{}) {
	l.log.Debugf(format, args...)
}
