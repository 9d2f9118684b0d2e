package storage

import (
	"time"

	"github.com/foresynth/radar/internal/radar"
	"gorm.io/gorm"
)

// AppState stores application state for checkpointing
type AppState struct {
	StateKey   string `gorm:"primaryKey;size:64"`
	StateValue string `gorm:"type:text;not null"`
	UpdatedTS  int64  `gorm:"not null;index"`
}

func (AppState) TableName() string {
	return "app_state"
}

// SignalRecord is a persisted radar signal
type SignalRecord struct {
	ID                     string  `gorm:"primaryKey;size:36"`
	WalletAddress          string  `gorm:"size:128;not null;index"`
	WalletCreatedAtMS      int64   `gorm:"not null"`
	TradeAtMS              int64   `gorm:"not null;index"`
	MarketTitle            string  `gorm:"size:512;not null"`
	Side                   string  `gorm:"size:8;not null"`
	TradeSizeUSD           float64 `gorm:"type:decimal(20,6);not null"`
	MarketVolumeUSD        float64 `gorm:"type:decimal(20,6);not null"`
	WalletAgeDays          int     `gorm:"not null;index"`
	WakeTimeSeconds        int64   `gorm:"not null"`
	SpeedRatio             float64 `gorm:"type:decimal(12,1);not null"`
	VolumeConcentrationPct int     `gorm:"not null"`
	RadarScore             int     `gorm:"not null;index"`
	CreatedTS              int64   `gorm:"not null;index"`
}

func (SignalRecord) TableName() string {
	return "signals"
}

// AlertRecord stores alerts sent for high-score signals
type AlertRecord struct {
	ID            int64  `gorm:"primaryKey;autoIncrement"`
	SignalID      string `gorm:"size:36;not null;index"`
	WalletAddress string `gorm:"size:128;not null;index"`
	MarketTitle   string `gorm:"size:512"`
	RadarScore    int    `gorm:"not null"`
	Tier          string `gorm:"size:16;not null"`
	CreatedTS     int64  `gorm:"not null;index"`
}

func (AlertRecord) TableName() string {
	return "alerts"
}

// Wallet caches a wallet's first on-chain activity
type Wallet struct {
	WalletAddress   string `gorm:"primaryKey;size:128"`
	FirstActivityTS int64  `gorm:"not null"`
	UpdatedTS       int64  `gorm:"not null"`
}

func (Wallet) TableName() string {
	return "wallets"
}

// Market caches market resolution from Gamma API
type Market struct {
	ConditionID string  `gorm:"primaryKey;size:128"`
	MarketSlug  string  `gorm:"size:255;index"`
	MarketTitle string  `gorm:"size:512"`
	VolumeUSD   float64 `gorm:"type:decimal(20,6)"`
	UpdatedTS   int64   `gorm:"not null;index"`
}

func (Market) TableName() string {
	return "market_map"
}

// BeforeCreate hook for timestamps
func (a *AppState) BeforeCreate(tx *gorm.DB) error {
	if a.UpdatedTS == 0 {
		a.UpdatedTS = time.Now().Unix()
	}
	return nil
}

func (s *SignalRecord) BeforeCreate(tx *gorm.DB) error {
	if s.CreatedTS == 0 {
		s.CreatedTS = time.Now().Unix()
	}
	return nil
}

func (a *AlertRecord) BeforeCreate(tx *gorm.DB) error {
	if a.CreatedTS == 0 {
		a.CreatedTS = time.Now().Unix()
	}
	return nil
}

func (w *Wallet) BeforeCreate(tx *gorm.DB) error {
	if w.UpdatedTS == 0 {
		w.UpdatedTS = time.Now().Unix()
	}
	return nil
}

func (m *Market) BeforeCreate(tx *gorm.DB) error {
	if m.UpdatedTS == 0 {
		m.UpdatedTS = time.Now().Unix()
	}
	return nil
}

// NewSignalRecord converts a signal for persistence
func NewSignalRecord(s radar.Signal) SignalRecord {
	return SignalRecord{
		ID:                     s.ID,
		WalletAddress:          s.WalletAddress,
		WalletCreatedAtMS:      s.WalletCreatedAt.UnixMilli(),
		TradeAtMS:              s.TradeAt.UnixMilli(),
		MarketTitle:            s.MarketTitle,
		Side:                   string(s.Side),
		TradeSizeUSD:           s.TradeSizeUSD,
		MarketVolumeUSD:        s.MarketVolumeUSD,
		WalletAgeDays:          s.WalletAgeDays,
		WakeTimeSeconds:        s.WakeTimeSeconds,
		SpeedRatio:             s.SpeedRatio,
		VolumeConcentrationPct: s.VolumeConcentrationPct,
		RadarScore:             s.RadarScore,
	}
}

// Signal converts a record back to a radar signal. Tier and wake time are
// derived, not stored.
func (r SignalRecord) Signal() radar.Signal {
	return radar.Signal{
		ID: r.ID,
		Observation: radar.Observation{
			WalletAddress:   r.WalletAddress,
			WalletCreatedAt: time.UnixMilli(r.WalletCreatedAtMS).UTC(),
			TradeAt:         time.UnixMilli(r.TradeAtMS).UTC(),
			MarketTitle:     r.MarketTitle,
			Side:            radar.Side(r.Side),
			TradeSizeUSD:    r.TradeSizeUSD,
			MarketVolumeUSD: r.MarketVolumeUSD,
		},
		Features: radar.Features{
			WalletAgeDays:          r.WalletAgeDays,
			WakeTimeSeconds:        r.WakeTimeSeconds,
			SpeedRatio:             r.SpeedRatio,
			VolumeConcentrationPct: r.VolumeConcentrationPct,
		},
		RadarScore: r.RadarScore,
		Tier:       radar.TierFor(r.RadarScore),
		WakeTime:   radar.FormatWakeTime(r.WakeTimeSeconds),
	}
}
