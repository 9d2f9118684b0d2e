package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/foresynth/radar/internal/radar"
	"github.com/foresynth/radar/internal/secrets"
	"github.com/joho/godotenv"
)

// AuthMode represents the authentication mode for Data API
type AuthMode string

const (
	AuthModeNone   AuthMode = "none"
	AuthModeBearer AuthMode = "bearer"
	AuthModeAPIKey AuthMode = "api_key"
)

// SourceMode selects where observations come from
type SourceMode string

const (
	SourceModeLive SourceMode = "live"
	SourceModeMock SourceMode = "mock"
)

// StoreMode selects the signal store backend
type StoreMode string

const (
	StoreModeMySQL  StoreMode = "mysql"
	StoreModeMemory StoreMode = "memory"
)

// ScoringConfig holds the radar score rule weights
type ScoringConfig struct {
	Base             int     `toml:"base"`
	FreshWalletDays  int     `toml:"fresh_wallet_days"`
	FreshWalletBonus int     `toml:"fresh_wallet_bonus"`
	LargeTradeUSD    float64 `toml:"large_trade_usd"`
	LargeTradeBonus  int     `toml:"large_trade_bonus"`
	FastWakeSeconds  int64   `toml:"fast_wake_seconds"`
	FastWakeBonus    int     `toml:"fast_wake_bonus"`
}

// Config holds all application configuration
type Config struct {
	// Environment
	Environment string
	LogLevel    string

	// Wiring
	SourceMode SourceMode
	StoreMode  StoreMode

	// Database
	DatabaseDSN         string
	DatabaseMaxConns    int
	DatabaseMaxIdleTime time.Duration

	// Feed cache
	RedisURL     string
	FeedCacheTTL time.Duration

	// Data API
	DataAPIBaseURL      string
	DataAPIAuthMode     AuthMode
	DataAPIBearerToken  string
	DataAPIAPIKey       string
	DataAPIExtraHeaders map[string]string

	// Gamma API
	GammaAPIBaseURL string

	// Rate limits (requests per second)
	DataAPITradesRPS   float64
	DataAPIActivityRPS float64
	GammaAPIMarketsRPS float64

	// Live ingest
	MinTradeUSD     float64 // Minimum trade size fetched from the Data API
	TradeFetchLimit int

	// Mock ingest
	MockBatchSize int
	MockSeed      int64

	// Scoring
	Scoring           ScoringConfig
	ScoringConfigFile string
	ScoringWorkers    int
	FeatureCacheSize  int

	// Polling
	PollIntervalSec int

	// Alerts
	AlertMode          string // log, discord, smtp (comma-separated)
	AlertMinScore      int
	AlertCooldownMins  int
	DiscordWebhookURLs []string
	SMTPHost           string
	SMTPPort           int
	SMTPUser           string
	SMTPPassword       string
	SMTPFrom           string
	SMTPTo             []string

	// HTTP
	HTTPPort int
}

// Load reads configuration from environment variables, after loading a
// .env file if one is present
func Load() (*Config, error) {
	// Missing .env is not an error
	_ = godotenv.Load()

	cfg := &Config{
		Environment:         getEnv("ENVIRONMENT", "production"),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		SourceMode:          SourceMode(getEnv("SOURCE_MODE", "live")),
		StoreMode:           StoreMode(getEnv("STORE_MODE", "mysql")),
		DatabaseDSN:         secrets.Optional("DATABASE_DSN", "foresynth:foresynth@tcp(mysql:3306)/foresynth?parseTime=true"),
		DatabaseMaxConns:    getEnvInt("DATABASE_MAX_CONNS", 25),
		DatabaseMaxIdleTime: time.Duration(getEnvInt("DATABASE_MAX_IDLE_TIME_MINS", 5)) * time.Minute,
		RedisURL:            secrets.Optional("REDIS_URL", ""),
		FeedCacheTTL:        time.Duration(getEnvInt("FEED_CACHE_TTL_SEC", 30)) * time.Second,
		DataAPIBaseURL:      getEnv("DATA_API_BASE_URL", "https://data-api.polymarket.com"),
		DataAPIAuthMode:     AuthMode(getEnv("DATA_API_AUTH_MODE", "none")),
		DataAPIBearerToken:  secrets.Optional("DATA_API_BEARER_TOKEN", ""),
		DataAPIAPIKey:       secrets.Optional("DATA_API_API_KEY", ""),
		GammaAPIBaseURL:     getEnv("GAMMA_API_BASE_URL", "https://gamma-api.polymarket.com"),
		DataAPITradesRPS:    getEnvFloat("DATA_API_TRADES_RPS", 2.0),
		DataAPIActivityRPS:  getEnvFloat("DATA_API_ACTIVITY_RPS", 1.0),
		GammaAPIMarketsRPS:  getEnvFloat("GAMMA_API_MARKETS_RPS", 5.0),
		MinTradeUSD:         getEnvFloat("MIN_TRADE_USD", 1000.0),
		TradeFetchLimit:     getEnvInt("TRADE_FETCH_LIMIT", 500),
		MockBatchSize:       getEnvInt("MOCK_BATCH_SIZE", 20),
		MockSeed:            int64(getEnvInt("MOCK_SEED", 0)),
		ScoringConfigFile:   getEnv("SCORING_CONFIG_FILE", ""),
		ScoringWorkers:      getEnvInt("SCORING_WORKERS", 4),
		FeatureCacheSize:    getEnvInt("FEATURE_CACHE_SIZE", 10000),
		PollIntervalSec:     getEnvInt("POLL_INTERVAL_SEC", 30),
		AlertMode:           getEnv("ALERT_MODE", "log"),
		AlertMinScore:       getEnvInt("ALERT_MIN_SCORE", 80),
		AlertCooldownMins:   getEnvInt("ALERT_COOLDOWN_MINS", 60),
		DiscordWebhookURLs:  parseCSV(secrets.Optional("DISCORD_WEBHOOK_URLS", "")),
		SMTPHost:            getEnv("SMTP_HOST", ""),
		SMTPPort:            getEnvInt("SMTP_PORT", 587),
		SMTPUser:            getEnv("SMTP_USER", ""),
		SMTPPassword:        secrets.Optional("SMTP_PASSWORD", ""),
		SMTPFrom:            getEnv("SMTP_FROM", "radar@foresynth.local"),
		SMTPTo:              parseCSV(getEnv("SMTP_TO", "")),
		HTTPPort:            getEnvInt("HTTP_PORT", 8080),
	}

	// Scoring: defaults, then TOML file, then individual env overrides
	cfg.Scoring = DefaultScoring()
	if cfg.ScoringConfigFile != "" {
		if _, err := toml.DecodeFile(cfg.ScoringConfigFile, &cfg.Scoring); err != nil {
			return nil, fmt.Errorf("decode SCORING_CONFIG_FILE %s: %w", cfg.ScoringConfigFile, err)
		}
	}
	applyScoringEnv(&cfg.Scoring)

	// Parse extra headers JSON
	extraHeadersJSON := getEnv("DATA_API_EXTRA_HEADERS", "{}")
	if err := json.Unmarshal([]byte(extraHeadersJSON), &cfg.DataAPIExtraHeaders); err != nil {
		return nil, fmt.Errorf("invalid DATA_API_EXTRA_HEADERS JSON: %w", err)
	}

	// Validate
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// DefaultScoring returns the reference scoring rules
func DefaultScoring() ScoringConfig {
	return ScoringFromWeights(radar.DefaultWeights())
}

// ScoringFromWeights converts radar rule weights to a scoring config
func ScoringFromWeights(w radar.Weights) ScoringConfig {
	return ScoringConfig{
		Base:             w.Base,
		FreshWalletDays:  w.FreshWalletDays,
		FreshWalletBonus: w.FreshWalletBonus,
		LargeTradeUSD:    w.LargeTradeUSD,
		LargeTradeBonus:  w.LargeTradeBonus,
		FastWakeSeconds:  w.FastWakeSeconds,
		FastWakeBonus:    w.FastWakeBonus,
	}
}

func applyScoringEnv(s *ScoringConfig) {
	s.Base = getEnvInt("SCORE_BASE", s.Base)
	s.FreshWalletDays = getEnvInt("FRESH_WALLET_DAYS", s.FreshWalletDays)
	s.FreshWalletBonus = getEnvInt("SCORE_FRESH_WALLET_BONUS", s.FreshWalletBonus)
	s.LargeTradeUSD = getEnvFloat("LARGE_TRADE_USD", s.LargeTradeUSD)
	s.LargeTradeBonus = getEnvInt("SCORE_LARGE_TRADE_BONUS", s.LargeTradeBonus)
	s.FastWakeSeconds = int64(getEnvInt("FAST_WAKE_SECONDS", int(s.FastWakeSeconds)))
	s.FastWakeBonus = getEnvInt("SCORE_FAST_WAKE_BONUS", s.FastWakeBonus)
}

// Validate checks configuration for errors
func (c *Config) Validate() error {
	switch c.SourceMode {
	case SourceModeLive, SourceModeMock:
	default:
		return fmt.Errorf("invalid SOURCE_MODE: %s (must be live or mock)", c.SourceMode)
	}

	switch c.StoreMode {
	case StoreModeMySQL:
		if c.DatabaseDSN == "" {
			return fmt.Errorf("DATABASE_DSN is required when STORE_MODE is mysql")
		}
	case StoreModeMemory:
	default:
		return fmt.Errorf("invalid STORE_MODE: %s (must be mysql or memory)", c.StoreMode)
	}

	// Validate auth mode
	switch c.DataAPIAuthMode {
	case AuthModeNone:
		// No validation needed
	case AuthModeBearer:
		if c.DataAPIBearerToken == "" {
			return fmt.Errorf("DATA_API_BEARER_TOKEN is required when AUTH_MODE is bearer")
		}
	case AuthModeAPIKey:
		if c.DataAPIAPIKey == "" {
			return fmt.Errorf("DATA_API_API_KEY is required when AUTH_MODE is api_key")
		}
	default:
		return fmt.Errorf("invalid DATA_API_AUTH_MODE: %s (must be none, bearer, or api_key)", c.DataAPIAuthMode)
	}

	if err := c.Scoring.Validate(); err != nil {
		return err
	}

	if c.PollIntervalSec <= 0 {
		return fmt.Errorf("POLL_INTERVAL_SEC must be positive, got %d", c.PollIntervalSec)
	}
	if c.AlertMinScore < 0 || c.AlertMinScore > 99 {
		return fmt.Errorf("ALERT_MIN_SCORE must be between 0 and 99, got %d", c.AlertMinScore)
	}

	// Validate alert mode (comma-separated list)
	hasDiscord := false
	hasSMTP := false
	for _, mode := range c.AlertModes() {
		switch mode {
		case "log":
		case "discord":
			hasDiscord = true
		case "smtp":
			hasSMTP = true
		default:
			return fmt.Errorf("invalid ALERT_MODE value: %s (valid values: log, discord, smtp)", mode)
		}
	}

	if hasDiscord && len(c.DiscordWebhookURLs) == 0 {
		return fmt.Errorf("DISCORD_WEBHOOK_URLS is required when discord is in ALERT_MODE")
	}

	if hasSMTP && (c.SMTPHost == "" || len(c.SMTPTo) == 0) {
		return fmt.Errorf("SMTP_HOST and SMTP_TO are required when smtp is in ALERT_MODE")
	}

	return nil
}

// Validate checks that the scoring rules keep the score monotone
func (s ScoringConfig) Validate() error {
	if s.FreshWalletBonus < 0 || s.LargeTradeBonus < 0 || s.FastWakeBonus < 0 {
		return fmt.Errorf("scoring bonuses must be non-negative")
	}
	if s.FreshWalletDays < 0 || s.FastWakeSeconds < 0 || s.LargeTradeUSD < 0 {
		return fmt.Errorf("scoring thresholds must be non-negative")
	}
	return nil
}

// Weights converts the scoring config to radar rule weights
func (s ScoringConfig) Weights() radar.Weights {
	return radar.Weights{
		Base:             s.Base,
		FreshWalletDays:  s.FreshWalletDays,
		FreshWalletBonus: s.FreshWalletBonus,
		LargeTradeUSD:    s.LargeTradeUSD,
		LargeTradeBonus:  s.LargeTradeBonus,
		FastWakeSeconds:  s.FastWakeSeconds,
		FastWakeBonus:    s.FastWakeBonus,
	}
}

// AlertModes returns the configured alert modes, trimmed
func (c *Config) AlertModes() []string {
	return parseCSV(c.AlertMode)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func parseCSV(s string) []string {
	var result []string
	for _, item := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
