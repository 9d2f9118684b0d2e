package alerts

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"
)

// LogSender sends alerts to the logger
type LogSender struct {
	log *logrus.Logger
}

// NewLogSender creates a new log sender
func NewLogSender(log *logrus.Logger) *LogSender {
	return &LogSender{log: log}
}

// Send logs the alert
func (s *LogSender) Send(ctx context.Context, payload *AlertPayload) error {
	sig := payload.Signal
	s.log.WithFields(logrus.Fields{
		"severity":        payload.Severity,
		"signal_id":       sig.ID,
		"wallet":          payload.WalletShort,
		"market":          sig.MarketTitle,
		"side":            sig.Side,
		"trade_size_usd":  sig.TradeSizeUSD,
		"wallet_age_days": sig.WalletAgeDays,
		"wake_time":       sig.WakeTime,
		"radar_score":     sig.RadarScore,
		"reasons":         strings.Join(reasons(payload.Breakdown), ", "),
	}).Info("Alert generated")
	return nil
}
