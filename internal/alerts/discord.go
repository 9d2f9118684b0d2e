package alerts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// DiscordSender sends alerts to Discord via webhook
type DiscordSender struct {
	webhookURL string
	httpClient *http.Client
}

// NewDiscordSender creates a new Discord sender
func NewDiscordSender(webhookURL string) *DiscordSender {
	return &DiscordSender{
		webhookURL: webhookURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Send sends the alert to Discord
func (s *DiscordSender) Send(ctx context.Context, payload *AlertPayload) error {
	body, err := json.Marshal(map[string]interface{}{
		"embeds": []interface{}{buildEmbed(payload)},
	})
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}

func buildEmbed(payload *AlertPayload) map[string]interface{} {
	sig := payload.Signal

	var title string
	var color int
	switch payload.Severity {
	case SeverityAlert:
		title = "🚨 Insider radar: EXTREME signal"
		color = 0xFF0000
	case SeverityWarn:
		title = "⚠️ Insider radar: HIGH signal"
		color = 0xFFA500
	default:
		title = "ℹ️ Insider radar signal"
		color = 0x0099FF
	}

	description := fmt.Sprintf("**$%.2f** on **%s** in *%s*\nWallet age **%dd**, woke **%s** after creation",
		sig.TradeSizeUSD,
		sig.Side,
		truncate(sig.MarketTitle, 200),
		sig.WalletAgeDays,
		sig.WakeTime,
	)

	why := strings.Join(reasons(payload.Breakdown), ", ")
	if why == "" {
		why = "base score"
	}

	fields := []map[string]interface{}{
		{"name": "Wallet", "value": fmt.Sprintf("`%s`", payload.WalletShort), "inline": true},
		{"name": "Radar Score", "value": fmt.Sprintf("**%d/99**", sig.RadarScore), "inline": true},
		{"name": "Tier", "value": string(sig.Tier), "inline": true},
		{"name": "Speed Ratio", "value": fmt.Sprintf("%.1f%%", sig.SpeedRatio), "inline": true},
		{"name": "Volume Share", "value": fmt.Sprintf("%d%%", sig.VolumeConcentrationPct), "inline": true},
		{"name": "Triggered", "value": why, "inline": false},
	}

	return map[string]interface{}{
		"title":       title,
		"description": description,
		"color":       color,
		"fields":      fields,
		"footer": map[string]interface{}{
			"text": fmt.Sprintf("Foresynth Radar • %s • %s", payload.Environment, sig.ID),
		},
		"timestamp": payload.Timestamp.UTC().Format(time.RFC3339),
	}
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
