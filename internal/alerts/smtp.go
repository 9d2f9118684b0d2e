package alerts

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
	"time"
)

// SMTPSender sends alerts via email
type SMTPSender struct {
	host     string
	port     int
	user     string
	password string
	from     string
	to       []string
}

// NewSMTPSender creates a new SMTP sender
func NewSMTPSender(host string, port int, user, password, from string, to []string) *SMTPSender {
	return &SMTPSender{
		host:     host,
		port:     port,
		user:     user,
		password: password,
		from:     from,
		to:       to,
	}
}

// Send sends the alert via email
func (s *SMTPSender) Send(ctx context.Context, payload *AlertPayload) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var auth smtp.Auth
	if s.user != "" {
		auth = smtp.PlainAuth("", s.user, s.password, s.host)
	}
	addr := fmt.Sprintf("%s:%d", s.host, s.port)

	if err := smtp.SendMail(addr, auth, s.from, s.to, s.buildMessage(payload)); err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	return nil
}

func (s *SMTPSender) buildMessage(payload *AlertPayload) []byte {
	sig := payload.Signal
	subject := fmt.Sprintf("[%s] Radar score %d: $%.0f %s on %s",
		payload.Severity, sig.RadarScore, sig.TradeSizeUSD, sig.Side, truncate(sig.MarketTitle, 80))

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", s.from)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(s.to, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	b.WriteString(buildEmailBody(payload))
	return []byte(b.String())
}

func buildEmailBody(payload *AlertPayload) string {
	sig := payload.Signal
	rule := "─────────────────────────────────────\n"

	var b strings.Builder
	fmt.Fprintf(&b, "FORESYNTH RADAR - %s\n", payload.Severity)
	b.WriteString("═══════════════════════════════════════\n\n")

	b.WriteString("TRADE\n" + rule)
	fmt.Fprintf(&b, "Market:          %s\n", sig.MarketTitle)
	fmt.Fprintf(&b, "Side:            %s\n", sig.Side)
	fmt.Fprintf(&b, "Size:            $%.2f\n", sig.TradeSizeUSD)
	fmt.Fprintf(&b, "Market volume:   $%.2f (%d%% share)\n", sig.MarketVolumeUSD, sig.VolumeConcentrationPct)
	fmt.Fprintf(&b, "Traded at:       %s\n\n", sig.TradeAt.UTC().Format(time.RFC3339))

	b.WriteString("WALLET\n" + rule)
	fmt.Fprintf(&b, "Address:         %s\n", sig.WalletAddress)
	fmt.Fprintf(&b, "Created:         %s\n", sig.WalletCreatedAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "Age:             %d days\n", sig.WalletAgeDays)
	fmt.Fprintf(&b, "Wake time:       %s\n", sig.WakeTime)
	fmt.Fprintf(&b, "Speed ratio:     %.1f\n\n", sig.SpeedRatio)

	b.WriteString("SCORE\n" + rule)
	fmt.Fprintf(&b, "Base:            %d\n", payload.Breakdown.Base)
	for _, r := range reasons(payload.Breakdown) {
		fmt.Fprintf(&b, "+ %s\n", r)
	}
	fmt.Fprintf(&b, "Radar score:     %d (%s)\n\n", sig.RadarScore, sig.Tier)

	b.WriteString("═══════════════════════════════════════\n")
	fmt.Fprintf(&b, "Signal: %s\n", sig.ID)
	fmt.Fprintf(&b, "Environment: %s\n", payload.Environment)
	fmt.Fprintf(&b, "Generated: %s\n", payload.Timestamp.UTC().Format("2006-01-02 15:04:05 UTC"))
	b.WriteString("\nNote: a radar score flags unusual behavior;\n")
	b.WriteString("it does NOT prove insider trading.\n")
	return b.String()
}
