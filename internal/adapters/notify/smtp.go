// Package notify delivers alerts to the console, over SMTP and to webhooks.
package notify

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
	"github.com/jhillyerd/enmime"
	"go.uber.org/zap"

	"github.com/mikey/url-threat-monitor/internal/core"
)

// SMTPConfig holds the outgoing mail settings
type SMTPConfig struct {
	Server    string
	Port      int
	Username  string
	Password  string
	From      string
	Recipient string
	StartTLS  bool
	Timeout   time.Duration
}

// Complete reports whether every setting needed to send mail is present.
// Server, port, credentials and recipient are all required.
func (c SMTPConfig) Complete() bool {
	return c.Server != "" && c.Port > 0 && c.Username != "" && c.Password != "" && c.Recipient != ""
}

func (c SMTPConfig) sender() string {
	if c.From != "" {
		return c.From
	}
	return c.Username
}

// SMTPNotifier emails alerts to a single recipient
type SMTPNotifier struct {
	cfg    SMTPConfig
	logger *zap.Logger
	warned bool
}

// NewSMTPNotifier creates an SMTP notifier. An incomplete configuration
// yields a notifier that reports core.ErrNotConfigured.
func NewSMTPNotifier(cfg SMTPConfig, logger *zap.Logger) *SMTPNotifier {
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if !cfg.Complete() {
		logger.Warn("Email alert configuration incomplete, email alerts disabled",
			zap.Bool("server_set", cfg.Server != ""),
			zap.Bool("recipient_set", cfg.Recipient != ""),
			zap.Bool("credentials_set", cfg.Username != "" && cfg.Password != ""))
	}
	return &SMTPNotifier{cfg: cfg, logger: logger}
}

// Name implements ports.Notifier
func (n *SMTPNotifier) Name() string {
	return "smtp"
}

// NotifyAlert implements ports.Notifier
func (n *SMTPNotifier) NotifyAlert(ctx context.Context, alert *core.Alert) error {
	subject := fmt.Sprintf("SECURITY ALERT: %s - Suspicious Email Detected", alert.AlertLevel)
	return n.send(ctx, subject, alertBody(alert))
}

// NotifyURLAlert implements ports.Notifier
func (n *SMTPNotifier) NotifyURLAlert(ctx context.Context, alert *core.URLAlert) error {
	subject := fmt.Sprintf("SECURITY ALERT: High threat URL (Score: %d%%)", alert.Scan.ThreatScore)
	return n.send(ctx, subject, urlAlertBody(alert))
}

func (n *SMTPNotifier) send(ctx context.Context, subject, body string) error {
	if !n.cfg.Complete() {
		return core.ErrNotConfigured
	}

	message, err := n.compose(subject, body)
	if err != nil {
		return fmt.Errorf("%w: failed to build message: %v", core.ErrNotification, err)
	}
	if err := n.deliver(ctx, message); err != nil {
		return fmt.Errorf("%w: %v", core.ErrNotification, err)
	}

	n.logger.Info("Email alert sent", zap.String("recipient", n.cfg.Recipient))
	return nil
}

func (n *SMTPNotifier) compose(subject, body string) ([]byte, error) {
	part, err := enmime.Builder().
		From("URL Threat Monitor", n.cfg.sender()).
		To("", n.cfg.Recipient).
		Subject(subject).
		Date(time.Now()).
		Text([]byte(body)).
		Build()
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := part.Encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (n *SMTPNotifier) deliver(ctx context.Context, message []byte) error {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "localhost"
	}

	addr := net.JoinHostPort(n.cfg.Server, strconv.Itoa(n.cfg.Port))
	dialer := net.Dialer{Timeout: n.cfg.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", addr, err)
	}

	deadline := time.Now().Add(n.cfg.Timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetDeadline(deadline); err != nil {
		conn.Close()
		return fmt.Errorf("failed to set connection deadline: %w", err)
	}

	var c *smtp.Client
	if n.cfg.StartTLS {
		// sends EHLO and upgrades the connection
		c, err = smtp.NewClientStartTLS(conn, &tls.Config{ServerName: n.cfg.Server})
		if err != nil {
			return fmt.Errorf("STARTTLS failed: %w", err)
		}
	} else {
		c = smtp.NewClient(conn)
		if err := c.Hello(hostname); err != nil {
			c.Close()
			return fmt.Errorf("EHLO failed: %w", err)
		}
	}
	defer c.Close()

	if err := c.Auth(sasl.NewPlainClient("", n.cfg.Username, n.cfg.Password)); err != nil {
		return fmt.Errorf("authentication failed: %w", err)
	}

	if err := c.Mail(n.cfg.sender(), nil); err != nil {
		return fmt.Errorf("MAIL FROM failed: %w", err)
	}
	if err := c.Rcpt(n.cfg.Recipient, nil); err != nil {
		return fmt.Errorf("RCPT TO failed: %w", err)
	}

	wc, err := c.Data()
	if err != nil {
		return fmt.Errorf("DATA command failed: %w", err)
	}
	if _, err := wc.Write(message); err != nil {
		wc.Close()
		return fmt.Errorf("failed to send message data: %w", err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("failed to close data writer: %w", err)
	}

	if err := c.Quit(); err != nil {
		// the message is already accepted
		n.logger.Warn("QUIT command failed", zap.Error(err))
	}
	return nil
}

func alertBody(alert *core.Alert) string {
	var b strings.Builder
	fmt.Fprintf(&b, "SECURITY ALERT - %s LEVEL\n\n", alert.AlertLevel)
	fmt.Fprintf(&b, "Email Details:\n- From: %s\n- Subject: %s\n- Time: %s\n\n",
		alert.Email.Sender, alert.Email.Subject, alert.Email.Timestamp)
	fmt.Fprintf(&b, "Risk Assessment:\n- Overall Risk: %s\n- Alert Level: %s\n\n", alert.OverallRisk, alert.AlertLevel)
	fmt.Fprintf(&b, "Email Analysis:\n- Sender Risk Score: %d\n- Content Risk Score: %d\n- Overall Score: %d\n\n",
		alert.Content.SenderRiskScore, alert.Content.ContentScore, alert.Content.OverallScore)

	b.WriteString("Threats Detected:\n")
	for _, risk := range alert.Content.SenderRisks {
		fmt.Fprintf(&b, "- Sender Risk: %s\n", risk)
	}
	for _, threat := range alert.Content.Threats {
		fmt.Fprintf(&b, "- Content Threat: %s\n", threat.Description)
	}
	for _, scan := range alert.Scans {
		if len(scan.Indicators) > 0 {
			fmt.Fprintf(&b, "- URL Threat (%s): %s\n", scan.URL, strings.Join(scan.Indicators, ", "))
		}
	}

	fmt.Fprintf(&b, "\nAlert ID: %s\nTimestamp: %s\n", alert.AlertID, alert.Timestamp.Format(time.RFC3339))
	return b.String()
}

func urlAlertBody(alert *core.URLAlert) string {
	var b strings.Builder
	fmt.Fprintf(&b, "HIGH THREAT URL DETECTED\n\nURL: %s\n%s\n\n", alert.Scan.URL, alert.Scan.Summary)
	fmt.Fprintf(&b, "Email Details:\n- From: %s\n- Subject: %s\n- Time: %s\n\n",
		alert.Email.Sender, alert.Email.Subject, alert.Email.Timestamp)
	if len(alert.Scan.Indicators) > 0 {
		b.WriteString("Indicators:\n")
		for _, indicator := range alert.Scan.Indicators {
			fmt.Fprintf(&b, "- %s\n", indicator)
		}
	}
	fmt.Fprintf(&b, "\nScan ID: %s\nTimestamp: %s\n", alert.Scan.ScanID, alert.Timestamp.Format(time.RFC3339))
	return b.String()
}
