package notify

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/mikey/url-threat-monitor/internal/core"
)

const colorReset = "\033[0m"

var levelColors = map[core.AlertLevel]string{
	core.LevelCritical: "\033[91m",
	core.LevelHigh:     "\033[93m",
	core.LevelMedium:   "\033[94m",
	core.LevelLow:      "\033[92m",
}

// ConsoleNotifier prints alerts to a terminal
type ConsoleNotifier struct {
	out   io.Writer
	color bool
	mu    sync.Mutex
}

// NewConsoleNotifier creates a console notifier. A nil writer means stdout.
func NewConsoleNotifier(out io.Writer, color bool) *ConsoleNotifier {
	if out == nil {
		out = os.Stdout
	}
	return &ConsoleNotifier{out: out, color: color}
}

// Name implements ports.Notifier
func (c *ConsoleNotifier) Name() string {
	return "console"
}

// NotifyAlert implements ports.Notifier
func (c *ConsoleNotifier) NotifyAlert(ctx context.Context, alert *core.Alert) error {
	var b strings.Builder
	rule := strings.Repeat("=", 60)

	fmt.Fprintf(&b, "\n%sSECURITY ALERT - %s LEVEL%s\n%s\n\n", c.colorFor(alert.AlertLevel), alert.AlertLevel, c.reset(), rule)
	fmt.Fprintf(&b, "Email Details:\n   From: %s\n   Subject: %s\n   Time: %s\n\n",
		alert.Email.Sender, alert.Email.Subject, alert.Email.Timestamp)
	fmt.Fprintf(&b, "Risk Assessment:\n   Overall Risk: %s\n   Alert Level: %s\n\n", alert.OverallRisk, alert.AlertLevel)
	fmt.Fprintf(&b, "Email Analysis:\n   Sender Risk Score: %d\n   Content Risk Score: %d\n   Overall Score: %d\n",
		alert.Content.SenderRiskScore, alert.Content.ContentScore, alert.Content.OverallScore)

	if len(alert.Content.SenderRisks) > 0 {
		b.WriteString("   Sender Risks:\n")
		for _, risk := range alert.Content.SenderRisks {
			fmt.Fprintf(&b, "     ! %s\n", risk)
		}
	}
	if len(alert.Content.Threats) > 0 {
		b.WriteString("   Content Threats:\n")
		for _, threat := range alert.Content.Threats {
			fmt.Fprintf(&b, "     ! %s (Score: %d)\n", threat.Description, threat.Score)
		}
	}

	if len(alert.Scans) > 0 {
		b.WriteString("\nURL Scan Results:\n")
		for _, scan := range alert.Scans {
			fmt.Fprintf(&b, "   URL: %s\n   %s\n", scan.URL, scan.Summary)
			for _, indicator := range scan.Indicators {
				fmt.Fprintf(&b, "     ! %s\n", indicator)
			}
			b.WriteString("\n")
		}
	}

	fmt.Fprintf(&b, "\nEmail Preview:\n%s\n\n", alert.Email.BodyPreview)
	fmt.Fprintf(&b, "Alert Time: %s\nAlert ID: %s\n%s\n", alert.Timestamp.Format("2006-01-02 15:04:05"), alert.AlertID, rule)

	return c.write(b.String())
}

// NotifyURLAlert implements ports.Notifier
func (c *ConsoleNotifier) NotifyURLAlert(ctx context.Context, alert *core.URLAlert) error {
	var b strings.Builder
	fmt.Fprintf(&b, "\n%sHIGH THREAT URL%s %s\n", c.colorFor(core.LevelCritical), c.reset(), alert.Scan.URL)
	fmt.Fprintf(&b, "   %s\n   From: %s\n   Subject: %s\n", alert.Scan.Summary, alert.Email.Sender, alert.Email.Subject)
	for _, indicator := range alert.Scan.Indicators {
		fmt.Fprintf(&b, "     ! %s\n", indicator)
	}
	return c.write(b.String())
}

func (c *ConsoleNotifier) write(text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := io.WriteString(c.out, text)
	return err
}

func (c *ConsoleNotifier) colorFor(level core.AlertLevel) string {
	if !c.color {
		return ""
	}
	if color, ok := levelColors[level]; ok {
		return color
	}
	return colorReset
}

func (c *ConsoleNotifier) reset() string {
	if !c.color {
		return ""
	}
	return colorReset
}
