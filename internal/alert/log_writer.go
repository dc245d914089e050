package alert

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/mikey/url-threat-monitor/internal/core"
)

// DefaultLogFile is the alert log used when none is configured
const DefaultLogFile = "security_alerts.log"

var separator = strings.Repeat("=", 80)

// LogWriter appends alert blocks to a plain text log file
type LogWriter struct {
	path string
	mu   sync.Mutex
}

// NewLogWriter creates a log writer for path
func NewLogWriter(path string) *LogWriter {
	if path == "" {
		path = DefaultLogFile
	}
	return &LogWriter{path: path}
}

// Path returns the log file location
func (w *LogWriter) Path() string {
	return w.path
}

// Append writes one framed alert block
func (w *LogWriter) Append(alert *core.Alert) error {
	analysis, err := json.MarshalIndent(alert.Content, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: failed to encode email analysis: %v", core.ErrAlertPersistence, err)
	}
	scans, err := json.MarshalIndent(alert.Scans, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: failed to encode url scans: %v", core.ErrAlertPersistence, err)
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "\n%s\n", separator)
	fmt.Fprintf(&buf, "ALERT ID: %s\n", alert.AlertID)
	fmt.Fprintf(&buf, "TIMESTAMP: %s\n", alert.Timestamp.Format(time.RFC3339))
	fmt.Fprintf(&buf, "ALERT LEVEL: %s\n", alert.AlertLevel)
	fmt.Fprintf(&buf, "OVERALL RISK: %s\n", alert.OverallRisk)
	fmt.Fprintf(&buf, "SENDER: %s\n", alert.Email.Sender)
	fmt.Fprintf(&buf, "SUBJECT: %s\n", alert.Email.Subject)
	fmt.Fprintf(&buf, "EMAIL ANALYSIS: %s\n", analysis)
	fmt.Fprintf(&buf, "URL SCANS: %s\n", scans)
	fmt.Fprintf(&buf, "%s\n", separator)

	return w.write(buf.Bytes())
}

// AppendURLAlert writes the shorter block for a per-URL alert
func (w *LogWriter) AppendURLAlert(urlAlert *core.URLAlert) error {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "\n%s\n", separator)
	fmt.Fprintf(&buf, "URL ALERT: %s\n", urlAlert.Scan.URL)
	fmt.Fprintf(&buf, "TIMESTAMP: %s\n", urlAlert.Timestamp.Format(time.RFC3339))
	fmt.Fprintf(&buf, "THREAT SCORE: %d\n", urlAlert.Scan.ThreatScore)
	fmt.Fprintf(&buf, "SUMMARY: %s\n", urlAlert.Scan.Summary)
	fmt.Fprintf(&buf, "SCAN ID: %s\n", urlAlert.Scan.ScanID)
	fmt.Fprintf(&buf, "SENDER: %s\n", urlAlert.Email.Sender)
	fmt.Fprintf(&buf, "SUBJECT: %s\n", urlAlert.Email.Subject)
	if len(urlAlert.Scan.Indicators) > 0 {
		fmt.Fprintf(&buf, "INDICATORS: %s\n", strings.Join(urlAlert.Scan.Indicators, "; "))
	}
	fmt.Fprintf(&buf, "%s\n", separator)

	return w.write(buf.Bytes())
}

// write opens the file for each entry so external rotation is picked up
func (w *LogWriter) write(entry []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if dir := filepath.Dir(w.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("%w: failed to create log directory: %v", core.ErrAlertPersistence, err)
		}
	}

	f, err := os.OpenFile(w.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("%w: failed to open alert log: %v", core.ErrAlertPersistence, err)
	}
	if _, err := f.Write(entry); err != nil {
		f.Close()
		return fmt.Errorf("%w: failed to write alert log: %v", core.ErrAlertPersistence, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("%w: failed to close alert log: %v", core.ErrAlertPersistence, err)
	}
	return nil
}
