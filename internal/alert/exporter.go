package alert

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"
	"gopkg.in/yaml.v3"

	"github.com/mikey/url-threat-monitor/internal/core"
)

// Exporter dumps the alert history to a file. The format follows the extension.
type Exporter struct {
	dir string
	now func() time.Time
}

// NewExporter creates an exporter writing default file names into dir
func NewExporter(dir string, clock func() time.Time) *Exporter {
	if clock == nil {
		clock = time.Now
	}
	return &Exporter{dir: dir, now: clock}
}

// DefaultPath returns alerts_export_<YYYYmmdd_HHMMSS>.json inside the export dir
func (e *Exporter) DefaultPath() string {
	return filepath.Join(e.dir, fmt.Sprintf("alerts_export_%s.json", e.now().Format(timestampLayout)))
}

// Export writes alerts to path, or to DefaultPath when path is empty
func (e *Exporter) Export(alerts []*core.Alert, path string) (string, error) {
	if path == "" {
		path = e.DefaultPath()
	}
	if alerts == nil {
		alerts = []*core.Alert{}
	}

	var (
		data []byte
		err  error
	)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		data, err = json.MarshalIndent(alerts, "", "  ")
	case ".yaml", ".yml":
		data, err = encodeYAML(alerts)
	case ".pdf":
		data, err = e.encodePDF(alerts)
	default:
		return "", fmt.Errorf("%w: unsupported export format %q", core.ErrAlertPersistence, ext)
	}
	if err != nil {
		return "", fmt.Errorf("%w: failed to encode export: %v", core.ErrAlertPersistence, err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("%w: failed to create export directory: %v", core.ErrAlertPersistence, err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("%w: failed to write export: %v", core.ErrAlertPersistence, err)
	}

	return path, nil
}

func encodeYAML(alerts []*core.Alert) ([]byte, error) {
	var buf bytes.Buffer
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)
	if err := encoder.Encode(alerts); err != nil {
		return nil, err
	}
	if err := encoder.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// levelColors maps alert levels to report text colours
var levelColors = map[core.AlertLevel][3]int{
	core.LevelCritical: {250, 77, 86},
	core.LevelHigh:     {241, 150, 27},
	core.LevelMedium:   {15, 98, 254},
	core.LevelLow:      {66, 190, 101},
}

func (e *Exporter) encodePDF(alerts []*core.Alert) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 20)
	pdf.SetTextColor(15, 98, 254)
	pdf.Cell(0, 10, "URL Threat Monitor - Alert Report")
	pdf.Ln(12)

	pdf.SetFont("Arial", "", 10)
	pdf.SetTextColor(0, 0, 0)
	pdf.Cell(0, 8, fmt.Sprintf("Generated: %s    Alerts: %d", e.now().Format("2006-01-02 15:04"), len(alerts)))
	pdf.Ln(12)

	if len(alerts) == 0 {
		pdf.SetFont("Arial", "I", 12)
		pdf.Cell(0, 10, NoAlertsMessage)
	}

	for _, alert := range alerts {
		color, ok := levelColors[alert.AlertLevel]
		if !ok {
			color = [3]int{0, 0, 0}
		}

		pdf.SetFillColor(240, 240, 240)
		pdf.SetFont("Arial", "B", 12)
		pdf.SetTextColor(color[0], color[1], color[2])
		pdf.CellFormat(0, 8, tr(fmt.Sprintf("%s  [%s / %s]", alert.AlertID, alert.AlertLevel, alert.OverallRisk)), "0", 1, "", true, 0, "")

		pdf.SetTextColor(0, 0, 0)
		pdf.SetFont("Arial", "", 10)
		pdf.CellFormat(0, 6, tr("From: "+alert.Email.Sender), "0", 1, "", false, 0, "")
		pdf.CellFormat(0, 6, tr("Subject: "+alert.Email.Subject), "0", 1, "", false, 0, "")
		pdf.CellFormat(0, 6, fmt.Sprintf("Time: %s", alert.Timestamp.Format("2006-01-02 15:04:05")), "0", 1, "", false, 0, "")

		pdf.SetFont("Courier", "", 9)
		for _, risk := range alert.Content.SenderRisks {
			pdf.MultiCell(0, 5, tr(" > Sender: "+risk), "", "", false)
		}
		for _, threat := range alert.Content.Threats {
			pdf.MultiCell(0, 5, tr(fmt.Sprintf(" > Content: %s (Score: %d)", threat.Description, threat.Score)), "", "", false)
		}
		for _, scan := range alert.Scans {
			pdf.MultiCell(0, 5, tr(fmt.Sprintf(" > URL: %s (Score: %d)", scan.URL, scan.ThreatScore)), "", "", false)
			for _, indicator := range scan.Indicators {
				pdf.MultiCell(0, 5, tr("     "+indicator), "", "", false)
			}
		}
		pdf.Ln(4)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
