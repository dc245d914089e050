package alert

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/mikey/url-threat-monitor/internal/core"
	"github.com/mikey/url-threat-monitor/internal/ports"
)

// Dispatcher fans an alert out to history, the alert log, the archive and every notifier.
// Individual sink failures are logged and never returned.
type Dispatcher struct {
	logger    *zap.Logger
	history   *History
	log       *LogWriter
	exporter  *Exporter
	archive   ports.AlertArchive
	notifiers []ports.Notifier
}

// NewDispatcher creates a dispatcher. archive may be nil.
func NewDispatcher(
	logger *zap.Logger,
	history *History,
	log *LogWriter,
	exporter *Exporter,
	archive ports.AlertArchive,
	notifiers []ports.Notifier,
) *Dispatcher {
	return &Dispatcher{
		logger:    logger,
		history:   history,
		log:       log,
		exporter:  exporter,
		archive:   archive,
		notifiers: notifiers,
	}
}

// Dispatch records and delivers an email-level alert
func (d *Dispatcher) Dispatch(ctx context.Context, alert *core.Alert) {
	d.history.Append(alert)

	d.logger.Warn("Security alert triggered",
		zap.String("alert_id", alert.AlertID),
		zap.String("alert_level", string(alert.AlertLevel)),
		zap.String("overall_risk", string(alert.OverallRisk)),
		zap.String("sender", alert.Email.Sender))

	if err := d.log.Append(alert); err != nil {
		d.logger.Error("Failed to save alert to log file",
			zap.String("alert_id", alert.AlertID),
			zap.String("path", d.log.Path()),
			zap.Error(err))
	}

	if d.archive != nil {
		if err := d.archive.Save(ctx, alert); err != nil {
			d.logger.Error("Failed to archive alert",
				zap.String("alert_id", alert.AlertID),
				zap.Error(err))
		}
	}

	for _, notifier := range d.notifiers {
		d.report(notifier.Name(), alert.AlertID, notifier.NotifyAlert(ctx, alert))
	}
}

// DispatchURLAlert logs and delivers a per-URL alert
func (d *Dispatcher) DispatchURLAlert(ctx context.Context, urlAlert *core.URLAlert) {
	d.logger.Warn("High threat URL detected",
		zap.String("url", urlAlert.Scan.URL),
		zap.Int("threat_score", urlAlert.Scan.ThreatScore),
		zap.String("sender", urlAlert.Email.Sender))

	if err := d.log.AppendURLAlert(urlAlert); err != nil {
		d.logger.Error("Failed to save URL alert to log file",
			zap.String("url", urlAlert.Scan.URL),
			zap.Error(err))
	}

	for _, notifier := range d.notifiers {
		d.report(notifier.Name(), urlAlert.Scan.URL, notifier.NotifyURLAlert(ctx, urlAlert))
	}
}

func (d *Dispatcher) report(channel, subject string, err error) {
	switch {
	case err == nil:
	case errors.Is(err, core.ErrNotConfigured):
		d.logger.Warn("Notification channel not configured, skipping",
			zap.String("channel", channel),
			zap.String("subject", subject))
	default:
		d.logger.Error("Failed to deliver notification",
			zap.String("channel", channel),
			zap.String("subject", subject),
			zap.Error(err))
	}
}

// History returns the in-memory alert history
func (d *Dispatcher) History() *History {
	return d.history
}

// Summary aggregates the alert history
func (d *Dispatcher) Summary() Summary {
	return d.history.Summary()
}

// Clear drops the in-memory history. The log file and archive are kept.
func (d *Dispatcher) Clear() {
	d.history.Clear()
	d.logger.Info("Alert history cleared")
}

// Export dumps the full history and reports whether it succeeded
func (d *Dispatcher) Export(path string) (string, bool) {
	written, err := d.exporter.Export(d.history.Snapshot(), path)
	if err != nil {
		d.logger.Error("Error exporting alerts", zap.String("path", path), zap.Error(err))
		return "", false
	}
	d.logger.Info("Alerts exported", zap.String("path", written))
	return written, true
}
