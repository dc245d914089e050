// Package orchestrator drives the monitoring loop: it fetches new mail,
// scans every URL it finds and raises alerts for threats.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mikey/url-threat-monitor/internal/alert"
	"github.com/mikey/url-threat-monitor/internal/core"
	"github.com/mikey/url-threat-monitor/internal/extract"
	"github.com/mikey/url-threat-monitor/internal/ports"
	"github.com/mikey/url-threat-monitor/internal/risk"
	"github.com/mikey/url-threat-monitor/internal/scanner"
)

// ContentAnalyzer scores the sender and text of an email
type ContentAnalyzer interface {
	Analyze(ctx context.Context, email core.EmailRecord, urls []string) core.ContentAssessment
}

// AlertSink receives the alerts raised while processing mail
type AlertSink interface {
	Dispatch(ctx context.Context, alert *core.Alert)
	DispatchURLAlert(ctx context.Context, alert *core.URLAlert)
}

// EmailReport describes what processing one email produced
type EmailReport struct {
	Email     core.EmailRecord
	Skipped   bool
	URLs      []string
	Content   core.ContentAssessment
	Outcomes  []core.ScanOutcome
	Threats   []core.ScanAssessment
	URLAlerts int
	Alert     *core.Alert
}

// Orchestrator coordinates the inbox, the scan provider and alerting
type Orchestrator struct {
	logger   *zap.Logger
	policy   Policy
	inbox    ports.InboxSource
	provider ports.ScanProvider
	analyzer ContentAnalyzer
	builder  *alert.Builder
	sink     AlertSink
	seen     *SeenSet
	gate     *submitGate
	stats    *counters
	now      func() time.Time
}

// New creates an orchestrator. inbox may be nil for one-shot use and
// analyzer may be nil to skip content analysis. seen is the process-wide
// set of handled email ids; nil starts an empty one.
func New(
	logger *zap.Logger,
	policy Policy,
	seen *SeenSet,
	inbox ports.InboxSource,
	provider ports.ScanProvider,
	analyzer ContentAnalyzer,
	builder *alert.Builder,
	sink AlertSink,
) *Orchestrator {
	policy = policy.withDefaults()
	if seen == nil {
		seen = NewSeenSet()
	}
	return &Orchestrator{
		logger:   logger,
		policy:   policy,
		inbox:    inbox,
		provider: provider,
		analyzer: analyzer,
		builder:  builder,
		sink:     sink,
		seen:     seen,
		gate:     newSubmitGate(policy.SubmitDelay),
		stats:    newCounters(time.Now()),
		now:      time.Now,
	}
}

// Policy returns the effective limits
func (o *Orchestrator) Policy() Policy {
	return o.policy
}

// Seen returns the set of processed email ids
func (o *Orchestrator) Seen() *SeenSet {
	return o.seen
}

// Stats returns a snapshot of the counters
func (o *Orchestrator) Stats() Stats {
	return o.stats.snapshot(o.now())
}

// ScanURL submits target and polls until the scan reaches a terminal state.
// When ctx is cancelled the returned outcome carries the context error and
// should be discarded.
func (o *Orchestrator) ScanURL(ctx context.Context, target string) core.ScanOutcome {
	outcome := core.ScanOutcome{URL: target, State: core.ScanSubmitted}
	logger := o.logger.With(zap.String("url", target))

	if err := o.gate.Wait(ctx); err != nil {
		return cancelled(outcome, err)
	}

	scanID, err := o.provider.Submit(ctx, target)
	if err != nil {
		if ctx.Err() != nil {
			return cancelled(outcome, ctx.Err())
		}
		outcome.State = core.ScanFailed
		if errors.Is(err, core.ErrScanBlocked) {
			outcome.State = core.ScanBlocked
		}
		outcome.Error = err.Error()
		logger.Warn("URL submission failed", zap.String("state", string(outcome.State)), zap.Error(err))
		return outcome
	}

	outcome.ScanID = scanID
	outcome.State = core.ScanPolling
	deadline := o.now().Add(o.policy.MaxWait)

	for outcome.Attempts < o.policy.MaxAttempts {
		outcome.Attempts++

		result, err := o.provider.Poll(ctx, scanID)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return cancelled(outcome, ctx.Err())
			}
			logger.Warn("Request error checking scan status",
				zap.String("scan_id", scanID),
				zap.Int("attempt", outcome.Attempts),
				zap.Error(err))
		case result == nil:
			// no status yet, keep polling
			logger.Debug("Empty scan status", zap.String("scan_id", scanID), zap.Int("attempt", outcome.Attempts))
		case result.Status == core.PollDone:
			assessment := scanner.Normalize(result.Document, target)
			if assessment.ScanID == "" {
				assessment.ScanID = scanID
			}
			outcome.State = core.ScanCompleted
			outcome.Assessment = assessment
			logger.Info("Scan completed",
				zap.String("scan_id", scanID),
				zap.Int("threat_score", assessment.ThreatScore),
				zap.Int("attempts", outcome.Attempts))
			return outcome
		case result.Status == core.PollBlocked:
			outcome.State = core.ScanBlocked
			outcome.Error = result.Message
			logger.Warn("Scan blocked by provider", zap.String("scan_id", scanID), zap.String("reason", result.Message))
			return outcome
		case result.Status == core.PollError:
			outcome.State = core.ScanFailed
			outcome.Error = result.Message
			logger.Warn("Scan failed", zap.String("scan_id", scanID), zap.String("reason", result.Message))
			return outcome
		default:
			logger.Debug("Scan still in progress", zap.String("scan_id", scanID), zap.Int("attempt", outcome.Attempts))
		}

		if outcome.Attempts >= o.policy.MaxAttempts || !o.now().Before(deadline) {
			break
		}
		if err := sleepContext(ctx, o.policy.PollInterval); err != nil {
			return cancelled(outcome, err)
		}
	}

	outcome.State = core.ScanTimedOut
	outcome.Error = fmt.Sprintf("%v after %d attempts", core.ErrScanTimeout, outcome.Attempts)
	logger.Error("Scan timeout", zap.String("scan_id", scanID), zap.Int("attempts", outcome.Attempts))
	return outcome
}

func cancelled(outcome core.ScanOutcome, err error) core.ScanOutcome {
	outcome.State = core.ScanFailed
	outcome.Error = err.Error()
	return outcome
}

// ProcessEmail analyzes one email. An email seen before is skipped.
// The only error returned is the context error on cancellation.
func (o *Orchestrator) ProcessEmail(ctx context.Context, email core.EmailRecord) (*EmailReport, error) {
	report := &EmailReport{Email: email}
	key := emailKey(email)
	if !o.seen.MarkIfNew(key) {
		o.logger.Debug("Email already processed", zap.String("email_id", email.ID))
		report.Skipped = true
		return report, nil
	}

	logger := o.logger.With(zap.String("email_id", email.ID), zap.String("sender", email.Sender))
	report.URLs = extract.FromEmail(email)
	if len(report.URLs) == 0 {
		logger.Info("No URLs found in email")
	} else {
		logger.Info("Found URLs in email", zap.Int("count", len(report.URLs)))
	}

	if o.analyzer != nil {
		report.Content = o.analyzer.Analyze(ctx, email, report.URLs)
	}

	var scans []core.ScanAssessment
	for _, target := range report.URLs {
		outcome := o.ScanURL(ctx, target)
		if ctx.Err() != nil {
			o.seen.Forget(key)
			return nil, ctx.Err()
		}
		report.Outcomes = append(report.Outcomes, outcome)

		if outcome.Assessment == nil {
			continue
		}
		scans = append(scans, *outcome.Assessment)

		if risk.ExceedsURLThreshold(*outcome.Assessment) {
			report.Threats = append(report.Threats, *outcome.Assessment)
			logger.Warn("Threat detected in URL",
				zap.String("url", target),
				zap.Int("threat_score", outcome.Assessment.ThreatScore))
			o.sink.DispatchURLAlert(ctx, o.builder.BuildURLAlert(email, *outcome.Assessment))
			report.URLAlerts++
		}
	}

	if risk.HasThreatSignal(report.Content, scans) {
		report.Alert = o.builder.Build(email, report.Content, scans)
		o.sink.Dispatch(ctx, report.Alert)
	}

	o.stats.update(func(s *Stats) {
		s.EmailsProcessed++
		s.URLsFound += len(report.URLs)
		s.URLsScanned += len(report.Outcomes)
		s.ThreatsDetected += len(report.Threats)
		s.URLAlerts += report.URLAlerts
		if report.Alert != nil {
			s.Alerts++
		}
		for _, outcome := range report.Outcomes {
			s.ScanStates[outcome.State]++
		}
	})

	return report, nil
}

// RunCycle fetches one batch of new mail and processes it. A failing email
// is logged and does not stop the rest of the batch.
func (o *Orchestrator) RunCycle(ctx context.Context) error {
	if o.inbox == nil {
		return fmt.Errorf("no inbox source: %w", core.ErrNotConfigured)
	}

	emails, err := o.inbox.GetNewEmails(ctx, o.policy.MaxEmailsPerCycle)
	if err != nil {
		return fmt.Errorf("failed to fetch new emails: %w", err)
	}
	o.stats.update(func(s *Stats) { s.Cycles++ })

	if len(emails) == 0 {
		o.logger.Info("No new emails found")
		return nil
	}
	o.logger.Info("Found new emails", zap.Int("count", len(emails)))

	for _, email := range emails {
		if err := o.processSafely(ctx, email); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			o.stats.update(func(s *Stats) { s.EmailErrors++ })
			o.logger.Error("Error processing email", zap.String("email_id", email.ID), zap.Error(err))
		}
	}
	return nil
}

func (o *Orchestrator) processSafely(ctx context.Context, email core.EmailRecord) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while processing email: %v", r)
		}
	}()
	_, err = o.ProcessEmail(ctx, email)
	return err
}

// Run loops over cycles until ctx is cancelled
func (o *Orchestrator) Run(ctx context.Context) error {
	o.logger.Info("Starting URL scanning loop",
		zap.Duration("cycle_interval", o.policy.CycleInterval),
		zap.Int("max_emails_per_cycle", o.policy.MaxEmailsPerCycle))

	for {
		err := o.RunCycle(ctx)
		if ctx.Err() != nil {
			return nil
		}

		wait := o.policy.CycleInterval
		if err != nil {
			o.stats.update(func(s *Stats) { s.CycleErrors++ })
			o.logger.Error("Error in monitoring loop", zap.Error(err), zap.Duration("backoff", o.policy.ErrorBackoff))
			wait = o.policy.ErrorBackoff
		}
		o.LogStats("Statistics")

		if err := sleepContext(ctx, wait); err != nil {
			return nil
		}
	}
}

// LogStats writes the current counters to the log
func (o *Orchestrator) LogStats(msg string) {
	s := o.Stats()
	o.logger.Info(msg,
		zap.Duration("runtime", s.Runtime),
		zap.Int("emails_processed", s.EmailsProcessed),
		zap.Int("urls_found", s.URLsFound),
		zap.Int("urls_scanned", s.URLsScanned),
		zap.Int("threats_detected", s.ThreatsDetected),
		zap.Int("alerts", s.Alerts))
}

// emailKey falls back to header fields when a source provides no id
func emailKey(email core.EmailRecord) string {
	if email.ID != "" {
		return email.ID
	}
	return email.Sender + "\x00" + email.Subject + "\x00" + email.Timestamp
}
