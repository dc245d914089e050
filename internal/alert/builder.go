// Package alert builds, records, persists and dispatches threat alerts.
package alert

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/mikey/url-threat-monitor/internal/core"
	"github.com/mikey/url-threat-monitor/internal/risk"
	"github.com/mikey/url-threat-monitor/internal/utils"
)

// BodyPreviewRunes is the number of body characters kept in an alert
const BodyPreviewRunes = 200

// timestampLayout is used for alert ids and export file names
const timestampLayout = "20060102_150405"

// alertSequence is shared by every builder so ids never collide within a process
var alertSequence atomic.Uint64

// Builder assembles immutable alerts from analysis results
type Builder struct {
	now func() time.Time
}

// NewBuilder creates a builder. A nil clock means time.Now.
func NewBuilder(clock func() time.Time) *Builder {
	if clock == nil {
		clock = time.Now
	}
	return &Builder{now: clock}
}

// Build creates an email-level alert
func (b *Builder) Build(email core.EmailRecord, content core.ContentAssessment, scans []core.ScanAssessment) *core.Alert {
	now := b.now()
	if scans == nil {
		scans = []core.ScanAssessment{}
	}
	copied := make([]core.ScanAssessment, len(scans))
	copy(copied, scans)

	return &core.Alert{
		AlertID:     NewAlertID(now),
		Timestamp:   now,
		Email:       Summarize(email),
		Content:     content,
		Scans:       copied,
		OverallRisk: risk.Overall(content, copied),
		AlertLevel:  risk.Level(content, copied),
	}
}

// BuildURLAlert creates the per-URL alert for a scan over the URL threshold
func (b *Builder) BuildURLAlert(email core.EmailRecord, scan core.ScanAssessment) *core.URLAlert {
	return &core.URLAlert{
		Timestamp: b.now(),
		Email:     Summarize(email),
		Scan:      scan,
	}
}

// NewAlertID returns alert_<YYYYmmdd_HHMMSS>_<sequence>
func NewAlertID(at time.Time) string {
	return fmt.Sprintf("alert_%s_%06d", at.Format(timestampLayout), alertSequence.Add(1))
}

// Summarize keeps the identifying fields of an email and a body preview
func Summarize(email core.EmailRecord) core.EmailSummary {
	return core.EmailSummary{
		ID:          email.ID,
		Sender:      email.Sender,
		Subject:     email.Subject,
		Timestamp:   email.Timestamp,
		BodyPreview: utils.Preview(email.Body, BodyPreviewRunes),
	}
}
