package alert

import (
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/mikey/url-threat-monitor/internal/core"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestBuild(t *testing.T) {
	now := time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC)
	builder := NewBuilder(fixedClock(now))

	email := core.EmailRecord{
		ID:        "msg-1",
		Sender:    "attacker@paypa1.com",
		Subject:   "Account locked",
		Timestamp: "Sat, 9 Mar 2024 14:00:00 +0000",
		Body:      strings.Repeat("a", 250),
	}
	content := core.ContentAssessment{
		SenderRisks:     []string{"Suspicious look-alike sender domain"},
		SenderRiskScore: 5,
		ContentScore:    4,
		OverallScore:    9,
	}
	scans := []core.ScanAssessment{{URL: "https://evil.example/login", ThreatScore: 80, Indicators: []string{"Malicious behavior detected"}}}

	alert := builder.Build(email, content, scans)

	if !regexp.MustCompile(`^alert_20240309_140507_\d{6}$`).MatchString(alert.AlertID) {
		t.Errorf("AlertID = %q, unexpected format", alert.AlertID)
	}
	if !alert.Timestamp.Equal(now) {
		t.Errorf("Timestamp = %v, want %v", alert.Timestamp, now)
	}
	if want := strings.Repeat("a", BodyPreviewRunes) + "..."; alert.Email.BodyPreview != want {
		t.Errorf("BodyPreview has %d chars, want %d", len(alert.Email.BodyPreview), len(want))
	}
	if alert.OverallRisk != core.RiskCritical {
		t.Errorf("OverallRisk = %s, want %s", alert.OverallRisk, core.RiskCritical)
	}
	if alert.AlertLevel != core.LevelHigh {
		t.Errorf("AlertLevel = %s, want %s", alert.AlertLevel, core.LevelHigh)
	}

	scans[0].ThreatScore = 0
	if alert.Scans[0].ThreatScore != 80 {
		t.Error("alert shares the caller's scan slice")
	}
}

func TestBuildShortBodyAndNoScans(t *testing.T) {
	builder := NewBuilder(nil)
	alert := builder.Build(core.EmailRecord{Body: "short body"}, core.ContentAssessment{}, nil)

	if alert.Email.BodyPreview != "short body" {
		t.Errorf("BodyPreview = %q, want %q", alert.Email.BodyPreview, "short body")
	}
	if alert.Scans == nil || len(alert.Scans) != 0 {
		t.Errorf("Scans = %#v, want empty non-nil slice", alert.Scans)
	}
	if alert.OverallRisk != core.RiskSafe || alert.AlertLevel != core.LevelLow {
		t.Errorf("got %s/%s, want SAFE/LOW", alert.OverallRisk, alert.AlertLevel)
	}
}

func TestAlertIDsAreUnique(t *testing.T) {
	builder := NewBuilder(fixedClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		id := builder.Build(core.EmailRecord{}, core.ContentAssessment{}, nil).AlertID
		if seen[id] {
			t.Fatalf("duplicate alert id %q", id)
		}
		seen[id] = true
	}
}

func TestBuildURLAlert(t *testing.T) {
	now := time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC)
	scan := core.ScanAssessment{URL: "https://evil.example", ThreatScore: 90}

	urlAlert := NewBuilder(fixedClock(now)).BuildURLAlert(core.EmailRecord{Sender: "a@b.example"}, scan)

	if urlAlert.Scan.URL != scan.URL || urlAlert.Email.Sender != "a@b.example" || !urlAlert.Timestamp.Equal(now) {
		t.Errorf("unexpected url alert %+v", urlAlert)
	}
}
