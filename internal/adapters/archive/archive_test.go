package archive

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/mikey/url-threat-monitor/internal/core"
	"github.com/mikey/url-threat-monitor/internal/ports"
)

func archivedAlert(id string, at time.Time) *core.Alert {
	return &core.Alert{
		AlertID:     id,
		Timestamp:   at,
		Email:       core.EmailSummary{Sender: "bad@example.com", Subject: "Subject " + id},
		Scans:       []core.ScanAssessment{{URL: "https://evil.example", ThreatScore: 70}},
		OverallRisk: core.RiskHigh,
		AlertLevel:  core.LevelCritical,
	}
}

// exerciseArchive runs the behaviour every archive must share
func exerciseArchive(t *testing.T, archive ports.AlertArchive) {
	t.Helper()
	ctx := context.Background()
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	for i, id := range []string{"old", "mid", "new"} {
		if err := archive.Save(ctx, archivedAlert(id, base.Add(time.Duration(i)*time.Hour))); err != nil {
			t.Fatalf("Save(%s) error = %v", id, err)
		}
	}

	recent, err := archive.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(recent) != 2 || recent[0].AlertID != "new" || recent[1].AlertID != "mid" {
		t.Fatalf("Recent(2) = %v", ids(recent))
	}
	if recent[0].Scans[0].ThreatScore != 70 || recent[0].AlertLevel != core.LevelCritical {
		t.Errorf("alert did not round trip: %+v", recent[0])
	}

	if err := archive.Cleanup(ctx, base.Add(90*time.Minute)); err != nil {
		t.Fatalf("Cleanup() error = %v", err)
	}
	remaining, err := archive.Recent(ctx, 0)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(remaining) != 1 || remaining[0].AlertID != "new" {
		t.Errorf("after Cleanup Recent() = %v, want [new]", ids(remaining))
	}
}

func ids(alerts []*core.Alert) []string {
	out := make([]string, 0, len(alerts))
	for _, a := range alerts {
		out = append(out, a.AlertID)
	}
	return out
}

func TestMemoryArchive(t *testing.T) {
	archive := NewMemoryArchive(zaptest.NewLogger(t), 0, 0)
	defer archive.Stop()
	exerciseArchive(t, archive)
}

func TestSQLiteArchive(t *testing.T) {
	archive, err := NewSQLiteArchive(filepath.Join(t.TempDir(), "db", "alerts.db"), zaptest.NewLogger(t), 0, 0)
	if err != nil {
		t.Fatalf("NewSQLiteArchive() error = %v", err)
	}
	defer archive.Stop()
	exerciseArchive(t, archive)
}

func TestSQLiteArchiveIgnoresDuplicates(t *testing.T) {
	archive, err := NewSQLiteArchive(filepath.Join(t.TempDir(), "alerts.db"), zaptest.NewLogger(t), 0, 0)
	if err != nil {
		t.Fatalf("NewSQLiteArchive() error = %v", err)
	}
	defer archive.Stop()

	alert := archivedAlert("dup", time.Now())
	for i := 0; i < 2; i++ {
		if err := archive.Save(context.Background(), alert); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
	}
	recent, _ := archive.Recent(context.Background(), 10)
	if len(recent) != 1 {
		t.Errorf("stored %d copies, want 1", len(recent))
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("héllo", 2); got != "h" {
		t.Errorf("truncate split a rune: %q", got)
	}
	if got := truncate("short", 255); got != "short" {
		t.Errorf("truncate changed a short string: %q", got)
	}
}
