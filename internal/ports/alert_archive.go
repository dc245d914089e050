package ports

import (
	"context"
	"time"

	"github.com/mikey/url-threat-monitor/internal/core"
)

// AlertArchive durably stores alerts outside the process
type AlertArchive interface {
	// Save stores an alert
	Save(ctx context.Context, alert *core.Alert) error

	// Recent returns up to limit alerts, newest first
	Recent(ctx context.Context, limit int) ([]*core.Alert, error)

	// Cleanup removes alerts older than the cutoff
	Cleanup(ctx context.Context, olderThan time.Time) error
}
