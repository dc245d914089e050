package ports

import (
	"context"

	"github.com/mikey/url-threat-monitor/internal/core"
)

// Notifier delivers alerts over one channel
type Notifier interface {
	// Name identifies the channel in logs
	Name() string

	// NotifyAlert delivers an email-level alert
	NotifyAlert(ctx context.Context, alert *core.Alert) error

	// NotifyURLAlert delivers a URL-level alert
	NotifyURLAlert(ctx context.Context, alert *core.URLAlert) error
}
