package ports

import (
	"context"

	"github.com/mikey/url-threat-monitor/internal/core"
)

// InboxSource yields new email records from a mailbox
type InboxSource interface {
	// GetNewEmails returns up to max records not previously returned.
	// An empty slice means no new mail.
	GetNewEmails(ctx context.Context, max int) ([]core.EmailRecord, error)

	// Close releases any resources held by the source
	Close() error
}
