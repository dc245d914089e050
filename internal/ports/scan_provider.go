package ports

import (
	"context"

	"github.com/mikey/url-threat-monitor/internal/core"
)

// ScanProvider submits URLs to a reputation scanning service
type ScanProvider interface {
	// Submit queues url for scanning and returns the provider scan ID.
	// Errors wrap core.ErrScanSubmission or core.ErrScanBlocked.
	Submit(ctx context.Context, url string) (string, error)

	// Poll checks a submitted scan once
	Poll(ctx context.Context, scanID string) (*core.PollResult, error)
}
