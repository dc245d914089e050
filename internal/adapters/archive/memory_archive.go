// Package archive stores alerts durably in memory or in a SQL database.
package archive

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mikey/url-threat-monitor/internal/core"
)

// MemoryArchive is an in-memory implementation of ports.AlertArchive
type MemoryArchive struct {
	alerts      []*core.Alert
	mu          sync.RWMutex
	logger      *zap.Logger
	retention   time.Duration
	cleanupFreq time.Duration
	stopCh      chan struct{}
	stopOnce    sync.Once
}

// NewMemoryArchive creates a new in-memory archive. Alerts older than
// retention are dropped every cleanupFreq; a zero retention keeps everything.
func NewMemoryArchive(logger *zap.Logger, retention, cleanupFreq time.Duration) *MemoryArchive {
	archive := &MemoryArchive{
		logger:      logger,
		retention:   retention,
		cleanupFreq: cleanupFreq,
		stopCh:      make(chan struct{}),
	}

	if retention > 0 && cleanupFreq > 0 {
		go archive.startCleanupTask()
	}

	return archive
}

// Save stores an alert
func (a *MemoryArchive) Save(ctx context.Context, alert *core.Alert) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.alerts = append(a.alerts, alert)
	return nil
}

// Recent returns up to limit alerts, newest first
func (a *MemoryArchive) Recent(ctx context.Context, limit int) ([]*core.Alert, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if limit <= 0 || limit > len(a.alerts) {
		limit = len(a.alerts)
	}
	recent := make([]*core.Alert, 0, limit)
	for i := len(a.alerts) - 1; i >= 0 && len(recent) < limit; i-- {
		recent = append(recent, a.alerts[i])
	}
	return recent, nil
}

// Cleanup removes alerts older than the cutoff
func (a *MemoryArchive) Cleanup(ctx context.Context, olderThan time.Time) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	kept := a.alerts[:0]
	for _, alert := range a.alerts {
		if !alert.Timestamp.Before(olderThan) {
			kept = append(kept, alert)
		}
	}
	removed := len(a.alerts) - len(kept)
	for i := len(kept); i < len(a.alerts); i++ {
		a.alerts[i] = nil
	}
	a.alerts = kept

	a.logger.Debug("Cleaned up archived alerts", zap.Int("removed_count", removed))
	return nil
}

// startCleanupTask starts a background task that enforces retention
func (a *MemoryArchive) startCleanupTask() {
	ticker := time.NewTicker(a.cleanupFreq)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := a.Cleanup(context.Background(), time.Now().Add(-a.retention)); err != nil {
				a.logger.Error("Failed to clean up archive", zap.Error(err))
			}
		case <-a.stopCh:
			return
		}
	}
}

// Stop stops the background cleanup task
func (a *MemoryArchive) Stop() {
	a.stopOnce.Do(func() { close(a.stopCh) })
}
