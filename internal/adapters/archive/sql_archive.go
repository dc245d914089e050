package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/mikey/url-threat-monitor/internal/core"
)

// dialect captures what differs between the supported databases
type dialect struct {
	name   string
	driver string
	schema []string
	// insert must ignore a duplicate alert_id
	insert string
	recent string
	purge  string
}

// SQLArchive is a database/sql implementation of ports.AlertArchive
type SQLArchive struct {
	db          *sql.DB
	dialect     dialect
	logger      *zap.Logger
	retention   time.Duration
	cleanupFreq time.Duration
	stopCh      chan struct{}
	stopOnce    sync.Once
}

func openSQLArchive(d dialect, dsn string, logger *zap.Logger, retention, cleanupFreq time.Duration) (*SQLArchive, error) {
	db, err := sql.Open(d.driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", d.name, err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to %s database: %w", d.name, err)
	}

	for _, stmt := range d.schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create %s schema: %w", d.name, err)
		}
	}

	archive := &SQLArchive{
		db:          db,
		dialect:     d,
		logger:      logger,
		retention:   retention,
		cleanupFreq: cleanupFreq,
		stopCh:      make(chan struct{}),
	}

	if retention > 0 && cleanupFreq > 0 {
		go archive.startCleanupTask()
	}

	logger.Info("Alert archive ready", zap.String("database", d.name))
	return archive, nil
}

// Save stores an alert
func (a *SQLArchive) Save(ctx context.Context, alert *core.Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("%w: failed to encode alert: %v", core.ErrAlertPersistence, err)
	}

	_, err = a.db.ExecContext(ctx, a.dialect.insert,
		alert.AlertID,
		alert.Timestamp.UTC(),
		string(alert.AlertLevel),
		string(alert.OverallRisk),
		truncate(alert.Email.Sender, 255),
		truncate(alert.Email.Subject, 255),
		string(payload),
	)
	if err != nil {
		return fmt.Errorf("%w: failed to insert alert: %v", core.ErrAlertPersistence, err)
	}
	return nil
}

// Recent returns up to limit alerts, newest first
func (a *SQLArchive) Recent(ctx context.Context, limit int) ([]*core.Alert, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := a.db.QueryContext(ctx, a.dialect.recent, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query archive: %w", err)
	}
	defer rows.Close()

	var alerts []*core.Alert
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan archived alert: %w", err)
		}
		var alert core.Alert
		if err := json.Unmarshal([]byte(payload), &alert); err != nil {
			a.logger.Warn("Skipping unreadable archived alert", zap.Error(err))
			continue
		}
		alerts = append(alerts, &alert)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read archive: %w", err)
	}
	return alerts, nil
}

// Cleanup removes alerts older than the cutoff
func (a *SQLArchive) Cleanup(ctx context.Context, olderThan time.Time) error {
	result, err := a.db.ExecContext(ctx, a.dialect.purge, olderThan.UTC())
	if err != nil {
		return fmt.Errorf("failed to clean up archived alerts: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		a.logger.Warn("Failed to get rows affected during cleanup", zap.Error(err))
	} else {
		a.logger.Debug("Cleaned up archived alerts", zap.Int64("removed_count", rowsAffected))
	}
	return nil
}

// startCleanupTask starts a background task that enforces retention
func (a *SQLArchive) startCleanupTask() {
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

// Stop stops the background cleanup task and closes the database connection
func (a *SQLArchive) Stop() {
	a.stopOnce.Do(func() {
		close(a.stopCh)
		if err := a.db.Close(); err != nil {
			a.logger.Error("Failed to close archive database", zap.String("database", a.dialect.name), zap.Error(err))
		}
	})
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	s = s[:max]
	for len(s) > 0 && !utf8.ValidString(s) {
		s = s[:len(s)-1]
	}
	return s
}
