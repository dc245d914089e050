package archive

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

var sqliteDialect = dialect{
	name:   "SQLite",
	driver: "sqlite3",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS alert_archive (
			alert_id TEXT PRIMARY KEY,
			created_at TIMESTAMP NOT NULL,
			alert_level TEXT,
			overall_risk TEXT,
			sender TEXT,
			subject TEXT,
			payload TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_alert_archive_created_at ON alert_archive(created_at)`,
	},
	insert: `INSERT OR IGNORE INTO alert_archive
		(alert_id, created_at, alert_level, overall_risk, sender, subject, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
	recent: `SELECT payload FROM alert_archive ORDER BY created_at DESC, alert_id DESC LIMIT ?`,
	purge:  `DELETE FROM alert_archive WHERE created_at < ?`,
}

// NewSQLiteArchive opens or creates an alert archive in a SQLite file
func NewSQLiteArchive(dbPath string, logger *zap.Logger, retention, cleanupFreq time.Duration) (*SQLArchive, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create SQLite directory: %w", err)
		}
	}
	return openSQLArchive(sqliteDialect, dbPath, logger, retention, cleanupFreq)
}
