package archive

import (
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

var postgresDialect = dialect{
	name:   "PostgreSQL",
	driver: "postgres",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS alert_archive (
			alert_id TEXT PRIMARY KEY,
			created_at TIMESTAMPTZ NOT NULL,
			alert_level TEXT,
			overall_risk TEXT,
			sender TEXT,
			subject TEXT,
			payload JSONB NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_alert_archive_created_at ON alert_archive(created_at)`,
	},
	insert: `INSERT INTO alert_archive
		(alert_id, created_at, alert_level, overall_risk, sender, subject, payload)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (alert_id) DO NOTHING`,
	recent: `SELECT payload::text FROM alert_archive ORDER BY created_at DESC, alert_id DESC LIMIT $1`,
	purge:  `DELETE FROM alert_archive WHERE created_at < $1`,
}

// NewPostgresArchive connects to a PostgreSQL alert archive
func NewPostgresArchive(dsn string, logger *zap.Logger, retention, cleanupFreq time.Duration) (*SQLArchive, error) {
	return openSQLArchive(postgresDialect, dsn, logger, retention, cleanupFreq)
}
