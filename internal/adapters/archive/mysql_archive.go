package archive

import (
	"time"

	_ "github.com/go-sql-driver/mysql"
	"go.uber.org/zap"
)

var mysqlDialect = dialect{
	name:   "MySQL",
	driver: "mysql",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS alert_archive (
			alert_id VARCHAR(64) PRIMARY KEY,
			created_at DATETIME(6) NOT NULL,
			alert_level VARCHAR(16),
			overall_risk VARCHAR(16),
			sender VARCHAR(255),
			subject VARCHAR(255),
			payload MEDIUMTEXT NOT NULL,
			INDEX idx_alert_archive_created_at (created_at)
		)`,
	},
	insert: `INSERT IGNORE INTO alert_archive
		(alert_id, created_at, alert_level, overall_risk, sender, subject, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
	recent: `SELECT payload FROM alert_archive ORDER BY created_at DESC, alert_id DESC LIMIT ?`,
	purge:  `DELETE FROM alert_archive WHERE created_at < ?`,
}

// NewMySQLArchive connects to a MySQL alert archive
func NewMySQLArchive(dsn string, logger *zap.Logger, retention, cleanupFreq time.Duration) (*SQLArchive, error) {
	return openSQLArchive(mysqlDialect, dsn, logger, retention, cleanupFreq)
}
