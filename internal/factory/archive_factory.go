package factory

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/mikey/url-threat-monitor/internal/adapters/archive"
	"github.com/mikey/url-threat-monitor/internal/config"
	"github.com/mikey/url-threat-monitor/internal/ports"
)

// Archive is an alert archive with a background cleanup task
type Archive interface {
	ports.AlertArchive
	Stop()
}

// ArchiveFactory creates alert archives based on configuration
type ArchiveFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewArchiveFactory creates a new archive factory
func NewArchiveFactory(cfg *config.Config, logger *zap.Logger) *ArchiveFactory {
	return &ArchiveFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateArchive creates the configured archive, or nil when archiving is disabled
func (f *ArchiveFactory) CreateArchive() (Archive, error) {
	archiveCfg := f.cfg.GetArchive()

	switch archiveCfg.Type {
	case "", "none":
		return nil, nil
	case "memory":
		return archive.NewMemoryArchive(f.logger, archiveCfg.Retention, archiveCfg.CleanupFrequency), nil
	case "sqlite":
		a, err := archive.NewSQLiteArchive(archiveCfg.SQLitePath, f.logger, archiveCfg.Retention, archiveCfg.CleanupFrequency)
		if err != nil {
			return nil, err
		}
		return a, nil
	case "mysql":
		a, err := archive.NewMySQLArchive(archiveCfg.MySQLDSN, f.logger, archiveCfg.Retention, archiveCfg.CleanupFrequency)
		if err != nil {
			return nil, err
		}
		return a, nil
	case "postgres":
		a, err := archive.NewPostgresArchive(archiveCfg.PostgresDSN, f.logger, archiveCfg.Retention, archiveCfg.CleanupFrequency)
		if err != nil {
			return nil, err
		}
		return a, nil
	default:
		return nil, fmt.Errorf("unsupported archive type: %s", archiveCfg.Type)
	}
}
