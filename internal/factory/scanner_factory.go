package factory

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/mikey/url-threat-monitor/internal/adapters/urlscan"
	"github.com/mikey/url-threat-monitor/internal/config"
	"github.com/mikey/url-threat-monitor/internal/orchestrator"
)

// ScannerFactory creates the URL scan provider and the loop policy
type ScannerFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewScannerFactory creates a new scanner factory
func NewScannerFactory(cfg *config.Config, logger *zap.Logger) *ScannerFactory {
	return &ScannerFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateClient creates the scan provider client. A missing API key is not an
// error here; submissions fail with ErrNotConfigured instead.
func (f *ScannerFactory) CreateClient() (*urlscan.Client, error) {
	scannerCfg := f.cfg.GetScanner()
	if scannerCfg.Provider != "urlscan" {
		return nil, fmt.Errorf("unsupported scan provider: %s", scannerCfg.Provider)
	}
	if scannerCfg.APIKey == "" {
		f.logger.Warn("No scan provider API key configured, URL scans will fail")
	}

	return urlscan.NewClient(urlscan.Config{
		APIKey:     scannerCfg.APIKey,
		BaseURL:    scannerCfg.BaseURL,
		Visibility: scannerCfg.Visibility,
		Timeout:    scannerCfg.HTTPTimeout,
		UserAgent:  scannerCfg.UserAgent,
	}, f.logger), nil
}

// CreatePolicy builds the orchestrator limits from the scanner and monitor sections
func (f *ScannerFactory) CreatePolicy() orchestrator.Policy {
	scannerCfg := f.cfg.GetScanner()
	monitorCfg := f.cfg.GetMonitor()

	return orchestrator.Policy{
		PollInterval:      scannerCfg.PollInterval,
		MaxAttempts:       scannerCfg.MaxAttempts,
		MaxWait:           scannerCfg.MaxWait,
		SubmitDelay:       scannerCfg.SubmitDelay,
		CycleInterval:     monitorCfg.CycleInterval,
		ErrorBackoff:      monitorCfg.ErrorBackoff,
		MaxEmailsPerCycle: monitorCfg.MaxEmails,
	}
}
