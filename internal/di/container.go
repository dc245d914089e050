package di

import (
	"context"
	"time"

	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mikey/url-threat-monitor/internal/adapters/urlscan"
	"github.com/mikey/url-threat-monitor/internal/alert"
	"github.com/mikey/url-threat-monitor/internal/api"
	"github.com/mikey/url-threat-monitor/internal/config"
	"github.com/mikey/url-threat-monitor/internal/content"
	"github.com/mikey/url-threat-monitor/internal/factory"
	"github.com/mikey/url-threat-monitor/internal/logging"
	"github.com/mikey/url-threat-monitor/internal/orchestrator"
	"github.com/mikey/url-threat-monitor/internal/ports"
	"github.com/mikey/url-threat-monitor/internal/utils"
	"github.com/mikey/url-threat-monitor/internal/whitelist"
)

// BuildContainer creates and configures a dependency injection container
func BuildContainer() (*dig.Container, error) {
	container := dig.New()

	// Register configuration
	if err := container.Provide(config.New); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(logging.InitLogger); err != nil {
		return nil, err
	}

	// Register inbox source
	if err := container.Provide(factory.NewInboxFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(func(f *factory.InboxFactory) (ports.InboxSource, error) {
		return f.CreateInboxSource()
	}); err != nil {
		return nil, err
	}

	if err := provideServices(container); err != nil {
		return nil, err
	}

	// Register operator API, nil when disabled
	if err := container.Provide(func(
		cfg *config.Config,
		dispatcher *alert.Dispatcher,
		monitor *orchestrator.Orchestrator,
		archive factory.Archive,
		logger *zap.Logger,
	) *api.Server {
		apiCfg := cfg.GetAPI()
		if !apiCfg.Enabled {
			return nil
		}
		var store ports.AlertArchive
		if archive != nil {
			store = archive
		}
		return api.NewServer(apiCfg.ListenAddress, apiCfg.Token, dispatcher, monitor, store, logger)
	}); err != nil {
		return nil, err
	}

	return container, nil
}

// provideServices registers everything below the inbox source. It expects
// the configuration, the logger and a ports.InboxSource to be provided.
func provideServices(container *dig.Container) error {
	// Register factories
	if err := container.Provide(factory.NewTextProcessorFactory); err != nil {
		return err
	}
	if err := container.Provide(factory.NewClassifierFactory); err != nil {
		return err
	}
	if err := container.Provide(factory.NewArchiveFactory); err != nil {
		return err
	}
	if err := container.Provide(factory.NewNotifierFactory); err != nil {
		return err
	}
	if err := container.Provide(factory.NewScannerFactory); err != nil {
		return err
	}

	// Register text processor
	if err := container.Provide(func(f *factory.TextProcessorFactory) *utils.TextProcessor {
		return f.CreateTextProcessor()
	}); err != nil {
		return err
	}

	// Register content classifier, nil when disabled
	if err := container.Provide(func(f *factory.ClassifierFactory) (ports.ContentClassifier, error) {
		return f.CreateClassifier(context.Background())
	}); err != nil {
		return err
	}

	// Register alert archive, nil when disabled
	if err := container.Provide(func(f *factory.ArchiveFactory) (factory.Archive, error) {
		return f.CreateArchive()
	}); err != nil {
		return err
	}

	// Register notifiers
	if err := container.Provide(func(f *factory.NotifierFactory) []ports.Notifier {
		return f.CreateNotifiers()
	}); err != nil {
		return err
	}

	// Register scan provider and loop policy
	if err := container.Provide(func(f *factory.ScannerFactory) (*urlscan.Client, error) {
		return f.CreateClient()
	}); err != nil {
		return err
	}
	if err := container.Provide(func(client *urlscan.Client) ports.ScanProvider {
		return client
	}); err != nil {
		return err
	}
	if err := container.Provide(func(f *factory.ScannerFactory) orchestrator.Policy {
		return f.CreatePolicy()
	}); err != nil {
		return err
	}

	// Register trusted sender domains
	if err := container.Provide(func(cfg *config.Config, logger *zap.Logger) *whitelist.Checker {
		trusted := cfg.GetContent().TrustedDomains
		if len(trusted) > 0 {
			logger.Info("Loaded trusted domains", zap.Strings("domains", trusted))
		}
		return whitelist.NewChecker(trusted, logger)
	}); err != nil {
		return err
	}

	// Register content analyzer
	if err := container.Provide(func(
		cfg *config.Config,
		logger *zap.Logger,
		trusted *whitelist.Checker,
		classifier ports.ContentClassifier,
	) *content.Analyzer {
		contentCfg := cfg.GetContent()
		return content.NewAnalyzer(logger, trusted, contentCfg.ProtectedDomains, classifier, contentCfg.ClassifierThreshold)
	}); err != nil {
		return err
	}

	// Register alerting
	if err := container.Provide(func() *alert.Builder {
		return alert.NewBuilder(time.Now)
	}); err != nil {
		return err
	}
	if err := container.Provide(func(
		cfg *config.Config,
		logger *zap.Logger,
		archive factory.Archive,
		notifiers []ports.Notifier,
	) *alert.Dispatcher {
		alertsCfg := cfg.GetAlerts()
		var store ports.AlertArchive
		if archive != nil {
			store = archive
		}
		return alert.NewDispatcher(
			logger,
			alert.NewHistory(),
			alert.NewLogWriter(alertsCfg.LogFile),
			alert.NewExporter(alertsCfg.ExportDir, time.Now),
			store,
			notifiers,
		)
	}); err != nil {
		return err
	}

	// Register orchestrator and its process-wide record of handled emails
	if err := container.Provide(orchestrator.NewSeenSet); err != nil {
		return err
	}
	if err := container.Provide(func(
		logger *zap.Logger,
		policy orchestrator.Policy,
		seen *orchestrator.SeenSet,
		inbox ports.InboxSource,
		provider ports.ScanProvider,
		analyzer *content.Analyzer,
		builder *alert.Builder,
		dispatcher *alert.Dispatcher,
	) *orchestrator.Orchestrator {
		return orchestrator.New(logger, policy, seen, inbox, provider, analyzer, builder, dispatcher)
	}); err != nil {
		return err
	}

	return nil
}
