package factory

import (
	"os"

	"go.uber.org/zap"

	"github.com/mikey/url-threat-monitor/internal/adapters/notify"
	"github.com/mikey/url-threat-monitor/internal/config"
	"github.com/mikey/url-threat-monitor/internal/ports"
)

// NotifierFactory creates the alert notification channels
type NotifierFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewNotifierFactory creates a new notifier factory
func NewNotifierFactory(cfg *config.Config, logger *zap.Logger) *NotifierFactory {
	return &NotifierFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateNotifiers returns every enabled channel. The email channel is always
// present; when it is not fully configured it reports ErrNotConfigured per alert.
func (f *NotifierFactory) CreateNotifiers() []ports.Notifier {
	var notifiers []ports.Notifier

	alertsCfg := f.cfg.GetAlerts()
	if alertsCfg.Console {
		notifiers = append(notifiers, notify.NewConsoleNotifier(os.Stdout, alertsCfg.ConsoleColor))
	}

	emailCfg := f.cfg.GetEmailNotify()
	notifiers = append(notifiers, notify.NewSMTPNotifier(notify.SMTPConfig{
		Server:    emailCfg.Server,
		Port:      emailCfg.Port,
		Username:  emailCfg.Username,
		Password:  emailCfg.Password,
		From:      emailCfg.From,
		Recipient: emailCfg.Recipient,
		StartTLS:  emailCfg.StartTLS,
		Timeout:   emailCfg.Timeout,
	}, f.logger))

	if webhookCfg := f.cfg.GetWebhook(); webhookCfg.URL != "" {
		notifiers = append(notifiers, notify.NewWebhookNotifier(webhookCfg.URL, webhookCfg.Timeout, f.logger))
	}

	return notifiers
}
