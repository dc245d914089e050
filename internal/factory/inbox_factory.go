package factory

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/mikey/url-threat-monitor/internal/adapters/inbox"
	"github.com/mikey/url-threat-monitor/internal/config"
	"github.com/mikey/url-threat-monitor/internal/ports"
)

// InboxFactory creates inbox sources based on configuration
type InboxFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewInboxFactory creates a new inbox factory
func NewInboxFactory(cfg *config.Config, logger *zap.Logger) *InboxFactory {
	return &InboxFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateInboxSource creates an inbox source based on the configuration
func (f *InboxFactory) CreateInboxSource() (ports.InboxSource, error) {
	inboxCfg := f.cfg.GetInbox()

	switch inboxCfg.Type {
	case "webmail":
		source, err := inbox.NewWebmailSource(WebmailSettings(inboxCfg.Webmail), f.logger)
		if err != nil {
			return nil, err
		}
		return source, nil
	case "maildir":
		source, err := inbox.NewMaildirSource(inboxCfg.MaildirPath, f.logger)
		if err != nil {
			return nil, err
		}
		return source, nil
	case "smtp":
		source, err := inbox.NewSMTPReceiver(inbox.SMTPReceiverConfig{
			ListenAddress:   inboxCfg.SMTP.ListenAddress,
			Domain:          inboxCfg.SMTP.Domain,
			MaxMessageBytes: inboxCfg.SMTP.MaxMessageBytes,
			QueueSize:       inboxCfg.SMTP.QueueSize,
		}, f.logger)
		if err != nil {
			return nil, err
		}
		return source, nil
	default:
		return nil, fmt.Errorf("unsupported inbox type: %s", inboxCfg.Type)
	}
}

// WebmailSettings converts configuration into adapter settings. Selector
// parts that are not overridden keep their defaults.
func WebmailSettings(cfg config.WebmailConfig) inbox.WebmailConfig {
	selectors := inbox.DefaultSelectors()
	for part, values := range cfg.Selectors {
		switch part {
		case "rows":
			selectors.Rows = values
		case "sender":
			selectors.Sender = values
		case "subject":
			selectors.Subject = values
		case "timestamp":
			selectors.Timestamp = values
		case "body":
			selectors.Body = values
		}
	}

	return inbox.WebmailConfig{
		LoginURL:    cfg.LoginURL,
		InboxURL:    cfg.InboxURL,
		Username:    cfg.Username,
		Password:    cfg.Password,
		Headless:    cfg.Headless,
		UserDataDir: cfg.UserDataDir,
		PageTimeout: cfg.PageTimeout,
		SettleDelay: cfg.SettleDelay,
		Selectors:   selectors,
	}
}
