package config

import "time"

// WebmailConfig represents the browser-driven inbox configuration
type WebmailConfig struct {
	LoginURL    string
	InboxURL    string
	Username    string
	Password    string
	Headless    bool
	UserDataDir string
	PageTimeout time.Duration
	SettleDelay time.Duration
	// Selectors overrides, keyed by part (rows, sender, subject, timestamp, body)
	Selectors map[string][]string
}

// SMTPInboxConfig represents the SMTP receiver configuration
type SMTPInboxConfig struct {
	ListenAddress   string
	Domain          string
	MaxMessageBytes int64
	QueueSize       int
}

// InboxConfig represents the inbox source configuration
type InboxConfig struct {
	Type        string
	MaildirPath string
	Webmail     WebmailConfig
	SMTP        SMTPInboxConfig
}

// ScannerConfig represents the URL scan provider configuration
type ScannerConfig struct {
	Provider     string
	APIKey       string
	BaseURL      string
	Visibility   string
	UserAgent    string
	HTTPTimeout  time.Duration
	PollInterval time.Duration
	MaxAttempts  int
	MaxWait      time.Duration
	SubmitDelay  time.Duration
}

// MonitorConfig represents the monitoring loop configuration
type MonitorConfig struct {
	CycleInterval time.Duration
	ErrorBackoff  time.Duration
	MaxEmails     int
}

// AlertsConfig represents local alert output configuration
type AlertsConfig struct {
	LogFile      string
	ExportDir    string
	Console      bool
	ConsoleColor bool
}

// EmailNotifyConfig represents the SMTP notification configuration
type EmailNotifyConfig struct {
	Server    string
	Port      int
	Username  string
	Password  string
	From      string
	Recipient string
	StartTLS  bool
	Timeout   time.Duration
}

// WebhookConfig represents the webhook notification configuration
type WebhookConfig struct {
	URL     string
	Timeout time.Duration
}

// ArchiveConfig represents the alert archive configuration
type ArchiveConfig struct {
	Type             string
	Retention        time.Duration
	CleanupFrequency time.Duration
	SQLitePath       string
	MySQLDSN         string
	PostgresDSN      string
}

// ContentConfig represents the email content analysis configuration
type ContentConfig struct {
	TrustedDomains      []string
	ProtectedDomains    []string
	Classifier          string
	ClassifierThreshold float64
}

// BedrockConfig represents the configuration for Amazon Bedrock
type BedrockConfig struct {
	Region      string
	ModelID     string
	MaxTokens   int
	Temperature float32
	TopP        float32
	MaxBodySize int
}

// GeminiConfig represents the configuration for Google Gemini
type GeminiConfig struct {
	APIKey      string
	ModelName   string
	MaxTokens   int
	Temperature float32
	TopP        float32
	MaxBodySize int
}

// OpenAIConfig represents the configuration for OpenAI
type OpenAIConfig struct {
	APIKey      string
	ModelName   string
	BaseURL     string
	MaxTokens   int
	Temperature float32
	TopP        float32
	MaxBodySize int
}

// APIConfig represents the operator API configuration
type APIConfig struct {
	Enabled       bool
	ListenAddress string
	Token         string
}

// LoggingConfig represents the logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

var selectorParts = []string{"rows", "sender", "subject", "timestamp", "body"}

// GetInbox returns the inbox configuration
func (c *Config) GetInbox() InboxConfig {
	selectors := make(map[string][]string)
	for _, part := range selectorParts {
		if s := c.GetStringSlice("inbox.webmail.selectors." + part); len(s) > 0 {
			selectors[part] = s
		}
	}

	return InboxConfig{
		Type:        c.GetString("inbox.type"),
		MaildirPath: c.GetString("inbox.maildir.path"),
		Webmail: WebmailConfig{
			LoginURL:    c.GetString("inbox.webmail.login_url"),
			InboxURL:    c.GetString("inbox.webmail.inbox_url"),
			Username:    c.GetString("inbox.webmail.username"),
			Password:    c.GetString("inbox.webmail.password"),
			Headless:    c.GetBool("inbox.webmail.headless"),
			UserDataDir: c.GetString("inbox.webmail.user_data_dir"),
			PageTimeout: c.durationOr("inbox.webmail.page_timeout", 30*time.Second),
			SettleDelay: c.durationOr("inbox.webmail.settle_delay", 2*time.Second),
			Selectors:   selectors,
		},
		SMTP: SMTPInboxConfig{
			ListenAddress:   c.GetString("inbox.smtp.listen_address"),
			Domain:          c.GetString("inbox.smtp.domain"),
			MaxMessageBytes: c.GetViper().GetInt64("inbox.smtp.max_message_bytes"),
			QueueSize:       c.GetInt("inbox.smtp.queue_size"),
		},
	}
}

// GetScanner returns the scan provider configuration
func (c *Config) GetScanner() ScannerConfig {
	return ScannerConfig{
		Provider:     c.GetString("scanner.provider"),
		APIKey:       c.GetString("scanner.api_key"),
		BaseURL:      c.GetString("scanner.base_url"),
		Visibility:   c.GetString("scanner.visibility"),
		UserAgent:    c.GetString("scanner.user_agent"),
		HTTPTimeout:  c.durationOr("scanner.http_timeout", 30*time.Second),
		PollInterval: c.durationOr("scanner.poll_interval", 5*time.Second),
		MaxAttempts:  c.GetInt("scanner.max_attempts"),
		MaxWait:      c.durationOr("scanner.max_wait", 60*time.Second),
		SubmitDelay:  c.durationOr("scanner.submit_delay", time.Second),
	}
}

// GetMonitor returns the monitoring loop configuration
func (c *Config) GetMonitor() MonitorConfig {
	return MonitorConfig{
		CycleInterval: c.durationOr("monitor.cycle_interval", 30*time.Second),
		ErrorBackoff:  c.durationOr("monitor.error_backoff", 10*time.Second),
		MaxEmails:     c.GetInt("monitor.max_emails"),
	}
}

// GetAlerts returns the alert output configuration
func (c *Config) GetAlerts() AlertsConfig {
	return AlertsConfig{
		LogFile:      c.GetString("alerts.log_file"),
		ExportDir:    c.GetString("alerts.export_dir"),
		Console:      c.GetBool("alerts.console"),
		ConsoleColor: c.GetBool("alerts.console_color"),
	}
}

// GetEmailNotify returns the SMTP notification configuration
func (c *Config) GetEmailNotify() EmailNotifyConfig {
	return EmailNotifyConfig{
		Server:    c.GetString("notify.email.server"),
		Port:      c.GetInt("notify.email.port"),
		Username:  c.GetString("notify.email.username"),
		Password:  c.GetString("notify.email.password"),
		From:      c.GetString("notify.email.from"),
		Recipient: c.GetString("notify.email.recipient"),
		StartTLS:  c.GetBool("notify.email.starttls"),
		Timeout:   c.durationOr("notify.email.timeout", 30*time.Second),
	}
}

// GetWebhook returns the webhook notification configuration
func (c *Config) GetWebhook() WebhookConfig {
	return WebhookConfig{
		URL:     c.GetString("notify.webhook.url"),
		Timeout: c.durationOr("notify.webhook.timeout", 10*time.Second),
	}
}

// GetArchive returns the alert archive configuration
func (c *Config) GetArchive() ArchiveConfig {
	return ArchiveConfig{
		Type:             c.GetString("archive.type"),
		Retention:        c.durationOr("archive.retention", 720*time.Hour),
		CleanupFrequency: c.durationOr("archive.cleanup_frequency", time.Hour),
		SQLitePath:       c.GetString("archive.sqlite_path"),
		MySQLDSN:         c.GetString("archive.mysql_dsn"),
		PostgresDSN:      c.GetString("archive.postgres_dsn"),
	}
}

// GetContent returns the content analysis configuration
func (c *Config) GetContent() ContentConfig {
	return ContentConfig{
		TrustedDomains:      c.GetStringSlice("content.trusted_domains"),
		ProtectedDomains:    c.GetStringSlice("content.protected_domains"),
		Classifier:          c.GetString("content.classifier"),
		ClassifierThreshold: c.GetFloat64("content.classifier_threshold"),
	}
}

// GetBedrock returns the Bedrock configuration
func (c *Config) GetBedrock() BedrockConfig {
	return BedrockConfig{
		Region:      c.GetString("bedrock.region"),
		ModelID:     c.GetString("bedrock.model_id"),
		MaxTokens:   c.GetInt("bedrock.max_tokens"),
		Temperature: float32(c.GetFloat64("bedrock.temperature")),
		TopP:        float32(c.GetFloat64("bedrock.top_p")),
		MaxBodySize: c.GetInt("bedrock.max_body_size"),
	}
}

// GetGemini returns the Gemini configuration
func (c *Config) GetGemini() GeminiConfig {
	return GeminiConfig{
		APIKey:      c.GetString("gemini.api_key"),
		ModelName:   c.GetString("gemini.model_name"),
		MaxTokens:   c.GetInt("gemini.max_tokens"),
		Temperature: float32(c.GetFloat64("gemini.temperature")),
		TopP:        float32(c.GetFloat64("gemini.top_p")),
		MaxBodySize: c.GetInt("gemini.max_body_size"),
	}
}

// GetOpenAI returns the OpenAI configuration
func (c *Config) GetOpenAI() OpenAIConfig {
	return OpenAIConfig{
		APIKey:      c.GetString("openai.api_key"),
		ModelName:   c.GetString("openai.model_name"),
		BaseURL:     c.GetString("openai.base_url"),
		MaxTokens:   c.GetInt("openai.max_tokens"),
		Temperature: float32(c.GetFloat64("openai.temperature")),
		TopP:        float32(c.GetFloat64("openai.top_p")),
		MaxBodySize: c.GetInt("openai.max_body_size"),
	}
}

// GetAPI returns the operator API configuration
func (c *Config) GetAPI() APIConfig {
	return APIConfig{
		Enabled:       c.GetBool("api.enabled"),
		ListenAddress: c.GetString("api.listen_address"),
		Token:         c.GetString("api.token"),
	}
}

// GetLogging returns the logging configuration
func (c *Config) GetLogging() LoggingConfig {
	return LoggingConfig{
		Level:  c.GetString("logging.level"),
		Format: c.GetString("logging.format"),
	}
}
