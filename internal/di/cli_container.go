package di

import (
	"flag"
	"os"
	"time"

	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mikey/url-threat-monitor/internal/config"
	"github.com/mikey/url-threat-monitor/internal/logging"
	"github.com/mikey/url-threat-monitor/internal/ports"
)

// CLIFlags contains all command line flags for the CLI application
type CLIFlags struct {
	// Input flags
	URL       string
	InputFile string

	// Scan flags
	APIKey       string
	Visibility   string
	PollInterval time.Duration
	MaxWait      time.Duration
	Lookup       bool

	// Content analysis flags
	Classifier string

	// Output flags
	ExportPath string
	Verbose    bool
	JSONLog    bool
	JSONOutput bool
	ConfigFile string
}

// ParseFlags parses command line flags and returns a CLIFlags struct
func ParseFlags() *CLIFlags {
	return ParseFlagSet(flag.CommandLine, nil)
}

// ParseFlagSet registers the CLI flags on fs and parses args. A nil args
// parses the process arguments.
func ParseFlagSet(fs *flag.FlagSet, args []string) *CLIFlags {
	flags := &CLIFlags{}

	// Input flags
	fs.StringVar(&flags.URL, "url", "", "URL to scan")
	fs.StringVar(&flags.InputFile, "file", "", "Email file (.eml) whose URLs and content are analyzed")

	// Scan flags
	fs.StringVar(&flags.APIKey, "api-key", "", "Scan provider API key (overrides configuration)")
	fs.StringVar(&flags.Visibility, "visibility", "", "Scan visibility (public, unlisted, private)")
	fs.DurationVar(&flags.PollInterval, "poll-interval", 0, "Wait between result polls")
	fs.DurationVar(&flags.MaxWait, "max-wait", 0, "Maximum time to wait for one scan result")
	fs.BoolVar(&flags.Lookup, "lookup", false, "Only search recent scans of -url instead of submitting it")

	// Content analysis flags
	fs.StringVar(&flags.Classifier, "classifier", "", "Content classifier (none, bedrock, gemini, openai)")

	// Output flags
	fs.StringVar(&flags.ExportPath, "export", "", "Export raised alerts to this file (.json, .yaml, .pdf)")
	fs.BoolVar(&flags.Verbose, "verbose", false, "Enable verbose logging")
	fs.BoolVar(&flags.JSONLog, "json-log", false, "Output logs in JSON format")
	fs.BoolVar(&flags.JSONOutput, "json", false, "Print the report as JSON")
	fs.StringVar(&flags.ConfigFile, "config", "", "Path to config file")

	if args == nil {
		args = os.Args[1:]
	}
	// flag.CommandLine exits on error, test flag sets report it through Parse
	_ = fs.Parse(args)
	return flags
}

// BuildCLIContainer creates and configures a dependency injection container for the CLI application
func BuildCLIContainer(flags *CLIFlags) (*dig.Container, error) {
	container := dig.New()

	// Register flags
	if err := container.Provide(func() *CLIFlags { return flags }); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(func(flags *CLIFlags) (*zap.Logger, error) {
		return logging.InitConsoleLogger(flags.Verbose, flags.JSONLog)
	}); err != nil {
		return nil, err
	}

	// Register configuration
	if err := container.Provide(func(flags *CLIFlags, logger *zap.Logger) (*config.Config, error) {
		cfg, err := config.NewFromFile(flags.ConfigFile)
		if err != nil {
			return nil, err
		}
		if used := cfg.GetViper().ConfigFileUsed(); used != "" {
			logger.Info("Loaded configuration from file", zap.String("file", used))
		}
		applyFlags(cfg, flags)
		return cfg, nil
	}); err != nil {
		return nil, err
	}

	// The CLI scans on demand and never polls an inbox
	if err := container.Provide(func() ports.InboxSource {
		return nil
	}); err != nil {
		return nil, err
	}

	if err := provideServices(container); err != nil {
		return nil, err
	}

	return container, nil
}

// applyFlags overrides configuration with explicitly set command line flags
func applyFlags(cfg *config.Config, flags *CLIFlags) {
	// the report is printed by the CLI itself
	cfg.Set("alerts.console", false)

	if flags.APIKey != "" {
		cfg.Set("scanner.api_key", flags.APIKey)
	}
	if flags.Visibility != "" {
		cfg.Set("scanner.visibility", flags.Visibility)
	}
	if flags.PollInterval > 0 {
		cfg.Set("scanner.poll_interval", flags.PollInterval.String())
	}
	if flags.MaxWait > 0 {
		cfg.Set("scanner.max_wait", flags.MaxWait.String())
	}
	if flags.Classifier != "" {
		cfg.Set("content.classifier", flags.Classifier)
	}
}
