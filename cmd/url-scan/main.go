package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/mikey/url-threat-monitor/internal/adapters/inbox"
	"github.com/mikey/url-threat-monitor/internal/adapters/urlscan"
	"github.com/mikey/url-threat-monitor/internal/alert"
	"github.com/mikey/url-threat-monitor/internal/core"
	"github.com/mikey/url-threat-monitor/internal/di"
	"github.com/mikey/url-threat-monitor/internal/extract"
	"github.com/mikey/url-threat-monitor/internal/factory"
	"github.com/mikey/url-threat-monitor/internal/orchestrator"
	"github.com/mikey/url-threat-monitor/internal/risk"
)

func main() {
	flags := di.ParseFlags()
	if flags.URL == "" && flags.InputFile == "" {
		fmt.Fprintln(os.Stderr, "Either -url or -file is required")
		os.Exit(2)
	}

	container, err := di.BuildCLIContainer(flags)
	if err != nil {
		fmt.Printf("Failed to build dependency container: %v\n", err)
		os.Exit(1)
	}

	if err := container.Invoke(run); err != nil {
		fmt.Printf("Application error: %v\n", err)
		os.Exit(1)
	}
}

func run(
	flags *di.CLIFlags,
	logger *zap.Logger,
	monitor *orchestrator.Orchestrator,
	dispatcher *alert.Dispatcher,
	client *urlscan.Client,
	classifiers *factory.ClassifierFactory,
) error {
	defer logger.Sync()
	defer classifiers.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch {
	case flags.Lookup:
		err = lookup(ctx, flags, client)
	case flags.InputFile != "":
		err = scanFile(ctx, flags, monitor)
	default:
		err = scanURL(ctx, flags, monitor)
	}
	if err != nil {
		return err
	}

	if flags.ExportPath != "" {
		path, ok := dispatcher.Export(flags.ExportPath)
		if !ok {
			return errors.New("failed to export alerts")
		}
		fmt.Printf("\nAlerts exported to %s\n", path)
	}
	return nil
}

func lookup(ctx context.Context, flags *di.CLIFlags, client *urlscan.Client) error {
	if flags.URL == "" {
		return errors.New("-lookup requires -url")
	}
	results, err := client.Search(ctx, flags.URL, 10)
	if err != nil {
		return err
	}
	if flags.JSONOutput {
		return printJSON(results)
	}

	fmt.Printf("\n=== Recent scans of %s ===\n", flags.URL)
	if len(results) == 0 {
		fmt.Println("No previous scans found")
	}
	for _, r := range results {
		fmt.Printf("%s  %-36s  score=%d malicious=%t  %s (%s)\n", r.Time, r.ScanID, r.Score, r.Malicious, r.Domain, r.IP)
	}
	return nil
}

func scanURL(ctx context.Context, flags *di.CLIFlags, monitor *orchestrator.Orchestrator) error {
	urls := extract.URLs(flags.URL)
	if len(urls) != 1 {
		return fmt.Errorf("not a single http(s) URL: %q", flags.URL)
	}

	start := time.Now()
	outcome := monitor.ScanURL(ctx, urls[0])
	if flags.JSONOutput {
		return printJSON(outcome)
	}

	printOutcome(outcome)
	if outcome.Assessment != nil {
		scans := []core.ScanAssessment{*outcome.Assessment}
		fmt.Printf("\n=== Risk ===\n")
		fmt.Printf("Overall risk: %s\n", risk.Overall(core.ContentAssessment{}, scans))
		fmt.Printf("Alert level: %s\n", risk.Level(core.ContentAssessment{}, scans))
	}
	fmt.Printf("Processing time: %v\n", time.Since(start).Round(time.Millisecond))
	return nil
}

func scanFile(ctx context.Context, flags *di.CLIFlags, monitor *orchestrator.Orchestrator) error {
	file, err := os.Open(flags.InputFile)
	if err != nil {
		return fmt.Errorf("failed to open input file: %w", err)
	}
	defer file.Close()

	email, err := inbox.ReadMessage(file, flags.InputFile)
	if err != nil {
		return err
	}

	start := time.Now()
	report, err := monitor.ProcessEmail(ctx, email)
	if err != nil {
		return err
	}
	if flags.JSONOutput {
		return printJSON(report)
	}

	fmt.Printf("\n=== Email Summary ===\n")
	fmt.Printf("From: %s\n", email.Sender)
	fmt.Printf("Subject: %s\n", email.Subject)
	fmt.Printf("Body length: %d bytes\n", len(email.Body))
	fmt.Printf("URLs found: %d\n", len(report.URLs))
	for _, u := range report.URLs {
		fmt.Printf("   - %s\n", u)
	}

	fmt.Printf("\n=== Content Analysis ===\n")
	fmt.Printf("Sender risk score: %d\n", report.Content.SenderRiskScore)
	for _, r := range report.Content.SenderRisks {
		fmt.Printf("   - %s\n", r)
	}
	fmt.Printf("Content score: %d\n", report.Content.ContentScore)
	for _, t := range report.Content.Threats {
		fmt.Printf("   - [%s] %s (+%d)\n", t.Type, t.Description, t.Score)
	}

	var scans []core.ScanAssessment
	for _, outcome := range report.Outcomes {
		printOutcome(outcome)
		if outcome.Assessment != nil {
			scans = append(scans, *outcome.Assessment)
		}
	}

	fmt.Printf("\n=== Risk ===\n")
	fmt.Printf("Overall risk: %s\n", risk.Overall(report.Content, scans))
	fmt.Printf("Alert level: %s\n", risk.Level(report.Content, scans))
	if report.Alert != nil {
		fmt.Printf("Alert raised: %s\n", report.Alert.AlertID)
	} else {
		fmt.Println("No alert raised")
	}
	fmt.Printf("Processing time: %v\n", time.Since(start).Round(time.Millisecond))
	return nil
}

func printOutcome(outcome core.ScanOutcome) {
	fmt.Printf("\n=== Scan: %s ===\n", outcome.URL)
	fmt.Printf("State: %s\n", outcome.State)
	if outcome.ScanID != "" {
		fmt.Printf("Scan ID: %s\n", outcome.ScanID)
	}
	fmt.Printf("Polls: %d\n", outcome.Attempts)
	if outcome.Error != "" {
		fmt.Printf("Error: %s\n", outcome.Error)
	}
	if a := outcome.Assessment; a != nil {
		fmt.Printf("Threat score: %d/100\n", a.ThreatScore)
		fmt.Printf("Malicious: %t\n", a.Malicious)
		if len(a.Categories) > 0 {
			fmt.Printf("Categories: %s\n", strings.Join(a.Categories, ", "))
		}
		for _, ind := range a.Indicators {
			fmt.Printf("   ! %s\n", ind)
		}
		fmt.Printf("Summary: %s\n", a.Summary)
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
