package inbox

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/mikey/url-threat-monitor/internal/core"
)

// WebmailConfig configures the browser-driven webmail source
type WebmailConfig struct {
	LoginURL    string
	InboxURL    string
	Username    string
	Password    string
	Headless    bool
	UserDataDir string
	PageTimeout time.Duration
	SettleDelay time.Duration
	Selectors   Selectors
}

// WebmailSource reads new messages from a webmail inbox through a headless
// Chrome session. Each message id is yielded at most once per process.
type WebmailSource struct {
	cfg    WebmailConfig
	logger *zap.Logger

	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc

	mu        sync.Mutex
	loggedIn  bool
	processed map[string]struct{}
}

// NewWebmailSource starts a browser for the configured account. Login is
// deferred until the first poll.
func NewWebmailSource(cfg WebmailConfig, logger *zap.Logger) (*WebmailSource, error) {
	if cfg.InboxURL == "" {
		return nil, fmt.Errorf("webmail inbox url: %w", core.ErrNotConfigured)
	}
	if cfg.PageTimeout <= 0 {
		cfg.PageTimeout = 30 * time.Second
	}
	if cfg.SettleDelay <= 0 {
		cfg.SettleDelay = 2 * time.Second
	}
	if len(cfg.Selectors.Rows) == 0 {
		cfg.Selectors = DefaultSelectors()
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.WindowSize(1920, 1080),
	)
	if cfg.UserDataDir != "" {
		opts = append(opts, chromedp.UserDataDir(cfg.UserDataDir))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	// start the browser now so a missing Chrome fails at startup
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}

	logger.Info("Started webmail browser session",
		zap.String("inbox_url", cfg.InboxURL),
		zap.Bool("headless", cfg.Headless))

	return &WebmailSource{
		cfg:           cfg,
		logger:        logger,
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
		processed:     make(map[string]struct{}),
	}, nil
}

// run executes actions in the browser bounded by the page timeout and the
// caller's context
func (s *WebmailSource) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithTimeout(s.browserCtx, s.cfg.PageTimeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return err
}

// firstPresent returns the first selector that appears within a short wait
func (s *WebmailSource) firstPresent(ctx context.Context, selectors []string) (string, bool) {
	for _, sel := range selectors {
		waitCtx, cancel := context.WithTimeout(ctx, s.cfg.PageTimeout/3)
		err := s.run(waitCtx, chromedp.WaitReady(sel, chromedp.ByQuery))
		cancel()
		if err == nil {
			return sel, true
		}
		if ctx.Err() != nil {
			return "", false
		}
	}
	return "", false
}

func (s *WebmailSource) login(ctx context.Context) error {
	if s.loggedIn {
		return nil
	}

	target := s.cfg.LoginURL
	if target == "" {
		target = s.cfg.InboxURL
	}
	s.logger.Info("Logging in to webmail", zap.String("url", target))
	if err := s.run(ctx, chromedp.Navigate(target), chromedp.Sleep(s.cfg.SettleDelay)); err != nil {
		return fmt.Errorf("failed to open login page: %w", err)
	}

	// an existing browser profile may already be signed in
	if _, ok := s.firstPresent(ctx, s.cfg.Selectors.Inbox); ok {
		s.loggedIn = true
		return nil
	}
	if s.cfg.Username == "" || s.cfg.Password == "" {
		return fmt.Errorf("webmail credentials: %w", core.ErrNotConfigured)
	}

	if err := s.fill(ctx, s.cfg.Selectors.LoginUser, s.cfg.Username); err != nil {
		return fmt.Errorf("failed to enter username: %w", err)
	}
	if err := s.fill(ctx, s.cfg.Selectors.LoginPass, s.cfg.Password); err != nil {
		return fmt.Errorf("failed to enter password: %w", err)
	}

	if _, ok := s.firstPresent(ctx, s.cfg.Selectors.Inbox); !ok {
		return errors.New("inbox not reached after login, the account may require manual verification")
	}

	s.logger.Info("Logged in to webmail", zap.String("username", s.cfg.Username))
	s.loggedIn = true
	return nil
}

func (s *WebmailSource) fill(ctx context.Context, selectors []string, value string) error {
	sel, ok := s.firstPresent(ctx, selectors)
	if !ok {
		return errors.New("input field not found")
	}
	actions := []chromedp.Action{chromedp.Clear(sel, chromedp.ByQuery), chromedp.SendKeys(sel, value, chromedp.ByQuery)}
	if submit, ok := s.firstPresent(ctx, s.cfg.Selectors.LoginSubmit); ok {
		actions = append(actions, chromedp.Click(submit, chromedp.ByQuery))
	}
	actions = append(actions, chromedp.Sleep(s.cfg.SettleDelay))
	return s.run(ctx, actions...)
}

// GetNewEmails implements ports.InboxSource. Only the first max rows of the
// inbox listing are inspected. Rows whose body cannot be read are left
// unprocessed so a later poll can retry them.
func (s *WebmailSource) GetNewEmails(ctx context.Context, max int) ([]core.EmailRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.login(ctx); err != nil {
		return nil, err
	}

	listing, err := s.inboxHTML(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := ParseInbox(listing, s.cfg.Selectors)
	if err != nil {
		return nil, fmt.Errorf("failed to parse inbox: %w", err)
	}
	if max > 0 && len(rows) > max {
		rows = rows[:max]
	}

	var emails []core.EmailRecord
	for _, row := range rows {
		if _, ok := s.processed[row.ID]; ok {
			continue
		}
		if err := ctx.Err(); err != nil {
			return emails, err
		}

		body, err := s.openBody(ctx, row)
		if err != nil {
			s.logger.Warn("Failed to read message body", zap.String("email_id", row.ID), zap.Error(err))
			continue
		}
		if body == "" {
			continue
		}

		emails = append(emails, core.EmailRecord{
			ID:        row.ID,
			Sender:    row.Sender,
			Subject:   row.Subject,
			Timestamp: row.Timestamp,
			Body:      body,
		})
		s.processed[row.ID] = struct{}{}
	}

	s.logger.Debug("Polled webmail inbox",
		zap.Int("rows", len(rows)),
		zap.Int("new", len(emails)))
	return emails, nil
}

func (s *WebmailSource) inboxHTML(ctx context.Context) (string, error) {
	var html string
	err := s.run(ctx,
		chromedp.Navigate(s.cfg.InboxURL),
		chromedp.Sleep(s.cfg.SettleDelay),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return "", fmt.Errorf("failed to load inbox: %w", err)
	}
	return html, nil
}

func (s *WebmailSource) openBody(ctx context.Context, row InboxRow) (string, error) {
	var html string
	err := s.run(ctx,
		chromedp.Navigate(s.cfg.InboxURL),
		chromedp.WaitReady(row.Locator, chromedp.ByQuery),
		chromedp.Click(row.Locator, chromedp.ByQuery),
		chromedp.Sleep(s.cfg.SettleDelay),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return "", err
	}
	return ParseBody(html, s.cfg.Selectors)
}

// Processed reports how many message ids have been yielded
func (s *WebmailSource) Processed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.processed)
}

// Close shuts down the browser
func (s *WebmailSource) Close() error {
	s.browserCancel()
	s.allocCancel()
	s.logger.Info("Closed webmail browser session")
	return nil
}
