// Package urlscan implements ports.ScanProvider against the urlscan.io API.
package urlscan

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mikey/url-threat-monitor/internal/core"
	"github.com/mikey/url-threat-monitor/internal/scanner"
)

// DefaultBaseURL is the public urlscan.io endpoint
const DefaultBaseURL = "https://urlscan.io"

// maxBodySize caps how much of a response is read
const maxBodySize = 16 << 20

// Config holds the urlscan client settings
type Config struct {
	APIKey     string
	BaseURL    string
	Visibility string
	Timeout    time.Duration
	UserAgent  string
}

// Client is a urlscan.io API client
type Client struct {
	cfg    Config
	http   *http.Client
	logger *zap.Logger
}

// NewClient creates a urlscan client
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Visibility == "" {
		cfg.Visibility = "public"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "url-threat-monitor/1.0"
	}

	if cfg.APIKey == "" {
		logger.Warn("urlscan API key not set, submissions will fail")
	}

	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

type submitRequest struct {
	URL        string `json:"url"`
	Visibility string `json:"visibility"`
}

type submitResponse struct {
	UUID    string `json:"uuid"`
	Result  string `json:"result"`
	Message string `json:"message"`
}

type apiError struct {
	Message     string `json:"message"`
	Description string `json:"description"`
	Status      int    `json:"status"`
}

// Submit implements ports.ScanProvider
func (c *Client) Submit(ctx context.Context, target string) (string, error) {
	if c.cfg.APIKey == "" {
		return "", fmt.Errorf("%w: %w: api key", core.ErrScanSubmission, core.ErrNotConfigured)
	}

	payload, err := json.Marshal(submitRequest{URL: target, Visibility: c.cfg.Visibility})
	if err != nil {
		return "", fmt.Errorf("%w: failed to encode request: %v", core.ErrScanSubmission, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/api/v1/scan/", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("%w: failed to create request: %v", core.ErrScanSubmission, err)
	}
	req.Header.Set("Content-Type", "application/json")

	body, status, err := c.do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", core.ErrScanSubmission, err)
	}

	if status != http.StatusOK {
		reason := describeError(body, status)
		if status == http.StatusBadRequest && isBlocked(reason) {
			return "", fmt.Errorf("%w: %s", core.ErrScanBlocked, reason)
		}
		return "", fmt.Errorf("%w: status %d: %s", core.ErrScanSubmission, status, reason)
	}

	var resp submitResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("%w: %w: %v", core.ErrScanSubmission, core.ErrScanProviderResponse, err)
	}
	if _, err := uuid.Parse(resp.UUID); err != nil {
		return "", fmt.Errorf("%w: %w: invalid scan id %q", core.ErrScanSubmission, core.ErrScanProviderResponse, resp.UUID)
	}

	c.logger.Info("URL submitted for scanning",
		zap.String("url", target),
		zap.String("scan_id", resp.UUID))

	return resp.UUID, nil
}

// Poll implements ports.ScanProvider. A 404 means the result is not ready.
func (c *Client) Poll(ctx context.Context, scanID string) (*core.PollResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/api/v1/result/"+url.PathEscape(scanID)+"/", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	body, status, err := c.do(req)
	if err != nil {
		return nil, err
	}

	switch status {
	case http.StatusOK:
		doc, err := scanner.DecodeDocument(body)
		result := &core.PollResult{Status: core.PollDone, Document: doc}
		if err != nil {
			c.logger.Warn("Scan result document was malformed, using what could be decoded",
				zap.String("scan_id", scanID),
				zap.Error(err))
			result.Message = err.Error()
		}
		return result, nil
	case http.StatusNotFound:
		return &core.PollResult{Status: core.PollPending}, nil
	case http.StatusGone:
		return &core.PollResult{Status: core.PollBlocked, Message: describeError(body, status)}, nil
	default:
		return &core.PollResult{Status: core.PollError, Message: fmt.Sprintf("status %d: %s", status, describeError(body, status))}, nil
	}
}

// Status performs one non-blocking status check of a scan
func (c *Client) Status(ctx context.Context, scanID string) (core.PollStatus, error) {
	result, err := c.Poll(ctx, scanID)
	if err != nil {
		return core.PollError, err
	}
	return result.Status, nil
}

// SearchResult is one previous scan of a URL
type SearchResult struct {
	ScanID    string `json:"scan_id"`
	URL       string `json:"url"`
	Time      string `json:"time"`
	Domain    string `json:"domain"`
	IP        string `json:"ip"`
	Country   string `json:"country"`
	Malicious bool   `json:"malicious"`
	Score     int    `json:"score"`
}

type searchResponse struct {
	Results []struct {
		Task struct {
			UUID string `json:"uuid"`
			URL  string `json:"url"`
			Time string `json:"time"`
		} `json:"task"`
		Page struct {
			Domain  string `json:"domain"`
			IP      string `json:"ip"`
			Country string `json:"country"`
		} `json:"page"`
		Verdicts struct {
			Overall struct {
				Malicious bool `json:"malicious"`
				Score     int  `json:"score"`
			} `json:"overall"`
		} `json:"verdicts"`
	} `json:"results"`
}

// Search looks up recent scans of target
func (c *Client) Search(ctx context.Context, target string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 10
	}
	query := url.Values{}
	query.Set("q", fmt.Sprintf("page.url:%q", target))
	query.Set("size", fmt.Sprint(limit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/api/v1/search/?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	body, status, err := c.do(req)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("%w: search returned status %d: %s", core.ErrScanProviderResponse, status, describeError(body, status))
	}

	var resp searchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrScanProviderResponse, err)
	}

	results := make([]SearchResult, 0, len(resp.Results))
	for _, r := range resp.Results {
		results = append(results, SearchResult{
			ScanID:    r.Task.UUID,
			URL:       r.Task.URL,
			Time:      r.Task.Time,
			Domain:    r.Page.Domain,
			IP:        r.Page.IP,
			Country:   r.Page.Country,
			Malicious: r.Verdicts.Overall.Malicious,
			Score:     r.Verdicts.Overall.Score,
		})
	}
	return results, nil
}

func (c *Client) do(req *http.Request) ([]byte, int, error) {
	if c.cfg.APIKey != "" {
		req.Header.Set("API-Key", c.cfg.APIKey)
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("request to %s failed: %w", req.URL.Path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to read response: %w", err)
	}
	return body, resp.StatusCode, nil
}

// describeError extracts the provider's explanation from an error body
func describeError(body []byte, status int) string {
	var apiErr apiError
	if err := json.Unmarshal(body, &apiErr); err == nil && (apiErr.Message != "" || apiErr.Description != "") {
		if apiErr.Description != "" && apiErr.Description != apiErr.Message {
			return strings.TrimSpace(apiErr.Message + " " + apiErr.Description)
		}
		return apiErr.Message
	}
	if text := strings.TrimSpace(string(body)); text != "" {
		if len(text) > 200 {
			text = text[:200]
		}
		return text
	}
	return http.StatusText(status)
}

func isBlocked(reason string) bool {
	reason = strings.ToLower(reason)
	return strings.Contains(reason, "prevented") || strings.Contains(reason, "blocked") || strings.Contains(reason, "blacklist")
}
