package urlscan

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/mikey/url-threat-monitor/internal/core"
)

const testScanID = "0e37e828-a9d9-45c0-ac50-1ca579b86c72"

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(Config{APIKey: "secret", BaseURL: server.URL + "/"}, zaptest.NewLogger(t))
}

func TestSubmit(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/v1/scan/" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("API-Key") != "secret" {
			t.Errorf("API-Key header = %q", r.Header.Get("API-Key"))
		}
		var req submitRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		if req.URL != "https://example.com/login" || req.Visibility != "public" {
			t.Errorf("request = %+v", req)
		}
		io.WriteString(w, `{"message":"Submission successful","uuid":"`+testScanID+`","result":"https://urlscan.io/result/`+testScanID+`/"}`)
	})

	id, err := client.Submit(context.Background(), "https://example.com/login")
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if id != testScanID {
		t.Errorf("Submit() = %q, want %q", id, testScanID)
	}
}

func TestSubmitErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
		wantMsg string
	}{
		{
			name:    "blocked",
			status:  http.StatusBadRequest,
			body:    `{"message":"Scan prevented ...","description":"The domain example.com is on our blacklist","status":400}`,
			wantErr: core.ErrScanBlocked,
		},
		{
			name:    "rate limited",
			status:  http.StatusTooManyRequests,
			body:    `{"message":"Rate limit exceeded","status":429}`,
			wantErr: core.ErrScanSubmission,
			wantMsg: "Rate limit exceeded",
		},
		{
			name:    "invalid uuid",
			status:  http.StatusOK,
			body:    `{"uuid":"not-a-uuid"}`,
			wantErr: core.ErrScanProviderResponse,
		},
		{
			name:    "plain text error",
			status:  http.StatusInternalServerError,
			body:    "upstream exploded",
			wantErr: core.ErrScanSubmission,
			wantMsg: "upstream exploded",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			})

			_, err := client.Submit(context.Background(), "https://example.com")
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Submit() error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantMsg != "" && !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error %q does not mention %q", err, tt.wantMsg)
			}
		})
	}
}

func TestSubmitWithoutAPIKey(t *testing.T) {
	client := NewClient(Config{BaseURL: "http://127.0.0.1:1"}, zaptest.NewLogger(t))
	_, err := client.Submit(context.Background(), "https://example.com")
	if !errors.Is(err, core.ErrScanSubmission) || !errors.Is(err, core.ErrNotConfigured) {
		t.Fatalf("Submit() error = %v", err)
	}
}

func TestPoll(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantStatus core.PollStatus
		check      func(t *testing.T, result *core.PollResult)
	}{
		{name: "pending", status: http.StatusNotFound, body: `{"message":"Scan is not finished yet"}`, wantStatus: core.PollPending},
		{
			name:       "done",
			status:     http.StatusOK,
			body:       `{"task":{"uuid":"` + testScanID + `"},"page":{"title":"Login"},"stats":{"malicious":1},"lists":{"ips":["1.2.3.4"]}}`,
			wantStatus: core.PollDone,
			check: func(t *testing.T, result *core.PollResult) {
				if result.Document == nil || result.Document.ID() != testScanID {
					t.Errorf("document = %+v", result.Document)
				}
				if result.Message != "" {
					t.Errorf("Message = %q, want empty", result.Message)
				}
			},
		},
		{
			name:       "done with malformed body",
			status:     http.StatusOK,
			body:       `{"task":`,
			wantStatus: core.PollDone,
			check: func(t *testing.T, result *core.PollResult) {
				if result.Document == nil || result.Message == "" {
					t.Errorf("want empty document and a message, got %+v", result)
				}
			},
		},
		{name: "gone", status: http.StatusGone, body: `{"message":"Scan deleted"}`, wantStatus: core.PollBlocked},
		{name: "server error", status: http.StatusBadGateway, body: "bad gateway", wantStatus: core.PollError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/api/v1/result/"+testScanID+"/" {
					t.Errorf("unexpected path %s", r.URL.Path)
				}
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			})

			result, err := client.Poll(context.Background(), testScanID)
			if err != nil {
				t.Fatalf("Poll() error = %v", err)
			}
			if result.Status != tt.wantStatus {
				t.Fatalf("Status = %s, want %s", result.Status, tt.wantStatus)
			}
			if tt.check != nil {
				tt.check(t, result)
			}
		})
	}
}

func TestPollTransportError(t *testing.T) {
	client := NewClient(Config{APIKey: "k", BaseURL: "http://127.0.0.1:1"}, zaptest.NewLogger(t))
	if _, err := client.Poll(context.Background(), testScanID); err == nil {
		t.Fatal("Poll() against a closed port returned no error")
	}
	if status, err := client.Status(context.Background(), testScanID); err == nil || status != core.PollError {
		t.Fatalf("Status() = %s, %v", status, err)
	}
}

func TestSearch(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/search/" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if q := r.URL.Query().Get("q"); q != `page.url:"https://example.com"` {
			t.Errorf("q = %q", q)
		}
		io.WriteString(w, `{"results":[{"task":{"uuid":"`+testScanID+`","url":"https://example.com","time":"2024-01-01T00:00:00Z"},"page":{"domain":"example.com","ip":"93.184.216.34","country":"US"},"verdicts":{"overall":{"malicious":true,"score":100}}}]}`)
	})

	results, err := client.Search(context.Background(), "https://example.com", 5)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	if got := results[0]; got.ScanID != testScanID || !got.Malicious || got.Score != 100 || got.Country != "US" {
		t.Errorf("result = %+v", got)
	}
}
