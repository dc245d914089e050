package openai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap/zaptest"

	"github.com/mikey/url-threat-monitor/internal/core"
)

func newTestClassifier(t *testing.T, handler http.HandlerFunc) *Classifier {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := openai.DefaultConfig("test-key")
	cfg.BaseURL = server.URL + "/v1"
	return NewClassifier(openai.NewClientWithConfig(cfg), "gpt-4o-mini", 256, 0.1, 0.9, 4096, zaptest.NewLogger(t), nil)
}

func TestClassify(t *testing.T) {
	classifier := newTestClassifier(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req openai.ChatCompletionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		if req.Model != "gpt-4o-mini" || len(req.Messages) != 2 || !strings.Contains(req.Messages[1].Content, "Subject: Reset now") {
			t.Errorf("unexpected request %+v", req)
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"id":"chatcmpl-1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"{\"is_phishing\":true,\"score\":0.92,\"confidence\":0.8,\"explanation\":\"credential harvesting\"}"},"finish_reason":"stop"}]}`)
	})

	got, err := classifier.Classify(context.Background(), core.EmailRecord{ID: "1", Sender: "x@example.com", Subject: "Reset now", Body: "click"})
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if !got.Suspicious || got.Score != 0.92 || got.Explanation != "credential harvesting" || got.ModelUsed != "gpt-4o-mini" {
		t.Errorf("Classify() = %+v", got)
	}
}

func TestClassifyEmptyChoices(t *testing.T) {
	classifier := newTestClassifier(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"id":"chatcmpl-2","object":"chat.completion","choices":[]}`)
	})

	if _, err := classifier.Classify(context.Background(), core.EmailRecord{}); err == nil {
		t.Fatal("Classify() with no choices returned no error")
	}
}
