// Package llm holds the prompt and response handling shared by the
// language model content classifiers.
package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mikey/url-threat-monitor/internal/core"
	"github.com/mikey/url-threat-monitor/internal/ports"
	"github.com/mikey/url-threat-monitor/internal/utils"
)

// SystemPrompt is sent as the system message where a model supports one
const SystemPrompt = "You are an email security analyst that detects phishing and scams. Respond only with JSON."

const promptFormat = `You are an email security analyst. Analyze the following email and decide whether it is a phishing, scam or malware delivery attempt.
Respond with a JSON object containing:
- is_phishing: boolean (true if the email is malicious, false if not)
- score: number between 0 and 1 (higher means more likely to be malicious)
- confidence: number between 0 and 1 (how confident you are in your assessment)
- explanation: string (brief explanation naming the suspicious elements, if any)

Email:
From: %s
Subject: %s
Date: %s
Body:
%s

Respond only with the JSON object and nothing else.`

// Verdict is the JSON object the model is asked to return
type Verdict struct {
	IsPhishing  bool    `json:"is_phishing"`
	Score       float64 `json:"score"`
	Confidence  float64 `json:"confidence"`
	Explanation string  `json:"explanation"`
}

// BuildPrompt formats the classification prompt. The body is sanitized and
// truncated to maxBodySize bytes.
func BuildPrompt(email core.EmailRecord, maxBodySize int, tp *utils.TextProcessor) string {
	if tp == nil {
		tp = utils.NewTextProcessor(nil)
	}
	body := tp.ProcessText(email.Body, maxBodySize)
	return fmt.Sprintf(promptFormat, email.Sender, email.Subject, email.Timestamp, body)
}

// ParseVerdict decodes a model response, tolerating text around the JSON object
func ParseVerdict(responseText, model string) (*ports.Classification, error) {
	var verdict Verdict
	if err := json.Unmarshal([]byte(responseText), &verdict); err != nil {
		start := strings.Index(responseText, "{")
		end := strings.LastIndex(responseText, "}")
		if start < 0 || end <= start {
			return nil, fmt.Errorf("failed to extract JSON from LLM response: %w", err)
		}
		if err := json.Unmarshal([]byte(responseText[start:end+1]), &verdict); err != nil {
			return nil, fmt.Errorf("failed to parse LLM response as JSON: %w", err)
		}
	}

	return &ports.Classification{
		Suspicious:  verdict.IsPhishing,
		Score:       clamp(verdict.Score),
		Confidence:  clamp(verdict.Confidence),
		Explanation: verdict.Explanation,
		ModelUsed:   model,
	}, nil
}

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
