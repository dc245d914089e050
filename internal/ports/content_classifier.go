package ports

import (
	"context"

	"github.com/mikey/url-threat-monitor/internal/core"
)

// Classification is a model verdict on an email's content
type Classification struct {
	Suspicious  bool
	Score       float64
	Confidence  float64
	Explanation string
	ModelUsed   string
}

// ContentClassifier asks a language model whether an email is a phishing or scam attempt
type ContentClassifier interface {
	// Classify analyzes the email and returns the model verdict
	Classify(ctx context.Context, email core.EmailRecord) (*Classification, error)
}
