package factory

import (
	"context"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/mikey/url-threat-monitor/internal/config"
	"github.com/mikey/url-threat-monitor/internal/ports"
	"github.com/mikey/url-threat-monitor/internal/utils"
)

// ClassifierFactory creates the optional LLM content classifier
type ClassifierFactory struct {
	cfg           *config.Config
	logger        *zap.Logger
	textProcessor *utils.TextProcessor
	closers       []io.Closer
}

// NewClassifierFactory creates a new classifier factory
func NewClassifierFactory(cfg *config.Config, logger *zap.Logger, textProcessor *utils.TextProcessor) *ClassifierFactory {
	return &ClassifierFactory{
		cfg:           cfg,
		logger:        logger,
		textProcessor: textProcessor,
	}
}

// CreateClassifier returns the configured classifier, or nil when content
// classification is disabled
func (f *ClassifierFactory) CreateClassifier(ctx context.Context) (ports.ContentClassifier, error) {
	provider := strings.ToLower(f.cfg.GetContent().Classifier)

	switch provider {
	case "", "none":
		return nil, nil
	case "bedrock":
		classifier, err := NewBedrockFactory(f.cfg, f.logger, f.textProcessor).CreateClassifier(ctx)
		if err != nil {
			return nil, err
		}
		return classifier, nil
	case "gemini":
		classifier, err := NewGeminiFactory(f.cfg, f.logger, f.textProcessor).CreateClassifier(ctx)
		if err != nil {
			return nil, err
		}
		f.closers = append(f.closers, classifier)
		return classifier, nil
	case "openai":
		classifier, err := NewOpenAIFactory(f.cfg, f.logger, f.textProcessor).CreateClassifier()
		if err != nil {
			return nil, err
		}
		return classifier, nil
	default:
		return nil, fmt.Errorf("unsupported content classifier: %s", provider)
	}
}

// Close releases clients that hold connections
func (f *ClassifierFactory) Close() error {
	var firstErr error
	for _, c := range f.closers {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	f.closers = nil
	return firstErr
}
