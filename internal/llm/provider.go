package llm

import (
	"context"
	"fmt"

	"diet-coach/internal/config"
)

// NewVisionGenerator builds the extraction backend selected by configuration.
// The returned generator may also implement Closer.
func NewVisionGenerator(ctx context.Context, cfg *config.Config) (VisionGenerator, error) {
	switch cfg.ExtractionProvider {
	case "", config.ProviderGemini:
		client, err := NewGeminiClient(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return client, nil
	case config.ProviderGroq:
		return NewGroqClient(cfg), nil
	}
	return nil, fmt.Errorf("unknown extraction provider %q", cfg.ExtractionProvider)
}
