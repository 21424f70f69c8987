package llm

import (
	"context"
	"testing"

	"diet-coach/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewVisionGenerator(t *testing.T) {
	gen, err := NewVisionGenerator(context.Background(), &config.Config{
		ExtractionProvider: config.ProviderGroq,
		GroqAPIKey:         "groq_key",
	})
	require.NoError(t, err)
	assert.IsType(t, &GroqClient{}, gen)

	_, err = NewVisionGenerator(context.Background(), &config.Config{ExtractionProvider: "ollama"})
	assert.ErrorContains(t, err, `unknown extraction provider "ollama"`)
}
