package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"EXTRACTION_PROVIDER", "GEMINI_API_KEY", "GEMINI_MODEL", "GROQ_API_KEY",
		"DATABASE_PATH", "MAX_UPLOAD_IMAGES", "TELEGRAM_ALLOWED_USER_IDS",
	} {
		// Register for restore, then remove for the duration of the test.
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestNewFromEnv(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("GEMINI_API_KEY", "gemini_key")
		t.Setenv("TELEGRAM_ALLOWED_USER_IDS", "42, 7")

		cfg, err := NewFromEnv()
		require.NoError(t, err)

		assert.Equal(t, ProviderGemini, cfg.ExtractionProvider)
		assert.Equal(t, "gemini_key", cfg.GeminiAPIKey)
		assert.Equal(t, "gemini-2.0-flash", cfg.GeminiModel)
		assert.Equal(t, "data/diet-coach.db", cfg.DatabasePath)
		assert.Equal(t, "8080", cfg.Port)
		assert.Equal(t, 10, cfg.MaxUploadImages)
		assert.Equal(t, int64(32<<20), cfg.MaxUploadBytes)
		assert.Equal(t, []int64{42, 7}, cfg.TelegramAllowedUserIDs)
	})

	t.Run("MissingGeminiAPIKey", func(t *testing.T) {
		clearEnv(t)

		_, err := NewFromEnv()
		require.Error(t, err)
		assert.Equal(t, "GEMINI_API_KEY environment variable not set", err.Error())
	})

	t.Run("GroqProviderNeedsGroqKey", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("EXTRACTION_PROVIDER", "groq")

		_, err := NewFromEnv()
		require.Error(t, err)
		assert.Equal(t, "GROQ_API_KEY environment variable not set", err.Error())

		t.Setenv("GROQ_API_KEY", "groq_key")
		cfg, err := NewFromEnv()
		require.NoError(t, err)
		assert.Equal(t, ProviderGroq, cfg.ExtractionProvider)
		assert.Empty(t, cfg.GeminiAPIKey)
	})

	t.Run("UnknownProvider", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("EXTRACTION_PROVIDER", "ollama")

		_, err := NewFromEnv()
		assert.ErrorContains(t, err, "EXTRACTION_PROVIDER")
	})

	t.Run("InvalidAllowedUserID", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("GEMINI_API_KEY", "gemini_key")
		t.Setenv("TELEGRAM_ALLOWED_USER_IDS", "42,abc")

		_, err := NewFromEnv()
		assert.ErrorContains(t, err, `invalid TELEGRAM_ALLOWED_USER_IDS entry "abc"`)
	})
}

func TestLoadConfigFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "diet-coach.yaml")
	require.NoError(t, os.WriteFile(path, []byte("gemini_api_key: from_file\ndatabase_path: /tmp/plans.db\n"), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from_file", cfg.GeminiAPIKey)
	assert.Equal(t, "/tmp/plans.db", cfg.DatabasePath)

	t.Setenv("DATABASE_PATH", "/env/wins.db")
	cfg, err = Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/env/wins.db", cfg.DatabasePath)
}
