package llm

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"diet-coach/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const completionBody = `{
  "id": "chatcmpl-1",
  "object": "chat.completion",
  "created": 1700000000,
  "model": "vision-test",
  "choices": [{
    "index": 0,
    "finish_reason": "stop",
    "message": {"role": "assistant", "content": "{\"1\":{}}"}
  }],
  "usage": {"prompt_tokens": 1200, "completion_tokens": 300, "total_tokens": 1500}
}`

func TestGroqClientGenerateFromImages(t *testing.T) {
	var captured map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer groq_key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(completionBody))
	}))
	defer srv.Close()

	client := NewGroqClient(&config.Config{
		GroqAPIKey:      "groq_key",
		GroqBaseURL:     srv.URL,
		GroqVisionModel: "vision-test",
	})

	schema := map[string]any{"type": "object", "additionalProperties": false}
	resp, err := client.GenerateFromImages(context.Background(), ImageRequest{
		Prompt: "read the plan",
		Images: []ImagePart{
			{MIMEType: "image/jpeg", Data: []byte("page-1")},
			{MIMEType: "image/png", Data: []byte("page-2")},
		},
		SchemaName: "weekly_meal_plan",
		Schema:     schema,
	})
	require.NoError(t, err)

	assert.Equal(t, `{"1":{}}`, resp.Content)
	assert.Equal(t, 1200, resp.Usage.PromptTokens)
	assert.Equal(t, 300, resp.Usage.CompletionTokens)
	assert.Equal(t, 1500, resp.Usage.TotalTokens)
	assert.Equal(t, "vision-test", resp.Usage.Model)

	assert.Equal(t, "vision-test", captured["model"])

	messages := captured["messages"].([]any)
	require.Len(t, messages, 1)
	content := messages[0].(map[string]any)["content"].([]any)
	require.Len(t, content, 3)
	assert.Equal(t, "read the plan", content[0].(map[string]any)["text"])
	first := content[1].(map[string]any)["image_url"].(map[string]any)["url"]
	assert.Equal(t, "data:image/jpeg;base64,"+base64.StdEncoding.EncodeToString([]byte("page-1")), first)
	second := content[2].(map[string]any)["image_url"].(map[string]any)["url"]
	assert.Equal(t, "data:image/png;base64,"+base64.StdEncoding.EncodeToString([]byte("page-2")), second)

	format := captured["response_format"].(map[string]any)
	assert.Equal(t, "json_schema", format["type"])
	jsonSchema := format["json_schema"].(map[string]any)
	assert.Equal(t, "weekly_meal_plan", jsonSchema["name"])
	assert.Equal(t, true, jsonSchema["strict"])
	assert.Equal(t, map[string]any{"type": "object", "additionalProperties": false}, jsonSchema["schema"])
}

func TestGroqClientUpstreamErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":{"message":"over capacity","type":"server_error"}}`))
	}))
	defer srv.Close()

	client := NewGroqClient(&config.Config{GroqAPIKey: "groq_key", GroqBaseURL: srv.URL})

	_, err := client.GenerateFromImages(context.Background(), ImageRequest{
		Prompt: "read the plan",
		Images: []ImagePart{{MIMEType: "image/jpeg", Data: []byte("page-1")}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 503")
	assert.Equal(t, int32(1), calls.Load())
}

func TestGroqClientDefaults(t *testing.T) {
	client := NewGroqClient(&config.Config{GroqAPIKey: "groq_key"})
	assert.Equal(t, groqVisionModel, client.model)
}
