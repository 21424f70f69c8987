package llm

import (
	"context"
	"fmt"
	"strings"

	"diet-coach/internal/config"
	"diet-coach/internal/shared"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GeminiClient is a client for the Google Gemini API.
type GeminiClient struct {
	client    *genai.Client
	modelName string
}

// NewGeminiClient creates a new Gemini API client.
func NewGeminiClient(ctx context.Context, cfg *config.Config, opts ...option.ClientOption) (*GeminiClient, error) {
	opts = append([]option.ClientOption{option.WithAPIKey(cfg.GeminiAPIKey)}, opts...)
	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &GeminiClient{client: client, modelName: cfg.GeminiModel}, nil
}

// GenerateFromImages sends the prompt and every image as inline data in one
// request, constrained to JSON output following req.Schema.
func (c *GeminiClient) GenerateFromImages(ctx context.Context, req ImageRequest) (ContentResponse, error) {
	// A model handle carries its generation config, so each call gets its own.
	model := c.client.GenerativeModel(c.modelName)
	configureModel(model, req)

	resp, err := model.GenerateContent(ctx, requestParts(req)...)
	if err != nil {
		return ContentResponse{}, fmt.Errorf("failed to generate content: %w", err)
	}

	return ContentResponse{
		Content: responseText(resp),
		Usage:   geminiUsage(c.modelName, resp.UsageMetadata),
	}, nil
}

// configureModel asks for deterministic JSON output shaped by req.Schema.
func configureModel(model *genai.GenerativeModel, req ImageRequest) {
	model.SetTemperature(0)
	model.ResponseMIMEType = "application/json"
	if req.Schema != nil {
		model.ResponseSchema = toGenaiSchema(req.Schema)
	}
}

// requestParts puts the prompt first, then the images in reading order.
func requestParts(req ImageRequest) []genai.Part {
	parts := make([]genai.Part, 0, len(req.Images)+1)
	parts = append(parts, genai.Text(req.Prompt))
	for _, img := range req.Images {
		parts = append(parts, genai.Blob{MIMEType: img.MIMEType, Data: img.Data})
	}
	return parts
}

// Close closes the underlying Gemini client.
func (c *GeminiClient) Close() error {
	return c.client.Close()
}

// responseText concatenates the text parts of the first candidate.
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	return sb.String()
}

func geminiUsage(model string, meta *genai.UsageMetadata) shared.TokenUsage {
	usage := shared.TokenUsage{Model: model}
	if meta == nil {
		return usage
	}
	usage.PromptTokens = int(meta.PromptTokenCount)
	usage.CompletionTokens = int(meta.CandidatesTokenCount)
	usage.TotalTokens = int(meta.TotalTokenCount)
	return usage
}

// toGenaiSchema converts a JSON schema document into the SDK's schema type.
// Gemini has no additionalProperties keyword; closed shapes are enforced by
// listing every property as required and by validating the response. The
// SDK's Schema has no property ordering either, so required keeps the
// document's key order and decoding goes by key.
func toGenaiSchema(node map[string]any) *genai.Schema {
	s := &genai.Schema{}
	switch node["type"] {
	case "object":
		s.Type = genai.TypeObject
	case "array":
		s.Type = genai.TypeArray
	case "string":
		s.Type = genai.TypeString
	case "integer":
		s.Type = genai.TypeInteger
	case "number":
		s.Type = genai.TypeNumber
	case "boolean":
		s.Type = genai.TypeBoolean
	}
	if desc, ok := node["description"].(string); ok {
		s.Description = desc
	}
	if props, ok := node["properties"].(map[string]any); ok {
		s.Properties = make(map[string]*genai.Schema, len(props))
		for name, raw := range props {
			if child, ok := raw.(map[string]any); ok {
				s.Properties[name] = toGenaiSchema(child)
			}
		}
	}
	if items, ok := node["items"].(map[string]any); ok {
		s.Items = toGenaiSchema(items)
	}
	switch req := node["required"].(type) {
	case []any:
		for _, r := range req {
			if name, ok := r.(string); ok {
				s.Required = append(s.Required, name)
			}
		}
	case []string:
		s.Required = append(s.Required, req...)
	}
	return s
}
