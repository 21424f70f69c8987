package llm

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"diet-coach/internal/config"
	"diet-coach/internal/shared"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	oaishared "github.com/openai/openai-go/v3/shared"
)

const (
	groqBaseURL     = "https://api.groq.com/openai/v1"
	groqVisionModel = "meta-llama/llama-4-scout-17b-16e-instruct"
)

// GroqClient talks to Groq's OpenAI-compatible chat API with vision input
// and strict json_schema output.
type GroqClient struct {
	client openai.Client
	model  string
}

// NewGroqClient creates a new Groq API client.
func NewGroqClient(cfg *config.Config, opts ...option.RequestOption) *GroqClient {
	baseURL := cfg.GroqBaseURL
	if baseURL == "" {
		baseURL = groqBaseURL
	}
	model := cfg.GroqVisionModel
	if model == "" {
		model = groqVisionModel
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(cfg.GroqAPIKey),
		option.WithBaseURL(baseURL),
		// One upstream call per extraction; callers own retries and deadlines.
		option.WithMaxRetries(0),
	}
	reqOpts = append(reqOpts, opts...)

	return &GroqClient{
		client: openai.NewClient(reqOpts...),
		model:  model,
	}
}

// GenerateFromImages sends the prompt followed by every image as a base64
// data URL in a single user message.
func (c *GroqClient) GenerateFromImages(ctx context.Context, req ImageRequest) (ContentResponse, error) {
	content := make([]openai.ChatCompletionContentPartUnionParam, 0, len(req.Images)+1)
	content = append(content, openai.TextContentPart(req.Prompt))
	for _, img := range req.Images {
		content = append(content, openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
			URL: dataURL(img),
		}))
	}

	params := openai.ChatCompletionNewParams{
		Model:       oaishared.ChatModel(c.model),
		Messages:    []openai.ChatCompletionMessageParamUnion{openai.UserMessage(content)},
		Temperature: openai.Float(0),
	}
	if req.Schema != nil {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &oaishared.ResponseFormatJSONSchemaParam{
				JSONSchema: oaishared.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:   req.SchemaName,
					Schema: req.Schema,
					Strict: openai.Bool(true),
				},
			},
		}
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return ContentResponse{}, fmt.Errorf("failed to generate content: %w", mapGroqError(err))
	}

	out := ContentResponse{
		Usage: shared.TokenUsage{
			PromptTokens:     int(resp.Usage.PromptTokens),
			CompletionTokens: int(resp.Usage.CompletionTokens),
			TotalTokens:      int(resp.Usage.TotalTokens),
			Model:            c.model,
		},
	}
	if len(resp.Choices) > 0 {
		out.Content = resp.Choices[0].Message.Content
	}
	return out, nil
}

func dataURL(img ImagePart) string {
	return "data:" + img.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(img.Data)
}

func mapGroqError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		if apiErr.Message != "" {
			return fmt.Errorf("groq api error (status %d): %s: %w", apiErr.StatusCode, apiErr.Message, err)
		}
		return fmt.Errorf("groq api error (status %d): %w", apiErr.StatusCode, err)
	}
	return err
}
