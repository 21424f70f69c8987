package llm

import (
	"context"

	"diet-coach/internal/shared"
)

// ContentResponse contains the generated text and metadata like token usage.
// Content is empty when the model produced no text.
type ContentResponse struct {
	Content string
	Usage   shared.TokenUsage
}

// ImagePart is one inline image attached to a request.
type ImagePart struct {
	MIMEType string
	Data     []byte
}

// ImageRequest is a single multimodal generation request: a prompt, the
// images in the order they should be read, and a JSON schema the response
// must follow.
type ImageRequest struct {
	Prompt     string
	Images     []ImagePart
	SchemaName string
	Schema     map[string]any
}

// VisionGenerator produces schema-constrained text from a prompt plus images.
type VisionGenerator interface {
	GenerateFromImages(ctx context.Context, req ImageRequest) (ContentResponse, error)
}

// Closer is an interface for closing resources.
type Closer interface {
	Close() error
}
