package shared

import (
	"time"
)

// TokenUsage tracks the tokens consumed by one model call.
type TokenUsage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	Model            string
}

// CallMeta holds operational metadata for one extraction call.
type CallMeta struct {
	Operation  string
	Usage      TokenUsage
	Latency    time.Duration
	ImageCount int
	Outcome    string
}
