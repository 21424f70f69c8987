package extraction

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"diet-coach/internal/dietplan"
	"diet-coach/internal/llm"
	"diet-coach/internal/shared"

	"go.uber.org/zap"
)

// Operation names extraction calls in usage metrics.
const Operation = "extract_diet_plan"

// Prompt is the fixed instruction sent with every extraction.
const Prompt = `Extract the weekly diet plan from the provided images.
The plan may be split across several images: one image can hold some days or meals and the next image the rest. Read the images in the order given and combine them into a single plan covering days 1 to 7.
For every day fill all meal slots (early-morning, breakfast, mid-meal, lunch, evening-snacks, dinner, post-dinner) with the recommended diet and any note written next to it. Use an empty string when a slot has no information.
If none of the images contain weekly diet information, respond with the message 'diet not found'.`

// Outcome labels recorded in CallMeta.Outcome.
const (
	OutcomeOK              = "ok"
	OutcomeNoDietFound     = "no_diet_found"
	OutcomeSchemaViolation = "schema_violation"
	OutcomeUpstreamError   = "upstream_error"
	OutcomeCanceled        = "canceled"
)

// Result is a successful extraction plus the metadata of the model call.
// Meta is populated on failures too whenever the model was called.
type Result struct {
	Plan *dietplan.WeeklyMealPlan
	Meta shared.CallMeta
}

// Extractor turns a batch of images into one validated WeeklyMealPlan.
// It is safe for concurrent use; each call owns only the images it is given.
type Extractor struct {
	vision llm.VisionGenerator
	logger *zap.Logger
	remove func(path string) error
}

// NewExtractor creates an Extractor backed by the given vision model.
func NewExtractor(vision llm.VisionGenerator, logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{
		vision: vision,
		logger: logger,
		remove: os.Remove,
	}
}

// Extract sends every image in req to the model in a single request and
// returns the parsed plan. Temporary image files referenced by req are
// deleted before Extract returns, whatever the outcome. Extract imposes no
// timeout of its own; callers bound it through ctx.
func (e *Extractor) Extract(ctx context.Context, req Request) (Result, error) {
	defer e.release(req.Images)

	if err := req.Validate(); err != nil {
		return Result{}, err
	}

	parts, err := loadParts(req.Images)
	if err != nil {
		return Result{}, err
	}

	if err := ctx.Err(); err != nil {
		return Result{}, fmt.Errorf("extraction canceled: %w", err)
	}

	start := time.Now()
	resp, err := e.vision.GenerateFromImages(ctx, llm.ImageRequest{
		Prompt:     Prompt,
		Images:     parts,
		SchemaName: dietplan.SchemaName,
		Schema:     dietplan.Schema(),
	})
	meta := shared.CallMeta{
		Operation:  Operation,
		Usage:      resp.Usage,
		Latency:    time.Since(start),
		ImageCount: len(parts),
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			meta.Outcome = OutcomeCanceled
			return Result{Meta: meta}, fmt.Errorf("extraction canceled: %w", ctxErr)
		}
		meta.Outcome = OutcomeUpstreamError
		return Result{Meta: meta}, fmt.Errorf("%w: %w", ErrUpstreamUnavailable, err)
	}

	plan, err := interpret(resp.Content)
	meta.Outcome = outcomeOf(err)
	if err != nil {
		e.logger.Info("diet plan extraction rejected",
			zap.String("client_id", req.ClientID),
			zap.String("outcome", meta.Outcome),
			zap.Error(err))
		return Result{Meta: meta}, err
	}

	e.logger.Debug("diet plan extracted",
		zap.String("client_id", req.ClientID),
		zap.Int("images", meta.ImageCount),
		zap.Int("total_tokens", meta.Usage.TotalTokens),
		zap.Duration("latency", meta.Latency))
	return Result{Plan: plan, Meta: meta}, nil
}

// interpret maps the model's text onto a plan or one of the typed failures.
func interpret(content string) (*dietplan.WeeklyMealPlan, error) {
	text := strings.TrimSpace(content)
	if text == "" {
		return nil, ErrNoDietFound
	}

	plan, err := dietplan.Parse(text)
	if err != nil {
		if !dietplan.HasDayKeys(text) && signalsNoDiet(text) {
			return nil, ErrNoDietFound
		}
		return nil, fmt.Errorf("%w: %w", ErrSchemaViolation, err)
	}
	if plan.IsBlank() {
		return nil, ErrNoDietFound
	}
	return plan, nil
}

// signalsNoDiet reports the model's explicit no-diet answer. Output shaped
// like a plan never counts, whatever its notes say.
func signalsNoDiet(text string) bool {
	return strings.Contains(strings.ToLower(text), "diet not found")
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, ErrNoDietFound):
		return OutcomeNoDietFound
	case errors.Is(err, ErrSchemaViolation):
		return OutcomeSchemaViolation
	}
	return OutcomeUpstreamError
}

func loadParts(images []Image) ([]llm.ImagePart, error) {
	parts := make([]llm.ImagePart, 0, len(images))
	for i, img := range images {
		data := img.Data
		if len(data) == 0 {
			var err error
			data, err = os.ReadFile(img.Path)
			if err != nil {
				return nil, fmt.Errorf("failed to read image %d: %w", i+1, err)
			}
		}
		parts = append(parts, llm.ImagePart{MIMEType: NormalizeMIMEType(img.MIMEType), Data: data})
	}
	return parts, nil
}

// release deletes each distinct temporary file once. Failures are logged
// and never change the result of the extraction.
func (e *Extractor) release(images []Image) {
	seen := make(map[string]struct{}, len(images))
	for _, img := range images {
		if img.Path == "" {
			continue
		}
		if _, ok := seen[img.Path]; ok {
			continue
		}
		seen[img.Path] = struct{}{}

		if err := e.remove(img.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			e.logger.Warn("failed to remove temporary image",
				zap.String("path", img.Path),
				zap.Error(&CleanupError{Path: img.Path, Err: err}))
		}
	}
}
