package app

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"diet-coach/internal/dietplan"
	"diet-coach/internal/extraction"

	"go.uber.org/zap"
)

var extensionTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
	".heic": "image/heic",
	".heif": "image/heif",
}

// mimeTypeForPath infers an accepted image type from a file extension.
func mimeTypeForPath(path string) (string, error) {
	mimeType, ok := extensionTypes[strings.ToLower(filepath.Ext(path))]
	if !ok {
		return "", fmt.Errorf("%w: %s", errUnknownImageType, path)
	}
	return mimeType, nil
}

// ExtractFiles runs the pipeline over local image files and stores the
// resulting plan. The files are copied into the upload store first, so the
// originals are left in place.
func (a *App) ExtractFiles(ctx context.Context, clientID, createdBy string, paths []string) (*dietplan.StoredPlan, error) {
	if clientID == "" {
		return nil, fmt.Errorf("client id is required")
	}
	if len(paths) == 0 {
		return nil, extraction.ErrNoImagesProvided
	}

	images := make([]extraction.Image, 0, len(paths))
	for _, path := range paths {
		mimeType, err := mimeTypeForPath(path)
		if err == nil {
			var img extraction.Image
			img, err = a.uploads.SaveFile(path, mimeType)
			images = append(images, img)
		}
		if err != nil {
			if discardErr := a.uploads.Discard(images); discardErr != nil {
				a.logger.Warn("failed to discard uploads", zap.Error(discardErr))
			}
			return nil, err
		}
	}

	res, err := a.extractor.Extract(ctx, extraction.Request{Images: images, ClientID: clientID})
	if recErr := a.metrics.RecordMeta(context.WithoutCancel(ctx), res.Meta); recErr != nil {
		a.logger.Warn("failed to record usage", zap.Error(recErr))
	}
	if err != nil {
		return nil, err
	}

	stored, err := a.plans.Save(ctx, clientID, createdBy, res.Plan)
	if err != nil {
		return nil, fmt.Errorf("failed to save meal plan: %w", err)
	}
	a.logger.Info("meal plan saved",
		zap.Int64("id", stored.ID),
		zap.String("client_id", clientID),
		zap.Int("images", len(images)))
	return stored, nil
}
