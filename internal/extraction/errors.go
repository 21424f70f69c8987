package extraction

import (
	"errors"
	"fmt"
)

var (
	// ErrNoImagesProvided means the request carried no usable image.
	ErrNoImagesProvided = errors.New("no images provided")
	// ErrUnsupportedMediaType means an image is not of an allowed type.
	ErrUnsupportedMediaType = errors.New("unsupported image type")
	// ErrUpstreamUnavailable wraps failures calling the model (network, auth, quota).
	ErrUpstreamUnavailable = errors.New("diet extraction model unavailable")
	// ErrSchemaViolation means the model answered with text that is not a valid plan.
	ErrSchemaViolation = errors.New("model output is not a valid diet plan")
	// ErrNoDietFound means the images hold no weekly diet information.
	ErrNoDietFound = errors.New("diet not found")
)

// CleanupError reports a temporary image that could not be removed.
// It is only ever logged.
type CleanupError struct {
	Path string
	Err  error
}

func (e *CleanupError) Error() string {
	return fmt.Sprintf("failed to remove %s: %v", e.Path, e.Err)
}

func (e *CleanupError) Unwrap() error { return e.Err }
