package extraction

import (
	"fmt"
	"strings"
)

// AllowedMIMETypes is the set of image types accepted for extraction.
var AllowedMIMETypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/heic": ".heic",
	"image/heif": ".heif",
}

// IsAllowedMIMEType reports whether mimeType is an accepted image type.
// Parameters such as "; charset=" are ignored.
func IsAllowedMIMEType(mimeType string) bool {
	_, ok := AllowedMIMETypes[NormalizeMIMEType(mimeType)]
	return ok
}

// NormalizeMIMEType lowercases a media type and strips its parameters.
func NormalizeMIMEType(mimeType string) string {
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = mimeType[:i]
	}
	return strings.ToLower(strings.TrimSpace(mimeType))
}

// Image is one uploaded image. Path names a temporary file owned by the
// extraction call; Data, when set, is used instead of reading Path.
type Image struct {
	Path     string
	Data     []byte
	MIMEType string
}

// Request is an ordered batch of images for one client. ClientID is carried
// for the caller's bookkeeping and is not sent to the model.
type Request struct {
	Images   []Image
	ClientID string
}

// Validate checks the caller preconditions of an extraction.
func (r Request) Validate() error {
	if len(r.Images) == 0 {
		return ErrNoImagesProvided
	}
	for i, img := range r.Images {
		if !IsAllowedMIMEType(img.MIMEType) {
			return fmt.Errorf("%w: image %d has type %q", ErrUnsupportedMediaType, i+1, img.MIMEType)
		}
		if img.Path == "" && len(img.Data) == 0 {
			return fmt.Errorf("%w: image %d is empty", ErrNoImagesProvided, i+1)
		}
	}
	return nil
}
