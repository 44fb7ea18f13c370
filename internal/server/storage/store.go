// Package storage holds the content store for generated wallpapers and
// profile pictures: a local directory or an S3-compatible bucket.
package storage

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ContentStore saves binary blobs under freshly generated references.
type ContentStore interface {
	// Save stores data under a new unique reference beginning with prefix.
	Save(ctx context.Context, prefix string, data []byte, contentType string) (string, error)
	// Get returns the blob, or common.ErrorNotFound when it is absent.
	Get(ctx context.Context, ref string) ([]byte, error)
	// Delete removes the blob. A missing blob is not an error.
	Delete(ctx context.Context, ref string) error
}

var extensions = map[string]string{
	"image/webp": ".webp",
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/gif":  ".gif",
}

// NewKey builds a date-partitioned key such as
// wallpapers/2025/3/1/1b4e28ba-2fa1-11d2-883f-0016d3cca427.webp.
func NewKey(prefix, contentType string) string {
	d := time.Now()
	return fmt.Sprintf("%s/%d/%d/%d/%v%s", prefix, d.Year(), d.Month(), d.Day(), uuid.New(), extensions[contentType])
}

// ContentTypeFor guesses the media type of ref from its extension.
func ContentTypeFor(ref string) string {
	ext := strings.ToLower(path.Ext(ref))
	for ct, e := range extensions {
		if e == ext {
			return ct
		}
	}
	return "application/octet-stream"
}

// SupportedImageType reports whether blobs of contentType can be stored.
func SupportedImageType(contentType string) bool {
	_, ok := extensions[contentType]
	return ok
}
