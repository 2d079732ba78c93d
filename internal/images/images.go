// Package images stores post images in S3-compatible object storage and
// resolves hero image references to public URLs.
package images

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Resolver turns a hero image reference into a public URL.
// ok is false when the referenced image does not exist.
type Resolver interface {
	Resolve(ctx context.Context, ref string) (url string, ok bool, err error)
}

// Store is a Resolver that also accepts uploads.
type Store interface {
	Resolver
	// Upload stores r under key and returns its public URL.
	Upload(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error)
	Delete(ctx context.Context, key string) error
}

// Disabled resolves every reference to absent and rejects uploads.
type Disabled struct{}

var _ Store = Disabled{}

// ErrDisabled is returned by Disabled.Upload.
var ErrDisabled = fmt.Errorf("images: object storage is not configured")

func (Disabled) Resolve(context.Context, string) (string, bool, error) { return "", false, nil }

func (Disabled) Upload(context.Context, string, io.Reader, int64, string) (string, error) {
	return "", ErrDisabled
}

func (Disabled) Delete(context.Context, string) error { return ErrDisabled }

// Key builds an object key images/{yyyy}/{mm}/[{noteID}/]{uuid}{ext}.
func Key(now time.Time, noteID, ext string) string {
	now = now.UTC()
	parts := []string{"images", fmt.Sprintf("%04d", now.Year()), fmt.Sprintf("%02d", int(now.Month()))}
	if noteID = sanitizeSegment(noteID); noteID != "" {
		parts = append(parts, noteID)
	}
	parts = append(parts, uuid.NewString()+strings.ToLower(ext))
	return path.Join(parts...)
}

// IsURL reports whether ref is already an absolute http(s) URL.
func IsURL(ref string) bool {
	return strings.HasPrefix(ref, "https://") || strings.HasPrefix(ref, "http://")
}

func sanitizeSegment(s string) string {
	s = safeFilenameRe.ReplaceAllString(strings.TrimSpace(s), "_")
	if s == "." || s == ".." {
		return ""
	}
	return s
}
