// Package artifact materializes published notes as Markdown post files
// consumed by the public site.
package artifact

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"time"

	"github.com/starford/folio/internal/parser"
	"github.com/starford/folio/internal/storage"
)

const postExt = ".md"

// Store writes and removes artifacts addressed by a {year}/{month}/{slug} key.
type Store interface {
	Write(ctx context.Context, key string, fm parser.PostFrontmatter, body string) error
	// Remove deletes the artifact. A missing artifact is not an error.
	Remove(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// Key returns the artifact key for a post published at t.
func Key(t time.Time, slug string) string {
	t = t.UTC()
	return path.Join(fmt.Sprintf("%04d", t.Year()), fmt.Sprintf("%02d", int(t.Month())), slug)
}

// DateString formats the canonical post date.
func DateString(t time.Time) string {
	return t.UTC().Format(time.DateOnly)
}

// FS is a Store writing {key}.md files under a storage root.
type FS struct {
	fs storage.Provider
}

var _ Store = (*FS)(nil)

// NewFS creates a file-based artifact store.
func NewFS(provider storage.Provider) *FS {
	return &FS{fs: provider}
}

// FileName returns the file path, relative to the root, of key.
func FileName(key string) string {
	return key + postExt
}

// Write renders the post and replaces any previous file at key.
func (a *FS) Write(ctx context.Context, key string, fm parser.PostFrontmatter, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if fm.Tags == nil {
		fm.Tags = []string{}
	}
	data, err := parser.Encode(fm, body)
	if err != nil {
		return fmt.Errorf("artifact: %w", err)
	}
	if err := a.fs.Write(FileName(key), data); err != nil {
		return fmt.Errorf("artifact: write %s: %w", key, err)
	}
	return nil
}

// Remove deletes the file at key, tolerating its absence.
func (a *FS) Remove(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := a.fs.Delete(FileName(key)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("artifact: remove %s: %w", key, err)
	}
	return nil
}

// Exists reports whether an artifact is present at key.
func (a *FS) Exists(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	ok, err := a.fs.Exists(FileName(key))
	if err != nil {
		return false, fmt.Errorf("artifact: %w", err)
	}
	return ok, nil
}
