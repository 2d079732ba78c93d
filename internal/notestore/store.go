// Package notestore provides durable storage for notes behind a single
// interface, with a SQLite backend and a Markdown-file backend.
package notestore

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/starford/folio/internal/models"
)

const (
	DefaultLimit = 50
	MaxLimit     = 500
)

// Store is the durable keyed storage for notes.
//
// Insert and Update compute and return the note's new Revision. Update and
// Delete perform a compare-and-swap against expectedRevision and fail with
// apperr.ErrConflict when the stored revision differs; an empty
// expectedRevision on Delete removes unconditionally.
type Store interface {
	Get(ctx context.Context, id string) (*models.Note, error)
	GetBySlug(ctx context.Context, slug string) (*models.Note, error)
	Insert(ctx context.Context, n *models.Note) (*models.Note, error)
	Update(ctx context.Context, n *models.Note, expectedRevision string) (*models.Note, error)
	Delete(ctx context.Context, id, expectedRevision string) error
	// List returns notes matching f ordered by UpdatedAt descending.
	List(ctx context.Context, f models.NoteFilter) ([]*models.Note, error)
	// DueScheduled returns scheduled notes whose ScheduledAt is at or before now.
	DueScheduled(ctx context.Context, now time.Time) ([]*models.Note, error)
	// Slugs returns every assigned slug.
	Slugs(ctx context.Context) (map[string]struct{}, error)
	// Tags returns the sorted, deduplicated union of all note tags.
	Tags(ctx context.Context) ([]string, error)
	Close() error
}

// Verify both backends satisfy Store at compile time.
var (
	_ Store = (*SQLite)(nil)
	_ Store = (*Files)(nil)
)

// pageBounds normalises limit and offset.
func pageBounds(f models.NoteFilter) (limit, offset int) {
	limit, offset = f.Limit, f.Offset
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// Matches reports whether n satisfies the non-paging parts of f.
func Matches(n *models.Note, f models.NoteFilter) bool {
	if f.Status != nil && n.Status != *f.Status {
		return false
	}
	if len(f.Tags) > 0 && !slices.ContainsFunc(f.Tags, func(t string) bool {
		return slices.Contains(n.Tags, t)
	}) {
		return false
	}
	if f.Search != "" {
		q := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(n.Title), q) &&
			!strings.Contains(strings.ToLower(n.Content), q) {
			return false
		}
	}
	return true
}

// IsDue reports whether n is a scheduled note whose time has come.
func IsDue(n *models.Note, now time.Time) bool {
	return n.Status == models.StatusScheduled && n.ScheduledAt != nil && !n.ScheduledAt.After(now)
}
