package notestore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/starford/folio/internal/apperr"
	"github.com/starford/folio/internal/checksum"
	"github.com/starford/folio/internal/models"
	"github.com/starford/folio/internal/storage"
)

const noteExt = ".md"

// Files is a Store keeping one Markdown document per note, named {id}.md.
// The revision of a note is the checksum of its file bytes, so edits made
// outside the process are detected as conflicts.
type Files struct {
	fs storage.Provider
	// mu serialises read-compare-write cycles within this process.
	mu sync.Mutex
}

// NewFiles creates a file-backed store on top of provider.
func NewFiles(provider storage.Provider) *Files {
	return &Files{fs: provider}
}

// Close is a no-op.
func (f *Files) Close() error { return nil }

// Get returns the note with the given id.
func (f *Files) Get(_ context.Context, id string) (*models.Note, error) {
	return f.read(id)
}

// GetBySlug scans all notes for slug.
func (f *Files) GetBySlug(_ context.Context, slug string) (*models.Note, error) {
	all, err := f.all()
	if err != nil {
		return nil, err
	}
	for _, n := range all {
		if n.Slug == slug {
			return n, nil
		}
	}
	return nil, apperr.ErrNotFound
}

// Insert writes a new note file.
func (f *Files) Insert(_ context.Context, n *models.Note) (*models.Note, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	p, err := notePath(n.ID)
	if err != nil {
		return nil, err
	}
	exists, err := f.fs.Exists(p)
	if err != nil {
		return nil, fmt.Errorf("notestore: %w", err)
	}
	if exists {
		return nil, fmt.Errorf("%w: note %s", apperr.ErrAlreadyExists, n.ID)
	}
	if err := f.checkSlugFree(n); err != nil {
		return nil, err
	}
	return f.write(p, n)
}

// Update rewrites a note file if its checksum equals expectedRevision.
func (f *Files) Update(_ context.Context, n *models.Note, expectedRevision string) (*models.Note, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	current, err := f.read(n.ID)
	if err != nil {
		return nil, err
	}
	if current.Revision != expectedRevision {
		return nil, fmt.Errorf("%w: note %s was modified concurrently", apperr.ErrConflict, n.ID)
	}
	if n.Slug != current.Slug {
		if err := f.checkSlugFree(n); err != nil {
			return nil, err
		}
	}
	p, err := notePath(n.ID)
	if err != nil {
		return nil, err
	}
	return f.write(p, n)
}

// Delete removes a note file.
func (f *Files) Delete(_ context.Context, id, expectedRevision string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	current, err := f.read(id)
	if err != nil {
		return err
	}
	if expectedRevision != "" && current.Revision != expectedRevision {
		return fmt.Errorf("%w: note %s was modified concurrently", apperr.ErrConflict, id)
	}
	p, _ := notePath(id)
	if err := f.fs.Delete(p); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return apperr.ErrNotFound
		}
		return fmt.Errorf("notestore: %w", err)
	}
	return nil
}

// List filters all notes in memory.
func (f *Files) List(_ context.Context, filter models.NoteFilter) ([]*models.Note, error) {
	all, err := f.all()
	if err != nil {
		return nil, err
	}
	matched := make([]*models.Note, 0, len(all))
	for _, n := range all {
		if Matches(n, filter) {
			matched = append(matched, n)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		if !matched[i].UpdatedAt.Equal(matched[j].UpdatedAt) {
			return matched[i].UpdatedAt.After(matched[j].UpdatedAt)
		}
		return matched[i].ID < matched[j].ID
	})

	limit, offset := pageBounds(filter)
	if offset >= len(matched) {
		return []*models.Note{}, nil
	}
	end := min(offset+limit, len(matched))
	return matched[offset:end], nil
}

// DueScheduled returns scheduled notes whose time has elapsed, oldest first.
func (f *Files) DueScheduled(_ context.Context, now time.Time) ([]*models.Note, error) {
	all, err := f.all()
	if err != nil {
		return nil, err
	}
	out := []*models.Note{}
	for _, n := range all {
		if IsDue(n, now) {
			out = append(out, n)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ScheduledAt.Before(*out[j].ScheduledAt)
	})
	return out, nil
}

// Slugs returns every assigned slug.
func (f *Files) Slugs(_ context.Context) (map[string]struct{}, error) {
	all, err := f.all()
	if err != nil {
		return nil, err
	}
	out := make(map[string]struct{}, len(all))
	for _, n := range all {
		if n.Slug != "" {
			out[n.Slug] = struct{}{}
		}
	}
	return out, nil
}

// Tags returns all distinct tags in lexical order.
func (f *Files) Tags(_ context.Context) ([]string, error) {
	all, err := f.all()
	if err != nil {
		return nil, err
	}
	out := []string{}
	for _, n := range all {
		out = append(out, n.Tags...)
	}
	slices.Sort(out)
	return slices.Compact(out), nil
}

func (f *Files) read(id string) (*models.Note, error) {
	p, err := notePath(id)
	if err != nil {
		return nil, apperr.ErrNotFound
	}
	data, err := f.fs.Read(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperr.ErrNotFound
		}
		return nil, fmt.Errorf("notestore: %w", err)
	}
	n, err := DecodeNote(data)
	if err != nil {
		return nil, fmt.Errorf("notestore: decode %s: %w", p, err)
	}
	if n.ID == "" {
		n.ID = id
	}
	return n, nil
}

func (f *Files) write(p string, n *models.Note) (*models.Note, error) {
	n = normalize(n)
	data, err := EncodeNote(n)
	if err != nil {
		return nil, err
	}
	if err := f.fs.Write(p, data); err != nil {
		return nil, fmt.Errorf("notestore: %w", err)
	}
	n.Revision = checksum.Sum(data)
	return n, nil
}

func (f *Files) all() ([]*models.Note, error) {
	metas, err := f.fs.List("")
	if err != nil {
		return nil, fmt.Errorf("notestore: %w", err)
	}
	out := make([]*models.Note, 0, len(metas))
	for _, m := range metas {
		if strings.Contains(m.Path, "/") {
			continue
		}
		n, err := f.read(strings.TrimSuffix(m.Path, noteExt))
		if err != nil {
			if errors.Is(err, apperr.ErrNotFound) {
				continue // removed between list and read
			}
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

func (f *Files) checkSlugFree(n *models.Note) error {
	if n.Slug == "" {
		return nil
	}
	all, err := f.all()
	if err != nil {
		return err
	}
	for _, other := range all {
		if other.ID != n.ID && other.Slug == n.Slug {
			return fmt.Errorf("%w: slug %q is taken", apperr.ErrConflict, n.Slug)
		}
	}
	return nil
}

// notePath maps an id to its file name, rejecting ids that are not plain names.
func notePath(id string) (string, error) {
	if id == "" || id != path.Base(id) || strings.ContainsAny(id, `/\`) || strings.HasPrefix(id, ".") {
		return "", fmt.Errorf("notestore: invalid note id %q", id)
	}
	return id + noteExt, nil
}

// IDFromPath returns the note id for a file name produced by notePath.
func IDFromPath(p string) (string, bool) {
	base := path.Base(p)
	if !strings.HasSuffix(base, noteExt) || strings.HasPrefix(base, ".") {
		return "", false
	}
	return strings.TrimSuffix(base, noteExt), true
}
