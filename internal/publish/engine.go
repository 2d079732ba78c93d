// Package publish materializes notes as public artifacts and keeps note
// status consistent with artifact existence.
package publish

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/starford/folio/internal/apperr"
	"github.com/starford/folio/internal/artifact"
	"github.com/starford/folio/internal/deploy"
	"github.com/starford/folio/internal/images"
	"github.com/starford/folio/internal/models"
	"github.com/starford/folio/internal/parser"
)

const (
	defaultNotifyTimeout = 10 * time.Second
	untitled             = "Untitled"
)

// Notes is the part of the lifecycle service the engine depends on.
type Notes interface {
	Get(ctx context.Context, id string) (*models.Note, error)
	Transition(ctx context.Context, id string, to models.Status, expectedRevision string) (*models.Note, error)
	ListDueScheduled(ctx context.Context, now time.Time) ([]*models.Note, error)
	Now() time.Time
}

// Result describes a successful publish or unpublish.
type Result struct {
	Success bool   `json:"success"`
	ID      string `json:"id"`
	Slug    string `json:"slug"`
	Path    string `json:"path"`
}

// Engine runs publish and unpublish.
type Engine struct {
	notes     Notes
	artifacts artifact.Store
	images    images.Resolver
	notifier  deploy.Notifier
	logger    *slog.Logger
	events    func(kind, id string)

	notifyTimeout time.Duration
	inflight      sync.WaitGroup
	locks         sync.Map // note id -> *sync.Mutex
}

// Option configures an Engine.
type Option func(*Engine)

// WithImages sets the hero image resolver.
func WithImages(r images.Resolver) Option {
	return func(e *Engine) {
		if r != nil {
			e.images = r
		}
	}
}

// WithNotifier sets the deploy notifier.
func WithNotifier(n deploy.Notifier) Option {
	return func(e *Engine) {
		if n != nil {
			e.notifier = n
		}
	}
}

// WithNotifyTimeout bounds each deploy notification.
func WithNotifyTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.notifyTimeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithEvents registers a sink for "published" and "unpublished" events.
func WithEvents(fn func(kind, id string)) Option {
	return func(e *Engine) { e.events = fn }
}

// NewEngine creates an engine writing artifacts to store.
func NewEngine(notes Notes, store artifact.Store, opts ...Option) *Engine {
	e := &Engine{
		notes:         notes,
		artifacts:     store,
		images:        images.Disabled{},
		notifier:      deploy.Noop{},
		logger:        slog.Default(),
		notifyTimeout: defaultNotifyTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Publish writes the note's artifact and marks it published.
func (e *Engine) Publish(ctx context.Context, id string) (*Result, error) {
	defer e.lock(id)()

	n, err := e.notes.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if n.Status != models.StatusReady && n.Status != models.StatusScheduled {
		return nil, fmt.Errorf("%w: cannot publish note with status %q", apperr.ErrInvalidState, n.Status)
	}
	if n.Slug == "" {
		return nil, fmt.Errorf("%w: note %s has no slug", apperr.ErrMissingSlug, id)
	}

	// A note that was published before keeps its original address.
	at := e.notes.Now()
	if n.PublishedAt != nil {
		at = *n.PublishedAt
	}
	key := artifact.Key(at, n.Slug)

	existed, err := e.artifacts.Exists(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrUpstream, err)
	}
	fm := e.frontmatter(ctx, n, at)
	if err := e.artifacts.Write(ctx, key, fm, n.Content); err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrUpstream, err)
	}

	if _, err := e.notes.Transition(ctx, id, models.StatusPublished, n.Revision); err != nil {
		bg := context.WithoutCancel(ctx)
		// Another writer may have published the note at this key meanwhile;
		// the artifact is then theirs.
		if errors.Is(err, apperr.ErrConflict) {
			if cur, gErr := e.notes.Get(bg, id); gErr == nil && publishedTo(cur, key) {
				return nil, fmt.Errorf("%w: note %s is already published", apperr.ErrInvalidState, id)
			}
		}
		if !existed {
			if rmErr := e.artifacts.Remove(bg, key); rmErr != nil {
				e.logger.Error("publish: rollback artifact failed",
					slog.String("id", id), slog.String("key", key), slog.String("error", rmErr.Error()))
			}
		}
		return nil, err
	}

	e.logger.Info("note published", slog.String("id", id), slog.String("key", key))
	e.emit("published", id)
	e.notify()
	return &Result{Success: true, ID: id, Slug: n.Slug, Path: artifact.FileName(key)}, nil
}

// Unpublish removes the note's artifact and archives it.
func (e *Engine) Unpublish(ctx context.Context, id string) (*Result, error) {
	defer e.lock(id)()

	n, err := e.notes.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if n.Status != models.StatusPublished {
		return nil, fmt.Errorf("%w: note %s has status %q", apperr.ErrNotPublished, id, n.Status)
	}
	if n.Slug == "" || n.PublishedAt == nil {
		return nil, fmt.Errorf("%w: note %s is missing publish information", apperr.ErrInvalidState, id)
	}

	key := artifact.Key(*n.PublishedAt, n.Slug)
	if err := e.artifacts.Remove(ctx, key); err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrUpstream, err)
	}

	if _, err := e.notes.Transition(ctx, id, models.StatusArchived, n.Revision); err != nil {
		bg := context.WithoutCancel(ctx)
		// Restore only while the note still claims a live artifact. A
		// concurrent unpublish or delete has already taken it down.
		cur, gErr := e.notes.Get(bg, id)
		switch {
		case gErr != nil && !errors.Is(gErr, apperr.ErrNotFound):
			e.logger.Error("unpublish: reread after failed transition",
				slog.String("id", id), slog.String("error", gErr.Error()))
		case gErr != nil || cur.Status == models.StatusArchived:
			if errors.Is(err, apperr.ErrConflict) {
				return nil, fmt.Errorf("%w: note %s was unpublished concurrently", apperr.ErrNotPublished, id)
			}
			return nil, err
		}
		fm := e.frontmatter(bg, n, *n.PublishedAt)
		if wErr := e.artifacts.Write(bg, key, fm, n.Content); wErr != nil {
			e.logger.Error("unpublish: restore artifact failed",
				slog.String("id", id), slog.String("key", key), slog.String("error", wErr.Error()))
		}
		return nil, err
	}

	e.logger.Info("note unpublished", slog.String("id", id), slog.String("key", key))
	e.emit("unpublished", id)
	e.notify()
	return &Result{Success: true, ID: id, Slug: n.Slug, Path: artifact.FileName(key)}, nil
}

// Retract removes the artifact of a note that was published before but is
// being archived or deleted from a non-published status. It is a no-op for
// notes that never went public.
func (e *Engine) Retract(ctx context.Context, n *models.Note) error {
	if n.PublishedAt == nil || n.Slug == "" {
		return nil
	}
	defer e.lock(n.ID)()

	key := artifact.Key(*n.PublishedAt, n.Slug)
	existed, err := e.artifacts.Exists(ctx, key)
	if err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrUpstream, err)
	}
	if !existed {
		return nil
	}
	if err := e.artifacts.Remove(ctx, key); err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrUpstream, err)
	}
	e.logger.Info("artifact retracted", slog.String("id", n.ID), slog.String("key", key))
	e.emit("unpublished", n.ID)
	e.notify()
	return nil
}

// Close waits for in-flight deploy notifications.
func (e *Engine) Close() {
	e.inflight.Wait()
}

// lock serializes publish, unpublish and retract of one note within the
// process. Callers in other processes are caught by the revision check.
func (e *Engine) lock(id string) func() {
	v, _ := e.locks.LoadOrStore(id, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

func publishedTo(n *models.Note, key string) bool {
	return n.Status == models.StatusPublished && n.PublishedAt != nil &&
		artifact.Key(*n.PublishedAt, n.Slug) == key
}

func (e *Engine) frontmatter(ctx context.Context, n *models.Note, at time.Time) parser.PostFrontmatter {
	title := n.Title
	if title == "" {
		title = untitled
	}
	fm := parser.PostFrontmatter{
		Title:       title,
		Date:        artifact.DateString(at),
		Tags:        n.Tags,
		ReadingTime: parser.ReadingTime(n.Content),
		Slug:        n.Slug,
	}
	if n.HeroImage != "" {
		url, ok, err := e.images.Resolve(ctx, n.HeroImage)
		switch {
		case err != nil:
			e.logger.Warn("publish: hero image lookup failed",
				slog.String("id", n.ID), slog.String("ref", n.HeroImage), slog.String("error", err.Error()))
		case ok:
			fm.HeroImage = url
		}
	}
	return fm
}

// notify fires the deploy hook without blocking the caller.
func (e *Engine) notify() {
	e.inflight.Add(1)
	go func() {
		defer e.inflight.Done()
		ctx, cancel := context.WithTimeout(context.Background(), e.notifyTimeout)
		defer cancel()
		if err := e.notifier.Notify(ctx); err != nil {
			e.logger.Warn("deploy notification failed", slog.String("error", err.Error()))
		}
	}()
}

func (e *Engine) emit(kind, id string) {
	if e.events != nil {
		e.events(kind, id)
	}
}
