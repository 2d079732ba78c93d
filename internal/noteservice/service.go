// Package noteservice implements the note lifecycle: creation, edits,
// status transitions, slug assignment and draft assistance. It is the only
// writer of the note store.
package noteservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/starford/folio/internal/apperr"
	"github.com/starford/folio/internal/draft"
	"github.com/starford/folio/internal/models"
	"github.com/starford/folio/internal/notestore"
	"github.com/starford/folio/internal/parser"
	"github.com/starford/folio/internal/slug"
	"github.com/starford/folio/internal/urls"
	"github.com/starford/folio/internal/workflow"
)

// slugSourceLen caps the content excerpt used when a note has no title.
const slugSourceLen = 50

// EventFunc receives lifecycle events ("created", "updated", "deleted").
type EventFunc func(kind, id string)

// Retractor takes down the public artifact a previously published note
// may still have live.
type Retractor interface {
	Retract(ctx context.Context, n *models.Note) error
}

// Service coordinates validation, transition policy and persistence.
type Service struct {
	store     notestore.Store
	gen       draft.Generator
	now       func() time.Time
	logger    *slog.Logger
	events    EventFunc
	retractor Retractor
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithGenerator enables draft assistance.
func WithGenerator(g draft.Generator) Option {
	return func(s *Service) {
		if g != nil {
			s.gen = g
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithEvents registers a lifecycle event sink.
func WithEvents(fn EventFunc) Option {
	return func(s *Service) { s.events = fn }
}

// SetRetractor wires the component that owns public artifacts. Archiving or
// deleting a note that still has a live artifact goes through it first.
func (s *Service) SetRetractor(r Retractor) { s.retractor = r }

// New creates a lifecycle service on top of store.
func New(store notestore.Store, opts ...Option) *Service {
	s := &Service{
		store:  store,
		gen:    draft.Disabled{},
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Now returns the service clock's current time in UTC.
func (s *Service) Now() time.Time {
	return s.now().UTC()
}

// Create stores a new note. Slugs are only assigned on create when the
// initial status already requires one.
func (s *Service) Create(ctx context.Context, in CreateInput) (*models.Note, error) {
	if in.Status == "" {
		in.Status = models.StatusIdea
	}
	if err := in.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrValidation, err)
	}

	now := s.Now()
	n := &models.Note{
		ID:        uuid.NewString(),
		Title:     strings.TrimSpace(in.Title),
		Content:   in.Content,
		Tags:      NormalizeTags(in.Tags),
		Status:    in.Status,
		URLs:      urls.Extract(in.Content),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if n.Status.RequiresSlug() {
		if err := s.assignSlug(ctx, n, ""); err != nil {
			return nil, err
		}
	}

	saved, err := s.store.Insert(ctx, n)
	if err != nil {
		return nil, err
	}
	s.logger.Info("note created", slog.String("id", saved.ID), slog.String("status", string(saved.Status)))
	s.emit("created", saved.ID)
	return saved, nil
}

// Get returns a note by id.
func (s *Service) Get(ctx context.Context, id string) (*models.Note, error) {
	return s.store.Get(ctx, id)
}

// GetBySlug returns the note owning slug.
func (s *Service) GetBySlug(ctx context.Context, slug string) (*models.Note, error) {
	return s.store.GetBySlug(ctx, slug)
}

// List returns notes matching f, most recently updated first.
func (s *Service) List(ctx context.Context, f models.NoteFilter) ([]*models.Note, error) {
	if f.Status != nil && !f.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", apperr.ErrValidation, *f.Status)
	}
	f.Tags = NormalizeTags(f.Tags)
	f.Search = strings.TrimSpace(f.Search)
	return s.store.List(ctx, f)
}

// ListDueScheduled returns scheduled notes whose time is at or before now.
func (s *Service) ListDueScheduled(ctx context.Context, now time.Time) ([]*models.Note, error) {
	return s.store.DueScheduled(ctx, now)
}

// AllTags returns every tag in use, sorted.
func (s *Service) AllTags(ctx context.Context) ([]string, error) {
	return s.store.Tags(ctx)
}

// Update applies a partial edit. Entering published and leaving published
// for archived are reserved to the publish engine, which owns the artifact.
func (s *Service) Update(ctx context.Context, id string, in UpdateInput) (*models.Note, error) {
	return s.update(ctx, id, in, false)
}

// Transition moves a note to status through the same checks as Update,
// including publication. It is used by the publish engine.
func (s *Service) Transition(ctx context.Context, id string, to models.Status, expectedRevision string) (*models.Note, error) {
	return s.update(ctx, id, UpdateInput{Status: &to, ExpectedRevision: expectedRevision}, true)
}

func (s *Service) update(ctx context.Context, id string, in UpdateInput, engine bool) (*models.Note, error) {
	if err := in.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrValidation, err)
	}

	cur, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.ExpectedRevision != "" && in.ExpectedRevision != cur.Revision {
		return nil, fmt.Errorf("%w: note %s has changed", apperr.ErrConflict, id)
	}

	next := cur.Clone()
	if in.Title != nil {
		next.Title = strings.TrimSpace(*in.Title)
	}
	if in.Content != nil {
		next.Content = *in.Content
		next.URLs = urls.Extract(next.Content)
	}
	if in.Tags != nil {
		next.Tags = NormalizeTags(*in.Tags)
	}
	if in.HeroImage != nil {
		next.HeroImage = strings.TrimSpace(*in.HeroImage)
	}
	switch {
	case in.ClearScheduledAt:
		next.ScheduledAt = nil
	case in.ScheduledAt != nil:
		at := in.ScheduledAt.UTC()
		next.ScheduledAt = &at
	}

	if in.Status != nil {
		to := *in.Status
		if !workflow.IsValidTransition(cur.Status, to) {
			return nil, fmt.Errorf("%w: cannot move from %s to %s", apperr.ErrInvalidTransition, cur.Status, to)
		}
		if !engine && to == models.StatusPublished && cur.Status != models.StatusPublished {
			return nil, fmt.Errorf("%w: use publish to publish a note", apperr.ErrInvalidState)
		}
		if !engine && cur.Status == models.StatusPublished && to == models.StatusArchived {
			return nil, fmt.Errorf("%w: use unpublish to archive a published note", apperr.ErrInvalidState)
		}
		next.Status = to
	}

	if err := s.applySlug(ctx, cur, next, in); err != nil {
		return nil, err
	}

	if next.Status == models.StatusScheduled && next.ScheduledAt == nil {
		return nil, fmt.Errorf("%w: scheduled notes need scheduledAt", apperr.ErrValidation)
	}
	if !engine && next.Status == models.StatusArchived && cur.Status != models.StatusArchived {
		if err := s.retract(ctx, cur); err != nil {
			return nil, err
		}
	}

	now := s.Now()
	if next.Status == models.StatusPublished && next.PublishedAt == nil {
		next.PublishedAt = &now
	}
	next.UpdatedAt = now

	saved, err := s.store.Update(ctx, next, cur.Revision)
	if err != nil {
		return nil, err
	}
	if cur.Status != saved.Status {
		s.logger.Info("note status changed", slog.String("id", id),
			slog.String("from", string(cur.Status)), slog.String("to", string(saved.Status)))
	}
	s.emit("updated", saved.ID)
	return saved, nil
}

// applySlug enforces slug freezing: an explicit slug is accepted only while
// none is assigned, or with RegenerateSlug on an unpublished note.
func (s *Service) applySlug(ctx context.Context, cur, next *models.Note, in UpdateInput) error {
	unfrozen := cur.Slug == "" ||
		(in.RegenerateSlug && cur.Status != models.StatusPublished && cur.PublishedAt == nil)

	if in.RegenerateSlug && !unfrozen {
		return fmt.Errorf("%w: slug of a published note cannot change", apperr.ErrInvalidState)
	}

	if in.Slug != nil {
		want := strings.TrimSpace(*in.Slug)
		if want == cur.Slug {
			return nil
		}
		if !unfrozen {
			return fmt.Errorf("%w: slug is already assigned", apperr.ErrValidation)
		}
		taken, err := s.takenSlugs(ctx, cur.Slug)
		if err != nil {
			return err
		}
		if _, ok := taken[want]; ok {
			return fmt.Errorf("%w: slug %q is taken", apperr.ErrConflict, want)
		}
		next.Slug = want
		return nil
	}

	if in.RegenerateSlug {
		return s.assignSlug(ctx, next, cur.Slug)
	}
	if next.Status.RequiresSlug() && next.Slug == "" {
		return s.assignSlug(ctx, next, "")
	}
	return nil
}

// assignSlug derives a unique slug from the title, or from the content
// when the title is empty. own is released from the taken set.
func (s *Service) assignSlug(ctx context.Context, n *models.Note, own string) error {
	taken, err := s.takenSlugs(ctx, own)
	if err != nil {
		return err
	}
	source := n.Title
	if source == "" {
		source = parser.Headline(n.Content, slugSourceLen)
	}
	n.Slug = slug.Unique(source, taken)
	return nil
}

func (s *Service) takenSlugs(ctx context.Context, own string) (map[string]struct{}, error) {
	taken, err := s.store.Slugs(ctx)
	if err != nil {
		return nil, err
	}
	if own != "" {
		delete(taken, own)
	}
	return taken, nil
}

// Delete removes a note. It reports false when the note does not exist.
// Published notes must be unpublished first.
func (s *Service) Delete(ctx context.Context, id, expectedRevision string) (bool, error) {
	cur, err := s.store.Get(ctx, id)
	if errors.Is(err, apperr.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if cur.Status == models.StatusPublished {
		return false, fmt.Errorf("%w: unpublish the note before deleting it", apperr.ErrInvalidState)
	}
	if expectedRevision == "" {
		expectedRevision = cur.Revision
	}
	if expectedRevision != cur.Revision {
		return false, fmt.Errorf("%w: note %s has changed", apperr.ErrConflict, id)
	}
	if err := s.retract(ctx, cur); err != nil {
		return false, err
	}
	if err := s.store.Delete(ctx, id, expectedRevision); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	s.logger.Info("note deleted", slog.String("id", id))
	s.emit("deleted", id)
	return true, nil
}

// retract removes the artifact of a note that was published at some point
// and is not published now, such as a revision begun with published -> draft.
func (s *Service) retract(ctx context.Context, cur *models.Note) error {
	if s.retractor == nil || cur.PublishedAt == nil || cur.Status == models.StatusPublished {
		return nil
	}
	return s.retractor.Retract(ctx, cur)
}

// GenerateDraft replaces the note content with an AI draft and moves it to
// draft. The note is left untouched when generation fails.
func (s *Service) GenerateDraft(ctx context.Context, id, expectedRevision string) (*models.Note, error) {
	cur, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if expectedRevision == "" {
		expectedRevision = cur.Revision
	}
	if !workflow.IsValidTransition(cur.Status, models.StatusDraft) {
		return nil, fmt.Errorf("%w: cannot move from %s to %s", apperr.ErrInvalidTransition, cur.Status, models.StatusDraft)
	}

	text, err := s.gen.Generate(ctx, cur.Content, cur.URLs)
	if err != nil {
		s.logger.Warn("draft generation failed", slog.String("id", id), slog.String("error", err.Error()))
		return nil, fmt.Errorf("%w: %v", apperr.ErrUpstream, err)
	}

	status := models.StatusDraft
	in := UpdateInput{Content: &text, Status: &status, ExpectedRevision: expectedRevision}
	if cur.Title == "" {
		if title := parser.Headline(text, 120); title != "" {
			in.Title = &title
		}
	}
	return s.update(ctx, id, in, false)
}

// SuggestTitles asks the generator for count title options.
func (s *Service) SuggestTitles(ctx context.Context, id string, count int) ([]string, error) {
	n, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	titles, err := s.gen.Titles(ctx, n.Content, count)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrUpstream, err)
	}
	return titles, nil
}

func (s *Service) emit(kind, id string) {
	if s.events != nil {
		s.events(kind, id)
	}
}

// NormalizeTags trims, lowercases, deduplicates and sorts tags.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			out = append(out, t)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}
