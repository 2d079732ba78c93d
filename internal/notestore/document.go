package notestore

import (
	"fmt"
	"time"

	"github.com/starford/folio/internal/checksum"
	"github.com/starford/folio/internal/models"
	"github.com/starford/folio/internal/parser"
	"github.com/starford/folio/internal/urls"
)

// EncodeNote renders n as a Markdown document with typed frontmatter.
// Revision and URLs are not part of the document; URLs are derived from
// content when decoding.
func EncodeNote(n *models.Note) ([]byte, error) {
	tags := n.Tags
	if tags == nil {
		tags = []string{}
	}
	fm := parser.NoteFrontmatter{
		ID:          n.ID,
		Title:       n.Title,
		Status:      string(n.Status),
		Tags:        tags,
		Slug:        n.Slug,
		HeroImage:   n.HeroImage,
		ScheduledAt: utcPtr(n.ScheduledAt),
		PublishedAt: utcPtr(n.PublishedAt),
		CreatedAt:   n.CreatedAt.UTC(),
		UpdatedAt:   n.UpdatedAt.UTC(),
	}
	return parser.Encode(fm, n.Content)
}

// DecodeNote parses a document produced by EncodeNote.
func DecodeNote(data []byte) (*models.Note, error) {
	var fm parser.NoteFrontmatter
	body, err := parser.Decode(data, &fm)
	if err != nil {
		return nil, err
	}
	status, ok := models.ParseStatus(fm.Status)
	if !ok {
		return nil, fmt.Errorf("notestore: note %s has unknown status %q", fm.ID, fm.Status)
	}
	tags := fm.Tags
	if tags == nil {
		tags = []string{}
	}
	return &models.Note{
		ID:          fm.ID,
		Title:       fm.Title,
		Content:     body,
		Tags:        tags,
		Status:      status,
		Slug:        fm.Slug,
		URLs:        urls.Extract(body),
		HeroImage:   fm.HeroImage,
		ScheduledAt: utcPtr(fm.ScheduledAt),
		PublishedAt: utcPtr(fm.PublishedAt),
		CreatedAt:   fm.CreatedAt.UTC(),
		UpdatedAt:   fm.UpdatedAt.UTC(),
		Revision:    checksum.Sum(data),
	}, nil
}

// Revision returns the concurrency token for n as it would be persisted.
func Revision(n *models.Note) (string, error) {
	data, err := EncodeNote(n)
	if err != nil {
		return "", err
	}
	return checksum.Sum(data), nil
}

// normalize returns a copy of n with UTC timestamps and non-nil slices.
func normalize(n *models.Note) *models.Note {
	c := n.Clone()
	c.CreatedAt = c.CreatedAt.UTC()
	c.UpdatedAt = c.UpdatedAt.UTC()
	c.ScheduledAt = utcPtr(c.ScheduledAt)
	c.PublishedAt = utcPtr(c.PublishedAt)
	if c.Tags == nil {
		c.Tags = []string{}
	}
	c.URLs = urls.Extract(c.Content)
	return c
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
