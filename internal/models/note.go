// Package models defines the domain types for folio.
package models

import (
	"slices"
	"time"
)

// Status is the editorial state of a note.
type Status string

const (
	StatusIdea      Status = "idea"
	StatusDraft     Status = "draft"
	StatusReady     Status = "ready"
	StatusScheduled Status = "scheduled"
	StatusPublished Status = "published"
	StatusArchived  Status = "archived"
)

// Statuses lists every status in workflow order.
var Statuses = []Status{
	StatusIdea, StatusDraft, StatusReady, StatusScheduled, StatusPublished, StatusArchived,
}

// Valid reports whether s is one of the six known statuses.
func (s Status) Valid() bool {
	return slices.Contains(Statuses, s)
}

// RequiresSlug reports whether a note in status s must carry a slug.
func (s Status) RequiresSlug() bool {
	return s == StatusReady || s == StatusScheduled || s == StatusPublished
}

// ParseStatus converts a wire string to a Status.
func ParseStatus(raw string) (Status, bool) {
	s := Status(raw)
	return s, s.Valid()
}

// Note is the authoring unit and aggregate root of the lifecycle.
type Note struct {
	ID          string     `json:"id"`
	Title       string     `json:"title,omitempty"`
	Content     string     `json:"content"`
	Tags        []string   `json:"tags"`
	Status      Status     `json:"status"`
	Slug        string     `json:"slug,omitempty"`
	URLs        []string   `json:"urls"`
	HeroImage   string     `json:"heroImage,omitempty"`
	ScheduledAt *time.Time `json:"scheduledAt,omitempty"`
	PublishedAt *time.Time `json:"publishedAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	// Revision is the optimistic-concurrency token: the checksum of the
	// encoded note document as last persisted.
	Revision string `json:"revision"`
}

// Clone returns a deep copy of n.
func (n *Note) Clone() *Note {
	c := *n
	c.Tags = slices.Clone(n.Tags)
	c.URLs = slices.Clone(n.URLs)
	if n.ScheduledAt != nil {
		t := *n.ScheduledAt
		c.ScheduledAt = &t
	}
	if n.PublishedAt != nil {
		t := *n.PublishedAt
		c.PublishedAt = &t
	}
	return &c
}

// NoteFilter selects notes for list operations.
type NoteFilter struct {
	Status *Status
	// Tags matches notes carrying at least one of the given tags.
	Tags []string
	// Search is matched case-insensitively against title and content.
	Search string
	Limit  int
	Offset int
}

// FileMetadata describes a Markdown file under a storage root.
type FileMetadata struct {
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updatedAt"`
}
