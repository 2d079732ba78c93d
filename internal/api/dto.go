package api

import (
	"time"

	"github.com/starford/folio/internal/models"
	"github.com/starford/folio/internal/urls"
)

// CreateNoteRequest is the request body for creating a note.
type CreateNoteRequest struct {
	Title   string   `json:"title" example:"Why SQLite"`
	Content string   `json:"content" example:"Notes on https://sqlite.org/whentouse.html" validate:"required"`
	Tags    []string `json:"tags" example:"databases,go"`
	Status  string   `json:"status,omitempty" example:"idea" enums:"idea,draft,ready,archived"`
}

// UpdateNoteRequest is a partial note update. Omitted fields are unchanged.
type UpdateNoteRequest struct {
	Title            *string    `json:"title,omitempty"`
	Content          *string    `json:"content,omitempty"`
	Tags             *[]string  `json:"tags,omitempty"`
	Status           *string    `json:"status,omitempty" enums:"idea,draft,ready,scheduled,archived"`
	Slug             *string    `json:"slug,omitempty" example:"why-sqlite"`
	HeroImage        *string    `json:"heroImage,omitempty" example:"images/2026/04/abc.png"`
	ScheduledAt      *time.Time `json:"scheduledAt,omitempty"`
	ClearScheduledAt bool       `json:"clearScheduledAt,omitempty"`
	RegenerateSlug   bool       `json:"regenerateSlug,omitempty"`
}

// NoteListResponse wraps paginated note listings.
type NoteListResponse struct {
	Notes  []*models.Note `json:"notes" validate:"required"`
	Limit  int            `json:"limit" example:"50"`
	Offset int            `json:"offset" example:"0"`
}

// TagsResponse lists every tag in use.
type TagsResponse struct {
	Tags []string `json:"tags" validate:"required"`
}

// LinksResponse lists the classified URLs of a note.
type LinksResponse struct {
	Links []urls.Classified `json:"links" validate:"required"`
}

// TitlesResponse carries AI title suggestions.
type TitlesResponse struct {
	Titles []string `json:"titles" validate:"required"`
}

// ImageUploadResponse is returned after a successful image upload.
type ImageUploadResponse struct {
	Key  string `json:"key" example:"images/2026/04/0b7c.png" validate:"required"`
	URL  string `json:"url" example:"https://cdn.example.com/images/2026/04/0b7c.png" validate:"required"`
	Size int64  `json:"size" example:"12345" validate:"required"`
}
