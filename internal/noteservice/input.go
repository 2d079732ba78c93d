package noteservice

import (
	"errors"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/folio/internal/models"
	"github.com/starford/folio/internal/slug"
)

const (
	maxTitleLen = 300
	maxTagLen   = 64
	maxTags     = 32
)

// CreateInput holds the fields accepted when creating a note.
type CreateInput struct {
	Title   string        `json:"title"`
	Content string        `json:"content"`
	Tags    []string      `json:"tags"`
	Status  models.Status `json:"status"`
}

// Validate implements validation.Validatable.
func (in CreateInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Title, validation.RuneLength(0, maxTitleLen)),
		validation.Field(&in.Content, validation.Required, validation.By(notBlank)),
		validation.Field(&in.Tags, validation.Length(0, maxTags), validation.Each(validation.RuneLength(0, maxTagLen))),
		validation.Field(&in.Status, validation.By(validStatus),
			validation.NotIn(models.StatusScheduled, models.StatusPublished).
				Error("notes cannot be created as scheduled or published")),
	)
}

// UpdateInput is a partial edit. Nil fields are left unchanged.
type UpdateInput struct {
	Title       *string        `json:"title,omitempty"`
	Content     *string        `json:"content,omitempty"`
	Tags        *[]string      `json:"tags,omitempty"`
	Status      *models.Status `json:"status,omitempty"`
	Slug        *string        `json:"slug,omitempty"`
	HeroImage   *string        `json:"heroImage,omitempty"`
	ScheduledAt *time.Time     `json:"scheduledAt,omitempty"`

	ClearScheduledAt bool `json:"clearScheduledAt,omitempty"`
	RegenerateSlug   bool `json:"regenerateSlug,omitempty"`

	// ExpectedRevision, when set, makes the update conditional on the note
	// still having this revision.
	ExpectedRevision string `json:"-"`
}

// Validate implements validation.Validatable.
func (in UpdateInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Title, validation.RuneLength(0, maxTitleLen)),
		validation.Field(&in.Content, validation.NilOrNotEmpty, validation.By(notBlank)),
		validation.Field(&in.Tags, validation.By(func(v any) error {
			tags, _ := v.(*[]string)
			if tags == nil {
				return nil
			}
			return validation.Validate(*tags, validation.Length(0, maxTags), validation.Each(validation.RuneLength(0, maxTagLen)))
		})),
		validation.Field(&in.Status, validation.By(validStatus)),
		validation.Field(&in.Slug, validation.By(validSlug)),
		validation.Field(&in.ClearScheduledAt, validation.When(in.ScheduledAt != nil,
			validation.In(false).Error("cannot set and clear scheduledAt together"))),
	)
}

func notBlank(v any) error {
	var s string
	switch x := v.(type) {
	case string:
		s = x
	case *string:
		if x == nil {
			return nil
		}
		s = *x
	}
	if strings.TrimSpace(s) == "" {
		return errors.New("cannot be blank")
	}
	return nil
}

func validStatus(v any) error {
	var s models.Status
	switch x := v.(type) {
	case models.Status:
		s = x
	case *models.Status:
		if x == nil {
			return nil
		}
		s = *x
	}
	if !s.Valid() {
		return errors.New("must be one of idea, draft, ready, scheduled, published, archived")
	}
	return nil
}

func validSlug(v any) error {
	p, _ := v.(*string)
	if p == nil {
		return nil
	}
	if !slug.Valid(strings.TrimSpace(*p)) {
		return errors.New("must be lowercase letters, digits and single hyphens")
	}
	return nil
}
