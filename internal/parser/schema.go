package parser

import "time"

// NoteFrontmatter is the persisted header of a note document.
type NoteFrontmatter struct {
	ID          string     `yaml:"id"`
	Title       string     `yaml:"title,omitempty"`
	Status      string     `yaml:"status"`
	Tags        []string   `yaml:"tags"`
	Slug        string     `yaml:"slug,omitempty"`
	HeroImage   string     `yaml:"heroImage,omitempty"`
	ScheduledAt *time.Time `yaml:"scheduledAt,omitempty"`
	PublishedAt *time.Time `yaml:"publishedAt,omitempty"`
	CreatedAt   time.Time  `yaml:"createdAt"`
	UpdatedAt   time.Time  `yaml:"updatedAt"`
}

// PostFrontmatter is the header of a published artifact consumed by the site.
type PostFrontmatter struct {
	Title       string   `yaml:"title"`
	Date        string   `yaml:"date"`
	Tags        []string `yaml:"tags"`
	ReadingTime int      `yaml:"readingTime"`
	HeroImage   string   `yaml:"heroImage,omitempty"`
	Slug        string   `yaml:"slug"`
}
