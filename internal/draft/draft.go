// Package draft turns rough notes into blog post drafts with an LLM.
package draft

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// Generator produces text from note content. Implementations must honour
// ctx cancellation.
type Generator interface {
	Generate(ctx context.Context, content string, urls []string) (string, error)
	Titles(ctx context.Context, content string, count int) ([]string, error)
}

// ErrDisabled is returned when no generator is configured.
var ErrDisabled = errors.New("draft: generator is not configured")

// Disabled is a Generator that always fails with ErrDisabled.
type Disabled struct{}

func (Disabled) Generate(context.Context, string, []string) (string, error) { return "", ErrDisabled }

func (Disabled) Titles(context.Context, string, int) ([]string, error) { return nil, ErrDisabled }

const (
	DefaultModel     = "claude-sonnet-4-20250514"
	DefaultMaxTokens = 4096
	DefaultTimeout   = 90 * time.Second

	DefaultTitleCount = 5
	titleMaxTokens    = 1024
	titleContentCap   = 2000
)

const systemPrompt = `You are a writing assistant that turns rough notes into blog posts.

Writing guidelines:
- Conversational but authoritative tone
- Short paragraphs (2-4 sentences)
- Liberal subheadings with concrete, descriptive titles
- Bold key phrases for skimmers
- Reference real companies and projects when relevant
- Include [VISUAL: description] placeholders where diagrams would help

Avoid marketing speak, buzzwords, excessive hedging, em dashes, long intros and clickbait titles.`

// Options configures the Anthropic generator.
type Options struct {
	APIKey    string
	Model     string
	MaxTokens int
	Timeout   time.Duration
	BaseURL   string
}

// Anthropic is a Generator backed by the Anthropic Messages API.
type Anthropic struct {
	client    anthropic.Client
	model     string
	maxTokens int64
	timeout   time.Duration
}

var _ Generator = (*Anthropic)(nil)

// NewAnthropic creates a generator. Retries are disabled so the timeout
// bounds the whole call.
func NewAnthropic(opts Options) (*Anthropic, error) {
	if opts.APIKey == "" {
		return nil, errors.New("draft: api key is required")
	}
	reqOpts := []option.RequestOption{
		option.WithAPIKey(opts.APIKey),
		option.WithMaxRetries(0),
	}
	if opts.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(strings.TrimRight(opts.BaseURL, "/")))
	}
	a := &Anthropic{
		client:    anthropic.NewClient(reqOpts...),
		model:     opts.Model,
		maxTokens: int64(opts.MaxTokens),
		timeout:   opts.Timeout,
	}
	if a.model == "" {
		a.model = DefaultModel
	}
	if a.maxTokens <= 0 {
		a.maxTokens = DefaultMaxTokens
	}
	if a.timeout <= 0 {
		a.timeout = DefaultTimeout
	}
	return a, nil
}

// Generate returns a publication-ready draft built from content and urls.
func (a *Anthropic) Generate(ctx context.Context, content string, urls []string) (string, error) {
	text, err := a.complete(ctx, systemPrompt, DraftPrompt(content, urls), a.maxTokens)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", errors.New("draft: empty response")
	}
	return text, nil
}

// Titles returns up to count title suggestions for content.
func (a *Anthropic) Titles(ctx context.Context, content string, count int) ([]string, error) {
	if count <= 0 {
		count = DefaultTitleCount
	}
	text, err := a.complete(ctx, "", TitlesPrompt(content, count), titleMaxTokens)
	if err != nil {
		return nil, err
	}
	return ParseTitles(text, count), nil
}

func (a *Anthropic) complete(ctx context.Context, system, prompt string, maxTokens int64) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	msg, err := a.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("draft: messages: %w", err)
	}
	for _, block := range msg.Content {
		if block.Type == "text" {
			return block.Text, nil
		}
	}
	return "", nil
}

// DraftPrompt renders the user prompt for a draft request.
func DraftPrompt(content string, urls []string) string {
	var b strings.Builder
	b.WriteString("Create a blog post draft from these notes:\n\n")
	b.WriteString(content)
	b.WriteString("\n\n")
	if len(urls) > 0 {
		b.WriteString("Related URLs:\n")
		b.WriteString(strings.Join(urls, "\n"))
		b.WriteString("\n\n")
	}
	b.WriteString("Generate a complete draft with a compelling title as a level-one heading, ")
	b.WriteString("clear sections with descriptive headings, [VISUAL: description] placeholders for images ")
	b.WriteString("and a strong conclusion.")
	return b.String()
}

// TitlesPrompt renders the user prompt for title suggestions.
func TitlesPrompt(content string, count int) string {
	if r := []rune(content); len(r) > titleContentCap {
		content = string(r[:titleContentCap])
	}
	return fmt.Sprintf("Generate %d title options for this blog post. Titles should be concrete and specific, "+
		"not clever or clickbaity. Return only the titles, one per line.\n\nContent:\n%s", count, content)
}

// ParseTitles splits a one-title-per-line response, dropping list markers
// and blank lines.
func ParseTitles(text string, count int) []string {
	out := []string{}
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimLeft(line, "-*•0123456789.) ")
		line = strings.Trim(line, `"`)
		if line == "" {
			continue
		}
		out = append(out, line)
		if len(out) == count {
			break
		}
	}
	return out
}
