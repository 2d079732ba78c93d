package parser

import (
	"strings"
	"testing"
	"time"
)

func TestEncodeDecode_PreservesBody(t *testing.T) {
	ts := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	fm := NoteFrontmatter{
		ID:        "n1",
		Title:     "Hello: World",
		Status:    "draft",
		Tags:      []string{"go", "notes"},
		CreatedAt: ts,
		UpdatedAt: ts,
	}
	body := "\nLeading blank line.\n\n---\nnot a delimiter for us\n"

	data, err := Encode(fm, body)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if !strings.HasPrefix(string(data), "---\nid: n1\n") {
		t.Errorf("unexpected prefix: %q", data)
	}

	var got NoteFrontmatter
	gotBody, err := Decode(data, &got)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if gotBody != body {
		t.Errorf("body = %q, want %q", gotBody, body)
	}
	if got.Title != fm.Title || got.Status != "draft" || len(got.Tags) != 2 {
		t.Errorf("frontmatter = %+v", got)
	}
	if !got.CreatedAt.Equal(ts) {
		t.Errorf("createdAt = %v, want %v", got.CreatedAt, ts)
	}
	if got.ScheduledAt != nil || got.PublishedAt != nil {
		t.Errorf("expected nil optional timestamps")
	}
}

func TestSplit_NoFrontmatter(t *testing.T) {
	block, body, ok := Split([]byte("# Just a heading\nSome text.\n"))
	if ok || block != nil {
		t.Fatalf("expected no frontmatter")
	}
	if body != "# Just a heading\nSome text.\n" {
		t.Errorf("body = %q", body)
	}
}

func TestSplit_Unclosed(t *testing.T) {
	_, _, ok := Split([]byte("---\ntitle: x\nno closing"))
	if ok {
		t.Error("unclosed block should not split")
	}
}

func TestDecode_InvalidYAML(t *testing.T) {
	var fm PostFrontmatter
	if _, err := Decode([]byte("---\n: invalid: yaml: {{{\n---\nBody\n"), &fm); err == nil {
		t.Error("expected decode error")
	}
}

func TestDecode_Missing(t *testing.T) {
	var fm PostFrontmatter
	if _, err := Decode([]byte("plain"), &fm); err != ErrNoFrontmatter {
		t.Errorf("err = %v, want ErrNoFrontmatter", err)
	}
}

func TestPostFrontmatter_Fields(t *testing.T) {
	data, err := Encode(PostFrontmatter{
		Title:       "T",
		Date:        "2026-10-17",
		Tags:        []string{},
		ReadingTime: 3,
		Slug:        "t",
	}, "body")
	if err != nil {
		t.Fatal(err)
	}
	s := string(data)
	for _, want := range []string{"title: T\n", "date: \"2026-10-17\"\n", "tags: []\n", "readingTime: 3\n", "slug: t\n"} {
		if !strings.Contains(s, want) {
			t.Errorf("missing %q in %q", want, s)
		}
	}
	if strings.Contains(s, "heroImage") {
		t.Errorf("empty heroImage should be omitted: %q", s)
	}
	if !strings.HasSuffix(s, "---\n\nbody") {
		t.Errorf("unexpected tail: %q", s)
	}
}

func TestReadingTime(t *testing.T) {
	cases := []struct {
		words int
		want  int
	}{
		{1, 1}, {199, 1}, {200, 1}, {201, 2}, {400, 2}, {401, 3},
	}
	for _, tc := range cases {
		text := strings.TrimSpace(strings.Repeat("w ", tc.words))
		if got := ReadingTime(text); got != tc.want {
			t.Errorf("ReadingTime(%d words) = %d, want %d", tc.words, got, tc.want)
		}
	}
	if ReadingTime("") != 0 {
		t.Error("empty text should read in 0 minutes")
	}
}

func TestHeadline(t *testing.T) {
	if got := Headline("intro\n# My Heading\nmore", 50); got != "My Heading" {
		t.Errorf("Headline = %q", got)
	}
	if got := Headline("\n\nfirst line here", 5); got != "first" {
		t.Errorf("Headline = %q", got)
	}
	if got := Headline("", 50); got != "" {
		t.Errorf("Headline = %q", got)
	}
}
