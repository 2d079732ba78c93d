package urls

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtract_OrderAndDedup(t *testing.T) {
	text := "See https://a.com and https://a.com/page and https://news.ycombinator.com/item?id=42"
	got := Extract(text)
	require.Equal(t, []string{
		"https://a.com",
		"https://a.com/page",
		"https://news.ycombinator.com/item?id=42",
	}, got)

	assert.Equal(t, KindHNThread, Classify(got[2]))
	id, ok := HNItemID(got[2])
	assert.True(t, ok)
	assert.Equal(t, "42", id)
}

func TestExtract_Duplicates(t *testing.T) {
	got := Extract("https://x.io https://y.io https://x.io")
	assert.Equal(t, []string{"https://x.io", "https://y.io"}, got)
}

func TestExtract_StopsAtBoundaryChars(t *testing.T) {
	cases := map[string]string{
		"<https://a.com/x>":          "https://a.com/x",
		`href="https://a.com/q"`:     "https://a.com/q",
		"[link](https://a.com/y)":    "https://a.com/y)",
		"{https://a.com/z}":          "https://a.com/z",
		"see https://a.com/w|other":  "https://a.com/w",
		"`https://a.com/code`":       "https://a.com/code",
		"https://a.com/caret^x":      "https://a.com/caret",
		"[https://a.com/brackets]":   "https://a.com/brackets",
		"line\nhttps://a.com/nl\tend": "https://a.com/nl",
	}
	for in, want := range cases {
		got := Extract(in)
		if assert.Len(t, got, 1, in) {
			assert.Equal(t, want, got[0], in)
		}
	}
}

func TestExtract_StopsAtUnicodeSpace(t *testing.T) {
	for _, sep := range []string{"\u00a0", "\u2003", "\u2028", "\u3000", "\ufeff"} {
		got := Extract("https://a.com" + sep + "next")
		assert.Equal(t, []string{"https://a.com"}, got, "%q", sep)
	}
}

func TestExtract_Empty(t *testing.T) {
	got := Extract("no links, just ftp://nope.example")
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestClassify(t *testing.T) {
	cases := []struct {
		url  string
		want Kind
	}{
		{"https://news.ycombinator.com/item?id=1", KindHNThread},
		{"https://news.ycombinator.com/news", KindOther},
		{"https://www.reddit.com/r/golang/comments/abc/title/", KindRedditThread},
		{"https://old.reddit.com/r/golang/", KindOther},
		{"https://example.com/blog/post-title", KindArticle},
		{"https://example.com/post/1", KindArticle},
		{"https://example.com/article/2", KindArticle},
		{"https://someone.medium.com/story", KindArticle},
		{"https://writer.substack.com/p/thing", KindArticle},
		{"https://example.com/", KindOther},
		{"not a url", KindOther},
		{"http://[::1", KindOther},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Classify(tc.url), tc.url)
	}
}

func TestHNItemID(t *testing.T) {
	_, ok := HNItemID("https://example.com/item?id=42")
	assert.False(t, ok)

	_, ok = HNItemID("https://news.ycombinator.com/item")
	assert.False(t, ok)

	_, ok = HNItemID("%%%")
	assert.False(t, ok)
}

func TestClassifyAll(t *testing.T) {
	got := ClassifyAll("https://news.ycombinator.com/item?id=7 https://x.com/blog/a")
	require.Len(t, got, 2)
	assert.Equal(t, KindHNThread, got[0].Kind)
	assert.Equal(t, KindArticle, got[1].Kind)
	assert.Equal(t, "7", got[0].HNID)
	assert.Empty(t, got[1].HNID)
}
