// Package urls extracts and classifies links referenced from note content.
package urls

import (
	"net/url"
	"regexp"
	"strings"
)

// Kind classifies a referenced URL.
type Kind string

const (
	KindHNThread     Kind = "hn_thread"
	KindRedditThread Kind = "reddit_thread"
	KindArticle      Kind = "article"
	KindOther        Kind = "other"
)

const hnHost = "news.ycombinator.com"

var (
	// Unicode separators and BOM end a URL like ASCII whitespace does.
	urlRe = regexp.MustCompile("https?://[^\\s\\p{Z}\\x{FEFF}<>\"{}|\\\\^`\\[\\]]+")

	articlePaths = []string{"/blog/", "/post/", "/article/"}
	articleHosts = []string{"medium.com", "substack.com"}
)

// Extract returns the HTTP(S) URLs found in text in first-seen order,
// without exact duplicates. It never returns nil.
func Extract(text string) []string {
	matches := urlRe.FindAllString(text, -1)
	seen := make(map[string]struct{}, len(matches))
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		out = append(out, m)
	}
	return out
}

// Classify returns the kind of raw. Malformed URLs are KindOther.
func Classify(raw string) Kind {
	u, ok := parse(raw)
	if !ok {
		return KindOther
	}
	host := strings.ToLower(u.Hostname())
	path := u.Path

	switch {
	case host == hnHost && strings.Contains(path, "item"):
		return KindHNThread
	case strings.Contains(host, "reddit.com") && strings.Contains(path, "/comments/"):
		return KindRedditThread
	}
	for _, p := range articlePaths {
		if strings.Contains(path, p) {
			return KindArticle
		}
	}
	for _, h := range articleHosts {
		if strings.Contains(host, h) {
			return KindArticle
		}
	}
	return KindOther
}

// HNItemID returns the id query parameter of a Hacker News URL.
func HNItemID(raw string) (string, bool) {
	u, ok := parse(raw)
	if !ok || strings.ToLower(u.Hostname()) != hnHost {
		return "", false
	}
	id := u.Query().Get("id")
	return id, id != ""
}

// Classified pairs a URL with its kind.
type Classified struct {
	URL  string `json:"url"`
	Kind Kind   `json:"kind"`
	// HNID is the Hacker News item id, if any.
	HNID string `json:"hnId,omitempty"`
}

// ClassifyAll extracts and classifies every URL in text.
func ClassifyAll(text string) []Classified {
	found := Extract(text)
	out := make([]Classified, len(found))
	for i, u := range found {
		out[i] = Classified{URL: u, Kind: Classify(u)}
		if id, ok := HNItemID(u); ok {
			out[i].HNID = id
		}
	}
	return out
}

func parse(raw string) (*url.URL, bool) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, false
	}
	return u, true
}
