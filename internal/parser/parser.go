// Package parser encodes and decodes Markdown documents with YAML frontmatter
// and derives text metrics from note bodies.
package parser

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
)

const delim = "---"

// wordsPerMinute is the reading speed used for reading-time estimates.
const wordsPerMinute = 200

// ErrNoFrontmatter is returned by Decode when the document has no
// well-formed frontmatter block.
var ErrNoFrontmatter = errors.New("parser: no frontmatter")

// Split separates the YAML frontmatter block from the Markdown body.
// ok is false when the document does not open with a closed --- block, in
// which case body is the whole document.
func Split(data []byte) (block []byte, body string, ok bool) {
	if !bytes.HasPrefix(data, []byte(delim+"\n")) {
		return nil, string(data), false
	}
	rest := data[len(delim)+1:]

	var after []byte
	switch {
	case bytes.HasPrefix(rest, []byte(delim)):
		// Empty frontmatter block.
		block, after = nil, rest[len(delim):]
	default:
		idx := bytes.Index(rest, []byte("\n"+delim))
		if idx < 0 {
			return nil, string(data), false
		}
		block, after = rest[:idx+1], rest[idx+1+len(delim):]
	}

	// Drop the line ending of the closing delimiter and one separating blank line.
	after = trimNewline(after)
	after = trimNewline(after)
	return block, string(after), true
}

// Decode unmarshals the frontmatter of data into fm and returns the body.
func Decode(data []byte, fm any) (string, error) {
	block, body, ok := Split(data)
	if !ok {
		return body, ErrNoFrontmatter
	}
	if err := yaml.Unmarshal(block, fm); err != nil {
		return "", fmt.Errorf("parser: decode frontmatter: %w", err)
	}
	return body, nil
}

// Encode renders fm as a YAML frontmatter block followed by body.
func Encode(fm any, body string) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(delim + "\n")

	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(fm); err != nil {
		return nil, fmt.Errorf("parser: encode frontmatter: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("parser: encode frontmatter: %w", err)
	}

	buf.WriteString(delim + "\n\n")
	buf.WriteString(body)
	return buf.Bytes(), nil
}

// WordCount returns the number of whitespace-separated words in text.
func WordCount(text string) int {
	return len(strings.Fields(text))
}

// ReadingTime estimates minutes to read text, rounded up.
func ReadingTime(text string) int {
	words := WordCount(text)
	return (words + wordsPerMinute - 1) / wordsPerMinute
}

// Headline returns the first H1 heading of body, or failing that its first
// non-empty line truncated to max runes.
func Headline(body string, max int) string {
	first := ""
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "# ") {
			return strings.TrimSpace(trimmed[2:])
		}
		if first == "" && trimmed != "" {
			first = trimmed
		}
	}
	if utf8.RuneCountInString(first) > max {
		first = string([]rune(first)[:max])
	}
	return first
}

func trimNewline(b []byte) []byte {
	switch {
	case bytes.HasPrefix(b, []byte("\r\n")):
		return b[2:]
	case bytes.HasPrefix(b, []byte("\n")):
		return b[1:]
	}
	return b
}
