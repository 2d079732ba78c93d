package artifact_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/folio/internal/artifact"
	"github.com/starford/folio/internal/parser"
	"github.com/starford/folio/internal/testutil"
)

func TestKey(t *testing.T) {
	at := time.Date(2026, 3, 9, 23, 30, 0, 0, time.UTC)
	assert.Equal(t, "2026/03/hello-world", artifact.Key(at, "hello-world"))
	assert.Equal(t, "2026-03-09", artifact.DateString(at))

	// Keys are computed in UTC.
	east := time.FixedZone("east", 3*3600)
	assert.Equal(t, "2026/03/x", artifact.Key(time.Date(2026, 4, 1, 1, 0, 0, 0, east), "x"))
}

func TestWriteOverwriteRemove(t *testing.T) {
	ctx := context.Background()
	dir, fs := testutil.TestRoot(t)
	store := artifact.NewFS(fs)
	key := "2026/03/hello"

	fm := parser.PostFrontmatter{Title: "Hello", Date: "2026-03-09", ReadingTime: 1, Slug: "hello"}
	require.NoError(t, store.Write(ctx, key, fm, "first body"))

	ok, err := store.Exists(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)

	fm.Title = "Hello again"
	fm.HeroImage = "https://cdn.example.com/a.png"
	require.NoError(t, store.Write(ctx, key, fm, "second body"))

	raw, err := os.ReadFile(filepath.Join(dir, "2026", "03", "hello.md"))
	require.NoError(t, err)

	var got parser.PostFrontmatter
	body, err := parser.Decode(raw, &got)
	require.NoError(t, err)
	assert.Equal(t, "second body", body)
	assert.Equal(t, "Hello again", got.Title)
	assert.Equal(t, "https://cdn.example.com/a.png", got.HeroImage)
	assert.Equal(t, []string{}, got.Tags)
	assert.True(t, strings.Contains(string(raw), "readingTime: 1"))

	require.NoError(t, store.Remove(ctx, key))
	ok, err = store.Exists(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	// Removing again is tolerated.
	require.NoError(t, store.Remove(ctx, key))
}

func TestCancelledContext(t *testing.T) {
	_, fs := testutil.TestRoot(t)
	store := artifact.NewFS(fs)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, store.Write(ctx, "2026/01/x", parser.PostFrontmatter{}, ""), context.Canceled)
}
