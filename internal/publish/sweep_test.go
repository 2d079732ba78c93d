package publish_test

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/folio/internal/models"
	"github.com/starford/folio/internal/noteservice"
)

func (f *fixture) schedule(t *testing.T, title string, at time.Time) *models.Note {
	t.Helper()
	n := f.ready(t, title, "body")
	s := models.StatusScheduled
	n, err := f.svc.Update(context.Background(), n.ID, noteservice.UpdateInput{Status: &s, ScheduledAt: &at})
	require.NoError(t, err)
	return n
}

func TestSweepPublishesDueNotes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := f.schedule(t, "Due A", start.Add(-time.Hour))
	b := f.schedule(t, "Due B", start)
	later := f.schedule(t, "Later", start.Add(time.Hour))

	// A scheduled note without a slug fails on its own.
	_, err := f.store.Insert(ctx, &models.Note{
		ID: "broken", Title: "Broken", Content: "c", Status: models.StatusScheduled,
		ScheduledAt: ptr(start.Add(-2 * time.Hour)), CreatedAt: start, UpdatedAt: start,
	})
	require.NoError(t, err)

	report, err := f.engine.Sweep(ctx, start, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Processed)
	assert.Equal(t, 2, report.Published)
	assert.Equal(t, 1, report.Failed)

	byID := map[string]bool{}
	for _, r := range report.Results {
		byID[r.ID] = r.Success
		if r.ID == "broken" {
			assert.Contains(t, r.Error, "missing slug")
			assert.Equal(t, "Broken", r.Title)
		}
	}
	assert.Equal(t, map[string]bool{a.ID: true, b.ID: true, "broken": false}, byID)

	got, err := f.svc.Get(ctx, later.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusScheduled, got.Status)

	published, err := f.svc.List(ctx, models.NoteFilter{Status: ptr(models.StatusPublished)})
	require.NoError(t, err)
	ids := []string{}
	for _, n := range published {
		ids = append(ids, n.ID)
	}
	want := []string{a.ID, b.ID}
	sort.Strings(ids)
	sort.Strings(want)
	assert.Equal(t, want, ids)
}

func TestSweepNothingDue(t *testing.T) {
	f := newFixture(t)
	report, err := f.engine.Sweep(context.Background(), start, 0)
	require.NoError(t, err)
	assert.Zero(t, report.Processed)
	assert.Empty(t, report.Results)
}

func TestRunSchedulerStopsOnCancel(t *testing.T) {
	f := newFixture(t)
	f.schedule(t, "Ticked", start.Add(-time.Minute))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.engine.RunScheduler(ctx, 20*time.Millisecond, 1) }()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		notes, err := f.svc.List(context.Background(), models.NoteFilter{Status: ptr(models.StatusPublished)})
		require.NoError(t, err)
		if len(notes) == 1 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	cancel()
	require.NoError(t, <-done)

	notes, err := f.svc.List(context.Background(), models.NoteFilter{Status: ptr(models.StatusPublished)})
	require.NoError(t, err)
	assert.Len(t, notes, 1)
}

func ptr[T any](v T) *T { return &v }
