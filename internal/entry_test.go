package internal

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/starford/folio/internal/models"
	"github.com/starford/folio/internal/noteservice"
	"github.com/starford/folio/internal/publish"
)

func testConfig(t *testing.T, driver string) *Config {
	t.Helper()
	dir := t.TempDir()
	cfg := NewDefaultConfig()
	cfg.Store.Driver = driver
	cfg.Store.SQLitePath = filepath.Join(dir, "folio.db")
	cfg.Store.NotesDir = filepath.Join(dir, "notes")
	cfg.Content.PostsDir = filepath.Join(dir, "posts")
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
	return cfg
}

func TestBuildComponents_PublishesThroughEitherStore(t *testing.T) {
	for _, driver := range []string{StoreDriverSQLite, StoreDriverFiles} {
		t.Run(driver, func(t *testing.T) {
			cfg := testConfig(t, driver)
			var events []string
			comps, err := buildComponents(cfg, slog.New(slog.NewJSONHandler(io.Discard, nil)), func(kind, id string) {
				events = append(events, kind)
			})
			if err != nil {
				t.Fatal(err)
			}
			defer comps.Close()

			ctx := context.Background()
			n, err := comps.service.Create(ctx, noteservice.CreateInput{
				Title: "Wired", Content: "body", Status: models.StatusReady,
			})
			if err != nil {
				t.Fatal(err)
			}
			res, err := comps.engine.Publish(ctx, n.ID)
			if err != nil {
				t.Fatal(err)
			}
			if _, err := os.Stat(filepath.Join(cfg.Content.PostsDir, filepath.FromSlash(res.Path))); err != nil {
				t.Errorf("artifact missing: %v", err)
			}
			if len(events) < 2 || events[0] != "created" || events[len(events)-1] != "published" {
				t.Errorf("events = %v", events)
			}
		})
	}
}

func TestPublishDue(t *testing.T) {
	cfg := testConfig(t, StoreDriverSQLite)
	logs := io.Discard

	// Seed a due note through a first set of components.
	comps, err := buildComponents(cfg, slog.New(slog.NewJSONHandler(logs, nil)), nil)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	n, err := comps.service.Create(ctx, noteservice.CreateInput{Title: "Due", Content: "c", Status: models.StatusReady})
	if err != nil {
		t.Fatal(err)
	}
	status := models.StatusScheduled
	at := time.Now().Add(-time.Minute)
	if _, err := comps.service.Update(ctx, n.ID, noteservice.UpdateInput{Status: &status, ScheduledAt: &at}); err != nil {
		t.Fatal(err)
	}
	comps.Close()

	var out bytes.Buffer
	report, err := PublishDue(ctx, &out, WithConfig(cfg), WithLogOutput(logs))
	if err != nil {
		t.Fatal(err)
	}
	if report.Processed != 1 || report.Published != 1 {
		t.Errorf("report = %+v", report)
	}

	var printed publish.SweepReport
	if err := json.Unmarshal(out.Bytes(), &printed); err != nil {
		t.Fatalf("printed report: %v", err)
	}
	if printed.Published != 1 || printed.Results[0].ID != n.ID {
		t.Errorf("printed = %+v", printed)
	}
}

func TestRunRequiresConfig(t *testing.T) {
	if err := Run(context.Background()); err == nil {
		t.Error("Run without config should fail")
	}
}
