package notestore_test

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/starford/folio/internal/notestore"
)

type watchEvent struct{ kind, id string }

type recorder struct {
	mu     sync.Mutex
	events []watchEvent
}

func (r *recorder) record(kind, id string) {
	r.mu.Lock()
	r.events = append(r.events, watchEvent{kind, id})
	r.mu.Unlock()
}

func (r *recorder) has(kind, id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.events {
		if e.kind == kind && e.id == id {
			return true
		}
	}
	return false
}

func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestWatchReportsChanges(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rec := &recorder{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	done := make(chan error, 1)
	go func() { done <- notestore.Watch(ctx, dir, logger, rec.record) }()

	// Give the watcher time to register the directory.
	time.Sleep(100 * time.Millisecond)

	p := filepath.Join(dir, "abc.md")
	if err := os.WriteFile(p, []byte("---\nid: abc\nstatus: idea\n---\n\nhi"), 0o644); err != nil {
		t.Fatal(err)
	}
	eventually(t, func() bool { return rec.has("updated", "abc") })

	if err := os.WriteFile(filepath.Join(dir, ".hidden.md"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Remove(p); err != nil {
		t.Fatal(err)
	}
	eventually(t, func() bool { return rec.has("deleted", "abc") })
	if rec.has("updated", ".hidden") {
		t.Error("dotfiles must be ignored")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Watch returned %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("watcher did not stop")
	}
}
