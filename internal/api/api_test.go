package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/starford/folio/internal/apperr"
	"github.com/starford/folio/internal/artifact"
	"github.com/starford/folio/internal/images"
	"github.com/starford/folio/internal/models"
	"github.com/starford/folio/internal/noteservice"
	"github.com/starford/folio/internal/publish"
	"github.com/starford/folio/internal/testutil"
)

var testNow = time.Date(2026, 4, 10, 9, 0, 0, 0, time.UTC)

type memImages struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (m *memImages) Resolve(_ context.Context, ref string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[ref]
	return "https://cdn.test/" + ref, ok, nil
}

func (m *memImages) Upload(_ context.Context, key string, r io.Reader, _ int64, _ string) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	m.objects[key] = data
	m.mu.Unlock()
	return "https://cdn.test/" + key, nil
}

func (m *memImages) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.objects, key)
	m.mu.Unlock()
	return nil
}

type env struct {
	router  http.Handler
	svc     *noteservice.Service
	posts   string
	images  *memImages
	cronKey string
}

type envOpts struct {
	authToken string
	noImages  bool
	events    http.Handler
}

func newEnv(t *testing.T, o envOpts) *env {
	t.Helper()
	clock := testutil.NewClock(testNow)
	svc := noteservice.New(testutil.TestSQLite(t), noteservice.WithClock(clock.Now))
	posts, fs := testutil.TestRoot(t)
	engine := publish.NewEngine(svc, artifact.NewFS(fs))
	svc.SetRetractor(engine)
	t.Cleanup(engine.Close)

	e := &env{svc: svc, posts: posts, cronKey: "cron-secret"}
	cfg := RouterConfig{
		Service:     svc,
		Engine:      engine,
		AuthEnabled: o.authToken != "",
		Token:       o.authToken,
		CronSecret:  e.cronKey,
		Events:      o.events,
	}
	if !o.noImages {
		e.images = &memImages{objects: map[string][]byte{}}
		cfg.Images = e.images
	}
	e.router = NewRouter(cfg)
	return e
}

func (e *env) do(t *testing.T, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		rd = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rd)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decodeNote(t *testing.T, w *httptest.ResponseRecorder) models.Note {
	t.Helper()
	var n models.Note
	if err := json.Unmarshal(w.Body.Bytes(), &n); err != nil {
		t.Fatalf("decode note: %v (body %s)", err, w.Body.String())
	}
	return n
}

func (e *env) createNote(t *testing.T, body map[string]any) models.Note {
	t.Helper()
	w := e.do(t, http.MethodPost, "/notes", body)
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", w.Code, w.Body.String())
	}
	return decodeNote(t, w)
}

func (e *env) setStatus(t *testing.T, id, status string) models.Note {
	t.Helper()
	w := e.do(t, http.MethodPatch, "/notes/"+id, map[string]any{"status": status})
	if w.Code != http.StatusOK {
		t.Fatalf("set status %s = %d, body = %s", status, w.Code, w.Body.String())
	}
	return decodeNote(t, w)
}

func TestCreateAndGetNote(t *testing.T) {
	e := newEnv(t, envOpts{})
	n := e.createNote(t, map[string]any{"title": "Hello", "content": "see https://a.com", "tags": []string{"Go"}})
	if n.Status != models.StatusIdea || n.Slug != "" {
		t.Errorf("status = %s slug = %q", n.Status, n.Slug)
	}
	if len(n.URLs) != 1 || n.URLs[0] != "https://a.com" {
		t.Errorf("urls = %v", n.URLs)
	}

	w := e.do(t, http.MethodGet, "/notes/"+n.ID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}
	if etag := w.Header().Get("ETag"); etag != `"`+n.Revision+`"` {
		t.Errorf("ETag = %q, want revision %q", etag, n.Revision)
	}
	got := decodeNote(t, w)
	if got.Title != "Hello" || len(got.Tags) != 1 || got.Tags[0] != "go" {
		t.Errorf("got %+v", got)
	}
}

func TestCreateNoteValidation(t *testing.T) {
	e := newEnv(t, envOpts{})
	cases := []map[string]any{
		{"content": ""},
		{"content": "x", "status": "live"},
		{"content": "x", "status": "published"},
	}
	for _, body := range cases {
		if w := e.do(t, http.MethodPost, "/notes", body); w.Code != http.StatusBadRequest {
			t.Errorf("create %v = %d, want 400", body, w.Code)
		}
	}

	req := httptest.NewRequest(http.MethodPost, "/notes", strings.NewReader("{"))
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad json = %d, want 400", w.Code)
	}
}

func TestUpdateNote_IfMatch(t *testing.T) {
	e := newEnv(t, envOpts{})
	n := e.createNote(t, map[string]any{"content": "v1"})

	w := e.do(t, http.MethodPatch, "/notes/"+n.ID, map[string]any{"content": "v2"}, "If-Match", `"`+n.Revision+`"`)
	if w.Code != http.StatusOK {
		t.Fatalf("update = %d, body = %s", w.Code, w.Body.String())
	}

	w = e.do(t, http.MethodPatch, "/notes/"+n.ID, map[string]any{"content": "v3"}, "If-Match", n.Revision)
	if w.Code != http.StatusConflict {
		t.Errorf("stale update = %d, want 409", w.Code)
	}
}

func TestUpdateNote_Errors(t *testing.T) {
	e := newEnv(t, envOpts{})
	n := e.createNote(t, map[string]any{"content": "c"})

	cases := []struct {
		name string
		path string
		body map[string]any
		want int
	}{
		{"invalid transition", "/notes/" + n.ID, map[string]any{"status": "ready"}, http.StatusBadRequest},
		{"unknown status", "/notes/" + n.ID, map[string]any{"status": "live"}, http.StatusBadRequest},
		{"direct publish", "/notes/" + n.ID, map[string]any{"status": "published"}, http.StatusBadRequest},
		{"bad slug", "/notes/" + n.ID, map[string]any{"slug": "Bad Slug"}, http.StatusBadRequest},
		{"missing", "/notes/ghost", map[string]any{"title": "x"}, http.StatusNotFound},
	}
	for _, tc := range cases {
		if w := e.do(t, http.MethodPatch, tc.path, tc.body); w.Code != tc.want {
			t.Errorf("%s = %d, want %d (body %s)", tc.name, w.Code, tc.want, w.Body.String())
		}
	}
}

func TestPublishLifecycle(t *testing.T) {
	e := newEnv(t, envOpts{})
	n := e.createNote(t, map[string]any{"title": "Ship It", "content": "words here"})

	if w := e.do(t, http.MethodPost, "/notes/"+n.ID+"/publish", nil); w.Code != http.StatusBadRequest {
		t.Errorf("publish idea = %d, want 400", w.Code)
	}

	e.setStatus(t, n.ID, "draft")
	ready := e.setStatus(t, n.ID, "ready")
	if ready.Slug != "ship-it" {
		t.Errorf("slug = %q, want ship-it", ready.Slug)
	}

	w := e.do(t, http.MethodPost, "/notes/"+n.ID+"/publish", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("publish = %d, body = %s", w.Code, w.Body.String())
	}
	var res publish.Result
	_ = json.Unmarshal(w.Body.Bytes(), &res)
	if !res.Success || res.Path != "2026/04/ship-it.md" {
		t.Errorf("result = %+v", res)
	}
	if _, err := os.Stat(filepath.Join(e.posts, "2026", "04", "ship-it.md")); err != nil {
		t.Errorf("artifact missing: %v", err)
	}

	if w := e.do(t, http.MethodPost, "/notes/"+n.ID+"/publish", nil); w.Code != http.StatusBadRequest {
		t.Errorf("second publish = %d, want 400", w.Code)
	}
	if w := e.do(t, http.MethodDelete, "/notes/"+n.ID, nil); w.Code != http.StatusBadRequest {
		t.Errorf("delete published = %d, want 400", w.Code)
	}

	w = e.do(t, http.MethodGet, "/notes/by-slug/ship-it", nil)
	if w.Code != http.StatusOK || decodeNote(t, w).ID != n.ID {
		t.Errorf("by slug = %d", w.Code)
	}

	if w := e.do(t, http.MethodPost, "/notes/"+n.ID+"/unpublish", nil); w.Code != http.StatusOK {
		t.Fatalf("unpublish = %d, body = %s", w.Code, w.Body.String())
	}
	if w := e.do(t, http.MethodPost, "/notes/"+n.ID+"/unpublish", nil); w.Code != http.StatusBadRequest {
		t.Errorf("second unpublish = %d, want 400", w.Code)
	}
	if _, err := os.Stat(filepath.Join(e.posts, "2026", "04", "ship-it.md")); !os.IsNotExist(err) {
		t.Errorf("artifact still present: %v", err)
	}

	if w := e.do(t, http.MethodDelete, "/notes/"+n.ID, nil); w.Code != http.StatusNoContent {
		t.Errorf("delete archived = %d, want 204", w.Code)
	}
	if w := e.do(t, http.MethodDelete, "/notes/"+n.ID, nil); w.Code != http.StatusNotFound {
		t.Errorf("delete again = %d, want 404", w.Code)
	}
}

func TestListNotesFilters(t *testing.T) {
	e := newEnv(t, envOpts{})
	a := e.createNote(t, map[string]any{"title": "Alpha", "content": "about sqlite", "tags": []string{"db"}})
	e.createNote(t, map[string]any{"title": "Beta", "content": "about chi", "tags": []string{"web"}})
	e.setStatus(t, a.ID, "draft")

	list := func(query string) []*models.Note {
		t.Helper()
		w := e.do(t, http.MethodGet, "/notes"+query, nil)
		if w.Code != http.StatusOK {
			t.Fatalf("list %s = %d", query, w.Code)
		}
		var resp NoteListResponse
		_ = json.Unmarshal(w.Body.Bytes(), &resp)
		return resp.Notes
	}

	if got := list(""); len(got) != 2 {
		t.Errorf("all = %d, want 2", len(got))
	}
	if got := list("?status=draft"); len(got) != 1 || got[0].ID != a.ID {
		t.Errorf("status filter = %v", got)
	}
	if got := list("?tag=web,db"); len(got) != 2 {
		t.Errorf("tag filter = %d, want 2", len(got))
	}
	if got := list("?q=SQLITE"); len(got) != 1 || got[0].ID != a.ID {
		t.Errorf("search = %v", got)
	}
	if w := e.do(t, http.MethodGet, "/notes?status=live", nil); w.Code != http.StatusBadRequest {
		t.Errorf("bad status = %d, want 400", w.Code)
	}

	w := e.do(t, http.MethodGet, "/tags", nil)
	var tags TagsResponse
	_ = json.Unmarshal(w.Body.Bytes(), &tags)
	if strings.Join(tags.Tags, ",") != "db,web" {
		t.Errorf("tags = %v", tags.Tags)
	}
}

func TestNoteLinks(t *testing.T) {
	e := newEnv(t, envOpts{})
	n := e.createNote(t, map[string]any{"content": "https://news.ycombinator.com/item?id=42 and https://blog.example/post/x"})

	w := e.do(t, http.MethodGet, "/notes/"+n.ID+"/links", nil)
	var resp LinksResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Links) != 2 || resp.Links[0].Kind != "hn_thread" || resp.Links[0].HNID != "42" {
		t.Errorf("links = %+v", resp.Links)
	}
}

func TestGenerateWithoutGenerator(t *testing.T) {
	e := newEnv(t, envOpts{})
	n := e.createNote(t, map[string]any{"content": "c"})
	if w := e.do(t, http.MethodPost, "/notes/"+n.ID+"/generate", nil); w.Code != http.StatusBadGateway {
		t.Errorf("generate = %d, want 502", w.Code)
	}
}

func TestCronPublish(t *testing.T) {
	e := newEnv(t, envOpts{authToken: "admin"})
	auth := []string{"Authorization", "Bearer admin"}

	w := e.do(t, http.MethodPost, "/notes", map[string]any{"title": "Timed", "content": "c"}, auth...)
	n := decodeNote(t, w)
	for _, s := range []string{"draft", "ready"} {
		e.do(t, http.MethodPatch, "/notes/"+n.ID, map[string]any{"status": s}, auth...)
	}
	at := testNow.Add(-time.Minute)
	w = e.do(t, http.MethodPatch, "/notes/"+n.ID, map[string]any{"status": "scheduled", "scheduledAt": at}, auth...)
	if w.Code != http.StatusOK {
		t.Fatalf("schedule = %d, body = %s", w.Code, w.Body.String())
	}

	if w := e.do(t, http.MethodGet, "/cron/publish", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("cron no secret = %d, want 401", w.Code)
	}
	if w := e.do(t, http.MethodGet, "/cron/publish", nil, auth...); w.Code != http.StatusUnauthorized {
		t.Errorf("cron with admin token = %d, want 401", w.Code)
	}

	w = e.do(t, http.MethodGet, "/cron/publish", nil, "Authorization", "Bearer "+e.cronKey)
	if w.Code != http.StatusOK {
		t.Fatalf("cron = %d, body = %s", w.Code, w.Body.String())
	}
	var report publish.SweepReport
	_ = json.Unmarshal(w.Body.Bytes(), &report)
	if report.Processed != 1 || report.Published != 1 || !report.Results[0].Success {
		t.Errorf("report = %+v", report)
	}
}

// Auth middleware tests.

func TestAuthMiddleware_RequiresToken(t *testing.T) {
	e := newEnv(t, envOpts{authToken: "secret123"})
	if w := e.do(t, http.MethodGet, "/notes", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("unauthed = %d, want 401", w.Code)
	}
	if w := e.do(t, http.MethodGet, "/notes", nil, "Authorization", "Bearer wrong"); w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token = %d, want 401", w.Code)
	}
	if w := e.do(t, http.MethodGet, "/notes", nil, "Authorization", "Bearer secret123"); w.Code != http.StatusOK {
		t.Errorf("valid token = %d, want 200", w.Code)
	}
}

func TestAuthMiddleware_Disabled(t *testing.T) {
	e := newEnv(t, envOpts{})
	if w := e.do(t, http.MethodGet, "/notes", nil); w.Code != http.StatusOK {
		t.Errorf("no auth = %d, want 200", w.Code)
	}
}

// SSE endpoint auth tests.

func blockingEvents() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		<-r.Context().Done()
	})
}

func TestSSEEvents_AuthProtected(t *testing.T) {
	e := newEnv(t, envOpts{authToken: "secret", events: blockingEvents()})
	if w := e.do(t, http.MethodGet, "/events", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("SSE no auth = %d, want 401", w.Code)
	}
}

func TestSSEEvents_ValidToken(t *testing.T) {
	e := newEnv(t, envOpts{authToken: "tok", events: blockingEvents()})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	req.Header.Set("Authorization", "Bearer tok")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("SSE with valid token = %d, want 200", w.Code)
	}
}

// Image upload tests.

var pngBytes = append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 32)...)

func uploadImage(t *testing.T, router http.Handler, filename string, content []byte, fields map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if filename != "" {
		part, err := mw.CreateFormFile("file", filename)
		if err != nil {
			t.Fatal(err)
		}
		_, _ = io.Copy(part, bytes.NewReader(content))
	}
	for k, v := range fields {
		_ = mw.WriteField(k, v)
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/images", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestUploadImage(t *testing.T) {
	e := newEnv(t, envOpts{})
	w := uploadImage(t, e.router, "hero.png", pngBytes, map[string]string{"noteId": "n1"})
	if w.Code != http.StatusCreated {
		t.Fatalf("upload = %d, body = %s", w.Code, w.Body.String())
	}
	var resp ImageUploadResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if !strings.HasPrefix(resp.Key, "images/2026/04/n1/") || !strings.HasSuffix(resp.Key, ".png") {
		t.Errorf("key = %q", resp.Key)
	}
	if resp.URL != "https://cdn.test/"+resp.Key {
		t.Errorf("url = %q", resp.URL)
	}
	if !bytes.Equal(e.images.objects[resp.Key], pngBytes) {
		t.Error("stored bytes mismatch")
	}
}

func TestUploadImage_Rejects(t *testing.T) {
	e := newEnv(t, envOpts{})
	if w := uploadImage(t, e.router, "fake.png", []byte("not a png"), nil); w.Code != http.StatusBadRequest {
		t.Errorf("bad content = %d, want 400", w.Code)
	}
	if w := uploadImage(t, e.router, "", nil, map[string]string{"wrong": "data"}); w.Code != http.StatusBadRequest {
		t.Errorf("missing field = %d, want 400", w.Code)
	}

	disabled := newEnv(t, envOpts{noImages: true})
	if w := uploadImage(t, disabled.router, "hero.png", pngBytes, nil); w.Code != http.StatusServiceUnavailable {
		t.Errorf("no storage = %d, want 503", w.Code)
	}
}

func TestUploadImage_AuthProtected(t *testing.T) {
	e := newEnv(t, envOpts{authToken: "secret"})
	if w := uploadImage(t, e.router, "hero.png", pngBytes, nil); w.Code != http.StatusUnauthorized {
		t.Errorf("upload no auth = %d, want 401", w.Code)
	}
}

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("get: %w", apperr.ErrNotFound), http.StatusNotFound},
		{apperr.ErrConflict, http.StatusConflict},
		{apperr.ErrMissingSlug, http.StatusBadRequest},
		{apperr.ErrNotPublished, http.StatusBadRequest},
		{fmt.Errorf("%w: model down", apperr.ErrUpstream), http.StatusBadGateway},
		{images.ErrDisabled, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := statusFor(tc.err); got != tc.want {
			t.Errorf("statusFor(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}
