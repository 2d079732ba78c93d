package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/folio/internal/apperr"
	"github.com/starford/folio/internal/checksum"
	"github.com/starford/folio/internal/models"
	"github.com/starford/folio/internal/noteservice"
	"github.com/starford/folio/internal/publish"
	"github.com/starford/folio/internal/urls"
)

const maxBodyBytes = 10 << 20

// Handler holds note and publishing route handlers.
type Handler struct {
	svc         *noteservice.Service
	engine      *publish.Engine
	concurrency int
}

// NewHandler creates a new Handler.
func NewHandler(svc *noteservice.Service, engine *publish.Engine, sweepConcurrency int) *Handler {
	return &Handler{svc: svc, engine: engine, concurrency: sweepConcurrency}
}

// parseStatus rejects unknown status strings before they reach the service.
func parseStatus(raw string) (models.Status, error) {
	s, ok := models.ParseStatus(raw)
	if !ok {
		return "", fmt.Errorf("%w: unknown status %q", apperr.ErrValidation, raw)
	}
	return s, nil
}

// ifMatch returns the revision a conditional request expects, if any.
func ifMatch(r *http.Request) string {
	return checksum.FromETag(r.Header.Get("If-Match"))
}

func writeNote(w http.ResponseWriter, status int, n *models.Note) {
	w.Header().Set("ETag", checksum.ETag(n.Revision))
	writeJSON(w, status, n)
}

// ListNotes handles GET /api/notes.
//
//	@Summary		List notes, most recently updated first
//	@Tags			notes
//	@Produce		json
//	@Param			status	query		string	false	"Filter by status"
//	@Param			tag		query		[]string	false	"Filter by tags (any match)"
//	@Param			q		query		string	false	"Case-insensitive search in title and content"
//	@Param			limit	query		int		false	"Page size"
//	@Param			offset	query		int		false	"Page offset"
//	@Success		200		{object}	NoteListResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes [get]
func (h *Handler) ListNotes(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var f models.NoteFilter
	if raw := q.Get("status"); raw != "" {
		s, err := parseStatus(raw)
		if err != nil {
			writeError(w, r, "list notes", err)
			return
		}
		f.Status = &s
	}
	for _, t := range q["tag"] {
		f.Tags = append(f.Tags, strings.Split(t, ",")...)
	}
	f.Search = q.Get("q")
	f.Limit, _ = strconv.Atoi(q.Get("limit"))
	f.Offset, _ = strconv.Atoi(q.Get("offset"))

	notes, err := h.svc.List(r.Context(), f)
	if err != nil {
		writeError(w, r, "list notes", err)
		return
	}
	writeJSON(w, http.StatusOK, NoteListResponse{Notes: notes, Limit: f.Limit, Offset: f.Offset})
}

// GetNote handles GET /api/notes/{id}.
//
//	@Summary		Get a note by id
//	@Tags			notes
//	@Produce		json
//	@Param			id	path		string	true	"Note id"
//	@Success		200	{object}	models.Note
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id} [get]
func (h *Handler) GetNote(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, "get note", err)
		return
	}
	writeNote(w, http.StatusOK, n)
}

// GetNoteBySlug handles GET /api/notes/by-slug/{slug}.
func (h *Handler) GetNoteBySlug(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.GetBySlug(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		writeError(w, r, "get note by slug", err)
		return
	}
	writeNote(w, http.StatusOK, n)
}

// CreateNote handles POST /api/notes.
//
//	@Summary		Create a note
//	@Tags			notes
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateNoteRequest	true	"Note to create"
//	@Success		201		{object}	models.Note
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes [post]
func (h *Handler) CreateNote(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req CreateNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	in := noteservice.CreateInput{Title: req.Title, Content: req.Content, Tags: req.Tags}
	if req.Status != "" {
		s, err := parseStatus(req.Status)
		if err != nil {
			writeError(w, r, "create note", err)
			return
		}
		in.Status = s
	}
	n, err := h.svc.Create(r.Context(), in)
	if err != nil {
		writeError(w, r, "create note", err)
		return
	}
	writeNote(w, http.StatusCreated, n)
}

// UpdateNote handles PATCH /api/notes/{id}.
//
//	@Summary		Partially update a note with optimistic concurrency
//	@Tags			notes
//	@Accept			json
//	@Produce		json
//	@Param			id			path		string				true	"Note id"
//	@Param			If-Match	header		string				false	"Revision the update is based on"
//	@Param			body		body		UpdateNoteRequest	true	"Fields to change"
//	@Success		200			{object}	models.Note
//	@Failure		400			{object}	errResponse
//	@Failure		404			{object}	errResponse
//	@Failure		409			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id} [patch]
func (h *Handler) UpdateNote(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req UpdateNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	in := noteservice.UpdateInput{
		Title:            req.Title,
		Content:          req.Content,
		Tags:             req.Tags,
		Slug:             req.Slug,
		HeroImage:        req.HeroImage,
		ScheduledAt:      req.ScheduledAt,
		ClearScheduledAt: req.ClearScheduledAt,
		RegenerateSlug:   req.RegenerateSlug,
		ExpectedRevision: ifMatch(r),
	}
	if req.Status != nil {
		s, err := parseStatus(*req.Status)
		if err != nil {
			writeError(w, r, "update note", err)
			return
		}
		in.Status = &s
	}
	n, err := h.svc.Update(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		writeError(w, r, "update note", err)
		return
	}
	writeNote(w, http.StatusOK, n)
}

// DeleteNote handles DELETE /api/notes/{id}.
//
//	@Summary		Delete an unpublished note
//	@Tags			notes
//	@Param			id			path	string	true	"Note id"
//	@Param			If-Match	header	string	false	"Revision the delete is based on"
//	@Success		204
//	@Failure		400	{object}	errResponse
//	@Failure		404	{object}	errResponse
//	@Failure		409	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id} [delete]
func (h *Handler) DeleteNote(w http.ResponseWriter, r *http.Request) {
	ok, err := h.svc.Delete(r.Context(), chi.URLParam(r, "id"), ifMatch(r))
	if err != nil {
		writeError(w, r, "delete note", err)
		return
	}
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// NoteLinks handles GET /api/notes/{id}/links.
func (h *Handler) NoteLinks(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, "note links", err)
		return
	}
	writeJSON(w, http.StatusOK, LinksResponse{Links: urls.ClassifyAll(n.Content)})
}

// Tags handles GET /api/tags.
func (h *Handler) Tags(w http.ResponseWriter, r *http.Request) {
	tags, err := h.svc.AllTags(r.Context())
	if err != nil {
		writeError(w, r, "list tags", err)
		return
	}
	writeJSON(w, http.StatusOK, TagsResponse{Tags: tags})
}

// Publish handles POST /api/notes/{id}/publish.
//
//	@Summary		Publish a ready or scheduled note
//	@Tags			publishing
//	@Produce		json
//	@Param			id	path		string	true	"Note id"
//	@Success		200	{object}	publish.Result
//	@Failure		400	{object}	errResponse
//	@Failure		404	{object}	errResponse
//	@Failure		502	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id}/publish [post]
func (h *Handler) Publish(w http.ResponseWriter, r *http.Request) {
	res, err := h.engine.Publish(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, "publish", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Unpublish handles POST /api/notes/{id}/unpublish.
func (h *Handler) Unpublish(w http.ResponseWriter, r *http.Request) {
	res, err := h.engine.Unpublish(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, "unpublish", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// GenerateDraft handles POST /api/notes/{id}/generate.
//
//	@Summary		Replace content with an AI draft and move the note to draft
//	@Tags			assist
//	@Produce		json
//	@Param			id			path		string	true	"Note id"
//	@Param			If-Match	header		string	false	"Revision the draft is based on"
//	@Success		200			{object}	models.Note
//	@Failure		400			{object}	errResponse
//	@Failure		502			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id}/generate [post]
func (h *Handler) GenerateDraft(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.GenerateDraft(r.Context(), chi.URLParam(r, "id"), ifMatch(r))
	if err != nil {
		writeError(w, r, "generate draft", err)
		return
	}
	writeNote(w, http.StatusOK, n)
}

// SuggestTitles handles POST /api/notes/{id}/titles?count=N.
func (h *Handler) SuggestTitles(w http.ResponseWriter, r *http.Request) {
	count, _ := strconv.Atoi(r.URL.Query().Get("count"))
	titles, err := h.svc.SuggestTitles(r.Context(), chi.URLParam(r, "id"), count)
	if err != nil {
		writeError(w, r, "suggest titles", err)
		return
	}
	writeJSON(w, http.StatusOK, TitlesResponse{Titles: titles})
}

// CronPublish handles GET /api/cron/publish: one scheduled-publish sweep.
//
//	@Summary		Publish every scheduled note that is due
//	@Tags			publishing
//	@Produce		json
//	@Success		200	{object}	publish.SweepReport
//	@Failure		401	{object}	errResponse
//	@Security		CronSecret
//	@Router			/cron/publish [get]
func (h *Handler) CronPublish(w http.ResponseWriter, r *http.Request) {
	report, err := h.engine.Sweep(r.Context(), h.svc.Now(), h.concurrency)
	if err != nil {
		writeError(w, r, "scheduled publish", err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}
