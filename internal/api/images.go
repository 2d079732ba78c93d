package api

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/starford/folio/internal/images"
)

// ImageHandler accepts image uploads into object storage.
type ImageHandler struct {
	store images.Store
	now   func() time.Time
}

// NewImageHandler creates an upload handler.
func NewImageHandler(store images.Store, now func() time.Time) *ImageHandler {
	if now == nil {
		now = time.Now
	}
	return &ImageHandler{store: store, now: now}
}

// Upload handles POST /api/images (multipart/form-data, field "file",
// optional field "noteId").
//
//	@Summary		Upload an image; the returned key can be used as heroImage
//	@Tags			images
//	@Accept			mpfd
//	@Produce		json
//	@Param			file	formData	file	true	"Image file"
//	@Param			noteId	formData	string	false	"Owning note id"
//	@Success		201		{object}	ImageUploadResponse
//	@Failure		400		{object}	errResponse
//	@Failure		502		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/images [post]
func (h *ImageHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, images.MaxSize+(1<<20))
	if err := r.ParseMultipartForm(images.MaxSize); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("file too large or invalid multipart"))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("missing 'file' field in multipart form"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, images.MaxSize+1))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("failed to read file"))
		return
	}
	asset, err := images.NewAsset(data, header.Filename)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}

	key := images.Key(h.now(), r.FormValue("noteId"), asset.Ext)
	url, err := h.store.Upload(r.Context(), key, bytes.NewReader(asset.Data), int64(len(asset.Data)), asset.ContentType)
	if err != nil {
		if errors.Is(err, images.ErrDisabled) {
			writeJSON(w, http.StatusServiceUnavailable, errorBody(err.Error()))
			return
		}
		writeJSON(w, http.StatusBadGateway, errorBody("upload failed"))
		return
	}

	writeJSON(w, http.StatusCreated, ImageUploadResponse{Key: key, URL: url, Size: int64(len(asset.Data))})
}
