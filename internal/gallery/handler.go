package gallery

import (
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/galeri/service/internal/auth"
	"github.com/galeri/service/internal/response"
)

// maxUploadMemory bounds how much of a multipart body is held in memory
// before spilling to temp files (the multer memory-storage equivalent).
const maxUploadMemory = 32 << 20

// Handler holds HTTP handlers for gallery endpoints.
type Handler struct {
	svc *Service
}

// NewHandler creates a new gallery Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

type renameRequest struct {
	Title string `json:"title" example:"Sunset over Anzali"`
}

// List godoc
//
//	@Summary		List gallery
//	@Description	Return the authenticated user's images sorted by display order.
//	@Tags			gallery
//	@Produce		json
//	@Success		200	{object}	response.Envelope{data=[]Image}
//	@Failure		401	{object}	response.Envelope
//	@Failure		500	{object}	response.Envelope
//	@Router			/gallery [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.IdentityFrom(r.Context())
	if !ok {
		response.Unauthorized(w, "not authenticated")
		return
	}

	images, err := h.svc.List(r.Context(), id.UserID)
	if err != nil {
		response.InternalError(w)
		return
	}
	response.OK(w, map[string]interface{}{"images": images})
}

// Upload godoc
//
//	@Summary		Upload images
//	@Description	Store a batch of images. Each file gets the next free display order; titles[i] names files[i]. The batch is all-or-nothing.
//	@Tags			gallery
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			images	formData	file	true	"Image files"
//	@Param			titles	formData	string	false	"Per-file titles"
//	@Success		201	{object}	response.Envelope{data=[]Image}
//	@Failure		400	{object}	response.Envelope
//	@Failure		401	{object}	response.Envelope
//	@Failure		500	{object}	response.Envelope
//	@Router			/upload-images [post]
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.IdentityFrom(r.Context())
	if !ok {
		response.Unauthorized(w, "not authenticated")
		return
	}

	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		response.BadRequest(w, "invalid multipart body")
		return
	}

	var headers []*multipart.FileHeader
	if r.MultipartForm != nil {
		headers = r.MultipartForm.File["images"]
	}
	if len(headers) == 0 {
		response.BadRequest(w, "no files uploaded")
		return
	}
	titles := r.MultipartForm.Value["titles"]

	files := make([]UploadFile, len(headers))
	for i, fh := range headers {
		files[i] = UploadFile{
			Name:        fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Size:        fh.Size,
			Open: func() (io.ReadCloser, error) {
				return fh.Open()
			},
		}
	}

	images, err := h.svc.UploadBatch(r.Context(), id.UserID, files, titles)
	if errors.Is(err, ErrNoFiles) {
		response.BadRequest(w, "no files uploaded")
		return
	}
	if err != nil {
		response.InternalError(w)
		return
	}
	response.Created(w, map[string]interface{}{"images": images})
}

// Rename godoc
//
//	@Summary		Rename image
//	@Description	Update an image's title. Titles longer than the bound are truncated.
//	@Tags			gallery
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string			true	"Image id"
//	@Param			request	body		renameRequest	true	"New title"
//	@Success		200	{object}	response.Envelope{data=Image}
//	@Failure		400	{object}	response.Envelope
//	@Failure		401	{object}	response.Envelope
//	@Failure		404	{object}	response.Envelope
//	@Failure		500	{object}	response.Envelope
//	@Router			/gallery/{id} [put]
func (h *Handler) Rename(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.IdentityFrom(r.Context())
	if !ok {
		response.Unauthorized(w, "not authenticated")
		return
	}

	var req renameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}

	img, err := h.svc.Rename(r.Context(), chi.URLParam(r, "id"), id.UserID, req.Title)
	if errors.Is(err, ErrNotFound) {
		response.NotFound(w, "image not found")
		return
	}
	if err != nil {
		response.InternalError(w)
		return
	}
	response.OK(w, img)
}

// Delete godoc
//
//	@Summary		Delete image
//	@Description	Remove an image record and its stored object.
//	@Tags			gallery
//	@Produce		json
//	@Param			id	path		string	true	"Image id"
//	@Success		200	{object}	response.Envelope
//	@Failure		401	{object}	response.Envelope
//	@Failure		404	{object}	response.Envelope
//	@Failure		500	{object}	response.Envelope
//	@Router			/gallery/{id} [delete]
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.IdentityFrom(r.Context())
	if !ok {
		response.Unauthorized(w, "not authenticated")
		return
	}

	err := h.svc.Delete(r.Context(), chi.URLParam(r, "id"), id.UserID)
	if errors.Is(err, ErrNotFound) {
		response.NotFound(w, "image not found")
		return
	}
	if err != nil {
		response.InternalError(w)
		return
	}
	response.OK(w, map[string]string{"message": "image deleted successfully"})
}

// Reorder godoc
//
//	@Summary		Reorder gallery
//	@Description	Apply client-supplied display orders. Entries for unknown or foreign ids are skipped.
//	@Tags			gallery
//	@Accept			json
//	@Produce		json
//	@Param			request	body		[]OrderUpdate	true	"New orders"
//	@Success		200	{object}	response.Envelope
//	@Failure		400	{object}	response.Envelope
//	@Failure		401	{object}	response.Envelope
//	@Failure		500	{object}	response.Envelope
//	@Router			/gallery/reorder [post]
func (h *Handler) Reorder(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.IdentityFrom(r.Context())
	if !ok {
		response.Unauthorized(w, "not authenticated")
		return
	}

	var updates []OrderUpdate
	if err := json.NewDecoder(r.Body).Decode(&updates); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}

	if err := h.svc.Reorder(r.Context(), id.UserID, updates); err != nil {
		response.InternalError(w)
		return
	}
	response.OK(w, map[string]string{"message": "images reordered successfully"})
}
