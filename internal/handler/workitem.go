package handler

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/videohub/internal/apperror"
	"github.com/sakif/videohub/internal/model"
	"github.com/sakif/videohub/internal/service"
)

// multipartMemory is how much of an upload ParseMultipartForm keeps in
// memory before spilling to a temp file.
const multipartMemory = 1 << 20

// WorkHandler accepts stories and PDF uploads. Both persist, schedule a
// background task and return straight away.
type WorkHandler struct {
	stories   *service.StoryService
	docs      *service.DocumentService
	maxUpload int64
	logger    *slog.Logger
}

func NewWorkHandler(stories *service.StoryService, docs *service.DocumentService, maxUpload int64, logger *slog.Logger) *WorkHandler {
	return &WorkHandler{stories: stories, docs: docs, maxUpload: maxUpload, logger: logger}
}

type workAccepted struct {
	Success bool             `json:"success"`
	ID      string           `json:"id"`
	Status  model.WorkStatus `json:"status"`
}

// HandleCreateStory answers POST /stories.
func (h *WorkHandler) HandleCreateStory(w http.ResponseWriter, r *http.Request) {
	delay, err := formSeconds(r, "publish_after")
	if err != nil {
		writeError(w, err)
		return
	}

	story, err := h.stories.Create(r.Context(), service.StoryInput{
		Title:        r.FormValue("title"),
		Content:      r.FormValue("content"),
		PublishAfter: delay,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, workAccepted{Success: true, ID: story.ID, Status: story.Status})
}

// HandleUploadDocument answers POST /documents with a multipart form
// carrying title, process_after and file.
func (h *WorkHandler) HandleUploadDocument(w http.ResponseWriter, r *http.Request) {
	// The body cap leaves room for the other form fields; the service
	// enforces the exact file limit.
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload+multipartMemory)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, apperror.ValidationFailed("file",
				fmt.Sprintf("File size must be under %dMB.", h.maxUpload/(1024*1024))))
			return
		}
		writeError(w, apperror.ValidationFailed("file", "Upload a PDF file."))
		return
	}
	defer r.MultipartForm.RemoveAll()

	delay, err := formSeconds(r, "process_after")
	if err != nil {
		writeError(w, err)
		return
	}

	in := service.UploadInput{
		Title:        r.FormValue("title"),
		ProcessAfter: delay,
	}
	file, header, err := r.FormFile("file")
	switch {
	case err == nil:
		defer file.Close()
		in.File = io.Reader(file)
		in.Filename = header.Filename
		in.Size = header.Size
	case !errors.Is(err, http.ErrMissingFile):
		writeError(w, err)
		return
	}

	doc, err := h.docs.Upload(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, workAccepted{Success: true, ID: doc.ID, Status: doc.Status})
}

// HandleDocumentStatus answers GET /documents/{id}/status, which the list
// page polls.
func (h *WorkHandler) HandleDocumentStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.docs.Status(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "Document not found"})
			return
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}
