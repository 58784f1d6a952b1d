// Package handler contains the HTTP handlers. Each handler struct groups
// the routes of one area, holds its dependencies, and translates between
// HTTP and the service layer: it parses the request, builds a
// model.RequestContext, calls one service method and writes the result.
// Business rules stay in the services.
package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/videohub/internal/apperror"
	"github.com/sakif/videohub/internal/model"
	"github.com/sakif/videohub/internal/service"
	"github.com/sakif/videohub/internal/view"
)

// PageHandler renders the HTML pages.
type PageHandler struct {
	videos     *service.VideoService
	discussion *service.DiscussionService
	stories    *service.StoryService
	docs       *service.DocumentService
	view       *view.Renderer
	logger     *slog.Logger
}

func NewPageHandler(
	videos *service.VideoService,
	discussion *service.DiscussionService,
	stories *service.StoryService,
	docs *service.DocumentService,
	renderer *view.Renderer,
	logger *slog.Logger,
) *PageHandler {
	return &PageHandler{
		videos:     videos,
		discussion: discussion,
		stories:    stories,
		docs:       docs,
		view:       renderer,
		logger:     logger,
	}
}

type videoPage struct {
	ID        string
	Video     *model.Video
	YouTubeID string
	Locked    bool
	Message   string
	SignedIn  bool
	Comments  []view.PostItem
	Count     int
}

// workRow is a story or document with its delay formatted for display.
type workRow struct {
	ID           string
	Title        string
	OriginalName string
	Delay        string
	Status       model.WorkStatus
	PrintedAt    *time.Time
	Error        string
}

func (h *PageHandler) HandleHome(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/videos", http.StatusFound)
}

// HandleVideos answers GET /videos?q=&page=.
func (h *PageHandler) HandleVideos(w http.ResponseWriter, r *http.Request) {
	page, err := h.videos.ListPublic(r.Context(), service.ListVideosInput{
		Query: r.URL.Query().Get("q"),
		Page:  pageParam(r),
	}, requestContext(r))
	if err != nil {
		pageError(w, err)
		return
	}
	h.render(w, "videos", page)
}

// HandleVideo answers GET /videos/{id}. A protected video renders the
// password form instead of the player.
func (h *PageHandler) HandleVideo(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rc := requestContext(r)

	v, err := h.videos.Detail(r.Context(), id, r.URL.Query().Get("password"), rc)
	if err != nil {
		var appErr *apperror.AppError
		if errors.Is(err, apperror.ErrForbidden) && errors.As(err, &appErr) {
			h.render(w, "video", videoPage{ID: id, Locked: true, Message: appErr.Message})
			return
		}
		pageError(w, err)
		return
	}

	comments, count, err := h.discussion.TopComments(r.Context(), v.ID)
	if err != nil {
		pageError(w, err)
		return
	}

	h.render(w, "video", videoPage{
		ID:        v.ID,
		Video:     v,
		YouTubeID: service.YouTubeID(v.YouTubeLink),
		SignedIn:  rc.Authenticated(),
		Comments:  view.PostItems(view.KindComment, view.Items(comments)),
		Count:     count,
	})
}

func (h *PageHandler) HandleStories(w http.ResponseWriter, r *http.Request) {
	stories, err := h.stories.List(r.Context(), pageParam(r))
	if err != nil {
		pageError(w, err)
		return
	}
	rows := make([]workRow, len(stories))
	for i, s := range stories {
		rows[i] = workRow{
			ID:        s.ID,
			Title:     s.Title,
			Delay:     service.FormatDelay(s.PublishAfter),
			Status:    s.Status,
			PrintedAt: s.PrintedAt,
			Error:     s.Error,
		}
	}
	h.render(w, "stories", map[string]any{"Stories": rows})
}

func (h *PageHandler) HandleDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := h.docs.List(r.Context(), pageParam(r))
	if err != nil {
		pageError(w, err)
		return
	}
	rows := make([]workRow, len(docs))
	for i, d := range docs {
		rows[i] = workRow{
			ID:           d.ID,
			Title:        d.Title,
			OriginalName: d.OriginalName,
			Delay:        service.FormatDelay(d.ProcessAfter),
			Status:       d.Status,
		}
	}
	h.render(w, "documents", map[string]any{"Documents": rows})
}

func (h *PageHandler) HandleDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := h.docs.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		pageError(w, err)
		return
	}
	h.render(w, "document", map[string]any{"Document": doc})
}

func (h *PageHandler) render(w http.ResponseWriter, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.view.Page(w, name, data); err != nil {
		h.logger.Error("failed to render template",
			slog.String("page", name),
			slog.String("error", err.Error()),
		)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}
