package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/videohub/internal/auth"
	"github.com/sakif/videohub/internal/model"
	"github.com/sakif/videohub/internal/service"
)

// AdminHandler serves the admin JSON API. Every route sits behind
// RequireAuth and RequireAdmin.
type AdminHandler struct {
	videos    *service.VideoService
	telemetry *service.TelemetryService
	now       func() time.Time
	logger    *slog.Logger
}

func NewAdminHandler(videos *service.VideoService, telemetry *service.TelemetryService, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{videos: videos, telemetry: telemetry, now: time.Now, logger: logger}
}

type videoListResponse struct {
	Success bool          `json:"success"`
	Videos  []model.Video `json:"videos"`
	Query   string        `json:"query"`
	Total   int           `json:"total"`
	Page    int           `json:"page"`
	Pages   int           `json:"pages"`
}

type videoResponse struct {
	Success     bool         `json:"success"`
	Video       *model.Video `json:"video"`
	ListViews   *int         `json:"list_views,omitempty"`
	DetailViews *int         `json:"detail_views,omitempty"`
	TotalViews  *int         `json:"total_views,omitempty"`
}

type searchListResponse struct {
	Success  bool                  `json:"success"`
	Searches []model.SearchHistory `json:"searches"`
	Summary  model.SearchSummary   `json:"summary"`
	Total    int                   `json:"total"`
	Page     int                   `json:"page"`
	Pages    int                   `json:"pages"`
}

func videoInput(r *http.Request) service.VideoInput {
	return service.VideoInput{
		Title:       r.FormValue("title"),
		Description: r.FormValue("description"),
		YouTubeLink: r.FormValue("youtube_link"),
		IsActive:    formBool(r, "is_active"),
		Password:    r.FormValue("password"),
		AdminNotes:  r.FormValue("admin_notes"),
	}
}

func (h *AdminHandler) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	stats, err := h.telemetry.Dashboard(r.Context(), h.now())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Success bool                 `json:"success"`
		Stats   model.DashboardStats `json:"stats"`
	}{true, stats})
}

// HandleListVideos answers GET /admin/videos?q=&start_date=&end_date=&page=.
func (h *AdminHandler) HandleListVideos(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := h.videos.AdminList(r.Context(), service.AdminVideoFilter{
		Query:     q.Get("q"),
		StartDate: q.Get("start_date"),
		EndDate:   q.Get("end_date"),
		Page:      pageParam(r),
	}, requestContext(r))
	if err != nil {
		writeError(w, err)
		return
	}
	videos := page.Videos
	if videos == nil {
		videos = []model.Video{}
	}
	writeJSON(w, http.StatusOK, videoListResponse{
		Success: true,
		Videos:  videos,
		Query:   page.Query,
		Total:   page.Total,
		Page:    page.Page,
		Pages:   page.Pages,
	})
}

func (h *AdminHandler) HandleCreateVideo(w http.ResponseWriter, r *http.Request) {
	adminID, _ := auth.UserIDFromContext(r.Context())
	v, err := h.videos.Create(r.Context(), adminID, videoInput(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, videoResponse{Success: true, Video: v})
}

func (h *AdminHandler) HandleVideoDetail(w http.ResponseWriter, r *http.Request) {
	stats, err := h.videos.AdminDetail(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	total := stats.TotalViews()
	writeJSON(w, http.StatusOK, videoResponse{
		Success:     true,
		Video:       stats.Video,
		ListViews:   &stats.ListViews,
		DetailViews: &stats.DetailViews,
		TotalViews:  &total,
	})
}

func (h *AdminHandler) HandleUpdateVideo(w http.ResponseWriter, r *http.Request) {
	v, err := h.videos.Update(r.Context(), chi.URLParam(r, "id"), videoInput(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, videoResponse{Success: true, Video: v})
}

func (h *AdminHandler) HandleDeleteVideo(w http.ResponseWriter, r *http.Request) {
	if err := h.videos.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Success bool `json:"success"`
	}{true})
}

// HandleBulk answers POST /admin/videos/bulk with action and repeated ids.
func (h *AdminHandler) HandleBulk(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, err)
		return
	}
	n, err := h.videos.Bulk(r.Context(), r.PostForm.Get("action"), r.PostForm["ids"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Success  bool  `json:"success"`
		Affected int64 `json:"affected"`
	}{true, n})
}

// HandleSearches answers GET /admin/searches?start_date=&end_date=&page=.
func (h *AdminHandler) HandleSearches(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := h.telemetry.SearchHistory(r.Context(), service.SearchHistoryInput{
		StartDate: q.Get("start_date"),
		EndDate:   q.Get("end_date"),
		Page:      pageParam(r),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	searches := page.Searches
	if searches == nil {
		searches = []model.SearchHistory{}
	}
	writeJSON(w, http.StatusOK, searchListResponse{
		Success:  true,
		Searches: searches,
		Summary:  page.Summary,
		Total:    page.Total,
		Page:     page.Page,
		Pages:    page.Pages,
	})
}
