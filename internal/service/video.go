package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/sakif/videohub/internal/apperror"
	"github.com/sakif/videohub/internal/auth"
	"github.com/sakif/videohub/internal/model"
	"github.com/sakif/videohub/internal/repository"
	"github.com/sakif/videohub/internal/validation"
)

const (
	PublicPageSize = 18
	AdminPageSize  = 10

	dateLayout = "2006-01-02"
)

// Bulk actions accepted by VideoService.Bulk.
const (
	BulkActivate   = "activate"
	BulkDeactivate = "deactivate"
	BulkDelete     = "delete"
)

// VideoPage is one page of a video listing.
type VideoPage struct {
	Videos []model.Video
	Query  string
	Total  int
	Page   int
	Pages  int
}

// VideoService serves the public catalogue and the admin screens. Listing
// and viewing also write telemetry; a telemetry failure is logged and does
// not fail the request.
type VideoService struct {
	videos    repository.VideoRepository
	telemetry repository.TelemetryRepository
	passwords *auth.PasswordService
	logger    *slog.Logger
}

func NewVideoService(
	videos repository.VideoRepository,
	telemetry repository.TelemetryRepository,
	passwords *auth.PasswordService,
	logger *slog.Logger,
) *VideoService {
	return &VideoService{
		videos:    videos,
		telemetry: telemetry,
		passwords: passwords,
		logger:    logger,
	}
}

type ListVideosInput struct {
	Query string
	Page  int
}

// ListPublic lists active videos. A search is recorded with its total
// match count and the ranked ids of the returned page; a plain listing
// records a list view of its first video.
func (s *VideoService) ListPublic(ctx context.Context, in ListVideosInput, rc model.RequestContext) (*VideoPage, error) {
	query := strings.TrimSpace(in.Query)
	page := max(in.Page, 1)

	videos, total, err := s.videos.List(ctx, repository.VideoFilter{
		Query:       query,
		ActiveOnly:  true,
		ListOptions: repository.Page(page, PublicPageSize),
	})
	if err != nil {
		return nil, fmt.Errorf("listing videos: %w", err)
	}

	switch {
	case query != "":
		s.recordSearch(ctx, rc, query, total, (page-1)*PublicPageSize, videos)
	case len(videos) > 0:
		s.recordView(ctx, rc, videos[0].ID, model.PageList)
	}

	return newVideoPage(videos, query, total, page, PublicPageSize), nil
}

// Detail returns an active video. Password protected videos need the
// matching password unless the caller is an admin.
func (s *VideoService) Detail(ctx context.Context, id, password string, rc model.RequestContext) (*model.Video, error) {
	v, err := s.videos.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("loading video: %w", err)
	}
	if !v.IsActive {
		return nil, apperror.NotFound("video", id)
	}

	if v.HasPassword() && !rc.IsAdmin {
		if password == "" {
			return nil, apperror.Forbidden("This video is password protected.")
		}
		if err := s.passwords.Verify(v.PasswordHash, password); err != nil {
			if errors.Is(err, auth.ErrPasswordMismatch) {
				return nil, apperror.Forbidden("Incorrect password.")
			}
			return nil, fmt.Errorf("checking video password: %w", err)
		}
	}

	if !rc.IsAdmin {
		s.recordView(ctx, rc, v.ID, model.PageDetail)
	}
	return v, nil
}

// YouTubeID extracts the video id from a watch?v= or youtu.be/ link. It
// returns "" for anything else.
func YouTubeID(link string) string {
	switch {
	case strings.Contains(link, "youtube.com/watch"):
		u, err := url.Parse(link)
		if err != nil {
			return ""
		}
		return u.Query().Get("v")
	case strings.Contains(link, "youtu.be/"):
		id := link[strings.Index(link, "youtu.be/")+len("youtu.be/"):]
		if i := strings.IndexAny(id, "?&#/"); i >= 0 {
			id = id[:i]
		}
		return id
	}
	return ""
}

// ===== ADMIN =====

// AdminVideoFilter holds the admin list form. Dates are YYYY-MM-DD and
// both ends are inclusive.
type AdminVideoFilter struct {
	Query     string
	StartDate string
	EndDate   string
	Page      int
}

// AdminList searches every video, including inactive ones, by title,
// description or link.
func (s *VideoService) AdminList(ctx context.Context, f AdminVideoFilter, rc model.RequestContext) (*VideoPage, error) {
	created, err := parseDateRange(f.StartDate, f.EndDate)
	if err != nil {
		return nil, err
	}
	query := strings.TrimSpace(f.Query)
	page := max(f.Page, 1)

	videos, total, err := s.videos.List(ctx, repository.VideoFilter{
		Query:       query,
		SearchLink:  true,
		Created:     created,
		ListOptions: repository.Page(page, AdminPageSize),
	})
	if err != nil {
		return nil, fmt.Errorf("listing videos: %w", err)
	}

	if query != "" {
		s.recordSearch(ctx, rc, query, total, (page-1)*AdminPageSize, videos)
	}
	return newVideoPage(videos, query, total, page, AdminPageSize), nil
}

// VideoStats is the admin detail view.
type VideoStats struct {
	Video       *model.Video
	ListViews   int
	DetailViews int
}

func (v VideoStats) TotalViews() int { return v.ListViews + v.DetailViews }

func (s *VideoService) AdminDetail(ctx context.Context, id string) (*VideoStats, error) {
	v, err := s.videos.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("loading video: %w", err)
	}
	counts, err := s.telemetry.ViewCounts(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("loading video stats: %w", err)
	}
	return &VideoStats{
		Video:       v,
		ListViews:   counts[model.PageList],
		DetailViews: counts[model.PageDetail],
	}, nil
}

// VideoInput is the admin create/update form. A blank password removes
// protection.
type VideoInput struct {
	Title       string `form:"title"        validate:"notblank,max=255"`
	Description string `form:"description"`
	YouTubeLink string `form:"youtube_link" validate:"required,url,max=200"`
	IsActive    bool   `form:"is_active"`
	Password    string `form:"password"     validate:"max=72"`
	AdminNotes  string `form:"admin_notes"`
}

func (s *VideoService) Create(ctx context.Context, adminID string, in VideoInput) (*model.Video, error) {
	v := &model.Video{UserID: adminID}
	if err := s.apply(v, in); err != nil {
		return nil, err
	}
	if err := s.videos.Create(ctx, v); err != nil {
		return nil, fmt.Errorf("creating video: %w", err)
	}

	s.logger.Info("video created",
		slog.String("videoID", v.ID),
		slog.String("adminID", adminID),
	)
	return v, nil
}

func (s *VideoService) Update(ctx context.Context, id string, in VideoInput) (*model.Video, error) {
	v, err := s.videos.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("updating video: %w", err)
	}
	if err := s.apply(v, in); err != nil {
		return nil, err
	}
	if err := s.videos.Update(ctx, v); err != nil {
		return nil, fmt.Errorf("updating video: %w", err)
	}

	s.logger.Info("video updated", slog.String("videoID", id))
	return v, nil
}

// Delete removes the video with its comments and history.
func (s *VideoService) Delete(ctx context.Context, id string) error {
	if err := s.videos.Delete(ctx, id); err != nil {
		return fmt.Errorf("deleting video: %w", err)
	}
	s.logger.Info("video deleted", slog.String("videoID", id))
	return nil
}

// Bulk applies action to every id and reports how many videos changed.
func (s *VideoService) Bulk(ctx context.Context, action string, ids []string) (int64, error) {
	ids = compactIDs(ids)
	if len(ids) == 0 {
		return 0, apperror.ValidationFailed("ids", "No videos selected!")
	}

	var (
		n   int64
		err error
	)
	switch action {
	case BulkActivate:
		n, err = s.videos.SetActive(ctx, ids, true)
	case BulkDeactivate:
		n, err = s.videos.SetActive(ctx, ids, false)
	case BulkDelete:
		n, err = s.videos.DeleteMany(ctx, ids)
	default:
		return 0, apperror.ValidationFailed("action",
			fmt.Sprintf("Must be one of: %s %s %s.", BulkActivate, BulkDeactivate, BulkDelete))
	}
	if err != nil {
		return 0, fmt.Errorf("bulk %s: %w", action, err)
	}

	s.logger.Info("bulk video action",
		slog.String("action", action),
		slog.Int64("affected", n),
	)
	return n, nil
}

func (s *VideoService) apply(v *model.Video, in VideoInput) error {
	in.Title = strings.TrimSpace(in.Title)
	in.YouTubeLink = strings.TrimSpace(in.YouTubeLink)
	if err := validation.Struct(&in); err != nil {
		return err
	}

	hash := ""
	if in.Password != "" {
		var err error
		if hash, err = s.passwords.Hash(in.Password); err != nil {
			return fmt.Errorf("hashing video password: %w", err)
		}
	}

	v.Title = in.Title
	v.Description = strings.TrimSpace(in.Description)
	v.YouTubeLink = in.YouTubeLink
	v.IsActive = in.IsActive
	v.PasswordHash = hash
	v.AdminNotes = strings.TrimSpace(in.AdminNotes)
	return nil
}

// ===== TELEMETRY =====

// recordSearch logs one page of results; offset is how many results the
// earlier pages held.
func (s *VideoService) recordSearch(ctx context.Context, rc model.RequestContext, query string, total, offset int, page []model.Video) {
	ids := make([]string, len(page))
	for i, v := range page {
		ids[i] = v.ID
	}
	h := &model.SearchHistory{
		UserID:       userRef(rc),
		Query:        query,
		IPAddress:    rc.IP,
		UserAgent:    rc.UserAgent,
		ResultsCount: total,
	}
	if err := s.telemetry.RecordSearch(ctx, h, offset, ids); err != nil {
		s.logger.Warn("recording search", slog.String("query", query), slog.Any("error", err))
	}
}

func (s *VideoService) recordView(ctx context.Context, rc model.RequestContext, videoID string, pt model.PageType) {
	v := &model.ViewerHistory{
		UserID:    userRef(rc),
		VideoID:   videoID,
		IPAddress: rc.IP,
		UserAgent: rc.UserAgent,
		PageType:  pt,
	}
	if err := s.telemetry.RecordView(ctx, v); err != nil {
		s.logger.Warn("recording view", slog.String("videoID", videoID), slog.Any("error", err))
	}
}

func userRef(rc model.RequestContext) *string {
	if !rc.Authenticated() {
		return nil
	}
	id := rc.UserID
	return &id
}

func newVideoPage(videos []model.Video, query string, total, page, size int) *VideoPage {
	return &VideoPage{
		Videos: videos,
		Query:  query,
		Total:  total,
		Page:   page,
		Pages:  pageCount(total, size),
	}
}

func pageCount(total, size int) int {
	if total <= 0 {
		return 1
	}
	return (total + size - 1) / size
}

// parseDateRange reads inclusive YYYY-MM-DD bounds. The end bound covers
// the whole day.
func parseDateRange(start, end string) (repository.DateRange, error) {
	var r repository.DateRange
	errs := apperror.NewValidationErrors()

	if start = strings.TrimSpace(start); start != "" {
		t, err := time.Parse(dateLayout, start)
		if err != nil {
			errs.Add("start_date", "Enter a valid date.")
		} else {
			r.From = &t
		}
	}
	if end = strings.TrimSpace(end); end != "" {
		t, err := time.Parse(dateLayout, end)
		if err != nil {
			errs.Add("end_date", "Enter a valid date.")
		} else {
			t = t.Add(24*time.Hour - time.Nanosecond)
			r.To = &t
		}
	}
	return r, errs.OrNil()
}

func compactIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := ids[:0:0]
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
