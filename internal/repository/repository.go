// Package repository declares the storage contracts the services depend on.
// Implementations live in subpackages (sqlite). Filters are typed structs;
// there is no general query builder.
package repository

import (
	"context"
	"time"

	"github.com/sakif/videohub/internal/model"
)

type ListOptions struct {
	Limit  int
	Offset int
}

// Page converts a 1-based page number into list options.
func Page(page, size int) ListOptions {
	if page < 1 {
		page = 1
	}
	return ListOptions{Limit: size, Offset: (page - 1) * size}
}

// DateRange bounds a timestamp column. Nil ends are open.
type DateRange struct {
	From *time.Time
	To   *time.Time
}

type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	Update(ctx context.Context, user *model.User) error
	Delete(ctx context.Context, id string) error
	UpsertGitHub(ctx context.Context, user *model.User) error
}

type VerificationRepository interface {
	CreateCode(ctx context.Context, v *model.EmailVerification) error
	// LatestUnused returns the most recently created unused row for
	// (userID, code), or apperror.ErrNotFound.
	LatestUnused(ctx context.Context, userID, code string) (*model.EmailVerification, error)
	// Consume marks the code used and the user verified in one transaction.
	// A code that is already used yields apperror.ErrNotFound.
	Consume(ctx context.Context, codeID, userID string) error
	GetAttempt(ctx context.Context, userID, date string) (model.VerificationAttempt, error)
	SaveAttempt(ctx context.Context, a model.VerificationAttempt) error
}

// VideoFilter selects videos for public and admin listings.
type VideoFilter struct {
	Query      string
	SearchLink bool // also match the external link (admin search)
	ActiveOnly bool
	Created    DateRange
	ListOptions
}

type VideoRepository interface {
	Create(ctx context.Context, v *model.Video) error
	GetByID(ctx context.Context, id string) (*model.Video, error)
	Update(ctx context.Context, v *model.Video) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, f VideoFilter) ([]model.Video, int, error)
	SetActive(ctx context.Context, ids []string, active bool) (int64, error)
	DeleteMany(ctx context.Context, ids []string) (int64, error)
}

type CommentRepository interface {
	Create(ctx context.Context, c *model.Comment) error
	GetByID(ctx context.Context, id string) (*model.Comment, error)
	UpdateContent(ctx context.Context, id, content string) error
	Delete(ctx context.Context, id string) error
	SetApproved(ctx context.Context, id string, approved bool) error
	// Children lists approved comments under parentID; an empty parentID
	// lists the approved top level of the video.
	Children(ctx context.Context, videoID, parentID string) ([]model.Comment, error)
	CountApproved(ctx context.Context, videoID string) (int, error)
}

type ResponseRepository interface {
	Create(ctx context.Context, r *model.CommentResponse) error
	GetByID(ctx context.Context, id string) (*model.CommentResponse, error)
	UpdateContent(ctx context.Context, id, content string) error
	Delete(ctx context.Context, id string) error
	SetApproved(ctx context.Context, id string, approved bool) error
	Children(ctx context.Context, commentID, parentID string) ([]model.CommentResponse, error)
	CountApproved(ctx context.Context, commentID string) (int, error)
}

// SearchFilter selects search history rows.
type SearchFilter struct {
	Searched DateRange
	ListOptions
}

type TelemetryRepository interface {
	RecordView(ctx context.Context, v *model.ViewerHistory) error
	// RecordSearch stores the search and one SearchResult per video id.
	// videoIDs is one page of the ranked result list and offset is the
	// number of results before it, so positions run offset+1, offset+2...
	RecordSearch(ctx context.Context, s *model.SearchHistory, offset int, videoIDs []string) error
	ListSearches(ctx context.Context, f SearchFilter) ([]model.SearchHistory, int, error)
	SearchSummary(ctx context.Context, r DateRange, popular int) (model.SearchSummary, error)
	ViewCounts(ctx context.Context, videoID string) (map[model.PageType]int, error)
	Dashboard(ctx context.Context, since time.Time) (model.DashboardStats, error)
}

type StoryRepository interface {
	Create(ctx context.Context, s *model.Story) error
	GetByID(ctx context.Context, id string) (*model.Story, error)
	List(ctx context.Context, opts ListOptions) ([]model.Story, error)
	UpdateStatus(ctx context.Context, id string, status model.WorkStatus, printedAt *time.Time) error
	// MarkFailed sets the failed status together with a reason shown to users.
	MarkFailed(ctx context.Context, id, reason string) error
}

type DocumentRepository interface {
	Create(ctx context.Context, d *model.PDFDocument) error
	GetByID(ctx context.Context, id string) (*model.PDFDocument, error)
	List(ctx context.Context, opts ListOptions) ([]model.PDFDocument, error)
	UpdateStatus(ctx context.Context, id string, status model.WorkStatus) error
	// SaveResult replaces extracted_text and sets the final status.
	SaveResult(ctx context.Context, id string, status model.WorkStatus, text string) error
}

type TaskRepository interface {
	Create(ctx context.Context, t *model.ScheduledTask) error
	MarkRunning(ctx context.Context, id string) error
	MarkFinished(ctx context.Context, id string, status model.TaskStatus, lastErr string) error
	// Unfinished returns scheduled and running tasks ordered by run_at.
	Unfinished(ctx context.Context) ([]model.ScheduledTask, error)
}
