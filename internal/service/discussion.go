package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/videohub/internal/apperror"
	"github.com/sakif/videohub/internal/auth"
	"github.com/sakif/videohub/internal/metrics"
	"github.com/sakif/videohub/internal/model"
	"github.com/sakif/videohub/internal/repository"
	"github.com/sakif/videohub/internal/validation"
)

const (
	treeComments  = "comment"
	treeResponses = "response"

	msgNotYours = "You do not have permission to modify this item."
)

// PostInput is the add form shared by comments and responses.
type PostInput struct {
	Content   string `form:"content"      validate:"notblank"`
	Name      string `form:"name"         validate:"max=100"`
	Anonymous bool   `form:"is_anonymous"`
	ParentID  string `form:"parent_id"`
}

type editInput struct {
	Content string `form:"content" validate:"notblank"`
}

// Posted is the result of a mutation. EditToken is set only when a new
// anonymous item was created; the caller hands it to the client.
type Posted struct {
	Item      *model.Post
	EditToken string
	Count     int
}

// DiscussionService runs the two discussion trees: comments under videos
// and responses under comments.
//
// Edit and delete re-derive authorization on every call. An item with an
// owning user may only be changed by that user. An item without one may be
// changed by whoever presents its edit token, so anonymous authorship is
// bearer-token authorization. Admins may change anything.
type DiscussionService struct {
	videos    repository.VideoRepository
	comments  repository.CommentRepository
	responses repository.ResponseRepository
	users     repository.UserRepository
	logger    *slog.Logger
}

func NewDiscussionService(
	videos repository.VideoRepository,
	comments repository.CommentRepository,
	responses repository.ResponseRepository,
	users repository.UserRepository,
	logger *slog.Logger,
) *DiscussionService {
	return &DiscussionService{
		videos:    videos,
		comments:  comments,
		responses: responses,
		users:     users,
		logger:    logger,
	}
}

// ===== COMMENTS =====

func (s *DiscussionService) AddComment(ctx context.Context, rc model.RequestContext, videoID string, in PostInput) (posted *Posted, err error) {
	defer func() { metrics.RecordDiscussion(treeComments, "add", err) }()

	post, token, err := s.newPost(ctx, rc, in)
	if err != nil {
		return nil, err
	}

	video, err := s.videos.GetByID(ctx, videoID)
	if err != nil {
		return nil, fmt.Errorf("adding comment: %w", err)
	}
	if !video.IsActive {
		return nil, apperror.NotFound("video", videoID)
	}

	if post.ParentID != nil {
		parent, err := s.comments.GetByID(ctx, *post.ParentID)
		if err != nil {
			return nil, fmt.Errorf("adding comment: %w", err)
		}
		if parent.VideoID != videoID {
			return nil, apperror.ValidationFailed("parent_id", "The parent comment belongs to another video.")
		}
	}

	c := &model.Comment{Post: *post, VideoID: videoID}
	if err := s.comments.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("adding comment: %w", err)
	}

	count, err := s.comments.CountApproved(ctx, videoID)
	if err != nil {
		return nil, fmt.Errorf("adding comment: %w", err)
	}

	s.logger.Info("comment added",
		slog.String("commentID", c.ID),
		slog.String("videoID", videoID),
		slog.Bool("anonymous", token != ""),
	)
	return &Posted{Item: &c.Post, EditToken: token, Count: count}, nil
}

func (s *DiscussionService) EditComment(ctx context.Context, rc model.RequestContext, tokens auth.TokenReader, id, content string) (posted *Posted, err error) {
	defer func() { metrics.RecordDiscussion(treeComments, "edit", err) }()

	content, err = editedContent(content)
	if err != nil {
		return nil, err
	}

	c, err := s.comments.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("editing comment: %w", err)
	}
	if err := authorize(rc, tokens, auth.CommentKey(id), &c.Post); err != nil {
		return nil, err
	}

	if err := s.comments.UpdateContent(ctx, id, content); err != nil {
		return nil, fmt.Errorf("editing comment: %w", err)
	}
	c.Content = content
	if err := s.fillUsername(ctx, &c.Post); err != nil {
		return nil, err
	}

	count, err := s.comments.CountApproved(ctx, c.VideoID)
	if err != nil {
		return nil, fmt.Errorf("editing comment: %w", err)
	}
	return &Posted{Item: &c.Post, Count: count}, nil
}

// DeleteComment removes the comment with its replies and responses. It
// returns the approved comment count left on the video.
func (s *DiscussionService) DeleteComment(ctx context.Context, rc model.RequestContext, tokens auth.TokenReader, id string) (count int, err error) {
	defer func() { metrics.RecordDiscussion(treeComments, "delete", err) }()

	c, err := s.comments.GetByID(ctx, id)
	if err != nil {
		return 0, fmt.Errorf("deleting comment: %w", err)
	}
	if err := authorize(rc, tokens, auth.CommentKey(id), &c.Post); err != nil {
		return 0, err
	}

	if err := s.comments.Delete(ctx, id); err != nil {
		return 0, fmt.Errorf("deleting comment: %w", err)
	}

	count, err = s.comments.CountApproved(ctx, c.VideoID)
	if err != nil {
		return 0, fmt.Errorf("deleting comment: %w", err)
	}

	s.logger.Info("comment deleted",
		slog.String("commentID", id),
		slog.String("videoID", c.VideoID),
	)
	return count, nil
}

// TopComments lists the approved top level of a video with its count.
func (s *DiscussionService) TopComments(ctx context.Context, videoID string) ([]model.Comment, int, error) {
	if _, err := s.videos.GetByID(ctx, videoID); err != nil {
		return nil, 0, fmt.Errorf("listing comments: %w", err)
	}
	items, err := s.comments.Children(ctx, videoID, "")
	if err != nil {
		return nil, 0, fmt.Errorf("listing comments: %w", err)
	}
	count, err := s.comments.CountApproved(ctx, videoID)
	if err != nil {
		return nil, 0, fmt.Errorf("listing comments: %w", err)
	}
	return items, count, nil
}

// CommentReplies lists the approved direct replies to a comment.
func (s *DiscussionService) CommentReplies(ctx context.Context, commentID string) ([]model.Comment, error) {
	c, err := s.comments.GetByID(ctx, commentID)
	if err != nil {
		return nil, fmt.Errorf("listing replies: %w", err)
	}
	items, err := s.comments.Children(ctx, c.VideoID, commentID)
	if err != nil {
		return nil, fmt.Errorf("listing replies: %w", err)
	}
	return items, nil
}

// SetCommentApproval is the moderation switch. Callers must be admins.
func (s *DiscussionService) SetCommentApproval(ctx context.Context, rc model.RequestContext, id string, approved bool) (count int, err error) {
	defer func() { metrics.RecordDiscussion(treeComments, "approve", err) }()

	if !rc.IsAdmin {
		return 0, apperror.Forbidden("admin access required")
	}
	c, err := s.comments.GetByID(ctx, id)
	if err != nil {
		return 0, fmt.Errorf("moderating comment: %w", err)
	}
	if err := s.comments.SetApproved(ctx, id, approved); err != nil {
		return 0, fmt.Errorf("moderating comment: %w", err)
	}

	s.logger.Info("comment moderated",
		slog.String("commentID", id),
		slog.Bool("approved", approved),
	)
	return s.comments.CountApproved(ctx, c.VideoID)
}

// ===== RESPONSES =====

func (s *DiscussionService) AddResponse(ctx context.Context, rc model.RequestContext, commentID string, in PostInput) (posted *Posted, err error) {
	defer func() { metrics.RecordDiscussion(treeResponses, "add", err) }()

	post, token, err := s.newPost(ctx, rc, in)
	if err != nil {
		return nil, err
	}

	if _, err := s.comments.GetByID(ctx, commentID); err != nil {
		return nil, fmt.Errorf("adding response: %w", err)
	}

	if post.ParentID != nil {
		parent, err := s.responses.GetByID(ctx, *post.ParentID)
		if err != nil {
			return nil, fmt.Errorf("adding response: %w", err)
		}
		if parent.CommentID != commentID {
			return nil, apperror.ValidationFailed("parent_id", "The parent response belongs to another comment.")
		}
	}

	r := &model.CommentResponse{Post: *post, CommentID: commentID}
	if err := s.responses.Create(ctx, r); err != nil {
		return nil, fmt.Errorf("adding response: %w", err)
	}

	count, err := s.responses.CountApproved(ctx, commentID)
	if err != nil {
		return nil, fmt.Errorf("adding response: %w", err)
	}

	s.logger.Info("response added",
		slog.String("responseID", r.ID),
		slog.String("commentID", commentID),
		slog.Bool("anonymous", token != ""),
	)
	return &Posted{Item: &r.Post, EditToken: token, Count: count}, nil
}

func (s *DiscussionService) EditResponse(ctx context.Context, rc model.RequestContext, tokens auth.TokenReader, id, content string) (posted *Posted, err error) {
	defer func() { metrics.RecordDiscussion(treeResponses, "edit", err) }()

	content, err = editedContent(content)
	if err != nil {
		return nil, err
	}

	r, err := s.responses.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("editing response: %w", err)
	}
	if err := authorize(rc, tokens, auth.ResponseKey(id), &r.Post); err != nil {
		return nil, err
	}

	if err := s.responses.UpdateContent(ctx, id, content); err != nil {
		return nil, fmt.Errorf("editing response: %w", err)
	}
	r.Content = content
	if err := s.fillUsername(ctx, &r.Post); err != nil {
		return nil, err
	}

	count, err := s.responses.CountApproved(ctx, r.CommentID)
	if err != nil {
		return nil, fmt.Errorf("editing response: %w", err)
	}
	return &Posted{Item: &r.Post, Count: count}, nil
}

func (s *DiscussionService) DeleteResponse(ctx context.Context, rc model.RequestContext, tokens auth.TokenReader, id string) (count int, err error) {
	defer func() { metrics.RecordDiscussion(treeResponses, "delete", err) }()

	r, err := s.responses.GetByID(ctx, id)
	if err != nil {
		return 0, fmt.Errorf("deleting response: %w", err)
	}
	if err := authorize(rc, tokens, auth.ResponseKey(id), &r.Post); err != nil {
		return 0, err
	}

	if err := s.responses.Delete(ctx, id); err != nil {
		return 0, fmt.Errorf("deleting response: %w", err)
	}

	count, err = s.responses.CountApproved(ctx, r.CommentID)
	if err != nil {
		return 0, fmt.Errorf("deleting response: %w", err)
	}

	s.logger.Info("response deleted",
		slog.String("responseID", id),
		slog.String("commentID", r.CommentID),
	)
	return count, nil
}

func (s *DiscussionService) TopResponses(ctx context.Context, commentID string) ([]model.CommentResponse, int, error) {
	if _, err := s.comments.GetByID(ctx, commentID); err != nil {
		return nil, 0, fmt.Errorf("listing responses: %w", err)
	}
	items, err := s.responses.Children(ctx, commentID, "")
	if err != nil {
		return nil, 0, fmt.Errorf("listing responses: %w", err)
	}
	count, err := s.responses.CountApproved(ctx, commentID)
	if err != nil {
		return nil, 0, fmt.Errorf("listing responses: %w", err)
	}
	return items, count, nil
}

func (s *DiscussionService) ResponseReplies(ctx context.Context, responseID string) ([]model.CommentResponse, error) {
	r, err := s.responses.GetByID(ctx, responseID)
	if err != nil {
		return nil, fmt.Errorf("listing replies: %w", err)
	}
	items, err := s.responses.Children(ctx, r.CommentID, responseID)
	if err != nil {
		return nil, fmt.Errorf("listing replies: %w", err)
	}
	return items, nil
}

func (s *DiscussionService) SetResponseApproval(ctx context.Context, rc model.RequestContext, id string, approved bool) (count int, err error) {
	defer func() { metrics.RecordDiscussion(treeResponses, "approve", err) }()

	if !rc.IsAdmin {
		return 0, apperror.Forbidden("admin access required")
	}
	r, err := s.responses.GetByID(ctx, id)
	if err != nil {
		return 0, fmt.Errorf("moderating response: %w", err)
	}
	if err := s.responses.SetApproved(ctx, id, approved); err != nil {
		return 0, fmt.Errorf("moderating response: %w", err)
	}

	s.logger.Info("response moderated",
		slog.String("responseID", id),
		slog.Bool("approved", approved),
	)
	return s.responses.CountApproved(ctx, r.CommentID)
}

// ===== SHARED =====

// newPost validates the form and resolves attribution. The returned token
// is non-empty exactly when the post has no owning user.
func (s *DiscussionService) newPost(ctx context.Context, rc model.RequestContext, in PostInput) (*model.Post, string, error) {
	in.Content = strings.TrimSpace(in.Content)
	in.Name = strings.TrimSpace(in.Name)
	in.ParentID = strings.TrimSpace(in.ParentID)
	if err := validation.Struct(&in); err != nil {
		return nil, "", err
	}

	p := &model.Post{
		Content:    in.Content,
		IsApproved: true,
	}
	if in.ParentID != "" {
		p.ParentID = &in.ParentID
	}

	switch {
	case rc.Authenticated() && in.Anonymous:
		p.IsAnonymous = true
	case rc.Authenticated():
		user, err := s.users.GetByID(ctx, rc.UserID)
		if err != nil {
			if errors.Is(err, apperror.ErrNotFound) {
				return nil, "", apperror.Unauthorized("session user no longer exists")
			}
			return nil, "", fmt.Errorf("resolving author: %w", err)
		}
		p.UserID = &user.ID
		p.Name = &user.Username
		p.Username = user.Username
		return p, "", nil
	default:
		name := in.Name
		if name == "" {
			name = model.AnonymousName
		}
		p.Name = &name
		p.IPAddress = rc.IP
		p.UserAgent = rc.UserAgent
	}

	token, err := auth.MintToken()
	if err != nil {
		return nil, "", err
	}
	p.EditToken = &token
	return p, token, nil
}

func (s *DiscussionService) fillUsername(ctx context.Context, p *model.Post) error {
	if !p.Owned() || p.IsAnonymous {
		return nil
	}
	u, err := s.users.GetByID(ctx, *p.UserID)
	if err != nil {
		return fmt.Errorf("resolving author: %w", err)
	}
	p.Username = u.Username
	return nil
}

func editedContent(content string) (string, error) {
	in := editInput{Content: strings.TrimSpace(content)}
	if err := validation.Struct(&in); err != nil {
		return "", err
	}
	return in.Content, nil
}

// authorize decides whether rc may change p. key is p's entry in the
// client token map.
func authorize(rc model.RequestContext, tokens auth.TokenReader, key string, p *model.Post) error {
	if rc.IsAdmin {
		return nil
	}
	if p.Owned() {
		if rc.Authenticated() && rc.UserID == *p.UserID {
			return nil
		}
		return apperror.Forbidden(msgNotYours)
	}
	if auth.TokenMatches(tokens, key, p.EditToken) {
		return nil
	}
	return apperror.Forbidden(msgNotYours)
}
