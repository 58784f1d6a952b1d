package sqlite

import (
	"context"

	"github.com/sakif/videohub/internal/model"
	"github.com/sakif/videohub/internal/repository"
)

// CommentDB stores comments on videos.
type CommentDB struct {
	posts postStore
}

var _ repository.CommentRepository = (*CommentDB)(nil)

func (db *DB) Comments() *CommentDB {
	return &CommentDB{posts: postStore{
		conn:     db.conn,
		table:    "comments",
		scope:    "video_id",
		resource: "comment",
	}}
}

func (s *CommentDB) Create(ctx context.Context, c *model.Comment) error {
	return s.posts.insert(ctx, &c.Post, c.VideoID)
}

func (s *CommentDB) GetByID(ctx context.Context, id string) (*model.Comment, error) {
	p, videoID, err := s.posts.get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &model.Comment{Post: *p, VideoID: videoID}, nil
}

func (s *CommentDB) UpdateContent(ctx context.Context, id, content string) error {
	return s.posts.updateContent(ctx, id, content)
}

// Delete removes the comment, its replies and its responses.
func (s *CommentDB) Delete(ctx context.Context, id string) error {
	return s.posts.delete(ctx, id)
}

func (s *CommentDB) SetApproved(ctx context.Context, id string, approved bool) error {
	return s.posts.setApproved(ctx, id, approved)
}

func (s *CommentDB) Children(ctx context.Context, videoID, parentID string) ([]model.Comment, error) {
	posts, scopes, err := s.posts.children(ctx, videoID, parentID)
	if err != nil {
		return nil, err
	}
	comments := make([]model.Comment, len(posts))
	for i, p := range posts {
		comments[i] = model.Comment{Post: *p, VideoID: scopes[i]}
	}
	return comments, nil
}

func (s *CommentDB) CountApproved(ctx context.Context, videoID string) (int, error) {
	return s.posts.countApproved(ctx, videoID)
}
