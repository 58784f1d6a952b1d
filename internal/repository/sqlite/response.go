package sqlite

import (
	"context"

	"github.com/sakif/videohub/internal/model"
	"github.com/sakif/videohub/internal/repository"
)

// ResponseDB stores responses to comments.
type ResponseDB struct {
	posts postStore
}

var _ repository.ResponseRepository = (*ResponseDB)(nil)

func (db *DB) Responses() *ResponseDB {
	return &ResponseDB{posts: postStore{
		conn:     db.conn,
		table:    "comment_responses",
		scope:    "comment_id",
		resource: "response",
	}}
}

func (s *ResponseDB) Create(ctx context.Context, r *model.CommentResponse) error {
	return s.posts.insert(ctx, &r.Post, r.CommentID)
}

func (s *ResponseDB) GetByID(ctx context.Context, id string) (*model.CommentResponse, error) {
	p, commentID, err := s.posts.get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &model.CommentResponse{Post: *p, CommentID: commentID}, nil
}

func (s *ResponseDB) UpdateContent(ctx context.Context, id, content string) error {
	return s.posts.updateContent(ctx, id, content)
}

func (s *ResponseDB) Delete(ctx context.Context, id string) error {
	return s.posts.delete(ctx, id)
}

func (s *ResponseDB) SetApproved(ctx context.Context, id string, approved bool) error {
	return s.posts.setApproved(ctx, id, approved)
}

func (s *ResponseDB) Children(ctx context.Context, commentID, parentID string) ([]model.CommentResponse, error) {
	posts, scopes, err := s.posts.children(ctx, commentID, parentID)
	if err != nil {
		return nil, err
	}
	responses := make([]model.CommentResponse, len(posts))
	for i, p := range posts {
		responses[i] = model.CommentResponse{Post: *p, CommentID: scopes[i]}
	}
	return responses, nil
}

func (s *ResponseDB) CountApproved(ctx context.Context, commentID string) (int, error) {
	return s.posts.countApproved(ctx, commentID)
}
