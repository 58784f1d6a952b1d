package model

import "time"

// AnonymousName is shown for authors without a display name.
const AnonymousName = "Anonymous"

// Post holds the fields shared by comments and comment responses.
type Post struct {
	ID          string    `json:"id"          db:"id"`
	UserID      *string   `json:"userId"      db:"user_id"`
	Name        *string   `json:"name"        db:"name"`
	Content     string    `json:"content"     db:"content"`
	IsAnonymous bool      `json:"isAnonymous" db:"is_anonymous"`
	IsApproved  bool      `json:"isApproved"  db:"is_approved"`
	ParentID    *string   `json:"parentId"    db:"parent_id"`
	EditToken   *string   `json:"-"           db:"edit_token"`
	IPAddress   string    `json:"-"           db:"ip_address"`
	UserAgent   string    `json:"-"           db:"user_agent"`
	CreatedAt   time.Time `json:"createdAt"   db:"created_at"`
	UpdatedAt   time.Time `json:"updatedAt"   db:"updated_at"`

	// Read-side fields filled by list queries.
	Username   string `json:"username,omitempty" db:"-"`
	ReplyCount int    `json:"replyCount"         db:"-"`
}

// Author is the display attribution for the post.
func (p *Post) Author() string {
	if p.UserID != nil && !p.IsAnonymous && p.Username != "" {
		return p.Username
	}
	if p.Name != nil && *p.Name != "" {
		return *p.Name
	}
	return AnonymousName
}

// Owned reports whether a user account owns the post. Unowned posts are
// authorized by edit token.
func (p *Post) Owned() bool {
	return p.UserID != nil && *p.UserID != ""
}

// Comment hangs off a video.
type Comment struct {
	Post
	VideoID string `json:"videoId" db:"video_id"`
}

// CommentResponse hangs off a comment.
type CommentResponse struct {
	Post
	CommentID string `json:"commentId" db:"comment_id"`
}
