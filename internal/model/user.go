// Package model defines the data structures used throughout the application.
package model

import "time"

// User is a registered account. Password-based users carry a bcrypt hash;
// GitHub users may not have one.
type User struct {
	ID              string    `json:"id"              db:"id"`
	Username        string    `json:"username"        db:"username"`
	Email           string    `json:"email"           db:"email"`
	PasswordHash    string    `json:"-"               db:"password_hash"`
	IsEmailVerified bool      `json:"isEmailVerified" db:"is_email_verified"`
	IsAdmin         bool      `json:"isAdmin"         db:"is_admin"`
	GitHubID        *int64    `json:"githubId,omitempty" db:"github_id"`
	AvatarURL       string    `json:"avatarUrl"       db:"avatar_url"`
	CreatedAt       time.Time `json:"createdAt"       db:"created_at"`
	UpdatedAt       time.Time `json:"updatedAt"       db:"updated_at"`
}

// RequestContext is the normalized view of who is making a request.
// Handlers build it once; services never look at *http.Request.
type RequestContext struct {
	UserID    string
	IsAdmin   bool
	IP        string
	UserAgent string
}

func (rc RequestContext) Authenticated() bool {
	return rc.UserID != ""
}
