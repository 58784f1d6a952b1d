package model

import "time"

// Video is an admin-published entry pointing at an external (YouTube) link.
type Video struct {
	ID           string    `json:"id"          db:"id"`
	UserID       string    `json:"userId"      db:"user_id"`
	Title        string    `json:"title"       db:"title"`
	Description  string    `json:"description" db:"description"`
	YouTubeLink  string    `json:"youtubeLink" db:"youtube_link"`
	IsActive     bool      `json:"isActive"    db:"is_active"`
	PasswordHash string    `json:"-"           db:"password_hash"`
	AdminNotes   string    `json:"adminNotes,omitempty" db:"admin_notes"`
	CreatedAt    time.Time `json:"createdAt"   db:"created_at"`
	UpdatedAt    time.Time `json:"updatedAt"   db:"updated_at"`
}

func (v *Video) HasPassword() bool {
	return v.PasswordHash != ""
}
