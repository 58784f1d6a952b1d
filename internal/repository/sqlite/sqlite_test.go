package sqlite

import (
	"context"
	"testing"

	"github.com/sakif/videohub/internal/model"
)

// newTestDB opens a fresh in-memory database for one test.
func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func createTestUser(t *testing.T, db *DB, username string) *model.User {
	t.Helper()
	user := &model.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: "hash",
	}
	if err := db.Users().Create(context.Background(), user); err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

func createTestVideo(t *testing.T, db *DB, owner *model.User, title string, active bool) *model.Video {
	t.Helper()
	v := &model.Video{
		UserID:      owner.ID,
		Title:       title,
		Description: "about " + title,
		YouTubeLink: "https://www.youtube.com/watch?v=" + title,
		IsActive:    active,
	}
	if err := db.Videos().Create(context.Background(), v); err != nil {
		t.Fatalf("failed to create test video: %v", err)
	}
	return v
}

func strPtr(s string) *string { return &s }

func TestNew_ForeignKeysEnabled(t *testing.T) {
	db := newTestDB(t)

	var on int
	if err := db.conn.QueryRow(`PRAGMA foreign_keys`).Scan(&on); err != nil {
		t.Fatalf("reading foreign_keys pragma: %v", err)
	}
	if on != 1 {
		t.Errorf("foreign_keys = %d, want 1", on)
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	db := newTestDB(t)
	if err := db.migrate(); err != nil {
		t.Fatalf("second migrate() error = %v", err)
	}
}

func TestDSN(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		memory bool
		want   string
	}{
		{
			name:   "memory skips WAL",
			path:   ":memory:",
			memory: true,
			want:   ":memory:?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_time_format=sqlite",
		},
		{
			name: "file enables WAL",
			path: "data/videohub.db",
			want: "data/videohub.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_time_format=sqlite&_pragma=journal_mode(WAL)",
		},
		{
			name: "existing query string is extended",
			path: "file:test.db?cache=shared",
			want: "file:test.db?cache=shared&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_time_format=sqlite&_pragma=journal_mode(WAL)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := dsn(tt.path, tt.memory); got != tt.want {
				t.Errorf("dsn() = %q, want %q", got, tt.want)
			}
		})
	}
}
