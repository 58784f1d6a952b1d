package service

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sakif/videohub/internal/model"
	"github.com/sakif/videohub/internal/repository"
	"github.com/sakif/videohub/internal/repository/sqlite"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestDB opens a fresh in-memory database for one test.
func newTestDB(t *testing.T) *sqlite.DB {
	t.Helper()
	db, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func createUser(t *testing.T, db *sqlite.DB, username string, verified bool) *model.User {
	t.Helper()
	u := &model.User{
		Username:        username,
		Email:           username + "@example.com",
		PasswordHash:    "x",
		IsEmailVerified: verified,
	}
	require.NoError(t, db.Users().Create(context.Background(), u))
	return u
}

func createVideo(t *testing.T, db *sqlite.DB, owner *model.User, title string, active bool) *model.Video {
	t.Helper()
	v := &model.Video{
		UserID:      owner.ID,
		Title:       title,
		Description: "about " + title,
		YouTubeLink: "https://www.youtube.com/watch?v=" + title,
		IsActive:    active,
	}
	require.NoError(t, db.Videos().Create(context.Background(), v))
	return v
}

// clock is a settable time source for services that take a now func.
type clock struct{ t time.Time }

func (c *clock) Now() time.Time           { return c.t }
func (c *clock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func strPtr(s string) *string { return &s }

var repositoryAll = repository.ListOptions{Limit: 200}
