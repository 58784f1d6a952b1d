package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/videohub/internal/model"
)

func TestFillDays(t *testing.T) {
	start := time.Date(2025, 1, 30, 0, 0, 0, 0, time.UTC)
	now := time.Date(2025, 2, 2, 15, 0, 0, 0, time.UTC)

	got := fillDays([]model.DailyCount{{Date: "2025-01-31", Count: 3}, {Date: "2025-02-02", Count: 1}}, start, now)

	assert.Equal(t, []model.DailyCount{
		{Date: "2025-01-30", Count: 0},
		{Date: "2025-01-31", Count: 3},
		{Date: "2025-02-01", Count: 0},
		{Date: "2025-02-02", Count: 1},
	}, got)
}

func TestDashboard(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	owner := createUser(t, db, "owner", true)
	videos := NewVideoService(db.Videos(), db.Telemetry(), nil, discardLogger())
	svc := NewTelemetryService(db.Telemetry(), discardLogger())

	createVideo(t, db, owner, "go", true)
	createVideo(t, db, owner, "off", false)

	_, err := videos.ListPublic(ctx, ListVideosInput{}, visitor)
	require.NoError(t, err)
	_, err = videos.ListPublic(ctx, ListVideosInput{Query: "go"}, visitor)
	require.NoError(t, err)
	_, err = videos.ListPublic(ctx, ListVideosInput{Query: "go"}, visitor)
	require.NoError(t, err)

	now := time.Now().UTC()
	stats, err := svc.Dashboard(ctx, now)
	require.NoError(t, err)

	assert.Equal(t, 2, stats.TotalVideos)
	assert.Equal(t, 1, stats.ActiveVideos)
	assert.Equal(t, 1, stats.ViewsInWindow)
	assert.Equal(t, 2, stats.SearchesWindow)
	assert.Len(t, stats.DailyViews, 31)
	assert.Equal(t, 1, stats.DailyViews[len(stats.DailyViews)-1].Count)
	require.NotEmpty(t, stats.PopularQueries)
	assert.Equal(t, model.QueryCount{Query: "go", Count: 2}, stats.PopularQueries[0])

	page, err := svc.SearchHistory(ctx, SearchHistoryInput{})
	require.NoError(t, err)
	assert.Equal(t, 2, page.Total)
	assert.Equal(t, 2, page.Summary.Total)
	assert.Equal(t, 1, page.Summary.UniqueQueries)
	assert.InDelta(t, 1.0, page.Summary.AverageResults, 0.001)

	page, err = svc.SearchHistory(ctx, SearchHistoryInput{StartDate: "2000-01-01", EndDate: "2000-01-02"})
	require.NoError(t, err)
	assert.Zero(t, page.Total)
	assert.Equal(t, 1, page.Pages)
}
