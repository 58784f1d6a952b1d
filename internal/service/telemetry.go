package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sakif/videohub/internal/model"
	"github.com/sakif/videohub/internal/repository"
)

const (
	SearchPageSize  = 20
	DashboardWindow = 30 * 24 * time.Hour
	popularQueries  = 10
)

// TelemetryService reads the view and search history for admins.
type TelemetryService struct {
	telemetry repository.TelemetryRepository
	logger    *slog.Logger
}

func NewTelemetryService(telemetry repository.TelemetryRepository, logger *slog.Logger) *TelemetryService {
	return &TelemetryService{telemetry: telemetry, logger: logger}
}

type SearchHistoryInput struct {
	StartDate string
	EndDate   string
	Page      int
}

// SearchPage is one page of search history plus all-time statistics.
type SearchPage struct {
	Searches []model.SearchHistory
	Summary  model.SearchSummary
	Total    int
	Page     int
	Pages    int
}

func (s *TelemetryService) SearchHistory(ctx context.Context, in SearchHistoryInput) (*SearchPage, error) {
	searched, err := parseDateRange(in.StartDate, in.EndDate)
	if err != nil {
		return nil, err
	}
	page := max(in.Page, 1)

	rows, total, err := s.telemetry.ListSearches(ctx, repository.SearchFilter{
		Searched:    searched,
		ListOptions: repository.Page(page, SearchPageSize),
	})
	if err != nil {
		return nil, fmt.Errorf("listing searches: %w", err)
	}

	summary, err := s.telemetry.SearchSummary(ctx, repository.DateRange{}, popularQueries)
	if err != nil {
		return nil, fmt.Errorf("summarising searches: %w", err)
	}

	return &SearchPage{
		Searches: rows,
		Summary:  summary,
		Total:    total,
		Page:     page,
		Pages:    pageCount(total, SearchPageSize),
	}, nil
}

// Dashboard covers the 30 days up to now. Daily series have one entry per
// calendar day in the window, zero filled.
func (s *TelemetryService) Dashboard(ctx context.Context, now time.Time) (model.DashboardStats, error) {
	since := now.UTC().Add(-DashboardWindow)
	start := time.Date(since.Year(), since.Month(), since.Day(), 0, 0, 0, 0, time.UTC)

	stats, err := s.telemetry.Dashboard(ctx, start)
	if err != nil {
		return stats, fmt.Errorf("loading dashboard: %w", err)
	}
	stats.DailyViews = fillDays(stats.DailyViews, start, now)
	stats.DailySearches = fillDays(stats.DailySearches, start, now)
	return stats, nil
}

// fillDays returns one DailyCount per day from start to now inclusive.
func fillDays(counts []model.DailyCount, start, now time.Time) []model.DailyCount {
	byDay := make(map[string]int, len(counts))
	for _, c := range counts {
		byDay[c.Date] = c.Count
	}

	last := now.UTC().Format(dateLayout)
	var out []model.DailyCount
	for d := start; ; d = d.AddDate(0, 0, 1) {
		day := d.Format(dateLayout)
		out = append(out, model.DailyCount{Date: day, Count: byDay[day]})
		if day >= last {
			break
		}
	}
	return out
}
