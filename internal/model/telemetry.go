package model

import "time"

type PageType string

const (
	PageList   PageType = "list"
	PageDetail PageType = "detail"
)

// ViewerHistory records one page view. Rows are never updated.
type ViewerHistory struct {
	ID        string    `json:"id"        db:"id"`
	UserID    *string   `json:"userId"    db:"user_id"`
	VideoID   string    `json:"videoId"   db:"video_id"`
	IPAddress string    `json:"ipAddress" db:"ip_address"`
	UserAgent string    `json:"userAgent" db:"user_agent"`
	PageType  PageType  `json:"pageType"  db:"page_type"`
	ViewedAt  time.Time `json:"viewedAt"  db:"viewed_at"`
}

// SearchHistory records one search. Rows are never updated.
type SearchHistory struct {
	ID           string    `json:"id"           db:"id"`
	UserID       *string   `json:"userId"       db:"user_id"`
	Query        string    `json:"query"        db:"query"`
	IPAddress    string    `json:"ipAddress"    db:"ip_address"`
	UserAgent    string    `json:"userAgent"    db:"user_agent"`
	ResultsCount int       `json:"resultsCount" db:"results_count"`
	SearchedAt   time.Time `json:"searchedAt"   db:"searched_at"`
}

// SearchResult pins a video at a 1-based rank for a search.
type SearchResult struct {
	SearchID string `json:"searchId" db:"search_id"`
	VideoID  string `json:"videoId"  db:"video_id"`
	Position int    `json:"position" db:"position"`
}

type QueryCount struct {
	Query string `json:"query"`
	Count int    `json:"count"`
}

type DailyCount struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// DashboardStats is the admin overview.
type DashboardStats struct {
	TotalVideos    int          `json:"totalVideos"`
	ActiveVideos   int          `json:"activeVideos"`
	TotalUsers     int          `json:"totalUsers"`
	TotalComments  int          `json:"totalComments"`
	PendingReview  int          `json:"pendingReview"`
	ViewsInWindow  int          `json:"viewsInWindow"`
	SearchesWindow int          `json:"searchesInWindow"`
	DailyViews     []DailyCount `json:"dailyViews"`
	DailySearches  []DailyCount `json:"dailySearches"`
	PopularQueries []QueryCount `json:"popularQueries"`
}

// SearchSummary aggregates the search history page.
type SearchSummary struct {
	Total          int          `json:"total"`
	UniqueQueries  int          `json:"uniqueQueries"`
	AverageResults float64      `json:"averageResults"`
	Popular        []QueryCount `json:"popular"`
}
