package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/videohub/internal/model"
	"github.com/sakif/videohub/internal/repository"
)

// TelemetryDB appends view and search history. Nothing here updates a
// row after insert.
type TelemetryDB struct {
	conn *sql.DB
}

var _ repository.TelemetryRepository = (*TelemetryDB)(nil)

func (db *DB) Telemetry() *TelemetryDB {
	return &TelemetryDB{conn: db.conn}
}

func (s *TelemetryDB) RecordView(ctx context.Context, v *model.ViewerHistory) error {
	v.ID = xid.New().String()
	if v.ViewedAt.IsZero() {
		v.ViewedAt = time.Now().UTC()
	}
	_, err := s.conn.ExecContext(ctx,
		`INSERT INTO viewer_history (id, user_id, video_id, ip_address, user_agent, page_type, viewed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		v.ID, v.UserID, v.VideoID, v.IPAddress, v.UserAgent, string(v.PageType), v.ViewedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("sqlite: recording view of %s: %w", v.VideoID, err)
	}
	return nil
}

// RecordSearch writes the search row and its ranked results. Positions
// are global ranks: a second page starts after offset.
func (s *TelemetryDB) RecordSearch(ctx context.Context, h *model.SearchHistory, offset int, videoIDs []string) error {
	h.ID = xid.New().String()
	if h.SearchedAt.IsZero() {
		h.SearchedAt = time.Now().UTC()
	}

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning search tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO search_history (id, user_id, query, ip_address, user_agent, results_count, searched_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		h.ID, h.UserID, h.Query, h.IPAddress, h.UserAgent, h.ResultsCount, h.SearchedAt.UTC(),
	); err != nil {
		return fmt.Errorf("sqlite: recording search %q: %w", h.Query, err)
	}

	for i, videoID := range videoIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO search_results (search_id, video_id, position) VALUES (?, ?, ?)`,
			h.ID, videoID, offset+i+1,
		); err != nil {
			return fmt.Errorf("sqlite: recording search result %d: %w", offset+i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing search tx: %w", err)
	}
	return nil
}

func (s *TelemetryDB) ListSearches(ctx context.Context, f repository.SearchFilter) ([]model.SearchHistory, int, error) {
	var w where
	dateRangeClause(&w, "searched_at", f.Searched)

	var total int
	if err := s.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM search_history`+w.String(), w.args...,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("sqlite: counting searches: %w", err)
	}

	limit := clampLimit(f.Limit, 20, 100)
	args := append(append([]any{}, w.args...), limit, max(f.Offset, 0))
	rows, err := s.conn.QueryContext(ctx,
		`SELECT id, user_id, query, ip_address, user_agent, results_count, searched_at
		 FROM search_history`+w.String()+`
		 ORDER BY searched_at DESC, id DESC LIMIT ? OFFSET ?`,
		args...,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("sqlite: listing searches: %w", err)
	}
	defer rows.Close()

	var out []model.SearchHistory
	for rows.Next() {
		var h model.SearchHistory
		if err := rows.Scan(&h.ID, &h.UserID, &h.Query, &h.IPAddress, &h.UserAgent,
			&h.ResultsCount, &h.SearchedAt); err != nil {
			return nil, 0, fmt.Errorf("sqlite: scanning search row: %w", err)
		}
		out = append(out, h)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("sqlite: iterating searches: %w", err)
	}
	return out, total, nil
}

func (s *TelemetryDB) SearchSummary(ctx context.Context, r repository.DateRange, popular int) (model.SearchSummary, error) {
	var w where
	dateRangeClause(&w, "searched_at", r)

	var sum model.SearchSummary
	var avg sql.NullFloat64
	if err := s.conn.QueryRowContext(ctx,
		`SELECT COUNT(*), COUNT(DISTINCT query), AVG(results_count) FROM search_history`+w.String(),
		w.args...,
	).Scan(&sum.Total, &sum.UniqueQueries, &avg); err != nil {
		return sum, fmt.Errorf("sqlite: summarising searches: %w", err)
	}
	sum.AverageResults = avg.Float64

	top, err := s.popularQueries(ctx, w, popular)
	if err != nil {
		return sum, err
	}
	sum.Popular = top
	return sum, nil
}

func (s *TelemetryDB) popularQueries(ctx context.Context, w where, limit int) ([]model.QueryCount, error) {
	args := append(append([]any{}, w.args...), clampLimit(limit, 10, 100))
	rows, err := s.conn.QueryContext(ctx,
		`SELECT query, COUNT(*) AS n FROM search_history`+w.String()+`
		 GROUP BY query ORDER BY n DESC, query ASC LIMIT ?`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: popular queries: %w", err)
	}
	defer rows.Close()

	var out []model.QueryCount
	for rows.Next() {
		var q model.QueryCount
		if err := rows.Scan(&q.Query, &q.Count); err != nil {
			return nil, fmt.Errorf("sqlite: scanning popular query: %w", err)
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

func (s *TelemetryDB) ViewCounts(ctx context.Context, videoID string) (map[model.PageType]int, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT page_type, COUNT(*) FROM viewer_history WHERE video_id = ? GROUP BY page_type`,
		videoID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: counting views of %s: %w", videoID, err)
	}
	defer rows.Close()

	counts := map[model.PageType]int{model.PageList: 0, model.PageDetail: 0}
	for rows.Next() {
		var pt string
		var n int
		if err := rows.Scan(&pt, &n); err != nil {
			return nil, fmt.Errorf("sqlite: scanning view count: %w", err)
		}
		counts[model.PageType(pt)] = n
	}
	return counts, rows.Err()
}

// Dashboard gathers the admin overview for activity at or after since.
func (s *TelemetryDB) Dashboard(ctx context.Context, since time.Time) (model.DashboardStats, error) {
	var st model.DashboardStats
	since = since.UTC()

	counts := []struct {
		dest  *int
		query string
		args  []any
	}{
		{&st.TotalVideos, `SELECT COUNT(*) FROM videos`, nil},
		{&st.ActiveVideos, `SELECT COUNT(*) FROM videos WHERE is_active = 1`, nil},
		{&st.TotalUsers, `SELECT COUNT(*) FROM users`, nil},
		{&st.TotalComments, `SELECT COUNT(*) FROM comments`, nil},
		{&st.PendingReview, `SELECT (SELECT COUNT(*) FROM comments WHERE is_approved = 0)
			+ (SELECT COUNT(*) FROM comment_responses WHERE is_approved = 0)`, nil},
		{&st.ViewsInWindow, `SELECT COUNT(*) FROM viewer_history WHERE viewed_at >= ?`, []any{since}},
		{&st.SearchesWindow, `SELECT COUNT(*) FROM search_history WHERE searched_at >= ?`, []any{since}},
	}
	for _, c := range counts {
		if err := s.conn.QueryRowContext(ctx, c.query, c.args...).Scan(c.dest); err != nil {
			return st, fmt.Errorf("sqlite: dashboard count: %w", err)
		}
	}

	var err error
	if st.DailyViews, err = s.daily(ctx, "viewer_history", "viewed_at", since); err != nil {
		return st, err
	}
	if st.DailySearches, err = s.daily(ctx, "search_history", "searched_at", since); err != nil {
		return st, err
	}

	var w where
	dateRangeClause(&w, "searched_at", repository.DateRange{From: &since})
	if st.PopularQueries, err = s.popularQueries(ctx, w, 10); err != nil {
		return st, err
	}
	return st, nil
}

// daily groups rows by the date prefix of column. Stored times are UTC
// strings, so the first ten characters are the calendar day.
func (s *TelemetryDB) daily(ctx context.Context, table, column string, since time.Time) ([]model.DailyCount, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT substr(`+column+`, 1, 10) AS day, COUNT(*) FROM `+table+`
		 WHERE `+column+` >= ? GROUP BY day ORDER BY day`,
		since,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: daily %s: %w", table, err)
	}
	defer rows.Close()

	var out []model.DailyCount
	for rows.Next() {
		var d model.DailyCount
		if err := rows.Scan(&d.Date, &d.Count); err != nil {
			return nil, fmt.Errorf("sqlite: scanning daily %s: %w", table, err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
