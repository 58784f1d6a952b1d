// Package sqlite implements the repository interfaces on SQLite using the
// pure-Go modernc.org/sqlite driver (no cgo).
//
// DB owns the connection. Each table group is exposed as a small store
// (db.Users(), db.Comments(), ...) so method names stay short and every
// store can be checked against its repository interface at compile time.
package sqlite

import (
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"
)

// DB wraps a *sql.DB connection pool.
type DB struct {
	conn *sql.DB
}

// New opens (or creates) the database at dbPath and runs migrations.
//
// Connection pragmas go through the DSN so that every pooled connection
// gets them, not just the first one:
//   - foreign_keys(1): ON DELETE CASCADE is what removes replies and history
//   - busy_timeout:    writers wait instead of failing with SQLITE_BUSY
//   - _time_format:    times are written as sortable UTC strings, so date
//     range filters can compare columns as text
func New(dbPath string) (*DB, error) {
	memory := dbPath == ":memory:" || strings.Contains(dbPath, "mode=memory")

	conn, err := sql.Open("sqlite", dsn(dbPath, memory))
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// An in-memory database lives inside a single connection.
	if memory {
		conn.SetMaxOpenConns(1)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

func dsn(path string, memory bool) string {
	params := []string{
		"_pragma=foreign_keys(1)",
		"_pragma=busy_timeout(5000)",
		"_time_format=sqlite",
	}
	if !memory {
		params = append(params, "_pragma=journal_mode(WAL)")
	}

	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + strings.Join(params, "&")
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping is used by the health check.
func (db *DB) Ping() error {
	return db.conn.Ping()
}

// migrate creates all tables. Every statement is idempotent.
func (db *DB) migrate() error {
	steps := []struct {
		name string
		sql  string
	}{
		{"users", `
			CREATE TABLE IF NOT EXISTS users (
				id                TEXT PRIMARY KEY,
				username          TEXT NOT NULL,
				email             TEXT NOT NULL UNIQUE,
				password_hash     TEXT NOT NULL DEFAULT '',
				is_email_verified INTEGER NOT NULL DEFAULT 0,
				is_admin          INTEGER NOT NULL DEFAULT 0,
				github_id         INTEGER UNIQUE,
				avatar_url        TEXT NOT NULL DEFAULT '',
				created_at        DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
				updated_at        DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
			);`},
		{"email_verifications", `
			CREATE TABLE IF NOT EXISTS email_verifications (
				id         TEXT PRIMARY KEY,
				user_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
				code       TEXT NOT NULL,
				created_at DATETIME NOT NULL,
				expires_at DATETIME NOT NULL,
				is_used    INTEGER NOT NULL DEFAULT 0
			);
			CREATE INDEX IF NOT EXISTS idx_email_verifications_user_code
				ON email_verifications(user_id, code, created_at);`},
		{"verification_attempts", `
			CREATE TABLE IF NOT EXISTS verification_attempts (
				user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
				date    TEXT NOT NULL,
				count   INTEGER NOT NULL DEFAULT 0,
				PRIMARY KEY (user_id, date)
			);`},
		{"videos", `
			CREATE TABLE IF NOT EXISTS videos (
				id            TEXT PRIMARY KEY,
				user_id       TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
				title         TEXT NOT NULL,
				description   TEXT NOT NULL DEFAULT '',
				youtube_link  TEXT NOT NULL,
				is_active     INTEGER NOT NULL DEFAULT 1,
				password_hash TEXT NOT NULL DEFAULT '',
				admin_notes   TEXT NOT NULL DEFAULT '',
				created_at    DATETIME NOT NULL,
				updated_at    DATETIME NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_videos_created_at ON videos(created_at);`},
		{"comments", `
			CREATE TABLE IF NOT EXISTS comments (
				id           TEXT PRIMARY KEY,
				video_id     TEXT NOT NULL REFERENCES videos(id) ON DELETE CASCADE,
				user_id      TEXT REFERENCES users(id) ON DELETE CASCADE,
				name         TEXT,
				content      TEXT NOT NULL,
				is_anonymous INTEGER NOT NULL DEFAULT 0,
				is_approved  INTEGER NOT NULL DEFAULT 1,
				parent_id    TEXT REFERENCES comments(id) ON DELETE CASCADE,
				edit_token   TEXT,
				ip_address   TEXT NOT NULL DEFAULT '',
				user_agent   TEXT NOT NULL DEFAULT '',
				created_at   DATETIME NOT NULL,
				updated_at   DATETIME NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_comments_video ON comments(video_id, parent_id);`},
		{"comment_responses", `
			CREATE TABLE IF NOT EXISTS comment_responses (
				id           TEXT PRIMARY KEY,
				comment_id   TEXT NOT NULL REFERENCES comments(id) ON DELETE CASCADE,
				user_id      TEXT REFERENCES users(id) ON DELETE CASCADE,
				name         TEXT,
				content      TEXT NOT NULL,
				is_anonymous INTEGER NOT NULL DEFAULT 0,
				is_approved  INTEGER NOT NULL DEFAULT 1,
				parent_id    TEXT REFERENCES comment_responses(id) ON DELETE CASCADE,
				edit_token   TEXT,
				ip_address   TEXT NOT NULL DEFAULT '',
				user_agent   TEXT NOT NULL DEFAULT '',
				created_at   DATETIME NOT NULL,
				updated_at   DATETIME NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_responses_comment ON comment_responses(comment_id, parent_id);`},
		{"viewer_history", `
			CREATE TABLE IF NOT EXISTS viewer_history (
				id         TEXT PRIMARY KEY,
				user_id    TEXT REFERENCES users(id) ON DELETE SET NULL,
				video_id   TEXT NOT NULL REFERENCES videos(id) ON DELETE CASCADE,
				ip_address TEXT NOT NULL DEFAULT '',
				user_agent TEXT NOT NULL DEFAULT '',
				page_type  TEXT NOT NULL CHECK (page_type IN ('list', 'detail')),
				viewed_at  DATETIME NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_viewer_history_viewed_at ON viewer_history(viewed_at);`},
		{"search_history", `
			CREATE TABLE IF NOT EXISTS search_history (
				id            TEXT PRIMARY KEY,
				user_id       TEXT REFERENCES users(id) ON DELETE SET NULL,
				query         TEXT NOT NULL,
				ip_address    TEXT NOT NULL DEFAULT '',
				user_agent    TEXT NOT NULL DEFAULT '',
				results_count INTEGER NOT NULL DEFAULT 0,
				searched_at   DATETIME NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_search_history_searched_at ON search_history(searched_at);
			CREATE TABLE IF NOT EXISTS search_results (
				search_id TEXT NOT NULL REFERENCES search_history(id) ON DELETE CASCADE,
				video_id  TEXT NOT NULL REFERENCES videos(id) ON DELETE CASCADE,
				position  INTEGER NOT NULL,
				PRIMARY KEY (search_id, position)
			);`},
		{"stories", `
			CREATE TABLE IF NOT EXISTS stories (
				id            TEXT PRIMARY KEY,
				title         TEXT NOT NULL,
				content       TEXT NOT NULL,
				publish_after INTEGER NOT NULL DEFAULT 0,
				status        TEXT NOT NULL DEFAULT 'pending',
				printed_at    DATETIME,
				error_message TEXT NOT NULL DEFAULT '',
				created_at    DATETIME NOT NULL,
				updated_at    DATETIME NOT NULL
			);`},
		{"pdf_documents", `
			CREATE TABLE IF NOT EXISTS pdf_documents (
				id             TEXT PRIMARY KEY,
				title          TEXT NOT NULL,
				file_path      TEXT NOT NULL,
				original_name  TEXT NOT NULL DEFAULT '',
				process_after  INTEGER NOT NULL DEFAULT 0,
				status         TEXT NOT NULL DEFAULT 'pending',
				extracted_text TEXT NOT NULL DEFAULT '',
				created_at     DATETIME NOT NULL,
				updated_at     DATETIME NOT NULL
			);`},
		{"scheduled_tasks", `
			CREATE TABLE IF NOT EXISTS scheduled_tasks (
				id         TEXT PRIMARY KEY,
				name       TEXT NOT NULL,
				payload    BLOB NOT NULL,
				run_at     DATETIME NOT NULL,
				status     TEXT NOT NULL DEFAULT 'scheduled',
				attempts   INTEGER NOT NULL DEFAULT 0,
				last_error TEXT NOT NULL DEFAULT '',
				created_at DATETIME NOT NULL,
				updated_at DATETIME NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_scheduled_tasks_status ON scheduled_tasks(status, run_at);`},
	}

	for _, step := range steps {
		if _, err := db.conn.Exec(step.sql); err != nil {
			return fmt.Errorf("creating %s: %w", step.name, err)
		}
	}

	if err := db.addColumnIfNotExists("videos", "admin_notes", "TEXT NOT NULL DEFAULT ''"); err != nil {
		return fmt.Errorf("adding admin_notes to videos: %w", err)
	}
	if err := db.addColumnIfNotExists("stories", "error_message", "TEXT NOT NULL DEFAULT ''"); err != nil {
		return fmt.Errorf("adding error_message to stories: %w", err)
	}

	return nil
}

// addColumnIfNotExists adds a column to an existing table when older
// databases predate it. SQLite has no ADD COLUMN IF NOT EXISTS.
func (db *DB) addColumnIfNotExists(table, column, definition string) error {
	var count int
	err := db.conn.QueryRow(
		`SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?`,
		table, column,
	).Scan(&count)
	if err != nil {
		return fmt.Errorf("checking column %s.%s: %w", table, column, err)
	}
	if count > 0 {
		return nil
	}
	_, err = db.conn.Exec(fmt.Sprintf(
		`ALTER TABLE %s ADD COLUMN %s %s`, table, column, definition,
	))
	return err
}

// checkAffected turns a zero-row UPDATE/DELETE into a not-found error.
func checkAffected(result sql.Result, notFound error) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}

// placeholders returns "?, ?, ?" for n arguments.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func stringArgs(ids []string) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}

func clampLimit(limit, def, max int) int {
	if limit <= 0 {
		return def
	}
	if limit > max {
		return max
	}
	return limit
}
