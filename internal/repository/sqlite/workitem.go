package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sakif/videohub/internal/apperror"
	"github.com/sakif/videohub/internal/model"
	"github.com/sakif/videohub/internal/repository"
)

// StoryDB stores delayed-print stories.
type StoryDB struct {
	conn *sql.DB
}

// DocumentDB stores uploaded PDFs and their extraction results.
type DocumentDB struct {
	conn *sql.DB
}

var (
	_ repository.StoryRepository    = (*StoryDB)(nil)
	_ repository.DocumentRepository = (*DocumentDB)(nil)
)

func (db *DB) Stories() *StoryDB {
	return &StoryDB{conn: db.conn}
}

func (db *DB) Documents() *DocumentDB {
	return &DocumentDB{conn: db.conn}
}

// ===== STORIES =====

const storyColumns = `id, title, content, publish_after, status, printed_at, error_message,
	created_at, updated_at`

func scanStory(row interface{ Scan(...any) error }) (*model.Story, error) {
	var s model.Story
	var status string
	if err := row.Scan(&s.ID, &s.Title, &s.Content, &s.PublishAfter, &status,
		&s.PrintedAt, &s.Error, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, err
	}
	s.Status = model.WorkStatus(status)
	return &s, nil
}

func (s *StoryDB) Create(ctx context.Context, st *model.Story) error {
	now := time.Now().UTC()
	st.ID = uuid.NewString()
	st.CreatedAt = now
	st.UpdatedAt = now
	if st.Status == "" {
		st.Status = model.StatusPending
	}

	_, err := s.conn.ExecContext(ctx,
		`INSERT INTO stories (`+storyColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		st.ID, st.Title, st.Content, st.PublishAfter, string(st.Status), st.PrintedAt, st.Error,
		st.CreatedAt, st.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting story: %w", err)
	}
	return nil
}

func (s *StoryDB) GetByID(ctx context.Context, id string) (*model.Story, error) {
	st, err := scanStory(s.conn.QueryRowContext(ctx,
		`SELECT `+storyColumns+` FROM stories WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("story", id)
		}
		return nil, fmt.Errorf("sqlite: getting story %s: %w", id, err)
	}
	return st, nil
}

func (s *StoryDB) List(ctx context.Context, opts repository.ListOptions) ([]model.Story, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT `+storyColumns+` FROM stories ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`,
		clampLimit(opts.Limit, 50, 200), max(opts.Offset, 0),
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing stories: %w", err)
	}
	defer rows.Close()

	var out []model.Story
	for rows.Next() {
		st, err := scanStory(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning story row: %w", err)
		}
		out = append(out, *st)
	}
	return out, rows.Err()
}

func (s *StoryDB) UpdateStatus(ctx context.Context, id string, status model.WorkStatus, printedAt *time.Time) error {
	result, err := s.conn.ExecContext(ctx,
		`UPDATE stories SET status = ?, printed_at = COALESCE(?, printed_at), updated_at = ? WHERE id = ?`,
		string(status), printedAt, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating story %s: %w", id, err)
	}
	return checkAffected(result, apperror.NotFound("story", id))
}

func (s *StoryDB) MarkFailed(ctx context.Context, id, reason string) error {
	result, err := s.conn.ExecContext(ctx,
		`UPDATE stories SET status = ?, error_message = ?, updated_at = ? WHERE id = ?`,
		string(model.StatusFailed), reason, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("sqlite: failing story %s: %w", id, err)
	}
	return checkAffected(result, apperror.NotFound("story", id))
}

// ===== DOCUMENTS =====

const documentColumns = `id, title, file_path, original_name, process_after, status,
	extracted_text, created_at, updated_at`

func scanDocument(row interface{ Scan(...any) error }) (*model.PDFDocument, error) {
	var d model.PDFDocument
	var status string
	if err := row.Scan(&d.ID, &d.Title, &d.FilePath, &d.OriginalName, &d.ProcessAfter, &status,
		&d.ExtractedText, &d.CreatedAt, &d.UpdatedAt); err != nil {
		return nil, err
	}
	d.Status = model.WorkStatus(status)
	return &d, nil
}

func (s *DocumentDB) Create(ctx context.Context, d *model.PDFDocument) error {
	now := time.Now().UTC()
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	d.CreatedAt = now
	d.UpdatedAt = now
	if d.Status == "" {
		d.Status = model.StatusPending
	}

	_, err := s.conn.ExecContext(ctx,
		`INSERT INTO pdf_documents (`+documentColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.Title, d.FilePath, d.OriginalName, d.ProcessAfter, string(d.Status),
		d.ExtractedText, d.CreatedAt, d.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting document: %w", err)
	}
	return nil
}

func (s *DocumentDB) GetByID(ctx context.Context, id string) (*model.PDFDocument, error) {
	d, err := scanDocument(s.conn.QueryRowContext(ctx,
		`SELECT `+documentColumns+` FROM pdf_documents WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("document", id)
		}
		return nil, fmt.Errorf("sqlite: getting document %s: %w", id, err)
	}
	return d, nil
}

func (s *DocumentDB) List(ctx context.Context, opts repository.ListOptions) ([]model.PDFDocument, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT `+documentColumns+` FROM pdf_documents ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`,
		clampLimit(opts.Limit, 50, 200), max(opts.Offset, 0),
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing documents: %w", err)
	}
	defer rows.Close()

	var out []model.PDFDocument
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning document row: %w", err)
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

func (s *DocumentDB) UpdateStatus(ctx context.Context, id string, status model.WorkStatus) error {
	result, err := s.conn.ExecContext(ctx,
		`UPDATE pdf_documents SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating document %s: %w", id, err)
	}
	return checkAffected(result, apperror.NotFound("document", id))
}

func (s *DocumentDB) SaveResult(ctx context.Context, id string, status model.WorkStatus, text string) error {
	result, err := s.conn.ExecContext(ctx,
		`UPDATE pdf_documents SET status = ?, extracted_text = ?, updated_at = ? WHERE id = ?`,
		string(status), text, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("sqlite: saving document %s result: %w", id, err)
	}
	return checkAffected(result, apperror.NotFound("document", id))
}
