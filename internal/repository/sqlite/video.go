package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/videohub/internal/apperror"
	"github.com/sakif/videohub/internal/model"
	"github.com/sakif/videohub/internal/repository"
)

// VideoDB stores video entries.
type VideoDB struct {
	conn *sql.DB
}

var _ repository.VideoRepository = (*VideoDB)(nil)

func (db *DB) Videos() *VideoDB {
	return &VideoDB{conn: db.conn}
}

const videoColumns = `id, user_id, title, description, youtube_link, is_active,
	password_hash, admin_notes, created_at, updated_at`

func scanVideo(row interface{ Scan(...any) error }) (*model.Video, error) {
	var v model.Video
	if err := row.Scan(
		&v.ID, &v.UserID, &v.Title, &v.Description, &v.YouTubeLink, &v.IsActive,
		&v.PasswordHash, &v.AdminNotes, &v.CreatedAt, &v.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &v, nil
}

func (s *VideoDB) Create(ctx context.Context, v *model.Video) error {
	now := time.Now().UTC()
	v.ID = xid.New().String()
	v.CreatedAt = now
	v.UpdatedAt = now

	_, err := s.conn.ExecContext(ctx,
		`INSERT INTO videos (`+videoColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		v.ID, v.UserID, v.Title, v.Description, v.YouTubeLink, v.IsActive,
		v.PasswordHash, v.AdminNotes, v.CreatedAt, v.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting video: %w", err)
	}
	return nil
}

func (s *VideoDB) GetByID(ctx context.Context, id string) (*model.Video, error) {
	v, err := scanVideo(s.conn.QueryRowContext(ctx,
		`SELECT `+videoColumns+` FROM videos WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("video", id)
		}
		return nil, fmt.Errorf("sqlite: getting video %s: %w", id, err)
	}
	return v, nil
}

func (s *VideoDB) Update(ctx context.Context, v *model.Video) error {
	v.UpdatedAt = time.Now().UTC()

	result, err := s.conn.ExecContext(ctx,
		`UPDATE videos
		 SET title = ?, description = ?, youtube_link = ?, is_active = ?,
		     password_hash = ?, admin_notes = ?, updated_at = ?
		 WHERE id = ?`,
		v.Title, v.Description, v.YouTubeLink, v.IsActive,
		v.PasswordHash, v.AdminNotes, v.UpdatedAt, v.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating video %s: %w", v.ID, err)
	}
	return checkAffected(result, apperror.NotFound("video", v.ID))
}

// Delete removes the video; comments, responses and telemetry rows go
// with it through ON DELETE CASCADE.
func (s *VideoDB) Delete(ctx context.Context, id string) error {
	result, err := s.conn.ExecContext(ctx, `DELETE FROM videos WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting video %s: %w", id, err)
	}
	return checkAffected(result, apperror.NotFound("video", id))
}

// List returns one page of matching videos, newest first, and the total
// number of matches.
func (s *VideoDB) List(ctx context.Context, f repository.VideoFilter) ([]model.Video, int, error) {
	var w where
	if f.ActiveOnly {
		w.add("is_active = 1")
	}
	if f.SearchLink {
		likeClause(&w, f.Query, "title", "description", "youtube_link")
	} else {
		likeClause(&w, f.Query, "title", "description")
	}
	dateRangeClause(&w, "created_at", f.Created)

	var total int
	if err := s.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM videos`+w.String(), w.args...,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("sqlite: counting videos: %w", err)
	}

	limit := clampLimit(f.Limit, 18, 100)
	offset := max(f.Offset, 0)

	args := append(append([]any{}, w.args...), limit, offset)
	rows, err := s.conn.QueryContext(ctx,
		`SELECT `+videoColumns+` FROM videos`+w.String()+`
		 ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`,
		args...,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("sqlite: listing videos: %w", err)
	}
	defer rows.Close()

	videos := make([]model.Video, 0, limit)
	for rows.Next() {
		v, err := scanVideo(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("sqlite: scanning video row: %w", err)
		}
		videos = append(videos, *v)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("sqlite: iterating videos: %w", err)
	}

	return videos, total, nil
}

// SetActive flips is_active on every listed video and reports how many
// rows changed.
func (s *VideoDB) SetActive(ctx context.Context, ids []string, active bool) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	args := append([]any{active, time.Now().UTC()}, stringArgs(ids)...)
	result, err := s.conn.ExecContext(ctx,
		`UPDATE videos SET is_active = ?, updated_at = ? WHERE id IN (`+placeholders(len(ids))+`)`,
		args...,
	)
	if err != nil {
		return 0, fmt.Errorf("sqlite: bulk updating videos: %w", err)
	}
	return result.RowsAffected()
}

func (s *VideoDB) DeleteMany(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	result, err := s.conn.ExecContext(ctx,
		`DELETE FROM videos WHERE id IN (`+placeholders(len(ids))+`)`,
		stringArgs(ids)...,
	)
	if err != nil {
		return 0, fmt.Errorf("sqlite: bulk deleting videos: %w", err)
	}
	return result.RowsAffected()
}
