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
)

// postStore holds the SQL shared by the two discussion trees. The tables
// have identical shapes and differ only in name and in the column that
// scopes them (video_id for comments, comment_id for responses).
type postStore struct {
	conn     *sql.DB
	table    string
	scope    string
	resource string
}

const postColumns = `t.id, t.user_id, t.name, t.content, t.is_anonymous, t.is_approved,
	t.parent_id, t.edit_token, t.ip_address, t.user_agent, t.created_at, t.updated_at`

// selectPosts joins the author's username and counts approved direct
// replies so list views can offer lazy expansion.
func (s *postStore) selectPosts() string {
	return `SELECT ` + postColumns + `, t.` + s.scope + `,
		COALESCE(u.username, ''),
		(SELECT COUNT(*) FROM ` + s.table + ` c WHERE c.parent_id = t.id AND c.is_approved = 1)
		FROM ` + s.table + ` t
		LEFT JOIN users u ON u.id = t.user_id`
}

func scanPost(row interface{ Scan(...any) error }) (*model.Post, string, error) {
	var p model.Post
	var scopeID string
	err := row.Scan(
		&p.ID, &p.UserID, &p.Name, &p.Content, &p.IsAnonymous, &p.IsApproved,
		&p.ParentID, &p.EditToken, &p.IPAddress, &p.UserAgent, &p.CreatedAt, &p.UpdatedAt,
		&scopeID, &p.Username, &p.ReplyCount,
	)
	if err != nil {
		return nil, "", err
	}
	return &p, scopeID, nil
}

func (s *postStore) insert(ctx context.Context, p *model.Post, scopeID string) error {
	now := time.Now().UTC()
	p.ID = xid.New().String()
	p.CreatedAt = now
	p.UpdatedAt = now

	_, err := s.conn.ExecContext(ctx,
		`INSERT INTO `+s.table+` (id, `+s.scope+`, user_id, name, content, is_anonymous, is_approved,
			parent_id, edit_token, ip_address, user_agent, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, scopeID, p.UserID, p.Name, p.Content, p.IsAnonymous, p.IsApproved,
		p.ParentID, p.EditToken, p.IPAddress, p.UserAgent, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting %s: %w", s.resource, err)
	}
	return nil
}

func (s *postStore) get(ctx context.Context, id string) (*model.Post, string, error) {
	p, scopeID, err := scanPost(s.conn.QueryRowContext(ctx, s.selectPosts()+` WHERE t.id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, "", apperror.NotFound(s.resource, id)
		}
		return nil, "", fmt.Errorf("sqlite: getting %s %s: %w", s.resource, id, err)
	}
	return p, scopeID, nil
}

func (s *postStore) updateContent(ctx context.Context, id, content string) error {
	result, err := s.conn.ExecContext(ctx,
		`UPDATE `+s.table+` SET content = ?, updated_at = ? WHERE id = ?`,
		content, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating %s %s: %w", s.resource, id, err)
	}
	return checkAffected(result, apperror.NotFound(s.resource, id))
}

// delete is a hard delete; children go through ON DELETE CASCADE.
func (s *postStore) delete(ctx context.Context, id string) error {
	result, err := s.conn.ExecContext(ctx, `DELETE FROM `+s.table+` WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting %s %s: %w", s.resource, id, err)
	}
	return checkAffected(result, apperror.NotFound(s.resource, id))
}

func (s *postStore) setApproved(ctx context.Context, id string, approved bool) error {
	result, err := s.conn.ExecContext(ctx,
		`UPDATE `+s.table+` SET is_approved = ?, updated_at = ? WHERE id = ?`,
		approved, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("sqlite: setting approval on %s %s: %w", s.resource, id, err)
	}
	return checkAffected(result, apperror.NotFound(s.resource, id))
}

// children lists one level of approved posts, newest first. An empty
// parentID selects the top level of scopeID.
func (s *postStore) children(ctx context.Context, scopeID, parentID string) ([]*model.Post, []string, error) {
	query := s.selectPosts()
	var args []any
	if parentID == "" {
		query += ` WHERE t.` + s.scope + ` = ? AND t.parent_id IS NULL AND t.is_approved = 1`
		args = append(args, scopeID)
	} else {
		query += ` WHERE t.parent_id = ? AND t.is_approved = 1`
		args = append(args, parentID)
	}
	query += ` ORDER BY t.created_at DESC, t.id DESC`

	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, nil, fmt.Errorf("sqlite: listing %s children: %w", s.resource, err)
	}
	defer rows.Close()

	var posts []*model.Post
	var scopes []string
	for rows.Next() {
		p, scopeID, err := scanPost(rows)
		if err != nil {
			return nil, nil, fmt.Errorf("sqlite: scanning %s row: %w", s.resource, err)
		}
		posts = append(posts, p)
		scopes = append(scopes, scopeID)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("sqlite: iterating %s rows: %w", s.resource, err)
	}
	return posts, scopes, nil
}

// countApproved counts approved posts at every depth within scopeID.
func (s *postStore) countApproved(ctx context.Context, scopeID string) (int, error) {
	var n int
	err := s.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM `+s.table+` WHERE `+s.scope+` = ? AND is_approved = 1`,
		scopeID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("sqlite: counting %s: %w", s.resource, err)
	}
	return n, nil
}
