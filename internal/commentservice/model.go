package commentservice

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/sushihentaime/quillpost/internal/common"
)

var (
	ErrPostNotFound = fmt.Errorf("post %w", common.ErrRecordNotFound)
)

func newCommentModel(db *sql.DB) *CommentModel {
	return &CommentModel{db: db}
}

func (m *CommentModel) getPost(ctx context.Context, postID int) (*post, error) {
	query := `
		SELECT p.id, p.title, p.author_id, u.name, u.email
		FROM posts p
		JOIN users u ON u.id = p.author_id
		WHERE p.id = $1 AND p.deleted_at IS NULL`

	var p post
	err := m.db.QueryRowContext(ctx, query, postID).Scan(&p.ID, &p.Title, &p.AuthorID, &p.AuthorName, &p.AuthorEmail)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, ErrPostNotFound
		default:
			return nil, err
		}
	}

	return &p, nil
}

// insert stores c only while its post is live. The post row is share-locked so an insert racing a
// post deletion waits for it and then sees the post as deleted.
func (m *CommentModel) insert(ctx context.Context, c *Comment) error {
	query := `
		INSERT INTO comments (post_id, user_id, writer_name, writer_email, content)
		SELECT $1::bigint, $2::bigint, $3::text, $4::text, $5::text
		WHERE EXISTS (SELECT 1 FROM posts WHERE id = $1::bigint AND deleted_at IS NULL FOR SHARE)
		RETURNING id, created_at, updated_at`

	var userID sql.NullInt64
	if c.UserID != nil {
		userID = sql.NullInt64{Int64: int64(*c.UserID), Valid: true}
	}

	err := m.db.QueryRowContext(ctx, query, c.PostID, userID, c.WriterName, c.WriterEmail, c.Content).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows), common.ForeignKeyError(err, "comments_post_id_fkey"):
			return ErrPostNotFound
		default:
			return err
		}
	}

	return nil
}

func scanComment(row interface{ Scan(...any) error }) (*Comment, error) {
	var (
		c      Comment
		userID sql.NullInt64
	)

	err := row.Scan(&c.ID, &c.PostID, &userID, &c.WriterName, &c.WriterEmail, &c.Content, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if userID.Valid {
		id := int(userID.Int64)
		c.UserID = &id
	}

	return &c, nil
}

func (m *CommentModel) list(ctx context.Context, postID int) ([]Comment, error) {
	query := `
		SELECT id, post_id, user_id, writer_name, writer_email, content, created_at, updated_at
		FROM comments
		WHERE post_id = $1 AND deleted_at IS NULL
		ORDER BY created_at, id`

	rows, err := m.db.QueryContext(ctx, query, postID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	comments := []Comment{}
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, err
		}
		comments = append(comments, *c)
	}

	return comments, rows.Err()
}

func (m *CommentModel) get(ctx context.Context, postID, commentID int) (*Comment, error) {
	query := `
		SELECT id, post_id, user_id, writer_name, writer_email, content, created_at, updated_at
		FROM comments
		WHERE id = $1 AND post_id = $2 AND deleted_at IS NULL`

	c, err := scanComment(m.db.QueryRowContext(ctx, query, commentID, postID))
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, common.ErrRecordNotFound
		default:
			return nil, err
		}
	}

	return c, nil
}

// updateContent changes only the content; writer identity is fixed at creation.
func (m *CommentModel) updateContent(ctx context.Context, postID, commentID int, content string) (*Comment, error) {
	query := `
		UPDATE comments
		SET content = $1, updated_at = NOW()
		WHERE id = $2 AND post_id = $3 AND deleted_at IS NULL
		RETURNING id, post_id, user_id, writer_name, writer_email, content, created_at, updated_at`

	c, err := scanComment(m.db.QueryRowContext(ctx, query, content, commentID, postID))
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, common.ErrRecordNotFound
		default:
			return nil, err
		}
	}

	return c, nil
}

func (m *CommentModel) softDelete(ctx context.Context, postID, commentID int) error {
	query := `
		UPDATE comments
		SET deleted_at = NOW()
		WHERE id = $1 AND post_id = $2 AND deleted_at IS NULL`

	res, err := m.db.ExecContext(ctx, query, commentID, postID)
	if err != nil {
		return err
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}

	if rows != 1 {
		switch {
		case rows == 0:
			return common.ErrRecordNotFound
		default:
			return fmt.Errorf("expected 1 row to be affected, got %d", rows)
		}
	}

	return nil
}
