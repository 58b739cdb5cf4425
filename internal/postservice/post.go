package postservice

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/sushihentaime/quillpost/internal/common"
)

var (
	ErrAuthorNotFound = fmt.Errorf("author %w", common.ErrRecordNotFound)
)

func newPostModel(db *sql.DB) *PostModel {
	return &PostModel{db: db}
}

const postColumns = `
	p.id, p.title, p.content, p.excerpt, p.author_id, u.name, p.published_at, p.is_published,
	p.created_at, p.updated_at, p.version`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPost(row rowScanner) (*Post, error) {
	var (
		p           Post
		publishedAt sql.NullTime
	)

	err := row.Scan(&p.ID, &p.Title, &p.Content, &p.Excerpt, &p.AuthorID, &p.AuthorName, &publishedAt, &p.IsPublished, &p.CreatedAt, &p.UpdatedAt, &p.Version)
	if err != nil {
		return nil, err
	}

	if publishedAt.Valid {
		t := publishedAt.Time
		p.PublishedAt = &t
	}
	p.Tags = []Tag{}
	p.Comments = []Comment{}

	return &p, nil
}

func (m *PostModel) getAuthorName(q common.Querier, ctx context.Context, id int) (string, error) {
	query := `
		SELECT name
		FROM users
		WHERE id = $1`

	var name string
	err := q.QueryRowContext(ctx, query, id).Scan(&name)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return "", ErrAuthorNotFound
		default:
			return "", err
		}
	}

	return name, nil
}

func (m *PostModel) insertPost(tx *sql.Tx, ctx context.Context, p *Post) error {
	query := `
		INSERT INTO posts (title, content, excerpt, author_id, published_at, is_published)
		VALUES ($1, $2, $3, $4, NOW(), true)
		RETURNING id, published_at, is_published, created_at, updated_at, version`

	var publishedAt sql.NullTime
	err := tx.QueryRowContext(ctx, query, p.Title, p.Content, p.Excerpt, p.AuthorID).Scan(&p.ID, &publishedAt, &p.IsPublished, &p.CreatedAt, &p.UpdatedAt, &p.Version)
	if err != nil {
		switch {
		case common.ForeignKeyError(err, "posts_author_id_fkey"):
			return ErrAuthorNotFound
		default:
			return err
		}
	}

	if publishedAt.Valid {
		t := publishedAt.Time
		p.PublishedAt = &t
	}

	return nil
}

// getPost returns a live post with its author name.
func (m *PostModel) getPost(ctx context.Context, id int) (*Post, error) {
	query := `
		SELECT ` + postColumns + `
		FROM posts p
		JOIN users u ON u.id = p.author_id
		WHERE p.id = $1 AND p.deleted_at IS NULL`

	p, err := scanPost(m.db.QueryRowContext(ctx, query, id))
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, common.ErrRecordNotFound
		default:
			return nil, err
		}
	}

	return p, nil
}

// lockPost reads a live post and holds a row lock on it until tx ends.
func (m *PostModel) lockPost(tx *sql.Tx, ctx context.Context, id int) (*Post, error) {
	query := `
		SELECT ` + postColumns + `
		FROM posts p
		JOIN users u ON u.id = p.author_id
		WHERE p.id = $1 AND p.deleted_at IS NULL
		FOR UPDATE OF p`

	p, err := scanPost(tx.QueryRowContext(ctx, query, id))
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, common.ErrRecordNotFound
		default:
			return nil, err
		}
	}

	return p, nil
}

func (m *PostModel) updatePost(tx *sql.Tx, ctx context.Context, p *Post) error {
	query := `
		UPDATE posts
		SET title = $1, content = $2, excerpt = $3, author_id = $4, updated_at = NOW(), version = version + 1
		WHERE id = $5 AND version = $6 AND deleted_at IS NULL
		RETURNING updated_at, version`

	err := tx.QueryRowContext(ctx, query, p.Title, p.Content, p.Excerpt, p.AuthorID, p.ID, p.Version).Scan(&p.UpdatedAt, &p.Version)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return common.ErrEditConflict
		case common.ForeignKeyError(err, "posts_author_id_fkey"):
			return ErrAuthorNotFound
		default:
			return err
		}
	}

	return nil
}

// softDeletePost flags the post and all of its comments as deleted.
func (m *PostModel) softDeletePost(tx *sql.Tx, ctx context.Context, id int) error {
	postQuery := `
		UPDATE posts
		SET deleted_at = NOW(), version = version + 1
		WHERE id = $1 AND deleted_at IS NULL`

	res, err := tx.ExecContext(ctx, postQuery, id)
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

	commentQuery := `
		UPDATE comments
		SET deleted_at = NOW()
		WHERE post_id = $1 AND deleted_at IS NULL`

	_, err = tx.ExecContext(ctx, commentQuery, id)
	return err
}

// commentsForPosts loads the live comments of each post in creation order, keyed by post id.
func (m *PostModel) commentsForPosts(ctx context.Context, postIDs []int) (map[int][]Comment, error) {
	query := `
		SELECT id, post_id, user_id, writer_name, writer_email, content, created_at, updated_at
		FROM comments
		WHERE post_id = ANY($1) AND deleted_at IS NULL
		ORDER BY created_at, id`

	rows, err := m.db.QueryContext(ctx, query, pq.Array(toInt64s(postIDs)))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	comments := make(map[int][]Comment, len(postIDs))
	for rows.Next() {
		var (
			c      Comment
			userID sql.NullInt64
		)
		err := rows.Scan(&c.ID, &c.PostID, &userID, &c.WriterName, &c.WriterEmail, &c.Content, &c.CreatedAt, &c.UpdatedAt)
		if err != nil {
			return nil, err
		}
		if userID.Valid {
			id := int(userID.Int64)
			c.UserID = &id
		}
		comments[c.PostID] = append(comments[c.PostID], c)
	}

	return comments, rows.Err()
}

// attachRelations fills in tags and comments for every post in place.
func (m *PostModel) attachRelations(ctx context.Context, posts []Post) error {
	if len(posts) == 0 {
		return nil
	}

	ids := make([]int, 0, len(posts))
	for _, p := range posts {
		ids = append(ids, p.ID)
	}

	tags, err := m.tagsForPosts(ctx, ids)
	if err != nil {
		return err
	}

	comments, err := m.commentsForPosts(ctx, ids)
	if err != nil {
		return err
	}

	for i := range posts {
		if t, ok := tags[posts[i].ID]; ok {
			posts[i].Tags = t
		}
		if c, ok := comments[posts[i].ID]; ok {
			posts[i].Comments = c
		}
	}

	return nil
}
