package postservice

import (
	"context"
	"database/sql"
	"errors"
	"sort"

	"github.com/lib/pq"
	"github.com/sushihentaime/quillpost/internal/common"
)

// findOrCreateTag returns the tag with the given normalized name, creating it when it does not
// exist and reviving it when it was garbage collected. The row stays share-locked until tx ends
// so a concurrent collectGarbage cannot retire it underneath the new link.
func (m *PostModel) findOrCreateTag(tx *sql.Tx, ctx context.Context, name string) (*Tag, error) {
	tag, deleted, err := m.lockTagByName(tx, ctx, name)
	switch {
	case err == nil:
		if deleted {
			if err := m.reviveTag(tx, ctx, tag.ID); err != nil {
				return nil, err
			}
		}
		return tag, nil
	case !errors.Is(err, common.ErrRecordNotFound):
		return nil, err
	}

	query := `
		INSERT INTO tags (name)
		VALUES ($1)
		ON CONFLICT (name) DO NOTHING
		RETURNING id, name`

	var t Tag
	err = tx.QueryRowContext(ctx, query, name).Scan(&t.ID, &t.Name)
	if err == nil {
		return &t, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	// lost the race to a concurrent insert; the committed row is visible now
	tag, deleted, err = m.lockTagByName(tx, ctx, name)
	if err != nil {
		return nil, err
	}
	if deleted {
		if err := m.reviveTag(tx, ctx, tag.ID); err != nil {
			return nil, err
		}
	}

	return tag, nil
}

func (m *PostModel) lockTagByName(tx *sql.Tx, ctx context.Context, name string) (*Tag, bool, error) {
	query := `
		SELECT id, name, deleted
		FROM tags
		WHERE name = $1
		FOR SHARE`

	var (
		t       Tag
		deleted bool
	)
	err := tx.QueryRowContext(ctx, query, name).Scan(&t.ID, &t.Name, &deleted)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, false, common.ErrRecordNotFound
		default:
			return nil, false, err
		}
	}

	return &t, deleted, nil
}

func (m *PostModel) reviveTag(tx *sql.Tx, ctx context.Context, id int) error {
	query := `
		UPDATE tags
		SET deleted = false
		WHERE id = $1`

	_, err := tx.ExecContext(ctx, query, id)
	return err
}

// collectGarbage marks every tag in tagIDs that no live post references as deleted. The rows
// are locked in id order by a single statement so two transactions retiring overlapping tag sets
// always queue on the same row first.
func (m *PostModel) collectGarbage(tx *sql.Tx, ctx context.Context, tagIDs []int) error {
	if len(tagIDs) == 0 {
		return nil
	}

	ids := sortedIDs(tagIDs)

	lockQuery := `
		SELECT id
		FROM tags
		WHERE id = ANY($1) AND deleted = false
		ORDER BY id
		FOR UPDATE`

	if err := drainIDs(tx.QueryContext(ctx, lockQuery, pq.Array(toInt64s(ids)))); err != nil {
		return err
	}

	retireQuery := `
		UPDATE tags
		SET deleted = true
		WHERE id = ANY($1) AND deleted = false
		AND NOT EXISTS (
			SELECT 1
			FROM post_tags pt
			JOIN posts p ON p.id = pt.post_id
			WHERE pt.tag_id = tags.id AND p.deleted_at IS NULL
		)`

	_, err := tx.ExecContext(ctx, retireQuery, pq.Array(toInt64s(ids)))
	return err
}

// lockTags takes update locks, in id order, on the existing tags named in names and on the tags
// listed in ids. Called before a reconcile touches any tag so that concurrent reconciles of
// different posts cannot hold share locks the other needs to upgrade.
func (m *PostModel) lockTags(tx *sql.Tx, ctx context.Context, names []string, ids []int) error {
	if len(names) == 0 && len(ids) == 0 {
		return nil
	}

	query := `
		SELECT id
		FROM tags
		WHERE name = ANY($1) OR id = ANY($2)
		ORDER BY id
		FOR UPDATE`

	return drainIDs(tx.QueryContext(ctx, query, pq.Array(names), pq.Array(toInt64s(ids))))
}

func drainIDs(rows *sql.Rows, err error) error {
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return err
		}
	}

	return rows.Err()
}

func sortedIDs(ids []int) []int {
	out := make([]int, len(ids))
	copy(out, ids)
	sort.Ints(out)
	return out
}

// listTags returns every live tag ordered by name.
func (m *PostModel) listTags(ctx context.Context) ([]Tag, error) {
	query := `
		SELECT id, name
		FROM tags
		WHERE deleted = false
		ORDER BY name`

	rows, err := m.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tags := []Tag{}
	for rows.Next() {
		var t Tag
		if err := rows.Scan(&t.ID, &t.Name); err != nil {
			return nil, err
		}
		tags = append(tags, t)
	}

	return tags, rows.Err()
}

func (m *PostModel) tagIDsForPost(q common.Querier, ctx context.Context, postID int) ([]int, error) {
	query := `
		SELECT tag_id
		FROM post_tags
		WHERE post_id = $1`

	rows, err := q.QueryContext(ctx, query, postID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

// tagsForPosts loads the live tags of each post, keyed by post id.
func (m *PostModel) tagsForPosts(ctx context.Context, postIDs []int) (map[int][]Tag, error) {
	query := `
		SELECT pt.post_id, t.id, t.name
		FROM post_tags pt
		JOIN tags t ON t.id = pt.tag_id
		WHERE pt.post_id = ANY($1) AND t.deleted = false
		ORDER BY t.name`

	rows, err := m.db.QueryContext(ctx, query, pq.Array(toInt64s(postIDs)))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tags := make(map[int][]Tag, len(postIDs))
	for rows.Next() {
		var (
			postID int
			t      Tag
		)
		if err := rows.Scan(&postID, &t.ID, &t.Name); err != nil {
			return nil, err
		}
		tags[postID] = append(tags[postID], t)
	}

	return tags, rows.Err()
}

func toInt64s(ids []int) []int64 {
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		out = append(out, int64(id))
	}
	return out
}
