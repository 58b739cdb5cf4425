package postservice

import (
	"context"
	"database/sql"
	"sort"
	"strings"

	"github.com/lib/pq"
)

// ParseTagList splits a comma separated tag string into normalized, distinct tag names in
// first-seen order.
func ParseTagList(raw string) []string {
	names := []string{}
	seen := make(map[string]struct{})

	for _, segment := range strings.Split(raw, ",") {
		name := strings.ToLower(strings.TrimSpace(segment))
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}

	return names
}

// reconcileTags makes the post's tag set exactly the tags named in raw and returns those tags
// together with the ids that were detached.
func (m *PostModel) reconcileTags(tx *sql.Tx, ctx context.Context, postID int, raw string) ([]Tag, []int, error) {
	previous, err := m.tagIDsForPost(tx, ctx, postID)
	if err != nil {
		return nil, nil, err
	}

	names := ParseTagList(raw)
	if err := m.lockTags(tx, ctx, names, previous); err != nil {
		return nil, nil, err
	}

	// new names are inserted in sorted order so racing inserts of the same names queue alike
	ordered := make([]string, len(names))
	copy(ordered, names)
	sort.Strings(ordered)

	byName := make(map[string]Tag, len(names))
	for _, name := range ordered {
		tag, err := m.findOrCreateTag(tx, ctx, name)
		if err != nil {
			return nil, nil, err
		}
		byName[name] = *tag
	}

	tags := make([]Tag, 0, len(names))
	keep := make(map[int]struct{}, len(names))
	for _, name := range names {
		tag := byName[name]
		tags = append(tags, tag)
		keep[tag.ID] = struct{}{}
	}

	ids := make([]int, 0, len(tags))
	for _, t := range tags {
		ids = append(ids, t.ID)
	}

	detachQuery := `
		DELETE FROM post_tags
		WHERE post_id = $1 AND NOT (tag_id = ANY($2))`

	if _, err := tx.ExecContext(ctx, detachQuery, postID, pq.Array(toInt64s(ids))); err != nil {
		return nil, nil, err
	}

	attachQuery := `
		INSERT INTO post_tags (post_id, tag_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING`

	for _, id := range ids {
		if _, err := tx.ExecContext(ctx, attachQuery, postID, id); err != nil {
			return nil, nil, err
		}
	}

	var detached []int
	for _, id := range previous {
		if _, ok := keep[id]; !ok {
			detached = append(detached, id)
		}
	}

	return tags, detached, nil
}
