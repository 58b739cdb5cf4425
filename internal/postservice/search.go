package postservice

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
)

// searchConditions is shared by the page and count queries so the total always describes the
// same filtered set as the page.
//
//	$1 author names, $2 author ids, $3 tag ids, $4 search pattern, $5 from, $6 to (exclusive)
const searchConditions = `
	p.deleted_at IS NULL
	AND (cardinality($1::text[]) = 0 OR u.name = ANY($1::text[]))
	AND (cardinality($2::bigint[]) = 0 OR p.author_id = ANY($2::bigint[]))
	AND (cardinality($3::bigint[]) = 0 OR p.id IN (
		SELECT pt.post_id
		FROM post_tags pt
		WHERE pt.tag_id = ANY($3::bigint[])
		GROUP BY pt.post_id
		HAVING COUNT(DISTINCT pt.tag_id) = cardinality($3::bigint[])))
	AND ($4::text = '' OR p.title ILIKE $4 OR p.content ILIKE $4 OR p.excerpt ILIKE $4 OR u.name ILIKE $4
		OR EXISTS (
			SELECT 1
			FROM post_tags pt
			JOIN tags t ON t.id = pt.tag_id
			WHERE pt.post_id = p.id AND t.deleted = false AND t.name ILIKE $4)
		OR EXISTS (
			SELECT 1
			FROM comments c
			WHERE c.post_id = p.id AND c.deleted_at IS NULL AND c.content ILIKE $4))
	AND ($5::timestamptz IS NULL OR p.published_at >= $5::timestamptz)
	AND ($6::timestamptz IS NULL OR p.published_at < $6::timestamptz)`

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// normalize applies the sanitization rules: blank names and non-positive or repeated ids are
// dropped, and paging values fall back to defaults.
func (f SearchFilter) normalize() SearchFilter {
	out := SearchFilter{
		AuthorNames: []string{},
		AuthorIDs:   []int{},
		TagIDs:      []int{},
		Search:      strings.TrimSpace(f.Search),
		FromDate:    f.FromDate,
		ToDate:      f.ToDate,
		Page:        f.Page,
		Size:        f.Size,
		Direction:   DirectionDesc,
	}

	seenNames := make(map[string]struct{})
	for _, name := range f.AuthorNames {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, ok := seenNames[name]; ok {
			continue
		}
		seenNames[name] = struct{}{}
		out.AuthorNames = append(out.AuthorNames, name)
	}

	out.AuthorIDs = dedupeIDs(f.AuthorIDs)
	out.TagIDs = dedupeIDs(f.TagIDs)

	if out.Page < 0 {
		out.Page = 0
	}
	if out.Size < 1 {
		out.Size = defaultPageSize
	}
	if out.Size > maxPageSize {
		out.Size = maxPageSize
	}
	if f.Start > 0 {
		out.Page = (f.Start - 1) / out.Size
	}

	if strings.EqualFold(string(f.Direction), string(DirectionAsc)) {
		out.Direction = DirectionAsc
	}

	return out
}

func dedupeIDs(ids []int) []int {
	out := []int{}
	seen := make(map[int]struct{})
	for _, id := range ids {
		if id <= 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func searchPattern(search string) string {
	if search == "" {
		return ""
	}
	return "%" + likeEscaper.Replace(search) + "%"
}

// dayBounds converts the inclusive calendar-day range into [from, to) instants in loc.
func dayBounds(from, to *time.Time, loc *time.Location) (any, any) {
	var lower, upper any

	if from != nil {
		y, m, d := from.Date()
		lower = time.Date(y, m, d, 0, 0, 0, 0, loc)
	}
	if to != nil {
		y, m, d := to.Date()
		upper = time.Date(y, m, d, 0, 0, 0, 0, loc).AddDate(0, 0, 1)
	}

	return lower, upper
}

func (m *PostModel) searchPosts(ctx context.Context, f SearchFilter, loc *time.Location) ([]Post, int, error) {
	from, to := dayBounds(f.FromDate, f.ToDate, loc)

	args := []any{
		pq.Array(f.AuthorNames),
		pq.Array(toInt64s(f.AuthorIDs)),
		pq.Array(toInt64s(f.TagIDs)),
		searchPattern(f.Search),
		from,
		to,
	}

	countQuery := `
		SELECT COUNT(*)
		FROM posts p
		JOIN users u ON u.id = p.author_id
		WHERE ` + searchConditions

	var total int
	if err := m.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	// direction is one of two constants, never caller text
	query := fmt.Sprintf(`
		SELECT %s
		FROM posts p
		JOIN users u ON u.id = p.author_id
		WHERE %s
		ORDER BY p.published_at %s, p.id %s
		LIMIT $7 OFFSET $8`, postColumns, searchConditions, f.Direction, f.Direction)

	args = append(args, f.Size, f.Page*f.Size)

	rows, err := m.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	posts := []Post{}
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, 0, err
		}
		posts = append(posts, *p)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return posts, total, nil
}

func (m *PostModel) listAuthorNames(ctx context.Context) ([]string, error) {
	query := `
		SELECT DISTINCT u.name
		FROM posts p
		JOIN users u ON u.id = p.author_id
		WHERE p.deleted_at IS NULL
		ORDER BY u.name`

	rows, err := m.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}

	return names, rows.Err()
}

func totalPages(total, size int) int {
	if total == 0 {
		return 0
	}
	return (total + size - 1) / size
}
