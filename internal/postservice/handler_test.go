package postservice

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sushihentaime/quillpost/internal/common"
)

type testUsers struct {
	admin  *common.Caller
	author *common.Caller
	other  *common.Caller
}

// setupTestUser inserts a user directly so the post tests do not depend on the user service.
func setupTestUser(t *testing.T, db *sql.DB, name, email string, role common.Role) *common.Caller {
	randomBytes := make([]byte, 16)
	_, err := rand.Read(randomBytes)
	require.NoError(t, err)

	query := `
		INSERT INTO users (name, email, password, role)
		VALUES ($1, $2, $3, $4)
		RETURNING id`

	var id int
	err = db.QueryRow(query, name, email, randomBytes, string(role)).Scan(&id)
	require.NoError(t, err)

	return &common.Caller{ID: id, Name: name, Email: email, Role: role}
}

func setupTestEnvironment(t *testing.T) (*PostService, *sql.DB, testUsers, func()) {
	db := common.TestDB("file://../../migrations", t)
	cache := common.NewCache(5*time.Minute, 10*time.Minute)

	users := testUsers{
		admin:  setupTestUser(t, db, "Admin", "admin@example.com", common.RoleAdmin),
		author: setupTestUser(t, db, "Ada", "ada@example.com", common.RoleAuthor),
		other:  setupTestUser(t, db, "Linus", "linus@example.com", common.RoleAuthor),
	}

	cleanup := func() {
		for _, table := range []string{"comments", "post_tags", "posts", "tags"} {
			_, err := db.Exec("DELETE FROM " + table)
			assert.NoError(t, err)
		}

		cache.Flush()
	}

	return NewPostService(db, cache, time.UTC), db, users, cleanup
}

func createTestPost(t *testing.T, s *PostService, caller *common.Caller, title, content, tags string) *Post {
	p, err := s.CreatePost(context.Background(), caller, &CreatePostRequest{Title: title, Content: content, Tags: tags})
	require.NoError(t, err)
	return p
}

func setPublishedAt(t *testing.T, db *sql.DB, postID int, at time.Time) {
	_, err := db.Exec("UPDATE posts SET published_at = $1 WHERE id = $2", at, postID)
	require.NoError(t, err)
}

func addComment(t *testing.T, db *sql.DB, postID int, content string) {
	query := `
		INSERT INTO comments (post_id, writer_name, writer_email, content)
		VALUES ($1, 'Reader', 'reader@example.com', $2)`

	_, err := db.Exec(query, postID, content)
	require.NoError(t, err)
}

func tagState(t *testing.T, db *sql.DB, name string) (exists bool, deleted bool) {
	err := db.QueryRow("SELECT deleted FROM tags WHERE name = $1", name).Scan(&deleted)
	if errors.Is(err, sql.ErrNoRows) {
		return false, false
	}
	require.NoError(t, err)
	return true, deleted
}

func tagNames(tags []Tag) []string {
	names := []string{}
	for _, tag := range tags {
		names = append(names, tag.Name)
	}
	return names
}

func postIDs(posts []Post) []int {
	ids := []int{}
	for _, p := range posts {
		ids = append(ids, p.ID)
	}
	return ids
}

func intPtr(i int) *int {
	return &i
}

func strPtr(s string) *string {
	return &s
}

func TestCreatePost(t *testing.T) {
	s, db, users, cleanup := setupTestEnvironment(t)

	testCases := []struct {
		name        string
		caller      *common.Caller
		req         CreatePostRequest
		expectedErr error
		wantAuthor  string
	}{
		{
			name:       "author creates post",
			caller:     users.author,
			req:        CreatePostRequest{Title: "Hello", Content: "First. Second. Third.", Tags: "Go, rust, GO"},
			wantAuthor: "Ada",
		},
		{
			name:       "admin assigns another author",
			caller:     users.admin,
			req:        CreatePostRequest{Title: "Hello", Content: "Body.", Tags: "go", AuthorID: intPtr(users.other.ID)},
			wantAuthor: "Linus",
		},
		{
			name:        "author cannot assign another author",
			caller:      users.author,
			req:         CreatePostRequest{Title: "Hello", Content: "Body.", AuthorID: intPtr(users.other.ID)},
			expectedErr: common.ErrForbidden,
		},
		{
			name:        "anonymous caller",
			caller:      nil,
			req:         CreatePostRequest{Title: "Hello", Content: "Body."},
			expectedErr: common.ErrUnauthenticated,
		},
		{
			name:        "unknown author",
			caller:      users.admin,
			req:         CreatePostRequest{Title: "Hello", Content: "Body.", AuthorID: intPtr(999999)},
			expectedErr: ErrAuthorNotFound,
		},
		{
			name:   "missing fields",
			caller: users.author,
			req:    CreatePostRequest{},
			expectedErr: common.ValidationError{Errors: map[string]string{
				"title":   "must be provided",
				"content": "must be provided",
			}},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			defer cleanup()

			p, err := s.CreatePost(context.Background(), tc.caller, &tc.req)
			assert.Equal(t, tc.expectedErr, err)

			if tc.expectedErr != nil {
				var count int
				assert.NoError(t, db.QueryRow("SELECT COUNT(*) FROM posts").Scan(&count))
				assert.Equal(t, 0, count)
				return
			}

			assert.Equal(t, tc.wantAuthor, p.AuthorName)
			assert.Equal(t, Excerpt(tc.req.Content, excerptSentences), p.Excerpt)
			assert.True(t, p.IsPublished)
			assert.NotNil(t, p.PublishedAt)
		})
	}
}

func TestCreatePostNormalizesTags(t *testing.T) {
	s, db, users, cleanup := setupTestEnvironment(t)
	defer cleanup()

	p := createTestPost(t, s, users.author, "Tags", "Body.", "Go, rust, GO")
	assert.Equal(t, []string{"go", "rust"}, tagNames(p.Tags))

	var tagCount, linkCount int
	assert.NoError(t, db.QueryRow("SELECT COUNT(*) FROM tags").Scan(&tagCount))
	assert.NoError(t, db.QueryRow("SELECT COUNT(*) FROM post_tags WHERE post_id = $1", p.ID).Scan(&linkCount))
	assert.Equal(t, 2, tagCount)
	assert.Equal(t, 2, linkCount)

	got, err := s.GetPost(context.Background(), p.ID)
	assert.NoError(t, err)
	assert.Equal(t, []string{"go", "rust"}, tagNames(got.Tags))
	assert.Contains(t, got.ContentHTML, "<p>Body.</p>")
}

func TestCreatePostConcurrentNewTag(t *testing.T) {
	s, db, users, cleanup := setupTestEnvironment(t)
	defer cleanup()

	const writers = 5

	var wg sync.WaitGroup
	errs := make(chan error, writers)

	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.CreatePost(context.Background(), users.author, &CreatePostRequest{
				Title:   fmt.Sprintf("Race %d", i),
				Content: "Body.",
				Tags:    "shared",
			})
			errs <- err
		}(i)
	}

	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}

	var tagCount, linkCount int
	assert.NoError(t, db.QueryRow("SELECT COUNT(*) FROM tags WHERE name = 'shared'").Scan(&tagCount))
	assert.NoError(t, db.QueryRow("SELECT COUNT(*) FROM post_tags").Scan(&linkCount))
	assert.Equal(t, 1, tagCount)
	assert.Equal(t, writers, linkCount)
}

func TestGetPost(t *testing.T) {
	s, db, users, cleanup := setupTestEnvironment(t)
	defer cleanup()

	p := createTestPost(t, s, users.author, "Readable", "# Heading\n\nText.", "go")
	addComment(t, db, p.ID, "first")
	addComment(t, db, p.ID, "second")

	testCases := []struct {
		name        string
		id          int
		expectedErr error
	}{
		{name: "existing post", id: p.ID},
		{name: "missing post", id: p.ID + 1000, expectedErr: common.ErrRecordNotFound},
		{name: "invalid id", id: 0, expectedErr: common.ValidationError{Errors: map[string]string{"id": "must be greater than zero"}}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := s.GetPost(context.Background(), tc.id)
			assert.Equal(t, tc.expectedErr, err)

			if tc.expectedErr == nil {
				assert.Equal(t, "Ada", got.AuthorName)
				assert.Len(t, got.Comments, 2)
				assert.Equal(t, "first", got.Comments[0].Content)
				assert.Contains(t, got.ContentHTML, "<h1>Heading</h1>")
			}
		})
	}
}

func TestUpdatePost(t *testing.T) {
	s, _, users, cleanup := setupTestEnvironment(t)

	testCases := []struct {
		name        string
		caller      func() *common.Caller
		req         UpdatePostRequest
		expectedErr error
	}{
		{
			name:   "author patches title",
			caller: func() *common.Caller { return users.author },
			req:    UpdatePostRequest{Title: strPtr("New title")},
		},
		{
			name:   "admin patches content",
			caller: func() *common.Caller { return users.admin },
			req:    UpdatePostRequest{Content: strPtr("Changed. Again. Once more.")},
		},
		{
			name:   "admin reassigns author",
			caller: func() *common.Caller { return users.admin },
			req:    UpdatePostRequest{AuthorID: intPtr(users.other.ID)},
		},
		{
			name:        "other author is forbidden",
			caller:      func() *common.Caller { return users.other },
			req:         UpdatePostRequest{Title: strPtr("Hijacked")},
			expectedErr: common.ErrForbidden,
		},
		{
			name:        "author cannot reassign author",
			caller:      func() *common.Caller { return users.author },
			req:         UpdatePostRequest{AuthorID: intPtr(users.other.ID)},
			expectedErr: common.ErrForbidden,
		},
		{
			name:        "anonymous caller",
			caller:      func() *common.Caller { return nil },
			req:         UpdatePostRequest{Title: strPtr("Nope")},
			expectedErr: common.ErrUnauthenticated,
		},
		{
			name:        "stale version",
			caller:      func() *common.Caller { return users.author },
			req:         UpdatePostRequest{Title: strPtr("Late"), Version: intPtr(99)},
			expectedErr: common.ErrEditConflict,
		},
		{
			name:        "blank title",
			caller:      func() *common.Caller { return users.author },
			req:         UpdatePostRequest{Title: strPtr("  ")},
			expectedErr: common.ValidationError{Errors: map[string]string{"title": "must be provided"}},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			defer cleanup()

			original := createTestPost(t, s, users.author, "Original", "Original body. Second sentence.", "go")

			updated, err := s.UpdatePost(context.Background(), tc.caller(), original.ID, &tc.req)
			assert.Equal(t, tc.expectedErr, err)

			current, getErr := s.GetPost(context.Background(), original.ID)
			require.NoError(t, getErr)

			if tc.expectedErr != nil {
				assert.Nil(t, updated)
				assert.Equal(t, original.Title, current.Title)
				assert.Equal(t, original.Content, current.Content)
				assert.Equal(t, original.AuthorID, current.AuthorID)
				assert.Equal(t, original.Version, current.Version)
				return
			}

			assert.Equal(t, original.Version+1, current.Version)
			if tc.req.Title != nil {
				assert.Equal(t, *tc.req.Title, current.Title)
			}
			if tc.req.Content != nil {
				assert.Equal(t, *tc.req.Content, current.Content)
				assert.Equal(t, "Changed. Again.", current.Excerpt)
			}
			if tc.req.AuthorID != nil {
				assert.Equal(t, "Linus", current.AuthorName)
			}
			assert.Equal(t, []string{"go"}, tagNames(current.Tags))
		})
	}
}

func TestUpdatePostTagsIdempotent(t *testing.T) {
	s, db, users, cleanup := setupTestEnvironment(t)
	defer cleanup()

	p := createTestPost(t, s, users.author, "Stable", "Body.", "go, rust")

	var tagIDsBefore []int
	for _, tag := range p.Tags {
		tagIDsBefore = append(tagIDsBefore, tag.ID)
	}

	for i := 0; i < 2; i++ {
		updated, err := s.UpdatePost(context.Background(), users.author, p.ID, &UpdatePostRequest{Tags: strPtr("Rust, go")})
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"go", "rust"}, tagNames(updated.Tags))
	}

	var tagCount, linkCount int
	assert.NoError(t, db.QueryRow("SELECT COUNT(*) FROM tags WHERE deleted = false").Scan(&tagCount))
	assert.NoError(t, db.QueryRow("SELECT COUNT(*) FROM post_tags WHERE post_id = $1", p.ID).Scan(&linkCount))
	assert.Equal(t, 2, tagCount)
	assert.Equal(t, 2, linkCount)

	current, err := s.GetPost(context.Background(), p.ID)
	require.NoError(t, err)

	var tagIDsAfter []int
	for _, tag := range current.Tags {
		tagIDsAfter = append(tagIDsAfter, tag.ID)
	}
	assert.ElementsMatch(t, tagIDsBefore, tagIDsAfter)
}

func TestUpdatePostCollectsDetachedTags(t *testing.T) {
	s, db, users, cleanup := setupTestEnvironment(t)
	defer cleanup()

	p := createTestPost(t, s, users.author, "Swap", "Body.", "alpha, beta")
	createTestPost(t, s, users.other, "Keeps beta", "Body.", "beta")

	_, err := s.UpdatePost(context.Background(), users.author, p.ID, &UpdatePostRequest{Tags: strPtr("gamma")})
	require.NoError(t, err)

	exists, deleted := tagState(t, db, "alpha")
	assert.True(t, exists)
	assert.True(t, deleted)

	exists, deleted = tagState(t, db, "beta")
	assert.True(t, exists)
	assert.False(t, deleted)

	tags, err := s.ListTags(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"beta", "gamma"}, tagNames(tags))
}

func TestUpdatePostConcurrentTagSwap(t *testing.T) {
	s, db, users, cleanup := setupTestEnvironment(t)
	defer cleanup()

	first := createTestPost(t, s, users.author, "First", "Body.", "east, north")
	second := createTestPost(t, s, users.other, "Second", "Body.", "west, south")

	const rounds = 10

	for i := 0; i < rounds; i++ {
		var wg sync.WaitGroup
		errs := make(chan error, 2)

		firstTags, secondTags := "west, south", "east, north"
		if i%2 == 1 {
			firstTags, secondTags = secondTags, firstTags
		}

		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := s.UpdatePost(context.Background(), users.author, first.ID, &UpdatePostRequest{Tags: strPtr(firstTags)})
			errs <- err
		}()
		go func() {
			defer wg.Done()
			_, err := s.UpdatePost(context.Background(), users.other, second.ID, &UpdatePostRequest{Tags: strPtr(secondTags)})
			errs <- err
		}()

		wg.Wait()
		close(errs)

		for err := range errs {
			require.NoError(t, err)
		}
	}

	var orphaned int
	err := db.QueryRow(`
		SELECT COUNT(*)
		FROM post_tags pt
		JOIN tags t ON t.id = pt.tag_id
		JOIN posts p ON p.id = pt.post_id
		WHERE t.deleted = true AND p.deleted_at IS NULL`).Scan(&orphaned)
	require.NoError(t, err)
	assert.Equal(t, 0, orphaned)

	tags, err := s.ListTags(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"east", "north", "south", "west"}, tagNames(tags))
}

func TestDeletePost(t *testing.T) {
	s, db, users, cleanup := setupTestEnvironment(t)
	defer cleanup()

	only := createTestPost(t, s, users.author, "Only x", "Body.", "x, y")
	shared := createTestPost(t, s, users.other, "Shares y", "Body.", "y")
	addComment(t, db, only.ID, "goes away")

	err := s.DeletePost(context.Background(), users.other, only.ID)
	assert.Equal(t, common.ErrForbidden, err)

	err = s.DeletePost(context.Background(), nil, only.ID)
	assert.Equal(t, common.ErrUnauthenticated, err)

	err = s.DeletePost(context.Background(), users.author, only.ID)
	require.NoError(t, err)

	_, err = s.GetPost(context.Background(), only.ID)
	assert.Equal(t, common.ErrRecordNotFound, err)

	err = s.DeletePost(context.Background(), users.author, only.ID)
	assert.Equal(t, common.ErrRecordNotFound, err)

	_, deleted := tagState(t, db, "x")
	assert.True(t, deleted)
	_, deleted = tagState(t, db, "y")
	assert.False(t, deleted)

	var liveComments int
	assert.NoError(t, db.QueryRow("SELECT COUNT(*) FROM comments WHERE post_id = $1 AND deleted_at IS NULL", only.ID).Scan(&liveComments))
	assert.Equal(t, 0, liveComments)

	err = s.DeletePost(context.Background(), users.admin, shared.ID)
	require.NoError(t, err)

	_, deleted = tagState(t, db, "y")
	assert.True(t, deleted)
}

func TestDeletedTagIsRevived(t *testing.T) {
	s, db, users, cleanup := setupTestEnvironment(t)
	defer cleanup()

	first := createTestPost(t, s, users.author, "First", "Body.", "phoenix")
	require.NoError(t, s.DeletePost(context.Background(), users.author, first.ID))

	_, deleted := tagState(t, db, "phoenix")
	assert.True(t, deleted)

	second := createTestPost(t, s, users.author, "Second", "Body.", "Phoenix")
	assert.Equal(t, first.Tags[0].ID, second.Tags[0].ID)

	_, deleted = tagState(t, db, "phoenix")
	assert.False(t, deleted)
}

func TestSearchPostsTagIntersection(t *testing.T) {
	s, _, users, cleanup := setupTestEnvironment(t)
	defer cleanup()

	both := createTestPost(t, s, users.author, "Both", "Body.", "go, rust")
	createTestPost(t, s, users.author, "Only go", "Body.", "go")
	all := createTestPost(t, s, users.author, "All three", "Body.", "go, rust, zig")

	var goID, rustID int
	for _, tag := range both.Tags {
		switch tag.Name {
		case "go":
			goID = tag.ID
		case "rust":
			rustID = tag.ID
		}
	}

	page, err := s.SearchPosts(context.Background(), SearchFilter{TagIDs: []int{goID, rustID, goID, 0}})
	require.NoError(t, err)

	assert.ElementsMatch(t, []int{both.ID, all.ID}, postIDs(page.Posts))
	assert.Equal(t, 2, page.Metadata.TotalCount)
	for _, p := range page.Posts {
		assert.Subset(t, tagNames(p.Tags), []string{"go", "rust"})
	}

	page, err = s.SearchPosts(context.Background(), SearchFilter{TagIDs: []int{}})
	require.NoError(t, err)
	assert.Equal(t, 3, page.Metadata.TotalCount)
}

func TestSearchPostsText(t *testing.T) {
	s, db, users, cleanup := setupTestEnvironment(t)
	defer cleanup()

	byTitle := createTestPost(t, s, users.other, "Needle in title", "Body.", "")
	byContent := createTestPost(t, s, users.other, "Plain", "Nothing here. But a NEEDLE later on. And more.", "")
	byTag := createTestPost(t, s, users.other, "Tagged", "Body.", "needlework")
	byComment := createTestPost(t, s, users.other, "Commented", "Body.", "")
	addComment(t, db, byComment.ID, "found the needle")
	unrelated := createTestPost(t, s, users.other, "Unrelated", "Body.", "misc")

	testCases := []struct {
		name   string
		filter SearchFilter
		want   []int
	}{
		{
			name:   "case-insensitive substring across fields",
			filter: SearchFilter{Search: "nEeDlE"},
			want:   []int{byTitle.ID, byContent.ID, byTag.ID, byComment.ID},
		},
		{
			name:   "whitespace matches everything",
			filter: SearchFilter{Search: "   "},
			want:   []int{byTitle.ID, byContent.ID, byTag.ID, byComment.ID, unrelated.ID},
		},
		{
			name:   "author name",
			filter: SearchFilter{Search: "linu"},
			want:   []int{byTitle.ID, byContent.ID, byTag.ID, byComment.ID, unrelated.ID},
		},
		{
			name:   "like wildcards are literal",
			filter: SearchFilter{Search: "%"},
			want:   []int{},
		},
		{
			name:   "search combined with tag filter",
			filter: SearchFilter{Search: "needle", TagIDs: []int{byTag.Tags[0].ID}},
			want:   []int{byTag.ID},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			page, err := s.SearchPosts(context.Background(), tc.filter)
			require.NoError(t, err)
			assert.ElementsMatch(t, tc.want, postIDs(page.Posts))
			assert.Equal(t, len(tc.want), page.Metadata.TotalCount)
		})
	}
}

func TestSearchPostsAuthors(t *testing.T) {
	s, _, users, cleanup := setupTestEnvironment(t)
	defer cleanup()

	ada := createTestPost(t, s, users.author, "By Ada", "Body.", "")
	linus := createTestPost(t, s, users.other, "By Linus", "Body.", "")
	createTestPost(t, s, users.admin, "By Admin", "Body.", "")

	page, err := s.SearchPosts(context.Background(), SearchFilter{AuthorNames: []string{" Ada ", "Linus", ""}})
	require.NoError(t, err)
	assert.ElementsMatch(t, []int{ada.ID, linus.ID}, postIDs(page.Posts))

	page, err = s.SearchPosts(context.Background(), SearchFilter{AuthorIDs: []int{users.other.ID}})
	require.NoError(t, err)
	assert.Equal(t, []int{linus.ID}, postIDs(page.Posts))

	page, err = s.SearchPosts(context.Background(), SearchFilter{AuthorNames: []string{"", "  "}})
	require.NoError(t, err)
	assert.Equal(t, 3, page.Metadata.TotalCount)
}

func TestSearchPostsPagination(t *testing.T) {
	s, db, users, cleanup := setupTestEnvironment(t)
	defer cleanup()

	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 25; i++ {
		p := createTestPost(t, s, users.author, fmt.Sprintf("Post %02d", i), "Body.", "paged")
		setPublishedAt(t, db, p.ID, base.Add(time.Duration(i)*time.Hour))
	}
	createTestPost(t, s, users.author, "Not paged", "Body.", "other")

	tags, err := s.ListTags(context.Background())
	require.NoError(t, err)

	var pagedID int
	for _, tag := range tags {
		if tag.Name == "paged" {
			pagedID = tag.ID
		}
	}

	page, err := s.SearchPosts(context.Background(), SearchFilter{TagIDs: []int{pagedID}, Page: 2, Size: 10})
	require.NoError(t, err)
	assert.Len(t, page.Posts, 5)
	assert.Equal(t, Metadata{Page: 2, Size: 10, TotalCount: 25, TotalPages: 3, Direction: DirectionDesc}, page.Metadata)
	assert.Equal(t, "Post 04", page.Posts[0].Title)
	assert.Equal(t, "Post 00", page.Posts[4].Title)

	page, err = s.SearchPosts(context.Background(), SearchFilter{TagIDs: []int{pagedID}, Size: 3, Direction: "asc"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Post 00", "Post 01", "Post 02"}, []string{page.Posts[0].Title, page.Posts[1].Title, page.Posts[2].Title})

	page, err = s.SearchPosts(context.Background(), SearchFilter{TagIDs: []int{pagedID}, Page: 9, Size: 10})
	require.NoError(t, err)
	assert.Empty(t, page.Posts)
	assert.Equal(t, 25, page.Metadata.TotalCount)
}

func TestSearchPostsDateRange(t *testing.T) {
	s, db, users, cleanup := setupTestEnvironment(t)
	defer cleanup()

	before := createTestPost(t, s, users.author, "Before", "Body.", "")
	startOfRange := createTestPost(t, s, users.author, "Start", "Body.", "")
	endOfRange := createTestPost(t, s, users.author, "End", "Body.", "")
	after := createTestPost(t, s, users.author, "After", "Body.", "")

	setPublishedAt(t, db, before.ID, time.Date(2024, 4, 30, 23, 59, 59, 0, time.UTC))
	setPublishedAt(t, db, startOfRange.ID, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC))
	setPublishedAt(t, db, endOfRange.ID, time.Date(2024, 5, 3, 23, 59, 59, 0, time.UTC))
	setPublishedAt(t, db, after.ID, time.Date(2024, 5, 4, 0, 0, 0, 0, time.UTC))

	from := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 5, 3, 0, 0, 0, 0, time.UTC)

	page, err := s.SearchPosts(context.Background(), SearchFilter{FromDate: &from, ToDate: &to})
	require.NoError(t, err)
	assert.ElementsMatch(t, []int{startOfRange.ID, endOfRange.ID}, postIDs(page.Posts))

	page, err = s.SearchPosts(context.Background(), SearchFilter{ToDate: &to})
	require.NoError(t, err)
	assert.ElementsMatch(t, []int{before.ID, startOfRange.ID, endOfRange.ID}, postIDs(page.Posts))

	_, err = s.SearchPosts(context.Background(), SearchFilter{FromDate: &to, ToDate: &from})
	assert.Equal(t, common.ValidationError{Errors: map[string]string{"to_date": "must not be before from_date"}}, err)
}

func TestSearchPostsExcludesDeleted(t *testing.T) {
	s, db, users, cleanup := setupTestEnvironment(t)
	defer cleanup()

	live := createTestPost(t, s, users.author, "Live", "Body.", "")
	gone := createTestPost(t, s, users.author, "Gone", "Body.", "")
	addComment(t, db, live.ID, "visible")
	require.NoError(t, s.DeletePost(context.Background(), users.author, gone.ID))

	page, err := s.SearchPosts(context.Background(), SearchFilter{})
	require.NoError(t, err)
	assert.Equal(t, []int{live.ID}, postIDs(page.Posts))
	assert.Len(t, page.Posts[0].Comments, 1)
}

func TestFilterOptions(t *testing.T) {
	s, _, users, cleanup := setupTestEnvironment(t)
	defer cleanup()

	createTestPost(t, s, users.author, "One", "Body.", "go")

	opts, err := s.FilterOptions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Ada"}, opts.Authors)
	assert.Equal(t, []string{"go"}, tagNames(opts.Tags))

	cached, found := s.c.Get(common.CacheKeyFilterOptions)
	assert.True(t, found)
	assert.Equal(t, opts, cached)

	createTestPost(t, s, users.other, "Two", "Body.", "rust")

	_, found = s.c.Get(common.CacheKeyFilterOptions)
	assert.False(t, found)

	opts, err = s.FilterOptions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Ada", "Linus"}, opts.Authors)
	assert.Equal(t, []string{"go", "rust"}, tagNames(opts.Tags))
}
