package postservice

import (
	"database/sql"
	"time"

	"github.com/sushihentaime/quillpost/internal/common"
)

const (
	excerptSentences = 2

	defaultPageSize = 10
	maxPageSize     = 100

	filterOptionsCacheTime = 10 * time.Minute
)

type Post struct {
	ID    int    `json:"id"`
	Title string `json:"title"`
	// Content is stored in Markdown format.
	Content     string     `json:"content"`
	ContentHTML string     `json:"content_html,omitempty"`
	Excerpt     string     `json:"excerpt"`
	AuthorID    int        `json:"author_id"`
	AuthorName  string     `json:"author_name"`
	Tags        []Tag      `json:"tags"`
	Comments    []Comment  `json:"comments"`
	PublishedAt *time.Time `json:"published_at"`
	IsPublished bool       `json:"is_published"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	Version     int        `json:"version"`
}

type Tag struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Comment is the read-only view of a comment embedded in post responses.
type Comment struct {
	ID          int       `json:"id"`
	PostID      int       `json:"post_id"`
	UserID      *int      `json:"user_id,omitempty"`
	WriterName  string    `json:"writer_name"`
	WriterEmail string    `json:"writer_email"`
	Content     string    `json:"content"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type Direction string

const (
	DirectionAsc  Direction = "ASC"
	DirectionDesc Direction = "DESC"
)

// SearchFilter holds every criterion the search engine understands. Zero values mean
// "no constraint".
type SearchFilter struct {
	AuthorNames []string
	AuthorIDs   []int
	TagIDs      []int
	Search      string
	FromDate    *time.Time
	ToDate      *time.Time
	Page        int
	Size        int
	// Start is a 1-based item offset. When positive it replaces Page with the page holding that
	// item, computed after Size is clamped.
	Start     int
	Direction Direction
}

type Metadata struct {
	Page       int       `json:"page"`
	Size       int       `json:"size"`
	TotalCount int       `json:"total_count"`
	TotalPages int       `json:"total_pages"`
	Direction  Direction `json:"direction"`
}

type Page struct {
	Posts    []Post   `json:"posts"`
	Metadata Metadata `json:"metadata"`
}

type FilterOptions struct {
	Authors []string `json:"authors"`
	Tags    []Tag    `json:"tags"`
}

type CreatePostRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
	Tags    string `json:"tags"`
	// AuthorID overrides the author. Only administrators may set it to someone else.
	AuthorID *int `json:"author_id"`
}

type UpdatePostRequest struct {
	Title    *string `json:"title"`
	Content  *string `json:"content"`
	Tags     *string `json:"tags"`
	AuthorID *int    `json:"author_id"`
	Version  *int    `json:"version"`
}

type PostModel struct {
	db *sql.DB
}

type PostService struct {
	m   *PostModel
	c   *common.Cache
	loc *time.Location
}
