package commentservice

import (
	"database/sql"
	"log/slog"
	"time"

	"github.com/sushihentaime/quillpost/internal/common"
)

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

type CreateCommentRequest struct {
	Content     string `json:"content"`
	WriterName  string `json:"writer_name"`
	WriterEmail string `json:"writer_email"`
}

// post is the slice of a post the comment rules need.
type post struct {
	ID          int
	Title       string
	AuthorID    int
	AuthorName  string
	AuthorEmail string
}

type CommentModel struct {
	db *sql.DB
}

type CommentService struct {
	m      *CommentModel
	mb     common.MessageProducer
	logger *slog.Logger
}
