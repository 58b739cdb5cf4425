package commentservice

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/sushihentaime/quillpost/internal/common"
)

func NewCommentService(db *sql.DB, mb common.MessageProducer, logger *slog.Logger) *CommentService {
	return &CommentService{m: newCommentModel(db), mb: mb, logger: logger}
}

// CreateComment attaches a comment to a live post. Authenticated callers comment under their own
// identity; anonymous callers must name themselves.
func (s *CommentService) CreateComment(ctx context.Context, caller *common.Caller, postID int, req *CreateCommentRequest) (*Comment, error) {
	c := &Comment{
		PostID:      postID,
		Content:     req.Content,
		WriterName:  strings.TrimSpace(req.WriterName),
		WriterEmail: strings.ToLower(strings.TrimSpace(req.WriterEmail)),
	}

	if caller != nil {
		id := caller.ID
		c.UserID = &id
		c.WriterName = caller.Name
		c.WriterEmail = caller.Email
	}

	v := common.NewValidator()
	common.ValidateID(v, postID, "post_id")
	validateContent(v, c.Content)
	validateWriter(v, c.WriterName, c.WriterEmail)
	if !v.Valid() {
		return nil, v.ValidationError()
	}

	p, err := s.m.getPost(ctx, postID)
	if err != nil {
		return nil, err
	}

	if err := s.m.insert(ctx, c); err != nil {
		return nil, err
	}

	if caller == nil || caller.ID != p.AuthorID {
		s.notifyAuthor(ctx, p, c)
	}

	return c, nil
}

// notifyAuthor publishes comment.created. The comment is already stored, so a broker failure is
// only logged.
func (s *CommentService) notifyAuthor(ctx context.Context, p *post, c *Comment) {
	msg, err := json.Marshal(common.CommentCreatedMessage{
		PostID:      p.ID,
		PostTitle:   p.Title,
		AuthorName:  p.AuthorName,
		AuthorEmail: p.AuthorEmail,
		WriterName:  c.WriterName,
		Content:     c.Content,
	})
	if err != nil {
		s.logger.Error("could not encode comment notification", "error", err, "comment_id", c.ID)
		return
	}

	if err := s.mb.Publish(ctx, msg, common.CommentCreatedKey, common.PostExchange); err != nil {
		s.logger.Error("could not publish comment notification", "error", err, "comment_id", c.ID)
	}
}

// ListComments returns the live comments of a live post in creation order.
func (s *CommentService) ListComments(ctx context.Context, postID int) ([]Comment, error) {
	v := common.NewValidator()
	common.ValidateID(v, postID, "post_id")
	if !v.Valid() {
		return nil, v.ValidationError()
	}

	if _, err := s.m.getPost(ctx, postID); err != nil {
		return nil, err
	}

	return s.m.list(ctx, postID)
}

func (s *CommentService) GetComment(ctx context.Context, postID, commentID int) (*Comment, error) {
	v := common.NewValidator()
	common.ValidateID(v, postID, "post_id")
	common.ValidateID(v, commentID, "comment_id")
	if !v.Valid() {
		return nil, v.ValidationError()
	}

	if _, err := s.m.getPost(ctx, postID); err != nil {
		return nil, err
	}

	return s.m.get(ctx, postID, commentID)
}

// UpdateComment replaces the content of a comment. Only administrators and the post's author may
// edit comments on it.
func (s *CommentService) UpdateComment(ctx context.Context, caller *common.Caller, postID, commentID int, content string) (*Comment, error) {
	if caller == nil {
		return nil, common.ErrUnauthenticated
	}

	v := common.NewValidator()
	common.ValidateID(v, postID, "post_id")
	common.ValidateID(v, commentID, "comment_id")
	validateContent(v, content)
	if !v.Valid() {
		return nil, v.ValidationError()
	}

	if err := s.authorize(ctx, caller, postID); err != nil {
		return nil, err
	}

	return s.m.updateContent(ctx, postID, commentID, content)
}

// DeleteComment soft deletes a comment under the same rule as UpdateComment.
func (s *CommentService) DeleteComment(ctx context.Context, caller *common.Caller, postID, commentID int) error {
	if caller == nil {
		return common.ErrUnauthenticated
	}

	v := common.NewValidator()
	common.ValidateID(v, postID, "post_id")
	common.ValidateID(v, commentID, "comment_id")
	if !v.Valid() {
		return v.ValidationError()
	}

	if err := s.authorize(ctx, caller, postID); err != nil {
		return err
	}

	return s.m.softDelete(ctx, postID, commentID)
}

func (s *CommentService) authorize(ctx context.Context, caller *common.Caller, postID int) error {
	p, err := s.m.getPost(ctx, postID)
	if err != nil {
		return err
	}

	if !caller.CanManage(p.AuthorID) {
		return common.ErrForbidden
	}

	return nil
}
