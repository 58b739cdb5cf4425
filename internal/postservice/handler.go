package postservice

import (
	"context"
	"database/sql"
	"time"

	"github.com/sushihentaime/quillpost/internal/common"
)

// NewPostService returns a post service. Date range filters are interpreted as calendar days in
// loc; a nil loc means UTC.
func NewPostService(db *sql.DB, c *common.Cache, loc *time.Location) *PostService {
	if loc == nil {
		loc = time.UTC
	}

	return &PostService{m: newPostModel(db), c: c, loc: loc}
}

// CreatePost stores a new published post with its tags. The caller is the author unless an
// administrator names someone else.
func (s *PostService) CreatePost(ctx context.Context, caller *common.Caller, req *CreatePostRequest) (*Post, error) {
	if caller == nil {
		return nil, common.ErrUnauthenticated
	}

	authorID := caller.ID
	if req.AuthorID != nil && *req.AuthorID != caller.ID {
		if !caller.IsAdmin() {
			return nil, common.ErrForbidden
		}
		authorID = *req.AuthorID
	}

	v := common.NewValidator()
	validateTitle(v, req.Title)
	validateContent(v, req.Content)
	validateTags(v, req.Tags)
	v.Check(authorID != 0, "author_id", "must be provided")
	common.ValidateID(v, authorID, "author_id")
	if !v.Valid() {
		return nil, v.ValidationError()
	}

	p := &Post{
		Title:    req.Title,
		Content:  req.Content,
		Excerpt:  Excerpt(req.Content, excerptSentences),
		AuthorID: authorID,
	}

	err := common.RunInTx(ctx, s.m.db, func(tx *sql.Tx) error {
		name, err := s.m.getAuthorName(tx, ctx, p.AuthorID)
		if err != nil {
			return err
		}
		p.AuthorName = name

		if err := s.m.insertPost(tx, ctx, p); err != nil {
			return err
		}

		tags, _, err := s.m.reconcileTags(tx, ctx, p.ID, req.Tags)
		if err != nil {
			return err
		}
		p.Tags = tags
		p.Comments = []Comment{}

		return nil
	})
	if err != nil {
		return nil, err
	}

	s.c.Delete(common.CacheKeyFilterOptions)

	return p, nil
}

// GetPost returns a live post with its tags, comments and rendered HTML.
func (s *PostService) GetPost(ctx context.Context, id int) (*Post, error) {
	v := common.NewValidator()
	common.ValidateID(v, id, "id")
	if !v.Valid() {
		return nil, v.ValidationError()
	}

	p, err := s.m.getPost(ctx, id)
	if err != nil {
		return nil, err
	}

	posts := []Post{*p}
	if err := s.m.attachRelations(ctx, posts); err != nil {
		return nil, err
	}
	p = &posts[0]

	html, err := RenderContent(p.Content)
	if err != nil {
		return nil, err
	}
	p.ContentHTML = html

	return p, nil
}

// UpdatePost applies a partial update. Only administrators or the post's author may update it and
// only administrators may reassign the author.
func (s *PostService) UpdatePost(ctx context.Context, caller *common.Caller, id int, req *UpdatePostRequest) (*Post, error) {
	if caller == nil {
		return nil, common.ErrUnauthenticated
	}

	v := common.NewValidator()
	common.ValidateID(v, id, "id")
	if !v.Valid() {
		return nil, v.ValidationError()
	}

	err := common.RunInTx(ctx, s.m.db, func(tx *sql.Tx) error {
		p, err := s.m.lockPost(tx, ctx, id)
		if err != nil {
			return err
		}

		if !caller.CanManage(p.AuthorID) {
			return common.ErrForbidden
		}
		if req.AuthorID != nil && *req.AuthorID != p.AuthorID && !caller.IsAdmin() {
			return common.ErrForbidden
		}
		if req.Version != nil && *req.Version != p.Version {
			return common.ErrEditConflict
		}

		if req.Title != nil {
			p.Title = *req.Title
		}
		if req.Content != nil {
			p.Content = *req.Content
			p.Excerpt = Excerpt(p.Content, excerptSentences)
		}
		if req.AuthorID != nil {
			p.AuthorID = *req.AuthorID
		}

		pv := common.NewValidator()
		validateTitle(pv, p.Title)
		validateContent(pv, p.Content)
		if req.Tags != nil {
			validateTags(pv, *req.Tags)
		}
		common.ValidateID(pv, p.AuthorID, "author_id")
		if !pv.Valid() {
			return pv.ValidationError()
		}

		if req.AuthorID != nil {
			if _, err := s.m.getAuthorName(tx, ctx, p.AuthorID); err != nil {
				return err
			}
		}

		if err := s.m.updatePost(tx, ctx, p); err != nil {
			return err
		}

		if req.Tags == nil {
			return nil
		}

		_, detached, err := s.m.reconcileTags(tx, ctx, p.ID, *req.Tags)
		if err != nil {
			return err
		}

		return s.m.collectGarbage(tx, ctx, detached)
	})
	if err != nil {
		return nil, err
	}

	s.c.Delete(common.CacheKeyFilterOptions)

	return s.GetPost(ctx, id)
}

// DeletePost soft deletes a post with its comments and retires tags nothing else uses.
func (s *PostService) DeletePost(ctx context.Context, caller *common.Caller, id int) error {
	if caller == nil {
		return common.ErrUnauthenticated
	}

	v := common.NewValidator()
	common.ValidateID(v, id, "id")
	if !v.Valid() {
		return v.ValidationError()
	}

	err := common.RunInTx(ctx, s.m.db, func(tx *sql.Tx) error {
		p, err := s.m.lockPost(tx, ctx, id)
		if err != nil {
			return err
		}

		if !caller.CanManage(p.AuthorID) {
			return common.ErrForbidden
		}

		tagIDs, err := s.m.tagIDsForPost(tx, ctx, id)
		if err != nil {
			return err
		}

		if err := s.m.softDeletePost(tx, ctx, id); err != nil {
			return err
		}

		return s.m.collectGarbage(tx, ctx, tagIDs)
	})
	if err != nil {
		return err
	}

	s.c.Delete(common.CacheKeyFilterOptions)

	return nil
}

// SearchPosts returns one page of live posts matching every supplied criterion.
func (s *PostService) SearchPosts(ctx context.Context, filter SearchFilter) (*Page, error) {
	f := filter.normalize()

	if f.FromDate != nil && f.ToDate != nil && f.ToDate.Before(*f.FromDate) {
		v := common.NewValidator()
		v.AddError("to_date", "must not be before from_date")
		return nil, v.ValidationError()
	}

	posts, total, err := s.m.searchPosts(ctx, f, s.loc)
	if err != nil {
		return nil, err
	}

	if err := s.m.attachRelations(ctx, posts); err != nil {
		return nil, err
	}

	return &Page{
		Posts: posts,
		Metadata: Metadata{
			Page:       f.Page,
			Size:       f.Size,
			TotalCount: total,
			TotalPages: totalPages(total, f.Size),
			Direction:  f.Direction,
		},
	}, nil
}

// FilterOptions lists the distinct authors of live posts and every live tag.
func (s *PostService) FilterOptions(ctx context.Context) (*FilterOptions, error) {
	if cached, found := s.c.Get(common.CacheKeyFilterOptions); found {
		if opts, ok := cached.(*FilterOptions); ok {
			return opts, nil
		}
	}

	authors, err := s.m.listAuthorNames(ctx)
	if err != nil {
		return nil, err
	}

	tags, err := s.m.listTags(ctx)
	if err != nil {
		return nil, err
	}

	opts := &FilterOptions{Authors: authors, Tags: tags}
	s.c.Set(common.CacheKeyFilterOptions, opts, filterOptionsCacheTime)

	return opts, nil
}

// ListTags returns every live tag ordered by name.
func (s *PostService) ListTags(ctx context.Context) ([]Tag, error) {
	return s.m.listTags(ctx)
}
