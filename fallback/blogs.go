package fallback

import (
	"context"
	"sort"

	"github.com/lborres/blogdesk/core"
)

type blogRecord struct {
	core.BlogPost
	AuthorID string `json:"authorId,omitempty"`
}

// ListBlogs returns posts newest first; a zero limit returns the rest.
func (s *Store) ListBlogs(ctx context.Context, skip, limit int) ([]core.BlogPost, error) {
	if skip < 0 || limit < 0 {
		return nil, core.Invalid("listBlogs", core.ErrInvalidPagination)
	}

	s.mu.Lock()
	blogs, err := load[blogRecord](ctx, s, KeyBlogs)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	sort.SliceStable(blogs, func(i, j int) bool { return blogs[i].CreatedAt.After(blogs[j].CreatedAt) })

	out := make([]core.BlogPost, 0, len(blogs))
	for i := skip; i < len(blogs); i++ {
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, blogs[i].BlogPost)
	}
	return out, nil
}

func (s *Store) GetBlog(ctx context.Context, id string) (*core.BlogPost, error) {
	s.mu.Lock()
	blogs, err := load[blogRecord](ctx, s, KeyBlogs)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	for _, b := range blogs {
		if b.ID == id {
			post := b.BlogPost
			return &post, nil
		}
	}
	return nil, notFound("getBlog", core.ErrBlogNotFound)
}

func (s *Store) BlogSummary(ctx context.Context) (*core.BlogSummary, error) {
	s.mu.Lock()
	blogs, err := load[blogRecord](ctx, s, KeyBlogs)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	posts := make([]core.BlogPost, 0, len(blogs))
	for _, b := range blogs {
		posts = append(posts, b.BlogPost)
	}
	summary := core.SummarizeBlogs(posts)
	return &summary, nil
}

// CreateBlog credits the context actor when no author is given.
func (s *Store) CreateBlog(ctx context.Context, in core.BlogInput) (*core.BlogPost, error) {
	if err := in.Validate(); err != nil {
		return nil, core.Invalid("createBlog", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	blogs, err := load[blogRecord](ctx, s, KeyBlogs)
	if err != nil {
		return nil, err
	}
	id, err := s.newID("blog")
	if err != nil {
		return nil, err
	}

	actor := actorOf(ctx)
	now := s.now()
	rec := blogRecord{
		BlogPost: core.BlogPost{
			ID:        id,
			Title:     in.Title,
			Content:   in.Content,
			Author:    in.Author,
			Status:    in.Status,
			CreatedAt: now,
			UpdatedAt: now,
		},
		AuthorID: actor.ID,
	}
	if rec.Author == "" {
		rec.Author = actor.Name
	}

	if err := s.save(ctx, KeyBlogs, append(blogs, rec)); err != nil {
		return nil, err
	}
	if _, err := s.appendLocked(ctx, core.ActionCreate, core.EntityBlog, rec.Title); err != nil {
		return nil, err
	}
	post := rec.BlogPost
	return &post, nil
}

func (s *Store) UpdateBlog(ctx context.Context, id string, patch core.BlogPatch) (*core.BlogPost, error) {
	if err := patch.Validate(); err != nil {
		return nil, core.Invalid("updateBlog", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	blogs, err := load[blogRecord](ctx, s, KeyBlogs)
	if err != nil {
		return nil, err
	}
	for i := range blogs {
		if blogs[i].ID != id {
			continue
		}
		patch.Apply(&blogs[i].BlogPost)
		blogs[i].UpdatedAt = s.now()

		if err := s.save(ctx, KeyBlogs, blogs); err != nil {
			return nil, err
		}
		if _, err := s.appendLocked(ctx, core.ActionUpdate, core.EntityBlog, blogs[i].Title); err != nil {
			return nil, err
		}
		post := blogs[i].BlogPost
		return &post, nil
	}
	return nil, notFound("updateBlog", core.ErrBlogNotFound)
}

func (s *Store) DeleteBlog(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	blogs, err := load[blogRecord](ctx, s, KeyBlogs)
	if err != nil {
		return err
	}
	for i, b := range blogs {
		if b.ID != id {
			continue
		}
		if err := s.save(ctx, KeyBlogs, append(blogs[:i:i], blogs[i+1:]...)); err != nil {
			return err
		}
		_, err := s.appendLocked(ctx, core.ActionDelete, core.EntityBlog, b.Title)
		return err
	}
	return notFound("deleteBlog", core.ErrBlogNotFound)
}
