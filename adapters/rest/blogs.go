package rest

import (
	"context"
	"net/http"
	"strconv"

	"github.com/lborres/blogdesk/core"
)

func (c *Client) ListBlogs(ctx context.Context, skip, limit int) ([]core.BlogPost, error) {
	if skip < 0 || limit < 0 {
		return nil, core.Invalid("listBlogs", core.ErrInvalidPagination)
	}

	query := map[string]string{"skip": strconv.Itoa(skip)}
	if limit > 0 {
		query["limit"] = strconv.Itoa(limit)
	}

	var out []blogWire
	if err := c.do(ctx, call{op: "listBlogs", method: http.MethodGet, path: "/blogs", query: query}, &out); err != nil {
		return nil, err
	}

	posts := make([]core.BlogPost, 0, len(out))
	for _, w := range out {
		post, err := w.post()
		if err != nil {
			return nil, malformed("listBlogs", http.StatusOK, err)
		}
		posts = append(posts, post)
	}
	return posts, nil
}

func (c *Client) GetBlog(ctx context.Context, id string) (*core.BlogPost, error) {
	return c.blogCall(ctx, call{
		op:       "getBlog",
		method:   http.MethodGet,
		path:     "/blogs/:id",
		pathArgs: map[string]string{"id": id},
	})
}

func (c *Client) BlogSummary(ctx context.Context) (*core.BlogSummary, error) {
	var out summaryWire
	if err := c.do(ctx, call{op: "blogSummary", method: http.MethodGet, path: "/blogs/summary"}, &out); err != nil {
		return nil, err
	}

	summary, err := out.summary()
	if err != nil {
		return nil, malformed("blogSummary", http.StatusOK, err)
	}
	return summary, nil
}

func (c *Client) CreateBlog(ctx context.Context, in core.BlogInput) (*core.BlogPost, error) {
	if err := in.Validate(); err != nil {
		return nil, core.Invalid("createBlog", err)
	}

	return c.blogCall(ctx, call{
		op:     "createBlog",
		method: http.MethodPost,
		path:   "/blogs",
		body: map[string]string{
			"title":   in.Title,
			"content": in.Content,
			"author":  in.Author,
			"status":  string(in.Status),
		},
		mutation: true,
	})
}

// UpdateBlog sends only the fields set on patch.
func (c *Client) UpdateBlog(ctx context.Context, id string, patch core.BlogPatch) (*core.BlogPost, error) {
	if err := patch.Validate(); err != nil {
		return nil, core.Invalid("updateBlog", err)
	}

	body := make(map[string]string)
	if patch.Title != nil {
		body["title"] = *patch.Title
	}
	if patch.Content != nil {
		body["content"] = *patch.Content
	}
	if patch.Author != nil {
		body["author"] = *patch.Author
	}
	if patch.Status != nil {
		body["status"] = string(*patch.Status)
	}

	return c.blogCall(ctx, call{
		op:       "updateBlog",
		method:   http.MethodPut,
		path:     "/blogs/:id",
		pathArgs: map[string]string{"id": id},
		body:     body,
		mutation: true,
	})
}

func (c *Client) DeleteBlog(ctx context.Context, id string) error {
	return c.do(ctx, call{
		op:       "deleteBlog",
		method:   http.MethodDelete,
		path:     "/blogs/:id",
		pathArgs: map[string]string{"id": id},
		mutation: true,
	}, nil)
}

func (c *Client) blogCall(ctx context.Context, cl call) (*core.BlogPost, error) {
	var out blogWire
	if err := c.do(ctx, cl, &out); err != nil {
		return nil, err
	}

	post, err := out.post()
	if err != nil {
		return nil, malformed(cl.op, http.StatusOK, err)
	}
	return &post, nil
}
