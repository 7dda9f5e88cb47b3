// Package rest is the console's API client for the Blogs & Admin backend.
// Every call is single-shot: failures are normalized into *core.Error and
// never retried.
package rest

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3/client"
	"github.com/google/uuid"

	"github.com/lborres/blogdesk/core"
	"github.com/lborres/blogdesk/pkg/metrics"
)

const (
	defaultUserAgent = "blogdesk"
	headerRequestID  = "X-Request-ID"
)

type Config struct {
	BaseURL string

	// Timeout bounds each request; zero leaves requests unbounded
	// except by their context.
	Timeout time.Duration

	UserAgent string

	// StripEmailDomain sends the local part of an email identifier as the
	// login username, for backends keyed by username.
	StripEmailDomain bool
}

type Option func(*Client)

func WithTokenSource(ts core.TokenSource) Option {
	return func(c *Client) { c.tokens = ts }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

type Client struct {
	http    *client.Client
	cfg     Config
	tokens  core.TokenSource
	logger  *slog.Logger
	metrics *metrics.Metrics
}

var _ core.Backend = (*Client)(nil)

func New(cfg Config, opts ...Option) (*Client, error) {
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" {
		return nil, core.ErrBaseURLRequired
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}

	hc := client.New().
		SetBaseURL(cfg.BaseURL).
		SetUserAgent(cfg.UserAgent).
		SetHeader("Accept", "application/json")
	if cfg.Timeout > 0 {
		hc.SetTimeout(cfg.Timeout)
	}

	c := &Client{http: hc, cfg: cfg, logger: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL is the normalized backend root.
func (c *Client) BaseURL() string {
	return c.cfg.BaseURL
}

// call describes one backend request.
type call struct {
	op       string
	method   string
	path     string
	pathArgs map[string]string
	query    map[string]string
	form     map[string]string
	body     any
	login    bool // non-2xx is an auth failure
	mutation bool // 4xx carries field-level validation detail
}

// bearer prefers a token placed on the context (used while resolving a
// profile before the session is persisted) over the token source.
func (c *Client) bearer(ctx context.Context) string {
	if token, ok := core.TokenFromContext(ctx); ok {
		return token
	}
	if c.tokens != nil {
		return c.tokens.Token()
	}
	return ""
}

// do sends the request and decodes a 2xx body into out when out is non-nil.
func (c *Client) do(ctx context.Context, cl call, out any) (err error) {
	start := time.Now()
	requestID := uuid.NewString()
	status := 0

	defer func() {
		c.metrics.ObserveAPI(cl.op, start, err)
		attrs := []any{
			"op", cl.op,
			"method", cl.method,
			"path", cl.path,
			"status", status,
			"request_id", requestID,
			"duration", time.Since(start),
		}
		if err != nil {
			c.logger.Warn("backend call failed", append(attrs, "error", err)...)
			return
		}
		c.logger.Debug("backend call", attrs...)
	}()

	req := c.http.R().
		SetContext(ctx).
		SetHeader(headerRequestID, requestID)

	if !cl.login {
		if token := c.bearer(ctx); token != "" {
			req.SetHeader("Authorization", "Bearer "+token)
		}
	}
	for k, v := range cl.pathArgs {
		req.SetPathParam(k, v)
	}
	for k, v := range cl.query {
		req.SetParam(k, v)
	}
	for k, v := range cl.form {
		req.SetFormData(k, v)
	}
	if cl.body != nil {
		req.SetJSON(cl.body)
	}

	var resp *client.Response
	switch cl.method {
	case http.MethodPost:
		resp, err = req.Post(cl.path)
	case http.MethodPut:
		resp, err = req.Put(cl.path)
	case http.MethodDelete:
		resp, err = req.Delete(cl.path)
	default:
		resp, err = req.Get(cl.path)
	}
	if err != nil {
		client.ReleaseRequest(req)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return core.NewError(core.KindFetch, cl.op, "request canceled", ctxErr)
		}
		return core.NewError(core.KindUnreachable, cl.op, "backend unreachable", err)
	}
	defer resp.Close()

	status = resp.StatusCode()
	body := append([]byte(nil), resp.Body()...)

	if status < 200 || status >= 300 {
		return statusError(cl, status, body)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return malformed(cl.op, status, err)
	}
	return nil
}

// statusError maps a non-2xx response onto the error taxonomy.
func statusError(cl call, status int, body []byte) error {
	detail := parseDetail(body)

	kind := core.KindFetch
	switch {
	case cl.login:
		kind = core.KindAuth
		if detail == "" {
			detail = "invalid credentials"
		}
	case status == http.StatusUnauthorized:
		kind = core.KindAuth
		if detail == "" {
			detail = "token rejected"
		}
	case cl.mutation && isValidationStatus(status):
		kind = core.KindValidation
	}

	if detail == "" {
		detail = http.StatusText(status)
	}
	return &core.Error{Kind: kind, Op: cl.op, Status: status, Detail: detail}
}

func isValidationStatus(status int) bool {
	switch status {
	case http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound,
		http.StatusConflict, http.StatusUnprocessableEntity:
		return true
	}
	return false
}

func malformed(op string, status int, err error) error {
	return &core.Error{Kind: core.KindMalformedResponse, Op: op, Status: status, Detail: "malformed response: " + err.Error(), Err: err}
}

// Health reports whether the backend answers its health check.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, call{op: "health", method: http.MethodGet, path: "/health"}, nil)
}
