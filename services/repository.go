package services

import (
	"context"
	"errors"
	"log/slog"

	"github.com/lborres/blogdesk/core"
	"github.com/lborres/blogdesk/pkg/metrics"
)

// LocalStore is the fallback side of the repository: the same data
// operations plus the activity log.
type LocalStore interface {
	core.DataService
	core.ActivityLog
}

type RepositoryOption func(*Repository)

func WithRepositoryLogger(l *slog.Logger) RepositoryOption {
	return func(r *Repository) { r.logger = l }
}

func WithRepositoryMetrics(m *metrics.Metrics) RepositoryOption {
	return func(r *Repository) { r.metrics = m }
}

// Repository routes data operations to the remote backend, the local
// store, or both, and enforces the session capabilities each needs.
type Repository struct {
	mode     core.BackendMode
	remote   core.DataService
	local    LocalStore
	sessions core.SessionReader
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

var _ core.DataService = (*Repository)(nil)

// NewRepository checks that mode has the backends it needs. In auto mode
// a nil local store disables the fallback.
func NewRepository(mode core.BackendMode, remote core.DataService, local LocalStore, sessions core.SessionReader, opts ...RepositoryOption) (*Repository, error) {
	switch mode {
	case core.BackendRemote, core.BackendAuto:
		if remote == nil {
			return nil, core.ErrBackendRequired
		}
	case core.BackendLocal:
		if local == nil {
			return nil, core.ErrBackendRequired
		}
	default:
		return nil, core.ErrUnknownMode
	}

	r := &Repository{
		mode:     mode,
		remote:   remote,
		local:    local,
		sessions: sessions,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

func (r *Repository) Mode() core.BackendMode {
	return r.mode
}

// Activity is the local log, nil when the repository has no local store.
func (r *Repository) Activity() core.ActivityLog {
	if r.local == nil {
		return nil
	}
	return r.local
}

type capability int

const (
	capNone capability = iota
	capSession
	capSuperAdmin
)

// authorize checks the capability and attaches the session's actor to ctx.
func (r *Repository) authorize(ctx context.Context, need capability) (context.Context, error) {
	if r.sessions == nil {
		return ctx, nil
	}

	session, ok := r.sessions.Session()
	if ok {
		if _, has := core.ActorFromContext(ctx); !has {
			ctx = core.WithActor(ctx, session.Actor())
		}
	}

	switch need {
	case capSession:
		if !ok {
			return ctx, r.anonymousError()
		}
	case capSuperAdmin:
		if !ok {
			return ctx, r.anonymousError()
		}
		if !session.IsSuperAdmin {
			return ctx, core.ErrNotSuperAdmin
		}
	}
	return ctx, nil
}

func (r *Repository) anonymousError() error {
	if r.sessions.State() == core.StateUnresolved {
		return core.ErrSessionUnresolved
	}
	return core.ErrNotAuthenticated
}

// offlineSession reports whether the operator logged in against the local
// store, whose tokens the backend would reject.
func (r *Repository) offlineSession() bool {
	if r.sessions == nil || r.local == nil {
		return false
	}
	session, ok := r.sessions.Session()
	return ok && session.Mode == core.ModeOfflineLogin
}

// route runs fn against the active backend. In auto mode an unreachable
// backend, or an offline session, sends the call to the local store.
func route[T any](ctx context.Context, r *Repository, op string, fn func(context.Context, core.DataService) (T, error)) (out T, remote bool, err error) {
	if r.mode == core.BackendLocal || (r.mode == core.BackendAuto && r.offlineSession()) {
		out, err = fn(ctx, r.local)
		return out, false, err
	}

	out, err = fn(ctx, r.remote)
	if err == nil || r.mode != core.BackendAuto || r.local == nil || !errors.Is(err, core.ErrUnreachable) {
		return out, err == nil, err
	}

	r.logger.Warn("backend unreachable, serving from local store", "op", op, "error", err)
	r.metrics.IncrementFallback(op)
	out, err = fn(ctx, r.local)
	return out, false, err
}

// record appends a remote mutation to the local activity log. The local
// store logs its own mutations.
func (r *Repository) record(ctx context.Context, remote bool, action core.Action, kind core.EntityKind, name string) {
	if !remote || r.local == nil {
		return
	}
	if _, err := r.local.AppendActivity(ctx, action, kind, name); err != nil {
		r.logger.Warn("activity not recorded", "action", action, "entity", kind, "error", err)
	}
}

func (r *Repository) ListAccounts(ctx context.Context) ([]core.AdminAccount, error) {
	ctx, err := r.authorize(ctx, capSession)
	if err != nil {
		return nil, err
	}
	out, _, err := route(ctx, r, "listAccounts", func(ctx context.Context, b core.DataService) ([]core.AdminAccount, error) {
		return b.ListAccounts(ctx)
	})
	return out, err
}

func (r *Repository) CreateAccount(ctx context.Context, in core.AccountInput) (*core.AdminAccount, error) {
	ctx, err := r.authorize(ctx, capSuperAdmin)
	if err != nil {
		return nil, err
	}
	out, remote, err := route(ctx, r, "createAccount", func(ctx context.Context, b core.DataService) (*core.AdminAccount, error) {
		return b.CreateAccount(ctx, in)
	})
	if err != nil {
		return nil, err
	}
	r.record(ctx, remote, core.ActionCreate, core.EntityAdmin, out.DisplayName())
	return out, nil
}

func (r *Repository) UpdateAccount(ctx context.Context, id string, patch core.AccountPatch) (*core.AdminAccount, error) {
	ctx, err := r.authorize(ctx, capSuperAdmin)
	if err != nil {
		return nil, err
	}
	out, remote, err := route(ctx, r, "updateAccount", func(ctx context.Context, b core.DataService) (*core.AdminAccount, error) {
		return b.UpdateAccount(ctx, id, patch)
	})
	if err != nil {
		return nil, err
	}
	r.record(ctx, remote, core.ActionUpdate, core.EntityAdmin, out.DisplayName())
	return out, nil
}

// DeleteAccount never removes anything optimistically: a refusal from
// either backend is returned as is.
func (r *Repository) DeleteAccount(ctx context.Context, id string) error {
	ctx, err := r.authorize(ctx, capSuperAdmin)
	if err != nil {
		return err
	}
	_, remote, err := route(ctx, r, "deleteAccount", func(ctx context.Context, b core.DataService) (struct{}, error) {
		return struct{}{}, b.DeleteAccount(ctx, id)
	})
	if err != nil {
		return err
	}
	r.record(ctx, remote, core.ActionDelete, core.EntityAdmin, "admin #"+id)
	return nil
}

func (r *Repository) ListBlogs(ctx context.Context, skip, limit int) ([]core.BlogPost, error) {
	ctx, _ = r.authorize(ctx, capNone)
	out, _, err := route(ctx, r, "listBlogs", func(ctx context.Context, b core.DataService) ([]core.BlogPost, error) {
		return b.ListBlogs(ctx, skip, limit)
	})
	return out, err
}

func (r *Repository) GetBlog(ctx context.Context, id string) (*core.BlogPost, error) {
	ctx, _ = r.authorize(ctx, capNone)
	out, _, err := route(ctx, r, "getBlog", func(ctx context.Context, b core.DataService) (*core.BlogPost, error) {
		return b.GetBlog(ctx, id)
	})
	return out, err
}

func (r *Repository) BlogSummary(ctx context.Context) (*core.BlogSummary, error) {
	ctx, _ = r.authorize(ctx, capNone)
	out, _, err := route(ctx, r, "blogSummary", func(ctx context.Context, b core.DataService) (*core.BlogSummary, error) {
		return b.BlogSummary(ctx)
	})
	return out, err
}

func (r *Repository) CreateBlog(ctx context.Context, in core.BlogInput) (*core.BlogPost, error) {
	ctx, err := r.authorize(ctx, capSession)
	if err != nil {
		return nil, err
	}
	if in.Author == "" {
		if actor, ok := core.ActorFromContext(ctx); ok {
			in.Author = actor.Name
		}
	}
	out, remote, err := route(ctx, r, "createBlog", func(ctx context.Context, b core.DataService) (*core.BlogPost, error) {
		return b.CreateBlog(ctx, in)
	})
	if err != nil {
		return nil, err
	}
	r.record(ctx, remote, core.ActionCreate, core.EntityBlog, out.Title)
	return out, nil
}

func (r *Repository) UpdateBlog(ctx context.Context, id string, patch core.BlogPatch) (*core.BlogPost, error) {
	ctx, err := r.authorize(ctx, capSession)
	if err != nil {
		return nil, err
	}
	out, remote, err := route(ctx, r, "updateBlog", func(ctx context.Context, b core.DataService) (*core.BlogPost, error) {
		return b.UpdateBlog(ctx, id, patch)
	})
	if err != nil {
		return nil, err
	}
	r.record(ctx, remote, core.ActionUpdate, core.EntityBlog, out.Title)
	return out, nil
}

func (r *Repository) DeleteBlog(ctx context.Context, id string) error {
	ctx, err := r.authorize(ctx, capSession)
	if err != nil {
		return err
	}
	_, remote, err := route(ctx, r, "deleteBlog", func(ctx context.Context, b core.DataService) (struct{}, error) {
		return struct{}{}, b.DeleteBlog(ctx, id)
	})
	if err != nil {
		return err
	}
	r.record(ctx, remote, core.ActionDelete, core.EntityBlog, "blog #"+id)
	return nil
}
