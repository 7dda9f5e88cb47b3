package core

import (
	"context"
	"time"
)

// Ports define interfaces for external dependencies

// ============================================
// STORAGE PORT (persistent key/value slots)
// ============================================

// Storage is the persistent key/value store standing in for browser storage.
// Get returns ErrStorageNotFound for a missing key.
type Storage interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// ============================================
// BACKEND PORTS (remote API or local fallback)
// ============================================

type Authenticator interface {
	Login(ctx context.Context, identifier, secret string) (*Credential, error)
}

type AccountBackend interface {
	ListAccounts(ctx context.Context) ([]AdminAccount, error)
	CreateAccount(ctx context.Context, in AccountInput) (*AdminAccount, error)
	UpdateAccount(ctx context.Context, id string, patch AccountPatch) (*AdminAccount, error)
	DeleteAccount(ctx context.Context, id string) error
}

type BlogBackend interface {
	ListBlogs(ctx context.Context, skip, limit int) ([]BlogPost, error)
	GetBlog(ctx context.Context, id string) (*BlogPost, error)
	BlogSummary(ctx context.Context) (*BlogSummary, error)
	CreateBlog(ctx context.Context, in BlogInput) (*BlogPost, error)
	UpdateBlog(ctx context.Context, id string, patch BlogPatch) (*BlogPost, error)
	DeleteBlog(ctx context.Context, id string) error
}

// Backend is implemented by both the REST client and the fallback store.
type Backend interface {
	Authenticator
	AccountBackend
	BlogBackend
}

// ActivityLog is the local audit trail.
type ActivityLog interface {
	ListActivity(ctx context.Context) ([]ActivityLogEntry, error)
	AppendActivity(ctx context.Context, action Action, kind EntityKind, name string) (*ActivityLogEntry, error)
}

// HealthChecker reports whether a backend answers.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// TokenSource supplies the bearer token for outgoing requests.
type TokenSource interface {
	Token() string
}

// ============================================
// SESSION PORT (capability queries for consumers)
// ============================================

type SessionReader interface {
	State() State
	Session() (*Session, bool)
	IsSuperAdmin() (bool, error)
	Subscribe(fn func(SessionEvent)) (unsubscribe func())
}

// ============================================
// CLOCK
// ============================================

// Clock is swapped out in tests.
type Clock func() time.Time
