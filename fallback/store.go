// Package fallback is the local substitute for the Blogs & Admin backend.
// It keeps accounts, posts and an activity log as JSON collections in a
// core.Storage and offers the same operation signatures as the API client,
// so the console can run offline or as a demo.
package fallback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/lborres/blogdesk/core"
	"github.com/lborres/blogdesk/pkg/crypto"
)

// Storage keys, relative to the store's namespace.
const (
	KeyUsers       = "users"
	KeyBlogs       = "blogs"
	KeyActivity    = "activityLogs"
	KeyInitialized = "initialized"
	KeySigningKey  = "signingKey"
)

const (
	RoleSuperAdmin = "superadmin"
	RoleAdmin      = "admin"
)

const (
	DefaultNamespace = "local:"
	DefaultIssuer    = "blogdesk-local"
)

type Option func(*Store)

// WithNamespace prefixes every key the store writes.
func WithNamespace(ns string) Option {
	return func(s *Store) { s.ns = core.Namespace(ns) }
}

func WithClock(now core.Clock) Option {
	return func(s *Store) { s.now = now }
}

func WithPasswords(p crypto.PasswordHandler) Option {
	return func(s *Store) { s.passwords = p }
}

// WithIssuer sets the signer for demo login tokens. Without one, the store
// generates a key on first use and keeps it in storage.
func WithIssuer(i *crypto.TokenIssuer) Option {
	return func(s *Store) { s.issuer = i }
}

func WithIDs(g *crypto.IDGenerator) Option {
	return func(s *Store) { s.ids = g }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// Store serializes all collection updates behind one mutex; each mutation
// is a read-modify-write of a whole collection.
type Store struct {
	mu sync.Mutex

	storage   core.Storage
	ns        core.Namespace
	now       core.Clock
	passwords crypto.PasswordHandler
	issuer    *crypto.TokenIssuer
	ids       *crypto.IDGenerator
	logger    *slog.Logger
}

var (
	_ core.Backend     = (*Store)(nil)
	_ core.ActivityLog = (*Store)(nil)
)

func New(storage core.Storage, opts ...Option) (*Store, error) {
	if storage == nil {
		return nil, core.ErrStorageRequired
	}

	s := &Store{
		storage: storage,
		ns:      DefaultNamespace,
		now:     time.Now,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.passwords == nil {
		s.passwords = crypto.NewArgon2()
	}
	if s.ids == nil {
		s.ids = crypto.MustIDGenerator()
	}
	if s.issuer != nil {
		s.issuer.WithClock(s.now)
	}
	return s, nil
}

// signerLocked returns the demo token signer, loading or creating the
// stored key when none was configured.
func (s *Store) signerLocked(ctx context.Context) (*crypto.TokenIssuer, error) {
	if s.issuer != nil {
		return s.issuer, nil
	}

	key, err := s.storage.Get(ctx, s.ns.Key(KeySigningKey))
	if errors.Is(err, core.ErrStorageNotFound) {
		secret, genErr := crypto.GenerateSecret()
		if genErr != nil {
			return nil, fmt.Errorf("demo signing key: %w", genErr)
		}
		key = []byte(secret)
		err = s.storage.Set(ctx, s.ns.Key(KeySigningKey), key)
	}
	if err != nil {
		return nil, fmt.Errorf("demo signing key: %w", err)
	}

	issuer, err := crypto.NewTokenIssuer(key, DefaultIssuer, 0)
	if err != nil {
		return nil, fmt.Errorf("demo signing key: %w", err)
	}
	s.issuer = issuer.WithClock(s.now)
	return s.issuer, nil
}

// VerifyToken checks a token issued by Login and returns its subject.
// Tokens this store did not sign fail with core.ErrTokenMismatch; an
// expired one returns its subject with crypto.ErrTokenExpired.
func (s *Store) VerifyToken(ctx context.Context, token string) (string, error) {
	s.mu.Lock()
	signer, err := s.signerLocked(ctx)
	s.mu.Unlock()
	if err != nil {
		return "", err
	}

	subject, err := signer.Verify(token)
	if err != nil && !errors.Is(err, crypto.ErrTokenExpired) {
		return "", fmt.Errorf("%w: %w", core.ErrTokenMismatch, err)
	}
	return subject, err
}

// Init seeds the store unless the sentinel key already exists. It is safe
// to call any number of times.
func (s *Store) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initLocked(ctx)
}

func (s *Store) initLocked(ctx context.Context) error {
	_, err := s.storage.Get(ctx, s.ns.Key(KeyInitialized))
	if err == nil {
		return nil
	}
	if !errors.Is(err, core.ErrStorageNotFound) {
		return fmt.Errorf("read sentinel: %w", err)
	}

	users, blogs, logs := seedData(s.now())
	if err := core.SetJSON(ctx, s.storage, s.ns.Key(KeyUsers), users); err != nil {
		return err
	}
	if err := core.SetJSON(ctx, s.storage, s.ns.Key(KeyBlogs), blogs); err != nil {
		return err
	}
	if err := core.SetJSON(ctx, s.storage, s.ns.Key(KeyActivity), logs); err != nil {
		return err
	}
	if err := s.storage.Set(ctx, s.ns.Key(KeyInitialized), []byte("true")); err != nil {
		return err
	}

	s.logger.Info("local store seeded", "accounts", len(users), "blogs", len(blogs))
	return nil
}

// load reads one collection, seeding first if the store is fresh. A missing
// collection after seeding reads as empty.
func load[T any](ctx context.Context, s *Store, key string) ([]T, error) {
	if err := s.initLocked(ctx); err != nil {
		return nil, err
	}
	var out []T
	err := core.GetJSON(ctx, s.storage, s.ns.Key(key), &out)
	if errors.Is(err, core.ErrStorageNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) save(ctx context.Context, key string, v any) error {
	return core.SetJSON(ctx, s.storage, s.ns.Key(key), v)
}

func notFound(op string, err error) error {
	return &core.Error{Kind: core.KindValidation, Op: op, Status: http.StatusNotFound, Detail: err.Error(), Err: err}
}

func (s *Store) newID(prefix string) (string, error) {
	id, err := s.ids.New(prefix)
	if err != nil {
		return "", fmt.Errorf("generate id: %w", err)
	}
	return id, nil
}
