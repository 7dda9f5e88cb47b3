package services

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/lborres/blogdesk/core"
)

// FakeBackend is a test-only core.Backend kept in maps. Error fields inject
// failures per operation family.
type FakeBackend struct {
	mu       sync.Mutex
	accounts map[string]core.AdminAccount
	secrets  map[string]string
	blogs    map[string]core.BlogPost
	next     int

	// Token is returned by Login; LastToken is the bearer seen by the most
	// recent ListAccounts, taken from the context first and then from
	// TokenSource, as the REST client picks it.
	Token       string
	LastToken   string
	TokenSource core.TokenSource

	loginErr  error
	listErr   error
	mutateErr error
	blogErr   error

	Calls map[string]int
}

var _ core.Backend = (*FakeBackend)(nil)

// NewFakeBackend seeds a super admin "admin"/"admin123" (id 1) and a regular
// admin "editor"/"editor123" (id 2).
func NewFakeBackend() *FakeBackend {
	f := &FakeBackend{
		accounts: make(map[string]core.AdminAccount),
		secrets:  make(map[string]string),
		blogs:    make(map[string]core.BlogPost),
		next:     3,
		Token:    "fake-token",
		Calls:    make(map[string]int),
	}
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	f.accounts["1"] = core.AdminAccount{ID: "1", Identity: "admin", FullName: "Super Admin", IsSuperAdmin: true, CreatedAt: created}
	f.accounts["2"] = core.AdminAccount{ID: "2", Identity: "editor", FullName: "John Doe", CreatedAt: created}
	f.secrets["1"] = "admin123"
	f.secrets["2"] = "editor123"
	return f
}

// SetLoginErr makes Login fail with err.
func (f *FakeBackend) SetLoginErr(err error) { f.mu.Lock(); f.loginErr = err; f.mu.Unlock() }

// SetListErr makes ListAccounts fail with err.
func (f *FakeBackend) SetListErr(err error) { f.mu.Lock(); f.listErr = err; f.mu.Unlock() }

// SetMutateErr makes every account and blog mutation fail with err.
func (f *FakeBackend) SetMutateErr(err error) { f.mu.Lock(); f.mutateErr = err; f.mu.Unlock() }

// SetBlogErr makes every blog read fail with err.
func (f *FakeBackend) SetBlogErr(err error) { f.mu.Lock(); f.blogErr = err; f.mu.Unlock() }

// RemoveAccount drops an account behind the console's back.
func (f *FakeBackend) RemoveAccount(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.accounts, id)
}

func (f *FakeBackend) CallCount(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Calls[op]
}

func (f *FakeBackend) bearer(ctx context.Context) string {
	if token, ok := core.TokenFromContext(ctx); ok {
		return token
	}
	if f.TokenSource != nil {
		return f.TokenSource.Token()
	}
	return ""
}

func (f *FakeBackend) Login(_ context.Context, identifier, secret string) (*core.Credential, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls["login"]++

	if f.loginErr != nil {
		return nil, f.loginErr
	}
	for id, a := range f.accounts {
		if core.IdentityMatches(a, identifier) && f.secrets[id] == secret {
			return &core.Credential{Token: f.Token, TokenType: "bearer"}, nil
		}
	}
	return nil, &core.Error{Kind: core.KindAuth, Op: "login", Status: 401, Detail: "Invalid email or password"}
}

func (f *FakeBackend) ListAccounts(ctx context.Context) ([]core.AdminAccount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls["listAccounts"]++
	f.LastToken = f.bearer(ctx)

	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]core.AdminAccount, 0, len(f.accounts))
	for _, a := range f.accounts {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *FakeBackend) CreateAccount(_ context.Context, in core.AccountInput) (*core.AdminAccount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls["createAccount"]++

	if f.mutateErr != nil {
		return nil, f.mutateErr
	}
	id := strconv.Itoa(f.next)
	f.next++
	a := core.AdminAccount{ID: id, Identity: in.Identity, FullName: in.FullName, CreatedAt: time.Now().UTC()}
	f.accounts[id] = a
	f.secrets[id] = in.Secret
	return &a, nil
}

func (f *FakeBackend) UpdateAccount(_ context.Context, id string, patch core.AccountPatch) (*core.AdminAccount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls["updateAccount"]++

	if f.mutateErr != nil {
		return nil, f.mutateErr
	}
	a, ok := f.accounts[id]
	if !ok {
		return nil, &core.Error{Kind: core.KindValidation, Op: "updateAccount", Status: 404, Detail: "Admin not found"}
	}
	if patch.Identity != nil {
		a.Identity = *patch.Identity
	}
	if patch.FullName != nil {
		a.FullName = *patch.FullName
	}
	f.accounts[id] = a
	return &a, nil
}

func (f *FakeBackend) DeleteAccount(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls["deleteAccount"]++

	if f.mutateErr != nil {
		return f.mutateErr
	}
	if id == "1" {
		return &core.Error{Kind: core.KindValidation, Op: "deleteAccount", Status: 403, Detail: "Cannot delete super admin"}
	}
	if _, ok := f.accounts[id]; !ok {
		return &core.Error{Kind: core.KindValidation, Op: "deleteAccount", Status: 404, Detail: "Admin not found"}
	}
	delete(f.accounts, id)
	return nil
}

func (f *FakeBackend) ListBlogs(_ context.Context, skip, limit int) ([]core.BlogPost, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls["listBlogs"]++

	if f.blogErr != nil {
		return nil, f.blogErr
	}
	out := make([]core.BlogPost, 0, len(f.blogs))
	for _, b := range f.blogs {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if skip >= len(out) {
		return []core.BlogPost{}, nil
	}
	out = out[skip:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (f *FakeBackend) GetBlog(_ context.Context, id string) (*core.BlogPost, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls["getBlog"]++

	if f.blogErr != nil {
		return nil, f.blogErr
	}
	b, ok := f.blogs[id]
	if !ok {
		return nil, &core.Error{Kind: core.KindFetch, Op: "getBlog", Status: 404, Detail: "Blog not found"}
	}
	return &b, nil
}

func (f *FakeBackend) BlogSummary(_ context.Context) (*core.BlogSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls["blogSummary"]++

	if f.blogErr != nil {
		return nil, f.blogErr
	}
	posts := make([]core.BlogPost, 0, len(f.blogs))
	for _, b := range f.blogs {
		posts = append(posts, b)
	}
	s := core.SummarizeBlogs(posts)
	return &s, nil
}

func (f *FakeBackend) CreateBlog(_ context.Context, in core.BlogInput) (*core.BlogPost, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls["createBlog"]++

	if f.mutateErr != nil {
		return nil, f.mutateErr
	}
	if err := in.Validate(); err != nil {
		return nil, core.Invalid("createBlog", err)
	}
	id := strconv.Itoa(f.next)
	f.next++
	now := time.Now().UTC().Add(time.Duration(f.next) * time.Millisecond)
	b := core.BlogPost{ID: id, Title: in.Title, Content: in.Content, Author: in.Author, Status: in.Status, CreatedAt: now, UpdatedAt: now}
	f.blogs[id] = b
	return &b, nil
}

func (f *FakeBackend) UpdateBlog(_ context.Context, id string, patch core.BlogPatch) (*core.BlogPost, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls["updateBlog"]++

	if f.mutateErr != nil {
		return nil, f.mutateErr
	}
	b, ok := f.blogs[id]
	if !ok {
		return nil, &core.Error{Kind: core.KindValidation, Op: "updateBlog", Status: 404, Detail: "Blog not found"}
	}
	patch.Apply(&b)
	b.UpdatedAt = time.Now().UTC()
	f.blogs[id] = b
	return &b, nil
}

func (f *FakeBackend) DeleteBlog(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls["deleteBlog"]++

	if f.mutateErr != nil {
		return f.mutateErr
	}
	if _, ok := f.blogs[id]; !ok {
		return &core.Error{Kind: core.KindValidation, Op: "deleteBlog", Status: 404, Detail: "Blog not found"}
	}
	delete(f.blogs, id)
	return nil
}

// FakeStorage wraps a map with injectable failures.
type FakeStorage struct {
	mu     sync.Mutex
	data   map[string][]byte
	getErr error
	setErr error
	delErr error

	// keySetErr fails Set for single keys only.
	keySetErr map[string]error
}

var _ core.Storage = (*FakeStorage)(nil)

func NewFakeStorage() *FakeStorage {
	return &FakeStorage{data: make(map[string][]byte)}
}

func (f *FakeStorage) FailGet(err error)    { f.mu.Lock(); f.getErr = err; f.mu.Unlock() }
func (f *FakeStorage) FailSet(err error)    { f.mu.Lock(); f.setErr = err; f.mu.Unlock() }
func (f *FakeStorage) FailDelete(err error) { f.mu.Lock(); f.delErr = err; f.mu.Unlock() }

// FailSetKey makes Set fail with err for key alone.
func (f *FakeStorage) FailSetKey(key string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.keySetErr == nil {
		f.keySetErr = make(map[string]error)
	}
	f.keySetErr[key] = err
}

// Raw returns the stored bytes for key.
func (f *FakeStorage) Raw(key string) ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.data[key]
	return v, ok
}

// Put writes key directly, bypassing injected failures.
func (f *FakeStorage) Put(key string, value []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[key] = value
}

func (f *FakeStorage) Get(_ context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	v, ok := f.data[key]
	if !ok {
		return nil, core.ErrStorageNotFound
	}
	return append([]byte(nil), v...), nil
}

func (f *FakeStorage) Set(_ context.Context, key string, value []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setErr != nil {
		return f.setErr
	}
	if err := f.keySetErr[key]; err != nil {
		return err
	}
	f.data[key] = append([]byte(nil), value...)
	return nil
}

func (f *FakeStorage) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.delErr != nil {
		return f.delErr
	}
	delete(f.data, key)
	return nil
}

func (f *FakeStorage) Close() error { return nil }

// String lists keys, for failure messages.
func (f *FakeStorage) String() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	keys := make([]string, 0, len(f.data))
	for k := range f.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return fmt.Sprint(keys)
}
