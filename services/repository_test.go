package services

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lborres/blogdesk/core"
	"github.com/lborres/blogdesk/fallback"
	"github.com/lborres/blogdesk/pkg/kv"
	"github.com/lborres/blogdesk/pkg/metrics"
)

type repoFixture struct {
	backend  *FakeBackend
	store    *fallback.Store
	sessions *SessionManager
	metrics  *metrics.Metrics
	repo     *Repository
}

func newRepoFixture(t *testing.T, mode core.BackendMode) *repoFixture {
	t.Helper()
	f := &repoFixture{
		backend: NewFakeBackend(),
		store:   newLocalStore(t),
		metrics: metrics.New(),
	}
	f.sessions = newManager(t, kv.NewMemory(), f.backend, core.DefaultSessionConfig(), WithOfflineDirectory(f.store))
	f.backend.TokenSource = f.sessions
	require.NoError(t, f.sessions.Restore(context.Background()))

	repo, err := NewRepository(mode, f.backend, f.store, f.sessions, WithRepositoryMetrics(f.metrics))
	require.NoError(t, err)
	f.repo = repo
	return f
}

func (f *repoFixture) login(t *testing.T, identifier, secret string) {
	t.Helper()
	_, err := f.sessions.Login(context.Background(), identifier, secret)
	require.NoError(t, err)
}

func (f *repoFixture) activityCount(t *testing.T) int {
	t.Helper()
	entries, err := f.store.ListActivity(context.Background())
	require.NoError(t, err)
	return len(entries)
}

func TestNewRepository_Validates(t *testing.T) {
	store := newLocalStore(t)
	backend := NewFakeBackend()

	tests := []struct {
		name    string
		mode    core.BackendMode
		remote  core.DataService
		local   LocalStore
		wantErr error
	}{
		{name: "remote without client", mode: core.BackendRemote, local: store, wantErr: core.ErrBackendRequired},
		{name: "auto without client", mode: core.BackendAuto, local: store, wantErr: core.ErrBackendRequired},
		{name: "local without store", mode: core.BackendLocal, remote: backend, wantErr: core.ErrBackendRequired},
		{name: "unknown mode", mode: "hybrid", remote: backend, local: store, wantErr: core.ErrUnknownMode},
		{name: "remote only", mode: core.BackendRemote, remote: backend},
		{name: "auto without fallback", mode: core.BackendAuto, remote: backend},
		{name: "local only", mode: core.BackendLocal, local: store},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			repo, err := NewRepository(test.mode, test.remote, test.local, nil)
			if test.wantErr != nil {
				assert.ErrorIs(t, err, test.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, test.mode, repo.Mode())
		})
	}
}

// Requirement: each operation enforces the capability its view needs.
func TestRepository_Capabilities(t *testing.T) {
	ctx := context.Background()

	t.Run("unresolved session", func(t *testing.T) {
		backend := NewFakeBackend()
		sm := newManager(t, kv.NewMemory(), backend, core.DefaultSessionConfig())
		repo, err := NewRepository(core.BackendRemote, backend, nil, sm)
		require.NoError(t, err)

		_, err = repo.ListAccounts(ctx)

		assert.ErrorIs(t, err, core.ErrSessionUnresolved)
	})

	t.Run("anonymous", func(t *testing.T) {
		f := newRepoFixture(t, core.BackendRemote)

		_, err := f.repo.ListAccounts(ctx)
		assert.ErrorIs(t, err, core.ErrNotAuthenticated)

		_, err = f.repo.CreateBlog(ctx, core.BlogInput{Title: "Hello"})
		assert.ErrorIs(t, err, core.ErrNotAuthenticated)

		_, err = f.repo.ListBlogs(ctx, 0, 10)
		assert.NoError(t, err, "blog reads are public")
		_, err = f.repo.BlogSummary(ctx)
		assert.NoError(t, err)

		assert.Zero(t, f.backend.CallCount("createBlog"))
	})

	t.Run("regular admin", func(t *testing.T) {
		f := newRepoFixture(t, core.BackendRemote)
		f.login(t, "editor", "editor123")

		accounts, err := f.repo.ListAccounts(ctx)
		require.NoError(t, err)
		assert.Len(t, accounts, 2)

		_, err = f.repo.CreateAccount(ctx, core.AccountInput{Identity: "writer", Secret: "pw"})
		assert.ErrorIs(t, err, core.ErrNotSuperAdmin)
		name := "Renamed"
		_, err = f.repo.UpdateAccount(ctx, "2", core.AccountPatch{FullName: &name})
		assert.ErrorIs(t, err, core.ErrNotSuperAdmin)
		assert.ErrorIs(t, f.repo.DeleteAccount(ctx, "2"), core.ErrNotSuperAdmin)

		assert.Zero(t, f.backend.CallCount("createAccount"))
		assert.Zero(t, f.backend.CallCount("deleteAccount"))
	})
}

// Requirement: after login with the seeded super admin, listing accounts
// includes the "admin" identity.
func TestRepository_LoginThenListAccounts(t *testing.T) {
	f := newRepoFixture(t, core.BackendRemote)
	f.login(t, "admin", "admin123")
	f.backend.LastToken = ""

	accounts, err := f.repo.ListAccounts(context.Background())

	require.NoError(t, err)
	identities := make([]string, 0, len(accounts))
	for _, a := range accounts {
		identities = append(identities, a.Identity)
	}
	assert.Contains(t, identities, "admin")
	assert.Equal(t, f.backend.Token, f.backend.LastToken)
}

func TestRepository_RemoteMutationsAreRecorded(t *testing.T) {
	ctx := context.Background()
	f := newRepoFixture(t, core.BackendAuto)
	f.login(t, "admin", "admin123")
	before := f.activityCount(t)

	account, err := f.repo.CreateAccount(ctx, core.AccountInput{Identity: "writer", Secret: "pw", FullName: "Jane Writer"})
	require.NoError(t, err)
	post, err := f.repo.CreateBlog(ctx, core.BlogInput{Title: "Release notes"})
	require.NoError(t, err)
	require.NoError(t, f.repo.DeleteAccount(ctx, account.ID))

	assert.Equal(t, "Super Admin", post.Author, "author defaults to the operator")
	assert.Equal(t, core.StatusDraft, post.Status)

	entries, err := f.store.ListActivity(ctx)
	require.NoError(t, err)
	require.Len(t, entries, before+3)
	newest := entries[:3]
	assert.Equal(t, core.ActionDelete, newest[0].Action)
	assert.Equal(t, "admin #"+account.ID, newest[0].EntityName)
	assert.Equal(t, core.EntityBlog, newest[1].EntityKind)
	assert.Equal(t, "Release notes", newest[1].EntityName)
	assert.Equal(t, "Jane Writer", newest[2].EntityName)
	for _, e := range newest {
		assert.Equal(t, "1", e.ActorID)
		assert.Equal(t, "Super Admin", e.ActorName)
	}
}

// Requirement: deleting the bootstrap account is refused and nothing is
// removed or recorded.
func TestRepository_DeleteRefusal(t *testing.T) {
	ctx := context.Background()

	t.Run("remote", func(t *testing.T) {
		f := newRepoFixture(t, core.BackendAuto)
		f.login(t, "admin", "admin123")
		before := f.activityCount(t)

		err := f.repo.DeleteAccount(ctx, "1")

		assert.ErrorIs(t, err, core.ErrValidation)
		assert.Equal(t, 403, core.StatusOf(err))
		accounts, err := f.repo.ListAccounts(ctx)
		require.NoError(t, err)
		assert.Len(t, accounts, 2)
		assert.Equal(t, before, f.activityCount(t))
	})

	t.Run("local", func(t *testing.T) {
		f := newRepoFixture(t, core.BackendLocal)
		_, err := f.sessions.LoginOffline(ctx, "superadmin@admin.com", "demo")
		require.NoError(t, err)

		err = f.repo.DeleteAccount(ctx, "superadmin-001")

		assert.ErrorIs(t, err, core.ErrLocalConstraint)
		accounts, err := f.repo.ListAccounts(ctx)
		require.NoError(t, err)
		assert.Len(t, accounts, 2)
	})
}

func TestRepository_AutoFallback(t *testing.T) {
	ctx := context.Background()

	t.Run("unreachable backend serves local data", func(t *testing.T) {
		f := newRepoFixture(t, core.BackendAuto)
		f.backend.SetBlogErr(errUnreachable)

		posts, err := f.repo.ListBlogs(ctx, 0, 0)

		require.NoError(t, err)
		assert.Len(t, posts, 3)
		assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.FallbackActivations.WithLabelValues("listBlogs")))
	})

	t.Run("backend errors are not masked", func(t *testing.T) {
		f := newRepoFixture(t, core.BackendAuto)
		f.backend.SetBlogErr(&core.Error{Kind: core.KindFetch, Op: "listBlogs", Status: 500, Detail: "Internal Server Error"})

		_, err := f.repo.ListBlogs(ctx, 0, 0)

		assert.ErrorIs(t, err, core.ErrFetch)
		assert.NotErrorIs(t, err, core.ErrUnreachable)
	})

	t.Run("remote mode never falls back", func(t *testing.T) {
		f := newRepoFixture(t, core.BackendRemote)
		f.backend.SetBlogErr(errUnreachable)

		_, err := f.repo.BlogSummary(ctx)

		assert.ErrorIs(t, err, core.ErrUnreachable)
	})

	t.Run("offline session stays local", func(t *testing.T) {
		f := newRepoFixture(t, core.BackendAuto)
		_, err := f.sessions.LoginOffline(ctx, "superadmin@admin.com", "demo")
		require.NoError(t, err)

		accounts, err := f.repo.ListAccounts(ctx)

		require.NoError(t, err)
		assert.Len(t, accounts, 2)
		assert.Equal(t, "superadmin-001", accounts[0].ID)
		assert.Zero(t, f.backend.CallCount("listAccounts"))
	})
}

func TestRepository_LocalModeLogsOnce(t *testing.T) {
	ctx := context.Background()
	f := newRepoFixture(t, core.BackendLocal)
	_, err := f.sessions.LoginOffline(ctx, "admin@admin.com", "demo")
	require.NoError(t, err)
	before := f.activityCount(t)

	post, err := f.repo.CreateBlog(ctx, core.BlogInput{Title: "Local post"})
	require.NoError(t, err)

	assert.Equal(t, "John Doe", post.Author)
	assert.Equal(t, before+1, f.activityCount(t))
	assert.Zero(t, f.backend.CallCount("createBlog"))
	assert.NotNil(t, f.repo.Activity())
}
