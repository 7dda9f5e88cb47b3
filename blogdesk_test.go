package blogdesk_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lborres/blogdesk"
	fiberadapter "github.com/lborres/blogdesk/adapters/fiber"
	"github.com/lborres/blogdesk/adapters/rest/resttest"
	"github.com/lborres/blogdesk/core"
	"github.com/lborres/blogdesk/pkg/crypto"
	"github.com/lborres/blogdesk/pkg/kv"
)

func newConsole(t *testing.T, config blogdesk.Config) *blogdesk.Console {
	t.Helper()
	if config.Storage == nil {
		config.Storage = kv.NewMemory()
	}
	if config.PasswordHasher == nil {
		config.PasswordHasher = crypto.NewFastArgon2()
	}
	console, err := blogdesk.New(config)
	require.NoError(t, err)
	t.Cleanup(func() { _ = console.Close() })
	require.NoError(t, console.Sessions.Restore(context.Background()))
	return console
}

func TestNew_Validates(t *testing.T) {
	tests := []struct {
		name    string
		config  blogdesk.Config
		wantErr error
	}{
		{
			name:    "storage required",
			config:  blogdesk.Config{APIURL: "http://127.0.0.1:8000"},
			wantErr: blogdesk.ErrStorageRequired,
		},
		{
			name:    "unknown mode",
			config:  blogdesk.Config{Storage: kv.NewMemory(), Mode: "hybrid"},
			wantErr: blogdesk.ErrUnknownMode,
		},
		{
			name:    "remote needs a url",
			config:  blogdesk.Config{Storage: kv.NewMemory(), Mode: blogdesk.BackendRemote},
			wantErr: blogdesk.ErrBaseURLRequired,
		},
		{
			name:    "short demo secret",
			config:  blogdesk.Config{Storage: kv.NewMemory(), Mode: blogdesk.BackendLocal, DemoSecret: "short"},
			wantErr: blogdesk.ErrDemoSecretTooShort,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := blogdesk.New(test.config)

			assert.ErrorIs(t, err, test.wantErr)
		})
	}
}

func TestNew_StartsUnresolved(t *testing.T) {
	console, err := blogdesk.New(blogdesk.Config{Storage: kv.NewMemory(), Mode: blogdesk.BackendLocal})
	require.NoError(t, err)

	assert.Equal(t, blogdesk.StateUnresolved, console.Sessions.State())
	_, err = console.Data.ListAccounts(context.Background())
	assert.ErrorIs(t, err, blogdesk.ErrSessionUnresolved)
}

// Requirement: against a live backend, login resolves the profile, requests
// carry the bearer, and the session survives a restart.
func TestConsole_Remote(t *testing.T) {
	// Arrange
	ctx := context.Background()
	srv := resttest.NewServer()
	defer srv.Close()
	storage := kv.NewMemory()
	console := newConsole(t, blogdesk.Config{APIURL: srv.URL, Mode: blogdesk.BackendRemote, Storage: storage})

	// Act
	session, err := console.Sessions.Login(ctx, resttest.SuperUsername, resttest.SuperPassword)

	// Assert
	require.NoError(t, err)
	assert.True(t, session.IsSuperAdmin)
	assert.Equal(t, "1", session.UserID)

	accounts, err := console.Data.ListAccounts(ctx)
	require.NoError(t, err)
	var identities []string
	for _, a := range accounts {
		identities = append(identities, a.Identity)
	}
	assert.Contains(t, identities, resttest.SuperUsername)

	post, err := console.Data.CreateBlog(ctx, core.BlogInput{Title: "From the console"})
	require.NoError(t, err)
	assert.Equal(t, core.StatusDraft, post.Status)
	req, ok := srv.LastRequest(http.MethodPost, "/blogs")
	require.True(t, ok)
	assert.Equal(t, "Bearer "+session.Token, req.Authorization)

	err = console.Data.DeleteAccount(ctx, "1")
	assert.ErrorIs(t, err, blogdesk.ErrValidation)

	restarted := newConsole(t, blogdesk.Config{APIURL: srv.URL, Mode: blogdesk.BackendRemote, Storage: storage})
	assert.Equal(t, blogdesk.StateAuthenticated, restarted.Sessions.State())
	isSuper, err := restarted.Sessions.IsSuperAdmin()
	require.NoError(t, err)
	assert.True(t, isSuper)

	stats, err := restarted.Insights.Dashboard(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalBlogs)
	assert.Equal(t, 2, stats.TotalAdmins)
	assert.Empty(t, stats.RecentActivity)
}

func TestConsole_RemoteLoginRejected(t *testing.T) {
	srv := resttest.NewServer()
	defer srv.Close()
	console := newConsole(t, blogdesk.Config{APIURL: srv.URL, Mode: blogdesk.BackendRemote})

	_, err := console.Sessions.Login(context.Background(), resttest.SuperUsername, "wrong")

	assert.ErrorIs(t, err, blogdesk.ErrAuth)
	assert.Equal(t, blogdesk.StateAnonymous, console.Sessions.State())
}

func TestConsole_AutoFallsBackWhenUnreachable(t *testing.T) {
	ctx := context.Background()
	srv := resttest.NewServer()
	url := srv.URL
	srv.Close()
	console := newConsole(t, blogdesk.Config{APIURL: url, Mode: blogdesk.BackendAuto, OfflineLogin: true})

	session, err := console.Sessions.Login(ctx, "superadmin@admin.com", "demo")
	require.NoError(t, err)
	assert.Equal(t, core.ModeOfflineLogin, session.Mode)

	posts, err := console.Data.ListBlogs(ctx, 0, 0)
	require.NoError(t, err)
	assert.Len(t, posts, 3)

	stats, err := console.Insights.Dashboard(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalBlogs)
	assert.Len(t, stats.RecentActivity, 3)
}

func TestConsole_AutoWithoutOfflineLogin(t *testing.T) {
	srv := resttest.NewServer()
	url := srv.URL
	srv.Close()
	console := newConsole(t, blogdesk.Config{APIURL: url, Mode: blogdesk.BackendAuto})

	_, err := console.Sessions.Login(context.Background(), "superadmin@admin.com", "demo")

	assert.ErrorIs(t, err, blogdesk.ErrUnreachable)
	_, err = console.Sessions.LoginOffline(context.Background(), "superadmin@admin.com", "demo")
	assert.ErrorIs(t, err, core.ErrOfflineUnavailable)
}

// Requirement: the console checks the backend's /health when it has one.
func TestConsole_CheckHealth(t *testing.T) {
	ctx := context.Background()
	srv := resttest.NewServer()
	defer srv.Close()

	up := newConsole(t, blogdesk.Config{APIURL: srv.URL, Mode: blogdesk.BackendRemote})
	report := up.CheckHealth(ctx)
	assert.Equal(t, "ok", report.Status)
	assert.Equal(t, "ok", report.Backend)
	assert.Equal(t, blogdesk.StateAnonymous, report.Session)

	closed := resttest.NewServer()
	url := closed.URL
	closed.Close()
	down := newConsole(t, blogdesk.Config{APIURL: url, Mode: blogdesk.BackendAuto})
	report = down.CheckHealth(ctx)
	assert.Equal(t, "degraded", report.Status)
	assert.Equal(t, "unavailable", report.Backend)
	assert.NotEmpty(t, report.Detail)

	local := newConsole(t, blogdesk.Config{Mode: blogdesk.BackendLocal})
	assert.Nil(t, local.Backend)
	report = local.CheckHealth(ctx)
	assert.Equal(t, "ok", report.Status)
	assert.Empty(t, report.Backend)
}

func TestConsole_Local(t *testing.T) {
	ctx := context.Background()
	secret := strings.Repeat("k", 32)
	storage := kv.NewMemory()
	console := newConsole(t, blogdesk.Config{Mode: blogdesk.BackendLocal, Storage: storage, DemoSecret: secret})

	session, err := console.Sessions.Login(ctx, "superadmin@admin.com", "anything")
	require.NoError(t, err)
	assert.Equal(t, core.ModeOfflineLogin, session.Mode)

	issuer, err := crypto.NewTokenIssuer([]byte(secret), "blogdesk-local", time.Hour)
	require.NoError(t, err)
	subject, err := issuer.Verify(session.Token)
	require.NoError(t, err)
	assert.Equal(t, "superadmin-001", subject)

	err = console.Data.DeleteAccount(ctx, "superadmin-001")
	assert.ErrorIs(t, err, blogdesk.ErrLocalConstraint)

	account, err := console.Data.CreateAccount(ctx, core.AccountInput{Identity: "writer@admin.com", Secret: "s3cret", FullName: "Writer"})
	require.NoError(t, err)

	report, err := console.Insights.Activity(ctx, core.ActivityFilter{ActorID: "superadmin-001", Action: core.ActionCreate})
	require.NoError(t, err)
	require.NotEmpty(t, report.Entries)
	assert.Equal(t, "Writer", report.Entries[0].EntityName)

	require.NoError(t, console.Sessions.Logout(ctx))
	_, err = console.Sessions.Login(ctx, account.Identity, "wrong")
	assert.ErrorIs(t, err, blogdesk.ErrAuth)
	_, err = console.Sessions.Login(ctx, account.Identity, "s3cret")
	assert.NoError(t, err)
}

func TestConsole_RegistersHTTPRoutes(t *testing.T) {
	app := fiber.New()
	console := newConsole(t, blogdesk.Config{Mode: blogdesk.BackendLocal, HTTP: fiberadapter.New(app)})
	assert.Equal(t, "/api", console.BasePath)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/session", nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"state":"anonymous"}`, string(body))
}
