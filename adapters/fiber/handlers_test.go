package fiber

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lborres/blogdesk/core"
	"github.com/lborres/blogdesk/fallback"
	"github.com/lborres/blogdesk/pkg/crypto"
	"github.com/lborres/blogdesk/pkg/kv"
	"github.com/lborres/blogdesk/pkg/metrics"
	"github.com/lborres/blogdesk/services"
)

type testConsole struct {
	app      *fiber.App
	console  *core.Console
	backend  *services.FakeBackend
	sessions *services.SessionManager
}

func newTestConsole(t *testing.T, restore bool) *testConsole {
	t.Helper()
	ctx := context.Background()

	backend := services.NewFakeBackend()
	store, err := fallback.New(kv.NewMemory(), fallback.WithPasswords(crypto.NewFastArgon2()))
	require.NoError(t, err)

	m := metrics.New()
	sessions, err := services.NewSessionManager(core.DefaultSessionConfig(), kv.NewMemory(), backend,
		services.WithOfflineDirectory(store), services.WithSessionMetrics(m))
	require.NoError(t, err)
	if restore {
		require.NoError(t, sessions.Restore(ctx))
	}

	repo, err := services.NewRepository(core.BackendAuto, backend, store, sessions)
	require.NoError(t, err)

	console := &core.Console{
		Sessions: sessions,
		Data:     repo,
		Insights: services.NewInsights(repo, store, nil),
		Metrics:  m.Handler(),
	}

	app := fiber.New()
	require.NoError(t, New(app).RegisterRoutes(console))

	return &testConsole{app: app, console: console, backend: backend, sessions: sessions}
}

func (tc *testConsole) do(t *testing.T, method, path string, body any) (int, map[string]any) {
	t.Helper()
	status, raw := tc.doRaw(t, method, path, body)
	var out map[string]any
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return status, out
}

func (tc *testConsole) doRaw(t *testing.T, method, path string, body any) (int, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = strings.NewReader(string(b))
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := tc.app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, raw
}

func (tc *testConsole) login(t *testing.T, identifier, secret string) {
	t.Helper()
	status, body := tc.do(t, http.MethodPost, "/api/session/login", fiber.Map{"identifier": identifier, "secret": secret})
	require.Equal(t, http.StatusOK, status, body)
}

// Requirement: mapErrorToStatus maps session guards and error kinds to HTTP
// status codes.
func TestMapErrorToStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "nil", err: nil, want: http.StatusOK},
		{name: "unresolved session", err: core.ErrSessionUnresolved, want: http.StatusServiceUnavailable},
		{name: "anonymous", err: core.ErrNotAuthenticated, want: http.StatusUnauthorized},
		{name: "not super admin", err: fmt.Errorf("delete: %w", core.ErrNotSuperAdmin), want: http.StatusForbidden},
		{name: "offline not configured", err: core.ErrOfflineUnavailable, want: http.StatusBadRequest},
		{name: "auth", err: &core.Error{Kind: core.KindAuth, Status: 401}, want: http.StatusUnauthorized},
		{name: "resolution", err: &core.Error{Kind: core.KindResolution}, want: http.StatusUnauthorized},
		{name: "validation keeps backend status", err: &core.Error{Kind: core.KindValidation, Status: 403}, want: http.StatusForbidden},
		{name: "validation not found", err: &core.Error{Kind: core.KindValidation, Status: 404}, want: http.StatusNotFound},
		{name: "local validation", err: core.Invalid("createBlog", core.ErrTitleRequired), want: http.StatusBadRequest},
		{name: "local constraint", err: &core.Error{Kind: core.KindLocalConstraint}, want: http.StatusConflict},
		{name: "local constraint with status", err: &core.Error{Kind: core.KindLocalConstraint, Status: 403}, want: http.StatusForbidden},
		{name: "fetch", err: &core.Error{Kind: core.KindFetch, Status: 500}, want: http.StatusBadGateway},
		{name: "malformed", err: &core.Error{Kind: core.KindMalformedResponse}, want: http.StatusBadGateway},
		{name: "unreachable", err: &core.Error{Kind: core.KindUnreachable}, want: http.StatusServiceUnavailable},
		{name: "unknown", err: errors.New("boom"), want: http.StatusInternalServerError},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := mapErrorToStatus(test.err); got != test.want {
				t.Errorf("mapErrorToStatus(%v) = %d, want %d", test.err, got, test.want)
			}
		})
	}
}

func TestRegisterRoutes_RejectsIncompleteConsole(t *testing.T) {
	err := New(fiber.New()).RegisterRoutes(&core.Console{})

	assert.ErrorIs(t, err, errIncompleteConsole)
}

func TestRegisterRoutes_PluginWithoutHandler(t *testing.T) {
	tc := newTestConsole(t, true)
	adapter := New(fiber.New())
	require.NoError(t, adapter.Registry().RegisterPlugin([]core.Endpoint{{
		Path: "/logs/export", Method: http.MethodGet,
		Metadata: core.EndpointMetadata{OperationID: "exportLogs", RequiresSession: true},
	}}))
	console := &core.Console{Sessions: tc.sessions, Data: tc.backend, Insights: services.NewInsights(tc.backend, nil, nil)}

	err := adapter.RegisterRoutes(console)
	assert.ErrorContains(t, err, "exportLogs")

	adapter = New(fiber.New())
	require.NoError(t, adapter.Registry().RegisterPlugin([]core.Endpoint{{
		Path: "/logs/export", Method: http.MethodGet,
		Metadata: core.EndpointMetadata{OperationID: "exportLogs", RequiresSession: true},
	}}))
	adapter.Handle("exportLogs", func(c fiber.Ctx) error { return c.SendString("csv") })
	assert.NoError(t, adapter.RegisterRoutes(console))
}

func TestSessionFlow(t *testing.T) {
	tc := newTestConsole(t, true)

	status, body := tc.do(t, http.MethodGet, "/api/session", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "anonymous", body["state"])
	assert.NotContains(t, body, "session")

	status, body = tc.do(t, http.MethodPost, "/api/session/login", fiber.Map{"identifier": "admin", "secret": "admin123"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "authenticated", body["state"])
	session := body["session"].(map[string]any)
	assert.Equal(t, "1", session["userId"])
	assert.Equal(t, true, session["isSuperAdmin"])
	assert.NotContains(t, session, "token")

	status, body = tc.do(t, http.MethodPost, "/api/session/logout", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "anonymous", body["state"])

	status, _ = tc.do(t, http.MethodPost, "/api/session/logout", nil)
	assert.Equal(t, http.StatusOK, status, "logout is idempotent")
}

func TestLogin_Failures(t *testing.T) {
	tests := []struct {
		name       string
		body       any
		wantStatus int
		wantDetail string
	}{
		{name: "wrong secret", body: fiber.Map{"identifier": "admin", "secret": "nope"}, wantStatus: http.StatusUnauthorized, wantDetail: "Invalid email or password"},
		{name: "missing identifier", body: fiber.Map{"secret": "x"}, wantStatus: http.StatusBadRequest, wantDetail: core.ErrIdentifierRequired.Error()},
		{name: "offline with any secret", body: fiber.Map{"identifier": "nobody@admin.com", "secret": "x", "offline": true}, wantStatus: http.StatusUnauthorized, wantDetail: "Invalid email or password"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			tc := newTestConsole(t, true)

			status, body := tc.do(t, http.MethodPost, "/api/session/login", test.body)

			assert.Equal(t, test.wantStatus, status)
			assert.Equal(t, test.wantDetail, body["detail"])
			assert.Equal(t, core.StateAnonymous, tc.sessions.State())
		})
	}
}

func TestOfflineLogin(t *testing.T) {
	tc := newTestConsole(t, true)

	status, body := tc.do(t, http.MethodPost, "/api/session/login",
		fiber.Map{"identifier": "superadmin@admin.com", "secret": "demo", "offline": true})

	require.Equal(t, http.StatusOK, status)
	session := body["session"].(map[string]any)
	assert.Equal(t, "offline", session["mode"])

	status, raw := tc.doRaw(t, http.MethodGet, "/api/admins", nil)
	require.Equal(t, http.StatusOK, status)
	var accounts []core.AdminAccount
	require.NoError(t, json.Unmarshal(raw, &accounts))
	assert.Len(t, accounts, 2)
	assert.Zero(t, tc.backend.CallCount("listAccounts"), "offline sessions stay local")
}

// Requirement: views guard on the session state and capability they need.
func TestGuards(t *testing.T) {
	t.Run("unresolved", func(t *testing.T) {
		tc := newTestConsole(t, false)

		status, body := tc.do(t, http.MethodGet, "/api/dashboard", nil)

		assert.Equal(t, http.StatusServiceUnavailable, status)
		assert.Equal(t, core.ErrSessionUnresolved.Error(), body["error"])
	})

	t.Run("anonymous", func(t *testing.T) {
		tc := newTestConsole(t, true)

		for _, path := range []string{"/api/dashboard", "/api/admins", "/api/logs"} {
			status, _ := tc.do(t, http.MethodGet, path, nil)
			assert.Equal(t, http.StatusUnauthorized, status, path)
		}
		status, _ := tc.do(t, http.MethodPost, "/api/blogs", fiber.Map{"title": "x"})
		assert.Equal(t, http.StatusUnauthorized, status)

		status, _ = tc.do(t, http.MethodGet, "/api/blogs", nil)
		assert.Equal(t, http.StatusOK, status, "blog list is public")
	})

	t.Run("regular admin", func(t *testing.T) {
		tc := newTestConsole(t, true)
		tc.login(t, "editor", "editor123")

		status, _ := tc.do(t, http.MethodGet, "/api/admins", nil)
		assert.Equal(t, http.StatusOK, status)

		status, body := tc.do(t, http.MethodPost, "/api/admins", fiber.Map{"identity": "writer", "secret": "pw"})
		assert.Equal(t, http.StatusForbidden, status)
		assert.Equal(t, core.ErrNotSuperAdmin.Error(), body["error"])

		status, _ = tc.do(t, http.MethodDelete, "/api/admins/2", nil)
		assert.Equal(t, http.StatusForbidden, status)
		assert.Zero(t, tc.backend.CallCount("deleteAccount"))
	})
}

func TestAdmins(t *testing.T) {
	tc := newTestConsole(t, true)
	tc.login(t, "admin", "admin123")

	status, body := tc.do(t, http.MethodPost, "/api/admins", fiber.Map{"identity": "writer", "secret": "pw", "fullName": "Jane Writer"})
	require.Equal(t, http.StatusCreated, status)
	id := body["id"].(string)

	status, body = tc.do(t, http.MethodPut, "/api/admins/"+id, fiber.Map{"fullName": "Jane W."})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Jane W.", body["fullName"])

	status, raw := tc.doRaw(t, http.MethodGet, "/api/admins?q=jane", nil)
	require.Equal(t, http.StatusOK, status)
	var accounts []core.AdminAccount
	require.NoError(t, json.Unmarshal(raw, &accounts))
	require.Len(t, accounts, 1)
	assert.Equal(t, id, accounts[0].ID)

	status, body = tc.do(t, http.MethodDelete, "/api/admins/1", nil)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "Cannot delete super admin", body["detail"])

	status, body = tc.do(t, http.MethodDelete, "/api/admins/"+id, nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Deleted successfully", body["detail"])
}

func TestBlogs(t *testing.T) {
	tc := newTestConsole(t, true)
	tc.login(t, "editor", "editor123")

	status, body := tc.do(t, http.MethodPost, "/api/blogs", fiber.Map{"title": "Hello", "content": "World"})
	require.Equal(t, http.StatusCreated, status, body)
	id := body["id"].(string)
	assert.Equal(t, "draft", body["status"])
	assert.Equal(t, "John Doe", body["author"])

	status, body = tc.do(t, http.MethodPost, "/api/blogs", fiber.Map{"content": "no title"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, core.ErrTitleRequired.Error(), body["detail"])

	status, body = tc.do(t, http.MethodPut, "/api/blogs/"+id, fiber.Map{"status": "published"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "published", body["status"])
	assert.Equal(t, "Hello", body["title"])

	status, body = tc.do(t, http.MethodGet, "/api/blogs/summary", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(1), body["total"])
	assert.Equal(t, float64(1), body["published"])

	status, body = tc.do(t, http.MethodGet, "/api/blogs/"+id, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "World", body["content"])

	status, raw := tc.doRaw(t, http.MethodGet, "/api/blogs?status=draft", nil)
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `[]`, string(raw))

	status, _ = tc.do(t, http.MethodGet, "/api/blogs?limit=abc", nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = tc.do(t, http.MethodDelete, "/api/blogs/"+id, nil)
	assert.Equal(t, http.StatusOK, status)
	status, _ = tc.do(t, http.MethodDelete, "/api/blogs/"+id, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestDashboardAndLogs(t *testing.T) {
	tc := newTestConsole(t, true)
	tc.login(t, "admin", "admin123")
	status, _ := tc.do(t, http.MethodPost, "/api/blogs", fiber.Map{"title": "Hello", "status": "published"})
	require.Equal(t, http.StatusCreated, status)

	status, body := tc.do(t, http.MethodGet, "/api/dashboard", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(1), body["totalBlogs"])
	assert.Equal(t, float64(2), body["totalAdmins"])
	recent := body["recentActivity"].([]any)
	require.NotEmpty(t, recent)
	assert.Equal(t, "Hello", recent[0].(map[string]any)["entityName"])

	status, body = tc.do(t, http.MethodGet, "/api/logs?actor=1&action=create", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(1), body["total"])

	status, body = tc.do(t, http.MethodGet, "/api/logs?date=yesterday", nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, core.ErrInvalidDate.Error(), body["detail"])
}

func TestMetricsAndHealth(t *testing.T) {
	tc := newTestConsole(t, true)
	tc.login(t, "admin", "admin123")

	status, raw := tc.doRaw(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(raw), "blogdesk_session_authenticated 1")

	status, body := tc.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "authenticated", body["session"])
	assert.NotContains(t, body, "backend")
}

type healthFunc func(context.Context) error

func (f healthFunc) Health(ctx context.Context) error { return f(ctx) }

// Requirement: /healthz reports the backend check without failing the
// console itself.
func TestHealthReportsBackend(t *testing.T) {
	tests := []struct {
		name       string
		healthErr  error
		wantStatus string
		wantBack   string
		wantDetail any
	}{
		{name: "backend up", wantStatus: "ok", wantBack: "ok"},
		{
			name:       "backend down",
			healthErr:  &core.Error{Kind: core.KindUnreachable, Op: "health", Detail: "backend unreachable"},
			wantStatus: "degraded",
			wantBack:   "unavailable",
			wantDetail: "backend unreachable",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			// Arrange
			tc := newTestConsole(t, true)
			tc.console.Backend = healthFunc(func(context.Context) error { return test.healthErr })

			// Act
			status, body := tc.do(t, http.MethodGet, "/healthz", nil)

			// Assert
			assert.Equal(t, http.StatusOK, status)
			assert.Equal(t, test.wantStatus, body["status"])
			assert.Equal(t, test.wantBack, body["backend"])
			assert.Equal(t, test.wantDetail, body["detail"])
			assert.Equal(t, "anonymous", body["session"])
		})
	}
}
