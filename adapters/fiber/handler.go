package fiber

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v3"

	"github.com/lborres/blogdesk/core"
	"github.com/lborres/blogdesk/services"
)

var errInvalidBody = errors.New("invalid request body")

// Handle binds h to a plugin endpoint's OperationID. Built-in operations
// cannot be overridden.
func (a *Adapter) Handle(operationID string, h fiber.Handler) {
	if a.extra == nil {
		a.extra = make(map[string]fiber.Handler)
	}
	a.extra[operationID] = h
}

func (a *Adapter) handlers() map[string]fiber.Handler {
	h := map[string]fiber.Handler{
		"getSession":   a.getSession,
		"login":        a.login,
		"logout":       a.logout,
		"getDashboard": a.dashboard,
		"listAdmins":   a.listAdmins,
		"createAdmin":  a.createAdmin,
		"updateAdmin":  a.updateAdmin,
		"deleteAdmin":  a.deleteAdmin,
		"listBlogs":    a.listBlogs,
		"createBlog":   a.createBlog,
		"blogSummary":  a.blogSummary,
		"getBlog":      a.getBlog,
		"updateBlog":   a.updateBlog,
		"deleteBlog":   a.deleteBlog,
		"listActivity": a.listActivity,
	}
	for op, fn := range a.extra {
		if _, builtin := h[op]; !builtin {
			h[op] = fn
		}
	}
	return h
}

type sessionView struct {
	State   core.State    `json:"state"`
	Session *core.Session `json:"session,omitempty"`
}

func (a *Adapter) sessionView() sessionView {
	session, _ := a.console.Sessions.Session()
	return sessionView{State: a.console.Sessions.State(), Session: session}
}

func (a *Adapter) getSession(c fiber.Ctx) error {
	return c.Status(http.StatusOK).JSON(a.sessionView())
}

func (a *Adapter) login(c fiber.Ctx) error {
	var input core.LoginInput
	if err := c.Bind().Body(&input); err != nil {
		return writeError(c, core.Invalid("login", errInvalidBody))
	}

	login := a.console.Sessions.Login
	if input.Offline {
		login = a.console.Sessions.LoginOffline
	}
	if _, err := login(c.Context(), input.Identifier, input.Secret); err != nil {
		return writeError(c, err)
	}
	return c.Status(http.StatusOK).JSON(a.sessionView())
}

func (a *Adapter) logout(c fiber.Ctx) error {
	if err := a.console.Sessions.Logout(c.Context()); err != nil {
		return writeError(c, err)
	}
	return c.Status(http.StatusOK).JSON(a.sessionView())
}

func (a *Adapter) dashboard(c fiber.Ctx) error {
	stats, err := a.console.Insights.Dashboard(c.Context())
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(http.StatusOK).JSON(stats)
}

func (a *Adapter) listAdmins(c fiber.Ctx) error {
	accounts, err := a.console.Data.ListAccounts(c.Context())
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(http.StatusOK).JSON(services.FilterAccounts(accounts, c.Query("q")))
}

func (a *Adapter) createAdmin(c fiber.Ctx) error {
	var input core.AccountInput
	if err := c.Bind().Body(&input); err != nil {
		return writeError(c, core.Invalid("createAccount", errInvalidBody))
	}

	account, err := a.console.Data.CreateAccount(c.Context(), input)
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(http.StatusCreated).JSON(account)
}

func (a *Adapter) updateAdmin(c fiber.Ctx) error {
	var patch core.AccountPatch
	if err := c.Bind().Body(&patch); err != nil {
		return writeError(c, core.Invalid("updateAccount", errInvalidBody))
	}

	account, err := a.console.Data.UpdateAccount(c.Context(), c.Params("id"), patch)
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(http.StatusOK).JSON(account)
}

func (a *Adapter) deleteAdmin(c fiber.Ctx) error {
	if err := a.console.Data.DeleteAccount(c.Context(), c.Params("id")); err != nil {
		return writeError(c, err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"detail": "Deleted successfully"})
}

func (a *Adapter) listBlogs(c fiber.Ctx) error {
	skip, err := queryInt(c, "skip", 0)
	if err != nil {
		return writeError(c, core.Invalid("listBlogs", core.ErrInvalidPagination))
	}
	limit, err := queryInt(c, "limit", 0)
	if err != nil {
		return writeError(c, core.Invalid("listBlogs", core.ErrInvalidPagination))
	}
	var status core.BlogStatus
	if raw := c.Query("status"); raw != "" {
		if status, err = core.ParseBlogStatus(raw); err != nil {
			return writeError(c, core.Invalid("listBlogs", err))
		}
	}

	posts, err := a.console.Data.ListBlogs(c.Context(), skip, limit)
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(http.StatusOK).JSON(services.FilterBlogs(posts, c.Query("q"), status))
}

func (a *Adapter) createBlog(c fiber.Ctx) error {
	var input core.BlogInput
	if err := c.Bind().Body(&input); err != nil {
		return writeError(c, core.Invalid("createBlog", errInvalidBody))
	}

	post, err := a.console.Data.CreateBlog(c.Context(), input)
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(http.StatusCreated).JSON(post)
}

func (a *Adapter) blogSummary(c fiber.Ctx) error {
	summary, err := a.console.Data.BlogSummary(c.Context())
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(http.StatusOK).JSON(summary)
}

func (a *Adapter) getBlog(c fiber.Ctx) error {
	post, err := a.console.Data.GetBlog(c.Context(), c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(http.StatusOK).JSON(post)
}

func (a *Adapter) updateBlog(c fiber.Ctx) error {
	var patch core.BlogPatch
	if err := c.Bind().Body(&patch); err != nil {
		return writeError(c, core.Invalid("updateBlog", errInvalidBody))
	}

	post, err := a.console.Data.UpdateBlog(c.Context(), c.Params("id"), patch)
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(http.StatusOK).JSON(post)
}

func (a *Adapter) deleteBlog(c fiber.Ctx) error {
	if err := a.console.Data.DeleteBlog(c.Context(), c.Params("id")); err != nil {
		return writeError(c, err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"detail": "Deleted successfully"})
}

func (a *Adapter) listActivity(c fiber.Ctx) error {
	limit, err := queryInt(c, "limit", 0)
	if err != nil {
		return writeError(c, core.Invalid("activity", core.ErrInvalidPagination))
	}
	filter := core.ActivityFilter{
		Day:     c.Query("date"),
		ActorID: c.Query("actor"),
		Action:  core.Action(c.Query("action")),
		Limit:   limit,
	}

	report, err := a.console.Insights.Activity(c.Context(), filter)
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(http.StatusOK).JSON(report)
}

func (a *Adapter) healthz(c fiber.Ctx) error {
	return c.Status(http.StatusOK).JSON(a.console.CheckHealth(c.Context()))
}

func queryInt(c fiber.Ctx, key string, fallback int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}

// writeError renders err with the status mapErrorToStatus picks.
func writeError(c fiber.Ctx, err error) error {
	resp := core.ErrorResponse{Error: err.Error(), Kind: core.KindOf(err)}
	if resp.Kind != "" {
		resp.Detail = core.DetailOf(err)
	}
	return c.Status(mapErrorToStatus(err)).JSON(resp)
}

// mapErrorToStatus maps session guards and error kinds to HTTP status
// codes. Validation and constraint errors keep a backend 4xx status.
func mapErrorToStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}

	switch {
	case errors.Is(err, core.ErrSessionUnresolved):
		return http.StatusServiceUnavailable
	case errors.Is(err, core.ErrNotAuthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, core.ErrNotSuperAdmin):
		return http.StatusForbidden
	case errors.Is(err, core.ErrOfflineUnavailable):
		return http.StatusBadRequest
	}

	status := core.StatusOf(err)
	switch core.KindOf(err) {
	case core.KindAuth, core.KindResolution:
		return http.StatusUnauthorized
	case core.KindValidation:
		if status >= 400 && status < 500 {
			return status
		}
		return http.StatusBadRequest
	case core.KindLocalConstraint:
		if status >= 400 && status < 500 {
			return status
		}
		return http.StatusConflict
	case core.KindFetch, core.KindMalformedResponse:
		return http.StatusBadGateway
	case core.KindUnreachable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
