package fiber

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"

	"github.com/lborres/blogdesk/core"
	"github.com/lborres/blogdesk/services"
)

// DefaultBasePath is used when the console does not set one.
const DefaultBasePath = "/api"

var errIncompleteConsole = errors.New("console needs sessions, data and insights")

type Adapter struct {
	app      *fiber.App
	registry *services.EndpointRegistry
	extra    map[string]fiber.Handler
	console  *core.Console
}

var _ core.HTTPAdapter = (*Adapter)(nil)

func New(app *fiber.App) *Adapter {
	return &Adapter{app: app, registry: services.NewEndpointRegistry()}
}

// Registry exposes the endpoint registry so callers can add plugin
// endpoints before RegisterRoutes. Plugins need a handler in Handle.
func (a *Adapter) Registry() *services.EndpointRegistry {
	return a.registry
}

// RegisterRoutes binds a handler to every registered endpoint by
// OperationID, wrapped in the session guards its metadata asks for.
func (a *Adapter) RegisterRoutes(console *core.Console) error {
	if console == nil || console.Sessions == nil || console.Data == nil || console.Insights == nil {
		return errIncompleteConsole
	}
	a.console = console

	base := console.BasePath
	if base == "" {
		base = DefaultBasePath
	}
	api := a.app.Group(base)
	handlers := a.handlers()

	for _, ep := range a.registry.Endpoints() {
		h, ok := handlers[ep.Metadata.OperationID]
		if !ok {
			return fmt.Errorf("no handler for %s %s (%s)", ep.Method, ep.Path, ep.Metadata.OperationID)
		}
		if ep.Metadata.RequiresSuperAdmin {
			h = a.requireSuperAdmin(h)
		}
		if ep.Metadata.RequiresSession {
			h = a.requireSession(h)
		}

		switch ep.Method {
		case http.MethodGet:
			api.Get(ep.Path, h)
		case http.MethodPost:
			api.Post(ep.Path, h)
		case http.MethodPut:
			api.Put(ep.Path, h)
		case http.MethodPatch:
			api.Patch(ep.Path, h)
		case http.MethodDelete:
			api.Delete(ep.Path, h)
		default:
			return fmt.Errorf("unsupported method %s for %s", ep.Method, ep.Path)
		}
	}

	if console.Metrics != nil {
		a.app.Get("/metrics", adaptor.HTTPHandler(console.Metrics))
	}
	a.app.Get("/healthz", a.healthz)

	return nil
}
