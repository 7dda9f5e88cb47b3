package fiber

import (
	"github.com/gofiber/fiber/v3"

	"github.com/lborres/blogdesk/core"
)

// requireSession rejects requests while the console has no authenticated
// operator.
func (a *Adapter) requireSession(next fiber.Handler) fiber.Handler {
	return func(c fiber.Ctx) error {
		if _, ok := a.console.Sessions.Session(); !ok {
			if a.console.Sessions.State() == core.StateUnresolved {
				return writeError(c, core.ErrSessionUnresolved)
			}
			return writeError(c, core.ErrNotAuthenticated)
		}
		return next(c)
	}
}

// requireSuperAdmin runs inside requireSession.
func (a *Adapter) requireSuperAdmin(next fiber.Handler) fiber.Handler {
	return func(c fiber.Ctx) error {
		isSuper, err := a.console.Sessions.IsSuperAdmin()
		if err != nil {
			return writeError(c, err)
		}
		if !isSuper {
			return writeError(c, core.ErrNotSuperAdmin)
		}
		return next(c)
	}
}
