package main

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/logger"

	fiberadapter "github.com/lborres/blogdesk/adapters/fiber"
)

func logFormat() string {
	format := []string{
		"${time}",
		"${status}|${latency}",
		"${ip}",
		"${method}|${path}|${queryParams}",
		"${error}",
	}
	return strings.Join(format, "|") + "\n"
}

// serve exposes the console views as JSON under /api until ctx is done.
func (a *app) serve(ctx context.Context, args []string) error {
	fs := newFlags("serve")
	addr := fs.String("addr", a.cfg.ListenAddr, "listen address")
	if err := parse(fs, args); err != nil {
		return err
	}

	srv := fiber.New(fiber.Config{AppName: "blogdesk"})
	srv.Use(logger.New(logger.Config{
		Format:     logFormat(),
		TimeFormat: "2006/01/02 15:04:05",
		TimeZone:   "Local",
	}))

	if err := a.open(ctx, fiberadapter.New(srv)); err != nil {
		return err
	}
	defer a.close()

	go func() {
		<-ctx.Done()
		if err := srv.Shutdown(); err != nil {
			a.logger.Error("shutting down", "error", err)
		}
	}()

	a.logger.Info("console listening", "addr", *addr, "session", a.console.Sessions.State())
	return srv.Listen(*addr, fiber.ListenConfig{DisableStartupMessage: true})
}
