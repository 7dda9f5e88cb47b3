// Command blogdesk is the admin console for the Blogs & Admin backend.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/lborres/blogdesk"
	"github.com/lborres/blogdesk/config"
	"github.com/lborres/blogdesk/core"
	"github.com/lborres/blogdesk/pkg/logging"
)

const usage = `usage: blogdesk <command> [flags] [args]

commands:
  login [-offline] <identifier> <secret>
  logout
  whoami
  admins list [-q text]
  admins create -identity id -secret s [-name full]
  admins update [-identity id] [-secret s] [-name full] <id>
  admins delete <id>
  blogs list [-skip n] [-limit n] [-q text] [-status draft|published]
  blogs get <id>
  blogs create -title t [-content c] [-author a] [-status s]
  blogs update [-title t] [-content c] [-author a] [-status s] <id>
  blogs delete <id>
  blogs summary
  dashboard
  health
  logs [-date YYYY-MM-DD] [-actor id] [-action create|update|delete] [-limit n]
  serve
`

var errUsage = errors.New("invalid usage")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// app is one CLI invocation.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	console *blogdesk.Console
	out     io.Writer
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 || args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		_, _ = fmt.Fprint(stderr, usage)
		if len(args) == 0 {
			return 2
		}
		return 0
	}

	cfg, err := config.Load()
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "blogdesk: loading config: %v\n", err)
		return 1
	}
	logger := logging.New(cfg.LogLevel, cfg.LogFormat, stderr)
	slog.SetDefault(logger)

	a := &app{cfg: cfg, logger: logger, out: stdout}
	if err := a.dispatch(ctx, args[0], args[1:]); err != nil {
		if errors.Is(err, errUsage) {
			_, _ = fmt.Fprint(stderr, usage)
		}
		_, _ = fmt.Fprintf(stderr, "blogdesk: %s\n", describe(err))
		return 1
	}
	return 0
}

// open wires the console and restores the persisted session.
func (a *app) open(ctx context.Context, httpAdapter blogdesk.HTTPAdapter) error {
	mode, err := a.cfg.BackendMode()
	if err != nil {
		return err
	}
	storage, err := blogdesk.OpenStorage(ctx, blogdesk.StorageConfig{
		Driver:      a.cfg.Storage,
		SQLitePath:  a.cfg.SQLitePath,
		RedisURL:    a.cfg.RedisURL,
		PostgresURL: a.cfg.PostgresURL,
		Prefix:      a.cfg.StoragePrefix,
	})
	if err != nil {
		return err
	}

	console, err := blogdesk.New(blogdesk.Config{
		APIURL:           a.cfg.APIURL,
		Mode:             mode,
		Storage:          storage,
		OfflineLogin:     a.cfg.OfflineLogin,
		DemoSecret:       a.cfg.DemoSecret,
		RequestTimeout:   a.cfg.RequestTimeout,
		StripEmailDomain: a.cfg.StripEmailDomain,
		RejectExpired:    a.cfg.RejectExpired,
		Logger:           a.logger,
		HTTP:             httpAdapter,
	})
	if err != nil {
		_ = storage.Close()
		return err
	}
	a.console = console

	if err := console.Sessions.Restore(ctx); err != nil {
		a.logger.Warn("session restore failed", "error", err)
	}
	return nil
}

func (a *app) close() {
	if a.console == nil {
		return
	}
	if err := a.console.Close(); err != nil {
		a.logger.Error("closing console", "error", err)
	}
}

func (a *app) dispatch(ctx context.Context, cmd string, args []string) error {
	if cmd == "serve" {
		return a.serve(ctx, args)
	}

	handlers := map[string]func(context.Context, []string) error{
		"login":     a.login,
		"logout":    a.logout,
		"whoami":    a.whoami,
		"admins":    a.admins,
		"blogs":     a.blogs,
		"dashboard": a.dashboard,
		"health":    a.health,
		"logs":      a.logs,
	}
	h, ok := handlers[cmd]
	if !ok {
		return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
	}

	if err := a.open(ctx, nil); err != nil {
		return err
	}
	defer a.close()
	return h(ctx, args)
}

func (a *app) print(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// describe prefers the backend or validation detail over the wrapped chain.
func describe(err error) string {
	if kind := core.KindOf(err); kind != "" {
		return fmt.Sprintf("%s: %s", kind, core.DetailOf(err))
	}
	return err.Error()
}

func newFlags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

// parse wraps flag errors as usage errors.
func parse(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %s: %v", errUsage, fs.Name(), err)
	}
	return nil
}

// visited reports the flags set explicitly, for partial updates.
func visited(fs *flag.FlagSet) map[string]bool {
	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	return set
}
