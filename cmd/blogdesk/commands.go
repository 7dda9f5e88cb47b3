package main

import (
	"context"
	"fmt"

	"github.com/lborres/blogdesk/core"
	"github.com/lborres/blogdesk/services"
)

type sessionView struct {
	State   core.State    `json:"state"`
	Session *core.Session `json:"session,omitempty"`
}

func (a *app) sessionView() sessionView {
	session, _ := a.console.Sessions.Session()
	return sessionView{State: a.console.Sessions.State(), Session: session}
}

func (a *app) login(ctx context.Context, args []string) error {
	fs := newFlags("login")
	offline := fs.Bool("offline", false, "log in against the local store")
	if err := parse(fs, args); err != nil {
		return err
	}
	if fs.NArg() != 2 {
		return fmt.Errorf("%w: login needs <identifier> <secret>", errUsage)
	}

	login := a.console.Sessions.Login
	if *offline {
		login = a.console.Sessions.LoginOffline
	}
	if _, err := login(ctx, fs.Arg(0), fs.Arg(1)); err != nil {
		return err
	}
	return a.print(a.sessionView())
}

func (a *app) logout(ctx context.Context, _ []string) error {
	if err := a.console.Sessions.Logout(ctx); err != nil {
		return err
	}
	return a.print(a.sessionView())
}

func (a *app) whoami(_ context.Context, _ []string) error {
	return a.print(a.sessionView())
}

func (a *app) admins(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: admins needs a subcommand", errUsage)
	}
	sub, args := args[0], args[1:]
	data := a.console.Data

	switch sub {
	case "list":
		fs := newFlags("admins list")
		query := fs.String("q", "", "filter by identity or name")
		if err := parse(fs, args); err != nil {
			return err
		}
		accounts, err := data.ListAccounts(ctx)
		if err != nil {
			return err
		}
		return a.print(services.FilterAccounts(accounts, *query))

	case "create":
		fs := newFlags("admins create")
		var in core.AccountInput
		fs.StringVar(&in.Identity, "identity", "", "username or email")
		fs.StringVar(&in.Secret, "secret", "", "password")
		fs.StringVar(&in.FullName, "name", "", "full name")
		if err := parse(fs, args); err != nil {
			return err
		}
		account, err := data.CreateAccount(ctx, in)
		if err != nil {
			return err
		}
		return a.print(account)

	case "update":
		fs := newFlags("admins update")
		identity := fs.String("identity", "", "username or email")
		secret := fs.String("secret", "", "password")
		name := fs.String("name", "", "full name")
		if err := parse(fs, args); err != nil {
			return err
		}
		id, err := oneID(fs.Args())
		if err != nil {
			return err
		}
		var patch core.AccountPatch
		set := visited(fs)
		if set["identity"] {
			patch.Identity = identity
		}
		if set["secret"] {
			patch.Secret = secret
		}
		if set["name"] {
			patch.FullName = name
		}
		account, err := data.UpdateAccount(ctx, id, patch)
		if err != nil {
			return err
		}
		return a.print(account)

	case "delete":
		id, err := oneID(args)
		if err != nil {
			return err
		}
		if err := data.DeleteAccount(ctx, id); err != nil {
			return err
		}
		return a.print(map[string]string{"detail": "Deleted successfully"})
	}
	return fmt.Errorf("%w: unknown admins subcommand %q", errUsage, sub)
}

func (a *app) blogs(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: blogs needs a subcommand", errUsage)
	}
	sub, args := args[0], args[1:]
	data := a.console.Data

	switch sub {
	case "list":
		fs := newFlags("blogs list")
		skip := fs.Int("skip", 0, "posts to skip")
		limit := fs.Int("limit", 0, "maximum posts, 0 for the backend default")
		query := fs.String("q", "", "filter by title or author")
		rawStatus := fs.String("status", "", "draft or published")
		if err := parse(fs, args); err != nil {
			return err
		}
		var status core.BlogStatus
		if *rawStatus != "" {
			s, err := core.ParseBlogStatus(*rawStatus)
			if err != nil {
				return core.Invalid("listBlogs", err)
			}
			status = s
		}
		posts, err := data.ListBlogs(ctx, *skip, *limit)
		if err != nil {
			return err
		}
		return a.print(services.FilterBlogs(posts, *query, status))

	case "get":
		id, err := oneID(args)
		if err != nil {
			return err
		}
		post, err := data.GetBlog(ctx, id)
		if err != nil {
			return err
		}
		return a.print(post)

	case "create":
		fs := newFlags("blogs create")
		var in core.BlogInput
		var status string
		fs.StringVar(&in.Title, "title", "", "title")
		fs.StringVar(&in.Content, "content", "", "content")
		fs.StringVar(&in.Author, "author", "", "author, defaults to the operator")
		fs.StringVar(&status, "status", "", "draft or published")
		if err := parse(fs, args); err != nil {
			return err
		}
		in.Status = core.BlogStatus(status)
		post, err := data.CreateBlog(ctx, in)
		if err != nil {
			return err
		}
		return a.print(post)

	case "update":
		fs := newFlags("blogs update")
		title := fs.String("title", "", "title")
		content := fs.String("content", "", "content")
		author := fs.String("author", "", "author")
		status := fs.String("status", "", "draft or published")
		if err := parse(fs, args); err != nil {
			return err
		}
		id, err := oneID(fs.Args())
		if err != nil {
			return err
		}
		var patch core.BlogPatch
		set := visited(fs)
		if set["title"] {
			patch.Title = title
		}
		if set["content"] {
			patch.Content = content
		}
		if set["author"] {
			patch.Author = author
		}
		if set["status"] {
			s := core.BlogStatus(*status)
			patch.Status = &s
		}
		post, err := data.UpdateBlog(ctx, id, patch)
		if err != nil {
			return err
		}
		return a.print(post)

	case "delete":
		id, err := oneID(args)
		if err != nil {
			return err
		}
		if err := data.DeleteBlog(ctx, id); err != nil {
			return err
		}
		return a.print(map[string]string{"detail": "Deleted successfully"})

	case "summary":
		summary, err := data.BlogSummary(ctx)
		if err != nil {
			return err
		}
		return a.print(summary)
	}
	return fmt.Errorf("%w: unknown blogs subcommand %q", errUsage, sub)
}

// health prints the health report and fails when the backend is down.
func (a *app) health(ctx context.Context, _ []string) error {
	report := a.console.CheckHealth(ctx)
	if err := a.print(report); err != nil {
		return err
	}
	if report.Status != "ok" {
		return fmt.Errorf("backend %s: %s", report.Backend, report.Detail)
	}
	return nil
}

func (a *app) dashboard(ctx context.Context, _ []string) error {
	stats, err := a.console.Insights.Dashboard(ctx)
	if err != nil {
		return err
	}
	return a.print(stats)
}

func (a *app) logs(ctx context.Context, args []string) error {
	fs := newFlags("logs")
	var filter core.ActivityFilter
	var action string
	fs.StringVar(&filter.Day, "date", "", "YYYY-MM-DD in local time")
	fs.StringVar(&filter.ActorID, "actor", "", "actor id")
	fs.StringVar(&action, "action", "", "create, update or delete")
	fs.IntVar(&filter.Limit, "limit", 0, "maximum entries, 0 for all")
	if err := parse(fs, args); err != nil {
		return err
	}
	filter.Action = core.Action(action)

	report, err := a.console.Insights.Activity(ctx, filter)
	if err != nil {
		return err
	}
	return a.print(report)
}

func oneID(args []string) (string, error) {
	if len(args) != 1 || args[0] == "" {
		return "", fmt.Errorf("%w: expected exactly one <id>", errUsage)
	}
	return args[0], nil
}
