package services

import (
	"context"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lborres/blogdesk/core"
)

// RecentActivityLimit is the number of entries the dashboard shows.
const RecentActivityLimit = 5

// Insights derives the dashboard and the activity report.
type Insights struct {
	data     core.DataService
	activity core.ActivityLog
	loc      *time.Location
}

var _ core.InsightService = (*Insights)(nil)

// NewInsights reads activity from log, which may be nil when no local
// store is configured. Day filters are interpreted in loc.
func NewInsights(data core.DataService, log core.ActivityLog, loc *time.Location) *Insights {
	if loc == nil {
		loc = time.Local
	}
	return &Insights{data: data, activity: log, loc: loc}
}

func (in *Insights) Dashboard(ctx context.Context) (*core.DashboardStats, error) {
	var (
		summary  *core.BlogSummary
		accounts []core.AdminAccount
		recent   []core.ActivityLogEntry
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		summary, err = in.data.BlogSummary(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		accounts, err = in.data.ListAccounts(gctx)
		return err
	})
	g.Go(func() error {
		entries, err := in.listActivity(gctx)
		if err != nil {
			return err
		}
		if len(entries) > RecentActivityLimit {
			entries = entries[:RecentActivityLimit]
		}
		recent = entries
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &core.DashboardStats{
		TotalBlogs:     summary.Total,
		PublishedBlogs: summary.Published,
		DraftBlogs:     summary.Drafts,
		TotalAdmins:    len(accounts),
		RecentActivity: recent,
	}, nil
}

// listActivity returns entries newest first.
func (in *Insights) listActivity(ctx context.Context) ([]core.ActivityLogEntry, error) {
	if in.activity == nil {
		return []core.ActivityLogEntry{}, nil
	}
	entries, err := in.activity.ListActivity(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Date.After(entries[j].Date) })
	return entries, nil
}

// Activity filters the log. Counts cover every matching entry; Limit
// only trims Entries.
func (in *Insights) Activity(ctx context.Context, filter core.ActivityFilter) (*core.ActivityReport, error) {
	var day time.Time
	if filter.Day != "" {
		parsed, err := time.ParseInLocation(time.DateOnly, filter.Day, in.loc)
		if err != nil {
			return nil, core.Invalid("activity", core.ErrInvalidDate)
		}
		day = parsed
	}
	if filter.Action != "" {
		action, err := core.ParseAction(string(filter.Action))
		if err != nil {
			return nil, core.Invalid("activity", err)
		}
		filter.Action = action
	}
	if filter.Limit < 0 {
		return nil, core.Invalid("activity", core.ErrInvalidPagination)
	}

	entries, err := in.listActivity(ctx)
	if err != nil {
		return nil, err
	}

	report := &core.ActivityReport{
		Entries: []core.ActivityLogEntry{},
		Counts:  map[core.Action]int{core.ActionCreate: 0, core.ActionUpdate: 0, core.ActionDelete: 0},
	}
	for _, e := range entries {
		if !day.IsZero() && !sameDay(e.Date.In(in.loc), day) {
			continue
		}
		if filter.ActorID != "" && e.ActorID != filter.ActorID {
			continue
		}
		if filter.Action != "" && e.Action != filter.Action {
			continue
		}
		report.Counts[e.Action]++
		report.Total++
		if filter.Limit == 0 || len(report.Entries) < filter.Limit {
			report.Entries = append(report.Entries, e)
		}
	}
	return report, nil
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// FilterAccounts keeps accounts whose identity or full name contains
// query, ignoring case.
func FilterAccounts(accounts []core.AdminAccount, query string) []core.AdminAccount {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return accounts
	}
	out := make([]core.AdminAccount, 0, len(accounts))
	for _, a := range accounts {
		if strings.Contains(strings.ToLower(a.Identity), query) || strings.Contains(strings.ToLower(a.FullName), query) {
			out = append(out, a)
		}
	}
	return out
}

// FilterBlogs keeps posts whose title or author contains query, ignoring
// case, and whose status matches when one is given.
func FilterBlogs(posts []core.BlogPost, query string, status core.BlogStatus) []core.BlogPost {
	query = strings.ToLower(strings.TrimSpace(query))
	out := make([]core.BlogPost, 0, len(posts))
	for _, p := range posts {
		if status != "" && p.Status != status {
			continue
		}
		if query != "" && !strings.Contains(strings.ToLower(p.Title), query) && !strings.Contains(strings.ToLower(p.Author), query) {
			continue
		}
		out = append(out, p)
	}
	return out
}
