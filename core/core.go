package core

import (
	"context"
	"errors"
	"net/http"
)

// BackendMode selects where data operations are served from.
type BackendMode string

const (
	BackendRemote BackendMode = "remote"
	BackendLocal  BackendMode = "local"
	BackendAuto   BackendMode = "auto"
)

func ParseBackendMode(raw string) (BackendMode, error) {
	switch m := BackendMode(raw); m {
	case BackendRemote, BackendLocal, BackendAuto:
		return m, nil
	case "":
		return BackendAuto, nil
	}
	return "", ErrUnknownMode
}

type SessionService interface {
	SessionReader
	Restore(ctx context.Context) error
	Login(ctx context.Context, identifier, secret string) (*Session, error)
	LoginOffline(ctx context.Context, identifier, secret string) (*Session, error)
	Logout(ctx context.Context) error
}

// DataService serves accounts and blogs from whichever backend is active.
type DataService interface {
	AccountBackend
	BlogBackend
}

type ActivityReport struct {
	Entries []ActivityLogEntry `json:"entries"`
	Counts  map[Action]int     `json:"counts"`
	Total   int                `json:"total"`
}

type InsightService interface {
	Dashboard(ctx context.Context) (*DashboardStats, error)
	Activity(ctx context.Context, filter ActivityFilter) (*ActivityReport, error)
}

// Console bundles the wired services behind the console surfaces.
type Console struct {
	Sessions SessionService
	Data     DataService
	Insights InsightService

	// Backend checks the remote API; nil when the console runs local only.
	Backend HealthChecker

	// Metrics serves the Prometheus exposition format, may be nil.
	Metrics  http.Handler
	BasePath string

	closers []func() error
}

// HealthReport describes the console and, when one is configured, its
// backend.
type HealthReport struct {
	Status  string `json:"status"`
	Session State  `json:"session"`
	Backend string `json:"backend,omitempty"`
	Detail  string `json:"detail,omitempty"`
}

// CheckHealth asks the backend, if any, whether it is up. A failing
// backend degrades the report; the console itself keeps serving.
func (c *Console) CheckHealth(ctx context.Context) HealthReport {
	report := HealthReport{Status: "ok", Session: c.Sessions.State()}
	if c.Backend == nil {
		return report
	}
	if err := c.Backend.Health(ctx); err != nil {
		report.Status = "degraded"
		report.Backend = "unavailable"
		report.Detail = DetailOf(err)
		return report
	}
	report.Backend = "ok"
	return report
}

// OnClose registers cleanup run by Close in reverse order.
func (c *Console) OnClose(fn func() error) {
	c.closers = append(c.closers, fn)
}

func (c *Console) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
