package blogdesk

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/lborres/blogdesk/adapters/rest"
	"github.com/lborres/blogdesk/core"
	"github.com/lborres/blogdesk/fallback"
	"github.com/lborres/blogdesk/pkg/crypto"
	"github.com/lborres/blogdesk/pkg/metrics"
	"github.com/lborres/blogdesk/services"
)

// interfaces
type (
	Storage     = core.Storage
	HTTPAdapter = core.HTTPAdapter

	SessionService = core.SessionService
	DataService    = core.DataService
	InsightService = core.InsightService

	PasswordHandler = crypto.PasswordHandler
)

// structs
type (
	Console       = core.Console
	Session       = core.Session
	SessionEvent  = core.SessionEvent
	SessionConfig = core.SessionConfig
	State         = core.State
	BackendMode   = core.BackendMode
)

type (
	AdminAccount     = core.AdminAccount
	BlogPost         = core.BlogPost
	BlogSummary      = core.BlogSummary
	ActivityLogEntry = core.ActivityLogEntry
	DashboardStats   = core.DashboardStats
)

const (
	StateUnresolved    = core.StateUnresolved
	StateAuthenticated = core.StateAuthenticated
	StateAnonymous     = core.StateAnonymous

	BackendRemote = core.BackendRemote
	BackendLocal  = core.BackendLocal
	BackendAuto   = core.BackendAuto
)

const (
	defaultBasePath    = "/api"
	minDemoSecretBytes = 32
)

var (
	ErrAuth              = core.ErrAuth
	ErrFetch             = core.ErrFetch
	ErrUnreachable       = core.ErrUnreachable
	ErrValidation        = core.ErrValidation
	ErrResolution        = core.ErrResolution
	ErrLocalConstraint   = core.ErrLocalConstraint
	ErrMalformedResponse = core.ErrMalformedResponse
)

var (
	ErrSessionUnresolved = core.ErrSessionUnresolved
	ErrNotAuthenticated  = core.ErrNotAuthenticated
	ErrNotSuperAdmin     = core.ErrNotSuperAdmin
)

var (
	ErrStorageRequired    = core.ErrStorageRequired
	ErrBaseURLRequired    = core.ErrBaseURLRequired
	ErrDemoSecretTooShort = core.ErrDemoSecretTooShort
	ErrUnknownMode        = core.ErrUnknownMode
)

type Config struct {
	// APIURL is the backend root; unused in local mode.
	APIURL string
	Mode   BackendMode

	// Storage persists the session and the local store. Required.
	Storage Storage

	// OfflineLogin enables demo logins against the local store. In auto
	// mode it also lets Login fall back when the backend is unreachable.
	// Remote mode has no local store and ignores it.
	OfflineLogin bool

	// DemoSecret signs offline tokens. Empty picks a random key per
	// process.
	DemoSecret string

	RequestTimeout   time.Duration
	StripEmailDomain bool
	RejectExpired    bool
	SessionNamespace string

	Logger         *slog.Logger
	Metrics        *metrics.Metrics
	PasswordHasher PasswordHandler

	// HTTP, when set, has the console routes registered on it.
	HTTP     HTTPAdapter
	BasePath string
}

// tokenFunc adapts a closure to core.TokenSource.
type tokenFunc func() string

func (f tokenFunc) Token() string { return f() }

// New wires the console. The session stays Unresolved until
// Console.Sessions.Restore is called.
func New(config Config) (*Console, error) {
	if config.Storage == nil {
		return nil, ErrStorageRequired
	}

	mode := config.Mode
	if mode == "" {
		mode = BackendAuto
	}
	if _, err := core.ParseBackendMode(string(mode)); err != nil {
		return nil, err
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	m := config.Metrics
	if m == nil {
		m = metrics.New()
	}
	basePath := config.BasePath
	if basePath == "" {
		basePath = defaultBasePath
	}

	// Interfaces stay nil unless their backend is configured.
	var (
		sessions *services.SessionManager
		remote   *rest.Client
		local    *fallback.Store
		localLog services.LocalStore
		offline  services.Directory
		remoteID services.Directory
	)

	if mode != BackendRemote {
		store, err := newLocalStore(config, logger)
		if err != nil {
			return nil, err
		}
		local = store
		localLog = store
		if config.OfflineLogin || mode == BackendLocal {
			offline = store
		}
	}

	if mode != BackendLocal {
		client, err := rest.New(rest.Config{
			BaseURL:          config.APIURL,
			Timeout:          config.RequestTimeout,
			StripEmailDomain: config.StripEmailDomain,
		},
			rest.WithTokenSource(tokenFunc(func() string { return sessions.Token() })),
			rest.WithLogger(logger.With("component", "rest")),
			rest.WithMetrics(m),
		)
		if err != nil {
			return nil, err
		}
		remote = client
		remoteID = client
	}

	sessionConfig := core.DefaultSessionConfig()
	if config.SessionNamespace != "" {
		sessionConfig.Namespace = config.SessionNamespace
	}
	sessionConfig.FallbackOnUnreachable = mode == BackendAuto && config.OfflineLogin
	sessionConfig.RejectExpired = config.RejectExpired

	sessionOpts := []services.SessionOption{
		services.WithSessionLogger(logger.With("component", "session")),
		services.WithSessionMetrics(m),
	}
	if offline != nil {
		sessionOpts = append(sessionOpts, services.WithOfflineDirectory(offline))
	}
	sm, err := services.NewSessionManager(sessionConfig, config.Storage, remoteID, sessionOpts...)
	if err != nil {
		return nil, err
	}
	sessions = sm

	var remoteData core.DataService
	if remote != nil {
		remoteData = remote
	}
	repo, err := services.NewRepository(mode, remoteData, localLog, sessions,
		services.WithRepositoryLogger(logger.With("component", "repository")),
		services.WithRepositoryMetrics(m),
	)
	if err != nil {
		return nil, err
	}

	console := &Console{
		Sessions: sessions,
		Data:     repo,
		Insights: services.NewInsights(repo, repo.Activity(), time.Local),
		Metrics:  m.Handler(),
		BasePath: basePath,
	}
	if remote != nil {
		console.Backend = remote
	}
	console.OnClose(config.Storage.Close)

	if config.HTTP != nil {
		if err := config.HTTP.RegisterRoutes(console); err != nil {
			return nil, err
		}
	}

	logger.Debug("console wired", "mode", mode, "offline_login", offline != nil, "local_store", local != nil)
	return console, nil
}

func newLocalStore(config Config, logger *slog.Logger) (*fallback.Store, error) {
	opts := []fallback.Option{fallback.WithLogger(logger.With("component", "fallback"))}
	if config.PasswordHasher != nil {
		opts = append(opts, fallback.WithPasswords(config.PasswordHasher))
	}
	if config.DemoSecret != "" {
		if len(config.DemoSecret) < minDemoSecretBytes {
			return nil, fmt.Errorf("%w - minimum of %d characters", ErrDemoSecretTooShort, minDemoSecretBytes)
		}
		issuer, err := crypto.NewTokenIssuer([]byte(config.DemoSecret), fallback.DefaultIssuer, 0)
		if err != nil {
			return nil, err
		}
		opts = append(opts, fallback.WithIssuer(issuer))
	}
	return fallback.New(config.Storage, opts...)
}
