package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lborres/blogdesk/core"
	"github.com/lborres/blogdesk/pkg/crypto"
	"github.com/lborres/blogdesk/pkg/metrics"
)

// Persistence keys, relative to the session namespace.
const (
	keyToken   = "token"
	keyProfile = "profile"
)

// Directory authenticates operators and lists the accounts used to resolve
// their profile. Both the REST client and the fallback store satisfy it.
type Directory interface {
	core.Authenticator
	ListAccounts(ctx context.Context) ([]core.AdminAccount, error)
}

// TokenVerifier is implemented by directories that can check their own
// tokens without a network call. Restore uses it for offline sessions.
type TokenVerifier interface {
	VerifyToken(ctx context.Context, token string) (subject string, err error)
}

// storedProfile is the persisted half of a session. The token is stored
// under its own key; Fingerprint ties the two together.
type storedProfile struct {
	UserID       string         `json:"userId"`
	Identity     string         `json:"identity"`
	DisplayName  string         `json:"displayName"`
	IsSuperAdmin bool           `json:"isSuperAdmin"`
	Mode         core.LoginMode `json:"mode"`
	IssuedAt     time.Time      `json:"issuedAt"`
	ExpiresAt    time.Time      `json:"expiresAt,omitzero"`
	Fingerprint  string         `json:"fingerprint"`
}

type SessionOption func(*SessionManager)

// WithOfflineDirectory enables LoginOffline, and Login's fallback when
// FallbackOnUnreachable is set.
func WithOfflineDirectory(d Directory) SessionOption {
	return func(sm *SessionManager) { sm.offline = d }
}

func WithSessionLogger(l *slog.Logger) SessionOption {
	return func(sm *SessionManager) { sm.logger = l }
}

func WithSessionMetrics(m *metrics.Metrics) SessionOption {
	return func(sm *SessionManager) { sm.metrics = m }
}

func WithSessionClock(now core.Clock) SessionOption {
	return func(sm *SessionManager) { sm.now = now }
}

type subscriber struct {
	id int
	fn func(core.SessionEvent)
}

// SessionManager is the single owner of the operator session and of the
// storage keys that persist it.
type SessionManager struct {
	config  core.SessionConfig
	storage core.Storage
	ns      core.Namespace
	remote  Directory
	offline Directory
	now     core.Clock
	logger  *slog.Logger
	metrics *metrics.Metrics

	// opMu serializes Restore, Login and Logout so storage and memory agree.
	// pending holds events raised under opMu until unlock delivers them.
	opMu    sync.Mutex
	pending []core.SessionEvent

	mu      sync.RWMutex
	state   core.State
	session *core.Session

	subMu   sync.Mutex
	subs    []subscriber
	nextSub int
}

var (
	_ core.SessionService = (*SessionManager)(nil)
	_ core.TokenSource    = (*SessionManager)(nil)
)

func NewSessionManager(config core.SessionConfig, storage core.Storage, remote Directory, opts ...SessionOption) (*SessionManager, error) {
	if storage == nil {
		return nil, core.ErrStorageRequired
	}
	if config.Namespace == "" {
		config.Namespace = core.DefaultSessionConfig().Namespace
	}

	sm := &SessionManager{
		config:  config,
		storage: storage,
		ns:      core.Namespace(config.Namespace),
		remote:  remote,
		now:     time.Now,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(sm)
	}
	if sm.remote == nil && sm.offline == nil {
		return nil, core.ErrBackendRequired
	}
	return sm, nil
}

// Restore resolves the initial state from storage without contacting the
// backend. Absent or unreadable material yields Anonymous; unreadable
// material is also cleared.
func (sm *SessionManager) Restore(ctx context.Context) error {
	sm.opMu.Lock()
	defer sm.unlock()

	session, err := sm.load(ctx)
	switch {
	case err == nil:
		sm.transition(core.StateAuthenticated, session)
		sm.logger.Debug("session restored", "user_id", session.UserID, "mode", session.Mode)
		return nil
	case errors.Is(err, core.ErrStorageNotFound):
		sm.transition(core.StateAnonymous, nil)
		return nil
	case errors.Is(err, errDiscard):
		sm.logger.Warn("discarding stored session", "error", err)
		clearErr := sm.clear(ctx)
		sm.transition(core.StateAnonymous, nil)
		return clearErr
	default:
		sm.transition(core.StateAnonymous, nil)
		return fmt.Errorf("restore session: %w", err)
	}
}

var errDiscard = errors.New("stored session unusable")

func (sm *SessionManager) load(ctx context.Context) (*core.Session, error) {
	raw, err := sm.storage.Get(ctx, sm.ns.Key(keyToken))
	if errors.Is(err, core.ErrStorageNotFound) {
		// A profile without a token is debris from an interrupted write.
		if _, perr := sm.storage.Get(ctx, sm.ns.Key(keyProfile)); perr == nil {
			return nil, fmt.Errorf("%w: profile without token", errDiscard)
		}
		return nil, err
	}
	if err != nil {
		return nil, err
	}
	token := string(raw)
	if token == "" {
		return nil, fmt.Errorf("%w: empty token", errDiscard)
	}

	var profile storedProfile
	if err := core.GetJSON(ctx, sm.storage, sm.ns.Key(keyProfile), &profile); err != nil {
		if errors.Is(err, core.ErrStorageNotFound) {
			return nil, fmt.Errorf("%w: token without profile", errDiscard)
		}
		var syntaxErr *json.SyntaxError
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
			return nil, fmt.Errorf("%w: %v", errDiscard, err)
		}
		return nil, err
	}
	if profile.UserID == "" {
		return nil, fmt.Errorf("%w: profile without user id", errDiscard)
	}
	if ok, err := crypto.VerifyFingerprint(token, profile.Fingerprint); err != nil || !ok {
		return nil, fmt.Errorf("%w: %w", errDiscard, core.ErrTokenMismatch)
	}

	if profile.Mode == core.ModeOfflineLogin {
		if err := sm.verifyOffline(ctx, token, profile.UserID); err != nil {
			return nil, err
		}
	}

	session := &core.Session{
		UserID:       profile.UserID,
		Identity:     profile.Identity,
		DisplayName:  profile.DisplayName,
		IsSuperAdmin: profile.IsSuperAdmin,
		Token:        token,
		Mode:         profile.Mode,
		IssuedAt:     profile.IssuedAt,
		ExpiresAt:    profile.ExpiresAt,
	}
	if sm.config.RejectExpired && session.Expired(sm.now()) {
		return nil, fmt.Errorf("%w: token expired at %s", errDiscard, session.ExpiresAt.Format(time.RFC3339))
	}
	return session, nil
}

// verifyOffline rejects offline tokens the local store did not sign or
// that name another account. Expiry is left to RejectExpired.
func (sm *SessionManager) verifyOffline(ctx context.Context, token, userID string) error {
	verifier, ok := sm.offline.(TokenVerifier)
	if !ok {
		return nil
	}
	subject, err := verifier.VerifyToken(ctx, token)
	switch {
	case errors.Is(err, core.ErrTokenMismatch):
		return fmt.Errorf("%w: %w", errDiscard, err)
	case err != nil && !errors.Is(err, crypto.ErrTokenExpired):
		return err
	case subject != userID:
		return fmt.Errorf("%w: %w", errDiscard, core.ErrTokenMismatch)
	}
	return nil
}

func (sm *SessionManager) persist(ctx context.Context, session *core.Session) error {
	profile := storedProfile{
		UserID:       session.UserID,
		Identity:     session.Identity,
		DisplayName:  session.DisplayName,
		IsSuperAdmin: session.IsSuperAdmin,
		Mode:         session.Mode,
		IssuedAt:     session.IssuedAt,
		ExpiresAt:    session.ExpiresAt,
		Fingerprint:  crypto.Fingerprint(session.Token),
	}
	prevToken, prevErr := sm.storage.Get(ctx, sm.ns.Key(keyToken))
	if prevErr != nil && !errors.Is(prevErr, core.ErrStorageNotFound) {
		return fmt.Errorf("persist session: %w", prevErr)
	}
	if err := sm.storage.Set(ctx, sm.ns.Key(keyToken), []byte(session.Token)); err != nil {
		return fmt.Errorf("persist session: %w", err)
	}
	if err := core.SetJSON(ctx, sm.storage, sm.ns.Key(keyProfile), profile); err != nil {
		// The stored profile still matches the previous token, if any.
		if prevErr == nil {
			_ = sm.storage.Set(ctx, sm.ns.Key(keyToken), prevToken)
		} else {
			_ = sm.storage.Delete(ctx, sm.ns.Key(keyToken))
		}
		return fmt.Errorf("persist session: %w", err)
	}
	return nil
}

func (sm *SessionManager) clear(ctx context.Context) error {
	return errors.Join(
		sm.storage.Delete(ctx, sm.ns.Key(keyToken)),
		sm.storage.Delete(ctx, sm.ns.Key(keyProfile)),
	)
}

// Logout clears persisted and in-memory session state. Calling it again
// is a no-op.
func (sm *SessionManager) Logout(ctx context.Context) error {
	sm.opMu.Lock()
	defer sm.unlock()

	err := sm.clear(ctx)
	if prev, _ := sm.Session(); prev != nil {
		sm.logger.Info("operator logged out", "user_id", prev.UserID)
	}
	sm.transition(core.StateAnonymous, nil)
	if err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	return nil
}

func (sm *SessionManager) State() core.State {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.state
}

// Session returns a copy of the current session, if any.
func (sm *SessionManager) Session() (*core.Session, bool) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	if sm.state != core.StateAuthenticated || sm.session == nil {
		return nil, false
	}
	out := *sm.session
	return &out, true
}

// IsSuperAdmin is undefined until the state is resolved.
func (sm *SessionManager) IsSuperAdmin() (bool, error) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	switch sm.state {
	case core.StateUnresolved:
		return false, core.ErrSessionUnresolved
	case core.StateAuthenticated:
		return sm.session.IsSuperAdmin, nil
	}
	return false, nil
}

// Token is the bearer for outgoing requests, empty unless authenticated.
func (sm *SessionManager) Token() string {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	if sm.state != core.StateAuthenticated || sm.session == nil {
		return ""
	}
	return sm.session.Token
}

// Subscribe registers fn for state changes. Callbacks run synchronously
// once the operation that caused the change has released its locks, so
// they may call back into the manager.
func (sm *SessionManager) Subscribe(fn func(core.SessionEvent)) func() {
	sm.subMu.Lock()
	defer sm.subMu.Unlock()

	id := sm.nextSub
	sm.nextSub++
	sm.subs = append(sm.subs, subscriber{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() {
			sm.subMu.Lock()
			defer sm.subMu.Unlock()
			for i, s := range sm.subs {
				if s.id == id {
					sm.subs = append(sm.subs[:i:i], sm.subs[i+1:]...)
					return
				}
			}
		})
	}
}

// transition queues an event when the state or the session identity
// changes. Callers hold opMu and release it with unlock.
func (sm *SessionManager) transition(state core.State, session *core.Session) {
	sm.mu.Lock()
	prevState, prev := sm.state, sm.session
	sm.state, sm.session = state, session
	sm.mu.Unlock()

	sm.metrics.SetAuthenticated(state == core.StateAuthenticated)

	changed := prevState != state
	if !changed && prev != nil && session != nil {
		changed = prev.UserID != session.UserID || prev.Token != session.Token
	}
	if !changed {
		return
	}

	event := core.SessionEvent{State: state}
	if session != nil {
		out := *session
		event.Session = &out
	}
	sm.pending = append(sm.pending, event)
}

// unlock releases opMu, then delivers the events queued while it was held.
func (sm *SessionManager) unlock() {
	events := sm.pending
	sm.pending = nil
	sm.opMu.Unlock()

	if len(events) == 0 {
		return
	}
	sm.subMu.Lock()
	subs := append([]subscriber(nil), sm.subs...)
	sm.subMu.Unlock()
	for _, event := range events {
		for _, s := range subs {
			s.fn(event)
		}
	}
}
