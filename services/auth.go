package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/lborres/blogdesk/core"
	"github.com/lborres/blogdesk/pkg/crypto"
)

// Login authenticates against the backend and resolves the operator's
// profile from the account listing. On failure the previous state is
// kept, and an unresolved manager becomes Anonymous.
func (sm *SessionManager) Login(ctx context.Context, identifier, secret string) (*core.Session, error) {
	if sm.remote == nil {
		return sm.LoginOffline(ctx, identifier, secret)
	}

	sm.opMu.Lock()
	defer sm.unlock()

	session, err := sm.authenticate(ctx, sm.remote, core.ModeRemoteLogin, identifier, secret)
	if err != nil && sm.config.FallbackOnUnreachable && sm.offline != nil && errors.Is(err, core.ErrUnreachable) {
		sm.logger.Warn("backend unreachable, using offline login", "error", err)
		sm.metrics.IncrementFallback("login")
		session, err = sm.authenticate(ctx, sm.offline, core.ModeOfflineLogin, identifier, secret)
	}
	return sm.finishLogin(ctx, session, err)
}

// LoginOffline authenticates against the local store only.
func (sm *SessionManager) LoginOffline(ctx context.Context, identifier, secret string) (*core.Session, error) {
	if sm.offline == nil {
		return nil, core.ErrOfflineUnavailable
	}

	sm.opMu.Lock()
	defer sm.unlock()

	session, err := sm.authenticate(ctx, sm.offline, core.ModeOfflineLogin, identifier, secret)
	return sm.finishLogin(ctx, session, err)
}

func (sm *SessionManager) authenticate(ctx context.Context, dir Directory, mode core.LoginMode, identifier, secret string) (session *core.Session, err error) {
	defer func() { sm.metrics.ObserveLogin(string(mode), err) }()

	if err := (core.LoginInput{Identifier: identifier, Secret: secret}).Validate(); err != nil {
		return nil, core.Invalid("login", err)
	}

	cred, err := dir.Login(ctx, identifier, secret)
	if err != nil {
		return nil, err
	}

	// The token endpoint returns no profile, so look the operator up with
	// the fresh token before anything is persisted.
	accounts, err := dir.ListAccounts(core.WithToken(ctx, cred.Token))
	if err != nil {
		return nil, err
	}

	var account *core.AdminAccount
	for i := range accounts {
		if core.IdentityMatches(accounts[i], identifier) {
			account = &accounts[i]
			break
		}
	}
	if account == nil {
		return nil, core.NewError(core.KindResolution, "login",
			fmt.Sprintf("no admin account matches %q", identifier), nil)
	}

	session = &core.Session{
		UserID:       account.ID,
		Identity:     account.Identity,
		DisplayName:  account.DisplayName(),
		IsSuperAdmin: account.IsSuperAdmin,
		Token:        cred.Token,
		Mode:         mode,
		IssuedAt:     sm.now(),
	}
	if claims, ok := crypto.InspectToken(cred.Token); ok {
		if !claims.IssuedAt.IsZero() {
			session.IssuedAt = claims.IssuedAt
		}
		session.ExpiresAt = claims.ExpiresAt
	}
	return session, nil
}

func (sm *SessionManager) finishLogin(ctx context.Context, session *core.Session, err error) (*core.Session, error) {
	if err == nil {
		err = sm.persist(ctx, session)
	}
	if err != nil {
		if sm.State() == core.StateUnresolved {
			sm.transition(core.StateAnonymous, nil)
		}
		return nil, err
	}

	sm.transition(core.StateAuthenticated, session)
	sm.logger.Info("operator logged in", "user_id", session.UserID, "mode", session.Mode, "super_admin", session.IsSuperAdmin)
	out := *session
	return &out, nil
}
