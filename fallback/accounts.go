package fallback

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/lborres/blogdesk/core"
	"github.com/lborres/blogdesk/pkg/crypto"
)

// accountRecord is the persisted account; the password hash never leaves
// the package.
type accountRecord struct {
	ID           string    `json:"id"`
	Identity     string    `json:"email"`
	FullName     string    `json:"name"`
	Role         string    `json:"role"`
	PasswordHash string    `json:"passwordHash,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt,omitzero"`
}

func (r accountRecord) account() core.AdminAccount {
	return core.AdminAccount{
		ID:           r.ID,
		Identity:     r.Identity,
		FullName:     r.FullName,
		IsSuperAdmin: r.Role == RoleSuperAdmin,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

func (r accountRecord) displayName() string {
	return r.account().DisplayName()
}

var errCannotDeleteSuperAdmin = &core.Error{
	Kind:   core.KindLocalConstraint,
	Op:     "deleteAccount",
	Status: http.StatusForbidden,
	Detail: "Cannot delete super admin",
}

func (s *Store) ListAccounts(ctx context.Context) ([]core.AdminAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := load[accountRecord](ctx, s, KeyUsers)
	if err != nil {
		return nil, err
	}
	out := make([]core.AdminAccount, 0, len(users))
	for _, u := range users {
		out = append(out, u.account())
	}
	return out, nil
}

func identityTaken(op string) error {
	return &core.Error{Kind: core.KindValidation, Op: op, Status: http.StatusBadRequest, Detail: core.ErrIdentityTaken.Error(), Err: core.ErrIdentityTaken}
}

func (s *Store) CreateAccount(ctx context.Context, in core.AccountInput) (*core.AdminAccount, error) {
	identity := strings.TrimSpace(in.Identity)
	if identity == "" {
		return nil, core.Invalid("createAccount", core.ErrIdentifierRequired)
	}
	if in.Secret == "" {
		return nil, core.Invalid("createAccount", core.ErrSecretRequired)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := load[accountRecord](ctx, s, KeyUsers)
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		if strings.EqualFold(u.Identity, identity) {
			return nil, identityTaken("createAccount")
		}
	}

	hash, err := s.passwords.Hash(in.Secret)
	if err != nil {
		return nil, err
	}
	id, err := s.newID("admin")
	if err != nil {
		return nil, err
	}

	rec := accountRecord{
		ID:           id,
		Identity:     identity,
		FullName:     strings.TrimSpace(in.FullName),
		Role:         RoleAdmin,
		PasswordHash: hash,
		CreatedAt:    s.now(),
	}
	if err := s.save(ctx, KeyUsers, append(users, rec)); err != nil {
		return nil, err
	}
	if _, err := s.appendLocked(ctx, core.ActionCreate, core.EntityAdmin, rec.displayName()); err != nil {
		return nil, err
	}

	account := rec.account()
	return &account, nil
}

// UpdateAccount never changes an account's role.
func (s *Store) UpdateAccount(ctx context.Context, id string, patch core.AccountPatch) (*core.AdminAccount, error) {
	if patch.Identity != nil && strings.TrimSpace(*patch.Identity) == "" {
		return nil, core.Invalid("updateAccount", core.ErrIdentifierRequired)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	users, err := load[accountRecord](ctx, s, KeyUsers)
	if err != nil {
		return nil, err
	}
	idx := -1
	for i, u := range users {
		if u.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, notFound("updateAccount", core.ErrAccountNotFound)
	}

	rec := users[idx]
	if patch.Identity != nil {
		identity := strings.TrimSpace(*patch.Identity)
		for i, u := range users {
			if i != idx && strings.EqualFold(u.Identity, identity) {
				return nil, identityTaken("updateAccount")
			}
		}
		rec.Identity = identity
	}
	if patch.FullName != nil {
		rec.FullName = strings.TrimSpace(*patch.FullName)
	}
	if patch.Secret != nil && *patch.Secret != "" {
		hash, err := s.passwords.Hash(*patch.Secret)
		if err != nil {
			return nil, err
		}
		rec.PasswordHash = hash
	}
	rec.UpdatedAt = s.now()
	users[idx] = rec

	if err := s.save(ctx, KeyUsers, users); err != nil {
		return nil, err
	}
	if _, err := s.appendLocked(ctx, core.ActionUpdate, core.EntityAdmin, rec.displayName()); err != nil {
		return nil, err
	}

	account := rec.account()
	return &account, nil
}

// RemoveAccount reports false, without error, when id is unknown or names
// the superadmin. Callers must check the result.
func (s *Store) RemoveAccount(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed, _, err := s.removeLocked(ctx, id)
	return removed, err
}

// DeleteAccount is RemoveAccount with the refusal reported as an error.
func (s *Store) DeleteAccount(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed, found, err := s.removeLocked(ctx, id)
	switch {
	case err != nil:
		return err
	case !found:
		return notFound("deleteAccount", core.ErrAccountNotFound)
	case !removed:
		return errCannotDeleteSuperAdmin
	}
	return nil
}

func (s *Store) removeLocked(ctx context.Context, id string) (removed, found bool, err error) {
	users, err := load[accountRecord](ctx, s, KeyUsers)
	if err != nil {
		return false, false, err
	}

	for i, u := range users {
		if u.ID != id {
			continue
		}
		if u.Role == RoleSuperAdmin {
			return false, true, nil
		}
		kept := append(users[:i:i], users[i+1:]...)
		if err := s.save(ctx, KeyUsers, kept); err != nil {
			return false, true, err
		}
		if _, err := s.appendLocked(ctx, core.ActionDelete, core.EntityAdmin, u.displayName()); err != nil {
			return false, true, err
		}
		return true, true, nil
	}
	return false, false, nil
}

var errInvalidCredentials = &core.Error{
	Kind:   core.KindAuth,
	Op:     "login",
	Status: http.StatusUnauthorized,
	Detail: "Invalid email or password",
}

// Login is the demo authenticator. Seeded accounts carry no password and
// accept any non-empty secret; accounts created locally must verify.
func (s *Store) Login(ctx context.Context, identifier, secret string) (*core.Credential, error) {
	if err := (core.LoginInput{Identifier: identifier, Secret: secret}).Validate(); err != nil {
		return nil, core.Invalid("login", err)
	}

	s.mu.Lock()
	users, err := load[accountRecord](ctx, s, KeyUsers)
	var signer *crypto.TokenIssuer
	if err == nil {
		signer, err = s.signerLocked(ctx)
	}
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	for _, u := range users {
		if !core.IdentityMatches(u.account(), identifier) {
			continue
		}
		if u.PasswordHash != "" {
			ok, err := s.passwords.Verify(secret, u.PasswordHash)
			if err != nil || !ok {
				return nil, errInvalidCredentials
			}
		}
		token, err := signer.Issue(u.ID)
		if err != nil {
			return nil, err
		}
		s.logger.Debug("demo login", "account_id", u.ID)
		return &core.Credential{Token: token, TokenType: "bearer"}, nil
	}
	return nil, errInvalidCredentials
}
