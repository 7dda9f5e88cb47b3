package core

import (
	"context"
	"strings"
)

// Credential is the bearer material returned by a successful login.
type Credential struct {
	Token     string `json:"access_token"`
	TokenType string `json:"token_type"`
}

type LoginInput struct {
	Identifier string `json:"identifier"`
	Secret     string `json:"secret"`
	Offline    bool   `json:"offline,omitempty"`
}

func (in LoginInput) Validate() error {
	if strings.TrimSpace(in.Identifier) == "" {
		return ErrIdentifierRequired
	}
	if in.Secret == "" {
		return ErrSecretRequired
	}
	return nil
}

// LoginName is the backend username for an identifier: the local part of
// an email address, or the identifier itself.
func LoginName(identifier string) string {
	identifier = strings.TrimSpace(identifier)
	if at := strings.Index(identifier, "@"); at > 0 {
		return identifier[:at]
	}
	return identifier
}

// IdentityMatches reports whether account answers to identifier, comparing
// case-insensitively against both the full identifier and its login name.
func IdentityMatches(account AdminAccount, identifier string) bool {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return false
	}
	if strings.EqualFold(account.Identity, identifier) {
		return true
	}
	if strings.EqualFold(account.Identity, LoginName(identifier)) {
		return true
	}
	return !strings.Contains(identifier, "@") && strings.EqualFold(LoginName(account.Identity), identifier)
}

// Actor identifies who performed a mutation.
type Actor struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type tokenKey struct{}

type actorKey struct{}

// WithToken overrides the bearer token for calls made with ctx.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey{}, token)
}

func TokenFromContext(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(tokenKey{}).(string)
	return token, ok && token != ""
}

func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

func ActorFromContext(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(actorKey{}).(Actor)
	return actor, ok
}
