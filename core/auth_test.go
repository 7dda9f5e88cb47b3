package core

import (
	"context"
	"testing"
	"time"
)

// Requirement: LoginName strips the email domain and keeps plain usernames.
func TestLoginName(t *testing.T) {
	tests := []struct {
		name       string
		identifier string
		want       string
	}{
		{name: "plain username", identifier: "admin", want: "admin"},
		{name: "email", identifier: "admin@admin.com", want: "admin"},
		{name: "surrounding spaces", identifier: "  jane@example.com ", want: "jane"},
		{name: "leading at sign kept", identifier: "@handle", want: "@handle"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := LoginName(test.identifier); got != test.want {
				t.Errorf("LoginName(%q) = %q, want %q", test.identifier, got, test.want)
			}
		})
	}
}

// Requirement: profile resolution matches identity case-insensitively by email or username.
func TestIdentityMatches(t *testing.T) {
	tests := []struct {
		name       string
		identity   string
		identifier string
		want       bool
	}{
		{name: "exact username", identity: "admin", identifier: "admin", want: true},
		{name: "case-insensitive email", identity: "Admin@Admin.com", identifier: "admin@admin.com", want: true},
		{name: "email typed for username account", identity: "admin", identifier: "admin@admin.com", want: true},
		{name: "username typed for email account", identity: "admin@admin.com", identifier: "admin", want: true},
		{name: "different user", identity: "superadmin@admin.com", identifier: "admin@admin.com", want: false},
		{name: "empty identifier", identity: "admin", identifier: "", want: false},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			// Arrange
			account := AdminAccount{ID: "1", Identity: test.identity}

			// Act
			got := IdentityMatches(account, test.identifier)

			// Assert
			if got != test.want {
				t.Errorf("IdentityMatches(%q, %q) = %v, want %v", test.identity, test.identifier, got, test.want)
			}
		})
	}
}

// Requirement: login input requires both identifier and secret.
func TestLoginInput_Validate(t *testing.T) {
	tests := []struct {
		name    string
		input   LoginInput
		wantErr error
	}{
		{name: "valid", input: LoginInput{Identifier: "admin", Secret: "x"}},
		{name: "missing identifier", input: LoginInput{Identifier: "  ", Secret: "x"}, wantErr: ErrIdentifierRequired},
		{name: "missing secret", input: LoginInput{Identifier: "admin"}, wantErr: ErrSecretRequired},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if err := test.input.Validate(); err != test.wantErr {
				t.Errorf("Validate() error = %v, want %v", err, test.wantErr)
			}
		})
	}
}

func TestContextValues(t *testing.T) {
	ctx := context.Background()
	if _, ok := TokenFromContext(ctx); ok {
		t.Fatal("empty context should not carry a token")
	}

	ctx = WithToken(WithActor(ctx, Actor{ID: "1", Name: "Super Admin"}), "tok")
	token, ok := TokenFromContext(ctx)
	if !ok || token != "tok" {
		t.Errorf("TokenFromContext() = %q, %v", token, ok)
	}
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Name != "Super Admin" {
		t.Errorf("ActorFromContext() = %+v, %v", actor, ok)
	}
}

func TestSession_Expired(t *testing.T) {
	now := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)

	if (&Session{}).Expired(now) {
		t.Error("session without expiry must not be expired")
	}
	if !(&Session{ExpiresAt: now.Add(-time.Second)}).Expired(now) {
		t.Error("session past expiry must be expired")
	}
}
