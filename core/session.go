package core

import "time"

// State of the console session.
type State int

const (
	StateUnresolved State = iota
	StateAuthenticated
	StateAnonymous
)

func (s State) String() string {
	switch s {
	case StateAuthenticated:
		return "authenticated"
	case StateAnonymous:
		return "anonymous"
	default:
		return "unresolved"
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// LoginMode records which authenticator issued the session token.
type LoginMode string

const (
	ModeRemoteLogin  LoginMode = "remote"
	ModeOfflineLogin LoginMode = "offline"
)

// Session is the authenticated operator. Token is never serialized in
// console responses; it is persisted separately by the session manager.
type Session struct {
	UserID       string    `json:"userId"`
	Identity     string    `json:"identity"`
	DisplayName  string    `json:"displayName"`
	IsSuperAdmin bool      `json:"isSuperAdmin"`
	Token        string    `json:"-"`
	Mode         LoginMode `json:"mode"`
	IssuedAt     time.Time `json:"issuedAt"`
	ExpiresAt    time.Time `json:"expiresAt,omitzero"`
}

// Expired reports whether the token carried an expiry that has passed.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}

// Actor projects the session onto the identity recorded in activity logs.
func (s *Session) Actor() Actor {
	return Actor{ID: s.UserID, Name: s.DisplayName}
}

// SessionEvent is delivered to subscribers on every state change.
type SessionEvent struct {
	State   State
	Session *Session // nil unless State is StateAuthenticated
}

type SessionConfig struct {
	// Namespace prefixes the token and profile keys.
	Namespace string

	// FallbackOnUnreachable routes Login to the offline authenticator
	// when the backend cannot be reached.
	FallbackOnUnreachable bool

	// RejectExpired drops a restored session whose token claims have expired.
	RejectExpired bool
}

func DefaultSessionConfig() SessionConfig {
	return SessionConfig{Namespace: "session:"}
}
