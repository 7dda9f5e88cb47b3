package rest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/lborres/blogdesk/core"
)

var (
	errMissingID       = errors.New("missing id")
	errMissingIdentity = errors.New("missing username or email")
	errMissingTitle    = errors.New("missing title")
	errMissingToken    = errors.New("missing access_token")
	errMissingCounts   = errors.New("missing summary counts")
)

// wireID accepts the backend's integer ids as well as string ids.
type wireID string

func (id *wireID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = wireID(s)
		return nil
	}
	n, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return fmt.Errorf("id %s is neither string nor integer", b)
	}
	*id = wireID(strconv.FormatInt(n, 10))
	return nil
}

// naiveLayouts are the timezone-less datetimes the backend emits; they are
// read as UTC.
var naiveLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// wireTime accepts RFC 3339 and the backend's naive datetimes.
type wireTime struct {
	time.Time
}

func (t *wireTime) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		t.Time = time.Time{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("timestamp: %w", err)
	}
	if s == "" {
		t.Time = time.Time{}
		return nil
	}
	if parsed, err := time.Parse(time.RFC3339Nano, s); err == nil {
		t.Time = parsed
		return nil
	}
	for _, layout := range naiveLayouts {
		if parsed, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("unrecognized timestamp %q", s)
}

type tokenWire struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

func (w tokenWire) credential() (*core.Credential, error) {
	if strings.TrimSpace(w.AccessToken) == "" {
		return nil, errMissingToken
	}
	tokenType := w.TokenType
	if tokenType == "" {
		tokenType = "bearer"
	}
	return &core.Credential{Token: w.AccessToken, TokenType: tokenType}, nil
}

type accountWire struct {
	ID           wireID   `json:"id"`
	Username     string   `json:"username"`
	Email        string   `json:"email"`
	FullName     *string  `json:"full_name"`
	IsSuperAdmin bool     `json:"is_super_admin"`
	CreatedAt    wireTime `json:"created_at"`
	UpdatedAt    wireTime `json:"updated_at"`
}

func (w accountWire) account() (core.AdminAccount, error) {
	if w.ID == "" {
		return core.AdminAccount{}, errMissingID
	}
	identity := w.Username
	if identity == "" {
		identity = w.Email
	}
	if identity == "" {
		return core.AdminAccount{}, fmt.Errorf("account %s: %w", w.ID, errMissingIdentity)
	}

	account := core.AdminAccount{
		ID:           string(w.ID),
		Identity:     identity,
		IsSuperAdmin: w.IsSuperAdmin,
		CreatedAt:    w.CreatedAt.Time,
		UpdatedAt:    w.UpdatedAt.Time,
	}
	if w.FullName != nil {
		account.FullName = *w.FullName
	}
	return account, nil
}

type blogWire struct {
	ID        wireID   `json:"id"`
	Title     *string  `json:"title"`
	Content   string   `json:"content"`
	Author    string   `json:"author"`
	Status    string   `json:"status"`
	CreatedAt wireTime `json:"created_at"`
	UpdatedAt wireTime `json:"updated_at"`
}

func (w blogWire) post() (core.BlogPost, error) {
	if w.ID == "" {
		return core.BlogPost{}, errMissingID
	}
	if w.Title == nil {
		return core.BlogPost{}, fmt.Errorf("blog %s: %w", w.ID, errMissingTitle)
	}
	status, err := core.ParseBlogStatus(w.Status)
	if err != nil {
		return core.BlogPost{}, fmt.Errorf("blog %s: %w", w.ID, err)
	}

	return core.BlogPost{
		ID:        string(w.ID),
		Title:     *w.Title,
		Content:   w.Content,
		Author:    w.Author,
		Status:    status,
		CreatedAt: w.CreatedAt.Time,
		UpdatedAt: w.UpdatedAt.Time,
	}, nil
}

type summaryWire struct {
	Total     *int `json:"total"`
	Drafts    *int `json:"drafts"`
	Published *int `json:"published"`
}

func (w summaryWire) summary() (*core.BlogSummary, error) {
	if w.Total == nil || w.Drafts == nil || w.Published == nil {
		return nil, errMissingCounts
	}
	return &core.BlogSummary{Total: *w.Total, Drafts: *w.Drafts, Published: *w.Published}, nil
}

// parseDetail extracts {"detail": "..."} or FastAPI's list of
// {"msg": "..."} validation items.
func parseDetail(body []byte) string {
	var envelope struct {
		Detail json.RawMessage `json:"detail"`
	}
	if len(bytes.TrimSpace(body)) == 0 || json.Unmarshal(body, &envelope) != nil || len(envelope.Detail) == 0 {
		return ""
	}

	var s string
	if json.Unmarshal(envelope.Detail, &s) == nil {
		return s
	}

	var items []struct {
		Msg string `json:"msg"`
		Loc []any  `json:"loc"`
	}
	if json.Unmarshal(envelope.Detail, &items) == nil {
		msgs := make([]string, 0, len(items))
		for _, item := range items {
			if item.Msg == "" {
				continue
			}
			if n := len(item.Loc); n > 0 {
				msgs = append(msgs, fmt.Sprintf("%v: %s", item.Loc[n-1], item.Msg))
				continue
			}
			msgs = append(msgs, item.Msg)
		}
		return strings.Join(msgs, "; ")
	}
	return ""
}
