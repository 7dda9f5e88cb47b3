package core

import (
	"strings"
	"time"
)

// AdminAccount is an operator identity as reported by the backend or the
// fallback store. Accounts are never cached beyond a single call.
type AdminAccount struct {
	ID           string    `json:"id"`
	Identity     string    `json:"identity"`
	FullName     string    `json:"fullName,omitempty"`
	IsSuperAdmin bool      `json:"isSuperAdmin"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt,omitzero"`
}

// DisplayName prefers the full name and falls back to the identity.
func (a AdminAccount) DisplayName() string {
	if strings.TrimSpace(a.FullName) != "" {
		return a.FullName
	}
	return a.Identity
}

type AccountInput struct {
	Identity string `json:"identity"`
	Secret   string `json:"secret"`
	FullName string `json:"fullName,omitempty"`
}

// AccountPatch carries only the fields to change.
type AccountPatch struct {
	Identity *string `json:"identity,omitempty"`
	Secret   *string `json:"secret,omitempty"`
	FullName *string `json:"fullName,omitempty"`
}

type BlogStatus string

const (
	StatusDraft     BlogStatus = "draft"
	StatusPublished BlogStatus = "published"
)

func (s BlogStatus) Valid() bool {
	return s == StatusDraft || s == StatusPublished
}

// ParseBlogStatus maps an absent status to draft.
func ParseBlogStatus(raw string) (BlogStatus, error) {
	if raw == "" {
		return StatusDraft, nil
	}
	s := BlogStatus(strings.ToLower(strings.TrimSpace(raw)))
	if !s.Valid() {
		return "", ErrInvalidStatus
	}
	return s, nil
}

type BlogPost struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Content   string     `json:"content"`
	Author    string     `json:"author"`
	Status    BlogStatus `json:"status"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt,omitzero"`
}

type BlogInput struct {
	Title   string     `json:"title"`
	Content string     `json:"content"`
	Author  string     `json:"author"`
	Status  BlogStatus `json:"status,omitempty"`
}

// Validate normalizes an empty status to draft.
func (in *BlogInput) Validate() error {
	if strings.TrimSpace(in.Title) == "" {
		return ErrTitleRequired
	}
	status, err := ParseBlogStatus(string(in.Status))
	if err != nil {
		return err
	}
	in.Status = status
	return nil
}

// BlogPatch carries only the fields to change.
type BlogPatch struct {
	Title   *string     `json:"title,omitempty"`
	Content *string     `json:"content,omitempty"`
	Author  *string     `json:"author,omitempty"`
	Status  *BlogStatus `json:"status,omitempty"`
}

func (p BlogPatch) Validate() error {
	if p.Title != nil && strings.TrimSpace(*p.Title) == "" {
		return ErrTitleRequired
	}
	if p.Status != nil && !p.Status.Valid() {
		return ErrInvalidStatus
	}
	return nil
}

// Apply copies the set fields of p onto post.
func (p BlogPatch) Apply(post *BlogPost) {
	if p.Title != nil {
		post.Title = *p.Title
	}
	if p.Content != nil {
		post.Content = *p.Content
	}
	if p.Author != nil {
		post.Author = *p.Author
	}
	if p.Status != nil {
		post.Status = *p.Status
	}
}

type BlogSummary struct {
	Total     int `json:"total"`
	Drafts    int `json:"drafts"`
	Published int `json:"published"`
}

// SummarizeBlogs counts posts by status.
func SummarizeBlogs(posts []BlogPost) BlogSummary {
	summary := BlogSummary{Total: len(posts)}
	for _, p := range posts {
		switch p.Status {
		case StatusPublished:
			summary.Published++
		case StatusDraft:
			summary.Drafts++
		}
	}
	return summary
}

type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

func ParseAction(raw string) (Action, error) {
	a := Action(strings.ToLower(strings.TrimSpace(raw)))
	switch a {
	case ActionCreate, ActionUpdate, ActionDelete:
		return a, nil
	}
	return "", ErrInvalidAction
}

type EntityKind string

const (
	EntityAdmin EntityKind = "admin"
	EntityBlog  EntityKind = "blog"
)

// ActivityLogEntry records one mutating operation for audit display.
type ActivityLogEntry struct {
	ID         string     `json:"id"`
	Date       time.Time  `json:"date"`
	ActorID    string     `json:"actorId"`
	ActorName  string     `json:"actorName"`
	Action     Action     `json:"action"`
	EntityKind EntityKind `json:"entityKind"`
	EntityName string     `json:"entityName"`
}

// ActivityFilter selects log entries; zero fields match everything.
type ActivityFilter struct {
	Day     string // YYYY-MM-DD, local time
	ActorID string
	Action  Action
	Limit   int
}

type DashboardStats struct {
	TotalBlogs     int                `json:"totalBlogs"`
	PublishedBlogs int                `json:"publishedBlogs"`
	DraftBlogs     int                `json:"draftBlogs"`
	TotalAdmins    int                `json:"totalAdmins"`
	RecentActivity []ActivityLogEntry `json:"recentActivity"`
}
