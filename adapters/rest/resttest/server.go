// Package resttest provides an in-memory Blogs & Admin backend for tests,
// in the manner of net/http/httptest.
package resttest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Seeded credentials.
const (
	SuperUsername  = "admin"
	SuperPassword  = "admin123"
	EditorUsername = "editor"
	EditorPassword = "editor123"
)

// naive mirrors the backend's timezone-less datetime encoding.
const naive = "2006-01-02T15:04:05.000000"

type account struct {
	ID       int
	Username string
	Email    string
	FullName string
	Password string
	Super    bool
	Created  time.Time
	Updated  time.Time
}

type blog struct {
	ID      int
	Title   string
	Content string
	Author  string
	Status  string
	Created time.Time
	Updated time.Time
}

// Request is a recorded inbound call.
type Request struct {
	Method        string
	Path          string
	Query         string
	ContentType   string
	Authorization string
	RequestID     string
	Body          string
}

type failure struct {
	status int
	body   string
}

type Server struct {
	*httptest.Server

	mu          sync.Mutex
	accounts    []*account
	blogs       []*blog
	tokens      map[string]int
	nextAccount int
	nextBlog    int
	issued      int
	clock       time.Time
	requests    []Request
	failures    map[string]failure
}

// NewServer starts a backend seeded with a super admin (id 1), a regular
// admin (id 2) and two posts.
func NewServer() *Server {
	s := &Server{
		tokens:   make(map[string]int),
		failures: make(map[string]failure),
		clock:    time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC),
	}
	s.seed()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.health)
	mux.HandleFunc("POST /admin/login", s.login)
	mux.HandleFunc("GET /admin/list", s.authed(s.listAccounts))
	mux.HandleFunc("POST /admin/create", s.authed(s.createAccount))
	mux.HandleFunc("PUT /admin/{id}", s.authed(s.updateAccount))
	mux.HandleFunc("DELETE /admin/{id}", s.authed(s.deleteAccount))
	mux.HandleFunc("GET /blogs", s.listBlogs)
	mux.HandleFunc("GET /blogs/summary", s.summary)
	mux.HandleFunc("GET /blogs/{id}", s.getBlog)
	mux.HandleFunc("POST /blogs", s.authed(s.createBlog))
	mux.HandleFunc("PUT /blogs/{id}", s.authed(s.updateBlog))
	mux.HandleFunc("DELETE /blogs/{id}", s.authed(s.deleteBlog))

	s.Server = httptest.NewServer(s.record(mux))
	return s
}

func (s *Server) seed() {
	s.accounts = []*account{
		{ID: 1, Username: SuperUsername, Email: "admin@admin.com", FullName: "Super Admin", Password: SuperPassword, Super: true, Created: s.tick(), Updated: s.clock},
		{ID: 2, Username: EditorUsername, Email: "editor@admin.com", FullName: "John Doe", Password: EditorPassword, Created: s.tick(), Updated: s.clock},
	}
	s.nextAccount = 3
	s.blogs = []*blog{
		{ID: 1, Title: "Getting Started with Admin Panel", Content: "Welcome.", Author: "Super Admin", Status: "published", Created: s.tick(), Updated: s.clock},
		{ID: 2, Title: "Upcoming Features Preview", Content: "Soon.", Author: "John Doe", Status: "draft", Created: s.tick(), Updated: s.clock},
	}
	s.nextBlog = 3
}

func (s *Server) tick() time.Time {
	s.clock = s.clock.Add(time.Minute)
	return s.clock
}

// Fail makes every request to "METHOD /path" answer status with body.
func (s *Server) Fail(route string, status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[route] = failure{status: status, body: body}
}

// Requests returns the recorded calls in arrival order.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// LastRequest returns the most recent call to method and path.
func (s *Server) LastRequest(method, path string) (Request, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.requests) - 1; i >= 0; i-- {
		if s.requests[i].Method == method && s.requests[i].Path == path {
			return s.requests[i], true
		}
	}
	return Request{}, false
}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body []byte
		if r.Body != nil {
			body, _ = io.ReadAll(r.Body)
			r.Body = io.NopCloser(bytes.NewReader(body))
		}

		s.mu.Lock()
		s.requests = append(s.requests, Request{
			Method:        r.Method,
			Path:          r.URL.Path,
			Query:         r.URL.RawQuery,
			ContentType:   r.Header.Get("Content-Type"),
			Authorization: r.Header.Get("Authorization"),
			RequestID:     r.Header.Get("X-Request-ID"),
			Body:          string(body),
		})
		f, failing := s.failures[r.Method+" "+r.URL.Path]
		s.mu.Unlock()

		if failing {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(f.status)
			_, _ = w.Write([]byte(f.body))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func detail(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"detail": msg})
}

type authedHandler func(w http.ResponseWriter, r *http.Request, caller *account)

func (s *Server) authed(h authedHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		s.mu.Lock()
		id, known := s.tokens[token]
		caller := s.findAccount(id)
		s.mu.Unlock()
		if !ok || !known || caller == nil {
			detail(w, http.StatusUnauthorized, "Could not validate credentials")
			return
		}
		h(w, r, caller)
	}
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		detail(w, http.StatusUnprocessableEntity, "invalid form")
		return
	}
	username, password := r.PostForm.Get("username"), r.PostForm.Get("password")

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.accounts {
		if (a.Username == username || a.Email == username) && a.Password == password {
			s.issued++
			token := fmt.Sprintf("tok-%d-%d", a.ID, s.issued)
			s.tokens[token] = a.ID
			writeJSON(w, http.StatusOK, map[string]string{"access_token": token, "token_type": "bearer"})
			return
		}
	}
	detail(w, http.StatusUnauthorized, "Invalid email or password")
}

func (a *account) wire() map[string]any {
	return map[string]any{
		"id":             a.ID,
		"username":       a.Username,
		"email":          a.Email,
		"full_name":      a.FullName,
		"is_super_admin": a.Super,
		"created_at":     a.Created.Format(naive),
		"updated_at":     a.Updated.Format(naive),
	}
}

func (s *Server) findAccount(id int) *account {
	for _, a := range s.accounts {
		if a.ID == id {
			return a
		}
	}
	return nil
}

func (s *Server) listAccounts(w http.ResponseWriter, _ *http.Request, _ *account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]map[string]any, 0, len(s.accounts))
	for _, a := range s.accounts {
		out = append(out, a.wire())
	}
	writeJSON(w, http.StatusOK, out)
}

type accountBody struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	Password string `json:"password"`
}

func (s *Server) createAccount(w http.ResponseWriter, r *http.Request, _ *account) {
	var in accountBody
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.Username == "" || in.Password == "" {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"detail": []map[string]any{{"loc": []any{"body", "username"}, "msg": "field required"}},
		})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.accounts {
		if strings.EqualFold(a.Username, in.Username) {
			detail(w, http.StatusBadRequest, "Username already registered")
			return
		}
	}
	a := &account{ID: s.nextAccount, Username: in.Username, Email: in.Email, FullName: in.FullName, Password: in.Password, Created: s.tick()}
	a.Updated = a.Created
	s.nextAccount++
	s.accounts = append(s.accounts, a)
	writeJSON(w, http.StatusOK, a.wire())
}

func pathID(r *http.Request) int {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		return -1
	}
	return id
}

func (s *Server) updateAccount(w http.ResponseWriter, r *http.Request, caller *account) {
	var in accountBody
	_ = json.NewDecoder(r.Body).Decode(&in)

	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.findAccount(pathID(r))
	if a == nil {
		detail(w, http.StatusNotFound, "Admin not found")
		return
	}
	if caller.ID != a.ID && !caller.Super {
		detail(w, http.StatusForbidden, "Not permitted")
		return
	}
	if in.Username != "" {
		a.Username = in.Username
	}
	if in.Email != "" {
		a.Email = in.Email
	}
	if in.FullName != "" {
		a.FullName = in.FullName
	}
	if in.Password != "" {
		a.Password = in.Password
	}
	a.Updated = s.tick()
	writeJSON(w, http.StatusOK, a.wire())
}

func (s *Server) deleteAccount(w http.ResponseWriter, r *http.Request, caller *account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := pathID(r)
	a := s.findAccount(id)
	switch {
	case a == nil:
		detail(w, http.StatusNotFound, "Admin not found")
	case id == 1:
		detail(w, http.StatusForbidden, "Cannot delete the permanent admin account")
	case id == caller.ID:
		detail(w, http.StatusBadRequest, "Cannot delete your own account")
	case !caller.Super:
		detail(w, http.StatusForbidden, "Not enough permissions")
	default:
		for i, existing := range s.accounts {
			if existing.ID == id {
				s.accounts = append(s.accounts[:i], s.accounts[i+1:]...)
				break
			}
		}
		detail(w, http.StatusOK, "Deleted successfully")
	}
}

func (b *blog) wire() map[string]any {
	return map[string]any{
		"id":         b.ID,
		"title":      b.Title,
		"content":    b.Content,
		"author":     b.Author,
		"status":     b.Status,
		"created_at": b.Created.Format(naive),
		"updated_at": b.Updated.Format(naive),
	}
}

// listWire omits content and status, as the list endpoint does.
func (b *blog) listWire() map[string]any {
	return map[string]any{
		"id":         b.ID,
		"title":      b.Title,
		"author":     b.Author,
		"created_at": b.Created.Format(naive),
	}
}

func (s *Server) findBlog(id int) *blog {
	for _, b := range s.blogs {
		if b.ID == id {
			return b
		}
	}
	return nil
}

func (s *Server) listBlogs(w http.ResponseWriter, r *http.Request) {
	skip, _ := strconv.Atoi(r.URL.Query().Get("skip"))
	limit := 10
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, _ = strconv.Atoi(raw)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	sorted := append([]*blog(nil), s.blogs...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Created.After(sorted[j].Created) })

	out := make([]map[string]any, 0)
	for i := skip; i < len(sorted) && len(out) < limit; i++ {
		out = append(out, sorted[i].listWire())
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) summary(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	drafts, published := 0, 0
	for _, b := range s.blogs {
		switch b.Status {
		case "draft":
			drafts++
		case "published":
			published++
		}
	}
	writeJSON(w, http.StatusOK, map[string]int{"total": len(s.blogs), "drafts": drafts, "published": published})
}

func (s *Server) getBlog(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := s.findBlog(pathID(r))
	if b == nil {
		detail(w, http.StatusNotFound, "Blog not found")
		return
	}
	writeJSON(w, http.StatusOK, b.wire())
}

type blogBody struct {
	Title   *string `json:"title"`
	Content *string `json:"content"`
	Author  *string `json:"author"`
	Status  *string `json:"status"`
}

func (s *Server) createBlog(w http.ResponseWriter, r *http.Request, _ *account) {
	var in blogBody
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.Title == nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"detail": []map[string]any{{"loc": []any{"body", "title"}, "msg": "field required"}},
		})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	b := &blog{ID: s.nextBlog, Title: *in.Title, Status: "draft", Created: s.tick()}
	if in.Content != nil {
		b.Content = *in.Content
	}
	if in.Author != nil {
		b.Author = *in.Author
	}
	if in.Status != nil && *in.Status != "" {
		b.Status = *in.Status
	}
	b.Updated = b.Created
	s.nextBlog++
	s.blogs = append(s.blogs, b)
	writeJSON(w, http.StatusCreated, b.wire())
}

func (s *Server) updateBlog(w http.ResponseWriter, r *http.Request, _ *account) {
	var in blogBody
	_ = json.NewDecoder(r.Body).Decode(&in)

	s.mu.Lock()
	defer s.mu.Unlock()
	b := s.findBlog(pathID(r))
	if b == nil {
		detail(w, http.StatusNotFound, "Blog not found")
		return
	}
	if in.Title != nil {
		b.Title = *in.Title
	}
	if in.Content != nil {
		b.Content = *in.Content
	}
	if in.Author != nil {
		b.Author = *in.Author
	}
	if in.Status != nil {
		b.Status = *in.Status
	}
	b.Updated = s.tick()
	writeJSON(w, http.StatusOK, b.wire())
}

func (s *Server) deleteBlog(w http.ResponseWriter, r *http.Request, _ *account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := pathID(r)
	for i, b := range s.blogs {
		if b.ID == id {
			s.blogs = append(s.blogs[:i], s.blogs[i+1:]...)
			detail(w, http.StatusOK, "Deleted successfully")
			return
		}
	}
	detail(w, http.StatusNotFound, "Blog not found")
}
