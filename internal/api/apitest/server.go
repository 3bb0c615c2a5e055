// Package apitest provides an in-process fake of the devquote backend.
package apitest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/felixgeelhaar/devquote/internal/domain"
)

// BasePath is where the fake mounts the API, so clients exercise base URL
// joining.
const BasePath = "/api"

// RecordedRequest is one request seen by the fake.
type RecordedRequest struct {
	Method        string
	Path          string
	Query         url.Values
	Authorization string
	RequestID     string
}

// Bearer returns the token of the Authorization header.
func (r RecordedRequest) Bearer() string {
	return strings.TrimPrefix(r.Authorization, "Bearer ")
}

// Server is a fake backend. Access tokens are valid until expired with
// Expire or ExpireAll. Refresh tokens are single use.
type Server struct {
	*httptest.Server

	mu            sync.Mutex
	users         map[string]account
	access        map[string]string // access token -> username
	refresh       map[string]string // refresh token -> username
	requests      []RecordedRequest
	nextRefresh   *domain.TokenPair
	refreshStatus int
	refreshBody   string
	refreshGate   chan struct{}
	refreshDelay  time.Duration
	validateDown  bool
	projects      map[int64]map[string]any
	tasks         map[int64]map[string]any
	requesters    map[int64]map[string]any
	deliveries    map[int64]Delivery

	seq          atomic.Int64
	refreshCalls atomic.Int64
	loginCalls   atomic.Int64
	logoutCalls  atomic.Int64
}

type account struct {
	password string
	user     domain.User
}

// New starts a fake backend that is closed with the test.
func New(t testing.TB) *Server {
	t.Helper()
	s := &Server{
		users:    map[string]account{},
		access:   map[string]string{},
		refresh:  map[string]string{},
		projects: map[int64]map[string]any{},
		tasks:    map[int64]map[string]any{},

		requesters: map[int64]map[string]any{},
		deliveries: map[int64]Delivery{},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST "+BasePath+"/auth/login", s.handleLogin)
	mux.HandleFunc("POST "+BasePath+"/auth/refresh", s.handleRefresh)
	mux.HandleFunc("POST "+BasePath+"/auth/logout", s.handleLogout)
	mux.HandleFunc("GET "+BasePath+"/auth/validate", s.authed(s.handleValidate))
	mux.HandleFunc("GET "+BasePath+"/auth/profile", s.authed(s.handleProfile))
	mux.HandleFunc("PUT "+BasePath+"/auth/profile", s.authed(s.handleUpdateProfile))
	mux.HandleFunc("POST "+BasePath+"/auth/change-password", s.authed(s.handleChangePassword))
	s.routeResources(mux)
	mux.HandleFunc(BasePath+"/echo/", s.authed(s.handleEcho))
	mux.HandleFunc(BasePath+"/status/{code}", s.handleStatus)

	s.Server = httptest.NewServer(s.record(mux))
	t.Cleanup(s.Close)
	return s
}

// BaseURL is the URL to configure clients with.
func (s *Server) BaseURL() string {
	return s.URL + BasePath
}

// AddUser registers credentials and the user returned on login.
func (s *Server) AddUser(username, password string, user domain.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if user.Username == "" {
		user.Username = username
	}
	s.users[username] = account{password: password, user: user}
}

// Issue creates a valid token pair for username without a login call.
func (s *Server) Issue(username string) domain.TokenPair {
	n := s.seq.Add(1)
	pair := domain.TokenPair{
		AccessToken:  fmt.Sprintf("A%d", n),
		RefreshToken: fmt.Sprintf("R%d", n),
		TokenType:    "Bearer",
		ExpiresIn:    900,
	}
	s.mu.Lock()
	s.access[pair.AccessToken] = username
	s.refresh[pair.RefreshToken] = username
	s.mu.Unlock()
	return pair
}

// GrantRefresh makes token a valid refresh token for username.
func (s *Server) GrantRefresh(username, token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refresh[token] = username
}

// Expire invalidates one access token.
func (s *Server) Expire(accessToken string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.access, accessToken)
}

// ExpireAll invalidates every access token.
func (s *Server) ExpireAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.access = map[string]string{}
}

// SetNextRefresh fixes the pair returned by the next refresh. An empty
// RefreshToken is omitted from the reply.
func (s *Server) SetNextRefresh(pair domain.TokenPair) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextRefresh = &pair
}

// FailRefresh makes refresh calls reply with status and body.
func (s *Server) FailRefresh(status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshStatus = status
	s.refreshBody = body
}

// HoldRefresh blocks refresh calls until the returned func is called.
func (s *Server) HoldRefresh() (release func()) {
	gate := make(chan struct{})
	s.mu.Lock()
	s.refreshGate = gate
	s.mu.Unlock()
	var once sync.Once
	return func() { once.Do(func() { close(gate) }) }
}

// SlowRefresh delays every refresh reply.
func (s *Server) SlowRefresh(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshDelay = d
}

// FailValidate makes /auth/validate reply 503.
func (s *Server) FailValidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.validateDown = true
}

// AddProject and AddTask seed the resource listings.
func (s *Server) AddProject(id int64, fields map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.projects[id] = withID(id, fields)
}

func (s *Server) AddTask(id int64, fields map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[id] = withID(id, fields)
}

// RefreshCalls returns how many refresh requests arrived.
func (s *Server) RefreshCalls() int { return int(s.refreshCalls.Load()) }

// LoginCalls returns how many login requests arrived.
func (s *Server) LoginCalls() int { return int(s.loginCalls.Load()) }

// LogoutCalls returns how many logout requests arrived.
func (s *Server) LogoutCalls() int { return int(s.logoutCalls.Load()) }

// Requests returns a copy of every recorded request.
func (s *Server) Requests() []RecordedRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]RecordedRequest(nil), s.requests...)
}

// RequestsTo returns the recorded requests whose path has suffix.
func (s *Server) RequestsTo(suffix string) []RecordedRequest {
	var out []RecordedRequest
	for _, r := range s.Requests() {
		if strings.HasSuffix(r.Path, suffix) {
			out = append(out, r)
		}
	}
	return out
}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.requests = append(s.requests, RecordedRequest{
			Method:        r.Method,
			Path:          strings.TrimPrefix(r.URL.Path, BasePath),
			Query:         r.URL.Query(),
			Authorization: r.Header.Get("Authorization"),
			RequestID:     r.Header.Get("X-Request-ID"),
		})
		s.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) authed(h func(w http.ResponseWriter, r *http.Request, username string)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		s.mu.Lock()
		username, ok := s.access[token]
		s.mu.Unlock()
		if token == "" || !ok {
			writeJSON(w, http.StatusUnauthorized, map[string]any{
				"message":   "token expired",
				"status":    401,
				"path":      strings.TrimPrefix(r.URL.Path, BasePath),
				"timestamp": "2026-01-01T00:00:00Z",
			})
			return
		}
		h(w, r, username)
	}
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	s.loginCalls.Add(1)
	var creds domain.Credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"message": "invalid body"})
		return
	}
	s.mu.Lock()
	acct, ok := s.users[creds.Username]
	s.mu.Unlock()
	if !ok || acct.password != creds.Password {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "invalid username or password"})
		return
	}

	pair := s.Issue(creds.Username)
	writeJSON(w, http.StatusOK, map[string]any{
		"access_token":  pair.AccessToken,
		"refresh_token": pair.RefreshToken,
		"token_type":    pair.TokenType,
		"expires_in":    pair.ExpiresIn,
		"user":          acct.user,
	})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	s.refreshCalls.Add(1)

	s.mu.Lock()
	gate, delay := s.refreshGate, s.refreshDelay
	s.mu.Unlock()
	if gate != nil {
		<-gate
	}
	if delay > 0 {
		time.Sleep(delay)
	}

	var body struct {
		RefreshToken string `json:"refresh_token"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.refreshStatus != 0 {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(s.refreshStatus)
		_, _ = w.Write([]byte(s.refreshBody))
		return
	}

	username, ok := s.refresh[body.RefreshToken]
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid refresh token"})
		return
	}
	delete(s.refresh, body.RefreshToken)

	var pair domain.TokenPair
	if s.nextRefresh != nil {
		pair = *s.nextRefresh
		s.nextRefresh = nil
	} else {
		n := s.seq.Add(1)
		pair = domain.TokenPair{AccessToken: fmt.Sprintf("A%d", n), RefreshToken: fmt.Sprintf("R%d", n)}
	}
	s.access[pair.AccessToken] = username
	reply := map[string]any{
		"access_token": pair.AccessToken,
		"token_type":   "Bearer",
		"expires_in":   900,
	}
	if pair.RefreshToken != "" {
		s.refresh[pair.RefreshToken] = username
		reply["refresh_token"] = pair.RefreshToken
	}
	writeJSON(w, http.StatusOK, reply)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.logoutCalls.Add(1)
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	s.Expire(token)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleValidate(w http.ResponseWriter, _ *http.Request, _ string) {
	s.mu.Lock()
	down := s.validateDown
	s.mu.Unlock()
	if down {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"message": "maintenance"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"valid": true})
}

func (s *Server) handleProfile(w http.ResponseWriter, _ *http.Request, username string) {
	s.mu.Lock()
	acct := s.users[username]
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, acct.user)
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request, username string) {
	var update domain.ProfileUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"message": "invalid body"})
		return
	}
	if update.Email != "" && !strings.Contains(update.Email, "@") {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"message": "validation failed",
			"errors":  map[string][]string{"email": {"must be a well-formed email address"}},
		})
		return
	}
	s.mu.Lock()
	acct := s.users[username]
	if update.Name != "" {
		acct.user.Name = update.Name
	}
	if update.Email != "" {
		acct.user.Email = update.Email
	}
	s.users[username] = acct
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, acct.user)
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request, username string) {
	var body struct {
		CurrentPassword string `json:"currentPassword"`
		NewPassword     string `json:"newPassword"`
		ConfirmPassword string `json:"confirmPassword"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"message": "invalid body"})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	acct := s.users[username]
	if acct.password != body.CurrentPassword {
		writeJSON(w, http.StatusBadRequest, map[string]any{"message": "current password is incorrect"})
		return
	}
	if body.NewPassword != body.ConfirmPassword {
		writeJSON(w, http.StatusBadRequest, map[string]any{"message": "passwords do not match"})
		return
	}
	acct.password = body.NewPassword
	s.users[username] = acct
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listHandler(items collection) func(http.ResponseWriter, *http.Request, string) {
	return func(w http.ResponseWriter, r *http.Request, _ string) {
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		size, _ := strconv.Atoi(r.URL.Query().Get("size"))
		if size <= 0 {
			size = 10
		}

		s.mu.Lock()
		all := items()
		ids := make([]int64, 0, len(all))
		for id := range all {
			ids = append(ids, id)
		}
		slices.Sort(ids)
		content := []map[string]any{}
		start := page * size
		for i := start; i < len(ids) && i < start+size; i++ {
			content = append(content, all[ids[i]])
		}
		total := len(ids)
		s.mu.Unlock()

		totalPages := (total + size - 1) / size
		writeJSON(w, http.StatusOK, map[string]any{
			"content":       content,
			"number":        page,
			"size":          size,
			"totalElements": total,
			"totalPages":    totalPages,
			"first":         page == 0,
			"last":          page >= totalPages-1,
			"empty":         len(content) == 0,
		})
	}
}

func (s *Server) getHandler(items collection) func(http.ResponseWriter, *http.Request, string) {
	return func(w http.ResponseWriter, r *http.Request, _ string) {
		id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"message": "invalid id"})
			return
		}
		s.mu.Lock()
		item, ok := items()[id]
		s.mu.Unlock()
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]any{"message": "not found"})
			return
		}
		writeJSON(w, http.StatusOK, item)
	}
}

// handleEcho answers any method under /echo/ with the bearer it saw.
func (s *Server) handleEcho(w http.ResponseWriter, r *http.Request, username string) {
	writeJSON(w, http.StatusOK, map[string]any{
		"path":   strings.TrimPrefix(r.URL.Path, BasePath),
		"method": r.Method,
		"user":   username,
		"token":  strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer "),
	})
}

// handleStatus replies with the status in the path and an empty body.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	code, err := strconv.Atoi(r.PathValue("code"))
	if err != nil || code < 100 || code > 599 {
		code = http.StatusBadRequest
	}
	w.WriteHeader(code)
}

func withID(id int64, fields map[string]any) map[string]any {
	out := map[string]any{"id": id}
	for k, v := range fields {
		out[k] = v
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
