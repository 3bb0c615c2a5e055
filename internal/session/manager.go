package session

import (
	"context"
	stderrors "errors"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/felixgeelhaar/devquote/internal/api"
	"github.com/felixgeelhaar/devquote/internal/domain"
	"github.com/felixgeelhaar/devquote/internal/errors"
	"github.com/felixgeelhaar/devquote/internal/log"
	"github.com/felixgeelhaar/devquote/internal/metrics"
	"github.com/felixgeelhaar/devquote/internal/tokenstore"
)

// Messages shown in State.Error.
const (
	MsgSessionExpired = "session expired, please sign in again"
)

// ManagerConfig configures a Manager.
type ManagerConfig struct {
	// Auth must be built with the bare client as raw transport and the
	// Coordinator as authenticated transport.
	Auth        *api.AuthService
	Coordinator *Coordinator
	Store       *tokenstore.Store
	Logger      *log.Logger
	Metrics     *metrics.Metrics
}

// Manager is the only writer of the session State. It is safe for
// concurrent use.
type Manager struct {
	auth    *api.AuthService
	coord   *Coordinator
	store   *tokenstore.Store
	logger  *log.Logger
	metrics *metrics.Metrics

	mu        sync.RWMutex
	state     State
	listeners map[int]Listener
	nextID    int
}

// NewManager creates a Manager with an empty session and registers the
// refresh hooks on the coordinator.
func NewManager(cfg ManagerConfig) *Manager {
	m := &Manager{
		auth:      cfg.Auth,
		coord:     cfg.Coordinator,
		store:     cfg.Store,
		logger:    log.OrDefault(cfg.Logger).With("component", "session"),
		metrics:   cfg.Metrics,
		listeners: map[int]Listener{},
	}
	m.coord.SetHooks(Hooks{
		OnRefreshed:     m.onRefreshed,
		OnRefreshFailed: m.onRefreshFailed,
	})
	return m
}

// State returns a snapshot of the session.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.snapshot()
}

// Subscribe registers fn for every state change and returns a function
// that removes it.
func (m *Manager) Subscribe(fn Listener) (unsubscribe func()) {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = fn
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.listeners, id)
			m.mu.Unlock()
		})
	}
}

// update applies fn under the write lock and notifies listeners with the
// resulting snapshot. reason is recorded when the authenticated flag flips.
func (m *Manager) update(reason string, fn func(s *State)) {
	m.mu.Lock()
	was := authenticated(m.state.User, m.state.Tokens)
	fn(&m.state)
	snap := m.state.snapshot()
	listeners := make([]Listener, 0, len(m.listeners))
	for _, l := range m.listeners {
		listeners = append(listeners, l)
	}
	m.mu.Unlock()

	if snap.IsAuthenticated != was {
		to := "unauthenticated"
		if snap.IsAuthenticated {
			to = "authenticated"
		}
		m.metrics.ObserveTransition(to, reason)
		m.logger.Debug("session transition", "to", to, "reason", reason)
	}
	for _, l := range listeners {
		l(snap)
	}
}

func resetSession(s *State) {
	s.User = nil
	s.Tokens = nil
}

// Login signs in with creds. On failure the state carries a user-facing
// error and the error is returned. IsLoading is cleared on every path.
func (m *Manager) Login(ctx context.Context, creds domain.Credentials) error {
	if err := creds.Validate(); err != nil {
		m.update("login_failed", func(s *State) { s.Error = userMessage(err) })
		return err
	}

	m.update("login", func(s *State) {
		s.IsLoading = true
		s.Error = ""
	})
	defer m.update("login", func(s *State) { s.IsLoading = false })

	m.coord.Invalidate()

	resp, err := m.auth.Login(ctx, creds)
	if err == nil && resp.User == nil {
		err = errors.New(errors.ErrCodeInvalidInput, "login response did not include the user")
	}
	if err != nil {
		m.loginFailed(ctx, creds, err, false)
		return err
	}
	if err := m.persist(ctx, resp); err != nil {
		m.loginFailed(ctx, creds, err, true)
		return err
	}

	pair := resp.TokenPair
	user := resp.User
	m.update("login", func(s *State) {
		s.User = user
		s.Tokens = &pair
		s.Error = ""
	})
	m.logger.InfoContext(ctx, "signed in", "username", user.Username)
	return nil
}

// loginFailed publishes the error. cleared means the store was wiped and
// any previous session is gone with it.
func (m *Manager) loginFailed(ctx context.Context, creds domain.Credentials, err error, cleared bool) {
	m.logger.WithError(err).WarnContext(ctx, "login failed", "username", creds.Username)
	m.update("login_failed", func(s *State) {
		if cleared {
			resetSession(s)
		}
		s.Error = userMessage(err)
	})
}

// persist writes tokens then the user. A failed write clears whatever was
// written.
func (m *Manager) persist(ctx context.Context, resp *api.LoginResponse) error {
	err := m.store.StoreTokens(ctx, resp.AccessToken, resp.RefreshToken)
	if err == nil {
		err = m.store.StoreUser(ctx, resp.User)
	}
	if err != nil {
		if cerr := m.store.ClearSession(ctx); cerr != nil {
			m.logger.WithError(cerr).WarnContext(ctx, "failed to clear partial session")
		}
	}
	return err
}

// Logout ends the session. The server call is best effort; the local
// session is always cleared. Logging out of an empty session is a no-op.
// A storage error is returned after the state has been reset.
func (m *Manager) Logout(ctx context.Context) error {
	m.coord.Invalidate()

	if token, err := m.store.AccessToken(ctx); err == nil && token != "" {
		if err := m.auth.Logout(ctx); err != nil {
			m.logger.WithError(err).InfoContext(ctx, "server logout failed, clearing local session anyway")
		}
	}

	clearErr := m.store.ClearSession(ctx)
	m.update("logout", func(s *State) {
		resetSession(s)
		s.IsLoading = false
		s.Error = ""
	})
	if clearErr != nil {
		m.logger.WithError(clearErr).ErrorContext(ctx, "failed to clear token store on logout")
		return clearErr
	}
	return nil
}

// LoadStoredAuth restores a stored session. It never fails: anything that
// goes wrong leaves the session unauthenticated and the store cleared.
func (m *Manager) LoadStoredAuth(ctx context.Context) {
	m.update("bootstrap", func(s *State) { s.IsLoading = true })
	defer m.update("bootstrap", func(s *State) { s.IsLoading = false })

	var (
		tokens tokenstore.Tokens
		user   *domain.User
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		tokens, err = m.store.GetTokens(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		user, err = m.store.GetUser(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		if errors.HasCode(err, errors.ErrCodeStorageCrypto) {
			// The session is still there for the right passphrase.
			m.logger.WithError(err).WarnContext(ctx, "stored session cannot be unsealed, keeping it")
			m.update("bootstrap", func(s *State) {
				resetSession(s)
				s.Error = userMessage(err)
			})
			return
		}
		m.logger.WithError(err).WarnContext(ctx, "failed to read stored session")
		m.discard(ctx)
		return
	}

	if tokens.Access == "" || user == nil {
		if !tokens.Empty() || user != nil {
			m.logger.InfoContext(ctx, "clearing incomplete stored session")
		}
		m.discard(ctx)
		return
	}

	pair := domain.TokenPair{AccessToken: tokens.Access, RefreshToken: tokens.Refresh}
	if err := m.auth.ValidateToken(ctx, tokens.Access); err != nil {
		m.logger.WithError(err).DebugContext(ctx, "stored access token rejected")
		if tokens.Refresh == "" {
			m.discard(ctx)
			return
		}
		pair, err = m.coord.Refresh(ctx)
		if err != nil {
			m.logger.WithError(err).InfoContext(ctx, "stored session could not be refreshed")
			m.discard(ctx)
			return
		}
	}

	m.update("bootstrap", func(s *State) {
		s.User = user
		s.Tokens = &pair
		s.Error = ""
	})
	m.logger.DebugContext(ctx, "session restored", "username", user.Username)
}

// discard clears the store and resets the state without an error.
func (m *Manager) discard(ctx context.Context) {
	if err := m.store.ClearSession(ctx); err != nil {
		m.logger.WithError(err).WarnContext(ctx, "failed to clear stored session")
	}
	m.update("bootstrap", func(s *State) {
		resetSession(s)
		s.Error = ""
	})
}

// HasProfile reports whether the signed-in user has pt. ADMIN has every
// profile.
func (m *Manager) HasProfile(pt domain.ProfileType) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.User.HasProfile(pt)
}

// HasPermission reports whether the signed-in user may perform operation
// on resource. ADMIN may do anything.
func (m *Manager) HasPermission(resource, operation string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.User.HasPermission(resource, operation)
}

// RefreshProfile fetches the user from the backend and caches it.
func (m *Manager) RefreshProfile(ctx context.Context) (*domain.User, error) {
	if !m.State().IsAuthenticated {
		return nil, errors.NewNotAuthenticatedError("no active session")
	}
	user, err := m.auth.Profile(ctx)
	if err != nil {
		return nil, err
	}
	return user, m.cacheUser(ctx, user)
}

// UpdateProfile saves the editable profile fields and caches the result.
func (m *Manager) UpdateProfile(ctx context.Context, update domain.ProfileUpdate) (*domain.User, error) {
	if update.Empty() {
		return nil, errors.NewValidationError("profile update", "nothing to change")
	}
	if !m.State().IsAuthenticated {
		return nil, errors.NewNotAuthenticatedError("no active session")
	}
	user, err := m.auth.UpdateProfile(ctx, update)
	if err != nil {
		return nil, err
	}
	return user, m.cacheUser(ctx, user)
}

// cacheUser stores user and publishes it if the session is still active.
func (m *Manager) cacheUser(ctx context.Context, user *domain.User) error {
	if err := m.store.StoreUser(ctx, user); err != nil {
		return err
	}
	m.update("profile", func(s *State) {
		if s.Tokens.HasAccess() {
			s.User = user
		}
	})
	return nil
}

// ChangePassword changes the password of the signed-in user.
func (m *Manager) ChangePassword(ctx context.Context, change domain.PasswordChange) error {
	if err := change.Validate(); err != nil {
		return err
	}
	if !m.State().IsAuthenticated {
		return errors.NewNotAuthenticatedError("no active session")
	}
	return m.auth.ChangePassword(ctx, change)
}

// ClearError removes the error message from the state.
func (m *Manager) ClearError() {
	m.update("clear_error", func(s *State) { s.Error = "" })
}

func (m *Manager) onRefreshed(pair domain.TokenPair) {
	m.update("refresh", func(s *State) {
		if s.User != nil && s.Tokens.HasAccess() {
			s.Tokens = &pair
		}
	})
}

func (m *Manager) onRefreshFailed(err error) {
	m.update("refresh_failed", func(s *State) {
		wasSignedIn := authenticated(s.User, s.Tokens)
		resetSession(s)
		if wasSignedIn {
			s.Error = userMessage(err)
		}
	})
}

// userMessage picks the text shown to the user for err.
func userMessage(err error) string {
	if errors.HasCode(err, errors.ErrCodeRefreshFailed) {
		return MsgSessionExpired
	}
	if apiErr, ok := api.AsAPIError(err); ok {
		return apiErr.Message
	}
	var dqErr *errors.DevquoteError
	if stderrors.As(err, &dqErr) {
		return dqErr.Message
	}
	return err.Error()
}
