package tokenstore

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"strings"

	"github.com/felixgeelhaar/devquote/internal/domain"
	"github.com/felixgeelhaar/devquote/internal/errors"
	"github.com/felixgeelhaar/devquote/internal/log"
	"github.com/felixgeelhaar/devquote/internal/metrics"
)

// Tokens is the stored token pair. Missing entries are empty strings.
type Tokens struct {
	Access  string
	Refresh string
}

// Empty reports whether neither token is stored.
func (t Tokens) Empty() bool {
	return t.Access == "" && t.Refresh == ""
}

// Store is the typed view over a Backend used by the rest of devquote.
// Every backend failure is returned as a STORE-* DevquoteError.
type Store struct {
	backend Backend
	logger  *log.Logger
	metrics *metrics.Metrics
}

// New creates a Store. logger and m may be nil.
func New(backend Backend, logger *log.Logger, m *metrics.Metrics) *Store {
	return &Store{
		backend: backend,
		logger:  log.OrDefault(logger).With("component", "tokenstore", "backend", backend.Name()),
		metrics: m,
	}
}

// Backend returns the underlying backend.
func (s *Store) Backend() Backend {
	return s.backend
}

// Close closes the backend.
func (s *Store) Close() error {
	return s.backend.Close()
}

// StoreTokens replaces both tokens in one backend write.
func (s *Store) StoreTokens(ctx context.Context, access, refresh string) error {
	if access == "" {
		return errors.NewValidationError("access token", "cannot be empty")
	}
	err := s.backend.SetMulti(ctx, map[Key]string{
		KeyAccessToken:  access,
		KeyRefreshToken: refresh,
	})
	return s.writeErr("store tokens", err)
}

// GetTokens returns the stored pair. Missing tokens are not an error.
func (s *Store) GetTokens(ctx context.Context) (Tokens, error) {
	access, err := s.get(ctx, KeyAccessToken)
	if err != nil {
		return Tokens{}, err
	}
	refresh, err := s.get(ctx, KeyRefreshToken)
	if err != nil {
		return Tokens{}, err
	}
	return Tokens{Access: access, Refresh: refresh}, nil
}

// AccessToken returns the current access token, or "" when none is stored.
func (s *Store) AccessToken(ctx context.Context) (string, error) {
	return s.get(ctx, KeyAccessToken)
}

// RefreshToken returns the current refresh token, or "" when none is stored.
func (s *Store) RefreshToken(ctx context.Context) (string, error) {
	return s.get(ctx, KeyRefreshToken)
}

// ClearSession removes the tokens and the cached user. Preferences are
// kept. Clearing an empty store succeeds.
func (s *Store) ClearSession(ctx context.Context) error {
	return s.writeErr("clear session", s.backend.Delete(ctx, SessionKeys...))
}

// StoreUser caches the signed-in user.
func (s *Store) StoreUser(ctx context.Context, user *domain.User) error {
	if user == nil {
		return errors.NewValidationError("user", "cannot be nil")
	}
	data, err := json.Marshal(user)
	if err != nil {
		return errors.NewStorageWriteError("store user", err)
	}
	return s.writeErr("store user", s.backend.SetMulti(ctx, map[Key]string{KeyUser: string(data)}))
}

// GetUser returns the cached user. A missing or corrupt entry yields nil
// without an error.
func (s *Store) GetUser(ctx context.Context) (*domain.User, error) {
	raw, err := s.get(ctx, KeyUser)
	if err != nil || raw == "" {
		return nil, err
	}
	var user domain.User
	if err := json.Unmarshal([]byte(raw), &user); err != nil {
		s.logger.Warn("cached user is corrupt, ignoring", "reason", err.Error())
		return nil, nil
	}
	return &user, nil
}

// Theme is the persisted color scheme preference.
type Theme string

const (
	ThemeLight  Theme = "light"
	ThemeDark   Theme = "dark"
	ThemeSystem Theme = "system"
)

// DefaultTheme and DefaultLanguage apply when nothing is stored.
const (
	DefaultTheme    = ThemeSystem
	DefaultLanguage = "pt-BR"
)

// ParseTheme validates a theme name.
func ParseTheme(s string) (Theme, error) {
	switch t := Theme(strings.ToLower(strings.TrimSpace(s))); t {
	case ThemeLight, ThemeDark, ThemeSystem:
		return t, nil
	default:
		return "", errors.NewValidationError("theme", "must be light, dark, or system")
	}
}

// Theme returns the stored theme or DefaultTheme.
func (s *Store) Theme(ctx context.Context) (Theme, error) {
	var raw string
	found, err := s.getJSON(ctx, KeyTheme, &raw)
	if err != nil || !found {
		return DefaultTheme, err
	}
	t, err := ParseTheme(raw)
	if err != nil {
		return DefaultTheme, nil
	}
	return t, nil
}

// SetTheme persists the theme.
func (s *Store) SetTheme(ctx context.Context, t Theme) error {
	if _, err := ParseTheme(string(t)); err != nil {
		return err
	}
	return s.setJSON(ctx, KeyTheme, string(t))
}

// Language returns the stored language tag or DefaultLanguage.
func (s *Store) Language(ctx context.Context) (string, error) {
	var lang string
	found, err := s.getJSON(ctx, KeyLanguage, &lang)
	if err != nil || !found || lang == "" {
		return DefaultLanguage, err
	}
	return lang, nil
}

// SetLanguage persists a language tag such as "pt-BR" or "en".
func (s *Store) SetLanguage(ctx context.Context, lang string) error {
	lang = strings.TrimSpace(lang)
	if lang == "" {
		return errors.NewValidationError("language", "cannot be empty")
	}
	return s.setJSON(ctx, KeyLanguage, lang)
}

// OnboardingCompleted reports whether onboarding was finished.
func (s *Store) OnboardingCompleted(ctx context.Context) (bool, error) {
	var done bool
	_, err := s.getJSON(ctx, KeyOnboarding, &done)
	return done, err
}

// SetOnboardingCompleted persists the onboarding flag.
func (s *Store) SetOnboardingCompleted(ctx context.Context, done bool) error {
	return s.setJSON(ctx, KeyOnboarding, done)
}

// ResetPreference removes one preference so its default applies again.
func (s *Store) ResetPreference(ctx context.Context, key Key) error {
	for _, k := range PreferenceKeys {
		if k == key {
			return s.writeErr("reset "+string(key), s.backend.Delete(ctx, key))
		}
	}
	return errors.NewValidationError("preference", "unknown key "+string(key))
}

func (s *Store) get(ctx context.Context, key Key) (string, error) {
	v, _, err := s.backend.Get(ctx, key)
	if err != nil {
		s.metrics.ObserveStorageError(s.backend.Name(), "read")
		return "", asStorageErr(err, func() *errors.DevquoteError {
			return errors.NewStorageReadError(string(key), err)
		})
	}
	return v, nil
}

func (s *Store) getJSON(ctx context.Context, key Key, v any) (bool, error) {
	raw, err := s.get(ctx, key)
	if err != nil || raw == "" {
		return false, err
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		s.logger.Warn("preference is corrupt, using default", "key", string(key), "reason", err.Error())
		return false, nil
	}
	return true, nil
}

func (s *Store) setJSON(ctx context.Context, key Key, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return errors.NewStorageWriteError("encode "+string(key), err)
	}
	return s.writeErr("set "+string(key), s.backend.SetMulti(ctx, map[Key]string{key: string(data)}))
}

func (s *Store) writeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	s.metrics.ObserveStorageError(s.backend.Name(), "write")
	s.logger.Warn("token store write failed", "op", op, "reason", err.Error())
	return asStorageErr(err, func() *errors.DevquoteError {
		return errors.NewStorageWriteError(op, err)
	})
}

// asStorageErr keeps errors that already carry a STORE code, such as
// crypto failures, and wraps everything else.
func asStorageErr(err error, wrap func() *errors.DevquoteError) error {
	var dq *errors.DevquoteError
	if stderrors.As(err, &dq) && strings.HasPrefix(string(dq.Code), "STORE-") {
		return err
	}
	return wrap()
}
