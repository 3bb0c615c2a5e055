package api

import (
	"context"
	"net/http"
	"time"

	"github.com/felixgeelhaar/devquote/internal/domain"
)

// Auth endpoint paths.
const (
	PathLogin          = "/auth/login"
	PathRefresh        = "/auth/refresh"
	PathLogout         = "/auth/logout"
	PathValidate       = "/auth/validate"
	PathProfile        = "/auth/profile"
	PathChangePassword = "/auth/change-password"
)

// LoginResponse is the reply of POST /auth/login.
type LoginResponse struct {
	domain.TokenPair
	User *domain.User `json:"user"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
	ConfirmPassword string `json:"confirmPassword"`
}

// AuthService wraps the /auth endpoints.
//
// Login, refresh, logout and validate go through raw, the bare transport,
// so a 401 there never starts a refresh. Profile calls go through authed.
type AuthService struct {
	raw    Doer
	authed Doer
	now    func() time.Time
}

// NewAuthService creates the auth endpoint wrapper.
func NewAuthService(raw, authed Doer) *AuthService {
	return &AuthService{raw: raw, authed: authed, now: time.Now}
}

// Login exchanges credentials for a token pair and the user.
func (s *AuthService) Login(ctx context.Context, creds domain.Credentials) (*LoginResponse, error) {
	var out LoginResponse
	err := doJSON(ctx, s.raw, &Request{
		Method:   http.MethodPost,
		Path:     PathLogin,
		Body:     creds,
		SkipAuth: true,
	}, &out)
	if err != nil {
		return nil, err
	}
	if out.AccessToken == "" {
		return nil, malformed(PathLogin, "access_token")
	}
	out.IssuedAt = s.now()
	return &out, nil
}

// Refresh trades a refresh token for a new pair. The returned pair may
// omit the refresh token.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*domain.TokenPair, error) {
	var out domain.TokenPair
	err := doJSON(ctx, s.raw, &Request{
		Method:   http.MethodPost,
		Path:     PathRefresh,
		Body:     refreshRequest{RefreshToken: refreshToken},
		SkipAuth: true,
	}, &out)
	if err != nil {
		return nil, err
	}
	if out.AccessToken == "" {
		return nil, malformed(PathRefresh, "access_token")
	}
	out.IssuedAt = s.now()
	return &out, nil
}

// Logout tells the backend to end the session.
func (s *AuthService) Logout(ctx context.Context) error {
	_, err := s.raw.Do(ctx, &Request{Method: http.MethodPost, Path: PathLogout})
	return err
}

// Validate checks the stored access token. Any error means invalid.
func (s *AuthService) Validate(ctx context.Context) error {
	_, err := s.raw.Do(ctx, &Request{Method: http.MethodGet, Path: PathValidate})
	return err
}

// ValidateToken checks a specific access token instead of the stored one.
func (s *AuthService) ValidateToken(ctx context.Context, token string) error {
	_, err := s.raw.Do(ctx, &Request{Method: http.MethodGet, Path: PathValidate, BearerOverride: token})
	return err
}

// Profile fetches the signed-in user.
func (s *AuthService) Profile(ctx context.Context) (*domain.User, error) {
	var user domain.User
	if err := doJSON(ctx, s.authed, &Request{Method: http.MethodGet, Path: PathProfile}, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateProfile saves the editable profile fields and returns the new user.
func (s *AuthService) UpdateProfile(ctx context.Context, update domain.ProfileUpdate) (*domain.User, error) {
	var user domain.User
	if err := doJSON(ctx, s.authed, &Request{Method: http.MethodPut, Path: PathProfile, Body: update}, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// ChangePassword changes the password of the signed-in user.
func (s *AuthService) ChangePassword(ctx context.Context, change domain.PasswordChange) error {
	_, err := s.authed.Do(ctx, &Request{
		Method: http.MethodPost,
		Path:   PathChangePassword,
		Body: changePasswordRequest{
			CurrentPassword: change.CurrentPassword,
			NewPassword:     change.NewPassword,
			ConfirmPassword: change.NewPassword,
		},
	})
	return err
}

func malformed(path, field string) *APIError {
	return &APIError{
		Message:   "malformed response: missing " + field,
		Status:    http.StatusOK,
		Path:      path,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}
