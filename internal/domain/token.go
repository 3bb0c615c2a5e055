package domain

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenPair is the token-bearing part of login and refresh responses.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	TokenType    string `json:"token_type,omitempty"`
	ExpiresIn    int64  `json:"expires_in,omitempty"`

	// IssuedAt is stamped locally when the pair is received.
	IssuedAt time.Time `json:"-"`
}

// HasAccess reports whether the pair carries a usable access token.
func (t *TokenPair) HasAccess() bool {
	return t != nil && t.AccessToken != ""
}

// ExpiresAt returns when the access token expires. It prefers expires_in
// and falls back to the exp claim of a JWT access token. The claim is read
// without verifying the signature and is only used for display.
func (t TokenPair) ExpiresAt() (time.Time, bool) {
	if t.ExpiresIn > 0 && !t.IssuedAt.IsZero() {
		return t.IssuedAt.Add(time.Duration(t.ExpiresIn) * time.Second), true
	}
	return AccessTokenExpiry(t.AccessToken)
}

// AccessTokenExpiry reads the exp claim of an unverified JWT.
func AccessTokenExpiry(token string) (time.Time, bool) {
	if token == "" {
		return time.Time{}, false
	}
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return time.Time{}, false
	}
	exp, err := parsed.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

// Merge returns the pair that replaces t after a refresh returned next.
// A refresh response without a refresh token keeps the current one.
func (t TokenPair) Merge(next TokenPair) TokenPair {
	if next.RefreshToken == "" {
		next.RefreshToken = t.RefreshToken
	}
	return next
}
