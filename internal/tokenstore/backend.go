// Package tokenstore persists the session tokens, the cached user and the
// user preferences behind a pluggable key-value backend.
package tokenstore

import "context"

// Key names one persisted entry.
type Key string

const (
	KeyAccessToken  Key = "access_token"
	KeyRefreshToken Key = "refresh_token"
	KeyUser         Key = "user_data"
	KeyTheme        Key = "theme"
	KeyLanguage     Key = "language"
	KeyOnboarding   Key = "onboarding_completed"
)

// SessionKeys are the entries removed by ClearSession. Preferences survive.
var SessionKeys = []Key{KeyAccessToken, KeyRefreshToken, KeyUser}

// PreferenceKeys are the entries that outlive a session.
var PreferenceKeys = []Key{KeyTheme, KeyLanguage, KeyOnboarding}

// Backend is a durable string key-value store.
//
// Implementations must be safe for concurrent use.
type Backend interface {
	// Name identifies the backend in logs and metrics.
	Name() string

	// Get returns the value for key. A missing key is not an error.
	Get(ctx context.Context, key Key) (string, bool, error)

	// SetMulti writes every entry or none of them.
	SetMulti(ctx context.Context, values map[Key]string) error

	// Delete removes keys. Missing keys are ignored.
	Delete(ctx context.Context, keys ...Key) error

	// Close releases the backend's resources.
	Close() error
}
