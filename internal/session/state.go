package session

import (
	"slices"

	"github.com/felixgeelhaar/devquote/internal/domain"
)

// State is a snapshot of the session. IsAuthenticated is derived from User
// and Tokens and cannot be set on its own.
type State struct {
	User            *domain.User
	Tokens          *domain.TokenPair
	IsAuthenticated bool
	IsLoading       bool
	Error           string
}

// authenticated is the only definition of a signed-in session.
func authenticated(user *domain.User, tokens *domain.TokenPair) bool {
	return user != nil && tokens.HasAccess()
}

// snapshot returns a copy of s that shares nothing mutable with it.
func (s State) snapshot() State {
	out := State{
		IsAuthenticated: authenticated(s.User, s.Tokens),
		IsLoading:       s.IsLoading,
		Error:           s.Error,
	}
	if s.User != nil {
		u := *s.User
		u.Profiles = slices.Clone(s.User.Profiles)
		out.User = &u
	}
	if s.Tokens != nil {
		t := *s.Tokens
		out.Tokens = &t
	}
	return out
}

// Listener is called with a fresh snapshot after every state change.
type Listener func(State)
