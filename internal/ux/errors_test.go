package ux

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/devquote/internal/api"
	"github.com/felixgeelhaar/devquote/internal/errors"
)

func TestNewErrorWithSuggestion(t *testing.T) {
	assert.Nil(t, NewErrorWithSuggestion(nil, "some suggestion"))

	err := NewErrorWithSuggestion(stderrors.New("something failed"), "try this fix", "")
	require.Error(t, err)
	assert.Equal(t, "something failed\n\nSuggestions:\n  • try this fix", err.Error())

	plain := NewErrorWithSuggestion(stderrors.New("something failed"), "")
	assert.Equal(t, "something failed", plain.Error())
}

func TestErrorWithSuggestionUnwrap(t *testing.T) {
	base := errors.NewNotAuthenticatedError("no session")
	err := NewErrorWithSuggestion(base, "log in")

	assert.True(t, errors.HasCode(err, errors.ErrCodeNotAuthenticated))
	assert.ErrorIs(t, err, base)
}

func TestEnhanceError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		want     []string
		wantSame bool
	}{
		{
			name:     "nil",
			err:      nil,
			wantSame: true,
		},
		{
			name:     "plain error",
			err:      stderrors.New("boom"),
			wantSame: true,
		},
		{
			name:     "devquote error keeps its own suggestions",
			err:      errors.NewRefreshFailedError(&api.APIError{Status: http.StatusBadRequest, Path: "/auth/refresh", Message: "invalid refresh token"}),
			wantSame: true,
		},
		{
			name: "unauthorized",
			err:  &api.APIError{Status: http.StatusUnauthorized, Path: "/tasks", Message: "token expired", Cause: errors.New(errors.ErrCodeUnauthorized, "token expired")},
			want: []string{"devquote auth login"},
		},
		{
			name: "forbidden",
			err:  &api.APIError{Status: http.StatusForbidden, Path: "/projects/1", Message: "forbidden"},
			want: []string{"devquote profile show"},
		},
		{
			name: "not found wrapped",
			err:  fmt.Errorf("show task: %w", &api.APIError{Status: http.StatusNotFound, Path: "/tasks/9", Message: "not found"}),
			want: []string{"show task: /tasks/9: not found (status 404)", "devquote tasks list"},
		},
		{
			name: "field errors are listed in order",
			err: &api.APIError{Status: http.StatusBadRequest, Path: "/auth/profile", Message: "validation failed", FieldErrors: map[string][]string{
				"name":  {"is required"},
				"email": {"is invalid", "is taken"},
			}},
			want: []string{"\n  email: is invalid, is taken\n  name: is required", "Fix the fields"},
		},
		{
			name: "server error",
			err:  &api.APIError{Status: http.StatusBadGateway, Path: "/tasks", Message: api.MsgServerError},
			want: []string{"try again in a moment"},
		},
		{
			name: "network failure carries transport suggestions",
			err:  &api.APIError{Path: "/tasks", Message: api.MsgNetworkError, Cause: errors.NewNetworkError(context.DeadlineExceeded)},
			want: []string{"api.base_url"},
		},
		{
			name:     "bad request without fields",
			err:      &api.APIError{Status: http.StatusBadRequest, Path: "/tasks", Message: "bad"},
			wantSame: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EnhanceError(tt.err)
			if tt.wantSame {
				assert.Equal(t, tt.err, got)
				return
			}
			require.Error(t, got)
			assert.ErrorIs(t, got, tt.err)
			for _, want := range tt.want {
				assert.Contains(t, got.Error(), want)
			}
		})
	}
}

func TestFormatError(t *testing.T) {
	assert.Nil(t, FormatError(nil, "ctx"))

	err := FormatError(&api.APIError{Status: http.StatusForbidden, Path: "/tasks", Message: "forbidden"}, "list tasks")
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "list tasks: /tasks: forbidden"))
	assert.Equal(t, http.StatusForbidden, api.StatusOf(err))
}
