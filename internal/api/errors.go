package api

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/felixgeelhaar/devquote/internal/errors"
)

// Fallback messages when the backend gives none.
const (
	MsgServerError  = "internal server error"
	MsgRequestError = "request failed"
	MsgNetworkError = "network error"
	MsgTimeout      = "timeout"
	MsgCanceled     = "request canceled"
)

const maxPlainMessage = 512

// APIError is the normalized form of every failed call. Status is 0 when no
// response was received.
type APIError struct {
	Message     string              `json:"message"`
	Status      int                 `json:"status"`
	Timestamp   string              `json:"timestamp"`
	Path        string              `json:"path"`
	FieldErrors map[string][]string `json:"errors,omitempty"`

	// Cause is a DevquoteError for 401s and transport failures.
	Cause error `json:"-"`
}

func (e *APIError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("%s: %s", e.Path, e.Message)
	}
	return fmt.Sprintf("%s: %s (status %d)", e.Path, e.Message, e.Status)
}

func (e *APIError) Unwrap() error {
	return e.Cause
}

// AsAPIError extracts the *APIError from err's chain.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if stderrors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	if apiErr, ok := AsAPIError(err); ok {
		return apiErr.Status
	}
	return 0
}

// IsUnauthorized reports whether err is a 401 reply.
func IsUnauthorized(err error) bool {
	return StatusOf(err) == http.StatusUnauthorized
}

type errorBody struct {
	Message   string                     `json:"message"`
	Error     string                     `json:"error"`
	Errors    map[string]json.RawMessage `json:"errors"`
	Timestamp string                     `json:"timestamp"`
	Path      string                     `json:"path"`
}

// parseAPIError builds an APIError from a non-2xx reply. The message comes
// from a string body, then "message", then "error", then a status class
// default.
func parseAPIError(status int, path string, data []byte) *APIError {
	apiErr := &APIError{
		Status:    status,
		Path:      path,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	trimmed := bytes.TrimSpace(data)
	var asString string
	var body errorBody
	switch {
	case len(trimmed) == 0:
	case json.Unmarshal(trimmed, &asString) == nil:
		apiErr.Message = asString
	case json.Unmarshal(trimmed, &body) == nil:
		switch {
		case body.Message != "":
			apiErr.Message = body.Message
		case body.Error != "":
			apiErr.Message = body.Error
		}
		if body.Timestamp != "" {
			apiErr.Timestamp = body.Timestamp
		}
		if body.Path != "" {
			apiErr.Path = body.Path
		}
		apiErr.FieldErrors = fieldErrors(body.Errors)
	case trimmed[0] != '{' && trimmed[0] != '[':
		apiErr.Message = truncate(string(trimmed), maxPlainMessage)
	}

	if apiErr.Message == "" {
		apiErr.Message = fallbackMessage(status)
	}
	if status == http.StatusUnauthorized {
		apiErr.Cause = errors.New(errors.ErrCodeUnauthorized, apiErr.Message)
	}
	return apiErr
}

// fieldErrors accepts both {"field": ["a", "b"]} and {"field": "a"}.
func fieldErrors(raw map[string]json.RawMessage) map[string][]string {
	if len(raw) == 0 {
		return nil
	}
	out := make(map[string][]string, len(raw))
	for field, msg := range raw {
		var many []string
		if err := json.Unmarshal(msg, &many); err == nil {
			out[field] = many
			continue
		}
		var one string
		if err := json.Unmarshal(msg, &one); err == nil {
			out[field] = []string{one}
		}
	}
	return out
}

func fallbackMessage(status int) string {
	if status >= 500 {
		return MsgServerError
	}
	return MsgRequestError
}

// transportError maps a failure without a response. Deadlines become
// "timeout", caller cancellation stays distinguishable, the rest is
// "network error".
func transportError(ctx context.Context, path string, err error) *APIError {
	apiErr := &APIError{
		Path:      path,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	var netErr net.Error
	switch {
	case stderrors.Is(ctx.Err(), context.Canceled):
		apiErr.Message = MsgCanceled
		apiErr.Cause = ctx.Err()
	case stderrors.Is(err, context.DeadlineExceeded), stderrors.As(err, &netErr) && netErr.Timeout():
		apiErr.Message = MsgTimeout
		apiErr.Cause = errors.NewTimeoutError(err)
	default:
		apiErr.Message = MsgNetworkError
		apiErr.Cause = errors.NewNetworkError(err)
	}
	return apiErr
}

// truncate cuts s to at most n bytes on a rune boundary.
func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "…"
}
