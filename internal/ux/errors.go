package ux

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"slices"
	"strings"

	"github.com/felixgeelhaar/devquote/internal/api"
	"github.com/felixgeelhaar/devquote/internal/errors"
)

// ErrorWithSuggestion wraps an error with helpful recovery suggestions
type ErrorWithSuggestion struct {
	Err         error
	Details     []string
	Suggestions []string
}

// Error implements the error interface
func (e *ErrorWithSuggestion) Error() string {
	var b strings.Builder
	b.WriteString(e.Err.Error())
	for _, d := range e.Details {
		b.WriteString("\n  ")
		b.WriteString(d)
	}
	if len(e.Suggestions) > 0 {
		b.WriteString("\n\nSuggestions:")
		for _, s := range e.Suggestions {
			b.WriteString("\n  • ")
			b.WriteString(s)
		}
	}
	return b.String()
}

// Unwrap provides access to the underlying error
func (e *ErrorWithSuggestion) Unwrap() error {
	return e.Err
}

// NewErrorWithSuggestion creates a new error with suggestions
func NewErrorWithSuggestion(err error, suggestions ...string) error {
	if err == nil {
		return nil
	}
	var kept []string
	for _, s := range suggestions {
		if s != "" {
			kept = append(kept, s)
		}
	}
	return &ErrorWithSuggestion{
		Err:         err,
		Suggestions: kept,
	}
}

// EnhanceError adds field details and recovery suggestions to API
// failures. A DevquoteError already prints its own suggestions and is
// returned unchanged.
func EnhanceError(err error) error {
	if err == nil {
		return nil
	}

	apiErr := outermostAPIError(err)
	if apiErr == nil {
		return err
	}

	enhanced := &ErrorWithSuggestion{Err: err, Details: fieldDetails(apiErr.FieldErrors)}
	var dqErr *errors.DevquoteError
	if stderrors.As(apiErr.Cause, &dqErr) {
		enhanced.Suggestions = append(enhanced.Suggestions, dqErr.Suggestions...)
	}

	switch apiErr.Status {
	case http.StatusUnauthorized:
		if len(enhanced.Suggestions) == 0 {
			enhanced.Suggestions = append(enhanced.Suggestions, "Run 'devquote auth login' to sign in again")
		}
	case http.StatusForbidden:
		enhanced.Suggestions = append(enhanced.Suggestions, "Your profiles do not grant this operation; check 'devquote profile show'")
	case http.StatusNotFound:
		enhanced.Suggestions = append(enhanced.Suggestions, "Check the id or path; list resources with 'devquote projects list' or 'devquote tasks list'")
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		if len(enhanced.Details) > 0 {
			enhanced.Suggestions = append(enhanced.Suggestions, "Fix the fields listed above and try again")
		}
	}
	if apiErr.Status >= 500 {
		enhanced.Suggestions = append(enhanced.Suggestions, "The backend failed; try again in a moment")
	}

	if len(enhanced.Details) == 0 && len(enhanced.Suggestions) == 0 {
		return err
	}
	return enhanced
}

// outermostAPIError returns the APIError in err's chain unless a
// DevquoteError wraps it first.
func outermostAPIError(err error) *api.APIError {
	for err != nil {
		switch e := err.(type) {
		case *api.APIError:
			return e
		case *errors.DevquoteError:
			return nil
		}
		err = stderrors.Unwrap(err)
	}
	return nil
}

func fieldDetails(fields map[string][]string) []string {
	if len(fields) == 0 {
		return nil
	}
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	slices.Sort(names)

	details := make([]string, 0, len(names))
	for _, name := range names {
		details = append(details, fmt.Sprintf("%s: %s", name, strings.Join(fields[name], ", ")))
	}
	return details
}

// FormatError provides consistent error formatting with context
func FormatError(err error, context string) error {
	if err == nil {
		return nil
	}

	enhanced := EnhanceError(err)
	if context != "" {
		return fmt.Errorf("%s: %w", context, enhanced)
	}
	return enhanced
}
