package exitcode

import (
	"context"
	stderrors "errors"
	"os"
	"strings"

	"github.com/felixgeelhaar/devquote/internal/api"
	"github.com/felixgeelhaar/devquote/internal/errors"
)

// Exit codes for consistent error handling across the CLI
const (
	// Success indicates successful execution
	Success = 0

	// GeneralError indicates a general error condition
	GeneralError = 1

	// UsageError indicates invalid command usage or rejected input
	UsageError = 2

	// ConfigError indicates an invalid configuration
	ConfigError = 3

	// RequestError indicates the backend rejected the request
	RequestError = 4

	// AuthError indicates a missing, rejected or expired session
	AuthError = 5

	// NetworkError indicates the backend could not be reached in time
	NetworkError = 6

	// StorageError indicates the token store failed
	StorageError = 7

	// Interrupted indicates the command was cancelled by a signal
	Interrupted = 130
)

// Exit terminates the program with the given exit code
func Exit(code int) {
	os.Exit(code)
}

// ExitWithError exits with an appropriate code based on error type
func ExitWithError(err error) {
	if err == nil {
		Exit(Success)
		return
	}

	code := DetermineExitCode(err)
	Exit(code)
}

// DetermineExitCode maps an error to an exit code. Coded errors decide
// first, then API statuses, then cobra's usage messages.
func DetermineExitCode(err error) int {
	if err == nil {
		return Success
	}

	switch code := string(errors.CodeOf(err)); {
	case strings.HasPrefix(code, "AUTH-"):
		return AuthError
	case strings.HasPrefix(code, "NET-"):
		return NetworkError
	case strings.HasPrefix(code, "STORE-"):
		return StorageError
	case strings.HasPrefix(code, "CONFIG-"):
		return ConfigError
	case strings.HasPrefix(code, "VALID-"):
		return UsageError
	}

	if stderrors.Is(err, context.Canceled) {
		return Interrupted
	}

	if apiErr, ok := api.AsAPIError(err); ok {
		switch {
		case apiErr.Status == 401 || apiErr.Status == 403:
			return AuthError
		case apiErr.Status == 0:
			return NetworkError
		default:
			return RequestError
		}
	}

	// Usage errors
	errMsg := strings.ToLower(err.Error())
	for _, marker := range []string{"unknown command", "unknown flag", "unknown shorthand flag", "required flag", "invalid argument", "accepts "} {
		if strings.Contains(errMsg, marker) {
			return UsageError
		}
	}

	// Default to general error
	return GeneralError
}

// GetExitCodeDescription returns a human-readable description of an exit code
func GetExitCodeDescription(code int) string {
	switch code {
	case Success:
		return "Success"
	case GeneralError:
		return "General error"
	case UsageError:
		return "Usage error (invalid flags, arguments or input)"
	case ConfigError:
		return "Configuration error"
	case RequestError:
		return "Request rejected by the backend"
	case AuthError:
		return "Authentication error"
	case NetworkError:
		return "Network error"
	case StorageError:
		return "Token store error"
	case Interrupted:
		return "Interrupted"
	default:
		return "Unknown error"
	}
}
