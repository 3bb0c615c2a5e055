package log

import (
	"io"
	"os"
	"strings"
)

// Format is the log encoding.
type Format int

const (
	FormatJSON Format = iota
	FormatText
)

func (f Format) String() string {
	if f == FormatText {
		return "text"
	}
	return "json"
}

// ParseFormat accepts "text" or "json" in any case. Anything else is JSON.
func ParseFormat(s string) Format {
	if strings.EqualFold(strings.TrimSpace(s), "text") {
		return FormatText
	}
	return FormatJSON
}

// Output wraps the log sink.
type Output struct {
	writer io.Writer
}

func (o Output) Writer() io.Writer {
	return o.writer
}

func NewOutput(w io.Writer) Output {
	return Output{writer: w}
}

// Config holds configuration for the logger
type Config struct {
	Level     Level
	Format    Format
	Output    Output
	AddSource bool

	// ServiceName and ServiceVersion are attached to every entry. An empty
	// version is omitted.
	ServiceName    string
	ServiceVersion string

	// RedactKeys lists attribute keys whose values are replaced before
	// writing. Nil means DefaultRedactKeys.
	RedactKeys []string
}

// DefaultRedactKeys are the attribute keys that never reach a log sink.
var DefaultRedactKeys = []string{"password", "current_password", "new_password", "access_token", "refresh_token", "authorization", "token"}

// DefaultConfig logs warnings and errors as text to stderr; stdout is
// reserved for command output.
func DefaultConfig() Config {
	return Config{
		Level:       LevelWarn,
		Format:      FormatText,
		Output:      NewOutput(os.Stderr),
		ServiceName: "devquote",
	}
}
