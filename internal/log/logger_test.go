package log

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/felixgeelhaar/devquote/internal/errors"
)

func newBufferLogger(buf *bytes.Buffer, level Level, format Format) *Logger {
	return New(Config{
		Level:       level,
		Format:      format,
		Output:      NewOutput(buf),
		ServiceName: "devquote",
	})
}

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to decode log line %q: %v", buf.String(), err)
	}
	return entry
}

func TestLogLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := newBufferLogger(&buf, LevelWarn, FormatJSON)

	logger.Debug("debug message")
	logger.Info("info message")
	if buf.Len() != 0 {
		t.Errorf("expected no output below WARN, got %q", buf.String())
	}

	logger.Warn("warn message")
	if !strings.Contains(buf.String(), "warn message") {
		t.Errorf("expected warn message in output, got %q", buf.String())
	}
}

func TestJSONFormatOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := newBufferLogger(&buf, LevelInfo, FormatJSON)

	logger.Info("session restored", "user", "alice")

	entry := decodeLine(t, &buf)
	if entry["msg"] != "session restored" {
		t.Errorf("msg = %v", entry["msg"])
	}
	if entry["user"] != "alice" {
		t.Errorf("user = %v", entry["user"])
	}
	if entry["service"] != "devquote" {
		t.Errorf("service = %v", entry["service"])
	}
}

func TestTextFormatOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := newBufferLogger(&buf, LevelInfo, FormatText)

	logger.Info("text message", "key", "value")

	out := buf.String()
	if !strings.Contains(out, "msg=\"text message\"") || !strings.Contains(out, "key=value") {
		t.Errorf("unexpected text output: %q", out)
	}
}

func TestRedaction(t *testing.T) {
	tests := []struct {
		key string
	}{
		{"password"},
		{"access_token"},
		{"refresh_token"},
		{"Authorization"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			var buf bytes.Buffer
			logger := newBufferLogger(&buf, LevelDebug, FormatJSON)

			logger.Debug("outgoing", tt.key, "super-secret")

			if strings.Contains(buf.String(), "super-secret") {
				t.Fatalf("secret leaked: %q", buf.String())
			}
			entry := decodeLine(t, &buf)
			if entry[tt.key] != RedactedValue {
				t.Errorf("%s = %v, want %s", tt.key, entry[tt.key], RedactedValue)
			}
		})
	}
}

func TestRedactionInsideGroup(t *testing.T) {
	var buf bytes.Buffer
	logger := newBufferLogger(&buf, LevelDebug, FormatJSON).WithGroup("request")

	logger.Debug("outgoing", "authorization", "Bearer A1", "path", "/auth/profile")

	if strings.Contains(buf.String(), "Bearer A1") {
		t.Fatalf("secret leaked: %q", buf.String())
	}
	if !strings.Contains(buf.String(), "/auth/profile") {
		t.Errorf("non-secret attribute missing: %q", buf.String())
	}
}

func TestCustomRedactKeys(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{
		Level:      LevelInfo,
		Format:     FormatJSON,
		Output:     NewOutput(&buf),
		RedactKeys: []string{"email"},
	})

	logger.Info("profile", "email", "alice@example.com", "password", "kept")

	entry := decodeLine(t, &buf)
	if entry["email"] != RedactedValue {
		t.Errorf("email = %v", entry["email"])
	}
	if entry["password"] != "kept" {
		t.Errorf("password = %v, custom keys should replace the defaults", entry["password"])
	}
}

func TestWith(t *testing.T) {
	var buf bytes.Buffer
	logger := newBufferLogger(&buf, LevelInfo, FormatJSON).With("component", "session")

	logger.Info("hello")

	entry := decodeLine(t, &buf)
	if entry["component"] != "session" {
		t.Errorf("component = %v", entry["component"])
	}
}

func TestWithError(t *testing.T) {
	t.Run("devquote error in chain", func(t *testing.T) {
		var buf bytes.Buffer
		logger := newBufferLogger(&buf, LevelInfo, FormatJSON)

		err := fmt.Errorf("login: %w", errors.NewRefreshFailedError(fmt.Errorf("400")))
		logger.WithError(err).Info("failed")

		entry := decodeLine(t, &buf)
		if entry["error_code"] != string(errors.ErrCodeRefreshFailed) {
			t.Errorf("error_code = %v", entry["error_code"])
		}
		if entry["cause"] != "400" {
			t.Errorf("cause = %v", entry["cause"])
		}
	})

	t.Run("plain error", func(t *testing.T) {
		var buf bytes.Buffer
		logger := newBufferLogger(&buf, LevelInfo, FormatJSON)

		logger.WithError(fmt.Errorf("boom")).Info("failed")

		entry := decodeLine(t, &buf)
		if entry["error"] != "boom" {
			t.Errorf("error = %v", entry["error"])
		}
	})

	t.Run("nil error", func(t *testing.T) {
		logger := Discard()
		if logger.WithError(nil) != logger {
			t.Error("WithError(nil) should return the same logger")
		}
	})
}

func TestLogError(t *testing.T) {
	var buf bytes.Buffer
	logger := newBufferLogger(&buf, LevelInfo, FormatJSON)

	logger.LogErrorContext(context.Background(), errors.NewConfigInvalidError("api.base_url is required").WithDocs("https://docs.example.com"))

	entry := decodeLine(t, &buf)
	if entry["error_code"] != string(errors.ErrCodeConfigInvalid) {
		t.Errorf("error_code = %v", entry["error_code"])
	}
	if entry["docs_url"] != "https://docs.example.com" {
		t.Errorf("docs_url = %v", entry["docs_url"])
	}

	buf.Reset()
	logger.LogError(nil)
	if buf.Len() != 0 {
		t.Errorf("LogError(nil) wrote %q", buf.String())
	}
}

func TestDiscardAndEnabled(t *testing.T) {
	logger := Discard()
	if logger.Enabled(context.Background(), LevelWarn) {
		t.Error("discard logger should not be enabled below ERROR")
	}
	logger.Error("dropped")

	nilOut := New(Config{Level: LevelInfo})
	nilOut.Info("no writer configured")
}
