package log

import (
	"bytes"
	"os"
	"strings"
	"testing"
)

func TestParseFormat(t *testing.T) {
	tests := []struct {
		input string
		want  Format
	}{
		{"json", FormatJSON},
		{"JSON", FormatJSON},
		{"text", FormatText},
		{" Text ", FormatText},
		{"console", FormatJSON},
		{"", FormatJSON},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ParseFormat(tt.input); got != tt.want {
				t.Errorf("ParseFormat(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Level != LevelWarn || cfg.Format != FormatText {
		t.Errorf("level/format = %v/%v, want warn/text", cfg.Level, cfg.Format)
	}
	if cfg.Output.Writer() != os.Stderr {
		t.Error("stdout is reserved for command output")
	}
	if cfg.RedactKeys != nil {
		t.Error("nil RedactKeys selects the defaults")
	}
}

func TestServiceAttributes(t *testing.T) {
	var buf bytes.Buffer
	cfg := DefaultConfig()
	cfg.Format = FormatJSON
	cfg.Output = NewOutput(&buf)
	cfg.ServiceVersion = "1.2.0"

	New(cfg).Warn("hello")
	if !strings.Contains(buf.String(), `"service":"devquote"`) || !strings.Contains(buf.String(), `"version":"1.2.0"`) {
		t.Errorf("missing service attributes: %s", buf.String())
	}

	buf.Reset()
	cfg.ServiceVersion = ""
	New(cfg).Warn("hello")
	if strings.Contains(buf.String(), `"version"`) {
		t.Errorf("empty version should be omitted: %s", buf.String())
	}
}
