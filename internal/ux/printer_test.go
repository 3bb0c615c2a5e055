package ux

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/devquote/internal/errors"
)

type projectRow struct {
	Name   string `json:"name" yaml:"name"`
	Budget int    `json:"budget" yaml:"budget"`
}

type statusLine string

func (s statusLine) Text() string { return "status: " + string(s) + "\n" }

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"", FormatText, false},
		{"text", FormatText, false},
		{" JSON ", FormatJSON, false},
		{"yaml", FormatYAML, false},
		{"xml", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidInput))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPrintJSON(t *testing.T) {
	var buf bytes.Buffer
	p, err := NewPrinter("json", &buf)
	require.NoError(t, err)

	require.NoError(t, p.Print(projectRow{Name: "Portal", Budget: 1200}))
	assert.Equal(t, "{\n  \"name\": \"Portal\",\n  \"budget\": 1200\n}\n", buf.String())

	buf.Reset()
	require.NoError(t, p.Compact().Print(projectRow{Name: "Portal", Budget: 1200}))
	assert.Equal(t, "{\"name\":\"Portal\",\"budget\":1200}\n", buf.String())
	assert.Equal(t, FormatJSON, p.Format())
}

func TestPrintYAML(t *testing.T) {
	var buf bytes.Buffer
	p, err := NewPrinter("yaml", &buf)
	require.NoError(t, err)

	require.NoError(t, p.Print(projectRow{Name: "Portal", Budget: 1200}))
	assert.Equal(t, "name: Portal\nbudget: 1200\n", buf.String())
}

func TestPrintText(t *testing.T) {
	tests := []struct {
		name string
		data any
		want string
	}{
		{"string", "hello world", "hello world\n"},
		{"texter", statusLine("signed in"), "status: signed in\n"},
		{"nil writes nothing", nil, ""},
		{"struct falls back to json", projectRow{Name: "Portal", Budget: 1}, "{\n  \"name\": \"Portal\",\n  \"budget\": 1\n}\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			p, err := NewPrinter("", &buf)
			require.NoError(t, err)

			require.NoError(t, p.Print(tt.data))
			assert.Equal(t, tt.want, buf.String())
		})
	}
}
