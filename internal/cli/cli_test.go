package cli

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specialistvlad/cyoaflow/internal/app"
)

func TestParse(t *testing.T) {
	testCases := []struct {
		name       string
		args       []string
		expected   *app.Config
		shouldExit bool
		exitErr    string
	}{
		{
			name: "play with defaults",
			args: []string{"play", "story.json"},
			expected: &app.Config{
				Command: "play", DocumentPath: "story.json", Entry: "Entry",
				Addr: ":8080", LogFormat: "text", LogLevel: "info",
			},
		},
		{
			name: "export with options",
			args: []string{"export", "-entry", "Start", "-title", "Caves", "-log-format", "JSON", "story.hcl"},
			expected: &app.Config{
				Command: "export", DocumentPath: "story.hcl", OutputPath: "story.go", Entry: "Start",
				Title: "Caves", Addr: ":8080", LogFormat: "json", LogLevel: "info",
			},
		},
		{
			name: "convert with output",
			args: []string{"convert", "-o", "story.yaml", "story.json"},
			expected: &app.Config{
				Command: "convert", DocumentPath: "story.json", OutputPath: "story.yaml", Entry: "Entry",
				Addr: ":8080", LogFormat: "text", LogLevel: "info",
			},
		},
		{name: "no arguments prints usage", args: nil, shouldExit: true},
		{name: "help flag", args: []string{"-h"}, shouldExit: true},
		{name: "command help flag", args: []string{"play", "-h"}, shouldExit: true},
		{name: "unknown command", args: []string{"fly", "story.json"}, exitErr: `unknown command "fly"`},
		{name: "missing document", args: []string{"play"}, exitErr: "missing DOCUMENT"},
		{name: "extra arguments", args: []string{"play", "a.json", "b.json"}, exitErr: "unexpected arguments after DOCUMENT: b.json"},
		{name: "unknown flag", args: []string{"play", "--nope", "a.json"}, exitErr: "flag provided but not defined: -nope"},
		{name: "invalid log level", args: []string{"play", "-log-level", "loud", "a.json"}, exitErr: "LogLevel must be one of"},
		{name: "convert without output", args: []string{"convert", "a.json"}, exitErr: "OutputPath is required"},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			out := &bytes.Buffer{}

			cfg, shouldExit, err := Parse(tc.args, out)

			if tc.exitErr != "" {
				var exitErr *ExitError
				require.True(t, errors.As(err, &exitErr), "expected an ExitError, got %v", err)
				assert.Equal(t, 2, exitErr.Code)
				assert.Contains(t, exitErr.Message, tc.exitErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.shouldExit, shouldExit)
			if tc.shouldExit {
				assert.Contains(t, out.String(), "Usage:")
				return
			}
			assert.Equal(t, tc.expected, cfg)
		})
	}
}

func TestParse_EnvironmentDefaults(t *testing.T) {
	t.Setenv("CYOAFLOW_ENTRY", "Prologue")
	t.Setenv("CYOAFLOW_ADDR", "127.0.0.1:9000")
	t.Setenv("CYOAFLOW_LOG_LEVEL", "debug")

	cfg, _, err := Parse([]string{"serve", "story.json"}, &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, "Prologue", cfg.Entry)
	assert.Equal(t, "127.0.0.1:9000", cfg.Addr)
	assert.Equal(t, "debug", cfg.LogLevel)

	cfg, _, err = Parse([]string{"serve", "-entry", "Entry", "story.json"}, &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, "Entry", cfg.Entry, "flags override the environment")
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 0, ExitCode(nil))
	assert.Equal(t, 2, ExitCode(&ExitError{Code: 2, Message: "usage"}))
	assert.Equal(t, 1, ExitCode(errors.New("boom")))
}
