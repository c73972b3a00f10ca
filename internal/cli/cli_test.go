package cli

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/yamlstack/internal/config"
)

func TestParse(t *testing.T) {
	t.Run("positional program path with defaults", func(t *testing.T) {
		var out bytes.Buffer
		opts, exit, err := Parse([]string{"program.yaml"}, &out)
		require.NoError(t, err)
		require.False(t, exit)
		require.NotNil(t, opts)

		assert.Equal(t, "program.yaml", opts.ProgramPath)
		assert.Equal(t, "eval", opts.Mode)
		assert.Equal(t, "text", opts.Settings.LogFormat)
		assert.Equal(t, "info", opts.Settings.LogLevel)
		assert.Equal(t, config.Default().Workers, opts.Settings.Config.Workers)
		assert.True(t, opts.Settings.Config.DryRun)
		assert.False(t, opts.Settings.Config.Strict)
	})

	t.Run("program flag wins over the positional argument", func(t *testing.T) {
		var out bytes.Buffer
		opts, _, err := Parse([]string{"-program", "a.yaml", "b.yaml"}, &out)
		require.NoError(t, err)
		assert.Equal(t, "a.yaml", opts.ProgramPath)
	})

	t.Run("flags override config defaults", func(t *testing.T) {
		var out bytes.Buffer
		opts, _, err := Parse([]string{
			"-mode", "convert",
			"-log-format", "json",
			"-log-level", "debug",
			"-workers", "3",
			"-strict",
			"-apply",
			"-project", "shop",
			"-stack", "prod",
			"-organization", "acme",
			"-max-expr-depth", "16",
			"program.yaml",
		}, &out)
		require.NoError(t, err)

		assert.Equal(t, "convert", opts.Mode)
		assert.Equal(t, "json", opts.Settings.LogFormat)
		assert.Equal(t, "debug", opts.Settings.LogLevel)
		assert.Equal(t, 3, opts.Settings.Config.Workers)
		assert.True(t, opts.Settings.Config.Strict)
		assert.False(t, opts.Settings.Config.DryRun, "apply disables the dry run")
		assert.Equal(t, "shop", opts.Settings.Config.Project)
		assert.Equal(t, "prod", opts.Settings.Config.Stack)
		assert.Equal(t, "acme", opts.Settings.Config.Organization)
		assert.Equal(t, 16, opts.Settings.Config.MaxExprDepth)
	})

	t.Run("mode is case insensitive", func(t *testing.T) {
		var out bytes.Buffer
		opts, _, err := Parse([]string{"-mode", "Convert", "program.yaml"}, &out)
		require.NoError(t, err)
		assert.Equal(t, "convert", opts.Mode)
	})

	t.Run("missing program path prints usage and exits cleanly", func(t *testing.T) {
		var out bytes.Buffer
		opts, exit, err := Parse(nil, &out)
		require.NoError(t, err)
		assert.True(t, exit)
		assert.Nil(t, opts)
		assert.Contains(t, out.String(), "Usage:")
	})

	t.Run("help flag exits cleanly", func(t *testing.T) {
		var out bytes.Buffer
		opts, exit, err := Parse([]string{"-h"}, &out)
		require.NoError(t, err)
		assert.True(t, exit)
		assert.Nil(t, opts)
	})

	t.Run("invalid values are exit code 2", func(t *testing.T) {
		cases := []struct {
			args    []string
			message string
		}{
			{[]string{"-mode", "bogus", "p.yaml"}, "invalid mode"},
			{[]string{"-log-format", "xml", "p.yaml"}, "invalid log-format"},
			{[]string{"-log-level", "loud", "p.yaml"}, "invalid log-level"},
			{[]string{"-workers", "0", "p.yaml"}, "invalid workers"},
		}
		for _, tc := range cases {
			var out bytes.Buffer
			opts, exit, err := Parse(tc.args, &out)
			require.Error(t, err, "args %v", tc.args)
			assert.Nil(t, opts)
			assert.False(t, exit)

			var exitErr *ExitError
			require.ErrorAs(t, err, &exitErr)
			assert.Equal(t, 2, exitErr.Code)
			assert.Contains(t, exitErr.Message, tc.message)
		}
	})

	t.Run("unknown flags are exit code 2", func(t *testing.T) {
		var out bytes.Buffer
		_, _, err := Parse([]string{"-bogus", "p.yaml"}, &out)
		var exitErr *ExitError
		require.True(t, errors.As(err, &exitErr))
		assert.Equal(t, 2, exitErr.Code)
	})
}
