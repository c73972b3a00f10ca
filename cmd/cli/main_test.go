package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vk/yamlstack/internal/cli"
)

const sampleProgram = `
config:
  greeting:
    type: string
    default: world
resources:
  bucket:
    type: aws:s3:Bucket
    properties:
      bucketPrefix: hello-${greeting}
outputs:
  prefix: ${bucket.bucketPrefix}
`

func writeProgram(t *testing.T, src string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "program.yaml")
	require.NoError(t, os.WriteFile(path, []byte(src), 0o600))
	return path
}

func TestRun_Evaluate(t *testing.T) {
	t.Parallel()

	path := writeProgram(t, sampleProgram)
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}

	err := run(out, errOut, []string{path})
	require.NoError(t, err, "stderr: %s", errOut.String())

	require.Contains(t, out.String(), "register bucket (aws:s3:Bucket)")
	require.Contains(t, out.String(), `output prefix = "hello-world"`)
}

func TestRun_Convert(t *testing.T) {
	t.Parallel()

	path := writeProgram(t, sampleProgram)
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}

	err := run(out, errOut, []string{"-mode", "convert", path})
	require.NoError(t, err, "stderr: %s", errOut.String())

	require.Contains(t, out.String(), "resource bucket \"aws:s3:Bucket\" {")
	require.Contains(t, out.String(), "output prefix {")
}

func TestRun_EvaluationFailure(t *testing.T) {
	t.Parallel()

	path := writeProgram(t, "outputs:\n  broken: ${missing}\n")
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}

	err := run(out, errOut, []string{path})
	require.Error(t, err)

	exitErr, ok := err.(*cli.ExitError)
	require.True(t, ok, "expected an ExitError, got %T", err)
	require.Equal(t, 1, exitErr.Code)
	require.Contains(t, errOut.String(), "unknown symbol")
}

func TestRun_ShouldExit(t *testing.T) {
	t.Parallel()

	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}

	err := run(out, errOut, []string{"-h"})
	require.NoError(t, err, "run() should return a nil error when shouldExit is true")
	require.Contains(t, errOut.String(), "Usage:", "expected help text on the error stream")
}

func TestRun_ParseError(t *testing.T) {
	t.Parallel()

	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}

	err := run(out, errOut, []string{"--this-is-not-a-valid-flag"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "flag provided but not defined")
}
