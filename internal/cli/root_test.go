package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shinji-kodama/ink-release/internal/model"
)

// project creates a minimal source tree and returns its root.
func project(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "include", "ink"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "include", "ink", "ink.hpp"), []byte("#pragma once\n"), 0o644))
	return root
}

// execute runs the root command with args and returns the exit code,
// stdout and stderr.
func execute(t *testing.T, args ...string) (model.ExitCode, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetArgs(args)
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	code := Run(context.Background(), cmd)
	return code, stdout.String(), stderr.String()
}

func dirArgs(root string) []string {
	return []string{
		"--source", root,
		"--build", filepath.Join(root, "build", "release"),
		"--output", filepath.Join(root, "releases"),
		"--headers", filepath.Join(root, "include"),
	}
}

func TestRoot_InvalidFormatRejectedBeforeBuild(t *testing.T) {
	root := project(t)
	args := append([]string{"-v", "1.2.3", "-f", "rar"}, dirArgs(root)...)

	code, stdout, stderr := execute(t, args...)

	assert.Equal(t, model.ExitGeneralError, code)
	assert.Empty(t, stdout)
	assert.Contains(t, stderr, "Error: invalid --format value")
	assert.Contains(t, stderr, "zip, tar, gztar, bztar, xztar")
	assert.NoDirExists(t, filepath.Join(root, "build"), "nothing may run before the format is validated")
}

func TestRoot_InvalidLogFormat(t *testing.T) {
	code, _, stderr := execute(t, "--log-format", "xml", "-v", "1.0.0")
	assert.Equal(t, model.ExitGeneralError, code)
	assert.Contains(t, stderr, "invalid --log-format value")
}

func TestRoot_UnknownFlag(t *testing.T) {
	code, _, stderr := execute(t, "--no-such-flag")
	assert.Equal(t, model.ExitGeneralError, code)
	assert.Contains(t, stderr, "Error: unknown flag: --no-such-flag")

	code, _, stderr = execute(t, "--json", "--no-such-flag")
	assert.Equal(t, model.ExitGeneralError, code)
	var obj struct {
		Error map[string]string `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(stderr), &obj))
	assert.Equal(t, map[string]string{"message": "unknown flag: --no-such-flag"}, obj.Error)
}

func TestRoot_ArchWithSlashRejectedBeforeBuild(t *testing.T) {
	root := project(t)
	args := append([]string{"-v", "1.2.3", "--arch", "arm/v7"}, dirArgs(root)...)

	code, stdout, stderr := execute(t, args...)

	assert.Equal(t, model.ExitGeneralError, code)
	assert.Empty(t, stdout)
	assert.Contains(t, stderr, "Error: release failed")
	assert.Contains(t, stderr, `target arch "arm/v7" must not contain path separators`)
	assert.NoDirExists(t, filepath.Join(root, "build"))
	assert.NoDirExists(t, filepath.Join(root, "releases"))
}

func TestRoot_DryRun(t *testing.T) {
	root := project(t)
	args := append([]string{"-v", "1.2.3", "--dry-run", "--clean"}, dirArgs(root)...)

	code, stdout, stderr := execute(t, args...)

	require.Equal(t, model.ExitSuccess, code, stderr)
	assert.Empty(t, stdout, "no summary for a dry run")
	assert.Contains(t, stderr, "Would execute")
	assert.Contains(t, stderr, "Would create archive")
	assert.Contains(t, stderr, "Release successfully created!")
	assert.NoDirExists(t, filepath.Join(root, "build"))
	assert.NoDirExists(t, filepath.Join(root, "releases"))
}

func TestRoot_DryRunJSON(t *testing.T) {
	root := project(t)
	args := append([]string{"-v", "1.2.3", "--dry-run", "--json", "--os", "darwin", "--arch", "arm64", "-f", "zip"}, dirArgs(root)...)

	code, stdout, stderr := execute(t, args...)
	require.Equal(t, model.ExitSuccess, code, stderr)

	var summary summaryJSON
	require.NoError(t, json.Unmarshal([]byte(stdout), &summary))
	assert.Equal(t, "ink-1.2.3_darwin_arm64.zip", summary.Archive)
	assert.Equal(t, filepath.Join(root, "releases"), summary.Location)
	assert.Equal(t, "zip", summary.Format)
	assert.True(t, summary.DryRun)
}

func TestRoot_ConfigFilePrecedence(t *testing.T) {
	root := project(t)
	cfgPath := filepath.Join(root, ".ink-release.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`
os: windows
arch: x86
format: xztar
output: dist
`), 0o644))

	args := []string{
		"--config", cfgPath,
		"-v", "3.1.0",
		"--arch", "arm64",
		"--dry-run", "--json",
		"--source", root,
		"--build", filepath.Join(root, "build"),
		"--headers", filepath.Join(root, "include"),
	}
	code, stdout, stderr := execute(t, args...)
	require.Equal(t, model.ExitSuccess, code, stderr)
	assert.Contains(t, stderr, "Loaded config file")

	var summary summaryJSON
	require.NoError(t, json.Unmarshal([]byte(stdout), &summary))
	assert.Equal(t, "windows", summary.OS, "config overrides the default")
	assert.Equal(t, "arm64", summary.Arch, "flag overrides the config")
	assert.Equal(t, "xztar", summary.Format)
	assert.Equal(t, filepath.Join(root, "dist"), summary.Location, "config paths are relative to the config file")
	assert.Equal(t, "ink-3.1.0_windows_arm64.tar.xz", summary.Archive)
}

func TestRoot_BadConfigFile(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "release.toml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("format = \"rar\"\n"), 0o644))

	code, _, stderr := execute(t, "--config", cfgPath, "-v", "1.0.0", "--dry-run")
	assert.Equal(t, model.ExitGeneralError, code)
	assert.Contains(t, stderr, "failed to load config")
}

func TestRoot_VersionUnresolved(t *testing.T) {
	root := project(t) // not a git repository
	args := append([]string{"--dry-run"}, dirArgs(root)...)

	code, _, stderr := execute(t, args...)
	assert.Equal(t, model.ExitGeneralError, code)
	assert.Contains(t, stderr, "could not determine the release version")
}

func TestRoot_JSONError(t *testing.T) {
	code, _, stderr := execute(t, "--json", "-f", "7z", "-v", "1.0.0")
	require.Equal(t, model.ExitGeneralError, code)

	var obj struct {
		Error struct {
			Message string `json:"message"`
			Detail  string `json:"detail"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(stderr), &obj))
	assert.Equal(t, "invalid --format value", obj.Error.Message)
	assert.Contains(t, obj.Error.Detail, "7z")
}

func TestVersionCommand(t *testing.T) {
	Version, Commit, Date = "1.4.0", "abc123", "2024-03-01"
	t.Cleanup(func() { Version, Commit, Date = "dev", "none", "unknown" })

	code, stdout, _ := execute(t, "version")
	require.Equal(t, model.ExitSuccess, code)
	assert.Equal(t, "ink-release 1.4.0 (commit: abc123, built: 2024-03-01)\n", stdout)

	code, stdout, _ = execute(t, "version", "--json")
	require.Equal(t, model.ExitSuccess, code)
	assert.JSONEq(t, `{"version":"1.4.0","commit":"abc123","date":"2024-03-01"}`, stdout)
}

func TestPrintError(t *testing.T) {
	var buf bytes.Buffer
	printError(&buf, false, "release failed", errors.New("boom"))
	assert.Equal(t, "Error: release failed: boom\n", buf.String())

	buf.Reset()
	printError(&buf, false, "release failed", nil)
	assert.Equal(t, "Error: release failed\n", buf.String())
}
