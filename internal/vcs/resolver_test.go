package vcs

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shinji-kodama/ink-release/internal/model"
)

// setupTestRepo creates a temporary Git repository with a single commit.
// A local user identity is configured so `git commit` works in CI.
func setupTestRepo(t *testing.T) string {
	t.Helper()

	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}

	dir := t.TempDir()
	runTestGit(t, dir, "init")
	runTestGit(t, dir, "config", "user.email", "test@example.com")
	runTestGit(t, dir, "config", "user.name", "Test User")
	runTestGit(t, dir, "config", "tag.gpgsign", "false")
	runTestGit(t, dir, "config", "commit.gpgsign", "false")

	err := os.WriteFile(filepath.Join(dir, "CMakeLists.txt"), []byte("project(ink)\n"), 0o644)
	require.NoError(t, err, "failed to create initial file")

	runTestGit(t, dir, "add", ".")
	runTestGit(t, dir, "commit", "-m", "initial commit")

	return dir
}

// runTestGit runs a git command in dir and fails the test on a non-zero exit.
func runTestGit(t *testing.T, dir string, args ...string) string {
	t.Helper()

	cmd := exec.Command("git", append([]string{"-C", dir}, args...)...)
	output, err := cmd.CombinedOutput()
	require.NoError(t, err, "git %v failed: %s", args, string(output))
	return string(output)
}

func TestResolve_Explicit(t *testing.T) {
	// The directory is never consulted when a version is supplied.
	r := NewResolver(filepath.Join(t.TempDir(), "does-not-exist"))

	v, err := r.Resolve(context.Background(), "1.2.3")
	require.NoError(t, err)
	assert.Equal(t, "1.2.3", v)
}

func TestResolve_ExplicitIsTrimmed(t *testing.T) {
	r := NewResolver(t.TempDir())

	v, err := r.Resolve(context.Background(), "  v2.0.0\n")
	require.NoError(t, err)
	assert.Equal(t, "v2.0.0", v)
}

func TestResolve_LatestTag(t *testing.T) {
	repo := setupTestRepo(t)
	runTestGit(t, repo, "tag", "v1.0.0")

	require.NoError(t, os.WriteFile(filepath.Join(repo, "ink.c"), []byte("int x;\n"), 0o644))
	runTestGit(t, repo, "add", ".")
	runTestGit(t, repo, "commit", "-m", "second commit")
	runTestGit(t, repo, "tag", "-a", "v1.1.0", "-m", "release 1.1.0")

	v, err := NewResolver(repo).Resolve(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "v1.1.0", v)
}

func TestResolve_TagOnOlderCommit(t *testing.T) {
	repo := setupTestRepo(t)
	runTestGit(t, repo, "tag", "0.9.0")

	require.NoError(t, os.WriteFile(filepath.Join(repo, "ink.c"), []byte("int y;\n"), 0o644))
	runTestGit(t, repo, "add", ".")
	runTestGit(t, repo, "commit", "-m", "untagged commit")

	// --abbrev=0 strips the "-N-gHASH" suffix.
	v, err := NewResolver(repo).Resolve(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "0.9.0", v)
}

func TestResolve_NoTags(t *testing.T) {
	repo := setupTestRepo(t)

	v, err := NewResolver(repo).Resolve(context.Background(), "")
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrVersionUnresolved)
	assert.Empty(t, v)
}

func TestResolve_NotARepository(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}

	v, err := NewResolver(t.TempDir()).Resolve(context.Background(), "")
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrVersionUnresolved)
	assert.Empty(t, v)
}

func TestResolve_GitMissing(t *testing.T) {
	r := NewResolver(t.TempDir())
	r.gitBinary = filepath.Join(t.TempDir(), "no-such-git")

	_, err := r.Resolve(context.Background(), "")
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrVersionUnresolved)
	assert.Contains(t, err.Error(), "git describe --tags --abbrev=0 failed")
}
