package vcs

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/shinji-kodama/ink-release/internal/ctxlog"
	"github.com/shinji-kodama/ink-release/internal/model"
)

// Resolver determines the release version for a source tree.
type Resolver struct {
	// dir is the directory git runs in (via -C).
	dir string

	// gitBinary is the git executable; overridable for tests.
	gitBinary string
}

// NewResolver creates a Resolver that queries the repository containing dir.
func NewResolver(dir string) *Resolver {
	return &Resolver{dir: dir, gitBinary: "git"}
}

// Resolve returns explicit when it is non-empty. Otherwise it returns the
// most recent tag reachable from HEAD.
//
// When no tag exists (or dir is not a git repository) a warning is logged
// and the returned error wraps model.ErrVersionUnresolved. Callers must
// treat that as a fatal configuration error.
func (r *Resolver) Resolve(ctx context.Context, explicit string) (string, error) {
	logger := ctxlog.FromContext(ctx)

	// An explicit version is trusted as given; the descriptor validation
	// later rejects values that cannot be part of a file name.
	if v := strings.TrimSpace(explicit); v != "" {
		logger.Debug("Using explicit version", "version", v)
		return v, nil
	}

	// Fall back to git. Both "not a repository" and "no tags" end up as
	// ErrVersionUnresolved; only the log message differs.
	tag, err := r.LatestTag(ctx)
	if err != nil {
		logger.Warn("Failed to detect version from git", "error", err)
		return "", fmt.Errorf("%w: %v", model.ErrVersionUnresolved, err)
	}
	if tag == "" {
		logger.Warn("Could not detect version from git tags")
		return "", model.ErrVersionUnresolved
	}

	logger.Info("Detected version from git", "version", tag)
	return tag, nil
}

// LatestTag runs `git describe --tags --abbrev=0` and returns the trimmed tag.
func (r *Resolver) LatestTag(ctx context.Context) (string, error) {
	output, err := r.runGit(ctx, "describe", "--tags", "--abbrev=0")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(output), nil
}

// runGit executes a git command in the resolver's directory and returns
// stdout. On a non-zero exit the error includes git's stderr.
func (r *Resolver) runGit(ctx context.Context, args ...string) (string, error) {
	fullArgs := append([]string{"-C", r.dir}, args...)

	// #nosec G204 -- args are constructed internally
	cmd := exec.CommandContext(ctx, r.gitBinary, fullArgs...)

	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		message := fmt.Sprintf("git %s failed", strings.Join(args, " "))
		if stderrStr := strings.TrimSpace(stderr.String()); stderrStr != "" {
			message = fmt.Sprintf("%s: %s", message, stderrStr)
		} else if !errors.As(err, &exitErr) {
			message = fmt.Sprintf("%s: %v", message, err)
		}
		return "", errors.New(message)
	}

	return stdout.String(), nil
}
