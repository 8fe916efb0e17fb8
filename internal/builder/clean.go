package builder

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/shinji-kodama/ink-release/internal/ctxlog"
)

// DefaultCleanPatterns are the build-directory entries removed by --clean.
// A trailing slash restricts a pattern to directories.
var DefaultCleanPatterns = []string{"*.a", "*.o", "*.so", "CMakeFiles/"}

// ErrInvalidCleanPattern is returned by ValidateCleanPattern.
var ErrInvalidCleanPattern = errors.New("invalid clean pattern")

// ValidateCleanPattern checks that pattern can only match direct children
// of the build directory: it must be a valid glob with no path separator
// (apart from the trailing directory marker) and must not be "." or "..".
func ValidateCleanPattern(pattern string) error {
	p := strings.TrimSuffix(pattern, "/")
	switch {
	case p == "":
		return fmt.Errorf("%w: empty pattern", ErrInvalidCleanPattern)
	case strings.ContainsAny(p, `/\`):
		return fmt.Errorf("%w: %q must not contain path separators", ErrInvalidCleanPattern, pattern)
	case p == "." || p == "..":
		return fmt.Errorf("%w: %q names a directory, not an entry", ErrInvalidCleanPattern, pattern)
	}
	if _, err := filepath.Match(p, ""); err != nil {
		return fmt.Errorf("%w: %q: %v", ErrInvalidCleanPattern, pattern, err)
	}
	return nil
}

// Clean removes build artifacts matching DefaultCleanPatterns plus extra
// from the top level of buildDir. It is best-effort: failures are logged
// as warnings and the remaining entries are still processed. The returned
// slice lists the paths that were (or, in dry-run, would be) removed.
//
// Nothing outside buildDir is ever removed. Patterns rejected by
// ValidateCleanPattern are skipped, and so is any match that is not a
// direct child of buildDir.
func Clean(ctx context.Context, buildDir string, extra []string, dryRun bool) []string {
	logger := ctxlog.FromContext(ctx)
	logger.Info("Cleaning build directory", "path", buildDir)

	// Defaults first, then the config file's extra patterns.
	patterns := make([]string, 0, len(DefaultCleanPatterns)+len(extra))
	patterns = append(patterns, DefaultCleanPatterns...)
	patterns = append(patterns, extra...)

	// A path can match several patterns ("*.a" and "lib*"); handle it once.
	seen := make(map[string]bool)
	var removed []string
	for _, pattern := range patterns {
		if err := ValidateCleanPattern(pattern); err != nil {
			logger.Warn("Skipping clean pattern", "pattern", pattern, "error", err)
			continue
		}
		dirOnly := strings.HasSuffix(pattern, "/")
		pattern = strings.TrimSuffix(pattern, "/")

		matches, err := filepath.Glob(filepath.Join(buildDir, pattern))
		if err != nil {
			logger.Warn("Invalid clean pattern", "pattern", pattern, "error", err)
			continue
		}

		for _, match := range matches {
			if seen[match] {
				continue
			}
			if !isDirectChild(buildDir, match) {
				logger.Warn("Skipping path outside the build directory", "path", match)
				continue
			}
			// Lstat: a symlink is removed as a link, never followed.
			info, err := os.Lstat(match)
			if err != nil {
				logger.Warn("Failed to inspect build artifact", "path", match, "error", err)
				continue
			}
			if dirOnly && !info.IsDir() {
				continue
			}
			seen[match] = true

			if dryRun {
				logger.Info("Would remove", "path", match)
				removed = append(removed, match)
				continue
			}

			logger.Debug("Removing build artifact", "path", match)
			if err := os.RemoveAll(match); err != nil {
				logger.Warn("Failed to clean build directory entry", "path", match, "error", err)
				continue
			}
			removed = append(removed, match)
		}
	}

	return removed
}

// isDirectChild reports whether path is exactly one element below dir.
func isDirectChild(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel != "." && !strings.HasPrefix(rel, "..") && !strings.ContainsRune(rel, filepath.Separator)
}
