package builder

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/shinji-kodama/ink-release/internal/ctxlog"
	"github.com/shinji-kodama/ink-release/internal/model"
)

// CacheFile marks a build directory that CMake has already configured.
const CacheFile = "CMakeCache.txt"

// Invoker runs the CMake configure and build steps for a release.
type Invoker struct {
	// runner executes the commands, on the host or in a container.
	runner Runner

	// cmake is the executable name or path, "cmake" by default.
	cmake string

	// target is passed to "cmake --build --target".
	target string
}

// Option customizes an Invoker.
type Option func(*Invoker)

// WithCMake overrides the cmake executable name or path.
func WithCMake(path string) Option {
	return func(i *Invoker) { i.cmake = path }
}

// WithTarget overrides the build target (default "all").
func WithTarget(target string) Option {
	return func(i *Invoker) { i.target = target }
}

// NewInvoker creates an Invoker that executes commands through runner.
func NewInvoker(runner Runner, opts ...Option) *Invoker {
	i := &Invoker{runner: runner, cmake: "cmake", target: "all"}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// ConfigureCommand returns the CMake configuration step for desc:
//
//	cmake -B <build> -S <source> -DCMAKE_BUILD_TYPE=<Release|Debug|...>
func (i *Invoker) ConfigureCommand(desc *model.ReleaseDescriptor) Command {
	return Command{
		Name: i.cmake,
		Args: []string{
			"-B", desc.BuildDir,
			"-S", desc.SourceDir,
			"-DCMAKE_BUILD_TYPE=" + desc.BuildTypeLabel(),
		},
		Dir: desc.SourceDir,
	}
}

// BuildCommand returns the CMake build step for desc:
//
//	cmake --build <build> --target <target>
func (i *Invoker) BuildCommand(desc *model.ReleaseDescriptor) Command {
	return Command{
		Name: i.cmake,
		Args: []string{"--build", desc.BuildDir, "--target", i.target},
		Dir:  desc.SourceDir,
	}
}

// Build ensures the build directory exists, configures it when no CMake
// cache is present, and runs the build. Any failing step aborts with an
// error wrapping model.ErrBuildFailed.
//
// In dry-run mode the commands are logged and nothing is created or run.
func (i *Invoker) Build(ctx context.Context, desc *model.ReleaseDescriptor) error {
	logger := ctxlog.FromContext(ctx)
	logger.Info("Building library", "library", desc.Library, "build_dir", desc.BuildDir)

	// Step 1: Make sure the build directory exists.
	if err := i.ensureBuildDir(ctx, desc); err != nil {
		return err
	}

	// Step 2: Configure only when there is no CMake cache yet. A
	// configured tree is reused as-is.
	configured, err := isConfigured(desc.BuildDir)
	if err != nil {
		return fmt.Errorf("%w: %v", model.ErrBuildFailed, err)
	}
	if !configured {
		logger.Info("CMake build directory not initialized, running configuration step")
		if err := i.step(ctx, "configuration", i.ConfigureCommand(desc), desc.DryRun); err != nil {
			return err
		}
	}

	// Step 3: Build the target.
	return i.step(ctx, "build", i.BuildCommand(desc), desc.DryRun)
}

// ensureBuildDir creates desc.BuildDir when it is missing. In dry-run mode
// the creation is only logged.
func (i *Invoker) ensureBuildDir(ctx context.Context, desc *model.ReleaseDescriptor) error {
	// An existing entry is accepted as is; cmake reports a file in the way.
	_, err := os.Stat(desc.BuildDir)
	if err == nil {
		return nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: failed to inspect build directory: %v", model.ErrBuildFailed, err)
	}

	logger := ctxlog.FromContext(ctx)
	if desc.DryRun {
		logger.Info("Would create build directory", "path", desc.BuildDir)
		return nil
	}

	logger.Info("Creating build directory", "path", desc.BuildDir)
	if err := os.MkdirAll(desc.BuildDir, 0o755); err != nil {
		logger.Error("Failed to create build directory", "error", err)
		return fmt.Errorf("%w: failed to create build directory: %v", model.ErrBuildFailed, err)
	}
	return nil
}

// step runs a single build-tool command, or logs it in dry-run mode.
func (i *Invoker) step(ctx context.Context, name string, cmd Command, dryRun bool) error {
	logger := ctxlog.FromContext(ctx)
	logger.Info("Running", "step", name, "command", cmd.String())

	if dryRun {
		logger.Info("Would execute", "command", cmd.String())
		return nil
	}

	// A non-zero exit arrives as an *ExitError together with the captured
	// output; the captured stderr is logged with the failure.
	result, err := i.runner.Run(ctx, cmd)
	if err != nil {
		stderr := ""
		if result != nil {
			stderr = result.Stderr
		}
		logger.Error("CMake step failed", "step", name, "error", err, "stderr", stderr)
		return fmt.Errorf("%w: cmake %s step: %v", model.ErrBuildFailed, name, err)
	}

	logger.Debug("CMake output", "step", name, "stdout", result.Stdout)
	return nil
}

// isConfigured reports whether buildDir contains a CMake cache.
// A missing build directory is simply "not configured".
func isConfigured(buildDir string) (bool, error) {
	_, err := os.Stat(filepath.Join(buildDir, CacheFile))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, os.ErrNotExist):
		return false, nil
	default:
		return false, err
	}
}

// Verify checks that the static library exists in the build directory.
// It returns an error wrapping model.ErrMissingArtifact otherwise.
func Verify(ctx context.Context, desc *model.ReleaseDescriptor) error {
	logger := ctxlog.FromContext(ctx)
	path := desc.LibraryPath()

	// A directory at the library path counts as missing.
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		logger.Error("Library file not found", "path", path)
		return fmt.Errorf("%w: %s", model.ErrMissingArtifact, path)
	}

	logger.Debug("Found library file", "path", path, "bytes", info.Size())
	return nil
}
