package release

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/shinji-kodama/ink-release/internal/archive"
	"github.com/shinji-kodama/ink-release/internal/builder"
	"github.com/shinji-kodama/ink-release/internal/ctxlog"
	"github.com/shinji-kodama/ink-release/internal/model"
	"github.com/shinji-kodama/ink-release/internal/packager"
)

// Pipeline wires the release stages together.
//
// Stages, in order:
//  1. Validate the descriptor
//  2. Configure and build with CMake
//  3. Verify the static library exists
//  4. Assemble the package directory in a scratch root
//  5. Archive the package into the output directory
//  6. Clean the build directory (only with --clean)
//
// The scratch root is removed whenever assembly succeeded, whatever later
// stages do.
type Pipeline struct {
	// invoker runs the configure and build commands.
	invoker *builder.Invoker

	// assembler creates the scratch root and package directory.
	assembler *packager.Assembler

	// runID tags every log line and build container of one run.
	runID string
}

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithRunID sets the run ID attached to every log line. The default is a
// fresh random UUID.
func WithRunID(id string) Option {
	return func(p *Pipeline) { p.runID = id }
}

// WithAssembler replaces the default package assembler.
func WithAssembler(a *packager.Assembler) Option {
	return func(p *Pipeline) { p.assembler = a }
}

// NewPipeline creates a Pipeline that runs build-tool commands through runner.
func NewPipeline(runner builder.Runner, opts ...Option) *Pipeline {
	p := &Pipeline{
		invoker:   builder.NewInvoker(runner),
		assembler: packager.NewAssembler(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.runID == "" {
		p.runID = uuid.NewString()
	}
	return p
}

// RunID returns the ID attached to this pipeline's log lines.
func (p *Pipeline) RunID() string {
	return p.runID
}

// Run packages the release described by desc. desc.Version must already be
// resolved.
//
// Stage errors are returned unchanged, so callers classify them with
// errors.Is against the model sentinels. Clean failures are only logged.
func (p *Pipeline) Run(ctx context.Context, desc *model.ReleaseDescriptor) (result *model.ArchiveResult, err error) {
	// Step 1: Validate before touching the filesystem. Every name part is
	// checked here, so nothing below can build paths outside its target
	// directories.
	if err := desc.Validate(); err != nil {
		return nil, fmt.Errorf("invalid release: %w", err)
	}

	// All stages log through ctx; attach the run ID once for the whole run.
	ctx = ctxlog.With(ctx, "run_id", p.runID)
	logger := ctxlog.FromContext(ctx)
	logger.Info("Starting release",
		"library", desc.Library,
		"version", desc.Version,
		"os", desc.OS,
		"arch", desc.Arch,
		"format", desc.Format.String(),
		"dry_run", desc.DryRun,
	)

	// Step 2: Configure (if needed) and build. Errors wrap ErrBuildFailed.
	if err := p.invoker.Build(ctx, desc); err != nil {
		return nil, err
	}

	// Step 3: The build must have produced lib<name>.a. A dry run built
	// nothing, so there is nothing to check.
	if desc.DryRun {
		logger.Info("Would verify library file", "path", desc.LibraryPath())
	} else if err := builder.Verify(ctx, desc); err != nil {
		return nil, err
	}

	// Step 4: Assemble the package. On failure Assemble has already removed
	// its scratch root.
	pkg, err := p.assembler.Assemble(ctx, desc)
	if err != nil {
		return nil, err
	}

	// From here on the scratch root is ours to remove, on success and on
	// every error path. Removal failures are logged, never returned.
	defer func() {
		if rmErr := pkg.Remove(); rmErr != nil {
			logger.Warn("Failed to remove scratch directory", "path", pkg.Root, "error", rmErr)
			return
		}
		if !pkg.DryRun {
			logger.Debug("Removed scratch directory", "path", pkg.Root)
		}
	}()

	// Step 5: Archive the package directory. The archive root is the
	// package name, so archive entries start with "<lib>-<version>_...".
	result, err = archive.Create(ctx, archive.Request{
		RootDir:   pkg.Root,
		BaseName:  pkg.Name,
		OutputDir: desc.OutputDir,
		Format:    desc.Format,
		DryRun:    desc.DryRun,
	})
	if err != nil {
		return nil, err
	}

	// Step 6: Clean only after the archive exists. Clean logs its own
	// failures and never fails the release.
	if desc.Clean {
		builder.Clean(ctx, desc.BuildDir, desc.CleanPatterns, desc.DryRun)
	}

	logger.Debug("Release pipeline finished", "archive", result.Path)
	return result, nil
}
