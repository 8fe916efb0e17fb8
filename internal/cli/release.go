package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/shinji-kodama/ink-release/internal/builder"
	"github.com/shinji-kodama/ink-release/internal/config"
	"github.com/shinji-kodama/ink-release/internal/ctxlog"
	"github.com/shinji-kodama/ink-release/internal/docker"
	"github.com/shinji-kodama/ink-release/internal/model"
	"github.com/shinji-kodama/ink-release/internal/release"
	"github.com/shinji-kodama/ink-release/internal/vcs"
)

// runRelease is the root command's action. It resolves the descriptor and
// version, runs the pipeline and prints the summary.
func runRelease(cmd *cobra.Command, flags *rootFlags) error {
	// Step 1: Set up logging. Logs go to stderr; stdout carries only the
	// summary.
	logger, err := ctxlog.New(cmd.ErrOrStderr(), flags.debug, flags.logFormat)
	if err != nil {
		return model.WrapCLIError(model.ExitGeneralError, "invalid --log-format value", err)
	}
	ctx := ctxlog.WithLogger(cmd.Context(), logger)

	// Step 2: Load the config file, either the one named by --config or the
	// first .ink-release.* found in the working directory.
	cwd, err := os.Getwd()
	if err != nil {
		return model.WrapCLIError(model.ExitGeneralError, "failed to determine working directory", err)
	}
	cfg, err := config.LoadOrDiscover(flags.config, cwd)
	if err != nil {
		return model.WrapCLIError(model.ExitGeneralError, "failed to load config", err)
	}
	if cfg.Path != "" {
		logger.Info("Loaded config file", "path", cfg.Path)
	}

	// Step 3: Merge flags, config and defaults into the descriptor.
	desc, err := buildDescriptor(cmd, flags, cfg)
	if err != nil {
		return err
	}

	// Step 4: Resolve the version. An explicit -v wins; otherwise the most
	// recent git tag of the source tree is used.
	version, err := vcs.NewResolver(desc.SourceDir).Resolve(ctx, flags.version)
	if err != nil {
		logger.Error("Version not provided and could not be detected from git")
		return model.WrapCLIError(model.ExitGeneralError, "could not determine the release version", err)
	}
	desc.Version = version
	logDescriptor(ctx, desc)

	// Step 5: Pick where cmake runs. One run ID tags both the log lines and
	// any build containers.
	runID := uuid.NewString()
	image := pick(cmd, "docker-image", flags.dockerImage, cfg.DockerImage, "")
	runner, closeRunner, err := newRunner(ctx, image, desc, runID)
	if err != nil {
		return err
	}
	defer closeRunner()

	// Step 6: Run the pipeline and print the summary.
	result, err := release.NewPipeline(runner, release.WithRunID(runID)).Run(ctx, desc)
	if err != nil {
		return model.WrapCLIError(model.ExitGeneralError, "release failed", err)
	}

	if err := printSummary(cmd.OutOrStdout(), flags.jsonOutput, desc, result); err != nil {
		return model.WrapCLIError(model.ExitGeneralError, "failed to print summary", err)
	}
	logger.Info(desc.BuildTypeLabel() + " successfully created!")
	return nil
}

// buildDescriptor merges flags, the config file and defaults, in that order
// of precedence. Directory paths are made absolute. Version is left empty.
func buildDescriptor(cmd *cobra.Command, flags *rootFlags, cfg *config.File) (*model.ReleaseDescriptor, error) {
	// The build type has no flag; it also picks the default build dir.
	buildType := firstNonEmpty(cfg.BuildType, model.DefaultBuildType)

	// PreRunE validated --format, but a config file value still needs
	// parsing here.
	formatName := pick(cmd, "format", flags.format, cfg.Format, model.DefaultArchiveFormat.String())
	format, err := model.ParseArchiveFormat(formatName)
	if err != nil {
		return nil, model.WrapCLIError(model.ExitGeneralError, "invalid archive format", err)
	}

	// Name parts and switches. Version stays empty until the resolver runs.
	desc := &model.ReleaseDescriptor{
		Library:       firstNonEmpty(cfg.Library, model.DefaultLibrary),
		BuildType:     buildType,
		OS:            pick(cmd, "os", flags.osName, cfg.OS, model.DefaultOS),
		Arch:          pick(cmd, "arch", flags.arch, cfg.Arch, model.DefaultArch),
		Format:        format,
		Clean:         flags.clean,
		CleanPatterns: cfg.CleanPatterns,
		DryRun:        flags.dryRun,
	}

	// Directory settings share the same precedence rules. Relative config
	// paths were already resolved against the config file by config.Load;
	// relative flag values are resolved against the working directory here.
	dirs := []struct {
		target *string
		flag   string
		value  string
		config string
		def    string
	}{
		{&desc.SourceDir, "source", flags.source, cfg.Source, model.DefaultSourceDir},
		{&desc.BuildDir, "build", flags.build, cfg.Build, model.DefaultBuildDir(buildType)},
		{&desc.OutputDir, "output", flags.output, cfg.Output, model.DefaultOutputDir},
		{&desc.HeadersDir, "headers", flags.headers, cfg.Headers, model.DefaultHeaders},
	}
	for _, d := range dirs {
		// Container bind mounts require absolute paths.
		abs, err := filepath.Abs(pick(cmd, d.flag, d.value, d.config, d.def))
		if err != nil {
			return nil, model.WrapCLIError(model.ExitGeneralError, fmt.Sprintf("invalid --%s path", d.flag), err)
		}
		*d.target = abs
	}

	return desc, nil
}

// pick returns the flag value when the flag was set explicitly, otherwise
// the config value, otherwise def.
func pick(cmd *cobra.Command, flag, flagValue, configValue, def string) string {
	if cmd.Flags().Changed(flag) {
		return flagValue
	}
	return firstNonEmpty(configValue, def)
}

// firstNonEmpty returns the first non-empty value, or "".
func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// logDescriptor logs the effective settings at DEBUG level.
func logDescriptor(ctx context.Context, desc *model.ReleaseDescriptor) {
	ctxlog.FromContext(ctx).Debug("Configuration",
		"version", desc.Version,
		"build_dir", desc.BuildDir,
		"output_dir", desc.OutputDir,
		"os", desc.OS,
		"arch", desc.Arch,
		"format", desc.Format.String(),
		"headers_dir", desc.HeadersDir,
		"source_dir", desc.SourceDir,
		"clean", desc.Clean,
		"dry_run", desc.DryRun,
	)
}

// newRunner returns the host runner, or a container runner when image is
// set. Dry runs never contact Docker since no command is executed. The
// returned func releases the runner and must always be called.
func newRunner(ctx context.Context, image string, desc *model.ReleaseDescriptor, runID string) (builder.Runner, func(), error) {
	// The host runner needs no setup and no cleanup.
	if image == "" || desc.DryRun {
		return builder.NewExecRunner(), func() {}, nil
	}

	logger := ctxlog.FromContext(ctx)
	client, err := docker.NewClient()
	if err != nil {
		return nil, nil, model.WrapCLIError(model.ExitGeneralError, "Docker is required for --docker-image", err)
	}
	// NewClient only checks that a socket exists (and not even that on
	// Windows); Ping confirms a daemon answers.
	if err := client.Ping(ctx); err != nil {
		_ = client.Close()
		return nil, nil, model.WrapCLIError(model.ExitGeneralError, "Docker is required for --docker-image", err)
	}
	logger.Info("Running build steps in container", "image", image)

	// The source tree and the build tree are mounted at their host paths,
	// so the cmake command lines work unchanged inside the container.
	runner := docker.NewContainerRunner(client, image, []string{desc.SourceDir, desc.BuildDir}, docker.WithRunID(runID))
	// Containers are removed after each command; Cleanup catches any left
	// behind by an interrupted run.
	closeRunner := func() {
		n, err := runner.Cleanup(context.WithoutCancel(ctx))
		if err != nil {
			logger.Warn("Failed to remove build containers", "error", err)
		} else if n > 0 {
			logger.Info("Removed leftover build containers", "count", n)
		}
		_ = client.Close()
	}
	return runner, closeRunner, nil
}
