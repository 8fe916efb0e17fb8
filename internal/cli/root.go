// Package cli implements the cobra command line of ink-release.
//
// The root command runs the whole release pipeline. This file defines the
// command, its flags, and the translation of errors into exit codes;
// release.go turns flags and the optional config file into a release
// descriptor, and summary.go renders the result.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/shinji-kodama/ink-release/internal/ctxlog"
	"github.com/shinji-kodama/ink-release/internal/model"
)

// Build information, injected from the main package.
var (
	// Version is the semantic version of the binary (e.g., "1.0.0").
	Version = "dev"

	// Commit is the Git commit hash the binary was built from.
	Commit = "none"

	// Date is the build timestamp.
	Date = "unknown"
)

// rootFlags holds the flag values of the root command.
type rootFlags struct {
	version     string // -v/--version: explicit release version
	build       string // -b/--build: CMake build directory
	output      string // -o/--output: archive output directory
	osName      string // --os: target OS label
	arch        string // --arch: target architecture label
	format      string // -f/--format: archive format
	headers     string // --headers: header directory to package
	source      string // --source: CMake source directory
	config      string // --config: release config file
	dockerImage string // --docker-image: run cmake inside this image
	logFormat   string // --log-format: text or json
	clean       bool   // -c/--clean: prune build artifacts afterwards
	debug       bool   // --debug: DEBUG level logging
	dryRun      bool   // --dry-run: log actions without performing them
	jsonOutput  bool   // --json: machine-readable summary and errors
}

// NewRootCommand creates the ink-release command with all flags and
// subcommands registered.
func NewRootCommand() *cobra.Command {
	flags := &rootFlags{}

	rootCmd := &cobra.Command{
		Use:   "ink-release",
		Short: "Build and package the ink static library for release",
		Long: `ink-release builds the ink static library with CMake and packages it,
together with its public headers and a README, into a versioned archive.

The release version defaults to the most recent git tag. Settings can be
pinned in a .ink-release.yaml (or .yml, .toml, .json, .jsonc) file at the
project root; command-line flags override the file.

Examples:
  ink-release
  ink-release -v 1.2.3 --os darwin --arch arm64 -f zip
  ink-release --clean --output dist
  ink-release --dry-run --debug`,

		// All input comes from flags and the config file.
		Args: cobra.NoArgs,

		// Errors are printed by Execute, in text or JSON.
		SilenceUsage:  true,
		SilenceErrors: true,

		// PreRunE rejects bad enum flags before runRelease touches the
		// filesystem or starts a build.
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return validateFlags(flags)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRelease(cmd, flags)
		},
	}

	// Release flags apply to the root command only.
	f := rootCmd.Flags()
	f.StringVarP(&flags.version, "version", "v", "", "Release version (default: latest git tag)")
	f.StringVarP(&flags.build, "build", "b", model.DefaultBuildDir(model.DefaultBuildType), "CMake build directory")
	f.StringVarP(&flags.output, "output", "o", model.DefaultOutputDir, "Output directory for the archive")
	f.StringVar(&flags.osName, "os", model.DefaultOS, "Target operating system")
	f.StringVar(&flags.arch, "arch", model.DefaultArch, "Target architecture")
	f.StringVarP(&flags.format, "format", "f", model.DefaultArchiveFormat.String(),
		fmt.Sprintf("Archive format: %s", model.FormatList()))
	f.BoolVarP(&flags.clean, "clean", "c", false, "Clean build directory after successful packaging")
	f.StringVar(&flags.headers, "headers", model.DefaultHeaders, "Directory containing header files")
	f.StringVar(&flags.source, "source", model.DefaultSourceDir, "CMake source directory")
	f.StringVar(&flags.config, "config", "", "Release config file (default: .ink-release.* in the working directory)")
	f.StringVar(&flags.dockerImage, "docker-image", "", "Run the CMake steps inside a container from this image")
	f.BoolVar(&flags.dryRun, "dry-run", false, "Log every action without building, copying or archiving")

	// Output flags are shared with the version subcommand.
	pf := rootCmd.PersistentFlags()
	pf.BoolVar(&flags.debug, "debug", false, "Enable debug logging")
	pf.StringVar(&flags.logFormat, "log-format", ctxlog.FormatText, "Log format: text or json")
	pf.BoolVar(&flags.jsonOutput, "json", false, "Output in JSON format")

	rootCmd.AddCommand(NewVersionCommand())

	return rootCmd
}

// validateFlags rejects bad enum values before any work starts.
func validateFlags(flags *rootFlags) error {
	if _, err := model.ParseArchiveFormat(flags.format); err != nil {
		return model.WrapCLIError(model.ExitGeneralError, "invalid --format value", err)
	}
	// ctxlog.New rejects an unknown format; the logger itself is dropped.
	if _, err := ctxlog.New(io.Discard, flags.debug, flags.logFormat); err != nil {
		return model.WrapCLIError(model.ExitGeneralError, "invalid --log-format value", err)
	}
	return nil
}

// Execute runs the root command and exits the process with the code
// carried by the returned error. SIGINT and SIGTERM cancel the run.
func Execute(rootCmd *cobra.Command) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := Run(ctx, rootCmd)
	stop()
	os.Exit(int(code))
}

// Run executes rootCmd and returns the exit code, printing any error to
// the command's error stream.
func Run(ctx context.Context, rootCmd *cobra.Command) model.ExitCode {
	// ExecuteContext makes ctx available to every RunE via cmd.Context().
	err := rootCmd.ExecuteContext(ctx)
	if err == nil {
		return model.ExitSuccess
	}

	// Flags are parsed by now, even when the command itself failed.
	jsonOutput, _ := rootCmd.PersistentFlags().GetBool("json")
	var cliErr *model.CLIError
	if !errors.As(err, &cliErr) {
		// Flag parsing errors and the like come straight from cobra.
		cliErr = model.NewCLIError(model.ExitGeneralError, err.Error())
	}
	printError(rootCmd.ErrOrStderr(), jsonOutput, cliErr.Message, cliErr.Err)
	return cliErr.Code
}

// printError writes an error message as text or as a JSON object.
func printError(w io.Writer, jsonOutput bool, message string, underlying error) {
	// JSON mode: {"error": {"message": ..., "detail": ...}}, with "detail"
	// only present when there is an underlying error.
	if jsonOutput {
		errObj := map[string]interface{}{
			"error": map[string]interface{}{
				"message": message,
			},
		}
		if underlying != nil {
			if errMap, ok := errObj["error"].(map[string]interface{}); ok {
				errMap["detail"] = underlying.Error()
			}
		}
		// stdout is reserved for successful output, even in JSON mode.
		data, _ := json.MarshalIndent(errObj, "", "  ")
		_, _ = fmt.Fprintln(w, string(data))
		return
	}

	if underlying != nil {
		_, _ = fmt.Fprintf(w, "Error: %s: %v\n", message, underlying)
	} else {
		_, _ = fmt.Fprintf(w, "Error: %s\n", message)
	}
}
