package model

import (
	"errors"
	"fmt"
)

// Sentinel errors for each failure category of the release pipeline.
// Stages wrap them with context via fmt.Errorf("...: %w", ...), so callers
// classify failures with errors.Is.
var (
	// ErrVersionUnresolved means no version was given and none could be
	// detected from source control tags.
	ErrVersionUnresolved = errors.New("version not provided and could not be detected from git")

	// ErrInvalidFormat means the requested archive format is not supported.
	ErrInvalidFormat = errors.New("invalid archive format")

	// ErrBuildFailed means a build-tool step (configure or build) failed.
	ErrBuildFailed = errors.New("build failed")

	// ErrMissingArtifact means the static library was not found after the build.
	ErrMissingArtifact = errors.New("missing build artifact")

	// ErrAssembly means copying files into the package directory failed.
	ErrAssembly = errors.New("package assembly failed")

	// ErrArchive means the archive could not be created.
	ErrArchive = errors.New("archive creation failed")
)

// ExitCode defines the process exit codes of the CLI.
type ExitCode int

const (
	// ExitSuccess indicates the release was produced (or simulated) successfully.
	ExitSuccess ExitCode = 0

	// ExitGeneralError covers every fatal error: missing version, build
	// failure, missing artifact, assembly failure, archive failure and
	// invalid arguments.
	ExitGeneralError ExitCode = 1
)

// CLIError is an error that carries an exit code, so the CLI layer can
// translate domain errors into process exit codes.
type CLIError struct {
	// Code is the exit code to return to the OS.
	Code ExitCode

	// Message is the human-readable error description.
	Message string

	// Err is the underlying error, if any.
	Err error
}

// Error returns the message, followed by the underlying error when present.
func (e *CLIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error for use with errors.Is/errors.As.
func (e *CLIError) Unwrap() error {
	return e.Err
}

// NewCLIError creates a new CLIError with the given exit code and message.
func NewCLIError(code ExitCode, message string) *CLIError {
	return &CLIError{Code: code, Message: message}
}

// WrapCLIError creates a new CLIError that wraps an existing error.
func WrapCLIError(code ExitCode, message string, err error) *CLIError {
	return &CLIError{Code: code, Message: message, Err: err}
}
