package builder

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// Command is an external process invocation.
type Command struct {
	// Name is the executable, e.g. "cmake".
	Name string

	// Args are passed verbatim; no shell is involved.
	Args []string

	// Dir is the working directory. Empty means the current directory.
	Dir string
}

// String renders the command line for log output.
func (c Command) String() string {
	if len(c.Args) == 0 {
		return c.Name
	}
	return c.Name + " " + strings.Join(c.Args, " ")
}

// Result holds the captured output of a finished command.
type Result struct {
	Stdout string
	Stderr string

	// ExitCode is the process exit status, or -1 when the process could
	// not be started.
	ExitCode int
}

// Runner executes a Command synchronously. A non-zero exit status is
// reported as an error; the Result is still returned so callers can log
// the captured stderr.
type Runner interface {
	Run(ctx context.Context, cmd Command) (*Result, error)
}

// ExitError reports a command that ran but exited non-zero.
type ExitError struct {
	// Command is the command that failed.
	Command Command

	// ExitCode is the non-zero exit status.
	ExitCode int

	// Stderr is the captured standard error, untrimmed.
	Stderr string
}

// Error includes the trimmed stderr when there is any.
func (e *ExitError) Error() string {
	msg := fmt.Sprintf("%q exited with status %d", e.Command.String(), e.ExitCode)
	if s := strings.TrimSpace(e.Stderr); s != "" {
		msg += ": " + s
	}
	return msg
}

// ExecRunner runs commands on the host through os/exec.
type ExecRunner struct {
	// Env, when non-nil, replaces the inherited environment.
	Env []string
}

// NewExecRunner creates a Runner that executes commands on the host.
func NewExecRunner() *ExecRunner {
	return &ExecRunner{}
}

// Run executes cmd and blocks until it exits or ctx is cancelled.
func (r *ExecRunner) Run(ctx context.Context, cmd Command) (*Result, error) {
	// #nosec G204 -- commands are built by the invoker, not taken from input
	c := exec.CommandContext(ctx, cmd.Name, cmd.Args...)
	c.Dir = cmd.Dir
	if r.Env != nil {
		c.Env = r.Env
	}

	// Output is buffered in memory and returned whole. CMake output for a
	// single library is small enough for that.
	var stdout, stderr strings.Builder
	c.Stdout = &stdout
	c.Stderr = &stderr

	err := c.Run()
	result := &Result{Stdout: stdout.String(), Stderr: stderr.String()}
	if err == nil {
		return result, nil
	}

	// The process ran and failed: report its status. Anything else (binary
	// not found, cancelled before start) is a run failure with code -1.
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		result.ExitCode = exitErr.ExitCode()
		return result, &ExitError{Command: cmd, ExitCode: result.ExitCode, Stderr: result.Stderr}
	}
	result.ExitCode = -1
	return result, fmt.Errorf("failed to run %q: %w", cmd.String(), err)
}
