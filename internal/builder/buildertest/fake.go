// Package buildertest provides a scripted builder.Runner for tests.
package buildertest

import (
	"context"
	"sync"

	"github.com/shinji-kodama/ink-release/internal/builder"
)

// FakeRunner records every command it receives. Each call is answered by
// OnRun when set, otherwise with an empty successful Result.
type FakeRunner struct {
	// mu guards commands; Run may be called from several goroutines.
	mu       sync.Mutex
	commands []builder.Command

	// OnRun scripts the response to a command.
	OnRun func(cmd builder.Command) (*builder.Result, error)
}

// Run implements builder.Runner.
func (f *FakeRunner) Run(_ context.Context, cmd builder.Command) (*builder.Result, error) {
	f.mu.Lock()
	f.commands = append(f.commands, cmd)
	f.mu.Unlock()

	// OnRun is called outside the lock so it may call Calls or Commands.
	if f.OnRun != nil {
		return f.OnRun(cmd)
	}
	return &builder.Result{}, nil
}

// Commands returns a copy of the recorded commands.
func (f *FakeRunner) Commands() []builder.Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]builder.Command(nil), f.commands...)
}

// Calls returns the number of recorded commands.
func (f *FakeRunner) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.commands)
}

// IsBuildStep reports whether cmd is a `cmake --build` invocation.
// The configure step starts with "-B" instead.
func IsBuildStep(cmd builder.Command) bool {
	return len(cmd.Args) > 0 && cmd.Args[0] == "--build"
}

// Fail returns a builder.ExitError for cmd with the given status and stderr.
// Both values are returned the way a real Runner reports a failed command.
func Fail(cmd builder.Command, code int, stderr string) (*builder.Result, error) {
	return &builder.Result{Stderr: stderr, ExitCode: code},
		&builder.ExitError{Command: cmd, ExitCode: code, Stderr: stderr}
}
