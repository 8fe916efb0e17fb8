// Package model defines the domain types of the ink-release CLI.
//
// Everything here is a transient value: the ReleaseDescriptor built from
// flags and config, the ArchiveFormat enum, and the ArchiveResult used for
// the final summary. Nothing is persisted between runs.
//
// The package also defines the exit codes (ExitCode), the CLIError type
// that carries them, and the sentinel errors used to classify pipeline
// failures.
package model
