// Package release runs the packaging pipeline for one release descriptor:
// build, verify, assemble, archive and clean, in that order.
//
// The pipeline is the only place that knows the stage order. Each stage
// lives in its own package and reports failures as an error wrapping one
// of the model sentinels (ErrBuildFailed, ErrMissingArtifact, ErrAssembly,
// ErrArchive), which Run returns unchanged.
//
// The scratch root created by the assembler is removed on every exit path
// once it exists. Every log line of a run carries its run ID, the same ID
// that labels build containers when cmake runs in Docker.
package release
