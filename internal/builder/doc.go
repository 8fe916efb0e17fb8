// Package builder drives the CMake build that produces the static library,
// verifies the artifact, and prunes build outputs after packaging.
//
// Every external command goes through the Runner interface. ExecRunner runs
// commands on the host; the docker package provides a Runner that executes
// the same commands inside a build container. Dry-run is handled here, so a
// Runner is never invoked when nothing should happen.
//
// Clean only ever removes direct children of the build directory. Clean
// patterns are plain globs without path separators; anything else is
// refused by ValidateCleanPattern.
package builder
