// Package docker runs build-tool commands inside a Docker container.
//
// This package handles:
//   - Docker client initialization with automatic socket detection
//     (Linux, macOS, Windows)
//   - Labels that tag every build container with the run it belongs to
//   - ContainerRunner, a builder.Runner that executes each command in a
//     fresh container with the source and build trees bind-mounted at
//     their host paths, so CMake sees the same paths inside and outside
//
// The package uses github.com/docker/docker/client as the underlying
// Docker SDK, with version negotiation enabled for broad compatibility.
package docker
