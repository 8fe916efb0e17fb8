package docker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/docker/docker/client"
)

// defaultPingTimeout bounds the daemon health check. Docker Desktop on
// macOS can take a few seconds to answer.
const defaultPingTimeout = 5 * time.Second

// windowsPipeHost is the Docker Desktop named pipe on Windows.
const windowsPipeHost = "npipe:////./pipe/docker_engine"

// ErrUnavailable means no Docker daemon could be reached.
var ErrUnavailable = errors.New("docker daemon unavailable")

// Client is the Docker Engine connection used by ContainerRunner.
//
//	c, err := docker.NewClient()
//	if err != nil { /* no socket */ }
//	defer c.Close()
//	if err := c.Ping(ctx); err != nil { /* daemon not running */ }
type Client struct {
	inner *client.Client
}

// NewClient connects to DOCKER_HOST when it is set, and otherwise to the
// first local daemon socket found by daemonHost. The connection itself is
// not checked until Ping.
func NewClient() (*Client, error) {
	host := os.Getenv("DOCKER_HOST")
	if host == "" {
		home, _ := os.UserHomeDir()
		sockets := socketPaths(runtime.GOOS, home, os.Getenv("XDG_RUNTIME_DIR"))

		var err error
		host, err = daemonHost(runtime.GOOS, sockets)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}

	// API version negotiation lets the SDK talk to older daemons.
	c, err := client.NewClientWithOpts(client.WithHost(host), client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create Docker client for host %q: %v", ErrUnavailable, host, err)
	}
	return &Client{inner: c}, nil
}

// socketPaths lists the Unix sockets a local daemon may listen on, in the
// order they are tried. Empty home or runtimeDir values are skipped.
//
//	linux:  /var/run/docker.sock, $XDG_RUNTIME_DIR/docker.sock (rootless),
//	        ~/.docker/desktop/docker.sock (Docker Desktop)
//	darwin: /var/run/docker.sock, ~/.docker/run/docker.sock
func socketPaths(goos, home, runtimeDir string) []string {
	paths := []string{"/var/run/docker.sock"}
	switch goos {
	case "linux":
		if runtimeDir != "" {
			paths = append(paths, filepath.Join(runtimeDir, "docker.sock"))
		}
		if home != "" {
			paths = append(paths, filepath.Join(home, ".docker", "desktop", "docker.sock"))
		}
	case "darwin":
		if home != "" {
			paths = append(paths, filepath.Join(home, ".docker", "run", "docker.sock"))
		}
	default:
		return nil
	}
	return paths
}

// daemonHost returns the Docker host URI for goos. On Windows the named
// pipe cannot be inspected with os.Stat, so the pipe address is returned
// unconditionally and Ping reports whether the daemon is there. Elsewhere
// the first existing path in sockets wins.
func daemonHost(goos string, sockets []string) (string, error) {
	if goos == "windows" {
		return windowsPipeHost, nil
	}
	if len(sockets) == 0 {
		return "", fmt.Errorf("unsupported platform: %s", goos)
	}
	for _, path := range sockets {
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return "unix://" + path, nil
		}
	}
	return "", fmt.Errorf("Docker socket not found at any of: %v (is Docker running?)", sockets)
}

// Ping verifies that the Docker daemon is reachable within defaultPingTimeout.
func (c *Client) Ping(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, defaultPingTimeout)
	defer cancel()

	if _, err := c.inner.Ping(pingCtx); err != nil {
		return fmt.Errorf("%w: daemon is not responding: %v", ErrUnavailable, err)
	}
	return nil
}

// Close releases the connection. It is safe to call more than once.
func (c *Client) Close() error {
	if c.inner != nil {
		return c.inner.Close()
	}
	return nil
}

// Inner returns the underlying Docker SDK client.
func (c *Client) Inner() *client.Client {
	return c.inner
}
