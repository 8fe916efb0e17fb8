package docker

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/pkg/stdcopy"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/shinji-kodama/ink-release/internal/builder"
	"github.com/shinji-kodama/ink-release/internal/ctxlog"
)

// containerAPI is the subset of the Docker SDK client used by
// ContainerRunner. *client.Client satisfies it.
type containerAPI interface {
	ImageList(ctx context.Context, options image.ListOptions) ([]image.Summary, error)
	ImagePull(ctx context.Context, refStr string, options image.PullOptions) (io.ReadCloser, error)
	ContainerCreate(ctx context.Context, config *container.Config, hostConfig *container.HostConfig, networkingConfig *network.NetworkingConfig, platform *ocispec.Platform, containerName string) (container.CreateResponse, error)
	ContainerStart(ctx context.Context, containerID string, options container.StartOptions) error
	ContainerWait(ctx context.Context, containerID string, condition container.WaitCondition) (<-chan container.WaitResponse, <-chan error)
	ContainerLogs(ctx context.Context, containerID string, options container.LogsOptions) (io.ReadCloser, error)
	ContainerRemove(ctx context.Context, containerID string, options container.RemoveOptions) error
	ContainerList(ctx context.Context, options container.ListOptions) ([]container.Summary, error)
}

// ContainerRunner is a builder.Runner that executes every command in a new
// container from Image. The configured directories are bind-mounted at the
// same absolute paths, so commands built for the host run unchanged.
type ContainerRunner struct {
	// api is the Docker client, or a fake in tests.
	api containerAPI

	// image is the build image reference, e.g. "ghcr.io/acme/cmake:3.29".
	image string

	// runID labels the containers so Cleanup can find them.
	runID string

	// mounts bind the source and build trees at their host paths.
	mounts []mount.Mount

	// user is the "uid:gid" the build runs as; empty means the image default.
	user string

	// pullOnce guards the image check; pullErr is its sticky result.
	pullOnce sync.Once
	pullErr  error
}

// RunnerOption customizes a ContainerRunner.
type RunnerOption func(*ContainerRunner)

// WithRunID labels every container with the pipeline run ID.
func WithRunID(id string) RunnerOption {
	return func(r *ContainerRunner) { r.runID = id }
}

// WithUser sets the "uid:gid" the build runs as. On Linux the default is the
// invoking user, so files written to the build tree stay owned by them.
func WithUser(user string) RunnerOption {
	return func(r *ContainerRunner) { r.user = user }
}

// NewContainerRunner creates a runner using the client's Docker connection.
// dirs are bind-mounted read-write; nested directories share their
// ancestor's mount.
func NewContainerRunner(c *Client, imageRef string, dirs []string, opts ...RunnerOption) *ContainerRunner {
	return newContainerRunner(c.Inner(), imageRef, dirs, opts...)
}

func newContainerRunner(api containerAPI, imageRef string, dirs []string, opts ...RunnerOption) *ContainerRunner {
	r := &ContainerRunner{
		api:    api,
		image:  imageRef,
		mounts: bindMounts(dirs),
	}
	// Docker Desktop on macOS and Windows maps file ownership itself.
	if runtime.GOOS == "linux" {
		r.user = fmt.Sprintf("%d:%d", os.Getuid(), os.Getgid())
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run implements builder.Runner. The container is always removed, whatever
// the outcome.
func (r *ContainerRunner) Run(ctx context.Context, cmd builder.Command) (*builder.Result, error) {
	logger := ctxlog.FromContext(ctx)

	// Step 1: Make sure the image is present. Only the first call pulls.
	if err := r.ensureImage(ctx); err != nil {
		return nil, err
	}

	// Step 2: Create the container. The command runs directly, without a
	// shell, in the same working directory it would use on the host.
	cfg := &container.Config{
		Image:      r.image,
		Cmd:        append([]string{cmd.Name}, cmd.Args...),
		WorkingDir: cmd.Dir,
		User:       r.user,
		Labels:     BuildLabels(r.runID, cmd.String()),
	}
	hostCfg := &container.HostConfig{Mounts: r.mounts}

	created, err := r.api.ContainerCreate(ctx, cfg, hostCfg, nil, nil, "")
	if err != nil {
		return nil, fmt.Errorf("failed to create build container from %q: %w", r.image, err)
	}
	logger.Debug("Created build container", "id", shortID(created.ID), "image", r.image)

	defer func() {
		// The run context may already be cancelled; removal must still happen.
		rmErr := r.api.ContainerRemove(context.WithoutCancel(ctx), created.ID, container.RemoveOptions{Force: true})
		if rmErr != nil {
			logger.Warn("Failed to remove build container", "id", shortID(created.ID), "error", rmErr)
		}
	}()

	// Step 3: Start and wait for the command to exit.
	if err := r.api.ContainerStart(ctx, created.ID, container.StartOptions{}); err != nil {
		return nil, fmt.Errorf("failed to start build container: %w", err)
	}

	statusCh, errCh := r.api.ContainerWait(ctx, created.ID, container.WaitConditionNotRunning)
	var exitCode int64
	select {
	case err := <-errCh:
		return nil, fmt.Errorf("failed waiting for build container: %w", err)
	case status := <-statusCh:
		if status.Error != nil && status.Error.Message != "" {
			return nil, fmt.Errorf("build container failed: %s", status.Error.Message)
		}
		exitCode = status.StatusCode
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	// Step 4: Collect output. Logs are read after exit, so they are complete.
	result, err := r.collectLogs(ctx, created.ID)
	if err != nil {
		return nil, err
	}
	result.ExitCode = int(exitCode)

	if exitCode != 0 {
		return result, &builder.ExitError{Command: cmd, ExitCode: result.ExitCode, Stderr: result.Stderr}
	}
	return result, nil
}

// collectLogs demultiplexes the container's stdout and stderr streams.
func (r *ContainerRunner) collectLogs(ctx context.Context, id string) (*builder.Result, error) {
	logs, err := r.api.ContainerLogs(ctx, id, container.LogsOptions{ShowStdout: true, ShowStderr: true})
	if err != nil {
		return nil, fmt.Errorf("failed to read build container logs: %w", err)
	}
	defer func() { _ = logs.Close() }()

	// Without a TTY the log stream multiplexes stdout and stderr frames.
	var stdout, stderr strings.Builder
	if _, err := stdcopy.StdCopy(&stdout, &stderr, logs); err != nil {
		return nil, fmt.Errorf("failed to decode build container logs: %w", err)
	}
	return &builder.Result{Stdout: stdout.String(), Stderr: stderr.String()}, nil
}

// ensureImage pulls the build image once per runner if it is not present
// locally.
func (r *ContainerRunner) ensureImage(ctx context.Context) error {
	r.pullOnce.Do(func() {
		logger := ctxlog.FromContext(ctx)

		// A local image is used as is, even if the registry has a newer one.
		images, err := r.api.ImageList(ctx, image.ListOptions{
			Filters: filters.NewArgs(filters.Arg("reference", r.image)),
		})
		if err != nil {
			r.pullErr = fmt.Errorf("failed to list images: %w", err)
			return
		}
		if len(images) > 0 {
			return
		}

		logger.Info("Pulling build image", "image", r.image)
		rc, err := r.api.ImagePull(ctx, r.image, image.PullOptions{})
		if err != nil {
			r.pullErr = fmt.Errorf("failed to pull image %q: %w", r.image, err)
			return
		}
		defer func() { _ = rc.Close() }()

		// The pull only completes once the progress stream is drained.
		if _, err := io.Copy(io.Discard, rc); err != nil {
			r.pullErr = fmt.Errorf("failed to pull image %q: %w", r.image, err)
		}
	})
	return r.pullErr
}

// Cleanup force-removes any container still labeled with this runner's run
// ID. It returns the number of containers removed.
func (r *ContainerRunner) Cleanup(ctx context.Context) (int, error) {
	if r.runID == "" {
		return 0, nil
	}

	leftovers, err := r.api.ContainerList(ctx, container.ListOptions{All: true, Filters: RunFilter(r.runID)})
	if err != nil {
		return 0, fmt.Errorf("failed to list build containers: %w", err)
	}

	// Stop at the first failure; the count says how far it got.
	removed := 0
	for _, c := range leftovers {
		if err := r.api.ContainerRemove(ctx, c.ID, container.RemoveOptions{Force: true}); err != nil {
			return removed, fmt.Errorf("failed to remove container %s: %w", shortID(c.ID), err)
		}
		removed++
	}
	return removed, nil
}

// bindMounts converts directories to bind mounts at identical paths.
// Directories nested inside another listed directory are dropped, since
// Docker rejects duplicate mount points and the parent mount already
// exposes them.
func bindMounts(dirs []string) []mount.Mount {
	// Sorting puts every parent before its children, so one pass with the
	// kept list is enough.
	cleaned := make([]string, 0, len(dirs))
	for _, d := range dirs {
		if d == "" {
			continue
		}
		cleaned = append(cleaned, filepath.Clean(d))
	}
	sort.Strings(cleaned)

	var mounts []mount.Mount
	var kept []string
	for _, d := range cleaned {
		if containedIn(d, kept) {
			continue
		}
		kept = append(kept, d)
		mounts = append(mounts, mount.Mount{Type: mount.TypeBind, Source: d, Target: filepath.ToSlash(d)})
	}
	return mounts
}

// containedIn reports whether dir equals or lies below one of parents.
func containedIn(dir string, parents []string) bool {
	for _, p := range parents {
		if dir == p {
			return true
		}
		rel, err := filepath.Rel(p, dir)
		if err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

// shortID abbreviates a container ID to the 12 characters docker ps shows.
func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
