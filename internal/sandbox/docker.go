package sandbox

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"go.uber.org/zap"
)

// containerAPI is the subset of the Docker client the executor drives.
type containerAPI interface {
	ImagePull(ctx context.Context, ref string, options image.PullOptions) (io.ReadCloser, error)
	ContainerCreate(ctx context.Context, config *container.Config, hostConfig *container.HostConfig, networkingConfig *network.NetworkingConfig, platform *ocispec.Platform, containerName string) (container.CreateResponse, error)
	ContainerStart(ctx context.Context, containerID string, options container.StartOptions) error
	ContainerLogs(ctx context.Context, containerID string, options container.LogsOptions) (io.ReadCloser, error)
	ContainerWait(ctx context.Context, containerID string, condition container.WaitCondition) (<-chan container.WaitResponse, <-chan error)
	ContainerRemove(ctx context.Context, containerID string, options container.RemoveOptions) error
	Close() error
}

var _ containerAPI = (*client.Client)(nil)

// DockerOptions tunes the container backend.
type DockerOptions struct {
	Image       string
	Interpreter string
	Pull        bool
	Network     bool
	MemoryMB    int
}

// DockerExecutor runs each script in a fresh, removed-after-use container with
// all capabilities dropped. The same bootstrap enforces the capability set.
type DockerExecutor struct {
	api       containerAPI
	opts      DockerOptions
	bootstrap string
	logger    *zap.Logger

	pullMu sync.Mutex
	pulled bool
}

// NewDockerExecutor connects to the Docker daemon described by the environment.
func NewDockerExecutor(opts DockerOptions, caps CapabilitySet, logger *zap.Logger) (*DockerExecutor, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("docker client: %w", err)
	}
	return newDockerExecutor(cli, opts, caps, logger)
}

func newDockerExecutor(api containerAPI, opts DockerOptions, caps CapabilitySet, logger *zap.Logger) (*DockerExecutor, error) {
	if opts.Image == "" {
		return nil, errors.New("docker image is required")
	}
	if opts.Interpreter == "" {
		opts.Interpreter = "python"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	boot, err := renderBootstrap(caps)
	if err != nil {
		return nil, err
	}
	return &DockerExecutor{api: api, opts: opts, bootstrap: boot, logger: logger}, nil
}

// Close releases the Docker client.
func (d *DockerExecutor) Close() error {
	return d.api.Close()
}

// Execute runs code inside a container and waits for it to exit.
func (d *DockerExecutor) Execute(ctx context.Context, code string, streams Streams) (Result, error) {
	if res, done := precheck(code); done {
		return res, nil
	}
	if err := d.ensureImage(ctx); err != nil {
		return Result{}, err
	}

	hostCfg := &container.HostConfig{
		CapDrop:     []string{"ALL"},
		SecurityOpt: []string{"no-new-privileges"},
	}
	if d.opts.MemoryMB > 0 {
		hostCfg.Resources.Memory = int64(d.opts.MemoryMB) * 1024 * 1024
	}

	created, err := d.api.ContainerCreate(ctx, &container.Config{
		Image:           d.opts.Image,
		Cmd:             []string{d.opts.Interpreter, "-u", "-c", d.bootstrap, code},
		NetworkDisabled: !d.opts.Network,
		Labels:          map[string]string{"tta.sandbox": "true"},
	}, hostCfg, nil, nil, "")
	if err != nil {
		return Result{}, fmt.Errorf("create container: %w", err)
	}
	id := created.ID
	defer d.remove(id)

	start := time.Now()
	if err := d.api.ContainerStart(ctx, id, container.StartOptions{}); err != nil {
		return Result{}, fmt.Errorf("start container: %w", err)
	}

	logs, err := d.api.ContainerLogs(ctx, id, container.LogsOptions{ShowStdout: true, ShowStderr: true, Follow: true})
	if err != nil {
		return Result{}, fmt.Errorf("attach logs: %w", err)
	}
	status := newStatusWriter(streams.stderr())
	_, copyErr := stdcopy.StdCopy(streams.stdout(), status, logs)
	logs.Close()
	_ = status.Flush()

	waitCh, errCh := d.api.ContainerWait(ctx, id, container.WaitConditionNotRunning)
	var exitCode int
	select {
	case <-ctx.Done():
		return Result{}, ctx.Err()
	case err := <-errCh:
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		return Result{}, fmt.Errorf("wait container: %w", err)
	case resp := <-waitCh:
		if resp.Error != nil && resp.Error.Message != "" {
			return Result{}, fmt.Errorf("wait container: %s", resp.Error.Message)
		}
		exitCode = int(resp.StatusCode)
	}
	if copyErr != nil && status.Status() == nil {
		d.logger.Warn("container log stream ended early", zap.String("container", shortID(id)), zap.Error(copyErr))
	}

	res := resultFrom(status.Status(), exitCode, time.Since(start))
	warnUnavailable(d.logger, "docker", res)
	d.logger.Debug("sandbox execution finished",
		zap.String("backend", "docker"),
		zap.String("container", shortID(id)),
		zap.String("outcome", string(res.Outcome)),
		zap.String("kind", res.Kind),
		zap.Int("exit_code", exitCode),
	)
	return res, nil
}

func (d *DockerExecutor) ensureImage(ctx context.Context) error {
	if !d.opts.Pull {
		return nil
	}
	d.pullMu.Lock()
	defer d.pullMu.Unlock()
	if d.pulled {
		return nil
	}

	d.logger.Info("pulling sandbox image", zap.String("image", d.opts.Image))
	reader, err := d.api.ImagePull(ctx, d.opts.Image, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("pull image %s: %w", d.opts.Image, err)
	}
	defer reader.Close()
	if _, err := io.Copy(io.Discard, reader); err != nil {
		return fmt.Errorf("pull image %s: %w", d.opts.Image, err)
	}
	d.pulled = true
	return nil
}

func (d *DockerExecutor) remove(id string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := d.api.ContainerRemove(ctx, id, container.RemoveOptions{Force: true}); err != nil {
		d.logger.Warn("remove container", zap.String("container", shortID(id)), zap.Error(err))
	}
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
