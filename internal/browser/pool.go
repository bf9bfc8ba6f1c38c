package browser

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"
	"go.uber.org/atomic"

	"github.com/shehryarbajwa/regpool/pkg/models"
)

// DefaultImage is the self-hosted Chrome image
const DefaultImage = "browserless/chrome:latest"

const (
	labelManagedBy = "managed-by"
	labelName      = "regpool.name"
	labelSeq       = "regpool.seq"
	cdpPort        = "3000/tcp"
)

// DockerService hosts one browserless Chrome container per window. It is the
// self-hosted alternative to BitBrowser. Chrome's --proxy-server flag takes
// no credentials, so only unauthenticated socks5 proxies are supported.
type DockerService struct {
	client *client.Client
	image  string
	seq    *atomic.Int64
}

// NewDockerService connects to the docker daemon from the environment
func NewDockerService(image string) (*DockerService, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}
	if image == "" {
		image = DefaultImage
	}

	return &DockerService{
		client: cli,
		image:  image,
		seq:    atomic.NewInt64(0),
	}, nil
}

// Create creates (but does not start) a container for the window.
// Egress proxies are passed to Chrome as a launch flag.
func (d *DockerService) Create(ctx context.Context, req models.CreateBrowserRequest) (string, error) {
	if p := req.Proxy; p != nil && (p.User != "" || p.Password != "") {
		return "", ErrProxyAuth
	}

	seq := d.seq.Inc()
	env := []string{
		"CONNECTION_TIMEOUT=-1",
		"MAX_CONCURRENT_SESSIONS=1",
		"PREBOOT_CHROME=true",
		"KEEP_ALIVE=true",
		"EXIT_ON_HEALTH_FAILURE=false",
	}
	if p := req.Proxy; p != nil {
		env = append(env, fmt.Sprintf("DEFAULT_LAUNCH_ARGS=[\"--proxy-server=socks5://%s:%d\"]", p.Host, p.Port))
	}

	containerConfig := &container.Config{
		Image: d.image,
		Labels: map[string]string{
			labelManagedBy: "regpool",
			labelName:      req.Name,
			labelSeq:       strconv.FormatInt(seq, 10),
		},
		Env: env,
		ExposedPorts: nat.PortSet{
			cdpPort: struct{}{},
		},
	}

	hostConfig := &container.HostConfig{
		PortBindings: nat.PortMap{
			cdpPort: []nat.PortBinding{
				{
					HostIP:   "0.0.0.0",
					HostPort: "0",
				},
			},
		},
	}

	resp, err := d.client.ContainerCreate(ctx, containerConfig, hostConfig, nil, nil, fmt.Sprintf("regpool-%d", seq))
	if err != nil {
		return "", fmt.Errorf("%w: failed to create container: %v", ErrRemote, err)
	}
	return resp.ID, nil
}

// Open starts the container and waits until Chrome answers on its CDP port
func (d *DockerService) Open(ctx context.Context, id string) (string, error) {
	if err := d.client.ContainerStart(ctx, id, container.StartOptions{}); err != nil {
		return "", fmt.Errorf("%w: failed to start container: %v", ErrRemote, err)
	}

	inspect, err := d.client.ContainerInspect(ctx, id)
	if err != nil {
		return "", fmt.Errorf("failed to inspect container: %w", err)
	}

	bindings := inspect.NetworkSettings.Ports[cdpPort]
	if len(bindings) == 0 {
		return "", fmt.Errorf("%w: container %s has no published CDP port", ErrRemote, id)
	}
	port := bindings[0].HostPort

	if err := waitForBrowserReady(ctx, port); err != nil {
		return "", fmt.Errorf("browser failed to become ready: %w", err)
	}

	return fmt.Sprintf("ws://localhost:%s", port), nil
}

// Close stops and removes the container
func (d *DockerService) Close(ctx context.Context, id string) error {
	timeout := 10
	if err := d.client.ContainerStop(ctx, id, container.StopOptions{Timeout: &timeout}); err != nil {
		return fmt.Errorf("failed to stop container: %w", err)
	}

	if err := d.client.ContainerRemove(ctx, id, container.RemoveOptions{}); err != nil {
		return fmt.Errorf("failed to remove container: %w", err)
	}
	return nil
}

// Detail reads the window name and sequence back from the container labels
func (d *DockerService) Detail(ctx context.Context, id string) (Detail, error) {
	inspect, err := d.client.ContainerInspect(ctx, id)
	if err != nil {
		return Detail{}, fmt.Errorf("failed to inspect container: %w", err)
	}

	labels := inspect.Config.Labels
	seq, _ := strconv.Atoi(labels[labelSeq])
	return Detail{
		ID:   id,
		Name: labels[labelName],
		Seq:  seq,
	}, nil
}

// EnsureImage pulls the Chrome image when it is not present locally
func (d *DockerService) EnsureImage(ctx context.Context) error {
	images, err := d.client.ImageList(ctx, image.ListOptions{})
	if err != nil {
		return err
	}

	for _, img := range images {
		for _, tag := range img.RepoTags {
			if tag == d.image {
				return nil
			}
		}
	}

	reader, err := d.client.ImagePull(ctx, d.image, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("failed to pull image: %w", err)
	}
	defer reader.Close()

	_, err = io.Copy(io.Discard, reader)
	return err
}

// Shutdown releases the docker client
func (d *DockerService) Shutdown() error {
	return d.client.Close()
}

// waitForBrowserReady polls /json/version until Chrome answers
func waitForBrowserReady(ctx context.Context, port string) error {
	url := fmt.Sprintf("http://localhost:%s/json/version", port)
	const maxRetries = 20

	for i := 0; i < maxRetries; i++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		resp, err := http.DefaultClient.Do(req)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		} else if ctx.Err() != nil {
			return ctx.Err()
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(500 * time.Millisecond):
		}
	}

	return fmt.Errorf("browser did not become ready after %d retries", maxRetries)
}
