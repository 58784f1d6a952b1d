// Package docker extracts PDF text with pdftotext inside throwaway
// containers. The document is streamed over exec stdin, so nothing on the
// host is mounted into the sandbox.
package docker

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"

	"github.com/sakif/videohub/internal/extract"
)

var extractCmd = []string{"sh", "-c", "cat > /tmp/in.pdf && pdftotext -layout -enc UTF-8 /tmp/in.pdf -"}

// Extractor implements extract.Extractor using Docker.
type Extractor struct {
	cli    *client.Client
	config Config
	logger *slog.Logger
	pool   *Pool
}

var _ extract.Extractor = (*Extractor)(nil)

// New connects to the daemon from the environment, pulls the image and
// starts the pool.
func New(cfg Config, logger *slog.Logger) (*Extractor, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	logger.Info("ensuring docker image is available", slog.String("image", cfg.Image))
	reader, err := cli.ImagePull(ctx, cfg.Image, image.PullOptions{})
	if err != nil {
		cli.Close()
		return nil, fmt.Errorf("failed to pull image: %w", err)
	}
	defer reader.Close()
	// Drain to block until the pull completes.
	_, _ = io.Copy(io.Discard, reader)
	logger.Info("docker image is ready")

	e := &Extractor{
		cli:    cli,
		config: cfg,
		logger: logger,
		pool:   NewPool(cli, cfg, logger),
	}
	e.pool.Start()
	return e, nil
}

func (e *Extractor) Close() error {
	e.pool.Stop()
	return e.cli.Close()
}

// ExtractPages runs pdftotext on the file at path in a pooled container.
func (e *Extractor) ExtractPages(ctx context.Context, path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("docker: reading %s: %w", path, err)
	}

	runCtx, cancel := context.WithTimeout(ctx, e.config.Timeout)
	defer cancel()

	containerID, err := e.pool.Acquire(runCtx)
	if err != nil {
		return nil, fmt.Errorf("failed to get container from pool: %w", err)
	}
	defer e.pool.Release(containerID)

	execResp, err := e.cli.ContainerExecCreate(runCtx, containerID, container.ExecOptions{
		AttachStdin:  true,
		AttachStdout: true,
		AttachStderr: true,
		Cmd:          extractCmd,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create exec: %w", err)
	}

	attachResp, err := e.cli.ContainerExecAttach(runCtx, execResp.ID, container.ExecStartOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to attach to exec: %w", err)
	}
	defer attachResp.Close()

	var stdout, stderr bytes.Buffer
	done := make(chan error, 1)
	go func() {
		_, err := stdcopy.StdCopy(&stdout, &stderr, attachResp.Reader)
		done <- err
	}()

	if _, err := attachResp.Conn.Write(data); err != nil {
		return nil, fmt.Errorf("docker: streaming pdf: %w", err)
	}
	if err := attachResp.CloseWrite(); err != nil {
		return nil, fmt.Errorf("docker: closing stdin: %w", err)
	}

	select {
	case err := <-done:
		if err != nil {
			return nil, fmt.Errorf("docker: reading output: %w", err)
		}
	case <-runCtx.Done():
		return nil, fmt.Errorf("docker: extraction timed out after %s", e.config.Timeout)
	}

	inspect, err := e.cli.ContainerExecInspect(runCtx, execResp.ID)
	if err != nil {
		return nil, fmt.Errorf("docker: inspecting exec: %w", err)
	}
	if inspect.ExitCode != 0 {
		return nil, fmt.Errorf("pdftotext exited %d: %s", inspect.ExitCode, strings.TrimSpace(stderr.String()))
	}

	return splitPages(stdout.String()), nil
}

// splitPages splits pdftotext output on form feeds. pdftotext ends every
// page with one, so the trailing empty element is dropped.
func splitPages(out string) []string {
	if out == "" {
		return nil
	}
	pages := strings.Split(out, "\f")
	if pages[len(pages)-1] == "" {
		pages = pages[:len(pages)-1]
	}
	return pages
}
