// Package docker implements toolrunner.Backend by running tools inside a
// container, for hermetic/reproducible decompilation across hosts.
// Adapted from the teacher's internal/environment/docker package: same
// docker CLI invocations, retargeted from "run an agent in a sandbox" to
// "run a tool against copied-in archive files."
package docker

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"dvh/internal/toolrunner"
)

// Backend is the docker toolrunner.Backend.
type Backend struct{}

// New creates a docker Backend.
func New() *Backend { return &Backend{} }

func (b *Backend) Name() string { return "docker" }

// Prepare starts a long-lived container from image (or a stock JDK image
// if image is empty) that the session's Run calls execute into via
// "docker exec".
func (b *Backend) Prepare(ctx context.Context, image string) (toolrunner.Session, error) {
	if image == "" {
		image = "eclipse-temurin:21-jdk"
	}

	containerID := "dvh-tool-" + uuid.NewString()
	args := []string{"run", "-d", "--name", containerID, image, "sleep", "infinity"}

	cmd := exec.CommandContext(ctx, "docker", args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("starting docker session: %w: %s", err, stderr.String())
	}

	slog.Debug("docker tool session started", "container", containerID, "image", image)
	return &session{containerID: containerID}, nil
}

type session struct {
	containerID string
}

func (s *session) ID() string { return s.containerID }

func (s *session) CopyIn(ctx context.Context, localPath, sessionPath string) error {
	dstDir := filepath.Dir(sessionPath)
	if dstDir != "/" && dstDir != "." {
		mkdir := exec.CommandContext(ctx, "docker", "exec", s.containerID, "mkdir", "-p", dstDir)
		if err := mkdir.Run(); err != nil {
			return fmt.Errorf("creating directory %s in session: %w", dstDir, err)
		}
	}
	cmd := exec.CommandContext(ctx, "docker", "cp", localPath, fmt.Sprintf("%s:%s", s.containerID, sessionPath))
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("copying into session: %w: %s", err, stderr.String())
	}
	return nil
}

func (s *session) CopyOut(ctx context.Context, sessionPath, localPath string) error {
	if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
		return fmt.Errorf("creating local directory: %w", err)
	}
	cmd := exec.CommandContext(ctx, "docker", "cp", fmt.Sprintf("%s:%s", s.containerID, sessionPath), localPath)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("copying out of session: %w: %s", err, stderr.String())
	}
	return nil
}

func (s *session) Run(ctx context.Context, argv []string, stdout, stderr io.Writer, opts toolrunner.ExecOptions) (int, error) {
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	args := []string{"exec"}
	for k, v := range opts.Env {
		args = append(args, "-e", fmt.Sprintf("%s=%s", k, v))
	}
	if opts.WorkDir != "" {
		args = append(args, "-w", opts.WorkDir)
	}
	args = append(args, s.containerID)
	args = append(args, argv...)

	cmd := exec.CommandContext(ctx, "docker", args...)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	err := cmd.Run()
	if err == nil {
		return 0, nil
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		return exitErr.ExitCode(), nil
	}
	if ctx.Err() == context.DeadlineExceeded {
		return -1, fmt.Errorf("tool invocation timed out")
	}
	return -1, fmt.Errorf("executing in session: %w", err)
}

func (s *session) Close(ctx context.Context) error {
	cmd := exec.CommandContext(ctx, "docker", "rm", "-f", s.containerID)
	if err := cmd.Run(); err != nil {
		if !strings.Contains(err.Error(), "No such container") {
			return fmt.Errorf("removing session container: %w", err)
		}
	}
	return nil
}
