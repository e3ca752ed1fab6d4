// Package apple implements toolrunner.Backend atop macOS's native
// "container" CLI. Adapted from the teacher's internal/environment/apple
// package, which drives the same CLI for agent sandboxes.
package apple

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"dvh/internal/toolrunner"
)

// Backend is the Apple Container toolrunner.Backend.
type Backend struct{}

// New creates an apple Backend, failing fast if the container CLI is
// unavailable.
func New() (*Backend, error) {
	if _, err := exec.LookPath("container"); err != nil {
		return nil, fmt.Errorf("apple container CLI not found: install from https://github.com/apple/container-tools")
	}
	return &Backend{}, nil
}

func (b *Backend) Name() string { return "apple" }

func (b *Backend) Prepare(ctx context.Context, image string) (toolrunner.Session, error) {
	if image == "" {
		image = "eclipse-temurin:21-jdk"
	}
	name := "dvh-tool-" + uuid.NewString()

	cmd := exec.CommandContext(ctx, "container", "run", "-d", "--name", name, image, "sleep", "infinity")
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("starting apple container session: %w", err)
	}
	return &session{name: name}, nil
}

type session struct{ name string }

func (s *session) ID() string { return s.name }

func (s *session) CopyIn(ctx context.Context, localPath, sessionPath string) error {
	dstDir := filepath.Dir(sessionPath)
	if dstDir != "/" && dstDir != "." {
		if err := exec.CommandContext(ctx, "container", "exec", s.name, "mkdir", "-p", dstDir).Run(); err != nil {
			return fmt.Errorf("creating directory %s in session: %w", dstDir, err)
		}
	}
	cmd := exec.CommandContext(ctx, "container", "cp", localPath, fmt.Sprintf("%s:%s", s.name, sessionPath))
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("copying into session: %w", err)
	}
	return nil
}

func (s *session) CopyOut(ctx context.Context, sessionPath, localPath string) error {
	cmd := exec.CommandContext(ctx, "container", "cp", fmt.Sprintf("%s:%s", s.name, sessionPath), localPath)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("copying out of session: %w", err)
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
	if opts.WorkDir != "" {
		args = append(args, "-w", opts.WorkDir)
	}
	args = append(args, s.name)
	args = append(args, argv...)

	cmd := exec.CommandContext(ctx, "container", args...)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	err := cmd.Run()
	if err == nil {
		return 0, nil
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		return exitErr.ExitCode(), nil
	}
	return -1, fmt.Errorf("executing in session: %w", err)
}

func (s *session) Close(ctx context.Context) error {
	err := exec.CommandContext(ctx, "container", "rm", "-f", s.name).Run()
	if err != nil && !strings.Contains(err.Error(), "not found") {
		return fmt.Errorf("removing session: %w", err)
	}
	return nil
}
