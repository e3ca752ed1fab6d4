// Package local implements toolrunner.Backend by running tools directly
// on the host — the default backend and the one spec.md §5/§6 actually
// describes: no container, no copying, since the tool's working
// directory already is the local filesystem.
package local

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"

	"dvh/internal/toolrunner"
)

// Backend is the local toolrunner.Backend.
type Backend struct{}

// New creates a local Backend.
func New() *Backend { return &Backend{} }

func (b *Backend) Name() string { return "local" }

// Prepare ignores image: there is nothing to provision locally.
func (b *Backend) Prepare(ctx context.Context, image string) (toolrunner.Session, error) {
	return &session{}, nil
}

type session struct{}

func (s *session) ID() string { return "local" }

// CopyIn/CopyOut are no-ops when both paths are the same, since the
// session and the host share one filesystem; otherwise they copy a single
// regular file on the host (directories are rejected).
func (s *session) CopyIn(ctx context.Context, localPath, sessionPath string) error {
	if localPath == sessionPath {
		return nil
	}
	return copyPath(localPath, sessionPath)
}

func (s *session) CopyOut(ctx context.Context, sessionPath, localPath string) error {
	if sessionPath == localPath {
		return nil
	}
	return copyPath(sessionPath, localPath)
}

func copyPath(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("stat %s: %w", src, err)
	}
	if info.IsDir() {
		return fmt.Errorf("directory copy not supported for local session: %s", src)
	}
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0o644)
}

func (s *session) Run(ctx context.Context, argv []string, stdout, stderr io.Writer, opts toolrunner.ExecOptions) (int, error) {
	if len(argv) == 0 {
		return -1, fmt.Errorf("empty argv")
	}
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	if opts.WorkDir != "" {
		cmd.Dir = opts.WorkDir
	}
	for k, v := range opts.Env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}
	if len(cmd.Env) > 0 {
		cmd.Env = append(os.Environ(), cmd.Env...)
	}

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
	return -1, fmt.Errorf("running tool: %w", err)
}

func (s *session) Close(ctx context.Context) error { return nil }
