// Package modal implements toolrunner.Backend atop Modal sandboxes, for
// offloading the CPU-heavy decompile stage off the local machine. Adapted
// from the teacher's internal/environment/modal package: same
// modal-go client/app/sandbox lifecycle, retargeted from "run an agent"
// to "run one of DVH's archive tools."
package modal

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	modal "github.com/modal-labs/libmodal/modal-go"

	"dvh/internal/toolrunner"
)

// Config holds Modal-specific tunables, parsed from the tool profile's
// backend_config map the way the teacher's ProviderConfig is parsed from
// JobEnvironmentConfig.ProviderConfig.
type Config struct {
	AppName string
	CPU     float64
	MemMiB  int
}

// ParseConfig extracts modal settings from a generic config map.
func ParseConfig(raw map[string]any) Config {
	c := Config{CPU: 1, MemMiB: 2048}
	if raw == nil {
		return c
	}
	if v, ok := raw["app_name"].(string); ok {
		c.AppName = v
	}
	if v, ok := raw["cpu"].(float64); ok {
		c.CPU = v
	}
	if v, ok := raw["memory_mib"].(float64); ok {
		c.MemMiB = int(v)
	}
	return c
}

// Backend is the Modal toolrunner.Backend.
type Backend struct {
	client *modal.Client
	config Config
}

// New creates a Modal Backend.
func New(cfg Config) (*Backend, error) {
	client, err := modal.NewClient()
	if err != nil {
		return nil, fmt.Errorf("creating modal client: %w", err)
	}
	return &Backend{client: client, config: cfg}, nil
}

func (b *Backend) Name() string { return "modal" }

func (b *Backend) Prepare(ctx context.Context, image string) (toolrunner.Session, error) {
	appName := b.config.AppName
	if appName == "" {
		appName = "dvh-tools"
	}

	app, err := b.client.Apps.FromName(ctx, appName, &modal.AppFromNameParams{CreateIfMissing: true})
	if err != nil {
		return nil, fmt.Errorf("getting modal app: %w", err)
	}

	if image == "" {
		image = "eclipse-temurin:21-jdk"
	}
	img := b.client.Images.FromRegistry(image, nil)

	cpu := b.config.CPU
	if cpu <= 0 {
		cpu = 1
	}
	mem := b.config.MemMiB
	if mem <= 0 {
		mem = 2048
	}

	slog.Debug("creating modal sandbox for tool run", "app", appName, "image", image, "cpu", cpu, "mem_mib", mem)

	sb, err := b.client.Sandboxes.Create(ctx, app, img, &modal.SandboxCreateParams{
		CPU:       cpu,
		MemoryMiB: mem,
		Timeout:   2 * time.Hour,
	})
	if err != nil {
		return nil, fmt.Errorf("creating modal sandbox: %w", err)
	}

	return &session{sandbox: sb}, nil
}

type session struct {
	sandbox *modal.Sandbox
}

func (s *session) ID() string { return s.sandbox.SandboxID }

func (s *session) CopyIn(ctx context.Context, localPath, sessionPath string) error {
	content, err := os.ReadFile(localPath)
	if err != nil {
		return fmt.Errorf("reading local file: %w", err)
	}
	f, err := s.sandbox.Open(ctx, sessionPath, "w")
	if err != nil {
		return fmt.Errorf("opening sandbox destination: %w", err)
	}
	defer f.Close()
	if _, err := f.Write(content); err != nil {
		return fmt.Errorf("writing to sandbox: %w", err)
	}
	return f.Flush()
}

func (s *session) CopyOut(ctx context.Context, sessionPath, localPath string) error {
	f, err := s.sandbox.Open(ctx, sessionPath, "r")
	if err != nil {
		return fmt.Errorf("opening sandbox source: %w", err)
	}
	defer f.Close()
	content, err := io.ReadAll(f)
	if err != nil {
		return fmt.Errorf("reading sandbox file: %w", err)
	}
	return os.WriteFile(localPath, content, 0o644)
}

func (s *session) Run(ctx context.Context, argv []string, stdout, stderr io.Writer, opts toolrunner.ExecOptions) (int, error) {
	execParams := &modal.SandboxExecParams{Env: opts.Env}
	if opts.Timeout > 0 {
		execParams.Timeout = opts.Timeout
	}
	if opts.WorkDir != "" {
		execParams.Workdir = opts.WorkDir
	}

	proc, err := s.sandbox.Exec(ctx, argv, execParams)
	if err != nil {
		return -1, fmt.Errorf("executing in sandbox: %w", err)
	}

	done := make(chan struct{}, 2)
	go func() { io.Copy(orDiscard(stdout), proc.Stdout); done <- struct{}{} }()
	go func() { io.Copy(orDiscard(stderr), proc.Stderr); done <- struct{}{} }()
	<-done
	<-done

	code, err := proc.Wait(ctx)
	if err != nil {
		return -1, fmt.Errorf("waiting for sandbox process: %w", err)
	}
	return code, nil
}

func orDiscard(w io.Writer) io.Writer {
	if w == nil {
		return io.Discard
	}
	return w
}

func (s *session) Close(ctx context.Context) error {
	return s.sandbox.Terminate(ctx)
}
