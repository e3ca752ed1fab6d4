// Package toolrunner abstracts "run an external black-box tool against a
// set of input files and collect its output files" the way the teacher's
// internal/environment package abstracts "run an agent against a task
// inside a sandbox" — Backend is the adapted Provider, Session is the
// adapted Environment. DVH's four external collaborators (decompiler,
// remap tool, class-merge tool, bundler-extract tool) each run through a
// Session obtained from whichever Backend the operator's tool profile
// selects (local by default; docker/modal/apple for hermetic or offloaded
// runs).
package toolrunner

import (
	"context"
	"io"
	"time"
)

// ExecOptions configures a single tool invocation.
type ExecOptions struct {
	Env     map[string]string
	Timeout time.Duration
	WorkDir string
}

// Session is a live handle a Backend hands out for running one tool
// invocation (or a short sequence of them sharing the same sandbox).
type Session interface {
	// ID identifies this session for logging.
	ID() string

	// CopyIn stages a local file at sessionPath inside the session. The
	// local and modal backends copy single files only.
	CopyIn(ctx context.Context, localPath, sessionPath string) error

	// CopyOut retrieves a file from the session to a local path. The local
	// and modal backends copy single files only.
	CopyOut(ctx context.Context, sessionPath, localPath string) error

	// Run executes a command inside the session, streaming stdout/stderr
	// to the given writers, and returns its exit code.
	Run(ctx context.Context, argv []string, stdout, stderr io.Writer, opts ExecOptions) (int, error)

	// Close tears the session down and releases its resources.
	Close(ctx context.Context) error
}

// Backend is a factory for Sessions. Implementations: local (default),
// docker, modal, apple.
type Backend interface {
	// Name identifies the backend ("local", "docker", "modal", "apple").
	Name() string

	// Prepare returns a Session ready to run tool invocations. image, if
	// non-empty, names a sandbox image to provision (ignored by the local
	// backend, which runs directly on the host).
	Prepare(ctx context.Context, image string) (Session, error)
}
