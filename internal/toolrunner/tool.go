package toolrunner

import (
	"context"
	"fmt"
	"io"
	"path"
	"path/filepath"
)

// Tool is one of DVH's external black-box collaborators (decompiler,
// remap tool, class-merge tool, bundler-extract tool). Its argument list
// is part of its stage's fingerprint per spec.md §9; Invoke is the single
// choke point every stage uses to run it, regardless of which Backend the
// operator's tool profile selected.
type Tool struct {
	// Name is the dependency-hash-table key for this tool's own declared
	// hash (spec.md §4.8's "declared hashes of the decompiler").
	Name string
	// Plugins are additional dependency-hash-table keys this tool ships
	// alongside itself (spec.md §4.8's decompiler plugins).
	Plugins []string
	// Image is the sandbox image Backend.Prepare provisions when the
	// backend is not "local" (ignored by the local backend).
	Image string

	Backend Backend
}

// Invoke runs argv[0] with the remaining argv as arguments against a
// fresh session from the tool's backend, copying inputFiles in (localPath
// -> sessionPath) beforehand and outputFiles out (sessionPath ->
// localPath) afterward on success. For the local backend, sessionPath is
// used verbatim as a host path, so callers can pass host paths directly
// for both sides.
func (t *Tool) Invoke(ctx context.Context, argv []string, inputFiles, outputFiles map[string]string, stdout, stderr io.Writer, opts ExecOptions) (int, error) {
	session, err := t.Backend.Prepare(ctx, t.Image)
	if err != nil {
		return -1, fmt.Errorf("preparing %s session for %s: %w", t.Backend.Name(), t.Name, err)
	}
	defer session.Close(ctx)

	for local, inSession := range inputFiles {
		if err := session.CopyIn(ctx, local, inSession); err != nil {
			return -1, fmt.Errorf("staging input %s: %w", local, err)
		}
	}

	code, err := session.Run(ctx, argv, stdout, stderr, opts)
	if err != nil {
		return code, err
	}

	if code == 0 {
		for inSession, local := range outputFiles {
			if err := session.CopyOut(ctx, inSession, local); err != nil {
				return code, fmt.Errorf("retrieving output %s: %w", inSession, err)
			}
		}
	}
	return code, nil
}

// SandboxPath maps a local filename into the conventional sandbox work
// directory, for backends that need a distinct in-session path.
func SandboxPath(localPath string) string {
	return path.Join("/work", filepath.Base(localPath))
}

// StageIn builds the inputFiles map Invoke expects for a set of local
// paths: empty for the local backend (nothing to stage), one entry per
// path mapping host path -> sandbox path otherwise.
func StageIn(backend Backend, localPaths ...string) map[string]string {
	if backend.Name() == "local" {
		return nil
	}
	m := make(map[string]string, len(localPaths))
	for _, p := range localPaths {
		m[p] = SandboxPath(p)
	}
	return m
}

// StageOut is StageIn's mirror for outputs: the keys Invoke copies back
// out are sandbox paths, empty for the local backend.
func StageOut(backend Backend, localPaths ...string) map[string]string {
	if backend.Name() == "local" {
		return nil
	}
	m := make(map[string]string, len(localPaths))
	for _, p := range localPaths {
		m[SandboxPath(p)] = p
	}
	return m
}

// ArgPath resolves the path a tool invocation's argv should reference for
// localPath under the given backend: the host path unmodified for the
// local backend (same filesystem, no staging needed), or the conventional
// sandbox path otherwise.
func ArgPath(backend Backend, localPath string) string {
	if backend.Name() == "local" {
		return localPath
	}
	return SandboxPath(localPath)
}
