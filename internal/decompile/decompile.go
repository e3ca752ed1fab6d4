// Package decompile implements the decompiler driver (spec.md §4.8):
// invoking the decompiler over a joined jar with a fixed argument set and
// a generated library-classpath file.
package decompile

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"dvh/internal/dvherr"
	"dvh/internal/fingerprint"
	"dvh/internal/toolrunner"
)

// universalFlags are applied to every decompile, per spec.md §4.8.
var universalFlags = []string{
	"--decompile-inner",
	"--remove-bridge",
	"--decompile-generics",
	"--ascii-strings",
	"--remove-synthetic",
	"--include-classpath",
	"--ignore-invalid-bytecode",
	"--bytecode-source-mapping",
	"--indent=4",
	"--dump-code-lines",
}

// obfuscatedFlags are added for obfuscated versions (spec.md §4.8).
var obfuscatedFlags = []string{
	"--jad-variable-naming",
	"--rename-parameters",
	"--no-method-parameter-names",
}

// Options configures one decompile invocation.
type Options struct {
	JoinedJar      string
	OutputJar      string
	WorkDir        string   // where the library-classpath file is written
	LibraryPaths   []string // absolute paths into the shared library cache
	Obfuscated     bool
	Tool           *toolrunner.Tool
}

// Result reports what Run produced.
type Result struct {
	OutputJar          string
	ClasspathFile      string
	ArgList            []string
}

// Run writes the library-classpath config file and invokes the decompiler
// with the universal plus (if obfuscated) obfuscated-specific flags.
func Run(ctx context.Context, opts Options) (*Result, error) {
	classpathFile, err := writeClasspathFile(opts.WorkDir, opts.LibraryPaths)
	if err != nil {
		return nil, fmt.Errorf("writing library classpath file: %w", err)
	}

	args := buildArgs(opts)

	argv := append([]string{toolrunner.ArgPath(opts.Tool.Backend, opts.JoinedJar)}, args...)
	argv = append(argv,
		"--output", toolrunner.ArgPath(opts.Tool.Backend, opts.OutputJar),
		"--log-level=ERROR",
	)

	inputs := append([]string{opts.JoinedJar, classpathFile}, opts.LibraryPaths...)

	code, err := opts.Tool.Invoke(ctx, argv,
		toolrunner.StageIn(opts.Tool.Backend, inputs...),
		toolrunner.StageOut(opts.Tool.Backend, opts.OutputJar),
		nil, nil, toolrunner.ExecOptions{})
	if err != nil {
		return nil, dvherr.New(dvherr.ToolFailure, fmt.Errorf("decompiler: %w", err))
	}
	if code != 0 {
		return nil, dvherr.Newf(dvherr.ToolFailure, "decompiler exited %d", code)
	}

	return &Result{OutputJar: opts.OutputJar, ClasspathFile: classpathFile, ArgList: args}, nil
}

func buildArgs(opts Options) []string {
	return Args(opts.Obfuscated)
}

// Args returns the fixed flag set for a decompile invocation: the
// universal flags, plus the obfuscated-only flags when obfuscated is
// true. Exported so callers building a fingerprint key up front (before
// deciding whether to invoke Run at all) can reproduce exactly the
// argument list Run would pass.
func Args(obfuscated bool) []string {
	args := append([]string{}, universalFlags...)
	if obfuscated {
		args = append(args, obfuscatedFlags...)
	}
	return args
}

// writeClasspathFile writes one "-e=<path>" line per library path,
// alongside the joined jar (spec.md §4.8).
func writeClasspathFile(workDir string, libraryPaths []string) (string, error) {
	path := filepath.Join(workDir, "classpath.cfg")
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, lib := range libraryPaths {
		if _, err := fmt.Fprintf(w, "-e=%s\n", lib); err != nil {
			return "", err
		}
	}
	if err := w.Flush(); err != nil {
		return "", err
	}
	return path, nil
}

// BuildFingerprintKey assembles the FP key for DD per spec.md §4.8: the
// declared hashes of the decompiler and its plugins, the joined jar's
// content hash, the argument list, and the content hash of every library
// file, labelled by its path relative to the library cache root.
func BuildFingerprintKey(deps fingerprint.DependencyHashes, decompilerName string, plugins []string, joinedJar string, args []string, libraryCacheRoot string, libraryPaths []string) (*fingerprint.Key, error) {
	k := fingerprint.New(deps)
	k.PutDependency("decompiler", decompilerName)
	for _, p := range plugins {
		k.PutDependency("decompiler-plugin:"+p, p)
	}
	k.PutPath("joined-jar", joinedJar)
	for i, a := range args {
		k.PutLiteral(fmt.Sprintf("arg[%d]", i), a)
	}
	for _, lib := range libraryPaths {
		rel, err := filepath.Rel(libraryCacheRoot, lib)
		if err != nil {
			return nil, fmt.Errorf("relativizing library path %s: %w", lib, err)
		}
		k.PutPath("library:"+rel, lib)
	}
	return k, nil
}
