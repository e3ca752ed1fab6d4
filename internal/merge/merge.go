// Package merge implements the merge-remap engine (spec.md §4.7):
// detecting a bundler-style server archive, producing a single joined
// class archive from client+server, and driving it through the remap
// tool.
package merge

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"dvh/internal/dvherr"
	"dvh/internal/fingerprint"
	"dvh/internal/jarutil"
	"dvh/internal/mapping"
	"dvh/internal/toolrunner"
	"dvh/internal/util"
)

// bundlerManifestHeader is the manifest header the server-bundler format
// declares, per spec.md §4.7 step 1.
const bundlerManifestHeader = "Bundler-Format"

// Tools bundles the three external collaborators MRE drives.
type Tools struct {
	Merger            *toolrunner.Tool
	Remapper          *toolrunner.Tool
	BundlerExtractor  *toolrunner.Tool
}

// Options configures one run of the merge-remap engine.
type Options struct {
	ClientJar      string
	ServerJar      string
	Mappings       *mapping.Mappings // nil for unobfuscated versions
	WorkDir        string            // scratch directory for intermediates
	OutputJar      string            // destination joined.jar
	PartialCache   bool
	Tools          Tools
}

// Result reports the paths MRE produced, for the caller's fingerprint
// bookkeeping and partial-cache cleanup.
type Result struct {
	OutputJar           string
	ExtractedServerPath string
	ExtractedServerSHA1 string
}

// Run executes spec.md §4.7's four-step procedure.
func Run(ctx context.Context, opts Options) (*Result, error) {
	extractedServer, err := extractServer(ctx, opts)
	if err != nil {
		return nil, err
	}
	extractedSHA1, err := sha1File(extractedServer)
	if err != nil {
		return nil, fmt.Errorf("hashing extracted server: %w", err)
	}

	if opts.Mappings == nil {
		if err := runRemap(ctx, opts.Tools.Remapper, remapArgs{
			client:            opts.ClientJar,
			server:            extractedServer,
			output:            opts.OutputJar,
			noModManifest:     true,
			noDistAnnotations: false,
			mappingsTSRG2:     "",
		}); err != nil {
			return nil, err
		}
		return &Result{OutputJar: opts.OutputJar, ExtractedServerPath: extractedServer, ExtractedServerSHA1: extractedSHA1}, nil
	}

	joinedObf := obfJarPath(opts.WorkDir)
	if err := runMerger(ctx, opts.Tools.Merger, opts.ClientJar, extractedServer, joinedObf); err != nil {
		return nil, err
	}

	tsrg2Path, err := writeMappingsTSRG2(opts.WorkDir, opts.Mappings)
	if err != nil {
		return nil, err
	}

	if err := runRemap(ctx, opts.Tools.Remapper, remapArgs{
		client:            joinedObf,
		server:            "",
		output:            opts.OutputJar,
		noModManifest:     false,
		noDistAnnotations: true,
		mappingsTSRG2:     tsrg2Path,
	}); err != nil {
		return nil, err
	}

	if err := os.Remove(joinedObf); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("deleting intermediate joined-obf.jar: %w", err)
	}

	return &Result{OutputJar: opts.OutputJar, ExtractedServerPath: extractedServer, ExtractedServerSHA1: extractedSHA1}, nil
}

// extractServer implements step 1: bundler extraction, or the
// verbatim/filtered fallback.
func extractServer(ctx context.Context, opts Options) (string, error) {
	isBundler, err := isBundlerArchive(opts.ServerJar)
	if err != nil {
		return "", dvherr.New(dvherr.ToolFailure, fmt.Errorf("inspecting server archive: %w", err))
	}

	dest := extractedServerPath(opts.WorkDir)

	if isBundler {
		if err := runBundlerExtract(ctx, opts.Tools.BundlerExtractor, opts.ServerJar, dest); err != nil {
			return "", err
		}
		return dest, nil
	}

	if opts.Mappings == nil {
		return opts.ServerJar, nil
	}

	// opts.Mappings is the reversed mapping: Original holds the
	// obfuscated class name the server jar's entries use.
	obfClasses := make(map[string]bool)
	for _, cm := range opts.Mappings.Classes {
		obfClasses[cm.Original] = true
	}

	_, err = jarutil.FilterCopy(opts.ServerJar, dest, func(entryName string) bool {
		return obfClasses[jarutil.ClassName(entryName)]
	})
	if err != nil {
		return "", dvherr.New(dvherr.ToolFailure, fmt.Errorf("filtering server archive: %w", err))
	}
	return dest, nil
}

func isBundlerArchive(serverJar string) (bool, error) {
	_, ok, err := jarutil.ManifestValue(serverJar, bundlerManifestHeader)
	if err != nil {
		return false, err
	}
	return ok, nil
}

func runBundlerExtract(ctx context.Context, tool *toolrunner.Tool, serverJar, dest string) error {
	argv := []string{
		toolrunner.ArgPath(tool.Backend, serverJar),
		"--output", toolrunner.ArgPath(tool.Backend, dest),
	}
	code, err := tool.Invoke(ctx, argv,
		toolrunner.StageIn(tool.Backend, serverJar),
		toolrunner.StageOut(tool.Backend, dest),
		nil, nil, toolrunner.ExecOptions{})
	if err != nil {
		return dvherr.New(dvherr.ToolFailure, fmt.Errorf("bundler-extract: %w", err))
	}
	if code != 0 {
		return dvherr.Newf(dvherr.ToolFailure, "bundler-extract exited %d", code)
	}
	return nil
}

func runMerger(ctx context.Context, tool *toolrunner.Tool, clientJar, serverJar, outputJar string) error {
	argv := []string{
		"--client", toolrunner.ArgPath(tool.Backend, clientJar),
		"--server", toolrunner.ArgPath(tool.Backend, serverJar),
		"--output", toolrunner.ArgPath(tool.Backend, outputJar),
	}
	code, err := tool.Invoke(ctx, argv,
		toolrunner.StageIn(tool.Backend, clientJar, serverJar),
		toolrunner.StageOut(tool.Backend, outputJar),
		nil, nil, toolrunner.ExecOptions{})
	if err != nil {
		return dvherr.New(dvherr.ToolFailure, fmt.Errorf("side-merger: %w", err))
	}
	if code != 0 {
		return dvherr.Newf(dvherr.ToolFailure, "side-merger exited %d", code)
	}
	return nil
}

type remapArgs struct {
	client            string
	server            string
	output            string
	noModManifest     bool
	noDistAnnotations bool
	mappingsTSRG2     string
}

func runRemap(ctx context.Context, tool *toolrunner.Tool, args remapArgs) error {
	argv := []string{toolrunner.ArgPath(tool.Backend, args.client)}
	inputs := []string{args.client}
	if args.server != "" {
		argv = append(argv, toolrunner.ArgPath(tool.Backend, args.server))
		inputs = append(inputs, args.server)
	}
	argv = append(argv, "--output", toolrunner.ArgPath(tool.Backend, args.output))
	if args.noModManifest {
		argv = append(argv, "--no-mod-manifest")
	}
	if args.noDistAnnotations {
		argv = append(argv, "--no-dist-annotations")
	}
	if args.mappingsTSRG2 != "" {
		argv = append(argv, "--mappings", toolrunner.ArgPath(tool.Backend, args.mappingsTSRG2))
		inputs = append(inputs, args.mappingsTSRG2)
	}

	code, err := tool.Invoke(ctx, argv,
		toolrunner.StageIn(tool.Backend, inputs...),
		toolrunner.StageOut(tool.Backend, args.output),
		nil, nil, toolrunner.ExecOptions{})
	if err != nil {
		return dvherr.New(dvherr.ToolFailure, fmt.Errorf("remap: %w", err))
	}
	if code != 0 {
		return dvherr.Newf(dvherr.ToolFailure, "remap exited %d", code)
	}
	return nil
}

func writeMappingsTSRG2(workDir string, m *mapping.Mappings) (string, error) {
	path := tsrg2Path(workDir)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating mappings tsrg2 scratch file: %w", err)
	}
	defer f.Close()
	if err := m.WriteTSRG2(f); err != nil {
		return "", fmt.Errorf("writing mappings tsrg2: %w", err)
	}
	return path, nil
}

// BuildFingerprintKey assembles the FP key for MRE per spec.md §4.7: the
// declared hashes of the merge and remap tools, the mappings file hash,
// client/server SHA-1 from the manifest, and the extracted server's SHA-1.
func BuildFingerprintKey(deps fingerprint.DependencyHashes, mergerName, remapperName string, mappingsPath, clientSHA1, serverSHA1, extractedServerSHA1 string) *fingerprint.Key {
	k := fingerprint.New(deps)
	k.PutDependency("merge-tool", mergerName)
	k.PutDependency("remap-tool", remapperName)
	if mappingsPath != "" {
		k.PutPath("mappings", mappingsPath)
	} else {
		k.PutLiteral("mappings", "none")
	}
	k.PutLiteral("client-sha1", clientSHA1)
	// Partial-cache mode's duplicate-label pitfall (spec.md §9): the
	// manifest's server hash and the extracted server's hash stay under
	// distinct labels ("server-sha1", "extracted-server-sha1"), as does the
	// mappings file ("mappings"), so none overwrites another.
	k.PutLiteral("server-sha1", serverSHA1)
	k.PutLiteral("extracted-server-sha1", extractedServerSHA1)
	return k
}

func sha1File(path string) (string, error) {
	return util.SHA1File(path)
}

func extractedServerPath(workDir string) string { return filepath.Join(workDir, "server-extracted.jar") }
func obfJarPath(workDir string) string          { return filepath.Join(workDir, "joined-obf.jar") }
func tsrg2Path(workDir string) string           { return filepath.Join(workDir, "moj_to_obf.tsrg") }
