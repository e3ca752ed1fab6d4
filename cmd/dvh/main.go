// Command dvh drives the Decompiled-Version Historian pipeline: for a
// configured range of upstream versions it downloads, merges, remaps,
// and decompiles each one and commits the result to a git branch.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"dvh/internal/acquire"
	"dvh/internal/catalogue"
	"dvh/internal/config"
	"dvh/internal/dvherr"
	"dvh/internal/models"
	"dvh/internal/pipeline"
	"dvh/internal/repo"
	"dvh/internal/toolrunner"
	"dvh/internal/worktree"
)

const defaultManifestURL = "https://launchermeta.mojang.com/mc/game/version_manifest_v2.json"

// stringList accumulates repeatable flag occurrences, the idiom
// flag.Var needs for "--include glob (repeatable)" style options.
type stringList []string

func (s *stringList) String() string { return fmt.Sprint([]string(*s)) }
func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

func main() {
	output := flag.String("output", "", "output repository directory (required)")
	cache := flag.String("cache", "./cache", "artifact cache directory")
	extraMappings := flag.String("extra-mappings", "", "directory of pre-fetched side mappings to try before upstream")
	startVer := flag.String("start-ver", "", "first version id to generate (default: branch policy's first filtered version)")
	targetVer := flag.String("target-ver", "latest", "last version id to generate, or \"latest\"")
	branchName := flag.String("branch", "historical", "branch name to generate onto")
	remote := flag.String("remote", "", "remote repository URL")
	checkout := flag.Bool("checkout", false, "check out the remote's existing branch instead of the local one")
	push := flag.Bool("push", false, "push commits to the configured remote")
	startOver := flag.Bool("start-over", false, "delete and recreate the branch before generating")
	startOverIfRequired := flag.Bool("start-over-if-required", false, "automatically restart on an unresolvable resume mismatch")
	partialCache := flag.Bool("partial-cache", false, "delete large intermediate artifacts once a version's joined.jar is produced")
	releasesOnly := flag.Bool("releases-only", false, "restrict generation to release-type versions")
	toolProfilePath := flag.String("tool-profile", "", "TOML file selecting each external tool's backend and sandbox image")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	manifestURL := flag.String("manifest-url", defaultManifestURL, "version catalogue URL")

	var includes, excludes, cfgSources stringList
	flag.Var(&includes, "include", "glob an archive-relative path must match to be synced (repeatable)")
	flag.Var(&excludes, "exclude", "glob an archive-relative path must not match to be synced (repeatable)")
	flag.Var(&cfgSources, "cfg", "branch config source, file:// or https:// (repeatable, last wins per branch)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s --output <dir> [flags]\n\n", filepath.Base(os.Args[0]))
		flag.PrintDefaults()
	}

	if len(os.Args) < 2 {
		flag.Usage()
		os.Exit(0)
	}
	flag.Parse()

	if *output == "" {
		fmt.Fprintln(os.Stderr, "dvh: --output is required")
		flag.Usage()
		os.Exit(dvherr.ExitCode(dvherr.ArgumentError))
	}

	level := slog.LevelInfo
	if err := level.UnmarshalText([]byte(*logLevel)); err != nil {
		fmt.Fprintf(os.Stderr, "dvh: invalid --log-level %q\n", *logLevel)
		os.Exit(dvherr.ExitCode(dvherr.ArgumentError))
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer func() {
		signal.Stop(sigCh)
		cancel()
	}()
	go func() {
		sig := <-sigCh
		slog.Info("interrupt received, shutting down gracefully...", "signal", sig)
		cancel()
	}()

	if err := run(ctx, runArgs{
		output:               *output,
		cache:                *cache,
		extraMappings:        *extraMappings,
		startVer:             *startVer,
		targetVer:            *targetVer,
		branch:               *branchName,
		remote:               *remote,
		checkout:             *checkout,
		push:                 *push,
		startOver:            *startOver,
		startOverIfRequired:  *startOverIfRequired,
		partialCache:         *partialCache,
		releasesOnly:         *releasesOnly,
		toolProfilePath:      *toolProfilePath,
		manifestURL:          *manifestURL,
		includes:             includes,
		excludes:             excludes,
		cfgSources:           cfgSources,
	}); err != nil {
		kind := dvherr.ToolFailure
		if dverr, ok := dvherr.As(err); ok {
			kind = dverr.Kind
		}
		slog.Error("run failed", "error", err)
		os.Exit(dvherr.ExitCode(kind))
	}
}

type runArgs struct {
	output, cache, extraMappings, startVer, targetVer, branch, remote, toolProfilePath, manifestURL string
	checkout, push, startOver, startOverIfRequired, partialCache, releasesOnly                       bool
	includes, excludes, cfgSources                                                                   []string
}

func run(ctx context.Context, a runArgs) error {
	branchCfg, err := config.LoadBranchConfig(ctx, a.cfgSources)
	if err != nil {
		return err
	}
	spec := branchCfg[a.branch]
	if a.releasesOnly {
		spec.Type = models.BranchRelease
	}

	toolProfile, err := config.LoadToolProfile(a.toolProfilePath)
	if err != nil {
		return dvherr.New(dvherr.ArgumentError, err)
	}
	tools, err := pipeline.BuildToolSet(toolProfile)
	if err != nil {
		return dvherr.New(dvherr.ArgumentError, err)
	}

	deps, err := toolrunner.LoadDependencyHashes()
	if err != nil {
		return fmt.Errorf("loading dependency hash table: %w", err)
	}

	if err := os.MkdirAll(a.cache, 0o755); err != nil {
		return fmt.Errorf("creating cache directory: %w", err)
	}
	if err := os.MkdirAll(a.output, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	driver := &pipeline.Driver{
		Repo:       repo.Open(a.output),
		Resolver:   catalogue.NewResolver(),
		Downloader: acquire.NewDownloader(filepath.Join(a.cache, "libraries")),
		Deps:       deps,
		Tools:      tools,
		Committer:  models.FixedCommitter,
		CacheDir:   a.cache,
	}

	summary, err := driver.Run(ctx, pipeline.Options{
		ManifestURL:         a.manifestURL,
		ExtraMappingsDir:    a.extraMappings,
		Branch:              a.branch,
		Spec:                spec,
		StartVer:            a.startVer,
		TargetVer:           a.targetVer,
		RemoteURL:           a.remote,
		Checkout:            a.checkout,
		Push:                a.push,
		StartOver:           a.startOver,
		StartOverIfRequired: a.startOverIfRequired,
		PartialCache:        a.partialCache,
		Filters:             worktree.Filters{Include: a.includes, Exclude: a.excludes},
	})
	if err != nil {
		return err
	}

	fmt.Printf("committed %d version(s), skipped %d, head %s\n", len(summary.Committed), len(summary.Skipped), summary.FinalHead)
	return nil
}
