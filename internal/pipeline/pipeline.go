// Package pipeline sequences the fingerprint cache, manifest resolver,
// branch policy, resume planner, artifact acquirer, mapping engine,
// merge-remap engine, decompiler driver, working-tree syncer, and
// repository driver into the single driving thread spec.md §5 describes:
// one version fully committed before the next begins.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"dvh/internal/acquire"
	"dvh/internal/branch"
	"dvh/internal/catalogue"
	"dvh/internal/dvherr"
	"dvh/internal/fingerprint"
	"dvh/internal/mapping"
	"dvh/internal/merge"
	"dvh/internal/decompile"
	"dvh/internal/models"
	"dvh/internal/repo"
	"dvh/internal/resume"
	"dvh/internal/worktree"
)

// pushChunkSize is spec.md §4.10's K.
const pushChunkSize = 10

// Driver is the assembled, ready-to-run pipeline.
type Driver struct {
	Repo       *repo.Repo
	Resolver   *catalogue.Resolver
	Downloader *acquire.Downloader
	Deps       fingerprint.DependencyHashes
	Tools      ToolSet
	Committer  models.Identity
	CacheDir   string
}

// Options parameterizes one run, one per CLI invocation (spec.md §6).
type Options struct {
	ManifestURL         string
	ExtraMappingsDir    string
	Branch              string
	Spec                models.BranchSpec
	StartVer            string
	TargetVer           string
	RemoteURL           string
	Checkout            bool
	Push                bool
	StartOver           bool
	StartOverIfRequired bool
	PartialCache        bool
	Filters             worktree.Filters
}

// Run executes one full pipeline invocation against r.Repo.Dir() as the
// output worktree.
func (d *Driver) Run(ctx context.Context, opts Options) (*RunSummary, error) {
	runID := uuid.NewString()
	logger := slog.With("run_id", runID)

	manifest, err := d.Resolver.Fetch(ctx, opts.ManifestURL)
	if err != nil {
		return nil, err
	}

	spec := opts.Spec
	if opts.StartVer != "" {
		id := models.NewVersionId(opts.StartVer)
		spec.Start = &id
	}
	if opts.TargetVer != "" && opts.TargetVer != "latest" {
		id := models.NewVersionId(opts.TargetVer)
		spec.End = &id
	}

	plan, err := branch.Apply(manifest.Versions, manifest.Latest, spec)
	if err != nil {
		return nil, err
	}

	startIdx := indexOfVersion(manifest.Versions, plan.Start)
	endIdx := indexOfVersion(manifest.Versions, plan.End)
	if startIdx < 0 || endIdx < 0 {
		return nil, dvherr.Newf(dvherr.UnknownVersion, "start %s or end %s not present in the catalogue", plan.Start, plan.End)
	}
	if indexOfVersion(plan.Filtered, plan.Start) < 0 || indexOfVersion(plan.Filtered, plan.End) < 0 {
		return nil, dvherr.Newf(dvherr.PolicyExcluded, "start %s or end %s is excluded by the branch policy", plan.Start, plan.End)
	}
	if startIdx > endIdx {
		return nil, dvherr.Newf(dvherr.BranchMisordered, "start %s is newer than end %s", plan.Start, plan.End)
	}

	toGenerate := boundedByStartEnd(plan.Filtered, plan.Start, plan.End)

	if err := d.Repo.Init(ctx); err != nil {
		return nil, err
	}

	remoteName, remoteAdded, err := d.configureRemote(ctx, opts.RemoteURL)
	if err != nil {
		return nil, err
	}
	if remoteAdded {
		logger.Info("added remote", "remote", remoteName, "url", opts.RemoteURL)
	}

	remoteHasBranch := false
	if remoteName != "" {
		remoteHasBranch, err = d.Repo.RemoteHasBranch(ctx, remoteName, opts.Branch)
		if err != nil {
			return nil, err
		}
	}

	cfgResult, err := d.Repo.Configure(ctx, repo.ConfigureOptions{
		Branch:          opts.Branch,
		StartOver:       opts.StartOver,
		Checkout:        opts.Checkout,
		RemoteName:      remoteName,
		RemoteHasBranch: remoteHasBranch,
	})
	if err != nil {
		return nil, err
	}

	initialHash, err := d.Repo.EnsureInitialCommit(ctx, plan.Start.String(), d.Committer)
	if err != nil {
		return nil, err
	}

	skipCount, err := d.resolveSkipCount(ctx, cfgResult.JustCreated, initialHash, opts, manifest.Versions, plan, toGenerate)
	if err != nil {
		return nil, err
	}
	if skipCount < 0 {
		// resolveSkipCount signals a restart with -1; re-derive the plan
		// from scratch, now against a freshly orphaned branch.
		initialHash, err = d.Repo.EnsureInitialCommit(ctx, plan.Start.String(), d.Committer)
		if err != nil {
			return nil, err
		}
		skipCount = 0
	}

	summary := &RunSummary{RunID: runID, StartedAt: time.Now().UTC()}

	commitsSincePush := 0
	for i := skipCount; i < len(toGenerate); i++ {
		v := toGenerate[i]
		committed, skipReason, err := d.processVersion(ctx, logger, v, opts)
		if err != nil {
			return nil, err
		}
		if !committed {
			summary.Skipped = append(summary.Skipped, SkippedVersion{ID: v.ID.String(), Reason: skipReason})
			continue
		}
		summary.Committed = append(summary.Committed, v.ID.String())
		commitsSincePush++

		if opts.Push && remoteName != "" && commitsSincePush >= pushChunkSize {
			if err := d.Repo.PushRemaining(ctx, remoteName, opts.Branch, pushChunkSize); err != nil {
				return nil, err
			}
			commitsSincePush = 0
		}
	}

	if opts.Push && remoteName != "" {
		if err := d.Repo.PushRemaining(ctx, remoteName, opts.Branch, pushChunkSize); err != nil {
			return nil, err
		}
		summary.Pushed = true
	}

	if remoteAdded {
		if err := d.Repo.RemoveRemote(ctx, remoteName); err != nil {
			logger.Warn("failed to remove transient remote", "remote", remoteName, "error", err)
		}
	}

	head, err := d.Repo.Head(ctx)
	if err != nil {
		return nil, err
	}
	summary.FinalHead = head
	summary.EndedAt = time.Now().UTC()

	if err := writeRunSummary(filepath.Join(d.Repo.Dir(), ".dvh-last-run.json"), summary); err != nil {
		logger.Warn("failed to write run summary", "error", err)
	}

	return summary, nil
}

func (d *Driver) configureRemote(ctx context.Context, url string) (string, bool, error) {
	if url == "" {
		return "", false, nil
	}
	name, added, err := d.Repo.EnsureRemote(ctx, url)
	if err != nil {
		return "", false, err
	}
	if err := d.Repo.FetchRemote(ctx, name); err != nil {
		return "", false, err
	}
	return name, added, nil
}

// resolveSkipCount runs the resume planner and, on a restart decision,
// re-orphans the branch and reports skipCount 0 via the -1 sentinel the
// caller re-derives from.
func (d *Driver) resolveSkipCount(ctx context.Context, justCreated bool, initialHash string, opts Options, manifest []models.VersionInfo, plan *branch.Plan, toGenerate []models.VersionInfo) (int, error) {
	commits, err := d.Repo.Log(ctx)
	if err != nil {
		return 0, err
	}

	result, err := resume.Plan(resume.Options{
		JustCreated:       justCreated,
		Committer:         d.Committer,
		Commits:           commits,
		InitialCommitHash: initialHash,
		Manifest:          manifest,
		Filtered:          plan.Filtered,
		ToGenerate:        toGenerate,
		Start:             plan.Start,
		End:               plan.End,
		RestartIfRequired: opts.StartOverIfRequired,
	})
	if err != nil {
		return 0, err
	}

	if result.Restart {
		if _, err := d.Repo.Configure(ctx, repo.ConfigureOptions{
			Branch:    opts.Branch,
			StartOver: true,
		}); err != nil {
			return 0, err
		}
		return -1, nil
	}
	return result.SkipCount, nil
}

func indexOfVersion(versions []models.VersionInfo, id models.VersionId) int {
	for i, v := range versions {
		if v.ID.String() == id.String() {
			return i
		}
	}
	return -1
}

func boundedByStartEnd(filtered []models.VersionInfo, start, end models.VersionId) []models.VersionInfo {
	startIdx, endIdx := -1, -1
	for i, v := range filtered {
		if v.ID.String() == start.String() {
			startIdx = i
		}
		if v.ID.String() == end.String() {
			endIdx = i
		}
	}
	if startIdx < 0 || endIdx < 0 || startIdx > endIdx {
		return nil
	}
	return filtered[startIdx : endIdx+1]
}

func versionCacheDir(cacheDir string, id models.VersionId) string {
	return filepath.Join(cacheDir, id.String())
}

func libraryCacheDir(cacheDir string) string {
	return filepath.Join(cacheDir, "libraries")
}

// processVersion runs AA, ME, MRE, DD, and WTS for one version, and
// commits if anything changed. committed is false (with a reason) for a
// MappingMissing skip; all other errors abort the run.
func (d *Driver) processVersion(ctx context.Context, logger *slog.Logger, v models.VersionInfo, opts Options) (committed bool, skipReason string, err error) {
	vlog := logger.With("version", v.ID.String())
	cacheDir := versionCacheDir(d.CacheDir, v.ID)
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return false, "", fmt.Errorf("creating cache directory for %s: %w", v.ID, err)
	}

	detail, err := d.Resolver.FetchDetail(ctx, v.ManifestURL)
	if err != nil {
		return false, "", err
	}

	vlog.Info("acquiring artifacts")
	if err := d.Downloader.AcquireVersion(ctx, acquire.Item{
		Info:             v,
		Detail:           *detail,
		CacheDir:         cacheDir,
		ExtraMappingsDir: opts.ExtraMappingsDir,
		PartialCache:     opts.PartialCache,
	}); err != nil {
		return false, "", err
	}

	var mappings *mapping.Mappings
	obfuscated := detail.Obfuscated()
	if obfuscated {
		m, err := mapping.Merge(
			filepath.Join(cacheDir, "client_mappings.txt"),
			filepath.Join(cacheDir, "server_mappings.txt"),
		)
		if err != nil {
			if dverr, ok := dvherr.As(err); ok && dverr.Kind == dvherr.MappingMissing {
				vlog.Warn("skipping version: side mapping absent", "error", dverr)
				return false, "mapping_missing", nil
			}
			return false, "", err
		}
		mappings = m
	}

	joinedJar := filepath.Join(cacheDir, "joined.jar")
	if err := d.runMergeStage(ctx, vlog, cacheDir, joinedJar, detail, mappings, opts.PartialCache); err != nil {
		return false, "", err
	}

	decompiledJar := filepath.Join(cacheDir, "joined-decompiled.jar")
	if err := d.runDecompileStage(ctx, vlog, cacheDir, joinedJar, decompiledJar, detail, obfuscated); err != nil {
		return false, "", err
	}

	result, err := worktree.Sync(decompiledJar, d.Repo.Dir(), opts.Filters, nil)
	if err != nil {
		return false, "", fmt.Errorf("syncing working tree for %s: %w", v.ID, err)
	}

	if len(result.Added) == 0 && len(result.Removed) == 0 {
		vlog.Info("no changes produced, no commit")
		return false, "no_changes", nil
	}

	releaseTime, err := time.Parse(time.RFC3339, v.TimeReleased)
	if err != nil {
		releaseTime = time.Now().UTC()
	}

	if err := d.Repo.StageAndCommit(ctx, result.Added, result.Removed, v.ID.String(), d.Committer, releaseTime); err != nil {
		return false, "", err
	}
	vlog.Info("committed", "added", len(result.Added), "removed", len(result.Removed))
	return true, "", nil
}

func (d *Driver) runMergeStage(ctx context.Context, vlog *slog.Logger, cacheDir, joinedJar string, detail *models.VersionDetail, mappings *mapping.Mappings, partialCache bool) error {
	clientJar := filepath.Join(cacheDir, "client.jar")
	serverJar := filepath.Join(cacheDir, "server.jar")
	cacheFile := joinedJar + ".cache"

	clientSHA1 := detail.Downloads[models.DownloadClient].SHA1
	serverSHA1 := detail.Downloads[models.DownloadServer].SHA1
	mappingsPath := ""
	if mappings != nil {
		mappingsPath = filepath.Join(cacheDir, "client_mappings.txt")
	}

	preKey := merge.BuildFingerprintKey(d.Deps, d.Tools.Merger.Name, d.Tools.Remapper.Name, mappingsPath, clientSHA1, serverSHA1, "")
	valid, err := preKey.IsValid(cacheFile, "merge-tool", "remap-tool", "mappings", "client-sha1", "server-sha1")
	if err == nil && valid {
		if _, statErr := os.Stat(joinedJar); statErr == nil {
			vlog.Debug("joined.jar fingerprint valid, skipping merge-remap")
			return nil
		}
	}

	vlog.Info("running merge-remap engine")
	result, err := merge.Run(ctx, merge.Options{
		ClientJar:    clientJar,
		ServerJar:    serverJar,
		Mappings:     mappings,
		WorkDir:      cacheDir,
		OutputJar:    joinedJar,
		PartialCache: partialCache,
		Tools: merge.Tools{
			Merger:           d.Tools.Merger,
			Remapper:         d.Tools.Remapper,
			BundlerExtractor: d.Tools.BundlerExtractor,
		},
	})
	if err != nil {
		return err
	}

	postKey := merge.BuildFingerprintKey(d.Deps, d.Tools.Merger.Name, d.Tools.Remapper.Name, mappingsPath, clientSHA1, serverSHA1, result.ExtractedServerSHA1)
	if err := postKey.Write(cacheFile); err != nil {
		return fmt.Errorf("writing merge-remap fingerprint: %w", err)
	}

	if partialCache {
		for _, p := range []string{clientJar, serverJar, result.ExtractedServerPath} {
			if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("removing partial-cache intermediate %s: %w", p, err)
			}
		}
	}
	return nil
}

func (d *Driver) runDecompileStage(ctx context.Context, vlog *slog.Logger, cacheDir, joinedJar, decompiledJar string, detail *models.VersionDetail, obfuscated bool) error {
	cacheFile := decompiledJar + ".cache"

	libraryPaths := make([]string, 0, len(detail.Libraries))
	for _, lib := range detail.Libraries {
		if lib.Path == "" {
			continue
		}
		libraryPaths = append(libraryPaths, filepath.Join(libraryCacheDir(d.CacheDir), lib.Path))
	}

	opts := decompile.Options{
		JoinedJar:    joinedJar,
		OutputJar:    decompiledJar,
		WorkDir:      cacheDir,
		LibraryPaths: libraryPaths,
		Obfuscated:   obfuscated,
		Tool:         d.Tools.Decompiler,
	}

	key, err := decompile.BuildFingerprintKey(d.Deps, d.Tools.Decompiler.Name, d.Tools.Decompiler.Plugins, joinedJar, decompile.Args(obfuscated), libraryCacheDir(d.CacheDir), libraryPaths)
	if err != nil {
		return fmt.Errorf("building decompiler fingerprint: %w", err)
	}
	if valid, err := key.IsValid(cacheFile); err == nil && valid {
		if _, statErr := os.Stat(decompiledJar); statErr == nil {
			vlog.Debug("joined-decompiled.jar fingerprint valid, skipping decompile")
			return nil
		}
	}

	vlog.Info("running decompiler")
	if _, err := decompile.Run(ctx, opts); err != nil {
		return err
	}

	if err := key.Write(cacheFile); err != nil {
		return fmt.Errorf("writing decompiler fingerprint: %w", err)
	}
	return nil
}
