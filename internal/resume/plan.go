// Package resume implements the resume planner (spec.md §4.4): deciding,
// from the repository's own commit history, how many already-planned
// versions to skip before the driver resumes generating.
package resume

import (
	"dvh/internal/dvherr"
	"dvh/internal/models"
)

// CommitRef is the minimal view of a commit the resume planner needs,
// supplied by the repository driver. Author identifies who authored it.
type CommitRef struct {
	Hash    string
	Message string
	Author  models.Identity
}

// Options bundles everything the planner consults to classify a run.
type Options struct {
	// JustCreated is true when the repository driver created or
	// re-initialized the branch this run (spec.md §4.4's first rule).
	JustCreated bool
	Committer   models.Identity
	// Commits is the branch's history, newest first, as returned by the
	// repository driver's log walk.
	Commits []CommitRef
	// InitialCommitHash identifies the branch's known metadata commit, so
	// it can be distinguished from a "real" generated commit.
	InitialCommitHash string
	// Manifest is the full resolved catalogue, sorted ascending by
	// release time, used to compare relative recency of id*.
	Manifest []models.VersionInfo
	// Filtered is the branch policy's filtered list (unbounded by
	// start/end), used to test "excluded by policy".
	Filtered []models.VersionInfo
	// ToGenerate is the start/end-bounded sublist the driver is about to
	// process this run.
	ToGenerate        []models.VersionInfo
	Start, End        models.VersionId
	RestartIfRequired bool
}

// Result is the planner's decision.
type Result struct {
	SkipCount int
	// Restart is true when the driver must delete and re-create the
	// branch and restart generation from skipCount 0.
	Restart bool
}

// Plan implements spec.md §4.4's ordered rule list.
func Plan(opts Options) (*Result, error) {
	if opts.JustCreated {
		return &Result{SkipCount: 0}, nil
	}

	last := newestByCommitter(opts.Commits, opts.Committer)
	if last == nil || last.Hash == opts.InitialCommitHash {
		return &Result{SkipCount: 0}, nil
	}

	idStar := models.NewVersionId(last.Message)

	if i := indexOf(opts.ToGenerate, idStar); i >= 0 {
		return &Result{SkipCount: i + 1}, nil
	}

	if indexOf(opts.Manifest, idStar) < 0 {
		return restartOrFail(opts, "last committed version %s is not present in the catalogue", idStar)
	}
	if indexOf(opts.Filtered, idStar) < 0 {
		return restartOrFail(opts, "last committed version %s is excluded by the current branch policy", idStar)
	}

	switch relativeOrder(opts.Manifest, idStar, opts.Start) {
	case -1:
		return restartOrFail(opts, "last committed version %s is older than the configured start %s", idStar, opts.Start)
	}
	switch relativeOrder(opts.Manifest, idStar, opts.End) {
	case 1:
		return &Result{SkipCount: len(opts.ToGenerate)}, nil
	}

	return restartOrFail(opts, "last committed version %s is inconsistent with the current plan", idStar)
}

func newestByCommitter(commits []CommitRef, committer models.Identity) *CommitRef {
	for i := range commits {
		if commits[i].Author == committer {
			return &commits[i]
		}
	}
	return nil
}

func indexOf(versions []models.VersionInfo, id models.VersionId) int {
	for i, v := range versions {
		if v.ID.String() == id.String() {
			return i
		}
	}
	return -1
}

// relativeOrder compares a and b's position in the ascending-by-release
// manifest: -1 if a is older than b, 1 if newer, 0 if equal or either is
// absent from the manifest.
func relativeOrder(manifest []models.VersionInfo, a, b models.VersionId) int {
	ia, ib := indexOf(manifest, a), indexOf(manifest, b)
	if ia < 0 || ib < 0 {
		return 0
	}
	switch {
	case ia < ib:
		return -1
	case ia > ib:
		return 1
	default:
		return 0
	}
}

func restartOrFail(opts Options, format string, args ...any) (*Result, error) {
	if opts.RestartIfRequired {
		return &Result{SkipCount: 0, Restart: true}, nil
	}
	return nil, dvherr.Newf(dvherr.ResumeMismatch, format, args...)
}
