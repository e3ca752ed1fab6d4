// Package repo implements the repository driver (spec.md §4.10): branch
// lifecycle, remote provisioning, and batched push, all by shelling out to
// the git binary. Grounded on the teacher's registry.Resolver.cloneRepo,
// which does the same os/exec.CommandContext git-shelling for clone and
// checkout.
package repo

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"dvh/internal/dvherr"
)

// Repo is a handle to the on-disk git repository at dir.
type Repo struct {
	dir string
}

// Open wraps an existing or not-yet-initialized directory.
func Open(dir string) *Repo {
	return &Repo{dir: dir}
}

// Dir returns the repository's working directory.
func (r *Repo) Dir() string { return r.dir }

// Init runs "git init" if dir does not already contain a .git directory.
func (r *Repo) Init(ctx context.Context) error {
	if _, err := os.Stat(r.dir + "/.git"); err == nil {
		return nil
	}
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return fmt.Errorf("creating repo directory: %w", err)
	}
	_, err := r.git(ctx, "init")
	return err
}

// git runs a git subcommand with dir as its working directory and returns
// trimmed combined stdout.
func (r *Repo) git(ctx context.Context, args ...string) (string, error) {
	return r.gitWithEnv(ctx, nil, args...)
}

func (r *Repo) gitWithEnv(ctx context.Context, env []string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = r.dir
	if len(env) > 0 {
		cmd.Env = append(os.Environ(), env...)
	}
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		return "", dvherr.New(dvherr.ToolFailure, fmt.Errorf("git %s: %w: %s", strings.Join(args, " "), err, out.String()))
	}
	return strings.TrimSpace(out.String()), nil
}

// CurrentBranch returns the checked-out branch name, or "" if unborn.
func (r *Repo) CurrentBranch(ctx context.Context) (string, error) {
	out, err := r.git(ctx, "symbolic-ref", "--short", "HEAD")
	if err != nil {
		return "", nil
	}
	return out, nil
}

// BranchExists reports whether a local branch ref exists.
func (r *Repo) BranchExists(ctx context.Context, branch string) (bool, error) {
	_, err := r.git(ctx, "rev-parse", "--verify", "refs/heads/"+branch)
	return err == nil, nil
}

// Head returns the current HEAD commit hash, or "" if the branch has no
// commits yet.
func (r *Repo) Head(ctx context.Context) (string, error) {
	out, err := r.git(ctx, "rev-parse", "HEAD")
	if err != nil {
		return "", nil
	}
	return out, nil
}

// HardResetClean discards any stale working-tree state, per spec.md
// §4.10's "always follows with a hard reset and clean".
func (r *Repo) HardResetClean(ctx context.Context) error {
	if _, err := r.git(ctx, "reset", "--hard"); err != nil {
		return err
	}
	_, err := r.git(ctx, "clean", "-fd")
	return err
}
