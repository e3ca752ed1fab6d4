package repo

import (
	"context"
	"fmt"
)

// ConfigureOptions parameterizes the branch lifecycle state machine
// (spec.md §4.10).
type ConfigureOptions struct {
	Branch            string
	StartOver         bool
	RestartRequired   bool
	Checkout          bool
	RemoteName        string
	RemoteHasBranch   bool
}

// ConfigureResult reports whether the branch was freshly created this run,
// which the resume planner's first rule consults.
type ConfigureResult struct {
	JustCreated bool
}

// Configure drives the branch to the `configured` state per spec.md
// §4.10's diagram, always finishing with a hard reset and clean.
func (r *Repo) Configure(ctx context.Context, opts ConfigureOptions) (*ConfigureResult, error) {
	exists, err := r.BranchExists(ctx, opts.Branch)
	if err != nil {
		return nil, err
	}

	justCreated := false

	switch {
	case (opts.StartOver || opts.RestartRequired) && exists:
		if err := r.orphanRecreate(ctx, opts.Branch); err != nil {
			return nil, err
		}
		justCreated = true

	case opts.Checkout && opts.RemoteHasBranch:
		if exists {
			if _, err := r.git(ctx, "branch", "-D", opts.Branch); err != nil {
				return nil, err
			}
		}
		if _, err := r.git(ctx, "checkout", "-B", opts.Branch, "--track", opts.RemoteName+"/"+opts.Branch); err != nil {
			return nil, err
		}

	default:
		current, err := r.CurrentBranch(ctx)
		if err != nil {
			return nil, err
		}
		if current != opts.Branch {
			if exists {
				if _, err := r.git(ctx, "checkout", opts.Branch); err != nil {
					return nil, err
				}
			} else {
				if err := r.orphanRecreate(ctx, opts.Branch); err != nil {
					return nil, err
				}
				justCreated = true
			}
		}
	}

	if err := r.HardResetClean(ctx); err != nil {
		return nil, fmt.Errorf("resetting working tree: %w", err)
	}

	return &ConfigureResult{JustCreated: justCreated}, nil
}

// orphanRecreate implements the "move to orphan_temp, delete branch,
// orphan-check out fresh target, delete orphan_temp" sequence.
func (r *Repo) orphanRecreate(ctx context.Context, branch string) error {
	exists, err := r.BranchExists(ctx, branch)
	if err != nil {
		return err
	}

	if _, err := r.git(ctx, "checkout", "--orphan", "dvh-orphan-temp"); err != nil {
		return err
	}
	if _, err := r.git(ctx, "rm", "-rf", "--cached", "."); err != nil {
		return err
	}
	if err := r.HardResetClean(ctx); err != nil {
		return err
	}

	if exists {
		if _, err := r.git(ctx, "branch", "-D", branch); err != nil {
			return err
		}
	}
	if _, err := r.git(ctx, "checkout", "-b", branch); err != nil {
		return err
	}
	// dvh-orphan-temp never gained a commit, so git never materialized a
	// ref for it; switching away from it leaves nothing to clean up.
	return nil
}
