package repo

import (
	"context"
	"fmt"
	"strings"

	"dvh/internal/dvherr"
)

// EnsureRemote scans existing remotes for one whose URL equals url; if
// none is found, adds it under the first unused name in origin, origin1,
// origin2, ... (spec.md §4.10). Returns the remote's name and whether it
// was newly added.
func (r *Repo) EnsureRemote(ctx context.Context, url string) (string, bool, error) {
	out, err := r.git(ctx, "remote", "-v")
	if err != nil {
		return "", false, err
	}

	used := make(map[string]bool)
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		used[fields[0]] = true
		if fields[1] == url {
			return fields[0], false, nil
		}
	}

	name := "origin"
	for i := 0; used[name]; i++ {
		name = fmt.Sprintf("origin%d", i+1)
	}
	if _, err := r.git(ctx, "remote", "add", name, url); err != nil {
		return "", false, err
	}
	return name, true, nil
}

// RemoveRemote removes a remote this run added, on teardown.
func (r *Repo) RemoveRemote(ctx context.Context, name string) error {
	_, err := r.git(ctx, "remote", "remove", name)
	return err
}

// FetchRemote does an eager fetch of remoteName (spec.md §4.10's
// "initial fetch is eager with a text progress monitor"). git's output,
// progress lines included, is captured by the git helper and not shown.
func (r *Repo) FetchRemote(ctx context.Context, remoteName string) error {
	_, err := r.git(ctx, "fetch", remoteName)
	return err
}

// RemoteHasBranch reports whether remoteName/branch exists.
func (r *Repo) RemoteHasBranch(ctx context.Context, remoteName, branch string) (bool, error) {
	_, err := r.git(ctx, "rev-parse", "--verify", remoteName+"/"+branch)
	return err == nil, nil
}

// LocalCommits returns HEAD's ancestry newest-first.
func (r *Repo) LocalCommits(ctx context.Context) ([]string, error) {
	return r.revList(ctx, "HEAD")
}

// RemoteCommits returns remoteName/branch's ancestry newest-first, or nil
// if the remote branch doesn't exist.
func (r *Repo) RemoteCommits(ctx context.Context, remoteName, branch string) ([]string, error) {
	has, err := r.RemoteHasBranch(ctx, remoteName, branch)
	if err != nil || !has {
		return nil, nil
	}
	return r.revList(ctx, remoteName+"/"+branch)
}

func (r *Repo) revList(ctx context.Context, ref string) ([]string, error) {
	out, err := r.git(ctx, "rev-list", ref)
	if err != nil {
		return nil, err
	}
	if out == "" {
		return nil, nil
	}
	return strings.Split(out, "\n"), nil
}

// PushRemaining implements spec.md §4.10's "push remaining commits"
// procedure: force-push in chunkSize-sized chunks, oldest chunk first.
func (r *Repo) PushRemaining(ctx context.Context, remoteName, branch string, chunkSize int) error {
	local, err := r.LocalCommits(ctx)
	if err != nil {
		return err
	}
	if len(local) == 0 {
		return nil
	}

	remoteCommits, err := r.RemoteCommits(ctx, remoteName, branch)
	if err != nil {
		return err
	}

	ancestorIndex := -1
	for _, rc := range remoteCommits {
		if idx := indexOf(local, rc); idx >= 0 {
			ancestorIndex = idx
			break
		}
	}

	if ancestorIndex == 0 {
		return nil
	}
	if ancestorIndex < 0 {
		ancestorIndex = len(local) - 1
	}

	for _, target := range chunkTargets(ancestorIndex, chunkSize) {
		if err := r.pushOne(ctx, remoteName, branch, local[target]); err != nil {
			return err
		}
	}
	return nil
}

// pushOne force-pushes a single commit (and its ancestry) to refs/heads/branch.
func (r *Repo) pushOne(ctx context.Context, remoteName, branch, commit string) error {
	out, err := r.git(ctx, "push", "--force", remoteName, commit+":refs/heads/"+branch)
	if err != nil {
		return dvherr.New(dvherr.PushFailed, err)
	}
	if strings.Contains(out, "Everything up-to-date") {
		return nil
	}
	return nil
}

func indexOf(haystack []string, needle string) int {
	for i, v := range haystack {
		if v == needle {
			return i
		}
	}
	return -1
}

// chunkTargets computes the sequence of local-history indices to push,
// oldest chunk first: starting chunkSize short of ancestorIndex and
// stepping toward 0 (HEAD), per spec.md §4.10.
func chunkTargets(ancestorIndex, chunkSize int) []int {
	if chunkSize <= 0 {
		chunkSize = 1
	}
	var targets []int
	pos := ancestorIndex - chunkSize
	for pos > 0 {
		targets = append(targets, pos)
		pos -= chunkSize
	}
	return append(targets, 0)
}
