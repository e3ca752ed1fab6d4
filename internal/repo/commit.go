package repo

import (
	"context"
	"fmt"
	"strings"
	"time"

	"dvh/internal/models"
	"dvh/internal/resume"
)

// StageAndCommit stages adds and removes (forward-slash relative paths,
// per spec.md §4.9 step 5) and commits with message, author/committer
// identity, and a fixed author/commit date.
func (r *Repo) StageAndCommit(ctx context.Context, added, removed []string, message string, committer models.Identity, when time.Time) error {
	if len(added) > 0 {
		args := append([]string{"add", "--"}, added...)
		if _, err := r.git(ctx, args...); err != nil {
			return fmt.Errorf("staging adds: %w", err)
		}
	}
	if len(removed) > 0 {
		args := append([]string{"rm", "--ignore-unmatch", "--"}, removed...)
		if _, err := r.git(ctx, args...); err != nil {
			return fmt.Errorf("staging removes: %w", err)
		}
	}

	date := when.Format(time.RFC3339)
	env := []string{
		"GIT_AUTHOR_NAME=" + committer.Name,
		"GIT_AUTHOR_EMAIL=" + committer.Email,
		"GIT_AUTHOR_DATE=" + date,
		"GIT_COMMITTER_NAME=" + committer.Name,
		"GIT_COMMITTER_EMAIL=" + committer.Email,
		"GIT_COMMITTER_DATE=" + date,
	}
	_, err := r.gitWithEnv(ctx, env, "commit", "-m", message)
	return err
}

// Log returns the branch's commit history newest-first, in the shape the
// resume planner consumes.
func (r *Repo) Log(ctx context.Context) ([]resume.CommitRef, error) {
	out, err := r.git(ctx, "log", "--format=%H%x1f%s%x1f%an%x1f%ae")
	if err != nil {
		if strings.Contains(err.Error(), "does not have any commits") {
			return nil, nil
		}
		return nil, err
	}
	if out == "" {
		return nil, nil
	}

	var commits []resume.CommitRef
	for _, line := range strings.Split(out, "\n") {
		parts := strings.Split(line, "\x1f")
		if len(parts) != 4 {
			continue
		}
		commits = append(commits, resume.CommitRef{
			Hash:    parts[0],
			Message: parts[1],
			Author:  models.Identity{Name: parts[2], Email: parts[3]},
		})
	}
	return commits, nil
}
