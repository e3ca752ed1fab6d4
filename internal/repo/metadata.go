package repo

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"dvh/internal/dvherr"
	"dvh/internal/models"
)

// metadataFields parses the well-known key=value metadata file.
func metadataFields(data []byte) map[string]string {
	out := make(map[string]string)
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		idx := strings.IndexByte(line, '=')
		if idx < 0 {
			continue
		}
		out[line[:idx]] = line[idx+1:]
	}
	return out
}

// EnsureInitialCommit checks the branch's first commit metadata file
// against the current schema/start (spec.md §3's RepoState invariant),
// creating it with a fixed epoch date when the branch has no commits yet.
// Returns the metadata commit hash.
func (r *Repo) EnsureInitialCommit(ctx context.Context, start string, committer models.Identity) (string, error) {
	head, err := r.Head(ctx)
	if err != nil {
		return "", err
	}
	if head != "" {
		return r.validateInitialCommit(ctx, start)
	}

	path := filepath.Join(r.dir, models.MetadataFileName)
	content := fmt.Sprintf("VersionId=%s\nStart=%s\n", models.MetadataSchemaVersion, start)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("writing metadata file: %w", err)
	}

	epoch := time.Unix(0, 0).UTC()
	if err := r.StageAndCommit(ctx, []string{models.MetadataFileName}, nil, models.MetadataFileName, committer, epoch); err != nil {
		return "", err
	}
	return r.Head(ctx)
}

// validateInitialCommit reads the existing metadata file off the branch's
// root commit and verifies it matches verbatim (spec.md §3).
func (r *Repo) validateInitialCommit(ctx context.Context, start string) (string, error) {
	rootHash, err := r.git(ctx, "rev-list", "--max-parents=0", "HEAD")
	if err != nil {
		return "", err
	}
	content, err := r.git(ctx, "show", rootHash+":"+models.MetadataFileName)
	if err != nil {
		return "", dvherr.Newf(dvherr.MetadataMismatch, "branch's initial commit carries no %s", models.MetadataFileName)
	}

	fields := metadataFields([]byte(content))
	if fields["VersionId"] != models.MetadataSchemaVersion || fields["Start"] != start {
		return "", dvherr.Newf(dvherr.MetadataMismatch,
			"initial-commit metadata {VersionId=%s,Start=%s} disagrees with current {VersionId=%s,Start=%s}",
			fields["VersionId"], fields["Start"], models.MetadataSchemaVersion, start)
	}
	return rootHash, nil
}
