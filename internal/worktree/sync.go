// Package worktree implements the working-tree syncer (spec.md §4.9):
// diffing a decompiled archive against the on-disk src/main tree and
// producing the minimal add/remove set for a commit.
package worktree

import (
	"archive/zip"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar"

	"dvh/internal/util"
)

// Filters are the include/exclude glob patterns applied to every
// archive-relative entry path before it is considered for sync.
type Filters struct {
	Include []string
	Exclude []string
}

// Enhancement is the post-processing hook spec.md §4.9 step 3 describes:
// it may inject or rewrite files under root, returning the paths (relative
// to root, forward-slash) it touched so they count as "added" and are
// removed from the deletion candidate set.
type Enhancement func(root string) ([]string, error)

// Result is WTS's output: the relative paths (forward-slash, archive- or
// working-tree-relative) that were added/overwritten or removed.
type Result struct {
	Added   []string
	Removed []string
}

// Sync implements spec.md §4.9's procedure against workRoot (expected to
// contain src/main/java and src/main/resources), up to but not including
// staging and committing the result, which the caller does.
func Sync(archivePath, workRoot string, filters Filters, enhancement Enhancement) (*Result, error) {
	existing, err := enumerateExisting(workRoot)
	if err != nil {
		return nil, fmt.Errorf("enumerating working tree: %w", err)
	}

	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return nil, fmt.Errorf("opening decompiled archive: %w", err)
	}
	defer r.Close()

	var added, removed []string

	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		if !matches(f.Name, filters) {
			continue
		}

		dest := destinationFor(f.Name)
		absDest := filepath.Join(workRoot, dest)

		if _, ok := existing[dest]; ok {
			delete(existing, dest)

			real, err := filepath.EvalSymlinks(absDest)
			if err == nil && real != absDest {
				if err := os.Remove(real); err != nil && !os.IsNotExist(err) {
					return nil, fmt.Errorf("removing real target of %s: %w", dest, err)
				}
				removed = append(removed, relSlash(workRoot, real))
				if err := copyEntry(f, absDest); err != nil {
					return nil, err
				}
				added = append(added, dest)
				continue
			}

			changed, err := contentDiffers(f, absDest)
			if err != nil {
				return nil, fmt.Errorf("comparing %s: %w", dest, err)
			}
			if changed {
				if err := copyEntry(f, absDest); err != nil {
					return nil, err
				}
				added = append(added, dest)
			}
			continue
		}

		if err := os.MkdirAll(filepath.Dir(absDest), 0o755); err != nil {
			return nil, fmt.Errorf("creating directories for %s: %w", dest, err)
		}
		if err := copyEntry(f, absDest); err != nil {
			return nil, err
		}
		added = append(added, dest)
	}

	if enhancement != nil {
		extra, err := enhancement(workRoot)
		if err != nil {
			return nil, fmt.Errorf("running enhancement hook: %w", err)
		}
		for _, p := range extra {
			added = append(added, p)
			delete(existing, p)
		}
	}

	var remaining []string
	for p := range existing {
		remaining = append(remaining, p)
	}
	sort.Strings(remaining)
	for _, p := range remaining {
		if err := os.Remove(filepath.Join(workRoot, p)); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("removing stale file %s: %w", p, err)
		}
		removed = append(removed, p)
	}

	return &Result{Added: added, Removed: removed}, nil
}

// destinationFor maps an archive-relative path to its src/main subtree
// per spec.md §4.9 step 2.
func destinationFor(archivePath string) string {
	clean := filepath.ToSlash(archivePath)
	if strings.HasSuffix(clean, ".java") {
		return "src/main/java/" + clean
	}
	return "src/main/resources/" + clean
}

func matches(archivePath string, filters Filters) bool {
	clean := filepath.ToSlash(archivePath)

	if len(filters.Include) > 0 {
		included := false
		for _, pat := range filters.Include {
			if ok, _ := doublestar.Match(pat, clean); ok {
				included = true
				break
			}
		}
		if !included {
			return false
		}
	}
	for _, pat := range filters.Exclude {
		if ok, _ := doublestar.Match(pat, clean); ok {
			return false
		}
	}
	return true
}

func enumerateExisting(workRoot string) (map[string]struct{}, error) {
	root := filepath.Join(workRoot, "src", "main")
	existing := make(map[string]struct{})

	if _, err := os.Stat(root); os.IsNotExist(err) {
		return existing, nil
	}

	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		existing[relSlash(workRoot, path)] = struct{}{}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return existing, nil
}

func relSlash(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}

func copyEntry(f *zip.File, dest string) error {
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("opening archive entry %s: %w", f.Name, err)
	}
	defer rc.Close()

	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("creating %s: %w", dest, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, rc); err != nil {
		return fmt.Errorf("writing %s: %w", dest, err)
	}
	return nil
}

// contentDiffers compares an archive entry's content hash against the
// on-disk file's, so unchanged decompiler output (modulo non-determinism
// elsewhere) produces no diff (spec.md §9's idempotence note).
func contentDiffers(f *zip.File, existingPath string) (bool, error) {
	rc, err := f.Open()
	if err != nil {
		return false, err
	}
	defer rc.Close()

	entryHash, err := hashReader(rc)
	if err != nil {
		return false, err
	}
	existingHash, err := util.SHA1File(existingPath)
	if err != nil {
		if os.IsNotExist(err) {
			return true, nil
		}
		return false, err
	}
	return entryHash != existingHash, nil
}

func hashReader(r io.Reader) (string, error) {
	h := sha1.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
