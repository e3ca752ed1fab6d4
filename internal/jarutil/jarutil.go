// Package jarutil holds the small set of archive/zip helpers the merge,
// decompile, and working-tree stages need to inspect and recombine jar
// archives. Adapted from the class-collector example's internal/ziputil
// package, retargeted from "write a collected-classes bundle" to
// "read and selectively recombine upstream jar archives".
package jarutil

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// FixedTime is used for every entry this package writes, so regenerated
// archives are byte-identical given identical inputs.
var FixedTime = time.Date(1980, time.January, 1, 0, 0, 0, 0, time.UTC)

// ClassName converts a jar entry path like "com/example/Foo.class" into
// its dotted class name "com.example.Foo". Non ".class" entries are
// returned unchanged.
func ClassName(entryPath string) string {
	if !strings.HasSuffix(entryPath, ".class") {
		return entryPath
	}
	trimmed := strings.TrimSuffix(entryPath, ".class")
	return strings.ReplaceAll(trimmed, "/", ".")
}

// ListEntries returns every regular-file entry name in a jar.
func ListEntries(jarPath string) ([]string, error) {
	r, err := zip.OpenReader(jarPath)
	if err != nil {
		return nil, fmt.Errorf("opening jar %s: %w", jarPath, err)
	}
	defer r.Close()

	names := make([]string, 0, len(r.File))
	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		names = append(names, f.Name)
	}
	return names, nil
}

// ManifestValue reads META-INF/MANIFEST.MF from a jar and returns the value
// of the given header, if present. Used by the merge stage to detect a
// server-bundler archive (spec.md §4.7).
func ManifestValue(jarPath, header string) (string, bool, error) {
	r, err := zip.OpenReader(jarPath)
	if err != nil {
		return "", false, fmt.Errorf("opening jar %s: %w", jarPath, err)
	}
	defer r.Close()

	for _, f := range r.File {
		if f.Name != "META-INF/MANIFEST.MF" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", false, fmt.Errorf("reading manifest: %w", err)
		}
		defer rc.Close()
		data, err := io.ReadAll(rc)
		if err != nil {
			return "", false, fmt.Errorf("reading manifest: %w", err)
		}
		prefix := header + ": "
		for _, line := range strings.Split(string(data), "\n") {
			line = strings.TrimRight(line, "\r")
			if strings.HasPrefix(line, prefix) {
				return strings.TrimSpace(strings.TrimPrefix(line, prefix)), true, nil
			}
		}
		return "", false, nil
	}
	return "", false, nil
}

// FilterCopy copies every entry from srcPath to dstPath for which keep
// returns true, preserving compression method but normalizing timestamps
// for reproducibility.
func FilterCopy(srcPath, dstPath string, keep func(entryName string) bool) (int, error) {
	r, err := zip.OpenReader(srcPath)
	if err != nil {
		return 0, fmt.Errorf("opening jar %s: %w", srcPath, err)
	}
	defer r.Close()

	out, err := os.Create(dstPath)
	if err != nil {
		return 0, fmt.Errorf("creating %s: %w", dstPath, err)
	}
	defer out.Close()

	zw := zip.NewWriter(out)
	copied := 0
	for _, f := range r.File {
		if f.FileInfo().IsDir() || !keep(f.Name) {
			continue
		}
		if err := copyEntry(zw, f); err != nil {
			zw.Close()
			return copied, err
		}
		copied++
	}
	if err := zw.Close(); err != nil {
		return copied, fmt.Errorf("closing %s: %w", dstPath, err)
	}
	return copied, nil
}

func copyEntry(zw *zip.Writer, f *zip.File) error {
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("opening entry %s: %w", f.Name, err)
	}
	defer rc.Close()

	h := &zip.FileHeader{Name: f.Name, Method: f.Method}
	h.SetMode(f.Mode())
	h.Modified = FixedTime

	w, err := zw.CreateHeader(h)
	if err != nil {
		return fmt.Errorf("creating entry %s: %w", f.Name, err)
	}
	if _, err := io.Copy(w, rc); err != nil {
		return fmt.Errorf("writing entry %s: %w", f.Name, err)
	}
	return nil
}
