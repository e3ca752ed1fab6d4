package worktree

import (
	"archive/zip"
	"os"
	"path/filepath"
	"sort"
	"testing"
)

func writeArchive(t *testing.T, path string, entries map[string]string) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer f.Close()
	zw := zip.NewWriter(f)
	for name, content := range entries {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("create entry: %v", err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestSyncAddsNewFiles(t *testing.T) {
	root := t.TempDir()
	archivePath := filepath.Join(root, "decompiled.jar")
	writeArchive(t, archivePath, map[string]string{
		"com/example/Foo.java": "class Foo {}",
		"assets/lang.json":     "{}",
	})

	res, err := Sync(archivePath, root, Filters{}, nil)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	sort.Strings(res.Added)
	if len(res.Added) != 2 {
		t.Fatalf("expected 2 added files, got %v", res.Added)
	}
	if _, err := os.Stat(filepath.Join(root, "src/main/java/com/example/Foo.java")); err != nil {
		t.Errorf("expected java file written: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "src/main/resources/assets/lang.json")); err != nil {
		t.Errorf("expected resource file written: %v", err)
	}
}

func TestSyncRemovesStaleFiles(t *testing.T) {
	root := t.TempDir()
	stalePath := filepath.Join(root, "src/main/java/com/example/Stale.java")
	if err := os.MkdirAll(filepath.Dir(stalePath), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(stalePath, []byte("stale"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	archivePath := filepath.Join(root, "decompiled.jar")
	writeArchive(t, archivePath, map[string]string{})

	res, err := Sync(archivePath, root, Filters{}, nil)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if len(res.Removed) != 1 || res.Removed[0] != "src/main/java/com/example/Stale.java" {
		t.Fatalf("expected stale file removed, got %v", res.Removed)
	}
	if _, err := os.Stat(stalePath); !os.IsNotExist(err) {
		t.Error("expected stale file deleted from disk")
	}
}

func TestSyncUnchangedContentProducesNoAdd(t *testing.T) {
	root := t.TempDir()
	existing := filepath.Join(root, "src/main/java/com/example/Same.java")
	if err := os.MkdirAll(filepath.Dir(existing), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	content := "class Same {}"
	if err := os.WriteFile(existing, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	archivePath := filepath.Join(root, "decompiled.jar")
	writeArchive(t, archivePath, map[string]string{"com/example/Same.java": content})

	res, err := Sync(archivePath, root, Filters{}, nil)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if len(res.Added) != 0 || len(res.Removed) != 0 {
		t.Errorf("expected no-op sync for unchanged content, got added=%v removed=%v", res.Added, res.Removed)
	}
}

func TestSyncExcludeFilterSkipsMatchingEntries(t *testing.T) {
	root := t.TempDir()
	archivePath := filepath.Join(root, "decompiled.jar")
	writeArchive(t, archivePath, map[string]string{
		"com/example/Foo.java":      "class Foo {}",
		"com/example/gen/Gen.java":  "class Gen {}",
	})

	res, err := Sync(archivePath, root, Filters{Exclude: []string{"com/example/gen/*"}}, nil)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if len(res.Added) != 1 {
		t.Fatalf("expected exclude filter to drop generated file, got %v", res.Added)
	}
}
