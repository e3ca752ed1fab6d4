package jarutil

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"
)

func writeTestJar(t *testing.T, path string, entries map[string]string) {
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
			t.Fatalf("write entry: %v", err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
}

func TestClassName(t *testing.T) {
	if got := ClassName("com/example/Foo.class"); got != "com.example.Foo" {
		t.Errorf("ClassName = %q, want com.example.Foo", got)
	}
	if got := ClassName("assets/lang.json"); got != "assets/lang.json" {
		t.Errorf("ClassName should pass through non-class entries unchanged, got %q", got)
	}
}

func TestListEntriesAndManifestValue(t *testing.T) {
	dir := t.TempDir()
	jarPath := filepath.Join(dir, "server.jar")
	writeTestJar(t, jarPath, map[string]string{
		"com/example/Foo.class": "classbytes",
		"META-INF/MANIFEST.MF":  "Manifest-Version: 1.0\nMain-Class: com.example.Bundler\n",
	})

	entries, err := ListEntries(jarPath)
	if err != nil {
		t.Fatalf("ListEntries: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}

	val, ok, err := ManifestValue(jarPath, "Main-Class")
	if err != nil {
		t.Fatalf("ManifestValue: %v", err)
	}
	if !ok || val != "com.example.Bundler" {
		t.Errorf("expected Main-Class com.example.Bundler, got %q (ok=%v)", val, ok)
	}

	_, ok, err = ManifestValue(jarPath, "Nonexistent-Header")
	if err != nil {
		t.Fatalf("ManifestValue: %v", err)
	}
	if ok {
		t.Errorf("expected ok=false for absent header")
	}
}

func TestFilterCopyKeepsOnlyMatching(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.jar")
	dst := filepath.Join(dir, "dst.jar")
	writeTestJar(t, src, map[string]string{
		"com/example/Keep.class": "a",
		"com/example/Drop.class": "b",
	})

	n, err := FilterCopy(src, dst, func(name string) bool {
		return name == "com/example/Keep.class"
	})
	if err != nil {
		t.Fatalf("FilterCopy: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 entry copied, got %d", n)
	}

	entries, err := ListEntries(dst)
	if err != nil {
		t.Fatalf("ListEntries(dst): %v", err)
	}
	if len(entries) != 1 || entries[0] != "com/example/Keep.class" {
		t.Errorf("unexpected filtered entries: %v", entries)
	}
}
