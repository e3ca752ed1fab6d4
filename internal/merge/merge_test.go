package merge

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"dvh/internal/jarutil"
	"dvh/internal/mapping"
)

func writeJar(t *testing.T, path string, entries map[string]string) {
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
		w.Write([]byte(content))
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestIsBundlerArchiveDetectsHeader(t *testing.T) {
	dir := t.TempDir()
	jarPath := filepath.Join(dir, "server.jar")
	writeJar(t, jarPath, map[string]string{
		"META-INF/MANIFEST.MF": "Manifest-Version: 1.0\nBundler-Format: 1.0\n",
	})

	isBundler, err := isBundlerArchive(jarPath)
	if err != nil {
		t.Fatalf("isBundlerArchive: %v", err)
	}
	if !isBundler {
		t.Error("expected bundler archive to be detected")
	}
}

func TestIsBundlerArchiveFalseWhenAbsent(t *testing.T) {
	dir := t.TempDir()
	jarPath := filepath.Join(dir, "server.jar")
	writeJar(t, jarPath, map[string]string{
		"META-INF/MANIFEST.MF": "Manifest-Version: 1.0\n",
	})

	isBundler, err := isBundlerArchive(jarPath)
	if err != nil {
		t.Fatalf("isBundlerArchive: %v", err)
	}
	if isBundler {
		t.Error("expected non-bundler archive")
	}
}

func TestExtractServerUnobfuscatedIsVerbatim(t *testing.T) {
	dir := t.TempDir()
	jarPath := filepath.Join(dir, "server.jar")
	writeJar(t, jarPath, map[string]string{
		"META-INF/MANIFEST.MF": "Manifest-Version: 1.0\n",
		"com/example/Foo.class": "bytes",
	})

	dest, err := extractServer(context.Background(), Options{ServerJar: jarPath, WorkDir: dir, Mappings: nil})
	if err != nil {
		t.Fatalf("extractServer: %v", err)
	}
	if dest != jarPath {
		t.Errorf("expected unobfuscated server to pass through verbatim, got %s", dest)
	}
}

func TestExtractServerFiltersByMappedClasses(t *testing.T) {
	dir := t.TempDir()
	jarPath := filepath.Join(dir, "server.jar")
	writeJar(t, jarPath, map[string]string{
		"META-INF/MANIFEST.MF": "Manifest-Version: 1.0\n",
		"a.class":               "keep",
		"shaded/lib/b.class":    "drop",
	})

	// Reversed mapping, as mapping.Merge returns it: Original is the
	// obfuscated name.
	m := &mapping.Mappings{Classes: []mapping.ClassMapping{{Original: "a", Mapped: "com.example.Foo"}}}

	dest, err := extractServer(context.Background(), Options{ServerJar: jarPath, WorkDir: dir, Mappings: m})
	if err != nil {
		t.Fatalf("extractServer: %v", err)
	}
	if dest == jarPath {
		t.Fatal("expected a filtered copy, not the verbatim server jar")
	}
	entries, err := jarutil.ListEntries(dest)
	if err != nil {
		t.Fatalf("ListEntries: %v", err)
	}
	if len(entries) != 1 || entries[0] != "a.class" {
		t.Errorf("expected only a.class to be kept, got %v", entries)
	}
}

func TestBuildFingerprintKeyDistinguishesServerLabels(t *testing.T) {
	k := BuildFingerprintKey(staticDeps{}, "merger", "remapper", "", "client-sha", "server-sha", "extracted-sha")
	serialized, err := k.Serialize()
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	if serialized == "" {
		t.Fatal("expected non-empty serialized fingerprint")
	}
	for _, line := range []string{"\nmappings=none\n", "\nserver-sha1=server-sha\n", "\nextracted-server-sha1=extracted-sha\n"} {
		if !strings.Contains(serialized, line) {
			t.Errorf("expected %q as its own labelled line in %q", strings.TrimSpace(line), serialized)
		}
	}
}

type staticDeps struct{}

func (staticDeps) Hash(name string) (string, bool) { return "0000000000000000000000000000000000000000", true }
