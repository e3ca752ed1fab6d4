package decompile

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestBuildArgsAddsObfuscatedFlagsOnlyWhenObfuscated(t *testing.T) {
	plain := buildArgs(Options{Obfuscated: false})
	for _, f := range obfuscatedFlags {
		for _, a := range plain {
			if a == f {
				t.Errorf("unobfuscated args should not include %s", f)
			}
		}
	}

	obf := buildArgs(Options{Obfuscated: true})
	for _, f := range obfuscatedFlags {
		found := false
		for _, a := range obf {
			if a == f {
				found = true
			}
		}
		if !found {
			t.Errorf("obfuscated args missing %s", f)
		}
	}
}

func TestWriteClasspathFileOneEntryPerLine(t *testing.T) {
	dir := t.TempDir()
	path, err := writeClasspathFile(dir, []string{"/libs/a.jar", "/libs/b.jar"})
	if err != nil {
		t.Fatalf("writeClasspathFile: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	if lines[0] != "-e=/libs/a.jar" {
		t.Errorf("unexpected first line: %q", lines[0])
	}
}

func TestBuildFingerprintKeyRelativizesLibraryPaths(t *testing.T) {
	dir := t.TempDir()
	libDir := filepath.Join(dir, "libraries")
	lib := filepath.Join(libDir, "com", "example", "foo-1.0.jar")
	if err := os.MkdirAll(filepath.Dir(lib), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(lib, []byte("jar"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	joined := filepath.Join(dir, "joined.jar")
	if err := os.WriteFile(joined, []byte("joined"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	k, err := BuildFingerprintKey(staticDeps{}, "decompiler", []string{"decompiler-plugin-forge"}, joined, []string{"--flag"}, libDir, []string{lib})
	if err != nil {
		t.Fatalf("BuildFingerprintKey: %v", err)
	}
	serialized, err := k.Serialize()
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	if !strings.Contains(serialized, "library:com/example/foo-1.0.jar") && !strings.Contains(serialized, "library:com"+string(filepath.Separator)) {
		t.Errorf("expected relativized library label in %q", serialized)
	}
}

type staticDeps struct{}

func (staticDeps) Hash(name string) (string, bool) { return "1111111111111111111111111111111111111111", true }
