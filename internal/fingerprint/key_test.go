package fingerprint_test

import (
	"os"
	"path/filepath"
	"testing"

	"dvh/internal/fingerprint"
)

type staticDeps map[string]string

func (d staticDeps) Hash(name string) (string, bool) {
	h, ok := d[name]
	return h, ok
}

func TestKeyRoundTrip(t *testing.T) {
	dir := t.TempDir()
	inputPath := filepath.Join(dir, "input.bin")
	if err := os.WriteFile(inputPath, []byte("hello world"), 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	deps := staticDeps{"remapper": "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"}

	k := fingerprint.New(deps)
	k.Put("mappings", "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
	k.PutLiteral("flags", "--no-dist-annotations")
	k.PutPath("input", inputPath)
	k.PutDependency("tool", "remapper")

	stored := filepath.Join(dir, "joined.jar.cache")
	if err := k.Write(stored); err != nil {
		t.Fatalf("Write: %v", err)
	}

	ok, err := k.IsValid(stored)
	if err != nil {
		t.Fatalf("IsValid: %v", err)
	}
	if !ok {
		t.Fatalf("expected freshly-written key to validate")
	}

	// Mutate the input; the path-derived hash must now disagree.
	if err := os.WriteFile(inputPath, []byte("goodbye world"), 0o644); err != nil {
		t.Fatalf("rewriting fixture: %v", err)
	}
	k2 := fingerprint.New(deps)
	k2.Put("mappings", "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
	k2.PutLiteral("flags", "--no-dist-annotations")
	k2.PutPath("input", inputPath)
	k2.PutDependency("tool", "remapper")

	ok, err = k2.IsValid(stored)
	if err != nil {
		t.Fatalf("IsValid after mutation: %v", err)
	}
	if ok {
		t.Fatalf("expected mutated input to invalidate the cache")
	}
}

func TestIsValidMissingFileIsInvalid(t *testing.T) {
	k := fingerprint.New(nil)
	k.PutLiteral("a", "1")
	ok, err := k.IsValid(filepath.Join(t.TempDir(), "does-not-exist.cache"))
	if err != nil {
		t.Fatalf("IsValid: %v", err)
	}
	if ok {
		t.Fatalf("missing file must be invalid")
	}
}

func TestIsValidRestrictedLabels(t *testing.T) {
	dir := t.TempDir()
	stored := filepath.Join(dir, "x.cache")

	k := fingerprint.New(nil)
	k.PutLiteral("a", "1")
	k.PutLiteral("b", "2")
	if err := k.Write(stored); err != nil {
		t.Fatalf("Write: %v", err)
	}

	k2 := fingerprint.New(nil)
	k2.PutLiteral("a", "1")
	k2.PutLiteral("b", "different")

	ok, err := k2.IsValid(stored, "a")
	if err != nil {
		t.Fatalf("IsValid: %v", err)
	}
	if !ok {
		t.Fatalf("restricting to label 'a' should ignore the mismatched 'b'")
	}

	ok, err = k2.IsValid(stored)
	if err != nil {
		t.Fatalf("IsValid: %v", err)
	}
	if ok {
		t.Fatalf("unrestricted comparison should catch the mismatched 'b'")
	}
}

func TestCommentLinesIgnored(t *testing.T) {
	dir := t.TempDir()
	stored := filepath.Join(dir, "manual.cache")
	content := "# generated by dvh\na=1\n# trailing comment\nb=2\n"
	if err := os.WriteFile(stored, []byte(content), 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	k := fingerprint.New(nil)
	k.PutLiteral("a", "1")
	k.PutLiteral("b", "2")

	ok, err := k.IsValid(stored)
	if err != nil {
		t.Fatalf("IsValid: %v", err)
	}
	if !ok {
		t.Fatalf("expected comment-bearing file to still validate")
	}
}
