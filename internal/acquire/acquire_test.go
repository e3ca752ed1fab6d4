package acquire

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"dvh/internal/models"
)

func TestEnsureFileSkipsWhenSHA1Matches(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f.txt")
	if err := os.WriteFile(path, []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}
	// SHA-1 of "hello".
	const sha1Hello = "aaf4c61ddcc5e8a2dabede0f3b482cd9aea9434d"

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("server should not be contacted when the cached file already matches")
	}))
	defer server.Close()

	f := newFetcher()
	if err := f.ensureFile(context.Background(), server.URL, path, sha1Hello); err != nil {
		t.Fatalf("ensureFile: %v", err)
	}
}

func TestEnsureFileDownloadsWhenMissing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f.txt")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("hello"))
	}))
	defer server.Close()

	f := newFetcher()
	if err := f.ensureFile(context.Background(), server.URL, path, ""); err != nil {
		t.Fatalf("ensureFile: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "hello" {
		t.Errorf("got %q, want %q", data, "hello")
	}
}

func TestValidateLibraryPathRejectsTraversal(t *testing.T) {
	if err := validateLibraryPath("../../etc/passwd"); err == nil {
		t.Error("expected traversal path to be rejected")
	}
	if err := validateLibraryPath("com/example/lib/1.0/lib-1.0.jar"); err != nil {
		t.Errorf("expected well-formed path to be accepted, got %v", err)
	}
}

func TestLibraryInProgressDeduplicatesConcurrentClaims(t *testing.T) {
	lip := newLibraryInProgress()

	owns1, _ := lip.claim("x")
	if !owns1 {
		t.Fatal("first claim should own the key")
	}
	owns2, wait := lip.claim("x")
	if owns2 {
		t.Fatal("second concurrent claim should not own the key")
	}

	done := make(chan struct{})
	go func() {
		<-wait
		close(done)
	}()
	lip.release("x")
	<-done

	owns3, _ := lip.claim("x")
	if !owns3 {
		t.Fatal("claim after release should own the key again")
	}
}

func TestAcquireVersionPrefersExtraMappingsDir(t *testing.T) {
	dir := t.TempDir()
	extraDir := t.TempDir()

	id := models.NewVersionId("1.14.4")
	mapsDir := filepath.Join(extraDir, "release", id.String(), "maps")
	if err := os.MkdirAll(mapsDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(mapsDir, "client.txt"), []byte("a.b.C -> a:\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("upstream mappings URL should not be fetched when extra-mappings-dir has the file")
	}))
	defer server.Close()

	d := NewDownloader(filepath.Join(dir, "libraries"))
	item := Item{
		Info: models.VersionInfo{ID: id, Kind: models.KindRelease},
		Detail: models.VersionDetail{
			Downloads: map[models.DownloadKind]models.Download{
				models.DownloadClientMappings: {URL: server.URL, SHA1: ""},
			},
		},
		CacheDir:         dir,
		ExtraMappingsDir: extraDir,
	}
	if err := d.ensureMappings(context.Background(), item, models.DownloadClientMappings, "client_mappings.txt"); err != nil {
		t.Fatalf("ensureMappings: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "client_mappings.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "a.b.C -> a:\n" {
		t.Errorf("expected extra-mappings content to win, got %q", data)
	}
}
