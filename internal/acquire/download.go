// Package acquire implements the artifact acquirer (spec.md §4.5): the
// concurrent per-version downloader for version.json, side mappings,
// client/server archives, and shared library dependencies.
package acquire

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"dvh/internal/dvherr"
	"dvh/internal/util"
)

// fetcher is the shared low-level HTTP client every download goes
// through.
type fetcher struct {
	client *http.Client
}

func newFetcher() *fetcher {
	return &fetcher{client: &http.Client{Timeout: 2 * time.Minute}}
}

// downloadTo streams url to destPath, validating its SHA-1 against
// expectedSHA1 when non-empty. A file:// url is read from the local
// filesystem directly, the way config.fetchConfigSource treats --cfg
// sources, since http.Client has no built-in support for that scheme.
func (f *fetcher) downloadTo(ctx context.Context, url, destPath, expectedSHA1 string) error {
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return fmt.Errorf("creating destination directory: %w", err)
	}

	var body io.ReadCloser
	if local, ok := strings.CutPrefix(url, "file://"); ok {
		lf, err := os.Open(local)
		if err != nil {
			return err
		}
		body = lf
	} else {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		resp, err := f.client.Do(req)
		if err != nil {
			return dvherr.New(dvherr.ToolFailure, fmt.Errorf("downloading %s: %w", url, err))
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return dvherr.Newf(dvherr.ToolFailure, "downloading %s: HTTP %d", url, resp.StatusCode)
		}
		body = resp.Body
	}
	defer body.Close()

	tmp := destPath + ".download"
	out, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, body); err != nil {
		out.Close()
		os.Remove(tmp)
		return fmt.Errorf("writing %s: %w", destPath, err)
	}
	out.Close()

	if expectedSHA1 != "" {
		got, err := util.SHA1File(tmp)
		if err != nil {
			os.Remove(tmp)
			return err
		}
		if got != expectedSHA1 {
			os.Remove(tmp)
			return dvherr.Newf(dvherr.ToolFailure, "downloaded %s has SHA-1 %s, expected %s", url, got, expectedSHA1)
		}
	}
	return os.Rename(tmp, destPath)
}

// ensureFile checks whether path exists and (when expectedSHA1 is
// non-empty) matches; downloading from url if either check fails.
func (f *fetcher) ensureFile(ctx context.Context, url, path, expectedSHA1 string) error {
	if expectedSHA1 != "" {
		if got, err := util.SHA1File(path); err == nil && got == expectedSHA1 {
			return nil
		}
	} else if _, err := os.Stat(path); err == nil {
		return nil
	}
	return f.downloadTo(ctx, url, path, expectedSHA1)
}

// writeVersionJSON serializes detail to path atomically, the way
// fingerprint.Key.Write does, so a half-written file can never pass a
// later SHA-1 check.
func writeVersionJSON(path string, detail any) error {
	data, err := json.MarshalIndent(detail, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
