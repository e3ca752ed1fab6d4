package acquire

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"dvh/internal/dvherr"
	"dvh/internal/models"
)

// perRunTimeout bounds the whole worker pool, per spec.md §5.
const perRunTimeout = 10 * time.Minute

// Downloader runs AA's concurrent per-version acquisition.
type Downloader struct {
	fetcher          *fetcher
	libraryCacheRoot string
	inProgress       *libraryInProgress
}

// NewDownloader creates a Downloader rooted at libraryCacheRoot (spec.md
// §6's <cache>/libraries).
func NewDownloader(libraryCacheRoot string) *Downloader {
	return &Downloader{
		fetcher:          newFetcher(),
		libraryCacheRoot: libraryCacheRoot,
		inProgress:       newLibraryInProgress(),
	}
}

// Item is one version's acquisition inputs.
type Item struct {
	Info             models.VersionInfo
	Detail           models.VersionDetail
	CacheDir         string
	ExtraMappingsDir string
	PartialCache     bool
}

// AcquireAll runs AcquireVersion across items with a worker pool bounded
// to logical CPU count, failing the whole run if it exceeds the per-run
// timeout (spec.md §4.5, §5).
func (d *Downloader) AcquireAll(ctx context.Context, items []Item) error {
	ctx, cancel := context.WithTimeout(ctx, perRunTimeout)
	defer cancel()

	sem := semaphore.NewWeighted(int64(runtime.NumCPU()))
	g, ctx := errgroup.WithContext(ctx)

	for _, item := range items {
		item := item
		if err := sem.Acquire(ctx, 1); err != nil {
			return dvherr.New(dvherr.ToolFailure, fmt.Errorf("acquiring worker slot: %w", err))
		}
		g.Go(func() error {
			defer sem.Release(1)
			return d.AcquireVersion(ctx, item)
		})
	}

	if err := g.Wait(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return dvherr.New(dvherr.ToolFailure, fmt.Errorf("artifact acquisition exceeded %s: %w", perRunTimeout, err))
		}
		return err
	}
	return nil
}

// AcquireVersion implements spec.md §4.5's per-version procedure.
func (d *Downloader) AcquireVersion(ctx context.Context, item Item) error {
	versionJSON := filepath.Join(item.CacheDir, "version.json")
	if err := d.fetcher.ensureFile(ctx, item.Info.ManifestURL, versionJSON, item.Info.ManifestHash); err != nil {
		if err2 := writeVersionJSON(versionJSON, item.Detail); err2 != nil {
			return fmt.Errorf("ensuring version.json for %s: %w", item.Info.ID, err)
		}
	}

	if err := d.ensureMappings(ctx, item, models.DownloadClientMappings, "client_mappings.txt"); err != nil {
		return err
	}
	if err := d.ensureMappings(ctx, item, models.DownloadServerMappings, "server_mappings.txt"); err != nil {
		return err
	}

	for _, lib := range item.Detail.Libraries {
		if err := d.ensureLibrary(ctx, lib); err != nil {
			return fmt.Errorf("acquiring library %s for %s: %w", lib.Name, item.Info.ID, err)
		}
	}

	if !item.PartialCache {
		if dl, ok := item.Detail.Downloads[models.DownloadClient]; ok {
			if err := d.fetcher.ensureFile(ctx, dl.URL, filepath.Join(item.CacheDir, "client.jar"), dl.SHA1); err != nil {
				return fmt.Errorf("acquiring client.jar for %s: %w", item.Info.ID, err)
			}
		}
		if dl, ok := item.Detail.Downloads[models.DownloadServer]; ok {
			if err := d.fetcher.ensureFile(ctx, dl.URL, filepath.Join(item.CacheDir, "server.jar"), dl.SHA1); err != nil {
				return fmt.Errorf("acquiring server.jar for %s: %w", item.Info.ID, err)
			}
		}
	}

	return nil
}

// ensureMappings implements spec.md §4.5's "try extra mappings dir, then
// upstream" fallback for one side mapping.
func (d *Downloader) ensureMappings(ctx context.Context, item Item, kind models.DownloadKind, filename string) error {
	dl, ok := item.Detail.Downloads[kind]
	if !ok {
		return nil
	}
	dest := filepath.Join(item.CacheDir, filename)

	side := "client"
	if kind == models.DownloadServerMappings {
		side = "server"
	}
	if item.ExtraMappingsDir != "" {
		extra := filepath.Join(item.ExtraMappingsDir, string(item.Info.Kind), item.Info.ID.String(), "maps", side+".txt")
		if err := d.fetcher.ensureFile(ctx, "file://"+extra, dest, ""); err == nil {
			return nil
		}
	}

	return d.fetcher.ensureFile(ctx, dl.URL, dest, dl.SHA1)
}
