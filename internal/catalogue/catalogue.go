// Package catalogue implements the manifest resolver (spec.md §4.2): it
// fetches the upstream version catalogue and splices in synthetic
// "unobfuscated" variant records from resources embedded in the program
// image. Grounded on the teacher's internal/registry.LoadFromURL for the
// fetch-and-decode shape.
package catalogue

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"dvh/internal/dvherr"
	"dvh/internal/models"
)

// Manifest is the resolved, ordered catalogue: every known version sorted
// by release time ascending, plus the upstream's own "latest" pointers.
type Manifest struct {
	Latest   models.Latest
	Versions []models.VersionInfo
}

// rawManifest mirrors the upstream catalogue document's JSON shape.
type rawManifest struct {
	Latest   models.Latest        `json:"latest"`
	Versions []models.VersionInfo `json:"versions"`
}

// Resolver fetches and assembles the version catalogue.
type Resolver struct {
	client *http.Client
}

// NewResolver creates a Resolver using a 30s-timeout HTTP client, the same
// default the teacher's registry loader relies on via http.DefaultClient.
func NewResolver() *Resolver {
	return &Resolver{client: &http.Client{Timeout: 30 * time.Second}}
}

// Fetch retrieves the catalogue from url, sorts it by release time
// ascending, and inserts every embedded synthetic unobfuscated variant
// immediately after its base version.
func (r *Resolver) Fetch(ctx context.Context, url string) (*Manifest, error) {
	raw, err := r.fetchRaw(ctx, url)
	if err != nil {
		return nil, dvherr.New(dvherr.ManifestUnavailable, err)
	}
	if raw.Versions == nil {
		return nil, dvherr.Newf(dvherr.ManifestUnavailable, "catalogue at %s has no versions field", url)
	}

	versions := make([]models.VersionInfo, len(raw.Versions))
	copy(versions, raw.Versions)
	for i := range versions {
		versions[i].Kind = versions[i].ID.Kind()
	}

	sort.SliceStable(versions, func(i, j int) bool {
		return versions[i].TimeReleased < versions[j].TimeReleased
	})

	variants, err := loadEmbeddedVariants()
	if err != nil {
		return nil, dvherr.New(dvherr.ManifestUnavailable, fmt.Errorf("loading embedded unobfuscated variants: %w", err))
	}
	versions = spliceVariants(versions, variants)

	return &Manifest{Latest: raw.Latest, Versions: versions}, nil
}

func (r *Resolver) fetchRaw(ctx context.Context, url string) (*rawManifest, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching catalogue: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching catalogue: HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading catalogue body: %w", err)
	}

	var raw rawManifest
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("parsing catalogue JSON: %w", err)
	}
	return &raw, nil
}

// FetchDetail retrieves the per-version VersionDetail from its manifest URL.
func (r *Resolver) FetchDetail(ctx context.Context, manifestURL string) (*models.VersionDetail, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, manifestURL, nil)
	if err != nil {
		return nil, dvherr.New(dvherr.ManifestUnavailable, fmt.Errorf("creating request: %w", err))
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, dvherr.New(dvherr.ManifestUnavailable, fmt.Errorf("fetching version detail: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, dvherr.Newf(dvherr.ManifestUnavailable, "fetching version detail %s: HTTP %d", manifestURL, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, dvherr.New(dvherr.ManifestUnavailable, fmt.Errorf("reading version detail body: %w", err))
	}

	var detail models.VersionDetail
	if err := json.Unmarshal(body, &detail); err != nil {
		return nil, dvherr.New(dvherr.ManifestUnavailable, fmt.Errorf("parsing version detail JSON: %w", err))
	}
	return &detail, nil
}

// spliceVariants inserts each variant's VersionInfo record immediately
// after its base version, with Priority = base.Priority + 1 so it compares
// as newer than its base. Only the inserted variant is marked
// IsUnobfuscated; it also takes its base's Kind.
func spliceVariants(versions []models.VersionInfo, variants []models.VersionInfo) []models.VersionInfo {
	if len(variants) == 0 {
		return versions
	}

	byBase := make(map[string]models.VersionInfo, len(variants))
	for _, v := range variants {
		byBase[v.ID.Base().String()] = v
	}

	out := make([]models.VersionInfo, 0, len(versions)+len(variants))
	for _, v := range versions {
		out = append(out, v)
		if variant, ok := byBase[v.ID.String()]; ok {
			variant.Priority = v.Priority + 1
			variant.IsUnobfuscated = true
			variant.Kind = v.Kind
			out = append(out, variant)
		}
	}
	return out
}
