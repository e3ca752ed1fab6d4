package config

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"dvh/internal/dvherr"
	"dvh/internal/models"
)

// LoadBranchConfig fetches and merges zero or more --cfg sources (file://
// or https:// URIs) into a single branch table, later sources winning over
// earlier ones branch-name by branch-name, per spec.md §6.
func LoadBranchConfig(ctx context.Context, uris []string) (map[string]models.BranchSpec, error) {
	merged := make(map[string]models.BranchSpec)
	for _, uri := range uris {
		data, err := fetchConfigSource(ctx, uri)
		if err != nil {
			return nil, dvherr.New(dvherr.ArgumentError, fmt.Errorf("loading --cfg %s: %w", uri, err))
		}
		var doc models.BranchConfigFile
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, dvherr.New(dvherr.ArgumentError, fmt.Errorf("parsing --cfg %s: %w", uri, err))
		}
		for name, spec := range doc.Branches {
			merged[name] = spec
		}
	}
	return merged, nil
}

func fetchConfigSource(ctx context.Context, uri string) ([]byte, error) {
	switch {
	case strings.HasPrefix(uri, "file://"):
		return os.ReadFile(strings.TrimPrefix(uri, "file://"))
	case strings.HasPrefix(uri, "https://"), strings.HasPrefix(uri, "http://"):
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
		if err != nil {
			return nil, err
		}
		client := &http.Client{Timeout: 30 * time.Second}
		resp, err := client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
		}
		return io.ReadAll(resp.Body)
	default:
		// Bare paths are accepted as a convenience and treated as local files.
		return os.ReadFile(uri)
	}
}
