package catalogue

import (
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"

	"dvh/internal/models"
)

//go:embed resources/unobfuscated/*.json
var unobfuscatedFS embed.FS

// unobfuscatedRecord mirrors one embedded variant descriptor's JSON shape.
type unobfuscatedRecord struct {
	ID           string `json:"id"`
	ManifestURL  string `json:"url"`
	TimeCreated  string `json:"time"`
	TimeReleased string `json:"releaseTime"`
	ManifestHash string `json:"sha1,omitempty"`
}

// loadEmbeddedVariants parses every resources/unobfuscated/*.json file into
// a VersionInfo record ready for splicing into the resolved catalogue.
func loadEmbeddedVariants() ([]models.VersionInfo, error) {
	entries, err := fs.ReadDir(unobfuscatedFS, "resources/unobfuscated")
	if err != nil {
		return nil, fmt.Errorf("reading embedded variant directory: %w", err)
	}

	variants := make([]models.VersionInfo, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		data, err := fs.ReadFile(unobfuscatedFS, "resources/unobfuscated/"+entry.Name())
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", entry.Name(), err)
		}
		var rec unobfuscatedRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", entry.Name(), err)
		}
		variants = append(variants, models.VersionInfo{
			ID:           models.NewVersionId(rec.ID),
			ManifestURL:  rec.ManifestURL,
			TimeCreated:  rec.TimeCreated,
			TimeReleased: rec.TimeReleased,
			ManifestHash: rec.ManifestHash,
		})
	}
	return variants, nil
}
