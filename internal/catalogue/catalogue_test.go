package catalogue

import (
	"testing"

	"dvh/internal/models"
)

func TestSpliceVariantsInsertsAfterBase(t *testing.T) {
	versions := []models.VersionInfo{
		{ID: models.NewVersionId("1.5.2"), Priority: 0},
		{ID: models.NewVersionId("1.6"), Priority: 0},
		{ID: models.NewVersionId("1.7"), Priority: 0},
	}
	variants := []models.VersionInfo{
		{ID: models.NewVersionId("1.6_unobfuscated")},
	}

	out := spliceVariants(versions, variants)
	if len(out) != 4 {
		t.Fatalf("expected 4 versions after splice, got %d", len(out))
	}
	if out[1].ID.String() != "1.6" || out[2].ID.String() != "1.6_unobfuscated" {
		t.Fatalf("expected 1.6_unobfuscated spliced immediately after 1.6, got order %v", idList(out))
	}
	if out[2].Priority <= out[1].Priority {
		t.Errorf("expected variant priority %d to exceed base priority %d", out[2].Priority, out[1].Priority)
	}
	if !out[2].IsUnobfuscated {
		t.Errorf("expected spliced variant to be marked IsUnobfuscated")
	}
}

func TestSpliceVariantsNoMatchLeavesListUnchanged(t *testing.T) {
	versions := []models.VersionInfo{
		{ID: models.NewVersionId("1.5.2")},
	}
	out := spliceVariants(versions, nil)
	if len(out) != 1 {
		t.Fatalf("expected unchanged list, got %v", idList(out))
	}
}

func TestLoadEmbeddedVariantsParsesBundledResources(t *testing.T) {
	variants, err := loadEmbeddedVariants()
	if err != nil {
		t.Fatalf("loadEmbeddedVariants: %v", err)
	}
	if len(variants) == 0 {
		t.Fatalf("expected at least one bundled unobfuscated variant")
	}
	for _, v := range variants {
		if !v.ID.IsUnobfuscatedVariant() {
			t.Errorf("embedded record %q is not a recognized unobfuscated variant id", v.ID)
		}
	}
}

func idList(versions []models.VersionInfo) []string {
	out := make([]string, len(versions))
	for i, v := range versions {
		out[i] = v.ID.String()
	}
	return out
}
