package branch

import (
	"testing"

	"dvh/internal/models"
)

func v(id string, kind models.Kind, releaseTime string) models.VersionInfo {
	return models.VersionInfo{ID: models.NewVersionId(id), Kind: kind, TimeReleased: releaseTime}
}

func TestApplyExcludesSpecialByDefault(t *testing.T) {
	manifest := []models.VersionInfo{
		v("1.14.4", models.KindRelease, "2019-01-01"),
		v("april-fools", models.KindSpecial, "2019-04-01"),
		v("1.15", models.KindRelease, "2019-12-10"),
	}
	spec := models.BranchSpec{Type: models.BranchDev}
	plan, err := Apply(manifest, models.Latest{Release: models.NewVersionId("1.15")}, spec)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if len(plan.Filtered) != 2 {
		t.Fatalf("expected special version excluded, got %d entries", len(plan.Filtered))
	}
	for _, f := range plan.Filtered {
		if f.Kind == models.KindSpecial {
			t.Errorf("special version %s leaked through default filter", f.ID)
		}
	}
}

func TestApplyReleaseTypeRestrictsToReleases(t *testing.T) {
	manifest := []models.VersionInfo{
		v("1.15", models.KindRelease, "2019-12-10"),
		v("1.15.1-pre1", models.KindSnapshot, "2019-12-15"),
		v("1.15.1", models.KindRelease, "2019-12-17"),
	}
	spec := models.BranchSpec{Type: models.BranchRelease}
	plan, err := Apply(manifest, models.Latest{Release: models.NewVersionId("1.15.1")}, spec)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if len(plan.Filtered) != 2 {
		t.Fatalf("expected only release-kind versions, got %v", plan.Filtered)
	}
	if plan.End.String() != "1.15.1" {
		t.Errorf("expected end to default to latest release, got %s", plan.End)
	}
}

func TestApplyExplicitVersionsIsExhaustiveAllowlist(t *testing.T) {
	manifest := []models.VersionInfo{
		v("1.15", models.KindRelease, "2019-12-10"),
		v("1.15.1", models.KindRelease, "2019-12-17"),
		v("1.16", models.KindRelease, "2020-06-23"),
	}
	spec := models.BranchSpec{
		Type:     models.BranchCustom,
		Versions: []models.VersionId{models.NewVersionId("1.15"), models.NewVersionId("1.16")},
	}
	plan, err := Apply(manifest, models.Latest{}, spec)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if len(plan.Filtered) != 2 {
		t.Fatalf("expected exactly the allowlisted versions, got %v", plan.Filtered)
	}
}

func TestApplyUnderspecifiedReturnsPolicyExcluded(t *testing.T) {
	spec := models.BranchSpec{Type: models.BranchDev}
	_, err := Apply(nil, models.Latest{}, spec)
	if err == nil {
		t.Fatal("expected error for empty manifest with no explicit start/end")
	}
}
