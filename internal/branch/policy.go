// Package branch implements the branch policy (spec.md §4.3): filtering
// and ordering a resolved version list per a declarative BranchSpec.
package branch

import (
	"dvh/internal/dvherr"
	"dvh/internal/models"
)

// Plan is BP's output: the filtered, ordered version list plus the
// effective start and end ids.
type Plan struct {
	Filtered []models.VersionInfo
	Start    models.VersionId
	End      models.VersionId
}

// Apply filters and orders versions per spec, returning the effective
// start/end. manifest is the full resolved catalogue (needed to compute
// the default end when the spec leaves it unset).
func Apply(manifest []models.VersionInfo, latest models.Latest, spec models.BranchSpec) (*Plan, error) {
	filtered := filter(manifest, spec)

	start := spec.Start
	if start == nil && len(filtered) > 0 {
		s := filtered[0].ID
		start = &s
	}

	end := spec.End
	if end == nil {
		e, err := defaultEnd(filtered, latest, spec.Type)
		if err != nil {
			return nil, err
		}
		end = e
	}

	if start == nil || end == nil {
		return nil, dvherr.Newf(dvherr.PolicyExcluded, "branch policy underspecified: no start or end version could be derived")
	}

	return &Plan{Filtered: filtered, Start: *start, End: *end}, nil
}

// filter implements spec.md §4.3 steps 1-3.
func filter(manifest []models.VersionInfo, spec models.BranchSpec) []models.VersionInfo {
	if len(spec.Versions) > 0 {
		allow := toIDSet(spec.Versions)
		var out []models.VersionInfo
		for _, v := range manifest {
			if allow[v.ID.String()] {
				out = append(out, v)
			}
		}
		return out
	}

	exclude := make(map[string]bool)
	for _, v := range manifest {
		if v.Kind == models.KindSpecial {
			exclude[v.ID.String()] = true
		}
	}
	for _, v := range manifest {
		if v.IsUnobfuscated {
			exclude[v.ID.String()] = true
		}
	}
	for _, id := range spec.Exclude {
		exclude[id.String()] = true
	}
	for _, id := range spec.Include {
		delete(exclude, id.String())
	}

	var out []models.VersionInfo
	for _, v := range manifest {
		if exclude[v.ID.String()] {
			continue
		}
		if spec.Type == models.BranchRelease && v.Kind != models.KindRelease {
			continue
		}
		out = append(out, v)
	}
	return out
}

// defaultEnd implements spec.md §4.3 step 4's end rule.
func defaultEnd(filtered []models.VersionInfo, latest models.Latest, branchType models.BranchType) (*models.VersionId, error) {
	if branchType == models.BranchRelease {
		id := latest.Release
		return &id, nil
	}

	var releaseTime, snapshotTime string
	var releasePresent, snapshotPresent bool
	for _, v := range filtered {
		if v.ID.String() == latest.Release.String() {
			releaseTime = v.TimeReleased
			releasePresent = true
		}
		if v.ID.String() == latest.Snapshot.String() {
			snapshotTime = v.TimeReleased
			snapshotPresent = true
		}
	}

	switch {
	case releasePresent && snapshotPresent:
		if snapshotTime > releaseTime {
			id := latest.Snapshot
			return &id, nil
		}
		id := latest.Release
		return &id, nil
	case releasePresent:
		id := latest.Release
		return &id, nil
	case snapshotPresent:
		id := latest.Snapshot
		return &id, nil
	default:
		if len(filtered) == 0 {
			return nil, nil
		}
		id := filtered[len(filtered)-1].ID
		return &id, nil
	}
}

func toIDSet(ids []models.VersionId) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id.String()] = true
	}
	return set
}
