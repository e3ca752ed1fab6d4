package models

// BranchType selects the default inclusion policy for a BranchSpec.
type BranchType string

const (
	BranchRelease BranchType = "release"
	BranchDev     BranchType = "dev"
	BranchCustom  BranchType = "custom"
)

// BranchSpec declares which versions land on a branch and in what range.
// When Versions is non-empty it is an exhaustive allowlist; otherwise
// Include/Exclude modulate the default policy (special-kind versions are
// excluded unless overridden by Include).
type BranchSpec struct {
	Type     BranchType  `json:"type"`
	Start    *VersionId  `json:"start,omitempty"`
	End      *VersionId  `json:"end,omitempty"`
	Versions []VersionId `json:"versions,omitempty"`
	Include  []VersionId `json:"include,omitempty"`
	Exclude  []VersionId `json:"exclude,omitempty"`
}

// BranchConfigFile is the JSON document loaded from --cfg sources:
// {"branches": {<name>: BranchSpec}}.
type BranchConfigFile struct {
	Branches map[string]BranchSpec `json:"branches"`
}
