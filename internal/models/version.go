// Package models holds the plain data types shared across the DVH pipeline:
// version identifiers, manifest records, branch specifications, and the
// committer/repository state threaded through a run.
package models

import (
	"encoding/json"
	"regexp"
	"strings"
)

// Kind classifies a VersionId by its lexical shape.
type Kind string

const (
	KindRelease  Kind = "release"
	KindSnapshot Kind = "snapshot"
	KindSpecial  Kind = "special"
)

var (
	releasePattern  = regexp.MustCompile(`^\d+\.\d+(\.\d+)?$`)
	snapshotPattern = regexp.MustCompile(
		`^(\d{2}w\d{2}[a-z]|\d+\.\d+[ -](Pre-Release|pre|rc|snapshot)-?\d+)$`,
	)
)

const unobfuscatedSuffix = "_unobfuscated"

// VersionId is an opaque upstream version identifier. Equality and hashing
// are over the raw string; use String to recover it and Kind to classify it.
type VersionId struct {
	raw string
}

// NewVersionId wraps a raw upstream identifier.
func NewVersionId(raw string) VersionId { return VersionId{raw: raw} }

func (v VersionId) String() string { return v.raw }

// IsZero reports whether this is the empty VersionId.
func (v VersionId) IsZero() bool { return v.raw == "" }

// IsUnobfuscatedVariant reports whether this id names a synthetic
// unobfuscated variant of another version.
func (v VersionId) IsUnobfuscatedVariant() bool {
	return strings.HasSuffix(v.raw, unobfuscatedSuffix)
}

// Base strips the synthetic "_unobfuscated" suffix, returning the id of the
// version this one is a variant of. If this id is not a variant, it returns
// itself.
func (v VersionId) Base() VersionId {
	if !v.IsUnobfuscatedVariant() {
		return v
	}
	return VersionId{raw: strings.TrimSuffix(v.raw, unobfuscatedSuffix)}
}

// UnobfuscatedVariant returns the synthetic id for this version's
// unobfuscated counterpart.
func (v VersionId) UnobfuscatedVariant() VersionId {
	return VersionId{raw: v.raw + unobfuscatedSuffix}
}

// Kind classifies the id per spec.md's canonical regex: release
// "d+.d+(.d+)?"; snapshot matching a known snapshot shape; otherwise special.
func (v VersionId) Kind() Kind {
	base := v.raw
	if v.IsUnobfuscatedVariant() {
		base = strings.TrimSuffix(base, unobfuscatedSuffix)
	}
	switch {
	case releasePattern.MatchString(base):
		return KindRelease
	case snapshotPattern.MatchString(base), isDottedSnapshot(base):
		return KindSnapshot
	default:
		return KindSpecial
	}
}

// isDottedSnapshot matches the "X.Y-preN" / "X.Y-rcN" / "X.Y-snapshot-N"
// family that the hyphenated snapshotPattern branch doesn't cleanly express
// with a single alternation (kept separate for readability).
func isDottedSnapshot(s string) bool {
	for _, suffix := range []string{"-pre", "-rc", "-snapshot-"} {
		if idx := strings.Index(s, suffix); idx > 0 {
			rest := s[idx+len(suffix):]
			if rest != "" && isDigits(rest) {
				return true
			}
		}
	}
	return false
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// MarshalJSON encodes a VersionId as its raw string.
func (v VersionId) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.raw)
}

// UnmarshalJSON decodes a VersionId from its raw string.
func (v *VersionId) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	v.raw = raw
	return nil
}

// VersionInfo is the per-version record returned by the manifest resolver.
type VersionInfo struct {
	ID             VersionId `json:"id"`
	Kind           Kind      `json:"type"`
	ManifestURL    string    `json:"url"`
	TimeCreated    string    `json:"time"`         // RFC3339, as supplied by the catalogue
	TimeReleased   string    `json:"releaseTime"`   // RFC3339, as supplied by the catalogue
	ManifestHash   string    `json:"sha1,omitempty"`
	Priority       int       `json:"-"`
	IsUnobfuscated bool      `json:"-"`
}

// Latest names the catalogue's pointer to the newest release and snapshot.
type Latest struct {
	Release  VersionId `json:"release"`
	Snapshot VersionId `json:"snapshot"`
}
