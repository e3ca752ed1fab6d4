package models

// Identity is a (name, email) pair used for both the author and committer
// on every generated commit, the initial metadata commit included.
type Identity struct {
	Name  string
	Email string
}

// RepoState is the repository driver's view of the working repository.
type RepoState struct {
	Branch     string
	Head       string // empty if the branch has no commits yet
	RemoteName string // empty if no remote was configured
	Committer  Identity
}

// MetadataSchemaVersion is the schema tag recorded (and checked) in the
// branch's initial-commit metadata file (spec.md §3's RepoState invariant).
const MetadataSchemaVersion = "1"

// MetadataFileName is the well-known file the initial commit carries.
const MetadataFileName = "Snowblower.txt"

// FixedCommitter is the single identity used for both author and
// committer on every generated commit, including the initial metadata
// commit, which differs only in carrying a fixed epoch date (spec.md §6). It is not operator-configurable in the original
// implementation and stays a fixed constant here for the same reason:
// the whole point of the product is a deterministic, attributable
// commit history.
var FixedCommitter = Identity{Name: "DVH", Email: "dvh@users.noreply.github.com"}
