// Package dvherr defines the error taxonomy surfaced to the operator and
// the exit-code mapping for the dvh CLI, mirroring the teacher's
// internal/models.ErrorType / TrialError split between a stable category
// and a free-form message.
package dvherr

import "fmt"

// Kind identifies the category of a pipeline failure.
type Kind string

const (
	ArgumentError        Kind = "argument_error"
	ManifestUnavailable  Kind = "manifest_unavailable"
	UnknownVersion       Kind = "unknown_version"
	PolicyExcluded       Kind = "policy_excluded"
	BranchMisordered     Kind = "branch_misordered"
	ResumeMismatch       Kind = "resume_mismatch"
	MetadataMismatch     Kind = "metadata_mismatch"
	MappingMissing       Kind = "mapping_missing"
	MappingMismatch      Kind = "mapping_mismatch"
	ToolFailure          Kind = "tool_failure"
	PushFailed           Kind = "push_failed"
)

// Error wraps a Kind with its cause. MappingMissing is constructed but
// treated as non-fatal by callers (spec.md §7): log and skip the version.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New constructs an *Error of the given kind wrapping err.
func New(kind Kind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

// Newf constructs an *Error of the given kind from a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// As extracts the *Error wrapped in err, if any.
func As(err error) (*Error, bool) {
	for err != nil {
		if de, ok := err.(*Error); ok {
			return de, true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	return nil, false
}

// ExitCode maps a Kind to the process exit code documented in spec.md §6.
func ExitCode(kind Kind) int {
	switch kind {
	case ArgumentError:
		return 2
	case ManifestUnavailable:
		return 3
	case BranchMisordered, PolicyExcluded:
		return 4
	case MappingMismatch:
		return 5
	case UnknownVersion:
		return 6
	case ResumeMismatch, MetadataMismatch:
		return 7
	case PushFailed:
		return 8
	case ToolFailure:
		return 9
	default:
		return 1
	}
}
