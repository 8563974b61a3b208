package domain

import "fmt"

// FlagKind is the fixed taxonomy of advisory audit flags consumed by the
// external human-review workflow. Only the taxonomy is owned here; the
// review UI is out of scope.
type FlagKind string

// Audit flag taxonomy.
const (
	// FlagProblematicSource marks reviews from outlets that could not be
	// resolved against the registry and were assigned a synthetic identity.
	FlagProblematicSource FlagKind = "problematic_source"

	// FlagHighDisagreement marks ensemble results whose oracles diverged
	// enough to require a tiebreaker.
	FlagHighDisagreement FlagKind = "high_llm_disagreement"

	// FlagConversionEdgeCase marks scores produced through conversion paths
	// with known ambiguity, such as bare numbers defaulting to out-of-10.
	FlagConversionEdgeCase FlagKind = "conversion_edge_case"

	// FlagAmbiguousScore marks records whose stored score conflicts with
	// other evidence (bucket/thumb mismatch, contradicting sentiment).
	FlagAmbiguousScore FlagKind = "ambiguous_score"

	// FlagMissingContext marks records short on supporting detail: skipped
	// calibration, missing dates, suspicious uniformity across a show.
	FlagMissingContext FlagKind = "missing_context"
)

// Flag is one advisory annotation attached to a review or aggregate.
// Flags inform the human-review workflow; they never block persistence.
type Flag struct {
	Kind   FlagKind `json:"kind"`
	Detail string   `json:"detail,omitempty"`
}

// NewFlag builds a flag with a formatted detail message.
func NewFlag(kind FlagKind, format string, args ...any) Flag {
	return Flag{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

// HasFlag reports whether any flag of the given kind is present.
func HasFlag(flags []Flag, kind FlagKind) bool {
	for _, f := range flags {
		if f.Kind == kind {
			return true
		}
	}
	return false
}
