// Package ports defines the interfaces that connect the scoring pipeline to
// infrastructure: oracle clients, the persistent store, and metrics.
// These interfaces enable dependency inversion and make the pipeline
// testable without network or disk I/O.
package ports

import "context"

// ScoreOracle is an independent automated rater treated as a black box by
// the ensemble scorer. A returned score of exactly 0 is a valid Pan-range
// judgment; failure is signaled only through the error return, never through
// a sentinel value.
//
// Implementations are expected to show bounded run-to-run variance rather
// than exact determinism, and must respect context cancellation.
type ScoreOracle interface {
	// Name identifies the oracle in errors, flags, and metrics.
	Name() string

	// Score rates the given review text on the 0-100 scale.
	Score(ctx context.Context, text string) (int, error)
}
