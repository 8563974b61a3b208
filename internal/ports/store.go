package ports

import (
	"context"

	"github.com/stagedoor/marquee/internal/domain"
)

// ReviewStore is the persistent collection of normalized reviews and show
// aggregates. The storage format is opaque to the pipeline; implementations
// may use SQLite, Postgres, or memory.
type ReviewStore interface {
	// ReviewsForShow returns the current merged review set for a show.
	ReviewsForShow(ctx context.Context, showID string) ([]domain.NormalizedReview, error)

	// UpsertReview persists a merged review under its (show, outlet, critic)
	// key, superseding any previous record with the same key.
	UpsertReview(ctx context.Context, review domain.NormalizedReview) error

	// ReplaceAggregate atomically replaces a show's aggregate. Readers must
	// never observe a half-applied aggregate.
	ReplaceAggregate(ctx context.Context, agg domain.ShowAggregate) error

	// Aggregate returns the current aggregate for a show, or false when the
	// show has never been aggregated.
	Aggregate(ctx context.Context, showID string) (domain.ShowAggregate, bool, error)

	// AppendAuditFlags records advisory flags for the external human-review
	// workflow. Losing merge values and validation mismatches land here.
	AppendAuditFlags(ctx context.Context, showID string, flags []domain.Flag) error
}

// CalibrationSampleSource supplies verified ground-truth pairs for the
// offline offset derivation job: reviews that have both an oracle-derived
// score and an explicit critic-stated score.
type CalibrationSampleSource interface {
	// Samples returns (rawScore, explicitScore) pairs gathered since the
	// last recomputation.
	Samples(ctx context.Context) ([]CalibrationSample, error)
}

// CalibrationSample is one oracle-versus-ground-truth observation.
type CalibrationSample struct {
	// RawScore is the uncorrected oracle-derived score.
	RawScore int

	// ExplicitScore is the verified critic-stated score for the same review.
	ExplicitScore int
}
