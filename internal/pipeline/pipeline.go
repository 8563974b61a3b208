// Package pipeline orchestrates a batch run: normalization, ensemble
// scoring, calibration, deduplication, aggregation, and the audit pass,
// with persistence between stages. Shows are processed concurrently;
// reviews within a show are processed in arrival order so merge decisions
// stay deterministic.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/stagedoor/marquee/internal/aggregate"
	"github.com/stagedoor/marquee/internal/audit"
	"github.com/stagedoor/marquee/internal/calibration"
	"github.com/stagedoor/marquee/internal/dedup"
	"github.com/stagedoor/marquee/internal/domain"
	"github.com/stagedoor/marquee/internal/outlets"
	"github.com/stagedoor/marquee/internal/ports"
	"github.com/stagedoor/marquee/internal/rating"
)

// DefaultParallelism caps concurrent show processing in a batch.
const DefaultParallelism = 4

// Deps carries the pipeline's collaborators. Registry, Store, Aggregator,
// and Validator are required; Scorer and Corrector may be nil when no
// oracles or calibration are configured, which disables those stages.
type Deps struct {
	Registry   *outlets.Registry
	Parser     *rating.Parser
	Scorer     EnsembleScorer
	Corrector  *calibration.Corrector
	Aggregator *aggregate.Aggregator
	Validator  *audit.Validator
	Store      ports.ReviewStore
	Metrics    ports.MetricsCollector

	// Parallelism caps concurrent shows. Zero means DefaultParallelism.
	Parallelism int
}

// EnsembleScorer is the slice of the ensemble scorer the pipeline needs.
// Declared here so tests can substitute a fake without standing up three
// oracles.
type EnsembleScorer interface {
	Score(ctx context.Context, text string) (domain.EnsembleResult, error)
}

// Pipeline runs batches. It is safe for concurrent use, though batches are
// normally run one at a time by the scheduler.
type Pipeline struct {
	deps Deps
}

// New validates the dependency set and returns a Pipeline.
func New(deps Deps) (*Pipeline, error) {
	if deps.Registry == nil || deps.Store == nil || deps.Aggregator == nil || deps.Validator == nil {
		return nil, fmt.Errorf("%w: pipeline requires registry, store, aggregator, and validator", domain.ErrInvalidConfiguration)
	}
	if deps.Parser == nil {
		deps.Parser = rating.NewParser()
	}
	if deps.Parallelism <= 0 {
		deps.Parallelism = DefaultParallelism
	}
	return &Pipeline{deps: deps}, nil
}

// Batch is one delivery from the retrieval collaborator.
type Batch struct {
	Reviews []domain.RawReview

	// Openings maps show ids to opening dates, when known. Shows absent
	// from the map skip the publish-window audit check.
	Openings map[string]time.Time
}

// ShowFailure records a show whose processing failed. Other shows in the
// batch are unaffected.
type ShowFailure struct {
	ShowID string
	Err    error
}

// Result summarizes one batch run.
type Result struct {
	// RunID uniquely identifies this batch run in logs and metrics.
	RunID string

	ShowsProcessed    int
	ReviewsIngested   int
	ReviewsRejected   int
	DuplicatesRemoved int
	AuditFindings     int

	Failures []ShowFailure

	StartedAt time.Time
	Duration  time.Duration
}

// ProcessBatch runs the full pipeline over a batch. Review-level failures
// reject the single review; show-level failures are isolated and reported
// in the result. Only cancellation aborts the batch, and a cancelled run
// never leaves a partially merged show behind unwritten stages: each show
// either completes all its writes or is reported failed.
func (p *Pipeline) ProcessBatch(ctx context.Context, batch Batch) (Result, error) {
	start := time.Now()
	res := Result{RunID: uuid.NewString(), StartedAt: start}

	byShow := make(map[string][]domain.RawReview)
	var order []string
	for _, raw := range batch.Reviews {
		if raw.ShowID == "" {
			res.ReviewsRejected++
			continue
		}
		if _, seen := byShow[raw.ShowID]; !seen {
			order = append(order, raw.ShowID)
		}
		byShow[raw.ShowID] = append(byShow[raw.ShowID], raw)
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.deps.Parallelism)

	for _, showID := range order {
		raws := byShow[showID]
		g.Go(func() error {
			stats, err := p.processShow(gctx, showID, raws, batch.Openings)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if errors.Is(err, domain.ErrBatchCancelled) || gctx.Err() != nil {
					return domain.ErrBatchCancelled
				}
				res.Failures = append(res.Failures, ShowFailure{ShowID: showID, Err: err})
				return nil
			}
			res.ShowsProcessed++
			res.ReviewsIngested += stats.ingested
			res.ReviewsRejected += stats.rejected
			res.DuplicatesRemoved += stats.duplicates
			res.AuditFindings += stats.findings
			return nil
		})
	}

	err := g.Wait()
	res.Duration = time.Since(start)

	if p.deps.Metrics != nil {
		p.deps.Metrics.RecordLatency("batch", res.Duration, nil)
		p.deps.Metrics.RecordCounter("reviews_processed", float64(res.ReviewsIngested), nil)
		p.deps.Metrics.RecordCounter("reviews_rejected", float64(res.ReviewsRejected), nil)
		p.deps.Metrics.RecordCounter("duplicates_removed", float64(res.DuplicatesRemoved), nil)
	}

	if err != nil {
		return res, err
	}
	return res, nil
}

type showStats struct {
	ingested   int
	rejected   int
	duplicates int
	findings   int
}

// processShow normalizes the incoming reviews for one show, merges them
// with the persisted set, and rewrites the show's reviews, aggregate, and
// audit log. The cancellation check sits before the first write so a
// cancelled batch never half-updates a show.
func (p *Pipeline) processShow(ctx context.Context, showID string, raws []domain.RawReview, openings map[string]time.Time) (showStats, error) {
	var stats showStats
	var incoming []domain.NormalizedReview
	var auditFlags []domain.Flag

	for _, raw := range raws {
		normalized, err := p.normalize(ctx, raw)
		if err != nil {
			if errors.Is(err, domain.ErrBatchCancelled) || ctx.Err() != nil {
				return stats, domain.ErrBatchCancelled
			}
			// A review that cannot be scored is dropped, never defaulted.
			stats.rejected++
			auditFlags = append(auditFlags, domain.NewFlag(domain.FlagMissingContext,
				"review from %q rejected: %v", raw.OutletName, err))
			continue
		}
		incoming = append(incoming, normalized)
	}

	existing, err := p.deps.Store.ReviewsForShow(ctx, showID)
	if err != nil {
		return stats, fmt.Errorf("load existing reviews: %w", err)
	}

	merged := dedup.Dedupe(append(existing, incoming...))
	stats.ingested = len(incoming)
	stats.duplicates = merged.DuplicatesRemoved
	auditFlags = append(auditFlags, merged.AuditFlags...)

	// All scoring is done; everything past this point is persistence.
	if ctx.Err() != nil {
		return stats, domain.ErrBatchCancelled
	}

	for _, r := range merged.Reviews {
		if err := p.deps.Store.UpsertReview(ctx, r); err != nil {
			return stats, fmt.Errorf("persist review %s/%s: %w", r.OutletID, r.CriticName, err)
		}
		if p.deps.Metrics != nil {
			p.deps.Metrics.RecordHistogram("assigned_score", float64(r.AssignedScore), nil)
		}
	}

	agg := p.deps.Aggregator.Compute(showID, merged.Reviews)
	if err := p.deps.Store.ReplaceAggregate(ctx, agg); err != nil {
		return stats, fmt.Errorf("persist aggregate: %w", err)
	}

	var opening *time.Time
	if t, ok := openings[showID]; ok {
		opening = &t
	}
	report := p.deps.Validator.Audit(showID, opening, merged.Reviews)
	stats.findings = len(report.Findings)
	auditFlags = append(auditFlags, report.Flags()...)

	if err := p.deps.Store.AppendAuditFlags(ctx, showID, auditFlags); err != nil {
		return stats, fmt.Errorf("persist audit flags: %w", err)
	}
	return stats, nil
}

// normalize converts one raw review into a normalized record, choosing
// between the explicit parse chain, the sentiment fallback, and the oracle
// ensemble.
func (p *Pipeline) normalize(ctx context.Context, raw domain.RawReview) (domain.NormalizedReview, error) {
	var (
		score      int
		provenance domain.Provenance
		flags      []domain.Flag
	)

	parsed, err := p.deps.Parser.Parse(raw.RatingString, raw.Excerpt)
	switch {
	case err == nil:
		score = parsed.Score
		provenance = parsed.Provenance
		if parsed.EdgeCase {
			flags = append(flags, domain.NewFlag(domain.FlagConversionEdgeCase,
				"rating %q converted through an ambiguous path (%s)", raw.RatingString, parsed.Method))
		}

	case errors.Is(err, domain.ErrParseFailure) && raw.Excerpt != "" && p.deps.Scorer != nil:
		result, scoreErr := p.deps.Scorer.Score(ctx, raw.Excerpt)
		if scoreErr != nil {
			if errors.Is(scoreErr, domain.ErrBatchCancelled) {
				return domain.NormalizedReview{}, scoreErr
			}
			return domain.NormalizedReview{}, fmt.Errorf("ensemble scoring: %w", scoreErr)
		}
		score = result.Final
		provenance = domain.ProvenanceEnsemble
		if result.FlagForReview {
			flags = append(flags, domain.NewFlag(domain.FlagHighDisagreement,
				"oracles disagreed by %d points (%d vs %d)", result.Disagreement, result.Primary, result.Secondary))
		}
		if p.deps.Metrics != nil {
			p.deps.Metrics.RecordHistogram("oracle_disagreement", float64(result.Disagreement), nil)
		}
		if p.deps.Corrector != nil {
			corrected := p.deps.Corrector.Apply(score)
			if !corrected.Applied {
				flags = append(flags, domain.NewFlag(domain.FlagMissingContext,
					"insufficient calibration data for score %d; correction skipped", score))
			}
			score = corrected.Score
		}

	default:
		return domain.NormalizedReview{}, err
	}

	resolution := p.deps.Registry.Resolve(raw.OutletName, raw.URL)
	if resolution.Synthetic {
		flags = append(flags, domain.NewFlag(domain.FlagProblematicSource,
			"outlet %q not in registry; assigned synthetic id %q", raw.OutletName, resolution.Outlet.ID))
	}

	return domain.NormalizedReview{
		ShowID:         raw.ShowID,
		OutletID:       resolution.Outlet.ID,
		OutletName:     resolution.Outlet.DisplayName,
		CriticName:     raw.CriticName,
		URL:            raw.URL,
		PublishedAt:    raw.PublishedAt,
		AssignedScore:  score,
		OriginalRating: raw.RatingString,
		Bucket:         domain.ScoreToBucket(score),
		Thumb:          domain.ScoreToThumb(score),
		Tier:           resolution.Outlet.Tier,
		TierWeight:     resolution.Outlet.Weight,
		Provenance:     provenance,
		Designation:    raw.Designation,
		PullQuote:      raw.Excerpt,
		Flags:          flags,
	}, nil
}
