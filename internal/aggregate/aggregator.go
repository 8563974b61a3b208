// Package aggregate computes the per-show weighted consensus. An aggregate
// is always recomputed wholesale from the show's current merged review set
// and atomically replaces its predecessor; it is never patched
// incrementally, so readers never see a score consistent with only part of
// the underlying reviews.
package aggregate

import (
	"time"

	"github.com/stagedoor/marquee/internal/domain"
	"github.com/stagedoor/marquee/internal/outlets"
)

// Confidence thresholds for the published consensus.
const (
	// DefaultMinReviews is the floor below which a show reports pending
	// and surfaces no numeric score, however extreme the partial average.
	DefaultMinReviews = 5

	// DefaultHighTotal and DefaultHighTier1 gate high confidence.
	DefaultHighTotal = 15
	DefaultHighTier1 = 3

	// DefaultMediumTotal and DefaultMediumTier1 gate medium confidence.
	DefaultMediumTotal = 6
	DefaultMediumTier1 = 1
)

// Config tunes the confidence ladder. Zero fields take the defaults.
type Config struct {
	MinReviews  int `yaml:"min_reviews" validate:"min=0"`
	HighTotal   int `yaml:"high_total" validate:"min=0"`
	HighTier1   int `yaml:"high_tier1" validate:"min=0"`
	MediumTotal int `yaml:"medium_total" validate:"min=0"`
	MediumTier1 int `yaml:"medium_tier1" validate:"min=0"`
}

// DefaultConfig returns the documented thresholds.
func DefaultConfig() Config {
	return Config{
		MinReviews:  DefaultMinReviews,
		HighTotal:   DefaultHighTotal,
		HighTier1:   DefaultHighTier1,
		MediumTotal: DefaultMediumTotal,
		MediumTier1: DefaultMediumTier1,
	}
}

// Aggregator computes show aggregates. It is stateless and safe for
// concurrent use.
type Aggregator struct {
	config Config
	now    func() time.Time
}

// New returns an Aggregator with the given thresholds; zero-valued fields
// fall back to defaults.
func New(config Config) *Aggregator {
	def := DefaultConfig()
	if config.MinReviews == 0 {
		config.MinReviews = def.MinReviews
	}
	if config.HighTotal == 0 {
		config.HighTotal = def.HighTotal
	}
	if config.HighTier1 == 0 {
		config.HighTier1 = def.HighTier1
	}
	if config.MediumTotal == 0 {
		config.MediumTotal = def.MediumTotal
	}
	if config.MediumTier1 == 0 {
		config.MediumTier1 = def.MediumTier1
	}
	return &Aggregator{config: config, now: time.Now}
}

// WithClock replaces the timestamp source. Intended for tests.
func (a *Aggregator) WithClock(now func() time.Time) *Aggregator {
	a.now = now
	return a
}

// Compute builds a show's aggregate from its complete merged review set.
// The weighted score is Σ(score·tierWeight)/Σ(tierWeight). Shows below the
// minimum review count report pending and expose no numeric score.
func (a *Aggregator) Compute(showID string, reviews []domain.NormalizedReview) domain.ShowAggregate {
	agg := domain.ShowAggregate{
		ShowID:     showID,
		TierCounts: make(map[int]int),
		TierSums:   make(map[int]float64),
		ComputedAt: a.now(),
	}

	var weightedSum, weightTotal float64
	for _, r := range reviews {
		agg.ReviewCount++
		agg.TierCounts[r.Tier]++
		agg.TierSums[r.Tier] += float64(r.AssignedScore)
		weightedSum += float64(r.AssignedScore) * r.TierWeight
		weightTotal += r.TierWeight
	}

	if agg.ReviewCount < a.config.MinReviews || weightTotal == 0 {
		// Not enough evidence: pending, and no fabricated score.
		agg.Confidence = domain.ConfidencePending
		return agg
	}

	agg.WeightedScore = weightedSum / weightTotal
	rounded := domain.ClampScore(int(agg.WeightedScore + 0.5))
	agg.Bucket = domain.ScoreToBucket(rounded)
	agg.Thumb = domain.ScoreToThumb(rounded)
	agg.Confidence = a.confidence(agg)
	return agg
}

// confidence applies the ladder: high needs both volume and tier-1
// presence, medium a lighter version of each, anything else is low.
func (a *Aggregator) confidence(agg domain.ShowAggregate) domain.Confidence {
	tier1 := agg.TierCounts[outlets.TierMajor]
	switch {
	case agg.ReviewCount >= a.config.HighTotal && tier1 >= a.config.HighTier1:
		return domain.ConfidenceHigh
	case agg.ReviewCount >= a.config.MediumTotal && tier1 >= a.config.MediumTier1:
		return domain.ConfidenceMedium
	default:
		return domain.ConfidenceLow
	}
}
