package domain

import "time"

// Provenance records how a normalized review's score was produced.
// Explicit scores parsed from critic-stated ratings carry more trust than
// heuristic or oracle-derived scores, and downstream consumers must be able
// to tell them apart.
type Provenance string

// Provenance values.
const (
	// ProvenanceExplicit means the score was parsed directly from a
	// critic-stated rating (stars, letter grade, number).
	ProvenanceExplicit Provenance = "explicit"

	// ProvenanceInferred means the score came from the keyword sentiment
	// heuristic applied to excerpt text.
	ProvenanceInferred Provenance = "inferred"

	// ProvenanceEnsemble means the score came from the oracle ensemble.
	ProvenanceEnsemble Provenance = "ensemble"
)

// RawReview is a single critic review as delivered by the external retrieval
// collaborator. It is immutable once created; the pipeline never writes back
// to it.
type RawReview struct {
	// Source tags which upstream collaborator produced this record.
	Source string `json:"source"`

	// ShowID identifies the production this review covers.
	ShowID string `json:"show_id"`

	// OutletName is the publication name as scraped, before resolution.
	OutletName string `json:"outlet_name"`

	// URL is the review's location, when known.
	URL string `json:"url,omitempty"`

	// CriticName is the byline, when known.
	CriticName string `json:"critic_name,omitempty"`

	// PublishedAt is the publish date, when known.
	PublishedAt *time.Time `json:"published_at,omitempty"`

	// RatingString is the critic-stated rating in its original form
	// ("4/5", "B+", "★★★½"), empty when the outlet publishes no rating.
	RatingString string `json:"rating_string,omitempty"`

	// RatingHint is an optional upstream hint about the rating format
	// ("stars", "letter", "numeric").
	RatingHint string `json:"rating_hint,omitempty"`

	// Excerpt is free review text used for sentiment fallback and oracle
	// scoring.
	Excerpt string `json:"excerpt,omitempty"`

	// Designation carries outlet-specific honors such as "Critic's Pick".
	Designation string `json:"designation,omitempty"`
}

// NormalizedReview is a review after scoring and outlet resolution. Records
// are superseded, never edited in place; only the deduplicator/merger mutates
// one, and only by replacing whole fields under its precedence rules.
type NormalizedReview struct {
	ShowID      string     `json:"show_id"`
	OutletID    string     `json:"outlet_id"`
	OutletName  string     `json:"outlet_name"`
	CriticName  string     `json:"critic_name,omitempty"`
	URL         string     `json:"url,omitempty"`
	PublishedAt *time.Time `json:"published_at,omitempty"`

	// AssignedScore is the normalized 0-100 score.
	AssignedScore int `json:"assigned_score"`

	// OriginalRating preserves the critic-stated rating string, if any.
	OriginalRating string `json:"original_rating,omitempty"`

	// Bucket and Thumb are pure functions of AssignedScore; they are stored
	// denormalized for consumers and re-derived by the audit validator.
	Bucket Bucket `json:"bucket"`
	Thumb  Thumb  `json:"thumb"`

	// Tier is the resolved outlet tier (1 major, 2 regional/trade, 3 niche).
	Tier int `json:"tier"`

	// TierWeight is the aggregation weight of the resolved outlet.
	TierWeight float64 `json:"tier_weight"`

	Provenance  Provenance `json:"provenance"`
	Designation string     `json:"designation,omitempty"`
	PullQuote   string     `json:"pull_quote,omitempty"`

	// Flags holds advisory audit annotations. Flags never block persistence
	// or aggregation.
	Flags []Flag `json:"flags,omitempty"`
}

// Key returns the identity under which at most one persisted review may
// exist after merge.
func (r NormalizedReview) Key() ReviewKey {
	return ReviewKey{ShowID: r.ShowID, OutletID: r.OutletID, CriticName: r.CriticName}
}

// ReviewKey is the (show, outlet, critic) identity of a merged review.
type ReviewKey struct {
	ShowID     string
	OutletID   string
	CriticName string
}

// EnsembleResult is the outcome of combining independent oracle judgments.
type EnsembleResult struct {
	// Primary is oracle A's score, or oracle B's when A was exhausted and
	// B served as fallback primary.
	Primary int `json:"primary"`

	// Secondary is oracle B's independent score.
	Secondary int `json:"secondary"`

	// Tiebreaker is oracle C's score, set only when disagreement between
	// primary and secondary reached the tiebreak threshold.
	Tiebreaker *int `json:"tiebreaker,omitempty"`

	// Final is the score the pipeline keeps.
	Final int `json:"final"`

	Confidence Confidence `json:"confidence"`

	// Disagreement is |primary - secondary|.
	Disagreement int `json:"disagreement"`

	// FlagForReview is set when disagreement was high enough that a human
	// should look at the record.
	FlagForReview bool `json:"flag_for_review"`
}

// ShowAggregate is the per-show consensus, always recomputed wholesale from
// the show's current merged review set.
type ShowAggregate struct {
	ShowID string `json:"show_id"`

	// WeightedScore is the tier-weighted mean of assigned scores. It is
	// only meaningful when Confidence is not pending.
	WeightedScore float64 `json:"weighted_score"`

	Bucket Bucket `json:"bucket"`
	Thumb  Thumb  `json:"thumb"`

	ReviewCount int `json:"review_count"`

	// TierCounts and TierSums break the review set down by outlet tier.
	TierCounts map[int]int     `json:"tier_counts"`
	TierSums   map[int]float64 `json:"tier_sums"`

	Confidence Confidence `json:"confidence"`

	ComputedAt time.Time `json:"computed_at"`
}
