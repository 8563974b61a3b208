// Package audit runs post-hoc consistency and plausibility checks over a
// show's persisted reviews. Every finding is advisory metadata for the
// external human-review workflow; nothing here blocks persistence or
// aggregation.
package audit

import (
	"strings"
	"time"

	"github.com/agnivade/levenshtein"

	"github.com/stagedoor/marquee/internal/domain"
	"github.com/stagedoor/marquee/internal/rating"
)

// Defaults for the plausibility checks.
const (
	// DefaultWindowBefore and DefaultWindowAfter bound the expected publish
	// window around a show's opening date. Reviews far outside it suggest
	// wrong-production contamination.
	DefaultWindowBefore = 60 * 24 * time.Hour
	DefaultWindowAfter  = 270 * 24 * time.Hour

	// DefaultUniformityMin is the smallest review set where 100% of reviews
	// landing in one bucket is suspicious rather than expected.
	DefaultUniformityMin = 6

	// bylineDistanceMax is the levenshtein distance at or under which two
	// distinct critic names at the same outlet look like spelling variants
	// the deduplicator could not collapse.
	bylineDistanceMax = 2
)

// Config tunes the validator. Zero values take defaults.
type Config struct {
	WindowBefore  time.Duration
	WindowAfter   time.Duration
	UniformityMin int
}

// Finding ties one advisory flag to the review it concerns. A zero Review
// key marks a show-level finding.
type Finding struct {
	Review domain.ReviewKey
	Flag   domain.Flag
}

// Report is the outcome of one audit pass over a show.
type Report struct {
	ShowID   string
	Findings []Finding
}

// Flags collects just the flag values, for persistence in the audit log.
func (r Report) Flags() []domain.Flag {
	out := make([]domain.Flag, 0, len(r.Findings))
	for _, f := range r.Findings {
		out = append(out, f.Flag)
	}
	return out
}

// Validator audits persisted reviews against their own scores, their text,
// and the show's timeline. It is stateless and safe for concurrent use.
type Validator struct {
	config    Config
	sentiment *rating.SentimentInferencer
}

// New builds a Validator.
func New(config Config) *Validator {
	if config.WindowBefore == 0 {
		config.WindowBefore = DefaultWindowBefore
	}
	if config.WindowAfter == 0 {
		config.WindowAfter = DefaultWindowAfter
	}
	if config.UniformityMin == 0 {
		config.UniformityMin = DefaultUniformityMin
	}
	return &Validator{config: config, sentiment: rating.NewSentimentInferencer()}
}

// Audit runs all checks over a show's review set. openingDate may be nil
// when the show's opening is unknown; the timeline check is then skipped.
func (v *Validator) Audit(showID string, openingDate *time.Time, reviews []domain.NormalizedReview) Report {
	report := Report{ShowID: showID}

	buckets := make(map[domain.Bucket]int)
	for _, r := range reviews {
		buckets[r.Bucket]++
		report.add(r, v.checkDerivedFields(r)...)
		report.add(r, v.checkSentimentPolarity(r)...)
		report.add(r, v.checkPublishWindow(r, openingDate)...)
	}

	report.Findings = append(report.Findings, v.checkUniformity(showID, reviews, buckets)...)
	report.Findings = append(report.Findings, v.checkBylineVariants(reviews)...)
	return report
}

func (r *Report) add(review domain.NormalizedReview, flags ...domain.Flag) {
	for _, f := range flags {
		r.Findings = append(r.Findings, Finding{Review: review.Key(), Flag: f})
	}
}

// checkDerivedFields recomputes bucket and thumb from the stored score.
// A mismatch is flagged, never silently coerced; the record stays persisted.
func (v *Validator) checkDerivedFields(r domain.NormalizedReview) []domain.Flag {
	var flags []domain.Flag
	if want := domain.ScoreToBucket(r.AssignedScore); r.Bucket != want {
		flags = append(flags, domain.NewFlag(domain.FlagAmbiguousScore,
			"stored bucket %q disagrees with score %d (expected %q)", r.Bucket, r.AssignedScore, want))
	}
	if want := domain.ScoreToThumb(r.AssignedScore); r.Thumb != want {
		flags = append(flags, domain.NewFlag(domain.FlagAmbiguousScore,
			"stored thumb %q disagrees with score %d (expected %q)", r.Thumb, r.AssignedScore, want))
	}
	return flags
}

// checkSentimentPolarity compares keyword sentiment over the pull quote
// with the assigned score. Only strong contradictions are flagged; the
// heuristic is a sanity check, not a second scorer.
func (v *Validator) checkSentimentPolarity(r domain.NormalizedReview) []domain.Flag {
	if r.PullQuote == "" {
		return nil
	}
	inferred, ok := v.sentiment.Infer(r.PullQuote)
	if !ok {
		return nil
	}

	positiveText := inferred >= 78
	negativeText := inferred <= 45
	if positiveText && r.AssignedScore < 50 || negativeText && r.AssignedScore >= 70 {
		return []domain.Flag{domain.NewFlag(domain.FlagAmbiguousScore,
			"pull-quote sentiment %d strongly contradicts assigned score %d", inferred, r.AssignedScore)}
	}
	return nil
}

// checkPublishWindow flags reviews published far from the show's opening.
func (v *Validator) checkPublishWindow(r domain.NormalizedReview, opening *time.Time) []domain.Flag {
	if opening == nil || r.PublishedAt == nil {
		return nil
	}
	earliest := opening.Add(-v.config.WindowBefore)
	latest := opening.Add(v.config.WindowAfter)
	if r.PublishedAt.Before(earliest) || r.PublishedAt.After(latest) {
		return []domain.Flag{domain.NewFlag(domain.FlagProblematicSource,
			"published %s, outside the expected window around opening %s; possible wrong production",
			r.PublishedAt.Format("2006-01-02"), opening.Format("2006-01-02"))}
	}
	return nil
}

// checkUniformity flags a show whose reviews all share one bucket once the
// set is large enough for that to be suspicious.
func (v *Validator) checkUniformity(showID string, reviews []domain.NormalizedReview, buckets map[domain.Bucket]int) []Finding {
	if len(reviews) < v.config.UniformityMin || len(buckets) != 1 {
		return nil
	}
	for bucket := range buckets {
		return []Finding{{Flag: domain.NewFlag(domain.FlagMissingContext,
			"all %d reviews for %s fall in bucket %q", len(reviews), showID, bucket)}}
	}
	return nil
}

// checkBylineVariants looks for critic names at the same outlet that differ
// by a small edit distance: likely spelling variants the deduplicator could
// not safely collapse.
func (v *Validator) checkBylineVariants(reviews []domain.NormalizedReview) []Finding {
	var findings []Finding
	for i := 0; i < len(reviews); i++ {
		for j := i + 1; j < len(reviews); j++ {
			a, b := reviews[i], reviews[j]
			if a.OutletID != b.OutletID || a.CriticName == "" || b.CriticName == "" {
				continue
			}
			an, bn := strings.ToLower(a.CriticName), strings.ToLower(b.CriticName)
			if an == bn {
				continue
			}
			if levenshtein.ComputeDistance(an, bn) <= bylineDistanceMax {
				findings = append(findings, Finding{
					Review: a.Key(),
					Flag: domain.NewFlag(domain.FlagMissingContext,
						"bylines %q and %q at %s look like spelling variants", a.CriticName, b.CriticName, a.OutletID),
				})
			}
		}
	}
	return findings
}
