// Package rating normalizes heterogeneous critic-rating representations to
// the 0-100 scale. An ordered chain of independent parse strategies handles
// explicit ratings (stars, letter grades, numbers, bucket and thumb
// keywords); a keyword sentiment heuristic serves as last-resort fallback
// when only excerpt text exists.
package rating

import (
	"strings"

	"github.com/stagedoor/marquee/internal/domain"
)

// Method identifies which strategy produced a score.
type Method string

// Parse methods, in precedence order.
const (
	MethodStars      Method = "stars"
	MethodLetter     Method = "letter_grade"
	MethodNumeric    Method = "numeric"
	MethodBucketWord Method = "bucket_keyword"
	MethodThumbWord  Method = "thumb_keyword"
	MethodSentiment  Method = "sentiment"
)

// Result is a successful normalization.
type Result struct {
	// Score is the normalized value, already clamped to [0,100].
	Score int

	// Method names the strategy that produced the score.
	Method Method

	// Provenance distinguishes explicit critic-stated ratings from the
	// inferred sentiment fallback.
	Provenance domain.Provenance

	// EdgeCase is true when the score came through a conversion path with
	// documented ambiguity, such as a bare number defaulting to out-of-10.
	EdgeCase bool
}

// strategy attempts one interpretation of a raw rating string.
// Returning ok=false passes control to the next strategy in the chain.
type strategy func(raw string) (Result, bool)

// Parser runs the fixed-order strategy chain. It is immutable after
// construction and safe for concurrent use.
type Parser struct {
	strategies []strategy
	sentiment  *SentimentInferencer
}

// NewParser builds a Parser with the fixed strategy order: star ratings,
// letter grades, numerics, bucket keywords, thumb keywords. First success
// wins; strategies are never blended.
func NewParser() *Parser {
	return &Parser{
		strategies: []strategy{
			parseStars,
			parseLetterGrade,
			parseNumeric,
			parseBucketKeyword,
			parseThumbKeyword,
		},
		sentiment: NewSentimentInferencer(),
	}
}

// Parse normalizes a raw rating string, falling back to sentiment inference
// over the excerpt when no explicit strategy matches. When neither succeeds
// the review is rejected with a ParseError; a rating is never defaulted to
// a numeric value.
func (p *Parser) Parse(raw, excerpt string) (Result, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed != "" {
		for _, s := range p.strategies {
			if res, ok := s(trimmed); ok {
				res.Score = domain.ClampScore(res.Score)
				res.Provenance = domain.ProvenanceExplicit
				return res, nil
			}
		}
	}

	if score, ok := p.sentiment.Infer(excerpt); ok {
		return Result{
			Score:      domain.ClampScore(score),
			Method:     MethodSentiment,
			Provenance: domain.ProvenanceInferred,
		}, nil
	}

	return Result{}, &domain.ParseError{Raw: raw, Excerpt: strings.TrimSpace(excerpt) != ""}
}
