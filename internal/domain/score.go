// Package domain contains pure, dependency-free domain models and types
// for the review aggregation pipeline.
package domain

// Score bounds for every normalized review and aggregate.
const (
	MinScore = 0
	MaxScore = 100
)

// Bucket is the coarse sentiment class derived from a score.
type Bucket string

// Bucket values, ordered from most to least favorable.
const (
	BucketRave     Bucket = "rave"
	BucketPositive Bucket = "positive"
	BucketMixed    Bucket = "mixed"
	BucketPan      Bucket = "pan"
)

// Thumb is the ternary recommendation derived from a score. It exists
// alongside Bucket so the published consensus can be cross-checked against
// third-party up/down tallies.
type Thumb string

// Thumb values.
const (
	ThumbUp   Thumb = "up"
	ThumbFlat Thumb = "flat"
	ThumbDown Thumb = "down"
)

// Confidence expresses how much trust a score deserves.
// ConfidencePending is only valid on a ShowAggregate; ensemble results use
// the high/medium/low levels exclusively.
type Confidence string

// Confidence levels.
const (
	ConfidenceHigh    Confidence = "high"
	ConfidenceMedium  Confidence = "medium"
	ConfidenceLow     Confidence = "low"
	ConfidencePending Confidence = "pending"
)

// Bucket boundaries. ScoreToBucket and ScoreToThumb are total over the whole
// integer range, so a stored bucket that disagrees with the stored score is
// always a validation error and never an interpretation question.
const (
	raveFloor     = 85
	positiveFloor = 70
	mixedFloor    = 50
)

// ScoreToBucket maps a 0-100 score to its coarse sentiment bucket.
func ScoreToBucket(score int) Bucket {
	switch {
	case score >= raveFloor:
		return BucketRave
	case score >= positiveFloor:
		return BucketPositive
	case score >= mixedFloor:
		return BucketMixed
	default:
		return BucketPan
	}
}

// ScoreToThumb maps a 0-100 score to its ternary recommendation.
func ScoreToThumb(score int) Thumb {
	switch {
	case score >= positiveFloor:
		return ThumbUp
	case score >= mixedFloor:
		return ThumbFlat
	default:
		return ThumbDown
	}
}

// ClampScore forces a score into the [MinScore, MaxScore] range.
func ClampScore(score int) int {
	if score < MinScore {
		return MinScore
	}
	if score > MaxScore {
		return MaxScore
	}
	return score
}
