package rating

import (
	"math"
	"strings"
)

// Sentiment inference tuning. These are heuristic coefficients with known
// high disagreement against ground truth; the bands matter more than the
// exact values, and inferred scores are never treated as equal in trust to
// explicit ratings.
const (
	// sentimentMinLength is the minimum excerpt length worth scanning.
	sentimentMinLength = 30

	// dominanceRatio is the share of weighted hits one polarity needs to
	// claim its band outright.
	dominanceRatio = 0.7

	// oppositionCeiling is the maximum opposing share allowed for a
	// polarity to still claim its band.
	oppositionCeiling = 0.15

	positiveBandFloor = 78
	negativeBandCeil  = 45
	mixedMidpoint     = 60
	blendCenter       = 50
	blendSpread       = 30
)

// Keyword sets scanned by the inferencer. Strong terms carry double weight;
// mixed indicators carry half weight.
var (
	strongPositiveWords = []string{
		"masterpiece", "triumph", "stunning", "brilliant", "magnificent",
		"extraordinary", "transcendent", "flawless", "unmissable", "dazzling",
	}
	positiveWords = []string{
		"good", "enjoyable", "charming", "funny", "moving", "engaging",
		"delightful", "compelling", "effective", "entertaining", "strong",
		"winning", "affecting", "lively",
	}
	strongNegativeWords = []string{
		"disaster", "dreadful", "atrocious", "unwatchable", "embarrassing",
		"insufferable", "catastrophe", "abysmal",
	}
	negativeWords = []string{
		"bad", "dull", "tedious", "boring", "weak", "flat", "disappointing",
		"clumsy", "lifeless", "muddled", "overlong", "shallow",
	}
	mixedIndicatorWords = []string{
		"uneven", "despite", "however", "although", "flawed", "but",
		"nonetheless", "occasionally",
	}
)

const (
	weightStrong = 2.0
	weightPlain  = 1.0
	weightMixed  = 0.5
)

// SentimentInferencer produces a fallback score from free excerpt text when
// no explicit rating exists. The output is explicitly approximate and is
// recorded with inferred provenance.
type SentimentInferencer struct{}

// NewSentimentInferencer returns the keyword-weighted inferencer.
func NewSentimentInferencer() *SentimentInferencer {
	return &SentimentInferencer{}
}

// Infer scans the excerpt for weighted sentiment keywords. It returns
// ok=false when the excerpt is too short or contains no keyword hits;
// a review is never scored from silence.
func (si *SentimentInferencer) Infer(excerpt string) (int, bool) {
	text := strings.ToLower(strings.TrimSpace(excerpt))
	if len(text) < sentimentMinLength {
		return 0, false
	}

	pos := countHits(text, strongPositiveWords)*weightStrong + countHits(text, positiveWords)*weightPlain
	neg := countHits(text, strongNegativeWords)*weightStrong + countHits(text, negativeWords)*weightPlain
	mixed := countHits(text, mixedIndicatorWords) * weightMixed

	total := pos + neg + mixed
	if total == 0 {
		return 0, false
	}

	posRatio := pos / total
	negRatio := neg / total
	mixedRatio := mixed / total

	switch {
	case posRatio >= dominanceRatio && negRatio <= oppositionCeiling:
		// Clearly positive: land in the high band, pushed up by magnitude.
		return capScore(positiveBandFloor+int(math.Round(10*posRatio)), positiveBandFloor, 88), true
	case negRatio >= dominanceRatio && posRatio <= oppositionCeiling:
		// Clearly negative: mirror of the high band.
		return capScore(negativeBandCeil-int(math.Round(10*negRatio)), 35, negativeBandCeil), true
	case mixedRatio >= posRatio && mixedRatio >= negRatio:
		return mixedMidpoint, true
	default:
		return blendCenter + int(math.Round(blendSpread*(posRatio-negRatio))), true
	}
}

// countHits counts whole-word occurrences of the given vocabulary.
func countHits(text string, words []string) float64 {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return !('a' <= r && r <= 'z' || '0' <= r && r <= '9')
	})
	vocab := make(map[string]struct{}, len(words))
	for _, w := range words {
		vocab[w] = struct{}{}
	}
	var hits float64
	for _, f := range fields {
		if _, ok := vocab[f]; ok {
			hits++
		}
	}
	return hits
}

func capScore(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
