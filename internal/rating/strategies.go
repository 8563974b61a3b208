package rating

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// NormalizeStars converts a star count out of a denominator to the 0-100
// scale: round(k/n*100). Callers must ensure n > 0.
func NormalizeStars(k, n float64) int {
	return int(math.Round(k / n * 100))
}

// Star fraction forms: "4/5", "3.5 / 5", "4 out of 5", "2½/4", optionally
// suffixed with "stars". Denominators above 10 are left to the numeric
// strategy so "85/100" is not mistaken for a star rating.
var starFractionRe = regexp.MustCompile(`(?i)^(\d+(?:[.,]\d+)?|\d*½)\s*(?:/|out of)\s*(\d+)\s*(?:stars?)?$`)

// Bare star counts: "4 stars", "3.5 stars", "2½ stars". Denominator is the
// conventional five-star scale.
var starCountRe = regexp.MustCompile(`(?i)^(\d+(?:[.,]\d+)?|\d*½)\s*stars?$`)

const starDefaultScale = 5

// parseStars handles star-fraction text, bare star counts, and star-glyph
// strings, including half glyphs.
func parseStars(raw string) (Result, bool) {
	if m := starFractionRe.FindStringSubmatch(raw); m != nil {
		k, okK := parseStarValue(m[1])
		n, errN := strconv.Atoi(m[2])
		if okK && errN == nil && n > 0 && n <= 10 && k <= float64(n) {
			return Result{Score: NormalizeStars(k, float64(n)), Method: MethodStars}, true
		}
		return Result{}, false
	}

	if m := starCountRe.FindStringSubmatch(raw); m != nil {
		if k, ok := parseStarValue(m[1]); ok && k <= starDefaultScale {
			return Result{Score: NormalizeStars(k, starDefaultScale), Method: MethodStars}, true
		}
		return Result{}, false
	}

	return parseStarGlyphs(raw)
}

// parseStarValue parses a star count that may carry a trailing ½.
func parseStarValue(s string) (float64, bool) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	half := 0.0
	if strings.HasSuffix(s, "½") {
		half = 0.5
		s = strings.TrimSuffix(s, "½")
	}
	if s == "" {
		return half, half > 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 {
		return 0, false
	}
	return v + half, true
}

// parseStarGlyphs counts filled, half, and empty star glyphs. When empty
// glyphs are present they fix the denominator; otherwise the conventional
// five-star scale is assumed, widened if more than five glyphs appear.
func parseStarGlyphs(raw string) (Result, bool) {
	var filled, empty int
	var half float64
	for _, r := range raw {
		switch r {
		case '★', '✭', '✮', '⭐', '*':
			filled++
		case '½':
			half = 0.5
		case '☆', '✩':
			empty++
		case ' ', '\t':
		default:
			return Result{}, false
		}
	}
	if filled == 0 && half == 0 {
		return Result{}, false
	}

	k := float64(filled) + half
	n := float64(starDefaultScale)
	if empty > 0 {
		n = float64(filled+empty) + math.Ceil(half)
	} else if k > n {
		n = math.Ceil(k)
	}
	return Result{Score: NormalizeStars(k, n), Method: MethodStars}, true
}

// letterGradeScores is the fixed monotonic grade table: a better grade never
// maps to a lower score.
var letterGradeScores = map[string]int{
	"A+": 98, "A": 95, "A-": 91,
	"B+": 88, "B": 85, "B-": 81,
	"C+": 78, "C": 75, "C-": 71,
	"D+": 68, "D": 65, "D-": 61,
	"E": 50,
	"F": 40,
}

var letterGradeRe = regexp.MustCompile(`(?i)^([a-f])\s*(\+|-|−|–|plus|minus)?$`)

// parseLetterGrade handles single letter grades A-F with optional modifiers,
// including word forms like "B plus".
func parseLetterGrade(raw string) (Result, bool) {
	m := letterGradeRe.FindStringSubmatch(raw)
	if m == nil {
		return Result{}, false
	}

	grade := strings.ToUpper(m[1])
	switch strings.ToLower(m[2]) {
	case "+", "plus":
		grade += "+"
	case "-", "−", "–", "minus":
		grade += "-"
	}

	score, ok := letterGradeScores[grade]
	if !ok {
		return Result{}, false
	}
	return Result{Score: score, Method: MethodLetter}, true
}

var (
	outOfHundredRe = regexp.MustCompile(`^(\d+(?:\.\d+)?)\s*/\s*100$`)
	bareNumberRe   = regexp.MustCompile(`^(\d+(?:\.\d+)?)$`)
)

// parseNumeric handles "k/100" and bare numbers. A bare number above 10 is
// taken as already out of 100; at or below 10 it is assumed out of 10 and
// scaled up. The magnitude rule is inherited, documented ambiguity: "8"
// from an outlet that scores out of 100 would be misread as 80, so the
// out-of-10 path is marked as an edge case for the audit trail.
func parseNumeric(raw string) (Result, bool) {
	if m := outOfHundredRe.FindStringSubmatch(raw); m != nil {
		v, err := strconv.ParseFloat(m[1], 64)
		if err != nil || v > 100 {
			return Result{}, false
		}
		return Result{Score: int(math.Round(v)), Method: MethodNumeric}, true
	}

	m := bareNumberRe.FindStringSubmatch(raw)
	if m == nil {
		return Result{}, false
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil || v > 100 {
		return Result{}, false
	}

	if v > 10 {
		return Result{Score: int(math.Round(v)), Method: MethodNumeric}, true
	}
	return Result{Score: int(math.Round(v * 10)), Method: MethodNumeric, EdgeCase: true}, true
}

// bucketKeywordScores maps coarse review language to bucket midpoints.
var bucketKeywordScores = map[string]int{
	"rave": 92, "raves": 92, "glowing": 92, "ecstatic": 92,
	"positive": 77, "favorable": 77, "favourable": 77, "warm": 77, "recommended": 77,
	"mixed": 60, "lukewarm": 60, "middling": 60, "so-so": 60, "so so": 60,
	"pan": 25, "pans": 25, "negative": 25, "scathing": 25, "unfavorable": 25, "unfavourable": 25,
}

func parseBucketKeyword(raw string) (Result, bool) {
	score, ok := bucketKeywordScores[strings.ToLower(raw)]
	if !ok {
		return Result{}, false
	}
	return Result{Score: score, Method: MethodBucketWord}, true
}

// thumbKeywordScores maps up/flat/down synonyms to fixed scores.
var thumbKeywordScores = map[string]int{
	"thumbs up": 80, "thumb up": 80, "up": 80,
	"flat": 60, "neutral": 60, "sideways": 60, "shrug": 60,
	"thumbs down": 25, "thumb down": 25, "down": 25,
}

func parseThumbKeyword(raw string) (Result, bool) {
	score, ok := thumbKeywordScores[strings.ToLower(raw)]
	if !ok {
		return Result{}, false
	}
	return Result{Score: score, Method: MethodThumbWord}, true
}
