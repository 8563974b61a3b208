// Package dedup collapses duplicate review records deterministically.
// Duplicate detection and merge precedence are fixed total orders, so the
// result of merging any set of duplicates is independent of input order and
// stable across repeated runs on overlapping input.
package dedup

import (
	"strings"

	"github.com/stagedoor/marquee/internal/domain"
)

// NormalizeURL canonicalizes a review URL for duplicate matching: scheme,
// leading "www.", trailing slashes, and the query string are stripped, and
// the host is lowercased.
func NormalizeURL(raw string) string {
	u := strings.TrimSpace(raw)
	if u == "" {
		return ""
	}

	for _, scheme := range []string{"https://", "http://"} {
		if strings.HasPrefix(strings.ToLower(u), scheme) {
			u = u[len(scheme):]
			break
		}
	}
	u = strings.TrimPrefix(strings.ToLower(u[:hostLen(u)]), "www.") + u[hostLen(u):]

	if i := strings.IndexAny(u, "?#"); i >= 0 {
		u = u[:i]
	}
	return strings.TrimRight(u, "/")
}

// hostLen returns the length of the host portion of a scheme-less URL.
func hostLen(u string) int {
	if i := strings.IndexByte(u, '/'); i >= 0 {
		return i
	}
	return len(u)
}

// IsDuplicate reports whether two records for the same show describe the
// same review. Checks run in priority order: normalized URL match, then
// same outlet with matching critic byline, then same outlet with a missing
// byline on at least one side (single-review-per-outlet assumption).
func IsDuplicate(a, b domain.NormalizedReview) bool {
	if a.ShowID != b.ShowID {
		return false
	}

	if a.URL != "" && b.URL != "" && NormalizeURL(a.URL) == NormalizeURL(b.URL) {
		return true
	}

	if a.OutletID != b.OutletID {
		return false
	}
	if a.CriticName != "" && b.CriticName != "" {
		return strings.EqualFold(a.CriticName, b.CriticName)
	}
	// Same outlet, at least one side anonymous.
	return true
}

// precedes is the merge-precedence comparator: a total order over
// field-completeness. It returns true when a wins over b. Commutativity of
// Merge is structural: the comparator alone decides the winner, so
// Merge(a,b) and Merge(b,a) pick the same record.
//
// Precedence: has-URL, then has-critic-name, then has-pull-quote, then
// earlier publish date, then outlet-id lexical order, then the remaining
// identity and scoring fields (score, provenance, original rating, tier)
// as an absolute tiebreak, so no pair of distinguishable records ever ties.
func precedes(a, b domain.NormalizedReview) bool {
	if hasURL, otherHas := a.URL != "", b.URL != ""; hasURL != otherHas {
		return hasURL
	}
	if hasCritic, otherHas := a.CriticName != "", b.CriticName != ""; hasCritic != otherHas {
		return hasCritic
	}
	if hasQuote, otherHas := a.PullQuote != "", b.PullQuote != ""; hasQuote != otherHas {
		return hasQuote
	}

	switch {
	case a.PublishedAt != nil && b.PublishedAt == nil:
		return true
	case a.PublishedAt == nil && b.PublishedAt != nil:
		return false
	case a.PublishedAt != nil && b.PublishedAt != nil && !a.PublishedAt.Equal(*b.PublishedAt):
		return a.PublishedAt.Before(*b.PublishedAt)
	}

	if a.OutletID != b.OutletID {
		return a.OutletID < b.OutletID
	}
	if a.URL != b.URL {
		return a.URL < b.URL
	}
	if !strings.EqualFold(a.CriticName, b.CriticName) {
		return strings.ToLower(a.CriticName) < strings.ToLower(b.CriticName)
	}
	if a.PullQuote != b.PullQuote {
		return a.PullQuote < b.PullQuote
	}
	if a.AssignedScore != b.AssignedScore {
		return a.AssignedScore > b.AssignedScore
	}
	if a.Provenance != b.Provenance {
		return a.Provenance < b.Provenance
	}
	if a.OriginalRating != b.OriginalRating {
		return a.OriginalRating < b.OriginalRating
	}
	if a.Tier != b.Tier {
		return a.Tier < b.Tier
	}
	if a.TierWeight != b.TierWeight {
		return a.TierWeight > b.TierWeight
	}
	if a.OutletName != b.OutletName {
		return a.OutletName < b.OutletName
	}
	return a.Designation <= b.Designation
}

// Merge collapses two duplicate records. Required fields (score, bucket,
// thumb, provenance, tier) are taken wholesale from the precedence winner,
// never averaged. Optional fields fill in from the loser only when the
// winner lacks them. When the two records disagree on score, the losing
// value survives only as an audit flag.
func Merge(a, b domain.NormalizedReview) (domain.NormalizedReview, []domain.Flag) {
	winner, loser := a, b
	if !precedes(a, b) {
		winner, loser = b, a
	}

	merged := winner
	if merged.URL == "" {
		merged.URL = loser.URL
	}
	if merged.CriticName == "" {
		merged.CriticName = loser.CriticName
	}
	if merged.PullQuote == "" {
		merged.PullQuote = loser.PullQuote
	}
	if merged.PublishedAt == nil {
		merged.PublishedAt = loser.PublishedAt
	}
	if merged.Designation == "" {
		merged.Designation = loser.Designation
	}
	if merged.OriginalRating == "" {
		merged.OriginalRating = loser.OriginalRating
	}
	merged.Flags = unionFlags(winner.Flags, loser.Flags)

	var audit []domain.Flag
	if winner.AssignedScore != loser.AssignedScore {
		audit = append(audit, domain.NewFlag(domain.FlagAmbiguousScore,
			"duplicate conflict for %s/%s: kept score %d, discarded %d",
			merged.OutletID, merged.ShowID, winner.AssignedScore, loser.AssignedScore))
	}
	return merged, audit
}

// unionFlags combines flag lists without duplicating identical entries.
func unionFlags(a, b []domain.Flag) []domain.Flag {
	if len(b) == 0 {
		return a
	}
	seen := make(map[domain.Flag]struct{}, len(a))
	out := make([]domain.Flag, 0, len(a)+len(b))
	for _, f := range a {
		if _, dup := seen[f]; !dup {
			seen[f] = struct{}{}
			out = append(out, f)
		}
	}
	for _, f := range b {
		if _, dup := seen[f]; !dup {
			seen[f] = struct{}{}
			out = append(out, f)
		}
	}
	return out
}

// Result reports one deduplication pass.
type Result struct {
	Reviews []domain.NormalizedReview

	// DuplicatesRemoved counts input records that were collapsed away.
	DuplicatesRemoved int

	// AuditFlags records losing merge values for the audit log.
	AuditFlags []domain.Flag
}

// Dedupe collapses a review list, merging every detected duplicate pair.
// Because detection and merge are both order-independent, deduplicating the
// same logical set in any order yields the same records.
func Dedupe(reviews []domain.NormalizedReview) Result {
	var res Result
	for _, r := range reviews {
		merged := false
		for i := range res.Reviews {
			if IsDuplicate(res.Reviews[i], r) {
				combined, audit := Merge(res.Reviews[i], r)
				res.Reviews[i] = combined
				res.AuditFlags = append(res.AuditFlags, audit...)
				res.DuplicatesRemoved++
				merged = true
				break
			}
		}
		if !merged {
			res.Reviews = append(res.Reviews, r)
		}
	}
	return res
}
