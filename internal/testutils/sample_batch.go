// Package testutils generates synthetic review batches for local pipeline
// runs and load testing. The generated data is deliberately messy in the
// ways real scrapes are: mixed rating formats, missing bylines, duplicate
// deliveries, and rating-free excerpts.
package testutils

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/stagedoor/marquee/internal/domain"
)

// SampleBatch is the JSON document the generator writes, matching the
// retrieval collaborator's delivery format.
type SampleBatch struct {
	Reviews  []domain.RawReview   `json:"reviews"`
	Openings map[string]time.Time `json:"openings"`
}

var sampleOutlets = []struct {
	name   string
	domain string
}{
	{"The New York Times", "nytimes.com"},
	{"Variety", "variety.com"},
	{"Time Out New York", "timeout.com"},
	{"Vulture", "vulture.com"},
	{"The Hollywood Reporter", "hollywoodreporter.com"},
	{"Chicago Tribune", "chicagotribune.com"},
	{"Uptown Stage Notes", ""},
}

var sampleCritics = []string{
	"Jesse Green", "Maya Phillips", "Frank Rizzo", "Adam Feldman",
	"Sara Holdren", "Chris Jones", "",
}

var sampleShows = []string{
	"hamlet-2026", "wicked-revival-2026", "new-musical-2026",
	"uncle-vanya-2026", "sweeney-todd-2026",
}

var sampleRatings = []string{
	"4/5", "3.5/5", "★★★★", "★★★½", "B+", "A-", "C",
	"8/10", "7", "Rave", "thumbs up", "mixed", "",
}

var sampleExcerpts = []string{
	"A stunning, brilliant production that earns every minute of its running time.",
	"Dull and overlong, with a muddled second act that squanders a strong cast.",
	"Uneven but often charming; the leads carry an otherwise flat staging.",
	"The revival opened last night at the Broadhurst to a packed house.",
	"",
}

// GenerateSampleBatch builds a deterministic synthetic batch from the seed.
// Roughly one review in ten is a duplicate of an earlier one, re-delivered
// with a slightly different URL the way mirror scrapes arrive.
func GenerateSampleBatch(size int, seed int64) SampleBatch {
	rng := rand.New(rand.NewSource(seed))

	batch := SampleBatch{Openings: make(map[string]time.Time)}
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	for i, show := range sampleShows {
		batch.Openings[show] = base.AddDate(0, i, 0)
	}

	for i := 0; i < size; i++ {
		if len(batch.Reviews) > 0 && rng.Intn(10) == 0 {
			dup := batch.Reviews[rng.Intn(len(batch.Reviews))]
			if dup.URL != "" {
				dup.URL = dup.URL + "?ref=mirror"
			}
			batch.Reviews = append(batch.Reviews, dup)
			continue
		}

		outlet := sampleOutlets[rng.Intn(len(sampleOutlets))]
		show := sampleShows[rng.Intn(len(sampleShows))]
		published := batch.Openings[show].AddDate(0, 0, rng.Intn(30)-3)

		review := domain.RawReview{
			Source:       "sample-generator",
			ShowID:       show,
			OutletName:   outlet.name,
			CriticName:   sampleCritics[rng.Intn(len(sampleCritics))],
			PublishedAt:  &published,
			RatingString: sampleRatings[rng.Intn(len(sampleRatings))],
			Excerpt:      sampleExcerpts[rng.Intn(len(sampleExcerpts))],
		}
		if outlet.domain != "" {
			review.URL = fmt.Sprintf("https://%s/%s/review-%d", outlet.domain, show, i)
		}
		batch.Reviews = append(batch.Reviews, review)
	}
	return batch
}

// SaveSampleBatch writes the batch as indented JSON, creating parent
// directories as needed.
func SaveSampleBatch(batch SampleBatch, path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}

	data, err := json.MarshalIndent(batch, "", "  ")
	if err != nil {
		return fmt.Errorf("encode batch: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write batch: %w", err)
	}
	return nil
}
