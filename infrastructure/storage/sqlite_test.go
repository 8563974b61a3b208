package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stagedoor/marquee/internal/domain"
	"github.com/stagedoor/marquee/internal/ports"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "marquee.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func sampleReview() domain.NormalizedReview {
	published := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	return domain.NormalizedReview{
		ShowID:         "hamlet-2026",
		OutletID:       "nytimes",
		OutletName:     "The New York Times",
		CriticName:     "Jesse Green",
		URL:            "https://nytimes.com/hamlet-review",
		PublishedAt:    &published,
		AssignedScore:  85,
		OriginalRating: "4/5",
		Bucket:         domain.BucketRave,
		Thumb:          domain.ThumbUp,
		Tier:           1,
		TierWeight:     2.0,
		Provenance:     domain.ProvenanceExplicit,
		PullQuote:      "A thrilling Hamlet.",
		Flags: []domain.Flag{
			domain.NewFlag(domain.FlagConversionEdgeCase, "bare number treated as 0-100"),
		},
	}
}

func TestStore_UpsertAndReadBack(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	want := sampleReview()
	require.NoError(t, store.UpsertReview(ctx, want))

	got, err := store.ReviewsForShow(ctx, "hamlet-2026")
	require.NoError(t, err)
	require.Len(t, got, 1)

	assert.Equal(t, want.AssignedScore, got[0].AssignedScore)
	assert.Equal(t, want.Bucket, got[0].Bucket)
	assert.Equal(t, want.Provenance, got[0].Provenance)
	assert.Equal(t, want.TierWeight, got[0].TierWeight)
	require.NotNil(t, got[0].PublishedAt)
	assert.True(t, want.PublishedAt.Equal(*got[0].PublishedAt))
	require.Len(t, got[0].Flags, 1)
	assert.Equal(t, domain.FlagConversionEdgeCase, got[0].Flags[0].Kind)
}

func TestStore_UpsertSupersedesByKey(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	first := sampleReview()
	require.NoError(t, store.UpsertReview(ctx, first))

	second := first
	second.AssignedScore = 72
	second.Bucket = domain.BucketPositive
	require.NoError(t, store.UpsertReview(ctx, second))

	got, err := store.ReviewsForShow(ctx, "hamlet-2026")
	require.NoError(t, err)
	require.Len(t, got, 1, "same key must supersede, not duplicate")
	assert.Equal(t, 72, got[0].AssignedScore)
}

func TestStore_ReviewsForUnknownShow(t *testing.T) {
	store := openTestStore(t)

	got, err := store.ReviewsForShow(context.Background(), "nothing-here")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestStore_AggregateRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	_, ok, err := store.Aggregate(ctx, "hamlet-2026")
	require.NoError(t, err)
	assert.False(t, ok, "unaggregated show reports absent, not zero")

	want := domain.ShowAggregate{
		ShowID:        "hamlet-2026",
		WeightedScore: 77.5,
		Bucket:        domain.BucketPositive,
		Thumb:         domain.ThumbUp,
		ReviewCount:   5,
		TierCounts:    map[int]int{1: 2, 2: 1, 3: 2},
		TierSums:      map[int]float64{1: 170, 2: 70, 3: 110},
		Confidence:    domain.ConfidenceLow,
		ComputedAt:    time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC),
	}
	require.NoError(t, store.ReplaceAggregate(ctx, want))

	got, ok, err := store.Aggregate(ctx, "hamlet-2026")
	require.NoError(t, err)
	require.True(t, ok)
	assert.InDelta(t, want.WeightedScore, got.WeightedScore, 0.001)
	assert.Equal(t, want.TierCounts, got.TierCounts)
	assert.Equal(t, want.TierSums, got.TierSums)
	assert.Equal(t, want.Confidence, got.Confidence)

	// Replacement overwrites wholesale.
	want.WeightedScore = 80.1
	want.ReviewCount = 6
	require.NoError(t, store.ReplaceAggregate(ctx, want))

	got, ok, err = store.Aggregate(ctx, "hamlet-2026")
	require.NoError(t, err)
	require.True(t, ok)
	assert.InDelta(t, 80.1, got.WeightedScore, 0.001)
	assert.Equal(t, 6, got.ReviewCount)
}

func TestStore_AuditFlags(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.AppendAuditFlags(ctx, "hamlet-2026", nil))

	flags := []domain.Flag{
		domain.NewFlag(domain.FlagAmbiguousScore, "discarded 70 from merge"),
		domain.NewFlag(domain.FlagHighDisagreement, "oracles split 40 vs 85"),
	}
	require.NoError(t, store.AppendAuditFlags(ctx, "hamlet-2026", flags))

	got, err := store.AuditFlagsForShow(ctx, "hamlet-2026")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, domain.FlagHighDisagreement, got[0].Kind, "newest first")
}

func TestStore_CalibrationSamples(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.AddCalibrationSample(ctx, ports.CalibrationSample{RawScore: 80, ExplicitScore: 74}))
	require.NoError(t, store.AddCalibrationSample(ctx, ports.CalibrationSample{RawScore: 55, ExplicitScore: 60}))

	samples, err := store.Samples(ctx)
	require.NoError(t, err)
	require.Len(t, samples, 2)
	assert.Equal(t, 80, samples[0].RawScore)
	assert.Equal(t, 74, samples[0].ExplicitScore)

	pruned, err := store.PruneCalibrationSamples(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 2, pruned)

	samples, err = store.Samples(ctx)
	require.NoError(t, err)
	assert.Empty(t, samples)
}
