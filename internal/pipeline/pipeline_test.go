package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stagedoor/marquee/internal/aggregate"
	"github.com/stagedoor/marquee/internal/audit"
	"github.com/stagedoor/marquee/internal/calibration"
	"github.com/stagedoor/marquee/internal/domain"
	"github.com/stagedoor/marquee/internal/outlets"
	"github.com/stagedoor/marquee/internal/ports"
)

// memStore is an in-memory ports.ReviewStore for pipeline tests.
type memStore struct {
	mu       sync.Mutex
	reviews  map[string]map[domain.ReviewKey]domain.NormalizedReview
	aggs     map[string]domain.ShowAggregate
	flags    map[string][]domain.Flag
	failShow string
}

func newMemStore() *memStore {
	return &memStore{
		reviews: make(map[string]map[domain.ReviewKey]domain.NormalizedReview),
		aggs:    make(map[string]domain.ShowAggregate),
		flags:   make(map[string][]domain.Flag),
	}
}

func (m *memStore) ReviewsForShow(_ context.Context, showID string) ([]domain.NormalizedReview, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if showID == m.failShow {
		return nil, errors.New("store unavailable")
	}
	var out []domain.NormalizedReview
	for _, r := range m.reviews[showID] {
		out = append(out, r)
	}
	return out, nil
}

func (m *memStore) UpsertReview(_ context.Context, r domain.NormalizedReview) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.reviews[r.ShowID] == nil {
		m.reviews[r.ShowID] = make(map[domain.ReviewKey]domain.NormalizedReview)
	}
	m.reviews[r.ShowID][r.Key()] = r
	return nil
}

func (m *memStore) ReplaceAggregate(_ context.Context, agg domain.ShowAggregate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.aggs[agg.ShowID] = agg
	return nil
}

func (m *memStore) Aggregate(_ context.Context, showID string) (domain.ShowAggregate, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	agg, ok := m.aggs[showID]
	return agg, ok, nil
}

func (m *memStore) AppendAuditFlags(_ context.Context, showID string, flags []domain.Flag) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.flags[showID] = append(m.flags[showID], flags...)
	return nil
}

// fakeScorer returns a scripted ensemble result for any text.
type fakeScorer struct {
	result domain.EnsembleResult
	err    error
	calls  int
}

func (f *fakeScorer) Score(ctx context.Context, _ string) (domain.EnsembleResult, error) {
	if err := ctx.Err(); err != nil {
		return domain.EnsembleResult{}, domain.ErrBatchCancelled
	}
	f.calls++
	return f.result, f.err
}

func testRegistry(t *testing.T) *outlets.Registry {
	t.Helper()
	registry, err := outlets.NewRegistry([]outlets.Outlet{
		{ID: "nytimes", DisplayName: "The New York Times", Tier: 1, Weight: 2.0, Domain: "nytimes.com"},
		{ID: "variety", DisplayName: "Variety", Tier: 2, Weight: 1.0},
		{ID: "timeout-ny", DisplayName: "Time Out New York", Tier: 2, Weight: 1.0},
		{ID: "vulture", DisplayName: "Vulture", Tier: 2, Weight: 1.0},
	})
	require.NoError(t, err)
	return registry
}

func newTestPipeline(t *testing.T, store ports.ReviewStore, scorer EnsembleScorer) *Pipeline {
	t.Helper()
	p, err := New(Deps{
		Registry:   testRegistry(t),
		Scorer:     scorer,
		Aggregator: aggregate.New(aggregate.DefaultConfig()),
		Validator:  audit.New(audit.Config{}),
		Store:      store,
	})
	require.NoError(t, err)
	return p
}

func TestProcessBatch_ExplicitRatings(t *testing.T) {
	store := newMemStore()
	p := newTestPipeline(t, store, nil)

	batch := Batch{Reviews: []domain.RawReview{
		{ShowID: "hamlet-2026", OutletName: "Variety", CriticName: "Frank Rizzo", RatingString: "4/5"},
		{ShowID: "hamlet-2026", OutletName: "Time Out New York", CriticName: "Adam Feldman", RatingString: "B+"},
		{ShowID: "hamlet-2026", OutletName: "Vulture", CriticName: "Sara Holdren", RatingString: "Rave"},
	}}

	res, err := p.ProcessBatch(context.Background(), batch)
	require.NoError(t, err)
	assert.Equal(t, 1, res.ShowsProcessed)
	assert.Equal(t, 3, res.ReviewsIngested)
	assert.Zero(t, res.ReviewsRejected)
	assert.NotEmpty(t, res.RunID)

	stored, err := store.ReviewsForShow(context.Background(), "hamlet-2026")
	require.NoError(t, err)
	require.Len(t, stored, 3)

	scores := make(map[string]int)
	for _, r := range stored {
		scores[r.OutletID] = r.AssignedScore
		assert.Equal(t, domain.ProvenanceExplicit, r.Provenance)
	}
	assert.Equal(t, 80, scores["variety"])
	assert.Equal(t, 88, scores["timeout-ny"])
	assert.Equal(t, 92, scores["vulture"])

	// Three reviews is below the minimum: pending, no numeric score.
	agg, ok, err := store.Aggregate(context.Background(), "hamlet-2026")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, domain.ConfidencePending, agg.Confidence)
	assert.Zero(t, agg.WeightedScore)
	assert.Equal(t, 3, agg.ReviewCount)
}

func TestProcessBatch_EnsembleFallback(t *testing.T) {
	store := newMemStore()
	scorer := &fakeScorer{result: domain.EnsembleResult{
		Primary: 70, Secondary: 80, Final: 75,
		Confidence: domain.ConfidenceMedium, Disagreement: 10,
	}}
	p := newTestPipeline(t, store, scorer)

	batch := Batch{Reviews: []domain.RawReview{
		{ShowID: "macbeth-2026", OutletName: "Variety", CriticName: "Frank Rizzo",
			Excerpt: "The production runs three hours with a single intermission."},
	}}

	res, err := p.ProcessBatch(context.Background(), batch)
	require.NoError(t, err)
	assert.Equal(t, 1, res.ReviewsIngested)
	assert.Equal(t, 1, scorer.calls)

	stored, _ := store.ReviewsForShow(context.Background(), "macbeth-2026")
	require.Len(t, stored, 1)
	assert.Equal(t, 75, stored[0].AssignedScore)
	assert.Equal(t, domain.ProvenanceEnsemble, stored[0].Provenance)
	assert.False(t, domain.HasFlag(stored[0].Flags, domain.FlagHighDisagreement))
}

func TestProcessBatch_SentimentKeywordsPreemptEnsemble(t *testing.T) {
	store := newMemStore()
	scorer := &fakeScorer{result: domain.EnsembleResult{Final: 50}}
	p := newTestPipeline(t, store, scorer)

	// The excerpt carries sentiment keywords, so the inferencer scores it
	// and the oracles are never consulted.
	res, err := p.ProcessBatch(context.Background(), Batch{Reviews: []domain.RawReview{
		{ShowID: "tempest-2026", OutletName: "Variety", CriticName: "Frank Rizzo",
			Excerpt: "A dull and tedious evening, boring from curtain to curtain."},
	}})
	require.NoError(t, err)
	assert.Equal(t, 1, res.ReviewsIngested)
	assert.Zero(t, scorer.calls)

	stored, _ := store.ReviewsForShow(context.Background(), "tempest-2026")
	require.Len(t, stored, 1)
	assert.Equal(t, domain.ProvenanceInferred, stored[0].Provenance)
	assert.Equal(t, 35, stored[0].AssignedScore)
}

func TestProcessBatch_InertCalibrationFlagged(t *testing.T) {
	store := newMemStore()
	scorer := &fakeScorer{result: domain.EnsembleResult{
		Primary: 73, Secondary: 77, Final: 75,
		Confidence: domain.ConfidenceHigh, Disagreement: 4,
	}}

	// An empty table has no bucket at the sample floor, so every score
	// passes through uncorrected and must be flagged.
	corrector, err := calibration.NewCorrector(calibration.OffsetTable{})
	require.NoError(t, err)

	p, err := New(Deps{
		Registry:   testRegistry(t),
		Scorer:     scorer,
		Corrector:  corrector,
		Aggregator: aggregate.New(aggregate.DefaultConfig()),
		Validator:  audit.New(audit.Config{}),
		Store:      store,
	})
	require.NoError(t, err)

	_, err = p.ProcessBatch(context.Background(), Batch{Reviews: []domain.RawReview{
		{ShowID: "macbeth-2026", OutletName: "Variety", CriticName: "Frank Rizzo",
			Excerpt: "The production runs three hours with a single intermission."},
	}})
	require.NoError(t, err)

	stored, _ := store.ReviewsForShow(context.Background(), "macbeth-2026")
	require.Len(t, stored, 1)
	assert.Equal(t, 75, stored[0].AssignedScore, "inert bucket passes the score through")
	assert.True(t, domain.HasFlag(stored[0].Flags, domain.FlagMissingContext))
}

func TestProcessBatch_CalibratedScoreNotFlagged(t *testing.T) {
	store := newMemStore()
	scorer := &fakeScorer{result: domain.EnsembleResult{
		Primary: 73, Secondary: 77, Final: 75,
		Confidence: domain.ConfidenceHigh, Disagreement: 4,
	}}

	var table calibration.OffsetTable
	for i := range table.Buckets {
		table.Buckets[i] = calibration.BucketOffset{Offset: -4, Samples: calibration.DefaultMinSamples}
	}
	corrector, err := calibration.NewCorrector(table)
	require.NoError(t, err)

	p, err := New(Deps{
		Registry:   testRegistry(t),
		Scorer:     scorer,
		Corrector:  corrector,
		Aggregator: aggregate.New(aggregate.DefaultConfig()),
		Validator:  audit.New(audit.Config{}),
		Store:      store,
	})
	require.NoError(t, err)

	_, err = p.ProcessBatch(context.Background(), Batch{Reviews: []domain.RawReview{
		{ShowID: "macbeth-2026", OutletName: "Variety", CriticName: "Frank Rizzo",
			Excerpt: "The production runs three hours with a single intermission."},
	}})
	require.NoError(t, err)

	stored, _ := store.ReviewsForShow(context.Background(), "macbeth-2026")
	require.Len(t, stored, 1)
	assert.Equal(t, 71, stored[0].AssignedScore)
	assert.False(t, domain.HasFlag(stored[0].Flags, domain.FlagMissingContext))
}

func TestProcessBatch_HighDisagreementFlagged(t *testing.T) {
	store := newMemStore()
	scorer := &fakeScorer{result: domain.EnsembleResult{
		Primary: 40, Secondary: 85, Tiebreaker: intPtr(60), Final: 60,
		Confidence: domain.ConfidenceLow, Disagreement: 45, FlagForReview: true,
	}}
	p := newTestPipeline(t, store, scorer)

	_, err := p.ProcessBatch(context.Background(), Batch{Reviews: []domain.RawReview{
		{ShowID: "lear-2026", OutletName: "Variety", Excerpt: "A divisive evening at the theater."},
	}})
	require.NoError(t, err)

	stored, _ := store.ReviewsForShow(context.Background(), "lear-2026")
	require.Len(t, stored, 1)
	assert.True(t, domain.HasFlag(stored[0].Flags, domain.FlagHighDisagreement))
}

func intPtr(v int) *int { return &v }

func TestProcessBatch_RejectsUnscorable(t *testing.T) {
	store := newMemStore()
	p := newTestPipeline(t, store, nil)

	// No rating and no excerpt: nothing to score from.
	res, err := p.ProcessBatch(context.Background(), Batch{Reviews: []domain.RawReview{
		{ShowID: "hamlet-2026", OutletName: "Variety"},
		{ShowID: "hamlet-2026", OutletName: "Vulture", RatingString: "4/5"},
	}})
	require.NoError(t, err)
	assert.Equal(t, 1, res.ReviewsIngested)
	assert.Equal(t, 1, res.ReviewsRejected)

	stored, _ := store.ReviewsForShow(context.Background(), "hamlet-2026")
	assert.Len(t, stored, 1)

	var kinds []domain.FlagKind
	for _, f := range store.flags["hamlet-2026"] {
		kinds = append(kinds, f.Kind)
	}
	assert.Contains(t, kinds, domain.FlagMissingContext)
}

func TestProcessBatch_DedupesWithinBatchAndStore(t *testing.T) {
	store := newMemStore()
	p := newTestPipeline(t, store, nil)

	first := Batch{Reviews: []domain.RawReview{
		{ShowID: "hamlet-2026", OutletName: "Variety", CriticName: "Frank Rizzo", RatingString: "4/5",
			URL: "https://variety.com/hamlet-review"},
	}}
	_, err := p.ProcessBatch(context.Background(), first)
	require.NoError(t, err)

	// Same review arrives again through a different scrape.
	second := Batch{Reviews: []domain.RawReview{
		{ShowID: "hamlet-2026", OutletName: "Variety", CriticName: "Frank Rizzo", RatingString: "4/5",
			URL: "http://www.variety.com/hamlet-review/"},
	}}
	res, err := p.ProcessBatch(context.Background(), second)
	require.NoError(t, err)
	assert.Equal(t, 1, res.DuplicatesRemoved)

	stored, _ := store.ReviewsForShow(context.Background(), "hamlet-2026")
	assert.Len(t, stored, 1)
}

func TestProcessBatch_SyntheticOutletFlagged(t *testing.T) {
	store := newMemStore()
	p := newTestPipeline(t, store, nil)

	_, err := p.ProcessBatch(context.Background(), Batch{Reviews: []domain.RawReview{
		{ShowID: "hamlet-2026", OutletName: "Hoboken Theater Blog", RatingString: "3/5"},
	}})
	require.NoError(t, err)

	stored, _ := store.ReviewsForShow(context.Background(), "hamlet-2026")
	require.Len(t, stored, 1)
	assert.Equal(t, outlets.TierNiche, stored[0].Tier)
	assert.True(t, domain.HasFlag(stored[0].Flags, domain.FlagProblematicSource))
}

func TestProcessBatch_ShowFailureIsIsolated(t *testing.T) {
	store := newMemStore()
	store.failShow = "broken-show"
	p := newTestPipeline(t, store, nil)

	res, err := p.ProcessBatch(context.Background(), Batch{Reviews: []domain.RawReview{
		{ShowID: "broken-show", OutletName: "Variety", RatingString: "4/5"},
		{ShowID: "hamlet-2026", OutletName: "Vulture", RatingString: "B+"},
	}})
	require.NoError(t, err)
	assert.Equal(t, 1, res.ShowsProcessed)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, "broken-show", res.Failures[0].ShowID)

	stored, _ := store.ReviewsForShow(context.Background(), "hamlet-2026")
	assert.Len(t, stored, 1)
}

func TestProcessBatch_Cancellation(t *testing.T) {
	store := newMemStore()
	scorer := &fakeScorer{}
	p := newTestPipeline(t, store, scorer)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.ProcessBatch(ctx, Batch{Reviews: []domain.RawReview{
		{ShowID: "hamlet-2026", OutletName: "Variety", Excerpt: "A striking revival of a difficult play."},
	}})
	assert.ErrorIs(t, err, domain.ErrBatchCancelled)

	stored, _ := store.ReviewsForShow(context.Background(), "hamlet-2026")
	assert.Empty(t, stored, "cancelled batch must not persist partial results")
}

func TestProcessBatch_MissingShowIDRejected(t *testing.T) {
	store := newMemStore()
	p := newTestPipeline(t, store, nil)

	res, err := p.ProcessBatch(context.Background(), Batch{Reviews: []domain.RawReview{
		{OutletName: "Variety", RatingString: "4/5"},
	}})
	require.NoError(t, err)
	assert.Equal(t, 1, res.ReviewsRejected)
	assert.Zero(t, res.ShowsProcessed)
}

func TestNew_RequiresCoreDependencies(t *testing.T) {
	_, err := New(Deps{})
	assert.ErrorIs(t, err, domain.ErrInvalidConfiguration)
}
