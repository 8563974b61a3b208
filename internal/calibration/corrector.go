// Package calibration applies empirically derived additive corrections to
// oracle-derived scores. Offsets are computed offline against verified
// explicit-rating ground truth and interpolated between bucket midpoints so
// a one-point change in raw score never produces a disproportionate jump in
// the corrected score.
package calibration

import (
	"fmt"
	"math"
	"sync/atomic"

	"github.com/stagedoor/marquee/internal/domain"
)

// Coarse bucket geometry. Five equal-width buckets cover the score range;
// offsets are anchored at bucket midpoints (10, 30, 50, 70, 90) and
// linearly interpolated in between.
const (
	BucketWidth = 20
	BucketCount = 5

	// DefaultMinSamples is the sample-size floor below which a bucket's
	// offset is inert and must not be applied.
	DefaultMinSamples = 10
)

// BucketOffset is one bucket's correction and the evidence behind it.
type BucketOffset struct {
	// Offset is the additive correction in score points.
	Offset float64 `yaml:"offset"`

	// Samples is the number of ground-truth pairs the offset was derived
	// from. Buckets under the minimum are inert.
	Samples int `yaml:"samples"`
}

// OffsetTable is a complete, immutable calibration table.
type OffsetTable struct {
	// Buckets holds exactly BucketCount entries, lowest score range first.
	Buckets [BucketCount]BucketOffset `yaml:"buckets"`

	// MinSamples is the per-bucket sample floor. Zero means
	// DefaultMinSamples.
	MinSamples int `yaml:"min_samples"`
}

// minSamples resolves the configured floor.
func (t OffsetTable) minSamples() int {
	if t.MinSamples > 0 {
		return t.MinSamples
	}
	return DefaultMinSamples
}

// effectiveOffset returns the bucket's offset, or 0 when the bucket is
// inert, so interpolation stays continuous across calibrated and
// uncalibrated regions.
func (t OffsetTable) effectiveOffset(bucket int) float64 {
	b := t.Buckets[bucket]
	if b.Samples < t.minSamples() {
		return 0
	}
	return b.Offset
}

// bucketIndex maps a score to its coarse bucket. 100 belongs to the top
// bucket.
func bucketIndex(score int) int {
	idx := score / BucketWidth
	if idx >= BucketCount {
		idx = BucketCount - 1
	}
	return idx
}

// bucketMidpoint returns the anchor score for a bucket's offset.
func bucketMidpoint(bucket int) float64 {
	return float64(bucket*BucketWidth) + float64(BucketWidth)/2
}

// Result reports one correction.
type Result struct {
	// Score is the corrected (or passed-through) score, clamped to [0,100].
	Score int

	// Applied is false when the raw score's bucket lacked sufficient
	// calibration data and the score passed through unmodified.
	Applied bool
}

// Corrector applies the current offset table. The table is swapped
// atomically by the periodic recomputation job, so the live scoring path
// never blocks on recalibration.
type Corrector struct {
	table atomic.Pointer[OffsetTable]
}

// NewCorrector builds a Corrector around an initial table.
func NewCorrector(table OffsetTable) (*Corrector, error) {
	if err := validateTable(table); err != nil {
		return nil, err
	}
	c := &Corrector{}
	c.table.Store(&table)
	return c, nil
}

// validateTable rejects offsets large enough to defeat the smoothness
// guarantee: adjacent midpoint offsets may differ by at most the bucket
// width, bounding the corrected-score slope.
func validateTable(table OffsetTable) error {
	for i, b := range table.Buckets {
		if math.Abs(b.Offset) > BucketWidth {
			return fmt.Errorf("%w: bucket %d offset %.1f exceeds ±%d",
				domain.ErrInvalidConfiguration, i, b.Offset, BucketWidth)
		}
		if b.Samples < 0 {
			return fmt.Errorf("%w: bucket %d has negative sample count", domain.ErrInvalidConfiguration, i)
		}
	}
	return nil
}

// Swap atomically replaces the offset table. Called by the recomputation
// job; concurrent Apply calls see either the old or the new table, never a
// mix.
func (c *Corrector) Swap(table OffsetTable) error {
	if err := validateTable(table); err != nil {
		return err
	}
	c.table.Store(&table)
	return nil
}

// Table returns the table currently in effect.
func (c *Corrector) Table() OffsetTable {
	return *c.table.Load()
}

// Apply corrects a raw oracle-derived score. The offset is keyed by the raw
// score's bucket and interpolated between neighboring bucket midpoints.
// When the raw score's bucket is inert the score passes through unmodified
// with Applied=false; the caller flags it rather than silently correcting
// from too few examples.
func (c *Corrector) Apply(raw int) Result {
	raw = domain.ClampScore(raw)
	table := c.table.Load()

	own := bucketIndex(raw)
	if table.Buckets[own].Samples < table.minSamples() {
		return Result{Score: raw, Applied: false}
	}

	corrected := float64(raw) + c.interpolatedOffset(*table, raw)
	return Result{Score: domain.ClampScore(int(math.Round(corrected))), Applied: true}
}

// interpolatedOffset blends the effective offsets of the two midpoints
// bracketing the score. Scores outside the outermost midpoints take the
// nearest bucket's offset unscaled.
func (c *Corrector) interpolatedOffset(table OffsetTable, score int) float64 {
	s := float64(score)

	first := bucketMidpoint(0)
	last := bucketMidpoint(BucketCount - 1)
	if s <= first {
		return table.effectiveOffset(0)
	}
	if s >= last {
		return table.effectiveOffset(BucketCount - 1)
	}

	lower := int((s - first) / BucketWidth)
	lowerMid := bucketMidpoint(lower)
	frac := (s - lowerMid) / BucketWidth

	return table.effectiveOffset(lower)*(1-frac) + table.effectiveOffset(lower+1)*frac
}
