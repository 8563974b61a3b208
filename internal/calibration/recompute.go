package calibration

import (
	"context"
	"fmt"
	"math"

	"github.com/stagedoor/marquee/internal/ports"
)

// DeriveTable computes a fresh offset table from ground-truth samples:
// reviews holding both an oracle-derived raw score and a verified explicit
// score. Each bucket's offset is the mean signed error of its samples.
// Buckets short of minSamples keep their sample count so the corrector
// knows to treat them as inert.
func DeriveTable(samples []ports.CalibrationSample, minSamples int) OffsetTable {
	if minSamples <= 0 {
		minSamples = DefaultMinSamples
	}

	var sums [BucketCount]float64
	var counts [BucketCount]int
	for _, s := range samples {
		raw := s.RawScore
		if raw < 0 || raw > 100 || s.ExplicitScore < 0 || s.ExplicitScore > 100 {
			continue
		}
		idx := bucketIndex(raw)
		sums[idx] += float64(s.ExplicitScore - s.RawScore)
		counts[idx]++
	}

	table := OffsetTable{MinSamples: minSamples}
	for i := range table.Buckets {
		table.Buckets[i].Samples = counts[i]
		if counts[i] == 0 {
			continue
		}
		offset := sums[i] / float64(counts[i])
		// Clamp to the validation bound rather than rejecting a run whose
		// ground truth happens to be extreme.
		offset = math.Max(-BucketWidth, math.Min(BucketWidth, offset))
		table.Buckets[i].Offset = offset
	}
	return table
}

// Recomputer is the periodic, decoupled recalibration job. It reads
// verified samples from the store and swaps the corrector's table; it never
// sits on the live per-review scoring path.
type Recomputer struct {
	source    ports.CalibrationSampleSource
	corrector *Corrector
	minSample int
}

// NewRecomputer wires a sample source to a live corrector.
func NewRecomputer(source ports.CalibrationSampleSource, corrector *Corrector, minSamples int) *Recomputer {
	if minSamples <= 0 {
		minSamples = DefaultMinSamples
	}
	return &Recomputer{source: source, corrector: corrector, minSample: minSamples}
}

// Run performs one recomputation pass. Suitable as a cron job body.
func (r *Recomputer) Run(ctx context.Context) error {
	samples, err := r.source.Samples(ctx)
	if err != nil {
		return fmt.Errorf("load calibration samples: %w", err)
	}
	return r.corrector.Swap(DeriveTable(samples, r.minSample))
}
