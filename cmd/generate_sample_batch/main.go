// Command generate_sample_batch writes a synthetic review batch for local
// pipeline runs. The output matches the retrieval collaborator's delivery
// format and can be fed straight to marquee -batch.
package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/stagedoor/marquee/internal/testutils"
)

func main() {
	var (
		size       = flag.Int("size", 200, "Number of reviews to generate")
		seed       = flag.Int64("seed", time.Now().UnixNano(), "Random seed for reproducible batches")
		outputPath = flag.String("output", "testdata/sample_batch.json", "Output file path")
	)
	flag.Parse()

	batch := testutils.GenerateSampleBatch(*size, *seed)
	if err := testutils.SaveSampleBatch(batch, *outputPath); err != nil {
		log.Fatalf("Failed to save batch: %v", err)
	}

	fmt.Printf("Generated sample batch:\n")
	fmt.Printf("- Path: %s\n", *outputPath)
	fmt.Printf("- Reviews: %d\n", len(batch.Reviews))
	fmt.Printf("- Shows: %d\n", len(batch.Openings))
	fmt.Printf("- Seed: %d\n", *seed)
}
