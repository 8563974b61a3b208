// Command marquee ingests a batch of raw theater reviews, scores and merges
// them, and rewrites the affected show aggregates. With -serve it stays up
// and runs the scheduled calibration recompute job.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"golang.org/x/time/rate"

	"github.com/stagedoor/marquee/infrastructure/metrics"
	"github.com/stagedoor/marquee/infrastructure/oracle"
	"github.com/stagedoor/marquee/infrastructure/storage"
	"github.com/stagedoor/marquee/internal/aggregate"
	"github.com/stagedoor/marquee/internal/audit"
	"github.com/stagedoor/marquee/internal/calibration"
	"github.com/stagedoor/marquee/internal/config"
	"github.com/stagedoor/marquee/internal/domain"
	"github.com/stagedoor/marquee/internal/ensemble"
	"github.com/stagedoor/marquee/internal/pipeline"
	"github.com/stagedoor/marquee/internal/ports"
)

// batchFile is the JSON document the retrieval collaborator delivers.
type batchFile struct {
	Reviews  []domain.RawReview   `json:"reviews"`
	Openings map[string]time.Time `json:"openings,omitempty"`
}

func main() {
	var (
		configPath = flag.String("config", "marquee.yaml", "Path to the config file")
		batchPath  = flag.String("batch", "", "Path to a batch JSON file to process")
		serve      = flag.Bool("serve", false, "Stay up after the batch and run scheduled jobs")
	)
	flag.Parse()

	if *batchPath == "" && !*serve {
		log.Fatal("nothing to do: pass -batch, -serve, or both")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	if err := run(cfg, *batchPath, *serve); err != nil {
		log.Fatalf("marquee: %v", err)
	}
}

func run(cfg *config.Config, batchPath string, serve bool) error {
	registry, err := config.LoadOutlets(cfg.OutletRegistryPath)
	if err != nil {
		return err
	}

	table, err := config.LoadOffsetTable(cfg.Calibration.TablePath)
	if err != nil {
		return err
	}
	if cfg.Calibration.MinSamples > 0 {
		table.MinSamples = cfg.Calibration.MinSamples
	}
	corrector, err := calibration.NewCorrector(table)
	if err != nil {
		return err
	}

	store, err := storage.Open(cfg.DatabasePath)
	if err != nil {
		return err
	}
	defer store.Close()

	collector := metrics.NewPrometheusMetrics(nil)

	scorer, err := buildScorer(cfg, collector)
	if err != nil {
		return err
	}

	p, err := pipeline.New(pipeline.Deps{
		Registry:    registry,
		Scorer:      scorer,
		Corrector:   corrector,
		Aggregator:  aggregate.New(cfg.AggregateSettings()),
		Validator:   audit.New(audit.Config{}),
		Store:       store,
		Metrics:     collector,
		Parallelism: cfg.Parallelism,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.MetricsAddr != "" {
		go serveMetrics(cfg.MetricsAddr)
	}

	if batchPath != "" {
		if err := processBatchFile(ctx, p, batchPath); err != nil {
			return err
		}
	}

	if !serve {
		return nil
	}

	scheduler := cron.New()
	if cfg.Calibration.RecomputeSchedule != "" {
		recomputer := calibration.NewRecomputer(store, corrector, table.MinSamples)
		_, err := scheduler.AddFunc(cfg.Calibration.RecomputeSchedule, func() {
			jobCtx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			defer cancel()
			if err := recomputer.Run(jobCtx); err != nil {
				log.Printf("calibration recompute: %v", err)
			} else {
				log.Print("calibration offsets recomputed")
			}
		})
		if err != nil {
			return fmt.Errorf("schedule calibration recompute: %w", err)
		}
	}
	scheduler.Start()
	defer scheduler.Stop()

	log.Print("marquee running; waiting for shutdown signal")
	<-ctx.Done()
	log.Print("shutting down")
	return nil
}

// buildScorer assembles the oracle ensemble from configuration. The scorer
// owns all retry and fallback behavior; oracle middleware only paces and
// observes requests.
func buildScorer(cfg *config.Config, collector ports.MetricsCollector) (*ensemble.Scorer, error) {
	primary, err := buildOracle(cfg.Primary, collector)
	if err != nil {
		return nil, fmt.Errorf("primary oracle: %w", err)
	}
	secondary, err := buildOracle(cfg.Secondary, collector)
	if err != nil {
		return nil, fmt.Errorf("secondary oracle: %w", err)
	}

	var tiebreak ports.ScoreOracle
	if cfg.Tiebreaker != nil {
		o, err := buildOracle(*cfg.Tiebreaker, collector)
		if err != nil {
			return nil, fmt.Errorf("tiebreaker oracle: %w", err)
		}
		tiebreak = o
	}

	scorerCfg := ensemble.DefaultConfig()
	if cfg.Ensemble.MediumDisagreement > 0 {
		scorerCfg.MediumDisagreement = cfg.Ensemble.MediumDisagreement
	}
	if cfg.Ensemble.HighDisagreement > 0 {
		scorerCfg.HighDisagreement = cfg.Ensemble.HighDisagreement
	}
	if cfg.Ensemble.MaxAttempts > 0 {
		scorerCfg.MaxAttempts = cfg.Ensemble.MaxAttempts
	}
	if cfg.Ensemble.BaseDelay > 0 {
		scorerCfg.BaseDelay = cfg.Ensemble.BaseDelay
	}

	return ensemble.NewScorer(primary, secondary, tiebreak, scorerCfg)
}

func buildOracle(oc config.OracleConfig, collector ports.MetricsCollector) (ports.ScoreOracle, error) {
	middleware := []oracle.Middleware{oracle.TracingMiddleware()}
	if oc.RatePerSecond > 0 {
		burst := oc.Burst
		if burst <= 0 {
			burst = 1
		}
		middleware = append(middleware, oracle.RateLimitMiddleware(rate.Limit(oc.RatePerSecond), burst))
	}
	middleware = append(middleware, oracle.MetricsMiddleware(collector))

	return oracle.NewClient(oc.Provider, oracle.ClientConfig{
		Name:       oc.Name,
		APIKey:     oc.APIKey(),
		Model:      oc.Model,
		Middleware: middleware,
	})
}

func processBatchFile(ctx context.Context, p *pipeline.Pipeline, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read batch file: %w", err)
	}

	var batch batchFile
	if err := json.Unmarshal(data, &batch); err != nil {
		return fmt.Errorf("parse batch file: %w", err)
	}

	log.Printf("processing batch of %d reviews", len(batch.Reviews))
	res, err := p.ProcessBatch(ctx, pipeline.Batch{Reviews: batch.Reviews, Openings: batch.Openings})
	if err != nil {
		return err
	}

	log.Printf("run %s: %d shows, %d reviews ingested, %d rejected, %d duplicates removed, %d audit findings in %s",
		res.RunID, res.ShowsProcessed, res.ReviewsIngested, res.ReviewsRejected,
		res.DuplicatesRemoved, res.AuditFindings, res.Duration.Round(time.Millisecond))
	for _, f := range res.Failures {
		log.Printf("show %s failed: %v", f.ShowID, f.Err)
	}
	return nil
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(prometheus.DefaultGatherer, promhttp.HandlerOpts{}))
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Printf("metrics endpoint: %v", err)
	}
}
