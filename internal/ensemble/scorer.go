// Package ensemble combines independent scoring-oracle judgments into a
// single score with an attached confidence level. Oracles are black boxes
// that either return a 0-100 value or fail; the scorer owns the retry,
// fallback, and tie-break contract between them.
package ensemble

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/stagedoor/marquee/internal/domain"
	"github.com/stagedoor/marquee/internal/ports"
)

// Disagreement thresholds and retry defaults.
const (
	// DefaultMediumDisagreement is the |primary-secondary| gap at which the
	// final score becomes the mean of the two.
	DefaultMediumDisagreement = 10

	// DefaultHighDisagreement is the gap at which the tiebreaker oracle is
	// invoked and the result flagged for review.
	DefaultHighDisagreement = 20

	// DefaultMaxAttempts bounds retries per oracle after the initial call.
	// Never unbounded.
	DefaultMaxAttempts = 3

	// DefaultBaseDelay is the first backoff delay; subsequent delays double,
	// so a fully failing oracle waits 1s, 2s, 4s between its four calls.
	DefaultBaseDelay = 1 * time.Second
)

// Config tunes the ensemble contract. The zero value is not valid; use
// DefaultConfig and override fields as needed.
type Config struct {
	// MediumDisagreement and HighDisagreement partition |primary-secondary|
	// into the high/medium/low confidence regimes.
	MediumDisagreement int `validate:"required,gt=0"`
	HighDisagreement   int `validate:"required,gtfield=MediumDisagreement"`

	// MaxAttempts caps retries per oracle, not counting the initial call.
	MaxAttempts int `validate:"required,min=1,max=10"`

	// BaseDelay seeds the exponential backoff between attempts.
	BaseDelay time.Duration `validate:"required"`
}

// DefaultConfig returns the contract documented for the scoring pipeline:
// thresholds 10/20, three retries, 1s/2s/4s backoff.
func DefaultConfig() Config {
	return Config{
		MediumDisagreement: DefaultMediumDisagreement,
		HighDisagreement:   DefaultHighDisagreement,
		MaxAttempts:        DefaultMaxAttempts,
		BaseDelay:          DefaultBaseDelay,
	}
}

// Sleeper abstracts backoff waits so retry behavior is testable without
// real delays. The returned error must be the context error when the wait
// was interrupted by cancellation.
type Sleeper func(ctx context.Context, d time.Duration) error

// realSleep waits out the delay or returns early on cancellation.
func realSleep(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// Scorer runs the primary/secondary/tiebreaker oracle contract. It is
// stateless and safe for concurrent use across shows.
type Scorer struct {
	primary   ports.ScoreOracle
	secondary ports.ScoreOracle
	tiebreak  ports.ScoreOracle
	config    Config
	sleep     Sleeper
}

// NewScorer wires three oracles into an ensemble. The tiebreaker may be nil
// when no third oracle is available; high-disagreement results then keep
// the mean with low confidence.
func NewScorer(primary, secondary, tiebreak ports.ScoreOracle, config Config) (*Scorer, error) {
	if primary == nil || secondary == nil {
		return nil, fmt.Errorf("%w: ensemble requires primary and secondary oracles", domain.ErrInvalidConfiguration)
	}
	if config.MediumDisagreement <= 0 || config.HighDisagreement <= config.MediumDisagreement {
		return nil, fmt.Errorf("%w: disagreement thresholds must satisfy 0 < medium < high", domain.ErrInvalidConfiguration)
	}
	if config.MaxAttempts < 1 {
		return nil, fmt.Errorf("%w: max attempts must be at least 1", domain.ErrInvalidConfiguration)
	}
	return &Scorer{
		primary:   primary,
		secondary: secondary,
		tiebreak:  tiebreak,
		config:    config,
		sleep:     realSleep,
	}, nil
}

// WithSleeper replaces the backoff wait function. Intended for tests.
func (s *Scorer) WithSleeper(sleep Sleeper) *Scorer {
	s.sleep = sleep
	return s
}

// Score runs the ensemble contract over the review text:
//
//   - primary = oracle A, retried with exponential backoff, falling back to
//     an extra oracle B call if A stays down;
//   - secondary = an independent oracle B call, issued concurrently with the
//     primary (the two have no ordering dependency);
//   - disagreement below the medium threshold keeps the primary at high
//     confidence; below the high threshold takes the mean at medium; at or
//     above it the tiebreaker is consulted and the median of all three is
//     kept at low confidence with a review flag.
//
// A returned value of exactly 0 is a valid Pan-range judgment. Failure is
// only ever signaled by error; no sentinel score exists.
func (s *Scorer) Score(ctx context.Context, text string) (domain.EnsembleResult, error) {
	var primary, secondary int
	var primaryErr, secondaryErr error

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		primary, primaryErr = s.scorePrimary(gctx, text)
		return nil
	})
	g.Go(func() error {
		secondary, secondaryErr = s.callWithRetry(gctx, s.secondary, text)
		return nil
	})
	// Errors are carried out-of-band: one oracle failing must not cancel
	// the other's in-flight call.
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return domain.EnsembleResult{}, fmt.Errorf("%w: %v", domain.ErrBatchCancelled, err)
	}

	switch {
	case primaryErr != nil && secondaryErr != nil:
		return domain.EnsembleResult{}, fmt.Errorf("%w: primary: %v; secondary: %v",
			domain.ErrOracleUnavailable, primaryErr, secondaryErr)
	case primaryErr != nil:
		// All primary paths exhausted; the independent secondary call is
		// the only judgment left. Degraded, so flag it.
		return domain.EnsembleResult{
			Primary:       secondary,
			Secondary:     secondary,
			Final:         secondary,
			Confidence:    domain.ConfidenceLow,
			FlagForReview: true,
		}, nil
	case secondaryErr != nil:
		return domain.EnsembleResult{
			Primary:       primary,
			Secondary:     primary,
			Final:         primary,
			Confidence:    domain.ConfidenceLow,
			FlagForReview: true,
		}, nil
	}

	disagreement := primary - secondary
	if disagreement < 0 {
		disagreement = -disagreement
	}

	result := domain.EnsembleResult{
		Primary:      primary,
		Secondary:    secondary,
		Disagreement: disagreement,
	}

	switch {
	case disagreement < s.config.MediumDisagreement:
		result.Final = primary
		result.Confidence = domain.ConfidenceHigh

	case disagreement < s.config.HighDisagreement:
		result.Final = roundMean(primary, secondary)
		result.Confidence = domain.ConfidenceMedium

	default:
		result.Confidence = domain.ConfidenceLow
		result.FlagForReview = true
		// The tiebreaker only runs once both primary and secondary are
		// known; its ordering is strict.
		tiebreak, err := s.scoreTiebreak(ctx, text)
		if err != nil {
			result.Final = roundMean(primary, secondary)
		} else {
			result.Tiebreaker = &tiebreak
			result.Final = median3(primary, secondary, tiebreak)
		}
	}

	return result, nil
}

// scorePrimary runs the primary oracle with retries, then falls back to an
// extra secondary-oracle call acting as primary.
func (s *Scorer) scorePrimary(ctx context.Context, text string) (int, error) {
	score, err := s.callWithRetry(ctx, s.primary, text)
	if err == nil {
		return score, nil
	}
	return s.callWithRetry(ctx, s.secondary, text)
}

// scoreTiebreak consults oracle C, or reports unavailability when none is
// configured.
func (s *Scorer) scoreTiebreak(ctx context.Context, text string) (int, error) {
	if s.tiebreak == nil {
		return 0, fmt.Errorf("%w: no tiebreaker oracle configured", domain.ErrOracleUnavailable)
	}
	return s.callWithRetry(ctx, s.tiebreak, text)
}

// callWithRetry invokes one oracle, then retries up to MaxAttempts times
// with bounded exponential backoff. Out-of-range values are treated as
// oracle failures and retried; zero is a valid score, not a failure
// sentinel.
func (s *Scorer) callWithRetry(ctx context.Context, oracle ports.ScoreOracle, text string) (int, error) {
	var lastErr error
	for attempt := 0; attempt <= s.config.MaxAttempts; attempt++ {
		if attempt > 0 {
			delay := s.config.BaseDelay * time.Duration(1<<(attempt-1))
			if err := s.sleep(ctx, delay); err != nil {
				return 0, &domain.OracleError{Oracle: oracle.Name(), Attempts: attempt, Err: err}
			}
		}

		score, err := oracle.Score(ctx, text)
		if err == nil {
			if score < domain.MinScore || score > domain.MaxScore {
				lastErr = fmt.Errorf("score %d outside [%d,%d]", score, domain.MinScore, domain.MaxScore)
				continue
			}
			return score, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			break
		}
	}
	return 0, &domain.OracleError{Oracle: oracle.Name(), Attempts: s.config.MaxAttempts + 1, Err: lastErr}
}

func roundMean(a, b int) int {
	return int(math.Round(float64(a+b) / 2))
}

func median3(a, b, c int) int {
	vals := []int{a, b, c}
	sort.Ints(vals)
	return vals[1]
}
