package domain

import (
	"errors"
	"fmt"
)

// Common domain errors returned by pipeline components.
var (
	// ErrParseFailure indicates no parse strategy could normalize a rating
	// and no sentiment fallback was possible. The review is rejected, never
	// defaulted to a numeric score.
	ErrParseFailure = errors.New("rating could not be normalized")

	// ErrOracleUnavailable indicates an oracle chain was exhausted: retries
	// and the fallback oracle all failed. It is terminal for the review;
	// no sentinel score is ever substituted.
	ErrOracleUnavailable = errors.New("scoring oracles unavailable")

	// ErrInsufficientCalibration indicates a calibration bucket's sample
	// size was below the configured minimum and its offset was not applied.
	ErrInsufficientCalibration = errors.New("insufficient calibration data")

	// ErrBatchCancelled indicates the governing batch job was aborted and
	// no further results may be persisted.
	ErrBatchCancelled = errors.New("batch job cancelled")

	// ErrInvalidConfiguration indicates a systemic configuration problem
	// (missing outlet registry, malformed tables) that aborts the run.
	ErrInvalidConfiguration = errors.New("invalid configuration")
)

// ParseError carries the rejected rating string alongside ErrParseFailure
// so rejection logs identify the input that could not be handled.
type ParseError struct {
	// Raw is the rating string that defeated every strategy.
	Raw string

	// Excerpt reports whether excerpt text was available for fallback.
	Excerpt bool
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	if e.Excerpt {
		return fmt.Sprintf("unparseable rating %q and sentiment fallback yielded nothing", e.Raw)
	}
	return fmt.Sprintf("unparseable rating %q and no excerpt for fallback", e.Raw)
}

// Unwrap makes ParseError match ErrParseFailure under errors.Is.
func (e *ParseError) Unwrap() error { return ErrParseFailure }

// OracleError wraps a failed oracle call with the oracle's name and how many
// attempts were made before giving up.
type OracleError struct {
	Oracle   string
	Attempts int
	Err      error
}

// Error implements the error interface.
func (e *OracleError) Error() string {
	return fmt.Sprintf("oracle %s failed after %d attempts: %v", e.Oracle, e.Attempts, e.Err)
}

// Unwrap returns the underlying error.
func (e *OracleError) Unwrap() error { return e.Err }
