package oracle

import "errors"

// Sentinel errors shared by all oracle providers.
var (
	// ErrEmptyAPIKey indicates a provider was configured without credentials.
	ErrEmptyAPIKey = errors.New("API key cannot be empty")

	// ErrEmptyResponse indicates the provider returned no usable text.
	ErrEmptyResponse = errors.New("empty response from provider")

	// ErrMalformedReply indicates the provider's reply did not contain the
	// expected JSON score object.
	ErrMalformedReply = errors.New("malformed oracle reply")

	// ErrScoreOutOfRange indicates the provider returned an integer outside
	// the 0-100 scale. Callers treat this the same as any other failed
	// attempt.
	ErrScoreOutOfRange = errors.New("oracle score out of range")
)
