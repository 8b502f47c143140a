package weather

import "errors"

var (
	// ErrInsufficientData means the store holds fewer than 23 hours of
	// samples, yesterday's bucket is missing or incomplete, or both
	// composition sources came up empty.
	ErrInsufficientData = errors.New("insufficient weather data")

	// ErrMissingField means an upstream forecast response lacked a
	// required field.
	ErrMissingField = errors.New("missing forecast field")

	// ErrUpstreamTransient means a network or HTTP failure talking to
	// an upstream provider. Recoverable; retried at the next cache miss.
	ErrUpstreamTransient = errors.New("transient upstream failure")

	// ErrInvalidProvider means the requested forecast-provider tag has
	// no registered adapter.
	ErrInvalidProvider = errors.New("unknown forecast provider")

	// ErrConfiguration means the service configuration is unusable,
	// e.g. the persistence directory is inaccessible.
	ErrConfiguration = errors.New("configuration error")
)
