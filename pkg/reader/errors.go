package reader

import "errors"

var (
	// ErrDataUnavailable is returned when the store is unreachable, times out or holds no snapshot.
	ErrDataUnavailable = errors.New("status data unavailable")

	// ErrMalformedRecord is returned when a tracked cluster is missing or inconsistent.
	ErrMalformedRecord = errors.New("malformed status record")
)
