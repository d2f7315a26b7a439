package expression

import "errors"

var (
	// ErrInvalidThresholds is returned when thresholds leave no dead zone
	// or are not positive.
	ErrInvalidThresholds = errors.New("invalid expression thresholds")

	// ErrUnknownSubject is returned when a subject has no state yet.
	ErrUnknownSubject = errors.New("unknown subject")
)
