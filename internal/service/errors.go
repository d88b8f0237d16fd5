package service

import "errors"

// Validation and state errors surfaced by the pricing components. Storage-level
// sentinels (not-found, lock conflicts) live in the store package; the API
// layer maps both families to stable error codes.
var (
	ErrExperimentConflict   = errors.New("a running experiment already exists for this product")
	ErrExperimentNotRunning = errors.New("experiment is not running")
	ErrInvalidMultiplier    = errors.New("surge multiplier must be between 1.0 and 3.0")
	ErrInvalidSurgeType     = errors.New("unknown surge event type")
	ErrInvalidDuration      = errors.New("surge duration must be positive")
	ErrInvalidReason        = errors.New("unknown price change reason")
	ErrInvalidHorizon       = errors.New("forecast horizon must be between 1 and 90 days")
	ErrInvalidAlgorithm     = errors.New("unknown forecast algorithm")
	ErrInvalidRule          = errors.New("rule is malformed")
	ErrInvalidPrice         = errors.New("price must be positive")
)
