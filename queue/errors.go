package queue

import "errors"

// Business outcomes surfaced to callers. Handlers translate these to
// HTTP status codes; estimator and scorer failures never reach here.
var (
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrCapacityExceeded  = errors.New("capacity exceeded")
	ErrInvalidTransition = errors.New("invalid transition")
	ErrUnavailable       = errors.New("store unavailable")
)
