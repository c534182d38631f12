package taskchan

import "errors"

var (
	// Caller errors.
	ErrInvalidExecutor = errors.New("taskchan: executor id 0 is reserved for unowned queues")
	ErrNotPolled       = errors.New("taskchan: finish without a matching poll")
	ErrNilHandler      = errors.New("taskchan: nil task handler")

	// Configuration errors.
	ErrInvalidBucketCount     = errors.New("taskchan: bucket count must be a positive power of two")
	ErrInvalidCompactInterval = errors.New("taskchan: compact interval must be positive")
	ErrUnknownStrategy        = errors.New("taskchan: unknown routing strategy")
	ErrUnknownLocking         = errors.New("taskchan: unknown locking discipline")
)
