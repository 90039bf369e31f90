package rate

import "errors"

var (
	// ErrRateLimited is returned once a counter has reached its budget.
	ErrRateLimited = errors.New("rate limited")
	// ErrRedisUnavailable wraps Redis command failures.
	ErrRedisUnavailable = errors.New("redis unavailable")
)
