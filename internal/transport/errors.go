package transport

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrEmptyFeedRef      = errors.New("empty feed reference")
	ErrNotSubscribed     = errors.New("no lifecycle subscription")
	ErrAlreadySubscribed = errors.New("lifecycle stream already subscribed")
	ErrFeedNotMonitored  = errors.New("feed is not monitored")
	ErrGatewayClosed     = errors.New("gateway closed")
)

// RateLimitedError is returned when the backend throttles a call. Wait is the
// server-requested pause before the call may be repeated.
type RateLimitedError struct {
	Wait time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited for %s", e.Wait)
}

// PermanentError wraps any failure that is not worth repeating.
type PermanentError struct {
	Op  string
	Err error
}

func (e *PermanentError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *PermanentError) Unwrap() error {
	return e.Err
}

func IsRateLimited(err error) bool {
	var rl *RateLimitedError
	return errors.As(err, &rl)
}

// RetryAfter extracts the requested wait from a rate limit error.
func RetryAfter(err error) (time.Duration, bool) {
	var rl *RateLimitedError
	if errors.As(err, &rl) {
		return rl.Wait, true
	}
	return 0, false
}
