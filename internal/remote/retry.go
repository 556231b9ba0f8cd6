package remote

import "time"

// Decision is the outcome of consulting a RetryPolicy.
type Decision struct {
	Retry bool
	After time.Duration
}

// RetryPolicy decides whether a failed attempt is retried. attempt is the
// 1-based number of the attempt that just failed.
type RetryPolicy interface {
	Next(attempt int, err error) Decision
}

// ExponentialBackoff retries availability failures with delays of Base,
// 2*Base, 4*Base and so on, without jitter. MaxAttempts counts every
// attempt including the first.
type ExponentialBackoff struct {
	MaxAttempts int
	Base        time.Duration
}

// DefaultRetryPolicy is three attempts starting at one second.
func DefaultRetryPolicy() ExponentialBackoff {
	return ExponentialBackoff{MaxAttempts: 3, Base: time.Second}
}

// Next implements RetryPolicy.
func (p ExponentialBackoff) Next(attempt int, err error) Decision {
	if err == nil || attempt < 1 || attempt >= p.MaxAttempts || !Retryable(err) {
		return Decision{}
	}
	return Decision{Retry: true, After: p.Base << (attempt - 1)}
}

// NoRetry gives up after the first attempt.
type NoRetry struct{}

// Next implements RetryPolicy.
func (NoRetry) Next(int, error) Decision { return Decision{} }
