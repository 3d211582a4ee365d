package dialogue

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

const (
	DefaultRetryAttempts = 1
	DefaultRetryBackoff  = 2 * time.Second
)

// RetryPolicy bounds how often an operation is retried. Attempts counts the
// retries after the first try.
type RetryPolicy struct {
	Attempts int
	Backoff  time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Attempts: DefaultRetryAttempts, Backoff: DefaultRetryBackoff}
}

// Do runs op until it succeeds or the attempts are used up. Before every
// retry the backoff elapses and gate is consulted; a false gate ends the loop
// with ErrStaleBinding. The last error of op is returned otherwise.
func (p RetryPolicy) Do(ctx context.Context, op func(context.Context) error, gate func() bool) error {
	limit := rate.Inf
	if p.Backoff > 0 {
		limit = rate.Every(p.Backoff)
	}
	limiter := rate.NewLimiter(limit, 1)
	// The burst token covers the first attempt.
	limiter.Allow()

	err := op(ctx)
	for retry := 0; err != nil && retry < p.Attempts; retry++ {
		if waitErr := limiter.Wait(ctx); waitErr != nil {
			return err
		}
		if gate != nil && !gate() {
			return ErrStaleBinding
		}
		err = op(ctx)
	}
	return err
}
