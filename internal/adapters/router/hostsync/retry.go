package hostsync

import (
	"context"

	"github.com/cenkalti/backoff"
)

// RetryPolicy allows at most maxRetries retries of b within ctx. Zero means
// a single attempt.
func RetryPolicy(ctx context.Context, b backoff.BackOff, maxRetries uint64) backoff.BackOffContext {
	if maxRetries == 0 {
		return backoff.WithContext(&backoff.StopBackOff{}, ctx)
	}

	return backoff.WithContext(backoff.WithMaxRetries(b, maxRetries), ctx)
}
