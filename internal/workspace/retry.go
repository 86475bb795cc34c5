package workspace

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/sethvargo/go-retry"
	"google.golang.org/api/googleapi"
)

// Backoff is the retry policy for rate-limited or failing Google API calls.
// Tests shrink it.
var Backoff = func() retry.Backoff {
	return retry.WithMaxRetries(3, retry.WithJitterPercent(20, retry.NewExponential(500*time.Millisecond)))
}

// Do runs fn, retrying with exponential backoff while it fails with a
// retryable Google API error (429 or 5xx). Any other error returns at once.
func Do(ctx context.Context, fn func(ctx context.Context) error) error {
	return retry.Do(ctx, Backoff(), func(ctx context.Context) error {
		err := fn(ctx)
		if err != nil && IsRetryable(err) {
			return retry.RetryableError(err)
		}
		return err
	})
}

// IsRetryable reports whether err is a transient Google API failure.
func IsRetryable(err error) bool {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return false
	}
	return gerr.Code == http.StatusTooManyRequests || gerr.Code >= http.StatusInternalServerError
}
