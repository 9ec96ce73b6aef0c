package ai

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

const maxRetryDelay = 10 * time.Second

// withRetry runs op once plus up to retries more times while the error is retryable.
func withRetry(ctx context.Context, retries int, delay time.Duration, op func() error) error {
	var err error
	for attempt := 0; ; attempt++ {
		err = op()
		if err == nil || attempt >= retries || !isRetryable(err) {
			return err
		}

		logrus.WithFields(logrus.Fields{
			"attempt": attempt + 1,
			"retries": retries,
			"delay":   delay,
		}).WithError(err).Warn("completion failed, retrying")

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		delay *= 2
		if delay > maxRetryDelay {
			delay = maxRetryDelay
		}
	}
}

func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, ErrDisabled) || errors.Is(err, ErrEmptyResponse) {
		return false
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Code == http.StatusTooManyRequests || statusErr.Code >= http.StatusInternalServerError
	}
	// transport failures
	return true
}
