package chat

import (
	"context"
	"log/slog"
	"time"

	"github.com/googleapis/gax-go/v2"
	"github.com/klipach/supportchat/log"
	"google.golang.org/grpc/codes"
)

var retryableCodes = []codes.Code{
	codes.Unavailable,
	codes.DeadlineExceeded,
	codes.Aborted,
	codes.ResourceExhausted,
}

// RetryPolicy bounds retries of transient backend failures.
type RetryPolicy struct {
	// Attempts counts the first call; 1 disables retries.
	Attempts int
	Backoff  gax.Backoff
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Attempts: 4,
		Backoff: gax.Backoff{
			Initial:    100 * time.Millisecond,
			Max:        2 * time.Second,
			Multiplier: 2,
		},
	}
}

type boundedRetryer struct {
	inner gax.Retryer
	left  int
}

func (r *boundedRetryer) Retry(err error) (time.Duration, bool) {
	if r.left <= 0 {
		return 0, false
	}
	r.left--
	return r.inner.Retry(err)
}

func (s *Service) withRetry(ctx context.Context, op string, fn func(context.Context) error) error {
	logger := log.LoggerFromContext(ctx)
	attempt := 0
	return gax.Invoke(ctx, func(ctx context.Context, _ gax.CallSettings) error {
		attempt++
		err := fn(ctx)
		if err != nil && attempt < s.retry.Attempts {
			logger.Debug(op+" failed",
				slog.Int(log.AttemptLogField, attempt),
				slog.String(log.ErrorMsgLogField, err.Error()),
			)
		}
		return err
	}, gax.WithRetry(func() gax.Retryer {
		return &boundedRetryer{
			inner: gax.OnCodes(retryableCodes, s.retry.Backoff),
			left:  s.retry.Attempts - 1,
		}
	}))
}
