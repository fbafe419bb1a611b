package source

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/David-Botos/crdc-reconcile/pkg/model"
)

// RetryPolicy bounds retries of connection-level failures
type RetryPolicy struct {
	Attempts int           // retries after the first try
	Delay    time.Duration // multiplied by the attempt number
}

// Retrying wraps a TableSource and retries table reads that fail with
// connection-level errors
type Retrying struct {
	src    TableSource
	policy RetryPolicy
	logger *zap.Logger
}

// NewRetrying wraps src with policy
func NewRetrying(src TableSource, policy RetryPolicy, logger *zap.Logger) *Retrying {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Retrying{src: src, policy: policy, logger: logger.Named("retry")}
}

// LEAs reads the LEA table with retries
func (r *Retrying) LEAs(ctx context.Context) ([]model.LEARecord, error) {
	return WithRetry(ctx, r.policy, r.logger, "lea", r.src.LEAs)
}

// Geocodes reads the geocode table with retries
func (r *Retrying) Geocodes(ctx context.Context) ([]model.GeocodeRecord, error) {
	return WithRetry(ctx, r.policy, r.logger, "geocode", r.src.Geocodes)
}

// Districts reads the demographic table with retries
func (r *Retrying) Districts(ctx context.Context) ([]model.DistrictRow, error) {
	return WithRetry(ctx, r.policy, r.logger, "demographic", r.src.Districts)
}

// WithRetry runs fn until it succeeds, fails with a non-retryable error, the
// policy is exhausted or ctx is done
func WithRetry[T any](ctx context.Context, policy RetryPolicy, logger *zap.Logger, op string, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	for attempt := 0; ; attempt++ {
		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}

		if !IsRetryableError(err) || attempt >= policy.Attempts || ctx.Err() != nil {
			return zero, err
		}

		wait := policy.Delay * time.Duration(attempt+1)
		logger.Warn("Retrying after connection error",
			zap.String("operation", op),
			zap.Int("retry", attempt+1),
			zap.Duration("wait", wait),
			zap.String("category", ErrorCategoryConnectionLevel.String()),
			zap.Error(err))

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, ctx.Err()
		case <-timer.C:
		}
	}
}
