package corpus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net"
	"strings"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/sony/gobreaker"

	"github.com/soundprediction/kgembed/pkg/types"
)

// RetryConfig holds configuration for retry behavior
type RetryConfig struct {
	// MaxRetries is the maximum number of retry attempts (default: 3)
	MaxRetries int
	// InitialDelay is the initial delay before the first retry (default: 1 second)
	InitialDelay time.Duration
	// MaxDelay is the maximum delay between retries (default: 30 seconds)
	MaxDelay time.Duration
	// BackoffMultiplier is the multiplier for exponential backoff (default: 2.0)
	BackoffMultiplier float64
}

// DefaultRetryConfig returns the default retry configuration
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxRetries:        3,
		InitialDelay:      1 * time.Second,
		MaxDelay:          30 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// BreakerConfig configures the circuit breaker around a source.
type BreakerConfig struct {
	Enabled     bool
	MaxRequests uint32
	// Interval clears the failure counts while closed; 0 never clears them.
	Interval time.Duration
	// Timeout is how long the breaker stays open before probing again.
	Timeout          time.Duration
	ReadyToTripRatio float64
}

// DefaultBreakerConfig returns an enabled breaker that trips at 60% failures.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		Enabled:          true,
		MaxRequests:      1,
		Interval:         60 * time.Second,
		Timeout:          30 * time.Second,
		ReadyToTripRatio: 0.6,
	}
}

// Resilient wraps a Source with retries and a circuit breaker. Training
// treats corpus errors as fatal, so transient database failures are absorbed
// here instead.
type Resilient struct {
	src    Source
	retry  *RetryConfig
	cb     *gobreaker.CircuitBreaker
	logger *slog.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

// NewResilient wraps src. A nil retry config uses DefaultRetryConfig.
func NewResilient(src Source, retry *RetryConfig, breaker BreakerConfig, logger *slog.Logger) *Resilient {
	if retry == nil {
		retry = DefaultRetryConfig()
	}
	if retry.MaxRetries < 0 {
		retry.MaxRetries = 3
	}
	if retry.InitialDelay <= 0 {
		retry.InitialDelay = 1 * time.Second
	}
	if retry.MaxDelay <= 0 {
		retry.MaxDelay = 30 * time.Second
	}
	if retry.BackoffMultiplier <= 0 {
		retry.BackoffMultiplier = 2.0
	}
	if logger == nil {
		logger = slog.Default()
	}

	r := &Resilient{src: src, retry: retry, logger: logger, sleep: sleepContext}
	if breaker.Enabled {
		r.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "corpus",
			MaxRequests: breaker.MaxRequests,
			Interval:    breaker.Interval,
			Timeout:     breaker.Timeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
				return counts.Requests >= 3 && failureRatio >= breaker.ReadyToTripRatio
			},
			IsSuccessful: func(err error) bool {
				// Cancellation says nothing about the backend's health.
				return err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
			},
			OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
				if to == gobreaker.StateOpen {
					logger.Error("Circuit breaker tripped", "breaker", name, "from", from.String(), "to", to.String())
					return
				}
				logger.Warn("Circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
			},
		})
	}
	return r
}

// Unwrap returns the wrapped source.
func (r *Resilient) Unwrap() Source {
	return r.src
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// calculateDelay calculates the delay for a given retry attempt using exponential backoff
func (r *Resilient) calculateDelay(attempt int) time.Duration {
	delay := float64(r.retry.InitialDelay) * math.Pow(r.retry.BackoffMultiplier, float64(attempt-1))
	if delay > float64(r.retry.MaxDelay) {
		delay = float64(r.retry.MaxDelay)
	}
	return time.Duration(delay)
}

func (r *Resilient) call(ctx context.Context, fn func() (any, error)) (any, error) {
	if r.cb == nil {
		return fn()
	}
	return r.cb.Execute(fn)
}

func do[T any](ctx context.Context, r *Resilient, op string, fn func() (T, error)) (T, error) {
	var (
		zero    T
		lastErr error
	)
	for attempt := 0; attempt <= r.retry.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := r.calculateDelay(attempt)
			r.logger.Warn("Retrying corpus operation",
				"operation", op,
				"attempt", attempt,
				"delay", delay,
				"error", lastErr)
			if err := r.sleep(ctx, delay); err != nil {
				return zero, fmt.Errorf("context cancelled during retry backoff: %w", err)
			}
		}

		v, err := r.call(ctx, func() (any, error) { return fn() })
		if err == nil {
			return v.(T), nil
		}
		lastErr = err
		if !isRetryableError(err) {
			return zero, err
		}
	}
	return zero, fmt.Errorf("%s failed after %d retries: %w", op, r.retry.MaxRetries, lastErr)
}

// isRetryableError determines if an error is retryable
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return false
	}
	if errors.Is(err, ErrClosed) {
		return false
	}
	if neo4j.IsRetryable(err) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	errMsg := strings.ToLower(err.Error())
	retryablePatterns := []string{
		"timeout",
		"connection reset",
		"connection refused",
		"broken pipe",
		"temporary failure",
		"service unavailable",
		"too many connections",
	}
	for _, pattern := range retryablePatterns {
		if strings.Contains(errMsg, pattern) {
			return true
		}
	}
	return false
}

func (r *Resilient) Count(ctx context.Context) (int, error) {
	return do(ctx, r, "count", func() (int, error) { return r.src.Count(ctx) })
}

func (r *Resilient) Batch(ctx context.Context, offset, limit int) ([]types.Triplet, error) {
	return do(ctx, r, "batch", func() ([]types.Triplet, error) { return r.src.Batch(ctx, offset, limit) })
}

func (r *Resilient) EntityIDs(ctx context.Context) ([]types.EntityID, error) {
	return do(ctx, r, "entity_ids", func() ([]types.EntityID, error) { return r.src.EntityIDs(ctx) })
}

func (r *Resilient) RelationIDs(ctx context.Context) ([]types.RelationID, error) {
	return do(ctx, r, "relation_ids", func() ([]types.RelationID, error) { return r.src.RelationIDs(ctx) })
}

// EntityName delegates to the wrapped source. It fails with ErrNoEntityNames
// if the wrapped source has no names.
func (r *Resilient) EntityName(ctx context.Context, id types.EntityID) (string, error) {
	namer, ok := r.src.(EntityNamer)
	if !ok {
		return "", fmt.Errorf("%T: %w", r.src, ErrNoEntityNames)
	}
	return do(ctx, r, "entity_name", func() (string, error) { return namer.EntityName(ctx, id) })
}

func (r *Resilient) Close() error {
	return r.src.Close()
}
