package graph

import (
	"context"
	"fmt"
	"time"
)

// RetryConfig configures retry behavior for nodes
type RetryConfig struct {
	MaxAttempts     int
	InitialDelay    time.Duration
	MaxDelay        time.Duration
	BackoffFactor   float64
	RetryableErrors func(error) bool // Determines if an error should trigger retry
}

// DefaultRetryConfig returns a default retry configuration
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts:   3,
		InitialDelay:  100 * time.Millisecond,
		MaxDelay:      5 * time.Second,
		BackoffFactor: 2.0,
		RetryableErrors: func(_ error) bool {
			return true
		},
	}
}

// executeWithRetry runs a node, retrying failures according to the graph's
// retry config with exponential backoff. Without a config the node runs once.
func (r *Runnable[S]) executeWithRetry(ctx context.Context, node Node[S], state S) (S, error) {
	config := r.graph.retryConfig
	if config == nil {
		return node.Function(ctx, state)
	}

	var lastErr error
	var zero S
	delay := config.InitialDelay

	for attempt := 1; attempt <= config.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return zero, fmt.Errorf("retry cancelled: %w", ctx.Err())
		default:
		}

		result, err := node.Function(ctx, state)
		if err == nil {
			return result, nil
		}

		lastErr = err

		if config.RetryableErrors != nil && !config.RetryableErrors(err) {
			return zero, fmt.Errorf("non-retryable error in %s: %w", node.Name, err)
		}

		if attempt < config.MaxAttempts {
			r.logger.Warn("node %s failed (attempt %d/%d), retrying in %v: %v",
				node.Name, attempt, config.MaxAttempts, delay, err)

			select {
			case <-time.After(delay):
				delay = min(time.Duration(float64(delay)*config.BackoffFactor), config.MaxDelay)
			case <-ctx.Done():
				return zero, fmt.Errorf("retry cancelled during backoff: %w", ctx.Err())
			}
		}
	}

	return zero, fmt.Errorf("max retries (%d) exceeded for %s: %w",
		config.MaxAttempts, node.Name, lastErr)
}
