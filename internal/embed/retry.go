package embed

import (
	"context"
	"time"
)

// RetryConfig configures retry behavior for embedding requests.
type RetryConfig struct {
	MaxRetries   int           // Maximum retry attempts (not including the initial attempt)
	InitialDelay time.Duration // Delay before first retry
	MaxDelay     time.Duration // Maximum delay between retries
	Multiplier   float64       // Multiplier for exponential backoff
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:   DefaultMaxRetries,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     8 * time.Second,
		Multiplier:   2.0,
	}
}

// RetryEmbedder wraps an Embedder with exponential-backoff retries.
// Transient provider failures (model loading, connection resets) are retried;
// context cancellation aborts immediately.
type RetryEmbedder struct {
	inner Embedder
	cfg   RetryConfig
}

// Verify interface implementation at compile time
var _ Embedder = (*RetryEmbedder)(nil)

// WithRetry wraps inner with the given retry policy.
func WithRetry(inner Embedder, cfg RetryConfig) *RetryEmbedder {
	if cfg.MaxRetries <= 0 {
		cfg = DefaultRetryConfig()
	}
	return &RetryEmbedder{inner: inner, cfg: cfg}
}

// Embed generates the embedding for a single text, retrying on failure.
func (e *RetryEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	var out []float32
	err := e.retry(ctx, func() error {
		var innerErr error
		out, innerErr = e.inner.Embed(ctx, text)
		return innerErr
	})
	return out, err
}

// EmbedBatch generates embeddings for multiple texts, retrying on failure.
func (e *RetryEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	var out [][]float32
	err := e.retry(ctx, func() error {
		var innerErr error
		out, innerErr = e.inner.EmbedBatch(ctx, texts)
		return innerErr
	})
	return out, err
}

// retry executes fn with exponential backoff, honoring ctx cancellation.
func (e *RetryEmbedder) retry(ctx context.Context, fn func() error) error {
	delay := e.cfg.InitialDelay
	var lastErr error

	for attempt := 0; attempt <= e.cfg.MaxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if lastErr = fn(); lastErr == nil {
			return nil
		}
		if attempt >= e.cfg.MaxRetries {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}

		delay = time.Duration(float64(delay) * e.cfg.Multiplier)
		if delay > e.cfg.MaxDelay {
			delay = e.cfg.MaxDelay
		}
	}

	return lastErr
}

// Dimensions returns the embedding dimension.
func (e *RetryEmbedder) Dimensions() int { return e.inner.Dimensions() }

// ModelName returns the model identifier.
func (e *RetryEmbedder) ModelName() string { return e.inner.ModelName() }

// Available checks if the inner embedder is ready.
func (e *RetryEmbedder) Available(ctx context.Context) bool { return e.inner.Available(ctx) }

// Close releases resources.
func (e *RetryEmbedder) Close() error { return e.inner.Close() }
