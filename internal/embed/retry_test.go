package embed

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flakyEmbedder fails a fixed number of times before succeeding.
type flakyEmbedder struct {
	*StaticEmbedder
	failures int
	calls    int
}

func (f *flakyEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, errors.New("transient failure")
	}
	return f.StaticEmbedder.Embed(ctx, text)
}

func fastRetry(max int) RetryConfig {
	return RetryConfig{
		MaxRetries:   max,
		InitialDelay: time.Millisecond,
		MaxDelay:     2 * time.Millisecond,
		Multiplier:   2.0,
	}
}

func TestRetryEmbedder_SucceedsAfterFailures(t *testing.T) {
	inner := &flakyEmbedder{StaticEmbedder: NewStaticEmbedder(16), failures: 2}
	e := WithRetry(inner, fastRetry(3))

	vec, err := e.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Len(t, vec, 16)
	assert.Equal(t, 3, inner.calls)
}

func TestRetryEmbedder_ExhaustsRetries(t *testing.T) {
	inner := &flakyEmbedder{StaticEmbedder: NewStaticEmbedder(16), failures: 10}
	e := WithRetry(inner, fastRetry(2))

	_, err := e.Embed(context.Background(), "hello")
	require.Error(t, err)
	assert.Equal(t, 3, inner.calls, "initial attempt plus two retries")
}

func TestRetryEmbedder_ContextCancellation(t *testing.T) {
	inner := &flakyEmbedder{StaticEmbedder: NewStaticEmbedder(16), failures: 100}
	e := WithRetry(inner, RetryConfig{
		MaxRetries:   5,
		InitialDelay: time.Hour,
		MaxDelay:     time.Hour,
		Multiplier:   1.0,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := e.Embed(ctx, "hello")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRetryEmbedder_Passthrough(t *testing.T) {
	e := WithRetry(NewStaticEmbedder(16), fastRetry(1))
	assert.Equal(t, 16, e.Dimensions())
	assert.Equal(t, "static-hash", e.ModelName())
	assert.True(t, e.Available(context.Background()))
}
