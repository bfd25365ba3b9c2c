package embed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEmbedServer(t *testing.T, dims int, status int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/embed", r.URL.Path)
		require.Equal(t, http.MethodPost, r.Method)

		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}

		var req embedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		resp := embedResponse{Embeddings: make([][]float32, len(req.Input))}
		for i := range req.Input {
			vec := make([]float32, dims)
			vec[i%dims] = 1
			resp.Embeddings[i] = vec
		}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestHTTPEmbedder_Embed(t *testing.T) {
	srv := newEmbedServer(t, 8, http.StatusOK)

	e, err := NewHTTPEmbedder(HTTPConfig{Endpoint: srv.URL, Model: "test-model", Dimensions: 8})
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })

	vec, err := e.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Len(t, vec, 8)
}

func TestHTTPEmbedder_Batch(t *testing.T) {
	srv := newEmbedServer(t, 8, http.StatusOK)

	e, err := NewHTTPEmbedder(HTTPConfig{Endpoint: srv.URL, Model: "test-model", Dimensions: 8})
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })

	vecs, err := e.EmbedBatch(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Len(t, vecs, 3)
}

func TestHTTPEmbedder_ServerError(t *testing.T) {
	srv := newEmbedServer(t, 8, http.StatusInternalServerError)

	e, err := NewHTTPEmbedder(HTTPConfig{Endpoint: srv.URL, Model: "test-model", Dimensions: 8})
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })

	_, err = e.Embed(context.Background(), "hello")
	assert.Error(t, err)
}

func TestHTTPEmbedder_DimensionMismatchFromProvider(t *testing.T) {
	srv := newEmbedServer(t, 4, http.StatusOK)

	e, err := NewHTTPEmbedder(HTTPConfig{Endpoint: srv.URL, Model: "test-model", Dimensions: 8})
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })

	_, err = e.Embed(context.Background(), "hello")
	assert.ErrorContains(t, err, "dimension mismatch")
}

func TestHTTPEmbedder_ConfigValidation(t *testing.T) {
	_, err := NewHTTPEmbedder(HTTPConfig{Model: "m", Dimensions: 8})
	assert.Error(t, err, "endpoint required")

	_, err = NewHTTPEmbedder(HTTPConfig{Endpoint: "http://x", Dimensions: 8})
	assert.Error(t, err, "model required")

	_, err = NewHTTPEmbedder(HTTPConfig{Endpoint: "http://x", Model: "m"})
	assert.Error(t, err, "dimensions required")
}

func TestHTTPEmbedder_EmptyBatch(t *testing.T) {
	srv := newEmbedServer(t, 8, http.StatusOK)

	e, err := NewHTTPEmbedder(HTTPConfig{Endpoint: srv.URL, Model: "test-model", Dimensions: 8})
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })

	vecs, err := e.EmbedBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, vecs)
}

func TestNewFromConfig(t *testing.T) {
	e, err := New(testEmbeddingsConfig("static", 16))
	require.NoError(t, err)
	assert.Equal(t, 16, e.Dimensions())

	none, err := New(testEmbeddingsConfig("none", 0))
	require.NoError(t, err)
	assert.Nil(t, none)

	_, err = New(testEmbeddingsConfig("smoke-signals", 16))
	assert.Error(t, err)
}
