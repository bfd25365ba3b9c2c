package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

// HTTPConfig configures the HTTP embedder.
type HTTPConfig struct {
	// Endpoint is the provider base URL (e.g. http://localhost:11434).
	Endpoint string

	// Model is the embedding model name.
	Model string

	// Dimensions is the expected embedding dimension.
	Dimensions int

	// Timeout bounds each request.
	Timeout time.Duration
}

// HTTPEmbedder generates embeddings through an Ollama-compatible HTTP API
// (POST /api/embed).
type HTTPEmbedder struct {
	client *http.Client
	config HTTPConfig

	mu     sync.RWMutex
	closed bool
}

// Verify interface implementation at compile time
var _ Embedder = (*HTTPEmbedder)(nil)

// NewHTTPEmbedder creates a new HTTP embedder.
func NewHTTPEmbedder(cfg HTTPConfig) (*HTTPEmbedder, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("embed: endpoint is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("embed: model is required")
	}
	if cfg.Dimensions <= 0 {
		return nil, fmt.Errorf("embed: dimensions must be positive, got %d", cfg.Dimensions)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	transport := &http.Transport{
		MaxIdleConns:        4,
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     10 * time.Second,
	}

	return &HTTPEmbedder{
		client: &http.Client{Transport: transport},
		config: cfg,
	}, nil
}

// embedRequest is the provider request body.
type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

// embedResponse is the provider response body.
type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// Embed generates the embedding for a single text.
func (e *HTTPEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch generates embeddings for multiple texts in one request.
func (e *HTTPEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	e.mu.RLock()
	closed := e.closed
	e.mu.RUnlock()
	if closed {
		return nil, fmt.Errorf("embedder is closed")
	}
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	body, err := json.Marshal(embedRequest{Model: e.config.Model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("marshal embed request: %w", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, e.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost,
		e.config.Endpoint+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build embed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embed request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("embed request returned %d: %s", resp.StatusCode, string(msg))
	}

	var parsed embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode embed response: %w", err)
	}

	if len(parsed.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embed response count mismatch: want %d, got %d",
			len(texts), len(parsed.Embeddings))
	}
	for _, v := range parsed.Embeddings {
		if len(v) != e.config.Dimensions {
			return nil, fmt.Errorf("embed response dimension mismatch: want %d, got %d",
				e.config.Dimensions, len(v))
		}
	}

	return parsed.Embeddings, nil
}

// Dimensions returns the embedding dimension.
func (e *HTTPEmbedder) Dimensions() int { return e.config.Dimensions }

// ModelName returns the model identifier.
func (e *HTTPEmbedder) ModelName() string { return e.config.Model }

// Available checks the provider with a tiny embed request.
func (e *HTTPEmbedder) Available(ctx context.Context) bool {
	_, err := e.Embed(ctx, "ping")
	return err == nil
}

// Close releases resources.
func (e *HTTPEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	e.client.CloseIdleConnections()
	return nil
}
