package embed

import (
	"fmt"

	"github.com/quarrylabs/quarry/internal/config"
)

// New builds an embedder from configuration. Provider "none" returns nil,
// which the pipeline treats as "skip the vector signal".
func New(cfg config.EmbeddingsConfig) (Embedder, error) {
	switch cfg.Provider {
	case "none":
		return nil, nil
	case "static":
		return NewStaticEmbedder(cfg.Dimensions), nil
	case "http":
		inner, err := NewHTTPEmbedder(HTTPConfig{
			Endpoint:   cfg.Endpoint,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
		})
		if err != nil {
			return nil, err
		}
		return WithRetry(inner, DefaultRetryConfig()), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}
}
