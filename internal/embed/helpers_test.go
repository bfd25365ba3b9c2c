package embed

import (
	"github.com/quarrylabs/quarry/internal/config"
)

// testEmbeddingsConfig builds an embeddings config for factory tests.
func testEmbeddingsConfig(provider string, dims int) config.EmbeddingsConfig {
	return config.EmbeddingsConfig{
		Provider:   provider,
		Endpoint:   "http://localhost:11434",
		Model:      "test-model",
		Dimensions: dims,
	}
}
