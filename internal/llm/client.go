package llm

import (
	"context"
	"errors"
	"fmt"
)

// ErrEmbeddingShape marks structural violations in embedding responses
// (wrong batch size, mixed dimensionality). These are configuration bugs
// and are fatal to the caller.
var ErrEmbeddingShape = errors.New("embedding response shape mismatch")

type LLMClient interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// EmbedderClient embeds a batch of texts under a named model. Results are
// 1:1 with the input and share a fixed dimensionality per model.
type EmbedderClient interface {
	EmbedBatch(ctx context.Context, embeddingModel string, texts []string) ([][]float32, error)
}

// checkBatch enforces the EmbedderClient contract on a provider response.
func checkBatch(embeddingModel string, texts []string, vectors [][]float32) error {
	if len(vectors) != len(texts) {
		return fmt.Errorf("%w: model %s returned %d vectors for %d texts",
			ErrEmbeddingShape, embeddingModel, len(vectors), len(texts))
	}
	if len(vectors) == 0 {
		return nil
	}
	dim := len(vectors[0])
	for i, v := range vectors {
		if len(v) != dim {
			return fmt.Errorf("%w: model %s vector %d has dim %d, expected %d",
				ErrEmbeddingShape, embeddingModel, i, len(v), dim)
		}
	}
	return nil
}
