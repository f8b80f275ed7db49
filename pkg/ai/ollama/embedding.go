package ollama

import (
	"context"
	"strings"
	"time"

	"github.com/chroniclehq/chronicle/backend/pkg/ai"

	"github.com/ollama/ollama/api"
)

const defaultDimensions = 1024

// GenerateEmbedding creates a vector embedding for the given input text
// using the configured embedding model on Ollama.
func (c *EmbeddingOllamaClient) GenerateEmbedding(
	ctx context.Context,
	input []byte,
) ([]float32, error) {
	if len(strings.TrimSpace(string(input))) == 0 {
		return ai.ZeroVector(c.dimension), nil
	}

	rCtx, cancel := context.WithTimeout(ctx, time.Minute*time.Duration(c.timeoutMin))
	defer cancel()

	req := &api.EmbedRequest{
		Model: c.embeddingModel,
		Input: string(input),
	}

	if err := c.requestLock.Acquire(rCtx, 1); err != nil {
		return nil, err
	}
	defer c.requestLock.Release(1)

	res, err := c.client.Embed(rCtx, req)
	if err != nil {
		return nil, err
	}

	out := make([]float32, 0, c.dimension)
	for _, v := range res.Embeddings {
		for _, val := range v {
			if len(out) >= c.dimension {
				break
			}
			out = append(out, float32(val))
		}
	}
	return ai.FitVector(out, c.dimension), nil
}
