package ai

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// EmbeddingClient turns text into a fixed-length vector. The model and
// dimension are implementation concerns; callers only rely on the dimension
// being stable for the lifetime of the process.
type EmbeddingClient interface {
	GenerateEmbedding(ctx context.Context, input []byte) ([]float32, error)
	Dimension() int
}

// embeddingBatcher is the optional fast path for clients that support
// batched embedding requests.
type embeddingBatcher interface {
	GenerateEmbeddings(ctx context.Context, inputs [][]byte) ([][]float32, error)
}

// ZeroVector returns an all-zero vector of the given dimension. Used as the
// degraded substitute when embedding computation fails: the record stays
// writable but will not be matched by similarity search.
func ZeroVector(dim int) []float32 {
	return make([]float32, dim)
}

// GenerateEmbeddings computes embeddings for all inputs, using the client's
// batch path when available and bounded parallel single calls otherwise.
// Output order matches input order.
func GenerateEmbeddings(
	ctx context.Context,
	client EmbeddingClient,
	inputs [][]byte,
) ([][]float32, error) {
	if client == nil {
		return nil, fmt.Errorf("embedding client is nil")
	}
	if len(inputs) == 0 {
		return nil, nil
	}
	if b, ok := client.(embeddingBatcher); ok {
		return b.GenerateEmbeddings(ctx, inputs)
	}

	out := make([][]float32, len(inputs))

	eg, ectx := errgroup.WithContext(ctx)
	for i := range inputs {
		idx := i
		in := inputs[i]
		eg.Go(func() error {
			emb, err := client.GenerateEmbedding(ectx, in)
			if err != nil {
				return err
			}
			out[idx] = emb
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	return out, nil
}

// FitVector trims or zero-pads v to exactly dim values.
func FitVector(v []float32, dim int) []float32 {
	if len(v) == dim {
		return v
	}
	out := make([]float32, dim)
	copy(out, v)
	return out
}
