package ollama

import (
	"net/http"
	"net/url"

	"golang.org/x/sync/semaphore"

	"github.com/ollama/ollama/api"
)

// EmbeddingOllamaClient computes embeddings against a local or remote Ollama
// server.
type EmbeddingOllamaClient struct {
	embeddingModel string
	dimension      int
	timeoutMin     int

	requestLock *semaphore.Weighted

	client *api.Client
}

// NewEmbeddingOllamaClientParams configures a new EmbeddingOllamaClient.
type NewEmbeddingOllamaClientParams struct {
	EmbeddingModel string
	Dimension      int
	TimeoutMin     int
	MaxParallel    int

	BaseURL string
}

// NewEmbeddingOllamaClient creates a client for the given Ollama base URL.
func NewEmbeddingOllamaClient(params NewEmbeddingOllamaClientParams) (*EmbeddingOllamaClient, error) {
	base, err := url.Parse(params.BaseURL)
	if err != nil {
		return nil, err
	}

	dim := params.Dimension
	if dim <= 0 {
		dim = defaultDimensions
	}
	timeoutMin := params.TimeoutMin
	if timeoutMin <= 0 {
		timeoutMin = 2
	}
	maxParallel := params.MaxParallel
	if maxParallel <= 0 {
		maxParallel = 2
	}

	return &EmbeddingOllamaClient{
		embeddingModel: params.EmbeddingModel,
		dimension:      dim,
		timeoutMin:     timeoutMin,
		requestLock:    semaphore.NewWeighted(int64(maxParallel)),
		client:         api.NewClient(base, http.DefaultClient),
	}, nil
}

// Dimension returns the configured embedding dimension.
func (c *EmbeddingOllamaClient) Dimension() int {
	return c.dimension
}
