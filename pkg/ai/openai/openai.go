package openai

import (
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"golang.org/x/sync/semaphore"
)

// EmbeddingOpenAIClient computes embeddings against an OpenAI-compatible
// endpoint. A semaphore bounds concurrent requests so batch ingestion does
// not overload the provider.
type EmbeddingOpenAIClient struct {
	embeddingModel string
	dimension      int
	timeoutMin     int

	requestLock *semaphore.Weighted

	client *openai.Client
}

// NewEmbeddingOpenAIClientParams configures a new EmbeddingOpenAIClient.
// BaseURL may point at any OpenAI-compatible server.
type NewEmbeddingOpenAIClientParams struct {
	EmbeddingModel string
	Dimension      int
	TimeoutMin     int
	MaxParallel    int

	BaseURL string
	ApiKey  string
}

// NewEmbeddingOpenAIClient creates a client for the configured embedding
// endpoint.
func NewEmbeddingOpenAIClient(params NewEmbeddingOpenAIClientParams) *EmbeddingOpenAIClient {
	options := []option.RequestOption{}
	if params.ApiKey != "" {
		options = append(options, option.WithAPIKey(params.ApiKey))
	}
	if params.BaseURL != "" {
		options = append(options, option.WithBaseURL(params.BaseURL))
	}
	client := openai.NewClient(options...)

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
		maxParallel = 4
	}

	return &EmbeddingOpenAIClient{
		embeddingModel: params.EmbeddingModel,
		dimension:      dim,
		timeoutMin:     timeoutMin,
		requestLock:    semaphore.NewWeighted(int64(maxParallel)),
		client:         &client,
	}
}

// Dimension returns the configured embedding dimension.
func (c *EmbeddingOpenAIClient) Dimension() int {
	return c.dimension
}
