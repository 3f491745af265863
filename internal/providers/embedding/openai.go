package embedding

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"

	openai "github.com/sashabaranov/go-openai"
	"github.com/twohreichel/pisovereign/internal/config"
	"github.com/twohreichel/pisovereign/internal/core"
	"github.com/twohreichel/pisovereign/pkg/retry"
	"github.com/twohreichel/pisovereign/pkg/vec"
)

// OpenAI embeds text through any OpenAI-compatible /embeddings endpoint.
// The defaults target Ollama's compatibility API.
type OpenAI struct {
	client  *openai.Client
	cfg     config.EmbeddingConfig
	retrier *retry.Retrier
}

var _ core.Embedder = (*OpenAI)(nil)

func NewOpenAI(cfg *config.EmbeddingConfig) *OpenAI {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &OpenAI{
		client:  openai.NewClientWithConfig(clientCfg),
		cfg:     *cfg,
		retrier: retry.NewDefaultRetrier(),
	}
}

func (o *OpenAI) ModelInfo() core.ModelInfo {
	return core.ModelInfo{
		Model:      o.cfg.Model,
		Dimensions: o.cfg.Dimensions,
		MaxTokens:  o.cfg.MaxTokens,
	}
}

// Embed returns one vector for text. Input over the model's token limit is
// chunked and the chunk vectors are mean-pooled.
func (o *OpenAI) Embed(ctx context.Context, text string) ([]float32, error) {
	inputs, err := o.split(text)
	if err != nil {
		return nil, err
	}

	vectors, err := o.create(ctx, inputs)
	if err != nil {
		return nil, err
	}

	if len(vectors) == 1 {
		return vectors[0], nil
	}

	pooled := vec.Mean(vectors)
	vec.Normalize(pooled)
	return pooled, nil
}

func (o *OpenAI) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	for _, text := range texts {
		if o.overLimit(text) {
			return o.embedEach(ctx, texts)
		}
	}

	return o.create(ctx, texts)
}

func (o *OpenAI) embedEach(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		v, err := o.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// overLimit is a cheap pre-check: a cl100k token spans at least one byte,
// so text no longer than MaxTokens bytes always fits.
func (o *OpenAI) overLimit(text string) bool {
	return o.cfg.MaxTokens > 0 && len(text) > o.cfg.MaxTokens
}

func (o *OpenAI) split(text string) ([]string, error) {
	if !o.overLimit(text) {
		return []string{text}, nil
	}

	tokens, err := CountTokens(text)
	if err != nil {
		return nil, err
	}
	if tokens <= o.cfg.MaxTokens {
		return []string{text}, nil
	}

	chunks, err := ChunkText(text, ChunkerConfigFor(o.cfg.MaxTokens))
	if err != nil {
		return nil, err
	}

	inputs := make([]string, 0, len(chunks))
	for _, c := range chunks {
		inputs = append(inputs, c.Text)
	}
	return inputs, nil
}

func (o *OpenAI) create(ctx context.Context, inputs []string) ([][]float32, error) {
	var resp openai.EmbeddingResponse

	err := o.retrier.Do(ctx, func() error {
		reqCtx := ctx
		if o.cfg.Timeout > 0 {
			var cancel context.CancelFunc
			reqCtx, cancel = context.WithTimeout(ctx, o.cfg.Timeout)
			defer cancel()
		}

		var err error
		resp, err = o.client.CreateEmbeddings(reqCtx, openai.EmbeddingRequest{
			Input: inputs,
			Model: openai.EmbeddingModel(o.cfg.Model),
		})
		if err != nil && !transient(err) {
			return retry.Permanent(err)
		}
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}

	if len(resp.Data) == 0 {
		return nil, errors.New("embedding request returned no data")
	}
	if len(resp.Data) != len(inputs) {
		return nil, fmt.Errorf("embedding request returned %d vectors for %d inputs", len(resp.Data), len(inputs))
	}

	sort.SliceStable(resp.Data, func(i, j int) bool {
		return resp.Data[i].Index < resp.Data[j].Index
	})

	out := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		if len(d.Embedding) == 0 {
			return nil, fmt.Errorf("embedding %d is empty", i)
		}
		out[i] = d.Embedding
	}
	return out, nil
}

// transient reports whether a failed request is worth retrying: rate limits,
// server errors and transport failures are; other client errors are not.
func transient(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return retryableStatus(apiErr.HTTPStatusCode)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return retryableStatus(reqErr.HTTPStatusCode)
	}

	return !errors.Is(err, context.Canceled)
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}
