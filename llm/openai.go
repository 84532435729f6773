package llm

import (
	"context"
	"fmt"
	"os"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

// OpenAIConfig configures the OpenAI-backed collaborators. Zero values fall
// back to defaults; the API key falls back to OPENAI_API_KEY.
type OpenAIConfig struct {
	APIKey         string
	APIURL         string // optional, for OpenAI-compatible endpoints
	Model          string // completion model, default gpt-4o-mini
	EmbeddingModel string // default text-embedding-3-small
	Dimensions     int    // embedding dimensionality, default 1536
}

func (c OpenAIConfig) withDefaults() (OpenAIConfig, error) {
	if c.APIKey == "" {
		c.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if c.APIKey == "" {
		return c, fmt.Errorf("%w: set OPENAI_API_KEY or OpenAIConfig.APIKey", ErrMissingAPIKey)
	}
	if c.Model == "" {
		c.Model = "gpt-4o-mini"
	}
	if c.EmbeddingModel == "" {
		c.EmbeddingModel = string(openai.EmbeddingModelTextEmbedding3Small)
	}
	if c.Dimensions == 0 {
		c.Dimensions = 1536
	}
	return c, nil
}

func (c OpenAIConfig) client() openai.Client {
	opts := []option.RequestOption{option.WithAPIKey(c.APIKey)}
	if c.APIURL != "" {
		opts = append(opts, option.WithBaseURL(c.APIURL))
	}
	return openai.NewClient(opts...)
}

// OpenAIEmbedder implements Embedder on the OpenAI embeddings API.
type OpenAIEmbedder struct {
	client openai.Client
	config OpenAIConfig
}

// NewOpenAIEmbedder creates an embedder. The client is constructed here and
// injected into components; no package-level connection state exists.
func NewOpenAIEmbedder(config OpenAIConfig) (*OpenAIEmbedder, error) {
	config, err := config.withDefaults()
	if err != nil {
		return nil, err
	}
	return &OpenAIEmbedder{client: config.client(), config: config}, nil
}

func (e *OpenAIEmbedder) Dimensions() int {
	return e.config.Dimensions
}

func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Model: openai.EmbeddingModel(e.config.EmbeddingModel),
		Input: openai.EmbeddingNewParamsInputUnion{
			OfString: openai.String(text),
		},
		Dimensions: openai.Int(int64(e.config.Dimensions)),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingUnavailable, err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("%w: no embedding data", ErrEmbeddingUnavailable)
	}

	raw := resp.Data[0].Embedding
	vec := make([]float32, len(raw))
	for i, v := range raw {
		vec[i] = float32(v)
	}
	return vec, nil
}

// OpenAICompleter implements Completer on the OpenAI chat completions API.
type OpenAICompleter struct {
	client openai.Client
	config OpenAIConfig
}

// NewOpenAICompleter creates a completer for the configured model.
func NewOpenAICompleter(config OpenAIConfig) (*OpenAICompleter, error) {
	config, err := config.withDefaults()
	if err != nil {
		return nil, err
	}
	return &OpenAICompleter{client: config.client(), config: config}, nil
}

func (c *OpenAICompleter) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	if req.Prompt == "" {
		return CompletionResponse{}, ErrMissingPrompt
	}

	model := req.Model
	if model == "" {
		model = c.config.Model
	}

	var messages []openai.ChatCompletionMessageParamUnion
	if req.SystemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessageParamUnion{
			OfSystem: &openai.ChatCompletionSystemMessageParam{
				Content: openai.ChatCompletionSystemMessageParamContentUnion{
					OfString: openai.String(req.SystemPrompt),
				},
			},
		})
	}
	messages = append(messages, openai.ChatCompletionMessageParamUnion{
		OfUser: &openai.ChatCompletionUserMessageParam{
			Content: openai.ChatCompletionUserMessageParamContentUnion{
				OfString: openai.String(req.Prompt),
			},
		},
	})

	params := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(model),
		Messages: messages,
		// Deterministic output keeps semantically-equivalent answers stable
		// across concurrent duplicate computations.
		Temperature: openai.Float(0.0),
	}
	if req.MaxTokens != nil {
		params.MaxTokens = openai.Int(int64(*req.MaxTokens))
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return CompletionResponse{}, fmt.Errorf("%w: %v", ErrCompletionUnavailable, err)
	}
	if len(resp.Choices) == 0 {
		return CompletionResponse{}, ErrEmptyResponse
	}

	return CompletionResponse{
		Text:         resp.Choices[0].Message.Content,
		Model:        resp.Model,
		InputTokens:  int(resp.Usage.PromptTokens),
		OutputTokens: int(resp.Usage.CompletionTokens),
	}, nil
}
