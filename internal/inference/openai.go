package inference

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/responses"
)

const (
	baseMaxOutputTokens  int64 = 512
	limitMaxOutputTokens int64 = 2048

	embeddingBatchSize = 256
)

const (
	DefaultOpenAISummaryModel   = openai.ChatModelGPT5Mini2025_08_07
	DefaultOpenAITitleModel     = openai.ChatModelGPT4oMini
	DefaultOpenAIEmbeddingModel = openai.EmbeddingModelTextEmbedding3Small
)

// OpenAI serves summaries through the Responses API, titles through Chat
// Completions and keyword embeddings through the Embeddings API.
type OpenAI struct {
	client         openai.Client
	summaryModel   openai.ChatModel
	titleModel     openai.ChatModel
	embeddingModel openai.EmbeddingModel
}

type OpenAIConfig struct {
	APIKey         string
	BaseURL        string
	SummaryModel   string
	TitleModel     string
	EmbeddingModel string
	// RequestOptions are appended to the client options, tests use it to
	// disable retries.
	RequestOptions []option.RequestOption
}

func NewOpenAI(cfg OpenAIConfig) (*OpenAI, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("API key is empty")
	}

	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL := strings.TrimSpace(cfg.BaseURL); baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	opts = append(opts, cfg.RequestOptions...)

	return &OpenAI{
		client:         openai.NewClient(opts...),
		summaryModel:   cmp.Or(openai.ChatModel(strings.TrimSpace(cfg.SummaryModel)), DefaultOpenAISummaryModel),
		titleModel:     cmp.Or(openai.ChatModel(strings.TrimSpace(cfg.TitleModel)), DefaultOpenAITitleModel),
		embeddingModel: cmp.Or(openai.EmbeddingModel(strings.TrimSpace(cfg.EmbeddingModel)), DefaultOpenAIEmbeddingModel),
	}, nil
}

// Summarize asks for a summary and grows the output budget when a reasoning
// model runs out of tokens before answering.
func (o *OpenAI) Summarize(
	ctx context.Context,
	text string,
	minLength int,
	maxLength int,
) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", errors.New("input is empty")
	}

	maxOutputTokens := baseMaxOutputTokens
	for {
		params := responses.ResponseNewParams{
			Model:           o.summaryModel,
			MaxOutputTokens: openai.Int(maxOutputTokens),
			Instructions:    openai.String(summaryInstructions(minLength, maxLength)),
			Input: responses.ResponseNewParamsInputUnion{
				OfString: openai.String(text),
			},
		}
		if isReasoningModel(o.summaryModel) {
			params.ServiceTier = responses.ResponseNewParamsServiceTierFlex
			params.Reasoning = responses.ReasoningParam{
				Effort: openai.ReasoningEffortLow,
			}
		}

		resp, err := o.client.Responses.New(ctx, params)
		if err != nil {
			return "", fmt.Errorf("do request: %w", err)
		}

		if resp.Status == "incomplete" {
			if resp.IncompleteDetails.Reason == "max_output_tokens" && maxOutputTokens < limitMaxOutputTokens {
				maxOutputTokens = min(maxOutputTokens*2, limitMaxOutputTokens)
				continue
			}
			return "", fmt.Errorf(
				"response is incomplete (reason = %s, maxOutputTokens = %d)",
				resp.IncompleteDetails.Reason,
				maxOutputTokens,
			)
		}

		summary := strings.TrimSpace(resp.OutputText())
		if summary == "" {
			return "", fmt.Errorf("output text is missing (status = %s)", resp.Status)
		}
		return summary, nil
	}
}

// Generate returns the single best completion of prompt.
func (o *OpenAI) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: o.titleModel,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		MaxCompletionTokens: openai.Int(int64(maxTokens)),
		N:                   openai.Int(1),
	})
	if err != nil {
		return "", fmt.Errorf("do request: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", errors.New("response has no choices")
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// Embed embeds inputs in batches and returns vectors in input order.
func (o *OpenAI) Embed(ctx context.Context, inputs []string) ([][]float64, error) {
	vectors := make([][]float64, 0, len(inputs))

	for batch := range slices.Chunk(inputs, embeddingBatchSize) {
		resp, err := o.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
			Model: o.embeddingModel,
			Input: openai.EmbeddingNewParamsInputUnion{
				OfArrayOfStrings: batch,
			},
		})
		if err != nil {
			return nil, fmt.Errorf("do request: %w", err)
		}

		if len(resp.Data) != len(batch) {
			return nil, fmt.Errorf("expected %d embeddings, got %d", len(batch), len(resp.Data))
		}

		data := slices.SortedFunc(slices.Values(resp.Data), func(a, b openai.Embedding) int {
			return cmp.Compare(a.Index, b.Index)
		})
		for _, d := range data {
			vectors = append(vectors, d.Embedding)
		}
	}

	return vectors, nil
}

// Ping checks that the summary model is reachable with the configured key.
func (o *OpenAI) Ping(ctx context.Context) error {
	if _, err := o.client.Models.Get(ctx, string(o.summaryModel)); err != nil {
		return fmt.Errorf("get model: %w", err)
	}
	return nil
}

func isReasoningModel(model openai.ChatModel) bool {
	name := strings.ToLower(string(model))
	return strings.HasPrefix(name, "gpt-5") || strings.HasPrefix(name, "o1") ||
		strings.HasPrefix(name, "o3") || strings.HasPrefix(name, "o4")
}
