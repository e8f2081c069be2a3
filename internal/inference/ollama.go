package inference

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strings"

	ollama "github.com/ollama/ollama/api"
)

const (
	DefaultOllamaSummaryModel   = "llama3.2"
	DefaultOllamaTitleModel     = "llama3.2"
	DefaultOllamaEmbeddingModel = "nomic-embed-text"

	// Words to tokens, generous enough for most languages.
	ollamaTokensPerWord = 2
)

// Ollama serves every capability from a local Ollama server.
type Ollama struct {
	client         *ollama.Client
	summaryModel   string
	titleModel     string
	embeddingModel string
}

type OllamaConfig struct {
	Host           string
	SummaryModel   string
	TitleModel     string
	EmbeddingModel string
	HTTPClient     *http.Client
}

// NewOllama connects to the server and checks that every configured model is
// available locally, so missing models fail at start-up instead of per
// request.
func NewOllama(ctx context.Context, cfg OllamaConfig) (*Ollama, error) {
	base, err := url.Parse(strings.TrimSpace(cfg.Host))
	if err != nil {
		return nil, fmt.Errorf("parse host: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("host must be an absolute URL (got %q)", cfg.Host)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	o := &Ollama{
		client:         ollama.NewClient(base, httpClient),
		summaryModel:   cmp.Or(strings.TrimSpace(cfg.SummaryModel), DefaultOllamaSummaryModel),
		titleModel:     cmp.Or(strings.TrimSpace(cfg.TitleModel), DefaultOllamaTitleModel),
		embeddingModel: cmp.Or(strings.TrimSpace(cfg.EmbeddingModel), DefaultOllamaEmbeddingModel),
	}

	if err = o.checkModels(ctx); err != nil {
		return nil, err
	}

	return o, nil
}

func (o *Ollama) checkModels(ctx context.Context) error {
	listResp, err := o.client.List(ctx)
	if err != nil {
		return fmt.Errorf("list local models: %w", err)
	}

	available := make(map[string]struct{}, len(listResp.Models))
	for _, m := range listResp.Models {
		available[m.Name] = struct{}{}
		available[m.Model] = struct{}{}
	}

	var errs []error
	for _, model := range []string{o.summaryModel, o.titleModel, o.embeddingModel} {
		if hasModel(available, model) {
			continue
		}
		errs = append(errs, fmt.Errorf("model %s not found locally", model))
	}

	return errors.Join(errs...)
}

func hasModel(available map[string]struct{}, model string) bool {
	if _, ok := available[model]; ok {
		return true
	}
	if !strings.Contains(model, ":") {
		_, ok := available[model+":latest"]
		return ok
	}
	return false
}

func (o *Ollama) Summarize(
	ctx context.Context,
	text string,
	minLength int,
	maxLength int,
) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", errors.New("input is empty")
	}

	summary, err := o.generate(ctx, o.summaryModel, summaryInstructions(minLength, maxLength), text, maxLength*ollamaTokensPerWord)
	if err != nil {
		return "", err
	}

	summary = strings.TrimSpace(summary)
	if summary == "" {
		return "", errors.New("output text is missing")
	}
	return summary, nil
}

func (o *Ollama) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	text, err := o.generate(ctx, o.titleModel, "", prompt, maxTokens)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

func (o *Ollama) generate(
	ctx context.Context,
	model string,
	system string,
	prompt string,
	numPredict int,
) (string, error) {
	stream := false
	req := &ollama.GenerateRequest{
		Model:  model,
		System: system,
		Prompt: prompt,
		Stream: &stream,
		Options: map[string]any{
			"num_predict": numPredict,
		},
	}

	var b strings.Builder
	err := o.client.Generate(ctx, req, func(resp ollama.GenerateResponse) error {
		b.WriteString(resp.Response)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("generate (model = %s): %w", model, err)
	}

	return b.String(), nil
}

func (o *Ollama) Embed(ctx context.Context, inputs []string) ([][]float64, error) {
	vectors := make([][]float64, 0, len(inputs))

	for batch := range slices.Chunk(inputs, embeddingBatchSize) {
		resp, err := o.client.Embed(ctx, &ollama.EmbedRequest{
			Model: o.embeddingModel,
			Input: batch,
		})
		if err != nil {
			return nil, fmt.Errorf("embed (model = %s): %w", o.embeddingModel, err)
		}

		if len(resp.Embeddings) != len(batch) {
			return nil, fmt.Errorf("expected %d embeddings, got %d", len(batch), len(resp.Embeddings))
		}

		for _, embedding := range resp.Embeddings {
			vector := make([]float64, len(embedding))
			for j, v := range embedding {
				vector[j] = float64(v)
			}
			vectors = append(vectors, vector)
		}
	}

	return vectors, nil
}

func (o *Ollama) Ping(ctx context.Context) error {
	if err := o.client.Heartbeat(ctx); err != nil {
		return fmt.Errorf("heartbeat: %w", err)
	}
	return nil
}
