package inference

import (
	"context"
	"fmt"
	"log/slog"

	"textdigest/internal/config"
)

// New builds the inference context for the configured provider. It is meant
// to be called once at start-up.
func New(ctx context.Context, cfg config.Inference, log *slog.Logger) (*Context, error) {
	switch cfg.Provider {
	case config.ProviderOpenAI:
		backend, err := NewOpenAI(OpenAIConfig{
			APIKey:         cfg.OpenAIAPIKey,
			BaseURL:        cfg.OpenAIBaseURL,
			SummaryModel:   cfg.SummaryModel,
			TitleModel:     cfg.TitleModel,
			EmbeddingModel: cfg.EmbeddingModel,
		})
		if err != nil {
			return nil, fmt.Errorf("create OpenAI backend: %w", err)
		}

		log.InfoContext(ctx, "OpenAI backend is initialized",
			"summaryModel", backend.summaryModel,
			"titleModel", backend.titleModel,
			"embeddingModel", backend.embeddingModel)

		return NewContext(backend, backend, NewKeyBERT(backend), log, WithTimeout(cfg.Timeout)), nil

	case config.ProviderOllama:
		backend, err := NewOllama(ctx, OllamaConfig{
			Host:           cfg.OllamaHost,
			SummaryModel:   cfg.SummaryModel,
			TitleModel:     cfg.TitleModel,
			EmbeddingModel: cfg.EmbeddingModel,
		})
		if err != nil {
			return nil, fmt.Errorf("create Ollama backend: %w", err)
		}

		log.InfoContext(ctx, "Ollama backend is initialized",
			"host", cfg.OllamaHost,
			"summaryModel", backend.summaryModel,
			"titleModel", backend.titleModel,
			"embeddingModel", backend.embeddingModel)

		return NewContext(backend, backend, NewKeyBERT(backend), log, WithTimeout(cfg.Timeout)), nil

	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
}
