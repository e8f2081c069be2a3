// Package inference wraps the summarisation, keyword and title models behind
// one facade that is built once per process.
package inference

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"textdigest/internal/domain"
)

const (
	// InputCharLimit is how much of the input summarisation and title
	// generation ever see.
	InputCharLimit = 512

	MinSummaryLength = 20

	TitlePromptPrefix = "generate a title for the following text: "
	MaxTitleTokens    = 10

	MaxKeywords = 5
)

// SummaryModel produces one summary between minLength and maxLength words.
type SummaryModel interface {
	Summarize(ctx context.Context, text string, minLength, maxLength int) (string, error)
}

// GenerationModel continues a prompt with at most maxTokens tokens.
type GenerationModel interface {
	Generate(ctx context.Context, prompt string, maxTokens int) (string, error)
}

// EmbeddingModel embeds every input, preserving order.
type EmbeddingModel interface {
	Embed(ctx context.Context, inputs []string) ([][]float64, error)
}

// KeywordExtractor returns the most relevant phrases of a text.
type KeywordExtractor interface {
	ExtractKeywords(ctx context.Context, text string) ([]string, error)
}

type pinger interface {
	Ping(ctx context.Context) error
}

// Context holds the three inference capabilities shared by every request.
type Context struct {
	summary  SummaryModel
	title    GenerationModel
	keywords KeywordExtractor
	backends []any
	timeout  time.Duration
	log      *slog.Logger
}

type Option func(*Context)

// WithTimeout bounds every single inference call. Zero means no bound.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Context) {
		c.timeout = timeout
	}
}

func NewContext(
	summary SummaryModel,
	title GenerationModel,
	keywords KeywordExtractor,
	log *slog.Logger,
	opts ...Option,
) *Context {
	c := &Context{
		summary:  summary,
		title:    title,
		keywords: keywords,
		backends: []any{summary, title, keywords},
		log:      log,
	}

	// KeyBERT reaches the network only through its embedder.
	if k, ok := keywords.(*KeyBERT); ok {
		c.backends[2] = k.embedder
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Summarize summarises the first InputCharLimit characters of text.
func (c *Context) Summarize(ctx context.Context, text string, maxLength int) (string, error) {
	ctx, cancel := c.callContext(ctx)
	defer cancel()

	summary, err := c.summary.Summarize(ctx, domain.TruncateRunes(text, InputCharLimit), MinSummaryLength, maxLength)
	if err != nil {
		return "", err
	}

	summary = strings.TrimSpace(summary)
	if summary == "" {
		return "", errors.New("summary is empty")
	}

	return summary, nil
}

// ExtractKeywords returns up to MaxKeywords phrases of the whole text.
func (c *Context) ExtractKeywords(ctx context.Context, text string) ([]string, error) {
	ctx, cancel := c.callContext(ctx)
	defer cancel()

	return c.keywords.ExtractKeywords(ctx, text)
}

// GenerateTitle generates a short title for the first InputCharLimit
// characters of text.
func (c *Context) GenerateTitle(ctx context.Context, text string) (string, error) {
	ctx, cancel := c.callContext(ctx)
	defer cancel()

	title, err := c.title.Generate(ctx, TitlePrompt(text), MaxTitleTokens)
	if err != nil {
		return "", err
	}

	title = strings.TrimSpace(title)
	if title == "" {
		return "", errors.New("generated title is empty")
	}

	return title, nil
}

// Ping checks every distinct backend that can be probed.
func (c *Context) Ping(ctx context.Context) error {
	var errs []error
	seen := make(map[pinger]struct{})

	for _, backend := range c.backends {
		p, ok := backend.(pinger)
		if !ok {
			continue
		}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}

		if err := p.Ping(ctx); err != nil {
			errs = append(errs, fmt.Errorf("ping %T: %w", p, err))
		}
	}

	return errors.Join(errs...)
}

func (c *Context) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout > 0 {
		return context.WithTimeout(ctx, c.timeout)
	}
	return context.WithCancel(ctx)
}

// TitlePrompt builds the fixed title prompt for text.
func TitlePrompt(text string) string {
	return TitlePromptPrefix + domain.TruncateRunes(text, InputCharLimit)
}

func summaryInstructions(minLength, maxLength int) string {
	minLength = min(minLength, maxLength)

	return fmt.Sprintf(`Summarize the text.

Rules:
- Between %d and %d words.
- Keep the core idea and critical context (names, numbers, dates).
- Neutral tone, plain prose, no lists, no preamble.
- Output only the summary, in the same language as the input.`, minLength, maxLength)
}
