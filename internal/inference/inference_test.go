package inference

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	summaryText string
	summaryIn   string
	summaryMin  int
	summaryMax  int
	titleText   string
	prompt      string
	maxTokens   int
	keywords    []string
	err         error
	pingErr     error
	pings       int
	sawDeadline bool
}

func (f *fakeBackend) Summarize(ctx context.Context, text string, minLength, maxLength int) (string, error) {
	_, f.sawDeadline = ctx.Deadline()
	f.summaryIn, f.summaryMin, f.summaryMax = text, minLength, maxLength
	return f.summaryText, f.err
}

func (f *fakeBackend) Generate(_ context.Context, prompt string, maxTokens int) (string, error) {
	f.prompt, f.maxTokens = prompt, maxTokens
	return f.titleText, f.err
}

func (f *fakeBackend) ExtractKeywords(context.Context, string) ([]string, error) {
	return f.keywords, f.err
}

func (f *fakeBackend) Embed(_ context.Context, inputs []string) ([][]float64, error) {
	vectors := make([][]float64, len(inputs))
	for i := range inputs {
		vectors[i] = []float64{1, 0}
	}
	return vectors, f.err
}

func (f *fakeBackend) Ping(context.Context) error {
	f.pings++
	return f.pingErr
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestContextSummarizeTruncatesInput(t *testing.T) {
	backend := &fakeBackend{summaryText: "  A short summary.  "}
	c := NewContext(backend, backend, backend, discardLogger())

	text := strings.Repeat("é", 600)
	got, err := c.Summarize(context.Background(), text, 50)
	require.NoError(t, err)

	assert.Equal(t, "A short summary.", got)
	assert.Equal(t, InputCharLimit, utf8.RuneCountInString(backend.summaryIn))
	assert.Equal(t, MinSummaryLength, backend.summaryMin)
	assert.Equal(t, 50, backend.summaryMax)
	assert.False(t, backend.sawDeadline)
}

func TestContextSummarizeShortInputUnchanged(t *testing.T) {
	backend := &fakeBackend{summaryText: "ok"}
	c := NewContext(backend, backend, backend, discardLogger())

	_, err := c.Summarize(context.Background(), "hello world", 10)
	require.NoError(t, err)
	assert.Equal(t, "hello world", backend.summaryIn)
}

func TestContextSummarizeEmptyOutput(t *testing.T) {
	backend := &fakeBackend{summaryText: "   "}
	c := NewContext(backend, backend, backend, discardLogger())

	_, err := c.Summarize(context.Background(), "text", 10)
	assert.Error(t, err)
}

func TestContextSummarizeBackendError(t *testing.T) {
	boom := errors.New("model not loaded")
	backend := &fakeBackend{err: boom}
	c := NewContext(backend, backend, backend, discardLogger())

	_, err := c.Summarize(context.Background(), "text", 10)
	assert.ErrorIs(t, err, boom)
}

func TestContextSummarizeTimeout(t *testing.T) {
	backend := &fakeBackend{summaryText: "ok"}
	c := NewContext(backend, backend, backend, discardLogger(), WithTimeout(time.Minute))

	_, err := c.Summarize(context.Background(), "text", 10)
	require.NoError(t, err)
	assert.True(t, backend.sawDeadline)
}

func TestContextGenerateTitle(t *testing.T) {
	backend := &fakeBackend{titleText: " Go Concurrency Basics\n"}
	c := NewContext(backend, backend, backend, discardLogger())

	text := strings.Repeat("a", 1000)
	got, err := c.GenerateTitle(context.Background(), text)
	require.NoError(t, err)

	assert.Equal(t, "Go Concurrency Basics", got)
	assert.Equal(t, TitlePromptPrefix+strings.Repeat("a", InputCharLimit), backend.prompt)
	assert.Equal(t, MaxTitleTokens, backend.maxTokens)
}

func TestContextGenerateTitleEmpty(t *testing.T) {
	backend := &fakeBackend{titleText: ""}
	c := NewContext(backend, backend, backend, discardLogger())

	_, err := c.GenerateTitle(context.Background(), "text")
	assert.Error(t, err)
}

func TestContextExtractKeywords(t *testing.T) {
	backend := &fakeBackend{keywords: []string{"go", "channels"}}
	c := NewContext(backend, backend, backend, discardLogger())

	got, err := c.ExtractKeywords(context.Background(), "text")
	require.NoError(t, err)
	assert.Equal(t, []string{"go", "channels"}, got)
}

func TestTitlePrompt(t *testing.T) {
	assert.Equal(t, "generate a title for the following text: hello", TitlePrompt("hello"))
}

func TestContextPingDeduplicatesBackends(t *testing.T) {
	backend := &fakeBackend{}
	c := NewContext(backend, backend, NewKeyBERT(backend), discardLogger())

	require.NoError(t, c.Ping(context.Background()))
	assert.Equal(t, 1, backend.pings)
}

func TestContextPingReachesKeywordEmbedder(t *testing.T) {
	down := errors.New("down")
	generator := &fakeBackend{}
	embedder := &fakeBackend{pingErr: down}
	c := NewContext(generator, generator, NewKeyBERT(embedder), discardLogger())

	err := c.Ping(context.Background())
	assert.ErrorIs(t, err, down)
	assert.Equal(t, 1, generator.pings)
	assert.Equal(t, 1, embedder.pings)
}

func TestContextPingJoinsErrors(t *testing.T) {
	down := errors.New("down")
	summary := &fakeBackend{pingErr: down}
	title := &fakeBackend{}
	c := NewContext(summary, title, title, discardLogger())

	err := c.Ping(context.Background())
	assert.ErrorIs(t, err, down)
	assert.Equal(t, 1, summary.pings)
	assert.Equal(t, 1, title.pings)
}

func TestSummaryInstructions(t *testing.T) {
	got := summaryInstructions(20, 10)
	assert.Contains(t, got, "Between 10 and 10 words.")

	got = summaryInstructions(20, 150)
	assert.Contains(t, got, "Between 20 and 150 words.")
}
