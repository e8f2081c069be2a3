// Package workflow turns resolved input text into a summary, keywords and a
// title, reporting every stage as soon as it completes.
package workflow

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"textdigest/internal/domain"
	"textdigest/internal/metrics"
)

//nolint:staticcheck // Shown to the user verbatim.
var ErrValidation = errors.New("Please provide input text or upload a file.")

// Facade is the set of inference capabilities a run needs.
type Facade interface {
	Summarize(ctx context.Context, text string, maxLength int) (string, error)
	ExtractKeywords(ctx context.Context, text string) ([]string, error)
	GenerateTitle(ctx context.Context, text string) (string, error)
}

// Reporter receives each stage result right after the stage returns.
type Reporter interface {
	StageDone(ctx context.Context, result StageResult)
}

type ReporterFunc func(ctx context.Context, result StageResult)

func (f ReporterFunc) StageDone(ctx context.Context, result StageResult) {
	f(ctx, result)
}

type State int32

const (
	Idle State = iota
	Running
)

func (s State) String() string {
	if s == Running {
		return "running"
	}
	return "idle"
}

// Request is one "generate output" interaction.
type Request struct {
	TypedText    string
	UploadedText string
	Options      domain.OutputOptions
	// Source labels the surface that started the run, e.g. "web".
	Source string
}

// ResolveInput returns the typed text unless it is empty, then the uploaded
// text. It never merges the two.
func ResolveInput(typed, uploaded string) string {
	if typed != "" {
		return typed
	}
	return uploaded
}

// Controller runs one workflow at a time.
type Controller struct {
	facade Facade
	log    *slog.Logger
	mu     sync.Mutex
	state  atomic.Int32
	now    func() time.Time
}

func NewController(facade Facade, log *slog.Logger) *Controller {
	return &Controller{
		facade: facade,
		log:    log,
		now:    time.Now,
	}
}

func (c *Controller) State() State {
	return State(c.state.Load())
}

// Run validates the request and runs the enabled stages in order. Stage
// failures are recorded in the report and never stop later stages. The only
// returned errors are ErrValidation and a context error seen before the run
// started.
func (c *Controller) Run(ctx context.Context, req Request, reporter Reporter) (Report, error) {
	text := ResolveInput(req.TypedText, req.UploadedText)
	if strings.TrimSpace(text) == "" {
		metrics.WorkflowRunsTotal.WithLabelValues(req.Source, "invalid").Inc()
		return Report{}, ErrValidation
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return Report{}, err
	}

	c.state.Store(int32(Running))
	defer c.state.Store(int32(Idle))

	opts := req.Options.Normalize()
	report := Report{
		RunID:       uuid.NewString(),
		InputLength: len([]rune(text)),
		Options:     opts,
	}
	log := c.log.With("runId", report.RunID, "source", req.Source)

	log.InfoContext(ctx, "Workflow is started",
		"inputLength", report.InputLength,
		"keywordsEnabled", opts.KeywordsEnabled,
		"titleEnabled", opts.TitleEnabled,
		"summaryLength", opts.SummaryLength)

	summary := c.runStage(ctx, log, StageSummary, func(ctx context.Context) (StageResult, error) {
		s, err := c.facade.Summarize(ctx, text, opts.SummaryLength)
		return StageResult{Summary: s}, err
	})
	report.Summary = &summary
	notify(ctx, reporter, summary)

	if opts.KeywordsEnabled {
		keywords := c.runStage(ctx, log, StageKeywords, func(ctx context.Context) (StageResult, error) {
			k, err := c.facade.ExtractKeywords(ctx, text)
			return StageResult{Keywords: k}, err
		})
		report.Keywords = &keywords
		notify(ctx, reporter, keywords)
	} else {
		metrics.StageTotal.WithLabelValues(string(StageKeywords), metrics.StatusSkipped).Inc()
	}

	if opts.TitleEnabled {
		title := c.runStage(ctx, log, StageTitle, func(ctx context.Context) (StageResult, error) {
			t, err := c.facade.GenerateTitle(ctx, text)
			return StageResult{Title: t}, err
		})
		report.Title = &title
		notify(ctx, reporter, title)
	} else {
		metrics.StageTotal.WithLabelValues(string(StageTitle), metrics.StatusSkipped).Inc()
	}

	status := metrics.StatusOK
	if report.Failed() > 0 {
		status = metrics.StatusError
	}
	metrics.WorkflowRunsTotal.WithLabelValues(req.Source, status).Inc()

	log.InfoContext(ctx, "Workflow is finished", "failedStages", report.Failed())

	return report, nil
}

func (c *Controller) runStage(
	ctx context.Context,
	log *slog.Logger,
	stage Stage,
	call func(ctx context.Context) (StageResult, error),
) StageResult {
	start := c.now()

	result, err := call(ctx)
	result.Stage = stage

	metrics.StageDuration.WithLabelValues(string(stage)).Observe(c.now().Sub(start).Seconds())

	if err != nil {
		result = StageResult{Stage: stage, Err: &StageError{Stage: stage, Err: err}}
		metrics.StageTotal.WithLabelValues(string(stage), metrics.StatusError).Inc()
		log.ErrorContext(ctx, "Failed to run stage", "stage", stage, "error", err)
		return result
	}

	metrics.StageTotal.WithLabelValues(string(stage), metrics.StatusOK).Inc()
	log.DebugContext(ctx, "Stage is done", "stage", stage)

	return result
}

func notify(ctx context.Context, reporter Reporter, result StageResult) {
	if reporter != nil {
		reporter.StageDone(ctx, result)
	}
}
