package workflow

import (
	"fmt"
	"strings"

	"textdigest/internal/domain"
)

// SuccessMessage is shown after every finished run, even when stages failed.
const SuccessMessage = "🎉 Output generated successfully!"

type Stage string

const (
	StageSummary  Stage = "summary"
	StageKeywords Stage = "keywords"
	StageTitle    Stage = "title"
)

// Label is the human-readable stage name used in error messages.
func (s Stage) Label() string {
	switch s {
	case StageSummary:
		return "Summarization"
	case StageKeywords:
		return "Keyword Generation"
	case StageTitle:
		return "Title Generation"
	default:
		return string(s)
	}
}

// Heading is the title of the region a stage result is shown in.
func (s Stage) Heading() string {
	switch s {
	case StageSummary:
		return "Summary"
	case StageKeywords:
		return "Keywords"
	case StageTitle:
		return "Title"
	default:
		return string(s)
	}
}

// StageError is a stage failure tagged with the stage it happened in.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s Error: %v", e.Stage.Label(), e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// StageResult holds either the value a stage produced or its error.
type StageResult struct {
	Stage    Stage
	Summary  string
	Keywords []string
	Title    string
	Err      *StageError
}

func (r StageResult) OK() bool {
	return r.Err == nil
}

// Text renders the result the way it is shown to users: the stage value, or
// the tagged error message.
func (r StageResult) Text() string {
	if r.Err != nil {
		return r.Err.Error()
	}

	switch r.Stage {
	case StageSummary:
		return r.Summary
	case StageKeywords:
		return strings.Join(r.Keywords, ", ")
	case StageTitle:
		return r.Title
	default:
		return ""
	}
}

// Report collects the results of one run. A nil stage was not enabled.
type Report struct {
	RunID       string
	InputLength int
	Options     domain.OutputOptions
	Summary     *StageResult
	Keywords    *StageResult
	Title       *StageResult
}

// Results lists the attempted stages in execution order.
func (r Report) Results() []StageResult {
	var results []StageResult
	for _, res := range []*StageResult{r.Summary, r.Keywords, r.Title} {
		if res != nil {
			results = append(results, *res)
		}
	}
	return results
}

// Failed counts the attempted stages that returned an error.
func (r Report) Failed() int {
	n := 0
	for _, res := range r.Results() {
		if !res.OK() {
			n++
		}
	}
	return n
}
