package web

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"textdigest/internal/docreader"
	"textdigest/internal/domain"
	"textdigest/internal/metrics"
	"textdigest/internal/workflow"
)

const (
	indexTemplate = "index.html"
	sniffBytes    = 3072
)

var errUploadTooLarge = errors.New("uploaded file is too large")

type handler struct {
	runner         Runner
	readiness      Readiness
	maxUploadBytes int64
	log            *slog.Logger
}

type region struct {
	Label  string
	Text   string
	Failed bool
}

type page struct {
	Options        domain.OutputOptions
	MinLength      int
	MaxLength      int
	LengthStep     int
	MaxTypedText   int
	TypedText      string
	Alert          string
	Regions        []region
	Success        bool
	SuccessMessage string
}

func newPage(opts domain.OutputOptions) page {
	return page{
		Options:        opts,
		MinLength:      domain.MinSummaryLength,
		MaxLength:      domain.MaxSummaryLength,
		LengthStep:     domain.SummaryLengthStep,
		MaxTypedText:   domain.MaxTypedTextLength,
		SuccessMessage: workflow.SuccessMessage,
	}
}

func (h *handler) index(c *gin.Context) {
	c.HTML(http.StatusOK, indexTemplate, newPage(domain.DefaultOutputOptions()))
}

func (h *handler) generate(c *gin.Context) {
	ctx := c.Request.Context()
	log := h.log.With("requestId", c.GetString(requestIDKey))

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes+formOverheadBytes)

	if err := c.Request.ParseMultipartForm(h.maxUploadBytes + formOverheadBytes); err != nil &&
		!errors.Is(err, http.ErrNotMultipart) {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			p := newPage(domain.DefaultOutputOptions())
			p.Alert = errUploadTooLarge.Error()
			c.HTML(http.StatusRequestEntityTooLarge, indexTemplate, p)
			return
		}

		log.WarnContext(ctx, "Failed to parse form", "error", err)
		p := newPage(domain.DefaultOutputOptions())
		p.Alert = "Invalid form submission."
		c.HTML(http.StatusBadRequest, indexTemplate, p)
		return
	}

	opts := parseOptions(c)
	typed := domain.TruncateRunes(c.PostForm("text"), domain.MaxTypedTextLength)

	p := newPage(opts)
	p.TypedText = typed

	// Typed text takes precedence, so the upload is only read without it.
	var uploaded string
	if typed == "" {
		var err error
		uploaded, err = h.readUpload(c, log)
		if err != nil {
			status := http.StatusUnprocessableEntity
			if errors.Is(err, errUploadTooLarge) {
				status = http.StatusRequestEntityTooLarge
				p.Alert = err.Error()
			} else {
				p.Alert = "Extraction Error: " + err.Error()
			}

			log.WarnContext(ctx, "Failed to read uploaded file", "error", err)
			c.HTML(status, indexTemplate, p)
			return
		}
	}

	report, err := h.runner.Run(ctx, workflow.Request{
		TypedText:    typed,
		UploadedText: uploaded,
		Options:      opts,
		Source:       "web",
	}, nil)
	if err != nil {
		status := http.StatusBadRequest
		if !errors.Is(err, workflow.ErrValidation) {
			status = http.StatusServiceUnavailable
			log.ErrorContext(ctx, "Failed to run workflow", "error", err)
		}

		p.Alert = err.Error()
		c.HTML(status, indexTemplate, p)
		return
	}

	for _, result := range report.Results() {
		p.Regions = append(p.Regions, region{
			Label:  result.Stage.Heading(),
			Text:   result.Text(),
			Failed: !result.OK(),
		})
	}
	p.Success = true

	c.HTML(http.StatusOK, indexTemplate, p)
}

// readUpload extracts the text of the uploaded file. No file yields "".
func (h *handler) readUpload(c *gin.Context, log *slog.Logger) (string, error) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			return "", nil
		}
		return "", fmt.Errorf("get file: %w", err)
	}
	if fileHeader.Size > h.maxUploadBytes {
		return "", errUploadTooLarge
	}

	f, err := fileHeader.Open()
	if err != nil {
		return "", fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, h.maxUploadBytes+1))
	if err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}
	if int64(len(data)) > h.maxUploadBytes {
		return "", errUploadTooLarge
	}

	mediaType := docreader.DetectMediaType(
		fileHeader.Header.Get("Content-Type"),
		data[:min(len(data), sniffBytes)],
	)
	metrics.UploadSize.WithLabelValues(mediaType).Observe(float64(len(data)))

	if !docreader.Supported(mediaType) {
		log.WarnContext(c.Request.Context(), "Unsupported media type is ignored",
			"mediaType", mediaType,
			"fileName", fileHeader.Filename)
		return "", nil
	}

	return docreader.Read(c.Request.Context(), bytes.NewReader(data), mediaType)
}

// parseOptions reads the option controls. Unchecked checkboxes are absent
// from the form, so absence means disabled.
func parseOptions(c *gin.Context) domain.OutputOptions {
	opts := domain.OutputOptions{
		KeywordsEnabled: c.PostForm("keywords") != "",
		TitleEnabled:    c.PostForm("title") != "",
		SummaryLength:   domain.DefaultSummaryLength,
	}

	if raw := c.PostForm("summary_length"); raw != "" {
		if length, err := strconv.Atoi(raw); err == nil {
			opts.SummaryLength = length
		}
	}

	return opts.Normalize()
}

func (h *handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *handler) ready(c *gin.Context) {
	status := h.readiness.Status()

	body := gin.H{"status": "ready"}
	if !status.CheckedAt.IsZero() {
		body["checkedAt"] = status.CheckedAt.UTC().Format(time.RFC3339)
	}

	if !status.Ready {
		body["status"] = "not_ready"
		if status.Err != nil {
			body["error"] = status.Err.Error()
		}
		c.JSON(http.StatusServiceUnavailable, body)
		return
	}

	c.JSON(http.StatusOK, body)
}
