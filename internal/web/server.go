// Package web serves the browser front end: one form page and the endpoints
// operators need around it.
package web

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"textdigest/internal/scheduler"
	"textdigest/internal/workflow"
)

const (
	readHeaderTimeout = 10 * time.Second
	// Multipart framing around the uploaded file and the form fields.
	formOverheadBytes = 1 << 20
)

//go:embed templates/*.html
var templatesFS embed.FS

// Runner runs one workflow interaction.
type Runner interface {
	Run(ctx context.Context, req workflow.Request, reporter workflow.Reporter) (workflow.Report, error)
}

// Readiness reports the latest inference readiness probe.
type Readiness interface {
	Status() scheduler.Status
}

type Config struct {
	Addr           string
	GinMode        string
	MaxUploadBytes int64
}

type Server struct {
	engine *gin.Engine
	http   *http.Server
	log    *slog.Logger
}

func New(cfg Config, runner Runner, readiness Readiness, log *slog.Logger) (*Server, error) {
	gin.SetMode(cfg.GinMode)

	tmpl, err := template.ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	engine := gin.New()
	engine.SetHTMLTemplate(tmpl)
	engine.MaxMultipartMemory = cfg.MaxUploadBytes + formOverheadBytes

	engine.Use(Recovery(log))
	engine.Use(RequestID())
	engine.Use(Metrics())

	h := &handler{
		runner:         runner,
		readiness:      readiness,
		maxUploadBytes: cfg.MaxUploadBytes,
		log:            log,
	}

	engine.GET("/", h.index)
	engine.POST("/generate", h.generate)
	engine.GET("/health", h.health)
	engine.GET("/ready", h.ready)
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return &Server{
		engine: engine,
		http: &http.Server{
			Addr:              cfg.Addr,
			Handler:           engine,
			ReadHeaderTimeout: readHeaderTimeout,
		},
		log: log,
	}, nil
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	s.log.Info("HTTP server is listening", "addr", s.http.Addr)

	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
