package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"textdigest/internal/metrics"
)

const (
	Timezone              = "UTC"
	TimezoneOffsetSeconds = 0
	probeTimeout          = 30 * time.Second
)

// Pinger is anything whose reachability can be probed.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Status is the outcome of the latest readiness probe. A zero CheckedAt
// means no probe has finished yet.
type Status struct {
	Ready     bool
	CheckedAt time.Time
	Err       error
}

// Scheduler probes the inference backends on a cron spec and caches the
// result for readiness checks.
type Scheduler struct {
	ctx    context.Context
	cron   *cron.Cron
	spec   string
	pinger Pinger
	log    *slog.Logger

	mu     sync.RWMutex
	status Status
}

func New(ctx context.Context, pinger Pinger, spec string, log *slog.Logger) *Scheduler {
	c := cron.New(cron.WithLocation(time.FixedZone(Timezone, TimezoneOffsetSeconds)))

	return &Scheduler{
		ctx:    ctx,
		cron:   c,
		spec:   spec,
		pinger: pinger,
		log:    log,
	}
}

// Start schedules the probe and runs the first one right away.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.spec, s.probe); err != nil {
		return err
	}

	s.cron.Start()
	go s.probe()

	return nil
}

func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Scheduler) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.status
}

func (s *Scheduler) probe() {
	ctx, cancel := context.WithTimeout(s.ctx, probeTimeout)
	defer cancel()

	select {
	case <-ctx.Done():
		s.log.InfoContext(ctx, "Scheduler context is done",
			"error", ctx.Err())
		return
	default:
	}

	err := s.pinger.Ping(ctx)
	status := Status{
		Ready:     err == nil,
		CheckedAt: time.Now(),
		Err:       err,
	}

	s.mu.Lock()
	previous := s.status
	s.status = status
	s.mu.Unlock()

	if status.Ready {
		metrics.InferenceReady.Set(1)
	} else {
		metrics.InferenceReady.Set(0)
	}

	switch {
	case err != nil:
		s.log.ErrorContext(ctx, "Inference backend is not ready",
			"error", err)
	case !previous.Ready:
		s.log.InfoContext(ctx, "Inference backend is ready")
	}
}
