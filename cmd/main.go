package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"textdigest/internal/bot"
	"textdigest/internal/config"
	"textdigest/internal/database"
	"textdigest/internal/inference"
	"textdigest/internal/scheduler"
	"textdigest/internal/web"
	"textdigest/internal/workflow"
)

const (
	shutdownTimeout = 15 * time.Second

	logFileMaxSizeMB  = 50
	logFileMaxBackups = 5
	logFileMaxAgeDays = 28
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(log)

	start := time.Now()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		log.ErrorContext(ctx, "Failed to load config",
			"error", err)

		return
	}

	log, closeLog := initLogger(cfg)
	defer closeLog()
	slog.SetDefault(log)

	inferenceCtx, err := inference.New(ctx, cfg.Inference, log)
	if err != nil {
		log.ErrorContext(ctx, "Failed to initialize inference",
			"error", err,
			"provider", cfg.Inference.Provider)

		return
	}
	log.InfoContext(ctx, "Inference is initialized",
		"provider", cfg.Inference.Provider,
		"timeout", cfg.Inference.Timeout.String())

	controller := workflow.NewController(inferenceCtx, log)

	sched := scheduler.New(ctx, inferenceCtx, cfg.ReadinessProbeSpec, log)
	if err = sched.Start(); err != nil {
		log.ErrorContext(ctx, "Failed to start scheduler",
			"error", err,
			"spec", cfg.ReadinessProbeSpec)

		return
	}
	defer sched.Stop()
	log.InfoContext(ctx, "Scheduler is started",
		"spec", cfg.ReadinessProbeSpec,
		"timezone", time.FixedZone(scheduler.Timezone, scheduler.TimezoneOffsetSeconds).String())

	server, err := web.New(web.Config{
		Addr:           cfg.HTTPAddr,
		GinMode:        cfg.GinMode,
		MaxUploadBytes: cfg.MaxUploadBytes,
	}, controller, sched, log)
	if err != nil {
		log.ErrorContext(ctx, "Failed to initialize HTTP server",
			"error", err)

		return
	}

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start()
	}()

	botInst, closeBot := startBot(ctx, cfg, controller, log)
	defer closeBot()

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-c:
		log.InfoContext(ctx, "Shutdown signal is received",
			"signal", sig.String())
	case err = <-serverErr:
		if err != nil {
			log.ErrorContext(ctx, "HTTP server is failed",
				"error", err,
				"addr", cfg.HTTPAddr)
		}
	}
	cancel()

	log.InfoContext(ctx, "Exiting...",
		"uptimeSeconds", time.Since(start).Seconds())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err = server.Shutdown(shutdownCtx); err != nil {
		log.ErrorContext(shutdownCtx, "Failed to shut down HTTP server",
			"error", err)
	}
	log.InfoContext(shutdownCtx, "HTTP server is stopped",
		"uptimeSeconds", time.Since(start).Seconds())

	if botInst != nil {
		botInst.Stop()
		log.InfoContext(shutdownCtx, "Bot is stopped",
			"uptimeSeconds", time.Since(start).Seconds())
	}
}

// initLogger writes JSON logs to stdout and, when LOG_FILE is set, to a
// rotating file as well.
func initLogger(cfg config.Config) (*slog.Logger, func()) {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}

	if cfg.LogFile == "" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts)), func() {}
	}

	rotator := &lumberjack.Logger{
		Filename:   cfg.LogFile,
		MaxSize:    logFileMaxSizeMB,
		MaxBackups: logFileMaxBackups,
		MaxAge:     logFileMaxAgeDays,
		Compress:   true,
	}

	log := slog.New(slog.NewJSONHandler(io.MultiWriter(os.Stdout, rotator), opts))

	return log, func() {
		if err := rotator.Close(); err != nil {
			log.Error("Failed to close log file",
				"error", err,
				"logFile", cfg.LogFile)
		}
	}
}

// startBot starts the Telegram bot when a token is configured. The returned
// function closes the chat option store.
func startBot(
	ctx context.Context,
	cfg config.Config,
	runner bot.Runner,
	log *slog.Logger,
) (*bot.Bot, func()) {
	if cfg.TelegramToken == "" {
		log.InfoContext(ctx, "TELEGRAM_TOKEN is empty so bot is disabled",
			"envVar", "TELEGRAM_TOKEN")

		return nil, func() {}
	}

	db, err := database.New(ctx, cfg.DBPath, log)
	if err != nil {
		log.ErrorContext(ctx, "Failed to initialize db so bot is disabled",
			"error", err,
			"dbPath", cfg.DBPath)

		return nil, func() {}
	}
	log.InfoContext(ctx, "DB is initialized",
		"dbPath", cfg.DBPath)

	closeDB := func() {
		if err := db.Close(); err != nil {
			log.ErrorContext(ctx, "Failed to close db",
				"error", err,
				"dbPath", cfg.DBPath)
		}
	}

	botInst, err := bot.New(cfg.TelegramToken, db, runner, cfg.MaxUploadBytes, log)
	if err != nil {
		log.ErrorContext(ctx, "Failed to initialize bot",
			"error", err)

		return nil, closeDB
	}

	go func() {
		botInst.Start(ctx)
	}()
	log.InfoContext(ctx, "Bot is started",
		"updateTimeoutSeconds", bot.BotUpdateTimeout)

	return botInst, closeDB
}
