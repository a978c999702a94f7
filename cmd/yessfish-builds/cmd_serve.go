package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	orchestrators "github.com/sbuilder/yessfish-builds/internal/domain-orchestrators"
	"github.com/sbuilder/yessfish-builds/internal/domain/interfaces"
	"github.com/sbuilder/yessfish-builds/internal/domain/services"
	"github.com/sbuilder/yessfish-builds/internal/external-adapters/metrics"
	"github.com/sbuilder/yessfish-builds/internal/external-adapters/webhook"
)

func runServe(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	var (
		configFile = fs.String("config", "", "Path to YAML config file")
		envFile    = fs.String("env-file", ".env", "Optional .env file loaded before reading the environment")
	)

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: yessfish-builds serve [options]

Run the push webhook listener. Pushes to the configured branch queue a
release build of the Flutter app.

The webhook secret must be set through the config file or
YESSFISH_WEBHOOK_SECRET.

Options:
`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing flags: %v\n", err)
		os.Exit(1)
	}

	if err := serve(ctx, *configFile, *envFile); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func serve(ctx context.Context, configFile, envFile string) error {
	cfg, err := loadConfig(configFile, envFile, true)
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg, os.Stdout, true)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Close() }()

	orch, executor := newBuildOrchestrator(cfg, logger)
	if err := executor.ValidateScriptPath(); err != nil {
		// builds fail until the script is installed, the listener still starts
		logger.Error("build script not usable", interfaces.F("error", err))
	}

	m := metrics.New()
	dispatcher := orchestrators.NewBuildDispatcher(orch, orchestrators.BuildDispatcherConfig{
		Workers:     cfg.Build.Workers,
		QueueSize:   cfg.Build.QueueSize,
		HistorySize: cfg.Build.HistorySize,
		LogDir:      cfg.Build.LogDir,
	}, m, logger.With(interfaces.F("component", "dispatcher")))
	dispatcher.Start()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	limiter := webhook.NewRateLimiter(cfg.Webhook.RateLimit, cfg.Webhook.RateBurst)
	go func() {
		ticker := time.NewTicker(10 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				limiter.Cleanup(time.Hour)
			}
		}
	}()

	webhookLogger := logger.With(interfaces.F("component", "webhook"))
	handler := webhook.NewHandler(webhook.HandlerConfig{
		Secret:       []byte(cfg.Webhook.Secret),
		AppName:      cfg.AppName,
		Port:         cfg.Port(),
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
		Descriptor:   cfg.Build.Descriptor,
	}, services.NewPushPolicy(cfg.Webhook.Branch), dispatcher, limiter, m, webhookLogger)

	server := webhook.NewServer(webhook.ServerConfig{
		Addr:            cfg.Server.ListenAddr,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		ErrorLog:        logger.StdLogger(),
	}, handler.Router(), logger)

	logger.Info("starting build service",
		interfaces.F("app", cfg.AppName),
		interfaces.F("addr", cfg.Server.ListenAddr),
		interfaces.F("branch", cfg.Webhook.Branch),
		interfaces.F("script", cfg.Build.Script),
		interfaces.F("workers", cfg.Build.Workers))

	serveErr := server.Run(ctx)

	logger.Info("waiting for queued builds", interfaces.F("timeout", cfg.Server.ShutdownTimeout))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := dispatcher.Shutdown(shutdownCtx); err != nil {
		logger.Warn("running builds were canceled", interfaces.F("error", err))
	}

	return serveErr
}
