package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/hamed0406/tileprobe/internal/artifact"
	"github.com/hamed0406/tileprobe/internal/config"
	"github.com/hamed0406/tileprobe/internal/httpapi"
	apimw "github.com/hamed0406/tileprobe/internal/httpapi/middleware"
	"github.com/hamed0406/tileprobe/internal/logging"
	"github.com/hamed0406/tileprobe/internal/metrics"
	"github.com/hamed0406/tileprobe/internal/notify"
	"github.com/hamed0406/tileprobe/internal/probe"
	"github.com/hamed0406/tileprobe/internal/repo"
	"github.com/hamed0406/tileprobe/internal/repo/memory"
	"github.com/hamed0406/tileprobe/internal/repo/postgres"
	"github.com/hamed0406/tileprobe/internal/scheduler"
)

type store interface {
	repo.TargetStore
	repo.ResultStore
	repo.AlertStore
}

func main() {
	cfg := config.FromEnv()
	logger, err := logging.NewLogger(cfg.LogDir)
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var st store
	if cfg.DatabaseURL != "" {
		pg, err := postgres.New(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			logger.Fatal("db_open_error", zap.Error(err))
		}
		defer pg.Close()
		if err := pg.EnsureSchema(ctx); err != nil {
			logger.Fatal("db_schema_error", zap.Error(err))
		}
		st = pg
		logger.Info("store_postgres")
	} else {
		st = memory.New()
		logger.Info("store_memory")
	}

	shots, err := artifact.Open(ctx, cfg.Probe.OutputDir, artifact.S3Config{
		Endpoint:        cfg.S3.Endpoint,
		Region:          cfg.S3.Region,
		AccessKeyID:     cfg.S3.AccessKeyID,
		SecretAccessKey: cfg.S3.SecretAccessKey,
		Bucket:          cfg.S3.Bucket,
		PublicURL:       cfg.S3.PublicURL,
		UsePathStyle:    cfg.S3.Endpoint != "",
	})
	if err != nil {
		logger.Fatal("artifact_store_error", zap.Error(err))
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	prober := m.Instrument(probe.NewVisualProber(probe.Options{
		Engine: probe.NewPlaywrightEngine(),
		Store:  shots,
		Logger: logger,
		Launch: probe.LaunchOptions{
			Headless: cfg.Probe.Headless,
			Viewport: probe.Viewport{Width: cfg.Probe.ViewportWidth, Height: cfg.Probe.ViewportHeight},
		},
		SuccessName:    cfg.Probe.SuccessFile,
		ErrorName:      cfg.Probe.ErrorFile,
		ForwardConsole: cfg.Probe.ForwardConsole,
	}))

	rc := scheduler.NewRechecker(logger, st, st, prober,
		cfg.CheckInterval, cfg.Probe.Timeout, cfg.MaxConcurrentChecks)
	go rc.Run(ctx)

	var notifiers notify.Multi
	if s := notify.NewSlack(cfg.SlackWebhookURL); s != nil {
		notifiers = append(notifiers, s)
	}
	if len(notifiers) > 0 {
		al := scheduler.NewAlerter(st, st, notifiers, logger, scheduler.AlerterConfig{
			AlertOnRecovery: cfg.AlertOnRecovery,
			Cooldown:        cfg.AlertCooldown,
			PollInterval:    cfg.CheckInterval,
		})
		go func() {
			if err := al.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Warn("alerter_stopped", zap.Error(err))
			}
		}()
	}

	api := httpapi.NewServer(logger, st, st, prober)
	api.Metrics = m.Handler()
	keys := apimw.Keys{Public: cfg.PublicAPIKeys, Admin: cfg.AdminAPIKeys}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Router(keys, cfg.AllowedOrigins, cfg.PublicRPM, cfg.PublicBurst, cfg.AdminRPM, cfg.AdminBurst),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("api_listen", zap.String("addr", cfg.Addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("api_listen_error", zap.Error(err))
	}
	logger.Info("api_stopped")
}
