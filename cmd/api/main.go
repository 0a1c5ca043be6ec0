package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/pvieira/domain-sentry/internal/alerts"
	"github.com/pvieira/domain-sentry/internal/api"
	"github.com/pvieira/domain-sentry/internal/api/handlers"
	"github.com/pvieira/domain-sentry/internal/config"
	"github.com/pvieira/domain-sentry/internal/history"
	"github.com/pvieira/domain-sentry/internal/metrics"
	"github.com/pvieira/domain-sentry/internal/monitor"
	"github.com/pvieira/domain-sentry/internal/notify"
	"github.com/pvieira/domain-sentry/internal/probe"
	"github.com/pvieira/domain-sentry/internal/ratelimit"
	"github.com/pvieira/domain-sentry/internal/rules"
	"github.com/pvieira/domain-sentry/internal/scheduler"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed to load config: ", err)
	}

	logger, err := buildLogger(cfg.Server.Mode)
	if err != nil {
		log.Fatal("failed to build logger: ", err)
	}
	defer logger.Sync()

	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	limiter := ratelimit.New(ratelimit.Config{
		Window:       cfg.RateLimit.Window,
		Grace:        cfg.RateLimit.Grace,
		DefaultLimit: cfg.RateLimit.DefaultLimit,
		SSLLimit:     cfg.RateLimit.SSLLimit,
	}, logger)
	limiter.OnDenied(collector.RecordRateLimitDenial)

	ruleStore := rules.NewStore(logger)
	historyStore := history.NewStore(logger)
	if err := historyStore.Load(cfg.History.SnapshotPath); err != nil {
		logger.Warn("could not load history snapshot", zap.Error(err))
	}

	dispatcher := notify.NewLogDispatcher(logger)
	alertEngine := alerts.NewEngine(logger, dispatcher, collector)

	resolver := probe.NewResolver(cfg.Probes.DNSResolver, 5*time.Second)
	certProbe := probe.NewCertificateProbe(cfg.Probes.CertTimeout)
	headerProbe := probe.NewSecurityHeaderProbe(cfg.Probes.HTTPTimeout)
	perfProbe := probe.NewPerformanceProbe(cfg.Probes.HTTPTimeout, resolver)
	whoisProbe := probe.NewWhoisProbe()

	service := monitor.NewService(
		ruleStore, alertEngine, historyStore, limiter, collector,
		certProbe, headerProbe, perfProbe,
		monitor.Config{
			CheckTimeout:  cfg.Scheduler.CheckTimeout,
			MaxConcurrent: cfg.Scheduler.MaxConcurrent,
			ProbesPerSec:  cfg.Scheduler.ProbesPerSec,
			ProbeBurst:    cfg.Scheduler.ProbeBurst,
			Locations:     cfg.Probes.Locations,
		},
		logger,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	limiter.StartSweeper(ctx, cfg.RateLimit.SweepInterval)
	go retentionLoop(ctx, historyStore, cfg.History.RetentionDays, logger)

	sched := scheduler.New(ruleStore, service, scheduler.Config{
		Interval:    cfg.Scheduler.Interval,
		WorkerCount: cfg.Scheduler.WorkerCount,
		QueueSize:   cfg.Scheduler.QueueSize,
	}, logger)
	go sched.Start(ctx)

	handler := handlers.NewMonitoringHandler(
		ruleStore, alertEngine, historyStore, service, whoisProbe,
		limiter, cfg.Auth.AdminSecret, cfg.History.SnapshotPath, logger,
	)
	server := api.NewServer(cfg, handler, registry, logger)

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: server.Router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()
	logger.Info("domain-sentry started", zap.String("port", cfg.Server.Port))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("forced shutdown", zap.Error(err))
	}

	if err := historyStore.Save(cfg.History.SnapshotPath); err != nil {
		logger.Error("could not save history snapshot", zap.Error(err))
	}
	logger.Info("stopped")
}

// retentionLoop trims history entries older than the retention horizon
// twice a day.
func retentionLoop(ctx context.Context, store *history.Store, retentionDays int, logger *zap.Logger) {
	if retentionDays <= 0 {
		return
	}
	ticker := time.NewTicker(12 * time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := store.Cleanup(retentionDays); n > 0 {
				logger.Info("history retention cleanup", zap.Int("removed", n))
			}
		}
	}
}

func buildLogger(mode string) (*zap.Logger, error) {
	if mode == "release" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}
