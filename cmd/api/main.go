package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	httpadapter "github.com/abalcerek/docuscan/internal/adapters/http"
	"github.com/abalcerek/docuscan/internal/bootstrap"
	"github.com/abalcerek/docuscan/internal/config"
	"github.com/abalcerek/docuscan/internal/observability/logging"
	"github.com/abalcerek/docuscan/internal/observability/metrics"
)

const service = "api"

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	logger := logging.New(service, cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpMetrics := metrics.NewHTTPServerMetrics(service)

	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{
		CloudCallObserver: func(duration time.Duration, err error) {
			httpMetrics.ObserveCloudCall(service, duration, err)
		},
	})
	if err != nil {
		slog.Error("bootstrap failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	router := httpadapter.NewRouter(app.IngestUC, app.Repo, app.RouteUC, httpadapter.Options{
		RateLimitRPS:       cfg.APIRateLimitRPS,
		RateLimitBurst:     cfg.APIRateLimitBurst,
		MaxConcurrent:      cfg.APIMaxConcurrent,
		BackpressureWait:   time.Duration(cfg.APIBackpressureWaitMS) * time.Millisecond,
		MaxUploadSizeBytes: cfg.MaxUploadSizeBytes,
		Metrics:            httpMetrics,
	})

	mux := http.NewServeMux()
	mux.Handle("/metrics", httpMetrics.Handler())
	mux.Handle("/", httpMetrics.Middleware(service, router.Handler()))

	server := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("api listening", "port", cfg.APIPort, "analysis_mode", cfg.AnalysisMode)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("api server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("api shutdown failed", "error", err)
	}
}
