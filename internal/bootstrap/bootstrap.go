package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/abalcerek/docuscan/internal/config"
	"github.com/abalcerek/docuscan/internal/core/domain"
	"github.com/abalcerek/docuscan/internal/core/ports"
	"github.com/abalcerek/docuscan/internal/core/usecase"
	"github.com/abalcerek/docuscan/internal/infrastructure/analyzer/cloud"
	"github.com/abalcerek/docuscan/internal/infrastructure/analyzer/local"
	"github.com/abalcerek/docuscan/internal/infrastructure/connectivity"
	"github.com/abalcerek/docuscan/internal/infrastructure/extractor/pdftext"
	"github.com/abalcerek/docuscan/internal/infrastructure/policy"
	"github.com/abalcerek/docuscan/internal/infrastructure/queue/nats"
	"github.com/abalcerek/docuscan/internal/infrastructure/repository/postgres"
	"github.com/abalcerek/docuscan/internal/infrastructure/resilience"
	"github.com/abalcerek/docuscan/internal/infrastructure/settings"
	"github.com/abalcerek/docuscan/internal/infrastructure/storage/localfs"
)

type App struct {
	Config config.Config

	Queue     ports.MessageQueue
	Repo      ports.AnalysisRepository
	Settings  *settings.Store
	RouteUC   ports.DocumentRouter
	IngestUC  ports.DocumentIngestor
	ProcessUC ports.DocumentProcessor

	closeFn func()
}

// Options carries cross-cutting hooks the binaries inject into the wiring.
type Options struct {
	// CloudCallObserver receives the duration and outcome of every cloud
	// analysis call. Nil disables the hook.
	CloudCallObserver func(time.Duration, error)
}

func New(ctx context.Context, cfg config.Config, opts Options) (*App, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	repo := postgres.NewAnalysisRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("init scan storage: %w", err)
	}

	queue, err := nats.New(cfg.NATSURL, cfg.NATSSubject)
	if err != nil {
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	settingsStore, err := settings.Load(cfg.SettingsPath)
	if err != nil {
		return nil, fmt.Errorf("load analysis settings: %w", err)
	}

	cloudGateway := cloud.New(cloud.Config{
		BaseURL:      cfg.CloudAPIURL,
		APIKey:       cfg.CloudAPIKey,
		Model:        cfg.CloudModel,
		CallTimeout:  time.Duration(cfg.CloudTimeoutSecs) * time.Second,
		CallObserver: opts.CloudCallObserver,
		Resilience: resilience.Config{
			RetryMaxAttempts: cfg.CloudRetryAttempts,
		},
	})

	// Cloud access tracks credential presence. Without a key every request
	// is pinned to the local analyzer.
	accessPolicy := policy.NewStatic(cfg.CloudAPIURL != "" && cfg.CloudAPIKey != "", cfg.CloudQuota)

	health := usecase.NewBackendHealthTracker(time.Duration(cfg.BackendCooldownSecs) * time.Second)
	routeUC := usecase.NewHybridRouteUseCase(
		local.New(),
		cloudGateway,
		connectivity.NewProbe(cfg.ConnectivityProbeURL),
		accessPolicy,
		settingsStore,
		health,
		domain.ParseAnalysisMode(cfg.AnalysisMode),
	)

	ingestUC := usecase.NewIngestDocumentUseCase(repo, storage, queue)
	processUC := usecase.NewProcessDocumentUseCase(repo, pdftext.NewExtractor(storage), routeUC)

	return &App{
		Config:   cfg,
		Queue:    queue,
		Repo:     repo,
		Settings: settingsStore,

		RouteUC:   routeUC,
		IngestUC:  ingestUC,
		ProcessUC: processUC,

		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
