package di

import (
	"context"
	"log/slog"

	"github.com/go-telegram/bot"
	"github.com/jmoiron/sqlx"
	"github.com/samber/do/v2"
	"github.com/samber/oops"

	"github.com/threatwatch-io/threatwatch/internal/infrastructure/analyzer"
	"github.com/threatwatch-io/threatwatch/internal/infrastructure/search"
	alertRepo "github.com/threatwatch-io/threatwatch/internal/modules/alert/repository"
	alertService "github.com/threatwatch-io/threatwatch/internal/modules/alert/service"
	feedService "github.com/threatwatch-io/threatwatch/internal/modules/feed/service"
	monitorRepo "github.com/threatwatch-io/threatwatch/internal/modules/monitor/repository"
	monitorService "github.com/threatwatch-io/threatwatch/internal/modules/monitor/service"
	scanEngine "github.com/threatwatch-io/threatwatch/internal/modules/scan/engine"
	scanRepo "github.com/threatwatch-io/threatwatch/internal/modules/scan/repository"
	scanScheduler "github.com/threatwatch-io/threatwatch/internal/modules/scan/scheduler"
	"github.com/threatwatch-io/threatwatch/internal/shared/config"
	"github.com/threatwatch-io/threatwatch/internal/storage"
	httpServer "github.com/threatwatch-io/threatwatch/internal/transport/http"
	"github.com/threatwatch-io/threatwatch/internal/transport/telegram"
)

// Setup initializes the dependency injection container
func Setup() (do.Injector, error) {
	injector := do.New()

	// Register Config
	do.Provide(injector, func(i do.Injector) (*config.Config, error) {
		cfg, err := config.Load()
		if err != nil {
			return nil, oops.With("context", "failed to load config").Wrap(err)
		}
		return cfg, nil
	})

	// Register Database
	do.Provide(injector, func(i do.Injector) (*sqlx.DB, error) {
		cfg := do.MustInvoke[*config.Config](i)
		db, err := storage.Open(cfg.DatabasePath)
		if err != nil {
			return nil, oops.With("database_path", cfg.DatabasePath, "context", "failed to open database").Wrap(err)
		}
		return db, nil
	})

	// Register Monitor Repository
	do.Provide(injector, func(i do.Injector) (monitorRepo.Repository, error) {
		db := do.MustInvoke[*sqlx.DB](i)
		return monitorRepo.NewSQLiteStorage(db), nil
	})

	// Register Alert Repository
	do.Provide(injector, func(i do.Injector) (alertRepo.Repository, error) {
		db := do.MustInvoke[*sqlx.DB](i)
		return alertRepo.NewSQLiteStorage(db), nil
	})

	// Register Scan Record Repository
	do.Provide(injector, func(i do.Injector) (scanRepo.Repository, error) {
		db := do.MustInvoke[*sqlx.DB](i)
		return scanRepo.NewSQLiteStorage(db), nil
	})

	// Register Monitor Service
	do.Provide(injector, func(i do.Injector) (*monitorService.Service, error) {
		repo := do.MustInvoke[monitorRepo.Repository](i)
		return monitorService.New(repo), nil
	})

	// Register Alert Service
	do.Provide(injector, func(i do.Injector) (*alertService.Service, error) {
		repo := do.MustInvoke[alertRepo.Repository](i)
		return alertService.New(repo), nil
	})

	// Register Feed Service
	do.Provide(injector, func(i do.Injector) (*feedService.Service, error) {
		mRepo := do.MustInvoke[monitorRepo.Repository](i)
		aRepo := do.MustInvoke[alertRepo.Repository](i)
		return feedService.New(mRepo, aRepo), nil
	})

	// Register Search Client
	do.Provide(injector, func(i do.Injector) (search.Client, error) {
		cfg := do.MustInvoke[*config.Config](i)
		return search.NewHTTPClient(search.Config{
			APIKey:   cfg.Search.APIKey,
			EngineID: cfg.Search.EngineID,
			BaseURL:  cfg.Search.BaseURL,
		}), nil
	})

	// Register Analyzer Client
	do.Provide(injector, func(i do.Injector) (analyzer.Client, error) {
		cfg := do.MustInvoke[*config.Config](i)
		return analyzer.NewHTTPClient(analyzer.Config{
			APIKey:  cfg.Analyzer.APIKey,
			BaseURL: cfg.Analyzer.BaseURL,
			Model:   cfg.Analyzer.Model,
		}), nil
	})

	// Register Scan Engine
	do.Provide(injector, func(i do.Injector) (*scanEngine.Engine, error) {
		searchClient := do.MustInvoke[search.Client](i)
		analyzerClient := do.MustInvoke[analyzer.Client](i)
		return scanEngine.New(searchClient, analyzerClient, slog.Default()), nil
	})

	// Register Bot (optional, only when a token is configured)
	do.Provide(injector, func(i do.Injector) (*bot.Bot, error) {
		cfg := do.MustInvoke[*config.Config](i)
		if cfg.TelegramBotToken == "" {
			return nil, oops.Errorf("telegram bot token not configured")
		}
		b, err := bot.New(cfg.TelegramBotToken)
		if err != nil {
			return nil, oops.With("context", "failed to create telegram bot").Wrap(err)
		}
		return b, nil
	})

	// Register Scheduler
	do.Provide(injector, func(i do.Injector) (*scanScheduler.Scheduler, error) {
		cfg := do.MustInvoke[*config.Config](i)
		monitors := do.MustInvoke[*monitorService.Service](i)
		alerts := do.MustInvoke[*alertService.Service](i)
		records := do.MustInvoke[scanRepo.Repository](i)
		engine := do.MustInvoke[*scanEngine.Engine](i)

		// Notifications are best-effort; without a bot the scheduler still
		// stores alerts.
		var notifier scanScheduler.Notifier
		if b, err := do.Invoke[*bot.Bot](i); err == nil && b != nil {
			notifier = telegram.NewNotifier(b)
		}

		opts := scanScheduler.Options{
			PollInterval:  cfg.Scheduler.PollInterval(),
			MaxConcurrent: cfg.Scheduler.MaxConcurrentScans,
			RetryAttempts: cfg.Scheduler.RetryAttempts,
			RetryDelay:    cfg.Scheduler.RetryDelay(),
			ScanTimeout:   cfg.Scheduler.ScanTimeout(),
			Retention:     cfg.Retention.RetentionPeriod(),
		}
		return scanScheduler.New(opts, monitors, alerts, records, engine, notifier, slog.Default()), nil
	})

	// Register HTTP Server
	do.Provide(injector, func(i do.Injector) (*httpServer.Server, error) {
		cfg := do.MustInvoke[*config.Config](i)
		monitors := do.MustInvoke[*monitorService.Service](i)
		alerts := do.MustInvoke[*alertService.Service](i)
		feeds := do.MustInvoke[*feedService.Service](i)
		server := httpServer.New(cfg, monitors, alerts, feeds)
		server.SetLogger(slog.Default())
		return server, nil
	})

	return injector, nil
}

// Shutdown gracefully shuts down all services
func Shutdown(injector do.Injector) error {
	ctx := context.Background()

	if scheduler, err := do.Invoke[*scanScheduler.Scheduler](injector); err == nil && scheduler != nil {
		scheduler.Stop()
	}

	if server, err := do.Invoke[*httpServer.Server](injector); err == nil && server != nil {
		if err := server.Shutdown(ctx); err != nil {
			slog.Error("HTTP server shutdown failed", "error", err)
		}
	}

	if b, err := do.Invoke[*bot.Bot](injector); err == nil && b != nil {
		b.Close(ctx)
	}

	if db, err := do.Invoke[*sqlx.DB](injector); err == nil && db != nil {
		if err := db.Close(); err != nil {
			slog.Error("Database close failed", "error", err)
		}
	}

	return nil
}
