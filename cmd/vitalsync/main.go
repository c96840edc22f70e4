package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-redis/redis/v8"

	"github.com/momentum-health/vitalsync/internal/aggregator"
	corecfg "github.com/momentum-health/vitalsync/internal/core/config"
	"github.com/momentum-health/vitalsync/internal/core/storage"
	"github.com/momentum-health/vitalsync/internal/core/storage/cloud"
	"github.com/momentum-health/vitalsync/internal/core/storage/postgres"
	"github.com/momentum-health/vitalsync/internal/live"
	"github.com/momentum-health/vitalsync/internal/live/mqttsource"
	"github.com/momentum-health/vitalsync/internal/migrations"
	"github.com/momentum-health/vitalsync/internal/polling"
	"github.com/momentum-health/vitalsync/internal/prefs"
	"github.com/momentum-health/vitalsync/internal/query"
	"github.com/momentum-health/vitalsync/internal/server"
	"github.com/momentum-health/vitalsync/internal/snapshot"
	"github.com/momentum-health/vitalsync/internal/syncer"
)

func main() {
	configPath := flag.String("config", "vitalsync.yaml", "Path to configuration file")
	flag.Parse()

	// 0. Initialize Logger
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// 1. Load Configuration
	cfg, err := corecfg.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	slog.Info("Loaded config", "history_source", cfg.History.Source, "user_id", cfg.Sync.UserID)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 2. Initialize History Repository (postgres or vendor cloud)
	var (
		historyRepo storage.HistoryRepository
		db          *sql.DB
	)
	switch cfg.History.Source {
	case "postgres":
		dbAdapter, err := postgres.NewHistoryAdapter(
			cfg.Database.DSN,
			cfg.Database.MaxOpenConns,
			cfg.Database.MaxIdleConns,
		)
		if err != nil {
			slog.Error("Failed to initialize database", "error", err)
			os.Exit(1)
		}
		defer dbAdapter.Close()

		if err := migrations.RunMigrations(dbAdapter.DB(), cfg.Database.AutoMigrate); err != nil {
			slog.Error("Failed to run database migrations", "error", err)
			os.Exit(1)
		}

		historyRepo = dbAdapter
		db = dbAdapter.DB()
	case "cloud":
		historyRepo = cloud.NewClient(
			cfg.History.CloudBaseURL,
			cfg.History.CloudAppID,
			cfg.History.CloudSecretKey,
			cfg.History.EffectiveCloudTimeout(),
		)
	}

	if err := historyRepo.Initialize(ctx); err != nil {
		slog.Error("Failed to initialize history repository", "error", err)
		os.Exit(1)
	}

	// 3. Initialize Redis (snapshot cache + preference store)
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	cache := snapshot.NewCache(
		snapshot.NewRedisKVStore(rdb),
		cfg.Sync.CacheKey,
		cfg.Sync.EffectiveCacheTTL(),
	)
	prefStore := prefs.NewRedisStore(rdb, cfg.Sync.PreferPollingDefault)

	// 4. Initialize Aggregator
	agg := aggregator.New(aggregator.Options{
		MaxHistoryAge:     cfg.Sync.EffectiveHistoryMaxAge(),
		MaxHistoryEntries: cfg.Sync.HistoryMaxCount,
	})

	// 5. Initialize Adapters and Mode Controller
	telemetry := mqttsource.New(mqttsource.Config{
		BrokerURL: cfg.MQTT.BrokerURL,
		ClientID:  cfg.MQTT.ClientID,
		Username:  cfg.MQTT.Username,
		Password:  cfg.MQTT.Password,
	})
	liveAdapter := live.NewAdapter(telemetry, agg)
	pollAdapter := polling.NewAdapter(historyRepo, agg, cfg.WindowPolicy, cfg.Sync.EffectivePollInterval())
	controller := syncer.NewController(liveAdapter, pollAdapter)

	// 6. Initialize Facade (restores the cached snapshot)
	facade := syncer.NewService(agg, cache, controller, prefStore)
	facade.Initialize(ctx)
	defer facade.Dispose()

	// 7. Initialize Server
	srv := server.New(fmtAddr(cfg.Server.Host, cfg.Server.Port), db, rdb, cfg.Server.Mode)
	query.NewService(facade, cfg.Sync.UserID).RegisterRoutes(srv.Engine)

	// 8. Start the sync session
	if err := facade.StartSubscription(ctx, cfg.Sync.UserID); err != nil {
		// A failed session start is visible via /v1/vitals/status and can
		// be retried over the API; it does not block serving cached data.
		slog.Error("Failed to start sync session", "error", err)
	}

	// Signal handler triggers the shutdown sequence below.
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		slog.Info("Signal received, shutting down...")
		facade.StopSubscription()
		cancel()
	}()

	// HTTP server blocks until ctx is cancelled.
	if err := srv.Run(ctx); err != nil {
		slog.Error("Server stopped with error", "error", err)
	}

	slog.Info("Shutdown complete")
}

func fmtAddr(host string, port int) string {
	return fmt.Sprintf("%s:%d", host, port)
}
