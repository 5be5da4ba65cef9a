package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rickgao/shardline/internal/api"
	"github.com/rickgao/shardline/internal/auth"
	"github.com/rickgao/shardline/internal/config"
	"github.com/rickgao/shardline/internal/connection"
	"github.com/rickgao/shardline/internal/database"
	"github.com/rickgao/shardline/internal/dispatch"
	"github.com/rickgao/shardline/internal/logging"
	"github.com/rickgao/shardline/internal/version"
	"github.com/rickgao/shardline/internal/writer"
)

func main() {
	configPath := flag.String("config", "configs/shardline.local.yaml", "path to config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		slog.Error("shardline exited", "error", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	// Load configuration
	cfg, err := config.LoadAndValidate(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, logCloser, err := logging.New(cfg.Logging, os.Stdout)
	if err != nil {
		return fmt.Errorf("set up logging: %w", err)
	}
	defer logCloser.Close()
	slog.SetDefault(logger)

	logger.Info("starting shardline",
		"version", version.Version,
		"commit", version.Commit,
		"config", configPath,
		"instance_id", cfg.Instance.ID,
	)

	creds, err := auth.LoadCredentials(cfg.Discord.Token, cfg.Discord.TokenFile)
	if err != nil {
		return fmt.Errorf("load credentials: %w", err)
	}
	appID, err := creds.ApplicationID()
	if err != nil {
		return fmt.Errorf("application id: %w", err)
	}
	logger.Info("credentials loaded", "token", creds.Redacted(), "application_id", appID)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	apiClient := api.NewClient(
		cfg.Discord.RestURL,
		creds.Token,
		api.WithLogger(logger),
		api.WithTimeout(30*time.Second),
		api.WithRetries(3, time.Second),
	)

	dispatcher := dispatch.New(cfg.DispatcherConfig(), logger)

	var opts []connection.ManagerOption
	var pool *pgxpool.Pool
	var archive *writer.EventWriter

	if cfg.Database.Enabled {
		logger.Info("connecting to database",
			"host", cfg.Database.Postgres.Host,
			"port", cfg.Database.Postgres.Port,
			"database", cfg.Database.Postgres.Name,
		)
		pool, err = database.Connect(ctx, cfg.Database.Postgres)
		if err != nil {
			return fmt.Errorf("connect database: %w", err)
		}
		defer pool.Close()

		if err := database.EnsureSchema(ctx, pool); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
		opts = append(opts, connection.WithSessionStore(database.NewSessionStore(pool)))
		logger.Info("database connected")

		if cfg.Archive.Enabled {
			archive = writer.NewEventWriter(writer.Config{
				BatchSize:     cfg.Archive.BatchSize,
				FlushInterval: cfg.Archive.FlushInterval,
				BufferSize:    cfg.Archive.BufferSize,
				Events:        cfg.Archive.Events,
			}, pool, logger.With("component", "archive"))
			dispatcher.OnRaw(archive.Handle)
			if err := archive.Start(ctx); err != nil {
				return fmt.Errorf("start archive: %w", err)
			}
		}
	}

	managerCfg, err := cfg.ManagerConfig(creds.Token, appID)
	if err != nil {
		return err
	}
	manager := connection.NewManager(managerCfg, apiClient, dispatcher, logger, opts...)

	dispatch.Subscribe(dispatcher, func(_ context.Context, ev dispatch.GuildsDownloaded) {
		logger.Info("guilds downloaded", "shard_id", ev.ShardID, "guilds", ev.GuildCount)
	})

	// Start health server before the shards so startup can be observed
	healthServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Health.Port),
		Handler:           newHealthHandler(manager, pool, archive),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("starting health server", "port", cfg.Health.Port)
		if err := healthServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("health server error", "error", err)
		}
	}()

	if err := manager.Start(ctx); err != nil {
		return fmt.Errorf("start shards: %w", err)
	}

	logger.Info("shardline running",
		"shards", manager.ShardCount(),
		"health_url", fmt.Sprintf("http://localhost:%d/health", cfg.Health.Port),
	)

	// Wait for shutdown or a fatal shard error
	var runErr error
	select {
	case <-ctx.Done():
	case <-manager.Done():
		runErr = manager.Err()
	}

	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := manager.Stop(shutdownCtx); err != nil {
		logger.Warn("shard manager stop", "error", err)
	}
	if archive != nil {
		archive.Stop(shutdownCtx)
	}
	healthServer.Shutdown(shutdownCtx)

	logger.Info("shardline stopped")
	return runErr
}
