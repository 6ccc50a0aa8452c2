package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"

	_ "github.com/jackc/pgx/v5/stdlib" // database/sql driver for migrations
	"go.uber.org/zap"

	"github.com/ontoforge/schema-engine/pkg/config"
	"github.com/ontoforge/schema-engine/pkg/database"
	"github.com/ontoforge/schema-engine/pkg/logging"
	"github.com/ontoforge/schema-engine/pkg/repositories"
	"github.com/ontoforge/schema-engine/pkg/services"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.NewLogger(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck // best-effort flush on exit

	logger.Info("Configuration loaded",
		zap.String("environment", cfg.Env),
		zap.String("store", cfg.Store.Host),
		zap.String("database", cfg.Store.Database),
		zap.String("version", cfg.Version))

	ctx := context.Background()

	db, err := database.NewConnection(ctx, &database.Config{
		URL:            cfg.Store.ConnectionString(),
		MaxConnections: cfg.Store.MaxConnections,
	})
	if err != nil {
		logger.Fatal("Failed to connect to store", zap.Error(err))
	}
	defer db.Close()

	sqlDB, err := sql.Open("pgx", cfg.Store.ConnectionString())
	if err != nil {
		logger.Fatal("Failed to open migration connection", zap.Error(err))
	}
	if err := database.RunMigrations(sqlDB, cfg.Store.MigrationsPath, logger); err != nil {
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}
	if err := sqlDB.Close(); err != nil {
		logger.Warn("Failed to close migration connection", zap.Error(err))
	}

	store := repositories.NewPostgresSchemaStore(db)
	cache := services.NewSchemaCache(store, logger)
	if err := cache.Reload(ctx); err != nil {
		logger.Fatal("Failed to load schema cache", zap.Error(err))
	}

	lock := services.NewEntityLock()
	oracle := services.NewUsageOracle(store, logger)
	coordinator := services.NewUpdateCoordinator(lock, cache, store, oracle, cfg.LockTimeout(), logger)

	if cfg.Schema.SeedPath != "" {
		seeder := services.NewSeeder(coordinator, cache, logger)
		if err := seeder.Run(ctx, cfg.Schema.SeedPath); err != nil {
			logger.Fatal("Failed to seed schema", zap.Error(err))
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if len(cache.Snapshot().OntologyIRIs()) == 0 {
			http.Error(w, "schema cache not loaded", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	addr := cfg.BindAddr + ":" + cfg.Port
	logger.Info("Starting schema-engine", zap.String("addr", addr))
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Fatal("Server failed", zap.Error(err))
	}
}
