package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"

	"docvault/internal/config"
	"docvault/internal/domain/repositories"
	"docvault/internal/repository/postgres"
	"docvault/internal/service"

	"github.com/joho/godotenv"
)

// seed runs the schema migrations and bootstraps the reserved groups.
// It is safe to run repeatedly.
func main() {
	// Load .env file (silently ignore if it doesn't exist - for production)
	_ = godotenv.Load()

	cfg := config.Load()

	logLevel := slog.LevelInfo
	if cfg.Environment == "dev" {
		logLevel = slog.LevelDebug
	}
	logOut := io.Writer(os.Stdout)
	if logFile, err := config.OpenLogFile(cfg.LogDir, cfg.LogMaxFiles); err != nil {
		fmt.Fprintf(os.Stderr, "warning: file logging disabled: %v\n", err)
	} else {
		defer logFile.Close()
		logOut = io.MultiWriter(os.Stdout, logFile)
	}
	logger := slog.New(slog.NewJSONHandler(logOut, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is required")
	}

	ctx := context.Background()

	logger.Info("running migrations", "environment", cfg.Environment)
	if err := postgres.RunMigrations(ctx, cfg.DatabaseURL); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	pool, err := postgres.CreateConnectionPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to create connection pool: %v", err)
	}
	defer pool.Close()

	repoCfg := &postgres.RepositoryConfig{Pool: pool, Logger: logger}
	var (
		txm    repositories.TransactionManager = postgres.NewTransactionManager(pool, logger)
		groups                                 = postgres.NewGroupRepository(repoCfg)
		grants                                 = postgres.NewGrantRepository(repoCfg)
	)

	groupService := service.NewGroupService(txm, groups, grants, logger)
	if err := groupService.EnsureReserved(ctx); err != nil {
		log.Fatalf("Failed to bootstrap reserved groups: %v", err)
	}

	logger.Info("seed complete")
}
