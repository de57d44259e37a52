// Command migrate runs schema operations for the stream API.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"hubmedia/internal/config"
	"hubmedia/internal/database"
	"hubmedia/internal/middleware"

	"gorm.io/gorm"
)

type command func(ctx context.Context, db *gorm.DB, cfg *config.Config, args []string) error

var commands = map[string]command{
	"up":     migrateUp,
	"auto":   migrateAuto,
	"status": schemaStatus,
	"verify": verifySchema,
	"down":   migrateDown,
}

func main() {
	if err := run(); err != nil {
		middleware.Logger.Error("migrate failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func usage() error {
	return fmt.Errorf("usage: go run ./cmd/migrate <up|auto|status|verify|down> [version]")
}

func run() error {
	flag.Parse()
	if flag.NArg() < 1 {
		return usage()
	}
	cmd, ok := commands[strings.ToLower(strings.TrimSpace(flag.Arg(0)))]
	if !ok {
		return usage()
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := database.Open(cfg)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer func() { _ = database.Close(db) }()

	return cmd(context.Background(), db, cfg, flag.Args()[1:])
}

func migrateUp(ctx context.Context, db *gorm.DB, _ *config.Config, _ []string) error {
	if err := database.RunMigrations(ctx, db); err != nil {
		return fmt.Errorf("sql migrations failed: %w", err)
	}
	middleware.Logger.Info("sql migrations applied")
	return nil
}

// migrateAuto is for local databases; CHECK constraints come only from "up".
func migrateAuto(ctx context.Context, db *gorm.DB, cfg *config.Config, _ []string) error {
	cfg.DBSchemaMode = database.SchemaModeAuto
	if err := database.ApplySchema(ctx, db, cfg); err != nil {
		return fmt.Errorf("auto schema apply failed: %w", err)
	}
	middleware.Logger.Info("automigrations applied")
	return nil
}

func schemaStatus(ctx context.Context, db *gorm.DB, cfg *config.Config, _ []string) error {
	status, err := database.GetSchemaStatus(ctx, db, cfg)
	if err != nil {
		return fmt.Errorf("schema status failed: %w", err)
	}
	middleware.Logger.Info("schema status",
		slog.String("mode", status.Mode),
		slog.String("env", status.Environment),
		slog.Bool("run_sql", status.WillRunSQL),
		slog.Bool("run_auto", status.WillRunAutoMigrate),
		slog.Int("applied", len(status.AppliedVersions)),
		slog.Int("pending", len(status.PendingMigrations)),
	)
	for _, m := range status.PendingMigrations {
		middleware.Logger.Info("pending migration", slog.String("migration", m.String()))
	}
	for _, name := range status.MissingIndexes {
		middleware.Logger.Warn("missing index", slog.String("index", name))
	}
	return nil
}

// verifySchema fails when migrations are pending or an invariant index is missing.
func verifySchema(ctx context.Context, db *gorm.DB, cfg *config.Config, _ []string) error {
	cfg.DBSchemaMode = database.SchemaModeSQL
	status, err := database.GetSchemaStatus(ctx, db, cfg)
	if err != nil {
		return fmt.Errorf("schema status failed: %w", err)
	}
	if n := len(status.PendingMigrations); n > 0 {
		return fmt.Errorf("%d migrations pending", n)
	}
	if len(status.MissingIndexes) > 0 {
		return fmt.Errorf("missing indexes: %s", strings.Join(status.MissingIndexes, ", "))
	}
	middleware.Logger.Info("schema verified", slog.Int("applied", len(status.AppliedVersions)))
	return nil
}

func migrateDown(ctx context.Context, db *gorm.DB, _ *config.Config, args []string) error {
	if len(args) == 0 {
		version, err := database.RollbackLatest(ctx, db)
		if err != nil {
			return fmt.Errorf("rollback failed: %w", err)
		}
		middleware.Logger.Info("rolled back migration", slog.Int("version", version))
		return nil
	}
	version, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid version %q: %w", args[0], err)
	}
	if err := database.RollbackMigration(ctx, db, version); err != nil {
		return fmt.Errorf("rollback failed: %w", err)
	}
	middleware.Logger.Info("rolled back migration", slog.Int("version", version))
	return nil
}
