package database

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"hubmedia/internal/config"
	"hubmedia/internal/middleware"

	"gorm.io/gorm"
)

const (
	SchemaModeHybrid = "hybrid"
	SchemaModeSQL    = "sql"
	SchemaModeAuto   = "auto"
)

// SchemaStatus describes what ApplySchema would do against the current database.
type SchemaStatus struct {
	Mode               string
	Environment        string
	WillRunSQL         bool
	WillRunAutoMigrate bool
	AppliedVersions    []int
	PendingMigrations  []Migration
	// MissingIndexes names invariant indexes absent from existing tables.
	MissingIndexes []string
}

// invariantIndex is a partial index that struct tags cannot express, so
// AutoMigrate alone would leave it out.
type invariantIndex struct {
	table string
	name  string
	ddl   string
}

var invariantIndexes = []invariantIndex{
	{
		table: "streams",
		name:  "uniq_streams_owner_live",
		ddl:   "CREATE UNIQUE INDEX IF NOT EXISTS uniq_streams_owner_live ON streams (owner_id) WHERE is_live",
	},
	{
		table: "stream_messages",
		name:  "idx_stream_messages_pending",
		ddl:   "CREATE INDEX IF NOT EXISTS idx_stream_messages_pending ON stream_messages (stream_id, id) WHERE NOT is_approved",
	},
}

func isProdLikeEnv(env string) bool {
	e := strings.ToLower(strings.TrimSpace(env))
	return e == "production" || e == "prod" || e == "staging" || e == "stage"
}

func normalizedSchemaMode(cfg *config.Config) string {
	mode := strings.ToLower(strings.TrimSpace(cfg.DBSchemaMode))
	if mode == "" {
		return SchemaModeHybrid
	}
	return mode
}

func schemaPolicy(cfg *config.Config) (runSQL bool, runAuto bool, err error) {
	mode := normalizedSchemaMode(cfg)
	prodLike := isProdLikeEnv(cfg.Env)

	switch mode {
	case SchemaModeSQL:
		return true, false, nil
	case SchemaModeAuto:
		if prodLike && !cfg.DBAutoMigrateAllowDestructive {
			return false, false, fmt.Errorf("refusing DB_SCHEMA_MODE=auto in %q without DB_AUTOMIGRATE_ALLOW_DESTRUCTIVE=true", cfg.Env)
		}
		return false, true, nil
	case SchemaModeHybrid:
		return true, !prodLike, nil
	default:
		return false, false, fmt.Errorf("unsupported DB_SCHEMA_MODE %q", mode)
	}
}

// runAutoMigrate syncs tables from the models, then adds the partial indexes.
// CHECK constraints are only created by the SQL migrations.
func runAutoMigrate(ctx context.Context, db *gorm.DB) error {
	if err := db.WithContext(ctx).AutoMigrate(PersistentModels()...); err != nil {
		return err
	}
	return ensureInvariantIndexes(ctx, db)
}

func ensureInvariantIndexes(ctx context.Context, db *gorm.DB) error {
	for _, idx := range invariantIndexes {
		if err := db.WithContext(ctx).Exec(idx.ddl).Error; err != nil {
			return fmt.Errorf("create index %s: %w", idx.name, err)
		}
	}
	return nil
}

// MissingInvariantIndexes lists invariant indexes absent from tables that exist.
func MissingInvariantIndexes(ctx context.Context, db *gorm.DB) []string {
	migrator := db.WithContext(ctx).Migrator()
	var missing []string
	for _, idx := range invariantIndexes {
		if migrator.HasTable(idx.table) && !migrator.HasIndex(idx.table, idx.name) {
			missing = append(missing, idx.name)
		}
	}
	return missing
}

// ApplySchema runs versioned SQL migrations, GORM AutoMigrate or both, depending on
// DB_SCHEMA_MODE and the environment.
func ApplySchema(ctx context.Context, db *gorm.DB, cfg *config.Config) error {
	runSQL, runAuto, err := schemaPolicy(cfg)
	if err != nil {
		return err
	}

	if runSQL {
		if err := RunMigrations(ctx, db); err != nil {
			return fmt.Errorf("run sql migrations: %w", err)
		}
	}

	if runAuto {
		mode := normalizedSchemaMode(cfg)
		if mode == SchemaModeAuto && cfg.DBAutoMigrateAllowDestructive {
			middleware.Logger.WarnContext(ctx, "DB_AUTOMIGRATE_ALLOW_DESTRUCTIVE=true set for DB_SCHEMA_MODE=auto; review schema diffs before production deployment")
		}
		middleware.Logger.InfoContext(ctx, "Running GORM AutoMigrate", slog.String("mode", mode), slog.String("env", cfg.Env))
		if err := runAutoMigrate(ctx, db); err != nil {
			return fmt.Errorf("auto-migrate: %w", err)
		}
	}

	return nil
}

// GetSchemaStatus reports the schema policy and pending migrations without changing anything.
func GetSchemaStatus(ctx context.Context, db *gorm.DB, cfg *config.Config) (*SchemaStatus, error) {
	runSQL, runAuto, err := schemaPolicy(cfg)
	if err != nil {
		return nil, err
	}

	status := &SchemaStatus{
		Mode:               normalizedSchemaMode(cfg),
		Environment:        cfg.Env,
		WillRunSQL:         runSQL,
		WillRunAutoMigrate: runAuto,
		MissingIndexes:     MissingInvariantIndexes(ctx, db),
	}

	if !runSQL {
		return status, nil
	}

	store := NewMigrationStore(db)
	applied, err := store.GetAppliedMigrations(ctx)
	if err != nil {
		return nil, err
	}
	status.AppliedVersions = applied

	appliedSet := make(map[int]bool, len(applied))
	for _, version := range applied {
		appliedSet[version] = true
	}
	for _, m := range GetMigrations() {
		if !appliedSet[m.Version] {
			status.PendingMigrations = append(status.PendingMigrations, m)
		}
	}

	return status, nil
}
