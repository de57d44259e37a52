package database

import (
	"context"
	"testing"
	"testing/fstest"
	"time"

	"hubmedia/internal/config"
	"hubmedia/internal/middleware"
	"hubmedia/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func openSQLite(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: NewGormLogger(middleware.Logger),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	return db
}

func TestConfigurePool(t *testing.T) {
	db := openSQLite(t)

	err := configurePool(db, &config.Config{
		DBMaxOpenConns:           10,
		DBMaxIdleConns:           5,
		DBConnMaxLifetimeMinutes: 15,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	assert.Equal(t, 10, sqlDB.Stats().MaxOpenConnections)
}

func TestPingAndClose(t *testing.T) {
	db := openSQLite(t)
	assert.NoError(t, Ping(context.Background(), db))
	assert.Error(t, Ping(context.Background(), nil))
	assert.NoError(t, Close(db))
	assert.NoError(t, Close(nil))
}

func TestDSN(t *testing.T) {
	dsn := DSN(&config.Config{
		DBHost: "db", DBPort: "5432", DBUser: "u", DBPassword: "p", DBName: "hubmedia",
	})
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=hubmedia sslmode=disable", dsn)
}

func TestLoadMigrations(t *testing.T) {
	t.Run("sorted pairs", func(t *testing.T) {
		fsys := fstest.MapFS{
			"m/000002_second.up.sql":   {Data: []byte("CREATE TABLE b (id INTEGER);")},
			"m/000002_second.down.sql": {Data: []byte("DROP TABLE b;")},
			"m/000001_first.up.sql":    {Data: []byte("CREATE TABLE a (id INTEGER);")},
			"m/000001_first.down.sql":  {Data: []byte("DROP TABLE a;")},
			"m/README.md":              {Data: []byte("ignored")},
		}
		got, err := LoadMigrations(fsys, "m")
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, 1, got[0].Version)
		assert.Equal(t, "first", got[0].Name)
		assert.Equal(t, "000002_second", got[1].String())
	})

	t.Run("missing down script", func(t *testing.T) {
		fsys := fstest.MapFS{"m/000001_first.up.sql": {Data: []byte("SELECT 1;")}}
		_, err := LoadMigrations(fsys, "m")
		assert.Error(t, err)
	})

	t.Run("bad version", func(t *testing.T) {
		fsys := fstest.MapFS{
			"m/abc_first.up.sql":   {Data: []byte("SELECT 1;")},
			"m/abc_first.down.sql": {Data: []byte("SELECT 1;")},
		}
		_, err := LoadMigrations(fsys, "m")
		assert.Error(t, err)
	})
}

func TestEmbeddedMigrations(t *testing.T) {
	all := GetMigrations()
	require.Len(t, all, 2)
	assert.Equal(t, "create_streams", all[0].Name)
	assert.Contains(t, all[0].UpScript, "uniq_streams_owner_live")
	assert.Equal(t, "create_stream_messages", all[1].Name)
	assert.NotNil(t, GetMigrationByVersion(2))
	assert.Nil(t, GetMigrationByVersion(99))
}

func testMigrationSet() []Migration {
	return []Migration{
		{Version: 1, Name: "widgets", UpScript: "CREATE TABLE widgets (id INTEGER PRIMARY KEY);", DownScript: "DROP TABLE widgets;"},
		{Version: 2, Name: "gadgets", UpScript: "CREATE TABLE gadgets (id INTEGER PRIMARY KEY);", DownScript: "DROP TABLE gadgets;"},
	}
}

func TestRunMigrations_AppliesOnceAndRollsBack(t *testing.T) {
	ctx := context.Background()
	db := openSQLite(t)
	set := testMigrationSet()

	require.NoError(t, runMigrations(ctx, db, set))
	require.NoError(t, runMigrations(ctx, db, set), "second run must be a no-op")

	applied, err := NewMigrationStore(db).GetAppliedMigrations(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, applied)
	assert.True(t, db.Migrator().HasTable("gadgets"))

	require.NoError(t, rollbackMigration(ctx, db, set, 2))
	assert.False(t, db.Migrator().HasTable("gadgets"))

	applied, err = NewMigrationStore(db).GetAppliedMigrations(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int{1}, applied)

	assert.Error(t, rollbackMigration(ctx, db, set, 2), "already rolled back")
	assert.Error(t, rollbackMigration(ctx, db, set, 7), "unknown version")
}

func TestRunMigrations_FailedScriptLeavesNoRecord(t *testing.T) {
	ctx := context.Background()
	db := openSQLite(t)
	set := []Migration{{Version: 1, Name: "broken", UpScript: "CREATE TABLE;", DownScript: ""}}

	assert.Error(t, runMigrations(ctx, db, set))

	applied, err := NewMigrationStore(db).GetAppliedMigrations(ctx)
	require.NoError(t, err)
	assert.Empty(t, applied)
}

func TestValidateAppliedVersions(t *testing.T) {
	set := testMigrationSet()
	assert.NoError(t, validateAppliedVersions(nil, set))
	assert.NoError(t, validateAppliedVersions([]int{1, 2}, set))

	err := validateAppliedVersions([]int{1, 9, 5}, set)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "000005, 000009")
}

func TestGetAppliedMigrations_MissingTable(t *testing.T) {
	applied, err := NewMigrationStore(openSQLite(t)).GetAppliedMigrations(context.Background())
	require.NoError(t, err)
	assert.Empty(t, applied)
}

func TestSchemaPolicy(t *testing.T) {
	tests := []struct {
		name     string
		cfg      config.Config
		wantSQL  bool
		wantAuto bool
		wantErr  bool
	}{
		{"hybrid dev", config.Config{Env: "development"}, true, true, false},
		{"hybrid prod", config.Config{Env: "production", DBSchemaMode: "hybrid"}, true, false, false},
		{"sql only", config.Config{Env: "development", DBSchemaMode: "sql"}, true, false, false},
		{"auto dev", config.Config{Env: "development", DBSchemaMode: "auto"}, false, true, false},
		{"auto staging refused", config.Config{Env: "staging", DBSchemaMode: "auto"}, false, false, true},
		{"auto prod allowed", config.Config{Env: "prod", DBSchemaMode: "auto", DBAutoMigrateAllowDestructive: true}, false, true, false},
		{"unknown mode", config.Config{Env: "development", DBSchemaMode: "magic"}, false, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runSQL, runAuto, err := schemaPolicy(&tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantSQL, runSQL)
			assert.Equal(t, tt.wantAuto, runAuto)
		})
	}
}

func TestApplySchema_AutoModeOnSQLite(t *testing.T) {
	ctx := context.Background()
	db := openSQLite(t)
	cfg := &config.Config{Env: "test", DBSchemaMode: "auto"}

	require.NoError(t, ApplySchema(ctx, db, cfg))
	assert.True(t, db.Migrator().HasTable(&models.Stream{}))
	assert.True(t, db.Migrator().HasIndex("streams", "uniq_streams_owner_live"))
	assert.True(t, db.Migrator().HasIndex("stream_messages", "idx_stream_messages_pending"))

	status, err := GetSchemaStatus(ctx, db, cfg)
	require.NoError(t, err)
	assert.Equal(t, "auto", status.Mode)
	assert.False(t, status.WillRunSQL)
	assert.True(t, status.WillRunAutoMigrate)
	assert.Empty(t, status.MissingIndexes)

	// a second run is a no-op
	require.NoError(t, ApplySchema(ctx, db, cfg))
}

func TestApplySchema_AutoModeEnforcesOneLiveStreamPerOwner(t *testing.T) {
	ctx := context.Background()
	db := openSQLite(t)
	require.NoError(t, ApplySchema(ctx, db, &config.Config{Env: "test", DBSchemaMode: "auto"}))

	live := func() *models.Stream {
		return &models.Stream{OwnerID: "owner-1", Title: "t", IsLive: true, StartedAt: time.Now()}
	}
	require.NoError(t, db.Create(live()).Error)
	assert.Error(t, db.Create(live()).Error)

	ended := time.Now()
	require.NoError(t, db.Create(&models.Stream{
		OwnerID: "owner-1", Title: "old", StartedAt: ended.Add(-time.Hour), EndedAt: &ended,
	}).Error)
}

func TestMissingInvariantIndexes(t *testing.T) {
	ctx := context.Background()
	db := openSQLite(t)

	assert.Empty(t, MissingInvariantIndexes(ctx, db), "absent tables are not reported")

	require.NoError(t, db.AutoMigrate(PersistentModels()...))
	assert.ElementsMatch(t,
		[]string{"uniq_streams_owner_live", "idx_stream_messages_pending"},
		MissingInvariantIndexes(ctx, db))

	require.NoError(t, ensureInvariantIndexes(ctx, db))
	assert.Empty(t, MissingInvariantIndexes(ctx, db))
}
