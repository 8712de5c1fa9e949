package database

import (
	"context"
	"testing"

	"bitboard/internal/config"
	"bitboard/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestConfigurePool(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	cfg := &config.Config{
		DBMaxOpenConns:           10,
		DBMaxIdleConns:           5,
		DBConnMaxLifetimeMinutes: 15,
	}
	require.NoError(t, configurePool(db, cfg))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	assert.Equal(t, 10, sqlDB.Stats().MaxOpenConnections)
}

func TestConnect_SQLiteAutoMigrates(t *testing.T) {
	cfg := &config.Config{
		Env:        "test",
		DBDriver:   "sqlite",
		SQLitePath: "file::memory:",
	}
	db, err := Connect(context.Background(), cfg)
	require.NoError(t, err)
	assert.False(t, db.Migrator().HasTable("users"), "connect leaves the schema alone")

	status, err := GetSchemaStatus(context.Background(), db, cfg)
	require.NoError(t, err)
	assert.True(t, status.RunAuto)
	assert.Equal(t, forumTables, status.MissingTables)

	require.NoError(t, ApplySchema(context.Background(), db, cfg))

	status, err = GetSchemaStatus(context.Background(), db, cfg)
	require.NoError(t, err)
	assert.Empty(t, status.MissingTables)
	assert.Len(t, forumTables, len(PersistentModels()))

	for _, table := range []string{"users", "threads", "posts", "comments", "reactions", "notifications", "user_bans"} {
		assert.True(t, db.Migrator().HasTable(table), "missing table %s", table)
	}
	require.NoError(t, db.Create(&models.User{Username: "satoshi", Email: "s@example.com", Password: "x"}).Error)
	require.NoError(t, Ping(context.Background(), db))
}

func TestDSN_DefaultsSSLMode(t *testing.T) {
	dsn := DSN(&config.Config{DBHost: "db", DBPort: "5432", DBUser: "u", DBPassword: "p", DBName: "bitboard"})
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=bitboard sslmode=disable", dsn)
}
