package bootstrap

import (
	"context"
	"path/filepath"
	"testing"

	"bitboard/internal/config"
	"bitboard/internal/models"
	"bitboard/internal/testutil"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sqliteConfig(t *testing.T) *config.Config {
	return &config.Config{
		Env:            "development",
		DBDriver:       "sqlite",
		SQLitePath:     filepath.Join(t.TempDir(), "bitboard.db"),
		SeedCategories: true,
	}
}

func TestInitRuntime_SQLiteWithoutRedis(t *testing.T) {
	cfg := sqliteConfig(t)

	rt, err := InitRuntime(context.Background(), cfg, Options{})
	require.NoError(t, err)
	defer rt.Close()

	assert.Nil(t, rt.Redis)

	var categories int64
	require.NoError(t, rt.DB.Model(&models.Category{}).Count(&categories).Error)
	assert.Positive(t, categories)
}

func TestInitRuntime_RequireRedis(t *testing.T) {
	cfg := sqliteConfig(t)

	_, err := InitRuntime(context.Background(), cfg, Options{RequireRedis: true})
	assert.ErrorContains(t, err, "REDIS_URL")

	mr := miniredis.RunT(t)
	cfg.RedisURL = mr.Addr()
	rt, err := InitRuntime(context.Background(), cfg, Options{RequireRedis: true})
	require.NoError(t, err)
	defer rt.Close()
	require.NotNil(t, rt.Redis)
	assert.NoError(t, rt.Redis.Ping(context.Background()).Err())
}

func TestEnsureRootAdmin(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	ctx := context.Background()

	cfg := &config.Config{Env: "development"}
	require.NoError(t, EnsureRootAdmin(ctx, cfg, db))
	var n int64
	require.NoError(t, db.Model(&models.User{}).Count(&n).Error)
	assert.Zero(t, n, "nothing happens without DEV_ROOT_EMAIL")

	cfg.DevRootEmail = "Root@Example.com"
	assert.ErrorContains(t, EnsureRootAdmin(ctx, cfg, db), "DEV_ROOT_PASSWORD")

	cfg.DevRootPassword = "Root-Password-1!"
	require.NoError(t, EnsureRootAdmin(ctx, cfg, db))
	var root models.User
	require.NoError(t, db.Where("email = ?", "root@example.com").First(&root).Error)
	assert.Equal(t, models.RoleAdmin, root.Role)
	assert.Equal(t, "root", root.Username)

	// Demoted roots are promoted again, and nothing is duplicated.
	require.NoError(t, db.Model(&root).Update("role", models.RoleUser).Error)
	require.NoError(t, EnsureRootAdmin(ctx, cfg, db))
	require.NoError(t, db.First(&root, root.ID).Error)
	assert.Equal(t, models.RoleAdmin, root.Role)
	require.NoError(t, db.Model(&models.User{}).Count(&n).Error)
	assert.Equal(t, int64(1), n)

	cfg.Env = "production"
	cfg.DevRootEmail = "other@example.com"
	require.NoError(t, EnsureRootAdmin(ctx, cfg, db))
	require.NoError(t, db.Model(&models.User{}).Count(&n).Error)
	assert.Equal(t, int64(1), n)
}
