// Package bootstrap connects the runtime dependencies shared by the server
// and the maintenance commands.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"bitboard/internal/cache"
	"bitboard/internal/config"
	"bitboard/internal/database"
	"bitboard/internal/middleware"
	"bitboard/internal/models"
	"bitboard/internal/repository"
	"bitboard/internal/seed"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Options control runtime initialization behavior.
type Options struct {
	// SkipSchema leaves the schema untouched, for commands that manage it themselves.
	SkipSchema bool
	// RequireRedis fails instead of degrading when Redis is unreachable.
	RequireRedis bool
}

// Runtime holds the connected dependencies.
type Runtime struct {
	DB    *gorm.DB
	Redis *redis.Client
}

// Close releases the database and Redis connections.
func (r *Runtime) Close() {
	if r.Redis != nil {
		_ = r.Redis.Close()
	}
	if sqlDB, err := r.DB.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

// InitRuntime connects to the database and Redis, applies the schema and
// runs the built-in seeding the config asks for. Redis is optional unless
// opts.RequireRedis is set; a nil Redis client means the API runs degraded.
func InitRuntime(ctx context.Context, cfg *config.Config, opts Options) (*Runtime, error) {
	db, err := database.Connect(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}
	rt := &Runtime{DB: db}

	if !opts.SkipSchema {
		if err := database.ApplySchema(ctx, db, cfg); err != nil {
			rt.Close()
			return nil, fmt.Errorf("apply schema: %w", err)
		}
	}

	if cfg.RedisURL != "" {
		rdb, err := cache.Connect(ctx, cfg.RedisURL)
		switch {
		case err == nil:
			rt.Redis = rdb
		case opts.RequireRedis:
			rt.Close()
			return nil, fmt.Errorf("redis connection failed: %w", err)
		default:
			middleware.Logger.Warn("redis unavailable, running without realtime, cache and token revocation",
				slog.String("error", err.Error()))
		}
	} else if opts.RequireRedis {
		rt.Close()
		return nil, errors.New("REDIS_URL is required")
	}

	if opts.SkipSchema {
		return rt, nil
	}

	if cfg.SeedCategories {
		if err := seed.Categories(ctx, repository.NewCategoryRepository(db, nil)); err != nil {
			rt.Close()
			return nil, fmt.Errorf("seed categories: %w", err)
		}
	}
	if err := EnsureRootAdmin(ctx, cfg, db); err != nil {
		rt.Close()
		return nil, fmt.Errorf("bootstrap root admin: %w", err)
	}
	return rt, nil
}

// EnsureRootAdmin creates or promotes the configured root admin account in
// development. It does nothing unless DEV_ROOT_EMAIL is set.
func EnsureRootAdmin(ctx context.Context, cfg *config.Config, db *gorm.DB) error {
	if cfg == nil || db == nil || cfg.IsProduction() {
		return nil
	}
	email := strings.TrimSpace(strings.ToLower(cfg.DevRootEmail))
	if email == "" {
		return nil
	}
	username := strings.TrimSpace(cfg.DevRootUsername)
	if username == "" {
		username = "root"
	}
	if cfg.DevRootPassword == "" {
		return errors.New("DEV_ROOT_PASSWORD must be set when DEV_ROOT_EMAIL is")
	}

	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var root models.User
		err := tx.Where("email = ?", email).First(&root).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			hash, err := bcrypt.GenerateFromPassword([]byte(cfg.DevRootPassword), bcrypt.DefaultCost)
			if err != nil {
				return fmt.Errorf("hash root password: %w", err)
			}
			root = models.User{
				Username: username,
				Email:    email,
				Password: string(hash),
				Role:     models.RoleAdmin,
			}
			if err := tx.Create(&root).Error; err != nil {
				return err
			}
			middleware.Logger.Info("root admin created", slog.String("email", email))
			return nil
		case err != nil:
			return err
		case root.Role != models.RoleAdmin:
			middleware.Logger.Info("root admin promoted", slog.String("email", email))
			return tx.Model(&root).Update("role", models.RoleAdmin).Error
		}
		return nil
	})
}
