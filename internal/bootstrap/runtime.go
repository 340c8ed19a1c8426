// Package bootstrap wires the database, schema and Redis together at process start.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"murmur/internal/cache"
	"murmur/internal/config"
	"murmur/internal/database"
	"murmur/internal/middleware"
	"murmur/internal/models"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// InitRuntime connects to the database, brings the schema up to date and
// connects to Redis. The returned Redis client is nil when Redis is unreachable.
func InitRuntime(ctx context.Context, cfg *config.Config) (*gorm.DB, *redis.Client, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("database connection failed: %w", err)
	}

	if err := database.ApplySchema(ctx, db, cfg); err != nil {
		return nil, nil, fmt.Errorf("apply schema: %w", err)
	}

	cache.InitRedis(cfg.RedisURL)
	r := cache.GetClient()

	if err := EnsureDevRoot(ctx, cfg, db); err != nil {
		return nil, nil, fmt.Errorf("failed to bootstrap development root user: %w", err)
	}

	return db, r, nil
}

// EnsureDevRoot upserts the development superuser described by the DEV_ROOT_*
// settings. It does nothing outside development or when DEV_BOOTSTRAP_ROOT is off.
// An existing account is promoted; its credentials are only reset when
// DEV_ROOT_FORCE_CREDENTIALS is set.
func EnsureDevRoot(ctx context.Context, cfg *config.Config, db *gorm.DB) error {
	if cfg == nil || db == nil {
		return nil
	}
	if !strings.EqualFold(cfg.Env, "development") || !cfg.DevBootstrapRoot {
		return nil
	}

	username := strings.TrimSpace(cfg.DevRootUsername)
	if username == "" {
		username = "murmur_root"
	}
	email := strings.TrimSpace(strings.ToLower(cfg.DevRootEmail))
	if email == "" {
		email = "root@murmur.local"
	}
	password := cfg.DevRootPassword
	if password == "" {
		return errors.New("DEV_ROOT_PASSWORD must be set when DEV_BOOTSTRAP_ROOT is enabled")
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash root password: %w", err)
	}

	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var root models.User
		findErr := tx.Where("email = ?", email).First(&root).Error
		switch {
		case errors.Is(findErr, gorm.ErrRecordNotFound):
			root = models.User{
				Email:       email,
				Username:    models.StringPtr(username),
				Password:    string(hashedPassword),
				IsActive:    true,
				IsStaff:     true,
				IsSuperuser: true,
			}
			return tx.Create(&root).Error
		case findErr != nil:
			return findErr
		}

		updates := map[string]any{"is_active": true, "is_staff": true, "is_superuser": true}
		if cfg.DevRootForceCredentials {
			updates["username"] = username
			updates["password"] = string(hashedPassword)
		}
		return tx.Model(&models.User{}).Where("id = ?", root.ID).Updates(updates).Error
	})
	if err != nil {
		return err
	}

	middleware.Logger.InfoContext(ctx, "development root user ensured", "email", email)
	return nil
}
