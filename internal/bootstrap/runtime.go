// Package bootstrap establishes the process-wide runtime dependencies.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"planify/internal/cache"
	"planify/internal/config"
	"planify/internal/database"
	"planify/internal/middleware"
	"planify/internal/models"
	"planify/internal/password"
	"planify/internal/repository"
	"planify/internal/validation"
)

const (
	devAdminFirstName = "Planify"
	devAdminLastName  = "Admin"
)

// InitRuntime connects to the database and Redis and, in development,
// ensures the bootstrap admin account exists. The Redis client is nil when
// Redis is unreachable.
func InitRuntime(cfg *config.Config) (*gorm.DB, *redis.Client, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("database connection failed: %w", err)
	}

	rdb := cache.Connect(cfg.RedisURL)

	repo := repository.NewUserRepository(db, cfg.DBQueryTimeout)
	hasher := password.NewHasher(cfg.BcryptCost, cfg.HashMaxConcurrency)
	if err := EnsureDevAdmin(context.Background(), cfg, repo, hasher); err != nil {
		_ = database.Close(db)
		if rdb != nil {
			_ = rdb.Close()
		}
		return nil, nil, fmt.Errorf("failed to bootstrap development admin: %w", err)
	}

	return db, rdb, nil
}

// EnsureDevAdmin creates or promotes the development admin account when
// DEV_BOOTSTRAP_ADMIN is set in the development environment. Elsewhere it
// does nothing.
func EnsureDevAdmin(ctx context.Context, cfg *config.Config, repo repository.UserRepository, hasher *password.Hasher) error {
	if cfg == nil || !cfg.IsDevelopment() || !cfg.DevBootstrapAdmin {
		return nil
	}

	email := models.NormalizeEmail(cfg.DevAdminEmail)
	if email == "" {
		email = "admin@planify.local"
	}
	if strings.TrimSpace(cfg.DevAdminPassword) == "" {
		return errors.New("DEV_ADMIN_PASSWORD must be set when DEV_BOOTSTRAP_ADMIN is enabled")
	}
	if !validation.StrongPassword(cfg.DevAdminPassword) {
		return errors.New("DEV_ADMIN_PASSWORD must contain an uppercase letter, a lowercase letter and a number")
	}

	existing, err := repo.FindByEmail(ctx, email, false)
	if err != nil {
		return err
	}

	if existing == nil {
		digest, err := hasher.Hash(ctx, cfg.DevAdminPassword)
		if err != nil {
			return fmt.Errorf("hash admin password: %w", err)
		}
		admin := models.NewUser(email, devAdminFirstName, devAdminLastName, models.RoleAdmin)
		admin.PasswordHash = digest
		admin.IsEmailVerified = true
		if err := repo.Create(ctx, admin); err != nil {
			return err
		}
		middleware.Logger.InfoContext(ctx, "development admin created", slog.String("email", email), slog.Uint64("user_id", uint64(admin.ID)))
		return nil
	}

	if existing.Role == models.RoleAdmin && existing.CanAuthenticate() {
		return nil
	}
	existing.Role = models.RoleAdmin
	existing.IsActive = true
	existing.IsBlocked = false
	if err := repo.Save(ctx, existing); err != nil {
		return err
	}
	middleware.Logger.InfoContext(ctx, "development admin restored", slog.String("email", email), slog.Uint64("user_id", uint64(existing.ID)))
	return nil
}
