package database

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"planify/internal/config"
	"planify/internal/models"
)

func sqliteConfig() *config.Config {
	return &config.Config{
		Env:            "test",
		DBDriver:       "sqlite",
		DatabaseURL:    "file::memory:",
		DBAutoMigrate:  true,
		DBMaxOpenConns: 10,
	}
}

func TestConnect_SQLiteMigrates(t *testing.T) {
	db, err := Connect(sqliteConfig())
	require.NoError(t, err)
	defer Close(db)

	assert.True(t, db.Migrator().HasTable(&models.User{}))
	assert.True(t, db.Migrator().HasIndex(&models.User{}, "Email"))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	assert.Equal(t, 1, sqlDB.Stats().MaxOpenConnections)

	assert.NoError(t, Ping(context.Background(), db, time.Second))
}

func TestConnect_SkipsMigrationWhenDisabled(t *testing.T) {
	cfg := sqliteConfig()
	cfg.DBAutoMigrate = false

	db, err := Connect(cfg)
	require.NoError(t, err)
	defer Close(db)

	assert.False(t, db.Migrator().HasTable(&models.User{}))
	require.NoError(t, Migrate(db))
	assert.True(t, db.Migrator().HasTable(&models.User{}))
}

func TestGormLogger_ParamsFilterDropsValues(t *testing.T) {
	l := NewGormLogger(nil)
	sql, params := l.ParamsFilter(context.Background(), "SELECT 1 WHERE password_hash = ?", "$2a$12$secret")
	assert.Equal(t, "SELECT 1 WHERE password_hash = ?", sql)
	assert.Nil(t, params)
}

func TestClose_Nil(t *testing.T) {
	assert.NoError(t, Close(nil))
}
