package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("test")
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.BindAddr)
	assert.Equal(t, "3460", cfg.Port)
	assert.Equal(t, "local", cfg.Env)
	assert.Equal(t, "test", cfg.Version)
	assert.Equal(t, "localhost", cfg.Store.Host)
	assert.Equal(t, 5432, cfg.Store.Port)
	assert.Equal(t, 10, cfg.Schema.LockTimeoutSeconds)
	assert.Equal(t, "migrations", cfg.Store.MigrationsPath)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("PGHOST", "db.internal")
	t.Setenv("PGPORT", "6432")
	t.Setenv("SCHEMA_LOCK_TIMEOUT_SECONDS", "3")

	cfg, err := Load("test")
	require.NoError(t, err)

	assert.Equal(t, "db.internal", cfg.Store.Host)
	assert.Equal(t, 6432, cfg.Store.Port)
	assert.Equal(t, 3, cfg.Schema.LockTimeoutSeconds)
	assert.Equal(t, "3s", cfg.LockTimeout().String())
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("SCHEMA_LOCK_TIMEOUT_SECONDS", "0")
	_, err := Load("test")
	assert.Error(t, err)
}

func TestConnectionString(t *testing.T) {
	cfg := StoreConfig{
		Host: "localhost", Port: 5432, User: "u", Password: "p",
		Database: "d", SSLMode: "disable",
	}
	assert.Equal(t,
		"host=localhost port=5432 user=u password=p dbname=d sslmode=disable",
		cfg.ConnectionString())
}
