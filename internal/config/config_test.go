package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Empty(t, cfg.DatabaseDSN)
	assert.Empty(t, cfg.RulesPath)
	assert.True(t, cfg.ParallelCompile)
	assert.True(t, cfg.Prefilter)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("RULEGATE_ADDR", "127.0.0.1:9999")
	t.Setenv("RULEGATE_DB_DSN", "postgres://localhost/rulegate?sslmode=disable")
	t.Setenv("RULEGATE_RULES_PATH", "/etc/rulegate/rules")
	t.Setenv("RULEGATE_PARALLEL_COMPILE", "false")
	t.Setenv("RULEGATE_PREFILTER", "false")
	t.Setenv("RULEGATE_LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9999", cfg.Addr)
	assert.Equal(t, "postgres://localhost/rulegate?sslmode=disable", cfg.DatabaseDSN)
	assert.Equal(t, "/etc/rulegate/rules", cfg.RulesPath)
	assert.False(t, cfg.ParallelCompile)
	assert.False(t, cfg.Prefilter)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoad_BadBool(t *testing.T) {
	t.Setenv("RULEGATE_PREFILTER", "definitely")

	_, err := Load()
	assert.Error(t, err)
}
