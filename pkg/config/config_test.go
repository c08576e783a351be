package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, int64(0), cfg.Seed)
	assert.False(t, cfg.Adaptive)
	assert.Equal(t, 0.3, cfg.ChainProbability)
	assert.Equal(t, 2, cfg.MaxRevisits)
	assert.Equal(t, "the victim", cfg.GenericSubject)
	assert.Equal(t, "ehbo.db", cfg.HistoryDB)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("EHBO_SEED", "42")
	t.Setenv("EHBO_ADAPTIVE", "true")
	t.Setenv("EHBO_CHAIN_PROBABILITY", "1")
	t.Setenv("EHBO_LOG_LEVEL", "debug")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, int64(42), cfg.Seed)
	assert.True(t, cfg.Adaptive)
	assert.Equal(t, 1.0, cfg.ChainProbability)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoad_DotEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("EHBO_PROFILE=anna\nEHBO_MAX_REVISITS=3\n"), 0o644))
	t.Cleanup(func() {
		os.Unsetenv("EHBO_PROFILE")
		os.Unsetenv("EHBO_MAX_REVISITS")
	})

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "anna", cfg.ProfileID)
	assert.Equal(t, 3, cfg.MaxRevisits)
}

func TestLoad_RejectsOutOfRange(t *testing.T) {
	t.Setenv("EHBO_CHAIN_PROBABILITY", "1.5")
	t.Setenv("EHBO_MAX_REVISITS", "0")

	_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CHAIN_PROBABILITY")
	assert.Contains(t, err.Error(), "MAX_REVISITS")
}
