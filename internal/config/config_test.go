package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"options-calculator/internal/chain"
	apperrors "options-calculator/internal/errors"
)

func writeConfig(t *testing.T, dir, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte(body), 0644))
}

func TestLoad_CreatesTemplateOnFirstRun(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "optcalc")

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, "config.toml"))
	assert.Equal(t, dir, cfg.Dir)

	def := Default()
	assert.Equal(t, def.Chain, cfg.Chain)
	assert.Equal(t, def.Screener, cfg.Screener)
	assert.Equal(t, def.UI, cfg.UI)
	assert.Equal(t, def.Logging.Level, cfg.Logging.Level)

	// Second load reads the file that was just written.
	again, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, cfg.Chain, again.Chain)
}

func TestLoad_FileValues(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `
[chain]
backend = "sqlite"
symbol = "QQQ"
min_volume = 0

[screener]
target_days = 45
`)

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Chain.Backend)
	assert.Equal(t, "QQQ", cfg.Chain.Symbol)
	assert.Equal(t, int64(0), cfg.Chain.MinVolume)
	assert.Equal(t, 1.0, cfg.Chain.MinBid)
	assert.Equal(t, 45, cfg.Screener.TargetDays)
	assert.True(t, cfg.Screener.TopOnly)
}

func TestLoad_EnvOverrides(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "[chain]\nbackend = \"memory\"\n")
	t.Setenv("OPTCALC_CHAIN_BACKEND", "sqlite")
	t.Setenv("OPTCALC_LOGGING_LEVEL", "debug")

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Chain.Backend)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "")
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("OPTCALC_SCREENER_TARGET_DAYS=60\n"), 0644))
	t.Cleanup(func() { os.Unsetenv("OPTCALC_SCREENER_TARGET_DAYS") })

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 60, cfg.Screener.TargetDays)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		invalid bool
	}{
		{"unknown backend", "[chain]\nbackend = \"postgres\"\n", true},
		{"bad log level", "[logging]\nlevel = \"loud\"\n", true},
		{"malformed toml", "[chain\nbackend = 1\n", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeConfig(t, dir, tt.body)
			_, err := Load(dir)
			require.Error(t, err)
			assert.Equal(t, tt.invalid, apperrors.Is(err, apperrors.ErrConfigInvalid))
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"sqlite backend", func(c *Config) { c.Chain.Backend = "sqlite" }, false},
		{"empty backend", func(c *Config) { c.Chain.Backend = "" }, true},
		{"negative volume floor", func(c *Config) { c.Chain.MinVolume = -1 }, true},
		{"negative bid floor", func(c *Config) { c.Chain.MinBid = -0.5 }, true},
		{"negative target days", func(c *Config) { c.Screener.TargetDays = -1 }, true},
		{"negative workers", func(c *Config) { c.Screener.Workers = -2 }, true},
		{"unknown level", func(c *Config) { c.Logging.Level = "verbose" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, apperrors.ErrConfigInvalid)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLiquidityFilter(t *testing.T) {
	cfg := Default()
	assert.Equal(t, chain.DefaultLiquidity(), cfg.LiquidityFilter())
}

func TestLogConfig_ExpandsHome(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	cfg := Default()
	cfg.Logging.FilePath = "~/logs/optcalc.log"
	assert.Equal(t, filepath.Join(home, "logs", "optcalc.log"), cfg.LogConfig().FilePath)

	cfg.Logging.FilePath = "/var/log/optcalc.log"
	assert.Equal(t, "/var/log/optcalc.log", cfg.LogConfig().FilePath)
}
