// Package config provides configuration management for the options calculator.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"options-calculator/internal/chain"
	apperrors "options-calculator/internal/errors"
	"options-calculator/internal/logging"
)

// EnvPrefix prefixes environment overrides, e.g. OPTCALC_CHAIN_BACKEND.
const EnvPrefix = "OPTCALC"

// Config holds all application configuration.
type Config struct {
	Chain    ChainConfig    `mapstructure:"chain"`
	Screener ScreenerConfig `mapstructure:"screener"`
	UI       UIConfig       `mapstructure:"ui"`
	Logging  LoggingConfig  `mapstructure:"logging"`

	// Dir is the directory the configuration was loaded from.
	Dir string `mapstructure:"-"`
}

// ChainConfig selects the chain engine and its liquidity floor.
type ChainConfig struct {
	Backend   string  `mapstructure:"backend"` // "memory", "sqlite"
	Symbol    string  `mapstructure:"symbol"`
	MinVolume int64   `mapstructure:"min_volume"`
	MinBid    float64 `mapstructure:"min_bid"`
	MinAsk    float64 `mapstructure:"min_ask"`
}

// ScreenerConfig holds screener defaults.
type ScreenerConfig struct {
	TargetDays int  `mapstructure:"target_days"`
	TopOnly    bool `mapstructure:"top_only"`
	// Workers bounds concurrent target screening; 0 means one per CPU.
	Workers int `mapstructure:"workers"`
}

// UIConfig holds UI-related configuration.
type UIConfig struct {
	ColorEnabled bool `mapstructure:"color_enabled"`
}

// LoggingConfig mirrors logging.LogConfig.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Console    bool   `mapstructure:"console"`
	File       bool   `mapstructure:"file"`
	FilePath   string `mapstructure:"file_path"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/options-calculator"
	}
	return filepath.Join(home, ".config", "options-calculator")
}

func setDefaults(v *viper.Viper) {
	logDefaults := logging.DefaultLogConfig()

	v.SetDefault("chain.backend", "memory")
	v.SetDefault("chain.symbol", "SPY")
	v.SetDefault("chain.min_volume", 10)
	v.SetDefault("chain.min_bid", 1.0)
	v.SetDefault("chain.min_ask", 1.0)
	v.SetDefault("screener.target_days", 30)
	v.SetDefault("screener.top_only", true)
	v.SetDefault("screener.workers", 0)
	v.SetDefault("ui.color_enabled", true)
	v.SetDefault("logging.level", logDefaults.Level)
	v.SetDefault("logging.console", logDefaults.Console)
	v.SetDefault("logging.file", logDefaults.File)
	v.SetDefault("logging.file_path", logDefaults.FilePath)
	v.SetDefault("logging.max_size", logDefaults.MaxSize)
	v.SetDefault("logging.max_backups", logDefaults.MaxBackups)
	v.SetDefault("logging.max_age", logDefaults.MaxAge)
}

// Default returns the built-in configuration without reading any file.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	cfg := &Config{}
	_ = v.Unmarshal(cfg)
	return cfg
}

// Load loads configuration from the specified directory.
// If configDir is empty, uses the default config directory. A missing
// config.toml is created from the template and then read. A .env file in the
// same directory is loaded into the environment first.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	if err := godotenv.Load(filepath.Join(configDir, ".env")); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("loading config.toml: %w", err)
		}
		if _, err := createTemplateConfig(configDir); err != nil {
			return nil, err
		}
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("loading config.toml: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decoding config.toml: %w", err)
	}
	cfg.Dir = configDir

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Chain.Backend != "memory" && c.Chain.Backend != "sqlite" {
		return fmt.Errorf("%w: invalid chain backend: %s (must be 'memory' or 'sqlite')", apperrors.ErrConfigInvalid, c.Chain.Backend)
	}
	if c.Chain.MinVolume < 0 || c.Chain.MinBid < 0 || c.Chain.MinAsk < 0 {
		return fmt.Errorf("%w: liquidity floors must be non-negative", apperrors.ErrConfigInvalid)
	}
	if c.Screener.TargetDays < 0 {
		return fmt.Errorf("%w: target_days must be non-negative", apperrors.ErrConfigInvalid)
	}
	if c.Screener.Workers < 0 {
		return fmt.Errorf("%w: workers must be non-negative", apperrors.ErrConfigInvalid)
	}
	if !logging.ValidLevel(c.Logging.Level) {
		return fmt.Errorf("%w: invalid log level: %s", apperrors.ErrConfigInvalid, c.Logging.Level)
	}
	return nil
}

// LiquidityFilter returns the configured chain admission floor.
func (c *Config) LiquidityFilter() chain.LiquidityFilter {
	return chain.LiquidityFilter{
		MinVolume: c.Chain.MinVolume,
		MinBid:    c.Chain.MinBid,
		MinAsk:    c.Chain.MinAsk,
	}
}

// LogConfig converts the logging section for logging.NewLoggerWithConfig.
func (c *Config) LogConfig() logging.LogConfig {
	return logging.LogConfig{
		Level:      c.Logging.Level,
		Console:    c.Logging.Console,
		File:       c.Logging.File,
		FilePath:   expandHome(c.Logging.FilePath),
		MaxSize:    c.Logging.MaxSize,
		MaxBackups: c.Logging.MaxBackups,
		MaxAge:     c.Logging.MaxAge,
	}
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
