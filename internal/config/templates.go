package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const configTemplate = `# Options Calculator Configuration

[chain]
# Chain engine: "memory" or "sqlite"
backend = "memory"
# Default underlying symbol for chain files without one
symbol = "SPY"
# Rows must strictly exceed every floor to be admitted
min_volume = 10
min_bid = 1.0
min_ask = 1.0

[screener]
# Days ahead of the as-of date to look for an expiration
target_days = 30
# Print only the best strategy per shape
top_only = true
# Target prices screened concurrently; 0 uses one worker per CPU
workers = 0

[ui]
color_enabled = true

[logging]
# Log level: debug, info, warn, error
level = "warn"
console = true
file = false
file_path = "~/.config/options-calculator/logs/optcalc.log"
# Rotation: megabytes, files kept, days kept
max_size = 20
max_backups = 3
max_age = 14
`

// createTemplateConfig writes the default config file and returns its path.
func createTemplateConfig(configDir string) (string, error) {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return "", fmt.Errorf("creating config directory: %w", err)
	}

	path := filepath.Join(configDir, "config.toml")
	if err := os.WriteFile(path, []byte(configTemplate), 0644); err != nil {
		return "", fmt.Errorf("writing config template: %w", err)
	}

	return path, nil
}
