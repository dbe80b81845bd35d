package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// InitConfig writes cfg to the default configuration file location,
// refusing to overwrite an existing file unless force is set.
func InitConfig(cfg *Config, force bool) (string, error) {
	return InitConfigToPath(cfg, GetDefaultConfigPath(), force)
}

// InitConfigToPath writes cfg to path, refusing to overwrite an existing
// file unless force is set.
func InitConfigToPath(cfg *Config, path string, force bool) (string, error) {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return "", fmt.Errorf("configuration file already exists at %s (use --force to overwrite)", path)
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := SaveConfig(cfg, path); err != nil {
		return "", err
	}
	return path, nil
}
