package app

import (
	"fmt"
	"os"
	"path/filepath"
)

// GetDefaults returns application default paths, checking environment
// variables first.
// Environment variables:
//   - STUDIO_CONFIG_PATH: config file location (default: ~/.config/studio.toml)
//   - STUDIO_HOME: base directory for studio data (default: ~/.local/share/studio)
func GetDefaults() (map[string]string, error) {
	configPath, err := getConfigPath()
	if err != nil {
		return nil, err
	}

	baseDir, err := getBaseDir()
	if err != nil {
		return nil, err
	}

	return map[string]string{
		"config_path": configPath,
		"base_dir":    baseDir,
		"log_dir":     filepath.Join(baseDir, "log"),
	}, nil
}

// getConfigPath returns the config file path, checking STUDIO_CONFIG_PATH
// first, then falling back to the default ~/.config/studio.toml.
func getConfigPath() (string, error) {
	if path := os.Getenv("STUDIO_CONFIG_PATH"); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "studio.toml"), nil
}

// getBaseDir returns the base directory for studio data, checking
// STUDIO_HOME first, then falling back to the XDG default
// ~/.local/share/studio.
func getBaseDir() (string, error) {
	if path := os.Getenv("STUDIO_HOME"); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".local", "share", "studio"), nil
}
