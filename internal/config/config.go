// Package config reads and writes the studio's TOML configuration.
package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config represents the main configuration for the studio.
type Config struct {
	BaseDir    string           `toml:"base_dir"`
	LogDir     string           `toml:"log_dir"`
	Store      StoreConfig      `toml:"store"`
	Backup     BackupConfig     `toml:"backup"`
	Encryption EncryptionConfig `toml:"encryption"`
	Proxy      ProxyConfig      `toml:"proxy"`
	Server     ServerConfig     `toml:"server"`
	History    HistoryConfig    `toml:"history"`
}

// StoreConfig configures the asset vault. This uses a tagged union
// pattern - the Type field determines which other fields are relevant.
type StoreConfig struct {
	Type    string `toml:"type"`               // "sqlite" or "memory"
	DataDir string `toml:"data_dir,omitempty"` // only used for type=sqlite
}

// BackupConfig configures where vault snapshots are kept. Tagged union
// on Type.
type BackupConfig struct {
	Type string `toml:"type"` // "none", "filesystem", or "s3"
	Name string `toml:"name"` // snapshot name; defaults to "vault"

	// S3-specific fields (only used when Type == "s3")
	S3Bucket string `toml:"s3_bucket,omitempty"`
	S3Prefix string `toml:"s3_prefix,omitempty"`
	S3Region string `toml:"s3_region,omitempty"`

	// Filesystem-specific fields (only used when Type == "filesystem")
	FSRoot string `toml:"fs_root,omitempty"`
}

// EncryptionConfig configures snapshot encryption.
type EncryptionConfig struct {
	Type string `toml:"type"` // "age" or "none"
}

// ProxyConfig points at the OpenAI-compatible generation proxy.
type ProxyConfig struct {
	BaseURL     string `toml:"base_url"`
	APIKey      string `toml:"api_key,omitempty"`
	VisionModel string `toml:"vision_model,omitempty"`
}

// ServerConfig configures the local HTTP server.
type ServerConfig struct {
	Addr string `toml:"addr"`
}

// HistoryConfig bounds the history projection.
type HistoryConfig struct {
	Limit int `toml:"limit"` // max records shown; defaults to 100
}

// NewConfig creates a Config with sensible defaults rooted at baseDir.
func NewConfig(baseDir string) *Config {
	return &Config{
		BaseDir: baseDir,
		LogDir:  filepath.Join(baseDir, "log"),
		Store: StoreConfig{
			Type:    "sqlite",
			DataDir: filepath.Join(baseDir, "data"),
		},
		Backup: BackupConfig{
			Type:   "filesystem",
			Name:   "vault",
			FSRoot: filepath.Join(baseDir, "backups"),
		},
		Encryption: EncryptionConfig{
			Type: "age",
		},
		Proxy: ProxyConfig{
			BaseURL: "http://localhost:8317/v1",
			APIKey:  "proxypal-local",
		},
		Server: ServerConfig{
			Addr: "localhost:8787",
		},
		History: HistoryConfig{
			Limit: 100,
		},
	}
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

// writeToFile writes a Config to the specified file path.
func writeToFile(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init initializes a new config file at the specified path with the provided Config.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
