package store

import (
	"fmt"
	"os"
	"path/filepath"

	"studio-go/internal/config"
	"studio-go/internal/studio"
)

// NewStoreFromConfig creates a Store implementation based on the store
// config type.
func NewStoreFromConfig(cfg config.StoreConfig) (studio.Store, error) {
	switch cfg.Type {
	case "sqlite":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for sqlite store")
		}
		if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		return NewSQLiteStore(filepath.Join(cfg.DataDir, "vault.db")), nil
	case "memory":
		return NewSQLiteStore(":memory:"), nil
	default:
		return nil, fmt.Errorf("unknown store type: %s", cfg.Type)
	}
}
