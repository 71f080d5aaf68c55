package backup

import (
	"context"
	"fmt"
	"io"
	"os"

	"studio-go/internal/config"
	"studio-go/internal/studio"
)

// NewTargetFromConfig creates a BackupTarget implementation based on
// the backup config type. Type "none" returns a target that rejects
// every operation, so misconfiguration surfaces at the first backup
// attempt instead of silently discarding data.
func NewTargetFromConfig(ctx context.Context, cfg config.BackupConfig) (studio.BackupTarget, error) {
	switch cfg.Type {
	case "", "none":
		return noneTarget{}, nil
	case "memory":
		return NewMemoryTarget(), nil
	case "filesystem":
		if cfg.FSRoot == "" {
			return nil, fmt.Errorf("filesystem backup requires fs_root to be set")
		}
		return NewFileSystemTarget(cfg.FSRoot)
	case "s3":
		return NewS3Target(ctx, S3Options{
			Bucket:          cfg.S3Bucket,
			Prefix:          cfg.S3Prefix,
			Region:          cfg.S3Region,
			AccessKeyID:     os.Getenv("AWS_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
		})
	default:
		return nil, fmt.Errorf("unknown backup type: %s", cfg.Type)
	}
}

type noneTarget struct{}

func (noneTarget) PutSnapshot(name string, r io.Reader, size int64, version int64) error {
	return fmt.Errorf("no backup target configured")
}

func (noneTarget) GetSnapshot(name string, w io.Writer) error {
	return fmt.Errorf("no backup target configured")
}

func (noneTarget) SnapshotVersion(name string) (int64, error) {
	return 0, nil
}

func (noneTarget) ValidateSetup() error {
	return fmt.Errorf("no backup target configured")
}
