// Package app is the application layer between the CLI/server and the
// studio service. It constructs all dependencies from config and
// manages their lifecycle on Close.
package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"studio-go/internal/backup"
	"studio-go/internal/client"
	"studio-go/internal/codec"
	"studio-go/internal/config"
	"studio-go/internal/encryption"
	"studio-go/internal/staging"
	"studio-go/internal/store"
	"studio-go/internal/studio"
)

// StudioApp wires config into a ready-to-use StudioService plus the
// vault backup machinery around it.
type StudioApp struct {
	cfg       *config.Config
	store     studio.Store
	codec     *codec.Codec
	backup    studio.BackupTarget
	encryptor studio.Encryptor
	service   *studio.StudioService
	logger    studio.Logger
	logFile   *os.File
}

// NewStudioApp creates a fully wired StudioApp from the given config.
// operation identifies the command being run (e.g. "Serve", "Generate").
// notifier receives change events; pass studio.NopNotifier{} when no
// push channel exists. The caller must call Close when done.
func NewStudioApp(cfg *config.Config, operation string, notifier studio.Notifier) (*StudioApp, error) {
	opID := time.Now().UTC().Format("20060102T150405Z")
	logger, logFile, err := newLogger(cfg.LogDir, opID)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	log := &slogAdapter{l: logger}

	st, err := store.NewStoreFromConfig(cfg.Store)
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("creating store: %w", err)
	}

	target, err := backup.NewTargetFromConfig(context.Background(), cfg.Backup)
	if err != nil {
		st.Close()
		logFile.Close()
		return nil, fmt.Errorf("creating backup target: %w", err)
	}

	enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
	if err != nil {
		st.Close()
		logFile.Close()
		return nil, fmt.Errorf("creating encryptor: %w", err)
	}

	cdc := codec.New()
	proxy := client.NewProxyClient(cfg.Proxy.BaseURL, cfg.Proxy.APIKey, cfg.Proxy.VisionModel, log)
	area := staging.NewArea(cdc, proxy, log, studio.UUIDGenerator{})

	historyCap := cfg.History.Limit
	if historyCap <= 0 {
		historyCap = studio.DefaultHistoryCap
	}

	svc := studio.NewStudioService(
		st, area, cdc,
		proxy, proxy, proxy,
		notifier, log,
		studio.RealClock{}, studio.UUIDGenerator{},
		historyCap,
	)

	log.Info("studio initialized", "operation", operation, "store", cfg.Store.Type)

	return &StudioApp{
		cfg:       cfg,
		store:     st,
		codec:     cdc,
		backup:    target,
		encryptor: enc,
		service:   svc,
		logger:    log,
		logFile:   logFile,
	}, nil
}

// Service returns the wired studio service.
func (a *StudioApp) Service() *studio.StudioService { return a.service }

// Codec returns the shared binary asset codec.
func (a *StudioApp) Codec() *codec.Codec { return a.codec }

// Logger returns the application logger.
func (a *StudioApp) Logger() studio.Logger { return a.logger }

// Encryptor returns the configured encryptor.
func (a *StudioApp) Encryptor() studio.Encryptor { return a.encryptor }

// snapshotName returns the configured backup snapshot name.
func (a *StudioApp) snapshotName() string {
	if a.cfg.Backup.Name != "" {
		return a.cfg.Backup.Name
	}
	return "vault"
}

// BackupVault snapshots the store and uploads it to the backup target.
// When passphrase is non-empty the snapshot is encrypted before upload.
func (a *StudioApp) BackupVault(passphrase string) error {
	if err := a.backup.ValidateSetup(); err != nil {
		return fmt.Errorf("backup target not usable: %w", err)
	}

	tmp, err := os.CreateTemp("", "studio-vault-*.db")
	if err != nil {
		return fmt.Errorf("creating temp snapshot: %w", err)
	}
	tmpPath := tmp.Name()
	tmp.Close()
	os.Remove(tmpPath) // VACUUM INTO requires the destination to not exist
	defer os.Remove(tmpPath)

	if err := a.store.SnapshotTo(tmpPath); err != nil {
		return fmt.Errorf("snapshotting vault: %w", err)
	}

	uploadPath := tmpPath
	if passphrase != "" {
		encPath := tmpPath + ".age"
		defer os.Remove(encPath)
		if err := a.encryptFile(tmpPath, encPath, passphrase); err != nil {
			return err
		}
		uploadPath = encPath
	}

	f, err := os.Open(uploadPath)
	if err != nil {
		return fmt.Errorf("opening snapshot for upload: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat snapshot: %w", err)
	}

	version := time.Now().UnixMilli()
	if err := a.backup.PutSnapshot(a.snapshotName(), f, info.Size(), version); err != nil {
		return fmt.Errorf("uploading snapshot: %w", err)
	}

	a.logger.Info("vault backed up", "name", a.snapshotName(), "version", version, "bytes", info.Size())
	return nil
}

// RestoreVault downloads the latest snapshot from the backup target and
// replaces the local store with it. The store connection is reopened on
// the next operation.
func (a *StudioApp) RestoreVault(passphrase string) error {
	if a.cfg.Store.Type != "sqlite" || a.cfg.Store.DataDir == "" {
		return fmt.Errorf("restore requires a sqlite store with a data_dir")
	}

	tmp, err := os.CreateTemp("", "studio-restore-*.db")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if err := a.backup.GetSnapshot(a.snapshotName(), tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("downloading snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing snapshot: %w", err)
	}

	restorePath := tmpPath
	if passphrase != "" {
		plainPath := tmpPath + ".plain"
		defer os.Remove(plainPath)
		if err := a.decryptFile(tmpPath, plainPath, passphrase); err != nil {
			return err
		}
		restorePath = plainPath
	}

	if err := a.store.Close(); err != nil {
		return fmt.Errorf("closing store before restore: %w", err)
	}

	dbPath := filepath.Join(a.cfg.Store.DataDir, "vault.db")
	if err := copyFile(restorePath, dbPath); err != nil {
		return fmt.Errorf("installing restored vault: %w", err)
	}

	a.logger.Info("vault restored", "name", a.snapshotName(), "path", dbPath)
	return nil
}

func (a *StudioApp) encryptFile(srcPath, destPath, passphrase string) error {
	src, err := os.Open(srcPath)
	if err != nil {
		return fmt.Errorf("opening snapshot: %w", err)
	}
	defer src.Close()

	dest, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("creating encrypted snapshot: %w", err)
	}
	defer dest.Close()

	w, err := a.encryptor.Encrypt(dest, passphrase)
	if err != nil {
		return fmt.Errorf("starting encryption: %w", err)
	}
	if _, err := io.Copy(w, src); err != nil {
		return fmt.Errorf("encrypting snapshot: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalizing encryption: %w", err)
	}
	return nil
}

func (a *StudioApp) decryptFile(srcPath, destPath, passphrase string) error {
	src, err := os.Open(srcPath)
	if err != nil {
		return fmt.Errorf("opening encrypted snapshot: %w", err)
	}
	defer src.Close()

	r, err := a.encryptor.Decrypt(src, passphrase)
	if err != nil {
		return fmt.Errorf("starting decryption: %w", err)
	}

	dest, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("creating decrypted snapshot: %w", err)
	}
	defer dest.Close()

	if _, err := io.Copy(dest, r); err != nil {
		return fmt.Errorf("decrypting snapshot: %w", err)
	}
	return nil
}

func copyFile(srcPath, destPath string) error {
	src, err := os.Open(srcPath)
	if err != nil {
		return err
	}
	defer src.Close()

	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return err
	}

	dest, err := os.Create(destPath)
	if err != nil {
		return err
	}
	defer dest.Close()

	if _, err := io.Copy(dest, src); err != nil {
		return err
	}
	return dest.Sync()
}

// Close releases all resources held by the app.
func (a *StudioApp) Close() error {
	var firstErr error

	if err := a.service.Close(); err != nil {
		firstErr = fmt.Errorf("closing service: %w", err)
	}

	if a.logFile != nil {
		a.logFile.Close()
	}

	return firstErr
}
