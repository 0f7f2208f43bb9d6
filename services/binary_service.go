package services

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"sync"

	"kairo-keeper/internal/config"
	"kairo-keeper/internal/download"
	"kairo-keeper/internal/env"
	"kairo-keeper/internal/extract"
	"kairo-keeper/internal/logger"
	"kairo-keeper/internal/models"
	"kairo-keeper/internal/platform"
	"kairo-keeper/internal/release"
)

// BinaryStore persists the installed binary between runs.
type BinaryStore interface {
	Load() (config.BinaryConfig, error)
	Save(path, version string) error
}

type configStore struct{}

func (configStore) Load() (config.BinaryConfig, error) { return config.InstalledBinary() }
func (configStore) Save(path, version string) error  { return config.SaveInstalledBinary(path, version) }

/**
 * BinaryService owns the installed tunnel client
 * @description
 * - Ensure reuses a recorded executable and only acquires when it is missing
 * - Acquire always runs the pipeline and records the result
 * - Only one acquisition runs at a time
 */
type BinaryService struct {
	pipeline *AcquisitionPipeline
	store    BinaryStore
	mu       sync.Mutex
}

func NewBinaryService(pipeline *AcquisitionPipeline, store BinaryStore) *BinaryService {
	if store == nil {
		store = configStore{}
	}
	return &BinaryService{pipeline: pipeline, store: store}
}

/**
 * Build a BinaryService from the application configuration
 * @param {*config.AppConfig} cfg - Loaded configuration
 * @returns {*BinaryService} Service installing into <KairoDir>/bin
 * @returns {error} Error if the install directory cannot be created
 */
func NewBinaryServiceFromConfig(cfg *config.AppConfig) (*BinaryService, error) {
	binDir, err := env.EnsureDir("bin")
	if err != nil {
		return nil, fmt.Errorf("create bin dir: %w", err)
	}
	tmpDir, err := env.EnsureDir("tmp")
	if err != nil {
		return nil, fmt.Errorf("create tmp dir: %w", err)
	}

	client := &http.Client{Timeout: cfg.Download.Timeout}
	pipeline := NewAcquisitionPipeline(
		release.NewResolver(client, cfg.Release.PrimaryURL, cfg.Release.MirrorURL),
		download.NewDownloader(client, cfg.Download.ChunkSize, cfg.Download.ProgressInterval),
		extract.NewExtractor(),
		AcquisitionOptions{
			Product:            cfg.Release.Product,
			BinaryName:         cfg.Release.BinaryName,
			InstallDir:         binDir,
			TempDir:            tmpDir,
			Platform:           platform.Detect(),
			UseMirror:          cfg.Release.UseMirror,
			MirrorDownloadBase: cfg.Release.MirrorDownloadBase,
			Attempts:           cfg.Download.Attempts,
			RetryDelay:         cfg.Download.RetryDelay,
		})
	return NewBinaryService(pipeline, nil), nil
}

// Installed returns the recorded binary if its file still exists.
func (s *BinaryService) Installed() (models.InstalledBinary, bool) {
	rec, err := s.store.Load()
	if err != nil || rec.Path == "" {
		return models.InstalledBinary{}, false
	}
	if err := validateBinary(rec.Path); err != nil {
		logger.Warnf("Recorded binary is unusable: %v", err)
		return models.InstalledBinary{}, false
	}
	return models.InstalledBinary{AbsolutePath: rec.Path, Version: rec.Version}, true
}

/**
 * Make sure a usable tunnel client exists
 * @param {context.Context} ctx - Cancellation signal
 * @param {StatusFunc} onStatus - Stage messages, may be nil
 * @param {ProgressFunc} onProgress - Download progress, may be nil
 * @returns {models.InstalledBinary} Recorded or freshly installed binary
 * @returns {error} Acquisition error
 */
func (s *BinaryService) Ensure(ctx context.Context, onStatus StatusFunc, onProgress ProgressFunc) (models.InstalledBinary, error) {
	if bin, ok := s.Installed(); ok {
		return bin, nil
	}
	return s.Acquire(ctx, onStatus, onProgress)
}

// Acquire runs the pipeline and records the result.
func (s *BinaryService) Acquire(ctx context.Context, onStatus StatusFunc, onProgress ProgressFunc) (models.InstalledBinary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	bin, err := s.pipeline.AcquireBinary(ctx, onStatus, onProgress)
	if err != nil {
		return bin, err
	}
	if err := s.store.Save(bin.AbsolutePath, bin.Version); err != nil {
		logger.Warnf("Failed to record installed binary: %v", err)
		bin.Warnings = append(bin.Warnings, fmt.Sprintf("record installed binary: %v", err))
	}
	return bin, nil
}

// UpgradeCheck compares the installed version with the latest release.
type UpgradeCheck struct {
	Installed string `json:"installed"`
	Latest    string `json:"latest"`
	Upgrade   bool   `json:"upgrade"`
}

func (s *BinaryService) Check(ctx context.Context) (UpgradeCheck, error) {
	_, latest, err := s.pipeline.Latest(ctx)
	if err != nil {
		return UpgradeCheck{}, err
	}
	check := UpgradeCheck{Latest: latest}
	if bin, ok := s.Installed(); ok {
		check.Installed = bin.Version
	}
	check.Upgrade = release.IsNewer(check.Installed, latest)
	return check, nil
}

// Remove deletes the installed executable. Missing files are not an error.
func (s *BinaryService) Remove() error {
	bin, ok := s.Installed()
	if !ok {
		return nil
	}
	if err := os.Remove(bin.AbsolutePath); err != nil && !os.IsNotExist(err) {
		return err
	}
	return s.store.Save("", "")
}
