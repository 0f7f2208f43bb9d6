package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"kairo-keeper/internal/checksum"
	"kairo-keeper/internal/download"
	"kairo-keeper/internal/extract"
	"kairo-keeper/internal/logger"
	"kairo-keeper/internal/models"
	"kairo-keeper/internal/platform"
	"kairo-keeper/internal/release"

	"github.com/cenkalti/backoff/v3"
	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
)

const (
	DefaultAttempts   = 3
	DefaultRetryDelay = 1500 * time.Millisecond
	maxChecksumBytes  = 1 << 20
)

// StatusFunc receives human-readable stage messages.
type StatusFunc func(text string)

// ProgressFunc receives download progress; total is -1 when unknown.
type ProgressFunc func(received, total int64, bytesPerSec float64)

/**
 * AcquisitionOptions configures an AcquisitionPipeline
 * @property {string} Product - Product name in asset file names
 * @property {string} BinaryName - Executable name inside the archive, without suffix
 * @property {string} InstallDir - Directory receiving the stable executable
 * @property {string} TempDir - Parent of per-run work directories, os.TempDir() when empty
 * @property {platform.Info} Platform - Host platform
 * @property {bool} UseMirror - Rebuild download URLs on MirrorDownloadBase
 * @property {int} Attempts - Download/verify attempts, DefaultAttempts when zero
 * @property {time.Duration} RetryDelay - Pause between attempts, DefaultRetryDelay when zero
 */
type AcquisitionOptions struct {
	Product            string
	BinaryName         string
	InstallDir         string
	TempDir            string
	Platform           platform.Info
	UseMirror          bool
	MirrorDownloadBase string
	Attempts           int
	RetryDelay         time.Duration
}

// AcquisitionPipeline fetches, verifies and installs the tunnel client.
type AcquisitionPipeline struct {
	resolver   *release.Resolver
	downloader *download.Downloader
	extractor  *extract.Extractor
	opts       AcquisitionOptions
}

func NewAcquisitionPipeline(resolver *release.Resolver, downloader *download.Downloader, extractor *extract.Extractor, opts AcquisitionOptions) *AcquisitionPipeline {
	if opts.Attempts <= 0 {
		opts.Attempts = DefaultAttempts
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = DefaultRetryDelay
	}
	if opts.TempDir == "" {
		opts.TempDir = os.TempDir()
	}
	return &AcquisitionPipeline{resolver: resolver, downloader: downloader, extractor: extractor, opts: opts}
}

// Latest resolves the newest release and the version it carries.
func (p *AcquisitionPipeline) Latest(ctx context.Context) (*models.Release, string, error) {
	rel, err := p.resolver.Latest(ctx)
	if err != nil {
		return nil, "", err
	}
	return rel, release.ParseVersion(rel.TagName), nil
}

// InstallPath is where the executable ends up.
func (p *AcquisitionPipeline) InstallPath() string {
	return filepath.Join(p.opts.InstallDir, p.opts.Platform.ExecutableName(p.opts.BinaryName))
}

/**
 * Download, verify and install the latest tunnel client
 * @param {context.Context} ctx - Cancellation signal shared by every stage
 * @param {StatusFunc} onStatus - Stage messages, may be nil
 * @param {ProgressFunc} onProgress - Throttled download progress, may be nil
 * @returns {models.InstalledBinary} Installed executable and version
 * @returns {error} One of the acquisition errors in models, ErrCancelled on cancellation
 * @description
 * - Stages: fetching metadata, downloading, verifying, extracting, done
 * - Download plus verification is retried as one unit; the partial file is
 *   deleted before every attempt
 * - Nothing is installed unless verification passed or was skipped
 *   because the release publishes no checksum
 * - A checksum file without a usable digest fails the attempt like a mismatch
 * - The per-run work directory is removed at the end; a failed cleanup or chmod
 *   is reported in Warnings, not as an error
 */
func (p *AcquisitionPipeline) AcquireBinary(ctx context.Context, onStatus StatusFunc, onProgress ProgressFunc) (result models.InstalledBinary, err error) {
	status := func(format string, args ...interface{}) {
		msg := fmt.Sprintf(format, args...)
		logger.Info(msg)
		if onStatus != nil {
			onStatus(msg)
		}
	}
	defer func() {
		RecordAcquisition(acquisitionResult(err))
	}()

	status("Fetching release metadata")
	rel, ver, err := p.Latest(ctx)
	if err != nil {
		return result, err
	}
	asset, err := release.SelectAsset(rel.Assets, p.opts.Product, ver, p.opts.Platform)
	if err != nil {
		return result, err
	}
	sumAsset, hasSum := release.FindChecksumAsset(rel.Assets, asset)
	assetURL, sumURL := asset.BrowserDownloadUrl, sumAsset.BrowserDownloadUrl
	if p.opts.UseMirror && p.opts.MirrorDownloadBase != "" {
		assetURL = release.MirrorURL(p.opts.MirrorDownloadBase, rel, asset)
		if hasSum {
			sumURL = release.MirrorURL(p.opts.MirrorDownloadBase, rel, sumAsset)
		}
	}
	if assetURL == "" {
		return result, fmt.Errorf("%w: asset %s has no download URL", models.ErrDownloadFailed, asset.Name)
	}
	logger.Infof("Selected asset %s for %s (release %s)", asset.Name, p.opts.Platform.Tag(), rel.TagName)

	workDir := filepath.Join(p.opts.TempDir, "kairo-acquire-"+uuid.NewString())
	if err := os.MkdirAll(workDir, 0755); err != nil {
		return result, fmt.Errorf("%w: create work dir: %v", models.ErrDownloadFailed, err)
	}
	cleaned := false
	defer func() {
		if !cleaned {
			if rmErr := os.RemoveAll(workDir); rmErr != nil {
				logger.Warnf("Failed to clean up %s: %v", workDir, rmErr)
			}
		}
	}()

	archivePath := filepath.Join(workDir, filepath.Base(asset.Name))
	attempts := 0
	verification := models.Skipped

	attempt := func() error {
		attempts++
		if rmErr := os.Remove(archivePath); rmErr != nil && !os.IsNotExist(rmErr) {
			logger.Warnf("Failed to remove partial file %s: %v", archivePath, rmErr)
		}

		status("Downloading %s (attempt %d/%d)", asset.Name, attempts, p.opts.Attempts)
		state, err := p.downloader.Download(ctx, assetURL, archivePath, attempts, func(s models.DownloadState, bps float64) {
			if onProgress != nil {
				onProgress(s.BytesReceived, s.TotalBytes, bps)
			}
		})
		RecordDownloadAttempt(state.BytesReceived)
		if err != nil {
			if errors.Is(err, models.ErrCancelled) {
				return &backoff.PermanentError{Err: err}
			}
			return err
		}
		logger.Infof("Downloaded %s (%s)", asset.Name, humanize.Bytes(uint64(state.BytesReceived)))

		status("Verifying %s", asset.Name)
		if !hasSum {
			verification = models.Skipped
			status("No checksum published for %s, verification skipped", asset.Name)
			return nil
		}
		text, err := p.downloader.FetchText(ctx, sumURL, maxChecksumBytes)
		if err != nil {
			if errors.Is(err, models.ErrCancelled) {
				return &backoff.PermanentError{Err: err}
			}
			return fmt.Errorf("fetch checksum %s: %w", sumAsset.Name, err)
		}
		entry, ok := checksum.Parse(text, asset.Name)
		if !ok {
			// a published checksum file that says nothing is treated as damaged, not as absent
			return fmt.Errorf("%w: %s carries no digest for %s", models.ErrChecksumMismatch, sumAsset.Name, asset.Name)
		}
		if err := checksum.Verify(archivePath, entry); err != nil {
			os.Remove(archivePath)
			return err
		}
		verification = models.Verified
		status("Checksum verified (%s)", entry.Algorithm)
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(p.opts.RetryDelay), uint64(p.opts.Attempts-1)),
		ctx)
	err = backoff.RetryNotify(attempt, policy, func(err error, next time.Duration) {
		status("Attempt %d failed: %v, retrying in %v", attempts, err, next)
	})
	if err != nil {
		if ctx.Err() != nil || errors.Is(err, models.ErrCancelled) {
			return result, cancelled(ctx, err)
		}
		return result, fmt.Errorf("%w after %d attempts: %w", models.ErrDownloadFailed, attempts, err)
	}

	status("Extracting %s", asset.Name)
	extractDir := filepath.Join(workDir, "extract")
	if err = p.extractor.Extract(archivePath, extractDir); err != nil {
		return result, err
	}
	src, err := p.extractor.FindExecutable(extractDir, p.opts.BinaryName, p.opts.Platform.ExeSuffix)
	if err != nil {
		return result, err
	}
	if ctx.Err() != nil {
		return result, cancelled(ctx, ctx.Err())
	}

	installPath := p.InstallPath()
	if err = p.extractor.Install(src, installPath); err != nil {
		return result, fmt.Errorf("%w: install %s: %v", models.ErrExtractionFailed, installPath, err)
	}
	if abs, absErr := filepath.Abs(installPath); absErr == nil {
		installPath = abs
	}

	result = models.InstalledBinary{
		AbsolutePath: installPath,
		Version:      ver,
		AssetName:    asset.Name,
		Verification: verification,
		Attempts:     attempts,
	}
	if chErr := p.extractor.MakeExecutable(installPath, p.opts.Platform.OS); chErr != nil {
		logger.Warnf("Failed to mark %s executable: %v", installPath, chErr)
		result.Warnings = append(result.Warnings, fmt.Sprintf("chmod %s: %v", installPath, chErr))
	}
	cleaned = true
	if rmErr := os.RemoveAll(workDir); rmErr != nil {
		logger.Warnf("Failed to clean up %s: %v", workDir, rmErr)
		result.Warnings = append(result.Warnings, fmt.Sprintf("cleanup %s: %v", workDir, rmErr))
	}

	status("Done: %s %s installed at %s (checksum %s)", p.opts.BinaryName, ver, installPath, verification)
	return result, nil
}

func cancelled(ctx context.Context, err error) error {
	if errors.Is(err, models.ErrCancelled) {
		return err
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%w: %v", models.ErrCancelled, ctxErr)
	}
	return fmt.Errorf("%w: %v", models.ErrCancelled, err)
}

func acquisitionResult(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, models.ErrCancelled):
		return "cancelled"
	case errors.Is(err, models.ErrMetadataUnavailable):
		return "metadata_unavailable"
	case errors.Is(err, models.ErrNoAssetsFound):
		return "no_assets"
	case errors.Is(err, models.ErrChecksumMismatch):
		return "checksum_mismatch"
	case errors.Is(err, models.ErrDownloadFailed):
		return "download_failed"
	case errors.Is(err, models.ErrExecutableNotFound):
		return "executable_not_found"
	case errors.Is(err, models.ErrExtractionFailed):
		return "extraction_failed"
	default:
		return "error"
	}
}
