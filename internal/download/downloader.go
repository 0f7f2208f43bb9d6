package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"kairo-keeper/internal/models"

	"golang.org/x/time/rate"
)

const (
	DefaultChunkSize        = 32 * 1024
	DefaultProgressInterval = 500 * time.Millisecond
	DefaultUserAgent        = "kairo-keeper"
)

// ProgressFunc receives throttled progress snapshots of one attempt.
type ProgressFunc func(state models.DownloadState, bytesPerSec float64)

// Downloader streams one URL to disk per call. Retrying is up to the caller.
type Downloader struct {
	client           *http.Client
	chunkSize        int
	progressInterval time.Duration
	userAgent        string
}

/**
 * Create a downloader
 * @param {*http.Client} client - HTTP client, a client without overall timeout when nil
 * @param {int} chunkSize - Read buffer size, DefaultChunkSize when <= 0
 * @param {time.Duration} progressInterval - Minimum gap between progress callbacks
 * @returns {*Downloader} New downloader
 */
func NewDownloader(client *http.Client, chunkSize int, progressInterval time.Duration) *Downloader {
	if client == nil {
		client = &http.Client{}
	}
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if progressInterval <= 0 {
		progressInterval = DefaultProgressInterval
	}
	return &Downloader{
		client:           client,
		chunkSize:        chunkSize,
		progressInterval: progressInterval,
		userAgent:        DefaultUserAgent,
	}
}

/**
 * Download a URL into destPath
 * @param {context.Context} ctx - Cancellation signal
 * @param {string} url - Source URL
 * @param {string} destPath - Destination file, truncated if present
 * @param {int} attempt - Attempt number reported in progress snapshots
 * @param {ProgressFunc} onProgress - Progress callback, may be nil
 * @returns {models.DownloadState} Final state of the attempt
 * @returns {error} ErrCancelled on cancellation, other errors on transport/IO failure
 * @description
 * - Reads the body in fixed-size chunks
 * - Progress is reported at most once per progressInterval, plus once on completion
 * - A partially written file is removed before returning an error
 */
func (d *Downloader) Download(ctx context.Context, url, destPath string, attempt int, onProgress ProgressFunc) (models.DownloadState, error) {
	state := models.DownloadState{TotalBytes: -1, StartTime: time.Now(), AttemptNumber: attempt}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return state, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", d.userAgent)

	resp, err := d.client.Do(req)
	if err != nil {
		return state, d.wrap(ctx, fmt.Errorf("execute request: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return state, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
	if resp.ContentLength >= 0 {
		state.TotalBytes = resp.ContentLength
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return state, fmt.Errorf("create dest dir: %w", err)
	}
	file, err := os.Create(destPath)
	if err != nil {
		return state, fmt.Errorf("create file: %w", err)
	}

	cleanupNeeded := true
	defer func() {
		file.Close()
		if cleanupNeeded {
			os.Remove(destPath)
		}
	}()

	throttle := &rate.Sometimes{Interval: d.progressInterval}
	report := func() {
		if onProgress != nil {
			onProgress(state, bytesPerSecond(state))
		}
	}

	buf := make([]byte, d.chunkSize)
	for {
		if err := ctx.Err(); err != nil {
			return state, d.wrap(ctx, err)
		}
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if _, err := file.Write(buf[:n]); err != nil {
				return state, fmt.Errorf("write file: %w", err)
			}
			state.BytesReceived += int64(n)
			throttle.Do(report)
		}
		if errors.Is(readErr, io.EOF) {
			break
		}
		if readErr != nil {
			return state, d.wrap(ctx, fmt.Errorf("read body: %w", readErr))
		}
	}

	if state.TotalBytes >= 0 && state.BytesReceived != state.TotalBytes {
		return state, fmt.Errorf("short body: received %d of %d bytes", state.BytesReceived, state.TotalBytes)
	}
	if err := file.Close(); err != nil {
		return state, fmt.Errorf("close file: %w", err)
	}
	cleanupNeeded = false
	report()
	return state, nil
}

/**
 * Fetch a small text document such as a checksum file
 * @param {context.Context} ctx - Cancellation signal
 * @param {string} url - Source URL
 * @param {int64} limit - Maximum bytes to read
 * @returns {string} Body text
 * @returns {error} ErrCancelled on cancellation, other errors on failure
 */
func (d *Downloader) FetchText(ctx context.Context, url string, limit int64) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", d.userAgent)

	resp, err := d.client.Do(req)
	if err != nil {
		return "", d.wrap(ctx, fmt.Errorf("execute request: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, limit))
	if err != nil {
		return "", d.wrap(ctx, fmt.Errorf("read body: %w", err))
	}
	return string(data), nil
}

func (d *Downloader) wrap(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return fmt.Errorf("%w: %v", models.ErrCancelled, err)
	}
	return err
}

func bytesPerSecond(state models.DownloadState) float64 {
	elapsed := time.Since(state.StartTime).Seconds()
	if elapsed <= 0 {
		return 0
	}
	return float64(state.BytesReceived) / elapsed
}
