package models

import "errors"

// Acquisition errors
var (
	ErrMetadataUnavailable = errors.New("release metadata unavailable")
	ErrNoAssetsFound       = errors.New("release has no assets")
	ErrExecutableNotFound  = errors.New("executable not found in archive")
	ErrDownloadFailed      = errors.New("download failed")
	ErrChecksumMismatch    = errors.New("checksum mismatch")
	ErrExtractionFailed    = errors.New("extraction failed")
	ErrCancelled           = errors.New("operation cancelled")
)

// Tunnel process errors
var (
	ErrInvalidBinaryPath  = errors.New("invalid binary path")
	ErrProcessStartFailed = errors.New("process start failed")
	ErrAlreadyRunning     = errors.New("tunnel already running")
	ErrTunnelNotFound     = errors.New("tunnel not found")
)
