package models

import "time"

// Release is the subset of a latest-release document we rely on.
type Release struct {
	TagName string         `json:"tag_name"`
	Name    string         `json:"name"`
	Assets  []ReleaseAsset `json:"assets"`
}

type ReleaseAsset struct {
	Name               string `json:"name"`
	BrowserDownloadUrl string `json:"browser_download_url"`
	Size               int64  `json:"size,omitempty"`
}

type ChecksumAlgorithm string

const (
	SHA256 ChecksumAlgorithm = "sha256"
	MD5    ChecksumAlgorithm = "md5"
)

type ChecksumEntry struct {
	Algorithm ChecksumAlgorithm `json:"algorithm"`
	HexDigest string            `json:"hexDigest"`
}

// DownloadState is the progress snapshot of one download attempt.
type DownloadState struct {
	BytesReceived int64     `json:"bytesReceived"`
	TotalBytes    int64     `json:"totalBytes"` // -1 when unknown
	StartTime     time.Time `json:"startTime"`
	AttemptNumber int       `json:"attemptNumber"`
}

type VerificationStatus string

const (
	Verified VerificationStatus = "verified"
	Skipped  VerificationStatus = "skipped"
)

// InstalledBinary is the result of a successful acquisition.
type InstalledBinary struct {
	AbsolutePath string             `json:"absolutePath"`
	Version      string             `json:"version"`
	AssetName    string             `json:"assetName,omitempty"`
	Verification VerificationStatus `json:"verification,omitempty"`
	Attempts     int                `json:"attempts,omitempty"`
	Warnings     []string           `json:"warnings,omitempty"`
}

type AcquireResponse struct {
	Binary   InstalledBinary `json:"binary"`
	Statuses []string        `json:"statuses"`
}

// BinaryStatus is returned by GET /kairo/api/v1/binary
type BinaryStatus struct {
	Installed bool             `json:"installed"`
	Binary    *InstalledBinary `json:"binary,omitempty"`
	Latest    string           `json:"latest,omitempty"`
	Upgrade   bool             `json:"upgrade,omitempty"`
}
