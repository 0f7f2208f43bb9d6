package checksum

import (
	"bufio"
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
	"path"
	"strings"

	"kairo-keeper/internal/models"
)

/**
 * Parse a checksum file
 * @param {string} text - Contents of a .sha256/.md5 style file
 * @param {string} fileName - Asset name used to disambiguate multi-entry files, may be empty
 * @returns {models.ChecksumEntry} Chosen digest
 * @returns {bool} false when no line carries a digest
 * @description
 * - The first whitespace-separated token of each line is the digest candidate
 * - 64 hex characters is sha256, 32 hex characters is md5
 * - The first sha256 ends the scan; otherwise the first md5 is used
 * - When fileName is given and some line names it, lines naming other files are ignored
 */
func Parse(text, fileName string) (models.ChecksumEntry, bool) {
	if fileName != "" {
		if entry, ok := parse(text, fileName); ok {
			return entry, true
		}
	}
	return parse(text, "")
}

func parse(text, fileName string) (models.ChecksumEntry, bool) {
	var md5Entry *models.ChecksumEntry

	scanner := bufio.NewScanner(strings.NewReader(text))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if fileName != "" && !namesFile(fields, fileName) {
			continue
		}
		token := fields[0]
		if !isHex(token) {
			continue
		}
		switch len(token) {
		case sha256.Size * 2:
			return models.ChecksumEntry{Algorithm: models.SHA256, HexDigest: strings.ToLower(token)}, true
		case md5.Size * 2:
			if md5Entry == nil {
				md5Entry = &models.ChecksumEntry{Algorithm: models.MD5, HexDigest: strings.ToLower(token)}
			}
		}
	}
	if md5Entry != nil {
		return *md5Entry, true
	}
	return models.ChecksumEntry{}, false
}

// namesFile matches "<digest>  name" and "<digest> *name" lines by base name.
func namesFile(fields []string, fileName string) bool {
	if len(fields) < 2 {
		return false
	}
	name := strings.TrimPrefix(fields[len(fields)-1], "*")
	return strings.EqualFold(path.Base(strings.ReplaceAll(name, "\\", "/")), fileName)
}

func isHex(s string) bool {
	_, err := hex.DecodeString(s)
	return err == nil
}

/**
 * Compute the digest of a file
 * @param {string} filePath - File to hash
 * @param {models.ChecksumAlgorithm} algo - sha256 or md5
 * @returns {string} Lowercase hex digest
 * @returns {error} Error if the file cannot be read
 */
func FileDigest(filePath string, algo models.ChecksumAlgorithm) (string, error) {
	var h hash.Hash
	switch algo {
	case models.SHA256:
		h = sha256.New()
	case models.MD5:
		h = md5.New()
	default:
		return "", fmt.Errorf("unsupported checksum algorithm: %s", algo)
	}

	f, err := os.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

/**
 * Verify a file against an expected digest
 * @param {string} filePath - Downloaded file
 * @param {models.ChecksumEntry} expected - Parsed digest
 * @returns {error} ErrChecksumMismatch on mismatch, other errors on I/O failure
 */
func Verify(filePath string, expected models.ChecksumEntry) error {
	actual, err := FileDigest(filePath, expected.Algorithm)
	if err != nil {
		return err
	}
	if !strings.EqualFold(actual, expected.HexDigest) {
		return fmt.Errorf("%w: %s expected %s, got %s", models.ErrChecksumMismatch, expected.Algorithm, expected.HexDigest, actual)
	}
	return nil
}
