package release

import (
	"fmt"
	"net/url"
	"strings"

	"kairo-keeper/internal/models"
	"kairo-keeper/internal/platform"
)

// checksum companion suffixes in order of preference
var checksumSuffixes = []string{".sha256", ".sha256.txt", ".md5", ".md5.txt"}

// IsChecksumName reports whether an asset name looks like a checksum file.
func IsChecksumName(name string) bool {
	lower := strings.ToLower(name)
	for _, s := range checksumSuffixes {
		if strings.HasSuffix(lower, s) {
			return true
		}
	}
	return false
}

// Stem strips a known archive extension from an asset name.
func Stem(name string) string {
	lower := strings.ToLower(name)
	for _, ext := range []string{".tar.gz", ".tgz", ".zip"} {
		if strings.HasSuffix(lower, ext) {
			return name[:len(name)-len(ext)]
		}
	}
	return name
}

/**
 * Pick the asset matching the host platform
 * @param {[]models.ReleaseAsset} assets - Release assets in document order
 * @param {string} product - Product name used in asset names
 * @param {string} ver - Version returned by ParseVersion
 * @param {platform.Info} plat - Host platform
 * @returns {models.ReleaseAsset} Chosen asset
 * @returns {error} ErrNoAssetsFound when the list is empty
 * @description
 * - Candidates start with "<product>-<ver>_<os>_<arch>" (case-insensitive)
 * - Otherwise candidates contain "<os>_<arch>"
 * - Otherwise the first non-checksum asset (or the first asset) is used
 * - Among candidates, the first one with the platform's preferred extension wins;
 *   when none has it, the first candidate wins
 */
func SelectAsset(assets []models.ReleaseAsset, product, ver string, plat platform.Info) (models.ReleaseAsset, error) {
	if len(assets) == 0 {
		return models.ReleaseAsset{}, models.ErrNoAssetsFound
	}

	prefix := strings.ToLower(fmt.Sprintf("%s-%s_%s", product, ver, plat.Tag()))
	candidates := filterAssets(assets, func(name string) bool {
		return strings.HasPrefix(name, prefix)
	})
	if len(candidates) == 0 {
		tag := strings.ToLower(plat.Tag())
		candidates = filterAssets(assets, func(name string) bool {
			return strings.Contains(name, tag)
		})
	}
	if len(candidates) == 0 {
		for _, a := range assets {
			if !IsChecksumName(a.Name) {
				return a, nil
			}
		}
		return assets[0], nil
	}

	for _, ext := range plat.PreferredExtensions() {
		for _, a := range candidates {
			if strings.HasSuffix(strings.ToLower(a.Name), ext) {
				return a, nil
			}
		}
	}
	return candidates[0], nil
}

func filterAssets(assets []models.ReleaseAsset, match func(lowerName string) bool) []models.ReleaseAsset {
	var out []models.ReleaseAsset
	for _, a := range assets {
		if IsChecksumName(a.Name) {
			continue
		}
		if match(strings.ToLower(a.Name)) {
			out = append(out, a)
		}
	}
	return out
}

/**
 * Find the checksum companion of an asset
 * @param {[]models.ReleaseAsset} assets - Release assets
 * @param {models.ReleaseAsset} primary - Selected asset
 * @returns {models.ReleaseAsset} Companion asset
 * @returns {bool} false when the release publishes no companion
 * @description
 * - A companion contains the primary asset's stem and ends in .sha256, .sha256.txt, .md5 or .md5.txt
 * - Names containing the full primary name beat names containing only the stem
 * - sha256 beats md5; ties keep document order
 */
func FindChecksumAsset(assets []models.ReleaseAsset, primary models.ReleaseAsset) (models.ReleaseAsset, bool) {
	full := strings.ToLower(primary.Name)
	stem := strings.ToLower(Stem(primary.Name))

	best, bestScore := models.ReleaseAsset{}, -1
	for _, a := range assets {
		lower := strings.ToLower(a.Name)
		if lower == full || !strings.Contains(lower, stem) {
			continue
		}
		rank := -1
		for i, s := range checksumSuffixes {
			if strings.HasSuffix(lower, s) {
				rank = i
				break
			}
		}
		if rank < 0 {
			continue
		}
		score := len(checksumSuffixes) - rank
		if strings.Contains(lower, full) {
			score += 10
		}
		if score > bestScore {
			best, bestScore = a, score
		}
	}
	return best, bestScore >= 0
}

/**
 * Rebuild a download URL on a mirror
 * @param {string} base - Mirror download base URL
 * @param {*models.Release} rel - Release the asset belongs to
 * @param {models.ReleaseAsset} asset - Asset to download
 * @returns {string} "<base>/<escaped release name or tag>/<escaped asset name>"
 */
func MirrorURL(base string, rel *models.Release, asset models.ReleaseAsset) string {
	dir := rel.Name
	if dir == "" {
		dir = rel.TagName
	}
	return strings.TrimRight(base, "/") + "/" + url.PathEscape(dir) + "/" + url.PathEscape(asset.Name)
}
