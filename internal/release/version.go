package release

import (
	"regexp"
	"strings"

	version "github.com/hashicorp/go-version"
)

var tagPattern = regexp.MustCompile(`^v(\d+)\.(\d+)\.(\d+)-(\S+)$`)

/**
 * Extract the semantic version from a release tag
 * @param {string} tag - Release tag, e.g. "v0.51.3-2"
 * @returns {string} "0.51.3" for tags of the form v<maj>.<min>.<patch>-<build>,
 *   otherwise the tag with one leading "v" removed
 */
func ParseVersion(tag string) string {
	tag = strings.TrimSpace(tag)
	if m := tagPattern.FindStringSubmatch(tag); m != nil {
		return m[1] + "." + m[2] + "." + m[3]
	}
	return strings.TrimPrefix(tag, "v")
}

/**
 * Report whether latest is newer than installed
 * @param {string} installed - Installed version, empty when nothing is installed
 * @param {string} latest - Latest release version
 * @returns {bool} true when an upgrade is available
 * @description
 * - Versions that do not parse are compared as plain strings
 */
func IsNewer(installed, latest string) bool {
	if installed == "" {
		return true
	}
	iv, err1 := version.NewVersion(installed)
	lv, err2 := version.NewVersion(latest)
	if err1 != nil || err2 != nil {
		return installed != latest
	}
	return lv.GreaterThan(iv)
}
