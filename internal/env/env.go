package env

import (
	"os"
	"path/filepath"
)

// ConfigDirEnv overrides the per-user application data directory.
const ConfigDirEnv = "KAIRO_CONFIG_DIR"

var Daemon bool = false

// (default: %AppData%/kairo on Windows, $XDG_CONFIG_HOME/kairo or $HOME/.config/kairo on Linux)
var KairoDir string = GetKairoDir()

/**
 * Get kairo directory path
 * @returns {string} Returns the application data directory
 * @description
 * - KAIRO_CONFIG_DIR wins when set to a non-empty value
 * - Otherwise falls back to os.UserConfigDir()/kairo, then $HOME/.kairo
 * - The directory is not created here, see EnsureDir
 */
func GetKairoDir() string {
	if dir := os.Getenv(ConfigDirEnv); dir != "" {
		return dir
	}
	if base, err := os.UserConfigDir(); err == nil && base != "" {
		return filepath.Join(base, "kairo")
	}
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".kairo")
}

/**
 * Create a directory below KairoDir if it does not exist yet
 * @param {...string} elem - Path elements relative to KairoDir
 * @returns {string} Absolute directory path
 * @returns {error} Error if the directory cannot be created
 * @example
 * binDir, err := env.EnsureDir("bin")
 */
func EnsureDir(elem ...string) (string, error) {
	dir := filepath.Join(append([]string{KairoDir}, elem...)...)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	return dir, nil
}
