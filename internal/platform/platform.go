package platform

import "runtime"

// Info identifies the host in the vocabulary used by release asset names.
// It is computed once and passed down explicitly.
type Info struct {
	OS        string // windows, linux or darwin
	Arch      string // 386, arm, arm64 or amd64
	ExeSuffix string // ".exe" on windows, "" elsewhere
}

// Detect returns the Info of the running process.
func Detect() Info {
	return New(runtime.GOOS, runtime.GOARCH)
}

/**
 * Build platform info from Go's GOOS/GOARCH values
 * @param {string} goos - runtime.GOOS style value
 * @param {string} goarch - runtime.GOARCH style value
 * @returns {Info} Normalized platform info
 * @description
 * - Operating systems other than windows/darwin map to linux
 * - Architectures other than 386/arm/arm64 map to amd64
 */
func New(goos, goarch string) Info {
	info := Info{OS: mapOS(goos), Arch: mapArch(goarch)}
	if info.OS == "windows" {
		info.ExeSuffix = ".exe"
	}
	return info
}

func mapOS(goos string) string {
	switch goos {
	case "windows", "darwin":
		return goos
	default:
		return "linux"
	}
}

func mapArch(goarch string) string {
	switch goarch {
	case "386", "arm", "arm64":
		return goarch
	default:
		return "amd64"
	}
}

// Tag is the "<os>_<arch>" fragment found in asset names.
func (i Info) Tag() string {
	return i.OS + "_" + i.Arch
}

// ExecutableName appends the platform suffix to name.
func (i Info) ExecutableName(name string) string {
	return name + i.ExeSuffix
}

// PreferredExtensions lists archive extensions in order of preference.
func (i Info) PreferredExtensions() []string {
	if i.OS == "windows" {
		return []string{".zip"}
	}
	return []string{".tar.gz", ".zip"}
}
