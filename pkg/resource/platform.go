package resource

import (
	"github.com/Masterminds/semver/v3"

	"github.com/mensylisir/miniotst/pkg/miniotsterrors"
)

// win32ModernSince is the version at which the Windows platform token
// switched from the legacy "win32" to "windows".
var win32ModernSince = semver.MustParse("4.3.0")

// NormalizePlatform maps a raw host OS name (as reported by GOOS or an
// OS descriptor) plus the requested version to the canonical platform
// token used in both the download URL and the binary name.
func NormalizePlatform(osName, version string) (string, error) {
	switch osName {
	case "darwin":
		return "darwin", nil
	case "windows", "win32":
		v, err := CoerceVersion(version)
		if err != nil || v == nil {
			// An uncoercible version (e.g. the "-latest" sentinel) is
			// always treated as modern.
			return "windows", nil
		}
		if v.Compare(win32ModernSince) >= 0 {
			return "windows", nil
		}
		return "win32", nil
	case "linux", "elementary os":
		return "linux", nil
	default:
		return "", &miniotsterrors.PlatformError{Platform: osName}
	}
}

// NormalizeArch maps a raw arch token (as reported by GOARCH or uname
// -m) plus the platform to the canonical arch token.
func NormalizeArch(platform, arch string) (string, error) {
	switch arch {
	case "x64", "amd64", "x86_64":
		return "amd64", nil
	case "arm64":
		return "arm64", nil
	case "aarch64":
		return "aarch64", nil
	case "ia32", "i386", "i686":
		if platform == "windows" || platform == "win32" {
			return "i386", nil
		}
		return "i686", nil
	default:
		return "", &miniotsterrors.ArchError{Arch: arch, Platform: platform}
	}
}
