package resource

import (
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"
	"text/template"

	"github.com/mensylisir/miniotst/pkg/miniotsterrors"
)

// DefaultMirror is the vendor's official release index, used when
// neither DOWNLOAD_MIRROR nor DOWNLOAD_URL is configured.
const DefaultMirror = "https://dl.min.io/server/minio/release"

// legacyArchiveNamePattern captures the platform token from an
// explicitly user-supplied ARCHIVE_NAME, preserved for back-compat with
// platform tokens ("osx", "macos") the URL builder itself no longer
// emits. See the Open Question in DESIGN.md.
var legacyArchiveNamePattern = regexp.MustCompile(`(?i)(osx|macos|linux|windows|win32)`)

// archiveURLTemplate renders "<mirror>/<platform>-<arch>/archive/<version>".
var archiveURLTemplate = template.Must(template.New("archiveURL").Parse(
	"{{.Mirror}}/{{.Platform}}-{{.Arch}}/archive/{{.Version}}"))

// ArchiveURL builds the download URL for req. If downloadURL is
// non-empty (the DOWNLOAD_URL config option) it is returned verbatim
// after validation; otherwise mirror (defaulting to DefaultMirror) is
// combined with the normalized platform/arch/version.
func ArchiveURL(req BinaryRequest, mirror, downloadURL string) (string, error) {
	if downloadURL != "" {
		if _, err := url.ParseRequestURI(downloadURL); err != nil {
			return "", fmt.Errorf("DOWNLOAD_URL %q is not a valid URL: %w", downloadURL, err)
		}
		return downloadURL, nil
	}
	if mirror == "" {
		mirror = DefaultMirror
	}

	platform, err := NormalizePlatform(req.OS.OS, req.Version)
	if err != nil {
		return "", err
	}
	arch, err := NormalizeArch(platform, req.Arch)
	if err != nil {
		return "", err
	}

	var buf strings.Builder
	err = archiveURLTemplate.Execute(&buf, map[string]string{
		"Mirror": strings.TrimRight(mirror, "/"), "Platform": platform, "Arch": arch, "Version": req.Version,
	})
	if err != nil {
		return "", fmt.Errorf("failed to render archive url: %w", err)
	}
	return buf.String(), nil
}

// ArchiveName derives the archive's on-disk filename. It is used only
// when USE_ARCHIVE_NAME_FOR_BINARY_NAME is set or ARCHIVE_NAME is
// explicitly supplied by the caller.
func ArchiveName(req BinaryRequest, archiveNameOverride string) (string, error) {
	if archiveNameOverride != "" {
		if !legacyArchiveNamePattern.MatchString(archiveNameOverride) {
			return "", &miniotsterrors.RegexError{Input: archiveNameOverride, Pattern: legacyArchiveNamePattern.String()}
		}
		return archiveNameOverride, nil
	}

	archiveURL, err := ArchiveURL(req, "", "")
	if err != nil {
		return "", err
	}
	return path.Base(archiveURL), nil
}

// BinaryName returns the canonical on-disk binary filename: the legacy
// "mongod-<arch>-<distro-or-os>-<version>[.exe]" form, kept for
// cache-path compatibility with earlier cache layouts, unless
// useArchiveNameForBinaryName is set, in which case the archive's own
// stem (extension stripped) is used instead.
func BinaryName(req BinaryRequest, archiveNameOverride string, useArchiveNameForBinaryName bool) (string, error) {
	platform, err := NormalizePlatform(req.OS.OS, req.Version)
	if err != nil {
		return "", err
	}
	arch, err := NormalizeArch(platform, req.Arch)
	if err != nil {
		return "", err
	}

	if useArchiveNameForBinaryName {
		name, err := ArchiveName(req, archiveNameOverride)
		if err != nil {
			return "", err
		}
		return stripArchiveExt(name), nil
	}

	distroOrOS := platform
	if platform == "linux" {
		token, err := DistroToken(req.OS, arch, req.Version)
		if err != nil {
			return "", err
		}
		if token != "" {
			distroOrOS = token
		}
	}

	name := fmt.Sprintf("mongod-%s-%s-%s", arch, distroOrOS, req.Version)
	if platform == "windows" || platform == "win32" {
		name += ".exe"
	}
	return name, nil
}

func stripArchiveExt(name string) string {
	for _, ext := range []string{".tar.gz", ".tgz", ".zip"} {
		if strings.HasSuffix(name, ext) {
			return strings.TrimSuffix(name, ext)
		}
	}
	return strings.TrimSuffix(name, path.Ext(name))
}
