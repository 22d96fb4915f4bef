// Package miniotstconfig resolves runtime configuration for the
// provisioning and supervision subsystem from three layered sources, in
// priority order: process environment, project manifest, built-in
// defaults.
package miniotstconfig

// Key is one of the fixed, recognized configuration options. All values
// are strings; callers coerce to bool/int themselves via Resolver.Bool
// and Resolver.Int.
type Key string

const (
	DownloadDir                 Key = "DOWNLOAD_DIR"
	Platform                    Key = "PLATFORM"
	Arch                        Key = "ARCH"
	Version                     Key = "VERSION"
	Debug                       Key = "DEBUG"
	DownloadMirror              Key = "DOWNLOAD_MIRROR"
	DownloadURL                 Key = "DOWNLOAD_URL"
	PreferGlobalPath            Key = "PREFER_GLOBAL_PATH"
	DisablePostinstall          Key = "DISABLE_POSTINSTALL"
	SystemBinary                Key = "SYSTEM_BINARY"
	MD5Check                    Key = "MD5_CHECK"
	ArchiveName                 Key = "ARCHIVE_NAME"
	RuntimeDownload             Key = "RUNTIME_DOWNLOAD"
	UseHTTP                     Key = "USE_HTTP"
	SystemBinaryVersionCheck    Key = "SYSTEM_BINARY_VERSION_CHECK"
	UseArchiveNameForBinaryName Key = "USE_ARCHIVE_NAME_FOR_BINARY_NAME"
	MaxRedirects                Key = "MAX_REDIRECTS"
	Distro                      Key = "DISTRO"
)

// allKeys enumerates every recognized key, used to validate manifest
// content and to build the camelCase lookup table.
var allKeys = []Key{
	DownloadDir, Platform, Arch, Version, Debug, DownloadMirror, DownloadURL,
	PreferGlobalPath, DisablePostinstall, SystemBinary, MD5Check, ArchiveName,
	RuntimeDownload, UseHTTP, SystemBinaryVersionCheck, UseArchiveNameForBinaryName,
	MaxRedirects, Distro,
}

// pathValuedKeys are the keys whose manifest value is made absolute by
// joining with the manifest's directory, per the config resolver's path
// relativization rule.
var pathValuedKeys = map[Key]bool{
	DownloadDir:  true,
	SystemBinary: true,
}
