// Package resource builds the canonical download URL and on-disk binary
// name for a given (version, os, arch, distro) combination: the URL &
// Name Builder component. It also hosts the platform/arch/distro
// translation tables and the version-gated incompatibility checks that
// feed those names.
package resource

import (
	"github.com/mensylisir/miniotst/pkg/osprobe"
)

// BinaryRequest is the immutable input to every builder function in this
// package, and downstream to the locator and downloader.
type BinaryRequest struct {
	Version      string
	OS           osprobe.Descriptor
	Arch         string
	DownloadDir  string
	SystemBinary string
	CheckMD5     bool
}
