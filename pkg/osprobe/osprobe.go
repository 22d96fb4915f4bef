// Package osprobe classifies the host into an OS/distro/release
// descriptor used by the URL and name builder to pick the right
// archive. Linux distro detection tries several release files in a
// fixed fallback order and memoizes the result for the process
// lifetime.
package osprobe

import (
	"os"
	"runtime"
	"strings"
	"sync"

	"github.com/mensylisir/miniotst/pkg/logger"
)

// Descriptor is the classified host. Distro/Release/Codename are empty
// on non-Linux hosts.
type Descriptor struct {
	OS       string
	Distro   string
	Release  string
	Codename string
	IDLike   []string
}

// Unknown reports whether the descriptor failed to identify a usable
// Linux distro. A valid descriptor never has Distro == "unknown".
func (d Descriptor) Unknown() bool {
	return d.OS == "linux" && (d.Distro == "" || d.Distro == "unknown")
}

type releaseSource struct {
	path   string
	format func(string) (Descriptor, bool)
}

var linuxSources = []releaseSource{
	{"/etc/upstream-release/lsb-release", parseLSB},
	{"/etc/os-release", parseOSRelease},
	{"/usr/lib/os-release", parseOSRelease},
	{"/etc/lsb-release", parseLSB},
}

var (
	memoOnce sync.Once
	memoized Descriptor
)

// Probe classifies the current host, memoizing the result for the
// process lifetime. Safe for concurrent use.
func Probe() Descriptor {
	memoOnce.Do(func() {
		memoized = probeUncached()
	})
	return memoized
}

func probeUncached() Descriptor {
	if runtime.GOOS != "linux" {
		return Descriptor{OS: runtime.GOOS}
	}

	log := logger.Get().With("component", "osprobe")
	for _, src := range linuxSources {
		data, err := os.ReadFile(src.path)
		if err != nil {
			continue
		}
		desc, ok := src.format(string(data))
		if !ok {
			continue
		}
		desc.OS = "linux"
		if desc.Distro != "" && desc.Distro != "unknown" {
			return desc
		}
	}

	log.Warnf("no release file yielded a known distro; falling back to unknown")
	return Descriptor{OS: "linux", Distro: "unknown", Release: ""}
}

func normalizeDistro(s string) string {
	return strings.ToLower(strings.Trim(strings.TrimSpace(s), `"'`))
}
