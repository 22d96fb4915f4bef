package resource

import (
	"regexp"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/mensylisir/miniotst/pkg/logger"
	"github.com/mensylisir/miniotst/pkg/miniotsterrors"
	"github.com/mensylisir/miniotst/pkg/osprobe"
)

// arm64RHELMinRelease and arm64RHELMinVersion are the lower bounds
// below which an ARM64 build on a RHEL-family host is known not to
// exist; requests under either bound fail fast instead of 404ing at
// download time.
var (
	arm64RHELMinRelease = semver.MustParse("8.2")
	arm64RHELMinVersion = semver.MustParse("4.4.2")
)

type distroFamily struct {
	name    string
	pattern *regexp.Regexp
	resolve func(desc osprobe.Descriptor) string
}

// families is consulted in order against desc.Distro and every entry of
// desc.IDLike; the first match wins. This realizes spec.md §9's
// "dynamic dispatch over OS/arch" design note as a table instead of a
// chain of if/else.
var families = []distroFamily{
	{"ubuntu", regexp.MustCompile(`(?i)ubuntu`), resolveUbuntu},
	{"amzn", regexp.MustCompile(`(?i)amzn|amazon`), resolveAmazonLinux},
	{"suse", regexp.MustCompile(`(?i)suse`), resolveSUSE},
	{"rhel", regexp.MustCompile(`(?i)rhel|centos|scientific|^ol$`), resolveRHEL},
	{"fedora", regexp.MustCompile(`(?i)fedora`), resolveFedora},
	{"debian", regexp.MustCompile(`(?i)debian`), resolveDebian},
	{"alpine", regexp.MustCompile(`(?i)alpine`), func(osprobe.Descriptor) string { return "" }},
	{"arch", regexp.MustCompile(`(?i)arch|manjaro|arco`), func(osprobe.Descriptor) string { return "ubuntu2204" }},
	{"gentoo", regexp.MustCompile(`(?i)gentoo`), func(osprobe.Descriptor) string { return "debian11" }},
	{"unknown", regexp.MustCompile(`(?i)^unknown$`), func(osprobe.Descriptor) string { return "" }},
}

// DistroToken resolves the Linux distro string used in the legacy
// binary name, applying the version-aware lower-bound checks from
// spec.md §4.3. Returns ("", nil) for an unsupported-but-recognized
// distro (alpine) or a genuinely unclassified one — the caller proceeds
// with an empty distro segment rather than failing, since string
// construction alone can't know whether the upstream archive actually
// exists.
func DistroToken(desc osprobe.Descriptor, arch, version string) (string, error) {
	log := logger.Get().With("component", "resource")

	family, ok := matchFamily(desc)
	if !ok {
		log.Warnf("unrecognized linux distro %q (id_like=%v); using legacy empty distro token", desc.Distro, desc.IDLike)
		return "", nil
	}

	if family.name == "alpine" {
		log.Warnf("alpine is not a supported distro for this binary family")
	}
	if family.name == "unknown" {
		log.Warnf("host distro classification was unknown")
	}

	token := family.resolve(desc)

	if family.name == "rhel" && arch == "arm64" && !IsLatestSentinel(version) {
		if err := checkARM64RHELIncompatibility(desc, version); err != nil {
			return "", err
		}
	}

	return token, nil
}

func matchFamily(desc osprobe.Descriptor) (distroFamily, bool) {
	candidates := append([]string{desc.Distro}, desc.IDLike...)
	for _, f := range families {
		for _, c := range candidates {
			if c != "" && f.pattern.MatchString(c) {
				return f, true
			}
		}
	}
	return distroFamily{}, false
}

func checkARM64RHELIncompatibility(desc osprobe.Descriptor, version string) error {
	release, err := semver.NewVersion(desc.Release)
	if err != nil {
		// Unparseable release can't be bounds-checked; let it through.
		return nil
	}
	v, err := CoerceVersion(version)
	if err != nil {
		return err
	}
	if release.LessThan(arm64RHELMinRelease) || (v != nil && v.LessThan(arm64RHELMinVersion)) {
		return miniotsterrors.KnownVersionIncompatibility(version,
			"ARM64 builds require RHEL >= 8.2 and server version >= 4.4.2")
	}
	return nil
}

func resolveUbuntu(desc osprobe.Descriptor) string {
	switch majorDotMinor(desc.Release) {
	case "22.04":
		return "ubuntu2204"
	case "20.04":
		return "ubuntu2004"
	case "18.04":
		return "ubuntu1804"
	case "16.04":
		return "ubuntu1604"
	default:
		return "ubuntu2204"
	}
}

func resolveDebian(desc osprobe.Descriptor) string {
	switch strings.SplitN(desc.Release, ".", 2)[0] {
	case "11":
		return "debian11"
	case "10":
		return "debian10"
	case "9":
		return "debian92"
	case "8":
		return "debian81"
	default:
		return "debian11"
	}
}

func resolveRHEL(desc osprobe.Descriptor) string {
	switch strings.SplitN(desc.Release, ".", 2)[0] {
	case "9":
		return "rhel90"
	case "8":
		return "rhel82"
	case "7":
		return "rhel70"
	default:
		return "rhel80"
	}
}

func resolveFedora(desc osprobe.Descriptor) string {
	// Fedora binaries are published under the RHEL distro family.
	return "rhel80"
}

func resolveAmazonLinux(desc osprobe.Descriptor) string {
	if strings.HasPrefix(desc.Release, "2") {
		return "amzn2"
	}
	return "amzn64"
}

func resolveSUSE(desc osprobe.Descriptor) string {
	switch strings.SplitN(desc.Release, ".", 2)[0] {
	case "15":
		return "suse15"
	default:
		return "suse12"
	}
}

func majorDotMinor(release string) string {
	parts := strings.SplitN(release, ".", 3)
	if len(parts) < 2 {
		return release
	}
	return parts[0] + "." + parts[1]
}
