package resource

import (
	"regexp"

	"github.com/Masterminds/semver/v3"

	"github.com/mensylisir/miniotst/pkg/miniotsterrors"
)

// latestSentinel matches version strings like "v6.0-latest" that opt
// out of every lower-bound incompatibility check.
var latestSentinel = regexp.MustCompile(`^v\d+\.\d+-latest$`)

// IsLatestSentinel reports whether version is the "always latest"
// marker, which suppresses every version-aware lower-bound check in
// this package.
func IsLatestSentinel(version string) bool {
	return latestSentinel.MatchString(version)
}

// CoerceVersion parses version as semver. The "-latest" sentinel
// coerces to (nil, nil) rather than an error, since it carries no
// concrete version number to compare.
func CoerceVersion(version string) (*semver.Version, error) {
	if IsLatestSentinel(version) {
		return nil, nil
	}
	v, err := semver.NewVersion(version)
	if err != nil {
		return nil, miniotsterrors.UncoercibleVersion(version)
	}
	return v, nil
}
