// Package locator implements the Dry Locator (C4): a pure, side-effect
// free candidate-path planner. It never writes to disk.
package locator

import (
	"os"
	"path/filepath"
	"strings"
)

// Candidates is the ordered set of locations a binary might already
// live at, in the order the spec checks them.
type Candidates struct {
	ResolveConfigPath string // <DOWNLOAD_DIR>/<binary_name>, empty if DOWNLOAD_DIR unset
	LegacyHome        string // <home>/.cache/minio-binaries/<binary_name>
	ModulesCache      string // project-cache-dir/<binary_name>
	Relative          string // <cwd>/minio-binaries/<binary_name>
}

// ordered returns the four candidates in check order, skipping any that
// are empty.
func (c Candidates) ordered() []string {
	var out []string
	for _, p := range []string{c.ResolveConfigPath, c.LegacyHome, c.ModulesCache, c.Relative} {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// BuildCandidates computes the four candidate paths for binaryName.
// downloadDir is the DOWNLOAD_DIR config value (may be empty); cwd is
// the process working directory.
func BuildCandidates(binaryName, downloadDir, cwd string) (Candidates, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		home = ""
	}

	var resolveConfigPath string
	if downloadDir != "" {
		resolveConfigPath = filepath.Join(downloadDir, binaryName)
	}

	var legacyHome string
	if home != "" {
		legacyHome = filepath.Join(home, ".cache", "minio-binaries", binaryName)
	}

	modulesCache, err := projectCacheDir(cwd, binaryName)
	if err != nil {
		modulesCache = ""
	}

	relative := filepath.Join(cwd, "minio-binaries", binaryName)

	return Candidates{
		ResolveConfigPath: resolveConfigPath,
		LegacyHome:        legacyHome,
		ModulesCache:      modulesCache,
		Relative:          relative,
	}, nil
}

// projectCacheDir walks upward from cwd past any node_modules-style
// "minio-test-server*" segment and returns a stable cache directory
// rooted at the first ancestor that isn't part of such a segment,
// joined with binaryName.
func projectCacheDir(cwd, binaryName string) (string, error) {
	dir := cwd
	for {
		base := filepath.Base(dir)
		if !isVendoredSegment(base) {
			return filepath.Join(dir, "node_modules", ".cache", "minio-test-server", binaryName), nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return filepath.Join(cwd, "node_modules", ".cache", "minio-test-server", binaryName), nil
		}
		dir = parent
	}
}

func isVendoredSegment(base string) bool {
	return base == "node_modules" || strings.HasPrefix(base, "minio-test-server") || base == ""
}

// Locate returns the first existing candidate path. If system_binary is
// supplied and exists, it always wins. If nothing exists, it returns the
// preferred path to download into: resolveConfigPath if set, else
// legacyHome if preferGlobalPath, else modulesCache, else relative.
func Locate(candidates Candidates, systemBinary string, preferGlobalPath bool) (path string, found bool, preferredForDownload string) {
	if systemBinary != "" {
		if _, err := os.Stat(systemBinary); err == nil {
			return systemBinary, true, ""
		}
	}

	for _, p := range candidates.ordered() {
		if _, err := os.Stat(p); err == nil {
			return p, true, ""
		}
	}

	switch {
	case candidates.ResolveConfigPath != "":
		return "", false, candidates.ResolveConfigPath
	case preferGlobalPath && candidates.LegacyHome != "":
		return "", false, candidates.LegacyHome
	case candidates.ModulesCache != "":
		return "", false, candidates.ModulesCache
	default:
		return "", false, candidates.Relative
	}
}
