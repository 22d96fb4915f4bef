// Package downloader implements the Downloader (C6): lock-gated HTTP
// fetch, MD5 verification, archive extraction, atomic install, and an
// in-process per-version path cache.
package downloader

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/mensylisir/miniotst/pkg/archiveutil"
	"github.com/mensylisir/miniotst/pkg/lockfile"
	"github.com/mensylisir/miniotst/pkg/logger"
	"github.com/mensylisir/miniotst/pkg/resource"
)

// binaryEntryPattern matches the server executable inside the archive;
// the Windows variant carries the ".exe" suffix. The archive's internal
// path always uses the upstream "minio" name; only the installed
// on-disk filename (BinaryName) follows the legacy mongod-* convention.
var binaryEntryPattern = regexp.MustCompile(`bin/(minio|minio\.exe)$`)

// Options carries the resolved config values Provision needs beyond
// what's already on the BinaryRequest. Each field mirrors a
// miniotstconfig key of the same shape.
type Options struct {
	Mirror                      string
	DownloadURL                 string
	ArchiveNameOverride         string
	UseArchiveNameForBinaryName bool
	MaxRedirects                int
	UseHTTP                     bool
}

// Downloader owns the in-process version→path cache. Construct one per
// supervisor or share one across supervisors targeting the same
// DOWNLOAD_DIR; either is safe since the real serialization point is
// the on-disk lockfile.
type Downloader struct {
	mu    sync.Mutex
	cache map[string]string

	log *logger.Logger
}

// New returns a ready Downloader.
func New() *Downloader {
	return &Downloader{cache: make(map[string]string), log: logger.Get().With("component", "downloader")}
}

// Provision ensures req's binary exists on disk under req.DownloadDir
// and returns its absolute path. Concurrent Provision calls for the
// same version, in this process or another, result in exactly one HTTP
// download.
func (d *Downloader) Provision(ctx context.Context, req resource.BinaryRequest, opts Options) (string, error) {
	if err := os.MkdirAll(req.DownloadDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create download dir %s: %w", req.DownloadDir, err)
	}

	binaryName, err := resource.BinaryName(req, opts.ArchiveNameOverride, opts.UseArchiveNameForBinaryName)
	if err != nil {
		return "", err
	}
	binaryPath := filepath.Join(req.DownloadDir, binaryName)

	lockPath := filepath.Join(req.DownloadDir, req.Version+".lock")
	handle, err := lockfile.Lock(lockPath)
	if err != nil {
		return "", err
	}
	defer handle.Unlock()

	if cached, ok := d.cachedPath(req.Version); ok {
		return cached, nil
	}
	if _, err := os.Stat(binaryPath); err == nil {
		d.setCachedPath(req.Version, binaryPath)
		return binaryPath, nil
	}

	archiveURL, err := resource.ArchiveURL(req, opts.Mirror, opts.DownloadURL)
	if err != nil {
		return "", err
	}
	// The on-disk archive keeps the URL's own file name so its extension
	// selects the right extractor; ARCHIVE_NAME replaces it when set.
	archiveName := path.Base(archiveURL)
	if opts.ArchiveNameOverride != "" {
		archiveName, err = resource.ArchiveName(req, opts.ArchiveNameOverride)
		if err != nil {
			return "", err
		}
	}
	archivePath := filepath.Join(req.DownloadDir, archiveName)

	if opts.UseHTTP {
		archiveURL = forceHTTP(archiveURL)
	}

	d.log.Infof("downloading %s", archiveURL)
	if err := fetchToFile(ctx, archiveURL, archivePath, opts.MaxRedirects); err != nil {
		return "", err
	}
	defer os.Remove(archivePath)

	if req.CheckMD5 {
		if err := verifyMD5(ctx, archiveURL, archivePath); err != nil {
			return "", err
		}
	}

	if err := archiveutil.ExtractMatching(archivePath, binaryEntryPattern, binaryPath, 0o775); err != nil {
		return "", fmt.Errorf("failed to extract %s from archive: %w", binaryPath, err)
	}

	d.setCachedPath(req.Version, binaryPath)
	return binaryPath, nil
}

func (d *Downloader) cachedPath(version string) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, ok := d.cache[version]
	return p, ok
}

func (d *Downloader) setCachedPath(version, path string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cache[version] = path
}

// WarmCache provisions every request concurrently, returning the first
// error encountered (if any); successfully provisioned paths are cached
// regardless. This is additive to spec.md — grounded on the teacher's
// worker-pool fan-out for independent per-component downloads, reused
// here for multi-platform cache priming ahead of a test suite run.
func (d *Downloader) WarmCache(ctx context.Context, reqs []resource.BinaryRequest, opts Options) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, req := range reqs {
		req := req
		g.Go(func() error {
			_, err := d.Provision(gctx, req, opts)
			return err
		})
	}
	return g.Wait()
}
